// Package main provides a CLI tool for inspecting declarations.
//
// It exposes the type-expression lexer and parser and the entry-point table
// a registry compiles to, all as JSON.
//
// Usage:
//
//	capsule-inspect tokenize <expr>          # Output JSON tokens
//	capsule-inspect parse <expr>             # Output JSON expression tree
//	capsule-inspect entries <decl.yaml> ...  # Output JSON entry points
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/chazu/capsulegen/pkg/binding"
	"github.com/chazu/capsulegen/pkg/decl"
	"github.com/chazu/capsulegen/pkg/lexer"
	"github.com/chazu/capsulegen/pkg/parser"
	"github.com/chazu/capsulegen/pkg/runtime"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "tokenize", "parse":
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "Error: expected one type expression")
			printUsage()
			os.Exit(1)
		}
		if command == "tokenize" {
			err = cmdTokenize(os.Stdout, args[0])
		} else {
			err = cmdParse(os.Stdout, args[0])
		}

	case "entries":
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Error: missing declaration files")
			printUsage()
			os.Exit(1)
		}
		err = cmdEntries(os.Stdout, args)

	case "-h", "--help", "help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command '%s'\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`capsule-inspect - Inspect type expressions and declarations

Usage:
  capsule-inspect tokenize <expr>          Output JSON tokens
  capsule-inspect parse <expr>             Output JSON expression tree
  capsule-inspect entries <decl.yaml> ...  Output JSON entry points
  capsule-inspect help                     Show this help message

Examples:
  capsule-inspect tokenize 'ownedptr(llvm::Module)'
  capsule-inspect parse 'cast(str, ConstStdString)' | jq .
  capsule-inspect entries linker.yaml core.hcl`)
}

func writeJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func cmdTokenize(w io.Writer, expr string) error {
	tokens, err := lexer.New(expr).Tokenize()
	if err != nil {
		return fmt.Errorf("tokenizing: %w", err)
	}
	return writeJSON(w, tokens)
}

func cmdParse(w io.Writer, expr string) error {
	e, err := parser.Parse(expr)
	if err != nil {
		return err
	}
	return writeJSON(w, exprJSON(e))
}

// exprJSON tags each node with its kind so calls and names can be told apart.
func exprJSON(e parser.Expr) map[string]any {
	switch x := e.(type) {
	case parser.Call:
		args := make([]map[string]any, len(x.Args))
		for i, a := range x.Args {
			args[i] = exprJSON(a)
		}
		return map[string]any{"kind": "call", "func": x.Func, "args": args}
	case parser.Name:
		out := map[string]any{"kind": "name", "path": x.Path}
		if x.Member != "" {
			out["member"] = x.Member
		}
		return out
	}
	return map[string]any{"kind": "unknown", "text": e.String()}
}

// entryInfo describes one entry point of the compiled glue.
type entryInfo struct {
	Entry     string `json:"entry"`
	Symbol    string `json:"symbol"`
	Owner     string `json:"owner"`
	Arities   []int  `json:"arities"`
	Fallible  bool   `json:"fallible,omitempty"`
	Owned     bool   `json:"returns_owned,omitempty"`
	OwnedArgs bool   `json:"owned_args,omitempty"`
}

func cmdEntries(w io.Writer, paths []string) error {
	reg, err := decl.Load(paths...)
	if err != nil {
		return err
	}
	// Compiling against an empty library still catches entry-name collisions.
	if _, err := runtime.Compile(reg, runtime.NewSymbols(), runtime.AllowUnresolved()); err != nil {
		return err
	}
	return writeJSON(w, entries(reg))
}

func entries(reg *binding.Registry) []entryInfo {
	var out []entryInfo
	add := func(owner string, m *binding.Method) {
		out = append(out, entryInfo{
			Entry:     m.EntryName(),
			Symbol:    m.Symbol(),
			Owner:     owner,
			Arities:   m.Arities(),
			Fallible:  m.Fallible(),
			Owned:     m.ReturnsOwned(),
			OwnedArgs: m.HasOwnedArgs(),
		})
	}
	for _, ns := range reg.Namespaces() {
		for _, cls := range ns.Classes() {
			for _, m := range cls.Methods() {
				add(cls.FullName(), m)
			}
		}
		for _, fn := range ns.Functions() {
			add(ns.FullName(), fn)
		}
	}
	return out
}
