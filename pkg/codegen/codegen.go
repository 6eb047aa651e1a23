// Package codegen emits the artifacts of a binding registry: native glue
// against the CPython C API, Python host wrappers, a Go host package and a
// Go c-shared native library skeleton.
//
// Every emitter is a stateless walk over a validated registry. Consistency
// between the artifacts comes only from the shared signature model and the
// per-kind type contracts in package binding.
package codegen

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/chazu/capsulegen/pkg/binding"
)

// GeneratedFile is one emitted artifact.
type GeneratedFile struct {
	Filename string
	Content  []byte
}

// Result contains the generated files and any warnings.
type Result struct {
	Files    []GeneratedFile
	Warnings []string
}

func (r *Result) add(name string, content []byte) {
	r.Files = append(r.Files, GeneratedFile{Filename: name, Content: content})
}

func (r *Result) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// File returns the generated file called name.
func (r *Result) File(name string) (GeneratedFile, bool) {
	for _, f := range r.Files {
		if f.Filename == name {
			return f, true
		}
	}
	return GeneratedFile{}, false
}

// Merge appends the files and warnings of other.
func (r *Result) Merge(other *Result) {
	r.Files = append(r.Files, other.Files...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// Emitter produces artifacts from a registry.
type Emitter interface {
	Emit(reg *binding.Registry) (*Result, error)
}

// Config selects the artifacts Generate produces.
type Config struct {
	// GoPackage names the Go host package; empty disables it.
	GoPackage string
	// Plugin enables the c-shared native library skeleton.
	Plugin bool
	// PythonPackage is the package the Python modules import _api and
	// capsule from.
	PythonPackage string
	// Snippets holds Python source for snippet hooks, keyed by id.
	Snippets map[string]string
}

// Generate validates reg and runs every configured emitter.
func Generate(reg *binding.Registry, cfg Config) (*Result, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	emitters := []Emitter{
		&NativeEmitter{},
		&HostEmitter{Package: cfg.PythonPackage, Snippets: cfg.Snippets},
	}
	if cfg.GoPackage != "" {
		emitters = append(emitters, &GoHostEmitter{Package: cfg.GoPackage})
	}
	if cfg.Plugin {
		emitters = append(emitters, &PluginEmitter{})
	}

	out := &Result{}
	for _, e := range emitters {
		res, err := e.Emit(reg)
		if err != nil {
			return nil, err
		}
		out.Merge(res)
	}
	for _, w := range out.Warnings {
		Logger().Warn("generation warning", zap.String("warning", w))
	}
	Logger().Debug("generated artifacts", zap.Int("files", len(out.Files)))
	return out, nil
}

// orderedClasses returns the classes of ns with every base before the
// classes deriving from it, otherwise keeping declaration order.
func orderedClasses(ns *binding.Namespace) []*binding.Class {
	var out []*binding.Class
	seen := make(map[*binding.Class]bool)
	var visit func(c *binding.Class)
	visit = func(c *binding.Class) {
		if seen[c] {
			return
		}
		seen[c] = true
		for _, b := range c.Bases {
			if b.Namespace == ns {
				visit(b)
			}
		}
		out = append(out, c)
	}
	for _, c := range ns.Classes() {
		visit(c)
	}
	return out
}

// moduleName is the file and module name of a namespace.
func moduleName(ns *binding.Namespace) string {
	return binding.Mangle(ns.Name)
}

// goName converts a declared member name into a Go identifier. Names with
// a leading underscore stay unexported.
func goName(name string) string {
	exported := !strings.HasPrefix(name, "_")
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || !(unicode.IsLetter(r) || unicode.IsDigit(r))
	})
	var b strings.Builder
	for i, p := range parts {
		if i == 0 && !exported {
			b.WriteString(strings.ToLower(p[:1]) + p[1:])
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]) + p[1:])
	}
	s := b.String()
	if s == "" {
		return "X"
	}
	if unicode.IsDigit(rune(s[0])) {
		s = "X" + s
	}
	if goKeywords[s] {
		s += "_"
	}
	return s
}

var goKeywords = map[string]bool{
	"break": true, "case": true, "chan": true, "const": true, "continue": true,
	"default": true, "defer": true, "else": true, "fallthrough": true, "for": true,
	"func": true, "go": true, "goto": true, "if": true, "import": true,
	"interface": true, "map": true, "package": true, "range": true, "return": true,
	"select": true, "struct": true, "switch": true, "type": true, "var": true,
}

// sortedKeys returns the keys of m in order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
