package codegen

import (
	"fmt"
	"strings"

	"github.com/chazu/capsulegen/pkg/binding"
	berrors "github.com/chazu/capsulegen/pkg/errors"
)

// HostEmitter writes one Python module per namespace. The modules import
// the compiled glue as _api and the capsule support module.
type HostEmitter struct {
	// Package is the Python package _api and capsule are imported from.
	// Empty imports them as top-level modules.
	Package string
	// Snippets holds the source of snippet hooks, keyed by id. Each snippet
	// is the body of a function taking (self, *args) or, for static
	// hooks, (*args).
	Snippets map[string]string
}

// HostFilename is the Python module name of a namespace.
func HostFilename(ns *binding.Namespace) string {
	return moduleName(ns) + ".py"
}

// Emit implements Emitter.
func (e *HostEmitter) Emit(reg *binding.Registry) (*Result, error) {
	res := &Result{}
	for _, ns := range reg.Namespaces() {
		w := &hostWriter{CodeWriter: NewCodeWriter(Colons), ns: ns, snippets: e.Snippets}
		if err := w.module(e.Package); err != nil {
			return nil, err
		}
		res.add(HostFilename(ns), w.Bytes())
	}
	return res, nil
}

// pyKeywords are suffixed with an underscore wherever a declared name
// becomes a Python identifier.
var pyKeywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
	"print": true, "exec": true,
}

// PyIdent makes name a valid Python identifier without changing its
// spelling otherwise.
func PyIdent(name string) string {
	if pyKeywords[name] {
		return name + "_"
	}
	return name
}

type hostWriter struct {
	*CodeWriter
	ns       *binding.Namespace
	snippets map[string]string
}

func (w *hostWriter) module(pkg string) error {
	w.Println("# Code generated by capsulegen. DO NOT EDIT.")
	w.Blank()
	if pkg != "" {
		w.Println("from %s import _api, capsule", pkg)
	} else {
		w.Println("import _api")
		w.Println("import capsule")
	}
	for _, dep := range w.dependencies() {
		if pkg != "" {
			w.Println("from %s import %s", pkg, dep)
		} else {
			w.Println("import %s", dep)
		}
	}
	w.Blank()

	for _, en := range w.ns.Enums() {
		w.Blank()
		w.enum(en)
	}
	for _, c := range orderedClasses(w.ns) {
		w.Blank()
		if err := w.class(c); err != nil {
			return err
		}
	}
	for _, fn := range w.ns.Functions() {
		w.Blank()
		w.Block(fmt.Sprintf("def %s(*args)", PyIdent(fn.Name)), func() {
			w.forwardBody(fn, "")
		})
	}
	return nil
}

// dependencies lists the host modules of other namespaces this module
// refers to through bases or hook conditions.
func (w *hostWriter) dependencies() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(c *binding.Class) {
		if c.Namespace == w.ns {
			return
		}
		name := moduleName(c.Namespace)
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, c := range w.ns.Classes() {
		for _, b := range c.Bases {
			add(b)
		}
		for _, h := range c.Hooks() {
			th, ok := h.(*binding.TemplateHook)
			if !ok {
				continue
			}
			for _, br := range th.Branches {
				if cond, ok := br.When.(binding.ArgIsInstance); ok {
					add(cond.Class)
				}
			}
		}
	}
	return out
}

// classRef is the host expression naming c from this module.
func (w *hostWriter) classRef(c *binding.Class) string {
	if c.Namespace == w.ns {
		return c.Name
	}
	return moduleName(c.Namespace) + "." + c.Name
}

// apiPath is the attribute path of a member inside the glue module.
func apiPath(m *binding.Method) string {
	var owner string
	switch o := m.Owner().(type) {
	case *binding.Class:
		owner = strings.ReplaceAll(o.Namespace.Name, "::", ".") + "." + o.Name
	default:
		owner = strings.ReplaceAll(o.FullName(), "::", ".")
	}
	return "_api." + owner + "." + m.Name
}

func (w *hostWriter) enum(en *binding.Enum) {
	w.Block("class "+PyIdent(en.Name), func() {
		w.Println(`_llvm_type_ = "%s"`, en.FullName())
		for _, v := range en.Values {
			w.Println(`%s = "%s"`, PyIdent(v), v)
		}
	})
}

func (w *hostWriter) class(c *binding.Class) error {
	base := "capsule.Wrapper"
	if b := c.Base(); b != nil {
		base = w.classRef(b)
	}
	w.Println(`@capsule.register_class("%s")`, c.FullName())
	var err error
	w.Block(fmt.Sprintf("class %s(%s)", c.Name, base), func() {
		w.Println(`_llvm_type_ = "%s"`, c.FullName())
		for _, en := range c.Enums() {
			w.Blank()
			w.enum(en)
		}
		for _, m := range c.Methods() {
			w.Blank()
			w.method(c, m)
		}
		for _, h := range c.Hooks() {
			w.Blank()
			if e := w.hook(c, h); e != nil && err == nil {
				err = e
			}
		}
	})
	return err
}

func (w *hostWriter) method(c *binding.Class, m *binding.Method) {
	if m.Kind == binding.KindDestructor {
		w.Println("_delete_ = %s", apiPath(m))
		return
	}
	if m.HasReceiver() {
		w.Block(fmt.Sprintf("def %s(self, *args)", PyIdent(m.Name)), func() {
			w.forwardBody(m, "self")
		})
		return
	}
	w.Println("@staticmethod")
	w.Block(fmt.Sprintf("def %s(*args)", PyIdent(m.Name)), func() {
		w.forwardBody(m, "")
	})
}

// forwardBody releases ownership for the matching arity, unwraps, calls
// the glue entry and wraps the result.
func (w *hostWriter) forwardBody(m *binding.Method, recv string) {
	for _, sig := range m.Signatures {
		owned := binding.OwnedArgs(sig)
		if len(owned) == 0 {
			continue
		}
		w.Block(fmt.Sprintf("if len(args) == %d", len(sig.Args)), func() {
			for _, i := range owned {
				w.Println("capsule.release_ownership(args[%d])", i)
			}
		})
	}
	call := fmt.Sprintf("%s(*capsule.unwrap_many(args))", apiPath(m))
	if recv != "" {
		call = fmt.Sprintf("%s(capsule.unwrap(%s), *capsule.unwrap_many(args))", apiPath(m), recv)
	}
	switch {
	case m.Fallible():
		w.Println("return %s", call)
	case isVoidMethod(m):
		w.Println(call)
	default:
		w.Println("ret = %s", call)
		w.Println("return capsule.wrap(ret, %s)", pyBool(m.ReturnsOwned()))
	}
}

func isVoidMethod(m *binding.Method) bool {
	for _, sig := range m.Signatures {
		if !binding.IsVoid(sig.Return) {
			return false
		}
	}
	return true
}

func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func (w *hostWriter) hook(c *binding.Class, h binding.Hook) error {
	subject := c.FullName() + "::" + h.HookName()
	params := "self, *args"
	if h.IsStatic() {
		w.Println("@staticmethod")
		params = "*args"
	}

	switch hk := h.(type) {
	case *binding.TemplateHook:
		var err error
		w.Block(fmt.Sprintf("def %s(%s)", PyIdent(hk.Name), params), func() {
			for _, br := range hk.Branches {
				target, _ := c.Method(br.Target)
				if target.HasReceiver() && hk.Static {
					err = berrors.Emission(subject, "static hook cannot forward to instance method %s", br.Target)
					return
				}
				call := w.hookCall(c, target, br)
				cond := w.condition(br)
				if cond == "" {
					w.Println("return %s", call)
					return
				}
				w.Block("if "+cond, func() {
					w.Println("return %s", call)
				})
			}
			w.Println(`raise TypeError("no matching call for %s")`, hk.Name)
		})
		return err

	case *binding.SnippetHook:
		src, ok := w.snippets[hk.SnippetID]
		if !ok {
			return berrors.Emission(subject, "unknown snippet %q", hk.SnippetID)
		}
		w.Block(fmt.Sprintf("def %s(%s)", PyIdent(hk.Name), params), func() {
			w.Lines(src)
		})
		return nil

	default:
		return berrors.Emission(subject, "unhandled hook %T", h)
	}
}

// condition returns the guard of a branch, or "" when it always holds.
func (w *hostWriter) condition(br binding.HookBranch) string {
	var cond string
	switch c := br.When.(type) {
	case binding.NoArgs:
		cond = "len(args) == 0"
	case binding.ArgIsInstance:
		cond = fmt.Sprintf("len(args) > %d and isinstance(args[%d], %s)", c.Index, c.Index, w.classRef(c.Class))
	}
	if n := len(br.Transform); n > 0 {
		need := fmt.Sprintf("len(args) >= %d", n)
		if cond == "" {
			return need
		}
		return cond + " and " + need
	}
	return cond
}

func (w *hostWriter) hookCall(c *binding.Class, target *binding.Method, br binding.HookBranch) string {
	var args []string
	for i, t := range br.Transform {
		switch t {
		case binding.StrList:
			args = append(args, fmt.Sprintf("[str(x) for x in args[%d]]", i))
		default:
			args = append(args, fmt.Sprintf("args[%d]", i))
		}
	}
	rest := "*args"
	if len(br.Transform) > 0 {
		rest = fmt.Sprintf("*args[%d:]", len(br.Transform))
	}
	args = append(args, rest)

	fn := c.Name + "." + PyIdent(target.Name)
	if target.HasReceiver() {
		fn = "self." + PyIdent(target.Name)
	}
	return fmt.Sprintf("%s(%s)", fn, strings.Join(args, ", "))
}
