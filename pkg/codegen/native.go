package codegen

import (
	"fmt"
	"strings"

	"github.com/chazu/capsulegen/pkg/binding"
	berrors "github.com/chazu/capsulegen/pkg/errors"
)

// SupportHeader is the file every native glue unit includes.
const SupportHeader = "capsule_support.h"

// NativeEmitter writes one C++ glue unit per namespace against the CPython
// C API, plus the shared support header.
type NativeEmitter struct{}

// Emit implements Emitter.
func (e *NativeEmitter) Emit(reg *binding.Registry) (*Result, error) {
	if err := checkEntryNames(reg); err != nil {
		return nil, err
	}
	res := &Result{}
	res.add(SupportHeader, []byte(supportHeader))
	for _, ns := range reg.Namespaces() {
		src, err := e.emitNamespace(ns)
		if err != nil {
			return nil, err
		}
		res.add(NativeFilename(ns), src)
	}
	return res, nil
}

// checkEntryNames fails when two members mangle to the same entry point.
func checkEntryNames(reg *binding.Registry) error {
	seen := make(map[string]*binding.Method)
	check := func(m *binding.Method) error {
		name := m.EntryName()
		if prev, dup := seen[name]; dup {
			return berrors.Emission(m.FullName(), "entry point %s collides with %s", name, prev.FullName())
		}
		seen[name] = m
		return nil
	}
	for _, ns := range reg.Namespaces() {
		for _, c := range ns.Classes() {
			for _, m := range c.Methods() {
				if err := check(m); err != nil {
					return err
				}
			}
		}
		for _, fn := range ns.Functions() {
			if err := check(fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// NativeFilename is the glue unit name of a namespace.
func NativeFilename(ns *binding.Namespace) string {
	return moduleName(ns) + "_glue.cpp"
}

func (e *NativeEmitter) emitNamespace(ns *binding.Namespace) ([]byte, error) {
	w := &nativeWriter{CodeWriter: NewCodeWriter(Braces)}
	w.Println("// Code generated by capsulegen. DO NOT EDIT.")
	w.Blank()
	w.Println("#include <Python.h>")
	w.Println(`#include "%s"`, SupportHeader)
	for _, inc := range collectIncludes(ns) {
		w.Println("#include %s", includeSpelling(inc))
	}
	w.Blank()

	var submodules []string
	for _, c := range orderedClasses(ns) {
		var table []*binding.Method
		for _, m := range c.Methods() {
			if err := w.function(m); err != nil {
				return nil, err
			}
			table = append(table, m)
		}
		tableName := binding.Mangle(c.FullName()) + "__methods"
		w.methodTable(tableName, table)
		submodules = append(submodules, fmt.Sprintf(`{ "%s", %s },`, c.Name, tableName))
	}

	for _, fn := range ns.Functions() {
		if err := w.function(fn); err != nil {
			return nil, err
		}
	}
	fnTable := moduleName(ns) + "__functions"
	w.methodTable(fnTable, ns.Functions())

	w.Println("static")
	w.Block(fmt.Sprintf("CapsuleSubmodule %s__submodules[] =", moduleName(ns)), func() {
		for _, s := range submodules {
			w.Println(s)
		}
		w.Println("{ NULL, NULL },")
	})
	// Block closes with "}" but a C array initializer needs a semicolon.
	w.terminate()
	w.Blank()

	w.Block(fmt.Sprintf(`extern "C" CapsuleModuleDef* capsule_module_%s()`, moduleName(ns)), func() {
		w.Println(`static CapsuleModuleDef def = { "%s", %s, %s__submodules };`, ns.Name, fnTable, moduleName(ns))
		w.Println("return &def;")
	})
	return w.Bytes(), nil
}

// collectIncludes gathers namespace and class headers in first-use order.
func collectIncludes(ns *binding.Namespace) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(paths []string) {
		for _, p := range paths {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	add(ns.Includes)
	for _, c := range ns.Classes() {
		add(c.Includes)
	}
	return out
}

func includeSpelling(path string) string {
	if strings.HasPrefix(path, "<") || strings.HasPrefix(path, `"`) {
		return path
	}
	return "<" + path + ">"
}

type nativeWriter struct {
	*CodeWriter
}

// terminate appends a semicolon to the last written line.
func (w *nativeWriter) terminate() {
	s := w.buf.String()
	trimmed := strings.TrimRight(s, "\n")
	w.buf.Reset()
	w.buf.WriteString(trimmed + ";\n")
}

func (w *nativeWriter) methodTable(name string, methods []*binding.Method) {
	w.Println("static")
	w.Block(fmt.Sprintf("PyMethodDef %s[] =", name), func() {
		for _, m := range methods {
			w.Println(`{ "%s", (PyCFunction)%s, METH_VARARGS, NULL },`, m.Name, m.EntryName())
		}
		w.Println("{ NULL },")
	})
	w.terminate()
	w.Blank()
}

// declare writes a local declaration and returns its name.
func (w *nativeWriter) declare(typ, init string) string {
	name := w.Temp("var")
	if init == "" {
		w.Println("%s %s;", typ, name)
	} else {
		w.Println("%s %s = %s;", typ, name, init)
	}
	return name
}

func (w *nativeWriter) dieIfFalse(v string) {
	w.Block(fmt.Sprintf("if (!%s)", v), func() {
		w.Println("return NULL;")
	})
}

func (w *nativeWriter) raise(exc, msg string) {
	w.Println(`PyErr_SetString(%s, "%s");`, exc, msg)
	w.Println("return NULL;")
}

func (w *nativeWriter) function(m *binding.Method) error {
	w.ResetTemps()
	w.Println("static")
	w.Println("PyObject*")
	var err error
	w.Block(m.EntryName()+"(PyObject* self, PyObject* args)", func() {
		if len(m.Signatures) == 1 {
			err = w.body(m, m.Signatures[0])
			return
		}
		w.Println("Py_ssize_t nargs = PyTuple_Size(args);")
		for _, sig := range m.Signatures {
			sig := sig
			w.Block(fmt.Sprintf("if (%d == nargs)", m.ExpectedArgs(sig)), func() {
				if e := w.body(m, sig); e != nil && err == nil {
					err = e
				}
			})
		}
		w.raise("PyExc_TypeError", "Invalid number of args")
	})
	w.Blank()
	return err
}

// body emits the unwrap, call and wrap sequence of one signature.
func (w *nativeWriter) body(m *binding.Method, sig binding.Signature) error {
	objs := w.parseArguments(m.ExpectedArgs(sig))

	var recv string
	if m.HasReceiver() {
		cls, _ := m.Class()
		recv = w.unwrapClass(cls, false, objs[0])
		objs = objs[1:]
	}

	args := make([]string, 0, len(objs)+1)
	for i, t := range sig.Args {
		v, err := w.unwrap(t, objs[i])
		if err != nil {
			return berrors.Emission(m.FullName(), "argument %d: %v", i, err)
		}
		args = append(args, v)
	}

	var errmsg string
	if m.Fallible() {
		errmsg = w.declare("std::string", "")
		args = append(args, "&"+errmsg)
	}

	argList := strings.Join(args, ", ")
	var call string
	switch c := m.Call().(type) {
	case binding.InstanceCall:
		call = fmt.Sprintf("%s->%s(%s)", recv, c.Method, argList)
	case binding.StaticCall:
		call = fmt.Sprintf("%s(%s)", c.Symbol, argList)
	case binding.CustomStaticCall:
		call = fmt.Sprintf("%s(%s)", c.Symbol, argList)
	case binding.CustomCall:
		call = fmt.Sprintf("%s(%s)", c.Symbol, strings.Join(append([]string{recv}, args...), ", "))
	case binding.ConstructCall:
		call = fmt.Sprintf("new %s(%s)", c.Class.FullName(), argList)
	case binding.DestructCall:
		w.Println("delete %s;", recv)
		w.Println("Py_RETURN_NONE;")
		return nil
	default:
		return berrors.Emission(m.FullName(), "unhandled call form %T", c)
	}

	switch {
	case m.Fallible():
		failed := w.declare("bool", call)
		w.Println(`return Py_BuildValue("(Os)", %s ? Py_False : Py_True, %s.c_str());`, failed, errmsg)
	case binding.IsVoid(sig.Return):
		w.Println("%s;", call)
		w.Println("Py_RETURN_NONE;")
	default:
		ret := w.declare(sig.Return.FullName(), call)
		out, err := w.wrap(sig.Return, ret)
		if err != nil {
			return berrors.Emission(m.FullName(), "return value: %v", err)
		}
		w.Println("return %s;", out)
	}
	return nil
}

// parseArguments unpacks the argument tuple into n borrowed objects.
func (w *nativeWriter) parseArguments(n int) []string {
	objs := make([]string, n)
	for i := range objs {
		objs[i] = w.Temp("obj")
		w.Println("PyObject* %s;", objs[i])
	}
	refs := make([]string, n)
	for i, o := range objs {
		refs[i] = "&" + o
	}
	parse := fmt.Sprintf(`PyArg_ParseTuple(args, "%s"`, strings.Repeat("O", n))
	if n > 0 {
		parse += ", " + strings.Join(refs, ", ")
	}
	parse += ")"
	w.dieIfFalse(parse)
	return objs
}

// storage is the type a native value is declared with before assignment.
func storage(t binding.Type) string {
	if t == binding.Type(binding.ConstStdString) {
		return "std::string"
	}
	if c, ok := t.(*binding.Cast); ok {
		return storage(c.Native)
	}
	return t.FullName()
}

func (w *nativeWriter) unwrap(t binding.Type, obj string) (string, error) {
	switch v := t.(type) {
	case *binding.Builtin:
		if v == binding.HostObject {
			return obj, nil
		}
		if v == binding.Void {
			return "", fmt.Errorf("void is not an argument type")
		}
		out := w.declare(storage(v), "")
		w.dieIfFalse(fmt.Sprintf("py_builtin_to(%s, &%s)", obj, out))
		return out, nil

	case *binding.Class:
		p := w.unwrapClass(v, false, obj)
		return "*" + p, nil

	case *binding.Pointer:
		out := w.declare(v.FullName(), "NULL")
		w.Block(fmt.Sprintf("if (%s != Py_None)", obj), func() {
			p := w.unwrapClass(v.Elem, v.Const, obj)
			w.Println("%s = %s;", out, p)
		})
		return out, nil

	case *binding.Reference:
		p := w.unwrapClass(v.Elem, v.Const, obj)
		return w.declare(v.FullName(), "*"+p), nil

	case *binding.Enum:
		s := w.declare("const char*", fmt.Sprintf("PyUnicode_AsUTF8(%s)", obj))
		w.dieIfFalse(s)
		out := w.declare(v.FullName(), "")
		for i, val := range v.Values {
			head := fmt.Sprintf(`if (string_equal(%s, "%s"))`, s, val)
			if i > 0 {
				head = "else " + head
			}
			w.Block(head, func() {
				w.Println("%s = %s;", out, v.ValueRef(val))
			})
		}
		w.Block("else", func() {
			w.raise("PyExc_ValueError", "Invalid enum value for "+v.FullName())
		})
		return out, nil

	case *binding.Cast:
		out := w.declare(storage(v.Native), "")
		st := w.declare("int", fmt.Sprintf("%s(%s, %s)", v.ToName(), obj, out))
		w.dieIfFalse(st)
		return out, nil
	}
	return "", fmt.Errorf("unsupported type %s", t.FullName())
}

// unwrapClass checks the capsule tag of obj and returns a typed pointer.
func (w *nativeWriter) unwrapClass(c *binding.Class, isConst bool, obj string) string {
	raw := w.declare("void*", fmt.Sprintf(`PyCapsule_GetPointer(%s, "%s")`, obj, c.CapsuleName()))
	w.dieIfFalse(raw)
	typ := c.FullName()
	if isConst {
		typ = "const " + typ
	}
	p := w.declare(typ+"*", fmt.Sprintf("typecast<%s>::from(%s)", c.FullName(), raw))
	w.dieIfFalse(p)
	return p
}

func (w *nativeWriter) pycapsuleNew(ptr string, c *binding.Class) string {
	return w.declare("PyObject*", fmt.Sprintf(`pycapsule_new(%s, "%s", "%s")`, ptr, c.CapsuleName(), c.FullName()))
}

func (w *nativeWriter) wrap(t binding.Type, val string) (string, error) {
	switch v := t.(type) {
	case *binding.Builtin:
		if v == binding.HostObject {
			return val, nil
		}
		return w.declare("PyObject*", fmt.Sprintf("py_builtin_from(%s)", val)), nil

	case *binding.Class:
		return w.pycapsuleNew(fmt.Sprintf("new %s(%s)", v.FullName(), val), v), nil

	case *binding.Pointer:
		return w.pycapsuleNew(val, v.Elem), nil

	case *binding.Reference:
		return w.pycapsuleNew("&"+val, v.Elem), nil

	case *binding.Enum:
		out := w.declare("PyObject*", "NULL")
		w.Block(fmt.Sprintf("switch (%s)", val), func() {
			for _, name := range v.Values {
				w.Println("case %s:", v.ValueRef(name))
				w.Indent(func() {
					w.Println(`%s = PyUnicode_FromString("%s");`, out, name)
					w.Println("break;")
				})
			}
			w.Println("default:")
			w.Indent(func() {
				w.raise("PyExc_ValueError", "Invalid enum value for "+v.FullName())
			})
		})
		return out, nil

	case *binding.Cast:
		out := w.declare("PyObject*", fmt.Sprintf("%s(%s)", v.FromName(), val))
		w.dieIfFalse(out)
		return out, nil
	}
	return "", fmt.Errorf("unsupported type %s", t.FullName())
}
