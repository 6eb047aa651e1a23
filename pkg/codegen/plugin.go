package codegen

import (
	"path"

	"github.com/dave/jennifer/jen"

	"github.com/chazu/capsulegen/pkg/binding"
)

// PluginEmitter writes the skeleton of a native library implemented in Go
// and built with -buildmode=c-shared. It exports CapsuleSymbols and
// CapsuleInvoke, the entry points runtime.OpenPlugin loads, and leaves the
// implementation of each declared symbol to Register calls in hand-written
// files of the same package.
type PluginEmitter struct {
	// Dir is the output subdirectory, defaulting to "plugin".
	Dir string
}

// Emit implements Emitter.
func (e *PluginEmitter) Emit(reg *binding.Registry) (*Result, error) {
	dir := e.Dir
	if dir == "" {
		dir = "plugin"
	}
	f := newGoFile("main")

	// Import "C" for c-shared exports
	f.ImportAlias("C", "")

	syms := declaredSymbols(reg)
	lits := make([]jen.Code, len(syms))
	for i, s := range syms {
		lits[i] = jen.Lit(s)
	}
	f.Comment("Symbols lists every native symbol the bindings call.")
	f.Var().Id("Symbols").Op("=").Index().String().ValuesFunc(func(g *jen.Group) {
		for _, l := range lits {
			g.Line().Add(l)
		}
		if len(lits) > 0 {
			g.Line()
		}
	})
	f.Line()

	pluginTypes(f)
	pluginExports(f)
	pluginHelpers(f)

	// Empty main (required for c-shared but unused)
	f.Func().Id("main").Params().Block()

	res := &Result{}
	if err := renderGo(res, path.Join(dir, "main.go"), f); err != nil {
		return nil, err
	}
	if len(syms) == 0 {
		res.warn("plugin: registry declares no native symbols")
	}
	return res, nil
}

// declaredSymbols returns the native symbol of every method in declaration
// order, without duplicates.
func declaredSymbols(reg *binding.Registry) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(m *binding.Method) {
		s := m.Symbol()
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, ns := range reg.Namespaces() {
		for _, c := range ns.Classes() {
			for _, m := range c.Methods() {
				add(m)
			}
		}
		for _, fn := range ns.Functions() {
			add(fn)
		}
	}
	return out
}

func pluginTypes(f *jen.File) {
	f.Comment("NativeFunc implements one native symbol. Objects arrive as Handle values;")
	f.Comment("fallible symbols receive a trailing *string for the failure message.")
	f.Type().Id("NativeFunc").Func().Params(jen.Id("args").Index().Interface()).Params(jen.Interface(), jen.Error())
	f.Line()

	f.Comment("Handle identifies a native object owned by this library.")
	f.Type().Id("Handle").Uint64()
	f.Line()

	f.Var().Defs(
		jen.Id("mu").Qual("sync", "Mutex"),
		jen.Id("impls").Op("=").Map(jen.String()).Id("NativeFunc").Values(),
		jen.Id("objects").Op("=").Map(jen.Id("Handle")).Interface().Values(),
		jen.Id("nextHandle").Id("Handle"),
	)
	f.Line()

	f.Comment("Register installs the implementation of a declared symbol.")
	f.Func().Id("Register").Params(jen.Id("symbol").String(), jen.Id("fn").Id("NativeFunc")).Block(
		jen.Id("mu").Dot("Lock").Call(),
		jen.Defer().Id("mu").Dot("Unlock").Call(),
		jen.Id("impls").Index(jen.Id("symbol")).Op("=").Id("fn"),
	)
	f.Line()

	f.Comment("NewHandle stores obj and returns the handle the host refers to it by.")
	f.Func().Id("NewHandle").Params(jen.Id("obj").Interface()).Id("Handle").Block(
		jen.Id("mu").Dot("Lock").Call(),
		jen.Defer().Id("mu").Dot("Unlock").Call(),
		jen.Id("nextHandle").Op("++"),
		jen.Id("objects").Index(jen.Id("nextHandle")).Op("=").Id("obj"),
		jen.Return(jen.Id("nextHandle")),
	)
	f.Line()

	f.Comment("Object returns the object behind h.")
	f.Func().Id("Object").Params(jen.Id("h").Id("Handle")).Params(jen.Interface(), jen.Bool()).Block(
		jen.Id("mu").Dot("Lock").Call(),
		jen.Defer().Id("mu").Dot("Unlock").Call(),
		jen.List(jen.Id("obj"), jen.Id("ok")).Op(":=").Id("objects").Index(jen.Id("h")),
		jen.Return(jen.Id("obj"), jen.Id("ok")),
	)
	f.Line()

	f.Comment("Free forgets the object behind h.")
	f.Func().Id("Free").Params(jen.Id("h").Id("Handle")).Block(
		jen.Id("mu").Dot("Lock").Call(),
		jen.Defer().Id("mu").Dot("Unlock").Call(),
		jen.Delete(jen.Id("objects"), jen.Id("h")),
	)
	f.Line()
}

// pluginExports generates the C-exported functions
func pluginExports(f *jen.File) {
	f.Comment("//export CapsuleSymbols")
	f.Func().Id("CapsuleSymbols").Params().Op("*").Qual("C", "char").Block(
		jen.Id("mu").Dot("Lock").Call(),
		jen.Id("names").Op(":=").Make(jen.Index().String(), jen.Lit(0), jen.Len(jen.Id("Symbols"))),
		jen.For(jen.List(jen.Id("_"), jen.Id("s")).Op(":=").Range().Id("Symbols")).Block(
			jen.If(jen.List(jen.Id("_"), jen.Id("ok")).Op(":=").Id("impls").Index(jen.Id("s")), jen.Id("ok")).Block(
				jen.Id("names").Op("=").Append(jen.Id("names"), jen.Id("s")),
			),
		),
		jen.Id("mu").Dot("Unlock").Call(),
		jen.List(jen.Id("data"), jen.Id("_")).Op(":=").Qual("encoding/json", "Marshal").Call(jen.Id("names")),
		jen.Return(jen.Qual("C", "CString").Call(jen.String().Parens(jen.Id("data")))),
	)
	f.Line()

	// CapsuleInvoke returns a single JSON string to avoid struct return ABI issues
	f.Comment("//export CapsuleInvoke")
	f.Func().Id("CapsuleInvoke").Params(jen.Id("request").Op("*").Qual("C", "char")).Op("*").Qual("C", "char").Block(
		jen.Return(jen.Qual("C", "CString").Call(jen.Id("invoke").Call(jen.Qual("C", "GoString").Call(jen.Id("request"))))),
	)
	f.Line()
}

func pluginHelpers(f *jen.File) {
	jsonTag := func(name string) map[string]string { return map[string]string{"json": name} }

	f.Func().Id("invoke").Params(jen.Id("request").String()).String().Block(
		jen.Var().Id("req").Struct(
			jen.Id("Symbol").String().Tag(jsonTag("symbol")),
			jen.Id("Args").Index().Qual("encoding/json", "RawMessage").Tag(jsonTag("args")),
		),
		jen.If(jen.Err().Op(":=").Qual("encoding/json", "Unmarshal").Call(jen.Index().Byte().Parens(jen.Id("request")), jen.Op("&").Id("req")), jen.Err().Op("!=").Nil()).Block(
			jen.Return(jen.Id("errorJSON").Call(jen.Err())),
		),
		jen.Id("mu").Dot("Lock").Call(),
		jen.List(jen.Id("fn"), jen.Id("ok")).Op(":=").Id("impls").Index(jen.Id("req").Dot("Symbol")),
		jen.Id("mu").Dot("Unlock").Call(),
		jen.If(jen.Op("!").Id("ok")).Block(
			jen.Return(jen.Id("errorJSON").Call(jen.Qual("fmt", "Errorf").Call(jen.Lit("unknown symbol %s"), jen.Id("req").Dot("Symbol")))),
		),
		jen.Line(),
		jen.Var().Id("errmsg").Op("*").String(),
		jen.Id("args").Op(":=").Make(jen.Index().Interface(), jen.Len(jen.Id("req").Dot("Args"))),
		jen.For(jen.List(jen.Id("i"), jen.Id("raw")).Op(":=").Range().Id("req").Dot("Args")).Block(
			jen.List(jen.Id("v"), jen.Id("out"), jen.Err()).Op(":=").Id("decodeArg").Call(jen.Id("raw")),
			jen.If(jen.Err().Op("!=").Nil()).Block(
				jen.Return(jen.Id("errorJSON").Call(jen.Err())),
			),
			jen.If(jen.Id("out")).Block(
				jen.Id("errmsg").Op("=").New(jen.String()),
				jen.Id("v").Op("=").Id("errmsg"),
			),
			jen.Id("args").Index(jen.Id("i")).Op("=").Id("v"),
		),
		jen.Line(),
		jen.List(jen.Id("res"), jen.Err()).Op(":=").Id("fn").Call(jen.Id("args")),
		jen.If(jen.Err().Op("!=").Nil()).Block(
			jen.Return(jen.Id("errorJSON").Call(jen.Err())),
		),
		jen.Id("resp").Op(":=").Map(jen.String()).Interface().Values(jen.Dict{
			jen.Lit("result"): jen.Id("encodeResult").Call(jen.Id("res")),
		}),
		jen.If(jen.Id("errmsg").Op("!=").Nil()).Block(
			jen.Id("resp").Index(jen.Lit("errmsg")).Op("=").Op("*").Id("errmsg"),
		),
		jen.List(jen.Id("data"), jen.Err()).Op(":=").Qual("encoding/json", "Marshal").Call(jen.Id("resp")),
		jen.If(jen.Err().Op("!=").Nil()).Block(
			jen.Return(jen.Id("errorJSON").Call(jen.Err())),
		),
		jen.Return(jen.String().Parens(jen.Id("data"))),
	)
	f.Line()

	f.Comment("decodeArg decodes one argument; out reports the failure-message slot.")
	f.Func().Id("decodeArg").Params(jen.Id("raw").Qual("encoding/json", "RawMessage")).Params(
		jen.Id("v").Interface(), jen.Id("out").Bool(), jen.Err().Error(),
	).Block(
		jen.If(jen.Len(jen.Id("raw")).Op(">").Lit(0).Op("&&").Id("raw").Index(jen.Lit(0)).Op("==").LitRune('{')).Block(
			jen.Var().Id("marker").Struct(
				jen.Id("Handle").Op("*").Uint64().Tag(jsonTag("handle")),
				jen.Id("Out").Bool().Tag(jsonTag("out")),
			),
			jen.If(jen.Qual("encoding/json", "Unmarshal").Call(jen.Id("raw"), jen.Op("&").Id("marker")).Op("==").Nil()).Block(
				jen.If(jen.Id("marker").Dot("Out")).Block(
					jen.Return(jen.Nil(), jen.True(), jen.Nil()),
				),
				jen.If(jen.Id("marker").Dot("Handle").Op("!=").Nil()).Block(
					jen.Return(jen.Id("Handle").Call(jen.Op("*").Id("marker").Dot("Handle")), jen.False(), jen.Nil()),
				),
			),
		),
		jen.Err().Op("=").Qual("encoding/json", "Unmarshal").Call(jen.Id("raw"), jen.Op("&").Id("v")),
		jen.Return(jen.Id("v"), jen.False(), jen.Err()),
	)
	f.Line()

	f.Func().Id("encodeResult").Params(jen.Id("v").Interface()).Interface().Block(
		jen.If(jen.List(jen.Id("h"), jen.Id("ok")).Op(":=").Id("v").Assert(jen.Id("Handle")), jen.Id("ok")).Block(
			jen.Return(jen.Map(jen.String()).Uint64().Values(jen.Dict{
				jen.Lit("handle"): jen.Uint64().Call(jen.Id("h")),
			})),
		),
		jen.Return(jen.Id("v")),
	)
	f.Line()

	f.Func().Id("errorJSON").Params(jen.Err().Error()).String().Block(
		jen.List(jen.Id("data"), jen.Id("_")).Op(":=").Qual("encoding/json", "Marshal").Call(
			jen.Map(jen.String()).String().Values(jen.Dict{
				jen.Lit("error"): jen.Err().Dot("Error").Call(),
			}),
		),
		jen.Return(jen.String().Parens(jen.Id("data"))),
	)
	f.Line()
}
