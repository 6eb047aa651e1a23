package codegen

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/dave/jennifer/jen"

	"github.com/chazu/capsulegen/pkg/binding"
	berrors "github.com/chazu/capsulegen/pkg/errors"
)

const capsulePkg = "github.com/chazu/capsulegen/pkg/capsule"

// GoHostEmitter writes a Go package of wrapper types that forward to a
// capsule.Module. Every namespace goes into the same package; type names
// carry a namespace prefix when the registry has more than one.
type GoHostEmitter struct {
	Package string
	// Dir is the output subdirectory, defaulting to Package.
	Dir string
}

// Emit implements Emitter.
func (e *GoHostEmitter) Emit(reg *binding.Registry) (*Result, error) {
	dir := e.Dir
	if dir == "" {
		dir = e.Package
	}
	g := &goHost{multi: len(reg.Namespaces()) > 1}
	res := &Result{}

	support := newGoFile(e.Package)
	g.support(support)
	if err := renderGo(res, path.Join(dir, "capsule_host.go"), support); err != nil {
		return nil, err
	}

	for _, ns := range reg.Namespaces() {
		f := newGoFile(e.Package)
		if err := g.namespace(f, ns); err != nil {
			return nil, err
		}
		if err := renderGo(res, path.Join(dir, moduleName(ns)+".go"), f); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func newGoFile(pkg string) *jen.File {
	f := jen.NewFile(pkg)
	f.HeaderComment("Code generated by capsulegen. DO NOT EDIT.")
	return f
}

func renderGo(res *Result, name string, f *jen.File) error {
	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return berrors.New(berrors.PhaseEmit, berrors.KindEmission).
			Subject(name).
			Cause(err).
			Detail("rendering Go source").
			Build()
	}
	res.add(name, buf.Bytes())
	return nil
}

type goHost struct {
	multi bool
}

// reservedMembers are promoted from capsule.Base and cannot be reused.
var reservedMembers = map[string]bool{"Capsule": true, "Attach": true}

func (g *goHost) typeName(c *binding.Class) string {
	if g.multi {
		return goName(moduleName(c.Namespace)) + exportedName(c.Name)
	}
	return goName(c.Name)
}

// exportedName is goName with the first letter forced upper case.
func exportedName(name string) string {
	s := goName(strings.TrimLeft(name, "_"))
	return strings.ToUpper(s[:1]) + s[1:]
}

func (g *goHost) memberName(name string) string {
	s := goName(name)
	if reservedMembers[s] {
		s += "_"
	}
	return s
}

// staticName names a class-level member as a package function.
func (g *goHost) staticName(c *binding.Class, name string) string {
	tn := g.typeName(c)
	if strings.HasPrefix(name, "_") {
		return strings.ToLower(tn[:1]) + tn[1:] + exportedName(name)
	}
	return tn + exportedName(name)
}

func (g *goHost) functionName(ns *binding.Namespace, name string) string {
	if g.multi {
		return goName(moduleName(ns)) + exportedName(name)
	}
	return goName(name)
}

func (g *goHost) support(f *jen.File) {
	anyList := jen.Index().Interface()

	f.Comment("Classes maps native class names to the generated wrappers.")
	f.Var().Id("Classes").Op("=").Qual(capsulePkg, "NewClassRegistry").Call()
	f.Line()

	f.Comment("Snippets holds host implementations of snippet hooks, keyed by id.")
	f.Var().Id("Snippets").Op("=").Map(jen.String()).Func().
		Params(jen.Id("recv").Interface(), jen.Id("args").Op("...").Interface()).
		Params(jen.Interface(), jen.Error()).Values()
	f.Line()

	f.Var().Id("module").Qual(capsulePkg, "Module")
	f.Line()

	f.Comment("Bind connects the wrappers to a native glue module.")
	f.Func().Id("Bind").Params(jen.Id("m").Qual(capsulePkg, "Module")).Block(
		jen.Id("module").Op("=").Id("m"),
	)
	f.Line()

	f.Func().Id("call").Params(
		jen.Id("entry").String(),
		jen.Id("owned").Bool(),
		jen.Id("args").Op("...").Interface(),
	).Params(jen.Interface(), jen.Error()).Block(
		jen.If(jen.Id("module").Op("==").Nil()).Block(
			jen.Return(jen.Nil(), jen.Qual("fmt", "Errorf").Call(jen.Lit("%s: module not bound"), jen.Id("entry"))),
		),
		jen.List(jen.Id("res"), jen.Err()).Op(":=").Id("module").Dot("Call").Call(
			jen.Id("entry"),
			jen.Id("Classes").Dot("UnwrapMany").Call(jen.Id("args")).Op("..."),
		),
		jen.If(jen.Err().Op("!=").Nil()).Block(
			jen.Return(jen.Nil(), jen.Err()),
		),
		jen.Return(jen.Id("Classes").Dot("Wrap").Call(jen.Id("res"), jen.Id("owned")), jen.Nil()),
	)
	f.Line()

	f.Func().Id("snippet").Params(
		jen.Id("id").String(),
		jen.Id("recv").Interface(),
		jen.Id("args").Add(anyList.Clone()),
	).Params(jen.Interface(), jen.Error()).Block(
		jen.List(jen.Id("fn"), jen.Id("ok")).Op(":=").Id("Snippets").Index(jen.Id("id")),
		jen.If(jen.Op("!").Id("ok")).Block(
			jen.Return(jen.Nil(), jen.Qual("fmt", "Errorf").Call(jen.Lit("snippet %q is not registered"), jen.Id("id"))),
		),
		jen.Return(jen.Id("fn").Call(jen.Id("recv"), jen.Id("args").Op("..."))),
	)
	f.Line()

	f.Func().Id("strList").Params(jen.Id("v").Interface()).Index().String().Block(
		jen.Switch(jen.Id("l").Op(":=").Id("v").Assert(jen.Type())).Block(
			jen.Case(jen.Index().String()).Block(
				jen.Return(jen.Id("l")),
			),
			jen.Case(anyList.Clone()).Block(
				jen.Id("out").Op(":=").Make(jen.Index().String(), jen.Len(jen.Id("l"))),
				jen.For(jen.List(jen.Id("i"), jen.Id("x")).Op(":=").Range().Id("l")).Block(
					jen.Id("out").Index(jen.Id("i")).Op("=").Qual("fmt", "Sprint").Call(jen.Id("x")),
				),
				jen.Return(jen.Id("out")),
			),
		),
		jen.Return(jen.Index().String().Values(jen.Qual("fmt", "Sprint").Call(jen.Id("v")))),
	)
}

func (g *goHost) namespace(f *jen.File, ns *binding.Namespace) error {
	for _, en := range ns.Enums() {
		g.enum(f, g.functionName(ns, en.Name), en)
	}

	classes := orderedClasses(ns)
	for _, c := range classes {
		if err := g.class(f, c); err != nil {
			return err
		}
	}

	for _, fn := range ns.Functions() {
		name := g.functionName(ns, fn.Name)
		f.Commentf("%s calls %s.", name, fn.FullName())
		f.Func().Id(name).Params(jen.Id("args").Op("...").Interface()).
			Params(jen.Interface(), jen.Error()).
			Block(g.forward(fn, nil)...)
		f.Line()
	}

	if len(classes) > 0 {
		var regs []jen.Code
		for _, c := range classes {
			tn := g.typeName(c)
			regs = append(regs, jen.Id("Classes").Dot("Register").Call(
				jen.Lit(c.FullName()),
				jen.Func().Params(jen.Id("c").Op("*").Qual(capsulePkg, "Capsule")).Qual(capsulePkg, "Wrapper").Block(
					jen.Id("w").Op(":=").Op("&").Id(tn).Values(),
					jen.Id("w").Dot("Attach").Call(jen.Id("c")),
					jen.Return(jen.Id("w")),
				),
			))
		}
		f.Func().Id("init").Params().Block(regs...)
	}
	return nil
}

func (g *goHost) enum(f *jen.File, prefix string, en *binding.Enum) {
	defs := make([]jen.Code, len(en.Values))
	for i, v := range en.Values {
		defs[i] = jen.Id(prefix + exportedName(v)).Op("=").Lit(v)
	}
	f.Commentf("%s values.", en.FullName())
	f.Const().Defs(defs...)
	f.Line()
}

func (g *goHost) class(f *jen.File, c *binding.Class) error {
	tn := g.typeName(c)
	embed := jen.Qual(capsulePkg, "Base")
	if b := c.Base(); b != nil {
		embed = jen.Id(g.typeName(b))
	}
	f.Commentf("%s wraps %s.", tn, c.FullName())
	f.Type().Id(tn).Struct(embed)
	f.Line()
	f.Func().Params(jen.Op("*").Id(tn)).Id(marker(tn)).Params().Block()
	f.Line()
	f.Func().Id(instanceOf(tn)).Params(jen.Id("v").Interface()).Bool().Block(
		jen.List(jen.Id("_"), jen.Id("ok")).Op(":=").Id("v").Assert(jen.Interface(jen.Id(marker(tn)).Params())),
		jen.Return(jen.Id("ok")),
	)
	f.Line()

	for _, en := range c.Enums() {
		g.enum(f, tn+exportedName(en.Name), en)
	}

	recv := jen.Id("o").Op("*").Id(tn)
	for _, m := range c.Methods() {
		switch {
		case m.Kind == binding.KindDestructor:
			f.Comment("Delete destroys the native object if the wrapper owns it.")
			f.Func().Params(recv.Clone()).Id("Delete").Params().Error().Block(
				jen.If(jen.Op("!").Id("Classes").Dot("ReleaseOwnership").Call(jen.Id("o"))).Block(
					jen.Return(jen.Nil()),
				),
				jen.List(jen.Id("_"), jen.Err()).Op(":=").Id("call").Call(jen.Lit(m.EntryName()), jen.False(), jen.Id("o")),
				jen.Return(jen.Err()),
			)
		case m.HasReceiver():
			name := g.memberName(m.Name)
			f.Commentf("%s calls %s.", name, m.FullName())
			f.Func().Params(recv.Clone()).Id(name).Params(jen.Id("args").Op("...").Interface()).
				Params(jen.Interface(), jen.Error()).
				Block(g.forward(m, jen.Id("o"))...)
		default:
			name := g.staticName(c, m.Name)
			f.Commentf("%s calls %s.", name, m.FullName())
			f.Func().Id(name).Params(jen.Id("args").Op("...").Interface()).
				Params(jen.Interface(), jen.Error()).
				Block(g.forward(m, nil)...)
		}
		f.Line()
	}

	for _, h := range c.Hooks() {
		if err := g.hook(f, c, h); err != nil {
			return err
		}
		f.Line()
	}
	return nil
}

// marker is the method every wrapper of a class and its derived classes
// implements, used for instance checks in hooks.
func marker(typeName string) string {
	return "is" + typeName
}

func instanceOf(typeName string) string {
	return "instanceOf" + exportedName(typeName)
}

func (g *goHost) forward(m *binding.Method, recv jen.Code) []jen.Code {
	var stmts []jen.Code
	var cases []jen.Code
	for _, sig := range m.Signatures {
		owned := binding.OwnedArgs(sig)
		if len(owned) == 0 {
			continue
		}
		var body []jen.Code
		for _, i := range owned {
			body = append(body, jen.Id("Classes").Dot("ReleaseOwnership").Call(jen.Id("args").Index(jen.Lit(i))))
		}
		cases = append(cases, jen.Case(jen.Lit(len(sig.Args))).Block(body...))
	}
	if len(cases) > 0 {
		stmts = append(stmts, jen.Switch(jen.Len(jen.Id("args"))).Block(cases...))
	}

	args := jen.Id("args").Op("...")
	if recv != nil {
		args = jen.Append(jen.Index().Interface().Values(recv), jen.Id("args").Op("...")).Op("...")
	}
	owned := m.ReturnsOwned() && !m.Fallible()
	stmts = append(stmts, jen.Return(jen.Id("call").Call(jen.Lit(m.EntryName()), jen.Lit(owned), args)))
	return stmts
}

func (g *goHost) hook(f *jen.File, c *binding.Class, h binding.Hook) error {
	subject := c.FullName() + "::" + h.HookName()
	tn := g.typeName(c)

	var body []jen.Code
	switch hk := h.(type) {
	case *binding.TemplateHook:
		terminated := false
		for _, br := range hk.Branches {
			target, _ := c.Method(br.Target)
			if target.HasReceiver() && hk.Static {
				return berrors.Emission(subject, "static hook cannot forward to instance method %s", br.Target)
			}
			ret := jen.Return(g.hookCall(c, target, br))
			cond := g.condition(br)
			if cond == nil {
				body = append(body, ret)
				terminated = true
				break
			}
			body = append(body, jen.If(cond).Block(ret))
		}
		if !terminated {
			body = append(body, jen.Return(jen.Nil(), jen.Qual("fmt", "Errorf").Call(
				jen.Lit(fmt.Sprintf("%s: no matching call for %%d arguments", subject)), jen.Len(jen.Id("args")))))
		}

	case *binding.SnippetHook:
		recv := jen.Nil()
		if !hk.Static {
			recv = jen.Id("o")
		}
		body = append(body, jen.Return(jen.Id("snippet").Call(jen.Lit(hk.SnippetID), recv, jen.Id("args"))))

	default:
		return berrors.Emission(subject, "unhandled hook %T", h)
	}

	params := []jen.Code{jen.Id("args").Op("...").Interface()}
	results := []jen.Code{jen.Interface(), jen.Error()}
	if h.IsStatic() {
		name := g.staticName(c, h.HookName())
		f.Commentf("%s dispatches %s.", name, subject)
		f.Func().Id(name).Params(params...).Params(results...).Block(body...)
		return nil
	}
	name := g.memberName(h.HookName())
	f.Commentf("%s dispatches %s.", name, subject)
	f.Func().Params(jen.Id("o").Op("*").Id(tn)).Id(name).Params(params...).Params(results...).Block(body...)
	return nil
}

// condition returns the guard of a branch, or nil when it always holds.
func (g *goHost) condition(br binding.HookBranch) *jen.Statement {
	var cond *jen.Statement
	switch c := br.When.(type) {
	case binding.NoArgs:
		cond = jen.Len(jen.Id("args")).Op("==").Lit(0)
	case binding.ArgIsInstance:
		cond = jen.Len(jen.Id("args")).Op(">").Lit(c.Index).Op("&&").
			Id(instanceOf(g.typeName(c.Class))).Call(jen.Id("args").Index(jen.Lit(c.Index)))
	}
	if n := len(br.Transform); n > 0 {
		need := jen.Len(jen.Id("args")).Op(">=").Lit(n)
		if cond == nil {
			return need
		}
		return cond.Op("&&").Add(need)
	}
	return cond
}

func (g *goHost) hookCall(c *binding.Class, target *binding.Method, br binding.HookBranch) jen.Code {
	args := jen.Id("args").Op("...")
	if n := len(br.Transform); n > 0 {
		items := make([]jen.Code, n)
		for i, t := range br.Transform {
			item := jen.Id("args").Index(jen.Lit(i))
			if t == binding.StrList {
				item = jen.Id("strList").Call(jen.Id("args").Index(jen.Lit(i)))
			}
			items[i] = item
		}
		args = jen.Append(jen.Index().Interface().Values(items...), jen.Id("args").Index(jen.Lit(n), jen.Empty()).Op("...")).Op("...")
	}
	if target.HasReceiver() {
		return jen.Id("o").Dot(g.memberName(target.Name)).Call(args)
	}
	return jen.Id(g.staticName(c, target.Name)).Call(args)
}
