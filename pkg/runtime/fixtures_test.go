package runtime

import (
	"fmt"
	"testing"

	"github.com/chazu/capsulegen/pkg/binding"
)

type point struct{ x, y float64 }

type shape struct{ kind int }

type canvas struct{ items []*point }

type segment struct{ n int }

type linker struct {
	name   string
	module *point
}

type derived struct{}

func (derived) NativeClass() string { return "geo::D" }

// fixture is a small geometry binding with a Go implementation of every
// native symbol it declares.
type fixture struct {
	reg *binding.Registry
	ns  *binding.Namespace

	point, shape, canvas, segment, linker *binding.Class
	b, d, c                               *binding.Class
	kind                                  *binding.Enum

	lib     *Symbols
	glue    *Glue
	host    *Host
	deleted map[any]int
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func declare(t *testing.T, ns *binding.Namespace, name string, bases ...*binding.Class) *binding.Class {
	t.Helper()
	c, err := ns.DeclareClass(name, bases...)
	must(t, err)
	return c
}

func define(t *testing.T, c *binding.Class) *binding.ClassBuilder {
	t.Helper()
	b, err := c.Define()
	must(t, err)
	return b
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{reg: binding.NewRegistry(), deleted: make(map[any]int)}
	f.ns = f.reg.Namespace("geo")

	f.point = declare(t, f.ns, "Point")
	f.shape = declare(t, f.ns, "Shape")
	f.canvas = declare(t, f.ns, "Canvas")
	f.segment = declare(t, f.ns, "Segment")
	f.linker = declare(t, f.ns, "Linker")
	f.b = declare(t, f.ns, "B")
	f.d = declare(t, f.ns, "D", f.b)
	f.c = declare(t, f.ns, "C")

	double := binding.CastTo(binding.HostFloat, binding.Double)
	str := binding.CastTo(binding.HostStr, binding.StdString)
	count := binding.CastTo(binding.HostInt, binding.LongLong)
	unsigned := binding.CastTo(binding.HostInt, binding.Unsigned)

	pb := define(t, f.point)
	must(t, pb.AddMethod("new", binding.NewConstructor(double, double)))
	must(t, pb.AddMethod("delete", binding.NewDestructor()))
	must(t, pb.AddMethod("getX", binding.NewMethod(double)))
	scale := binding.NewMethod(count, double)
	must(t, scale.AddSignature(count, double, double))
	must(t, scale.AddSignature(count, double, double, double))
	must(t, pb.AddMethod("scale", scale))
	pb.Finish()

	sb := define(t, f.shape)
	kind, err := sb.AddEnum("Kind", "Circle", "Square", "None")
	must(t, err)
	f.kind = kind
	must(t, sb.AddMethod("new", binding.NewConstructor()))
	must(t, sb.AddMethod("getKind", binding.NewMethod(kind)))
	must(t, sb.AddMethod("setKind", binding.NewMethod(binding.Void, kind)))
	must(t, sb.AddMethod("badKind", binding.NewMethod(kind)))
	sb.Finish()

	cb := define(t, f.canvas)
	must(t, cb.AddMethod("new", binding.NewConstructor()))
	must(t, cb.AddMethod("delete", binding.NewDestructor()))
	must(t, cb.AddMethod("add", binding.NewMethod(binding.Void, binding.OwnedPtr(f.point))))
	must(t, cb.AddMethod("size", binding.NewMethod(count)))
	cb.Finish()

	segb := define(t, f.segment)
	ctor := binding.NewConstructor(unsigned, unsigned, unsigned)
	must(t, ctor.RequireOnly(1))
	must(t, segb.AddMethod("new", ctor))
	must(t, segb.AddMethod("getLen", binding.NewMethod(unsigned)))
	segb.Finish()

	lb := define(t, f.linker)
	must(t, lb.AddMethod("_new_empty", binding.NewConstructor(str)))
	must(t, lb.AddMethod("_new_with", binding.NewConstructor(str, binding.Ptr(f.point))))
	must(t, lb.AddMethod("getName", binding.NewMethod(str)))
	must(t, lb.AddMethod("link", binding.NewMethod(binding.Bool, binding.Ptr(f.point)).SetFallible()))
	must(t, lb.AddMethod("_setTags", binding.NewCustomMethod("Linker_setTags", binding.HostObject, binding.HostObject)))
	must(t, lb.AddCustomHook(&binding.TemplateHook{
		Name:   "new",
		Static: true,
		Branches: []binding.HookBranch{
			{When: binding.ArgIsInstance{Index: 1, Class: f.point}, Target: "_new_with"},
			{When: binding.Always{}, Target: "_new_empty"},
		},
	}))
	must(t, lb.AddCustomHook(&binding.TemplateHook{
		Name: "setTags",
		Branches: []binding.HookBranch{
			{When: binding.Always{}, Target: "_setTags", Transform: []binding.ArgTransform{binding.StrList}},
		},
	}))
	must(t, lb.AddCustomHook(&binding.SnippetHook{Name: "describe", SnippetID: "linker.describe"}))
	lb.Finish()

	bb := define(t, f.b)
	bb.Downcast(f.d)
	bb.Finish()
	define(t, f.d).Finish()
	define(t, f.c).Finish()

	_, err = f.ns.Function("describe", str, binding.Ptr(f.d))
	must(t, err)
	_, err = f.ns.Function("make", binding.Ptr(f.b))
	must(t, err)

	f.lib = f.symbols()
	glue, err := Compile(f.reg, f.lib)
	must(t, err)
	f.glue = glue
	f.host = NewHost(f.reg, glue, nil)
	return f
}

func (f *fixture) symbols() *Symbols {
	return NewSymbols().
		Register("new geo::Point", func(args []any) (any, error) {
			return &point{x: args[0].(float64), y: args[1].(float64)}, nil
		}).
		Register("delete geo::Point", func(args []any) (any, error) {
			f.deleted[args[0]]++
			return nil, nil
		}).
		Register("geo::Point::getX", func(args []any) (any, error) {
			return args[0].(*point).x, nil
		}).
		Register("geo::Point::scale", func(args []any) (any, error) {
			return len(args) - 1, nil
		}).
		Register("new geo::Shape", func(args []any) (any, error) {
			return &shape{}, nil
		}).
		Register("geo::Shape::getKind", func(args []any) (any, error) {
			return args[0].(*shape).kind, nil
		}).
		Register("geo::Shape::setKind", func(args []any) (any, error) {
			args[0].(*shape).kind = args[1].(int)
			return nil, nil
		}).
		Register("geo::Shape::badKind", func(args []any) (any, error) {
			return 7, nil
		}).
		Register("new geo::Canvas", func(args []any) (any, error) {
			return &canvas{}, nil
		}).
		Register("delete geo::Canvas", func(args []any) (any, error) {
			f.deleted[args[0]]++
			return nil, nil
		}).
		Register("geo::Canvas::add", func(args []any) (any, error) {
			c := args[0].(*canvas)
			c.items = append(c.items, args[1].(*point))
			return nil, nil
		}).
		Register("geo::Canvas::size", func(args []any) (any, error) {
			return len(args[0].(*canvas).items), nil
		}).
		Register("new geo::Segment", func(args []any) (any, error) {
			return &segment{n: len(args)}, nil
		}).
		Register("geo::Segment::getLen", func(args []any) (any, error) {
			return uint32(args[0].(*segment).n), nil
		}).
		Register("new geo::Linker", func(args []any) (any, error) {
			l := &linker{name: args[0].(string)}
			if len(args) > 1 && args[1] != nil {
				l.module = args[1].(*point)
			}
			return l, nil
		}).
		Register("geo::Linker::getName", func(args []any) (any, error) {
			l := args[0].(*linker)
			if l.module != nil {
				return "with:" + l.name, nil
			}
			return "empty:" + l.name, nil
		}).
		Register("geo::Linker::link", func(args []any) (any, error) {
			errmsg := args[2].(*string)
			if args[1] == nil {
				*errmsg = "no module"
				return true, nil
			}
			return false, nil
		}).
		Register("Linker_setTags", func(args []any) (any, error) {
			tags, ok := args[1].([]string)
			if !ok {
				return nil, fmt.Errorf("tags are %T", args[1])
			}
			return len(tags), nil
		}).
		Register("geo::describe", func(args []any) (any, error) {
			if args[0] == nil {
				return "nothing", nil
			}
			return "ok", nil
		}).
		Register("geo::make", func(args []any) (any, error) {
			return derived{}, nil
		})
}
