package runtime

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/capsulegen/pkg/binding"
	"github.com/chazu/capsulegen/pkg/capsule"
	berrors "github.com/chazu/capsulegen/pkg/errors"
)

func TestEnumRoundTrip(t *testing.T) {
	f := newFixture(t)

	for i, v := range f.kind.Values {
		t.Run(v, func(t *testing.T) {
			native, err := f.glue.unwrap(f.kind, v, "test")
			if err != nil {
				t.Fatalf("unwrap(%q) error = %v", v, err)
			}
			if native != i {
				t.Errorf("unwrap(%q) = %v, want %d", v, native, i)
			}
			host, err := f.glue.wrap(f.kind, native, "test")
			if err != nil {
				t.Fatalf("wrap(%v) error = %v", native, err)
			}
			if host != v {
				t.Errorf("wrap(unwrap(%q)) = %v", v, host)
			}
		})
	}
}

func TestUnknownEnumValue(t *testing.T) {
	f := newFixture(t)

	_, err := f.glue.unwrap(f.kind, "Triangle", "test")
	if !errors.Is(err, berrors.ErrInvalidEnumValue) {
		t.Fatalf("unwrap(Triangle) error = %v, want InvalidEnumValue", err)
	}
	if !errors.Is(err, berrors.ErrMarshal) {
		t.Error("InvalidEnumValue should be a marshal error")
	}

	if _, err := f.glue.wrap(f.kind, 7, "test"); !errors.Is(err, berrors.ErrInvalidEnumValue) {
		t.Errorf("wrap(7) error = %v, want InvalidEnumValue", err)
	}
	if _, err := f.glue.unwrap(f.kind, 1, "test"); !errors.Is(err, berrors.ErrMarshal) {
		t.Errorf("unwrap(1) error = %v, want marshal error", err)
	}
}

func TestOverloadDispatch(t *testing.T) {
	f := newFixture(t)
	p, err := f.glue.Call("geo_Point_new", 1.0, 2.0)
	must(t, err)

	tests := []struct {
		args []any
		want int64
	}{
		{[]any{1.0}, 1},
		{[]any{1.0, 2.0}, 2},
		{[]any{1.0, 2.0, 3.0}, 3},
	}
	for _, tt := range tests {
		got, err := f.glue.Call("geo_Point_scale", append([]any{p}, tt.args...)...)
		if err != nil {
			t.Fatalf("scale%v error = %v", tt.args, err)
		}
		if got != tt.want {
			t.Errorf("scale%v selected arity %v, want %d", tt.args, got, tt.want)
		}
	}

	for _, n := range []int{0, 4} {
		args := []any{p}
		for i := 0; i < n; i++ {
			args = append(args, 1.0)
		}
		_, err := f.glue.Call("geo_Point_scale", args...)
		if !errors.Is(err, berrors.ErrArity) {
			t.Errorf("scale with %d arguments error = %v, want ArityError", n, err)
		}
		if !errors.Is(err, berrors.ErrMarshal) {
			t.Errorf("ArityError should be a marshal error")
		}
	}
}

func TestCapsuleTagCheck(t *testing.T) {
	f := newFixture(t)

	asB := capsule.New(&struct{}{}, f.b.CapsuleName(), f.b.FullName())
	got, err := f.glue.Call("geo_describe", asB)
	if err != nil {
		t.Fatalf("describe(B token) error = %v", err)
	}
	if got != "ok" {
		t.Errorf("describe(B token) = %v", got)
	}

	asC := capsule.New(&struct{}{}, f.c.CapsuleName(), f.c.FullName())
	_, err = f.glue.Call("geo_describe", asC)
	if !errors.Is(err, berrors.ErrTypeTagMismatch) {
		t.Fatalf("describe(C token) error = %v, want TypeTagMismatch", err)
	}

	got, err = f.glue.Call("geo_describe", nil)
	if err != nil || got != "nothing" {
		t.Errorf("describe(nil) = %v, %v; pointers accept no object", got, err)
	}
}

func TestDowncastOnWrap(t *testing.T) {
	f := newFixture(t)

	got, err := f.glue.Call("geo_make")
	must(t, err)
	c, ok := got.(*capsule.Capsule)
	if !ok {
		t.Fatalf("make() = %T, want token", got)
	}
	if c.ClassName != "geo::D" || c.Tag != "geo::B" {
		t.Errorf("token = %s/%s, want geo::D under geo::B", c.ClassName, c.Tag)
	}
}

func TestReceiverChecks(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		recv any
		want error
	}{
		{"no object", nil, berrors.ErrMarshal},
		{"not a token", 42, berrors.ErrMarshal},
		{"other class", capsule.New(&shape{}, "geo::Shape", "geo::Shape"), berrors.ErrTypeTagMismatch},
		{"null pointer", capsule.New(nil, "geo::Point", "geo::Point"), berrors.ErrMarshal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.glue.Call("geo_Point_getX", tt.recv); !errors.Is(err, tt.want) {
				t.Errorf("getX error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCastArguments(t *testing.T) {
	f := newFixture(t)

	if _, err := f.glue.Call("geo_Point_new", "1.0", 2.0); !errors.Is(err, berrors.ErrMarshal) {
		t.Errorf("string for float error = %v, want marshal error", err)
	}
	p, err := f.glue.Call("geo_Point_new", 3, 2.0)
	if err != nil {
		t.Fatalf("int for float error = %v", err)
	}
	x, err := f.glue.Call("geo_Point_getX", p)
	must(t, err)
	if x != 3.0 {
		t.Errorf("getX() = %v, want 3.0", x)
	}

	if _, err := f.glue.Call("geo_Segment_new", -1); !errors.Is(err, berrors.ErrMarshal) {
		t.Errorf("negative unsigned error = %v, want marshal error", err)
	}
}

func TestFallibleOutcome(t *testing.T) {
	f := newFixture(t)
	l, err := f.glue.Call("geo_Linker__new_empty", "prog")
	must(t, err)
	p, err := f.glue.Call("geo_Point_new", 0.0, 0.0)
	must(t, err)

	got, err := f.glue.Call("geo_Linker_link", l, nil)
	must(t, err)
	if diff := cmp.Diff(Outcome{OK: false, Message: "no module"}, got); diff != "" {
		t.Errorf("link(nil) mismatch (-want +got):\n%s", diff)
	}

	got, err = f.glue.Call("geo_Linker_link", l, p)
	must(t, err)
	if diff := cmp.Diff(Outcome{OK: true}, got); diff != "" {
		t.Errorf("link(p) mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileUnresolved(t *testing.T) {
	reg := binding.NewRegistry()
	c, err := reg.Namespace("geo").DeclareClass("Point")
	must(t, err)
	b := define(t, c)
	must(t, b.AddMethod("getX", binding.NewMethod(binding.Double)))
	b.Finish()

	_, err = Compile(reg, NewSymbols())
	if !errors.Is(err, berrors.ErrUnresolvedSymbol) {
		t.Fatalf("Compile() error = %v, want unresolved symbol", err)
	}

	g, err := Compile(reg, NewSymbols(), AllowUnresolved())
	must(t, err)
	_, err = g.Call("geo_Point_getX", capsule.New(&point{}, "geo::Point", "geo::Point"))
	if !errors.Is(err, berrors.ErrUnresolvedSymbol) {
		t.Errorf("Call() error = %v, want unresolved symbol", err)
	}
	if _, err := g.Call("geo_Point_missing"); !errors.Is(err, berrors.ErrUnresolvedSymbol) {
		t.Errorf("Call(unknown entry) error = %v", err)
	}
}

func TestCompileRejectsInvalidRegistry(t *testing.T) {
	reg := binding.NewRegistry()
	_, err := reg.Namespace("geo").DeclareClass("Point")
	must(t, err)

	if _, err := Compile(reg, NewSymbols()); !errors.Is(err, berrors.ErrDeclaration) {
		t.Errorf("Compile() error = %v, want declaration error", err)
	}
}

func TestTables(t *testing.T) {
	f := newFixture(t)

	want := []TableEntry{
		{Name: "new", Entry: "geo_Point_new"},
		{Name: "delete", Entry: "geo_Point_delete"},
		{Name: "getX", Entry: "geo_Point_getX"},
		{Name: "scale", Entry: "geo_Point_scale"},
	}
	if diff := cmp.Diff(want, f.glue.Table(f.point)); diff != "" {
		t.Errorf("Table(Point) mismatch (-want +got):\n%s", diff)
	}

	wantFns := []TableEntry{
		{Name: "describe", Entry: "geo_describe"},
		{Name: "make", Entry: "geo_make"},
	}
	if diff := cmp.Diff(wantFns, f.glue.Table(f.ns)); diff != "" {
		t.Errorf("Table(geo) mismatch (-want +got):\n%s", diff)
	}
}

func TestSymbols(t *testing.T) {
	s := NewSymbols().
		Register("b", func([]any) (any, error) { return nil, nil }).
		Register("a", func([]any) (any, error) { return nil, nil })

	if diff := cmp.Diff([]string{"a", "b"}, s.List()); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}

	extra := NewSymbols().Register("c", func([]any) (any, error) { return "c", nil })
	chain := Chain{s, extra}
	if _, ok := chain.Lookup("c"); !ok {
		t.Error("Chain did not consult the second library")
	}
	if _, ok := chain.Lookup("d"); ok {
		t.Error("Chain found a missing symbol")
	}
}

func TestTagMismatchNamesTheArgument(t *testing.T) {
	f := newFixture(t)
	_, err := f.glue.Call("geo_Point_getX", capsule.New(&shape{}, "geo::Shape", "geo::Shape"))
	if !errors.Is(err, berrors.ErrTypeTagMismatch) {
		t.Fatalf("getX error = %v, want TypeTagMismatch", err)
	}
	for _, want := range []string{"geo::Point::getX receiver", `expected capsule "geo::Point", got "geo::Shape"`} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}
