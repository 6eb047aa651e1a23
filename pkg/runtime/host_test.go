package runtime

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/capsulegen/pkg/capsule"
	berrors "github.com/chazu/capsulegen/pkg/errors"
)

func TestPointEndToEnd(t *testing.T) {
	f := newFixture(t)

	p, err := f.host.Construct(f.point, 1.0, 2.0)
	if err != nil {
		t.Fatalf("Construct() error = %v", err)
	}
	w, ok := p.(capsule.Wrapper)
	if !ok {
		t.Fatalf("Construct() = %T, want wrapper", p)
	}
	if !w.Capsule().Owned() {
		t.Error("constructed object is not owned by the host")
	}

	x, err := f.host.Invoke(p, "getX")
	if err != nil {
		t.Fatalf("getX() error = %v", err)
	}
	if x != 1.0 {
		t.Errorf("getX() = %v, want 1.0", x)
	}
}

func TestHostEnumRoundTrip(t *testing.T) {
	f := newFixture(t)
	s, err := f.host.Construct(f.shape)
	must(t, err)

	for _, v := range f.host.EnumValues(f.kind) {
		if _, err := f.host.Invoke(s, "setKind", v); err != nil {
			t.Fatalf("setKind(%q) error = %v", v, err)
		}
		got, err := f.host.Invoke(s, "getKind")
		must(t, err)
		if got != v {
			t.Errorf("getKind() = %v, want %q", got, v)
		}
	}

	if _, err := f.host.Invoke(s, "setKind", "Triangle"); !errors.Is(err, berrors.ErrInvalidEnumValue) {
		t.Errorf("setKind(Triangle) error = %v", err)
	}
	if _, err := f.host.Invoke(s, "badKind"); !errors.Is(err, berrors.ErrInvalidEnumValue) {
		t.Errorf("badKind() error = %v", err)
	}
}

func TestOwnershipReleasedOnce(t *testing.T) {
	f := newFixture(t)
	c, err := f.host.Construct(f.canvas)
	must(t, err)
	p, err := f.host.Construct(f.point, 1.0, 1.0)
	must(t, err)

	if _, err := f.host.Invoke(c, "add", p); err != nil {
		t.Fatalf("add() error = %v", err)
	}
	if p.(capsule.Wrapper).Capsule().Owned() {
		t.Fatal("point still owned after transfer")
	}

	deleted, err := f.host.Delete(p)
	must(t, err)
	if deleted {
		t.Error("Delete() ran the destructor of a transferred object")
	}
	if n := len(f.deleted); n != 0 {
		t.Errorf("destructor calls = %d, want 0", n)
	}

	size, err := f.host.Invoke(c, "size")
	must(t, err)
	if size != int64(1) {
		t.Errorf("size() = %v, want 1", size)
	}

	deleted, err = f.host.Delete(c)
	must(t, err)
	if !deleted {
		t.Error("Delete() of an owned object did not run the destructor")
	}
	deleted, err = f.host.Delete(c)
	must(t, err)
	if deleted {
		t.Error("second Delete() ran the destructor again")
	}
	native := c.(capsule.Wrapper).Capsule().Ptr
	if f.deleted[native] != 1 {
		t.Errorf("destructor ran %d times, want 1", f.deleted[native])
	}
}

func TestOwnershipReleasedOnlyForSuppliedArguments(t *testing.T) {
	f := newFixture(t)
	c, err := f.host.Construct(f.canvas)
	must(t, err)
	p, err := f.host.Construct(f.point, 1.0, 1.0)
	must(t, err)

	if _, err := f.host.Invoke(c, "add"); !errors.Is(err, berrors.ErrArity) {
		t.Fatalf("add() error = %v, want ArityError", err)
	}
	if !p.(capsule.Wrapper).Capsule().Owned() {
		t.Error("an object not passed to the call lost ownership")
	}
}

func TestRequireOnlyCallForms(t *testing.T) {
	f := newFixture(t)

	for n := 1; n <= 3; n++ {
		args := make([]any, n)
		for i := range args {
			args[i] = i + 1
		}
		s, err := f.host.Construct(f.segment, args...)
		if err != nil {
			t.Fatalf("new with %d arguments error = %v", n, err)
		}
		got, err := f.host.Invoke(s, "getLen")
		must(t, err)
		if got != int64(n) {
			t.Errorf("new with %d arguments called the %v-argument constructor", n, got)
		}
	}

	if _, err := f.host.Construct(f.segment); !errors.Is(err, berrors.ErrArity) {
		t.Errorf("new() error = %v, want ArityError", err)
	}
}

func TestTemplateHooks(t *testing.T) {
	f := newFixture(t)
	p, err := f.host.Construct(f.point, 1.0, 1.0)
	must(t, err)

	tests := []struct {
		name string
		args []any
		want string
	}{
		{"name only", []any{"prog"}, "empty:prog"},
		{"with module", []any{"prog", p}, "with:prog"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := f.host.Construct(f.linker, tt.args...)
			if err != nil {
				t.Fatalf("new() error = %v", err)
			}
			got, err := f.host.Invoke(l, "getName")
			must(t, err)
			if got != tt.want {
				t.Errorf("getName() = %v, want %q", got, tt.want)
			}
		})
	}

	l, err := f.host.Construct(f.linker, "prog")
	must(t, err)
	n, err := f.host.Invoke(l, "setTags", []any{"sse2", 3})
	if err != nil {
		t.Fatalf("setTags() error = %v", err)
	}
	if n != 2 {
		t.Errorf("setTags() = %v, want 2", n)
	}
	if _, err := f.host.Invoke(l, "setTags", "sse2"); !errors.Is(err, berrors.ErrMarshal) {
		t.Errorf("setTags(non-list) error = %v", err)
	}
	_, err = f.host.Invoke(l, "setTags")
	if !errors.Is(err, berrors.ErrMarshal) || errors.Is(err, berrors.ErrArity) {
		t.Errorf("setTags() error = %v, want a marshal error from the hook", err)
	}
	if err != nil && !strings.Contains(err.Error(), "no hook branch accepts 0 arguments") {
		t.Errorf("setTags() error = %v", err)
	}
}

func TestSnippetHook(t *testing.T) {
	f := newFixture(t)
	l, err := f.host.Construct(f.linker, "prog")
	must(t, err)

	if _, err := f.host.Invoke(l, "describe"); !errors.Is(err, berrors.ErrUnresolvedSymbol) {
		t.Errorf("describe() without snippet error = %v", err)
	}

	f.host.RegisterSnippet("linker.describe", func(h *Host, recv any, args []any) (any, error) {
		name, err := h.Invoke(recv, "getName")
		if err != nil {
			return nil, err
		}
		return "Linker(" + name.(string) + ")", nil
	})
	got, err := f.host.Invoke(l, "describe")
	must(t, err)
	if got != "Linker(empty:prog)" {
		t.Errorf("describe() = %v", got)
	}
}

func TestFallibleThroughHost(t *testing.T) {
	f := newFixture(t)
	l, err := f.host.Construct(f.linker, "prog")
	must(t, err)

	got, err := f.host.Invoke(l, "link", nil)
	must(t, err)
	if diff := cmp.Diff(Outcome{Message: "no module"}, got); diff != "" {
		t.Errorf("link(nil) mismatch (-want +got):\n%s", diff)
	}
}

func TestCallFunctionAndStatic(t *testing.T) {
	f := newFixture(t)

	got, err := f.host.CallFunction(f.ns, "make")
	must(t, err)
	w, ok := got.(capsule.Wrapper)
	if !ok {
		t.Fatalf("make() = %T", got)
	}
	if w.Capsule().Owned() {
		t.Error("plain pointer results are borrowed")
	}

	desc, err := f.host.CallFunction(f.ns, "describe", got)
	if err != nil {
		t.Fatalf("describe(D) error = %v", err)
	}
	if desc != "ok" {
		t.Errorf("describe(D) = %v", desc)
	}

	if _, err := f.host.CallFunction(f.ns, "missing"); !errors.Is(err, berrors.ErrUnresolvedSymbol) {
		t.Errorf("missing function error = %v", err)
	}
	if _, err := f.host.CallStatic(f.point, "getX"); !errors.Is(err, berrors.ErrMarshal) {
		t.Errorf("instance method without object error = %v", err)
	}
	if _, err := f.host.Invoke(42, "getX"); !errors.Is(err, berrors.ErrMarshal) {
		t.Errorf("Invoke on a plain value error = %v", err)
	}
}

type pointWrapper struct {
	capsule.Base
}

func TestRegisteredWrappers(t *testing.T) {
	f := newFixture(t)
	f.host.Classes().Register("geo::Point", func(c *capsule.Capsule) capsule.Wrapper {
		w := &pointWrapper{}
		w.Attach(c)
		return w
	})

	p, err := f.host.Construct(f.point, 4.0, 5.0)
	must(t, err)
	if _, ok := p.(*pointWrapper); !ok {
		t.Fatalf("Construct() = %T, want *pointWrapper", p)
	}
	x, err := f.host.Invoke(p, "getX")
	must(t, err)
	if x != 4.0 {
		t.Errorf("getX() = %v", x)
	}
}
