package capsule

import (
	"errors"
	"testing"

	berrors "github.com/chazu/capsulegen/pkg/errors"
)

type linker struct {
	Base
}

type module struct {
	Base
}

func newRegistry() *ClassRegistry {
	r := NewClassRegistry()
	r.Register("llvm::Linker", func(c *Capsule) Wrapper {
		w := &linker{}
		w.Attach(c)
		return w
	})
	r.Register("llvm::Module", func(c *Capsule) Wrapper {
		w := &module{}
		w.Attach(c)
		return w
	})
	return r
}

func TestReleaseOnlyOnce(t *testing.T) {
	c := New(new(int), "llvm::Module", "llvm::Module")
	if c.Release() {
		t.Fatal("a borrowed token has nothing to release")
	}

	c.Adopt()
	if !c.Owned() {
		t.Fatal("Adopt() did not take ownership")
	}
	if !c.Release() {
		t.Error("first Release() = false, want true")
	}
	if c.Release() {
		t.Error("second Release() = true, want false")
	}
	if c.Owned() {
		t.Error("token still owned after release")
	}
}

func TestExpect(t *testing.T) {
	c := New(new(int), "llvm::Value", "llvm::Instruction")
	if err := c.Expect("llvm::Value"); err != nil {
		t.Errorf("Expect(matching tag) error = %v", err)
	}

	err := c.Expect("llvm::Module")
	if !errors.Is(err, berrors.ErrTypeTagMismatch) {
		t.Fatalf("Expect(other tag) error = %v, want TypeTagMismatch", err)
	}
	if !errors.Is(err, berrors.ErrMarshal) {
		t.Error("TypeTagMismatch should be a marshal error")
	}
}

func TestWrapUsesRegisteredFactory(t *testing.T) {
	r := newRegistry()

	tests := []struct {
		name  string
		class string
		tag   string
		check func(Wrapper) bool
	}{
		{"by class name", "llvm::Linker", "llvm::Linker", func(w Wrapper) bool { _, ok := w.(*linker); return ok }},
		{"by tag", "llvm::Unknown", "llvm::Module", func(w Wrapper) bool { _, ok := w.(*module); return ok }},
		{"fallback", "llvm::Unknown", "llvm::Unknown", func(w Wrapper) bool { _, ok := w.(*Object); return ok }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(new(int), tt.tag, tt.class)
			w, ok := r.Wrap(c, false).(Wrapper)
			if !ok {
				t.Fatalf("Wrap() did not return a wrapper")
			}
			if !tt.check(w) {
				t.Errorf("Wrap() = %T", w)
			}
			if w.Capsule() != c {
				t.Error("wrapper is not bound to the token")
			}
		})
	}
}

func TestWrapOwnership(t *testing.T) {
	r := newRegistry()
	owned := New(new(int), "llvm::Module", "llvm::Module")
	borrowed := New(new(int), "llvm::Module", "llvm::Module")

	r.Wrap(owned, true)
	r.Wrap(borrowed, false)

	if !owned.Owned() {
		t.Error("owned result not adopted")
	}
	if borrowed.Owned() {
		t.Error("borrowed result adopted")
	}
}

func TestWrapUnwrapLists(t *testing.T) {
	r := newRegistry()
	a := New(new(int), "llvm::Module", "llvm::Module")
	b := New(new(int), "llvm::Module", "llvm::Module")

	wrapped := r.Wrap([]any{a, nil, "x"}, false).([]any)
	if _, ok := wrapped[0].(*module); !ok {
		t.Errorf("wrapped[0] = %T", wrapped[0])
	}
	if wrapped[1] != nil || wrapped[2] != "x" {
		t.Errorf("non-token elements changed: %v", wrapped)
	}

	args := r.UnwrapMany([]any{wrapped[0], []any{r.Wrap(b, false)}, 3})
	if args[0] != a {
		t.Errorf("args[0] = %v, want token a", args[0])
	}
	if inner := args[1].([]any); inner[0] != b {
		t.Errorf("nested list not unwrapped: %v", inner)
	}
	if args[2] != 3 {
		t.Errorf("args[2] = %v", args[2])
	}
}

func TestNilWrappers(t *testing.T) {
	r := newRegistry()
	var l *linker

	if got := r.Unwrap(l); got != nil {
		t.Errorf("Unwrap(typed nil) = %v, want nil", got)
	}
	if r.ReleaseOwnership(l) {
		t.Error("ReleaseOwnership(typed nil) = true")
	}
	if got := r.Wrap((*Capsule)(nil), true); got != nil {
		t.Errorf("Wrap(nil token) = %v, want nil", got)
	}
}

func TestReleaseOwnership(t *testing.T) {
	r := newRegistry()
	c := New(new(int), "llvm::Module", "llvm::Module")
	w := r.Wrap(c, true)

	if !r.ReleaseOwnership(w) {
		t.Error("first ReleaseOwnership() = false")
	}
	if r.ReleaseOwnership(w) {
		t.Error("second ReleaseOwnership() = true")
	}
	if r.ReleaseOwnership(42) {
		t.Error("plain values have no ownership")
	}
}
