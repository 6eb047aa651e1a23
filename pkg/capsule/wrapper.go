package capsule

import (
	"reflect"
	"sync"
)

// Wrapper is a host value backed by a capsule.
type Wrapper interface {
	Capsule() *Capsule
}

// Base is embedded by generated wrapper types; it holds the token.
type Base struct {
	capsule *Capsule
}

// Capsule returns the token backing the wrapper.
func (b *Base) Capsule() *Capsule { return b.capsule }

// Attach binds the wrapper to c.
func (b *Base) Attach(c *Capsule) { b.capsule = c }

// Object wraps tokens whose class has no registered wrapper type.
type Object struct {
	Base
}

// Factory builds the wrapper value for a token.
type Factory func(*Capsule) Wrapper

// Module is the entry-point table a host wrapper forwards to. Entries are
// named by their mangled native entry name.
type Module interface {
	Call(entry string, args ...any) (any, error)
}

// ClassRegistry maps native class names to wrapper factories.
type ClassRegistry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewClassRegistry creates an empty registry.
func NewClassRegistry() *ClassRegistry {
	return &ClassRegistry{factories: make(map[string]Factory)}
}

// Register associates className with a factory. A later registration for
// the same name replaces the earlier one.
func (r *ClassRegistry) Register(className string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[className] = f
}

func (r *ClassRegistry) factory(c *Capsule) Factory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.factories[c.ClassName]; ok {
		return f
	}
	if f, ok := r.factories[c.Tag]; ok {
		return f
	}
	return func(c *Capsule) Wrapper {
		o := &Object{}
		o.Attach(c)
		return o
	}
}

// Wrap turns tokens returned by the native side into wrapper values. When
// owned is set the resulting wrappers take ownership of their objects.
// Lists are wrapped element by element; other values pass through.
func (r *ClassRegistry) Wrap(v any, owned bool) any {
	switch x := v.(type) {
	case nil:
		return nil
	case *Capsule:
		if x == nil {
			return nil
		}
		if owned {
			x.Adopt()
		}
		return r.factory(x)(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = r.Wrap(e, owned)
		}
		return out
	}
	return v
}

// Unwrap extracts the token from a wrapper. Lists are unwrapped element by
// element; nil wrappers become nil and other values pass through.
func (r *ClassRegistry) Unwrap(v any) any {
	if isNil(v) {
		return nil
	}
	switch x := v.(type) {
	case Wrapper:
		return x.Capsule()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = r.Unwrap(e)
		}
		return out
	}
	return v
}

// UnwrapMany unwraps every argument of a call.
func (r *ClassRegistry) UnwrapMany(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = r.Unwrap(a)
	}
	return out
}

// ReleaseOwnership marks the object behind v as handed to native code. It
// reports whether v owned its object before the call.
func (r *ClassRegistry) ReleaseOwnership(v any) bool {
	if isNil(v) {
		return false
	}
	switch x := v.(type) {
	case Wrapper:
		if c := x.Capsule(); c != nil {
			return c.Release()
		}
	case *Capsule:
		return x.Release()
	}
	return false
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func:
		return rv.IsNil()
	}
	return false
}
