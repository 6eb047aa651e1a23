// symbols.go provides Go implementations of native symbols so declared
// bindings can be exercised without a compiled native library.

package runtime

import (
	"sort"
	"sync"
)

// NativeFunc is the native side of one call. It receives unwrapped native
// values, receiver first for instance kinds, and returns a native value.
// Fallible operations receive a trailing *string for the error message and
// return true on failure.
type NativeFunc func(args []any) (any, error)

// Library resolves native symbols such as "geo::Point::getX",
// "new geo::Point" or a custom function name.
type Library interface {
	Lookup(symbol string) (NativeFunc, bool)
}

// Classed is implemented by native values that know their most-derived
// class. Wrapping uses it to resolve downcastable classes.
type Classed interface {
	NativeClass() string
}

// Symbols maps native symbols to Go implementations.
type Symbols struct {
	funcs map[string]NativeFunc
	mu    sync.RWMutex
}

// NewSymbols creates an empty symbol table.
func NewSymbols() *Symbols {
	return &Symbols{
		funcs: make(map[string]NativeFunc),
	}
}

// Register adds the implementation of symbol, replacing any earlier one.
func (s *Symbols) Register(symbol string, fn NativeFunc) *Symbols {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.funcs[symbol] = fn
	return s
}

// Lookup finds the implementation of symbol.
func (s *Symbols) Lookup(symbol string) (NativeFunc, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn, ok := s.funcs[symbol]
	return fn, ok
}

// List returns all registered symbols, sorted.
func (s *Symbols) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.funcs))
	for k := range s.funcs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Chain resolves a symbol from the first library that has it.
type Chain []Library

// Lookup implements Library.
func (c Chain) Lookup(symbol string) (NativeFunc, bool) {
	for _, lib := range c {
		if fn, ok := lib.Lookup(symbol); ok {
			return fn, true
		}
	}
	return nil, false
}
