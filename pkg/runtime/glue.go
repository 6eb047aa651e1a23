// Package runtime executes the marshaling contracts of a binding registry
// in-process. Glue plays the part of the generated native module and Host
// the part of the generated host wrappers, with native symbols supplied by
// a Library.
package runtime

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/chazu/capsulegen/pkg/binding"
	berrors "github.com/chazu/capsulegen/pkg/errors"
)

// Outcome is the result of a fallible native operation: marshaling
// succeeded, and OK reports whether the operation itself did.
type Outcome struct {
	OK      bool
	Message string
}

// TableEntry maps a declared member name to its entry point.
type TableEntry struct {
	Name  string
	Entry string
}

type entry struct {
	name   string
	method *binding.Method
	symbol string
	fn     NativeFunc
}

// Glue is the compiled native side of a registry: one entry point per
// method, dispatched on the number of supplied arguments.
type Glue struct {
	marshaler
	entries map[string]*entry
	order   []string
	tables  map[binding.Owner][]TableEntry
}

// Option configures Compile.
type Option func(*options)

type options struct {
	conv       Conversions
	unresolved bool
}

// WithConversions replaces the cast primitives.
func WithConversions(c Conversions) Option {
	return func(o *options) { o.conv = c }
}

// AllowUnresolved defers missing symbols to call time instead of failing
// compilation.
func AllowUnresolved() Option {
	return func(o *options) { o.unresolved = true }
}

// Compile validates reg and binds every method to its native symbol in lib.
func Compile(reg *binding.Registry, lib Library, opts ...Option) (*Glue, error) {
	o := options{conv: DefaultConversions()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	g := &Glue{
		marshaler: marshaler{conv: o.conv},
		entries:   make(map[string]*entry),
		tables:    make(map[binding.Owner][]TableEntry),
	}
	for _, ns := range reg.Namespaces() {
		for _, c := range ns.Classes() {
			for _, m := range c.Methods() {
				if err := g.add(c, m, lib, o.unresolved); err != nil {
					return nil, err
				}
			}
		}
		for _, fn := range ns.Functions() {
			if err := g.add(ns, fn, lib, o.unresolved); err != nil {
				return nil, err
			}
		}
	}

	Logger().Debug("compiled glue", zap.Int("entries", len(g.order)))
	return g, nil
}

func (g *Glue) add(owner binding.Owner, m *binding.Method, lib Library, unresolved bool) error {
	name := m.EntryName()
	if prev, dup := g.entries[name]; dup {
		return berrors.Emission(m.FullName(), "entry point %s collides with %s", name, prev.method.FullName())
	}
	e := &entry{name: name, method: m, symbol: m.Symbol()}
	fn, ok := lib.Lookup(e.symbol)
	if !ok && !unresolved {
		return berrors.UnresolvedSymbol(e.symbol)
	}
	e.fn = fn
	g.entries[name] = e
	g.order = append(g.order, name)
	g.tables[owner] = append(g.tables[owner], TableEntry{Name: m.Name, Entry: name})
	return nil
}

// Entries returns every entry point name in declaration order.
func (g *Glue) Entries() []string { return g.order }

// Table returns the method table of a class or the function table of a
// namespace.
func (g *Glue) Table(owner binding.Owner) []TableEntry { return g.tables[owner] }

// Call invokes an entry point with host values: tokens for objects, value
// names for enums and host scalars for casts.
func (g *Glue) Call(name string, args ...any) (any, error) {
	e, ok := g.entries[name]
	if !ok {
		return nil, berrors.UnresolvedSymbol(name)
	}
	return g.invoke(e, args)
}

func (g *Glue) invoke(e *entry, args []any) (any, error) {
	m := e.method
	sig, ok := resolve(m, len(args))
	if !ok {
		return nil, berrors.Arity(m.FullName(), len(args))
	}

	native := make([]any, 0, len(args)+1)
	rest := args
	if m.HasReceiver() {
		cls, _ := m.Class()
		recv, err := g.unwrap(binding.Ref(cls), args[0], m.FullName()+" receiver")
		if err != nil {
			return nil, err
		}
		native = append(native, recv)
		rest = args[1:]
	}
	for i, t := range sig.Args {
		v, err := g.unwrap(t, rest[i], fmt.Sprintf("%s argument %d", m.FullName(), i))
		if err != nil {
			return nil, err
		}
		native = append(native, v)
	}

	if e.fn == nil {
		return nil, berrors.UnresolvedSymbol(e.symbol)
	}

	if m.Fallible() {
		var errmsg string
		native = append(native, &errmsg)
		res, err := e.fn(native)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.symbol, err)
		}
		failed, ok := res.(bool)
		if !ok {
			return nil, berrors.Marshal(berrors.PhaseWrap, m.FullName(), "fallible operation returned %T, want bool", res)
		}
		return Outcome{OK: !failed, Message: errmsg}, nil
	}

	res, err := e.fn(native)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.symbol, err)
	}
	return g.wrap(sig.Return, res, m.FullName())
}

// resolve picks the signature whose argument count, receiver included,
// equals n.
func resolve(m *binding.Method, n int) (binding.Signature, bool) {
	for _, sig := range m.Signatures {
		if m.ExpectedArgs(sig) == n {
			return sig, true
		}
	}
	return binding.Signature{}, false
}
