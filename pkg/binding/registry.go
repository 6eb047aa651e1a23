package binding

import (
	"strings"

	berrors "github.com/chazu/capsulegen/pkg/errors"
)

// Registry holds every namespace of one generation run. It is built by
// sequential declaration calls and read-only while emitting.
type Registry struct {
	namespaces []*Namespace
	byName     map[string]*Namespace
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Namespace)}
}

// Namespace returns the namespace called name, creating it on first use.
func (r *Registry) Namespace(name string) *Namespace {
	if ns, ok := r.byName[name]; ok {
		return ns
	}
	ns := &Namespace{Name: name, classByName: make(map[string]*Class)}
	r.namespaces = append(r.namespaces, ns)
	r.byName[name] = ns
	return ns
}

// Lookup finds an existing namespace.
func (r *Registry) Lookup(name string) (*Namespace, bool) {
	ns, ok := r.byName[name]
	return ns, ok
}

// Namespaces returns namespaces in registration order.
func (r *Registry) Namespaces() []*Namespace { return r.namespaces }

// FindClass resolves a "ns::Class" name.
func (r *Registry) FindClass(qualified string) (*Class, bool) {
	i := strings.LastIndex(qualified, "::")
	if i < 0 {
		return nil, false
	}
	ns, ok := r.byName[qualified[:i]]
	if !ok {
		return nil, false
	}
	return ns.Class(qualified[i+2:])
}

// Classes returns every class of every namespace in registration order.
func (r *Registry) Classes() []*Class {
	var out []*Class
	for _, ns := range r.namespaces {
		out = append(out, ns.classes...)
	}
	return out
}

// Validate checks the invariants emission relies on.
func (r *Registry) Validate() error {
	for _, ns := range r.namespaces {
		for _, c := range ns.classes {
			if err := validateClass(c); err != nil {
				return err
			}
		}
		for _, fn := range ns.functions {
			if err := validateMethod(fn); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateClass(c *Class) error {
	if !c.defined {
		return berrors.Declaration(c.FullName(), "class is declared but never defined")
	}
	for _, b := range c.Bases {
		if b.IsA(c) {
			return berrors.Declaration(c.FullName(), "inheritance cycle through %s", b.FullName())
		}
	}
	for _, m := range c.methods {
		if err := validateMethod(m); err != nil {
			return err
		}
	}
	for _, h := range c.hooks {
		th, ok := h.(*TemplateHook)
		if !ok {
			continue
		}
		if len(th.Branches) == 0 {
			return berrors.Declaration(c.FullName()+"::"+th.Name, "hook has no branches")
		}
		for _, br := range th.Branches {
			target, ok := c.Method(br.Target)
			if !ok {
				return berrors.Declaration(c.FullName()+"::"+th.Name, "hook target %q is not a method of the class", br.Target)
			}
			if th.Static && target.HasReceiver() {
				return berrors.Declaration(c.FullName()+"::"+th.Name, "static hook cannot target instance method %q", br.Target)
			}
		}
	}
	return nil
}

func validateMethod(m *Method) error {
	if len(m.Signatures) == 0 {
		return berrors.Declaration(m.subject(), "method has no signatures")
	}
	if (m.Kind == KindCustomMethod || m.Kind == KindCustomStaticMethod) && m.NativeName == "" {
		return berrors.Declaration(m.subject(), "custom method needs a native function name")
	}
	if m.fallible {
		for _, sig := range m.Signatures {
			if !returnsBool(sig.Return) {
				return berrors.Declaration(m.subject(), "fallible method must return Bool, not %s", sig.Return.FullName())
			}
		}
	}
	return nil
}

func returnsBool(t Type) bool {
	if t == Type(Bool) {
		return true
	}
	c, ok := t.(*Cast)
	return ok && c.Host == HostBool && c.Native == Type(Bool)
}

// Namespace owns classes, enums and free functions.
type Namespace struct {
	Name     string
	Includes []string

	classes     []*Class
	classByName map[string]*Class
	enums       []*Enum
	functions   []*Method
}

// FullName of a namespace is its name.
func (ns *Namespace) FullName() string { return ns.Name }

func (ns *Namespace) String() string { return ns.Name }

// Include adds headers every artifact of the namespace needs.
func (ns *Namespace) Include(paths ...string) {
	ns.Includes = appendUnique(ns.Includes, paths...)
}

// Classes returns classes in declaration order.
func (ns *Namespace) Classes() []*Class { return ns.classes }

// Enums returns namespace-level enums in declaration order.
func (ns *Namespace) Enums() []*Enum { return ns.enums }

// Functions returns free functions in declaration order.
func (ns *Namespace) Functions() []*Method { return ns.functions }

// Class finds a declared class by name.
func (ns *Namespace) Class(name string) (*Class, bool) {
	c, ok := ns.classByName[name]
	return c, ok
}

// LookupEnum finds a namespace-level enum by name.
func (ns *Namespace) LookupEnum(name string) (*Enum, bool) {
	for _, e := range ns.enums {
		if e.Name == name {
			return e, true
		}
	}
	return nil, false
}

// DeclareClass declares a class deriving from bases. The body is supplied
// later through Class.Define.
func (ns *Namespace) DeclareClass(name string, bases ...*Class) (*Class, error) {
	if name == "" {
		return nil, berrors.Declaration(ns.Name, "class name is empty")
	}
	if _, dup := ns.classByName[name]; dup {
		return nil, berrors.Declaration(ns.Name+"::"+name, "class is already declared")
	}
	c := &Class{Name: name, Namespace: ns, Bases: append([]*Class(nil), bases...)}
	ns.classes = append(ns.classes, c)
	ns.classByName[name] = c
	return c, nil
}

// Enum declares a namespace-level enum.
func (ns *Namespace) Enum(name string, values ...string) (*Enum, error) {
	if _, dup := ns.LookupEnum(name); dup {
		return nil, berrors.Declaration(ns.Name+"::"+name, "enum is already declared")
	}
	e, err := newEnum(ns, name, values)
	if err != nil {
		return nil, err
	}
	ns.enums = append(ns.enums, e)
	return e, nil
}

// Function declares a free function.
func (ns *Namespace) Function(name string, ret Type, args ...Type) (*Method, error) {
	if name == "" {
		return nil, berrors.Declaration(ns.Name, "function name is empty")
	}
	for _, fn := range ns.functions {
		if fn.Name == name {
			return nil, berrors.Declaration(ns.Name+"::"+name, "function is already declared")
		}
	}
	m := newMethod(KindFunction, ret, args)
	m.Name = name
	m.owner = ns
	ns.functions = append(ns.functions, m)
	return m, nil
}
