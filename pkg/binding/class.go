package binding

import (
	berrors "github.com/chazu/capsulegen/pkg/errors"
)

// Owner is anything that can own enums and methods: a Namespace or a Class.
type Owner interface {
	FullName() string
}

// Class is an opaque polymorphic native object type. A Class is declared
// first (so other declarations may refer to it) and defined later through
// a ClassBuilder.
type Class struct {
	Name          string
	Namespace     *Namespace
	Bases         []*Class
	Includes      []string
	Downcastables []*Class

	realName string
	methods  []*Method
	enums    []*Enum
	hooks    []Hook
	members  map[string]bool
	defined  bool
}

func (c *Class) Kind() TypeKind { return KindClass }

// NativeName is the class name as spelled in native code.
func (c *Class) NativeName() string {
	if c.realName != "" {
		return c.realName
	}
	return c.Name
}

// FullName is the fully qualified native name, e.g. llvm::Linker.
func (c *Class) FullName() string {
	return c.Namespace.FullName() + "::" + c.NativeName()
}

func (c *Class) String() string { return c.FullName() }

// CapsuleName is the runtime type tag objects of this class are wrapped
// under: the capsule name of the last base, or the class's own full name.
func (c *Class) CapsuleName() string {
	if len(c.Bases) > 0 {
		return c.Bases[len(c.Bases)-1].CapsuleName()
	}
	return c.FullName()
}

// Base returns the base whose wrapper the host class inherits from.
func (c *Class) Base() *Class {
	if len(c.Bases) == 0 {
		return nil
	}
	return c.Bases[len(c.Bases)-1]
}

// Defined reports whether the class body has been finalized.
func (c *Class) Defined() bool { return c.defined }

// Methods returns the methods in declaration order.
func (c *Class) Methods() []*Method { return c.methods }

// Enums returns the nested enums in declaration order.
func (c *Class) Enums() []*Enum { return c.enums }

// Hooks returns the custom host hooks in declaration order.
func (c *Class) Hooks() []Hook { return c.hooks }

// Method finds a method by its declared name.
func (c *Class) Method(name string) (*Method, bool) {
	for _, m := range c.methods {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// Enum finds a nested enum by name.
func (c *Class) Enum(name string) (*Enum, bool) {
	for _, e := range c.enums {
		if e.Name == name {
			return e, true
		}
	}
	return nil, false
}

// Hook finds a custom host hook by name.
func (c *Class) Hook(name string) (Hook, bool) {
	for _, h := range c.hooks {
		if h.HookName() == name {
			return h, true
		}
	}
	return nil, false
}

// Destructor returns the class destructor, if declared.
func (c *Class) Destructor() (*Method, bool) {
	for _, m := range c.methods {
		if m.Kind == KindDestructor {
			return m, true
		}
	}
	return nil, false
}

// IsA reports whether c is other or derives from it.
func (c *Class) IsA(other *Class) bool {
	if c == other {
		return true
	}
	for _, b := range c.Bases {
		if b.IsA(other) {
			return true
		}
	}
	return false
}

// Define opens the class body for registration. A class can be defined
// only once.
func (c *Class) Define() (*ClassBuilder, error) {
	if c.defined {
		return nil, berrors.Declaration(c.FullName(), "class is already defined")
	}
	return &ClassBuilder{class: c}, nil
}

// ClassBuilder registers the members of a class body explicitly.
type ClassBuilder struct {
	class *Class
	done  bool
}

// Class returns the class being defined.
func (b *ClassBuilder) Class() *Class { return b.class }

// RealName sets the native class name when it differs from the declared one.
func (b *ClassBuilder) RealName(name string) *ClassBuilder {
	b.class.realName = name
	return b
}

// Include adds headers the native glue needs for this class.
func (b *ClassBuilder) Include(paths ...string) *ClassBuilder {
	b.class.Includes = appendUnique(b.class.Includes, paths...)
	return b
}

// Downcast records sibling classes objects of this class may be resolved to.
func (b *ClassBuilder) Downcast(classes ...*Class) *ClassBuilder {
	for _, d := range classes {
		found := false
		for _, have := range b.class.Downcastables {
			if have == d {
				found = true
				break
			}
		}
		if !found {
			b.class.Downcastables = append(b.class.Downcastables, d)
		}
	}
	return b
}

func (b *ClassBuilder) claim(name string) error {
	if b.done {
		return berrors.Declaration(b.class.FullName(), "class is already defined")
	}
	if name == "" {
		return berrors.Declaration(b.class.FullName(), "member name is empty")
	}
	if b.class.members == nil {
		b.class.members = make(map[string]bool)
	}
	if b.class.members[name] {
		return berrors.Declaration(b.class.FullName()+"::"+name, "duplicate member")
	}
	b.class.members[name] = true
	return nil
}

// AddMethod attaches m to the class under name. Constructors get their
// return type set to a pointer to the class.
func (b *ClassBuilder) AddMethod(name string, m *Method) error {
	if m.Kind == KindFunction {
		return berrors.Declaration(b.class.FullName()+"::"+name, "free functions belong to a namespace")
	}
	if m.owner != nil {
		return berrors.Declaration(b.class.FullName()+"::"+name, "method is already attached to %s", m.owner.FullName())
	}
	if err := b.claim(name); err != nil {
		return err
	}
	m.Name = name
	m.owner = b.class
	if m.Kind == KindConstructor {
		for i := range m.Signatures {
			m.Signatures[i].Return = Ptr(b.class)
		}
	}
	b.class.methods = append(b.class.methods, m)
	return nil
}

// AddEnum declares an enum nested in the class.
func (b *ClassBuilder) AddEnum(name string, values ...string) (*Enum, error) {
	if err := b.claim(name); err != nil {
		return nil, err
	}
	e, err := newEnum(b.class, name, values)
	if err != nil {
		return nil, err
	}
	b.class.enums = append(b.class.enums, e)
	return e, nil
}

// AddCustomHook attaches a host-only member.
func (b *ClassBuilder) AddCustomHook(h Hook) error {
	if err := b.claim(h.HookName()); err != nil {
		return err
	}
	b.class.hooks = append(b.class.hooks, h)
	return nil
}

// Finish finalizes the class. Further registration fails.
func (b *ClassBuilder) Finish() *Class {
	b.done = true
	b.class.defined = true
	return b.class
}

func appendUnique(list []string, items ...string) []string {
	for _, it := range items {
		dup := false
		for _, have := range list {
			if have == it {
				dup = true
				break
			}
		}
		if !dup {
			list = append(list, it)
		}
	}
	return list
}
