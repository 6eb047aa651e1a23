// Package binding defines the declaration model of a native API surface:
// type descriptors, the namespace registry and the signature model shared
// by every emitter and by the reference runtime.
package binding

import "strings"

// Type is a type descriptor. Each variant has a fixed wrap/unwrap contract
// that the emitters and the runtime implement by switching on Kind.
type Type interface {
	Kind() TypeKind
	// FullName is the native spelling of the type.
	FullName() string
}

// Builtin is an opaque native scalar or string type that crosses the
// boundary unchanged.
type Builtin struct {
	Name   string
	Format string // argument-parsing format code, empty when not parseable
}

func (b *Builtin) Kind() TypeKind   { return KindBuiltin }
func (b *Builtin) FullName() string { return b.Name }
func (b *Builtin) String() string   { return b.Name }

// Predeclared builtins.
var (
	Void             = &Builtin{Name: "void"}
	Unsigned         = &Builtin{Name: "unsigned"}
	UnsignedLongLong = &Builtin{Name: "unsigned long long"}
	LongLong         = &Builtin{Name: "long long"}
	Float            = &Builtin{Name: "float"}
	Double           = &Builtin{Name: "double"}
	Uint64           = &Builtin{Name: "uint64_t"}
	SizeT            = &Builtin{Name: "size_t"}
	VoidPtr          = &Builtin{Name: "void*"}
	Bool             = &Builtin{Name: "bool"}
	StdString        = &Builtin{Name: "std::string"}
	ConstStdString   = &Builtin{Name: "const std::string"}
	ConstCharPtr     = &Builtin{Name: "const char*"}
	// HostObject passes the raw host value through untouched.
	HostObject = &Builtin{Name: "PyObject*", Format: "O"}
)

var builtinsByName = map[string]*Builtin{
	"Void":             Void,
	"Unsigned":         Unsigned,
	"UnsignedLongLong": UnsignedLongLong,
	"LongLong":         LongLong,
	"Float":            Float,
	"Double":           Double,
	"Uint64":           Uint64,
	"Size_t":           SizeT,
	"SizeT":            SizeT,
	"VoidPtr":          VoidPtr,
	"Bool":             Bool,
	"StdString":        StdString,
	"ConstStdString":   ConstStdString,
	"ConstCharPtr":     ConstCharPtr,
	"PyObjectPtr":      HostObject,
	"HostObject":       HostObject,
}

// LookupBuiltin finds a predeclared builtin by its declaration name.
func LookupBuiltin(name string) (*Builtin, bool) {
	b, ok := builtinsByName[name]
	return b, ok
}

// Pointer points at a Class. Owned pointers transfer ownership of the
// pointee from host to native code when passed as an argument.
type Pointer struct {
	Elem  *Class
	Const bool
	Owned bool
}

// Ptr returns a pointer to c.
func Ptr(c *Class) *Pointer { return &Pointer{Elem: c} }

// OwnedPtr returns an ownership-transferring pointer to c.
func OwnedPtr(c *Class) *Pointer { return &Pointer{Elem: c, Owned: true} }

func (p *Pointer) Kind() TypeKind {
	if p.Owned {
		return KindOwnedPointer
	}
	return KindPointer
}

func (p *Pointer) FullName() string {
	if p.Const {
		return "const " + p.Elem.FullName() + "*"
	}
	return p.Elem.FullName() + "*"
}

// Reference refers to a Class instance.
type Reference struct {
	Elem  *Class
	Const bool
}

// Ref returns a reference to c.
func Ref(c *Class) *Reference { return &Reference{Elem: c} }

func (r *Reference) Kind() TypeKind { return KindReference }

func (r *Reference) FullName() string {
	if r.Const {
		return "const " + r.Elem.FullName() + "&"
	}
	return r.Elem.FullName() + "&"
}

// Const returns a const-qualified copy of a pointer or reference. Other
// types are returned unchanged.
func Const(t Type) Type {
	switch v := t.(type) {
	case *Pointer:
		c := *v
		c.Const = true
		return &c
	case *Reference:
		c := *v
		c.Const = true
		return &c
	}
	return t
}

// HostScalar names a host scalar type. Cast conversions are keyed by it.
type HostScalar string

const (
	HostBool  HostScalar = "bool"
	HostStr   HostScalar = "str"
	HostInt   HostScalar = "int"
	HostFloat HostScalar = "float"
)

// Valid reports whether s is a known host scalar.
func (s HostScalar) Valid() bool {
	switch s {
	case HostBool, HostStr, HostInt, HostFloat:
		return true
	}
	return false
}

// Cast pairs a native representation with a host scalar type.
type Cast struct {
	Host   HostScalar
	Native Type
}

// CastTo returns an adapter between host scalar h and native type t.
func CastTo(h HostScalar, t Type) *Cast { return &Cast{Host: h, Native: t} }

func (c *Cast) Kind() TypeKind   { return KindCast }
func (c *Cast) FullName() string { return c.Native.FullName() }

// ToName is the host-to-native conversion primitive, e.g. py_str_to.
func (c *Cast) ToName() string { return "py_" + string(c.Host) + "_to" }

// FromName is the native-to-host conversion primitive, e.g. py_bool_from.
func (c *Cast) FromName() string { return "py_" + string(c.Host) + "_from" }

// ElementClass returns the class a class-carrying type refers to.
func ElementClass(t Type) (*Class, bool) {
	switch v := t.(type) {
	case *Class:
		return v, true
	case *Pointer:
		return v.Elem, true
	case *Reference:
		return v.Elem, true
	}
	return nil, false
}

// CapsuleOf returns the capsule name a class-carrying type is tagged with.
func CapsuleOf(t Type) (string, bool) {
	c, ok := ElementClass(t)
	if !ok {
		return "", false
	}
	return c.CapsuleName(), true
}

// IsVoid reports whether t is the void builtin.
func IsVoid(t Type) bool {
	return t == nil || t == Type(Void)
}

// Mangle turns a qualified native name into a C identifier. "::" and every
// rune that cannot appear in an identifier become underscores.
func Mangle(name string) string {
	name = strings.ReplaceAll(name, "::", "_")
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
