package binding

import (
	berrors "github.com/chazu/capsulegen/pkg/errors"
)

// Enum is a closed string-keyed scalar. Values are compared in declaration
// order; the native representation of a value is its index.
type Enum struct {
	Name   string
	Values []string
	owner  Owner
}

func newEnum(owner Owner, name string, values []string) (*Enum, error) {
	full := owner.FullName() + "::" + name
	if name == "" {
		return nil, berrors.Declaration(owner.FullName(), "enum name is empty")
	}
	if len(values) == 0 {
		return nil, berrors.Declaration(full, "enum has no values")
	}
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if v == "" {
			return nil, berrors.Declaration(full, "empty enum value name")
		}
		if seen[v] {
			return nil, berrors.Declaration(full, "duplicate enum value %q", v)
		}
		seen[v] = true
	}
	return &Enum{Name: name, Values: append([]string(nil), values...), owner: owner}, nil
}

func (e *Enum) Kind() TypeKind { return KindEnum }

// Owner returns the namespace or class the enum is declared in.
func (e *Enum) Owner() Owner { return e.owner }

// FullName is the qualified native enum type name.
func (e *Enum) FullName() string {
	return e.owner.FullName() + "::" + e.Name
}

func (e *Enum) String() string { return e.FullName() }

// ValueRef is the native spelling of a value. Values are unscoped, so they
// live in the owner's scope.
func (e *Enum) ValueRef(value string) string {
	return e.owner.FullName() + "::" + value
}

// Index returns the first value equal to name, or -1.
func (e *Enum) Index(name string) int {
	for i, v := range e.Values {
		if v == name {
			return i
		}
	}
	return -1
}
