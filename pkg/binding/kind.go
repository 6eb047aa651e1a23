package binding

// TypeKind enumerates the closed set of type descriptor variants.
type TypeKind int

const (
	KindBuiltin TypeKind = iota
	KindClass
	KindEnum
	KindPointer
	KindOwnedPointer
	KindReference
	KindCast
)

func (k TypeKind) String() string {
	switch k {
	case KindBuiltin:
		return "builtin"
	case KindClass:
		return "class"
	case KindEnum:
		return "enum"
	case KindPointer:
		return "ptr"
	case KindOwnedPointer:
		return "ownedptr"
	case KindReference:
		return "ref"
	case KindCast:
		return "cast"
	default:
		return "unknown"
	}
}

// MethodKind distinguishes the members of the method family.
type MethodKind int

const (
	KindMethod MethodKind = iota
	KindConstructor
	KindDestructor
	KindStaticMethod
	KindCustomMethod
	KindCustomStaticMethod
	KindFunction
)

func (k MethodKind) String() string {
	switch k {
	case KindMethod:
		return "method"
	case KindConstructor:
		return "constructor"
	case KindDestructor:
		return "destructor"
	case KindStaticMethod:
		return "static"
	case KindCustomMethod:
		return "custom"
	case KindCustomStaticMethod:
		return "custom_static"
	case KindFunction:
		return "function"
	default:
		return "unknown"
	}
}

// ParseMethodKind maps the declaration-file spelling of a kind back to it.
func ParseMethodKind(s string) (MethodKind, bool) {
	switch s {
	case "", "method":
		return KindMethod, true
	case "constructor":
		return KindConstructor, true
	case "destructor":
		return KindDestructor, true
	case "static":
		return KindStaticMethod, true
	case "custom":
		return KindCustomMethod, true
	case "custom_static":
		return KindCustomStaticMethod, true
	case "function":
		return KindFunction, true
	}
	return 0, false
}

// HasReceiver reports whether calls of this kind pass the object itself as
// the first native argument.
func (k MethodKind) HasReceiver() bool {
	switch k {
	case KindMethod, KindCustomMethod, KindDestructor:
		return true
	}
	return false
}

// IsStatic reports whether the host wrapper is a static (class-level) member.
func (k MethodKind) IsStatic() bool {
	switch k {
	case KindConstructor, KindStaticMethod, KindCustomStaticMethod:
		return true
	}
	return false
}
