package binding

import (
	"fmt"

	berrors "github.com/chazu/capsulegen/pkg/errors"
)

// Signature is one overload: a return type and ordered argument types.
type Signature struct {
	Return Type
	Args   []Type
}

// Arity is the number of declared arguments, receiver excluded.
func (s Signature) Arity() int { return len(s.Args) }

// Method is any member of the method family. It holds one or more
// signatures; no two of them may have the same argument count because
// calls are dispatched purely on arity.
type Method struct {
	Name       string
	Kind       MethodKind
	NativeName string // custom kinds: the native function to call
	Signatures []Signature

	realName string
	fallible bool
	owner    Owner
}

func newMethod(kind MethodKind, ret Type, args []Type) *Method {
	if ret == nil {
		ret = Void
	}
	return &Method{
		Kind:       kind,
		Signatures: []Signature{{Return: ret, Args: append([]Type(nil), args...)}},
	}
}

// NewMethod declares an instance method.
func NewMethod(ret Type, args ...Type) *Method {
	return newMethod(KindMethod, ret, args)
}

// NewConstructor declares a constructor. Its return type becomes a pointer
// to the owning class when it is attached.
func NewConstructor(args ...Type) *Method {
	return newMethod(KindConstructor, Void, args)
}

// NewDestructor declares a destructor; it takes no arguments.
func NewDestructor() *Method {
	return newMethod(KindDestructor, Void, nil)
}

// NewStaticMethod declares a class-level method.
func NewStaticMethod(ret Type, args ...Type) *Method {
	return newMethod(KindStaticMethod, ret, args)
}

// NewCustomMethod declares an instance method implemented by a native free
// function that receives the object as its first argument.
func NewCustomMethod(native string, ret Type, args ...Type) *Method {
	m := newMethod(KindCustomMethod, ret, args)
	m.NativeName = native
	return m
}

// NewCustomStaticMethod declares a class-level method implemented by a
// native free function.
func NewCustomStaticMethod(native string, ret Type, args ...Type) *Method {
	m := newMethod(KindCustomStaticMethod, ret, args)
	m.NativeName = native
	return m
}

// Owner returns the class or namespace the method is attached to.
func (m *Method) Owner() Owner { return m.owner }

// Class returns the owning class, if the owner is a class.
func (m *Method) Class() (*Class, bool) {
	c, ok := m.owner.(*Class)
	return c, ok
}

// SetRealName sets the native member name when it differs from Name.
func (m *Method) SetRealName(name string) *Method {
	m.realName = name
	return m
}

// RealName is the native member name.
func (m *Method) RealName() string {
	if m.realName != "" {
		return m.realName
	}
	return m.Name
}

// FullName is the qualified native name of the member.
func (m *Method) FullName() string {
	if m.owner == nil {
		return m.RealName()
	}
	return m.owner.FullName() + "::" + m.RealName()
}

// EntryName is the globally unique native entry point name,
// <qualified-owner>_<method-name> mangled into an identifier.
func (m *Method) EntryName() string {
	if m.owner == nil {
		return Mangle(m.Name)
	}
	return Mangle(m.owner.FullName() + "_" + m.Name)
}

func (m *Method) subject() string {
	if m.owner == nil {
		if m.Name == "" {
			return m.Kind.String()
		}
		return m.Name
	}
	return m.owner.FullName() + "::" + m.Name
}

// AddSignature adds an overload. The argument count must differ from every
// existing overload's.
func (m *Method) AddSignature(ret Type, args ...Type) error {
	if ret == nil {
		ret = Void
	}
	for _, sig := range m.Signatures {
		if len(sig.Args) == len(args) {
			return berrors.Declaration(m.subject(),
				"only overloading with different number of arguments is supported (arity %d repeated)", len(args))
		}
	}
	if m.Kind == KindDestructor && len(args) > 0 {
		return berrors.Declaration(m.subject(), "destructor takes no arguments")
	}
	if m.Kind == KindConstructor {
		if c, ok := m.owner.(*Class); ok {
			ret = Ptr(c)
		}
	}
	m.Signatures = append(m.Signatures, Signature{Return: ret, Args: append([]Type(nil), args...)})
	return nil
}

// Merge adds every signature of other, which must be of the same kind.
func (m *Method) Merge(other *Method) error {
	if other.Kind != m.Kind {
		return berrors.Declaration(m.subject(), "cannot merge %s into %s", other.Kind, m.Kind)
	}
	for _, sig := range other.Signatures {
		if err := m.AddSignature(sig.Return, sig.Args...); err != nil {
			return err
		}
	}
	return nil
}

// RequireOnly makes the arguments from position n on optional by adding an
// overload for every shorter prefix of the single declared signature.
func (m *Method) RequireOnly(n int) error {
	if len(m.Signatures) != 1 {
		return berrors.Declaration(m.subject(), "require_only needs exactly one signature, have %d", len(m.Signatures))
	}
	sig := m.Signatures[0]
	if n < 0 || n > len(sig.Args) {
		return berrors.Declaration(m.subject(), "require_only(%d) out of range for %d arguments", n, len(sig.Args))
	}
	for i := n; i < len(sig.Args); i++ {
		if err := m.AddSignature(sig.Return, sig.Args[:i]...); err != nil {
			return err
		}
	}
	return nil
}

// SetFallible opts the method into the native-operation failure channel:
// the native call receives a trailing error-message out-parameter and
// returns true on failure; the host sees an (ok, message) pair.
func (m *Method) SetFallible() *Method {
	m.fallible = true
	return m
}

// Fallible reports whether the method uses the failure channel.
func (m *Method) Fallible() bool { return m.fallible }

// HasReceiver reports whether the object is passed as the first argument.
func (m *Method) HasReceiver() bool {
	_, isClass := m.owner.(*Class)
	return isClass && m.Kind.HasReceiver()
}

// ExpectedArgs is the number of values a call with sig supplies to the
// native entry point, receiver included.
func (m *Method) ExpectedArgs(sig Signature) int {
	if m.HasReceiver() {
		return len(sig.Args) + 1
	}
	return len(sig.Args)
}

// SignatureFor returns the overload taking n arguments, receiver excluded.
func (m *Method) SignatureFor(n int) (Signature, bool) {
	for _, sig := range m.Signatures {
		if len(sig.Args) == n {
			return sig, true
		}
	}
	return Signature{}, false
}

// Arities lists the argument counts of all overloads in declaration order.
func (m *Method) Arities() []int {
	out := make([]int, len(m.Signatures))
	for i, sig := range m.Signatures {
		out[i] = len(sig.Args)
	}
	return out
}

// OwnedArgs returns the positions of ownership-transferring arguments.
func OwnedArgs(sig Signature) []int {
	var out []int
	for i, t := range sig.Args {
		if t.Kind() == KindOwnedPointer {
			out = append(out, i)
		}
	}
	return out
}

// HasOwnedArgs reports whether any overload transfers ownership.
func (m *Method) HasOwnedArgs() bool {
	for _, sig := range m.Signatures {
		if len(OwnedArgs(sig)) > 0 {
			return true
		}
	}
	return false
}

// ReturnsOwned reports whether the host side owns returned objects:
// constructors and methods declared to return an owned pointer.
func (m *Method) ReturnsOwned() bool {
	if m.Kind == KindConstructor {
		return true
	}
	return m.Signatures[0].Return.Kind() == KindOwnedPointer
}

// Symbol is the native symbol the call resolves to, used by libraries that
// implement the native side in-process.
func (m *Method) Symbol() string {
	switch call := m.Call().(type) {
	case InstanceCall:
		return m.owner.FullName() + "::" + call.Method
	case StaticCall:
		return call.Symbol
	case CustomCall:
		return call.Symbol
	case CustomStaticCall:
		return call.Symbol
	case ConstructCall:
		return "new " + call.Class.FullName()
	case DestructCall:
		return "delete " + call.Class.FullName()
	default:
		panic(fmt.Sprintf("binding: unhandled call form %T", call))
	}
}

func (m *Method) String() string { return m.FullName() }
