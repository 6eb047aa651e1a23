package binding

// CallForm describes how a method's native operation is invoked. It is a
// closed set; emitters switch over it exhaustively.
type CallForm interface {
	callForm()
}

// InstanceCall invokes a member function on the receiver.
type InstanceCall struct {
	Method string // native member name
}

// StaticCall invokes a qualified static member or free function.
type StaticCall struct {
	Symbol string
}

// CustomCall invokes a native free function with the receiver first.
type CustomCall struct {
	Symbol string
}

// CustomStaticCall invokes a native free function without a receiver.
type CustomStaticCall struct {
	Symbol string
}

// ConstructCall allocates a new instance of Class.
type ConstructCall struct {
	Class *Class
}

// DestructCall deletes the receiver.
type DestructCall struct {
	Class *Class
}

func (InstanceCall) callForm()     {}
func (StaticCall) callForm()       {}
func (CustomCall) callForm()       {}
func (CustomStaticCall) callForm() {}
func (ConstructCall) callForm()    {}
func (DestructCall) callForm()     {}

// Call returns the call form of m.
func (m *Method) Call() CallForm {
	switch m.Kind {
	case KindMethod:
		return InstanceCall{Method: m.RealName()}
	case KindConstructor:
		c, _ := m.owner.(*Class)
		return ConstructCall{Class: c}
	case KindDestructor:
		c, _ := m.owner.(*Class)
		return DestructCall{Class: c}
	case KindCustomMethod:
		return CustomCall{Symbol: m.NativeName}
	case KindCustomStaticMethod:
		return CustomStaticCall{Symbol: m.NativeName}
	default: // KindStaticMethod, KindFunction
		return StaticCall{Symbol: m.FullName()}
	}
}
