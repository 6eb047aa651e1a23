package runtime

import (
	"fmt"

	"github.com/chazu/capsulegen/pkg/binding"
	"github.com/chazu/capsulegen/pkg/capsule"
	berrors "github.com/chazu/capsulegen/pkg/errors"
)

// marshaler implements the wrap and unwrap contract of every type kind.
type marshaler struct {
	conv Conversions
}

// unwrap converts a host value into the native representation of t.
func (m *marshaler) unwrap(t binding.Type, v any, subject string) (any, error) {
	switch t := t.(type) {
	case *binding.Builtin:
		return unwrapBuiltin(t, v, subject)
	case *binding.Class:
		c, err := expectObject(t, v, subject)
		if err != nil {
			return nil, err
		}
		return c.Ptr, nil
	case *binding.Pointer:
		if v == nil {
			return nil, nil
		}
		c, err := expectObject(t.Elem, v, subject)
		if err != nil {
			return nil, err
		}
		return c.Ptr, nil
	case *binding.Reference:
		c, err := expectObject(t.Elem, v, subject)
		if err != nil {
			return nil, err
		}
		return c.Ptr, nil
	case *binding.Enum:
		s, ok := v.(string)
		if !ok {
			return nil, berrors.Marshal(berrors.PhaseUnwrap, subject, "expected %s value name, got %T", t.FullName(), v)
		}
		i := t.Index(s)
		if i < 0 {
			return nil, berrors.InvalidEnumValue(berrors.PhaseUnwrap, t.FullName(), s)
		}
		return i, nil
	case *binding.Cast:
		conv, ok := m.conv[t.Host]
		if !ok {
			return nil, berrors.Marshal(berrors.PhaseUnwrap, subject, "no conversion for host type %s", t.Host)
		}
		out, err := conv.To(t.Native, v)
		if err != nil {
			return nil, berrors.New(berrors.PhaseUnwrap, berrors.KindMarshal).
				Subject(subject).Cause(err).Detail("%s failed", t.ToName()).Build()
		}
		return out, nil
	default:
		panic(fmt.Sprintf("runtime: unhandled type descriptor %T", t))
	}
}

// wrap converts a native value of type t into its host representation.
func (m *marshaler) wrap(t binding.Type, v any, subject string) (any, error) {
	switch t := t.(type) {
	case *binding.Builtin:
		if binding.IsVoid(t) {
			return nil, nil
		}
		return v, nil
	case *binding.Class:
		if v == nil {
			return nil, berrors.Marshal(berrors.PhaseWrap, subject, "native %s value is null", t.FullName())
		}
		return newCapsule(t, v), nil
	case *binding.Pointer:
		if v == nil {
			return nil, nil
		}
		return newCapsule(t.Elem, v), nil
	case *binding.Reference:
		if v == nil {
			return nil, berrors.Marshal(berrors.PhaseWrap, subject, "native reference to %s is null", t.Elem.FullName())
		}
		return newCapsule(t.Elem, v), nil
	case *binding.Enum:
		i, ok := toInt64(v)
		if !ok || i < 0 || i >= int64(len(t.Values)) {
			return nil, berrors.InvalidEnumValue(berrors.PhaseWrap, t.FullName(), v)
		}
		return t.Values[i], nil
	case *binding.Cast:
		conv, ok := m.conv[t.Host]
		if !ok {
			return nil, berrors.Marshal(berrors.PhaseWrap, subject, "no conversion for host type %s", t.Host)
		}
		out, err := conv.From(v)
		if err != nil {
			return nil, berrors.New(berrors.PhaseWrap, berrors.KindMarshal).
				Subject(subject).Cause(err).Detail("%s failed", t.FromName()).Build()
		}
		return out, nil
	default:
		panic(fmt.Sprintf("runtime: unhandled type descriptor %T", t))
	}
}

// expectObject extracts a non-null token tagged with the capsule name of cls.
func expectObject(cls *binding.Class, v any, subject string) (*capsule.Capsule, error) {
	if v == nil {
		return nil, berrors.Marshal(berrors.PhaseUnwrap, subject, "expected a %s object, got no object", cls.FullName())
	}
	c, ok := v.(*capsule.Capsule)
	if !ok || c == nil {
		return nil, berrors.Marshal(berrors.PhaseUnwrap, subject, "expected a %s object, got %T", cls.FullName(), v)
	}
	if err := c.Expect(cls.CapsuleName()); err != nil {
		return nil, berrors.New(berrors.PhaseUnwrap, berrors.KindTypeTagMismatch).
			Subject(subject).Cause(err).Build()
	}
	if c.Ptr == nil {
		return nil, berrors.Marshal(berrors.PhaseUnwrap, subject, "%s object holds a null pointer", cls.FullName())
	}
	return c, nil
}

// newCapsule packages a native pointer under the capsule name of its class.
// Values that report a downcastable class are tagged as that class.
func newCapsule(cls *binding.Class, v any) *capsule.Capsule {
	actual := cls
	if cv, ok := v.(Classed); ok {
		if d := downcast(cls, cv.NativeClass()); d != nil {
			actual = d
		}
	}
	return capsule.New(v, actual.CapsuleName(), actual.FullName())
}

func downcast(cls *binding.Class, name string) *binding.Class {
	if cls.FullName() == name {
		return cls
	}
	for _, d := range cls.Downcastables {
		if d.FullName() == name {
			return d
		}
	}
	return nil
}

func unwrapBuiltin(b *binding.Builtin, v any, subject string) (any, error) {
	var ok bool
	switch b {
	case binding.HostObject, binding.VoidPtr:
		return v, nil
	case binding.Bool:
		_, ok = v.(bool)
	case binding.StdString, binding.ConstStdString, binding.ConstCharPtr:
		_, ok = v.(string)
	case binding.Float, binding.Double:
		var f float64
		if f, ok = toFloat64(v); ok {
			return f, nil
		}
	case binding.Void:
		return nil, berrors.Marshal(berrors.PhaseUnwrap, subject, "void is not an argument type")
	default:
		var n int64
		if n, ok = toInt64(v); ok {
			return n, nil
		}
	}
	if !ok {
		return nil, berrors.Marshal(berrors.PhaseUnwrap, subject, "expected %s, got %T", b.Name, v)
	}
	return v, nil
}
