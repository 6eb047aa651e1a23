package runtime

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/chazu/capsulegen/pkg/binding"
	"github.com/chazu/capsulegen/pkg/capsule"
	berrors "github.com/chazu/capsulegen/pkg/errors"
)

// HookFunc implements a snippet hook on the Go host.
type HookFunc func(h *Host, recv any, args []any) (any, error)

// Host is the host side of a registry. It behaves like the generated
// wrappers: it unwraps arguments, releases transferred ownership, forwards
// to the module and wraps the result.
type Host struct {
	reg      *binding.Registry
	module   capsule.Module
	classes  *capsule.ClassRegistry
	snippets map[string]HookFunc
}

// NewHost creates a host over module. A nil classes registry wraps every
// object as a capsule.Object.
func NewHost(reg *binding.Registry, module capsule.Module, classes *capsule.ClassRegistry) *Host {
	if classes == nil {
		classes = capsule.NewClassRegistry()
	}
	return &Host{
		reg:      reg,
		module:   module,
		classes:  classes,
		snippets: make(map[string]HookFunc),
	}
}

// Classes returns the wrapper registry used to wrap results.
func (h *Host) Classes() *capsule.ClassRegistry { return h.classes }

// RegisterSnippet supplies the implementation of snippet hooks with id.
func (h *Host) RegisterSnippet(id string, fn HookFunc) {
	h.snippets[id] = fn
}

// Construct calls the class member named "new".
func (h *Host) Construct(cls *binding.Class, args ...any) (any, error) {
	return h.CallStatic(cls, "new", args...)
}

// CallStatic calls a class-level member: a constructor, a static method or
// a static hook.
func (h *Host) CallStatic(cls *binding.Class, name string, args ...any) (any, error) {
	m, hook, owner, err := findMember(cls, name)
	if err != nil {
		return nil, err
	}
	if hook != nil {
		if !hook.IsStatic() {
			return nil, berrors.Marshal(berrors.PhaseCall, owner.FullName()+"::"+name, "instance hook called without an object")
		}
		return h.runHook(owner, nil, hook, args)
	}
	if m.HasReceiver() {
		return nil, berrors.Marshal(berrors.PhaseCall, m.FullName(), "instance method called without an object")
	}
	return h.forward(m, nil, args)
}

// Invoke calls a member on obj, a wrapper returned by an earlier call.
// Members are looked up on the object's class, then along its base chain.
func (h *Host) Invoke(obj any, name string, args ...any) (any, error) {
	cls, err := h.classOf(obj)
	if err != nil {
		return nil, err
	}
	m, hook, owner, err := findMember(cls, name)
	if err != nil {
		return nil, err
	}
	if hook != nil {
		if hook.IsStatic() {
			return h.runHook(owner, nil, hook, args)
		}
		return h.runHook(owner, obj, hook, args)
	}
	if !m.HasReceiver() {
		return h.forward(m, nil, args)
	}
	return h.forward(m, obj, args)
}

// CallFunction calls a free function of ns.
func (h *Host) CallFunction(ns *binding.Namespace, name string, args ...any) (any, error) {
	for _, fn := range ns.Functions() {
		if fn.Name == name {
			return h.forward(fn, nil, args)
		}
	}
	return nil, berrors.UnresolvedSymbol(ns.FullName() + "::" + name)
}

// Delete destroys the native object behind obj if obj still owns it. It
// reports whether the destructor ran; deleting a released or borrowed
// object is a no-op.
func (h *Host) Delete(obj any) (bool, error) {
	cls, err := h.classOf(obj)
	if err != nil {
		return false, err
	}
	var dtor *binding.Method
	for c := cls; c != nil && dtor == nil; c = c.Base() {
		dtor, _ = c.Destructor()
	}
	if dtor == nil {
		return false, nil
	}
	if !h.classes.ReleaseOwnership(obj) {
		Logger().Debug("skipping delete of unowned object", zap.String("class", cls.FullName()))
		return false, nil
	}
	if _, err := h.module.Call(dtor.EntryName(), h.classes.Unwrap(obj)); err != nil {
		return false, err
	}
	return true, nil
}

// EnumValues returns the value names of e in declaration order.
func (h *Host) EnumValues(e *binding.Enum) []string {
	return append([]string(nil), e.Values...)
}

func (h *Host) forward(m *binding.Method, recv any, args []any) (any, error) {
	if sig, ok := m.SignatureFor(len(args)); ok {
		for _, i := range binding.OwnedArgs(sig) {
			if h.classes.ReleaseOwnership(args[i]) {
				Logger().Debug("ownership transferred",
					zap.String("method", m.FullName()), zap.Int("argument", i))
			}
		}
	}

	native := h.classes.UnwrapMany(args)
	if recv != nil {
		native = append([]any{h.classes.Unwrap(recv)}, native...)
	}
	res, err := h.module.Call(m.EntryName(), native...)
	if err != nil {
		return nil, err
	}
	return h.classes.Wrap(res, m.ReturnsOwned()), nil
}

func (h *Host) runHook(owner *binding.Class, recv any, hook binding.Hook, args []any) (any, error) {
	subject := owner.FullName() + "::" + hook.HookName()
	switch hk := hook.(type) {
	case *binding.TemplateHook:
		for _, br := range hk.Branches {
			if len(args) < len(br.Transform) || !h.matches(br.When, args) {
				continue
			}
			target, ok := owner.Method(br.Target)
			if !ok {
				return nil, berrors.UnresolvedSymbol(owner.FullName() + "::" + br.Target)
			}
			targs, err := transform(subject, br.Transform, args)
			if err != nil {
				return nil, err
			}
			if target.HasReceiver() {
				if recv == nil {
					return nil, berrors.Marshal(berrors.PhaseCall, subject, "hook target %s needs an object", br.Target)
				}
				return h.forward(target, recv, targs)
			}
			return h.forward(target, nil, targs)
		}
		return nil, berrors.Marshal(berrors.PhaseCall, subject, "no hook branch accepts %d arguments", len(args))
	case *binding.SnippetHook:
		fn, ok := h.snippets[hk.SnippetID]
		if !ok {
			return nil, berrors.UnresolvedSymbol(hk.SnippetID)
		}
		return fn(h, recv, args)
	default:
		panic(fmt.Sprintf("runtime: unhandled hook %T", hook))
	}
}

func (h *Host) matches(cond binding.Condition, args []any) bool {
	switch c := cond.(type) {
	case binding.Always:
		return true
	case binding.NoArgs:
		return len(args) == 0
	case binding.ArgIsInstance:
		if c.Index >= len(args) {
			return false
		}
		cls, err := h.classOf(args[c.Index])
		return err == nil && cls.IsA(c.Class)
	default:
		panic(fmt.Sprintf("runtime: unhandled hook condition %T", cond))
	}
}

func transform(subject string, ts []binding.ArgTransform, args []any) ([]any, error) {
	out := append([]any(nil), args...)
	for i, t := range ts {
		if i >= len(out) || t == binding.PassArg {
			continue
		}
		list, err := strList(out[i])
		if err != nil {
			return nil, berrors.New(berrors.PhaseCall, berrors.KindMarshal).
				Subject(subject).Cause(err).Detail("argument %d", i).Build()
		}
		out[i] = list
	}
	return out, nil
}

func strList(v any) ([]string, error) {
	switch l := v.(type) {
	case []string:
		return append([]string(nil), l...), nil
	case []any:
		out := make([]string, len(l))
		for i, e := range l {
			out[i] = fmt.Sprint(e)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a list, got %T", v)
}

// classOf resolves the declared class of a wrapper.
func (h *Host) classOf(obj any) (*binding.Class, error) {
	var c *capsule.Capsule
	if w, ok := obj.(capsule.Wrapper); ok && h.classes.Unwrap(obj) != nil {
		c = w.Capsule()
	}
	if c == nil {
		return nil, berrors.Marshal(berrors.PhaseCall, fmt.Sprintf("%T", obj), "not a bound object")
	}
	if cls, ok := h.reg.FindClass(c.ClassName); ok {
		return cls, nil
	}
	return nil, berrors.Marshal(berrors.PhaseCall, c.ClassName, "class is not declared")
}

func findMember(cls *binding.Class, name string) (*binding.Method, binding.Hook, *binding.Class, error) {
	for c := cls; c != nil; c = c.Base() {
		if m, ok := c.Method(name); ok {
			return m, nil, c, nil
		}
		if hk, ok := c.Hook(name); ok {
			return nil, hk, c, nil
		}
	}
	return nil, nil, nil, berrors.UnresolvedSymbol(cls.FullName() + "::" + name)
}
