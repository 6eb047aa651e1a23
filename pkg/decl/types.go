package decl

import (
	"fmt"
	"strconv"

	"github.com/chazu/capsulegen/pkg/binding"
	"github.com/chazu/capsulegen/pkg/parser"
)

// scope resolves names the way a declaration sees them: members of the
// enclosing class first, then the enclosing namespace, then the registry.
type scope struct {
	reg   *binding.Registry
	ns    *binding.Namespace
	class *binding.Class // nil for namespace-level declarations
}

// typeOf resolves a type expression.
func (s scope) typeOf(src string) (binding.Type, error) {
	if src == "" {
		return binding.Void, nil
	}
	expr, err := parser.Parse(src)
	if err != nil {
		return nil, err
	}
	return s.resolve(expr)
}

func (s scope) resolve(expr parser.Expr) (binding.Type, error) {
	switch e := expr.(type) {
	case parser.Name:
		return s.name(e)
	case parser.Call:
		return s.call(e)
	default:
		return nil, fmt.Errorf("unsupported expression %s", expr)
	}
}

func (s scope) call(c parser.Call) (binding.Type, error) {
	switch c.Func {
	case "ptr", "ownedptr", "ref":
		if len(c.Args) != 1 {
			return nil, fmt.Errorf("%s takes one class argument", c.Func)
		}
		cls, err := s.classArg(c.Args[0])
		if err != nil {
			return nil, err
		}
		switch c.Func {
		case "ptr":
			return binding.Ptr(cls), nil
		case "ownedptr":
			return binding.OwnedPtr(cls), nil
		default:
			return binding.Ref(cls), nil
		}

	case "const":
		if len(c.Args) != 1 {
			return nil, fmt.Errorf("const takes one argument")
		}
		t, err := s.resolve(c.Args[0])
		if err != nil {
			return nil, err
		}
		switch t.(type) {
		case *binding.Pointer, *binding.Reference:
			return binding.Const(t), nil
		}
		return nil, fmt.Errorf("const applies to ptr or ref, not %s", c.Args[0])

	case "cast":
		if len(c.Args) != 2 {
			return nil, fmt.Errorf("cast takes a host scalar and a native type")
		}
		host, native := c.Args[0], c.Args[1]
		h, ok := hostScalar(host)
		if !ok {
			host, native = native, host
			if h, ok = hostScalar(host); !ok {
				return nil, fmt.Errorf("cast needs one of bool, str, int or float in %s", c)
			}
		}
		t, err := s.resolve(native)
		if err != nil {
			return nil, err
		}
		return binding.CastTo(h, t), nil

	default:
		return nil, fmt.Errorf("unknown type constructor %q", c.Func)
	}
}

func hostScalar(expr parser.Expr) (binding.HostScalar, bool) {
	n, ok := expr.(parser.Name)
	if !ok || !n.Simple() {
		return "", false
	}
	h := binding.HostScalar(n.Path[0])
	return h, h.Valid()
}

func (s scope) classArg(expr parser.Expr) (*binding.Class, error) {
	t, err := s.resolve(expr)
	if err != nil {
		return nil, err
	}
	cls, ok := t.(*binding.Class)
	if !ok {
		return nil, fmt.Errorf("%s is not a class", expr)
	}
	return cls, nil
}

func (s scope) name(n parser.Name) (binding.Type, error) {
	if n.Member != "" {
		cls, err := s.lookupClass(n)
		if err != nil {
			return nil, err
		}
		en, ok := cls.Enum(n.Member)
		if !ok {
			return nil, fmt.Errorf("class %s has no enum %s", cls.FullName(), n.Member)
		}
		return en, nil
	}

	if n.Simple() {
		name := n.Path[0]
		if b, ok := binding.LookupBuiltin(name); ok {
			return b, nil
		}
		if s.class != nil {
			if en, ok := s.class.Enum(name); ok {
				return en, nil
			}
		}
		if cls, ok := s.ns.Class(name); ok {
			return cls, nil
		}
		if en, ok := s.ns.LookupEnum(name); ok {
			return en, nil
		}
		return nil, fmt.Errorf("unknown type %s", name)
	}

	if cls, ok := s.reg.FindClass(n.Qualified()); ok {
		return cls, nil
	}
	nsName := parser.Name{Path: n.Path[:len(n.Path)-1]}.Qualified()
	if ns, ok := s.reg.Lookup(nsName); ok {
		if en, ok := ns.LookupEnum(n.Path[len(n.Path)-1]); ok {
			return en, nil
		}
	}
	return nil, fmt.Errorf("unknown type %s", n)
}

// lookupClass finds the class a name refers to, searching the enclosing
// namespace for unqualified names.
func (s scope) lookupClass(n parser.Name) (*binding.Class, error) {
	if len(n.Path) == 1 {
		if cls, ok := s.ns.Class(n.Path[0]); ok {
			return cls, nil
		}
	} else if cls, ok := s.reg.FindClass(n.Qualified()); ok {
		return cls, nil
	}
	return nil, fmt.Errorf("unknown class %s", n.Qualified())
}

// classNamed resolves a plain or qualified class name.
func (s scope) classNamed(name string) (*binding.Class, error) {
	expr, err := parser.Parse(name)
	if err != nil {
		return nil, err
	}
	n, ok := expr.(parser.Name)
	if !ok || n.Member != "" {
		return nil, fmt.Errorf("%q is not a class name", name)
	}
	return s.lookupClass(n)
}

// condition resolves a hook branch condition.
func (s scope) condition(src string) (binding.Condition, error) {
	if src == "" || src == "always" {
		return binding.Always{}, nil
	}
	if src == "noargs" {
		return binding.NoArgs{}, nil
	}
	expr, err := parser.Parse(src)
	if err != nil {
		return nil, err
	}
	c, ok := expr.(parser.Call)
	if !ok {
		return nil, fmt.Errorf("unknown condition %s", src)
	}
	switch c.Func {
	case "always":
		if len(c.Args) == 0 {
			return binding.Always{}, nil
		}
	case "noargs":
		if len(c.Args) == 0 {
			return binding.NoArgs{}, nil
		}
	case "isinstance":
		if len(c.Args) != 2 {
			break
		}
		idx, ok := c.Args[0].(parser.Name)
		if !ok || !idx.Simple() {
			break
		}
		i, err := strconv.Atoi(idx.Path[0])
		if err != nil || i < 0 {
			return nil, fmt.Errorf("isinstance index %q is not a non-negative integer", idx.Path[0])
		}
		cls, err := s.classArg(c.Args[1])
		if err != nil {
			return nil, err
		}
		return binding.ArgIsInstance{Index: i, Class: cls}, nil
	}
	return nil, fmt.Errorf("malformed condition %s", src)
}

func transform(src string) (binding.ArgTransform, error) {
	switch src {
	case "", "pass":
		return binding.PassArg, nil
	case "strlist":
		return binding.StrList, nil
	}
	return 0, fmt.Errorf("unknown argument transform %q", src)
}
