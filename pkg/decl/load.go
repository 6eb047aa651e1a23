// Package decl builds a binding registry from declaration files.
//
// Loading runs in passes so that files may refer to each other's classes in
// any order:
//
//  1. namespaces, their includes and namespace-level enums
//  2. class declarations, ordered so that bases come first
//  3. class headers: real names, includes and nested enums
//  4. methods, hooks, downcasts and free functions
//
// The finished registry is validated before it is returned.
package decl

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/chazu/capsulegen/pkg/ast"
	"github.com/chazu/capsulegen/pkg/binding"
	berrors "github.com/chazu/capsulegen/pkg/errors"
)

// Load parses the declaration files at paths and builds a registry.
func Load(paths ...string) (*binding.Registry, error) {
	files := make([]*ast.File, 0, len(paths))
	for _, path := range paths {
		f, err := ast.ParseFile(path)
		if err != nil {
			return nil, err
		}
		Logger().Debug("parsed declaration file",
			zap.String("path", path),
			zap.String("namespace", f.Namespace),
			zap.Int("classes", len(f.Classes)))
		files = append(files, f)
	}
	return Build(files...)
}

// Build resolves parsed declaration files into a new registry.
func Build(files ...*ast.File) (*binding.Registry, error) {
	l := &loader{reg: binding.NewRegistry()}
	steps := []func([]*ast.File) error{
		l.declareNamespaces,
		l.declareClasses,
		l.defineHeaders,
		l.defineMembers,
	}
	for _, step := range steps {
		if err := step(files); err != nil {
			return nil, err
		}
	}
	if err := l.reg.Validate(); err != nil {
		return nil, err
	}
	Logger().Info("declarations loaded",
		zap.Int("files", len(files)),
		zap.Int("namespaces", len(l.reg.Namespaces())),
		zap.Int("classes", len(l.reg.Classes())))
	return l.reg, nil
}

type loader struct {
	reg     *binding.Registry
	classes []*pendingClass
}

// pendingClass tracks a class declaration across passes.
type pendingClass struct {
	file    *ast.File
	decl    *ast.ClassDecl
	ns      *binding.Namespace
	class   *binding.Class
	builder *binding.ClassBuilder
}

func (p *pendingClass) scope(reg *binding.Registry) scope {
	return scope{reg: reg, ns: p.ns, class: p.class}
}

func (p *pendingClass) subject() string {
	return p.decl.QualifiedName(p.ns.Name)
}

func (l *loader) declareNamespaces(files []*ast.File) error {
	for _, f := range files {
		ns := l.reg.Namespace(f.Namespace)
		ns.Include(f.Includes...)
		for _, e := range f.Enums {
			if _, err := ns.Enum(e.Name, e.Values...); err != nil {
				return l.fail(f, ns.Name+"::"+e.Name, err)
			}
		}
		for i := range f.Classes {
			l.classes = append(l.classes, &pendingClass{file: f, decl: &f.Classes[i], ns: ns})
		}
	}
	return nil
}

// declareClasses declares every class once all of its bases are declared.
// A round without progress means a base is unknown or bases form a cycle.
func (l *loader) declareClasses([]*ast.File) error {
	waiting := append([]*pendingClass(nil), l.classes...)
	for len(waiting) > 0 {
		var next []*pendingClass
		var blocked error
		for _, p := range waiting {
			bases, err := l.bases(p)
			if err != nil {
				next = append(next, p)
				if blocked == nil {
					blocked = l.fail(p.file, p.subject(), err)
				}
				continue
			}
			cls, err := p.ns.DeclareClass(p.decl.Name, bases...)
			if err != nil {
				return l.fail(p.file, p.subject(), err)
			}
			p.class = cls
		}
		if len(next) == len(waiting) {
			return blocked
		}
		waiting = next
	}
	return nil
}

func (l *loader) bases(p *pendingClass) ([]*binding.Class, error) {
	s := scope{reg: l.reg, ns: p.ns}
	bases := make([]*binding.Class, 0, len(p.decl.Bases))
	for _, name := range p.decl.Bases {
		b, err := s.classNamed(name)
		if err != nil {
			return nil, fmt.Errorf("base %s: %w", name, err)
		}
		bases = append(bases, b)
	}
	return bases, nil
}

func (l *loader) defineHeaders([]*ast.File) error {
	for _, p := range l.classes {
		b, err := p.class.Define()
		if err != nil {
			return l.fail(p.file, p.subject(), err)
		}
		p.builder = b
		if p.decl.RealName != "" {
			b.RealName(p.decl.RealName)
		}
		b.Include(p.decl.Includes...)
		for _, e := range p.decl.Enums {
			if _, err := b.AddEnum(e.Name, e.Values...); err != nil {
				return l.fail(p.file, p.subject(), err)
			}
		}
	}
	return nil
}

func (l *loader) defineMembers(files []*ast.File) error {
	for _, p := range l.classes {
		if err := l.defineClass(p); err != nil {
			return err
		}
	}
	for _, f := range files {
		ns, _ := l.reg.Lookup(f.Namespace)
		s := scope{reg: l.reg, ns: ns}
		for i := range f.Functions {
			d := &f.Functions[i]
			if err := l.function(s, d); err != nil {
				return l.fail(f, ns.Name+"::"+d.Name, err)
			}
		}
	}
	return nil
}

func (l *loader) defineClass(p *pendingClass) error {
	s := p.scope(l.reg)
	for _, name := range p.decl.Downcast {
		d, err := s.classNamed(name)
		if err != nil {
			return l.fail(p.file, p.subject(), fmt.Errorf("downcast %s: %w", name, err))
		}
		p.builder.Downcast(d)
	}

	for i := range p.decl.Methods {
		d := &p.decl.Methods[i]
		subject := p.subject() + "::" + d.Name
		m, err := l.method(s, d)
		if err != nil {
			return l.fail(p.file, subject, err)
		}
		target := m
		if existing, ok := p.class.Method(d.Name); ok {
			target = existing
			err = existing.Merge(m)
		} else {
			err = p.builder.AddMethod(d.Name, m)
		}
		if err != nil {
			return l.fail(p.file, subject, err)
		}
		setFlags(target, d)
	}

	for i := range p.decl.Hooks {
		d := &p.decl.Hooks[i]
		h, err := hook(s, d)
		if err != nil {
			return l.fail(p.file, p.subject()+"::"+d.Name, err)
		}
		if err := p.builder.AddCustomHook(h); err != nil {
			return l.fail(p.file, p.subject()+"::"+d.Name, err)
		}
	}

	p.builder.Finish()
	return nil
}

type signature struct {
	ret  binding.Type
	args []binding.Type
}

func signatures(s scope, d *ast.MethodDecl) ([]signature, error) {
	decls := append([]ast.SignatureDecl{{Returns: d.Returns, Args: d.Args}}, d.Overloads...)
	out := make([]signature, 0, len(decls))
	for _, sd := range decls {
		ret, err := s.typeOf(sd.Returns)
		if err != nil {
			return nil, err
		}
		sig := signature{ret: ret}
		for _, a := range sd.Args {
			t, err := s.typeOf(a)
			if err != nil {
				return nil, err
			}
			if binding.IsVoid(t) {
				return nil, fmt.Errorf("argument type cannot be Void")
			}
			sig.args = append(sig.args, t)
		}
		out = append(out, sig)
	}
	return out, nil
}

// method builds an unattached class member from its declaration.
func (l *loader) method(s scope, d *ast.MethodDecl) (*binding.Method, error) {
	kind, ok := binding.ParseMethodKind(d.Kind)
	if !ok {
		return nil, fmt.Errorf("unknown method kind %q", d.Kind)
	}
	if d.Native != "" && kind != binding.KindCustomMethod && kind != binding.KindCustomStaticMethod {
		return nil, fmt.Errorf("native applies to custom methods only")
	}
	sigs, err := signatures(s, d)
	if err != nil {
		return nil, err
	}
	first := sigs[0]

	var m *binding.Method
	switch kind {
	case binding.KindMethod:
		m = binding.NewMethod(first.ret, first.args...)
	case binding.KindConstructor:
		if d.Returns != "" {
			return nil, fmt.Errorf("constructors return the class; drop returns")
		}
		m = binding.NewConstructor(first.args...)
	case binding.KindDestructor:
		if len(first.args) > 0 || len(sigs) > 1 {
			return nil, fmt.Errorf("destructor takes no arguments")
		}
		m = binding.NewDestructor()
	case binding.KindStaticMethod:
		m = binding.NewStaticMethod(first.ret, first.args...)
	case binding.KindCustomMethod:
		m = binding.NewCustomMethod(d.Native, first.ret, first.args...)
	case binding.KindCustomStaticMethod:
		m = binding.NewCustomStaticMethod(d.Native, first.ret, first.args...)
	default:
		return nil, fmt.Errorf("%s cannot be a class member", kind)
	}
	for _, sig := range sigs[1:] {
		if err := m.AddSignature(sig.ret, sig.args...); err != nil {
			return nil, err
		}
	}
	if d.RequireOnly != nil {
		if err := m.RequireOnly(*d.RequireOnly); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (l *loader) function(s scope, d *ast.FunctionDecl) error {
	if kind, ok := binding.ParseMethodKind(d.Kind); d.Kind != "" && (!ok || kind != binding.KindFunction) {
		return fmt.Errorf("namespace members must be functions, not %q", d.Kind)
	}
	if d.Native != "" {
		return fmt.Errorf("native applies to custom methods only")
	}
	sigs, err := signatures(s, d)
	if err != nil {
		return err
	}
	fn, err := s.ns.Function(d.Name, sigs[0].ret, sigs[0].args...)
	if err != nil {
		return err
	}
	for _, sig := range sigs[1:] {
		if err := fn.AddSignature(sig.ret, sig.args...); err != nil {
			return err
		}
	}
	if d.RequireOnly != nil {
		if err := fn.RequireOnly(*d.RequireOnly); err != nil {
			return err
		}
	}
	setFlags(fn, d)
	return nil
}

// setFlags applies the options that hold for every signature of a member.
// Merged declarations accumulate them.
func setFlags(m *binding.Method, d *ast.MethodDecl) {
	if d.RealName != "" {
		m.SetRealName(d.RealName)
	}
	if d.Fallible {
		m.SetFallible()
	}
}

func hook(s scope, d *ast.HookDecl) (binding.Hook, error) {
	if d.Snippet != "" {
		if len(d.Branches) > 0 {
			return nil, fmt.Errorf("hook has both a snippet and branches")
		}
		return &binding.SnippetHook{Name: d.Name, Static: d.Static, SnippetID: d.Snippet}, nil
	}
	if len(d.Branches) == 0 {
		return nil, fmt.Errorf("hook needs a snippet or branches")
	}
	h := &binding.TemplateHook{Name: d.Name, Static: d.Static}
	for _, bd := range d.Branches {
		if bd.Target == "" {
			return nil, fmt.Errorf("hook branch has no target")
		}
		cond, err := s.condition(strings.TrimSpace(bd.When))
		if err != nil {
			return nil, err
		}
		br := binding.HookBranch{When: cond, Target: bd.Target}
		for _, t := range bd.Transform {
			tr, err := transform(t)
			if err != nil {
				return nil, err
			}
			br.Transform = append(br.Transform, tr)
		}
		h.Branches = append(h.Branches, br)
	}
	return h, nil
}

// fail attaches the declaration subject to err. Errors raised by the
// binding model already carry one and pass through unchanged.
func (l *loader) fail(f *ast.File, subject string, err error) error {
	Logger().Debug("declaration rejected",
		zap.String("file", f.Filename),
		zap.String("subject", subject),
		zap.Error(err))
	if be, ok := err.(*berrors.Error); ok {
		return be
	}
	return berrors.New(berrors.PhaseLoad, berrors.KindDeclaration).
		Subject(subject).
		Detail("%s: %s", f.Filename, err).
		Build()
}
