// Package ast defines the syntax tree of declaration files. A file declares
// one namespace and may be written in YAML or HCL; both decode into the same
// tree.
package ast

// File is the root of a declaration file.
type File struct {
	// Filename is set by the parser, not decoded.
	Filename  string         `yaml:"-"`
	Namespace string         `yaml:"namespace" hcl:"namespace"`
	Includes  []string       `yaml:"includes,omitempty" hcl:"includes,optional"`
	Enums     []EnumDecl     `yaml:"enums,omitempty" hcl:"enum,block"`
	Classes   []ClassDecl    `yaml:"classes,omitempty" hcl:"class,block"`
	Functions []FunctionDecl `yaml:"functions,omitempty" hcl:"function,block"`
}

// EnumDecl declares an enum and its values in native order.
type EnumDecl struct {
	Name   string   `yaml:"name" hcl:"name,label"`
	Values []string `yaml:"values" hcl:"values"`
}

// ClassDecl declares a class. Bases and downcast targets are class names,
// qualified with "::" when they live in another namespace.
type ClassDecl struct {
	Name     string       `yaml:"name" hcl:"name,label"`
	RealName string       `yaml:"real_name,omitempty" hcl:"real_name,optional"`
	Bases    []string     `yaml:"bases,omitempty" hcl:"bases,optional"`
	Downcast []string     `yaml:"downcast,omitempty" hcl:"downcast,optional"`
	Includes []string     `yaml:"includes,omitempty" hcl:"includes,optional"`
	Enums    []EnumDecl   `yaml:"enums,omitempty" hcl:"enum,block"`
	Methods  []MethodDecl `yaml:"methods,omitempty" hcl:"method,block"`
	Hooks    []HookDecl   `yaml:"hooks,omitempty" hcl:"hook,block"`
}

// QualifiedName returns "ns::Class".
func (c *ClassDecl) QualifiedName(ns string) string {
	return ns + "::" + c.Name
}

// MethodDecl declares a method with one or more signatures. The first
// signature is written inline; further overloads go in Overloads.
//
// Types are type expressions, e.g. "ownedptr(Module)" or
// "cast(str, ConstStdString)". An empty Returns means void.
type MethodDecl struct {
	Name        string          `yaml:"name" hcl:"name,label"`
	Kind        string          `yaml:"kind,omitempty" hcl:"kind,optional"`
	RealName    string          `yaml:"real_name,omitempty" hcl:"real_name,optional"`
	Native      string          `yaml:"native,omitempty" hcl:"native,optional"`
	Fallible    bool            `yaml:"fallible,omitempty" hcl:"fallible,optional"`
	Returns     string          `yaml:"returns,omitempty" hcl:"returns,optional"`
	Args        []string        `yaml:"args,omitempty" hcl:"args,optional"`
	Overloads   []SignatureDecl `yaml:"overloads,omitempty" hcl:"overload,block"`
	RequireOnly *int            `yaml:"require_only,omitempty" hcl:"require_only,optional"`
}

// FunctionDecl declares a namespace-level function.
type FunctionDecl = MethodDecl

// SignatureDecl is one additional overload.
type SignatureDecl struct {
	Returns string   `yaml:"returns,omitempty" hcl:"returns,optional"`
	Args    []string `yaml:"args,omitempty" hcl:"args,optional"`
}

// HookDecl declares a host-only member. It either names a snippet or lists
// template branches.
type HookDecl struct {
	Name     string       `yaml:"name" hcl:"name,label"`
	Static   bool         `yaml:"static,omitempty" hcl:"static,optional"`
	Snippet  string       `yaml:"snippet,omitempty" hcl:"snippet,optional"`
	Branches []BranchDecl `yaml:"branches,omitempty" hcl:"branch,block"`
}

// BranchDecl is one template branch. When is "always" (the default),
// "noargs()" or "isinstance(i, Class)". Transform lists, per leading
// argument, "pass" or "strlist".
type BranchDecl struct {
	When      string   `yaml:"when,omitempty" hcl:"when,optional"`
	Target    string   `yaml:"target" hcl:"target"`
	Transform []string `yaml:"transform,omitempty" hcl:"transform,optional"`
}
