package decl_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/capsulegen/pkg/ast"
	"github.com/chazu/capsulegen/pkg/binding"
	"github.com/chazu/capsulegen/pkg/codegen"
	"github.com/chazu/capsulegen/pkg/decl"
	berrors "github.com/chazu/capsulegen/pkg/errors"
)

func mustLoad(t *testing.T, paths ...string) *binding.Registry {
	t.Helper()
	reg, err := decl.Load(paths...)
	if err != nil {
		t.Fatalf("Load(%v) error = %v", paths, err)
	}
	return reg
}

func mustClass(t *testing.T, reg *binding.Registry, name string) *binding.Class {
	t.Helper()
	c, ok := reg.FindClass(name)
	if !ok {
		t.Fatalf("class %s not found", name)
	}
	return c
}

func mustMethod(t *testing.T, c *binding.Class, name string) *binding.Method {
	t.Helper()
	m, ok := c.Method(name)
	if !ok {
		t.Fatalf("%s has no method %s", c.FullName(), name)
	}
	return m
}

func TestLoad_Linker(t *testing.T) {
	reg := mustLoad(t, "testdata/linker.yaml")
	ns, ok := reg.Lookup("llvm")
	if !ok {
		t.Fatal("namespace llvm not registered")
	}
	if diff := cmp.Diff([]string{"llvm/Linker.h"}, ns.Includes); diff != "" {
		t.Errorf("namespace includes mismatch (-want +got):\n%s", diff)
	}

	linker := mustClass(t, reg, "llvm::Linker")
	module := mustClass(t, reg, "llvm::Module")
	if diff := cmp.Diff([]string{"llvm/IR/Module.h"}, module.Includes); diff != "" {
		t.Errorf("class includes mismatch (-want +got):\n%s", diff)
	}

	mode, ok := linker.Enum("LinkerMode")
	if !ok {
		t.Fatal("Linker has no LinkerMode enum")
	}
	if got := mustMethod(t, linker, "getMode").Signatures[0].Return; got != binding.Type(mode) {
		t.Errorf("getMode returns %v, want %v", got, mode)
	}

	withModule := mustMethod(t, linker, "_new_with")
	if withModule.Kind != binding.KindConstructor {
		t.Errorf("_new_with kind = %v, want constructor", withModule.Kind)
	}
	if got := withModule.Signatures[0].Return.FullName(); got != "llvm::Linker*" {
		t.Errorf("constructor returns %s, want llvm::Linker*", got)
	}

	link := mustMethod(t, linker, "linkInModule")
	if !link.Fallible() {
		t.Error("linkInModule should be fallible")
	}
	if diff := cmp.Diff([]int{2, 1}, link.Arities()); diff != "" {
		t.Errorf("linkInModule arities mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0}, binding.OwnedArgs(link.Signatures[1])); diff != "" {
		t.Errorf("owned args mismatch (-want +got):\n%s", diff)
	}

	setTags := mustMethod(t, linker, "_setTags")
	if setTags.Kind != binding.KindCustomMethod || setTags.NativeName != "llvm_Linker_setTags" {
		t.Errorf("_setTags = %v %q, want custom llvm_Linker_setTags", setTags.Kind, setTags.NativeName)
	}

	ident := mustMethod(t, module, "getModuleIdentifier").Signatures[0].Return
	cast, ok := ident.(*binding.Cast)
	if !ok || cast.Host != binding.HostStr || cast.Native != binding.Type(binding.ConstStdString) {
		t.Errorf("getModuleIdentifier returns %#v, want cast(str, ConstStdString)", ident)
	}

	verify := ns.Functions()[0]
	if diff := cmp.Diff([]int{2, 1}, verify.Arities()); diff != "" {
		t.Errorf("verifyModule arities mismatch (-want +got):\n%s", diff)
	}
	if got := verify.Signatures[0].Args[0].FullName(); got != "const llvm::Module&" {
		t.Errorf("verifyModule arg 0 = %s, want const llvm::Module&", got)
	}
}

func TestLoad_Hooks(t *testing.T) {
	reg := mustLoad(t, "testdata/linker.yaml")
	linker := mustClass(t, reg, "llvm::Linker")
	module := mustClass(t, reg, "llvm::Module")

	h, ok := linker.Hook("new")
	if !ok {
		t.Fatal("Linker has no new hook")
	}
	newHook, ok := h.(*binding.TemplateHook)
	if !ok {
		t.Fatalf("new hook is %T, want *binding.TemplateHook", h)
	}
	want := &binding.TemplateHook{
		Name:   "new",
		Static: true,
		Branches: []binding.HookBranch{
			{When: binding.NoArgs{}, Target: "_new_empty"},
			{When: binding.ArgIsInstance{Index: 0, Class: module}, Target: "_new_with"},
		},
	}
	if newHook.Name != want.Name || !newHook.Static || len(newHook.Branches) != 2 {
		t.Fatalf("new hook = %+v", newHook)
	}
	for i, br := range want.Branches {
		got := newHook.Branches[i]
		if got.When != br.When || got.Target != br.Target {
			t.Errorf("branch %d = %+v, want %+v", i, got, br)
		}
	}

	h, _ = linker.Hook("setTags")
	tags := h.(*binding.TemplateHook)
	if _, ok := tags.Branches[0].When.(binding.Always); !ok {
		t.Errorf("setTags condition = %T, want Always", tags.Branches[0].When)
	}
	if diff := cmp.Diff([]binding.ArgTransform{binding.StrList}, tags.Branches[0].Transform); diff != "" {
		t.Errorf("setTags transform mismatch (-want +got):\n%s", diff)
	}

	h, _ = linker.Hook("describe")
	if sh, ok := h.(*binding.SnippetHook); !ok || sh.SnippetID != "linker.describe" {
		t.Errorf("describe hook = %#v, want snippet linker.describe", h)
	}
}

func TestLoad_CrossFileOrder(t *testing.T) {
	// ir.yaml derives from a class declared in core.hcl, which comes later.
	reg := mustLoad(t, "testdata/ir.yaml", "testdata/core.hcl", "testdata/linker.yaml")

	value := mustClass(t, reg, "llvm::core::Value")
	user := mustClass(t, reg, "llvm::core::User")
	inst := mustClass(t, reg, "llvm::ir::Instruction")

	if inst.Base() != user || user.Base() != value {
		t.Errorf("bases: Instruction -> %v, User -> %v", inst.Base(), user.Base())
	}
	if got := inst.CapsuleName(); got != "llvm::core::Value" {
		t.Errorf("CapsuleName() = %q, want llvm::core::Value", got)
	}
	if len(user.Downcastables) != 1 || user.Downcastables[0] != inst {
		t.Errorf("User downcastables = %v, want [llvm::ir::Instruction]", user.Downcastables)
	}

	create := mustMethod(t, inst, "create")
	kind, _ := value.Enum("Kind")
	if got := create.Signatures[0].Args[0]; got != binding.Type(kind) {
		t.Errorf("create arg = %v, want %v", got, kind)
	}
	if !create.ReturnsOwned() {
		t.Error("create should return an owned pointer")
	}

	operand := mustMethod(t, user, "getOperand")
	if got := operand.Signatures[0].Return; got.FullName() != "llvm::core::Value*" {
		t.Errorf("getOperand returns %s", got.FullName())
	}
}

func TestLoad_MergesRepeatedMethods(t *testing.T) {
	src := `
namespace: ns
classes:
  - name: Buffer
    methods:
      - name: write
        returns: Unsigned
        args: [StdString]
      - name: write
        returns: Unsigned
        args: [StdString, Unsigned]
        real_name: writeBytes
`
	f, err := ast.ParseYAML([]byte(src), "merge.yaml")
	if err != nil {
		t.Fatalf("ParseYAML() error = %v", err)
	}
	reg, err := decl.Build(f)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	write := mustMethod(t, mustClass(t, reg, "ns::Buffer"), "write")
	if diff := cmp.Diff([]int{1, 2}, write.Arities()); diff != "" {
		t.Errorf("arities mismatch (-want +got):\n%s", diff)
	}
	if got := write.RealName(); got != "writeBytes" {
		t.Errorf("RealName() = %q, want writeBytes", got)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantMsg string
	}{
		{
			name: "unknown base",
			src: `
namespace: ns
classes:
  - name: A
    bases: [Missing]
`,
			wantMsg: "unknown class Missing",
		},
		{
			name: "inheritance cycle",
			src: `
namespace: ns
classes:
  - name: A
    bases: [B]
  - name: B
    bases: [A]
`,
			wantMsg: "base B",
		},
		{
			name: "unknown type",
			src: `
namespace: ns
classes:
  - name: A
    methods:
      - name: f
        returns: Widget
`,
			wantMsg: "unknown type Widget",
		},
		{
			name: "unknown kind",
			src: `
namespace: ns
classes:
  - name: A
    methods:
      - name: f
        kind: virtual
`,
			wantMsg: `unknown method kind "virtual"`,
		},
		{
			name: "pointer to builtin",
			src: `
namespace: ns
classes:
  - name: A
    methods:
      - name: f
        args: [ptr(Bool)]
`,
			wantMsg: "Bool is not a class",
		},
		{
			name: "const builtin",
			src: `
namespace: ns
classes:
  - name: A
    methods:
      - name: f
        args: [const(Bool)]
`,
			wantMsg: "const applies to ptr or ref",
		},
		{
			name: "cast without host scalar",
			src: `
namespace: ns
classes:
  - name: A
    methods:
      - name: f
        returns: cast(Unsigned, Bool)
`,
			wantMsg: "cast needs one of",
		},
		{
			name: "void argument",
			src: `
namespace: ns
classes:
  - name: A
    methods:
      - name: f
        args: [Void]
`,
			wantMsg: "argument type cannot be Void",
		},
		{
			name: "native on plain method",
			src: `
namespace: ns
classes:
  - name: A
    methods:
      - name: f
        native: a_f
`,
			wantMsg: "native applies to custom methods only",
		},
		{
			name: "custom without native",
			src: `
namespace: ns
classes:
  - name: A
    methods:
      - name: f
        kind: custom
`,
			wantMsg: "custom method needs a native function name",
		},
		{
			name: "fallible without bool",
			src: `
namespace: ns
classes:
  - name: A
    methods:
      - name: f
        fallible: true
        returns: Unsigned
`,
			wantMsg: "fallible method must return Bool",
		},
		{
			name: "repeated arity",
			src: `
namespace: ns
classes:
  - name: A
    methods:
      - name: f
        args: [Bool]
        overloads:
          - args: [Unsigned]
`,
			wantMsg: "arity 1 repeated",
		},
		{
			name: "duplicate member",
			src: `
namespace: ns
classes:
  - name: A
    enums:
      - name: f
        values: [X]
    methods:
      - name: f
`,
			wantMsg: "duplicate member",
		},
		{
			name: "hook target missing",
			src: `
namespace: ns
classes:
  - name: A
    hooks:
      - name: h
        branches:
          - target: nothing
`,
			wantMsg: `hook target "nothing"`,
		},
		{
			name: "malformed condition",
			src: `
namespace: ns
classes:
  - name: A
    methods:
      - name: f
    hooks:
      - name: h
        branches:
          - when: isinstance(first, A)
            target: f
`,
			wantMsg: "not a non-negative integer",
		},
		{
			name: "unknown transform",
			src: `
namespace: ns
classes:
  - name: A
    methods:
      - name: f
    hooks:
      - name: h
        branches:
          - target: f
            transform: [upper]
`,
			wantMsg: `unknown argument transform "upper"`,
		},
		{
			name: "snippet and branches",
			src: `
namespace: ns
classes:
  - name: A
    methods:
      - name: f
    hooks:
      - name: h
        snippet: a.h
        branches:
          - target: f
`,
			wantMsg: "both a snippet and branches",
		},
		{
			name: "destructor with args",
			src: `
namespace: ns
classes:
  - name: A
    methods:
      - name: delete
        kind: destructor
        args: [Bool]
`,
			wantMsg: "destructor takes no arguments",
		},
		{
			name: "function kind on class",
			src: `
namespace: ns
classes:
  - name: A
    methods:
      - name: f
        kind: function
`,
			wantMsg: "cannot be a class member",
		},
		{
			name: "method kind on namespace",
			src: `
namespace: ns
functions:
  - name: f
    kind: static
`,
			wantMsg: "namespace members must be functions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ast.ParseYAML([]byte(tt.src), tt.name+".yaml")
			if err != nil {
				t.Fatalf("ParseYAML() error = %v", err)
			}
			_, err = decl.Build(f)
			if err == nil {
				t.Fatal("Build() expected error")
			}
			if !errors.Is(err, berrors.ErrDeclaration) {
				t.Errorf("error %v is not a declaration error", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoad_DuplicateClassAcrossFiles(t *testing.T) {
	a, err := ast.ParseYAML([]byte("namespace: ns\nclasses:\n  - name: A\n"), "a.yaml")
	if err != nil {
		t.Fatal(err)
	}
	b, err := ast.ParseYAML([]byte("namespace: ns\nclasses:\n  - name: A\n"), "b.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := decl.Build(a, b); !errors.Is(err, berrors.ErrDeclaration) {
		t.Errorf("Build() error = %v, want declaration error", err)
	}
}

func TestLoad_FeedsGenerator(t *testing.T) {
	reg := mustLoad(t, "testdata/linker.yaml", "testdata/core.hcl", "testdata/ir.yaml")
	res, err := codegen.Generate(reg, codegen.Config{
		GoPackage: "llvmgo",
		Snippets:  map[string]string{"linker.describe": "return 'Linker'"},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	for _, name := range []string{"llvm_glue.cpp", "llvm_core_glue.cpp", "llvm_ir.py", "llvmgo/llvm_core.go"} {
		if _, ok := res.File(name); !ok {
			t.Errorf("missing generated file %s", name)
		}
	}
}
