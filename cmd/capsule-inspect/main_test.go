package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCmdTokenize(t *testing.T) {
	var buf bytes.Buffer
	if err := cmdTokenize(&buf, "ptr(llvm::Module)"); err != nil {
		t.Fatalf("cmdTokenize() error = %v", err)
	}
	var tokens []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(buf.Bytes(), &tokens); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	var types []string
	for _, tok := range tokens {
		types = append(types, tok.Type)
	}
	want := []string{"IDENTIFIER", "LPAREN", "IDENTIFIER", "NAMESPACE_SEP", "IDENTIFIER", "RPAREN", "EOF"}
	if diff := cmp.Diff(want, types); diff != "" {
		t.Errorf("token types mismatch (-want +got):\n%s", diff)
	}
}

func TestCmdParse(t *testing.T) {
	var buf bytes.Buffer
	if err := cmdParse(&buf, "cast(str, Linker.Mode)"); err != nil {
		t.Fatalf("cmdParse() error = %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"kind": "call",
		"func": "cast",
		"args": []any{
			map[string]any{"kind": "name", "path": []any{"str"}},
			map[string]any{"kind": "name", "path": []any{"Linker"}, "member": "Mode"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parse tree mismatch (-want +got):\n%s", diff)
	}

	if err := cmdParse(&buf, "ptr(Module"); err == nil {
		t.Error("cmdParse() of unbalanced expression succeeded")
	}
}

func TestCmdEntries(t *testing.T) {
	var buf bytes.Buffer
	if err := cmdEntries(&buf, []string{"../../pkg/decl/testdata/linker.yaml"}); err != nil {
		t.Fatalf("cmdEntries() error = %v", err)
	}
	var got []entryInfo
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	byEntry := make(map[string]entryInfo)
	for _, e := range got {
		byEntry[e.Entry] = e
	}

	want := map[string]entryInfo{
		"llvm_Linker_linkInModule": {
			Entry:     "llvm_Linker_linkInModule",
			Symbol:    "llvm::Linker::linkInModule",
			Owner:     "llvm::Linker",
			Arities:   []int{2, 1},
			Fallible:  true,
			OwnedArgs: true,
		},
		"llvm_Linker__new_with": {
			Entry:   "llvm_Linker__new_with",
			Symbol:  "new llvm::Linker",
			Owner:   "llvm::Linker",
			Arities: []int{1},
			Owned:   true,
		},
		"llvm_verifyModule": {
			Entry:   "llvm_verifyModule",
			Symbol:  "llvm::verifyModule",
			Owner:   "llvm",
			Arities: []int{2, 1},
		},
	}
	for name, w := range want {
		if diff := cmp.Diff(w, byEntry[name]); diff != "" {
			t.Errorf("entry %s mismatch (-want +got):\n%s", name, diff)
		}
	}
}

func TestCmdEntries_MissingFile(t *testing.T) {
	var buf bytes.Buffer
	err := cmdEntries(&buf, []string{"testdata/none.yaml"})
	if err == nil || !strings.Contains(err.Error(), "none.yaml") {
		t.Errorf("cmdEntries() error = %v", err)
	}
}
