package ast

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"gopkg.in/yaml.v3"

	berrors "github.com/chazu/capsulegen/pkg/errors"
)

// ParseFile reads a declaration file, choosing the syntax by extension:
// .hcl for HCL, .yaml or .yml for YAML.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, loadError(path, err, "failed to read declaration file")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		return ParseHCL(data, path)
	case ".yaml", ".yml":
		return ParseYAML(data, path)
	default:
		return nil, berrors.New(berrors.PhaseLoad, berrors.KindDeclaration).
			Subject(path).
			Detail("unknown declaration file extension %q", filepath.Ext(path)).
			Build()
	}
}

// ParseYAML decodes a YAML declaration. Unknown keys are rejected.
func ParseYAML(data []byte, filename string) (*File, error) {
	var file File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, loadError(filename, err, "failed to decode YAML")
	}
	return finish(&file, filename)
}

// ParseHCL decodes an HCL declaration.
func ParseHCL(data []byte, filename string) (*File, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, loadError(filename, diags, "failed to parse HCL")
	}
	var file File
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &file); diags.HasErrors() {
		return nil, loadError(filename, diags, "failed to decode HCL")
	}
	return finish(&file, filename)
}

func finish(file *File, filename string) (*File, error) {
	file.Filename = filename
	if file.Namespace == "" {
		return nil, berrors.New(berrors.PhaseLoad, berrors.KindDeclaration).
			Subject(filename).
			Detail("namespace is required").
			Build()
	}
	return file, nil
}

func loadError(filename string, cause error, msg string) error {
	return berrors.New(berrors.PhaseLoad, berrors.KindDeclaration).
		Subject(filename).
		Cause(cause).
		Detail("%s", msg).
		Build()
}
