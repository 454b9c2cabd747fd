// Package config loads optional run settings from an HCL file: paths,
// worker count, log options, and per-job parameter overrides. Command
// line flags take precedence over the file; the file takes precedence
// over built-in defaults. The merge itself happens in the app layer.
package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Settings mirrors the settings block of a pipeline config file. Zero
// values mean "not set" and are skipped during the merge.
type Settings struct {
	WorkDir   string `hcl:"work_dir,optional"`
	Database  string `hcl:"database,optional"`
	Workers   int    `hcl:"workers,optional"`
	LogLevel  string `hcl:"log_level,optional"`
	LogFormat string `hcl:"log_format,optional"`
}

// File is the decoded content of one pipeline config file.
type File struct {
	Settings Settings

	// Overrides maps job name to parameter overrides declared in job
	// blocks. They are merged over each job's ConfigFactory output.
	Overrides map[string]map[string]any
}

var fileSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "settings"},
		{Type: "job", LabelNames: []string{"name"}},
	},
}

// Load parses and decodes the HCL file at path.
func Load(path string) (*File, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %s: %w", path, diags)
	}

	content, diags := hclFile.Body.Content(fileSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("decode %s: %w", path, diags)
	}

	file := &File{Overrides: make(map[string]map[string]any)}
	for _, block := range content.Blocks {
		switch block.Type {
		case "settings":
			if diags := gohcl.DecodeBody(block.Body, nil, &file.Settings); diags.HasErrors() {
				return nil, fmt.Errorf("decode settings block: %w", diags)
			}
		case "job":
			name := block.Labels[0]
			if _, dup := file.Overrides[name]; dup {
				return nil, fmt.Errorf("duplicate job block %q in %s", name, path)
			}
			params, err := decodeJobBlock(block)
			if err != nil {
				return nil, err
			}
			file.Overrides[name] = params
		}
	}
	return file, nil
}

// decodeJobBlock turns every attribute of a job block into a parameter
// override, converting the HCL value to its plain Go representation.
func decodeJobBlock(block *hcl.Block) (map[string]any, error) {
	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("decode job block %q: %w", block.Labels[0], diags)
	}

	params := make(map[string]any, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("evaluate %s of job %q: %w", name, block.Labels[0], diags)
		}
		converted, err := ctyToGo(val)
		if err != nil {
			return nil, fmt.Errorf("parameter %s of job %q: %w", name, block.Labels[0], err)
		}
		params[name] = converted
	}
	return params, nil
}
