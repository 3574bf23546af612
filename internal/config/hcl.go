package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// evalContext exposes a few build constants to configuration files so they
// can interpolate things like "redox-${target}".
func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"target":  cty.StringVal(DefaultTarget),
			"version": cty.StringVal(Version),
		},
	}
}

// LoadOverlay reads a partial configuration from path. Files ending in .hcl
// use HCL native syntax; .json files are decoded as plain JSON documents with
// the same shape the bridge protocol uses.
func LoadOverlay(path string) (*Overlay, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		return loadHCLOverlay(path)
	case ".json":
		return loadJSONOverlay(path)
	default:
		return nil, fmt.Errorf("unsupported config format %q (want .hcl or .json)", filepath.Ext(path))
	}
}

func loadHCLOverlay(path string) (*Overlay, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing %s: %w", path, diags)
	}

	var overlay Overlay
	if diags := gohcl.DecodeBody(file.Body, evalContext(), &overlay); diags.HasErrors() {
		return nil, fmt.Errorf("decoding %s: %w", path, diags)
	}
	if err := overlay.normalize(); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &overlay, nil
}

func loadJSONOverlay(path string) (*Overlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ParseJSONOverlay(data)
}

// ParseJSONOverlay decodes an overlay from a raw JSON document, the form used
// by bridge requests. Unknown fields are rejected so typos surface instead of
// silently doing nothing.
func ParseJSONOverlay(data []byte) (*Overlay, error) {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()

	var overlay Overlay
	if err := dec.Decode(&overlay); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := overlay.normalize(); err != nil {
		return nil, err
	}
	return &overlay, nil
}
