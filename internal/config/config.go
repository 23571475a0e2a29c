// Package config loads vmgen project files.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/agentic-research/vmgen/api"
)

// Load reads the project file at path. Relative paths inside it are
// resolved against the file's directory.
func Load(path string) (*api.Project, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project %s: %w", path, err)
	}
	p, err := Decode(path, src)
	if err != nil {
		return nil, err
	}
	resolve(p, filepath.Dir(path))
	return p, nil
}

// Decode parses HCL project source. filename is used in diagnostics and
// must end in .hcl.
func Decode(filename string, src []byte) (*api.Project, error) {
	var p api.Project
	if err := hclsimple.Decode(filename, src, nil, &p); err != nil {
		return nil, fmt.Errorf("decode project: %w", err)
	}
	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the constraints the HCL schema cannot express.
func Validate(p *api.Project) error {
	if p.Output == "" {
		return fmt.Errorf("project: output is empty")
	}
	if p.Capacity < 0 {
		return fmt.Errorf("project: capacity %d is negative", p.Capacity)
	}
	if len(p.ViewModels) == 0 {
		return fmt.Errorf("project: no viewmodel blocks")
	}
	seen := make(map[string]bool, len(p.ViewModels))
	for _, v := range p.ViewModels {
		if seen[v.Name] {
			return fmt.Errorf("project: viewmodel %q declared twice", v.Name)
		}
		seen[v.Name] = true
		if v.Schema == "" {
			return fmt.Errorf("project: viewmodel %q has no schema", v.Name)
		}
	}
	return nil
}

func resolve(p *api.Project, dir string) {
	abs := func(s string) string {
		if s == "" || filepath.IsAbs(s) {
			return s
		}
		return filepath.Join(dir, s)
	}
	p.Output = abs(p.Output)
	p.Cache = abs(p.Cache)
	for i := range p.ViewModels {
		v := &p.ViewModels[i]
		v.Schema = abs(v.Schema)
		v.Behavior = abs(v.Behavior)
	}
}
