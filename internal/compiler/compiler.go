// Package compiler drives code generation: schema and behavior source in,
// generated files and a working codec out.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cespare/xxhash/v2"

	"github.com/agentic-research/vmgen/internal/behavior"
	"github.com/agentic-research/vmgen/internal/bufop"
	"github.com/agentic-research/vmgen/internal/build"
	"github.com/agentic-research/vmgen/internal/emit"
	"github.com/agentic-research/vmgen/internal/model"
	"github.com/agentic-research/vmgen/internal/store"
	"github.com/agentic-research/vmgen/schema"
	"github.com/agentic-research/vmgen/vm"
)

// Request is one view-model to generate.
type Request struct {
	Schema []byte
	// Behavior is the Go override source; empty means none.
	Behavior []byte
	// Class names the root class. Defaults to the schema root name.
	Class   string
	Package string
	Base    string
}

// Result holds the stages' outputs.
type Result struct {
	Model   *model.Model
	Program *bufop.Program
	Files   []emit.File
	// Lint holds warnings about override source that will not bind.
	Lint []behavior.Diagnostic
	// Cached is set when Files came from the artifact store.
	Cached bool
	// Codec is set by Compile.
	Codec vm.Codec
}

// Compiler runs the generation pipeline. It is safe for concurrent use.
type Compiler struct {
	Builder build.Builder
	// Store, if set, caches generated files by fingerprint.
	Store *store.Store
}

// New returns a compiler building with b. A nil b uses the syntax-checked
// interpreter behind a codec cache.
func New(b build.Builder, st *store.Store) *Compiler {
	if b == nil {
		b = build.NewCache(build.Checked{Next: build.Interp{}})
	}
	return &Compiler{Builder: b, Store: st}
}

// Model parses and merges the request without emitting.
func (c *Compiler) Model(req Request) (*model.Model, []behavior.Diagnostic, error) {
	root, err := schema.Parse(req.Schema)
	if err != nil {
		return nil, nil, err
	}
	class := req.Class
	if class == "" {
		class = model.Exported(root.Name)
	}

	var desc *behavior.Descriptor
	var lint []behavior.Diagnostic
	if len(req.Behavior) > 0 {
		if desc, err = behavior.Analyze(class, req.Behavior); err != nil {
			return nil, nil, err
		}
		if lint, err = behavior.Lint(class, req.Behavior); err != nil {
			return nil, nil, err
		}
	} else {
		desc = behavior.Empty(class)
	}

	m, err := model.Merge(root, desc)
	if err != nil {
		return nil, nil, err
	}
	return m, lint, nil
}

// Generate produces the source files of a view-model.
func (c *Compiler) Generate(ctx context.Context, req Request) (*Result, error) {
	m, lint, err := c.Model(req)
	if err != nil {
		return nil, err
	}
	res := &Result{Model: m, Program: bufop.Lower(m), Lint: lint}
	name := m.RootClass().Name
	key := artifactKey(m, req)

	if c.Store != nil {
		a, err := c.Store.Get(ctx, key)
		switch {
		case err == nil:
			log.Printf("compiler: %s unchanged (%016x)", name, key)
			res.Files, res.Cached = a.Files, true
			return res, nil
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}

	res.Files, err = emit.Emit(m, res.Program, emit.Options{Package: req.Package, Base: req.Base})
	if err != nil {
		return nil, err
	}
	if c.Store != nil {
		if err := c.Store.Put(ctx, store.Artifact{Fingerprint: key, Class: name, Files: res.Files}); err != nil {
			return nil, fmt.Errorf("store %s: %w", name, err)
		}
	}
	return res, nil
}

// Compile generates a view-model and builds its root codec.
func (c *Compiler) Compile(ctx context.Context, req Request) (*Result, error) {
	res, err := c.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	src, err := emit.Format(emit.Codec(res.Model, res.Program, "main"))
	if err != nil {
		return nil, err
	}
	res.Codec, err = c.Builder.Build(ctx, &build.Unit{Source: src, Program: res.Program, Model: res.Model})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// artifactKey extends the model fingerprint with the emit options, which
// change the generated text.
func artifactKey(m *model.Model, req Request) uint64 {
	d := xxhash.New()
	_, _ = fmt.Fprintf(d, "%016x\x00%s\x00%s", m.Fingerprint, req.Package, req.Base)
	return d.Sum64()
}
