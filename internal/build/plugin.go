package build

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"plugin"
	"regexp"
	"strconv"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/agentic-research/vmgen/vm"
)

const modulePath = "github.com/agentic-research/vmgen"

// Plugin compiles unit sources with the go tool as shared objects and
// loads them into the running process. The host binary and Root must be
// the same vmgen module version, as plugin.Open requires.
type Plugin struct {
	// Root is the directory of the vmgen module the plugin builds against.
	Root string
	// Go is the go command; defaults to "go" on PATH.
	Go string
	// Dir holds work directories; defaults to os.TempDir.
	Dir string
	// Options are passed to the loaded codec constructor.
	Options []vm.CodecOption
}

func (b Plugin) Build(ctx context.Context, u *Unit) (vm.Codec, error) {
	class := u.Class().Name
	work, err := os.MkdirTemp(b.Dir, "vmgen-"+class+"-")
	if err != nil {
		return nil, fmt.Errorf("plugin work dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(work) }()

	if err := b.writeModule(work, u.Source); err != nil {
		return nil, err
	}

	goBin := b.Go
	if goBin == "" {
		goBin = "go"
	}
	out := filepath.Join(work, "codec.so")
	cmd := exec.CommandContext(ctx, goBin, "build", "-buildmode=plugin", "-o", out, ".")
	cmd.Dir = work
	cmd.Env = append(os.Environ(), "GOFLAGS=-mod=mod")
	if output, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("build %s plugin: %w", class, ctx.Err())
		}
		diags := compilerDiagnostics(output)
		if len(diags) == 0 {
			diags = []Diagnostic{{Message: fmt.Sprintf("%v: %s", err, bytes.TrimSpace(output))}}
		}
		return nil, &CompilationError{Class: class, Diagnostics: diags}
	}

	p, err := plugin.Open(out)
	if err != nil {
		return nil, fmt.Errorf("load %s plugin: %w", class, err)
	}
	sym, err := p.Lookup("New" + class + "Codec")
	if err != nil {
		return nil, fmt.Errorf("load %s plugin: %w", class, err)
	}
	ctor, ok := sym.(func(...vm.CodecOption) vm.Codec)
	if !ok {
		return nil, fmt.Errorf("load %s plugin: New%sCodec has type %T", class, class, sym)
	}
	return ctor(b.Options...), nil
}

// writeModule lays out a main package that requires the local vmgen module.
func (b Plugin) writeModule(dir string, src []byte) error {
	root, err := filepath.Abs(b.Root)
	if err != nil {
		return fmt.Errorf("plugin root: %w", err)
	}
	fs := osfs.New(dir)

	gomod := fmt.Sprintf("module vmgenplugin\n\ngo 1.25\n\nrequire %s v0.0.0\n\nreplace %s => %s\n",
		modulePath, modulePath, strconv.Quote(root))
	if err := util.WriteFile(fs, "go.mod", []byte(gomod), 0o644); err != nil {
		return fmt.Errorf("write plugin go.mod: %w", err)
	}
	if sum, err := os.ReadFile(filepath.Join(root, "go.sum")); err == nil {
		if err := util.WriteFile(fs, "go.sum", sum, 0o644); err != nil {
			return fmt.Errorf("write plugin go.sum: %w", err)
		}
	}
	if err := util.WriteFile(fs, "codec.go", src, 0o644); err != nil {
		return fmt.Errorf("write plugin source: %w", err)
	}
	return nil
}

var compilerLine = regexp.MustCompile(`^\S+\.go:(\d+):(\d+): (.*)$`)

// compilerDiagnostics picks "file.go:line:col: message" lines out of go
// build output.
func compilerDiagnostics(output []byte) []Diagnostic {
	var diags []Diagnostic
	sc := bufio.NewScanner(bytes.NewReader(output))
	for sc.Scan() {
		m := compilerLine.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		line, _ := strconv.Atoi(m[1])
		col, _ := strconv.Atoi(m[2])
		diags = append(diags, Diagnostic{Line: line, Column: col, Message: m[3]})
	}
	return diags
}
