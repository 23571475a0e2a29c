package build

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/packages"

	"github.com/agentic-research/vmgen/internal/emit"
	"github.com/agentic-research/vmgen/vm"
)

// orderMain drives the generated classes and codec the same way
// expectedOutput drives the interpreter.
const orderMain = `package main

import (
	"fmt"
	"os"
)

func main() {
	c := NewOrderCodec()
	o := NewOrder()
	o.SetId(42)
	o.SetCustomer("Ada \"Countess\" Lovelace")
	o.SetTotal(12.5)
	o.SetPaid(true)
	o.Ship().SetCity("Oslo")
	for i, s := range []string{"a", "b", "c"} {
		l := o.AddLines()
		l.SetSku(s)
		l.SetQty(int64(i + 1))
	}
	o.Lines(1).AddNotes().SetText("gift")
	o.Lines(1).AddNotes().SetText("wrap")
	fmt.Println(string(c.EncodeFull(o.In)))

	o.Lines(1).SetQty(7)
	o.Ship().SetCity("Bergen")
	fmt.Println(string(c.EncodeDelta(o.In)))

	d, err := DecodeOrder(c, c.EncodeFull(o.In))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(string(c.EncodeFull(d.In)))
}
`

func expectedOutput(t *testing.T) string {
	t.Helper()
	c := interpCodec(t)
	in := sample(c)
	var out strings.Builder
	out.Write(c.EncodeFull(in))
	out.WriteByte('\n')

	in.Array(lines)[1].SetInt(qty, 7)
	in.Object(ship).SetString(0, "Bergen")
	out.Write(c.EncodeDelta(in))
	out.WriteByte('\n')

	d, err := c.Decode(c.EncodeFull(in))
	require.NoError(t, err)
	require.True(t, vm.Equal(in, d))
	out.Write(c.EncodeFull(d))
	out.WriteByte('\n')
	return out.String()
}

// emittedPackage writes the generated files plus orderMain into a
// package directory inside this module.
func emittedPackage(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("runs the go tool")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go tool not on PATH")
	}
	u := unit(t, "")
	files, err := emit.Emit(u.Model, u.Program, emit.Options{Package: "main"})
	require.NoError(t, err)
	files = append(files, emit.File{Name: "main.go", Content: []byte(orderMain)})

	require.NoError(t, os.MkdirAll("testdata", 0o755))
	dir, err := os.MkdirTemp("testdata", "emitted")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = os.RemoveAll(dir)
		_ = os.Remove("testdata")
	})
	require.NoError(t, emit.WriteFiles(osfs.New(dir), ".", files))

	abs, err := filepath.Abs(dir)
	require.NoError(t, err)
	return abs
}

func TestEmitted_TypeChecks(t *testing.T) {
	dir := emittedPackage(t)

	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedSyntax |
			packages.NeedTypes | packages.NeedTypesInfo,
		Dir: dir,
		Env: append(os.Environ(), "GOFLAGS=-mod=mod"),
	}
	pkgs, err := packages.Load(cfg, ".")
	require.NoError(t, err)
	require.Len(t, pkgs, 1)

	var errs []string
	packages.Visit(pkgs, nil, func(p *packages.Package) {
		for _, e := range p.Errors {
			errs = append(errs, e.Error())
		}
	})
	assert.Empty(t, errs)
	assert.Len(t, pkgs[0].GoFiles, 3)
	assert.NotNil(t, pkgs[0].Types.Scope().Lookup("NewOrderCodec"))
}

func TestEmitted_MatchesInterp(t *testing.T) {
	dir := emittedPackage(t)

	cmd := exec.Command("go", "run", ".")
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GOFLAGS=-mod=mod")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	require.NoError(t, err, stderr.String())

	want := expectedOutput(t)
	assert.Equal(t, want, string(out))
	assert.True(t, strings.HasPrefix(want, sampleJSON+"\n"))
}
