package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/vmgen/api"
)

const project = `
output   = "gen"
package  = "views"
cache    = "artifacts.db"
capacity = 1024

viewmodel "Person" {
  schema   = "person.json"
  behavior = "person_behavior.go"
}

viewmodel "Order" {
  schema  = "/abs/order.json"
  package = "orders"
  base    = "order"
}
`

func TestDecode(t *testing.T) {
	p, err := Decode("vmgen.hcl", []byte(project))
	require.NoError(t, err)

	assert.Equal(t, "gen", p.Output)
	assert.Equal(t, "views", p.Package)
	assert.Equal(t, 1024, p.Capacity)
	assert.False(t, p.Check)
	require.Len(t, p.ViewModels, 2)
	assert.Equal(t, api.ViewModel{Name: "Person", Schema: "person.json", Behavior: "person_behavior.go"}, p.ViewModels[0])
	assert.Equal(t, "orders", p.ViewModels[1].Package)
	assert.Equal(t, "order", p.ViewModels[1].Base)
}

func TestLoad_ResolvesPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vmgen.hcl")
	require.NoError(t, os.WriteFile(path, []byte(project), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "gen"), p.Output)
	assert.Equal(t, filepath.Join(dir, "artifacts.db"), p.Cache)
	assert.Equal(t, filepath.Join(dir, "person.json"), p.ViewModels[0].Schema)
	assert.Equal(t, filepath.Join(dir, "person_behavior.go"), p.ViewModels[0].Behavior)
	assert.Equal(t, "/abs/order.json", p.ViewModels[1].Schema)
	assert.Equal(t, "", p.ViewModels[1].Behavior)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"syntax", `output = `, "decode project"},
		{"missing output", `viewmodel "A" { schema = "a.json" }`, "decode project"},
		{"missing schema", "output = \"gen\"\nviewmodel \"A\" {}", "decode project"},
		{"unknown attribute", "output = \"gen\"\ncolour = 1\nviewmodel \"A\" { schema = \"a.json\" }", "decode project"},
		{"no viewmodels", `output = "gen"`, "no viewmodel blocks"},
		{"duplicate", "output = \"gen\"\nviewmodel \"A\" { schema = \"a.json\" }\nviewmodel \"A\" { schema = \"b.json\" }", `viewmodel "A" declared twice`},
		{"negative capacity", "output = \"gen\"\ncapacity = -1\nviewmodel \"A\" { schema = \"a.json\" }", "capacity -1 is negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode("vmgen.hcl", []byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.hcl"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
