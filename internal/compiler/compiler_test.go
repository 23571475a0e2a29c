package compiler

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/vmgen/internal/behavior"
	"github.com/agentic-research/vmgen/internal/build"
	"github.com/agentic-research/vmgen/internal/model"
	"github.com/agentic-research/vmgen/internal/store"
	"github.com/agentic-research/vmgen/schema"
	"github.com/agentic-research/vmgen/vm"
)

const personSchema = `{
  "name": "Person",
  "properties": [
    {"name": "FirstName", "kind": "string", "default": "Jane"},
    {"name": "LastName", "kind": "string"},
    {"name": "Age", "kind": "integer"},
    {"name": "Items", "kind": "array", "properties": [{"name": "Name", "kind": "string"}]}
  ]
}`

const personBehavior = `package people

func (p Person) LastName() string { return "Doe" }

func (p Person) HandleAge(v int) {}

// Nickname takes a parameter, so it binds to nothing.
func (p Person) Nickname(x int) string { return "" }
`

func TestGenerate(t *testing.T) {
	c := New(nil, nil)
	res, err := c.Generate(context.Background(), Request{Schema: []byte(personSchema), Behavior: []byte(personBehavior)})
	require.NoError(t, err)

	assert.Equal(t, "Person", res.Model.RootClass().Name)
	require.Len(t, res.Files, 2)
	assert.Equal(t, "person_codec.go", res.Files[0].Name)
	assert.Contains(t, string(res.Files[1].Content), "package people")
	assert.False(t, res.Cached)
	assert.Nil(t, res.Codec)

	require.Len(t, res.Lint, 1)
	assert.Contains(t, res.Lint[0].Message, "Nickname")
}

func TestGenerate_Errors(t *testing.T) {
	c := New(nil, nil)
	ctx := context.Background()

	_, err := c.Generate(ctx, Request{Schema: []byte(`{"name":`)})
	var se *schema.SchemaParseError
	assert.ErrorAs(t, err, &se)

	_, err = c.Generate(ctx, Request{Schema: []byte(`{"name":"A","properties":[{"name":"X","kind":"float","default":1e400}]}`)})
	assert.ErrorAs(t, err, &se)

	_, err = c.Generate(ctx, Request{Schema: []byte(personSchema), Behavior: []byte("package p\nfunc (")})
	var be *behavior.BehaviorParseError
	assert.ErrorAs(t, err, &be)

	_, err = c.Generate(ctx, Request{
		Schema:   []byte(personSchema),
		Behavior: []byte("package p\n\nfunc (p Person) Foo() string { return \"\" }\n"),
	})
	var me *model.CodeBehindMismatchError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "Foo", me.Path)
}

func TestCompile(t *testing.T) {
	c := New(nil, nil)
	res, err := c.Compile(context.Background(), Request{Schema: []byte(personSchema)})
	require.NoError(t, err)
	require.NotNil(t, res.Codec)

	in := vm.New(res.Codec.Template())
	in.SetInt(2, 41)
	in.Append(3).SetString(0, "pen")
	data := res.Codec.EncodeFull(in)
	assert.Equal(t, `{"FirstName":"Jane","LastName":"","Age":41,"Items":[{"Name":"pen"}]}`, string(data))

	out, err := res.Codec.Decode(data)
	require.NoError(t, err)
	assert.True(t, vm.Equal(in, out))
}

func TestCompile_SharesCodecs(t *testing.T) {
	cache := build.NewCache(build.Interp{})
	c := New(cache, nil)
	ctx := context.Background()
	a, err := c.Compile(ctx, Request{Schema: []byte(personSchema)})
	require.NoError(t, err)
	b, err := c.Compile(ctx, Request{Schema: []byte(personSchema), Package: "other"})
	require.NoError(t, err)
	assert.Same(t, a.Codec, b.Codec)
	assert.Equal(t, 1, cache.Len())
}

func TestGenerate_Store(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "artifacts.db"))
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	c := New(nil, st)
	ctx := context.Background()
	req := Request{Schema: []byte(personSchema), Behavior: []byte(personBehavior)}

	first, err := c.Generate(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := c.Generate(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Files, second.Files)

	req.Package = "main"
	third, err := c.Generate(ctx, req)
	require.NoError(t, err)
	assert.False(t, third.Cached, "emit options are part of the key")

	entries, err := st.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
