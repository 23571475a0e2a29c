package vm

import (
	"math"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/vmgen/schema"
)

const personSchema = `{
  "name": "Person",
  "properties": [
    {"name": "FirstName", "kind": "string", "default": "Jane"},
    {"name": "Age", "kind": "integer", "default": 30},
    {"name": "Score", "kind": "float"},
    {"name": "Active", "kind": "boolean", "default": true},
    {"name": "Address", "kind": "object", "properties": [
      {"name": "Street", "kind": "string"}
    ]},
    {"name": "Items", "kind": "array", "properties": [
      {"name": "Name", "kind": "string"}
    ]}
  ]
}`

const (
	firstName = iota
	age
	score
	active
	address
	items
)

// encodeObject and decodeObject walk the template the way generated
// codecs do, using only the exported runtime primitives.
func encodeObject(w *Writer, in *Instance, mode Mode) {
	w.Try(func() bool { return w.PutByte('{') })
	first := true
	for i, p := range in.Template().Children {
		if !mode.Include(in, i) {
			continue
		}
		w.Try(func() bool { return w.PutName(p.Name, first) })
		first = false
		switch p.Kind {
		case schema.KindString:
			w.Try(func() bool { return w.PutString(in.GetString(i)) })
		case schema.KindInteger:
			w.Try(func() bool { return w.PutInt(in.GetInt(i)) })
		case schema.KindFloat:
			w.Try(func() bool { return w.PutFloat(in.GetFloat(i)) })
		case schema.KindBoolean:
			w.Try(func() bool { return w.PutBool(in.GetBool(i)) })
		case schema.KindObject:
			encodeObject(w, in.Object(i), mode.Child(in, i))
		case schema.KindArray:
			em := mode.Child(in, i)
			w.Try(func() bool { return w.PutByte('[') })
			for j, el := range in.Array(i) {
				if j > 0 {
					w.Try(func() bool { return w.PutByte(',') })
				}
				encodeObject(w, el, em)
			}
			w.Try(func() bool { return w.PutByte(']') })
		}
	}
	w.Try(func() bool { return w.PutByte('}') })
}

func decodeObject(r *Reader, in *Instance) error {
	if err := r.Expect('{'); err != nil {
		return err
	}
	for first := true; ; first = false {
		more, err := r.Next('}', first)
		if err != nil || !more {
			return err
		}
		name, err := r.Name()
		if err != nil {
			return err
		}
		i := in.Index(name)
		if i < 0 || in.Computed(i) {
			if err := r.Skip(); err != nil {
				return err
			}
			continue
		}
		switch in.Template().Children[i].Kind {
		case schema.KindString:
			v, err := r.String()
			if err != nil {
				return err
			}
			in.SetString(i, v)
		case schema.KindInteger:
			v, err := r.Int()
			if err != nil {
				return err
			}
			in.SetInt(i, v)
		case schema.KindFloat:
			v, err := r.Float()
			if err != nil {
				return err
			}
			in.SetFloat(i, v)
		case schema.KindBoolean:
			v, err := r.Bool()
			if err != nil {
				return err
			}
			in.SetBool(i, v)
		case schema.KindObject:
			if err := decodeObject(r, in.Object(i)); err != nil {
				return err
			}
		case schema.KindArray:
			if err := r.Expect('['); err != nil {
				return err
			}
			n := 0
			for f := true; ; f = false {
				more, err := r.Next(']', f)
				if err != nil {
					return err
				}
				if !more {
					break
				}
				if err := decodeObject(r, in.Element(i, n)); err != nil {
					return err
				}
				n++
			}
			in.Truncate(i, n)
		}
	}
}

func newTestCodec(t *testing.T, opts ...CodecOption) (Codec, *schema.Template) {
	t.Helper()
	tmpl, err := schema.Parse([]byte(personSchema))
	require.NoError(t, err)
	return NewCodec(tmpl, encodeObject, decodeObject, opts...), tmpl
}

func TestInstance_Defaults(t *testing.T) {
	c, tmpl := newTestCodec(t)
	in := New(tmpl)

	assert.Equal(t, "Jane", in.GetString(firstName))
	assert.Equal(t, int64(30), in.GetInt(age))
	assert.True(t, in.GetBool(active))
	assert.False(t, in.Dirty(), "new instances start clean")

	assert.Equal(t,
		`{"FirstName":"Jane","Age":30,"Score":0,"Active":true,"Address":{"Street":""},"Items":[]}`,
		string(c.EncodeFull(in)))
}

func TestInstance_KindMisusePanics(t *testing.T) {
	_, tmpl := newTestCodec(t)
	in := New(tmpl)
	assert.Panics(t, func() { in.GetInt(firstName) })
	assert.Panics(t, func() { in.SetString(age, "x") })
	assert.Panics(t, func() { New(tmpl.Children[firstName]) })
}

func TestInstance_DirtyPropagation(t *testing.T) {
	_, tmpl := newTestCodec(t)
	in := New(tmpl)

	in.Object(address).SetString(0, "Main")
	assert.False(t, in.IsDirty(address))
	assert.True(t, in.HasDirtyDescendant(address))
	assert.True(t, in.Object(address).IsDirty(0))

	el := in.Append(items)
	assert.True(t, in.IsDirty(items))
	in.Clean()
	assert.False(t, in.Dirty())
	assert.False(t, in.Object(address).Dirty())

	el.SetString(0, "x")
	assert.False(t, in.IsDirty(items))
	assert.True(t, in.HasDirtyDescendant(items))
}

func TestInstance_RemovedElementDetached(t *testing.T) {
	_, tmpl := newTestCodec(t)
	in := New(tmpl)
	el := in.Append(items)
	in.Append(items)
	in.Clean()

	in.RemoveAt(items, 0)
	in.Clean()
	el.SetString(0, "stale")
	assert.False(t, in.Dirty())
	assert.Equal(t, 1, in.Len(items))
}

func TestInstance_Input(t *testing.T) {
	_, tmpl := newTestCodec(t)
	in := New(tmpl)

	require.NoError(t, in.Input("Age", 41))
	assert.Equal(t, int64(41), in.GetInt(age))
	require.NoError(t, in.Input("Score", int64(2)))
	assert.Equal(t, 2.0, in.GetFloat(score))

	var te *InputTypeError
	require.ErrorAs(t, in.Input("Age", "old"), &te)
	assert.Equal(t, "Age", te.Property)
	require.ErrorAs(t, in.Input("Address", "x"), &te)

	var nf *schema.PathNotFoundError
	require.ErrorAs(t, in.Input("Nope", 1), &nf)
}

func TestAs(t *testing.T) {
	s, err := As[string]("x", "Name")
	require.NoError(t, err)
	assert.Equal(t, "x", s)

	_, err = As[int64]("x", "Age")
	var te *InputTypeError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "int64", te.Want)
}

func TestCodec_DeltaMinimal(t *testing.T) {
	c, tmpl := newTestCodec(t)
	in := New(tmpl)

	assert.Equal(t, `{}`, string(c.EncodeDelta(in)))

	in.SetInt(age, 31)
	assert.Equal(t, `{"Age":31}`, string(c.EncodeDelta(in)))
	assert.Equal(t, `{}`, string(c.EncodeDelta(in)), "markers are cleared by encode")

	in.Object(address).SetString(0, "Main")
	assert.Equal(t, `{"Address":{"Street":"Main"}}`, string(c.EncodeDelta(in)))

	in.Append(items).SetString(0, "a")
	in.Append(items).SetString(0, "b")
	assert.Equal(t, `{"Items":[{"Name":"a"},{"Name":"b"}]}`, string(c.EncodeDelta(in)))

	in.Array(items)[1].SetString(0, "c")
	assert.Equal(t, `{"Items":[{},{"Name":"c"}]}`, string(c.EncodeDelta(in)))
}

func TestCodec_RoundTrip(t *testing.T) {
	c, tmpl := newTestCodec(t)
	in := New(tmpl)
	in.SetString(firstName, "Zoë \"Z\"\n\t\x01")
	in.SetInt(age, -7)
	in.SetFloat(score, 0.1)
	in.SetBool(active, false)
	in.Object(address).SetString(0, "Elm")
	for _, name := range []string{"a", "b", "c"} {
		in.Append(items).SetString(0, name)
	}

	full := c.EncodeFull(in)
	out, err := c.Decode(full)
	require.NoError(t, err)
	assert.True(t, Equal(in, out))
	assert.False(t, out.Dirty())
	assert.Equal(t, string(full), string(c.EncodeFull(out)))
	assert.Equal(t, 3, out.Len(items))
}

func TestCodec_ApplyDoesNotMark(t *testing.T) {
	c, tmpl := newTestCodec(t)
	in := New(tmpl)
	in.Append(items)
	in.Append(items)
	in.Clean()

	require.NoError(t, c.Apply(in, []byte(` { "Age" : 5 , "Items" : [ {}, {"Name":"n"} ] } `)))
	assert.Equal(t, int64(5), in.GetInt(age))
	assert.Equal(t, "n", in.Array(items)[1].GetString(0))
	assert.False(t, in.Dirty())

	in.SetBool(active, false)
	require.NoError(t, c.Apply(in, []byte(`{"Items":[]}`)))
	assert.Equal(t, 0, in.Len(items))
	assert.True(t, in.IsDirty(active), "earlier markers survive apply")
	assert.False(t, in.IsDirty(items))
}

func TestCodec_SameValueWriteMarks(t *testing.T) {
	c, tmpl := newTestCodec(t)
	in := New(tmpl)
	c.EncodeFull(in)
	require.False(t, in.Dirty())

	in.SetInt(age, in.GetInt(age))
	assert.True(t, in.IsDirty(age))
	assert.Equal(t, `{"Age":30}`, string(c.EncodeDelta(in)))

	in.Object(address).SetString(0, in.Object(address).GetString(0))
	assert.True(t, in.HasDirtyDescendant(address))
	assert.Equal(t, `{"Address":{"Street":""}}`, string(c.EncodeDelta(in)))
	assert.Equal(t, `{}`, string(c.EncodeDelta(in)))
}

func TestCodec_UnknownPropertiesSkipped(t *testing.T) {
	c, _ := newTestCodec(t)
	out, err := c.Decode([]byte(`{"Zzz":[1,{"q":null},"s",true,-2.5e3],"Age":4}`))
	require.NoError(t, err)
	assert.Equal(t, int64(4), out.GetInt(age))
}

func TestCodec_InvalidEncoding(t *testing.T) {
	c, _ := newTestCodec(t)
	tests := []struct {
		name   string
		data   string
		offset int
	}{
		{"not object", `[]`, 0},
		{"wrong kind", `{"Age":"x"}`, 7},
		{"missing comma", `{"Age":1 "Score":2}`, 9},
		{"trailing", `{"Age":1} x`, 10},
		{"truncated", `{"Age":1,`, 9},
		{"fractional integer", `{"Age":1.5}`, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decode([]byte(tt.data))
			var ie *InvalidEncodingError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, tt.offset, ie.Offset)
		})
	}
}

func TestCodec_BufferGrowth(t *testing.T) {
	c, tmpl := newTestCodec(t, WithCapacity(1))
	in := New(tmpl)
	long := strings.Repeat("0123456789", 1000)
	in.SetString(firstName, long)
	for i := 0; i < 50; i++ {
		in.Append(items).SetString(0, long[:i])
	}

	full := c.EncodeFull(in)
	out, err := c.Decode(full)
	require.NoError(t, err)
	assert.True(t, Equal(in, out))

	big, _ := newTestCodec(t, WithCapacity(1<<20))
	assert.Equal(t, string(big.EncodeFull(in)), string(full))
}

func TestCodec_Computed(t *testing.T) {
	c, tmpl := newTestCodec(t)
	calls := 0
	in := New(tmpl, WithBinder(func(in *Instance) {
		if in.Template() == tmpl {
			in.Bind(age, func() any { calls++; return int64(99) })
		}
	}))
	assert.Equal(t, int64(99), in.GetInt(age))
	assert.Equal(t, `{"Age":99}`, string(c.EncodeDelta(in)))

	require.NoError(t, c.Apply(in, []byte(`{"Age":1}`)))
	assert.Equal(t, int64(99), in.GetInt(age))
	assert.Positive(t, calls)
}

func TestCodec_ShapeMismatchPanics(t *testing.T) {
	c, _ := newTestCodec(t)
	other := schema.MustParse([]byte(`{"name":"Other","properties":[{"name":"X","kind":"string"}]}`))
	assert.Panics(t, func() { c.EncodeFull(New(other)) })
}

func TestWriter_TryRewinds(t *testing.T) {
	w := NewWriter(4)
	w.Try(func() bool { return w.PutByte('[') })
	w.Try(func() bool { return w.PutString("hello") })
	w.Try(func() bool { return w.PutByte(']') })
	assert.Equal(t, `["hello"]`, string(w.Bytes()))
	assert.Positive(t, w.Grows())
	assert.GreaterOrEqual(t, w.Cap(), w.Len())
}

func TestWriter_Strings(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", `"plain"`},
		{`a"b\c`, `"a\"b\\c"`},
		{"\n\r\t\b\f", `"\n\r\t\b\f"`},
		{"\x01\x1f", `"\u0001\u001f"`},
		{"é😀", `"é😀"`},
		{"a\xffb", "\"a�b\""},
	}
	for _, tt := range tests {
		w := NewWriter(1)
		w.Try(func() bool { return w.PutString(tt.in) })
		assert.Equal(t, tt.want, string(w.Bytes()), "%q", tt.in)
	}
}

func TestWriter_Floats(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1.5, "1.5"},
		{3, "3"},
		{0.1, "0.1"},
		{1e21, "1e+21"},
		{math.NaN(), "null"},
		{math.Inf(-1), "null"},
	}
	for _, tt := range tests {
		w := NewWriter(0)
		require.True(t, w.PutFloat(tt.in))
		assert.Equal(t, tt.want, string(w.Bytes()))
	}
}

func TestReader_Strings(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`"plain"`, "plain"},
		{`"a\"b\\c\/"`, `a"b\c/`},
		{`"é😀"`, "é😀"},
		{`"\ud83d"`, "�"},
		{`"\n\t"`, "\n\t"},
	}
	for _, tt := range tests {
		got, err := NewReader([]byte(tt.in)).String()
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	for _, bad := range []string{`"open`, `"bad \q"`, "\"ctl\x01\"", `"\u12"`, `x`} {
		_, err := NewReader([]byte(bad)).String()
		var ie *InvalidEncodingError
		assert.ErrorAs(t, err, &ie, bad)
	}
}

func TestReader_NullFloat(t *testing.T) {
	f, err := NewReader([]byte(" null")).Float()
	require.NoError(t, err)
	assert.Zero(t, f)
}

func TestReader_SkipDepth(t *testing.T) {
	deep := strings.Repeat("[", 1000) + strings.Repeat("]", 1000)
	err := NewReader([]byte(deep)).Skip()
	var ie *InvalidEncodingError
	assert.ErrorAs(t, err, &ie)
}

func TestReader_LargeArrayLinear(t *testing.T) {
	for _, elem := range []string{"1.5", "true", "false", "null"} {
		payload := []byte("[" + strings.TrimSuffix(strings.Repeat(elem+",", 40000), ",") + "]")

		var before, after runtime.MemStats
		runtime.ReadMemStats(&before)
		require.NoError(t, NewReader(payload).Skip(), elem)
		runtime.ReadMemStats(&after)

		// Scanning must not copy the remaining input per element.
		allocated := after.TotalAlloc - before.TotalAlloc
		assert.Less(t, allocated, uint64(16*len(payload)), elem)
	}

	floats := []byte("[" + strings.TrimSuffix(strings.Repeat("2.25,", 40000), ",") + "]")
	r := NewReader(floats)
	require.NoError(t, r.Expect('['))
	n := 0
	for first := true; ; first = false {
		more, err := r.Next(']', first)
		require.NoError(t, err)
		if !more {
			break
		}
		f, err := r.Float()
		require.NoError(t, err)
		require.Equal(t, 2.25, f)
		n++
	}
	assert.Equal(t, 40000, n)
	require.NoError(t, r.End())
}
