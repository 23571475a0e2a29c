package vm

import (
	"fmt"

	"github.com/agentic-research/vmgen/schema"
)

// Mode selects which properties an encode visits.
type Mode uint8

const (
	// Full encodes every property.
	Full Mode = iota
	// Delta encodes dirty properties, containers with dirty descendants,
	// and computed properties.
	Delta
)

func (m Mode) String() string {
	if m == Delta {
		return "delta"
	}
	return "full"
}

// Include reports whether property i of in is written in mode m.
func (m Mode) Include(in *Instance, i int) bool {
	return m == Full || in.IsDirty(i) || in.HasDirtyDescendant(i) || in.Computed(i)
}

// Child returns the mode for the contents of object or array property i.
// A dirty container is rewritten whole.
func (m Mode) Child(in *Instance, i int) Mode {
	if m == Full || in.IsDirty(i) {
		return Full
	}
	return Delta
}

// EncodeFunc writes an instance in the given mode.
type EncodeFunc func(w *Writer, in *Instance, mode Mode)

// DecodeFunc reads a payload into an existing instance.
type DecodeFunc func(r *Reader, in *Instance) error

// Codec serializes instances of one object template.
type Codec interface {
	Template() *schema.Template
	// EncodeFull writes every property and clears in's dirty markers.
	EncodeFull(in *Instance) []byte
	// EncodeDelta writes changed properties and clears in's dirty markers.
	EncodeDelta(in *Instance) []byte
	// Decode reads a full payload into a new clean instance.
	Decode(data []byte) (*Instance, error)
	// Apply reads a full or delta payload into in without marking it dirty.
	Apply(in *Instance, data []byte) error
}

// CodecOption configures NewCodec.
type CodecOption func(*codec)

// WithCapacity sets the initial writer capacity of every encode.
func WithCapacity(n int) CodecOption {
	return func(c *codec) { c.capacity = n }
}

// WithOptions passes instance options to every Decode.
func WithOptions(opts ...Option) CodecOption {
	return func(c *codec) { c.opts = append(c.opts, opts...) }
}

type codec struct {
	tmpl     *schema.Template
	shape    uint64
	enc      EncodeFunc
	dec      DecodeFunc
	capacity int
	opts     []Option
}

// NewCodec wraps generated encode and decode functions as a Codec.
func NewCodec(t *schema.Template, enc EncodeFunc, dec DecodeFunc, opts ...CodecOption) Codec {
	c := &codec{
		tmpl:     t,
		shape:    schema.Shape(t),
		enc:      enc,
		dec:      dec,
		capacity: DefaultCapacity,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *codec) Template() *schema.Template { return c.tmpl }

func (c *codec) check(in *Instance) {
	if in.tmpl != c.tmpl && schema.Shape(in.tmpl) != c.shape {
		panic(fmt.Sprintf("vm: codec for %s cannot encode %s", c.tmpl.Name, in.tmpl.Name))
	}
}

func (c *codec) encode(in *Instance, mode Mode) []byte {
	c.check(in)
	w := NewWriter(c.capacity)
	c.enc(w, in, mode)
	in.Clean()
	return w.Bytes()
}

func (c *codec) EncodeFull(in *Instance) []byte { return c.encode(in, Full) }

func (c *codec) EncodeDelta(in *Instance) []byte { return c.encode(in, Delta) }

func (c *codec) Decode(data []byte) (*Instance, error) {
	in := New(c.tmpl, c.opts...)
	if err := c.Apply(in, data); err != nil {
		return nil, err
	}
	return in, nil
}

func (c *codec) Apply(in *Instance, data []byte) error {
	c.check(in)
	return in.quietly(func() error {
		r := NewReader(data)
		if err := c.dec(r, in); err != nil {
			return err
		}
		return r.End()
	})
}
