// Package vm is the view-model runtime: live instances of a schema, their
// dirty markers, and the buffer primitives generated codecs are made of.
//
// Instances are not synchronized. One writer at a time owns an instance;
// callers that share one must guard every mutate-then-encode sequence.
package vm

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/vmgen/schema"
)

// Instance is a live value conforming to an object template. It holds one
// slot per declared property, in declaration order.
type Instance struct {
	tmpl   *schema.Template
	tree   *tree
	parent *Instance
	slot   int // property index this instance occupies in parent
	values []value

	dirty    *roaring.Bitmap // properties written since the last encode
	subtree  *roaring.Bitmap // object/array properties with dirty descendants
	computed map[int]func() any
}

type value struct {
	s   string
	i   int64
	f   float64
	b   bool
	obj *Instance
	arr []*Instance
}

// tree is state shared by every instance of one root.
type tree struct {
	binder func(*Instance)
	quiet  int
}

// Option configures New.
type Option func(*tree)

// WithBinder registers fn to run on every instance created in the tree:
// the root, nested objects, and array elements appended later or decoded.
// Generated constructors use it to bind computed accessors.
func WithBinder(fn func(*Instance)) Option {
	return func(t *tree) { t.binder = fn }
}

// New creates an instance of an object template with default values.
// A new instance is clean: its first transmission is an EncodeFull.
func New(t *schema.Template, opts ...Option) *Instance {
	if t == nil || t.Kind != schema.KindObject {
		panic(fmt.Sprintf("vm: New needs an object template, got %v", t))
	}
	tr := &tree{}
	for _, opt := range opts {
		opt(tr)
	}
	return newInstance(t, tr, nil, -1)
}

func newInstance(t *schema.Template, tr *tree, parent *Instance, slot int) *Instance {
	in := &Instance{
		tmpl:    t,
		tree:    tr,
		parent:  parent,
		slot:    slot,
		values:  make([]value, len(t.Children)),
		dirty:   roaring.New(),
		subtree: roaring.New(),
	}
	for i, p := range t.Children {
		v := &in.values[i]
		switch p.Kind {
		case schema.KindString:
			v.s, _ = p.Default.(string)
		case schema.KindInteger:
			v.i, _ = p.Default.(int64)
		case schema.KindFloat:
			v.f, _ = p.Default.(float64)
		case schema.KindBoolean:
			v.b, _ = p.Default.(bool)
		case schema.KindObject:
			v.obj = newInstance(p, tr, in, i)
		}
	}
	if tr.binder != nil {
		tr.binder(in)
	}
	return in
}

// Template returns the object template of in.
func (in *Instance) Template() *schema.Template { return in.tmpl }

// Parent returns the instance owning in, or nil for a root.
func (in *Instance) Parent() *Instance { return in.parent }

// Index returns the declaration index of the named property, or -1.
func (in *Instance) Index(name string) int {
	for i, p := range in.tmpl.Children {
		if p.Name == name {
			return i
		}
	}
	return -1
}

func (in *Instance) prop(i int, k schema.Kind) *schema.Template {
	p := in.tmpl.Children[i]
	if p.Kind != k {
		panic(fmt.Sprintf("vm: %s.%s is %s, not %s", in.tmpl.Name, p.Name, p.Kind, k))
	}
	return p
}

// Bind installs a computed read accessor for property i. Reads of the
// property return fn's result, decoders skip it, and delta encodes always
// include it since the runtime cannot observe its changes.
func (in *Instance) Bind(i int, fn func() any) {
	if !in.tmpl.Children[i].Kind.Scalar() {
		panic(fmt.Sprintf("vm: cannot bind %s.%s: not a scalar", in.tmpl.Name, in.tmpl.Children[i].Name))
	}
	if in.computed == nil {
		in.computed = make(map[int]func() any)
	}
	in.computed[i] = fn
}

// Computed reports whether property i has a bound accessor.
func (in *Instance) Computed(i int) bool {
	_, ok := in.computed[i]
	return ok
}

func (in *Instance) bound(i int) (any, bool) {
	fn, ok := in.computed[i]
	if !ok {
		return nil, false
	}
	return fn(), true
}

// GetString returns string property i.
func (in *Instance) GetString(i int) string {
	in.prop(i, schema.KindString)
	if v, ok := in.bound(i); ok {
		s, _ := v.(string)
		return s
	}
	return in.values[i].s
}

// GetInt returns integer property i.
func (in *Instance) GetInt(i int) int64 {
	in.prop(i, schema.KindInteger)
	if v, ok := in.bound(i); ok {
		n, _ := v.(int64)
		return n
	}
	return in.values[i].i
}

// GetFloat returns float property i.
func (in *Instance) GetFloat(i int) float64 {
	in.prop(i, schema.KindFloat)
	if v, ok := in.bound(i); ok {
		f, _ := v.(float64)
		return f
	}
	return in.values[i].f
}

// GetBool returns boolean property i.
func (in *Instance) GetBool(i int) bool {
	in.prop(i, schema.KindBoolean)
	if v, ok := in.bound(i); ok {
		b, _ := v.(bool)
		return b
	}
	return in.values[i].b
}

// Object returns the child instance of object property i.
func (in *Instance) Object(i int) *Instance {
	in.prop(i, schema.KindObject)
	return in.values[i].obj
}

// Array returns the elements of array property i. The slice is owned by
// in and must not be modified.
func (in *Instance) Array(i int) []*Instance {
	in.prop(i, schema.KindArray)
	return in.values[i].arr
}

// Len returns the length of array property i.
func (in *Instance) Len(i int) int {
	return len(in.Array(i))
}

// Value returns property i as a string, int64, float64, bool, *Instance or
// []*Instance.
func (in *Instance) Value(i int) any {
	switch in.tmpl.Children[i].Kind {
	case schema.KindString:
		return in.GetString(i)
	case schema.KindInteger:
		return in.GetInt(i)
	case schema.KindFloat:
		return in.GetFloat(i)
	case schema.KindBoolean:
		return in.GetBool(i)
	case schema.KindObject:
		return in.Object(i)
	default:
		return in.Array(i)
	}
}

// SetString writes string property i and marks it dirty.
func (in *Instance) SetString(i int, v string) {
	in.prop(i, schema.KindString)
	in.values[i].s = v
	in.markDirty(i)
}

// SetInt writes integer property i and marks it dirty.
func (in *Instance) SetInt(i int, v int64) {
	in.prop(i, schema.KindInteger)
	in.values[i].i = v
	in.markDirty(i)
}

// SetFloat writes float property i and marks it dirty.
func (in *Instance) SetFloat(i int, v float64) {
	in.prop(i, schema.KindFloat)
	in.values[i].f = v
	in.markDirty(i)
}

// SetBool writes boolean property i and marks it dirty.
func (in *Instance) SetBool(i int, v bool) {
	in.prop(i, schema.KindBoolean)
	in.values[i].b = v
	in.markDirty(i)
}

// Set writes scalar property i from a loosely typed value, converting
// between Go numeric types where no precision is lost.
func (in *Instance) Set(i int, v any) error {
	p := in.tmpl.Children[i]
	switch p.Kind {
	case schema.KindString:
		if s, ok := v.(string); ok {
			in.SetString(i, s)
			return nil
		}
	case schema.KindInteger:
		if n, ok := toInt(v); ok {
			in.SetInt(i, n)
			return nil
		}
	case schema.KindFloat:
		if f, ok := toFloat(v); ok {
			in.SetFloat(i, f)
			return nil
		}
	case schema.KindBoolean:
		if b, ok := v.(bool); ok {
			in.SetBool(i, b)
			return nil
		}
	}
	return &InputTypeError{Property: p.Name, Want: p.Kind.String(), Value: v}
}

// Input writes the named scalar property, as a client-side change would.
func (in *Instance) Input(name string, v any) error {
	i := in.Index(name)
	if i < 0 {
		return &schema.PathNotFoundError{Path: name}
	}
	return in.Set(i, v)
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Append adds a new element with default values to array property i.
// The array is marked dirty since its length changed.
func (in *Instance) Append(i int) *Instance {
	p := in.prop(i, schema.KindArray)
	el := newInstance(p.Elem, in.tree, in, i)
	in.values[i].arr = append(in.values[i].arr, el)
	in.markDirty(i)
	return el
}

// RemoveAt removes element n of array property i.
func (in *Instance) RemoveAt(i, n int) {
	in.prop(i, schema.KindArray)
	arr := in.values[i].arr
	arr[n].parent = nil
	in.values[i].arr = append(arr[:n], arr[n+1:]...)
	in.markDirty(i)
}

// Clear removes every element of array property i.
func (in *Instance) Clear(i int) {
	in.Truncate(i, 0)
	in.markDirty(i)
}

// Element returns element n of array property i, appending one when n is
// the current length. Decoders use it to fill arrays in place.
func (in *Instance) Element(i, n int) *Instance {
	arr := in.Array(i)
	switch {
	case n < len(arr):
		return arr[n]
	case n == len(arr):
		return in.Append(i)
	default:
		panic(fmt.Sprintf("vm: element %d of %s.%s out of range", n, in.tmpl.Name, in.tmpl.Children[i].Name))
	}
}

// Truncate shortens array property i to n elements.
func (in *Instance) Truncate(i, n int) {
	arr := in.Array(i)
	if n >= len(arr) {
		return
	}
	for _, el := range arr[n:] {
		el.parent = nil
	}
	in.values[i].arr = arr[:n:n]
	in.markDirty(i)
}

// MarkDirty marks property i as changed without writing it.
func (in *Instance) MarkDirty(i int) {
	in.markDirty(i)
}

// markDirty sets the dirty marker of i and the subtree marker of every
// ancestor slot on the way to the root.
func (in *Instance) markDirty(i int) {
	if in.tree.quiet > 0 {
		return
	}
	in.dirty.Add(uint32(i))
	for c, p := in, in.parent; p != nil; c, p = p, p.parent {
		p.subtree.Add(uint32(c.slot))
	}
}

// IsDirty reports whether property i was written since the last encode.
func (in *Instance) IsDirty(i int) bool {
	return in.dirty.Contains(uint32(i))
}

// HasDirtyDescendant reports whether object or array property i holds a
// dirty descendant.
func (in *Instance) HasDirtyDescendant(i int) bool {
	return in.subtree.Contains(uint32(i))
}

// Dirty reports whether anything in in's subtree changed.
func (in *Instance) Dirty() bool {
	return !in.dirty.IsEmpty() || !in.subtree.IsEmpty()
}

// Clean clears the dirty and subtree markers of in and its descendants.
func (in *Instance) Clean() {
	it := in.subtree.Iterator()
	for it.HasNext() {
		i := int(it.Next())
		switch in.tmpl.Children[i].Kind {
		case schema.KindObject:
			in.values[i].obj.Clean()
		case schema.KindArray:
			for _, el := range in.values[i].arr {
				if el.Dirty() {
					el.Clean()
				}
			}
		}
	}
	in.dirty.Clear()
	in.subtree.Clear()
}

// quietly runs fn without marking anything dirty.
func (in *Instance) quietly(fn func() error) error {
	in.tree.quiet++
	defer func() { in.tree.quiet-- }()
	return fn()
}
