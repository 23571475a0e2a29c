// Package infer derives a view-model schema from sample payloads.
package infer

import (
	"fmt"
	"math/rand"

	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/vmgen/schema"
)

// Config controls schema inference.
type Config struct {
	Name       string // root class name (default "Model")
	SampleSize int    // max payloads to sample (default 1000)
	Seed       int64  // reservoir sampling seed
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Name: "Model", SampleSize: 1000}
}

// ConflictError reports a property whose samples disagree on its kind.
type ConflictError struct {
	Path   string
	Sample int
	Have   schema.Kind
	Got    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("sample %d: %s is %s, previously %s", e.Sample, e.Path, e.Got, e.Have)
}

// Result is an inferred schema and the presence table it came from.
type Result struct {
	Root    *schema.Template
	Context *Context
}

// Inferrer merges the structure of sample payloads into one schema.
// Properties keep the order they are first seen in; integers widen to
// floats; a property seen only as null is a string.
type Inferrer struct {
	Config Config
}

func (inf *Inferrer) Infer(payloads [][]byte) (*Result, error) {
	name := inf.Config.Name
	if name == "" {
		name = "Model"
	}
	sampled := payloads
	if n := inf.Config.SampleSize; n > 0 && len(payloads) > n {
		sampled = reservoirSample(payloads, n, inf.Config.Seed)
	}

	b := &builder{root: newShape(schema.KindObject), ctx: newContext()}
	for i, p := range sampled {
		b.begin(i)
		if err := oj.Tokenize(p, b); err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		if b.err != nil {
			return nil, b.err
		}
		if !b.seenRoot {
			return nil, fmt.Errorf("sample %d: payload must be an object", i)
		}
	}
	b.ctx.Samples = len(sampled)

	root := b.root.template(name, 0)
	// Round-trip through the schema parser to reject names that are not
	// identifiers and normalize the tree.
	t, err := schema.Parse(schema.Format(root))
	if err != nil {
		return nil, err
	}
	return &Result{Root: t, Context: b.ctx}, nil
}

type shape struct {
	kind  schema.Kind // KindInvalid until a non-null value is seen
	order []string
	props map[string]*shape
	elem  *shape
}

func newShape(k schema.Kind) *shape {
	return &shape{kind: k, props: make(map[string]*shape)}
}

func (s *shape) child(name string) *shape {
	c, ok := s.props[name]
	if !ok {
		c = newShape(schema.KindInvalid)
		s.props[name] = c
		s.order = append(s.order, name)
	}
	return c
}

func (s *shape) template(name string, index int) *schema.Template {
	t := &schema.Template{Kind: s.kind, Name: name, Index: index}
	if t.Kind == schema.KindInvalid {
		t.Kind = schema.KindString
	}
	switch t.Kind {
	case schema.KindObject:
		t.Children = s.children()
	case schema.KindArray:
		elem := s.elem
		if elem == nil {
			elem = newShape(schema.KindObject)
		}
		t.Elem = &schema.Template{Kind: schema.KindObject, Name: name, Children: elem.children()}
	}
	return t
}

func (s *shape) children() []*schema.Template {
	out := make([]*schema.Template, len(s.order))
	for i, n := range s.order {
		out[i] = s.props[n].template(n, i)
	}
	return out
}

type frame struct {
	shape *shape
	path  string
	array bool
	key   string
}

// builder is an oj.TokenHandler merging one sample at a time into root.
type builder struct {
	root     *shape
	ctx      *Context
	sample   int
	stack    []frame
	seenRoot bool
	err      error
}

func (b *builder) begin(sample int) {
	b.sample = sample
	b.stack = b.stack[:0]
	b.seenRoot = false
}

func (b *builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// slot resolves the shape the next value fills, merging kind into it. A
// nil result means the value is ignored.
func (b *builder) slot(kind schema.Kind, token string) (*shape, string) {
	if b.err != nil || len(b.stack) == 0 {
		return nil, ""
	}
	top := &b.stack[len(b.stack)-1]
	if top.array {
		path := top.path + "[]"
		if kind != schema.KindObject {
			b.fail(&ConflictError{Path: path, Sample: b.sample, Have: schema.KindObject, Got: token})
			return nil, ""
		}
		if top.shape.elem == nil {
			top.shape.elem = newShape(schema.KindObject)
		}
		return top.shape.elem, path
	}

	path := schema.Join(top.path, top.key)
	c := top.shape.child(top.key)
	b.ctx.add(b.sample, path)
	switch {
	case kind == schema.KindInvalid, kind == c.kind:
	case c.kind == schema.KindInvalid:
		c.kind = kind
	case c.kind == schema.KindInteger && kind == schema.KindFloat:
		c.kind = schema.KindFloat
	case c.kind == schema.KindFloat && kind == schema.KindInteger:
	default:
		b.fail(&ConflictError{Path: path, Sample: b.sample, Have: c.kind, Got: token})
		return nil, ""
	}
	return c, path
}

func (b *builder) scalar(kind schema.Kind, token string) { b.slot(kind, token) }

func (b *builder) Null()          { b.scalar(schema.KindInvalid, "null") }
func (b *builder) Bool(bool)      { b.scalar(schema.KindBoolean, "boolean") }
func (b *builder) Int(int64)      { b.scalar(schema.KindInteger, "integer") }
func (b *builder) Float(float64)  { b.scalar(schema.KindFloat, "float") }
func (b *builder) Number(string)  { b.scalar(schema.KindFloat, "float") }
func (b *builder) String(string)  { b.scalar(schema.KindString, "string") }
func (b *builder) Key(key string) { b.stack[len(b.stack)-1].key = key }

func (b *builder) ObjectStart() {
	if len(b.stack) == 0 {
		if b.seenRoot {
			b.fail(fmt.Errorf("sample %d: more than one payload", b.sample))
		}
		b.seenRoot = true
		b.stack = append(b.stack, frame{shape: b.root})
		return
	}
	s, path := b.slot(schema.KindObject, "object")
	b.stack = append(b.stack, frame{shape: s, path: path})
}

func (b *builder) ObjectEnd() { b.pop() }

func (b *builder) ArrayStart() {
	if len(b.stack) == 0 {
		b.fail(fmt.Errorf("sample %d: payload must be an object", b.sample))
		b.stack = append(b.stack, frame{array: true})
		return
	}
	s, path := b.slot(schema.KindArray, "array")
	b.stack = append(b.stack, frame{shape: s, path: path, array: true})
}

func (b *builder) ArrayEnd() { b.pop() }

func (b *builder) pop() {
	if len(b.stack) > 0 {
		b.stack = b.stack[:len(b.stack)-1]
	}
}

// reservoirSample keeps a uniform sample of k payloads.
func reservoirSample(payloads [][]byte, k int, seed int64) [][]byte {
	rng := rand.New(rand.NewSource(seed))
	reservoir := make([][]byte, k)
	copy(reservoir, payloads[:k])
	for i := k; i < len(payloads); i++ {
		j := rng.Intn(i + 1)
		if j < k {
			reservoir[j] = payloads[i]
		}
	}
	return reservoir
}
