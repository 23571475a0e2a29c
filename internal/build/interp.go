package build

import (
	"context"

	"github.com/agentic-research/vmgen/internal/bufop"
	"github.com/agentic-research/vmgen/schema"
	"github.com/agentic-research/vmgen/vm"
)

// Interp builds codecs that walk the buffer-operation trees directly. It
// writes the same bytes as the emitted code and needs no compiler.
type Interp struct {
	Options []vm.CodecOption
}

func (b Interp) Build(_ context.Context, u *Unit) (vm.Codec, error) {
	x := newInterp(u.Program)
	r := u.Program.Roots[u.ClassID]
	enc := func(w *vm.Writer, in *vm.Instance, mode vm.Mode) { x.encode(r.Encode, w, in, mode) }
	dec := func(rd *vm.Reader, in *vm.Instance) error { return x.decode(r.Decode, rd, in) }
	return vm.NewCodec(u.Class().Template, enc, dec, b.Options...), nil
}

type interp struct {
	p *bufop.Program
	// cases maps each decode member loop to its property reads.
	cases map[bufop.NodeID]map[string]*bufop.Node
}

func newInterp(p *bufop.Program) *interp {
	x := &interp{p: p, cases: make(map[bufop.NodeID]map[string]*bufop.Node)}
	for i := range p.Nodes {
		n := &p.Nodes[i]
		if n.Op != bufop.ConditionalLoop || n.Dir != bufop.Decode || n.Kind != schema.KindObject {
			continue
		}
		m := make(map[string]*bufop.Node, len(n.Children))
		for _, c := range n.Children {
			rd := p.Node(c)
			m[rd.Name] = rd
		}
		x.cases[bufop.NodeID(i)] = m
	}
	return x
}

func (x *interp) encode(id bufop.NodeID, w *vm.Writer, in *vm.Instance, mode vm.Mode) {
	w.Try(func() bool { return w.PutByte('{') })
	first := true
	for _, c := range x.p.Node(id).Children {
		g := x.p.Node(c)
		if g.Op != bufop.GrowAndRetry || !mode.Include(in, g.Slot) {
			continue
		}
		x.property(g, w, in, mode, first)
		first = false
	}
	w.Try(func() bool { return w.PutByte('}') })
}

func (x *interp) property(g *bufop.Node, w *vm.Writer, in *vm.Instance, mode vm.Mode, first bool) {
	var emits, rest []*bufop.Node
	for _, c := range g.Children {
		if n := x.p.Node(c); n.Op == bufop.Emit {
			emits = append(emits, n)
		} else {
			rest = append(rest, n)
		}
	}
	w.Try(func() bool {
		for _, e := range emits {
			if !x.emit(e, w, in, first) {
				return false
			}
		}
		return true
	})

	for _, n := range rest {
		switch n.Op {
		case bufop.ScopedCursor:
			x.encode(n.Ref, w, in.Object(n.Slot), mode.Child(in, n.Slot))
		case bufop.ConditionalLoop:
			em := mode.Child(in, n.Slot)
			for j, el := range in.Array(n.Slot) {
				if j > 0 {
					w.Try(func() bool { return w.PutByte(',') })
				}
				for _, c := range n.Children {
					x.encode(x.p.Node(c).Ref, w, el, em)
				}
			}
			w.Try(func() bool { return w.PutByte(']') })
		}
	}
}

func (x *interp) emit(n *bufop.Node, w *vm.Writer, in *vm.Instance, first bool) bool {
	switch n.Token {
	case bufop.NameToken:
		return w.PutName(n.Name, first)
	case bufop.OpenArray:
		return w.PutByte('[')
	}
	switch n.Kind {
	case schema.KindString:
		return w.PutString(in.GetString(n.Slot))
	case schema.KindInteger:
		return w.PutInt(in.GetInt(n.Slot))
	case schema.KindFloat:
		return w.PutFloat(in.GetFloat(n.Slot))
	case schema.KindBoolean:
		return w.PutBool(in.GetBool(n.Slot))
	}
	panic("build: value token of " + n.Kind.String() + " property " + n.Name)
}

func (x *interp) decode(id bufop.NodeID, r *vm.Reader, in *vm.Instance) error {
	for _, c := range x.p.Node(id).Children {
		n := x.p.Node(c)
		switch n.Op {
		case bufop.FindObjectStart:
			if err := r.Expect('{'); err != nil {
				return err
			}
		case bufop.ConditionalLoop:
			if err := x.members(c, r, in); err != nil {
				return err
			}
		}
	}
	return nil
}

func (x *interp) members(loop bufop.NodeID, r *vm.Reader, in *vm.Instance) error {
	cases := x.cases[loop]
	for first := true; ; first = false {
		more, err := r.Next('}', first)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
		name, err := r.Name()
		if err != nil {
			return err
		}
		rd, ok := cases[name]
		if !ok || rd.Skip {
			if err := r.Skip(); err != nil {
				return err
			}
			continue
		}
		if err := x.read(rd, r, in); err != nil {
			return err
		}
	}
}

func (x *interp) read(rd *bufop.Node, r *vm.Reader, in *vm.Instance) error {
	switch rd.Kind {
	case schema.KindString:
		v, err := r.String()
		if err != nil {
			return err
		}
		in.SetString(rd.Slot, v)
	case schema.KindInteger:
		v, err := r.Int()
		if err != nil {
			return err
		}
		in.SetInt(rd.Slot, v)
	case schema.KindFloat:
		v, err := r.Float()
		if err != nil {
			return err
		}
		in.SetFloat(rd.Slot, v)
	case schema.KindBoolean:
		v, err := r.Bool()
		if err != nil {
			return err
		}
		in.SetBool(rd.Slot, v)
	case schema.KindObject:
		ref := x.p.Node(rd.Children[0])
		return x.decode(ref.Ref, r, in.Object(rd.Slot))
	case schema.KindArray:
		return x.elements(x.p.Node(rd.Children[0]), r, in)
	}
	return nil
}

func (x *interp) elements(loop *bufop.Node, r *vm.Reader, in *vm.Instance) error {
	if err := r.Expect('['); err != nil {
		return err
	}
	ref := x.p.Node(loop.Children[0]).Ref
	n := 0
	for first := true; ; first = false {
		more, err := r.Next(']', first)
		if err != nil {
			return err
		}
		if !more {
			break
		}
		if err := x.decode(ref, r, in.Element(loop.Slot, n)); err != nil {
			return err
		}
		n++
	}
	in.Truncate(loop.Slot, n)
	return nil
}
