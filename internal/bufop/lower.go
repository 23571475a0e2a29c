package bufop

import (
	"fmt"
	"strings"

	"github.com/agentic-research/vmgen/internal/model"
	"github.com/agentic-research/vmgen/schema"
)

type lowerer struct {
	p    *Program
	refs []NodeID
}

// Lower builds the encode and decode trees of every class in m. Classes
// whose templates have the same shape and computed properties share one
// pair of trees.
func Lower(m *model.Model) *Program {
	l := &lowerer{p: &Program{Model: m}}

	owner := make(map[string]int)
	for _, c := range m.Classes {
		r := Root{Class: c, Encode: None, Decode: None, SharedWith: -1}
		key := shapeKey(c)
		if i, ok := owner[key]; ok {
			r.SharedWith = i
			r.EncodeFunc = l.p.Roots[i].EncodeFunc
			r.DecodeFunc = l.p.Roots[i].DecodeFunc
		} else {
			owner[key] = c.Index
			r.EncodeFunc = "encode" + c.Name
			r.DecodeFunc = "decode" + c.Name
		}
		l.p.Roots = append(l.p.Roots, r)
	}

	for i := range l.p.Roots {
		r := &l.p.Roots[i]
		if r.SharedWith >= 0 {
			continue
		}
		r.Encode = l.encode(r.Class)
		r.Decode = l.decode(r.Class)
	}
	for i := range l.p.Roots {
		r := &l.p.Roots[i]
		if r.SharedWith >= 0 {
			r.Encode = l.p.Roots[r.SharedWith].Encode
			r.Decode = l.p.Roots[r.SharedWith].Decode
		}
	}
	for _, id := range l.refs {
		n := l.p.Node(id)
		if n.Dir == Encode {
			n.Ref = l.p.Roots[n.Class].Encode
		} else {
			n.Ref = l.p.Roots[n.Class].Decode
		}
	}
	return l.p
}

// shapeKey identifies the codec behavior of a class: its wire shape and
// which properties, at any depth, are computed.
func shapeKey(c *model.Class) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%016x", schema.Shape(c.Template))
	var walk func(c *model.Class)
	walk = func(c *model.Class) {
		fmt.Fprintf(&sb, "|%v", c.Computed())
		for _, s := range c.Plan {
			if s.Child != nil {
				walk(s.Child)
			}
		}
	}
	walk(c)
	return sb.String()
}

func (l *lowerer) add(n Node) NodeID { return l.p.add(n) }

func (l *lowerer) child(parent NodeID, n Node) NodeID {
	id := l.p.add(n)
	l.p.addChild(parent, id)
	return id
}

func (l *lowerer) ref(parent NodeID, dir Dir, s model.Step, call string) NodeID {
	id := l.child(parent, Node{
		Op:    ScopedCursor,
		Dir:   dir,
		Kind:  schema.KindObject,
		Slot:  s.Slot,
		Name:  s.Prop.Name,
		Class: s.Child.Index,
		Pre:   call,
	})
	l.refs = append(l.refs, id)
	return id
}

func try(expr string) string {
	return "w.Try(func() bool { return " + expr + " })"
}

func check(call string) string {
	return "if err := " + call + "; err != nil {\nreturn err\n}"
}

// scalar names the Writer, Reader and Instance methods of a scalar kind.
func scalar(k schema.Kind) string {
	switch k {
	case schema.KindString:
		return "String"
	case schema.KindInteger:
		return "Int"
	case schema.KindFloat:
		return "Float"
	case schema.KindBoolean:
		return "Bool"
	}
	panic("bufop: not a scalar kind: " + k.String())
}

func (l *lowerer) encode(c *model.Class) NodeID {
	pre := try("w.PutByte('{')")
	if len(c.Plan) > 0 {
		pre += "\nfirst := true"
	}
	root := l.add(Node{
		Op:    ScopedCursor,
		Dir:   Encode,
		Kind:  schema.KindObject,
		Slot:  -1,
		Class: c.Index,
		Pre:   pre,
		Post:  try("w.PutByte('}')"),
	})

	for _, s := range c.Plan {
		g := l.child(root, Node{
			Op:    GrowAndRetry,
			Dir:   Encode,
			Kind:  s.Kind,
			Slot:  s.Slot,
			Name:  s.Prop.Name,
			Class: c.Index,
			Pre:   fmt.Sprintf("if mode.Include(in, %d) {", s.Slot),
			Post:  "first = false\n}",
		})
		l.child(g, Node{
			Op:    Emit,
			Dir:   Encode,
			Token: NameToken,
			Kind:  s.Kind,
			Slot:  s.Slot,
			Name:  s.Prop.Name,
			Class: c.Index,
			Pre:   fmt.Sprintf("w.PutName(%q, first)", s.Prop.Name),
		})

		switch s.Kind {
		case schema.KindObject:
			fn := l.p.Roots[s.Child.Index].EncodeFunc
			l.ref(g, Encode, s, fmt.Sprintf("%s(w, in.Object(%d), mode.Child(in, %d))", fn, s.Slot, s.Slot))
		case schema.KindArray:
			l.child(g, Node{
				Op:    Emit,
				Dir:   Encode,
				Token: OpenArray,
				Kind:  s.Kind,
				Slot:  s.Slot,
				Name:  s.Prop.Name,
				Class: c.Index,
				Pre:   "w.PutByte('[')",
			})
			loop := l.child(g, Node{
				Op:    ConditionalLoop,
				Dir:   Encode,
				Kind:  schema.KindArray,
				Slot:  s.Slot,
				Name:  s.Prop.Name,
				Class: c.Index,
				Pre: fmt.Sprintf("em := mode.Child(in, %d)\nfor j, el := range in.Array(%d) {\nif j > 0 {\n%s\n}",
					s.Slot, s.Slot, try("w.PutByte(',')")),
				Post: "}\n" + try("w.PutByte(']')"),
			})
			fn := l.p.Roots[s.Child.Index].EncodeFunc
			l.ref(loop, Encode, s, fmt.Sprintf("%s(w, el, em)", fn))
		default:
			m := scalar(s.Kind)
			l.child(g, Node{
				Op:    Emit,
				Dir:   Encode,
				Token: ValueToken,
				Kind:  s.Kind,
				Slot:  s.Slot,
				Name:  s.Prop.Name,
				Class: c.Index,
				Pre:   fmt.Sprintf("w.Put%s(in.Get%s(%d))", m, m, s.Slot),
			})
		}
	}

	l.child(root, Node{Op: Success, Dir: Encode, Slot: -1, Class: c.Index})
	return root
}

const memberLoopPre = `for first := true; ; first = false {
more, err := r.Next('}', first)
if err != nil {
return err
}
if !more {
break
}
name, err := r.Name()
if err != nil {
return err
}
switch name {`

const memberLoopPost = `default:
if err := r.Skip(); err != nil {
return err
}
}
}`

func (l *lowerer) decode(c *model.Class) NodeID {
	root := l.add(Node{
		Op:    ScopedCursor,
		Dir:   Decode,
		Kind:  schema.KindObject,
		Slot:  -1,
		Class: c.Index,
	})
	l.child(root, Node{
		Op:    FindObjectStart,
		Dir:   Decode,
		Slot:  -1,
		Class: c.Index,
		Pre:   check("r.Expect('{')"),
	})
	loop := l.child(root, Node{
		Op:    ConditionalLoop,
		Dir:   Decode,
		Kind:  schema.KindObject,
		Slot:  -1,
		Class: c.Index,
		Pre:   memberLoopPre,
		Post:  memberLoopPost,
	})

	for _, s := range c.Plan {
		pre := fmt.Sprintf("case %q:", s.Prop.Name)
		switch {
		case s.Computed():
			pre += "\n" + check("r.Skip()")
		case s.Kind.Scalar():
			m := scalar(s.Kind)
			pre += fmt.Sprintf("\nv, err := r.%s()\nif err != nil {\nreturn err\n}\nin.Set%s(%d, v)", m, m, s.Slot)
		}
		rd := l.child(loop, Node{
			Op:    Read,
			Dir:   Decode,
			Kind:  s.Kind,
			Slot:  s.Slot,
			Name:  s.Prop.Name,
			Class: c.Index,
			Skip:  s.Computed(),
			Pre:   pre,
		})

		switch s.Kind {
		case schema.KindObject:
			fn := l.p.Roots[s.Child.Index].DecodeFunc
			l.ref(rd, Decode, s, check(fmt.Sprintf("%s(r, in.Object(%d))", fn, s.Slot)))
		case schema.KindArray:
			el := l.child(rd, Node{
				Op:    ConditionalLoop,
				Dir:   Decode,
				Kind:  schema.KindArray,
				Slot:  s.Slot,
				Name:  s.Prop.Name,
				Class: c.Index,
				Pre: check("r.Expect('[')") + "\nn := 0\n" +
					"for first := true; ; first = false {\nmore, err := r.Next(']', first)\nif err != nil {\nreturn err\n}\nif !more {\nbreak\n}",
				Post: fmt.Sprintf("n++\n}\nin.Truncate(%d, n)", s.Slot),
			})
			fn := l.p.Roots[s.Child.Index].DecodeFunc
			l.ref(el, Decode, s, check(fmt.Sprintf("%s(r, in.Element(%d, n))", fn, s.Slot)))
		}
	}

	l.child(root, Node{Op: Success, Dir: Decode, Slot: -1, Class: c.Index, Pre: "return nil"})
	return root
}
