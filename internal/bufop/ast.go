// Package bufop is the buffer-operation IR: per class shape, an encode and
// a decode tree of byte-level operations, stored in one arena and
// addressed by index. Nodes carry the Go fragments the emitter stitches
// together; the interpreter backend executes the same tree directly.
package bufop

import (
	"fmt"
	"strings"

	"github.com/agentic-research/vmgen/internal/model"
	"github.com/agentic-research/vmgen/schema"
)

// Op is the operation of a node.
type Op uint8

const (
	// FindObjectStart consumes the opening brace of an object.
	FindObjectStart Op = iota + 1
	// ConditionalLoop repeats its children: over members while decoding an
	// object, over elements while encoding or decoding an array.
	ConditionalLoop
	// GrowAndRetry writes its Emit children as one unit, doubling the
	// buffer and rewriting them after an overflow.
	GrowAndRetry
	// ScopedCursor frames one object. A root cursor owns its body; a
	// reference (Ref >= 0) delegates to the root of another class.
	ScopedCursor
	// Emit writes one token.
	Emit
	// Read reads one property value.
	Read
	// Success ends a codec body.
	Success
)

var opNames = [...]string{
	FindObjectStart: "FindObjectStart",
	ConditionalLoop: "ConditionalLoop",
	GrowAndRetry:    "GrowAndRetry",
	ScopedCursor:    "ScopedCursor",
	Emit:            "Emit",
	Read:            "Read",
	Success:         "Success",
}

func (o Op) String() string {
	if int(o) < len(opNames) && opNames[o] != "" {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Dir is the codec direction of a tree.
type Dir uint8

const (
	Encode Dir = iota
	Decode
)

// Token is what an Emit node writes.
type Token uint8

const (
	NameToken  Token = iota + 1 // "name":
	ValueToken                  // the scalar value of Slot
	OpenArray                   // [
)

// NodeID addresses a node in a Program's arena.
type NodeID int32

// None is the absent node.
const None NodeID = -1

// Node is one buffer operation.
type Node struct {
	Op    Op
	Dir   Dir
	Token Token
	Kind  schema.Kind // property kind for Emit values, Read and loops
	Slot  int         // property slot; -1 on framing nodes
	Name  string      // property name
	Class int         // class the node codes; target class of a reference
	Ref   NodeID      // root a reference cursor delegates to, else None
	Skip  bool        // Read discards the value

	Children []NodeID

	// Pre and Post are the Go statements emitted before and after the
	// node's children.
	Pre, Post string
}

// Root is the pair of codec trees of one class. Classes with the same
// shape share trees and function names with the first of them.
type Root struct {
	Class      *model.Class
	Encode     NodeID
	Decode     NodeID
	EncodeFunc string
	DecodeFunc string
	SharedWith int // class index owning the trees, or -1
}

// Program is the lowered form of a generation model.
type Program struct {
	Model *model.Model
	Nodes []Node
	Roots []Root // indexed by class index
}

// Node returns the node with the given id.
func (p *Program) Node(id NodeID) *Node { return &p.Nodes[id] }

// add appends n to the arena. References are resolved once every root
// exists; see Lower.
func (p *Program) add(n Node) NodeID {
	n.Ref = None
	p.Nodes = append(p.Nodes, n)
	return NodeID(len(p.Nodes) - 1)
}

func (p *Program) addChild(parent, child NodeID) {
	p.Nodes[parent].Children = append(p.Nodes[parent].Children, child)
}

// Owned returns the roots whose trees are not shared from another class,
// in class order. The emitter writes one function pair per owned root.
func (p *Program) Owned() []Root {
	var out []Root
	for _, r := range p.Roots {
		if r.SharedWith < 0 {
			out = append(out, r)
		}
	}
	return out
}

// Dump renders the trees of every owned root as indented text.
func (p *Program) Dump() string {
	var sb strings.Builder
	for _, r := range p.Roots {
		if r.SharedWith >= 0 {
			fmt.Fprintf(&sb, "%s: shares %s/%s\n", r.Class.Name, r.EncodeFunc, r.DecodeFunc)
			continue
		}
		fmt.Fprintf(&sb, "%s:\n", r.Class.Name)
		fmt.Fprintf(&sb, "  %s\n", r.EncodeFunc)
		p.dump(&sb, r.Encode, 2)
		fmt.Fprintf(&sb, "  %s\n", r.DecodeFunc)
		p.dump(&sb, r.Decode, 2)
	}
	return sb.String()
}

func (p *Program) dump(sb *strings.Builder, id NodeID, depth int) {
	n := p.Node(id)
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString(n.Op.String())
	if n.Name != "" {
		fmt.Fprintf(sb, " %s", n.Name)
	}
	switch {
	case n.Op == Emit && n.Token == ValueToken:
		fmt.Fprintf(sb, " %s", n.Kind)
	case n.Op == Emit && n.Token == OpenArray:
		sb.WriteString(" [")
	case n.Op == Read:
		fmt.Fprintf(sb, " %s", n.Kind)
		if n.Skip {
			sb.WriteString(" (skip)")
		}
	}
	if n.Ref != None {
		r := p.Roots[n.Class]
		target := r.EncodeFunc
		if n.Dir == Decode {
			target = r.DecodeFunc
		}
		fmt.Fprintf(sb, " -> %s", target)
	}
	sb.WriteByte('\n')
	for _, c := range n.Children {
		p.dump(sb, c, depth+1)
	}
}
