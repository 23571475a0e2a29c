// Package model merges a schema template tree with its behavior overrides
// into the generation model: the classes, declarations and per-property
// codec plans the lowering and emitting stages consume.
package model

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agentic-research/vmgen/internal/behavior"
	"github.com/agentic-research/vmgen/schema"
)

// Model is the merged generation model of one view-model.
type Model struct {
	Root     *schema.Template
	Behavior *behavior.Descriptor
	Classes  []*Class // root first, then depth-first in declaration order
	Decls    []Decl

	// Fingerprint identifies the schema and behavior the model was
	// merged from.
	Fingerprint uint64
}

// RootClass returns the class of the schema root.
func (m *Model) RootClass() *Class { return m.Classes[0] }

// Class returns the class at a property path, or nil.
func (m *Model) Class(path string) *Class {
	for _, c := range m.Classes {
		if c.Path == path {
			return c
		}
	}
	return nil
}

// Class is one generated (or substituted) view-model type, coding an
// object template: the root, a nested object, or an array's elements.
type Class struct {
	Index       int
	Name        string
	Path        string
	Template    *schema.Template // always an object template
	Substituted bool             // declared by the override source
	Parent      *Class
	Plan        []Step
}

// Computed returns the slots of computed properties.
func (c *Class) Computed() []int {
	var out []int
	for _, s := range c.Plan {
		if s.Computed() {
			out = append(out, s.Slot)
		}
	}
	return out
}

// Step is the codec plan of one property.
type Step struct {
	Prop *schema.Template
	Slot int
	Path string
	Kind schema.Kind

	// Child is the class of an object property or of an array's elements.
	Child *Class

	Members  Members
	Accessor *behavior.Entry
	Handler  *behavior.Entry
}

// Computed reports whether reads come from a hand-written accessor.
func (s Step) Computed() bool { return s.Accessor != nil }

// Members names the generated methods of a property. Unused names are
// empty: scalars have no Len/Add/Remove/Clear, computed properties no
// setter.
type Members struct {
	Get    string
	Set    string
	Len    string
	Add    string
	Remove string
	Clear  string
}

func (m Members) list() []string {
	var out []string
	for _, n := range []string{m.Get, m.Set, m.Len, m.Add, m.Remove, m.Clear} {
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

func membersFor(p *schema.Template, computed bool) Members {
	name := Exported(p.Name)
	m := Members{Get: name}
	switch p.Kind {
	case schema.KindObject:
	case schema.KindArray:
		m.Len = name + "Len"
		m.Add = "Add" + name
		m.Remove = "Remove" + name
		m.Clear = "Clear" + name
	default:
		if !computed {
			m.Set = "Set" + name
		}
	}
	return m
}

// DeclKind classifies an emitted declaration.
type DeclKind int

const (
	// Meta holds the parsed templates the codecs and classes refer to.
	Meta DeclKind = iota
	// ValueClass is a generated view-model type.
	ValueClass
	// Ctor is the root constructor.
	Ctor
)

func (k DeclKind) String() string {
	switch k {
	case Meta:
		return "meta"
	case ValueClass:
		return "class"
	case Ctor:
		return "ctor"
	default:
		return fmt.Sprintf("DeclKind(%d)", int(k))
	}
}

// Decl is one emitted top-level declaration, in emission order.
type Decl struct {
	Kind  DeclKind
	Name  string
	Class *Class
}

// Exported upper-cases the first letter of a property name.
func Exported(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[size:]
}

// Unexported lower-cases the first letter of a name.
func Unexported(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToLower(r)) + name[size:]
}

// Dump renders the model as indented text for inspection.
func (m *Model) Dump() string {
	var sb strings.Builder
	for _, d := range m.Decls {
		fmt.Fprintf(&sb, "%s %s\n", d.Kind, d.Name)
	}
	for _, c := range m.Classes {
		path := c.Path
		if path == "" {
			path = "$"
		}
		sub := ""
		if c.Substituted {
			sub = " (substituted)"
		}
		fmt.Fprintf(&sb, "class %s at %s%s\n", c.Name, path, sub)
		for _, s := range c.Plan {
			fmt.Fprintf(&sb, "  %d %s %s", s.Slot, s.Prop.Name, s.Kind)
			if s.Child != nil {
				fmt.Fprintf(&sb, " -> %s", s.Child.Name)
			}
			if s.Accessor != nil {
				fmt.Fprintf(&sb, " computed by %s", s.Accessor.Member)
			}
			if s.Handler != nil {
				fmt.Fprintf(&sb, " handled by %s(%s)", s.Handler.Member, s.Handler.Type)
			}
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
