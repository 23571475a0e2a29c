// Package behavior extracts hand-written view-model overrides from Go
// source: computed accessors, input handlers and nested-class
// substitutions. It does not consult the schema; binding entries to
// properties is the merger's job.
package behavior

import (
	"fmt"
	"strings"
)

// Kind classifies a descriptor entry.
type Kind int

const (
	Accessor Kind = iota + 1
	Handler
	Substitution
)

func (k Kind) String() string {
	switch k {
	case Accessor:
		return "accessor"
	case Handler:
		return "handler"
	case Substitution:
		return "substitution"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Entry is one override found in the source.
//
// For accessors and handlers Path is the property name relative to the
// receiver type. For substitutions Path is the annotated property path
// relative to the class root, or empty for a by-name candidate.
type Entry struct {
	Kind     Kind
	Path     string
	Member   string // method or type name
	Receiver string // declaring type; empty for substitutions
	Type     string // accessor result or handler parameter type
	Pointer  bool   // method has a pointer receiver
	Line     int
	Column   int
}

func (e Entry) String() string {
	switch e.Kind {
	case Substitution:
		if e.Path == "" {
			return fmt.Sprintf("%d:%d substitution candidate %s", e.Line, e.Column, e.Member)
		}
		return fmt.Sprintf("%d:%d substitution %s -> %s", e.Line, e.Column, e.Path, e.Member)
	default:
		return fmt.Sprintf("%d:%d %s %s.%s (%s) -> %s", e.Line, e.Column, e.Kind, e.Receiver, e.Member, e.Type, e.Path)
	}
}

// Descriptor is the behavior of one view-model class.
type Descriptor struct {
	Class   string
	Package string
	Entries []Entry
}

// Empty returns a descriptor with no overrides.
func Empty(class string) *Descriptor {
	return &Descriptor{Class: class}
}

// Substitutions returns the substitution entries in source order.
func (d *Descriptor) Substitutions() []Entry {
	return d.filter(func(e Entry) bool { return e.Kind == Substitution })
}

// Members returns the accessor and handler entries declared on receiver.
func (d *Descriptor) Members(receiver string) []Entry {
	return d.filter(func(e Entry) bool { return e.Kind != Substitution && e.Receiver == receiver })
}

func (d *Descriptor) filter(keep func(Entry) bool) []Entry {
	var out []Entry
	for _, e := range d.Entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// Key renders the descriptor in a stable textual form, used for
// fingerprinting generated output.
func (d *Descriptor) Key() string {
	var sb strings.Builder
	sb.WriteString(d.Class)
	sb.WriteByte('\n')
	sb.WriteString(d.Package)
	for _, e := range d.Entries {
		fmt.Fprintf(&sb, "\n%d|%s|%s|%s|%s|%t", e.Kind, e.Path, e.Member, e.Receiver, e.Type, e.Pointer)
	}
	return sb.String()
}
