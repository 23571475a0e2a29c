package model

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/agentic-research/vmgen/internal/behavior"
	"github.com/agentic-research/vmgen/schema"
)

var indexRE = regexp.MustCompile(`\[[^\]]*\]`)

// reserved are promoted from vm.Object or generated for every class.
var reserved = []string{"In", "Object", "Instance", "Dirty", "Input"}

type merger struct {
	desc    *behavior.Descriptor
	classes []*Class
	byPath  map[string]behavior.Entry // annotated substitutions
	byName  map[string]behavior.Entry // by-name candidates
	used    map[string]bool           // consumed annotated paths
}

// Merge builds the generation model of root with the overrides in desc.
// A nil desc merges no overrides.
func Merge(root *schema.Template, desc *behavior.Descriptor) (*Model, error) {
	if root == nil || root.Kind != schema.KindObject {
		return nil, fmt.Errorf("merge: root must be an object template")
	}
	if desc == nil {
		desc = behavior.Empty(Exported(root.Name))
	}
	mg := &merger{
		desc:   desc,
		byPath: make(map[string]behavior.Entry),
		byName: make(map[string]behavior.Entry),
		used:   make(map[string]bool),
	}
	for _, e := range desc.Substitutions() {
		if e.Path == "" {
			mg.byName[e.Member] = e
			continue
		}
		e.Path = canonical(e.Path)
		if prev, dup := mg.byPath[e.Path]; dup {
			return nil, &CodeBehindMismatchError{
				Path:   e.Path,
				Member: e.Member,
				Reason: fmt.Sprintf("already substituted by %s", prev.Member),
			}
		}
		mg.byPath[e.Path] = e
	}

	name := desc.Class
	if name == "" {
		name = Exported(root.Name)
	}
	mg.class(root, name, "", nil)

	if err := mg.checkSubstitutions(root); err != nil {
		return nil, err
	}
	for _, c := range mg.classes {
		if err := mg.bind(c); err != nil {
			return nil, err
		}
	}
	if err := mg.checkNames(); err != nil {
		return nil, err
	}

	m := &Model{
		Root:        root,
		Behavior:    desc,
		Classes:     mg.classes,
		Fingerprint: Fingerprint(root, desc),
	}
	rc := m.RootClass()
	m.Decls = append(m.Decls, Decl{Kind: Meta, Name: Unexported(rc.Name) + "Template", Class: rc})
	for _, c := range m.Classes {
		if !c.Substituted {
			m.Decls = append(m.Decls, Decl{Kind: ValueClass, Name: c.Name, Class: c})
		}
	}
	m.Decls = append(m.Decls, Decl{Kind: Ctor, Name: "New" + rc.Name, Class: rc})
	return m, nil
}

// canonical drops the root marker and element indexes from a property
// path: "$.Items[0].Tags" becomes "Items.Tags".
func canonical(path string) string {
	path = strings.TrimPrefix(strings.TrimPrefix(path, "$"), ".")
	return indexRE.ReplaceAllString(path, "")
}

// Fingerprint combines the schema fingerprint with the behavior overrides.
func Fingerprint(root *schema.Template, desc *behavior.Descriptor) uint64 {
	d := xxhash.New()
	_, _ = d.Write(schema.Format(root))
	if desc != nil {
		_, _ = d.WriteString("\x00")
		_, _ = d.WriteString(desc.Key())
	}
	return d.Sum64()
}

// class creates the class coding object template t and, depth-first,
// the classes of its nested objects and arrays.
func (mg *merger) class(t *schema.Template, name, path string, parent *Class) *Class {
	c := &Class{
		Index:    len(mg.classes),
		Name:     name,
		Path:     path,
		Template: t,
		Parent:   parent,
	}
	mg.classes = append(mg.classes, c)

	c.Plan = make([]Step, len(t.Children))
	for i, p := range t.Children {
		s := Step{Prop: p, Slot: i, Path: schema.Join(path, p.Name), Kind: p.Kind}
		if !p.Kind.Scalar() {
			elem := p
			if p.Kind == schema.KindArray {
				elem = p.Elem
			}
			childName, substituted := mg.substitute(s.Path, c.Name+Exported(p.Name))
			s.Child = mg.class(elem, childName, s.Path, c)
			s.Child.Substituted = substituted
		}
		c.Plan[i] = s
	}
	return c
}

func (mg *merger) substitute(path, def string) (string, bool) {
	if e, ok := mg.byPath[path]; ok {
		mg.used[path] = true
		return e.Member, true
	}
	if _, ok := mg.byName[def]; ok {
		return def, true
	}
	return def, false
}

func (mg *merger) checkSubstitutions(root *schema.Template) error {
	for _, e := range mg.desc.Substitutions() {
		e.Path = canonical(e.Path)
		if e.Path == "" || mg.used[e.Path] {
			continue
		}
		reason := "no such property"
		if t, err := schema.Lookup(root, e.Path); err == nil {
			reason = fmt.Sprintf("%s property cannot be substituted", t.Kind)
		}
		return &CodeBehindMismatchError{Path: e.Path, Member: e.Member, Reason: reason}
	}
	return nil
}

// bind attaches the accessors and handlers declared on c's type.
func (mg *merger) bind(c *Class) error {
	for _, e := range mg.desc.Members(c.Name) {
		path := schema.Join(c.Path, e.Path)
		i := indexOf(c.Template, e.Path)
		if i < 0 {
			return &CodeBehindMismatchError{Path: path, Member: e.Member, Reason: "no such property"}
		}
		s := &c.Plan[i]
		if !s.Kind.Scalar() {
			return &CodeBehindMismatchError{
				Path:   path,
				Member: e.Member,
				Reason: fmt.Sprintf("%s cannot bind to %s property", e.Kind, s.Kind),
			}
		}
		switch e.Kind {
		case behavior.Accessor:
			s.Accessor = &e
		case behavior.Handler:
			s.Handler = &e
		}
	}
	for i := range c.Plan {
		c.Plan[i].Members = membersFor(c.Plan[i].Prop, c.Plan[i].Computed())
	}
	return nil
}

func indexOf(t *schema.Template, name string) int {
	for i, p := range t.Children {
		if p.Name == name {
			return i
		}
	}
	return -1
}

func (mg *merger) checkNames() error {
	classes := make(map[string]string, len(mg.classes))
	for _, c := range mg.classes {
		at := c.Path
		if at == "" {
			at = "$"
		}
		if prev, dup := classes[c.Name]; dup {
			return &NameConflictError{Name: c.Name, Paths: []string{prev, at}}
		}
		classes[c.Name] = at

		seen := make(map[string]string)
		for _, r := range reserved {
			seen[r] = "vm.Object"
		}
		for _, e := range mg.desc.Members(c.Name) {
			if e.Kind == behavior.Handler {
				seen[e.Member] = "behavior " + e.Member
			}
		}
		for _, s := range c.Plan {
			for _, n := range s.Members.list() {
				if prev, dup := seen[n]; dup {
					return &NameConflictError{Class: c.Name, Name: n, Paths: []string{prev, s.Path}}
				}
				seen[n] = s.Path
			}
		}
	}
	return nil
}
