// Package schema holds the view-model template tree: the typed, named
// properties a view-model is made of, in declaration order.
//
// Templates are immutable once parsed and are shared read-only by every
// instance and codec built from them.
package schema

// Kind identifies the type of a template node.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindObject
	KindArray
	KindString
	KindInteger
	KindFloat
	KindBoolean
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindObject:  "object",
	KindArray:   "array",
	KindString:  "string",
	KindInteger: "integer",
	KindFloat:   "float",
	KindBoolean: "boolean",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// Scalar reports whether values of this kind are leaves.
func (k Kind) Scalar() bool {
	return k == KindString || k == KindInteger || k == KindFloat || k == KindBoolean
}

// ParseKind maps a schema kind tag to its Kind.
func ParseKind(tag string) (Kind, bool) {
	for k, name := range kindNames {
		if k != int(KindInvalid) && name == tag {
			return Kind(k), true
		}
	}
	return KindInvalid, false
}

// Template describes one property: its kind, name and wire position.
type Template struct {
	Kind Kind
	Name string
	// Index is the declaration index among siblings. It defines wire order.
	Index int
	// Default is nil, or a string, int64, float64 or bool matching Kind.
	Default any
	// Children are the ordered properties of an object.
	Children []*Template
	// Elem is the object template of each element of an array.
	Elem *Template
}

// Properties returns the ordered properties of an object, or of the
// elements of an array. Scalars have none.
func (t *Template) Properties() []*Template {
	switch t.Kind {
	case KindObject:
		return t.Children
	case KindArray:
		if t.Elem != nil {
			return t.Elem.Children
		}
	}
	return nil
}

// Property returns the named property, or nil.
func (t *Template) Property(name string) *Template {
	for _, c := range t.Properties() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Walk visits t's descendants depth-first in declaration order. The path
// passed to fn is dotted and relative to t.
func (t *Template) Walk(fn func(path string, p *Template) error) error {
	return walk(t, "", fn)
}

func walk(t *Template, prefix string, fn func(string, *Template) error) error {
	for _, c := range t.Properties() {
		path := Join(prefix, c.Name)
		if err := fn(path, c); err != nil {
			return err
		}
		if err := walk(c, path, fn); err != nil {
			return err
		}
	}
	return nil
}

// Join appends a property name to a dotted path.
func Join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
