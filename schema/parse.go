package schema

import (
	"errors"
	"fmt"
	"math"
	"regexp"

	"github.com/ohler55/ojg/oj"
)

var identRE = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Parse builds a template tree from schema text. The root is an object
// template named after the document.
func Parse(text []byte) (*Template, error) {
	v, err := oj.Parse(text)
	if err != nil {
		var pe *oj.ParseError
		if errors.As(err, &pe) {
			return nil, &SchemaParseError{
				Pos: Position{Line: pe.Line, Column: pe.Column},
				Msg: pe.Message,
			}
		}
		return nil, &SchemaParseError{Msg: err.Error()}
	}
	if v == nil {
		return nil, semanticError("$", "empty schema")
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return nil, semanticError("$", "schema must be an object, got %T", v)
	}

	name, err := nameOf(doc, "$")
	if err != nil {
		return nil, err
	}
	props, err := parseProperties(doc, "$")
	if err != nil {
		return nil, err
	}
	return &Template{Kind: KindObject, Name: name, Children: props}, nil
}

// MustParse is like Parse but panics on error. Generated code uses it for
// schema text that was validated at generation time.
func MustParse(text []byte) *Template {
	t, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return t
}

func nameOf(obj map[string]any, at string) (string, error) {
	raw, ok := obj["name"]
	if !ok {
		return "", semanticError(at, "missing name")
	}
	name, ok := raw.(string)
	if !ok || !identRE.MatchString(name) {
		return "", semanticError(at+".name", "invalid name %v: must be an identifier starting with a letter", raw)
	}
	return name, nil
}

func parseProperties(obj map[string]any, at string) ([]*Template, error) {
	raw, ok := obj["properties"]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, semanticError(at+".properties", "properties must be an array")
	}

	seen := make(map[string]bool, len(list))
	out := make([]*Template, 0, len(list))
	for i, item := range list {
		p := fmt.Sprintf("%s.properties[%d]", at, i)
		m, ok := item.(map[string]any)
		if !ok {
			return nil, semanticError(p, "property must be an object")
		}
		t, err := parseProperty(m, p, i)
		if err != nil {
			return nil, err
		}
		if seen[t.Name] {
			return nil, semanticError(p+".name", "duplicate property %q", t.Name)
		}
		seen[t.Name] = true
		out = append(out, t)
	}
	return out, nil
}

func parseProperty(m map[string]any, at string, index int) (*Template, error) {
	name, err := nameOf(m, at)
	if err != nil {
		return nil, err
	}
	tag, _ := m["kind"].(string)
	kind, ok := ParseKind(tag)
	if !ok {
		return nil, semanticError(at+".kind", "unknown kind %v", m["kind"])
	}

	t := &Template{Kind: kind, Name: name, Index: index}
	if kind.Scalar() {
		if _, has := m["properties"]; has {
			return nil, semanticError(at+".properties", "%s property %q cannot declare properties", kind, name)
		}
		if t.Default, err = parseDefault(kind, m["default"], at+".default"); err != nil {
			return nil, err
		}
		return t, nil
	}

	if _, has := m["default"]; has {
		return nil, semanticError(at+".default", "%s property %q cannot have a default", kind, name)
	}
	children, err := parseProperties(m, at)
	if err != nil {
		return nil, err
	}
	if kind == KindObject {
		t.Children = children
	} else {
		t.Elem = &Template{Kind: KindObject, Name: name, Children: children}
	}
	return t, nil
}

// parseDefault checks a default against its kind. Zero values normalize to
// nil so that equivalent schemas format and fingerprint identically.
func parseDefault(kind Kind, raw any, at string) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch kind {
	case KindString:
		if s, ok := raw.(string); ok {
			return nonZero(s), nil
		}
	case KindInteger:
		if n, ok := raw.(int64); ok {
			return nonZero(n), nil
		}
	case KindFloat:
		switch n := raw.(type) {
		case float64:
			if math.IsInf(n, 0) || math.IsNaN(n) {
				return nil, semanticError(at, "default %v is not a finite float", n)
			}
			return nonZero(n), nil
		case int64:
			return nonZero(float64(n)), nil
		}
	case KindBoolean:
		if b, ok := raw.(bool); ok {
			return nonZero(b), nil
		}
	}
	return nil, semanticError(at, "default %v does not match kind %s", raw, kind)
}

func nonZero[T comparable](v T) any {
	var zero T
	if v == zero {
		return nil
	}
	return v
}
