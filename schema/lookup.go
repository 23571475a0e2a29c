package schema

import (
	"github.com/ohler55/ojg/jp"
)

// Lookup resolves a property path against root. Paths are dotted and may
// index arrays: "Address.Street", "Items[0].Name" and "Items.Name" are all
// accepted. An indexed array resolves to its element template.
func Lookup(root *Template, path string) (*Template, error) {
	if path == "" || path == "$" {
		return root, nil
	}
	x, err := jp.ParseString(path)
	if err != nil {
		return nil, &PathNotFoundError{Path: path}
	}

	cur := root
	for _, frag := range x {
		switch f := frag.(type) {
		case jp.Root:
			cur = root
		case jp.Child:
			if cur.Kind == KindArray {
				cur = cur.Elem
			}
			next := cur.Property(string(f))
			if next == nil {
				return nil, &PathNotFoundError{Path: path}
			}
			cur = next
		case jp.Nth, jp.Wildcard:
			if cur.Kind != KindArray {
				return nil, &PathNotFoundError{Path: path}
			}
			cur = cur.Elem
		default:
			return nil, &PathNotFoundError{Path: path}
		}
	}
	return cur, nil
}

// MustLookup is like Lookup but panics on error.
func MustLookup(root *Template, path string) *Template {
	t, err := Lookup(root, path)
	if err != nil {
		panic(err)
	}
	return t
}
