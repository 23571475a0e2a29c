package vm

import "github.com/agentic-research/vmgen/schema"

// Object is embedded by generated view-model classes.
type Object struct {
	In *Instance
}

// Instance returns the underlying runtime instance.
func (o Object) Instance() *Instance { return o.In }

// Dirty reports whether anything changed since the last encode.
func (o Object) Dirty() bool { return o.In.Dirty() }

// Equal reports whether a and b hold the same values. Computed properties
// compare by their current accessor results.
func Equal(a, b *Instance) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || len(a.values) != len(b.values) {
		return false
	}
	for i, p := range a.tmpl.Children {
		q := b.tmpl.Children[i]
		if p.Name != q.Name || p.Kind != q.Kind {
			return false
		}
		switch p.Kind {
		case schema.KindObject:
			if !Equal(a.Object(i), b.Object(i)) {
				return false
			}
		case schema.KindArray:
			x, y := a.Array(i), b.Array(i)
			if len(x) != len(y) {
				return false
			}
			for j := range x {
				if !Equal(x[j], y[j]) {
					return false
				}
			}
		default:
			if a.Value(i) != b.Value(i) {
				return false
			}
		}
	}
	return true
}
