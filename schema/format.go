package schema

import (
	"encoding/json"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/agentic-research/vmgen/api"
)

// Document converts a template tree back to its on-disk form.
func Document(root *Template) api.Document {
	return api.Document{Name: root.Name, Properties: properties(root)}
}

func properties(t *Template) []api.Property {
	props := t.Properties()
	if len(props) == 0 {
		return nil
	}
	out := make([]api.Property, len(props))
	for i, p := range props {
		out[i] = api.Property{
			Name:       p.Name,
			Kind:       p.Kind.String(),
			Default:    p.Default,
			Properties: properties(p),
		}
	}
	return out
}

// Format renders the canonical schema text of a template tree. Parse of
// the result yields an equivalent tree.
func Format(root *Template) []byte {
	b, err := json.Marshal(Document(root))
	if err != nil {
		// Templates only hold strings, int64, float64 and bool.
		panic("schema: format: " + err.Error())
	}
	return b
}

// Fingerprint identifies a schema by the hash of its canonical text.
func Fingerprint(root *Template) uint64 {
	return xxhash.Sum64(Format(root))
}

// Shape hashes the wire-relevant structure of an object or array: property
// names, kinds and order, recursively. Templates with equal shapes encode
// and decode identically regardless of their own names or defaults.
func Shape(t *Template) uint64 {
	d := xxhash.New()
	writeShape(d, t)
	return d.Sum64()
}

func writeShape(d *xxhash.Digest, t *Template) {
	_, _ = d.WriteString("{")
	for _, p := range t.Properties() {
		_, _ = d.WriteString(strconv.Quote(p.Name))
		_, _ = d.WriteString(p.Kind.String())
		if !p.Kind.Scalar() {
			writeShape(d, p)
		}
		_, _ = d.WriteString(",")
	}
	_, _ = d.WriteString("}")
}
