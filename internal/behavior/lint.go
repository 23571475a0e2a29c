package behavior

import (
	"fmt"
	"go/token"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// Diagnostic is a lint finding. Line is 0-based.
type Diagnostic struct {
	Message string
	Line    uint32
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("line %d: %s", d.Line+1, d.Message)
}

// Lint reports declarations in override source that look like bindings
// but will not bind: handlers with the wrong arity, accessor-like methods
// that take parameters or return nothing, and stray vm:bind comments.
func Lint(class string, src []byte) ([]Diagnostic, error) {
	tree, err := parse(src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()
	root := tree.RootNode()

	bound := map[string]bool{class: true}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		if n.Type() != "type_declaration" {
			continue
		}
		if p, err := directive(n, src); err == nil && p != "" {
			for j := 0; j < int(n.NamedChildCount()); j++ {
				if name := n.NamedChild(j).ChildByFieldName("name"); name != nil {
					bound[name.Content(src)] = true
				}
			}
		}
	}

	var diags []Diagnostic

	// Rule 1: exported methods on bound receivers that do not bind.
	q, err := sitter.NewQuery([]byte(`(method_declaration name: (field_identifier) @name) @method`), golang.GetLanguage())
	if err != nil {
		return nil, fmt.Errorf("compile lint query: %w", err)
	}
	defer q.Close()
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, root)
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, c := range m.Captures {
			if q.CaptureNameForId(c.Index) != "method" {
				continue
			}
			md := readMethod(c.Node, src)
			if !bound[md.receiver] || !token.IsExported(md.name) {
				continue
			}
			if msg := md.nearMiss(); msg != "" {
				diags = append(diags, Diagnostic{Message: msg, Line: c.Node.StartPoint().Row})
			}
		}
	}

	// Rule 2: vm:bind comments that annotate nothing.
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		if n.Type() != "comment" {
			continue
		}
		if _, ok := parseDirective(n.Content(src)); !ok {
			continue
		}
		if !annotates(n) {
			diags = append(diags, Diagnostic{
				Message: "vm:bind is not attached to a type declaration",
				Line:    n.StartPoint().Row,
			})
		}
	}

	sort.SliceStable(diags, func(i, j int) bool { return diags[i].Line < diags[j].Line })
	return diags, nil
}

// annotates reports whether comment c heads the comment block directly
// above a type declaration.
func annotates(c *sitter.Node) bool {
	row := c.EndPoint().Row
	for n := c.NextNamedSibling(); n != nil; n = n.NextNamedSibling() {
		if n.StartPoint().Row != row+1 {
			return false
		}
		if n.Type() == "type_declaration" {
			return true
		}
		if n.Type() != "comment" {
			return false
		}
		row = n.EndPoint().Row
	}
	return false
}

func (m method) nearMiss() string {
	switch {
	case strings.HasPrefix(m.name, handlerPrefix) && len(m.name) > len(handlerPrefix):
		if m.params != 1 {
			return fmt.Sprintf("%s takes %d parameters; handlers take exactly one", m.name, m.params)
		}
	case m.params > 0:
		return fmt.Sprintf("%s takes parameters and will not bind as an accessor", m.name)
	case m.results == 0:
		return fmt.Sprintf("%s returns nothing and will not bind as an accessor", m.name)
	case m.results > 1:
		return fmt.Sprintf("%s returns %d values; accessors return one", m.name, m.results)
	}
	return ""
}
