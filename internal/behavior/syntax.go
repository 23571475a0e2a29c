package behavior

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// SyntaxError is an ERROR or MISSING node of a Go parse tree. Line and
// Column are 1-based.
type SyntaxError struct {
	Line    int
	Column  int
	Message string
}

// SyntaxErrors returns the ERROR and MISSING nodes under root in source
// order. A positive limit stops the walk once that many are found.
func SyntaxErrors(root *sitter.Node, limit int) []SyntaxError {
	var out []SyntaxError
	var walk func(n *sitter.Node) bool
	walk = func(n *sitter.Node) bool {
		if n.IsError() || n.IsMissing() {
			msg := "syntax error"
			if n.IsMissing() {
				msg = fmt.Sprintf("missing %q", n.Type())
			}
			out = append(out, SyntaxError{
				Line:    int(n.StartPoint().Row) + 1,
				Column:  int(n.StartPoint().Column) + 1,
				Message: msg,
			})
			return limit <= 0 || len(out) < limit
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			if child.HasError() || child.IsError() || child.IsMissing() {
				if !walk(child) {
					return false
				}
			}
		}
		return true
	}
	if root != nil {
		walk(root)
	}
	return out
}
