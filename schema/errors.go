package schema

import "fmt"

// Position locates a schema error. Syntax errors carry a line and column;
// semantic errors carry the JSON path of the offending node.
type Position struct {
	Line   int
	Column int
	Path   string
}

func (p Position) String() string {
	if p.Path != "" {
		return p.Path
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// SchemaParseError reports malformed schema text.
type SchemaParseError struct {
	Pos Position
	Msg string
}

func (e *SchemaParseError) Error() string {
	return fmt.Sprintf("schema %s: %s", e.Pos, e.Msg)
}

// PathNotFoundError reports a lookup of a path the schema does not declare.
type PathNotFoundError struct {
	Path string
}

func (e *PathNotFoundError) Error() string {
	return fmt.Sprintf("schema path %q not found", e.Path)
}

func semanticError(path, format string, args ...any) error {
	return &SchemaParseError{Pos: Position{Path: path}, Msg: fmt.Sprintf(format, args...)}
}
