package behavior

import (
	"context"
	"fmt"
	"go/token"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// bindDirective annotates a type declaration as the substitution for the
// property path that follows it.
const bindDirective = "//vm:bind"

const handlerPrefix = "Handle"

// Analyze extracts the overrides of class from Go source.
//
// Methods on class bind relative to the class root. A type preceded by a
// "//vm:bind Path" comment substitutes the nested class at Path, and its
// methods bind relative to that path. Other types are recorded as by-name
// substitution candidates. An exported method taking no parameters and
// returning one value is an accessor for the property of the same name; an
// exported method HandleX taking one parameter handles input to X.
func Analyze(class string, src []byte) (*Descriptor, error) {
	tree, err := parse(src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()
	root := tree.RootNode()

	d := &Descriptor{Class: class}
	types := map[string]bool{class: true}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		switch n.Type() {
		case "package_clause":
			if id := namedChildOfType(n, "package_identifier"); id != nil {
				d.Package = id.Content(src)
			}
		case "type_declaration":
			subs, err := typeDecl(n, src, class)
			if err != nil {
				return nil, err
			}
			for _, e := range subs {
				types[e.Member] = true
			}
			d.Entries = append(d.Entries, subs...)
		}
	}

	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		if n.Type() != "method_declaration" {
			continue
		}
		m := readMethod(n, src)
		if !types[m.receiver] {
			continue
		}
		if e, ok := m.entry(); ok {
			d.Entries = append(d.Entries, e)
		}
	}
	return d, nil
}

func parse(src []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	root := tree.RootNode()
	if !root.HasError() {
		return tree, nil
	}
	defer tree.Close()

	pe := &BehaviorParseError{Line: 1, Column: 1, Message: "syntax error"}
	if errs := SyntaxErrors(root, 1); len(errs) > 0 {
		pe.Line, pe.Column, pe.Message = errs[0].Line, errs[0].Column, errs[0].Message
	}
	return nil, pe
}

func namedChildOfType(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == typ {
			return c
		}
	}
	return nil
}

func typeDecl(n *sitter.Node, src []byte, class string) ([]Entry, error) {
	path, err := directive(n, src)
	if err != nil {
		return nil, err
	}
	var specs []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "type_spec" || c.Type() == "type_alias" {
			specs = append(specs, c)
		}
	}
	if path != "" && len(specs) != 1 {
		return nil, &BehaviorParseError{
			Line:    int(n.StartPoint().Row) + 1,
			Column:  int(n.StartPoint().Column) + 1,
			Message: "vm:bind must annotate a single type",
		}
	}

	var out []Entry
	for _, spec := range specs {
		name := spec.ChildByFieldName("name")
		if name == nil || name.Content(src) == class {
			continue
		}
		out = append(out, Entry{
			Kind:   Substitution,
			Path:   path,
			Member: name.Content(src),
			Line:   int(name.StartPoint().Row) + 1,
			Column: int(name.StartPoint().Column) + 1,
		})
	}
	return out, nil
}

// directive returns the path of a vm:bind comment in the comment block
// directly above n, or "" when there is none.
func directive(n *sitter.Node, src []byte) (string, error) {
	row := n.StartPoint().Row
	for c := n.PrevNamedSibling(); c != nil && c.Type() == "comment" && c.EndPoint().Row+1 == row; c = c.PrevNamedSibling() {
		row = c.StartPoint().Row
		path, ok := parseDirective(c.Content(src))
		if !ok {
			continue
		}
		if path == "" {
			return "", &BehaviorParseError{
				Line:    int(row) + 1,
				Column:  int(c.StartPoint().Column) + 1,
				Message: "vm:bind needs a property path",
			}
		}
		return path, nil
	}
	return "", nil
}

func parseDirective(comment string) (string, bool) {
	rest, ok := strings.CutPrefix(comment, bindDirective)
	if !ok || (rest != "" && rest[0] != ' ' && rest[0] != '\t') {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

type method struct {
	node     *sitter.Node
	name     string
	receiver string
	pointer  bool
	params   int
	results  int
	param    string // first parameter type
	result   string // first result type
}

func readMethod(n *sitter.Node, src []byte) method {
	m := method{node: n}
	if name := n.ChildByFieldName("name"); name != nil {
		m.name = name.Content(src)
	}
	if recv := n.ChildByFieldName("receiver"); recv != nil {
		m.receiver, m.pointer = receiverType(recv, src)
	}
	if params := n.ChildByFieldName("parameters"); params != nil {
		m.params = arity(params)
		m.param = firstType(params, src)
	}
	if result := n.ChildByFieldName("result"); result != nil {
		if result.Type() == "parameter_list" {
			m.results = arity(result)
			m.result = firstType(result, src)
		} else {
			m.results = 1
			m.result = result.Content(src)
		}
	}
	return m
}

func (m method) entry() (Entry, bool) {
	if !token.IsExported(m.name) {
		return Entry{}, false
	}
	pos := m.node.ChildByFieldName("name").StartPoint()
	e := Entry{
		Member:   m.name,
		Receiver: m.receiver,
		Pointer:  m.pointer,
		Line:     int(pos.Row) + 1,
		Column:   int(pos.Column) + 1,
	}
	switch {
	case strings.HasPrefix(m.name, handlerPrefix) && len(m.name) > len(handlerPrefix):
		if m.params != 1 {
			return Entry{}, false
		}
		e.Kind = Handler
		e.Path = strings.TrimPrefix(m.name, handlerPrefix)
		e.Type = m.param
	case m.params == 0 && m.results == 1:
		e.Kind = Accessor
		e.Path = m.name
		e.Type = m.result
	default:
		return Entry{}, false
	}
	return e, true
}

func receiverType(recv *sitter.Node, src []byte) (string, bool) {
	decl := namedChildOfType(recv, "parameter_declaration")
	if decl == nil {
		return "", false
	}
	typ := decl.ChildByFieldName("type")
	if typ == nil {
		return "", false
	}
	pointer := false
	if typ.Type() == "pointer_type" {
		pointer = true
		typ = namedChildOfType(typ, "type_identifier")
		if typ == nil {
			return "", false
		}
	}
	if typ.Type() != "type_identifier" {
		return "", false
	}
	return typ.Content(src), pointer
}

// arity counts declared parameters; "a, b int" counts twice.
func arity(list *sitter.Node) int {
	n := 0
	for i := 0; i < int(list.NamedChildCount()); i++ {
		c := list.NamedChild(i)
		if c.Type() != "parameter_declaration" && c.Type() != "variadic_parameter_declaration" {
			continue
		}
		names := 0
		for j := 0; j < int(c.ChildCount()); j++ {
			if c.FieldNameForChild(j) == "name" {
				names++
			}
		}
		n += max(names, 1)
	}
	return n
}

func firstType(list *sitter.Node, src []byte) string {
	for i := 0; i < int(list.NamedChildCount()); i++ {
		c := list.NamedChild(i)
		if c.Type() != "parameter_declaration" && c.Type() != "variadic_parameter_declaration" {
			continue
		}
		if typ := c.ChildByFieldName("type"); typ != nil {
			return typ.Content(src)
		}
	}
	return ""
}
