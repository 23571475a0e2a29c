package build

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/agentic-research/vmgen/internal/behavior"
	"github.com/agentic-research/vmgen/vm"
)

// Checked rejects units whose source has syntax errors before handing
// them to Next.
type Checked struct {
	Next Builder
}

func (b Checked) Build(ctx context.Context, u *Unit) (vm.Codec, error) {
	diags, err := Syntax(ctx, u.Source)
	if err != nil {
		return nil, err
	}
	if len(diags) > 0 {
		return nil, &CompilationError{Class: u.Class().Name, Diagnostics: diags}
	}
	return b.Next.Build(ctx, u)
}

// Syntax returns every ERROR and MISSING node of src parsed as Go.
func Syntax(ctx context.Context, src []byte) ([]Diagnostic, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || !root.HasError() {
		return nil, nil
	}
	var diags []Diagnostic
	for _, e := range behavior.SyntaxErrors(root, 0) {
		diags = append(diags, Diagnostic{Line: e.Line, Column: e.Column, Message: e.Message})
	}
	return diags, nil
}
