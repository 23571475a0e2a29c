// Package build turns a lowered view-model program into a working codec.
//
// Backends compose: Cache wraps Checked, which wraps Interp or Plugin.
package build

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentic-research/vmgen/internal/bufop"
	"github.com/agentic-research/vmgen/internal/model"
	"github.com/agentic-research/vmgen/vm"
)

// Unit is one codec to build.
type Unit struct {
	// ClassID indexes the model class whose codec is built; 0 is the root.
	ClassID int
	// Source is the emitted codec file, package main.
	Source  []byte
	Program *bufop.Program
	Model   *model.Model
}

// Class returns the class the unit builds.
func (u *Unit) Class() *model.Class { return u.Model.Classes[u.ClassID] }

// Builder produces a codec for a unit.
type Builder interface {
	Build(ctx context.Context, u *Unit) (vm.Codec, error)
}

// Diagnostic is one compiler or syntax complaint about generated source.
type Diagnostic struct {
	Line    int // 1-based; 0 when unknown
	Column  int
	Message string
}

func (d Diagnostic) String() string {
	if d.Line == 0 {
		return d.Message
	}
	return fmt.Sprintf("%d:%d: %s", d.Line, d.Column, d.Message)
}

// CompilationError reports generated source that does not build. It is
// never retried.
type CompilationError struct {
	Class       string
	Diagnostics []Diagnostic
}

func (e *CompilationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "compile %s codec", e.Class)
	for i, d := range e.Diagnostics {
		if i == 3 {
			fmt.Fprintf(&sb, " (and %d more)", len(e.Diagnostics)-i)
			break
		}
		sb.WriteString(": ")
		sb.WriteString(d.String())
	}
	return sb.String()
}
