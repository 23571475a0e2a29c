package model

import (
	"fmt"
	"strings"
)

// CodeBehindMismatchError reports an override that does not describe the
// schema: it names a property path that is absent, or binds a member to a
// property of the wrong kind.
type CodeBehindMismatchError struct {
	Path   string
	Member string
	Reason string
}

func (e *CodeBehindMismatchError) Error() string {
	msg := fmt.Sprintf("code-behind mismatch at %s", e.Path)
	if e.Member != "" {
		msg += fmt.Sprintf(" (%s)", e.Member)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// NameConflictError reports two generated declarations with one name.
type NameConflictError struct {
	Class string
	Name  string
	Paths []string
}

func (e *NameConflictError) Error() string {
	if e.Class == "" {
		return fmt.Sprintf("class name %s generated for %s", e.Name, strings.Join(e.Paths, " and "))
	}
	return fmt.Sprintf("%s.%s generated for %s", e.Class, e.Name, strings.Join(e.Paths, " and "))
}
