package behavior

import "fmt"

// BehaviorParseError reports override source that does not parse.
// Line and Column are 1-based.
type BehaviorParseError struct {
	Line    int
	Column  int
	Message string
}

func (e *BehaviorParseError) Error() string {
	return fmt.Sprintf("behavior %d:%d: %s", e.Line, e.Column, e.Message)
}
