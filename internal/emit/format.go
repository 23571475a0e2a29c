package emit

import (
	"fmt"

	"mvdan.cc/gofumpt/format"
)

// Format formats generated Go source with gofumpt. A failure means the
// generator produced invalid Go.
func Format(src []byte) ([]byte, error) {
	formatted, err := format.Source(src, format.Options{})
	if err != nil {
		return nil, fmt.Errorf("format generated source: %w", err)
	}
	return formatted, nil
}
