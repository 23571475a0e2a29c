package vm

import "fmt"

// InvalidEncodingError reports a payload that does not match the codec's
// grammar. Offset is the byte position of the unexpected input.
type InvalidEncodingError struct {
	Offset   int
	Expected string
}

func (e *InvalidEncodingError) Error() string {
	return fmt.Sprintf("invalid encoding at offset %d: expected %s", e.Offset, e.Expected)
}

// InputTypeError reports a value whose Go type cannot be stored in the
// named property.
type InputTypeError struct {
	Property string
	Want     string
	Value    any
}

func (e *InputTypeError) Error() string {
	return fmt.Sprintf("input %s: cannot use %T as %s", e.Property, e.Value, e.Want)
}

// As converts an input value to the parameter type of a handler. Numeric
// values convert between Go integer and float types when exact.
func As[T any](v any, property string) (T, error) {
	if x, ok := v.(T); ok {
		return x, nil
	}
	var zero T
	var out any
	switch any(zero).(type) {
	case int64:
		if n, ok := toInt(v); ok {
			out = n
		}
	case int:
		if n, ok := toInt(v); ok {
			out = int(n)
		}
	case int32:
		if n, ok := toInt(v); ok && n == int64(int32(n)) {
			out = int32(n)
		}
	case float64:
		if f, ok := toFloat(v); ok {
			out = f
		}
	case float32:
		if f, ok := toFloat(v); ok {
			out = float32(f)
		}
	}
	if x, ok := out.(T); ok {
		return x, nil
	}
	return zero, &InputTypeError{Property: property, Want: fmt.Sprintf("%T", zero), Value: v}
}
