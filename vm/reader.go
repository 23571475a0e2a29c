package vm

import (
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

const maxSkipDepth = 512

// Reader consumes an encoded payload. Whitespace between tokens is
// ignored; every method reports malformed input as *InvalidEncodingError.
type Reader struct {
	data []byte
	off  int
}

// NewReader returns a reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Offset returns the current read position.
func (r *Reader) Offset() int { return r.off }

func (r *Reader) fail(expected string) error {
	return &InvalidEncodingError{Offset: r.off, Expected: expected}
}

func (r *Reader) skipWS() {
	for r.off < len(r.data) {
		switch r.data[r.off] {
		case ' ', '\t', '\n', '\r':
			r.off++
		default:
			return
		}
	}
}

func (r *Reader) peek() (byte, bool) {
	r.skipWS()
	if r.off >= len(r.data) {
		return 0, false
	}
	return r.data[r.off], true
}

// Expect consumes the byte c.
func (r *Reader) Expect(c byte) error {
	if b, ok := r.peek(); !ok || b != c {
		return r.fail(strconv.Quote(string(c)))
	}
	r.off++
	return nil
}

// Next advances through an object or array body. It consumes close and
// returns false at the end of the body, and otherwise consumes the comma
// separating members (except before the first) and returns true.
func (r *Reader) Next(close byte, first bool) (bool, error) {
	b, ok := r.peek()
	if ok && b == close {
		r.off++
		return false, nil
	}
	if first {
		return true, nil
	}
	if !ok || b != ',' {
		return false, r.fail(strconv.Quote(",") + " or " + strconv.Quote(string(close)))
	}
	r.off++
	return true, nil
}

// Name reads a property name and its colon.
func (r *Reader) Name() (string, error) {
	name, err := r.String()
	if err != nil {
		return "", err
	}
	if err := r.Expect(':'); err != nil {
		return "", err
	}
	return name, nil
}

// String reads a quoted string.
func (r *Reader) String() (string, error) {
	if err := r.Expect('"'); err != nil {
		return "", r.fail("string")
	}
	start := r.off
	for i := start; i < len(r.data); i++ {
		switch c := r.data[i]; {
		case c == '"':
			r.off = i + 1
			return string(r.data[start:i]), nil
		case c == '\\':
			return r.unescape(start)
		case c < 0x20:
			r.off = i
			return "", r.fail("string")
		}
	}
	r.off = len(r.data)
	return "", r.fail(strconv.Quote(`"`))
}

func (r *Reader) unescape(start int) (string, error) {
	var sb strings.Builder
	i := start
	for i < len(r.data) {
		c := r.data[i]
		switch {
		case c == '"':
			r.off = i + 1
			return sb.String(), nil
		case c < 0x20:
			r.off = i
			return "", r.fail("string")
		case c != '\\':
			sb.WriteByte(c)
			i++
			continue
		}
		if i+1 >= len(r.data) {
			break
		}
		switch e := r.data[i+1]; e {
		case '"', '\\', '/':
			sb.WriteByte(e)
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'u':
			cp, ok := r.hex4(i + 2)
			if !ok {
				r.off = i
				return "", r.fail("escape")
			}
			i += 6
			if utf16.IsSurrogate(cp) {
				if lo, ok := r.lowSurrogate(i); ok {
					cp = utf16.DecodeRune(cp, lo)
					i += 6
				} else {
					cp = utf8.RuneError
				}
			}
			sb.WriteRune(cp)
			continue
		default:
			r.off = i
			return "", r.fail("escape")
		}
		i += 2
	}
	r.off = len(r.data)
	return "", r.fail(strconv.Quote(`"`))
}

func (r *Reader) lowSurrogate(i int) (rune, bool) {
	if i+1 >= len(r.data) || r.data[i] != '\\' || r.data[i+1] != 'u' {
		return 0, false
	}
	lo, ok := r.hex4(i + 2)
	if !ok || lo < 0xdc00 || lo > 0xdfff {
		return 0, false
	}
	return lo, true
}

func (r *Reader) hex4(i int) (rune, bool) {
	if i+4 > len(r.data) {
		return 0, false
	}
	n, err := strconv.ParseUint(string(r.data[i:i+4]), 16, 32)
	if err != nil {
		return 0, false
	}
	return rune(n), true
}

func (r *Reader) number() []byte {
	r.skipWS()
	start := r.off
	for r.off < len(r.data) {
		switch c := r.data[r.off]; {
		case c >= '0' && c <= '9', c == '-', c == '+', c == '.', c == 'e', c == 'E':
			r.off++
		default:
			return r.data[start:r.off]
		}
	}
	return r.data[start:r.off]
}

// Int reads an integer.
func (r *Reader) Int() (int64, error) {
	start := r.off
	tok := r.number()
	n, err := strconv.ParseInt(string(tok), 10, 64)
	if err != nil {
		r.off = start
		r.skipWS()
		return 0, r.fail("integer")
	}
	return n, nil
}

// Float reads a number. null reads as zero.
func (r *Reader) Float() (float64, error) {
	if r.literal("null") {
		return 0, nil
	}
	start := r.off
	tok := r.number()
	f, err := strconv.ParseFloat(string(tok), 64)
	if err != nil {
		r.off = start
		r.skipWS()
		return 0, r.fail("number")
	}
	return f, nil
}

// Bool reads true or false.
func (r *Reader) Bool() (bool, error) {
	switch {
	case r.literal("true"):
		return true, nil
	case r.literal("false"):
		return false, nil
	}
	return false, r.fail("boolean")
}

func (r *Reader) literal(word string) bool {
	r.skipWS()
	if len(r.data)-r.off >= len(word) && string(r.data[r.off:r.off+len(word)]) == word {
		r.off += len(word)
		return true
	}
	return false
}

// Skip discards one value of any type.
func (r *Reader) Skip() error {
	return r.skip(0)
}

func (r *Reader) skip(depth int) error {
	if depth > maxSkipDepth {
		return r.fail("shallower value")
	}
	c, ok := r.peek()
	if !ok {
		return r.fail("value")
	}
	switch {
	case c == '{':
		r.off++
		for first := true; ; first = false {
			more, err := r.Next('}', first)
			if err != nil {
				return err
			}
			if !more {
				return nil
			}
			if _, err := r.Name(); err != nil {
				return err
			}
			if err := r.skip(depth + 1); err != nil {
				return err
			}
		}
	case c == '[':
		r.off++
		for first := true; ; first = false {
			more, err := r.Next(']', first)
			if err != nil {
				return err
			}
			if !more {
				return nil
			}
			if err := r.skip(depth + 1); err != nil {
				return err
			}
		}
	case c == '"':
		_, err := r.String()
		return err
	case c == 't' || c == 'f':
		_, err := r.Bool()
		return err
	case c == 'n':
		if r.literal("null") {
			return nil
		}
	case c == '-' || (c >= '0' && c <= '9'):
		_, err := r.Float()
		return err
	}
	return r.fail("value")
}

// End checks that only whitespace remains.
func (r *Reader) End() error {
	if _, ok := r.peek(); ok {
		return r.fail("end of input")
	}
	return nil
}
