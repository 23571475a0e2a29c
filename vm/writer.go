package vm

import (
	"math"
	"strconv"
	"unicode/utf8"
)

// DefaultCapacity is the initial buffer size of an encode.
const DefaultCapacity = 256

// Writer is a fixed-capacity output buffer. Every Put reports whether it
// fit; on false the caller rewinds with Try, the buffer doubles, and the
// failed segment is re-emitted. Bytes never contains a partial write.
type Writer struct {
	buf   []byte
	n     int
	grows int
}

// NewWriter returns a writer with the given initial capacity.
func NewWriter(capacity int) *Writer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Writer{buf: make([]byte, capacity)}
}

// Bytes returns the committed output.
func (w *Writer) Bytes() []byte { return w.buf[:w.n:w.n] }

// Len returns the number of committed bytes.
func (w *Writer) Len() int { return w.n }

// Cap returns the current buffer capacity.
func (w *Writer) Cap() int { return len(w.buf) }

// Grows returns how many times the buffer was enlarged.
func (w *Writer) Grows() int { return w.grows }

// Try runs put until it fits, doubling the buffer and rewinding to the
// position before the attempt after every overflow.
func (w *Writer) Try(put func() bool) {
	mark := w.n
	for !put() {
		w.n = mark
		w.Grow()
	}
}

// Grow doubles the buffer, keeping committed bytes.
func (w *Writer) Grow() {
	size := 2 * len(w.buf)
	if size == 0 {
		size = DefaultCapacity
	}
	buf := make([]byte, size)
	copy(buf, w.buf[:w.n])
	w.buf = buf
	w.grows++
}

// PutByte writes one byte.
func (w *Writer) PutByte(c byte) bool {
	if w.n == len(w.buf) {
		return false
	}
	w.buf[w.n] = c
	w.n++
	return true
}

// PutRaw writes b verbatim.
func (w *Writer) PutRaw(b []byte) bool {
	if len(w.buf)-w.n < len(b) {
		return false
	}
	w.n += copy(w.buf[w.n:], b)
	return true
}

func (w *Writer) putRaw(s string) bool {
	if len(w.buf)-w.n < len(s) {
		return false
	}
	w.n += copy(w.buf[w.n:], s)
	return true
}

// PutName writes a property name and its colon, preceded by a comma unless
// it is the first member of the enclosing object.
func (w *Writer) PutName(name string, first bool) bool {
	if !first && !w.PutByte(',') {
		return false
	}
	return w.PutString(name) && w.PutByte(':')
}

const hex = "0123456789abcdef"

// PutString writes s as a quoted, escaped string. Invalid UTF-8 bytes are
// written as U+FFFD.
func (w *Writer) PutString(s string) bool {
	if !w.PutByte('"') {
		return false
	}
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			var ok bool
			switch {
			case c == '"' || c == '\\':
				ok = w.PutByte('\\') && w.PutByte(c)
			case c >= 0x20:
				ok = w.PutByte(c)
			case c == '\n':
				ok = w.putRaw(`\n`)
			case c == '\r':
				ok = w.putRaw(`\r`)
			case c == '\t':
				ok = w.putRaw(`\t`)
			case c == '\b':
				ok = w.putRaw(`\b`)
			case c == '\f':
				ok = w.putRaw(`\f`)
			default:
				ok = w.putRaw(`\u00`) && w.PutByte(hex[c>>4]) && w.PutByte(hex[c&0xf])
			}
			if !ok {
				return false
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			if !w.putRaw("\ufffd") {
				return false
			}
			i++
			continue
		}
		if !w.putRaw(s[i : i+size]) {
			return false
		}
		i += size
	}
	return w.PutByte('"')
}

// PutInt writes a decimal integer.
func (w *Writer) PutInt(v int64) bool {
	var tmp [20]byte
	return w.PutRaw(strconv.AppendInt(tmp[:0], v, 10))
}

// PutFloat writes the shortest decimal form that parses back to v.
// NaN and infinities have no representation and are written as null.
func (w *Writer) PutFloat(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return w.putRaw("null")
	}
	var tmp [32]byte
	return w.PutRaw(strconv.AppendFloat(tmp[:0], v, 'g', -1, 64))
}

// PutBool writes true or false.
func (w *Writer) PutBool(v bool) bool {
	if v {
		return w.putRaw("true")
	}
	return w.putRaw("false")
}
