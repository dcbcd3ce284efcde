package format

// streaming.go holds the reader chain every text loader reads through:
//
//   - bomReader drops a leading UTF-8 BOM (0xEF 0xBB 0xBF) written by Excel
//     and other Windows tools
//   - utf8Validator fails the read at the first invalid UTF-8 byte
//   - CountingReader tracks bytes consumed so callers can log throughput
//
// Wrap applies all three in that order.

import (
	"fmt"
	"io"
	"unicode/utf8"
)

// EncodingError reports the first byte that is not valid UTF-8.
type EncodingError struct {
	Offset int64
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("invalid UTF-8 encoding at byte offset %d", e.Offset)
}

// utf8Validator passes bytes through unchanged and returns an EncodingError
// once it sees invalid UTF-8. A multi-byte rune split across two reads is
// checked when its tail arrives; one still incomplete at EOF is invalid.
type utf8Validator struct {
	r      io.Reader
	carry  []byte
	offset int64 // bytes read from r so far
	err    error
}

func newUTF8Validator(r io.Reader) *utf8Validator {
	return &utf8Validator{r: r, carry: make([]byte, 0, utf8.UTFMax)}
}

func (v *utf8Validator) Read(p []byte) (int, error) {
	if v.err != nil {
		return 0, v.err
	}
	n, err := v.r.Read(p)
	if n > 0 {
		if verr := v.check(p[:n]); verr != nil {
			v.err = verr
			return 0, verr
		}
	}
	if err == io.EOF && len(v.carry) > 0 {
		v.err = &EncodingError{Offset: v.offset - int64(len(v.carry))}
		return 0, v.err
	}
	return n, err
}

func (v *utf8Validator) check(b []byte) error {
	start := v.offset - int64(len(v.carry))
	v.offset += int64(len(b))

	data := b
	if len(v.carry) > 0 {
		data = make([]byte, 0, len(v.carry)+len(b))
		data = append(append(data, v.carry...), b...)
	}
	end := len(data) - truncatedTail(data)
	if !utf8.Valid(data[:end]) {
		for i := 0; i < end; {
			r, size := utf8.DecodeRune(data[i:end])
			if r == utf8.RuneError && size == 1 {
				return &EncodingError{Offset: start + int64(i)}
			}
			i += size
		}
	}
	v.carry = append(v.carry[:0], data[end:]...)
	return nil
}

// truncatedTail returns how many trailing bytes form the start of a
// multi-byte rune that is not yet complete.
func truncatedTail(data []byte) int {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b&0xC0 == 0x80 {
			continue // continuation byte
		}
		if b < 0xC0 {
			return 0
		}
		if i < leadLen(b) {
			return i
		}
		return 0
	}
	return 0
}

func leadLen(b byte) int {
	switch {
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}

// bomReader skips a UTF-8 byte order mark at the start of the stream.
type bomReader struct {
	r       io.Reader
	checked bool
	head    []byte
}

func newBOMReader(r io.Reader) *bomReader { return &bomReader{r: r} }

func (b *bomReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		buf := make([]byte, 3)
		n, err := io.ReadFull(b.r, buf)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return 0, err
		}
		if n == 3 && buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF {
			n = 0
		}
		b.head = buf[:n]
	}

	if len(b.head) > 0 {
		c := copy(p, b.head)
		b.head = b.head[c:]
		return c, nil
	}
	return b.r.Read(p)
}

// CountingReader counts bytes read through it.
type CountingReader struct {
	r         io.Reader
	BytesRead int64
}

// NewCountingReader wraps r.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{r: r}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.BytesRead += int64(n)
	return n, err
}

// Wrap strips a BOM, validates UTF-8 and counts bytes, in that order.
func Wrap(r io.Reader) *CountingReader {
	return NewCountingReader(newUTF8Validator(newBOMReader(r)))
}
