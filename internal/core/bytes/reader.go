// Package bytes implements the primitive encodings used by every message
// body: big endian fixed width integers, single byte booleans, and int32
// length-prefixed strings and byte arrays.
package bytes

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrTruncatedData is returned when a read would go past the end of the buffer.
var ErrTruncatedData = errors.New("truncated data")

// absentLength is the length prefix used on the wire for a missing string or byte array.
const absentLength = -1

// NullString is a string that may be absent on the wire (length -1). Absent
// and empty strings are encoded differently and must not be conflated.
type NullString struct {
	String string
	Valid  bool
}

// NewString returns a present NullString holding s.
func NewString(s string) NullString {
	return NullString{String: s, Valid: true}
}

// Reader is a forward-only cursor over a message body. The first failed read
// is remembered; every read after that returns a zero value, so callers can
// decode a whole structure and check Err once at the end.
type Reader struct {
	data   []byte
	offset int
	err    error
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Err returns the first error encountered by the Reader, if any.
func (r *Reader) Err() error { return r.err }

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int { return r.offset }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.offset }

// Fail records err as the Reader's error unless one is already set. It lets
// type specific decoders stop the enclosing decode the same way a short read does.
func (r *Reader) Fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// next returns the next n bytes and advances the cursor, or nil if fewer
// than n bytes remain.
func (r *Reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > r.Remaining() {
		r.err = fmt.Errorf("reading %d bytes at offset %d of %d: %w", n, r.offset, len(r.data), ErrTruncatedData)
		return nil
	}
	b := r.data[r.offset : r.offset+n]
	r.offset += n
	return b
}

func (r *Reader) Uint8() uint8 {
	b := r.next(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) Int8() int8 { return int8(r.Uint8()) }

// Bool reads a single byte where any nonzero value is true.
func (r *Reader) Bool() bool { return r.Uint8() != 0 }

func (r *Reader) Uint16() uint16 {
	b := r.next(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *Reader) Int16() int16 { return int16(r.Uint16()) }

func (r *Reader) Uint32() uint32 {
	b := r.next(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *Reader) Int32() int32 { return int32(r.Uint32()) }

func (r *Reader) Uint64() uint64 {
	b := r.next(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (r *Reader) Int64() int64 { return int64(r.Uint64()) }

// String reads an int32 length followed by that many UTF-8 bytes. A length of
// -1 yields an absent NullString.
func (r *Reader) String() NullString {
	b, ok := r.prefixed()
	if !ok {
		return NullString{}
	}
	return NewString(string(b))
}

// Blob reads an int32 length followed by that many raw bytes. A length of -1
// yields nil, a length of 0 an empty non-nil slice.
func (r *Reader) Blob() []byte {
	b, ok := r.prefixed()
	if !ok {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// prefixed reads a length prefixed block, reporting false for an absent
// block or a failed read.
func (r *Reader) prefixed() ([]byte, bool) {
	length := r.Int32()
	if r.err != nil || length == absentLength {
		return nil, false
	}
	if length < 0 {
		r.err = fmt.Errorf("invalid length %d at offset %d: %w", length, r.offset-4, ErrTruncatedData)
		return nil, false
	}
	// next refuses lengths beyond the buffer, so a hostile prefix never allocates.
	b := r.next(int(length))
	return b, b != nil
}
