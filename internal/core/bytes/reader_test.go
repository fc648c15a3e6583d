package bytes

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReader_Integers(t *testing.T) {
	w := NewWriter()
	w.Uint8(0xAB)
	w.Int8(-2)
	w.Uint16(0x1234)
	w.Int16(math.MinInt16)
	w.Uint32(0xDEADBEEF)
	w.Int32(-1)
	w.Uint64(math.MaxUint64)
	w.Int64(946720861000)

	want := []byte{
		0xAB,
		0xFE,
		0x12, 0x34,
		0x80, 0x00,
		0xDE, 0xAD, 0xBE, 0xEF,
		0xFF, 0xFF, 0xFF, 0xFF,
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
		0x00, 0x00, 0x00, 0xDC, 0x6C, 0xF5, 0xEB, 0x48,
	}
	if diff := cmp.Diff(want, w.Bytes()); diff != "" {
		t.Fatalf("unexpected encoding; diff:\n%s", diff)
	}

	r := NewReader(w.Bytes())
	if got := r.Uint8(); got != 0xAB {
		t.Errorf("Uint8() = %x", got)
	}
	if got := r.Int8(); got != -2 {
		t.Errorf("Int8() = %d", got)
	}
	if got := r.Uint16(); got != 0x1234 {
		t.Errorf("Uint16() = %x", got)
	}
	if got := r.Int16(); got != math.MinInt16 {
		t.Errorf("Int16() = %d", got)
	}
	if got := r.Uint32(); got != 0xDEADBEEF {
		t.Errorf("Uint32() = %x", got)
	}
	if got := r.Int32(); got != -1 {
		t.Errorf("Int32() = %d", got)
	}
	if got := r.Uint64(); got != math.MaxUint64 {
		t.Errorf("Uint64() = %d", got)
	}
	if got := r.Int64(); got != 946720861000 {
		t.Errorf("Int64() = %d", got)
	}
	if r.Err() != nil || r.Remaining() != 0 {
		t.Errorf("expected clean, fully consumed reader; err = %v, remaining = %d", r.Err(), r.Remaining())
	}
}

func TestReader_Bool(t *testing.T) {
	r := NewReader([]byte{0x00, 0x01, 0x7F})
	if r.Bool() {
		t.Error("expected 0x00 to decode as false")
	}
	if !r.Bool() {
		t.Error("expected 0x01 to decode as true")
	}
	if !r.Bool() {
		t.Error("expected any nonzero byte to decode as true")
	}
}

func TestReader_String(t *testing.T) {
	tests := []struct {
		name  string
		value NullString
		wire  []byte
	}{
		{
			name:  "absent string",
			value: NullString{},
			wire:  []byte{0xFF, 0xFF, 0xFF, 0xFF},
		},
		{
			name:  "empty string",
			value: NewString(""),
			wire:  []byte{0x00, 0x00, 0x00, 0x00},
		},
		{
			name:  "utf-8 text",
			value: NewString("Bärbel"),
			wire:  []byte{0x00, 0x00, 0x00, 0x07, 'B', 0xC3, 0xA4, 'r', 'b', 'e', 'l'},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWriter()
			w.String(tt.value)
			if diff := cmp.Diff(tt.wire, w.Bytes()); diff != "" {
				t.Fatalf("String() encoding mismatch; diff:\n%s", diff)
			}

			r := NewReader(tt.wire)
			if diff := cmp.Diff(tt.value, r.String()); diff != "" {
				t.Errorf("String() decoding mismatch; diff:\n%s", diff)
			}
			if r.Err() != nil {
				t.Errorf("unexpected error: %v", r.Err())
			}
		})
	}
}

func TestReader_Blob(t *testing.T) {
	w := NewWriter()
	w.Blob(nil)
	w.Blob([]byte{})
	w.Blob([]byte{1, 2, 3})

	r := NewReader(w.Bytes())
	if got := r.Blob(); got != nil {
		t.Errorf("expected absent blob to decode as nil, got %v", got)
	}
	if got := r.Blob(); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil blob, got %#v", got)
	}
	if diff := cmp.Diff([]byte{1, 2, 3}, r.Blob()); diff != "" {
		t.Errorf("blob mismatch; diff:\n%s", diff)
	}
}

func TestReader_Truncation(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		read func(r *Reader)
	}{
		{"empty uint8", nil, func(r *Reader) { r.Uint8() }},
		{"short uint16", []byte{0x01}, func(r *Reader) { r.Uint16() }},
		{"short int32", []byte{0x01, 0x02, 0x03}, func(r *Reader) { r.Int32() }},
		{"short int64", []byte{0, 0, 0, 0, 0, 0, 0}, func(r *Reader) { r.Int64() }},
		{"string longer than buffer", []byte{0x00, 0x00, 0x00, 0x05, 'a', 'b'}, func(r *Reader) { r.String() }},
		{"huge string length", []byte{0x7F, 0xFF, 0xFF, 0xFF}, func(r *Reader) { r.String() }},
		{"negative blob length", []byte{0xFF, 0xFF, 0xFF, 0xFE}, func(r *Reader) { r.Blob() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(tt.data)
			tt.read(r)
			if !errors.Is(r.Err(), ErrTruncatedData) {
				t.Fatalf("expected ErrTruncatedData, got %v", r.Err())
			}
		})
	}
}

func TestReader_StickyError(t *testing.T) {
	r := NewReader([]byte{0x00, 0x01, 0x02, 0x03, 0x04})
	r.Int64()
	if r.Err() == nil {
		t.Fatal("expected short read to fail")
	}

	// Bytes are still available but the reader must stay failed.
	if got := r.Uint8(); got != 0 {
		t.Errorf("expected zero value after failure, got %d", got)
	}
	if r.Offset() != 0 {
		t.Errorf("expected cursor to stay in place, offset = %d", r.Offset())
	}

	first := r.Err()
	r.Fail(errors.New("second error"))
	if r.Err() != first {
		t.Errorf("Fail() replaced the original error: %v", r.Err())
	}
}
