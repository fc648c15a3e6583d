package frame

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dcrodman/bastion/internal/core/encryption"
)

var testSessionKey = []byte("frame-test-session-key!!")

func TestHeader(t *testing.T) {
	h := Header{ID: 24101, Length: 0x012345, Version: 1}
	b := AppendHeader(nil, h)

	want := []byte{0x5E, 0x25, 0x01, 0x23, 0x45, 0x00, 0x01}
	if diff := cmp.Diff(want, b); diff != "" {
		t.Fatalf("AppendHeader() layout mismatch; diff:\n%s", diff)
	}

	got, err := ParseHeader(b)
	if err != nil {
		t.Fatalf("ParseHeader() returned an unexpected error: %v", err)
	}
	if diff := cmp.Diff(h, got); diff != "" {
		t.Errorf("ParseHeader() mismatch; diff:\n%s", diff)
	}

	if _, err := ParseHeader(b[:HeaderSize-1]); err == nil {
		t.Errorf("expected ParseHeader() to reject a short header")
	}
}

func TestEncode_DoesNotModifyBody(t *testing.T) {
	stream, _ := encryption.NewStream(testSessionKey)
	body := []byte("plaintext body")
	original := append([]byte(nil), body...)

	out, err := Encode(10101, 0, body, stream)
	if err != nil {
		t.Fatalf("Encode() returned an unexpected error: %v", err)
	}
	if diff := cmp.Diff(original, body); diff != "" {
		t.Errorf("Encode() modified the caller's body; diff:\n%s", diff)
	}
	if len(out) != HeaderSize+len(body) {
		t.Errorf("expected %d byte frame, got %d", HeaderSize+len(body), len(out))
	}
	if cmp.Equal(out[HeaderSize:], body) {
		t.Errorf("expected body to be encrypted")
	}
}

func TestEncode_TooLarge(t *testing.T) {
	if _, err := Encode(1, 0, make([]byte, MaxBodySize+1), nil); err == nil {
		t.Errorf("expected Encode() to reject a body that overflows the length field")
	}
}

// encodeAll encrypts the bodies in order with one stream, as a client would.
func encodeAll(t *testing.T, frames []Frame) []byte {
	t.Helper()
	stream, _ := encryption.NewStream(testSessionKey)

	var wire []byte
	for _, f := range frames {
		b, err := Encode(f.ID, f.Version, f.Body, stream)
		if err != nil {
			t.Fatalf("Encode() returned an unexpected error: %v", err)
		}
		wire = append(wire, b...)
	}
	return wire
}

func decodeChunks(t *testing.T, chunks [][]byte) []Frame {
	t.Helper()
	stream, _ := encryption.NewStream(testSessionKey)
	d := NewDecoder(stream, 0)

	var frames []Frame
	for _, chunk := range chunks {
		d.Feed(chunk)
		for {
			f, err := d.Next()
			if err != nil {
				t.Fatalf("Next() returned an unexpected error: %v", err)
			}
			if f == nil {
				break
			}
			frames = append(frames, *f)
		}
	}
	if d.Buffered() != 0 {
		t.Errorf("expected all bytes to be consumed, %d left", d.Buffered())
	}
	return frames
}

func testFrames() []Frame {
	return []Frame{
		{Header: Header{ID: 10108, Length: 0}, Body: []byte{}},
		{Header: Header{ID: 10101, Length: 11, Version: 2}, Body: []byte("hello world")},
		{Header: Header{ID: 14102, Length: 300}, Body: make([]byte, 300)},
		{Header: Header{ID: 10212, Length: 4}, Body: []byte{0, 0, 0, 0}},
	}
}

func TestDecoder_WholeStream(t *testing.T) {
	want := testFrames()
	got := decodeChunks(t, [][]byte{encodeAll(t, want)})
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decoded frames mismatch; diff:\n%s", diff)
	}
}

func TestDecoder_ArbitraryChunks(t *testing.T) {
	want := testFrames()
	wire := encodeAll(t, want)
	rnd := rand.New(rand.NewSource(7))

	for i := 0; i < 50; i++ {
		var chunks [][]byte
		for rest := wire; len(rest) > 0; {
			n := 1 + rnd.Intn(len(rest))
			if rnd.Intn(3) == 0 {
				n = 1
			}
			chunks = append(chunks, rest[:n])
			rest = rest[n:]
		}

		got := decodeChunks(t, chunks)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("chunking %d: decoded frames mismatch; diff:\n%s", i, diff)
		}
	}
}

func TestDecoder_ByteAtATime(t *testing.T) {
	want := testFrames()
	wire := encodeAll(t, want)

	chunks := make([][]byte, len(wire))
	for i := range wire {
		chunks[i] = wire[i : i+1]
	}
	if diff := cmp.Diff(want, decodeChunks(t, chunks)); diff != "" {
		t.Errorf("decoded frames mismatch; diff:\n%s", diff)
	}
}

func TestDecoder_WaitsForCompleteFrame(t *testing.T) {
	d := NewDecoder(nil, 0)
	wire, _ := Encode(1, 0, []byte("abcdef"), nil)

	d.Feed(wire[:3])
	if f, err := d.Next(); f != nil || err != nil {
		t.Fatalf("expected no frame from a partial header, got %v, %v", f, err)
	}
	d.Feed(wire[3 : len(wire)-1])
	if f, err := d.Next(); f != nil || err != nil {
		t.Fatalf("expected no frame from a partial body, got %v, %v", f, err)
	}
	d.Feed(wire[len(wire)-1:])
	f, err := d.Next()
	if err != nil || f == nil {
		t.Fatalf("expected a frame, got %v, %v", f, err)
	}
	if string(f.Body) != "abcdef" {
		t.Errorf("unexpected body %q", f.Body)
	}
}

func TestDecoder_OversizedBody(t *testing.T) {
	d := NewDecoder(nil, 64)
	d.Feed(AppendHeader(nil, Header{ID: 10101, Length: 65}))

	_, err := d.Next()
	if !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("expected ErrProtocolViolation, got %v", err)
	}

	// The decoder stays poisoned even if valid data follows.
	valid, _ := Encode(10108, 0, nil, nil)
	d.Feed(valid)
	if _, err := d.Next(); !errors.Is(err, ErrProtocolViolation) {
		t.Errorf("expected the decoder to keep failing, got %v", err)
	}
}

func TestDecoder_LimitDefaults(t *testing.T) {
	d := NewDecoder(nil, -1)
	if d.maxBodySize != DefaultMaxBodySize {
		t.Errorf("expected default limit %d, got %d", DefaultMaxBodySize, d.maxBodySize)
	}
	d = NewDecoder(nil, MaxBodySize+1)
	if d.maxBodySize != DefaultMaxBodySize {
		t.Errorf("expected default limit for out of range value, got %d", d.maxBodySize)
	}
}
