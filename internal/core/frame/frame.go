// Package frame splits a connection's byte stream into messages.
//
// Every message travels as one frame: a 7 byte header holding the message id
// (uint16), the body length (uint24) and the protocol version (uint16), all
// big endian, followed by the body. Bodies are encrypted with the connection's
// stream cipher, headers never are.
package frame

import (
	"crypto/cipher"
	"errors"
	"fmt"
)

const (
	// HeaderSize is the length of the fixed frame header.
	HeaderSize = 7

	// MaxBodySize is the largest length a uint24 can declare.
	MaxBodySize = 1<<24 - 1

	// DefaultMaxBodySize is used when a Decoder is created without a limit.
	DefaultMaxBodySize = 1 << 20
)

// ErrProtocolViolation is returned when the peer sends a header that cannot
// belong to a valid frame. It is not recoverable.
var ErrProtocolViolation = errors.New("protocol violation")

// Header is the unencrypted prefix of every frame.
type Header struct {
	ID      uint16
	Length  uint32
	Version uint16
}

// Frame is a complete frame with its body already decrypted.
type Frame struct {
	Header
	Body []byte
}

// ParseHeader decodes the first HeaderSize bytes of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("frame: header needs %d bytes, got %d", HeaderSize, len(b))
	}
	return Header{
		ID:      uint16(b[0])<<8 | uint16(b[1]),
		Length:  uint32(b[2])<<16 | uint32(b[3])<<8 | uint32(b[4]),
		Version: uint16(b[5])<<8 | uint16(b[6]),
	}, nil
}

// AppendHeader appends the wire form of h to dst.
func AppendHeader(dst []byte, h Header) []byte {
	return append(dst,
		byte(h.ID>>8), byte(h.ID),
		byte(h.Length>>16), byte(h.Length>>8), byte(h.Length),
		byte(h.Version>>8), byte(h.Version),
	)
}

// Encode builds a complete frame for body. The body is copied and, when
// stream is non-nil, encrypted, so the caller's slice is never modified.
// Encoding advances stream; frames must be written in the order they are encoded.
func Encode(id, version uint16, body []byte, stream cipher.Stream) ([]byte, error) {
	if len(body) > MaxBodySize {
		return nil, fmt.Errorf("frame: body of %d bytes does not fit in a frame", len(body))
	}

	out := make([]byte, HeaderSize+len(body))
	AppendHeader(out[:0], Header{ID: id, Length: uint32(len(body)), Version: version})
	if stream != nil {
		stream.XORKeyStream(out[HeaderSize:], body)
	} else {
		copy(out[HeaderSize:], body)
	}
	return out, nil
}
