package frame

import (
	"crypto/cipher"
	"fmt"
)

type decoderState int

const (
	awaitingHeader decoderState = iota
	awaitingBody
	decrypted
)

func (s decoderState) String() string {
	switch s {
	case awaitingHeader:
		return "awaiting header"
	case awaitingBody:
		return "awaiting body"
	case decrypted:
		return "decrypted"
	default:
		return fmt.Sprintf("decoderState(%d)", int(s))
	}
}

// Decoder reassembles frames from arbitrarily sized chunks of a byte stream.
// It is not safe for concurrent use; each connection owns one Decoder.
type Decoder struct {
	stream      cipher.Stream
	maxBodySize int

	state  decoderState
	header Header
	ready  *Frame
	buf    []byte
	err    error
}

// NewDecoder returns a Decoder that rejects bodies larger than maxBodySize.
// A nil stream leaves bodies as they arrived until SetStream is called.
func NewDecoder(stream cipher.Stream, maxBodySize int) *Decoder {
	if maxBodySize <= 0 || maxBodySize > MaxBodySize {
		maxBodySize = DefaultMaxBodySize
	}
	return &Decoder{stream: stream, maxBodySize: maxBodySize}
}

// SetStream installs the cipher used for every body completed from now on.
func (d *Decoder) SetStream(stream cipher.Stream) { d.stream = stream }

// Buffered returns the number of bytes received but not yet returned as a frame.
func (d *Decoder) Buffered() int { return len(d.buf) }

// Feed appends bytes read from the connection.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Next returns the next complete frame, or nil if more bytes are needed.
// Once an error is returned the Decoder is unusable and every later call
// returns the same error.
func (d *Decoder) Next() (*Frame, error) {
	if d.err != nil {
		return nil, d.err
	}

	for {
		switch d.state {
		case awaitingHeader:
			if len(d.buf) < HeaderSize {
				return nil, nil
			}
			h, _ := ParseHeader(d.buf)
			if int(h.Length) > d.maxBodySize {
				d.err = fmt.Errorf("frame %d declares a %d byte body (limit %d): %w",
					h.ID, h.Length, d.maxBodySize, ErrProtocolViolation)
				d.buf = nil
				return nil, d.err
			}
			d.header = h
			d.buf = d.buf[HeaderSize:]
			d.state = awaitingBody

		case awaitingBody:
			n := int(d.header.Length)
			if len(d.buf) < n {
				return nil, nil
			}
			// Copy the body out so the rest of the buffer can be reused.
			body := make([]byte, n)
			if d.stream != nil {
				d.stream.XORKeyStream(body, d.buf[:n])
			} else {
				copy(body, d.buf[:n])
			}
			d.buf = d.buf[n:]
			d.ready = &Frame{Header: d.header, Body: body}
			d.state = decrypted

		case decrypted:
			f := d.ready
			d.ready = nil
			d.state = awaitingHeader
			d.compact()
			return f, nil

		default:
			d.err = fmt.Errorf("frame: decoder in unexpected state %v", d.state)
			return nil, d.err
		}
	}
}

// compact releases the consumed prefix of the buffer once it is empty so a
// long lived connection does not keep growing its backing array.
func (d *Decoder) compact() {
	if len(d.buf) == 0 {
		d.buf = d.buf[:0:0]
	}
}
