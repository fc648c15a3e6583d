// Package packets defines every message exchanged with the game client and
// the registry used to map message ids to their decoders.
//
// The order in which a message reads and writes its fields is the wire
// layout. Fields whose purpose is not known are kept as opaque values and
// written back exactly as they were read.
package packets

import (
	"errors"

	"github.com/dcrodman/bastion/internal/core/bytes"
)

// Message ids for every registered variant. Ids in the 10000 range are sent
// by the client, ids in the 20000 range by the server.
const (
	LoginRequestID            uint16 = 10101
	KeepAliveRequestID        uint16 = 10108
	ChangeAvatarNameRequestID uint16 = 10212

	SessionKeyID        uint16 = 20000
	LoginFailedID       uint16 = 20103
	LoginSuccessID      uint16 = 20104
	KeepAliveResponseID uint16 = 20108
	OwnHomeDataID       uint16 = 24101
)

// ErrEncodeInvariant is returned when a message holds a combination of
// optional fields that has no wire representation.
var ErrEncodeInvariant = errors.New("message violates encode invariant")

// Message is implemented by every variant. Decode reads the body in wire
// order and reports the Reader's error; Encode writes the same fields in the
// same order.
type Message interface {
	ID() uint16
	Version() uint16
	Decode(r *bytes.Reader) error
	Encode(w *bytes.Writer) error
}

// Versioned is embedded by messages to carry the version field of the frame
// header they arrived in so that it can be sent back unchanged.
type Versioned struct {
	ProtocolVersion uint16
}

func (v Versioned) Version() uint16 { return v.ProtocolVersion }

// SetVersion is called by the Registry after constructing a message.
func (v *Versioned) SetVersion(version uint16) { v.ProtocolVersion = version }

type versionSetter interface {
	SetVersion(version uint16)
}
