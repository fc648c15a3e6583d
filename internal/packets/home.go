package packets

import (
	"fmt"

	"github.com/dcrodman/bastion/internal/core/bytes"
)

// OwnHomeData sends the client its village and avatar after a login.
type OwnHomeData struct {
	Versioned

	// LastVisit is the number of seconds since the home was last loaded.
	LastVisit int32
	Unknown1  int32
	// Timestamp is the server time as a Unix timestamp.
	Timestamp      int32
	ShieldDuration int32
	Unknown2       int32
	// Home is the serialized village, opaque to the server.
	Home   []byte
	Avatar *Avatar

	Unknown3 int32
	Unknown4 int32
}

func (m *OwnHomeData) ID() uint16 { return OwnHomeDataID }

func (m *OwnHomeData) Decode(r *bytes.Reader) error {
	m.LastVisit = r.Int32()
	m.Unknown1 = r.Int32()
	m.Timestamp = r.Int32()
	m.ShieldDuration = r.Int32()
	m.Unknown2 = r.Int32()
	m.Home = r.Blob()
	m.Avatar = &Avatar{}
	m.Avatar.decode(r)
	m.Unknown3 = r.Int32()
	m.Unknown4 = r.Int32()
	return r.Err()
}

func (m *OwnHomeData) Encode(w *bytes.Writer) error {
	if m.Avatar == nil {
		return fmt.Errorf("own home data without an avatar: %w", ErrEncodeInvariant)
	}

	w.Int32(m.LastVisit)
	w.Int32(m.Unknown1)
	w.Int32(m.Timestamp)
	w.Int32(m.ShieldDuration)
	w.Int32(m.Unknown2)
	w.Blob(m.Home)
	if err := m.Avatar.encode(w); err != nil {
		return err
	}
	w.Int32(m.Unknown3)
	w.Int32(m.Unknown4)
	return nil
}

// ChangeAvatarNameRequest asks the server to rename the player's avatar.
type ChangeAvatarNameRequest struct {
	Versioned

	Name     bytes.NullString
	Unknown1 uint8
}

func (m *ChangeAvatarNameRequest) ID() uint16 { return ChangeAvatarNameRequestID }

func (m *ChangeAvatarNameRequest) Decode(r *bytes.Reader) error {
	m.Name = r.String()
	m.Unknown1 = r.Uint8()
	return r.Err()
}

func (m *ChangeAvatarNameRequest) Encode(w *bytes.Writer) error {
	w.String(m.Name)
	w.Uint8(m.Unknown1)
	return nil
}
