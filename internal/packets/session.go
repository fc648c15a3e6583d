package packets

import "github.com/dcrodman/bastion/internal/core/bytes"

// SessionKey carries the random half of the stream cipher key. It is the
// only message sent without encryption.
type SessionKey struct {
	Versioned

	Key []byte
}

func (m *SessionKey) ID() uint16 { return SessionKeyID }

func (m *SessionKey) Decode(r *bytes.Reader) error {
	m.Key = r.Blob()
	return r.Err()
}

func (m *SessionKey) Encode(w *bytes.Writer) error {
	w.Blob(m.Key)
	return nil
}

// KeepAliveRequest is sent periodically by an idle client.
type KeepAliveRequest struct {
	Versioned
}

func (m *KeepAliveRequest) ID() uint16                   { return KeepAliveRequestID }
func (m *KeepAliveRequest) Decode(r *bytes.Reader) error { return r.Err() }
func (m *KeepAliveRequest) Encode(w *bytes.Writer) error { return nil }

// KeepAliveResponse answers a KeepAliveRequest.
type KeepAliveResponse struct {
	Versioned
}

func (m *KeepAliveResponse) ID() uint16                   { return KeepAliveResponseID }
func (m *KeepAliveResponse) Decode(r *bytes.Reader) error { return r.Err() }
func (m *KeepAliveResponse) Encode(w *bytes.Writer) error { return nil }
