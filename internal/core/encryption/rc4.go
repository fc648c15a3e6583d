// Package encryption implements the stream cipher applied to message bodies.
//
// Every connection uses two RC4 streams, one per direction, both keyed with
// the protocol's base key followed by the session key handed to the client
// in the plaintext SessionKey message. The first len(key) bytes of keystream
// are thrown away before any body is processed.
package encryption

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/rc4"
	"fmt"
)

// BaseKey is the fixed key prefix compiled into the game client.
const BaseKey = "fhsd6f86f67rt8fw78fw789we78r9789wer6re"

// SessionKeySize is the number of random bytes generated per connection.
const SessionKeySize = 24

// NewSessionKey returns a fresh random session key.
func NewSessionKey() ([]byte, error) {
	key := make([]byte, SessionKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating session key: %w", err)
	}
	return key, nil
}

// NewStream returns an RC4 stream seeded with BaseKey and sessionKey. Streams
// are stateful: the same keystream position is never reused, so the bytes of
// a connection must be processed strictly in order.
func NewStream(sessionKey []byte) (cipher.Stream, error) {
	key := make([]byte, 0, len(BaseKey)+len(sessionKey))
	key = append(key, BaseKey...)
	key = append(key, sessionKey...)

	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("encryption: %w", err)
	}

	// Discard the beginning of the keystream the same way the client does.
	discard := make([]byte, len(key))
	c.XORKeyStream(discard, discard)
	return c, nil
}

// CryptoSession holds the pair of streams used by one connection.
type CryptoSession struct {
	// Inbound decrypts bodies sent by the client.
	Inbound cipher.Stream
	// Outbound encrypts bodies sent to the client.
	Outbound cipher.Stream
}

// NewCryptoSession initializes both directions from the same session key.
func NewCryptoSession(sessionKey []byte) (*CryptoSession, error) {
	inbound, err := NewStream(sessionKey)
	if err != nil {
		return nil, err
	}
	outbound, err := NewStream(sessionKey)
	if err != nil {
		return nil, err
	}
	return &CryptoSession{Inbound: inbound, Outbound: outbound}, nil
}
