package packets

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/dcrodman/bastion/internal/core/bytes"
)

// ErrUnknownMessageID is returned for a message id with no registered decoder.
var ErrUnknownMessageID = errors.New("unknown message id")

// UnknownMessageError reports the id that could not be resolved.
type UnknownMessageError struct {
	ID uint16
}

func (e *UnknownMessageError) Error() string {
	return fmt.Sprintf("%v: %d", ErrUnknownMessageID, e.ID)
}

func (e *UnknownMessageError) Unwrap() error { return ErrUnknownMessageID }

// Registry maps message ids to constructors. It is never modified after
// NewRegistry returns and is safe for concurrent use.
type Registry struct {
	factories map[uint16]func() Message
	names     map[uint16]string
}

// DefaultRegistry knows every message the server sends or receives.
var DefaultRegistry = NewRegistry(
	func() Message { return &LoginRequest{} },
	func() Message { return &KeepAliveRequest{} },
	func() Message { return &ChangeAvatarNameRequest{} },
	func() Message { return &SessionKey{} },
	func() Message { return &LoginFailed{} },
	func() Message { return &LoginSuccess{} },
	func() Message { return &KeepAliveResponse{} },
	func() Message { return &OwnHomeData{} },
)

// NewRegistry builds a Registry from constructors of message variants. Two
// variants sharing an id is a programming error and panics.
func NewRegistry(factories ...func() Message) *Registry {
	r := &Registry{
		factories: make(map[uint16]func() Message, len(factories)),
		names:     make(map[uint16]string, len(factories)),
	}
	for _, factory := range factories {
		m := factory()
		id := m.ID()
		if existing, ok := r.names[id]; ok {
			panic(fmt.Sprintf("packets: message id %d registered by both %s and %s", id, existing, typeName(m)))
		}
		r.factories[id] = factory
		r.names[id] = typeName(m)
	}
	return r
}

func typeName(m Message) string {
	t := reflect.TypeOf(m)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

// Decode constructs the message registered for id and reads it from payload.
// Bytes left over after the last field are ignored.
func (r *Registry) Decode(id, version uint16, payload []byte) (Message, error) {
	factory, ok := r.factories[id]
	if !ok {
		return nil, &UnknownMessageError{ID: id}
	}

	m := factory()
	if v, ok := m.(versionSetter); ok {
		v.SetVersion(version)
	}
	if err := m.Decode(bytes.NewReader(payload)); err != nil {
		return nil, fmt.Errorf("decoding %s (%d): %w", r.names[id], id, err)
	}
	return m, nil
}

// Encode serializes m into a message body along with the id and version its
// frame header should carry.
func (r *Registry) Encode(m Message) (id, version uint16, payload []byte, err error) {
	id = m.ID()
	if _, ok := r.factories[id]; !ok {
		return 0, 0, nil, &UnknownMessageError{ID: id}
	}

	w := bytes.NewWriter()
	if err := m.Encode(w); err != nil {
		return 0, 0, nil, fmt.Errorf("encoding %s (%d): %w", r.names[id], id, err)
	}
	return id, m.Version(), w.Bytes(), nil
}

// Name returns a printable name for id.
func (r *Registry) Name(id uint16) string {
	if name, ok := r.names[id]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", id)
}

// IDs returns every registered id in ascending order.
func (r *Registry) IDs() []uint16 {
	ids := make([]uint16, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
