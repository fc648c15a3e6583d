package client

import (
	"context"
	"crypto/cipher"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dcrodman/bastion/internal/core/encryption"
	"github.com/dcrodman/bastion/internal/core/frame"
	"github.com/dcrodman/bastion/internal/packets"
)

// ErrClosed is returned when sending on or running a Transport that has been closed.
var ErrClosed = errors.New("connection closed")

const (
	defaultSendQueueSize      = 64
	defaultReadBufferSize     = 4096
	defaultDecodeFailureLimit = 8

	// How long a write in progress when the Transport closes, or a flush
	// started by CloseAfterFlush, may take before the socket is dropped.
	closeWriteTimeout = 2 * time.Second
)

// PacketObserver is called with every frame sent or received once its body
// is in plaintext. m is nil if the body could not be decoded.
type PacketObserver func(outbound bool, h frame.Header, body []byte, m packets.Message)

// TransportConfig holds the per-connection limits. Zero values fall back to defaults.
type TransportConfig struct {
	// Largest body the peer may declare before the connection is dropped.
	MaxFrameSize int
	// Number of encoded frames that may wait for the writer.
	SendQueueSize int
	// Number of consecutive undecodable messages tolerated.
	DecodeFailureLimit int
	// Size of the buffer used for each socket read.
	ReadBufferSize int

	Observer PacketObserver
}

func (c TransportConfig) withDefaults() TransportConfig {
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = defaultSendQueueSize
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = defaultReadBufferSize
	}
	if c.DecodeFailureLimit <= 0 {
		c.DecodeFailureLimit = defaultDecodeFailureLimit
	}
	return c
}

// HandlerError wraps an error returned by the function passed to Run.
type HandlerError struct {
	ID  uint16
	Err error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handling message %d: %v", e.ID, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// Transport owns a connection's socket. It turns the incoming byte stream into
// decoded messages and serializes outgoing messages onto a queue drained by a
// single writer goroutine, so frames are written whole and in Send order.
type Transport struct {
	conn     net.Conn
	registry *packets.Registry
	config   TransportConfig
	logger   *logrus.Entry

	// Only touched by the goroutine calling Run.
	decoder        *frame.Decoder
	decodeFailures int

	// sendMu orders encryption with enqueueing.
	sendMu   sync.Mutex
	outbound cipher.Stream
	queue    chan []byte

	// Closed by CloseAfterFlush under sendMu; nothing is queued afterwards.
	flush      chan struct{}
	flushCause error
	draining   atomic.Bool

	closed    chan struct{}
	closeOnce sync.Once
	causeMu   sync.Mutex
	cause     error

	// The writer owns the socket's close so that it never happens mid frame.
	writerDone chan struct{}
	closeErr   error

	lastActivity atomic.Int64
}

// NewTransport wraps conn and starts its writer goroutine. Messages are
// decoded with registry; frames are in plaintext until SetSessionKey.
func NewTransport(conn net.Conn, registry *packets.Registry, config TransportConfig, logger *logrus.Entry) *Transport {
	config = config.withDefaults()
	t := &Transport{
		conn:       conn,
		registry:   registry,
		config:     config,
		logger:     logger,
		decoder:    frame.NewDecoder(nil, config.MaxFrameSize),
		queue:      make(chan []byte, config.SendQueueSize),
		flush:      make(chan struct{}),
		closed:     make(chan struct{}),
		writerDone: make(chan struct{}),
	}
	t.lastActivity.Store(time.Now().UnixNano())

	go t.writeLoop()
	return t
}

// SetSessionKey installs the ciphers for both directions. Frames queued
// before the call stay in plaintext. It must be called before Run or from
// the goroutine running it.
func (t *Transport) SetSessionKey(key []byte) error {
	session, err := encryption.NewCryptoSession(key)
	if err != nil {
		return err
	}

	t.sendMu.Lock()
	t.outbound = session.Outbound
	t.sendMu.Unlock()

	t.decoder.SetStream(session.Inbound)
	return nil
}

// LastActivity returns the time at which the last complete frame was received.
func (t *Transport) LastActivity() time.Time {
	return time.Unix(0, t.lastActivity.Load())
}

// RemoteAddr returns the address of the peer.
func (t *Transport) RemoteAddr() net.Addr { return t.conn.RemoteAddr() }

// Send encodes m, encrypts it and queues it for writing. It blocks while the
// queue is full. Nothing is queued if encoding fails.
func (t *Transport) Send(m packets.Message) error {
	return t.send(m, true)
}

// SendRaw queues m without encrypting its body.
func (t *Transport) SendRaw(m packets.Message) error {
	return t.send(m, false)
}

func (t *Transport) send(m packets.Message, encrypt bool) error {
	id, version, payload, err := t.registry.Encode(m)
	if err != nil {
		return err
	}

	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	if t.isClosed() || t.draining.Load() {
		return ErrClosed
	}

	var stream cipher.Stream
	if encrypt {
		stream = t.outbound
	}
	b, err := frame.Encode(id, version, payload, stream)
	if err != nil {
		return err
	}

	if t.config.Observer != nil {
		t.config.Observer(true, frame.Header{ID: id, Length: uint32(len(payload)), Version: version}, payload, m)
	}

	select {
	case t.queue <- b:
		return nil
	case <-t.closed:
		return ErrClosed
	}
}

func (t *Transport) writeLoop() {
	defer func() {
		t.closeErr = t.conn.Close()
		close(t.writerDone)
	}()

	for {
		// Prefer shutting down over draining what is left in the queue.
		select {
		case <-t.closed:
			return
		default:
		}

		select {
		case <-t.closed:
			return
		case b := <-t.queue:
			if !t.write(b) {
				return
			}
		case <-t.flush:
			for {
				select {
				case b := <-t.queue:
					if !t.write(b) {
						return
					}
				default:
					t.closeWith(t.flushCause)
					return
				}
			}
		}
	}
}

// write reports whether b was written in full.
func (t *Transport) write(b []byte) bool {
	if _, err := t.conn.Write(b); err != nil {
		t.closeWith(fmt.Errorf("writing to %v: %w", t.conn.RemoteAddr(), err))
		return false
	}
	return true
}

// Run reads from the connection until it is closed, the peer hangs up or ctx
// is cancelled, calling handle for every decoded message in arrival order.
// The returned error describes why the connection ended: io.EOF when the
// peer closed it, an error wrapping frame.ErrProtocolViolation, a
// *HandlerError, or whatever was passed to the call that closed the
// Transport (ErrClosed for Close).
func (t *Transport) Run(ctx context.Context, handle func(context.Context, packets.Message) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-ctx.Done():
			t.Close()
		case <-t.closed:
		}
	}()

	buf := make([]byte, t.config.ReadBufferSize)
	for {
		n, err := t.conn.Read(buf)
		if n > 0 {
			t.decoder.Feed(buf[:n])
			if err := t.dispatch(ctx, handle); err != nil {
				t.closeWith(err)
				return t.closeCause()
			}
		}

		if err != nil {
			if t.isClosed() {
				return t.closeCause()
			}
			if !errors.Is(err, io.EOF) {
				err = fmt.Errorf("reading from %v: %w", t.conn.RemoteAddr(), err)
			}
			t.closeWith(err)
			return t.closeCause()
		}
	}
}

// dispatch hands every complete frame in the decoder to handle.
func (t *Transport) dispatch(ctx context.Context, handle func(context.Context, packets.Message) error) error {
	for {
		// Anything arriving after CloseAfterFlush could only fail to reply.
		if t.draining.Load() {
			return nil
		}
		f, err := t.decoder.Next()
		if err != nil {
			return err
		}
		if f == nil {
			return nil
		}
		t.lastActivity.Store(time.Now().UnixNano())

		m, err := t.registry.Decode(f.ID, f.Version, f.Body)
		if t.config.Observer != nil {
			t.config.Observer(false, f.Header, f.Body, m)
		}

		switch {
		case errors.Is(err, packets.ErrUnknownMessageID):
			t.logger.Warnf("dropping unknown message %d (%d bytes)", f.ID, len(f.Body))
			continue
		case err != nil:
			t.decodeFailures++
			t.logger.Warnf("dropping message: %v", err)
			if t.decodeFailures > t.config.DecodeFailureLimit {
				return fmt.Errorf("%d consecutive undecodable messages: %w", t.decodeFailures, frame.ErrProtocolViolation)
			}
			continue
		}
		t.decodeFailures = 0

		if err := handle(ctx, m); err != nil {
			if t.draining.Load() {
				// The connection closes once the queue is flushed either way.
				t.logger.Debugf("error handling message %d while closing: %v", f.ID, err)
				return nil
			}
			return &HandlerError{ID: f.ID, Err: err}
		}
	}
}

// Close shuts the connection down, discarding any frames still queued. A
// frame already being written is finished first. It is safe to call more
// than once and from any goroutine other than the writer.
func (t *Transport) Close() error {
	t.closeWith(ErrClosed)
	<-t.writerDone
	return t.closeErr
}

// CloseAfterFlush stops accepting new frames and closes the connection once
// the writer has sent everything already queued. Run then returns cause, or
// ErrClosed if cause is nil. Frames received in the meantime are dropped.
func (t *Transport) CloseAfterFlush(cause error) {
	if cause == nil {
		cause = ErrClosed
	}

	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	if t.isClosed() || t.draining.Load() {
		return
	}
	t.flushCause = cause
	t.draining.Store(true)
	// A peer that stopped reading must not hold the connection open.
	t.conn.SetWriteDeadline(time.Now().Add(closeWriteTimeout))
	close(t.flush)
}

// closeWith closes the Transport, recording cause if it is the first call.
// The socket itself is closed by the writer once it is not mid frame.
func (t *Transport) closeWith(cause error) {
	t.closeOnce.Do(func() {
		t.causeMu.Lock()
		t.cause = cause
		t.causeMu.Unlock()

		close(t.closed)
		// Unblock Run and bound a write that is still in progress. Errors
		// mean the writer already closed the socket.
		now := time.Now()
		t.conn.SetReadDeadline(now)
		t.conn.SetWriteDeadline(now.Add(closeWriteTimeout))
	})
}

func (t *Transport) closeCause() error {
	t.causeMu.Lock()
	defer t.causeMu.Unlock()
	return t.cause
}

func (t *Transport) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}
