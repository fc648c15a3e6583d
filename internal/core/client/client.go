package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dcrodman/bastion/internal/core/data"
	"github.com/dcrodman/bastion/internal/core/encryption"
	"github.com/dcrodman/bastion/internal/core/frame"
	"github.com/dcrodman/bastion/internal/packets"
)

// DisconnectReason describes why a Client's connection ended.
type DisconnectReason int

const (
	// ReasonPeerClosed means the game client hung up.
	ReasonPeerClosed DisconnectReason = iota
	// ReasonProtocolViolation means the client sent data that cannot be framed.
	ReasonProtocolViolation
	// ReasonDisconnected means the server asked for the disconnect.
	ReasonDisconnected
	// ReasonIdleTimeout means the client stopped sending frames.
	ReasonIdleTimeout
	// ReasonError covers socket failures and errors returned by a Dispatcher.
	ReasonError
)

func (r DisconnectReason) String() string {
	switch r {
	case ReasonPeerClosed:
		return "peer closed"
	case ReasonProtocolViolation:
		return "protocol violation"
	case ReasonDisconnected:
		return "disconnected"
	case ReasonIdleTimeout:
		return "idle timeout"
	case ReasonError:
		return "error"
	default:
		return fmt.Sprintf("DisconnectReason(%d)", int(r))
	}
}

// Dispatcher receives every message decoded from a Client, one at a time and
// in the order they arrived. Returning an error disconnects the Client.
type Dispatcher interface {
	Handle(ctx context.Context, c *Client, m packets.Message) error
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, c *Client, m packets.Message) error

func (f DispatcherFunc) Handle(ctx context.Context, c *Client, m packets.Message) error {
	return f(ctx, c, m)
}

// Client represents a game client connected to the server.
type Client struct {
	transport *Transport
	ipAddr    string
	port      string
	logger    *logrus.Entry

	// SessionKey is the random half of the cipher key sent by StartSession.
	SessionKey []byte

	// Level is the account the client logged into, nil until then. It is
	// only accessed from the goroutine running Serve.
	Level *data.LevelSave

	// OnDisconnect is called exactly once when the connection ends.
	OnDisconnect func(c *Client, reason DisconnectReason, err error)

	// Debugging information used for logging purposes.
	DebugTags map[string]interface{}

	disconnectOnce sync.Once
	done           chan struct{}
	reason         DisconnectReason
}

// NewClient wraps conn in a Transport using the given registry and limits.
func NewClient(conn net.Conn, registry *packets.Registry, config TransportConfig, logger *logrus.Logger) *Client {
	host, port, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		host = conn.RemoteAddr().String()
	}

	entry := logger.WithField("remote", conn.RemoteAddr().String())
	return &Client{
		transport: NewTransport(conn, registry, config, entry),
		ipAddr:    host,
		port:      port,
		logger:    entry,
		DebugTags: make(map[string]interface{}),
		done:      make(chan struct{}),
	}
}

func (c *Client) IPAddr() string { return c.ipAddr }
func (c *Client) Port() string   { return c.port }

// Logger returns a log entry tagged with the client's address and, once
// logged in, its level id.
func (c *Client) Logger() *logrus.Entry {
	if c.Level != nil {
		return c.logger.WithField("level_id", c.Level.ID)
	}
	return c.logger
}

// LastActivity returns when the client last sent a complete frame.
func (c *Client) LastActivity() time.Time { return c.transport.LastActivity() }

// Done is closed once the client has disconnected.
func (c *Client) Done() <-chan struct{} { return c.done }

// Reason returns why the client disconnected. It is only meaningful after Done is closed.
func (c *Client) Reason() DisconnectReason {
	<-c.done
	return c.reason
}

// Send encrypts and queues m.
func (c *Client) Send(m packets.Message) error {
	return c.transport.Send(m)
}

// SendRaw queues m without encrypting it.
func (c *Client) SendRaw(m packets.Message) error {
	return c.transport.SendRaw(m)
}

// StartSession generates a new session key, sends it to the client in the
// clear and encrypts everything sent or received afterwards with it.
func (c *Client) StartSession() error {
	key, err := encryption.NewSessionKey()
	if err != nil {
		return err
	}
	if err := c.SendRaw(&packets.SessionKey{Key: key}); err != nil {
		return fmt.Errorf("sending session key: %w", err)
	}
	if err := c.transport.SetSessionKey(key); err != nil {
		return err
	}
	c.SessionKey = key
	return nil
}

// Serve processes messages from the client until it disconnects, passing
// each one to d. It returns nil if the connection ended normally.
func (c *Client) Serve(ctx context.Context, d Dispatcher) error {
	err := c.transport.Run(ctx, func(ctx context.Context, m packets.Message) error {
		return d.Handle(ctx, c, m)
	})

	reason := reasonFor(err)
	c.finish(reason, err)

	switch reason {
	case ReasonPeerClosed, ReasonDisconnected, ReasonIdleTimeout:
		return nil
	default:
		return err
	}
}

// Disconnect closes the connection. Queued messages are discarded.
func (c *Client) Disconnect() {
	c.DisconnectWithReason(ReasonDisconnected)
}

// DisconnectAfterSend closes the connection once every message already sent
// has been written, so a final reply still reaches the client. Serve then
// reports cause, or ReasonDisconnected if cause is nil. Messages the client
// sends in the meantime are dropped.
func (c *Client) DisconnectAfterSend(cause error) {
	c.transport.CloseAfterFlush(cause)
}

// DisconnectWithReason closes the connection, reporting reason to
// OnDisconnect unless the client had already disconnected.
func (c *Client) DisconnectWithReason(reason DisconnectReason) {
	c.finish(reason, nil)
}

func (c *Client) finish(reason DisconnectReason, err error) {
	c.disconnectOnce.Do(func() {
		c.reason = reason
		if closeErr := c.transport.Close(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
			c.logger.Debugf("error closing connection: %v", closeErr)
		}
		close(c.done)

		if c.OnDisconnect != nil {
			c.OnDisconnect(c, reason, err)
		}
	})
}

func reasonFor(err error) DisconnectReason {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, syscall.ECONNRESET):
		return ReasonPeerClosed
	case errors.Is(err, frame.ErrProtocolViolation):
		return ReasonProtocolViolation
	case errors.Is(err, ErrClosed):
		return ReasonDisconnected
	default:
		return ReasonError
	}
}
