package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dcrodman/bastion/internal/core"
	"github.com/dcrodman/bastion/internal/core/client"
	bastiondebug "github.com/dcrodman/bastion/internal/core/debug"
	"github.com/dcrodman/bastion/internal/core/frame"
	"github.com/dcrodman/bastion/internal/packets"
)

// Bodies longer than this are cut short when packet logging is enabled.
const packetLogTruncateThreshold = 512

// frontend implements the concurrent client connection logic.
//
// Messages are read from any connected clients and passed to a backend instance, abstracting
// the lower level connection details away from the Backends.
type frontend struct {
	Address  string
	Backend  Backend
	Registry *packets.Registry
	Config   *core.Config
	Logger   *logrus.Logger

	socket *net.TCPListener

	mu               sync.Mutex
	connectedClients map[*client.Client]struct{}
}

// Start initializes the server backend and opens a TCP socket for the specified server.
// A blocking loop for accepting client connections is spun off in its own goroutine and
// added to the WaitGroup. Context cancellations will stop the server.
func (f *frontend) Start(ctx context.Context, wg *sync.WaitGroup) error {
	if f.Registry == nil {
		f.Registry = packets.DefaultRegistry
	}
	f.connectedClients = make(map[*client.Client]struct{})

	if err := f.Backend.Init(ctx); err != nil {
		return fmt.Errorf("error initializing %s server: %v", f.Backend.Identifier(), err)
	}

	socket, err := f.createSocket()
	if err != nil {
		return fmt.Errorf("error creating socket on %s: %v", f.Address, err)
	}
	f.socket = socket

	wg.Add(1)
	go f.startBlockingLoop(ctx, socket, wg)

	if f.Config.Network.IdleTimeout > 0 {
		wg.Add(1)
		go f.reapIdleClients(ctx, f.Config.Network.IdleTimeout, wg)
	}

	return nil
}

// Addr returns the address the frontend is listening on once started.
func (f *frontend) Addr() net.Addr {
	return f.socket.Addr()
}

// createSocket opens a TCP socket to listen for client connections on the Address
// provided to the frontend.
func (f *frontend) createSocket() (*net.TCPListener, error) {
	hostAddr, err := net.ResolveTCPAddr("tcp", f.Address)
	if err != nil {
		return nil, fmt.Errorf("error resolving address %s", err.Error())
	}

	socket, err := net.ListenTCP("tcp", hostAddr)
	if err != nil {
		return nil, fmt.Errorf("error listening on socket: %s", err.Error())
	}

	return socket, nil
}

// startBlockingLoop implements a connection handling loop that's purely responsible for
// accepting new connections and spinning off goroutines for the Backend to handle them.
func (f *frontend) startBlockingLoop(ctx context.Context, socket *net.TCPListener, wg *sync.WaitGroup) {
	defer wg.Done()

	f.Logger.Printf("[%s] waiting for connections on %v", f.Backend.Identifier(), socket.Addr())

	// Closing the socket unblocks AcceptTCP below.
	go func() {
		<-ctx.Done()
		_ = socket.Close()
	}()

	clientWg := &sync.WaitGroup{}
	for {
		connection, err := socket.AcceptTCP()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			f.Logger.Warnf("failed to accept connection: %s", err.Error())
			continue
		}

		clientWg.Add(1)
		// Note: If there is eventually a need to implement worker pooling rather than spawning
		// new goroutines for each client, this is where it should be implemented.
		go f.acceptClient(ctx, connection, clientWg)
	}

	f.Logger.Infof("[%v] shutting down (waiting for connections to close)", f.Backend.Identifier())
	clientWg.Wait()
	f.Logger.Infof("[%v] exited", f.Backend.Identifier())
}

// acceptClient takes a connection and attempts to initiate a session by setting up
// the Client and sending the session key. If it succeeds, the goroutine moves
// into the message processing loop.
func (f *frontend) acceptClient(ctx context.Context, connection *net.TCPConn, wg *sync.WaitGroup) {
	defer wg.Done()

	c := client.NewClient(connection, f.Registry, f.transportConfig(), f.Logger)
	f.Backend.SetUpClient(c)
	// OnDisconnect may run on the idle reaper's goroutine, so it must not touch c.Level.
	c.OnDisconnect = func(c *client.Client, reason client.DisconnectReason, err error) {
		if err != nil && reason != client.ReasonPeerClosed && reason != client.ReasonDisconnected {
			f.Logger.Warnf("[%s] client %s disconnected (%v): %v", f.Backend.Identifier(), c.IPAddr(), reason, err)
			return
		}
		f.Logger.Debugf("[%s] client %s disconnected (%v)", f.Backend.Identifier(), c.IPAddr(), reason)
	}

	if !f.addClient(c) {
		f.Logger.Infof("[%s] rejected connection from %s: server is full", f.Backend.Identifier(), c.IPAddr())
		c.Disconnect()
		return
	}
	defer f.closeConnectionAndRecover(f.Backend.Identifier(), c)

	f.Logger.Infof("[%s] accepted connection from %s", f.Backend.Identifier(), c.IPAddr())

	if err := f.Backend.Handshake(c); err != nil {
		f.Logger.Errorf("Handshake() failed for client %s: %s", c.IPAddr(), err)
		return
	}

	if err := c.Serve(ctx, f.Backend); err != nil {
		f.Logger.Warn("error in client communication: " + err.Error())
	}
}

// transportConfig builds the per-connection limits from the server config.
func (f *frontend) transportConfig() client.TransportConfig {
	config := client.TransportConfig{
		MaxFrameSize:       f.Config.Network.MaxFrameSize,
		SendQueueSize:      f.Config.Network.SendQueueSize,
		DecodeFailureLimit: f.Config.Network.DecodeFailureLimit,
		ReadBufferSize:     f.Config.Network.ReadBufferSize,
	}
	if f.Config.Debugging.PacketLoggingEnabled {
		config.Observer = f.logPacket
	}
	return config
}

func (f *frontend) logPacket(outbound bool, h frame.Header, body []byte, m packets.Message) {
	direction := bastiondebug.ClientToServer
	if outbound {
		direction = bastiondebug.ServerToClient
	}
	err := bastiondebug.PrintPacket(bastiondebug.PrintPacketParams{
		Writer:            os.Stdout,
		Direction:         direction,
		Header:            h,
		Body:              body,
		Message:           m,
		Name:              f.Registry.Name(h.ID),
		TruncateThreshold: packetLogTruncateThreshold,
	})
	if err != nil {
		f.Logger.Warnf("failed to log packet: %v", err)
	}
}

// addClient registers c unless the server already has MaxConnections clients.
func (f *frontend) addClient(c *client.Client) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if limit := f.Config.MaxConnections; limit > 0 && len(f.connectedClients) >= limit {
		return false
	}
	f.connectedClients[c] = struct{}{}
	return true
}

func (f *frontend) removeClient(c *client.Client) {
	f.mu.Lock()
	delete(f.connectedClients, c)
	f.mu.Unlock()
}

// clients returns a snapshot of the connected clients.
func (f *frontend) clients() []*client.Client {
	f.mu.Lock()
	defer f.mu.Unlock()

	clients := make([]*client.Client, 0, len(f.connectedClients))
	for c := range f.connectedClients {
		clients = append(clients, c)
	}
	return clients
}

// reapIdleClients periodically disconnects clients that have not sent a
// complete frame within timeout.
func (f *frontend) reapIdleClients(ctx context.Context, timeout time.Duration, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(timeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, c := range f.clients() {
				if idle := now.Sub(c.LastActivity()); idle > timeout {
					f.Logger.Infof("[%s] disconnecting client %s idle for %v", f.Backend.Identifier(), c.IPAddr(), idle.Round(time.Second))
					c.DisconnectWithReason(client.ReasonIdleTimeout)
				}
			}
		}
	}
}

// closeConnectionAndRecover is the failsafe that catches any panics, disconnects the
// client, and removes them from the list regardless of the state of the connection.
func (f *frontend) closeConnectionAndRecover(serverName string, c *client.Client) {
	if err := recover(); err != nil {
		f.Logger.Errorf("error in client communication with %s: error=%s, trace: %s",
			c.IPAddr(), err, debug.Stack())
	}

	c.Disconnect()
	f.removeClient(c)

	f.Logger.Infof("[%s] disconnected client %s", serverName, c.IPAddr())
}
