package internal

import (
	"context"

	"github.com/dcrodman/bastion/internal/core/client"
	"github.com/dcrodman/bastion/internal/packets"
)

// Backend is an interface for a server that handles a specific set of client
// interactions as part of the game flow.
type Backend interface {
	// Name returns a uniquely identifying string.
	Identifier() string

	// Init is called before a Backend is started as a hook for the Backend to
	// perform any necessary initialization before it can accept clients.
	Init(ctx context.Context) error

	// SetUpClient performs any initialization on the Client needed before
	// the session begins, such as tagging it for logging.
	SetUpClient(c *client.Client)

	// Handshake performs any connection initialization necessary to begin
	// communicating with the client. This likely involves sending the session key.
	Handshake(c *client.Client) error

	// Handle is the main entry point for processing client messages. It's responsible
	// for generally handling all messages from a client as well as sending any responses.
	Handle(ctx context.Context, c *client.Client, m packets.Message) error
}

// Every Backend can be handed straight to Client.Serve.
var _ client.Dispatcher = Backend(nil)
