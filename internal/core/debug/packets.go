package debug

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/davecgh/go-spew/spew"

	"github.com/dcrodman/bastion/internal/core/frame"
	"github.com/dcrodman/bastion/internal/packets"
)

// Direction identifies which peer sent a frame.
type Direction int

const (
	ClientToServer Direction = iota
	ServerToClient
)

func (d Direction) String() string {
	if d == ClientToServer {
		return "client -> server"
	}
	return "server -> client"
}

// PrintPacketParams describes one frame to be written by PrintPacket.
type PrintPacketParams struct {
	Writer    io.Writer
	Direction Direction
	Header    frame.Header
	// Body is the decrypted message body.
	Body []byte
	// Message is the decoded form of Body, if it could be decoded.
	Message packets.Message
	// Name is printed next to the message id.
	Name string
	// TruncateThreshold limits the number of body bytes dumped. Zero dumps everything.
	TruncateThreshold int
}

var spewConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// PrintPacket writes a header line, a hex dump of the body and, when present,
// a dump of the decoded message.
func PrintPacket(params PrintPacketParams) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "[%v] %s (id=%d, version=%d, length=%d)\n",
		params.Direction, params.Name, params.Header.ID, params.Header.Version, params.Header.Length)

	body := params.Body
	truncated := false
	if params.TruncateThreshold > 0 && len(body) > params.TruncateThreshold {
		body = body[:params.TruncateThreshold]
		truncated = true
	}
	sb.WriteString(hex.Dump(body))
	if truncated {
		fmt.Fprintf(&sb, "... %d more bytes\n", len(params.Body)-len(body))
	}
	if params.Message != nil {
		sb.WriteString(spewConfig.Sdump(params.Message))
	}
	sb.WriteString("\n")

	_, err := io.WriteString(params.Writer, sb.String())
	return err
}
