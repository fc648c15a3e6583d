package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/google/gopacket/pcapgo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dcrodman/bastion/internal/core/bytes"
	"github.com/dcrodman/bastion/internal/core/debug"
	"github.com/dcrodman/bastion/internal/core/encryption"
	"github.com/dcrodman/bastion/internal/core/frame"
	"github.com/dcrodman/bastion/internal/packets"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Decodes captured game traffic",
	Long: "Reads game traffic from a pcap file or a live device and prints every message. " +
		"Sessions are only decrypted if the capture includes the server's SessionKey message.",
	Args: cobra.NoArgs,
	RunE: AnalyzeCommand,
}

var (
	CaptureFileFlag string
	DeviceFlag      string
	PortFlag        int
	TruncateFlag    int
)

func AnalyzeCommand(cmd *cobra.Command, args []string) error {
	var source *gopacket.PacketSource
	switch {
	case CaptureFileFlag != "":
		f, err := os.Open(CaptureFileFlag)
		if err != nil {
			return fmt.Errorf("error opening capture: %w", err)
		}
		defer f.Close()

		if source, err = openCaptureFile(f); err != nil {
			return err
		}
	case DeviceFlag != "":
		handle, err := pcap.OpenLive(DeviceFlag, 65535, false, pcap.BlockForever)
		if err != nil {
			return fmt.Errorf("error opening handle: %w", err)
		}
		defer handle.Close()

		if err := handle.SetBPFFilter(fmt.Sprintf("tcp port %d", PortFlag)); err != nil {
			return fmt.Errorf("error setting capture filter: %w", err)
		}
		source = gopacket.NewPacketSource(handle, handle.LinkType())
	default:
		return errors.New("one of --file or --device is required")
	}

	a := newAnalyzer(os.Stdout, uint16(PortFlag), logrus.New())
	a.TruncateThreshold = TruncateFlag
	a.run(source)
	return nil
}

// openCaptureFile reads f as a pcap file, falling back to pcapng.
func openCaptureFile(f io.ReadSeeker) (*gopacket.PacketSource, error) {
	if r, err := pcapgo.NewReader(f); err == nil {
		return gopacket.NewPacketSource(r, r.LinkType()), nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	r, err := pcapgo.NewNgReader(f, pcapgo.DefaultNgReaderOptions)
	if err != nil {
		return nil, fmt.Errorf("not a pcap or pcapng file: %w", err)
	}
	return gopacket.NewPacketSource(r, r.LinkType()), nil
}

// halfStream is one direction of a captured connection.
type halfStream struct {
	decoder *frame.Decoder
	nextSeq uint32
	synced  bool
	// Set once bytes are missing from the capture; nothing after can be framed.
	broken bool
}

// conversation is a single client's connection to the server.
type conversation struct {
	client   string
	toServer *halfStream
	toClient *halfStream
	keyed    bool
}

// analyzer reassembles the frames sent in each direction of every captured
// connection to the game server and prints them.
type analyzer struct {
	Writer            io.Writer
	ServerPort        uint16
	Registry          *packets.Registry
	TruncateThreshold int
	Logger            *logrus.Logger

	conversations map[string]*conversation
}

func newAnalyzer(w io.Writer, serverPort uint16, logger *logrus.Logger) *analyzer {
	return &analyzer{
		Writer:        w,
		ServerPort:    serverPort,
		Registry:      packets.DefaultRegistry,
		Logger:        logger,
		conversations: make(map[string]*conversation),
	}
}

func (a *analyzer) run(source *gopacket.PacketSource) {
	for packet := range source.Packets() {
		a.handlePacket(packet)
	}
}

func (a *analyzer) handlePacket(packet gopacket.Packet) {
	network := packet.NetworkLayer()
	tcpLayer := packet.Layer(layers.LayerTypeTCP)
	if network == nil || tcpLayer == nil {
		return
	}
	tcp := tcpLayer.(*layers.TCP)

	var toServer bool
	var client string
	switch {
	case uint16(tcp.DstPort) == a.ServerPort:
		toServer = true
		client = fmt.Sprintf("%v:%d", network.NetworkFlow().Src(), tcp.SrcPort)
	case uint16(tcp.SrcPort) == a.ServerPort:
		client = fmt.Sprintf("%v:%d", network.NetworkFlow().Dst(), tcp.DstPort)
	default:
		return
	}

	conv, ok := a.conversations[client]
	// A new handshake from the client starts a new connection on the same address.
	if !ok || (toServer && tcp.SYN && !tcp.ACK) {
		conv = &conversation{
			client:   client,
			toServer: &halfStream{decoder: frame.NewDecoder(nil, frame.MaxBodySize)},
			toClient: &halfStream{decoder: frame.NewDecoder(nil, frame.MaxBodySize)},
		}
		a.conversations[client] = conv
	}

	half := conv.toClient
	if toServer {
		half = conv.toServer
	}

	if tcp.SYN {
		half.nextSeq = tcp.Seq + 1
		half.synced = true
	}

	payload := tcp.Payload
	if len(payload) > 0 && !half.broken {
		payload = a.inSequence(conv, half, tcp.Seq, payload)
		if len(payload) > 0 {
			half.decoder.Feed(payload)
			a.drain(conv, half, toServer)
		}
	}

	if tcp.RST {
		delete(a.conversations, client)
	}
}

// inSequence returns the part of payload that has not been seen yet. Capture
// gaps mark the half broken since the frame boundaries after them are lost.
func (a *analyzer) inSequence(conv *conversation, half *halfStream, seq uint32, payload []byte) []byte {
	if !half.synced {
		// The capture started mid connection; trust the first segment.
		half.nextSeq = seq
		half.synced = true
	}

	switch offset := int32(seq - half.nextSeq); {
	case offset > 0:
		a.Logger.Warnf("[%s] %d bytes missing from the capture; ignoring the rest of this direction", conv.client, offset)
		half.broken = true
		return nil
	case offset < 0:
		// Retransmission, possibly with new bytes at the end.
		seen := int(-offset)
		if seen >= len(payload) {
			return nil
		}
		payload = payload[seen:]
	}

	half.nextSeq += uint32(len(payload))
	return payload
}

func (a *analyzer) drain(conv *conversation, half *halfStream, toServer bool) {
	for {
		f, err := half.decoder.Next()
		if err != nil {
			a.Logger.Warnf("[%s] %v; ignoring the rest of this direction", conv.client, err)
			half.broken = true
			return
		}
		if f == nil {
			return
		}

		if !toServer && f.ID == packets.SessionKeyID && !conv.keyed {
			a.startSession(conv, f.Body)
		}
		a.print(conv, f, toServer)
	}
}

// startSession keys both directions with the session key sent by the server.
func (a *analyzer) startSession(conv *conversation, body []byte) {
	msg := &packets.SessionKey{}
	if err := msg.Decode(bytes.NewReader(body)); err != nil {
		a.Logger.Warnf("[%s] unreadable session key: %v", conv.client, err)
		return
	}
	session, err := encryption.NewCryptoSession(msg.Key)
	if err != nil {
		a.Logger.Warnf("[%s] %v", conv.client, err)
		return
	}
	conv.toServer.decoder.SetStream(session.Inbound)
	conv.toClient.decoder.SetStream(session.Outbound)
	conv.keyed = true
}

func (a *analyzer) print(conv *conversation, f *frame.Frame, toServer bool) {
	direction := debug.ServerToClient
	if toServer {
		direction = debug.ClientToServer
	}

	m, err := a.Registry.Decode(f.ID, f.Version, f.Body)
	if err != nil && !errors.Is(err, packets.ErrUnknownMessageID) {
		a.Logger.Warnf("[%s] %v", conv.client, err)
	}

	err = debug.PrintPacket(debug.PrintPacketParams{
		Writer:            a.Writer,
		Direction:         direction,
		Header:            f.Header,
		Body:              f.Body,
		Message:           m,
		Name:              fmt.Sprintf("%s [%s]", a.Registry.Name(f.ID), conv.client),
		TruncateThreshold: a.TruncateThreshold,
	})
	if err != nil {
		a.Logger.Warnf("error printing packet: %v", err)
	}
}
