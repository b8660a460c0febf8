// Package frame implements the tunnel wire protocol: length-implicit JSON
// objects carried one per WebSocket message, matching the envelope shapes
// documented for this client's server.
package frame

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/wsvpn/client/internal/errcat"
)

// Type discriminates the kind of a decoded Message.
type Type string

const (
	TypeWelcome      Type = "welcome"
	TypeData         Type = "tunnel_data"
	TypePing         Type = "ping"
	TypePong         Type = "pong"
	TypeError        Type = "error"
	TypeNodeSelect   Type = "node_select"
	TypeNodeSelected Type = "node_selected"
	// TypeUnknown is never sent; it's what Decode returns for a
	// discriminator this client doesn't recognize, so the caller can log
	// and drop it instead of failing the session.
	TypeUnknown Type = ""
)

// Node is the client-visible projection of a server-side tunnel endpoint.
type Node struct {
	Label    string `json:"label"`
	Endpoint string `json:"endpoint"`
	Healthy  bool   `json:"healthy"`
}

// Message is a decoded tunnel frame. Only the fields relevant to Type are
// populated; callers switch on Type and read the matching fields.
type Message struct {
	Type Type `json:"type"`

	// welcome
	ClientID      string         `json:"client_id,omitempty"`
	ServerVersion string         `json:"server_info,omitempty"`
	Nodes         map[string]Node `json:"nodes,omitempty"`

	// tunnel_data
	Payload   string  `json:"payload,omitempty"`
	Timestamp float64 `json:"timestamp,omitempty"`
	Size      int     `json:"size,omitempty"`
	Seq       uint64  `json:"seq,omitempty"`

	// ping / pong
	Stats           map[string]int64 `json:"stats,omitempty"`
	ClientTimestamp float64          `json:"client_timestamp,omitempty"`

	// error
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`

	// node_select / node_selected
	NodeID string `json:"node_id,omitempty"`
	Info   *Node  `json:"info,omitempty"`
}

// DefaultMaxFrameBytes is the default MTU-plus-framing-overhead bound on a
// frame's wire size; Decode takes its bound as a parameter instead.
var DefaultMaxFrameBytes = 1500 + 256

// Decode parses a single wire frame. A frame larger than maxBytes is
// rejected with an error without being unmarshalled; the session drops such
// a frame and ends the connection only after three in a row. A frame with an
// unrecognized "type" decodes successfully with Type == TypeUnknown so the
// caller can drop it without tearing down the session.
func Decode(raw []byte, maxBytes int) (*Message, error) {
	if maxBytes > 0 && len(raw) > maxBytes {
		return nil, errcat.Unknown.Newf("frame of %d bytes exceeds max_frame_bytes %d", len(raw), maxBytes)
	}
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errcat.Unknown.Newf("malformed frame: %w", err)
	}
	switch m.Type {
	case TypeWelcome, TypeData, TypePing, TypePong, TypeError, TypeNodeSelect, TypeNodeSelected:
	default:
		m.Type = TypeUnknown
	}
	return &m, nil
}

// Encode serializes a Message to its wire form.
func Encode(m *Message) ([]byte, error) {
	return json.Marshal(m)
}

// NewData builds a tunnel_data frame carrying packet, base64-encoded per the
// wire format. seq is observational only (logging/metrics); frame ordering
// itself is guaranteed by the underlying stream, not by this field.
func NewData(packet []byte, seq uint64, timestamp float64) *Message {
	return &Message{
		Type:      TypeData,
		Payload:   base64.StdEncoding.EncodeToString(packet),
		Timestamp: timestamp,
		Size:      len(packet),
		Seq:       seq,
	}
}

// DecodePacket extracts and decodes the payload of a tunnel_data frame.
func DecodePacket(m *Message) ([]byte, error) {
	if m.Type != TypeData {
		return nil, fmt.Errorf("not a data frame: %s", m.Type)
	}
	return base64.StdEncoding.DecodeString(m.Payload)
}

// NewPing builds a ping frame carrying the given stats snapshot.
func NewPing(timestamp float64, stats map[string]int64) *Message {
	return &Message{Type: TypePing, Timestamp: timestamp, Stats: stats}
}

// NewPong answers a ping, echoing its timestamp per the wire schema.
func NewPong(ping *Message, now float64) *Message {
	return &Message{Type: TypePong, Timestamp: now, ClientTimestamp: ping.Timestamp}
}
