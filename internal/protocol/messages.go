// Package protocol defines the WebSocket message types and structures used
// for communication between the client and the stream server. All messages
// are serialized as JSON and follow a consistent envelope format with a
// type discriminator.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Message type constants
// ---------------------------------------------------------------------------

// Client -> Server message types.
const (
	TypeJoinStream    = "join_stream"
	TypeLeaveStream   = "leave_stream"
	TypeStartStream   = "start_stream"
	TypeEndStream     = "end_stream"
	TypeMessage       = "message"
	TypeSendGift      = "send_gift"
	TypePurchaseCoins = "purchase_coins"
	TypePinMessage    = "pin_message"
	TypePing          = "ping"
)

// Server -> Client message types.
const (
	TypeSessionCreated = "session_created"
	TypeStreamJoined   = "stream_joined"
	TypeStreamStarted  = "stream_started"
	TypeStreamEnded    = "stream_ended"
	TypeWarning        = "warning"
	TypeMuted          = "muted"
	TypeMuteActive     = "mute_active"
	TypeGiftSent       = "gift_sent"
	TypeGiftReceived   = "gift_received"
	TypeCoinsPurchased = "coins_purchased"
	TypeViewerCount    = "viewer_count"
	TypeSnapshot       = "snapshot"
	TypeRateLimited    = "rate_limited"
	TypeError          = "error"
	TypePong           = "pong"
)

// Error codes carried by ErrorMsg.
const (
	CodeParseError        = "parse_error"
	CodeUnsupportedType   = "unsupported_type"
	CodeNotInStream       = "not_in_stream"
	CodeStreamNotLive     = "stream_not_live"
	CodeInvalidMessage    = "invalid_message"
	CodeInsufficientFunds = "insufficient_funds"
	CodeInvalidGift       = "invalid_gift"
	CodeInvalidAmount     = "invalid_amount"
	CodeInternalError     = "internal_error"
)

// ---------------------------------------------------------------------------
// Envelope — used for initial JSON parsing to extract the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements the json.Unmarshaler interface. It captures the
// full raw bytes and extracts only the "type" field so that the rest of the
// payload can be decoded later into the appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	// Capture the full raw message for deferred parsing.
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	// Extract only the type field.
	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Client -> Server message structs
// ---------------------------------------------------------------------------

// JoinStreamMsg is sent by a viewer to enter a live stream's chat.
type JoinStreamMsg struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
	Username string `json:"username"`
}

// LeaveStreamMsg is sent by a viewer leaving the stream.
type LeaveStreamMsg struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
}

// StartStreamMsg is sent by a broadcaster going live.
type StartStreamMsg struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
	Username string `json:"username"`
}

// EndStreamMsg is sent by the broadcaster ending their stream.
type EndStreamMsg struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
}

// ChatMsg is a text message sent by a viewer into the stream chat.
type ChatMsg struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
	Text     string `json:"text"`
}

// SendGiftMsg is sent by a viewer gifting the streamer.
type SendGiftMsg struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
	GiftID   string `json:"gift_id"`
}

// PurchaseCoinsMsg tops up the viewer's coin balance.
type PurchaseCoinsMsg struct {
	Type   string `json:"type"`
	Amount int64  `json:"amount"`
}

// PinMessageMsg is sent by the broadcaster to pin a chat message.
type PinMessageMsg struct {
	Type      string `json:"type"`
	StreamID  string `json:"stream_id"`
	MessageID string `json:"message_id"`
}

// PingMsg is a client-initiated keepalive ping.
type PingMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Server -> Client message structs
// ---------------------------------------------------------------------------

// SessionCreatedMsg is sent by the server when a new session is established.
type SessionCreatedMsg struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// StreamJoinedMsg confirms a join and carries the initial stream snapshot
// as built by the session aggregator.
type StreamJoinedMsg struct {
	Type     string          `json:"type"`
	StreamID string          `json:"stream_id"`
	Snapshot json.RawMessage `json:"snapshot,omitempty"`
}

// StreamStartedMsg confirms the broadcaster is live.
type StreamStartedMsg struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
}

// StreamEndedMsg tells viewers the stream is over.
type StreamEndedMsg struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
}

// ServerChatMsg is a chat message fanned out to viewers. Gift events carry
// IsGift and GiftType.
type ServerChatMsg struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
	Username  string `json:"username"`
	Text      string `json:"text"`
	Ts        int64  `json:"ts"`
	IsGift    bool   `json:"is_gift,omitempty"`
	GiftType  string `json:"gift_type,omitempty"`
}

// WarningMsg tells a viewer their message violated policy ("Warning 2/3").
type WarningMsg struct {
	Type    string `json:"type"`
	Count   int    `json:"count"`
	Limit   int    `json:"limit"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// MutedMsg tells a viewer they have just been muted.
type MutedMsg struct {
	Type        string `json:"type"`
	ExpiresAtMs int64  `json:"expires_at_ms"`
	CooldownSec int    `json:"cooldown_sec"`
	Reason      string `json:"reason"`
}

// MuteActiveMsg rejects a send attempted during an active mute.
type MuteActiveMsg struct {
	Type         string `json:"type"`
	RemainingSec int    `json:"remaining_sec"`
}

// GiftSentMsg confirms a gift send to the sender, with their new balance.
type GiftSentMsg struct {
	Type    string `json:"type"`
	GiftID  string `json:"gift_id"`
	Balance int64  `json:"balance"`
}

// GiftReceivedMsg is fanned out when someone gifts the streamer.
type GiftReceivedMsg struct {
	Type     string `json:"type"`
	GiftID   string `json:"gift_id"`
	GiftName string `json:"gift_name"`
	From     string `json:"from"`
	Cost     int64  `json:"cost"`
}

// CoinsPurchasedMsg confirms a coin top-up.
type CoinsPurchasedMsg struct {
	Type    string `json:"type"`
	Amount  int64  `json:"amount"`
	Balance int64  `json:"balance"`
}

// ViewerCountMsg carries viewer-count updates.
type ViewerCountMsg struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
	Count    int    `json:"count"`
}

// SnapshotMsg carries a full session snapshot (periodic or on demand).
type SnapshotMsg struct {
	Type     string          `json:"type"`
	Snapshot json.RawMessage `json:"snapshot"`
}

// RateLimitedMsg is sent when the client has been rate-limited.
type RateLimitedMsg struct {
	Type       string `json:"type"`
	RetryAfter int    `json:"retry_after"`
}

// ErrorMsg is sent by the server to communicate an error condition.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PongMsg is the server's response to a client ping.
type PongMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseClientMessage parses raw WebSocket bytes into a typed client message.
// It returns the message type string, the decoded struct, and any error
// encountered during parsing. An error is returned for unknown or
// server-only message types.
func ParseClientMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeJoinStream:
		var m JoinStreamMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeLeaveStream:
		var m LeaveStreamMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeStartStream:
		var m StartStreamMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeEndStream:
		var m EndStreamMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeMessage:
		var m ChatMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeSendGift:
		var m SendGiftMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePurchaseCoins:
		var m PurchaseCoinsMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePinMessage:
		var m PinMessageMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client message type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage creates a JSON-encoded byte slice for a server message.
// The msgType is injected into the payload under the "type" key. The payload
// should be one of the Server*Msg structs; this function marshals it to JSON,
// injects the type field, and returns the final bytes.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	// Marshal the payload struct to a generic map so we can ensure the "type"
	// field is present and correct.
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}
