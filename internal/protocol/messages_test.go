package protocol

import (
	"encoding/json"
	"testing"
)

func TestParseClientMessage_JoinStream(t *testing.T) {
	input := []byte(`{"type":"join_stream","stream_id":"stream-42","username":"viewer_7"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeJoinStream {
		t.Fatalf("expected type %q, got %q", TypeJoinStream, msgType)
	}

	jm, ok := msg.(JoinStreamMsg)
	if !ok {
		t.Fatalf("expected JoinStreamMsg, got %T", msg)
	}
	if jm.StreamID != "stream-42" {
		t.Errorf("stream_id = %q, want %q", jm.StreamID, "stream-42")
	}
	if jm.Username != "viewer_7" {
		t.Errorf("username = %q, want %q", jm.Username, "viewer_7")
	}
}

func TestParseClientMessage_ChatMsg(t *testing.T) {
	input := []byte(`{"type":"message","stream_id":"stream-42","text":"Hello!"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeMessage {
		t.Fatalf("expected type %q, got %q", TypeMessage, msgType)
	}

	cm, ok := msg.(ChatMsg)
	if !ok {
		t.Fatalf("expected ChatMsg, got %T", msg)
	}
	if cm.StreamID != "stream-42" || cm.Text != "Hello!" {
		t.Errorf("parsed = %+v", cm)
	}
}

func TestParseClientMessage_SendGift(t *testing.T) {
	input := []byte(`{"type":"send_gift","stream_id":"stream-42","gift_id":"rose"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeSendGift {
		t.Fatalf("expected type %q, got %q", TypeSendGift, msgType)
	}

	gm, ok := msg.(SendGiftMsg)
	if !ok {
		t.Fatalf("expected SendGiftMsg, got %T", msg)
	}
	if gm.GiftID != "rose" {
		t.Errorf("gift_id = %q, want %q", gm.GiftID, "rose")
	}
}

func TestParseClientMessage_PurchaseCoins(t *testing.T) {
	input := []byte(`{"type":"purchase_coins","amount":500}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypePurchaseCoins {
		t.Fatalf("expected type %q, got %q", TypePurchaseCoins, msgType)
	}

	pm, ok := msg.(PurchaseCoinsMsg)
	if !ok {
		t.Fatalf("expected PurchaseCoinsMsg, got %T", msg)
	}
	if pm.Amount != 500 {
		t.Errorf("amount = %d, want 500", pm.Amount)
	}
}

func TestParseClientMessage_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"invalid json", `{not json`},
		{"missing type", `{"stream_id":"x"}`},
		{"empty type", `{"type":""}`},
		{"unknown type", `{"type":"do_a_flip"}`},
		{"server-only type", `{"type":"gift_received"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseClientMessage([]byte(tt.input))
			if err == nil {
				t.Errorf("ParseClientMessage(%q) succeeded, want error", tt.input)
			}
		})
	}
}

func TestNewServerMessage_InjectsType(t *testing.T) {
	data, err := NewServerMessage(TypeGiftReceived, GiftReceivedMsg{
		GiftID:   "rose",
		GiftName: "Rose",
		From:     "viewer_7",
		Cost:     5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if m["type"] != TypeGiftReceived {
		t.Errorf("type = %v, want %q", m["type"], TypeGiftReceived)
	}
	if m["gift_id"] != "rose" || m["from"] != "viewer_7" {
		t.Errorf("payload = %v", m)
	}
	if m["cost"] != float64(5) {
		t.Errorf("cost = %v, want 5", m["cost"])
	}
}

func TestNewServerMessage_WarningRoundTrip(t *testing.T) {
	data, err := NewServerMessage(TypeWarning, WarningMsg{
		Count:   2,
		Limit:   3,
		Reason:  "profanity",
		Message: "Warning 2/3",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The fanned-out bytes must parse back through the envelope.
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("envelope parse: %v", err)
	}
	if env.Type != TypeWarning {
		t.Errorf("envelope type = %q, want %q", env.Type, TypeWarning)
	}

	var wm WarningMsg
	if err := json.Unmarshal(env.Raw, &wm); err != nil {
		t.Fatalf("payload parse: %v", err)
	}
	if wm.Count != 2 || wm.Limit != 3 || wm.Message != "Warning 2/3" {
		t.Errorf("round-tripped = %+v", wm)
	}
}
