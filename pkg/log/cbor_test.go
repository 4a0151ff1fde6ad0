package log

import (
	"testing"
	"time"
)

func TestEncodeDecodeEvent(t *testing.T) {
	streamID := int64(4)
	status := 200
	event := Event{
		Timestamp:    time.Now().UTC(),
		ConnectionID: "conn-1",
		Direction:    DirectionOut,
		Layer:        LayerExchange,
		Category:     CategoryMessage,
		LocalRole:    RoleServer,
		RemoteAddr:   "127.0.0.1:4433",
		StreamID:     &streamID,
		Exchange: &ExchangeEvent{
			Type:        MessageTypeResponse,
			Status:      &status,
			HeaderCount: 2,
		},
	}

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent() error = %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}

	if decoded.ConnectionID != event.ConnectionID {
		t.Errorf("ConnectionID = %q, want %q", decoded.ConnectionID, event.ConnectionID)
	}
	if decoded.Layer != LayerExchange || decoded.Category != CategoryMessage {
		t.Errorf("layer/category = %v/%v, want EXCHANGE/MESSAGE", decoded.Layer, decoded.Category)
	}
	if decoded.StreamID == nil || *decoded.StreamID != streamID {
		t.Errorf("StreamID = %v, want %d", decoded.StreamID, streamID)
	}
	if decoded.Exchange == nil {
		t.Fatal("Exchange payload missing after round-trip")
	}
	if decoded.Exchange.Status == nil || *decoded.Exchange.Status != status {
		t.Errorf("Status = %v, want %d", decoded.Exchange.Status, status)
	}
	if !decoded.Timestamp.Equal(event.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", decoded.Timestamp, event.Timestamp)
	}
}

func TestDecodeEventInvalid(t *testing.T) {
	if _, err := DecodeEvent([]byte{0xff, 0x00}); err == nil {
		t.Error("DecodeEvent() should fail on garbage input")
	}
}
