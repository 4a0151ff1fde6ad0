package log

import (
	"time"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// LocalRole indicates whether this endpoint is the server or client.
	LocalRole Role `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address (IP:port).
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// StreamID is the QUIC stream carrying the event, when stream-bound.
	StreamID *int64 `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Handshake   *HandshakeEvent   `cbor:"9,keyasint,omitempty"`  // Transport layer
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Wire layer
	Exchange    *ExchangeEvent    `cbor:"11,keyasint,omitempty"` // Exchange layer (decoded)
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Connection/exchange state
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the connection/handshake layer.
	LayerTransport Layer = 0
	// LayerWire is the frame encoding layer.
	LayerWire Layer = 1
	// LayerExchange is the request/response layer.
	LayerExchange Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerExchange:
		return "EXCHANGE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol message (request/response).
	CategoryMessage Category = 0
	// CategoryHandshake indicates a handshake outcome.
	CategoryHandshake Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryHandshake:
		return "HANDSHAKE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role indicates whether the local endpoint accepted or initiated.
type Role uint8

const (
	// RoleServer indicates this endpoint accepted the connection.
	RoleServer Role = 0
	// RoleClient indicates this endpoint initiated the connection.
	RoleClient Role = 1
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleServer:
		return "SERVER"
	case RoleClient:
		return "CLIENT"
	default:
		return "UNKNOWN"
	}
}

// HandshakeEvent captures the outcome of a secure handshake.
type HandshakeEvent struct {
	// Protocol is the negotiated application protocol (empty on failure).
	Protocol string `cbor:"1,keyasint,omitempty"`

	// ServerName is the peer identity hint used for verification.
	ServerName string `cbor:"2,keyasint,omitempty"`
}

// FrameEvent captures a wire frame crossing a stream.
type FrameEvent struct {
	// Type is the frame type code.
	Type uint64 `cbor:"1,keyasint"`

	// Size is the payload size in bytes (excluding the frame envelope).
	Size int `cbor:"2,keyasint"`

	// Data is the raw payload (may be truncated for large frames).
	Data []byte `cbor:"3,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"4,keyasint,omitempty"`
}

// ExchangeEvent captures a decoded request or response.
type ExchangeEvent struct {
	// Type distinguishes request from response.
	Type MessageType `cbor:"1,keyasint"`

	// For requests: the method and target.
	Method string `cbor:"2,keyasint,omitempty"`
	Target string `cbor:"3,keyasint,omitempty"`

	// For responses: the status code.
	Status *int `cbor:"4,keyasint,omitempty"`

	// HeaderCount is the number of decoded header fields.
	HeaderCount int `cbor:"5,keyasint,omitempty"`

	// ProcessingTime is the duration from request receipt to response
	// send (response only). Stored as nanoseconds.
	ProcessingTime *time.Duration `cbor:"6,keyasint,omitempty"`
}

// MessageType distinguishes request from response.
type MessageType uint8

const (
	// MessageTypeRequest indicates a request message.
	MessageTypeRequest MessageType = 0
	// MessageTypeResponse indicates a response message.
	MessageTypeResponse MessageType = 1
)

// String returns the message type name.
func (m MessageType) String() string {
	switch m {
	case MessageTypeRequest:
		return "REQUEST"
	case MessageTypeResponse:
		return "RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures connection and exchange lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntityExchange indicates an exchange state change.
	StateEntityExchange StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntityExchange:
		return "EXCHANGE"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures error details at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error text.
	Message string `cbor:"2,keyasint"`

	// Context describes what was being attempted.
	Context string `cbor:"3,keyasint,omitempty"`
}
