package transport

import (
	"context"
	"io"
	"net"

	"github.com/hquic-project/hquic-go/pkg/wire"
)

// ServerConnection represents a server-side connection to a client.
// Implemented by ServerConn.
type ServerConnection interface {
	// ConnID returns the unique connection identifier.
	ConnID() string

	// RemoteAddr returns the remote network address of the client.
	RemoteAddr() net.Addr

	// Protocol returns the negotiated application-protocol identifier.
	Protocol() string

	// State returns the connection state.
	State() ConnectionState

	// Close closes the connection.
	Close() error
}

// ClientConnection represents a client-side connection to a server.
// Implemented by ClientConn.
type ClientConnection interface {
	// ConnID returns the unique connection identifier.
	ConnID() string

	// RemoteAddr returns the remote network address.
	RemoteAddr() net.Addr

	// Protocol returns the negotiated application-protocol identifier.
	Protocol() string

	// RoundTrip sends a request on a fresh stream and reads the
	// response metadata.
	RoundTrip(ctx context.Context, req *wire.Request) (*ClientExchange, error)

	// Close closes the connection.
	Close() error
}

// TransportServer represents an hquic server.
// Implemented by Server.
type TransportServer interface {
	// Start begins accepting connections.
	Start(ctx context.Context) error

	// Stop gracefully stops the server.
	Stop() error

	// Addr returns the server's listen address.
	Addr() net.Addr

	// ConnectionCount returns the number of active connections.
	ConnectionCount() int
}

// ResponseWriter is the handler-facing side of an exchange.
// Implemented by Exchange.
type ResponseWriter interface {
	// SendResponse writes the response metadata. Must be called before
	// any body bytes.
	SendResponse(resp *wire.Response) error

	// Write sends a body chunk.
	io.Writer

	// Finish completes the exchange.
	Finish() error
}

// Compile-time interface satisfaction checks.
var (
	_ ServerConnection = (*ServerConn)(nil)
	_ ClientConnection = (*ClientConn)(nil)
	_ TransportServer  = (*Server)(nil)
	_ ResponseWriter   = (*Exchange)(nil)
)
