package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quic-go/quic-go"

	"github.com/hquic-project/hquic-go/pkg/log"
	"github.com/hquic-project/hquic-go/pkg/wire"
)

// ClientConfig configures an hquic client.
type ClientConfig struct {
	// Handshake contains the secure-handshake parameters.
	Handshake *HandshakeConfig

	// ConnectTimeout bounds connection establishment (default: 30s).
	ConnectTimeout time.Duration

	// MaxIdleTimeout closes connections with no activity (default: 30s).
	MaxIdleTimeout time.Duration

	// KeepAlivePeriod enables transport-level keepalives when non-zero.
	KeepAlivePeriod time.Duration

	// Logger for protocol logging (optional).
	Logger log.Logger
}

// Client establishes hquic connections to servers.
type Client struct {
	config  ClientConfig
	tlsConf *tls.Config
}

// NewClient creates a new client. Configuration problems are rejected
// here, before any network activity.
func NewClient(config ClientConfig) (*Client, error) {
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 30 * time.Second
	}
	if config.MaxIdleTimeout == 0 {
		config.MaxIdleTimeout = 30 * time.Second
	}

	tlsConf, err := NewClientTLSConfig(config.Handshake)
	if err != nil {
		return nil, fmt.Errorf("failed to create TLS config: %w", err)
	}

	return &Client{
		config:  config,
		tlsConf: tlsConf,
	}, nil
}

// Connect establishes a connection to the server at address. The
// handshake must complete and the negotiated protocol must be one of
// the configured identifiers before Connect returns.
func (c *Client) Connect(ctx context.Context, address string) (*ClientConn, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()

	connID := uuid.New().String()

	conn, err := quic.DialAddr(ctx, address, c.tlsConf, &quic.Config{
		MaxIdleTimeout:  c.config.MaxIdleTimeout,
		KeepAlivePeriod: c.config.KeepAlivePeriod,
	})
	if err != nil {
		logError(c.config.Logger, connID, address, log.LayerTransport, "dial", err)
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	state := conn.ConnectionState().TLS
	if err := VerifyConnection(state, c.config.Handshake.Protocols); err != nil {
		conn.CloseWithError(errorCodeNoError, "")
		logError(c.config.Logger, connID, address, log.LayerTransport, "protocol verification", err)
		return nil, err
	}

	remote := conn.RemoteAddr().String()
	if c.config.Logger != nil {
		c.config.Logger.Log(log.Event{
			Timestamp:    time.Now(),
			ConnectionID: connID,
			Layer:        log.LayerTransport,
			Category:     log.CategoryHandshake,
			LocalRole:    log.RoleClient,
			RemoteAddr:   remote,
			Handshake: &log.HandshakeEvent{
				Protocol:   state.NegotiatedProtocol,
				ServerName: c.tlsConf.ServerName,
			},
		})
	}
	logStateChange(c.config.Logger, connID, remote, log.RoleClient, StateHandshaking, StateEstablished, "")

	return &ClientConn{
		conn:     conn,
		connID:   connID,
		protocol: state.NegotiatedProtocol,
		logger:   c.config.Logger,
	}, nil
}

// ClientConn represents one connection to a server. Multiple exchanges
// may run concurrently over the same connection; each gets its own
// stream and fails independently.
type ClientConn struct {
	conn     *quic.Conn
	connID   string // Unique connection identifier
	protocol string
	logger   log.Logger

	closeOnce sync.Once
}

// ConnID returns the unique connection identifier.
func (c *ClientConn) ConnID() string {
	return c.connID
}

// RemoteAddr returns the remote address of the server.
func (c *ClientConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Protocol returns the negotiated application-protocol identifier.
func (c *ClientConn) Protocol() string {
	return c.protocol
}

// Close closes the connection gracefully.
func (c *ClientConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		remote := c.conn.RemoteAddr().String()
		logStateChange(c.logger, c.connID, remote, log.RoleClient, StateEstablished, StateClosed, "client close")
		err = c.conn.CloseWithError(errorCodeNoError, "")
	})
	return err
}

// RoundTrip opens a new stream, sends the request metadata, and reads
// the response metadata. The returned exchange exposes the response
// body. A request without a body has its send side finished
// immediately, so the server sees end-of-request as soon as the
// metadata frame arrives.
func (c *ClientConn) RoundTrip(ctx context.Context, req *wire.Request) (*ClientExchange, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	stream, err := c.conn.OpenStreamSync(ctx)
	if err != nil {
		if c.conn.Context().Err() != nil {
			return nil, ErrConnectionClosed
		}
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}

	streamID := int64(stream.StreamID())
	writer := wire.NewFrameWriter(stream)
	reader := wire.NewFrameReader(stream)
	if c.logger != nil {
		writer.SetLogger(c.logger, c.connID, streamID)
		reader.SetLogger(c.logger, c.connID, streamID)
	}

	block, err := wire.EncodeRequestHeaders(req)
	if err != nil {
		stream.CancelWrite(streamErrorInternal)
		stream.CancelRead(streamErrorInternal)
		return nil, err
	}
	if err := writer.WriteHeaders(block); err != nil {
		stream.CancelRead(streamErrorRequestCancelled)
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	// No request body: signal end of the send direction now.
	if err := stream.Close(); err != nil {
		stream.CancelRead(streamErrorRequestCancelled)
		return nil, fmt.Errorf("failed to finish request: %w", err)
	}

	c.logMessage(streamID, log.DirectionOut, &log.ExchangeEvent{
		Type:        log.MessageTypeRequest,
		Method:      req.Method,
		Target:      req.Target,
		HeaderCount: len(req.Header),
	})

	sent := time.Now()
	respBlock, err := reader.ReadHeaders()
	if err != nil {
		stream.CancelRead(streamErrorRequestCancelled)
		return nil, fmt.Errorf("failed to read response metadata: %w", err)
	}
	resp, err := wire.DecodeResponseHeaders(respBlock)
	if err != nil {
		stream.CancelRead(streamErrorMessageError)
		return nil, err
	}

	elapsed := time.Since(sent)
	c.logMessage(streamID, log.DirectionIn, &log.ExchangeEvent{
		Type:           log.MessageTypeResponse,
		Status:         &resp.Status,
		HeaderCount:    len(resp.Header),
		ProcessingTime: &elapsed,
	})

	return &ClientExchange{
		stream: stream,
		reader: reader,
		resp:   resp,
	}, nil
}

func (c *ClientConn) logMessage(streamID int64, direction log.Direction, payload *log.ExchangeEvent) {
	if c.logger == nil {
		return
	}
	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Direction:    direction,
		Layer:        log.LayerExchange,
		Category:     log.CategoryMessage,
		LocalRole:    log.RoleClient,
		RemoteAddr:   c.conn.RemoteAddr().String(),
		StreamID:     &streamID,
		Exchange:     payload,
	})
}

// ClientExchange is the client side of one request/response exchange.
// The response metadata is available immediately; the body is read
// chunk by chunk.
type ClientExchange struct {
	stream *quic.Stream
	reader *wire.FrameReader
	resp   *wire.Response

	done bool
}

// StreamID returns the identifier of the stream carrying this exchange.
func (e *ClientExchange) StreamID() int64 {
	return int64(e.stream.StreamID())
}

// Response returns the decoded response metadata.
func (e *ClientExchange) Response() *wire.Response {
	return e.resp
}

// ReadBody returns the next body chunk, or io.EOF after the server has
// finished the exchange.
func (e *ClientExchange) ReadBody() ([]byte, error) {
	if e.done {
		return nil, io.EOF
	}
	chunk, err := e.reader.ReadData()
	if err == io.EOF {
		e.done = true
		return nil, io.EOF
	}
	if err != nil {
		e.stream.CancelRead(streamErrorRequestCancelled)
		return nil, err
	}
	return chunk, nil
}

// ReadAllBody reads the remaining body into a single buffer.
func (e *ClientExchange) ReadAllBody() ([]byte, error) {
	var body []byte
	for {
		chunk, err := e.ReadBody()
		if err == io.EOF {
			return body, nil
		}
		if err != nil {
			return nil, err
		}
		body = append(body, chunk...)
	}
}

// Close abandons the exchange. Reading the body to completion makes
// this a no-op; closing early tells the server the response is no
// longer wanted.
func (e *ClientExchange) Close() error {
	if !e.done {
		e.stream.CancelRead(streamErrorRequestCancelled)
		e.done = true
	}
	return nil
}
