package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/quic-go/quic-go"

	"github.com/hquic-project/hquic-go/pkg/log"
	"github.com/hquic-project/hquic-go/pkg/wire"
)

// Handler serves one exchange. Implementations decode nothing
// themselves: by the time Serve runs, the request metadata has already
// been received and validated.
type Handler interface {
	// Serve produces the response for one exchange. It must call
	// SendResponse before writing body bytes. If Serve returns without
	// finishing the exchange, the supervisor finishes it.
	Serve(ex *Exchange)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ex *Exchange)

// Serve calls f(ex).
func (f HandlerFunc) Serve(ex *Exchange) { f(ex) }

// ServerConfig configures an hquic server.
type ServerConfig struct {
	// Handshake contains the secure-handshake parameters.
	Handshake *HandshakeConfig

	// Address to listen on (e.g., ":4433" or "127.0.0.1:4433").
	Address string

	// Handler serves each exchange. Required.
	Handler Handler

	// MaxIdleTimeout closes connections with no activity (default: 30s).
	MaxIdleTimeout time.Duration

	// KeepAlivePeriod enables transport-level keepalives when non-zero.
	KeepAlivePeriod time.Duration

	// Logger for protocol logging (optional).
	Logger log.Logger

	// OnConnect is called when a new connection is established.
	OnConnect func(conn *ServerConn)

	// OnDisconnect is called when a connection is closed.
	OnDisconnect func(conn *ServerConn)

	// OnError is called when an error occurs. conn is nil for errors
	// not tied to an established connection.
	OnError func(conn *ServerConn, err error)
}

// Server accepts hquic connections and supervises their exchanges.
type Server struct {
	config  ServerConfig
	tlsConf *tls.Config

	listener *quic.Listener

	// Active connections
	conns   map[*ServerConn]struct{}
	connsMu sync.RWMutex

	// State
	running atomic.Bool
	stopped atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a new server. Configuration problems (missing
// credential, empty protocol list) are rejected here, before any
// network activity.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Handler == nil {
		return nil, fmt.Errorf("Handler is required")
	}
	if config.Address == "" {
		config.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	if config.MaxIdleTimeout == 0 {
		config.MaxIdleTimeout = 30 * time.Second
	}

	tlsConf, err := NewServerTLSConfig(config.Handshake)
	if err != nil {
		return nil, fmt.Errorf("failed to create TLS config: %w", err)
	}

	return &Server{
		config:  config,
		tlsConf: tlsConf,
		conns:   make(map[*ServerConn]struct{}),
	}, nil
}

// Start starts the server and begins accepting connections. A stopped
// server cannot be restarted.
func (s *Server) Start(ctx context.Context) error {
	if s.stopped.Load() {
		return ErrServerClosed
	}
	if s.running.Load() {
		return fmt.Errorf("server already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	listener, err := quic.ListenAddr(s.config.Address, s.tlsConf, s.quicConfig())
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener

	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop stops the server. New connections and streams are no longer
// accepted; in-flight exchanges run to completion before their
// connections close.
func (s *Server) Stop() error {
	s.stopped.Store(true)
	if !s.running.Load() {
		return nil
	}

	s.running.Store(false)
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	// Connection goroutines drain their exchanges and close their
	// connections on the way out.
	s.wg.Wait()

	return nil
}

// Addr returns the server's listen address.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// ConnectionCount returns the number of active connections.
func (s *Server) ConnectionCount() int {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return len(s.conns)
}

// quicConfig builds the Transport Engine configuration.
func (s *Server) quicConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:  s.config.MaxIdleTimeout,
		KeepAlivePeriod: s.config.KeepAlivePeriod,
	}
}

// acceptLoop accepts incoming connections. Failed handshake attempts
// are consumed and discarded by the QUIC engine itself and never reach
// this loop; nothing a misbehaving peer sends can terminate it.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := s.listener.Accept(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			if s.running.Load() {
				// Real error
				if s.config.OnError != nil {
					s.config.OnError(nil, fmt.Errorf("accept error: %w", err))
				}
				logError(s.config.Logger, "", "", log.LayerTransport, "accept", err)
			}
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection supervises a single established connection. The
// connection's state is owned exclusively by this goroutine.
func (s *Server) handleConnection(conn *quic.Conn) {
	defer s.wg.Done()

	connID := uuid.New().String()
	remote := conn.RemoteAddr().String()

	// The engine has already completed the handshake; verify the
	// negotiated protocol is one we configured.
	state := conn.ConnectionState().TLS
	if err := VerifyConnection(state, s.config.Handshake.Protocols); err != nil {
		conn.CloseWithError(errorCodeNoError, "")
		if s.config.OnError != nil {
			s.config.OnError(nil, err)
		}
		logError(s.config.Logger, connID, remote, log.LayerTransport, "protocol verification", err)
		return
	}

	sconn := &ServerConn{
		conn:       conn,
		server:     s,
		connID:     connID,
		remoteAddr: conn.RemoteAddr(),
		protocol:   state.NegotiatedProtocol,
	}
	sconn.state.Store(int32(StateEstablished))

	if s.config.Logger != nil {
		s.config.Logger.Log(log.Event{
			Timestamp:    time.Now(),
			ConnectionID: connID,
			Layer:        log.LayerTransport,
			Category:     log.CategoryHandshake,
			LocalRole:    log.RoleServer,
			RemoteAddr:   remote,
			Handshake:    &log.HandshakeEvent{Protocol: state.NegotiatedProtocol},
		})
	}
	logStateChange(s.config.Logger, connID, remote, log.RoleServer, StateHandshaking, StateEstablished, "")

	s.connsMu.Lock()
	s.conns[sconn] = struct{}{}
	s.connsMu.Unlock()

	if s.config.OnConnect != nil {
		s.config.OnConnect(sconn)
	}

	sconn.streamAcceptLoop()

	s.connsMu.Lock()
	delete(s.conns, sconn)
	s.connsMu.Unlock()

	logStateChange(s.config.Logger, connID, remote, log.RoleServer, StateClosing, StateClosed, "")

	if s.config.OnDisconnect != nil {
		s.config.OnDisconnect(sconn)
	}
}

// ServerConn represents one client connection to the server.
type ServerConn struct {
	conn       *quic.Conn
	server     *Server
	connID     string // Unique connection identifier
	remoteAddr net.Addr
	protocol   string

	state     atomic.Int32
	closeOnce sync.Once

	// In-flight exchange goroutines
	exchanges sync.WaitGroup
}

// ConnID returns the unique connection identifier.
func (c *ServerConn) ConnID() string {
	return c.connID
}

// RemoteAddr returns the remote address of the client.
func (c *ServerConn) RemoteAddr() net.Addr {
	return c.remoteAddr
}

// Protocol returns the negotiated application-protocol identifier.
func (c *ServerConn) Protocol() string {
	return c.protocol
}

// State returns the connection state.
func (c *ServerConn) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// Close closes the connection immediately. In-flight exchanges observe
// stream failure through the Transport Engine.
func (c *ServerConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		err = c.conn.CloseWithError(errorCodeNoError, "")
	})
	return err
}

// streamAcceptLoop accepts inbound streams and dispatches one exchange
// per stream. The loop ends when the engine reports the connection is
// finished (graceful) or faulted; either way all of this connection's
// exchanges observe stream termination cooperatively.
func (c *ServerConn) streamAcceptLoop() {
	s := c.server

	for {
		stream, err := c.conn.AcceptStream(s.ctx)
		if err != nil {
			reason := "graceful close"
			if s.ctx.Err() != nil {
				// Supervisor shutdown: stop accepting, let in-flight
				// exchanges finish.
				reason = "server shutdown"
			} else if !isGracefulClose(err) {
				reason = err.Error()
				if s.config.OnError != nil && s.running.Load() {
					s.config.OnError(c, fmt.Errorf("connection fault: %w", err))
				}
				logError(s.config.Logger, c.connID, c.remoteAddr.String(), log.LayerTransport, "stream accept", err)
			}

			c.state.Store(int32(StateClosing))
			logStateChange(s.config.Logger, c.connID, c.remoteAddr.String(), log.RoleServer, StateEstablished, StateClosing, reason)

			c.exchanges.Wait()
			c.Close()
			return
		}

		c.exchanges.Add(1)
		go c.handleExchange(stream)
	}
}

// handleExchange runs the request/response state machine for one stream.
// Failures here are isolated to this exchange.
func (c *ServerConn) handleExchange(stream *quic.Stream) {
	defer c.exchanges.Done()

	s := c.server
	ex := newExchange(stream, c.connID, c.remoteAddr.String(), s.config.Logger)

	if err := ex.readRequest(); err != nil {
		ex.fail(streamErrorMessageError, "request decode failed")
		if s.config.OnError != nil {
			s.config.OnError(c, fmt.Errorf("malformed request on stream %d: %w", ex.StreamID(), err))
		}
		return
	}

	s.config.Handler.Serve(ex)

	// A handler that produced a response but never finished gets the
	// finish signal issued for it; a handler that produced nothing is a
	// server bug and the stream is reset.
	switch ex.State() {
	case StateResponseSent, StateBodySent:
		if err := ex.Finish(); err != nil && err != ErrAlreadyFinished {
			logError(s.config.Logger, c.connID, c.remoteAddr.String(), log.LayerExchange, "finish", err)
		}
	case StateRequestReceived:
		ex.fail(streamErrorInternal, "handler sent no response")
		if s.config.OnError != nil {
			s.config.OnError(c, fmt.Errorf("handler sent no response for %s %s", ex.Request().Method, ex.Request().Target))
		}
	}
}

// FixedResponseHandler returns a handler that answers every request
// with the given status, content type and body. Useful for demos and
// tests.
func FixedResponseHandler(status int, contentType string, body []byte) Handler {
	return HandlerFunc(func(ex *Exchange) {
		resp := wire.NewResponse(status)
		resp.Header.Add("content-type", contentType)
		if err := ex.SendResponse(resp); err != nil {
			return
		}
		if len(body) > 0 {
			if _, err := ex.Write(body); err != nil {
				return
			}
		}
		ex.Finish()
	})
}
