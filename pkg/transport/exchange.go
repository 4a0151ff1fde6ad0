package transport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/hquic-project/hquic-go/pkg/log"
	"github.com/hquic-project/hquic-go/pkg/wire"
)

// ExchangeState tracks one request/response exchange through its
// lifecycle. Transitions are linear except Failed, which is reachable
// from every state.
type ExchangeState int

const (
	// StateAwaitingRequest indicates request metadata has not arrived yet.
	StateAwaitingRequest ExchangeState = iota

	// StateRequestReceived indicates complete request metadata was decoded.
	StateRequestReceived

	// StateResponseSent indicates response metadata has been written.
	StateResponseSent

	// StateBodySent indicates at least one body chunk has been written.
	StateBodySent

	// StateFinished indicates the write side is closed; the exchange is done.
	StateFinished

	// StateFailed is the absorbing failure state.
	StateFailed
)

// String returns the exchange state name.
func (s ExchangeState) String() string {
	switch s {
	case StateAwaitingRequest:
		return "AWAITING_REQUEST"
	case StateRequestReceived:
		return "REQUEST_RECEIVED"
	case StateResponseSent:
		return "RESPONSE_SENT"
	case StateBodySent:
		return "BODY_SENT"
	case StateFinished:
		return "FINISHED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// canTransition reports whether moving from s to next is legal.
func (s ExchangeState) canTransition(next ExchangeState) bool {
	if next == StateFailed {
		return s != StateFailed
	}
	switch s {
	case StateAwaitingRequest:
		return next == StateRequestReceived
	case StateRequestReceived:
		return next == StateResponseSent
	case StateResponseSent:
		return next == StateBodySent || next == StateFinished
	case StateBodySent:
		return next == StateBodySent || next == StateFinished
	default:
		return false
	}
}

// Exchange errors.
var (
	// ErrAlreadyFinished indicates a redundant finish on a completed
	// exchange. Callers may treat it as informational.
	ErrAlreadyFinished = errors.New("exchange already finished")

	// ErrResponseNotSent indicates body bytes were written before
	// response metadata.
	ErrResponseNotSent = errors.New("response metadata not sent yet")

	// ErrResponseAlreadySent indicates a second response on one exchange.
	ErrResponseAlreadySent = errors.New("response already sent")

	// ErrExchangeFailed indicates the exchange is in the Failed state.
	ErrExchangeFailed = errors.New("exchange failed")
)

// Exchange is one server-side request/response pair bound to a single
// bidirectional stream. The exchange holds the stream handle but the
// Transport Engine owns the stream's lifetime; exchange teardown
// releases the handle without affecting sibling streams.
//
// An Exchange is confined to the goroutine running its handler.
type Exchange struct {
	stream   *quic.Stream
	connID   string
	remote   string
	logger   log.Logger
	reader   *wire.FrameReader
	writer   *wire.FrameWriter
	received time.Time

	mu    sync.Mutex
	state ExchangeState
	req   *wire.Request
}

// newExchange wraps an accepted stream in an exchange.
func newExchange(stream *quic.Stream, connID, remote string, logger log.Logger) *Exchange {
	reader := wire.NewFrameReader(stream)
	writer := wire.NewFrameWriter(stream)
	if logger != nil {
		reader.SetLogger(logger, connID, int64(stream.StreamID()))
		writer.SetLogger(logger, connID, int64(stream.StreamID()))
	}
	return &Exchange{
		stream: stream,
		connID: connID,
		remote: remote,
		logger: logger,
		reader: reader,
		writer: writer,
		state:  StateAwaitingRequest,
	}
}

// StreamID returns the identifier of the stream carrying this exchange.
func (e *Exchange) StreamID() int64 {
	return int64(e.stream.StreamID())
}

// State returns the current exchange state.
func (e *Exchange) State() ExchangeState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Request returns the decoded request metadata. Nil until the request
// has been received.
func (e *Exchange) Request() *wire.Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.req
}

// transition moves the state machine, rejecting illegal transitions.
func (e *Exchange) transition(next ExchangeState) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.canTransition(next) {
		if e.state == StateFailed {
			return ErrExchangeFailed
		}
		return fmt.Errorf("invalid exchange transition %s -> %s", e.state, next)
	}
	old := e.state
	e.state = next
	e.logTransition(old, next)
	return nil
}

// readRequest decodes the request metadata frame. Called once by the
// supervisor before the handler runs.
func (e *Exchange) readRequest() error {
	block, err := e.reader.ReadHeaders()
	if err != nil {
		return fmt.Errorf("failed to read request metadata: %w", err)
	}

	req, err := wire.DecodeRequestHeaders(block)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.req = req
	e.mu.Unlock()
	e.received = time.Now()

	if err := e.transition(StateRequestReceived); err != nil {
		return err
	}

	e.logMessage(log.DirectionIn, &log.ExchangeEvent{
		Type:        log.MessageTypeRequest,
		Method:      req.Method,
		Target:      req.Target,
		HeaderCount: len(req.Header),
	})
	return nil
}

// SendResponse writes the response metadata as its own frame. It must
// be called exactly once, before any body bytes: the peer can always
// read metadata in full before the first body chunk arrives.
func (e *Exchange) SendResponse(resp *wire.Response) error {
	e.mu.Lock()
	switch e.state {
	case StateFailed:
		e.mu.Unlock()
		return ErrExchangeFailed
	case StateResponseSent, StateBodySent, StateFinished:
		e.mu.Unlock()
		return ErrResponseAlreadySent
	}
	e.mu.Unlock()

	block, err := wire.EncodeResponseHeaders(resp)
	if err != nil {
		return err
	}
	if err := e.writer.WriteHeaders(block); err != nil {
		e.fail(streamErrorInternal, "response metadata write failed")
		return err
	}
	if err := e.transition(StateResponseSent); err != nil {
		return err
	}

	processing := time.Since(e.received)
	status := resp.Status
	e.logMessage(log.DirectionOut, &log.ExchangeEvent{
		Type:           log.MessageTypeResponse,
		Status:         &status,
		HeaderCount:    len(resp.Header),
		ProcessingTime: &processing,
	})
	return nil
}

// Write sends one body chunk as a DATA frame. Valid only after
// SendResponse. A peer reset surfaces here as a stream error and moves
// the exchange to Failed; there is no partial-write retry.
func (e *Exchange) Write(p []byte) (int, error) {
	e.mu.Lock()
	switch e.state {
	case StateFailed:
		e.mu.Unlock()
		return 0, ErrExchangeFailed
	case StateFinished:
		e.mu.Unlock()
		return 0, ErrAlreadyFinished
	case StateAwaitingRequest, StateRequestReceived:
		e.mu.Unlock()
		return 0, ErrResponseNotSent
	}
	e.mu.Unlock()

	if err := e.writer.WriteData(p); err != nil {
		e.fail(streamErrorRequestCancelled, "body write failed")
		return 0, err
	}
	if e.State() == StateResponseSent {
		if err := e.transition(StateBodySent); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

// Finish closes the write side of the stream, telling the peer no
// further body bytes will arrive. Calling Finish again returns
// ErrAlreadyFinished; it never panics.
func (e *Exchange) Finish() error {
	e.mu.Lock()
	switch e.state {
	case StateFinished:
		e.mu.Unlock()
		return ErrAlreadyFinished
	case StateFailed:
		e.mu.Unlock()
		return ErrExchangeFailed
	case StateAwaitingRequest, StateRequestReceived:
		e.mu.Unlock()
		return ErrResponseNotSent
	}
	e.mu.Unlock()

	if err := e.stream.Close(); err != nil {
		e.fail(streamErrorInternal, "stream finish failed")
		return err
	}
	return e.transition(StateFinished)
}

// fail moves the exchange to Failed and releases the stream. Resets are
// scoped to this stream only; siblings on the same connection are
// unaffected.
func (e *Exchange) fail(code quic.StreamErrorCode, reason string) {
	e.mu.Lock()
	if e.state == StateFailed {
		e.mu.Unlock()
		return
	}
	old := e.state
	e.state = StateFailed
	e.logTransition(old, StateFailed)
	e.mu.Unlock()

	e.stream.CancelRead(code)
	e.stream.CancelWrite(code)

	logError(e.logger, e.connID, e.remote, log.LayerExchange, reason, ErrExchangeFailed)
}

// logTransition emits an exchange state change. Caller holds e.mu.
func (e *Exchange) logTransition(from, to ExchangeState) {
	if e.logger == nil {
		return
	}
	sid := int64(e.stream.StreamID())
	e.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: e.connID,
		StreamID:     &sid,
		Layer:        log.LayerExchange,
		Category:     log.CategoryState,
		RemoteAddr:   e.remote,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityExchange,
			OldState: from.String(),
			NewState: to.String(),
		},
	})
}

// logMessage emits a decoded request/response event.
func (e *Exchange) logMessage(direction log.Direction, payload *log.ExchangeEvent) {
	if e.logger == nil {
		return
	}
	sid := int64(e.stream.StreamID())
	e.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: e.connID,
		StreamID:     &sid,
		Direction:    direction,
		Layer:        log.LayerExchange,
		Category:     log.CategoryMessage,
		RemoteAddr:   e.remote,
		Exchange:     payload,
	})
}
