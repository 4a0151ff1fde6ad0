package transport

import (
	"errors"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/hquic-project/hquic-go/pkg/log"
)

// ConnectionState tracks one connection's lifecycle.
type ConnectionState int32

const (
	// StateHandshaking indicates the secure handshake is in progress.
	StateHandshaking ConnectionState = iota

	// StateEstablished indicates handshake and protocol negotiation
	// both succeeded.
	StateEstablished

	// StateClosing indicates graceful close in progress.
	StateClosing

	// StateClosed indicates the connection is gone.
	StateClosed
)

// String returns the connection state name.
func (s ConnectionState) String() string {
	switch s {
	case StateHandshaking:
		return "HANDSHAKING"
	case StateEstablished:
		return "ESTABLISHED"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Connection errors.
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrServerClosed     = errors.New("server closed")
)

// Application error codes carried in QUIC CONNECTION_CLOSE and
// RESET_STREAM frames, matching the HTTP/3 registry so captures read
// naturally in standard tooling.
const (
	errorCodeNoError       quic.ApplicationErrorCode = 0x100
	errorCodeInternalError quic.ApplicationErrorCode = 0x102

	streamErrorInternal         quic.StreamErrorCode = 0x102
	streamErrorRequestCancelled quic.StreamErrorCode = 0x10c
	streamErrorMessageError     quic.StreamErrorCode = 0x10e
)

// isGracefulClose reports whether err is an orderly connection end
// rather than a connection-level fault: our own close, the peer's
// clean close, or an idle timeout after quiescence.
func isGracefulClose(err error) bool {
	var appErr *quic.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.ErrorCode == errorCodeNoError
	}
	var idleErr *quic.IdleTimeoutError
	return errors.As(err, &idleErr)
}

// logStateChange emits a connection state transition event.
func logStateChange(logger log.Logger, connID, remoteAddr string, role log.Role, from, to ConnectionState, reason string) {
	if logger == nil {
		return
	}
	logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		LocalRole:    role,
		RemoteAddr:   remoteAddr,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: from.String(),
			NewState: to.String(),
			Reason:   reason,
		},
	})
}

// logError emits an error event.
func logError(logger log.Logger, connID, remoteAddr string, layer log.Layer, context string, err error) {
	if logger == nil {
		return
	}
	logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Layer:        layer,
		Category:     log.CategoryError,
		RemoteAddr:   remoteAddr,
		Error: &log.ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Context: context,
		},
	})
}
