package transport

import (
	"errors"
	"testing"

	"github.com/quic-go/quic-go"
)

func TestExchangeStateString(t *testing.T) {
	tests := []struct {
		state ExchangeState
		want  string
	}{
		{StateAwaitingRequest, "AWAITING_REQUEST"},
		{StateRequestReceived, "REQUEST_RECEIVED"},
		{StateResponseSent, "RESPONSE_SENT"},
		{StateBodySent, "BODY_SENT"},
		{StateFinished, "FINISHED"},
		{StateFailed, "FAILED"},
		{ExchangeState(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("ExchangeState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestExchangeStateTransitions(t *testing.T) {
	tests := []struct {
		name string
		from ExchangeState
		to   ExchangeState
		ok   bool
	}{
		{"awaiting to received", StateAwaitingRequest, StateRequestReceived, true},
		{"received to response sent", StateRequestReceived, StateResponseSent, true},
		{"response sent to body sent", StateResponseSent, StateBodySent, true},
		{"response sent to finished", StateResponseSent, StateFinished, true},
		{"body sent to body sent", StateBodySent, StateBodySent, true},
		{"body sent to finished", StateBodySent, StateFinished, true},

		{"awaiting to response sent", StateAwaitingRequest, StateResponseSent, false},
		{"received to body sent", StateRequestReceived, StateBodySent, false},
		{"received to finished", StateRequestReceived, StateFinished, false},
		{"finished to response sent", StateFinished, StateResponseSent, false},
		{"finished to finished", StateFinished, StateFinished, false},
		{"backwards", StateResponseSent, StateRequestReceived, false},

		{"awaiting to failed", StateAwaitingRequest, StateFailed, true},
		{"received to failed", StateRequestReceived, StateFailed, true},
		{"body sent to failed", StateBodySent, StateFailed, true},
		{"finished to failed", StateFinished, StateFailed, true},
		{"failed is absorbing", StateFailed, StateFailed, false},
		{"no recovery from failed", StateFailed, StateResponseSent, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.canTransition(tt.to); got != tt.ok {
				t.Errorf("canTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.ok)
			}
		})
	}
}

func TestConnectionStateString(t *testing.T) {
	tests := []struct {
		state ConnectionState
		want  string
	}{
		{StateHandshaking, "HANDSHAKING"},
		{StateEstablished, "ESTABLISHED"},
		{StateClosing, "CLOSING"},
		{StateClosed, "CLOSED"},
		{ConnectionState(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("ConnectionState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestIsGracefulClose(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "application no error",
			err:  &quic.ApplicationError{ErrorCode: errorCodeNoError},
			want: true,
		},
		{
			name: "application internal error",
			err:  &quic.ApplicationError{ErrorCode: errorCodeInternalError},
			want: false,
		},
		{
			name: "idle timeout",
			err:  &quic.IdleTimeoutError{},
			want: true,
		},
		{
			name: "plain error",
			err:  errors.New("network unreachable"),
			want: false,
		},
		{
			name: "nil",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isGracefulClose(tt.err); got != tt.want {
				t.Errorf("isGracefulClose(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
