// Package transport provides the hquic connection and exchange layer.
//
// The transport layer handles:
//   - QUIC connections with TLS 1.3 and ALPN protocol negotiation
//   - Connection lifecycle supervision (accept loop, per-connection task)
//   - One request/response exchange per bidirectional stream
//   - Exchange state management
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│  Request/Response Exchanges    │
//	├────────────────────────────────┤
//	│  HEADERS/DATA Frames (QPACK)   │
//	├────────────────────────────────┤
//	│  QUIC Streams (quic-go)        │
//	├────────────────────────────────┤
//	│  TLS 1.3 Handshake + ALPN      │
//	├────────────────────────────────┤
//	│  UDP                           │
//	└────────────────────────────────┘
//
// # Concurrency Model
//
// Each accepted connection runs in its own goroutine; each accepted
// stream runs its exchange in a nested goroutine. A connection's state
// is owned exclusively by its supervising goroutine, and an exchange
// owns its stream handle for writes. Loss and failure are isolated per
// stream by QUIC itself, so a failed exchange never disturbs its
// siblings.
//
// # Handshake Failures
//
// The QUIC engine completes handshakes before an accepted connection is
// surfaced, and discards failed attempts without notifying the peer of
// details. Post-accept verification failures (an ALPN value outside the
// configured set) are logged, the connection is closed, and the accept
// loop continues.
package transport
