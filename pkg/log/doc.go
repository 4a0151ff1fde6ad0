// Package log provides structured protocol event logging for hquic.
//
// Events are captured at three layers:
//   - transport: connection lifecycle and handshake outcomes
//   - wire: frames as they cross a stream
//   - exchange: request/response state transitions
//
// Events are encoded as CBOR with integer keys for compactness, so
// long-running capture files stay small. The Logger interface decouples
// event production from consumption; FileLogger, SlogAdapter and
// MultiLogger cover the common sinks, and Reader iterates capture files
// for offline analysis.
package log
