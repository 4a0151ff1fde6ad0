package log

import (
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileLogger appends protocol events to an .hqlog capture file.
//
// A capture file is a plain sequence of self-delimiting CBOR records,
// one per event, with no framing or trailer. Reader and the hquic-log
// command consume the format.
type FileLogger struct {
	file    *os.File
	encoder *cbor.Encoder
	mu      sync.Mutex
	closed  bool
}

// NewFileLogger opens the capture file at path, creating it with mode
// 0644 when absent. An existing capture is appended to, so a restarted
// server keeps extending the same file. The .hqlog extension is a
// convention, not a requirement.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &FileLogger{
		file:    f,
		encoder: NewEncoder(f),
	}, nil
}

// Path returns the location of the capture file.
func (l *FileLogger) Path() string {
	return l.file.Name()
}

// Log appends one event record to the capture.
// Safe for concurrent use.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	// Encoding errors are dropped; a capture must not stall the
	// traffic it observes
	_ = l.encoder.Encode(event)
}

// Close flushes the capture to disk and closes the file. Close is
// idempotent, and Log calls after Close are silently ignored.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	l.closed = true
	syncErr := l.file.Sync()
	if err := l.file.Close(); err != nil {
		return err
	}
	return syncErr
}

// Compile-time interface satisfaction check.
var _ Logger = (*FileLogger)(nil)
