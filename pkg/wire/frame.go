package wire

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/quic-go/quic-go/quicvarint"

	"github.com/hquic-project/hquic-go/pkg/log"
)

// FrameType identifies a frame on the wire.
type FrameType uint64

// Frame types.
const (
	// FrameTypeData carries body bytes.
	FrameTypeData FrameType = 0x0

	// FrameTypeHeaders carries a QPACK-encoded header block.
	FrameTypeHeaders FrameType = 0x1
)

// String returns the frame type name.
func (t FrameType) String() string {
	switch t {
	case FrameTypeData:
		return "DATA"
	case FrameTypeHeaders:
		return "HEADERS"
	default:
		return fmt.Sprintf("UNKNOWN(0x%x)", uint64(t))
	}
}

// Framing constants.
const (
	// DefaultMaxFrameSize is the default maximum frame payload size (1 MB).
	DefaultMaxFrameSize = 1 << 20

	// MaxLogFrameDataSize is the maximum frame payload to include in log
	// events. Larger payloads are truncated to avoid excessive memory usage.
	MaxLogFrameDataSize = 4096
)

// Framing errors.
var (
	// ErrFrameTooLarge indicates a frame payload exceeds the maximum size.
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrUnexpectedFrame indicates a frame type that is invalid in the
	// current position of the stream.
	ErrUnexpectedFrame = errors.New("unexpected frame type")

	// ErrFrameTruncated indicates the stream ended mid-frame.
	ErrFrameTruncated = errors.New("frame truncated")
)

// FrameWriter writes frames to an underlying stream writer.
type FrameWriter struct {
	w            io.Writer
	maxFrameSize uint64
	mu           sync.Mutex

	// Logging support (optional)
	logger   log.Logger
	connID   string
	streamID int64
}

// NewFrameWriter creates a new frame writer.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{
		w:            w,
		maxFrameSize: DefaultMaxFrameSize,
	}
}

// SetLogger configures logging for this writer.
// Pass nil to disable logging.
func (fw *FrameWriter) SetLogger(logger log.Logger, connID string, streamID int64) {
	fw.logger = logger
	fw.connID = connID
	fw.streamID = streamID
}

// WriteHeaders writes a HEADERS frame carrying the given header block.
func (fw *FrameWriter) WriteHeaders(block []byte) error {
	return fw.writeFrame(FrameTypeHeaders, block)
}

// WriteData writes a DATA frame carrying the given body bytes.
// Callers may issue any number of DATA frames; each call produces one frame.
func (fw *FrameWriter) WriteData(p []byte) error {
	return fw.writeFrame(FrameTypeData, p)
}

// writeFrame writes one frame. Thread-safe.
func (fw *FrameWriter) writeFrame(t FrameType, payload []byte) error {
	if uint64(len(payload)) > fw.maxFrameSize {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(payload), fw.maxFrameSize)
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	buf := make([]byte, 0, 16+len(payload))
	buf = quicvarint.Append(buf, uint64(t))
	buf = quicvarint.Append(buf, uint64(len(payload)))
	buf = append(buf, payload...)

	if _, err := fw.w.Write(buf); err != nil {
		return fmt.Errorf("failed to write %s frame: %w", t, err)
	}

	if fw.logger != nil {
		fw.logger.Log(fw.makeFrameEvent(t, payload, log.DirectionOut))
	}
	return nil
}

// makeFrameEvent creates a log event for a frame.
func (fw *FrameWriter) makeFrameEvent(t FrameType, payload []byte, direction log.Direction) log.Event {
	return makeFrameEvent(fw.connID, fw.streamID, t, payload, direction)
}

// Frame is one decoded frame.
type Frame struct {
	Type    FrameType
	Payload []byte
}

// FrameReader reads frames from an underlying stream reader.
type FrameReader struct {
	r            quicvarint.Reader
	maxFrameSize uint64

	// Logging support (optional)
	logger   log.Logger
	connID   string
	streamID int64
}

// NewFrameReader creates a new frame reader.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{
		r:            quicvarint.NewReader(r),
		maxFrameSize: DefaultMaxFrameSize,
	}
}

// SetLogger configures logging for this reader.
// Pass nil to disable logging.
func (fr *FrameReader) SetLogger(logger log.Logger, connID string, streamID int64) {
	fr.logger = logger
	fr.connID = connID
	fr.streamID = streamID
}

// ReadFrame reads the next HEADERS or DATA frame, skipping frames of
// unknown type. Returns io.EOF once the peer has finished its write side
// and all frames have been consumed.
func (fr *FrameReader) ReadFrame() (*Frame, error) {
	for {
		t, err := fr.readVarint(true)
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, err
		}

		length, err := fr.readVarint(false)
		if err != nil {
			return nil, err
		}
		if length > fr.maxFrameSize {
			return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, fr.maxFrameSize)
		}

		payload := make([]byte, length)
		if _, err := io.ReadFull(fr.r, payload); err != nil {
			return nil, frameReadErr(err)
		}

		ft := FrameType(t)
		switch ft {
		case FrameTypeHeaders, FrameTypeData:
			if fr.logger != nil {
				fr.logger.Log(makeFrameEvent(fr.connID, fr.streamID, ft, payload, log.DirectionIn))
			}
			return &Frame{Type: ft, Payload: payload}, nil
		default:
			// Unknown frame types are skipped
			continue
		}
	}
}

// ReadHeaders reads frames until a HEADERS frame arrives and returns its
// header block. A DATA frame in this position is a protocol violation.
func (fr *FrameReader) ReadHeaders() ([]byte, error) {
	f, err := fr.ReadFrame()
	if err != nil {
		return nil, err
	}
	if f.Type != FrameTypeHeaders {
		return nil, fmt.Errorf("%w: got %s, want HEADERS", ErrUnexpectedFrame, f.Type)
	}
	return f.Payload, nil
}

// ReadData reads frames until a DATA frame arrives and returns its
// payload. Returns io.EOF once the stream is finished. A HEADERS frame
// in this position is a protocol violation (trailers are not supported).
func (fr *FrameReader) ReadData() ([]byte, error) {
	f, err := fr.ReadFrame()
	if err != nil {
		return nil, err
	}
	if f.Type != FrameTypeData {
		return nil, fmt.Errorf("%w: got %s, want DATA", ErrUnexpectedFrame, f.Type)
	}
	return f.Payload, nil
}

// readVarint reads one varint. An EOF before the first byte is a clean
// end of stream only at a frame boundary; running out of bytes anywhere
// else, including inside a multi-byte varint, is truncation.
func (fr *FrameReader) readVarint(frameStart bool) (uint64, error) {
	b, err := fr.r.ReadByte()
	if err != nil {
		if err == io.EOF && frameStart {
			return 0, io.EOF
		}
		return 0, frameReadErr(err)
	}

	// The two high bits of the first byte give the varint width
	buf := make([]byte, 1<<(b>>6))
	buf[0] = b
	if len(buf) > 1 {
		if _, err := io.ReadFull(fr.r, buf[1:]); err != nil {
			return 0, frameReadErr(err)
		}
	}

	v, _, err := quicvarint.Parse(buf)
	if err != nil {
		return 0, fmt.Errorf("failed to parse varint: %w", err)
	}
	return v, nil
}

// frameReadErr maps an EOF inside a frame to ErrFrameTruncated.
func frameReadErr(err error) error {
	if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrFrameTruncated
	}
	return fmt.Errorf("failed to read frame: %w", err)
}

// makeFrameEvent creates a log event for a frame crossing a stream.
func makeFrameEvent(connID string, streamID int64, t FrameType, payload []byte, direction log.Direction) log.Event {
	data := payload
	truncated := false
	if len(payload) > MaxLogFrameDataSize {
		data = payload[:MaxLogFrameDataSize]
		truncated = true
	}

	sid := streamID
	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		StreamID:     &sid,
		Direction:    direction,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		Frame: &log.FrameEvent{
			Type:      uint64(t),
			Size:      len(payload),
			Data:      data,
			Truncated: truncated,
		},
	}
}
