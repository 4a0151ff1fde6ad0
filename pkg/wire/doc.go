// Package wire implements the hquic wire format carried on each stream.
//
// A stream carries a sequence of frames, each a varint type code, a
// varint payload length, and the payload:
//
//	┌──────────────┬────────────────┬───────────┐
//	│ Type (varint)│ Length (varint)│  Payload  │
//	└──────────────┴────────────────┴───────────┘
//
// Request and response metadata travel in HEADERS frames as QPACK-encoded
// header blocks; body bytes travel in DATA frames. Metadata is always a
// complete frame of its own, so a receiver can decode it in full before
// any body bytes arrive. The end of a body is signalled by the stream's
// write-side close, not by a length field.
//
// Unknown frame types are skipped, as HTTP/3 requires.
package wire
