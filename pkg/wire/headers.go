package wire

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/quic-go/qpack"
)

// Header block errors.
var (
	// ErrMalformedHeaders indicates a header block that failed to decode
	// or violates the pseudo-header rules.
	ErrMalformedHeaders = errors.New("malformed header block")

	// ErrMissingPseudoHeader indicates a required pseudo-header is absent.
	ErrMissingPseudoHeader = errors.New("missing pseudo-header")
)

// DefaultScheme is used when a request does not set one.
const DefaultScheme = "https"

// EncodeRequestHeaders encodes request metadata into a QPACK header block.
// Pseudo-headers precede the regular fields, as the wire format requires.
func EncodeRequestHeaders(req *Request) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	scheme := req.Scheme
	if scheme == "" {
		scheme = DefaultScheme
	}

	var buf bytes.Buffer
	enc := qpack.NewEncoder(&buf)

	fields := []qpack.HeaderField{
		{Name: ":method", Value: req.Method},
		{Name: ":path", Value: req.Target},
		{Name: ":scheme", Value: scheme},
	}
	if req.Authority != "" {
		fields = append(fields, qpack.HeaderField{Name: ":authority", Value: req.Authority})
	}
	for _, f := range req.Header {
		fields = append(fields, qpack.HeaderField{Name: strings.ToLower(f.Name), Value: f.Value})
	}

	for _, f := range fields {
		if err := enc.WriteField(f); err != nil {
			return nil, fmt.Errorf("failed to encode header field %q: %w", f.Name, err)
		}
	}
	return buf.Bytes(), nil
}

// DecodeRequestHeaders decodes a QPACK header block into request metadata.
func DecodeRequestHeaders(block []byte) (*Request, error) {
	fields, err := decodeBlock(block)
	if err != nil {
		return nil, err
	}

	req := &Request{}
	for _, f := range fields {
		switch f.Name {
		case ":method":
			req.Method = f.Value
		case ":path":
			req.Target = f.Value
		case ":scheme":
			req.Scheme = f.Value
		case ":authority":
			req.Authority = f.Value
		default:
			if strings.HasPrefix(f.Name, ":") {
				return nil, fmt.Errorf("%w: unknown pseudo-header %q", ErrMalformedHeaders, f.Name)
			}
			req.Header = append(req.Header, Field(f))
		}
	}

	if req.Method == "" {
		return nil, fmt.Errorf("%w: :method", ErrMissingPseudoHeader)
	}
	if req.Target == "" {
		return nil, fmt.Errorf("%w: :path", ErrMissingPseudoHeader)
	}
	return req, nil
}

// EncodeResponseHeaders encodes response metadata into a QPACK header block.
func EncodeResponseHeaders(resp *Response) ([]byte, error) {
	if err := resp.Validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := qpack.NewEncoder(&buf)

	if err := enc.WriteField(qpack.HeaderField{Name: ":status", Value: strconv.Itoa(resp.Status)}); err != nil {
		return nil, fmt.Errorf("failed to encode status: %w", err)
	}
	for _, f := range resp.Header {
		hf := qpack.HeaderField{Name: strings.ToLower(f.Name), Value: f.Value}
		if err := enc.WriteField(hf); err != nil {
			return nil, fmt.Errorf("failed to encode header field %q: %w", f.Name, err)
		}
	}
	return buf.Bytes(), nil
}

// DecodeResponseHeaders decodes a QPACK header block into response metadata.
func DecodeResponseHeaders(block []byte) (*Response, error) {
	fields, err := decodeBlock(block)
	if err != nil {
		return nil, err
	}

	resp := &Response{}
	for _, f := range fields {
		switch {
		case f.Name == ":status":
			status, err := strconv.Atoi(f.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: non-numeric :status %q", ErrMalformedHeaders, f.Value)
			}
			resp.Status = status
		case strings.HasPrefix(f.Name, ":"):
			return nil, fmt.Errorf("%w: unknown pseudo-header %q", ErrMalformedHeaders, f.Name)
		default:
			resp.Header = append(resp.Header, Field(f))
		}
	}

	if resp.Status == 0 {
		return nil, fmt.Errorf("%w: :status", ErrMissingPseudoHeader)
	}
	return resp, nil
}

// decodeBlock decodes a QPACK block and enforces pseudo-header ordering:
// pseudo-headers must precede all regular fields.
func decodeBlock(block []byte) ([]qpack.HeaderField, error) {
	dec := qpack.NewDecoder(nil)
	fields, err := dec.DecodeFull(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHeaders, err)
	}

	seenRegular := false
	for _, f := range fields {
		if strings.HasPrefix(f.Name, ":") {
			if seenRegular {
				return nil, fmt.Errorf("%w: pseudo-header %q after regular fields", ErrMalformedHeaders, f.Name)
			}
		} else {
			seenRegular = true
		}
	}
	return fields, nil
}
