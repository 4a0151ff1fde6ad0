package wire

import (
	"errors"
	"fmt"
	"strings"
)

// Message validation errors.
var (
	ErrInvalidMethod = errors.New("invalid request method")
	ErrInvalidTarget = errors.New("invalid request target")
	ErrInvalidStatus = errors.New("invalid response status")
)

// Field is a single header field. Names are case-insensitive on input
// and normalized to lower case on the wire.
type Field struct {
	Name  string
	Value string
}

// Header is an ordered list of header fields. Order is preserved through
// encoding and decoding.
type Header []Field

// Add appends a field to the header list.
func (h *Header) Add(name, value string) {
	*h = append(*h, Field{Name: strings.ToLower(name), Value: value})
}

// Get returns the value of the first field with the given name.
func (h Header) Get(name string) (string, bool) {
	name = strings.ToLower(name)
	for _, f := range h {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Request is the metadata of one request: what the peer is asked to do.
// It carries no body; body bytes travel separately as DATA frames.
type Request struct {
	// Method is the request method (e.g. "GET").
	Method string

	// Target is the request target path (e.g. "/health").
	Target string

	// Scheme is the URI scheme; defaults to "https" when empty.
	Scheme string

	// Authority is the host the request is addressed to.
	Authority string

	// Header holds the regular (non-pseudo) header fields.
	Header Header
}

// NewRequest builds a request with the given method and target.
func NewRequest(method, target string) *Request {
	return &Request{Method: method, Target: target}
}

// Validate checks the request metadata for structural problems.
func (r *Request) Validate() error {
	if r.Method == "" || strings.ContainsAny(r.Method, " \t") {
		return fmt.Errorf("%w: %q", ErrInvalidMethod, r.Method)
	}
	if r.Target == "" {
		return ErrInvalidTarget
	}
	return nil
}

// Response is the metadata of one response.
type Response struct {
	// Status is the response status code.
	Status int

	// Header holds the regular (non-pseudo) header fields.
	Header Header
}

// NewResponse builds a response with the given status code.
func NewResponse(status int) *Response {
	return &Response{Status: status}
}

// Validate checks the response metadata for structural problems.
func (r *Response) Validate() error {
	if r.Status < 100 || r.Status > 599 {
		return fmt.Errorf("%w: %d", ErrInvalidStatus, r.Status)
	}
	return nil
}
