package wire

import (
	"errors"
	"testing"
)

func TestRequestHeadersRoundTrip(t *testing.T) {
	req := NewRequest("GET", "/health")
	req.Authority = "localhost"
	req.Header.Add("Accept", "text/plain")
	req.Header.Add("x-trace-id", "abc123")

	block, err := EncodeRequestHeaders(req)
	if err != nil {
		t.Fatalf("EncodeRequestHeaders() error = %v", err)
	}

	decoded, err := DecodeRequestHeaders(block)
	if err != nil {
		t.Fatalf("DecodeRequestHeaders() error = %v", err)
	}

	if decoded.Method != "GET" {
		t.Errorf("Method = %q, want GET", decoded.Method)
	}
	if decoded.Target != "/health" {
		t.Errorf("Target = %q, want /health", decoded.Target)
	}
	if decoded.Scheme != DefaultScheme {
		t.Errorf("Scheme = %q, want %q", decoded.Scheme, DefaultScheme)
	}
	if decoded.Authority != "localhost" {
		t.Errorf("Authority = %q, want localhost", decoded.Authority)
	}

	// Field names are normalized to lower case; order is preserved
	want := Header{
		{Name: "accept", Value: "text/plain"},
		{Name: "x-trace-id", Value: "abc123"},
	}
	if len(decoded.Header) != len(want) {
		t.Fatalf("decoded %d fields, want %d", len(decoded.Header), len(want))
	}
	for i, f := range want {
		if decoded.Header[i] != f {
			t.Errorf("field %d = %+v, want %+v", i, decoded.Header[i], f)
		}
	}
}

func TestResponseHeadersRoundTrip(t *testing.T) {
	resp := NewResponse(200)
	resp.Header.Add("Content-Type", "text/plain")

	block, err := EncodeResponseHeaders(resp)
	if err != nil {
		t.Fatalf("EncodeResponseHeaders() error = %v", err)
	}

	decoded, err := DecodeResponseHeaders(block)
	if err != nil {
		t.Fatalf("DecodeResponseHeaders() error = %v", err)
	}

	if decoded.Status != 200 {
		t.Errorf("Status = %d, want 200", decoded.Status)
	}
	ct, ok := decoded.Header.Get("content-type")
	if !ok || ct != "text/plain" {
		t.Errorf("content-type = %q (present=%v), want text/plain", ct, ok)
	}
}

func TestEncodeRequestHeadersInvalid(t *testing.T) {
	tests := []struct {
		name    string
		req     *Request
		wantErr error
	}{
		{"empty method", &Request{Target: "/"}, ErrInvalidMethod},
		{"method with space", &Request{Method: "GE T", Target: "/"}, ErrInvalidMethod},
		{"empty target", &Request{Method: "GET"}, ErrInvalidTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeRequestHeaders(tt.req); !errors.Is(err, tt.wantErr) {
				t.Errorf("EncodeRequestHeaders() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncodeResponseHeadersInvalidStatus(t *testing.T) {
	for _, status := range []int{0, 99, 600, -1} {
		if _, err := EncodeResponseHeaders(NewResponse(status)); !errors.Is(err, ErrInvalidStatus) {
			t.Errorf("status %d: error = %v, want ErrInvalidStatus", status, err)
		}
	}
}

func TestDecodeRequestHeadersMalformed(t *testing.T) {
	if _, err := DecodeRequestHeaders([]byte{0xde, 0xad, 0xbe, 0xef, 0x01}); !errors.Is(err, ErrMalformedHeaders) {
		t.Errorf("DecodeRequestHeaders() error = %v, want ErrMalformedHeaders", err)
	}
}

func TestDecodeRequestHeadersMissingPseudo(t *testing.T) {
	// A response block has no :method/:path
	block, err := EncodeResponseHeaders(NewResponse(200))
	if err != nil {
		t.Fatalf("EncodeResponseHeaders() error = %v", err)
	}

	if _, err := DecodeRequestHeaders(block); !errors.Is(err, ErrMalformedHeaders) && !errors.Is(err, ErrMissingPseudoHeader) {
		t.Errorf("DecodeRequestHeaders() error = %v, want pseudo-header error", err)
	}
}

func TestDecodeResponseHeadersMissingStatus(t *testing.T) {
	block, err := EncodeRequestHeaders(NewRequest("GET", "/"))
	if err != nil {
		t.Fatalf("EncodeRequestHeaders() error = %v", err)
	}

	if _, err := DecodeResponseHeaders(block); err == nil {
		t.Error("DecodeResponseHeaders() should reject a request block")
	}
}

func TestHeaderGet(t *testing.T) {
	var h Header
	h.Add("Content-Type", "text/plain")

	if v, ok := h.Get("CONTENT-TYPE"); !ok || v != "text/plain" {
		t.Errorf("Get() = %q, %v; want text/plain, true", v, ok)
	}
	if _, ok := h.Get("missing"); ok {
		t.Error("Get() of missing field should report absence")
	}
}
