// Package message defines the plain value records passed across the
// handler boundary: Header, Request and Response. None of them hold a
// reference to the connection or the wire buffers they were parsed from
// or will be serialized into — once a Request reaches a Handler its
// bytes have already been copied out of the connection's read buffer.
package message

import "strings"

// Header is a single (name, value) pair. Name comparison for lookup is
// case-insensitive per RFC 7230, but the original casing is preserved for
// serialization.
type Header struct {
	Name  string
	Value string
}

// Headers is an ordered list of Header values. Order is preserved on the
// wire; headers the serializer adds on its own (Content-Length,
// Connection: close) are written after them.
type Headers []Header

// Get returns the value of the first header matching name
// case-insensitively, and whether it was found.
func (h Headers) Get(name string) (string, bool) {
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			return hdr.Value, true
		}
	}
	return "", false
}

// Has reports whether a header with the given name is present.
func (h Headers) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// GetAll returns the values of every header matching name
// case-insensitively, in order.
func (h Headers) GetAll(name string) []string {
	var out []string
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			out = append(out, hdr.Value)
		}
	}
	return out
}

// Add appends a header, regardless of whether one by that name already
// exists.
func (h *Headers) Add(name, value string) {
	*h = append(*h, Header{Name: name, Value: value})
}

// Request is an immutable HTTP request handed to a Handler. Method and
// URI are stored verbatim — the core never interprets the target beyond
// splitting the request line.
type Request struct {
	// Version is "HTTP/1.0" or "HTTP/1.1".
	Version string

	// Method is the request-line method token, stored verbatim.
	Method string

	// URI is the request-line target, stored verbatim (opaque to the core).
	URI string

	// Headers includes any chunk trailers, appended in arrival order
	// after the fixed headers.
	Headers Headers

	// Body is the fully materialized request body. Never nil; zero length
	// when the request carried none.
	Body []byte

	// KeepAlive reports the connection's computed keep-alive decision for
	// this request (HTTP/1.1 defaults true, HTTP/1.0 defaults false,
	// overridden by an explicit Connection header).
	KeepAlive bool
}

// Header returns the first value for name, or "" if absent.
func (r *Request) Header(name string) string {
	v, _ := r.Headers.Get(name)
	return v
}

// Response is the value a Handler produces for a Request. The
// serializer never mutates the Response it's given; any auto-added
// headers (Content-Length, Connection: close) are computed into the
// wire output without touching this struct.
type Response struct {
	// Status is the HTTP status code, 100-599.
	Status int

	// Reason is the status line's reason phrase. If empty, the
	// serializer fills in a standard reason for well-known codes.
	Reason string

	// Headers is the header list to emit, in order.
	Headers Headers

	// Body is the fully materialized response body.
	Body []byte
}

// NewResponse is a small convenience constructor mirroring the shape
// handlers most commonly build.
func NewResponse(status int, reason string, headers Headers, body []byte) *Response {
	return &Response{Status: status, Reason: reason, Headers: headers, Body: body}
}
