package wire

import (
	"strconv"
	"strings"

	"github.com/valyala/bytebufferpool"

	"github.com/watt-toolkit/microhttp/internal/bufpool"
	"github.com/watt-toolkit/microhttp/pkg/microhttp/message"
)

var statusText = map[int]string{
	100: "Continue",
	200: "OK",
	201: "Created",
	204: "No Content",
	206: "Partial Content",
	301: "Moved Permanently",
	302: "Found",
	304: "Not Modified",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	411: "Length Required",
	413: "Payload Too Large",
	414: "URI Too Long",
	431: "Request Header Fields Too Large",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
}

// ReasonFor returns the standard reason phrase for a status code, or
// "Unknown" if none is registered.
func ReasonFor(status int) string {
	if r, ok := statusText[status]; ok {
		return r
	}
	return "Unknown"
}

// Serializer renders message.Response values to wire bytes. It never
// mutates the Response it's given: Content-Length and a default
// Connection header are computed into the output buffer only, leaving
// the caller-owned header slice untouched.
type Serializer struct{}

// NewSerializer returns a Serializer. It holds no state; a single value
// may be shared across connections.
func NewSerializer() *Serializer { return &Serializer{} }

// Serialize renders resp into a pooled ByteBuffer the caller must return
// to bufpool.Global (Put) once its bytes have been written to the
// connection. keepAlive controls the auto-added Connection header when
// the handler didn't set one explicitly.
func (s *Serializer) Serialize(resp *message.Response, keepAlive bool) *bytebufferpool.ByteBuffer {
	buf := bufpool.Global.Get()

	reason := resp.Reason
	if reason == "" {
		reason = ReasonFor(resp.Status)
	}

	buf.B = append(buf.B, HTTP11...)
	buf.B = append(buf.B, ' ')
	buf.B = strconv.AppendInt(buf.B, int64(resp.Status), 10)
	buf.B = append(buf.B, ' ')
	buf.B = append(buf.B, reason...)
	buf.B = append(buf.B, '\r', '\n')

	chunked := isChunked(resp.Headers)
	hasContentLength := resp.Headers.Has(HeaderContentLength)
	hasConnection := resp.Headers.Has(HeaderConnection)

	for _, h := range resp.Headers {
		buf.B = append(buf.B, h.Name...)
		buf.B = append(buf.B, ':', ' ')
		buf.B = append(buf.B, h.Value...)
		buf.B = append(buf.B, '\r', '\n')
	}

	// Content-Length is only auto-added when the response isn't already
	// framed by a chunked Transfer-Encoding.
	if !hasContentLength && !chunked {
		buf.B = append(buf.B, HeaderContentLength...)
		buf.B = append(buf.B, ':', ' ')
		buf.B = strconv.AppendInt(buf.B, int64(len(resp.Body)), 10)
		buf.B = append(buf.B, '\r', '\n')
	}
	// Connection: close is only auto-added when the request indicated
	// non-keepalive; a keep-alive response adds no Connection header at
	// all, since HTTP/1.1 already defaults to persistent connections.
	if !hasConnection && !keepAlive {
		buf.B = append(buf.B, HeaderConnection...)
		buf.B = append(buf.B, ':', ' ')
		buf.B = append(buf.B, ValueClose...)
		buf.B = append(buf.B, '\r', '\n')
	}

	buf.B = append(buf.B, '\r', '\n')

	if chunked {
		// A single chunk frames the whole body, followed by the
		// zero-length terminator chunk. No streaming of multiple
		// chunks — the body is already fully materialized.
		if len(resp.Body) > 0 {
			buf.B = strconv.AppendInt(buf.B, int64(len(resp.Body)), 16)
			buf.B = append(buf.B, '\r', '\n')
			buf.B = append(buf.B, resp.Body...)
			buf.B = append(buf.B, '\r', '\n')
		}
		buf.B = append(buf.B, '0', '\r', '\n', '\r', '\n')
	} else {
		buf.B = append(buf.B, resp.Body...)
	}

	return buf
}

// isChunked reports whether resp's headers carry a
// "Transfer-Encoding: chunked" entry, case-insensitively.
func isChunked(h message.Headers) bool {
	v, ok := h.Get(HeaderTransferEncoding)
	return ok && strings.EqualFold(v, ValueChunked)
}
