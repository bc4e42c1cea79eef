package wire

import (
	"strings"
	"testing"

	"github.com/watt-toolkit/microhttp/pkg/microhttp/message"
)

func TestSerializer_AutoContentLength(t *testing.T) {
	s := NewSerializer()
	resp := message.NewResponse(200, "", nil, []byte("hello"))
	buf := s.Serialize(resp, true)

	out := string(buf.B)
	if !strings.Contains(out, "Content-Length: 5\r\n") {
		t.Errorf("expected auto Content-Length, got %q", out)
	}
}

func TestSerializer_AutoConnectionHeader(t *testing.T) {
	s := NewSerializer()

	keepAlive := s.Serialize(message.NewResponse(200, "", nil, nil), true)
	if strings.Contains(string(keepAlive.B), "Connection:") {
		t.Errorf("keep-alive response must not carry an auto-added Connection header, got %q", keepAlive.B)
	}

	closeConn := s.Serialize(message.NewResponse(200, "", nil, nil), false)
	if !strings.Contains(string(closeConn.B), "Connection: close\r\n") {
		t.Errorf("expected Connection: close, got %q", closeConn.B)
	}
}

func TestSerializer_PreservesCallerHeadersVerbatim(t *testing.T) {
	s := NewSerializer()
	resp := message.NewResponse(200, "", message.Headers{
		{Name: "Content-Type", Value: "application/json"},
		{Name: "X-Custom", Value: "yes"},
	}, []byte("{}"))
	out := string(s.Serialize(resp, true).B)

	if !strings.Contains(out, "Content-Type: application/json\r\n") {
		t.Errorf("missing caller header, got %q", out)
	}
	if !strings.Contains(out, "X-Custom: yes\r\n") {
		t.Errorf("missing caller header, got %q", out)
	}
}

func TestSerializer_DoesNotAddDuplicateWhenCallerSetHeader(t *testing.T) {
	s := NewSerializer()
	resp := message.NewResponse(200, "", message.Headers{
		{Name: "Content-Length", Value: "999"},
		{Name: "Connection", Value: "close"},
	}, []byte("hi"))
	out := string(s.Serialize(resp, true).B)

	if strings.Count(out, "Content-Length:") != 1 {
		t.Errorf("expected exactly one Content-Length, got %q", out)
	}
	if !strings.Contains(out, "Content-Length: 999\r\n") {
		t.Errorf("expected caller's Content-Length to be kept verbatim, got %q", out)
	}
	if strings.Count(out, "Connection:") != 1 {
		t.Errorf("expected exactly one Connection header, got %q", out)
	}
}

func TestSerializer_DefaultReasonPhrase(t *testing.T) {
	s := NewSerializer()
	out := string(s.Serialize(message.NewResponse(404, "", nil, nil), true).B)
	if !strings.HasPrefix(out, "HTTP/1.1 404 Not Found\r\n") {
		t.Errorf("got %q", out)
	}
}

func TestSerializer_CustomReasonPhraseHonored(t *testing.T) {
	s := NewSerializer()
	out := string(s.Serialize(message.NewResponse(200, "Superb", nil, nil), true).B)
	if !strings.HasPrefix(out, "HTTP/1.1 200 Superb\r\n") {
		t.Errorf("got %q", out)
	}
}

func TestSerializer_ChunkedFraming(t *testing.T) {
	s := NewSerializer()
	resp := message.NewResponse(200, "", message.Headers{
		{Name: "Transfer-Encoding", Value: "chunked"},
	}, []byte("hello world"))
	out := string(s.Serialize(resp, true).B)

	if strings.Contains(out, "Content-Length:") {
		t.Errorf("chunked response must not carry Content-Length, got %q", out)
	}
	if !strings.Contains(out, "\r\n\r\nb\r\nhello world\r\n0\r\n\r\n") {
		t.Errorf("expected single-chunk framing with terminator, got %q", out)
	}
}

func TestSerializer_ChunkedEmptyBody(t *testing.T) {
	s := NewSerializer()
	resp := message.NewResponse(204, "", message.Headers{
		{Name: "Transfer-Encoding", Value: "chunked"},
	}, nil)
	out := string(s.Serialize(resp, true).B)

	if !strings.HasSuffix(out, "0\r\n\r\n") {
		t.Errorf("expected terminator-only framing for empty chunked body, got %q", out)
	}
}

func TestSerializer_DoesNotMutateInputResponse(t *testing.T) {
	s := NewSerializer()
	resp := message.NewResponse(200, "", message.Headers{{Name: "X-A", Value: "1"}}, []byte("x"))
	before := len(resp.Headers)

	s.Serialize(resp, true)

	if len(resp.Headers) != before {
		t.Errorf("Serialize mutated the input Response's Headers slice: before=%d after=%d", before, len(resp.Headers))
	}
	if resp.Headers.Has(HeaderContentLength) {
		t.Errorf("Serialize must not add Content-Length to the caller's Response")
	}
}
