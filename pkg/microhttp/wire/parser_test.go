package wire

import (
	"bytes"
	"testing"
)

func TestParser_MinimalGet(t *testing.T) {
	tok := NewByteTokenizer(4096)
	p := NewParser(tok, 128, 2048)
	if err := tok.Append([]byte("GET /hello HTTP/1.1\r\nHost: example.com\r\n\r\n")); err != nil {
		t.Fatalf("append: %v", err)
	}
	req, err := p.Feed()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req == nil {
		t.Fatalf("expected a complete request")
	}
	if req.Method != "GET" || req.URI != "/hello" || req.Version != HTTP11 {
		t.Errorf("got %+v", req)
	}
	if !req.KeepAlive {
		t.Errorf("HTTP/1.1 with no Connection header should default keep-alive")
	}
	if len(req.Body) != 0 {
		t.Errorf("expected empty body, got %q", req.Body)
	}
}

func TestParser_HTTP10DefaultsToClose(t *testing.T) {
	tok := NewByteTokenizer(4096)
	p := NewParser(tok, 128, 2048)
	tok.Append([]byte("GET / HTTP/1.0\r\n\r\n"))
	req, err := p.Feed()
	if err != nil || req == nil {
		t.Fatalf("req=%v err=%v", req, err)
	}
	if req.KeepAlive {
		t.Errorf("HTTP/1.0 with no Connection header should default to close")
	}
}

func TestParser_HTTP10ExplicitKeepAlive(t *testing.T) {
	tok := NewByteTokenizer(4096)
	p := NewParser(tok, 128, 2048)
	tok.Append([]byte("GET / HTTP/1.0\r\nConnection: keep-alive\r\n\r\n"))
	req, err := p.Feed()
	if err != nil || req == nil {
		t.Fatalf("req=%v err=%v", req, err)
	}
	if !req.KeepAlive {
		t.Errorf("explicit keep-alive on HTTP/1.0 should be honored")
	}
}

func TestParser_HTTP11ConnectionClose(t *testing.T) {
	tok := NewByteTokenizer(4096)
	p := NewParser(tok, 128, 2048)
	tok.Append([]byte("GET / HTTP/1.1\r\nConnection: close\r\n\r\n"))
	req, err := p.Feed()
	if err != nil || req == nil {
		t.Fatalf("req=%v err=%v", req, err)
	}
	if req.KeepAlive {
		t.Errorf("explicit Connection: close should be honored on HTTP/1.1")
	}
}

func TestParser_FixedLengthBody(t *testing.T) {
	tok := NewByteTokenizer(4096)
	p := NewParser(tok, 128, 2048)
	tok.Append([]byte("POST /echo HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello"))
	req, err := p.Feed()
	if err != nil || req == nil {
		t.Fatalf("req=%v err=%v", req, err)
	}
	if string(req.Body) != "hello" {
		t.Errorf("got body %q", req.Body)
	}
}

func TestParser_BodyArrivesAcrossMultipleAppends(t *testing.T) {
	tok := NewByteTokenizer(4096)
	p := NewParser(tok, 128, 2048)
	tok.Append([]byte("POST /echo HTTP/1.1\r\nContent-Length: 5\r\n\r\nhel"))
	if req, err := p.Feed(); err != nil || req != nil {
		t.Fatalf("expected incomplete, got req=%v err=%v", req, err)
	}
	tok.Append([]byte("lo"))
	req, err := p.Feed()
	if err != nil || req == nil {
		t.Fatalf("req=%v err=%v", req, err)
	}
	if string(req.Body) != "hello" {
		t.Errorf("got body %q", req.Body)
	}
}

func TestParser_ChunkedBody(t *testing.T) {
	tok := NewByteTokenizer(4096)
	p := NewParser(tok, 128, 2048)
	tok.Append([]byte("POST /echo HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n"))
	req, err := p.Feed()
	if err != nil || req == nil {
		t.Fatalf("req=%v err=%v", req, err)
	}
	if string(req.Body) != "Wikipedia" {
		t.Errorf("got body %q", req.Body)
	}
}

func TestParser_ChunkedWithExtensionsIgnored(t *testing.T) {
	tok := NewByteTokenizer(4096)
	p := NewParser(tok, 128, 2048)
	tok.Append([]byte("POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"4;foo=bar\r\nWiki\r\n0\r\n\r\n"))
	req, err := p.Feed()
	if err != nil || req == nil {
		t.Fatalf("req=%v err=%v", req, err)
	}
	if string(req.Body) != "Wiki" {
		t.Errorf("got body %q", req.Body)
	}
}

func TestParser_ChunkedTrailersAppendToHeaders(t *testing.T) {
	tok := NewByteTokenizer(4096)
	p := NewParser(tok, 128, 2048)
	tok.Append([]byte("POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"4\r\nWiki\r\n0\r\nX-Trailer: late\r\n\r\n"))
	req, err := p.Feed()
	if err != nil || req == nil {
		t.Fatalf("req=%v err=%v", req, err)
	}
	if v := req.Header("X-Trailer"); v != "late" {
		t.Errorf("expected trailer to be visible as a header, got %q", v)
	}
}

func TestParser_RejectsContentLengthAndTransferEncodingTogether(t *testing.T) {
	tok := NewByteTokenizer(4096)
	p := NewParser(tok, 128, 2048)
	tok.Append([]byte("POST / HTTP/1.1\r\nContent-Length: 4\r\nTransfer-Encoding: chunked\r\n\r\n1234"))
	_, err := p.Feed()
	if err != ErrMalformedFraming {
		t.Errorf("expected ErrMalformedFraming, got %v", err)
	}
}

func TestParser_RejectsDuplicateDifferingContentLength(t *testing.T) {
	tok := NewByteTokenizer(4096)
	p := NewParser(tok, 128, 2048)
	tok.Append([]byte("POST / HTTP/1.1\r\nContent-Length: 4\r\nContent-Length: 5\r\n\r\n12345"))
	_, err := p.Feed()
	if err != ErrInvalidContentLength {
		t.Errorf("expected ErrInvalidContentLength, got %v", err)
	}
}

func TestParser_AllowsDuplicateIdenticalContentLength(t *testing.T) {
	tok := NewByteTokenizer(4096)
	p := NewParser(tok, 128, 2048)
	tok.Append([]byte("POST / HTTP/1.1\r\nContent-Length: 4\r\nContent-Length: 4\r\n\r\nabcd"))
	req, err := p.Feed()
	if err != nil || req == nil {
		t.Fatalf("req=%v err=%v", req, err)
	}
}

func TestParser_RejectsMalformedRequestLine(t *testing.T) {
	tok := NewByteTokenizer(4096)
	p := NewParser(tok, 128, 2048)
	tok.Append([]byte("GET /only-two-tokens\r\n\r\n"))
	_, err := p.Feed()
	if err != ErrInvalidRequestLine {
		t.Errorf("expected ErrInvalidRequestLine, got %v", err)
	}
}

func TestParser_RejectsUnknownVersion(t *testing.T) {
	tok := NewByteTokenizer(4096)
	p := NewParser(tok, 128, 2048)
	tok.Append([]byte("GET / HTTP/2.0\r\n\r\n"))
	_, err := p.Feed()
	if err != ErrInvalidVersion {
		t.Errorf("expected ErrInvalidVersion, got %v", err)
	}
}

func TestParser_TooManyHeadersRejected(t *testing.T) {
	tok := NewByteTokenizer(1 << 20)
	p := NewParser(tok, 4, 2048)
	var buf bytes.Buffer
	buf.WriteString("GET / HTTP/1.1\r\n")
	for i := 0; i < 10; i++ {
		buf.WriteString("X-H: v\r\n")
	}
	buf.WriteString("\r\n")
	tok.Append(buf.Bytes())
	_, err := p.Feed()
	if err != ErrTooManyHeaders {
		t.Errorf("expected ErrTooManyHeaders, got %v", err)
	}
}

func TestParser_Pipelining(t *testing.T) {
	tok := NewByteTokenizer(4096)
	p := NewParser(tok, 128, 2048)
	tok.Append([]byte("GET /a HTTP/1.1\r\n\r\nGET /b HTTP/1.1\r\n\r\n"))

	req1, err := p.Feed()
	if err != nil || req1 == nil || req1.URI != "/a" {
		t.Fatalf("first request: req=%v err=%v", req1, err)
	}
	req2, err := p.Feed()
	if err != nil || req2 == nil || req2.URI != "/b" {
		t.Fatalf("second request: req=%v err=%v", req2, err)
	}
}

func TestParser_ChunkMissingTrailingCRLFRejected(t *testing.T) {
	tok := NewByteTokenizer(4096)
	p := NewParser(tok, 128, 2048)
	tok.Append([]byte("POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"4\r\nWikiXX0\r\n\r\n"))
	_, err := p.Feed()
	if err != ErrChunkFraming {
		t.Errorf("expected ErrChunkFraming, got %v", err)
	}
}

func TestParser_ExpectContinueSignaled(t *testing.T) {
	tok := NewByteTokenizer(4096)
	p := NewParser(tok, 128, 2048)
	tok.Append([]byte("POST / HTTP/1.1\r\nContent-Length: 5\r\nExpect: 100-continue\r\n\r\n"))

	req, err := p.Feed()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req != nil {
		t.Fatalf("expected incomplete (body not yet sent), got a request")
	}
	if !p.TakePendingContinue() {
		t.Errorf("expected pending continue to be signaled once headers completed")
	}
	if p.TakePendingContinue() {
		t.Errorf("pending continue should clear after being taken")
	}

	tok.Append([]byte("world"))
	req, err = p.Feed()
	if err != nil || req == nil {
		t.Fatalf("req=%v err=%v", req, err)
	}
	if string(req.Body) != "world" {
		t.Errorf("got body %q", req.Body)
	}
}
