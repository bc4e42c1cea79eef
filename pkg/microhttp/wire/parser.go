package wire

import (
	"strconv"
	"strings"

	"github.com/watt-toolkit/microhttp/pkg/microhttp/message"
)

type parserState int

const (
	stateRequestLine parserState = iota
	stateHeaders
	stateFixedBody
	stateChunkSize
	stateChunkData
	stateChunkCRLF
	stateChunkTrailers
)

// Parser is an incremental HTTP/1.x request parser driven by a
// ByteTokenizer. It never reveals a partial Request: Feed either returns
// a fully assembled Request (with the consumed bytes simultaneously
// released from the tokenizer) or reports that more data is needed.
//
// A single Parser handles an entire pipelined stream: once Feed yields a
// Request it resets to stateRequestLine so the next call picks up the
// following request on the wire.
type Parser struct {
	tok *ByteTokenizer

	maxHeaderCount int
	maxLineLen     int

	state parserState

	// accumulating fields for the request currently being parsed
	method    string
	uri       string
	version   string
	headers   message.Headers
	headerCnt int
	body      []byte

	hasContentLength bool
	hasChunked       bool
	contentLength    int64
	bodyRemaining    int64
	chunkRemaining   uint64

	expectContinue  bool
	pendingContinue bool
}

// NewParser returns a parser reading from tok. maxHeaderCount bounds the
// number of headers (plus trailers) per request; maxLineLen bounds any
// single request-line/header/chunk-size line.
func NewParser(tok *ByteTokenizer, maxHeaderCount, maxLineLen int) *Parser {
	return &Parser{tok: tok, maxHeaderCount: maxHeaderCount, maxLineLen: maxLineLen}
}

// TakePendingContinue reports and clears whether the most recent Feed
// call crossed an "Expect: 100-continue" header while moving from
// headers into body framing. The caller should write ContinueResponse()
// ahead of the pipeline when this returns true.
func (p *Parser) TakePendingContinue() bool {
	v := p.pendingContinue
	p.pendingContinue = false
	return v
}

// Feed advances the state machine as far as the currently buffered bytes
// allow. It returns a Request when one has been fully parsed (the
// tokenizer's cursor has moved past it), or (nil, nil) when more bytes
// must arrive first. Any non-nil error is fatal to the connection.
func (p *Parser) Feed() (*message.Request, error) {
	for {
		switch p.state {
		case stateRequestLine:
			line, err := p.tok.ConsumeUntil(crlf, p.maxLineLen)
			if err == ErrIncomplete {
				return nil, nil
			}
			if err != nil {
				return nil, ErrInvalidRequestLine
			}
			if err := p.parseRequestLine(line); err != nil {
				return nil, err
			}
			p.state = stateHeaders

		case stateHeaders:
			line, err := p.tok.ConsumeUntil(crlf, p.maxLineLen)
			if err == ErrIncomplete {
				return nil, nil
			}
			if err != nil {
				return nil, ErrInvalidHeader
			}
			if len(line) == 0 {
				done, err := p.decideBodyFraming()
				if err != nil {
					return nil, err
				}
				if done {
					return p.finish(), nil
				}
				continue
			}
			if err := p.addHeaderLine(line); err != nil {
				return nil, err
			}

		case stateFixedBody:
			b, err := p.tok.Consume(int(p.bodyRemaining))
			if err == ErrIncomplete {
				return nil, nil
			}
			p.body = append(p.body, b...)
			p.bodyRemaining = 0
			return p.finish(), nil

		case stateChunkSize:
			line, err := p.tok.ConsumeUntil(crlf, p.maxLineLen)
			if err == ErrIncomplete {
				return nil, nil
			}
			if err != nil {
				return nil, ErrInvalidChunkSize
			}
			size, err := parseChunkSizeLine(line)
			if err != nil {
				return nil, err
			}
			if size == 0 {
				p.state = stateChunkTrailers
				continue
			}
			p.chunkRemaining = size
			p.state = stateChunkData

		case stateChunkData:
			data, err := p.tok.Consume(int(p.chunkRemaining))
			if err == ErrIncomplete {
				return nil, nil
			}
			p.body = append(p.body, data...)
			p.chunkRemaining = 0
			p.state = stateChunkCRLF

		case stateChunkCRLF:
			// A separate state from stateChunkData: the chunk's data
			// bytes are already consumed and appended once we get here,
			// so retrying this state on ErrIncomplete never re-reads them.
			term, err := p.tok.Consume(2)
			if err == ErrIncomplete {
				return nil, nil
			}
			if term[0] != '\r' || term[1] != '\n' {
				return nil, ErrChunkFraming
			}
			p.state = stateChunkSize

		case stateChunkTrailers:
			line, err := p.tok.ConsumeUntil(crlf, p.maxLineLen)
			if err == ErrIncomplete {
				return nil, nil
			}
			if err != nil {
				return nil, ErrInvalidHeader
			}
			if len(line) == 0 {
				return p.finish(), nil
			}
			if err := p.addHeaderLine(line); err != nil {
				return nil, err
			}
		}
	}
}

func (p *Parser) parseRequestLine(line []byte) error {
	for _, b := range line {
		if b < 0x20 {
			return ErrInvalidRequestLine
		}
	}
	parts := splitBySingleSpace(line)
	if len(parts) != 3 {
		return ErrInvalidRequestLine
	}
	for _, part := range parts {
		if len(part) == 0 {
			return ErrInvalidRequestLine
		}
	}
	version := string(parts[2])
	if version != HTTP10 && version != HTTP11 {
		return ErrInvalidVersion
	}
	p.method = string(parts[0])
	p.uri = string(parts[1])
	p.version = version
	return nil
}

func (p *Parser) addHeaderLine(line []byte) error {
	p.headerCnt++
	if p.headerCnt > p.maxHeaderCount {
		return ErrTooManyHeaders
	}

	colon := indexByte(line, ':')
	if colon == -1 {
		return ErrInvalidHeader
	}
	name := line[:colon]
	value := trimSpace(line[colon+1:])
	p.headers.Add(string(name), string(value))

	switch {
	case strings.EqualFold(string(name), HeaderContentLength):
		n, err := strconv.ParseInt(string(value), 10, 64)
		if err != nil || n < 0 {
			return ErrInvalidContentLength
		}
		// A second Content-Length with a differing value is a classic
		// request-smuggling vector (RFC 7230 §3.3.3 bullet 4); reject
		// rather than pick either value.
		if p.hasContentLength && n != p.contentLength {
			return ErrInvalidContentLength
		}
		p.hasContentLength = true
		p.contentLength = n
	case strings.EqualFold(string(name), HeaderTransferEncoding):
		if strings.EqualFold(string(value), ValueChunked) {
			p.hasChunked = true
		}
	case strings.EqualFold(string(name), HeaderExpect):
		if strings.EqualFold(string(value), Value100Continue) {
			p.expectContinue = true
		}
	}
	return nil
}

// decideBodyFraming chooses the next state once the header block has
// ended. It returns done=true when the request has no body at all, so
// the caller can finish it immediately without a further state
// transition.
func (p *Parser) decideBodyFraming() (done bool, err error) {
	if p.hasContentLength && p.hasChunked {
		return false, ErrMalformedFraming
	}
	if p.expectContinue && (p.hasChunked || p.contentLength > 0) {
		p.pendingContinue = true
	}
	switch {
	case p.hasChunked:
		p.state = stateChunkSize
		return false, nil
	case p.hasContentLength && p.contentLength > 0:
		p.bodyRemaining = p.contentLength
		p.state = stateFixedBody
		return false, nil
	default:
		return true, nil
	}
}

// finish builds the Request from accumulated state and resets the parser
// for the next pipelined request. Strings/bytes are copied here because
// the tokenizer's backing array may be compacted once this Request is
// handed off.
func (p *Parser) finish() *message.Request {
	req := &message.Request{
		Version:   p.version,
		Method:    p.method,
		URI:       p.uri,
		Headers:   p.headers,
		Body:      append([]byte{}, p.body...),
		KeepAlive: computeKeepAlive(p.version, p.headers),
	}
	p.reset()
	return req
}

func (p *Parser) reset() {
	p.state = stateRequestLine
	p.method, p.uri, p.version = "", "", ""
	p.headers = nil
	p.headerCnt = 0
	p.body = nil
	p.hasContentLength = false
	p.hasChunked = false
	p.contentLength = 0
	p.bodyRemaining = 0
	p.chunkRemaining = 0
	p.expectContinue = false
}

func computeKeepAlive(version string, headers message.Headers) bool {
	conn, ok := headers.Get(HeaderConnection)
	if version == HTTP11 {
		if ok && strings.EqualFold(conn, ValueClose) {
			return false
		}
		return true
	}
	// HTTP/1.0 defaults to close unless explicitly keep-alive.
	return ok && strings.EqualFold(conn, ValueKeepAlive)
}

func splitBySingleSpace(line []byte) [][]byte {
	var parts [][]byte
	start := 0
	for i, b := range line {
		if b == ' ' {
			parts = append(parts, line[start:i])
			start = i + 1
		}
	}
	parts = append(parts, line[start:])
	return parts
}
