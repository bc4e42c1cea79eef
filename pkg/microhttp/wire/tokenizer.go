package wire

import (
	"bytes"

	"github.com/valyala/bytebufferpool"

	"github.com/watt-toolkit/microhttp/internal/bufpool"
)

// ByteTokenizer is an append-only byte region with a read cursor. It is
// the primitive the RequestParser drives: bytes arrive via Append, are
// inspected with Peek/ConsumeUntil, and consumed bytes are reclaimed with
// Compact so the buffer doesn't grow without bound across a connection's
// lifetime.
//
// Slices returned by ConsumeUntil/Consume are views over the internal
// buffer. They are invalidated by the next Compact call — callers that
// need to retain bytes past that point (header names/values, the body)
// must copy them out first.
type ByteTokenizer struct {
	buf    *bytebufferpool.ByteBuffer
	cursor int // index of the first unconsumed byte
	max    int // hard cap on buf.B length (Options.MaxRequestSize)
}

// NewByteTokenizer returns a tokenizer bounded at maxSize total bytes.
func NewByteTokenizer(maxSize int) *ByteTokenizer {
	return &ByteTokenizer{buf: bufpool.Global.Get(), max: maxSize}
}

// Append adds bytes to the end of the buffer. It returns ErrOverflow
// without copying anything if doing so would exceed the configured
// maximum: the buffer must never exceed maxRequestSize.
func (t *ByteTokenizer) Append(p []byte) error {
	if len(t.buf.B)+len(p) > t.max {
		return ErrOverflow
	}
	t.buf.B = append(t.buf.B, p...)
	return nil
}

// Remaining returns the number of unconsumed bytes.
func (t *ByteTokenizer) Remaining() int {
	return len(t.buf.B) - t.cursor
}

// Peek returns the byte at offset i past the cursor, and whether it
// exists.
func (t *ByteTokenizer) Peek(i int) (byte, bool) {
	idx := t.cursor + i
	if idx < 0 || idx >= len(t.buf.B) {
		return 0, false
	}
	return t.buf.B[idx], true
}

// ConsumeUntil scans for delim starting at the cursor. On a match it
// advances the cursor past the delimiter and returns the bytes strictly
// before it (the delimiter itself is not included). If delim hasn't
// appeared yet, it returns ErrIncomplete. If the unconsumed region already
// exceeds maxLen bytes without a match, it returns ErrInvalidHeader — the
// caller is expected to treat that as the appropriate framing error for
// whatever it was scanning (request line / header line / chunk-size
// line all share this shape).
func (t *ByteTokenizer) ConsumeUntil(delim []byte, maxLen int) ([]byte, error) {
	window := t.buf.B[t.cursor:]
	idx := bytes.Index(window, delim)
	if idx == -1 {
		if len(window) > maxLen {
			return nil, ErrInvalidHeader
		}
		return nil, ErrIncomplete
	}
	if idx > maxLen {
		return nil, ErrInvalidHeader
	}
	line := window[:idx]
	t.cursor += idx + len(delim)
	return line, nil
}

// Consume returns and advances past exactly n unconsumed bytes, or
// ErrIncomplete if fewer than n are available.
func (t *ByteTokenizer) Consume(n int) ([]byte, error) {
	if t.Remaining() < n {
		return nil, ErrIncomplete
	}
	b := t.buf.B[t.cursor : t.cursor+n]
	t.cursor += n
	return b, nil
}

// Compact drops the consumed prefix, sliding unconsumed bytes to the
// front of the buffer. Any slice previously returned by Consume or
// ConsumeUntil is invalidated by this call.
func (t *ByteTokenizer) Compact() {
	if t.cursor == 0 {
		return
	}
	n := copy(t.buf.B, t.buf.B[t.cursor:])
	t.buf.B = t.buf.B[:n]
	t.cursor = 0
}

// Close returns the underlying buffer to the pool. The tokenizer must not
// be used afterwards.
func (t *ByteTokenizer) Close() {
	bufpool.Global.Put(t.buf)
	t.buf = nil
}
