package wire

import "errors"

// Parser errors. All are fatal to the connection they occur on: the
// caller closes the socket and never writes a response for them (the
// request may only be partially received).
var (
	// ErrInvalidRequestLine indicates the request line did not split into
	// exactly three space-separated tokens, or a token was empty/contained
	// control characters.
	ErrInvalidRequestLine = errors.New("wire: invalid request line")

	// ErrInvalidVersion indicates a version token other than HTTP/1.0 or
	// HTTP/1.1.
	ErrInvalidVersion = errors.New("wire: unsupported HTTP version")

	// ErrInvalidHeader indicates a header line with no colon separator,
	// or a line exceeding the per-line length budget.
	ErrInvalidHeader = errors.New("wire: invalid header line")

	// ErrTooManyHeaders indicates the header (or trailer) count exceeded
	// Options.MaxHeaderCount.
	ErrTooManyHeaders = errors.New("wire: too many headers")

	// ErrMalformedFraming indicates both Content-Length and
	// Transfer-Encoding: chunked were present on the same request.
	ErrMalformedFraming = errors.New("wire: Content-Length and Transfer-Encoding both present")

	// ErrInvalidContentLength indicates a Content-Length value that isn't
	// a non-negative base-10 integer.
	ErrInvalidContentLength = errors.New("wire: invalid Content-Length")

	// ErrInvalidChunkSize indicates a chunk-size line that isn't valid hex.
	ErrInvalidChunkSize = errors.New("wire: invalid chunk size")

	// ErrChunkFraming indicates a chunk's data wasn't followed by CRLF.
	ErrChunkFraming = errors.New("wire: missing CRLF after chunk data")

	// ErrOverflow indicates the request would exceed Options.MaxRequestSize.
	// It is raised by ByteTokenizer and propagated verbatim.
	ErrOverflow = errors.New("wire: request exceeds maximum size")

	// ErrIncomplete is not a real error: it signals the tokenizer/parser
	// needs more bytes before it can make progress. Callers must not treat
	// it as fatal.
	ErrIncomplete = errors.New("wire: incomplete, need more data")
)
