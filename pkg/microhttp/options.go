package microhttp

import (
	"time"

	"github.com/watt-toolkit/microhttp/pkg/microhttp/metrics"
	"github.com/watt-toolkit/microhttp/pkg/microhttp/wire"
)

// Options configures a Server. It is a plain value record, filled in
// from DefaultOptions() and then overridden field by field. TLS, request
// streaming, and on-wire compression are deliberately absent — those
// concerns belong to an upstream proxy or a different layer entirely.
type Options struct {
	// Host and Port name the address every EventLoop listens on.
	Host string
	Port int

	// Concurrency is the number of EventLoops, each with its own
	// listening socket when ReusePort is true. Defaults to
	// runtime.GOMAXPROCS(0).
	Concurrency int

	// ReusePort enables SO_REUSEPORT so each EventLoop binds its own
	// listener on Host:Port, letting the kernel hash accepts across
	// them instead of funneling every accept through one goroutine.
	ReusePort bool

	// AcceptBacklog is the listen(2) backlog passed to the kernel.
	AcceptBacklog int

	// QueueSize bounds each EventLoop's cross-goroutine closure queue.
	// A reader pump blocks once the queue is full; response and write
	// completions never block on it. The other backpressure mechanism is
	// MaxPipelineDepth.
	QueueSize int

	// MaxRequestSize bounds the total bytes (request line + headers +
	// body) buffered per in-flight request. Exceeding it aborts the
	// connection with wire.ErrOverflow.
	MaxRequestSize int

	// ReadBufferSize is the size of each chunk requested from the
	// socket per Read syscall.
	ReadBufferSize int

	// MaxHeaderCount caps header (and trailer) count per request.
	MaxHeaderCount int

	// MaxLineLength caps any single request-line/header/chunk-size line.
	MaxLineLength int

	// MaxPipelineDepth bounds how many parsed-but-not-yet-responded
	// requests a single connection may hold before its reader pump
	// stops accepting more bytes from the socket.
	MaxPipelineDepth int

	// RequestTimeout is the idle deadline: if a connection completes no
	// request and flushes no response within this duration (counted from
	// accept, the last parsed request or the last response flush), the
	// Scheduler closes it. Zero disables the timeout.
	RequestTimeout time.Duration

	// Resolution bounds how long EventLoop.Run ever sleeps between
	// Scheduler sweeps. It's the granularity at which idle-timeout
	// deadlines are actually observed: a connection can go up to
	// Resolution past its nominal deadline before the loop notices.
	// Submitted closures still wake the loop immediately regardless of
	// this value — it only bounds the wait when the queue is quiet.
	Resolution time.Duration

	// TCPNoDelay disables Nagle's algorithm on accepted connections.
	TCPNoDelay bool

	// Logger receives lifecycle and error events. Defaults to NopLogger.
	Logger Logger

	// Handler processes every request. Required — Server refuses to
	// start without one.
	Handler Handler

	// Metrics receives per-connection/per-request counters. Defaults to
	// metrics.New(), which is a no-op Recorder unless this module was
	// built with the "prometheus" tag (see pkg/microhttp/metrics).
	Metrics *metrics.Recorder
}

// DefaultOptions returns the recommended configuration for production use.
func DefaultOptions() Options {
	return Options{
		Host:             "0.0.0.0",
		Port:             8080,
		Concurrency:      0, // resolved to GOMAXPROCS(0) by NewServer
		ReusePort:        true,
		AcceptBacklog:    1024,
		QueueSize:        1024,
		MaxRequestSize:   1 << 20, // 1 MB
		ReadBufferSize:   16 << 10,
		MaxHeaderCount:   wire.DefaultMaxHeaderCount,
		MaxLineLength:    8 << 10,
		MaxPipelineDepth: 32,
		RequestTimeout:   60 * time.Second,
		Resolution:       250 * time.Millisecond,
		TCPNoDelay:       true,
		Logger:           NopLogger{},
		Metrics:          metrics.New(),
	}
}
