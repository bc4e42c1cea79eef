package microhttp

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/watt-toolkit/microhttp/pkg/microhttp/sched"
	"github.com/watt-toolkit/microhttp/pkg/microhttp/socket"
)

// EventLoop is a single run-loop goroutine owning a set of Connections.
// Every mutation to a Connection's parser, pipeline, and scheduler state
// happens inside a closure executed by this goroutine. Go's netpoller
// already multiplexes the blocking reads/writes each Connection's
// reader/writer pump goroutines perform, so the one thing left for
// EventLoop to actually own is ordering — the cross-goroutine queue of
// closures is both the readiness selector and the single point where
// per-connection state is safe to touch.
type EventLoop struct {
	queue chan func()
	sched *sched.Scheduler

	opts Options

	done chan struct{}

	mu    sync.Mutex
	conns map[*Connection]struct{}
}

// NewEventLoop returns an EventLoop configured from opts. It does not
// start running until Run is called.
func NewEventLoop(opts Options) *EventLoop {
	return &EventLoop{
		queue: make(chan func(), opts.QueueSize),
		sched: sched.New(),
		opts:  opts,
		done:  make(chan struct{}),
		conns: make(map[*Connection]struct{}),
	}
}

// Submit schedules fn to run on the loop goroutine without ever blocking
// the caller. If the queue has room the closure is enqueued directly;
// otherwise a short-lived goroutine is spun up to deliver it once space
// frees — necessary because a Handler's respond callback may be invoked
// synchronously from inside a closure that is itself already running on
// this loop, and a blocking send there would deadlock the loop against
// itself. Response delivery never backpressures; only the read path
// does (see SubmitBlocking).
func (l *EventLoop) Submit(fn func()) {
	select {
	case l.queue <- fn:
		return
	default:
	}
	go func() {
		select {
		case l.queue <- fn:
		case <-l.done:
		}
	}()
}

// SubmitBlocking enqueues fn, blocking the caller while the queue is
// full. Reader pumps use this exclusively: a fast client paired with a
// slow Handler fills the queue, and the reader pump blocking here is
// exactly the backpressure that keeps the connection from buffering an
// unbounded number of parsed-but-undispatched requests. Returns false if
// the loop has already stopped.
func (l *EventLoop) SubmitBlocking(fn func()) bool {
	select {
	case l.queue <- fn:
		return true
	case <-l.done:
		return false
	}
}

// track/untrack let Server account for open connections across loops
// for diagnostics; mutation of the map itself is guarded by mu since
// Accept runs on a dedicated goroutine per listener, not the loop
// goroutine.
func (l *EventLoop) track(c *Connection) {
	l.mu.Lock()
	l.conns[c] = struct{}{}
	l.mu.Unlock()
}

func (l *EventLoop) untrack(c *Connection) {
	l.mu.Lock()
	delete(l.conns, c)
	l.mu.Unlock()
}

func (l *EventLoop) connectionCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.conns)
}

// Serve accepts connections from ln until ctx is canceled, handing each
// one to this loop. It's intended to run in its own goroutine; Run must
// be started separately (typically before Serve, so the loop is ready to
// receive the first accepted connection's closures).
func (l *EventLoop) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		if err := socket.Apply(conn, socket.Config{NoDelay: l.opts.TCPNoDelay, KeepAlive: true}); err != nil {
			if l.opts.Logger.Enabled() {
				l.opts.Logger.Log("socket_tuning_failed", String("error", err.Error()))
			}
		}
		c := newConnection(conn, l, l.opts)
		l.track(c)
		l.opts.Metrics.ConnectionAccepted()
		l.opts.Logger.Log("connection_accepted", String("remote", conn.RemoteAddr().String()))
		c.start()
	}
}

// Run is the loop goroutine's body: wait for either a queued closure or
// the next scheduled timeout, process it, drain whatever else is
// immediately available, then let the Scheduler fire anything now due.
// Blocks until ctx is canceled.
func (l *EventLoop) Run(ctx context.Context) {
	defer close(l.done)

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		wait := l.opts.Resolution
		if when, ok := l.sched.NextWake(); ok {
			if w := time.Until(when); w < wait {
				wait = w
			}
			if wait < 0 {
				wait = 0
			}
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return
		case fn := <-l.queue:
			fn()
			l.drain()
		case <-timer.C:
		}

		l.sched.RunDue(time.Now())
	}
}

// drain processes every closure already sitting in the queue without
// blocking, so a burst of reader-pump deliveries doesn't each wait for a
// fresh trip through the scheduler check.
func (l *EventLoop) drain() {
	for {
		select {
		case fn := <-l.queue:
			fn()
		default:
			return
		}
	}
}
