package microhttp

import (
	"net"
	"sync"
	"time"

	"github.com/valyala/bytebufferpool"

	"github.com/watt-toolkit/microhttp/internal/bufpool"
	"github.com/watt-toolkit/microhttp/pkg/microhttp/message"
	"github.com/watt-toolkit/microhttp/pkg/microhttp/sched"
	"github.com/watt-toolkit/microhttp/pkg/microhttp/wire"
)

// pipelineSlot holds one in-flight request's eventual response. Slots
// are appended to Connection.pipeline in arrival order and flushed to
// the wire strictly in that order, even though the Handler may fill
// them out of order (request N+1 may finish before request N, but its
// bytes never reach the client first).
type pipelineSlot struct {
	resp  *message.Response
	ready bool
}

// Connection is a single accepted socket's state machine: a read-side
// ByteTokenizer/Parser feeding a pipeline of pending responses, and a
// write side draining completed responses in order. Every field here is
// touched only from closures running on the owning EventLoop goroutine
// — see eventloop.go's Submit/SubmitBlocking doc comments — except the
// fields the reader/writer pump goroutines use for blocking I/O
// themselves (conn, writeCh), which carry no shared mutable state beyond
// what channels already serialize.
type Connection struct {
	conn net.Conn
	loop *EventLoop
	opts Options

	tok        *wire.ByteTokenizer
	parser     *wire.Parser
	serializer *wire.Serializer

	pipeline  []*pipelineSlot
	keepAlive bool
	closing   bool

	// readGate carries the permit the reader pump must hold before
	// issuing the next conn.Read. maybeReleaseReadGate (run on the loop
	// goroutine, loop-owned state only) withholds the permit once the
	// pipeline hits Options.MaxPipelineDepth and reissues it once
	// onResponse drains the backlog below that cap: a saturated pipeline
	// pauses reading rather than buffering unboundedly many
	// parsed-but-undispatched requests.
	readGate        chan struct{}
	readGatePending bool

	writeCh chan writeItem

	idleTok    sched.Token
	hasIdleTok bool

	closeOnce sync.Once
	stopPumps chan struct{}
}

func newConnection(conn net.Conn, loop *EventLoop, opts Options) *Connection {
	tok := wire.NewByteTokenizer(opts.MaxRequestSize)
	c := &Connection{
		conn:       conn,
		loop:       loop,
		opts:       opts,
		tok:        tok,
		parser:     wire.NewParser(tok, opts.MaxHeaderCount, opts.MaxLineLength),
		serializer: wire.NewSerializer(),
		keepAlive:  true,
		readGate:   make(chan struct{}, 1),
		writeCh:    make(chan writeItem, opts.MaxPipelineDepth),
		stopPumps:  make(chan struct{}),
	}
	c.readGate <- struct{}{} // the reader pump may issue its first Read immediately
	return c
}

// start arms the initial idle timeout (via a closure submitted to the
// loop) and launches the reader and writer pumps. Socket tuning has
// already been applied by EventLoop.Serve. Called from the goroutine
// that accepted the connection, not the loop goroutine.
func (c *Connection) start() {
	c.loop.Submit(func() {
		c.rearmIdleTimeout()
	})
	go c.readPump()
	go c.writePump()
}

// readPump blocks on conn.Read and hands every chunk read to the loop
// via SubmitBlocking. Two independent backpressure mechanisms gate a
// Read: readGate (withheld while the pipeline is saturated, see
// maybeReleaseReadGate) and SubmitBlocking itself (a Handler that falls
// behind fills the loop's queue, stalling delivery of already-read
// bytes).
func (c *Connection) readPump() {
	buf := make([]byte, c.opts.ReadBufferSize)
	for {
		select {
		case <-c.readGate:
		case <-c.stopPumps:
			return
		}
		n, err := c.conn.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			delivered := c.loop.SubmitBlocking(func() {
				c.onData(chunk)
			})
			if !delivered {
				return
			}
		}
		if err != nil {
			c.loop.Submit(func() {
				c.onReadError(err)
			})
			return
		}
	}
}

// writeItem is one entry on a connection's write channel. closeAfter is
// set on the item carrying the final response of a non-keep-alive
// request, so the socket is closed only once that exact write has gone
// out — never racing a close signal against the buffer it's meant to
// follow.
type writeItem struct {
	buf        *bytebufferpool.ByteBuffer
	closeAfter bool
}

// writePump blocks on conn.Write for every item handed to it over
// writeCh, in order, then returns the buffer to the pool. It never closes
// c.conn itself: after the item marked closeAfter has been written it
// submits teardown to the loop, which is what keeps the final write from
// racing the close.
func (c *Connection) writePump() {
	for {
		select {
		case item, ok := <-c.writeCh:
			if !ok {
				return
			}
			_, err := c.conn.Write(item.buf.B)
			bufpool.Global.Put(item.buf)
			if err != nil {
				c.loop.Submit(func() {
					c.onWriteError(err)
				})
				return
			}
			if item.closeAfter {
				c.loop.Submit(func() {
					c.teardown("response_complete", nil)
				})
				return
			}
		case <-c.stopPumps:
			return
		}
	}
}

// send hands buf to the writer pump without ever blocking the loop
// goroutine: if writeCh has room it's a direct channel send, otherwise a
// short-lived goroutine carries the blocking send so a momentarily slow
// client can't stall request dispatch for every other connection on this
// loop.
func (c *Connection) send(buf *bytebufferpool.ByteBuffer, closeAfter bool) {
	item := writeItem{buf: buf, closeAfter: closeAfter}
	select {
	case c.writeCh <- item:
		return
	default:
	}
	go func() {
		select {
		case c.writeCh <- item:
		case <-c.stopPumps:
			bufpool.Global.Put(buf)
		}
	}()
}

// onData runs on the loop goroutine. It merges newly read bytes into the
// tokenizer, then calls drainParser, and re-arms the idle timeout only
// when that completed at least one request.
func (c *Connection) onData(chunk []byte) {
	if c.closing {
		return
	}
	if err := c.tok.Append(chunk); err != nil {
		c.abort("overflow", err)
		return
	}
	before := len(c.pipeline)
	c.drainParser()
	if !c.closing && len(c.pipeline) > before {
		c.rearmIdleTimeout()
	}
}

// drainParser feeds the parser until it runs out of buffered bytes or
// the pipeline saturates, dispatching every fully parsed request to the
// Handler. It is called both when new bytes arrive (onData) and when the
// pipeline drops below its cap after a response flushes (onResponse),
// since a pipelined request already sitting fully-formed in the
// tokenizer must not wait for another socket read before it's noticed.
func (c *Connection) drainParser() {
	if c.closing {
		return
	}
	for c.keepAlive && len(c.pipeline) < c.opts.MaxPipelineDepth {
		req, err := c.parser.Feed()
		if err != nil {
			c.abort("parse_error", err)
			return
		}
		if c.parser.TakePendingContinue() {
			c.send(cloneStatic(wire.ContinueResponse()), false)
		}
		if req == nil {
			break
		}
		c.dispatch(req)
		if !req.KeepAlive {
			c.keepAlive = false
		}
	}
	// If the pipeline is still saturated, any fully-buffered-but-unparsed
	// request simply waits in the tokenizer for the cap to free up — see
	// maybeReleaseReadGate/onResponse, which re-invokes this method once
	// a slot opens, rather than waiting on a fresh socket read.

	c.tok.Compact()
	c.opts.Metrics.PipelineDepth(len(c.pipeline))
	c.maybeReleaseReadGate()
}

// maybeReleaseReadGate hands the reader pump its next read permit unless
// the pipeline is currently saturated, in which case it records that a
// permit is owed and leaves it to onResponse to deliver once the
// pipeline drains below the cap.
func (c *Connection) maybeReleaseReadGate() {
	if c.closing {
		return
	}
	if len(c.pipeline) >= c.opts.MaxPipelineDepth {
		c.readGatePending = true
		return
	}
	select {
	case c.readGate <- struct{}{}:
	default:
	}
}

// dispatch appends a pipeline slot and invokes the Handler. The
// ResponseFunc passed to Handle may run inline (common for simple
// synchronous handlers) or from another goroutine entirely (a handler
// that offloads to a worker pool) — both are safe because
// EventLoop.Submit never blocks its caller.
func (c *Connection) dispatch(req *message.Request) {
	slot := &pipelineSlot{}
	c.pipeline = append(c.pipeline, slot)

	var once sync.Once
	respond := func(resp *message.Response) {
		delivered := false
		once.Do(func() {
			delivered = true
			c.loop.Submit(func() {
				c.onResponse(slot, resp)
			})
		})
		if !delivered {
			c.loop.Submit(func() {
				if c.opts.Logger.Enabled() {
					c.opts.Logger.Log("duplicate_callback")
				}
			})
		}
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				resp := message.NewResponse(500, "Internal Server Error", message.Headers{
					{Name: wire.HeaderConnection, Value: wire.ValueClose},
				}, nil)
				// No further requests are parsed; the connection closes
				// once this response has been written.
				c.keepAlive = false
				c.loop.Submit(func() {
					c.onResponse(slot, resp)
				})
				if c.opts.Logger.Enabled() {
					c.opts.Logger.Log("handler_panic", Attr{Key: "recovered", Value: r})
				}
			}
		}()
		c.opts.Handler.Handle(req, respond)
	}()
}

// onResponse marks slot ready and flushes as much of the pipeline's
// contiguous ready prefix as possible, preserving response order even
// though requests may have completed out of order.
func (c *Connection) onResponse(slot *pipelineSlot, resp *message.Response) {
	if c.closing {
		// The connection closed (timeout, I/O error, peer shutdown)
		// while this request's handler was still outstanding. A late
		// callback is discarded rather than acted on.
		return
	}
	slot.resp = resp
	slot.ready = true

	flushed := 0
	for i, s := range c.pipeline {
		if !s.ready {
			break
		}
		isLast := !c.keepAlive && i == len(c.pipeline)-1
		wireBuf := c.serializer.Serialize(s.resp, c.keepAlive)
		c.send(wireBuf, isLast)
		c.opts.Metrics.RequestHandled()
		flushed++
	}
	if flushed > 0 {
		c.pipeline = c.pipeline[flushed:]
		c.opts.Metrics.PipelineDepth(len(c.pipeline))
		// The idle timeout is rescheduled on every response flush, not
		// just every parser completion.
		c.rearmIdleTimeout()
	}
	if c.readGatePending && len(c.pipeline) < c.opts.MaxPipelineDepth {
		c.readGatePending = false
		// A slot just opened: re-drive the parser in case a pipelined
		// request is already sitting fully-formed in the tokenizer,
		// buffered there since the pipeline was last saturated.
		c.drainParser()
	}
}

func (c *Connection) onReadError(err error) {
	c.teardown("read_error", err)
}

func (c *Connection) onWriteError(err error) {
	c.teardown("write_error", err)
}

func (c *Connection) abort(reason string, err error) {
	c.teardown(reason, err)
}

func (c *Connection) teardown(reason string, err error) {
	c.closeOnce.Do(func() {
		c.closing = true
		if c.hasIdleTok {
			c.loop.sched.Cancel(c.idleTok)
			c.hasIdleTok = false
		}
		close(c.stopPumps)
		c.conn.Close()
		c.tok.Close()
		c.loop.untrack(c)
		c.opts.Metrics.ConnectionClosed()
		switch reason {
		case "idle_timeout":
			c.opts.Metrics.IdleTimeout()
		case "parse_error", "overflow", "read_error", "write_error":
			c.opts.Metrics.RequestError(reason)
		}
		if c.opts.Logger.Enabled() {
			c.opts.Logger.Log("connection_closed", String("reason", reason), Err(err))
		}
	})
}

// rearmIdleTimeout (re)schedules this connection's single pending
// timeout. Each connection holds at most one entry in the loop's
// Scheduler at a time — a new request arriving cancels and reschedules
// rather than accumulating timers.
func (c *Connection) rearmIdleTimeout() {
	if c.opts.RequestTimeout <= 0 {
		return
	}
	when := time.Now().Add(c.opts.RequestTimeout)
	if c.hasIdleTok {
		c.idleTok = c.loop.sched.Reschedule(c.idleTok, when)
		return
	}
	c.idleTok = c.loop.sched.Schedule(when, func(time.Time) {
		c.hasIdleTok = false
		c.teardown("idle_timeout", nil)
	})
	c.hasIdleTok = true
}

// cloneStatic copies a static byte slice into a pooled buffer so every
// write funnels through the same send path regardless of origin.
func cloneStatic(b []byte) *bytebufferpool.ByteBuffer {
	buf := bufpool.Global.Get()
	buf.B = append(buf.B, b...)
	return buf
}
