package microhttp

import "github.com/watt-toolkit/microhttp/pkg/microhttp/message"

// ResponseFunc is the callback a Handler invokes exactly once to deliver
// its Response. Calling it more than once is tolerated: later calls are
// no-ops, logged at a warning-equivalent event.
type ResponseFunc func(*message.Response)

// Handler processes one Request and must eventually call respond exactly
// once. respond may be called from any goroutine, and may be called
// after Handle returns — this is what lets a Handler hand the request to
// a worker pool, a downstream RPC call, or any other async operation
// without blocking the connection's reader pump. The EventLoop,  not the
// handler, owns re-entering single-threaded state when respond fires.
type Handler interface {
	Handle(req *message.Request, respond ResponseFunc)
}

// HandlerFunc adapts an ordinary function to a Handler.
type HandlerFunc func(req *message.Request, respond ResponseFunc)

func (f HandlerFunc) Handle(req *message.Request, respond ResponseFunc) {
	f(req, respond)
}
