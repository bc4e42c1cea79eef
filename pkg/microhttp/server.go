package microhttp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/watt-toolkit/microhttp/pkg/microhttp/metrics"
	"github.com/watt-toolkit/microhttp/pkg/microhttp/socket"
)

// Server is the top-level supervisor: it resolves Options.Concurrency
// EventLoops, binds each one a listener (sharing one port via
// SO_REUSEPORT when Options.ReusePort is set, rather than funneling every
// accept through a single goroutine), and runs them until Stop or the
// context passed to Start is canceled.
//
// Group lifecycle is golang.org/x/sync/errgroup rather than a hand-rolled
// sync.WaitGroup and done channel.
type Server struct {
	opts      Options
	loops     []*EventLoop
	listeners []net.Listener

	cancel context.CancelFunc
	group  *errgroup.Group
}

// Addrs returns the bound address of every loop's listener, useful for
// tests that start a Server on port 0 and need to discover the actual
// port the kernel assigned.
func (s *Server) Addrs() []net.Addr {
	addrs := make([]net.Addr, len(s.listeners))
	for i, ln := range s.listeners {
		addrs[i] = ln.Addr()
	}
	return addrs
}

// NewServer validates opts (filling in any zero-valued fields it can
// safely default) and returns a Server ready to Start.
func NewServer(opts Options) (*Server, error) {
	if opts.Handler == nil {
		return nil, errors.New("microhttp: Options.Handler is required")
	}
	if opts.Logger == nil {
		opts.Logger = NopLogger{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.GOMAXPROCS(0)
	}
	if opts.Resolution <= 0 {
		opts.Resolution = DefaultOptions().Resolution
	}
	return &Server{opts: opts}, nil
}

// Start binds a listener per loop and begins serving. It returns once
// every listener is bound and every loop's Run/Serve goroutines have been
// launched; call Wait to block until they stop.
func (s *Server) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	group, gctx := errgroup.WithContext(ctx)
	s.group = group

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	sockCfg := socket.Config{
		NoDelay:   s.opts.TCPNoDelay,
		KeepAlive: true,
		ReusePort: s.opts.ReusePort,
	}

	listeners := make([]net.Listener, 0, s.opts.Concurrency)
	if s.opts.ReusePort {
		for i := 0; i < s.opts.Concurrency; i++ {
			ln, err := socket.Listen(addr, sockCfg)
			if err != nil {
				closeAll(listeners)
				return fmt.Errorf("microhttp: listen loop %d: %w", i, err)
			}
			listeners = append(listeners, ln)
		}
	} else {
		ln, err := socket.Listen(addr, socket.Config{NoDelay: s.opts.TCPNoDelay, KeepAlive: true})
		if err != nil {
			return fmt.Errorf("microhttp: listen: %w", err)
		}
		// Every loop shares the one listener; Accept itself is safe for
		// concurrent callers, the kernel hands each call exactly one
		// connection.
		for i := 0; i < s.opts.Concurrency; i++ {
			listeners = append(listeners, ln)
		}
	}

	s.listeners = listeners
	s.loops = make([]*EventLoop, s.opts.Concurrency)
	for i := 0; i < s.opts.Concurrency; i++ {
		loop := NewEventLoop(s.opts)
		s.loops[i] = loop
		ln := listeners[i]

		group.Go(func() error {
			loop.Run(gctx)
			return nil
		})
		group.Go(func() error {
			err := loop.Serve(gctx, ln)
			if err != nil && gctx.Err() != nil {
				return nil
			}
			return err
		})
	}

	if s.opts.Logger.Enabled() {
		s.opts.Logger.Log("server_started",
			String("addr", addr),
			Int("loops", s.opts.Concurrency))
	}
	return nil
}

// Wait blocks until every loop's Run/Serve goroutine has returned,
// returning the first non-nil error any of them produced.
func (s *Server) Wait() error {
	return s.group.Wait()
}

// Stop cancels the context Start was given, causing every listener to
// close and every loop's Run to return without processing closures still
// in its queue. Stop does not wait for anything; call Wait afterward to
// block until the Run/Serve goroutines return. Connections still open at
// that point are neither closed nor waited for.
func (s *Server) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func closeAll(listeners []net.Listener) {
	for _, ln := range listeners {
		ln.Close()
	}
}
