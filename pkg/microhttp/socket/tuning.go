// Package socket applies the socket tuning the reactor's Server
// supervisor needs before handing a listener or accepted connection off
// to an EventLoop: TCP_NODELAY, buffer sizing, keepalive, and — via
// ListenConfig — SO_REUSEPORT for the one-listener-per-loop accept
// policy.
package socket

import (
	"context"
	"net"
	"syscall"
)

// Config mirrors the handful of socket options the reactor cares about.
// Zero values mean "use system defaults" except NoDelay, which Options
// defaults to true.
type Config struct {
	// NoDelay disables Nagle's algorithm. HTTP/1.x request/response
	// traffic is latency-sensitive and rarely benefits from Nagle's
	// batching, so this defaults on.
	NoDelay bool

	// RecvBuffer and SendBuffer set SO_RCVBUF/SO_SNDBUF. Zero leaves the
	// kernel default in place.
	RecvBuffer int
	SendBuffer int

	// KeepAlive enables SO_KEEPALIVE so half-open connections (client
	// vanished without a FIN) are eventually reclaimed even if the
	// application-level idle timeout is disabled.
	KeepAlive bool

	// ReusePort enables SO_REUSEPORT on the listening socket, letting
	// every EventLoop bind its own listener on the same port with the
	// kernel load-balancing accepts across them.
	ReusePort bool
}

// DefaultConfig matches Options' defaults: Nagle disabled, keepalive on,
// kernel-default buffer sizes, no port sharing (single-listener mode).
func DefaultConfig() Config {
	return Config{NoDelay: true, KeepAlive: true}
}

// Apply tunes an already-accepted connection. Only TCP_NODELAY is
// treated as a hard failure; buffer and keepalive options are
// best-effort since some kernels/containers restrict them.
func Apply(conn net.Conn, cfg Config) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	rawConn, err := tcpConn.SyscallConn()
	if err != nil {
		return err
	}

	var applyErr error
	err = rawConn.Control(func(fd uintptr) {
		if cfg.NoDelay {
			if e := syscall.SetsockoptInt(int(fd), syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1); e != nil {
				applyErr = e
				return
			}
		}
		if cfg.RecvBuffer > 0 {
			_ = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_RCVBUF, cfg.RecvBuffer)
		}
		if cfg.SendBuffer > 0 {
			_ = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_SNDBUF, cfg.SendBuffer)
		}
		if cfg.KeepAlive {
			_ = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_KEEPALIVE, 1)
		}
		applyPlatformOptions(int(fd), cfg)
	})
	if err != nil {
		return err
	}
	return applyErr
}

// Listen opens a TCP listener at addr, optionally with SO_REUSEPORT set
// via the platform's setReusePort before bind(2) runs. Each EventLoop
// calls this independently when Options.ReusePort is set, so the kernel
// distributes accepts across one listening socket per loop instead of a
// single shared listener and an internal fan-out.
func Listen(addr string, cfg Config) (net.Listener, error) {
	lc := net.ListenConfig{}
	if cfg.ReusePort {
		lc.Control = func(network, address string, c syscall.RawConn) error {
			var ctrlErr error
			err := c.Control(func(fd uintptr) {
				ctrlErr = setReusePort(int(fd))
			})
			if err != nil {
				return err
			}
			return ctrlErr
		}
	}
	return lc.Listen(context.Background(), "tcp", addr)
}
