//go:build linux

package socket

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// applyPlatformOptions sets Linux-only keepalive fine-tuning so a dead
// peer is reclaimed well before the default 2-hour kernel probe
// schedule.
func applyPlatformOptions(fd int, cfg Config) {
	if !cfg.KeepAlive {
		return
	}
	_ = syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, unix.TCP_KEEPIDLE, 60)
	_ = syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, unix.TCP_KEEPINTVL, 10)
	_ = syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, unix.TCP_KEEPCNT, 3)
}

// setReusePort sets SO_REUSEPORT so multiple listeners (one per
// EventLoop) can bind the same address with the kernel hashing accepts
// across them.
func setReusePort(fd int) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
}
