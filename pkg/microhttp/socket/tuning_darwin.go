//go:build darwin

package socket

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// applyPlatformOptions sets SO_NOSIGPIPE, since Darwin (unlike Linux)
// doesn't support MSG_NOSIGNAL on send and would otherwise deliver
// SIGPIPE to the process on a write to a peer that's already closed its
// end.
func applyPlatformOptions(fd int, cfg Config) {
	_ = syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, unix.SO_NOSIGPIPE, 1)
}

// setReusePort sets SO_REUSEPORT, supported on Darwin since it shares
// BSD socket semantics with the rest of the *nix family here.
func setReusePort(fd int) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
}
