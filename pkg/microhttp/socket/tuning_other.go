//go:build !linux && !darwin

package socket

import "errors"

// applyPlatformOptions is a no-op on platforms with no extra tuning
// knobs wired up here.
func applyPlatformOptions(fd int, cfg Config) {}

// errUnsupportedReusePort is returned by setReusePort. On this build
// Listen fails whenever Config.ReusePort is set, so Server.Start returns
// an error when Options.ReusePort is true; there is no automatic fallback
// to a single shared listener.
var errUnsupportedReusePort = errors.New("socket: SO_REUSEPORT not supported on this platform")

func setReusePort(fd int) error {
	return errUnsupportedReusePort
}
