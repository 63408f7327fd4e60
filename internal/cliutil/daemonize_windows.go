//go:build windows

package cliutil

import "errors"

// Daemonize is not supported on windows, which has no session/fork model
// matching the original's daemon branch.
func Daemonize(logFile string) error {
	return errors.New("cliutil: daemonize is not supported on windows")
}
