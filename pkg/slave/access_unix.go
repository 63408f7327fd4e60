//go:build linux || darwin

package slave

import "golang.org/x/sys/unix"

// unixAccessExecutable checks execPath is executable by the real uid/gid,
// matching the original implementation's access(argp, X_OK) check before
// accepting a CONFIG.
func unixAccessExecutable(execPath string) error {
	return unix.Access(execPath, unix.X_OK)
}
