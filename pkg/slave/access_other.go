//go:build !linux && !darwin

package slave

import "os"

// unixAccessExecutable falls back to a file-mode check on platforms
// without access(2); it does not account for the effective uid's actual
// permission to execute, only that some executable bit is set.
func unixAccessExecutable(execPath string) error {
	fi, err := os.Stat(execPath)
	if err != nil {
		return err
	}
	if fi.Mode()&0111 == 0 {
		return os.ErrPermission
	}
	return nil
}
