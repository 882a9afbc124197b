//go:build windows

package daemon

import "os"

// processExists is a best-effort probe on Windows, where signal 0 is not
// available.
func processExists(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	defer proc.Release() //nolint:errcheck
	return true
}
