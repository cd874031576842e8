//go:build !unix

package shellrun

import "os/exec"

// terminatingSignal is unsupported on platforms without POSIX signals.
func terminatingSignal(*exec.ExitError) (string, bool) {
	return "", false
}
