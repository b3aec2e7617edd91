//go:build !linux

package timer

// CurrentTID returns 0: thread ids are only reported on Linux
func CurrentTID() int {
	return 0
}
