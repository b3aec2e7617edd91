//go:build linux

package timer

import "golang.org/x/sys/unix"

// CurrentTID returns the OS thread id of the calling goroutine's thread.
// It is only stable while the goroutine is locked to its thread.
func CurrentTID() int {
	return unix.Gettid()
}
