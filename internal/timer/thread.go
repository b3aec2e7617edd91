package timer

import "runtime"

// lockAndRun runs fn with the calling goroutine wired to its OS thread, so
// CurrentTID stays the same for the whole of fn
func lockAndRun(fn func()) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	fn()
}

// RunOnThread runs fn on a dedicated OS thread and passes it the thread id.
// With pin false, fn runs on an ordinary goroutine and the id is 0.
func RunOnThread(pin bool, fn func(tid int)) {
	if !pin {
		fn(0)
		return
	}
	lockAndRun(func() {
		fn(CurrentTID())
	})
}
