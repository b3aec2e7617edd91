// Package condvar provides a condition variable whose waits can be bounded
// by a timeout. sync.Cond has no timed wait.
package condvar

import (
	"sync"
	"time"
)

// Cond pairs a Locker with a FIFO of waiters. A waiter is registered while L
// is still held, so a Signal issued after the waiter released L is never lost.
// A Signal with nobody waiting is a no-op, as with sync.Cond.
type Cond struct {
	L sync.Locker

	mu      sync.Mutex // guards waiters
	waiters []chan struct{}
}

// New returns a Cond bound to l
func New(l sync.Locker) *Cond {
	return &Cond{L: l}
}

func (c *Cond) enqueue() chan struct{} {
	ch := make(chan struct{}, 1)
	c.mu.Lock()
	c.waiters = append(c.waiters, ch)
	c.mu.Unlock()
	return ch
}

// dequeue removes ch if it is still queued. It returns true if ch was
// already signaled.
func (c *Cond) dequeue(ch chan struct{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, w := range c.waiters {
		if w == ch {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return false
		}
	}

	// Signal pops and sends under mu, so the token is already buffered
	<-ch
	return true
}

// Wait atomically unlocks L and suspends until signaled, then relocks L.
// L must be held by the caller.
func (c *Cond) Wait() {
	ch := c.enqueue()
	c.L.Unlock()
	<-ch
	c.L.Lock()
}

// WaitTimeout is Wait bounded by timeout. It returns false if the timeout
// expired before a signal arrived. L is held again on return either way.
func (c *Cond) WaitTimeout(timeout time.Duration) bool {
	ch := c.enqueue()
	c.L.Unlock()
	defer c.L.Lock()

	if timeout <= 0 {
		return c.dequeue(ch)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return true
	case <-timer.C:
		return c.dequeue(ch)
	}
}

// WaitFor waits until cond returns true or timeout elapses. cond is evaluated
// with L held. It returns the final value of cond.
func (c *Cond) WaitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for !cond() {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		c.WaitTimeout(remaining)
	}
	return true
}

// Signal wakes the longest-waiting goroutine, if any
func (c *Cond) Signal() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.waiters) == 0 {
		return
	}
	ch := c.waiters[0]
	c.waiters = c.waiters[1:]
	ch <- struct{}{}
}

// Broadcast wakes all waiting goroutines
func (c *Cond) Broadcast() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ch := range c.waiters {
		ch <- struct{}{}
	}
	c.waiters = nil
}

// Waiters returns the number of goroutines currently waiting
func (c *Cond) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}
