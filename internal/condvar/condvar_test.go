package condvar

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForWaiters(t *testing.T, c *Cond, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return c.Waiters() == n }, time.Second, time.Millisecond)
}

func TestWaitTimeoutExpires(t *testing.T) {
	var mu sync.Mutex
	c := New(&mu)

	mu.Lock()
	start := time.Now()
	ok := c.WaitTimeout(10 * time.Millisecond)
	elapsed := time.Since(start)
	mu.Unlock()

	assert.False(t, ok)
	assert.GreaterOrEqual(t, elapsed, 10*time.Millisecond)
	assert.Equal(t, 0, c.Waiters())
}

func TestWaitTimeoutZero(t *testing.T) {
	var mu sync.Mutex
	c := New(&mu)

	mu.Lock()
	ok := c.WaitTimeout(0)
	mu.Unlock()

	assert.False(t, ok)
	assert.Equal(t, 0, c.Waiters())
}

func TestSignalWakesWaiter(t *testing.T) {
	var mu sync.Mutex
	c := New(&mu)

	result := make(chan bool, 1)
	go func() {
		mu.Lock()
		defer mu.Unlock()
		result <- c.WaitTimeout(5 * time.Second)
	}()

	waitForWaiters(t, c, 1)
	c.Signal()

	select {
	case ok := <-result:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not woken by Signal")
	}
}

func TestSignalWithoutWaiterIsLost(t *testing.T) {
	var mu sync.Mutex
	c := New(&mu)

	c.Signal()

	mu.Lock()
	ok := c.WaitTimeout(5 * time.Millisecond)
	mu.Unlock()

	assert.False(t, ok)
}

func TestSignalWakesOldestFirst(t *testing.T) {
	var mu sync.Mutex
	c := New(&mu)

	order := make(chan int, 2)
	for i := 1; i <= 2; i++ {
		i := i
		go func() {
			mu.Lock()
			defer mu.Unlock()
			c.Wait()
			order <- i
		}()
		waitForWaiters(t, c, i)
	}

	c.Signal()
	assert.Equal(t, 1, <-order)
	c.Signal()
	assert.Equal(t, 2, <-order)
}

func TestBroadcastWakesAll(t *testing.T) {
	var mu sync.Mutex
	c := New(&mu)

	const n = 4
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mu.Lock()
			defer mu.Unlock()
			c.Wait()
		}()
	}

	waitForWaiters(t, c, n)
	c.Broadcast()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast did not wake all waiters")
	}
}

func TestWaitForPredicate(t *testing.T) {
	var mu sync.Mutex
	c := New(&mu)
	ready := false

	go func() {
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		ready = true
		mu.Unlock()
		c.Signal()
	}()

	mu.Lock()
	ok := c.WaitFor(2*time.Second, func() bool { return ready })
	mu.Unlock()

	assert.True(t, ok)
}

func TestWaitForPredicateTimesOut(t *testing.T) {
	var mu sync.Mutex
	c := New(&mu)

	mu.Lock()
	ok := c.WaitFor(5*time.Millisecond, func() bool { return false })
	mu.Unlock()

	assert.False(t, ok)
}
