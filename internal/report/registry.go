package report

import (
	"sync"
	"time"
)

// Entry is a thread that gave up on the reporting role
type Entry struct {
	Thread  ThreadID      `json:"thread"`
	Elapsed time.Duration `json:"elapsed_ns"`
	Waited  time.Duration `json:"waited_ns"`
}

// Registry is an append-only, ordered list of threads that exceeded their
// wait budget. Only the timer's fallback branch appends to it.
type Registry struct {
	entries []Entry
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Record appends the thread of r
func (g *Registry) Record(r *Result) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entries = append(g.entries, Entry{
		Thread:  r.Thread,
		Elapsed: r.Duration,
		Waited:  r.Wait,
	})
}

// Entries returns a copy of the entries in insertion order
func (g *Registry) Entries() []Entry {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Entry, len(g.entries))
	copy(out, g.entries)
	return out
}

// Threads returns the recorded thread ids in insertion order
func (g *Registry) Threads() []ThreadID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]ThreadID, len(g.entries))
	for i, e := range g.entries {
		ids[i] = e.Thread
	}
	return ids
}

// Len returns the number of entries
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}
