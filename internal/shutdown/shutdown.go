package shutdown

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/psantana5/ctime/internal/logging"
)

type hook struct {
	name string
	fn   func(context.Context) error
}

// Manager runs cleanup hooks at the end of a run
type Manager struct {
	hooks   []hook
	mu      sync.Mutex
	timeout time.Duration
	logger  *logging.Logger
	once    sync.Once
}

// New creates a new shutdown manager
func New(timeout time.Duration, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Manager{
		timeout: timeout,
		logger:  logger,
	}
}

// Register adds a shutdown function
// Functions are called in reverse order (LIFO)
func (m *Manager) Register(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook{name: name, fn: fn})
}

// Shutdown executes all registered shutdown functions once, bounded by the
// manager's timeout. It returns the first error.
func (m *Manager) Shutdown() error {
	var first error
	m.once.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()

		// Execute shutdown functions in reverse order (LIFO)
		for i := len(m.hooks) - 1; i >= 0; i-- {
			h := m.hooks[i]
			if err := h.fn(ctx); err != nil {
				m.logger.Error("shutdown hook failed", map[string]interface{}{
					"hook":  h.name,
					"error": err.Error(),
				})
				if first == nil {
					first = fmt.Errorf("shutdown %s: %w", h.name, err)
				}
			}
		}
	})
	return first
}
