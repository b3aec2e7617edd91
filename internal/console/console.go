// Package console is the shared output sink. Every line reaches the
// underlying writer in a single Write call made under the sink's lock.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Console serializes line writes from concurrent goroutines
type Console struct {
	mu    sync.Mutex
	w     io.Writer
	lines int
}

// New creates a console writing to w
func New(w io.Writer) *Console {
	return &Console{w: w}
}

// Println writes line followed by a newline as one write
func (c *Console) Println(line string) error {
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := io.WriteString(c.w, line); err != nil {
		return fmt.Errorf("console write: %w", err)
	}
	c.lines++
	return nil
}

// Printf formats and writes a single line
func (c *Console) Printf(format string, args ...any) error {
	return c.Println(fmt.Sprintf(format, args...))
}

// Lines returns the number of lines written so far
func (c *Console) Lines() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lines
}
