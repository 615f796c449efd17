// Package session tracks the run currently being simulated so that logging
// and storage can tag their output with it.
package session

import (
	"log/slog"
	"sync"

	"github.com/OCAP2/combatsim/pkg/core"
)

// Context holds the current run and step
type Context struct {
	mu   sync.RWMutex
	run  *core.Run
	step int
}

// NewContext creates a Context with no run loaded
func NewContext() *Context {
	return &Context{
		run: &core.Run{Scenario: "No run loaded"},
	}
}

// GetRun returns the current run
func (c *Context) GetRun() *core.Run {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.run
}

// SetRun sets the current run and resets the step counter
func (c *Context) SetRun(run *core.Run) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.run = run
	c.step = 0
}

// Step returns the last completed step
func (c *Context) Step() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.step
}

// SetStep records the last completed step
func (c *Context) SetStep(step int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step = step
}

// LogAttrs returns the run id and step as log attributes. It is meant to be
// used as a logging.ContextProvider.
func (c *Context) LogAttrs() []slog.Attr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.run == nil || c.run.UUID == "" {
		return nil
	}
	return []slog.Attr{
		slog.String("run", c.run.UUID),
		slog.Int("step", c.step),
	}
}
