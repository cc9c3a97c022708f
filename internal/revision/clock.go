// Package revision provides a monotonic revision clock and reactive cells
// that advance it when written.
package revision

import (
	"sync"
	"sync/atomic"

	"github.com/me/rerender/pkg/model"
)

// Clock is a monotonically increasing revision counter. It is safe for
// concurrent use.
type Clock struct {
	current atomic.Uint64
}

// NewClock returns a clock at its initial revision.
func NewClock() *Clock {
	c := &Clock{}
	c.current.Store(1)
	return c
}

// Value returns the current revision.
func (c *Clock) Value() model.Revision {
	return model.Revision(c.current.Load())
}

// Validate reports whether nothing has changed since snapshot was taken.
func (c *Clock) Validate(snapshot model.Revision) bool {
	return c.Value() == snapshot
}

// Bump advances the clock and returns the new revision.
func (c *Clock) Bump() model.Revision {
	return model.Revision(c.current.Add(1))
}

// Cell is a reactive value. Writing a different value advances the clock.
type Cell[T comparable] struct {
	mu    sync.RWMutex
	clock *Clock
	value T
	rev   model.Revision
}

// NewCell creates a cell holding initial.
func NewCell[T comparable](clock *Clock, initial T) *Cell[T] {
	return &Cell[T]{clock: clock, value: initial, rev: clock.Value()}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set stores v. The clock only advances when the value changes.
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value == v {
		return
	}
	c.value = v
	c.rev = c.clock.Bump()
}

// Revision returns the clock value of the last write.
func (c *Cell[T]) Revision() model.Revision {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rev
}
