package render

import (
	"errors"
	"fmt"
	"sync"

	"github.com/me/rerender/pkg/model"
)

// DefaultMaxBacktracks is the number of consecutive reflushes a root may ask
// for before BacktrackBoundary fails it.
const DefaultMaxBacktracks = 10

// RenderStep renders or rerenders one root.
type RenderStep func() error

// Boundary wraps every root visit of a pass. It reports whether the root
// asked to be rendered again before the pass settles. A boundary may observe
// errors but must return them.
type Boundary interface {
	Run(root *RootState, step RenderStep) (reflush bool, err error)
}

// BoundaryFunc adapts a function to Boundary.
type BoundaryFunc func(root *RootState, step RenderStep) (bool, error)

// Run implements Boundary.
func (f BoundaryFunc) Run(root *RootState, step RenderStep) (bool, error) {
	return f(root, step)
}

// PassThrough runs the step and never asks for a reflush.
var PassThrough Boundary = BoundaryFunc(func(_ *RootState, step RenderStep) (bool, error) {
	return false, step()
})

// BacktrackBoundary asks for a reflush when the root's own render advanced
// the revision clock, i.e. the render wrote state it may already have read.
// A root that keeps doing so for more than max consecutive visits fails
// with ErrBacktracking.
type BacktrackBoundary struct {
	clock model.RevisionClock
	max   int

	mu      sync.Mutex
	streaks map[*RootState]int
}

// NewBacktrackBoundary returns a BacktrackBoundary reading clock. limit <= 0
// means DefaultMaxBacktracks.
func NewBacktrackBoundary(clock model.RevisionClock, limit int) *BacktrackBoundary {
	if limit <= 0 {
		limit = DefaultMaxBacktracks
	}
	return &BacktrackBoundary{
		clock:   clock,
		max:     limit,
		streaks: make(map[*RootState]int),
	}
}

// Run implements Boundary.
func (b *BacktrackBoundary) Run(root *RootState, step RenderStep) (bool, error) {
	before := b.clock.Value()
	err := step()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil || b.clock.Validate(before) {
		delete(b.streaks, root)
		return false, err
	}

	b.streaks[root]++
	n := b.streaks[root]
	if n > b.max {
		delete(b.streaks, root)
		return false, &model.RenderError{
			RootID: root.ID(),
			Cause:  fmt.Errorf("%w: %d consecutive rerenders", model.ErrBacktracking, n),
		}
	}
	return true, nil
}

// Observe wraps next so that render faults are attributed to their root and
// handed to report before being returned.
func Observe(next Boundary, report func(root *RootState, err *model.RenderError)) Boundary {
	return BoundaryFunc(func(root *RootState, step RenderStep) (bool, error) {
		reflush, err := next.Run(root, step)
		if err == nil {
			return reflush, nil
		}
		rerr := attribute(root, err)
		report(root, rerr)
		return reflush, rerr
	})
}

func attribute(root *RootState, err error) *model.RenderError {
	var rerr *model.RenderError
	if errors.As(err, &rerr) {
		return rerr
	}
	return &model.RenderError{RootID: root.ID(), Cause: err}
}
