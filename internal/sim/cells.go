package sim

import (
	"fmt"
	"math"
	"sort"

	"github.com/me/rerender/internal/revision"
)

// Cells is a fixed set of named reactive cells sharing one clock.
type Cells struct {
	cells map[string]*revision.Cell[any]
}

// NewCells creates a cell per entry of initial.
func NewCells(clock *revision.Clock, initial map[string]any) (*Cells, error) {
	c := &Cells{cells: make(map[string]*revision.Cell[any], len(initial))}
	for name, v := range initial {
		nv, err := normalize(v)
		if err != nil {
			return nil, fmt.Errorf("cell %q: %w", name, err)
		}
		c.cells[name] = revision.NewCell[any](clock, nv)
	}
	return c, nil
}

// Get returns the value of the named cell.
func (c *Cells) Get(name string) (any, error) {
	cell, ok := c.cells[name]
	if !ok {
		return nil, fmt.Errorf("unknown cell %q", name)
	}
	return cell.Get(), nil
}

// Set writes the named cell. The clock advances only if the value changes.
func (c *Cells) Set(name string, v any) error {
	cell, ok := c.cells[name]
	if !ok {
		return fmt.Errorf("unknown cell %q", name)
	}
	nv, err := normalize(v)
	if err != nil {
		return fmt.Errorf("cell %q: %w", name, err)
	}
	cell.Set(nv)
	return nil
}

// Snapshot returns every cell value.
func (c *Cells) Snapshot() map[string]any {
	out := make(map[string]any, len(c.cells))
	for name, cell := range c.cells {
		out[name] = cell.Get()
	}
	return out
}

// Names returns the cell names in sorted order.
func (c *Cells) Names() []string {
	names := make([]string, 0, len(c.cells))
	for name := range c.cells {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// normalize maps YAML and JavaScript scalars onto one representation per
// kind so equal values compare equal. Only scalars are accepted.
func normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil, bool, string, int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float32:
		return normalize(float64(x))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("unsupported non-finite number %v", x)
		}
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x), nil
		}
		return x, nil
	default:
		return nil, fmt.Errorf("unsupported value of type %T", v)
	}
}
