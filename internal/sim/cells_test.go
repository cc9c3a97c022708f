package sim

import (
	"math"
	"reflect"
	"testing"

	"github.com/me/rerender/internal/revision"
)

func TestCells_SetBumpsOnlyOnChange(t *testing.T) {
	clock := revision.NewClock()
	cells, err := NewCells(clock, map[string]any{"count": 1, "title": "x"})
	if err != nil {
		t.Fatalf("NewCells: %v", err)
	}
	start := clock.Value()

	// 1 from YAML and 1.0 from JavaScript are the same value.
	if err := cells.Set("count", 1.0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if clock.Value() != start {
		t.Error("writing an equal value advanced the clock")
	}

	if err := cells.Set("count", int64(2)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if clock.Value() != start+1 {
		t.Errorf("clock = %d, want %d", clock.Value(), start+1)
	}
	if v, _ := cells.Get("count"); v != int64(2) {
		t.Errorf("count = %#v, want int64(2)", v)
	}
}

func TestCells_Errors(t *testing.T) {
	cells, err := NewCells(revision.NewClock(), map[string]any{"a": true})
	if err != nil {
		t.Fatalf("NewCells: %v", err)
	}
	if _, err := cells.Get("missing"); err == nil {
		t.Error("Get of unknown cell succeeded")
	}
	if err := cells.Set("missing", 1); err == nil {
		t.Error("Set of unknown cell succeeded")
	}
	if err := cells.Set("a", map[string]any{}); err == nil {
		t.Error("Set of a map value succeeded")
	}
	if _, err := NewCells(revision.NewClock(), map[string]any{"bad": []any{1}}); err == nil {
		t.Error("NewCells accepted a list value")
	}
}

func TestCells_RejectsNonFiniteNumbers(t *testing.T) {
	clock := revision.NewClock()
	cells, err := NewCells(clock, map[string]any{"x": 1})
	if err != nil {
		t.Fatalf("NewCells: %v", err)
	}
	start := clock.Value()

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if err := cells.Set("x", v); err == nil {
			t.Errorf("Set(%v) succeeded", v)
		}
	}
	if clock.Value() != start {
		t.Errorf("clock = %d after rejected writes, want %d", clock.Value(), start)
	}
	if v, _ := cells.Get("x"); v != int64(1) {
		t.Errorf("x = %#v, want int64(1)", v)
	}
	if _, err := NewCells(revision.NewClock(), map[string]any{"nan": math.NaN()}); err == nil {
		t.Error("NewCells accepted NaN")
	}
}

func TestCells_SnapshotAndNames(t *testing.T) {
	cells, _ := NewCells(revision.NewClock(), map[string]any{"b": 2.5, "a": "x"})
	if got := cells.Names(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Names() = %v", got)
	}
	want := map[string]any{"a": "x", "b": 2.5}
	if got := cells.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("Snapshot() = %v, want %v", got, want)
	}
}
