package model

import (
	"context"
	"time"
)

// PassRecord describes one full render pass of a renderer.
type PassRecord struct {
	ID         int64         `json:"id,omitempty"`
	RendererID string        `json:"renderer_id"`
	Trigger    string        `json:"trigger"`
	Sweeps     [][]string    `json:"sweeps"`
	Revision   Revision      `json:"revision"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
}

// Visits returns the total number of root visits across all sweeps.
func (p PassRecord) Visits() int {
	n := 0
	for _, sweep := range p.Sweeps {
		n += len(sweep)
	}
	return n
}

// FaultKind categorizes a recorded fault.
type FaultKind string

const (
	FaultInvalidationCycle FaultKind = "invalidation_cycle"
	FaultRender            FaultKind = "render"
)

// FaultRecord describes a fault observed by the scheduler or a render
// boundary.
type FaultRecord struct {
	ID         int64     `json:"id,omitempty"`
	RendererID string    `json:"renderer_id"`
	RootID     string    `json:"root_id,omitempty"`
	Kind       FaultKind `json:"kind"`
	Message    string    `json:"message"`
	Loops      int       `json:"loops,omitempty"`
	At         time.Time `json:"at"`
}

// PassRecorder persists render pass records.
type PassRecorder interface {
	RecordPass(ctx context.Context, p PassRecord) error
}

// FaultRecorder persists fault records.
type FaultRecorder interface {
	RecordFault(ctx context.Context, f FaultRecord) error
}
