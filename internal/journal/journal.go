// Package journal persists render passes and scheduler faults.
package journal

import (
	"context"

	"github.com/me/rerender/pkg/model"
)

// Journal defines the persistence layer for pass and fault records.
type Journal interface {
	model.PassRecorder
	model.FaultRecorder

	ListPasses(ctx context.Context, opts model.ListOptions) ([]model.PassRecord, int, error)
	ListFaults(ctx context.Context, opts model.ListOptions) ([]model.FaultRecord, int, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
