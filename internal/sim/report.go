package sim

import (
	"sort"

	"github.com/me/rerender/internal/render"
	"github.com/me/rerender/pkg/model"
)

// Report is the outcome of a scenario run.
type Report struct {
	Scenario  string         `json:"scenario"`
	Steps     []StepReport   `json:"steps"`
	Renderers []RendererInfo `json:"renderers"`
	Cells     map[string]any `json:"cells"`
}

// StepReport is the outcome of one step.
type StepReport struct {
	Index                int            `json:"index"`
	Revision             model.Revision `json:"revision"`
	Error                string         `json:"error,omitempty"`
	InfiniteInvalidation bool           `json:"infinite_invalidation,omitempty"`
}

// RendererInfo is a snapshot of one renderer.
type RendererInfo struct {
	ID             string         `json:"id"`
	DestinedForDOM bool           `json:"destined_for_dom"`
	Destroyed      bool           `json:"destroyed"`
	Valid          bool           `json:"valid"`
	Registered     bool           `json:"registered"`
	LastRevision   model.Revision `json:"last_revision"`
	Stats          render.Stats   `json:"stats"`
	Roots          []RootInfo     `json:"roots"`
}

// RootInfo is a snapshot of one render root.
type RootInfo struct {
	ID            string          `json:"id"`
	Phase         model.RootPhase `json:"phase"`
	ShouldReflush bool            `json:"should_reflush"`
	Renders       int             `json:"renders"`
	Output        []string        `json:"output"`
	Fault         string          `json:"fault,omitempty"`
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
