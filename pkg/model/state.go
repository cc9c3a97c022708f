package model

// RootPhase represents the lifecycle state of a render root.
type RootPhase string

const (
	RootPhaseUnrendered RootPhase = "UNRENDERED"
	RootPhaseRendered   RootPhase = "RENDERED"
	RootPhaseDestroyed  RootPhase = "DESTROYED"
)

// String returns the string representation of the root phase.
func (p RootPhase) String() string {
	return string(p)
}

// IsTerminal returns true if no further render may happen in this phase.
func (p RootPhase) IsTerminal() bool {
	return p == RootPhaseDestroyed
}

// ValidRootTransitions defines the allowed phase transitions for roots.
// Rendered roots stay rendered across rerenders.
var ValidRootTransitions = map[RootPhase][]RootPhase{
	RootPhaseUnrendered: {RootPhaseRendered, RootPhaseDestroyed},
	RootPhaseRendered:   {RootPhaseRendered, RootPhaseDestroyed},
}

// CanTransitionTo returns true if moving from the current phase to next is valid.
func (p RootPhase) CanTransitionTo(next RootPhase) bool {
	for _, allowed := range ValidRootTransitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}
