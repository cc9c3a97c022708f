package model

import "fmt"

// Keys accepted by DynamicScope.Get and DynamicScope.Set.
const (
	ScopeView            = "view"
	ScopeOutletState     = "outletState"
	ScopeRootOutletState = "rootOutletState"
	ScopeIsTopLevel      = "isTopLevel"
	ScopeTargetObject    = "targetObject"
)

// DynamicScope is the contextual value bag threaded through a render and its
// descendants. Descendants may read and write it while rendering.
type DynamicScope struct {
	View            View
	OutletState     Reference
	RootOutletState Reference
	IsTopLevel      bool
	TargetObject    any
}

// NewDynamicScope returns a scope for a render entry point.
func NewDynamicScope(view View, outletState, rootOutletState Reference, isTopLevel bool, targetObject any) *DynamicScope {
	return &DynamicScope{
		View:            view,
		OutletState:     outletState,
		RootOutletState: rootOutletState,
		IsTopLevel:      isTopLevel,
		TargetObject:    targetObject,
	}
}

// Child returns a scope for a nested render boundary. It inherits View,
// OutletState, RootOutletState and IsTopLevel; TargetObject always starts
// empty.
func (s *DynamicScope) Child() *DynamicScope {
	return &DynamicScope{
		View:            s.View,
		OutletState:     s.OutletState,
		RootOutletState: s.RootOutletState,
		IsTopLevel:      s.IsTopLevel,
	}
}

// Get returns the value stored under key, or nil for an unknown key.
func (s *DynamicScope) Get(key string) any {
	switch key {
	case ScopeView:
		return s.View
	case ScopeOutletState:
		return s.OutletState
	case ScopeRootOutletState:
		return s.RootOutletState
	case ScopeIsTopLevel:
		return s.IsTopLevel
	case ScopeTargetObject:
		return s.TargetObject
	}
	return nil
}

// Set stores value under key and returns it.
func (s *DynamicScope) Set(key string, value any) (any, error) {
	switch key {
	case ScopeView:
		v, ok := value.(View)
		if !ok && value != nil {
			return nil, fmt.Errorf("scope %s: %T is not a View", key, value)
		}
		s.View = v
	case ScopeOutletState, ScopeRootOutletState:
		ref, ok := value.(Reference)
		if !ok && value != nil {
			return nil, fmt.Errorf("scope %s: %T is not a Reference", key, value)
		}
		if key == ScopeOutletState {
			s.OutletState = ref
		} else {
			s.RootOutletState = ref
		}
	case ScopeIsTopLevel:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("scope %s: %T is not a bool", key, value)
		}
		s.IsTopLevel = b
	case ScopeTargetObject:
		s.TargetObject = value
	default:
		return nil, fmt.Errorf("scope: unknown key %q", key)
	}
	return value, nil
}
