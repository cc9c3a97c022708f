package model

import "testing"

type stubView struct {
	View
	id string
}

func (v *stubView) ID() string { return v.id }

func TestDynamicScope_ChildInheritsAllButTargetObject(t *testing.T) {
	view := &stubView{id: "v1"}
	outlet := NewConstReference("outlet")
	root := NewConstReference("root")

	targets := []any{nil, "controller", struct{ Name string }{"ctrl"}}
	for _, target := range targets {
		parent := NewDynamicScope(view, outlet, root, true, target)
		child := parent.Child()

		if child == parent {
			t.Fatal("Child returned the parent scope")
		}
		if child.View != parent.View {
			t.Errorf("child.View = %v, want %v", child.View, parent.View)
		}
		if child.OutletState != parent.OutletState {
			t.Errorf("child.OutletState not inherited")
		}
		if child.RootOutletState != parent.RootOutletState {
			t.Errorf("child.RootOutletState not inherited")
		}
		if child.IsTopLevel != parent.IsTopLevel {
			t.Errorf("child.IsTopLevel = %v, want %v", child.IsTopLevel, parent.IsTopLevel)
		}
		if child.TargetObject != nil {
			t.Errorf("child.TargetObject = %v, want nil (parent had %v)", child.TargetObject, target)
		}
	}
}

func TestDynamicScope_ChildIsIndependent(t *testing.T) {
	parent := NewDynamicScope(nil, UndefinedReference, UndefinedReference, true, nil)
	child := parent.Child()

	if _, err := child.Set(ScopeIsTopLevel, false); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !parent.IsTopLevel {
		t.Error("writing the child changed the parent")
	}
}

func TestDynamicScope_GetSet(t *testing.T) {
	s := NewDynamicScope(nil, UndefinedReference, UndefinedReference, false, nil)
	ref := NewConstReference(42)

	tests := []struct {
		key   string
		value any
	}{
		{ScopeView, &stubView{id: "v2"}},
		{ScopeOutletState, ref},
		{ScopeRootOutletState, ref},
		{ScopeIsTopLevel, true},
		{ScopeTargetObject, "target"},
	}
	for _, tt := range tests {
		got, err := s.Set(tt.key, tt.value)
		if err != nil {
			t.Fatalf("Set(%q): %v", tt.key, err)
		}
		if got != tt.value {
			t.Errorf("Set(%q) returned %v, want %v", tt.key, got, tt.value)
		}
		if v := s.Get(tt.key); v != tt.value {
			t.Errorf("Get(%q) = %v, want %v", tt.key, v, tt.value)
		}
	}
}

func TestDynamicScope_SetRejectsBadValues(t *testing.T) {
	s := NewDynamicScope(nil, nil, nil, false, nil)

	if _, err := s.Set("missing", 1); err == nil {
		t.Error("expected error for unknown key")
	}
	if _, err := s.Set(ScopeIsTopLevel, "yes"); err == nil {
		t.Error("expected error for non-bool isTopLevel")
	}
	if _, err := s.Set(ScopeOutletState, 3); err == nil {
		t.Error("expected error for non-Reference outletState")
	}
	if s.Get("missing") != nil {
		t.Error("Get of unknown key should be nil")
	}
}
