package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestPreconditionError_Error(t *testing.T) {
	err := NewPreconditionError(PreconditionMissingTemplate, "cannot render %q without a template", "app")
	want := `MISSING_TEMPLATE: cannot render "app" without a template`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestPreconditionError_IsMatchesCode(t *testing.T) {
	err := fmt.Errorf("register: %w", NewPreconditionError(PreconditionAlreadyRegistered, "twice"))

	if !errors.Is(err, &PreconditionError{Code: PreconditionAlreadyRegistered}) {
		t.Error("errors.Is should match on code")
	}
	if errors.Is(err, &PreconditionError{Code: PreconditionNotRegistered}) {
		t.Error("errors.Is should not match a different code")
	}
	if !IsPrecondition(err) {
		t.Error("IsPrecondition = false, want true")
	}
}

func TestRenderError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &RenderError{RootID: "ember123", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("RenderError should unwrap to its cause")
	}
	if got, want := err.Error(), "render root ember123: boom"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if errors.Is(err, ErrInfiniteInvalidation) {
		t.Error("a render fault must not look like an invalidation cycle")
	}
}

func TestInvalidationCycleError(t *testing.T) {
	var err error = &InvalidationCycleError{RendererID: "r1", Loops: 11}

	if !errors.Is(err, ErrInfiniteInvalidation) {
		t.Error("InvalidationCycleError should match ErrInfiniteInvalidation")
	}
	if IsPrecondition(err) {
		t.Error("InvalidationCycleError is not a precondition fault")
	}
	want := "infinite rendering invalidation detected (renderer r1, 11 forced re-entries)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
