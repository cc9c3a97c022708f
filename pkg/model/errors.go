package model

import (
	"errors"
	"fmt"
)

// ErrInfiniteInvalidation is matched by every InvalidationCycleError.
var ErrInfiniteInvalidation = errors.New("infinite rendering invalidation detected")

// ErrBacktracking is the cause of a RenderError raised when a root keeps
// writing state it rendered without settling.
var ErrBacktracking = errors.New("root kept invalidating its own render")

// PreconditionCode identifies which precondition a caller violated.
type PreconditionCode string

const (
	PreconditionMissingTemplate   PreconditionCode = "MISSING_TEMPLATE"
	PreconditionAlreadyRegistered PreconditionCode = "ALREADY_REGISTERED"
	PreconditionNotRegistered     PreconditionCode = "NOT_REGISTERED"
	PreconditionDuplicateView     PreconditionCode = "DUPLICATE_VIEW"
	PreconditionDestroyed         PreconditionCode = "DESTROYED"
)

// PreconditionError is a programming error. It is never retried.
type PreconditionError struct {
	Code    PreconditionCode
	Message string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target is a PreconditionError with the same code.
func (e *PreconditionError) Is(target error) bool {
	t, ok := target.(*PreconditionError)
	return ok && t.Code == e.Code
}

// NewPreconditionError creates a PreconditionError.
func NewPreconditionError(code PreconditionCode, format string, args ...any) *PreconditionError {
	return &PreconditionError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsPrecondition reports whether err wraps a PreconditionError.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// RenderError attributes a render-time fault to the root that raised it.
type RenderError struct {
	RootID string
	Cause  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render root %s: %v", e.RootID, e.Cause)
}

// Unwrap returns the underlying error.
func (e *RenderError) Unwrap() error {
	return e.Cause
}

// InvalidationCycleError is raised when a renderer stays invalid past the
// bounded number of forced batching re-entries. The renderer has already
// been destroyed when this error is returned.
type InvalidationCycleError struct {
	RendererID string
	Loops      int
}

func (e *InvalidationCycleError) Error() string {
	return fmt.Sprintf("%s (renderer %s, %d forced re-entries)", ErrInfiniteInvalidation, e.RendererID, e.Loops)
}

// Is matches ErrInfiniteInvalidation.
func (e *InvalidationCycleError) Is(target error) bool {
	return target == ErrInfiniteInvalidation
}
