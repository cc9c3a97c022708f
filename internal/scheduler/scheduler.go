// Package scheduler tracks the renderers that own live roots and drives
// their revalidation from the batching engine's begin and end events.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/me/rerender/internal/runloop"
	"github.com/me/rerender/pkg/model"
)

// Renderer is the part of a renderer the scheduler drives.
type Renderer interface {
	ID() string
	ScheduleRevalidate()
	IsValid() bool
	Destroy() error
}

// Config holds scheduler configuration.
type Config struct {
	// MaxReflushLoops bounds the forced re-entries a cycle may make while
	// some renderer stays invalid. The counter is shared by all renderers.
	MaxReflushLoops int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{MaxReflushLoops: 10}
}

// Scheduler is the registry of active renderers plus the shared re-entry
// counter. It is owned by the application and attached to one engine.
type Scheduler struct {
	config    Config
	logger    *slog.Logger
	renderers []Renderer
	loops     int
	hasViews  atomic.Bool
	faults    model.FaultRecorder
}

// Option configures optional Scheduler dependencies.
type Option func(*Scheduler)

// WithFaultRecorder records invalidation-cycle faults.
func WithFaultRecorder(r model.FaultRecorder) Option {
	return func(s *Scheduler) {
		s.faults = r
	}
}

// New creates an empty scheduler.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Scheduler {
	if cfg.MaxReflushLoops <= 0 {
		cfg.MaxReflushLoops = DefaultConfig().MaxReflushLoops
	}
	s := &Scheduler{
		config: cfg,
		logger: logger.With("component", "scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach wires the scheduler to the engine's begin and end events.
func (s *Scheduler) Attach(e *runloop.Engine) {
	e.OnBegin(s.Begin)
	e.OnEnd(s.End)
}

// Register adds r to the active set.
func (s *Scheduler) Register(r Renderer) error {
	if s.indexOf(r) != -1 {
		return model.NewPreconditionError(model.PreconditionAlreadyRegistered,
			"cannot register the same renderer twice (%s)", r.ID())
	}
	s.renderers = append(s.renderers, r)
	s.hasViews.Store(true)
	s.logger.Debug("renderer registered", "renderer_id", r.ID(), "active", len(s.renderers))
	return nil
}

// Deregister removes r from the active set.
func (s *Scheduler) Deregister(r Renderer) error {
	i := s.indexOf(r)
	if i == -1 {
		return model.NewPreconditionError(model.PreconditionNotRegistered,
			"cannot deregister unknown renderer %s", r.ID())
	}
	s.renderers = append(s.renderers[:i], s.renderers[i+1:]...)
	s.hasViews.Store(len(s.renderers) > 0)
	s.logger.Debug("renderer deregistered", "renderer_id", r.ID(), "active", len(s.renderers))
	return nil
}

func (s *Scheduler) indexOf(r Renderer) int {
	for i, existing := range s.renderers {
		if existing == r {
			return i
		}
	}
	return -1
}

// HasViews reports whether any renderer is active. Safe from any goroutine.
func (s *Scheduler) HasViews() bool {
	return s.hasViews.Load()
}

// IsRegistered reports whether r is in the active set.
func (s *Scheduler) IsRegistered(r Renderer) bool {
	return s.indexOf(r) != -1
}

// Renderers returns the active renderers in registration order.
func (s *Scheduler) Renderers() []Renderer {
	return append([]Renderer(nil), s.renderers...)
}

// Loops returns the current value of the shared re-entry counter.
func (s *Scheduler) Loops() int {
	return s.loops
}

// Reset forgets every renderer and zeroes the counter. Renderers are not
// destroyed.
func (s *Scheduler) Reset() {
	s.renderers = nil
	s.loops = 0
	s.hasViews.Store(false)
}

// Begin asks every active renderer to schedule a revalidation.
func (s *Scheduler) Begin() error {
	for _, r := range s.Renderers() {
		r.ScheduleRevalidate()
	}
	return nil
}

// End forces further batching cycles while any renderer is invalid. Once
// the shared counter exceeds MaxReflushLoops the offending renderer is
// destroyed and an InvalidationCycleError is returned.
func (s *Scheduler) End(reenter func() error) error {
	for {
		r := s.firstInvalid()
		if r == nil {
			s.loops = 0
			return nil
		}

		if s.loops > s.config.MaxReflushLoops {
			return s.fault(r)
		}

		s.loops++
		s.logger.Warn("renderer still invalid; forcing re-entry",
			"renderer_id", r.ID(), "loops", s.loops)
		if err := reenter(); err != nil {
			return err
		}
	}
}

func (s *Scheduler) firstInvalid() Renderer {
	for _, r := range s.renderers {
		if !r.IsValid() {
			return r
		}
	}
	return nil
}

func (s *Scheduler) fault(r Renderer) error {
	loops := s.loops
	s.loops = 0

	fault := &model.InvalidationCycleError{RendererID: r.ID(), Loops: loops}
	s.logger.Error("infinite rendering invalidation detected",
		"renderer_id", r.ID(), "loops", loops)

	destroyErr := r.Destroy()
	if destroyErr != nil {
		s.logger.Error("destroy invalid renderer", "renderer_id", r.ID(), "error", destroyErr)
	}

	if s.faults != nil {
		rec := model.FaultRecord{
			RendererID: r.ID(),
			Kind:       model.FaultInvalidationCycle,
			Message:    fault.Error(),
			Loops:      loops,
			At:         time.Now().UTC(),
		}
		if err := s.faults.RecordFault(context.Background(), rec); err != nil {
			s.logger.Error("record fault", "renderer_id", r.ID(), "error", err)
		}
	}

	if destroyErr != nil {
		return errors.Join(fault, destroyErr)
	}
	return fault
}
