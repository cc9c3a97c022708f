// Package render owns the render roots of a rendering surface and runs them
// to a fixpoint inside environment transactions.
package render

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/me/rerender/internal/scheduler"
	"github.com/me/rerender/pkg/model"
)

// Registry is the set of active renderers a Renderer joins while it has
// roots. *scheduler.Scheduler implements it.
type Registry interface {
	Register(r scheduler.Renderer) error
	Deregister(r scheduler.Renderer) error
}

// Stats counts the work a renderer has done.
type Stats struct {
	Passes        int `json:"passes"`
	Sweeps        int `json:"sweeps"`
	Visits        int `json:"visits"`
	Revalidations int `json:"revalidations"`
	Skipped       int `json:"skipped"`
	Faults        int `json:"faults"`
}

// Renderer owns the ordered render roots of one rendering surface.
type Renderer struct {
	id             string
	env            model.Environment
	rootTemplate   model.Template
	views          *ViewRegistry
	destinedForDOM bool
	destroyed      bool
	roots          []*RootState
	lastRevision   model.Revision

	clock    model.RevisionClock
	registry Registry
	batcher  model.Batcher
	boundary Boundary
	passes   model.PassRecorder
	faults   model.FaultRecorder
	logger   *slog.Logger
	stats    Stats
}

var _ scheduler.Renderer = (*Renderer)(nil)

// Option configures optional Renderer dependencies.
type Option func(*Renderer)

// WithID overrides the generated renderer id.
func WithID(id string) Option {
	return func(r *Renderer) {
		r.id = id
	}
}

// WithViewRegistry shares a view registry between renderers.
func WithViewRegistry(v *ViewRegistry) Option {
	return func(r *Renderer) {
		r.views = v
	}
}

// WithBoundary sets the boundary every root visit runs through.
func WithBoundary(b Boundary) Option {
	return func(r *Renderer) {
		r.boundary = b
	}
}

// WithPassRecorder records every completed pass.
func WithPassRecorder(p model.PassRecorder) Option {
	return func(r *Renderer) {
		r.passes = p
	}
}

// WithFaultRecorder records render faults attributed to a root.
func WithFaultRecorder(f model.FaultRecorder) Option {
	return func(r *Renderer) {
		r.faults = f
	}
}

// WithDestinedForDOM marks the renderer as rendering to a live surface.
func WithDestinedForDOM(v bool) Option {
	return func(r *Renderer) {
		r.destinedForDOM = v
	}
}

// New creates a renderer. rootTemplate renders components passed to
// AppendTo; outlet views bring their own template.
func New(env model.Environment, rootTemplate model.Template, registry Registry, batcher model.Batcher, clock model.RevisionClock, logger *slog.Logger, opts ...Option) *Renderer {
	r := &Renderer{
		id:           "renderer_" + uuid.New().String()[:8],
		env:          env,
		rootTemplate: rootTemplate,
		registry:     registry,
		batcher:      batcher,
		clock:        clock,
		boundary:     PassThrough,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.views == nil {
		r.views = NewViewRegistry()
	}
	r.logger = logger.With("component", "renderer", "renderer_id", r.id)
	return r
}

// NewInert creates a renderer that does not render to a live surface.
func NewInert(env model.Environment, rootTemplate model.Template, registry Registry, batcher model.Batcher, clock model.RevisionClock, logger *slog.Logger, opts ...Option) *Renderer {
	return New(env, rootTemplate, registry, batcher, clock, logger, append(opts, WithDestinedForDOM(false))...)
}

// NewInteractive creates a renderer that renders to a live surface.
func NewInteractive(env model.Environment, rootTemplate model.Template, registry Registry, batcher model.Batcher, clock model.RevisionClock, logger *slog.Logger, opts ...Option) *Renderer {
	return New(env, rootTemplate, registry, batcher, clock, logger, append(opts, WithDestinedForDOM(true))...)
}

// ID returns the renderer id.
func (r *Renderer) ID() string { return r.id }

// DestinedForDOM reports whether the renderer renders to a live surface.
func (r *Renderer) DestinedForDOM() bool { return r.destinedForDOM }

// IsDestroyed reports whether Destroy has been called.
func (r *Renderer) IsDestroyed() bool { return r.destroyed }

// Roots returns the live roots in append order.
func (r *Renderer) Roots() []*RootState {
	return append([]*RootState(nil), r.roots...)
}

// LastRevision returns the clock value recorded after the last pass.
func (r *Renderer) LastRevision() model.Revision { return r.lastRevision }

// Stats returns the renderer's counters.
func (r *Renderer) Stats() Stats { return r.stats }

// Views returns the renderer's view registry.
func (r *Renderer) Views() *ViewRegistry { return r.views }

// AppendOutletView mounts an outlet view into target and renders it.
func (r *Renderer) AppendOutletView(view model.OutletView, target model.Element) error {
	self := NewRootReference(view)
	targetObject := view.OutletState().Controller
	ref := view.ToReference()
	scope := model.NewDynamicScope(nil, ref, ref, true, targetObject)

	root, err := NewRootState(view, r.env, view.Template(), self, target, scope)
	if err != nil {
		return err
	}
	return r.renderRoot(root)
}

// AppendTo mounts a component view into target through the root template
// and renders it.
func (r *Renderer) AppendTo(view model.View, target model.Element) error {
	self := NewRootReference(&RootComponentDefinition{View: view})
	scope := model.NewDynamicScope(nil, model.UndefinedReference, model.UndefinedReference, true, nil)

	root, err := NewRootState(view, r.env, r.rootTemplate, self, target, scope)
	if err != nil {
		return err
	}
	return r.renderRoot(root)
}

// Rerender schedules a revalidation; it never renders synchronously.
func (r *Renderer) Rerender(model.View) {
	r.ScheduleRevalidate()
}

// Register adds view to the view registry.
func (r *Renderer) Register(view model.View) error {
	return r.views.Register(view)
}

// Unregister removes view from the view registry.
func (r *Renderer) Unregister(view model.View) {
	r.views.Unregister(view)
}

// Remove tears view down: it moves to destroying, loses its element, any
// root mounted for it is destroyed, and finally the view is destroyed
// unless that is already under way.
func (r *Renderer) Remove(view model.View) error {
	view.TransitionTo(model.ViewStateDestroying)
	view.SetElement(nil)

	if r.env.IsInteractive() {
		view.Trigger(model.EventDidDestroyElement)
	}

	err := r.CleanupRootFor(view)

	if !view.IsDestroying() {
		err = errors.Join(err, view.Destroy())
	}
	return err
}

// CleanupRootFor destroys and removes every root mounted for view. The
// renderer leaves the registry when its last root goes.
func (r *Renderer) CleanupRootFor(view model.View) error {
	if r.destroyed {
		return nil
	}

	var errs []error
	removed := 0
	// Reverse so removal does not disturb the indexes still to visit.
	for i := len(r.roots) - 1; i >= 0; i-- {
		root := r.roots[i]
		if !root.IsFor(view) {
			continue
		}
		if err := root.Destroy(); err != nil {
			errs = append(errs, err)
		}
		r.roots = append(r.roots[:i], r.roots[i+1:]...)
		removed++
	}

	if removed > 0 && len(r.roots) == 0 {
		if err := r.registry.Deregister(r); err != nil {
			errs = append(errs, err)
		}
	}
	if removed > 0 {
		r.logger.Debug("roots removed", "view_id", view.ID(), "removed", removed, "remaining", len(r.roots))
	}
	return errors.Join(errs...)
}

// Destroy destroys every root in append order and leaves the registry.
// Calling it again does nothing.
func (r *Renderer) Destroy() error {
	if r.destroyed {
		return nil
	}
	r.destroyed = true
	return r.clearAllRoots()
}

func (r *Renderer) clearAllRoots() error {
	roots := r.roots

	var errs []error
	for _, root := range roots {
		if err := root.Destroy(); err != nil {
			errs = append(errs, err)
		}
	}
	r.roots = nil

	if len(roots) > 0 {
		if err := r.registry.Deregister(r); err != nil {
			errs = append(errs, err)
		}
	}
	r.logger.Debug("renderer destroyed", "roots", len(roots))
	return errors.Join(errs...)
}

// GetBounds returns the nodes delimiting view's rendered range.
func (r *Renderer) GetBounds(view model.View) model.BoundsSnapshot {
	b := view.Bounds()
	if b == nil {
		return model.BoundsSnapshot{}
	}
	return model.BoundsSnapshot{
		ParentElement: b.ParentElement(),
		FirstNode:     b.FirstNode(),
		LastNode:      b.LastNode(),
	}
}

// CreateElement creates a host element through the environment.
func (r *Renderer) CreateElement(tagName string) model.Element {
	return r.env.AppendOperations().CreateElement(tagName)
}

type revalidateKey struct {
	r *Renderer
}

// ScheduleRevalidate queues a revalidation on the render queue. Repeated
// calls before it runs collapse into one.
func (r *Renderer) ScheduleRevalidate() {
	r.batcher.ScheduleOnce(model.QueueRender, revalidateKey{r: r}, r.Revalidate)
}

// IsValid reports whether nothing this renderer rendered can have changed
// since its last pass.
func (r *Renderer) IsValid() bool {
	return r.destroyed || len(r.roots) == 0 || r.clock.Validate(r.lastRevision)
}

// Revalidate runs a full pass if the renderer is invalid.
func (r *Renderer) Revalidate() error {
	if r.IsValid() {
		r.stats.Skipped++
		return nil
	}
	r.stats.Revalidations++
	return r.renderRootsTransaction("revalidate")
}

func (r *Renderer) renderRoot(root *RootState) error {
	if r.destroyed {
		return model.NewPreconditionError(model.PreconditionDestroyed,
			"cannot append view %q to a destroyed renderer", root.ID())
	}
	for _, existing := range r.roots {
		if existing.viewID == root.viewID {
			return model.NewPreconditionError(model.PreconditionDuplicateView,
				"view %q already has a render root", root.ID())
		}
	}

	r.roots = append(r.roots, root)
	if len(r.roots) == 1 {
		if err := r.registry.Register(r); err != nil {
			r.roots = nil
			return err
		}
	}
	r.logger.Debug("root appended", "root_id", root.ID(), "roots", len(r.roots))

	return r.renderRootsTransaction("append")
}

// renderRootsTransaction runs a pass and then records the clock value, even
// when the pass fails.
func (r *Renderer) renderRootsTransaction(trigger string) (err error) {
	start := time.Now()
	var sweeps [][]string
	defer func() {
		r.lastRevision = r.clock.Value()
		r.stats.Passes++
		r.recordPass(trigger, sweeps, start, err)
	}()

	sweeps, err = r.renderRoots()
	return err
}

// renderRoots sweeps the roots until no root asks for a reflush. The first
// sweep visits every root; later sweeps only the roots that asked.
func (r *Renderer) renderRoots() ([][]string, error) {
	var sweeps [][]string
	initial := true
	for {
		visited, reflush, err := r.sweep(initial)
		sweeps = append(sweeps, visited)
		if err != nil {
			return sweeps, err
		}
		if !reflush {
			return sweeps, nil
		}
		initial = false
	}
}

// sweep visits the eligible roots inside one transaction. The transaction
// is committed even when a root fails.
func (r *Renderer) sweep(initial bool) (visited []string, globalReflush bool, err error) {
	r.env.Begin()
	defer r.env.Commit()
	r.stats.Sweeps++

	for i := 0; i < len(r.roots); i++ {
		root := r.roots[i]
		shouldReflush := root.shouldReflush

		if !initial && !shouldReflush {
			continue
		}

		root.options.AlwaysRevalidate = shouldReflush
		visited = append(visited, root.ID())
		r.stats.Visits++

		reflush, runErr := r.boundary.Run(root, root.RenderOrRerender)
		if runErr != nil {
			return visited, globalReflush, r.renderFault(root, runErr)
		}
		root.shouldReflush = reflush
		globalReflush = globalReflush || reflush
	}

	r.logger.Debug("sweep", "initial", initial, "visited", len(visited), "reflush", globalReflush)
	return visited, globalReflush, nil
}

func (r *Renderer) renderFault(root *RootState, err error) error {
	if model.IsPrecondition(err) {
		return err
	}
	rerr := attribute(root, err)
	r.stats.Faults++
	r.logger.Error("render fault", "root_id", rerr.RootID, "error", rerr.Cause)

	if r.faults != nil {
		rec := model.FaultRecord{
			RendererID: r.id,
			RootID:     rerr.RootID,
			Kind:       model.FaultRender,
			Message:    rerr.Cause.Error(),
			At:         time.Now().UTC(),
		}
		if ferr := r.faults.RecordFault(context.Background(), rec); ferr != nil {
			r.logger.Error("record fault", "error", ferr)
		}
	}
	return rerr
}

func (r *Renderer) recordPass(trigger string, sweeps [][]string, start time.Time, err error) {
	rec := model.PassRecord{
		RendererID: r.id,
		Trigger:    trigger,
		Sweeps:     sweeps,
		Revision:   r.lastRevision,
		Duration:   time.Since(start),
		StartedAt:  start.UTC(),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	r.logger.Debug("pass complete", "trigger", trigger, "sweeps", len(sweeps), "visits", rec.Visits(), "revision", rec.Revision)

	if r.passes == nil {
		return
	}
	if perr := r.passes.RecordPass(context.Background(), rec); perr != nil {
		r.logger.Error("record pass", "error", perr)
	}
}
