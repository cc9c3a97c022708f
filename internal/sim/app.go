// Package sim runs scripted scenarios against renderers: reactive cells,
// JavaScript root templates and an in-memory host, all driven by one
// batching engine.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/me/rerender/internal/config"
	"github.com/me/rerender/internal/host"
	"github.com/me/rerender/internal/render"
	"github.com/me/rerender/internal/revision"
	"github.com/me/rerender/internal/runloop"
	"github.com/me/rerender/internal/scheduler"
	"github.com/me/rerender/pkg/model"
)

// ErrNotFound is returned for unknown renderer or view ids.
var ErrNotFound = errors.New("not found")

// Recorder receives pass and fault records. *journal.SQLiteJournal
// implements it.
type Recorder interface {
	model.PassRecorder
	model.FaultRecorder
}

type mount struct {
	spec     RootSpec
	renderer *render.Renderer
	view     model.View
	target   model.Element
}

// App owns the clock, engine, scheduler and renderers of one scenario.
// Outside Start every method runs its work synchronously on the caller's
// goroutine; after Start, work is handed to the engine loop.
type App struct {
	scenario  *Scenario
	cfg       config.Config
	logger    *slog.Logger
	clock     *revision.Clock
	cells     *Cells
	engine    *runloop.Engine
	scheduler *scheduler.Scheduler
	views     *render.ViewRegistry

	renderers []*render.Renderer
	byID      map[string]*render.Renderer
	mounts    []*mount
	running   atomic.Bool

	mu         sync.Mutex
	rootFaults map[string]string
}

// NewApp builds the renderers of sc. rec may be nil.
func NewApp(cfg config.Config, sc *Scenario, rec Recorder, logger *slog.Logger) (*App, error) {
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	a := &App{
		scenario:   sc,
		cfg:        cfg,
		logger:     logger.With("component", "sim", "scenario", sc.Name),
		clock:      revision.NewClock(),
		views:      render.NewViewRegistry(),
		byID:       make(map[string]*render.Renderer),
		rootFaults: make(map[string]string),
	}

	cells, err := NewCells(a.clock, sc.Cells)
	if err != nil {
		return nil, err
	}
	a.cells = cells

	a.engine = runloop.New(runloop.Config{TickInterval: cfg.TickInterval}, logger)
	var schedOpts []scheduler.Option
	if rec != nil {
		schedOpts = append(schedOpts, scheduler.WithFaultRecorder(rec))
	}
	a.scheduler = scheduler.New(scheduler.Config{MaxReflushLoops: cfg.MaxReflushLoops}, logger, schedOpts...)
	a.scheduler.Attach(a.engine)

	boundary := render.PassThrough
	if cfg.DetectBacktracking {
		boundary = render.NewBacktrackBoundary(a.clock, cfg.MaxBacktracks)
	}
	boundary = render.Observe(boundary, a.observeFault)

	for _, spec := range sc.Renderers {
		r, err := a.buildRenderer(spec, boundary, rec, logger)
		if err != nil {
			return nil, err
		}
		a.renderers = append(a.renderers, r)
		a.byID[spec.ID] = r
	}
	return a, nil
}

func (a *App) buildRenderer(spec RendererSpec, boundary render.Boundary, rec Recorder, logger *slog.Logger) (*render.Renderer, error) {
	env := host.NewEnvironment(spec.Interactive)
	scripts := make(map[string]*Script)
	var mounts []*mount

	for _, root := range spec.Roots {
		script, err := CompileScript(root.View, root.Render, root.Destroy)
		if err != nil {
			return nil, err
		}
		m := &mount{spec: root, target: env.Document.CreateElement("div")}
		if root.Outlet != "" {
			tmpl := NewOutletTemplate(script, a.cells, a.engine, a.logger)
			m.view = host.NewOutletView(root.View, tmpl, model.OutletState{Name: root.Outlet})
		} else {
			scripts[root.View] = script
			m.view = host.NewView(root.View)
		}
		mounts = append(mounts, m)
	}

	opts := []render.Option{
		render.WithID(spec.ID),
		render.WithViewRegistry(a.views),
		render.WithBoundary(boundary),
	}
	if rec != nil {
		opts = append(opts, render.WithPassRecorder(rec), render.WithFaultRecorder(rec))
	}
	rootTemplate := NewRootTemplate(scripts, a.cells, a.engine, a.logger)

	var r *render.Renderer
	if spec.Interactive {
		r = render.NewInteractive(env, rootTemplate, a.scheduler, a.engine, a.clock, logger, opts...)
	} else {
		r = render.NewInert(env, rootTemplate, a.scheduler, a.engine, a.clock, logger, opts...)
	}
	for _, m := range mounts {
		m.renderer = r
		a.mounts = append(a.mounts, m)
	}
	return r, nil
}

func (a *App) observeFault(root *render.RootState, err *model.RenderError) {
	a.mu.Lock()
	a.rootFaults[root.ID()] = err.Cause.Error()
	a.mu.Unlock()
}

// Clock returns the scenario's revision clock.
func (a *App) Clock() *revision.Clock { return a.clock }

// Cells returns the scenario's reactive cells.
func (a *App) Cells() *Cells { return a.cells }

// Engine returns the batching engine.
func (a *App) Engine() *runloop.Engine { return a.engine }

// Scheduler returns the renderer registry.
func (a *App) Scheduler() *scheduler.Scheduler { return a.scheduler }

// HasViews reports whether any renderer owns live roots. It is safe to call
// from any goroutine.
func (a *App) HasViews() bool { return a.scheduler.HasViews() }

// Exec runs fn inside one engine cycle and returns every error the cycle
// produced, including invalidation-cycle faults.
func (a *App) Exec(ctx context.Context, fn func() error) error {
	if a.running.Load() {
		return a.engine.Do(ctx, fn)
	}
	return a.engine.Run(fn)
}

// Start runs the engine loop on a new goroutine until ctx is cancelled or
// Stop is called. The loop's exit error is sent on the returned channel.
func (a *App) Start(ctx context.Context) <-chan error {
	a.running.Store(true)
	done := make(chan error, 1)
	go func() {
		done <- a.engine.Start(ctx)
	}()
	return done
}

// Stop stops a started engine loop.
func (a *App) Stop() error {
	return a.engine.Stop()
}

// Mount appends every root of the scenario, in declaration order, inside a
// single cycle.
func (a *App) Mount(ctx context.Context) error {
	return a.Exec(ctx, func() error {
		var errs []error
		for _, m := range a.mounts {
			if err := a.append(m); err != nil {
				errs = append(errs, fmt.Errorf("mount %s: %w", m.spec.View, err))
			}
		}
		return errors.Join(errs...)
	})
}

func (a *App) append(m *mount) error {
	if ov, ok := m.view.(model.OutletView); ok {
		return m.renderer.AppendOutletView(ov, m.target)
	}
	return m.renderer.AppendTo(m.view, m.target)
}

// Apply runs one step inside a single cycle.
func (a *App) Apply(ctx context.Context, step Step) error {
	return a.Exec(ctx, func() error {
		for _, name := range sortedKeys(step.Set) {
			if err := a.cells.Set(name, step.Set[name]); err != nil {
				return err
			}
		}
		if step.Bump {
			a.clock.Bump()
		}
		if step.Remove != "" {
			return a.remove(step.Remove)
		}
		return nil
	})
}

func (a *App) remove(viewID string) error {
	for _, m := range a.mounts {
		if m.view.ID() == viewID {
			return m.renderer.Remove(m.view)
		}
	}
	return fmt.Errorf("view %q: %w", viewID, ErrNotFound)
}

// Bump advances the clock and schedules a revalidation of one renderer.
func (a *App) Bump(ctx context.Context, rendererID string) error {
	r, ok := a.byID[rendererID]
	if !ok {
		return fmt.Errorf("renderer %q: %w", rendererID, ErrNotFound)
	}
	return a.Exec(ctx, func() error {
		a.clock.Bump()
		r.ScheduleRevalidate()
		return nil
	})
}

// Run mounts the scenario and applies every step. Step failures are
// recorded in the report; Run itself only fails if mounting does.
func (a *App) Run(ctx context.Context) (*Report, error) {
	report := &Report{Scenario: a.scenario.Name}
	if err := a.Mount(ctx); err != nil {
		return nil, err
	}
	for i, step := range a.scenario.Steps {
		sr := StepReport{Index: i}
		if err := a.Apply(ctx, step); err != nil {
			sr.Error = err.Error()
			sr.InfiniteInvalidation = errors.Is(err, model.ErrInfiniteInvalidation)
			a.logger.Warn("step failed", "step", i, "error", err)
		}
		sr.Revision = a.clock.Value()
		report.Steps = append(report.Steps, sr)
	}

	renderers, err := a.Renderers(ctx)
	if err != nil {
		return nil, err
	}
	report.Renderers = renderers
	report.Cells = a.cells.Snapshot()
	return report, nil
}

// Renderers returns a snapshot of every renderer.
func (a *App) Renderers(ctx context.Context) ([]RendererInfo, error) {
	var infos []RendererInfo
	err := a.inspect(ctx, func() {
		for _, r := range a.renderers {
			infos = append(infos, a.describe(r))
		}
	})
	return infos, err
}

// Renderer returns a snapshot of one renderer.
func (a *App) Renderer(ctx context.Context, id string) (RendererInfo, error) {
	r, ok := a.byID[id]
	if !ok {
		return RendererInfo{}, fmt.Errorf("renderer %q: %w", id, ErrNotFound)
	}
	var info RendererInfo
	err := a.inspect(ctx, func() { info = a.describe(r) })
	return info, err
}

// inspect reads renderer state on the goroutine that owns it.
func (a *App) inspect(ctx context.Context, fn func()) error {
	if !a.running.Load() {
		fn()
		return nil
	}
	return a.engine.Do(ctx, func() error {
		fn()
		return nil
	})
}

func (a *App) describe(r *render.Renderer) RendererInfo {
	info := RendererInfo{
		ID:             r.ID(),
		DestinedForDOM: r.DestinedForDOM(),
		Destroyed:      r.IsDestroyed(),
		Valid:          r.IsValid(),
		Registered:     a.scheduler.IsRegistered(r),
		LastRevision:   r.LastRevision(),
		Stats:          r.Stats(),
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, root := range r.Roots() {
		ri := RootInfo{
			ID:            root.ID(),
			Phase:         root.Phase(),
			ShouldReflush: root.ShouldReflush(),
			Fault:         a.rootFaults[root.ID()],
		}
		if res, ok := root.Result().(*ScriptResult); ok {
			ri.Output = append([]string(nil), res.Output...)
			ri.Renders = res.Renders
		}
		info.Roots = append(info.Roots, ri)
	}
	return info
}

// Close destroys every renderer and clears the scheduler.
func (a *App) Close() error {
	var errs []error
	for _, r := range a.renderers {
		if err := r.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("destroy %s: %w", r.ID(), err))
		}
	}
	a.scheduler.Reset()
	return errors.Join(errs...)
}
