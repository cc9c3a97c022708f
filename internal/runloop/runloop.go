// Package runloop is a batching engine: work runs inside cycles that fire
// begin hooks, flush named queues in a fixed order, then fire end hooks.
//
// An Engine is owned by one goroutine. Other goroutines hand work to a
// started engine through Submit and Do.
package runloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/me/rerender/pkg/model"
)

// Queue names flushed by default, in flush order.
const (
	QueueActions     = "actions"
	QueueRender      = model.QueueRender
	QueueAfterRender = "afterRender"
	QueueDestroy     = "destroy"
)

// ErrNotRunning is returned by Do and Submit when the engine loop has exited.
var ErrNotRunning = errors.New("runloop: engine is not running")

// ErrAlreadyStarted is returned by Start on an engine whose loop already ran
// or that was stopped before it started.
var ErrAlreadyStarted = errors.New("runloop: engine already started or stopped")

// Config holds engine configuration.
type Config struct {
	Queues       []string
	TickInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Queues:       []string{QueueActions, QueueRender, QueueAfterRender, QueueDestroy},
		TickInterval: 16 * time.Millisecond,
	}
}

// BeginHook runs at the start of every cycle, including forced re-entries.
type BeginHook func() error

// EndHook runs once a cycle's queues are drained. reenter runs one more
// cycle (begin hooks and a flush, no end hooks) synchronously.
type EndHook func(reenter func() error) error

type task struct {
	key any
	fn  func() error
}

type submission struct {
	fn     func() error
	result chan error
}

type onceKey struct {
	queue string
	key   any
}

// Engine implements model.Batcher.
type Engine struct {
	config    Config
	logger    *slog.Logger
	order     []string
	queues    map[string][]task
	pending   map[onceKey]struct{}
	begin     []BeginHook
	end       []EndHook
	depth     int
	cycles    uint64
	reentries uint64

	submitCh chan submission
	stopCh   chan struct{}
	doneCh   chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
}

var _ model.Batcher = (*Engine)(nil)

// New creates an engine with no hooks.
func New(cfg Config, logger *slog.Logger) *Engine {
	if len(cfg.Queues) == 0 {
		cfg.Queues = DefaultConfig().Queues
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}
	e := &Engine{
		config:   cfg,
		logger:   logger.With("component", "runloop"),
		order:    append([]string(nil), cfg.Queues...),
		queues:   make(map[string][]task),
		pending:  make(map[onceKey]struct{}),
		submitCh: make(chan submission),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	return e
}

// OnBegin registers a begin hook.
func (e *Engine) OnBegin(h BeginHook) {
	e.begin = append(e.begin, h)
}

// OnEnd registers an end hook.
func (e *Engine) OnEnd(h EndHook) {
	e.end = append(e.end, h)
}

// Schedule appends fn to queue. Unknown queues are flushed after the
// configured ones, in first-use order.
func (e *Engine) Schedule(queue string, fn func() error) {
	e.ensureQueue(queue)
	e.queues[queue] = append(e.queues[queue], task{fn: fn})
}

// ScheduleOnce appends fn to queue unless a task with the same key is
// already pending on that queue. key must be comparable.
func (e *Engine) ScheduleOnce(queue string, key any, fn func() error) {
	k := onceKey{queue: queue, key: key}
	if _, ok := e.pending[k]; ok {
		return
	}
	e.ensureQueue(queue)
	e.pending[k] = struct{}{}
	e.queues[queue] = append(e.queues[queue], task{key: key, fn: fn})
}

func (e *Engine) ensureQueue(queue string) {
	if _, ok := e.queues[queue]; ok {
		return
	}
	for _, name := range e.order {
		if name == queue {
			return
		}
	}
	e.order = append(e.order, queue)
}

// Pending returns the number of queued tasks.
func (e *Engine) Pending() int {
	n := 0
	for _, q := range e.queues {
		n += len(q)
	}
	return n
}

// InCycle reports whether a cycle is open.
func (e *Engine) InCycle() bool {
	return e.depth > 0
}

// Cycles returns the number of top-level cycles run.
func (e *Engine) Cycles() uint64 {
	return e.cycles
}

// Reentries returns the number of forced re-entries requested by end hooks.
func (e *Engine) Reentries() uint64 {
	return e.reentries
}

// Run executes fn inside a new cycle. Called while a cycle is open, Run
// joins that cycle instead. End hooks run even if fn or the flush fails;
// all errors are returned joined.
func (e *Engine) Run(fn func() error) error {
	if e.depth > 0 {
		return call(fn)
	}
	e.cycles++
	err := e.cycle(fn)
	for _, h := range e.end {
		if hookErr := h(e.reenter); hookErr != nil {
			err = errors.Join(err, hookErr)
		}
	}
	return err
}

// Tick runs one empty cycle.
func (e *Engine) Tick() error {
	return e.Run(nil)
}

func (e *Engine) reenter() error {
	e.reentries++
	e.logger.Debug("forced re-entry", "cycle", e.cycles, "reentries", e.reentries)
	return e.cycle(nil)
}

func (e *Engine) cycle(fn func() error) error {
	e.depth++
	defer func() { e.depth-- }()

	var errs []error
	for _, h := range e.begin {
		if err := h(); err != nil {
			errs = append(errs, fmt.Errorf("begin hook: %w", err))
		}
	}
	if err := call(fn); err != nil {
		errs = append(errs, err)
	}
	if err := e.flush(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// flush drains the queues in order. After each task, flushing restarts from
// the first queue that has work, so earlier queues always settle first. A
// failing task stops the flush; the remaining tasks stay queued.
func (e *Engine) flush() error {
	for {
		name, ok := e.nextQueue()
		if !ok {
			return nil
		}
		t := e.queues[name][0]
		e.queues[name] = e.queues[name][1:]
		if t.key != nil {
			delete(e.pending, onceKey{queue: name, key: t.key})
		}
		if err := t.fn(); err != nil {
			return fmt.Errorf("flush %s: %w", name, err)
		}
	}
}

func (e *Engine) nextQueue() (string, bool) {
	for _, name := range e.order {
		if len(e.queues[name]) > 0 {
			return name, true
		}
	}
	return "", false
}

func call(fn func() error) error {
	if fn == nil {
		return nil
	}
	return fn()
}

// Start runs the engine loop on the calling goroutine: submitted work and a
// periodic tick each run in their own cycle. Blocks until ctx is cancelled
// or Stop is called. An engine loop runs at most once.
func (e *Engine) Start(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	e.logger.Info("runloop started", "tick_interval", e.config.TickInterval)
	ticker := time.NewTicker(e.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("runloop stopping (context cancelled)")
			close(e.doneCh)
			return ctx.Err()
		case <-e.stopCh:
			e.logger.Info("runloop stopping (stop called)")
			close(e.doneCh)
			return nil
		case s := <-e.submitCh:
			err := e.Run(s.fn)
			if s.result != nil {
				s.result <- err
			} else if err != nil {
				e.logger.Error("cycle error", "error", err)
			}
		case <-ticker.C:
			if err := e.Tick(); err != nil {
				e.logger.Error("tick error", "error", err)
			}
		}
	}
}

// Stop shuts the loop down and waits for the current cycle to finish. It is
// safe to call more than once, and returns at once if the loop never started.
func (e *Engine) Stop() error {
	e.stopOnce.Do(func() { close(e.stopCh) })
	if e.started.CompareAndSwap(false, true) {
		close(e.doneCh)
		return nil
	}
	<-e.doneCh
	return nil
}

// Submit hands fn to the running loop. Errors from the cycle are logged.
func (e *Engine) Submit(ctx context.Context, fn func() error) error {
	return e.send(ctx, submission{fn: fn})
}

// Do runs fn inside a cycle on the loop goroutine and waits for the cycle to
// finish, returning every error the cycle produced.
func (e *Engine) Do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	if err := e.send(ctx, submission{fn: fn, result: result}); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) send(ctx context.Context, s submission) error {
	select {
	case e.submitCh <- s:
		return nil
	case <-e.doneCh:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}
