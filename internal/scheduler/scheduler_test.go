package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/me/rerender/internal/runloop"
	"github.com/me/rerender/pkg/model"
)

// fakeRenderer is a Renderer whose validity is scripted by the test.
type fakeRenderer struct {
	id        string
	sched     *Scheduler
	valid     func() bool
	scheduled int
	destroyed int
}

func (f *fakeRenderer) ID() string          { return f.id }
func (f *fakeRenderer) ScheduleRevalidate() { f.scheduled++ }
func (f *fakeRenderer) IsValid() bool {
	if f.destroyed > 0 || f.valid == nil {
		return true
	}
	return f.valid()
}
func (f *fakeRenderer) Destroy() error {
	f.destroyed++
	if f.destroyed == 1 && f.sched.IsRegistered(f) {
		return f.sched.Deregister(f)
	}
	return nil
}

type faultSink struct {
	faults []model.FaultRecord
}

func (s *faultSink) RecordFault(_ context.Context, f model.FaultRecord) error {
	s.faults = append(s.faults, f)
	return nil
}

func testScheduler(t *testing.T, opts ...Option) *Scheduler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(DefaultConfig(), logger, opts...)
}

func TestRegister_Deregister(t *testing.T) {
	s := testScheduler(t)
	a := &fakeRenderer{id: "a", sched: s}
	b := &fakeRenderer{id: "b", sched: s}

	if s.HasViews() {
		t.Fatal("HasViews() = true on empty scheduler")
	}
	if err := s.Register(a); err != nil {
		t.Fatalf("Register(a): %v", err)
	}
	if err := s.Register(b); err != nil {
		t.Fatalf("Register(b): %v", err)
	}
	if !s.HasViews() {
		t.Error("HasViews() = false after Register")
	}

	err := s.Register(a)
	if !errors.Is(err, &model.PreconditionError{Code: model.PreconditionAlreadyRegistered}) {
		t.Errorf("second Register(a) = %v, want ALREADY_REGISTERED", err)
	}

	if err := s.Deregister(a); err != nil {
		t.Fatalf("Deregister(a): %v", err)
	}
	if !s.HasViews() {
		t.Error("HasViews() = false with b still registered")
	}
	if err := s.Deregister(b); err != nil {
		t.Fatalf("Deregister(b): %v", err)
	}
	if s.HasViews() {
		t.Error("HasViews() = true after last Deregister")
	}

	err = s.Deregister(b)
	if !errors.Is(err, &model.PreconditionError{Code: model.PreconditionNotRegistered}) {
		t.Errorf("Deregister(unknown) = %v, want NOT_REGISTERED", err)
	}
}

func TestBegin_SchedulesEveryRenderer(t *testing.T) {
	s := testScheduler(t)
	a := &fakeRenderer{id: "a", sched: s}
	b := &fakeRenderer{id: "b", sched: s}
	s.Register(a)
	s.Register(b)

	if err := s.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if a.scheduled != 1 || b.scheduled != 1 {
		t.Errorf("scheduled = (%d, %d), want (1, 1)", a.scheduled, b.scheduled)
	}
}

func TestEnd_ReentersUntilValid(t *testing.T) {
	s := testScheduler(t)
	remaining := 3
	r := &fakeRenderer{id: "r", sched: s, valid: func() bool { return remaining == 0 }}
	s.Register(r)

	reentries := 0
	err := s.End(func() error {
		reentries++
		remaining--
		return nil
	})
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if reentries != 3 {
		t.Errorf("reentries = %d, want 3", reentries)
	}
	if s.Loops() != 0 {
		t.Errorf("Loops() = %d, want 0 after a valid sweep", s.Loops())
	}
}

func TestEnd_InfiniteInvalidationDestroysRenderer(t *testing.T) {
	sink := &faultSink{}
	s := testScheduler(t, WithFaultRecorder(sink))
	good := &fakeRenderer{id: "good", sched: s}
	bad := &fakeRenderer{id: "bad", sched: s, valid: func() bool { return false }}
	s.Register(good)
	s.Register(bad)

	reentries := 0
	err := s.End(func() error { reentries++; return nil })

	if !errors.Is(err, model.ErrInfiniteInvalidation) {
		t.Fatalf("End error = %v, want ErrInfiniteInvalidation", err)
	}
	var cycle *model.InvalidationCycleError
	if !errors.As(err, &cycle) || cycle.RendererID != "bad" {
		t.Errorf("error = %#v, want InvalidationCycleError for bad", err)
	}
	if reentries != DefaultConfig().MaxReflushLoops+1 {
		t.Errorf("reentries = %d, want %d", reentries, DefaultConfig().MaxReflushLoops+1)
	}
	if bad.destroyed != 1 {
		t.Errorf("bad destroyed %d times, want 1", bad.destroyed)
	}
	if s.IsRegistered(bad) {
		t.Error("destroyed renderer is still registered")
	}
	if !s.IsRegistered(good) || good.destroyed != 0 {
		t.Error("well-behaved renderer was affected")
	}
	if s.Loops() != 0 {
		t.Errorf("Loops() = %d, want 0 after fault", s.Loops())
	}
	if len(sink.faults) != 1 || sink.faults[0].Kind != model.FaultInvalidationCycle {
		t.Errorf("recorded faults = %+v, want one invalidation_cycle", sink.faults)
	}
}

func TestEnd_CounterSharedAcrossRenderers(t *testing.T) {
	s := testScheduler(t)
	a := &fakeRenderer{id: "a", sched: s, valid: func() bool { return false }}
	s.Register(a)

	// a stays invalid for a few forced passes, then the cycle fails for an
	// unrelated reason and the counter keeps its value.
	boom := errors.New("boom")
	calls := 0
	err := s.End(func() error {
		calls++
		if calls == 4 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("End error = %v, want boom", err)
	}
	if s.Loops() != 4 {
		t.Fatalf("Loops() = %d, want 4", s.Loops())
	}

	// b is invalid on the next cycle; it inherits the counter.
	a.valid = func() bool { return true }
	b := &fakeRenderer{id: "b", sched: s, valid: func() bool { return false }}
	s.Register(b)

	reentries := 0
	err = s.End(func() error { reentries++; return nil })
	if !errors.Is(err, model.ErrInfiniteInvalidation) {
		t.Fatalf("End error = %v, want ErrInfiniteInvalidation", err)
	}
	if want := DefaultConfig().MaxReflushLoops + 1 - 4; reentries != want {
		t.Errorf("reentries = %d, want %d", reentries, want)
	}
}

func TestAttach_EngineDrivesHooks(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(Config{MaxReflushLoops: 2}, logger)
	e := runloop.New(runloop.DefaultConfig(), logger)
	s.Attach(e)

	r := &fakeRenderer{id: "r", sched: s, valid: func() bool { return false }}
	s.Register(r)

	err := e.Tick()
	if !errors.Is(err, model.ErrInfiniteInvalidation) {
		t.Fatalf("Tick error = %v, want ErrInfiniteInvalidation", err)
	}
	// One begin for the tick plus one per forced re-entry.
	if r.scheduled != 1+3 {
		t.Errorf("scheduled = %d, want 4", r.scheduled)
	}
	if e.Reentries() != 3 {
		t.Errorf("Reentries() = %d, want 3", e.Reentries())
	}
	if s.HasViews() {
		t.Error("HasViews() = true after the only renderer was destroyed")
	}
}

func TestReset(t *testing.T) {
	s := testScheduler(t)
	s.Register(&fakeRenderer{id: "a", sched: s})
	s.Reset()

	if s.HasViews() || len(s.Renderers()) != 0 || s.Loops() != 0 {
		t.Error("Reset did not clear scheduler state")
	}
}
