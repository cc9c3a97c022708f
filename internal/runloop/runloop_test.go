package runloop

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(DefaultConfig(), logger)
}

func TestRun_FlushesQueuesInOrder(t *testing.T) {
	e := testEngine(t)
	var got []string

	err := e.Run(func() error {
		e.Schedule(QueueDestroy, func() error { got = append(got, "destroy"); return nil })
		e.Schedule(QueueRender, func() error {
			got = append(got, "render")
			// Earlier queues settle before later ones continue.
			e.Schedule(QueueActions, func() error { got = append(got, "late-action"); return nil })
			return nil
		})
		e.Schedule(QueueActions, func() error { got = append(got, "action"); return nil })
		e.Schedule(QueueAfterRender, func() error { got = append(got, "afterRender"); return nil })
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"action", "render", "late-action", "afterRender", "destroy"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("flush order = %v, want %v", got, want)
	}
	if e.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", e.Pending())
	}
}

func TestScheduleOnce_Deduplicates(t *testing.T) {
	e := testEngine(t)
	calls := 0
	key := struct{ name string }{"revalidate"}

	err := e.Run(func() error {
		for i := 0; i < 3; i++ {
			e.ScheduleOnce(QueueRender, key, func() error { calls++; return nil })
		}
		// Same key on another queue is a separate task.
		e.ScheduleOnce(QueueAfterRender, key, func() error { calls++; return nil })
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}

	// Once run, the key can be scheduled again.
	if err := e.Run(func() error {
		e.ScheduleOnce(QueueRender, key, func() error { calls++; return nil })
		return nil
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRun_HookOrderAndReentry(t *testing.T) {
	e := testEngine(t)
	var events []string
	remaining := 2

	e.OnBegin(func() error {
		events = append(events, "begin")
		return nil
	})
	e.OnEnd(func(reenter func() error) error {
		events = append(events, "end")
		for remaining > 0 {
			remaining--
			if err := reenter(); err != nil {
				return err
			}
		}
		return nil
	})

	if err := e.Run(func() error { events = append(events, "work"); return nil }); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"begin", "work", "end", "begin", "begin"}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
	if e.Reentries() != 2 {
		t.Errorf("Reentries() = %d, want 2", e.Reentries())
	}
	if e.Cycles() != 1 {
		t.Errorf("Cycles() = %d, want 1", e.Cycles())
	}
}

func TestRun_JoinsOpenCycle(t *testing.T) {
	e := testEngine(t)
	begins := 0
	e.OnBegin(func() error { begins++; return nil })

	err := e.Run(func() error {
		if !e.InCycle() {
			t.Error("InCycle() = false inside Run")
		}
		return e.Run(func() error { return nil })
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if begins != 1 {
		t.Errorf("begin hooks ran %d times, want 1", begins)
	}
	if e.InCycle() {
		t.Error("InCycle() = true after Run")
	}
}

func TestRun_ErrorsPropagateAndEndStillRuns(t *testing.T) {
	e := testEngine(t)
	boom := errors.New("boom")
	endRan := false
	e.OnEnd(func(func() error) error { endRan = true; return nil })

	secondRan := false
	err := e.Run(func() error {
		e.Schedule(QueueRender, func() error { return boom })
		e.Schedule(QueueRender, func() error { secondRan = true; return nil })
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Run error = %v, want %v", err, boom)
	}
	if !endRan {
		t.Error("end hook did not run after a failing flush")
	}
	if secondRan {
		t.Error("flush continued after a failing task")
	}
	if e.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", e.Pending())
	}
}

func TestRun_EndHookErrorReturned(t *testing.T) {
	e := testEngine(t)
	fault := errors.New("fault")
	e.OnEnd(func(func() error) error { return fault })

	if err := e.Tick(); !errors.Is(err, fault) {
		t.Errorf("Tick error = %v, want %v", err, fault)
	}
}

func TestStart_DoRunsOnLoop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := New(Config{TickInterval: time.Hour}, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- e.Start(ctx) }()

	ran := false
	if err := e.Do(ctx, func() error { ran = e.InCycle(); return nil }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !ran {
		t.Error("Do did not run fn inside a cycle")
	}

	boom := errors.New("boom")
	if err := e.Do(ctx, func() error { return boom }); !errors.Is(err, boom) {
		t.Errorf("Do error = %v, want %v", err, boom)
	}

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Start returned %v, want nil", err)
	}
	if err := e.Submit(ctx, nil); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Submit after Stop = %v, want ErrNotRunning", err)
	}
}

func TestStop_Idempotent(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- e.Start(ctx) }()
	if err := e.Do(ctx, func() error { return nil }); err != nil {
		t.Fatalf("Do: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := e.Stop(); err != nil {
			t.Fatalf("Stop #%d: %v", i+1, err)
		}
	}
	if err := <-done; err != nil {
		t.Errorf("Start returned %v, want nil", err)
	}
	if err := e.Start(ctx); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start = %v, want ErrAlreadyStarted", err)
	}
}

func TestStop_NeverStarted(t *testing.T) {
	e := testEngine(t)

	stopped := make(chan error, 1)
	go func() { stopped <- e.Stop() }()
	select {
	case err := <-stopped:
		if err != nil {
			t.Fatalf("Stop: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on an engine that never started")
	}

	ctx := context.Background()
	if err := e.Submit(ctx, func() error { return nil }); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Submit after Stop = %v, want ErrNotRunning", err)
	}
	if err := e.Start(ctx); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Start after Stop = %v, want ErrAlreadyStarted", err)
	}
}
