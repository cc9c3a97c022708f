package journal

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/me/rerender/pkg/model"
)

func testJournal(t *testing.T) *SQLiteJournal {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	j, err := NewSQLiteJournal(":memory:", logger)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	if err := j.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func samplePass(rendererID string) model.PassRecord {
	return model.PassRecord{
		RendererID: rendererID,
		Trigger:    "revalidate",
		Sweeps:     [][]string{{"a", "b", "c"}, {"b"}},
		Revision:   42,
		Duration:   1500 * time.Microsecond,
		StartedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	j := testJournal(t)
	if err := j.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestMigrate_PassColumnsMatchScan(t *testing.T) {
	j := testJournal(t)
	rows, err := j.db.QueryContext(context.Background(), "PRAGMA table_info(passes)")
	if err != nil {
		t.Fatalf("table_info: %v", err)
	}
	defer rows.Close()

	var got []string
	for rows.Next() {
		var cid, notnull, pk int
		var name, ctype string
		var dflt *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			t.Fatalf("scan: %v", err)
		}
		got = append(got, name)
	}
	// Every stored column is read back by scanPass.
	want := []string{"id", "renderer_id", "triggered_by", "sweeps", "revision", "duration_ns", "error", "started_at"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("passes columns = %v, want %v", got, want)
	}
}

func TestRecordPass_RoundTrip(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()
	want := samplePass("main")
	want.Error = "render root b: boom"

	if err := j.RecordPass(ctx, want); err != nil {
		t.Fatalf("RecordPass: %v", err)
	}

	passes, total, err := j.ListPasses(ctx, model.DefaultListOptions())
	if err != nil {
		t.Fatalf("ListPasses: %v", err)
	}
	if total != 1 || len(passes) != 1 {
		t.Fatalf("total/len = %d/%d, want 1/1", total, len(passes))
	}
	got := passes[0]
	if got.ID == 0 {
		t.Error("ID not assigned")
	}
	if !reflect.DeepEqual(got.Sweeps, want.Sweeps) {
		t.Errorf("Sweeps = %v, want %v", got.Sweeps, want.Sweeps)
	}
	if got.Revision != want.Revision || got.Duration != want.Duration {
		t.Errorf("revision/duration = %d/%s, want %d/%s", got.Revision, got.Duration, want.Revision, want.Duration)
	}
	if got.Trigger != want.Trigger || got.Error != want.Error {
		t.Errorf("trigger/error = %q/%q", got.Trigger, got.Error)
	}
	if !got.StartedAt.Equal(want.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, want.StartedAt)
	}
}

func TestListPasses_FilterAndPaginate(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		p := samplePass("main")
		p.Revision = model.Revision(i + 1)
		if err := j.RecordPass(ctx, p); err != nil {
			t.Fatalf("RecordPass: %v", err)
		}
	}
	if err := j.RecordPass(ctx, samplePass("inert")); err != nil {
		t.Fatalf("RecordPass: %v", err)
	}

	passes, total, err := j.ListPasses(ctx, model.ListOptions{Limit: 2, Offset: 1, RendererID: "main"})
	if err != nil {
		t.Fatalf("ListPasses: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	var revs []model.Revision
	for _, p := range passes {
		revs = append(revs, p.Revision)
	}
	// Newest first: 5 4 3 2 1, skip one, take two.
	if want := []model.Revision{4, 3}; !reflect.DeepEqual(revs, want) {
		t.Errorf("revisions = %v, want %v", revs, want)
	}

	_, total, err = j.ListPasses(ctx, model.ListOptions{})
	if err != nil {
		t.Fatalf("ListPasses: %v", err)
	}
	if total != 6 {
		t.Errorf("unfiltered total = %d, want 6", total)
	}
}

func TestRecordFault_RoundTrip(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()
	at := time.Now().UTC().Truncate(time.Millisecond)

	faults := []model.FaultRecord{
		{RendererID: "main", RootID: "b", Kind: model.FaultRender, Message: "boom", At: at},
		{RendererID: "main", Kind: model.FaultInvalidationCycle, Message: "infinite rendering invalidation detected", Loops: 11, At: at},
	}
	for _, f := range faults {
		if err := j.RecordFault(ctx, f); err != nil {
			t.Fatalf("RecordFault: %v", err)
		}
	}

	got, total, err := j.ListFaults(ctx, model.ListOptions{RendererID: "main"})
	if err != nil {
		t.Fatalf("ListFaults: %v", err)
	}
	if total != 2 || len(got) != 2 {
		t.Fatalf("total/len = %d/%d, want 2/2", total, len(got))
	}
	cycle := got[0]
	if cycle.Kind != model.FaultInvalidationCycle || cycle.Loops != 11 || cycle.RootID != "" {
		t.Errorf("newest fault = %+v, want the invalidation cycle", cycle)
	}
	if got[1].RootID != "b" || got[1].Kind != model.FaultRender {
		t.Errorf("oldest fault = %+v, want render fault on b", got[1])
	}
	if !cycle.At.Equal(at) {
		t.Errorf("At = %v, want %v", cycle.At, at)
	}
}

func TestFileJournal_Persists(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	j, err := NewSQLiteJournal(path, logger)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := j.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for i := 0; i < 3; i++ {
		p := samplePass(fmt.Sprintf("r%d", i))
		if err := j.RecordPass(ctx, p); err != nil {
			t.Fatalf("RecordPass: %v", err)
		}
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewSQLiteJournal(path, logger)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if err := reopened.Migrate(ctx); err != nil {
		t.Fatalf("migrate reopened: %v", err)
	}
	_, total, err := reopened.ListPasses(ctx, model.ListOptions{})
	if err != nil {
		t.Fatalf("ListPasses: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d after reopen, want 3", total)
	}
}
