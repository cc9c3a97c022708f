package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/rerender/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteJournal implements Journal using SQLite.
type SQLiteJournal struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ Journal = (*SQLiteJournal)(nil)

// NewSQLiteJournal opens (or creates) a SQLite database at dbPath.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteJournal(dbPath string, logger *slog.Logger) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if dbPath == ":memory:" {
		// Every connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}

	return &SQLiteJournal{
		db:     db,
		logger: logger.With("component", "journal"),
	}, nil
}

// Close closes the underlying database connection.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// Migrate creates all required tables and indexes.
func (j *SQLiteJournal) Migrate(ctx context.Context) error {
	j.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, j.db)
}

// --- Passes ---

// RecordPass implements model.PassRecorder.
func (j *SQLiteJournal) RecordPass(ctx context.Context, p model.PassRecord) error {
	j.logger.Debug("sql", "op", "insert", "table", "passes", "renderer_id", p.RendererID)

	sweepsJSON, err := json.Marshal(p.Sweeps)
	if err != nil {
		return fmt.Errorf("marshal sweeps: %w", err)
	}

	_, err = j.db.ExecContext(ctx,
		`INSERT INTO passes (renderer_id, triggered_by, sweeps, revision, duration_ns, error, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.RendererID, p.Trigger, string(sweepsJSON), int64(p.Revision),
		int64(p.Duration), p.Error, p.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert pass: %w", err)
	}
	return nil
}

// ListPasses returns passes newest first, with the total matching count.
func (j *SQLiteJournal) ListPasses(ctx context.Context, opts model.ListOptions) ([]model.PassRecord, int, error) {
	opts.Clamp()
	j.logger.Debug("sql", "op", "list", "table", "passes", "limit", opts.Limit, "offset", opts.Offset)

	where, args := rendererFilter(opts)

	var total int
	if err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM passes"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count passes: %w", err)
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, renderer_id, triggered_by, sweeps, revision, duration_ns, error, started_at
		 FROM passes`+where+` ORDER BY id DESC LIMIT ? OFFSET ?`,
		append(args, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list passes: %w", err)
	}
	defer rows.Close()

	var passes []model.PassRecord
	for rows.Next() {
		p, err := scanPass(rows)
		if err != nil {
			return nil, 0, err
		}
		passes = append(passes, p)
	}
	return passes, total, rows.Err()
}

// --- Faults ---

// RecordFault implements model.FaultRecorder.
func (j *SQLiteJournal) RecordFault(ctx context.Context, f model.FaultRecord) error {
	j.logger.Debug("sql", "op", "insert", "table", "faults", "renderer_id", f.RendererID, "kind", f.Kind)

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO faults (renderer_id, root_id, kind, message, loops, at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		f.RendererID, f.RootID, string(f.Kind), f.Message, f.Loops,
		f.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert fault: %w", err)
	}
	return nil
}

// ListFaults returns faults newest first, with the total matching count.
func (j *SQLiteJournal) ListFaults(ctx context.Context, opts model.ListOptions) ([]model.FaultRecord, int, error) {
	opts.Clamp()
	j.logger.Debug("sql", "op", "list", "table", "faults", "limit", opts.Limit, "offset", opts.Offset)

	where, args := rendererFilter(opts)

	var total int
	if err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM faults"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count faults: %w", err)
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, renderer_id, root_id, kind, message, loops, at
		 FROM faults`+where+` ORDER BY id DESC LIMIT ? OFFSET ?`,
		append(args, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list faults: %w", err)
	}
	defer rows.Close()

	var faults []model.FaultRecord
	for rows.Next() {
		f, err := scanFault(rows)
		if err != nil {
			return nil, 0, err
		}
		faults = append(faults, f)
	}
	return faults, total, rows.Err()
}

// --- scan helpers ---

type scanner interface {
	Scan(dest ...any) error
}

func rendererFilter(opts model.ListOptions) (string, []any) {
	if opts.RendererID == "" {
		return "", nil
	}
	return " WHERE renderer_id = ?", []any{opts.RendererID}
}

func scanPass(row scanner) (model.PassRecord, error) {
	var p model.PassRecord
	var sweepsJSON, startedAt string
	var revision, duration int64

	if err := row.Scan(&p.ID, &p.RendererID, &p.Trigger, &sweepsJSON,
		&revision, &duration, &p.Error, &startedAt); err != nil {
		return p, fmt.Errorf("scan pass: %w", err)
	}
	if err := json.Unmarshal([]byte(sweepsJSON), &p.Sweeps); err != nil {
		return p, fmt.Errorf("unmarshal sweeps: %w", err)
	}
	p.Revision = model.Revision(revision)
	p.Duration = time.Duration(duration)
	p.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	return p, nil
}

func scanFault(row scanner) (model.FaultRecord, error) {
	var f model.FaultRecord
	var kind, at string

	if err := row.Scan(&f.ID, &f.RendererID, &f.RootID, &kind, &f.Message, &f.Loops, &at); err != nil {
		return f, fmt.Errorf("scan fault: %w", err)
	}
	f.Kind = model.FaultKind(kind)
	f.At, _ = time.Parse(time.RFC3339Nano, at)
	return f, nil
}
