package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore creates a new SQLite-backed run history store.
// Use ":memory:" for an in-memory database, or a file path for persistence.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS project_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(run_id),
		slug TEXT NOT NULL,
		path TEXT NOT NULL,
		outcome TEXT NOT NULL,
		sync_status TEXT,
		sync_error TEXT,
		build_status TEXT,
		build_error TEXT,
		duration_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_results_run_id ON project_results(run_id);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordRun persists a run and its per-project results in one transaction.
func (s *SQLiteStore) RecordRun(ctx context.Context, run RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO runs (run_id, started_at, finished_at) VALUES (?, ?, ?)",
		run.RunID, run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, p := range run.Projects {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO project_results
			 (run_id, slug, path, outcome, sync_status, sync_error, build_status, build_error, duration_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, p.Slug, p.Path, p.Outcome, p.SyncStatus, p.SyncError, p.BuildStatus, p.BuildError, p.DurationMS,
		)
		if err != nil {
			return fmt.Errorf("insert project result: %w", err)
		}
	}

	return tx.Commit()
}

// LastRun returns the most recently started run with its project results,
// or nil when the store is empty.
func (s *SQLiteStore) LastRun(ctx context.Context) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var run RunRecord
	var started, finished int64
	err := s.db.QueryRowContext(ctx,
		"SELECT run_id, started_at, finished_at FROM runs ORDER BY started_at DESC, run_id DESC LIMIT 1",
	).Scan(&run.RunID, &started, &finished)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last run: %w", err)
	}
	run.StartedAt = time.UnixMilli(started)
	run.FinishedAt = time.UnixMilli(finished)

	rows, err := s.db.QueryContext(ctx,
		`SELECT slug, path, outcome, sync_status, sync_error, build_status, build_error, duration_ms
		 FROM project_results WHERE run_id = ? ORDER BY id`,
		run.RunID,
	)
	if err != nil {
		return nil, fmt.Errorf("query project results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p ProjectRecord
		if err := rows.Scan(&p.Slug, &p.Path, &p.Outcome, &p.SyncStatus, &p.SyncError, &p.BuildStatus, &p.BuildError, &p.DurationMS); err != nil {
			return nil, fmt.Errorf("scan project result: %w", err)
		}
		run.Projects = append(run.Projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return &run, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
