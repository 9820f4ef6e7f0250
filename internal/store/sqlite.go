package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"bpsim/proto/harness"
	"bpsim/proto/predictor"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run Run) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	cfg, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("encode config of run %s: %w", run.ID, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, schema_version, created_at, seed, size, config)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			schema_version = excluded.schema_version,
			created_at = excluded.created_at,
			seed = excluded.seed,
			size = excluded.size,
			config = excluded.config
	`, run.ID, CurrentSchemaVersion, run.CreatedAt.UTC().Format(time.RFC3339Nano), run.Seed, run.Size, cfg)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE run_id = ?`, run.ID); err != nil {
		return err
	}
	for pos, r := range run.Results {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO results (run_id, position, dataset, predictor, kind, correct, total)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, run.ID, pos, r.Dataset, r.Predictor, r.Kind.Slug(), r.Correct, r.Total)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (Run, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return Run{}, false, err
	}

	row := db.QueryRowContext(ctx, `
		SELECT id, schema_version, created_at, seed, size, config FROM runs WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, false, nil
		}
		return Run{}, false, err
	}

	if run.Results, err = loadResults(ctx, db, run.ID); err != nil {
		return Run{}, false, err
	}
	return run, true, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]Run, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, schema_version, created_at, seed, size, config FROM runs
	`)
	if err != nil {
		return nil, err
	}
	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	for i := range runs {
		if runs[i].Results, err = loadResults(ctx, db, runs[i].ID); err != nil {
			return nil, err
		}
	}
	sortNewestFirst(runs)
	return runs, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run       Run
		version   int
		createdAt string
		cfg       []byte
	)
	if err := sc.Scan(&run.ID, &version, &createdAt, &run.Seed, &run.Size, &cfg); err != nil {
		return Run{}, err
	}
	if version != CurrentSchemaVersion {
		return Run{}, fmt.Errorf("run %s: %w: schema %d, want %d", run.ID, ErrVersionMismatch, version, CurrentSchemaVersion)
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: created_at: %w", run.ID, err)
	}
	run.CreatedAt = t
	if err := json.Unmarshal(cfg, &run.Config); err != nil {
		return Run{}, fmt.Errorf("decode config of run %s: %w", run.ID, err)
	}
	return run, nil
}

func loadResults(ctx context.Context, db *sql.DB, runID string) ([]harness.Result, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT dataset, predictor, kind, correct, total
		FROM results WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []harness.Result
	for rows.Next() {
		var (
			r    harness.Result
			slug string
		)
		if err := rows.Scan(&r.Dataset, &r.Predictor, &slug, &r.Correct, &r.Total); err != nil {
			return nil, err
		}
		if r.Kind, err = predictor.ParseKind(slug); err != nil {
			return nil, fmt.Errorf("run %s: %w", runID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			schema_version INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			seed INTEGER NOT NULL,
			size INTEGER NOT NULL,
			config BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS results (
			run_id TEXT NOT NULL REFERENCES runs(id),
			position INTEGER NOT NULL,
			dataset TEXT NOT NULL,
			predictor TEXT NOT NULL,
			kind TEXT NOT NULL,
			correct INTEGER NOT NULL,
			total INTEGER NOT NULL,
			PRIMARY KEY (run_id, position)
		);
	`)
	return err
}
