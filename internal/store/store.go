// Package store persists comparison runs so earlier results can be listed and re-reported.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"bpsim/proto/harness"
	"bpsim/proto/predictor"
)

// CurrentSchemaVersion is written with every persisted run.
const CurrentSchemaVersion = 1

var (
	ErrNotInitialized  = errors.New("store is not initialized")
	ErrVersionMismatch = errors.New("record version mismatch")
)

// Run is one stored comparison.
type Run struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Seed      int64            `json:"seed"`
	Size      int              `json:"size"`
	Config    predictor.Config `json:"config"`
	Results   []harness.Result `json:"results"`
}

// NewRunID returns a random run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// NewRun stamps results with a fresh ID and the current UTC time.
func NewRun(seed int64, size int, cfg predictor.Config, results []harness.Result) Run {
	return Run{
		ID:        NewRunID(),
		CreatedAt: time.Now().UTC(),
		Seed:      seed,
		Size:      size,
		Config:    cfg,
		Results:   append([]harness.Result(nil), results...),
	}
}

// Store persists runs.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run Run) error
	// GetRun returns ok=false when no run has the given ID.
	GetRun(ctx context.Context, id string) (Run, bool, error)
	// ListRuns returns every run, newest first.
	ListRuns(ctx context.Context) ([]Run, error)
	Close() error
}

// NewStore selects a backend by name. The sqlite backend needs a database path.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(sqlitePath), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

// Open constructs and initializes a backend.
func Open(ctx context.Context, kind, sqlitePath string) (Store, error) {
	s, err := NewStore(kind, sqlitePath)
	if err != nil {
		return nil, err
	}
	if err := s.Init(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("init %s store: %w", kind, err)
	}
	return s, nil
}

// FindRun resolves an ID or a unique ID prefix.
func FindRun(ctx context.Context, s Store, idOrPrefix string) (Run, error) {
	if run, ok, err := s.GetRun(ctx, idOrPrefix); err != nil || ok {
		return run, err
	}
	runs, err := s.ListRuns(ctx)
	if err != nil {
		return Run{}, err
	}
	var match []Run
	for _, r := range runs {
		if len(idOrPrefix) > 0 && len(r.ID) >= len(idOrPrefix) && r.ID[:len(idOrPrefix)] == idOrPrefix {
			match = append(match, r)
		}
	}
	switch len(match) {
	case 0:
		return Run{}, fmt.Errorf("run %q not found", idOrPrefix)
	case 1:
		return match[0], nil
	default:
		return Run{}, fmt.Errorf("run prefix %q is ambiguous (%d matches)", idOrPrefix, len(match))
	}
}

func sortNewestFirst(runs []Run) {
	sort.SliceStable(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
		return runs[i].ID < runs[j].ID
	})
}
