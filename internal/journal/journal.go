// Package journal records harness runs and their state transitions in a
// local SQLite database. The journal is an optional audit trail: the
// harness runs fine without one, but with it every halt is attributable
// to an exact state after the fact.
package journal

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Run is one harness invocation.
type Run struct {
	ID           string    `json:"id"`
	TargetRef    string    `json:"target_ref"`
	BaselineRef  string    `json:"baseline_ref"`
	DatabaseName string    `json:"database_name"`
	ArtifactRoot string    `json:"artifact_root"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at,omitzero"` // zero until FinishRun
	Outcome      string    `json:"outcome,omitempty"`    // "" while running, then "done" or "failed"
}

// Transition is one recorded state-machine step of a run.
type Transition struct {
	RunID      string    `json:"run_id"`
	Seq        int64     `json:"seq"`
	State      string    `json:"state"`
	RecordedAt time.Time `json:"recorded_at"`
	Error      string    `json:"error,omitempty"` // empty for successful transitions
}

// Run outcomes.
const (
	OutcomeDone   = "done"
	OutcomeFailed = "failed"
)

// Journal provides durable storage for run history.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the journal database at path. Applies pragmas and
// the schema; idempotent, safe to call on an existing journal.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect journal: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}

	return &Journal{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// SetClock overrides the journal's time source. For tests.
func (j *Journal) SetClock(now func() time.Time) {
	j.now = now
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	return nil
}
