package journal

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// BeginRun inserts a new run row and returns its generated ID.
func (j *Journal) BeginRun(ctx context.Context, targetRef, baselineRef, databaseName, artifactRoot string) (string, error) {
	id := uuid.NewString()
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (id, target_ref, baseline_ref, database_name, artifact_root, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, targetRef, baselineRef, databaseName, artifactRoot, j.now().UnixNano())
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return id, nil
}

// RecordTransition appends one state transition for a run. seq must be
// strictly increasing within the run; errMsg is empty for a successful
// transition.
func (j *Journal) RecordTransition(ctx context.Context, runID string, seq int64, state, errMsg string) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO transitions (run_id, seq, state, recorded_at, error)
		VALUES (?, ?, ?, ?, ?)
	`, runID, seq, state, j.now().UnixNano(), errMsg)
	if err != nil {
		return fmt.Errorf("record transition %s/%d: %w", state, seq, err)
	}
	return nil
}

// FinishRun marks a run as finished with the given outcome.
func (j *Journal) FinishRun(ctx context.Context, runID, outcome string) error {
	res, err := j.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, outcome = ? WHERE id = ?
	`, j.now().UnixNano(), outcome, runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: no such run", runID)
	}
	return nil
}
