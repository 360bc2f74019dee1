package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ListRuns returns up to limit runs, most recent first. Ties on start time
// break on id for deterministic ordering.
func (j *Journal) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, target_ref, baseline_ref, database_name, artifact_root,
		       started_at, finished_at, outcome
		FROM runs
		ORDER BY started_at DESC, id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			r          Run
			startedAt  int64
			finishedAt sql.NullInt64
			outcome    sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.TargetRef, &r.BaselineRef, &r.DatabaseName,
			&r.ArtifactRoot, &startedAt, &finishedAt, &outcome); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.Unix(0, startedAt)
		if finishedAt.Valid {
			r.FinishedAt = time.Unix(0, finishedAt.Int64)
		}
		r.Outcome = outcome.String
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Transitions returns a run's transitions in recorded order.
func (j *Journal) Transitions(ctx context.Context, runID string) ([]Transition, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, seq, state, recorded_at, error
		FROM transitions
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	transitions := []Transition{}
	for rows.Next() {
		var (
			tr         Transition
			recordedAt int64
		)
		if err := rows.Scan(&tr.RunID, &tr.Seq, &tr.State, &recordedAt, &tr.Error); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		tr.RecordedAt = time.Unix(0, recordedAt)
		transitions = append(transitions, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return transitions, nil
}
