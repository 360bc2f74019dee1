// Package harness sequences a migration-validation run: materialize a
// baseline dataset under the prior revision's schema, apply the target
// revision's migration, and capture a comparable post-migration snapshot.
//
// The flow is a fixed-order, single-threaded sequence of revision-control
// checkouts and database lifecycle operations. Every transition is a
// blocking call that must succeed before the next begins; the shared
// mutable resources (one working tree, one named database) cannot tolerate
// concurrent mutation, so nothing here overlaps. Any failing transition
// halts the run in place; migrations are not safely retryable in general,
// so failure stops forward progress instead of masking it. Recovery is
// re-running from the top: drop is idempotent, so a re-run always starts
// from a known-empty database.
package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nailyard/migracheck/internal/artifacts"
	"github.com/nailyard/migracheck/internal/dblife"
	"github.com/nailyard/migracheck/internal/journal"
	"github.com/nailyard/migracheck/internal/vcs"
)

// Config identifies one invocation. Immutable once the run starts.
type Config struct {
	// BaselineRef is the known-good prior revision the pre-migration
	// snapshot is taken against.
	BaselineRef string

	// TargetRef is the revision under test, expected to contain a new
	// migration.
	TargetRef string

	// DatabaseName is the logical database both snapshots run against.
	DatabaseName string
}

// Result is the outcome of a successful run: the two snapshot artifacts,
// ready for external diffing.
type Result struct {
	RunID            string `json:"run_id,omitempty"`
	ConfigPath       string `json:"config_path"`
	BaselineSnapshot string `json:"baseline_snapshot"`
	TargetSnapshot   string `json:"target_snapshot"`
}

// Harness owns the orchestration sequence. It is the single owner of the
// working tree and the named database for the duration of a run; callers
// wanting concurrent runs must use distinct database names and work trees.
type Harness struct {
	artifacts *artifacts.Store
	git       *vcs.Git
	db        *dblife.Controller
	journal   *journal.Journal // optional, may be nil
	logger    *slog.Logger
	cfg       Config
}

// New assembles a harness from its collaborators. jnl may be nil to run
// without an audit trail.
func New(store *artifacts.Store, git *vcs.Git, db *dblife.Controller, jnl *journal.Journal, logger *slog.Logger, cfg Config) *Harness {
	return &Harness{
		artifacts: store,
		git:       git,
		db:        db,
		journal:   jnl,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run executes the full baseline -> migrate -> snapshot sequence:
//
//	INIT -> ARTIFACTS_READY -> DB_CLEAN -> BASELINE_CHECKED_OUT
//	     -> BASELINE_SYNCED -> BASELINE_SEEDED -> BASELINE_DUMPED
//	     -> TARGET_CHECKED_OUT -> MIGRATED -> TARGET_DUMPED -> DONE
//
// On failure the returned error is a *StepError naming the transition that
// halted the run. The original revision is restored best-effort once any
// checkout has happened; a restore failure is logged and never masks the
// run's own error.
func (h *Harness) Run(ctx context.Context) (result *Result, err error) {
	h.logger.Info("run starting",
		"baseline", h.cfg.BaselineRef,
		"target", h.cfg.TargetRef,
		"database", h.cfg.DatabaseName,
	)

	// The tree must come back to a well-defined state on failure, so
	// remember where it started before mutating anything.
	originalRef, err := h.git.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve starting revision: %w", err)
	}

	// A dirty tree halts the run here, before any database mutation, so a
	// failure cannot leave the schema in an indeterminate state.
	if err = h.git.RequireClean(ctx); err != nil {
		return nil, err
	}

	var runID string
	if h.journal != nil {
		runID, err = h.journal.BeginRun(ctx, h.cfg.TargetRef, h.cfg.BaselineRef,
			h.cfg.DatabaseName, h.artifacts.Root)
		if err != nil {
			return nil, err
		}
	}
	result = &Result{RunID: runID}

	checkedOut := false
	defer func() {
		h.finish(ctx, runID, err)
		if err != nil && checkedOut {
			h.restore(ctx, originalRef)
		}
	}()

	// INIT anchors the journal trail before the first transition runs.
	var seq int64
	seq++
	h.record(ctx, runID, seq, StateInit, "")

	step := func(state State, fn func(context.Context) error) error {
		if stepErr := fn(ctx); stepErr != nil {
			halted := &StepError{State: state, Err: stepErr}
			seq++
			h.record(ctx, runID, seq, state, halted.Error())
			return halted
		}
		seq++
		h.record(ctx, runID, seq, state, "")
		h.logger.Info("state reached", "state", state)
		return nil
	}

	if err = step(StateArtifactsReady, func(ctx context.Context) error {
		path, prepErr := h.artifacts.Prepare(h.cfg.DatabaseName)
		result.ConfigPath = path
		return prepErr
	}); err != nil {
		return nil, err
	}

	// Known-empty starting state before the baseline sync.
	if err = step(StateDBClean, h.db.Drop); err != nil {
		return nil, err
	}

	if err = step(StateBaselineCheckedOut, func(ctx context.Context) error {
		return h.git.Checkout(ctx, h.cfg.BaselineRef)
	}); err != nil {
		return nil, err
	}
	checkedOut = true

	if err = step(StateBaselineSynced, h.db.Sync); err != nil {
		return nil, err
	}
	if err = step(StateBaselineSeeded, h.db.SeedDefaults); err != nil {
		return nil, err
	}

	if err = step(StateBaselineDumped, func(ctx context.Context) error {
		path, dumpErr := h.db.Dump(ctx, h.cfg.BaselineRef)
		result.BaselineSnapshot = path
		return dumpErr
	}); err != nil {
		return nil, err
	}

	if err = step(StateTargetCheckedOut, func(ctx context.Context) error {
		return h.git.Checkout(ctx, h.cfg.TargetRef)
	}); err != nil {
		return nil, err
	}

	// Sync under the target checkout applies that revision's migration to
	// the seeded baseline database.
	if err = step(StateMigrated, h.db.Sync); err != nil {
		return nil, err
	}

	if err = step(StateTargetDumped, func(ctx context.Context) error {
		path, dumpErr := h.db.Dump(ctx, h.cfg.TargetRef)
		result.TargetSnapshot = path
		return dumpErr
	}); err != nil {
		return nil, err
	}

	seq++
	h.record(ctx, runID, seq, StateDone, "")
	h.logger.Info("run complete",
		"baseline_snapshot", result.BaselineSnapshot,
		"target_snapshot", result.TargetSnapshot,
	)
	// On success the tree stays at the target revision for inspection.
	return result, nil
}

// record writes a journal transition when a journal is attached. Journal
// write failures are logged, never fatal: the audit trail must not be able
// to halt a run that the database operations themselves did not.
func (h *Harness) record(ctx context.Context, runID string, seq int64, state State, errMsg string) {
	if h.journal == nil || runID == "" {
		return
	}
	if jerr := h.journal.RecordTransition(ctx, runID, seq, string(state), errMsg); jerr != nil {
		h.logger.Warn("journal write failed", "state", state, "error", jerr)
	}
}

func (h *Harness) finish(ctx context.Context, runID string, runErr error) {
	if h.journal == nil || runID == "" {
		return
	}
	outcome := journal.OutcomeDone
	if runErr != nil {
		outcome = journal.OutcomeFailed
	}
	// The run may have failed through context cancellation; the journal
	// should still record the outcome.
	if jerr := h.journal.FinishRun(context.WithoutCancel(ctx), runID, outcome); jerr != nil {
		h.logger.Warn("journal finish failed", "error", jerr)
	}
}

// restore checks the original revision back out after a failed run.
// Best-effort: errors are logged, the run's own error always wins.
func (h *Harness) restore(ctx context.Context, originalRef string) {
	h.logger.Info("restoring original revision", "ref", originalRef)
	if rerr := h.git.Checkout(context.WithoutCancel(ctx), originalRef); rerr != nil {
		h.logger.Error("could not restore original revision", "ref", originalRef, "error", rerr)
	}
}
