package harness

import "fmt"

// State names a position in the run's linear state machine. A run only
// ever moves forward; there is no branching on success and no retry.
type State string

const (
	StateInit               State = "INIT"
	StateArtifactsReady     State = "ARTIFACTS_READY"
	StateDBClean            State = "DB_CLEAN"
	StateBaselineCheckedOut State = "BASELINE_CHECKED_OUT"
	StateBaselineSynced     State = "BASELINE_SYNCED"
	StateBaselineSeeded     State = "BASELINE_SEEDED"
	StateBaselineDumped     State = "BASELINE_DUMPED"
	StateTargetCheckedOut   State = "TARGET_CHECKED_OUT"
	StateMigrated           State = "MIGRATED"
	StateTargetDumped       State = "TARGET_DUMPED"
	StateDone               State = "DONE"
)

// StepError reports the transition that halted a run. The underlying
// sub-operation's output is preserved through the error chain so the root
// external failure stays visible.
type StepError struct {
	State State
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("transition to %s failed: %v", e.State, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
