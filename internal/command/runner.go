// Package command provides the subprocess layer shared by the revision and
// database controllers. Every external operation in a harness run goes
// through a Runner, which makes the whole run scriptable in tests.
package command

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes an external command and returns its combined output.
// This interface allows for mock implementations in tests.
type Runner interface {
	// Run executes name with args in dir (empty dir means the current
	// working directory). It blocks until the command exits. On a non-zero
	// exit the returned error is a *RunError carrying the combined output.
	Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

// RunError reports a failed external command.
//
// The child's combined stdout/stderr is preserved verbatim so the root
// external error stays diagnosable; callers must not summarize it away.
type RunError struct {
	Name   string
	Args   []string
	Output []byte
	Err    error
}

func (e *RunError) Error() string {
	msg := fmt.Sprintf("command %q failed: %v", e.Name+" "+strings.Join(e.Args, " "), e.Err)
	out := bytes.TrimSpace(e.Output)
	if len(out) > 0 {
		msg += "\n" + string(out)
	}
	return msg
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Compile-time check that ExecRunner implements Runner.
var _ Runner = ExecRunner{}

// Run executes the command and returns its combined output.
//
// Context cancellation (e.g. an external process-level timeout) kills the
// child and surfaces as a *RunError like any other failure.
func (ExecRunner) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, &RunError{Name: name, Args: args, Output: out, Err: err}
	}
	return out, nil
}
