package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nailyard/migracheck/internal/command"
	"github.com/nailyard/migracheck/internal/journal"
)

const dumpOutput = "# Generated by the dump tool\n# 2016-03-04 12:00:00\n" +
	"- fields:\n    name: alpha\n  model: releases.release\n  pk: 1\n"

// healthyRunner emulates a clean git tree and a working management tool.
// failOn, if non-nil, can inject a failure per call.
func healthyRunner(failOn func(name string, args []string) error) *command.MockRunner {
	m := command.NewMockRunner()
	m.RunFunc = func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
		if failOn != nil {
			if err := failOn(name, args); err != nil {
				out := []byte(err.Error() + "\n")
				return out, &command.RunError{Name: name, Args: args, Output: out, Err: errors.New("exit status 1")}
			}
		}
		joined := strings.Join(args, " ")
		switch {
		case name == "git" && strings.Contains(joined, "--abbrev-ref"):
			return []byte("master\n"), nil
		case name == "git" && strings.Contains(joined, "status"):
			return nil, nil
		case strings.Contains(joined, "dumpdata"):
			return []byte(dumpOutput), nil
		}
		return nil, nil
	}
	return m
}

func newTestCmd() (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	cmd := &cobra.Command{}
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd, out, errOut
}

func checkOpts(t *testing.T, m *command.MockRunner) *CheckOptions {
	t.Helper()
	return &CheckOptions{
		RootOptions: &RootOptions{Format: "text"},
		Artifacts:   filepath.Join(t.TempDir(), "artifacts"),
		Database:    "openstack_citest",
		Baseline:    "8.0",
		Manage:      "./manage.py",
		WorkTree:    "/tree",
		Runner:      m,
	}
}

func TestRunCheck_Success(t *testing.T) {
	opts := checkOpts(t, healthyRunner(nil))
	cmd, out, _ := newTestCmd()

	err := runCheck(opts, "abc123", cmd)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Migration check complete.")
	assert.Contains(t, out.String(), filepath.Join(opts.Artifacts, "openstack_8.0.yaml"))
	assert.Contains(t, out.String(), filepath.Join(opts.Artifacts, "openstack_abc123.yaml"))
}

func TestRunCheck_JSONOutput(t *testing.T) {
	opts := checkOpts(t, healthyRunner(nil))
	opts.Format = "json"
	cmd, out, _ := newTestCmd()

	require.NoError(t, runCheck(opts, "abc123", cmd))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, filepath.Join(opts.Artifacts, "openstack_8.0.yaml"), data["baseline_snapshot"])
	assert.Equal(t, filepath.Join(opts.Artifacts, "openstack_abc123.yaml"), data["target_snapshot"])
}

func TestRunCheck_EmptyTargetIsUsageError(t *testing.T) {
	opts := checkOpts(t, healthyRunner(nil))
	cmd, _, _ := newTestCmd()

	err := runCheck(opts, "  ", cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunCheck_TransitionFailureExitsOne(t *testing.T) {
	m := healthyRunner(func(name string, args []string) error {
		if name != "git" && args[2] == "syncdb" {
			return errors.New("OperationalError: connection refused")
		}
		return nil
	})
	opts := checkOpts(t, m)
	cmd, _, _ := newTestCmd()

	err := runCheck(opts, "abc123", cmd)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRunCheck_DirtyTreeExitsTwo(t *testing.T) {
	m := command.NewMockRunner()
	m.RunFunc = func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
		joined := strings.Join(args, " ")
		if strings.Contains(joined, "--abbrev-ref") {
			return []byte("master\n"), nil
		}
		if strings.Contains(joined, "status") {
			return []byte(" M nailgun/db/migrations.py\n"), nil
		}
		return nil, nil
	}
	opts := checkOpts(t, m)
	cmd, _, _ := newTestCmd()

	err := runCheck(opts, "abc123", cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunCheck_UniqueDBSuffixesName(t *testing.T) {
	var loggedDB string
	m := healthyRunner(nil)
	opts := checkOpts(t, m)
	opts.UniqueDB = true
	cmd, _, errOut := newTestCmd()

	require.NoError(t, runCheck(opts, "abc123", cmd))

	// The generated name is logged and lands in the settings file.
	for _, line := range strings.Split(errOut.String(), "\n") {
		if strings.Contains(line, "generated database name") {
			loggedDB = line
		}
	}
	require.NotEmpty(t, loggedDB)
	assert.Contains(t, loggedDB, "openstack_citest_")
}

func TestRunCheck_JournalRecordsRun(t *testing.T) {
	opts := checkOpts(t, healthyRunner(nil))
	opts.Journal = filepath.Join(t.TempDir(), "journal.db")
	cmd, _, _ := newTestCmd()

	require.NoError(t, runCheck(opts, "abc123", cmd))

	jnl, err := journal.Open(opts.Journal)
	require.NoError(t, err)
	defer jnl.Close()

	runs, err := jnl.ListRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "abc123", runs[0].TargetRef)
	assert.Equal(t, journal.OutcomeDone, runs[0].Outcome)
}
