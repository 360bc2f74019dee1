package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nailyard/migracheck/internal/journal"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Journal string
	Limit   int
	RunID   string
}

// NewRunsCommand creates the runs command for inspecting journal history.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded harness runs",
		Long: `List runs recorded in the journal, most recent first.

With --run, show that run's state transitions instead, in order,
including the error message of the transition that halted it.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal",
		envOr("MIGRACHECK_JOURNAL", ""), "run journal database path")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs to list")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show one run's transitions")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	if opts.Journal == "" {
		return NewExitError(ExitCommandError, "no journal path: set --journal or MIGRACHECK_JOURNAL")
	}

	jnl, err := journal.Open(opts.Journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open run journal", err)
	}
	defer jnl.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.RunID != "" {
		return listTransitions(ctx, jnl, opts, cmd)
	}
	return listRuns(ctx, jnl, opts, cmd)
}

func listRuns(ctx context.Context, jnl *journal.Journal, opts *RunsOptions, cmd *cobra.Command) error {
	runs, err := jnl.ListRuns(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tTARGET\tBASELINE\tDATABASE\tSTARTED\tOUTCOME")
	for _, r := range runs {
		outcome := r.Outcome
		if outcome == "" {
			outcome = "running"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.TargetRef, r.BaselineRef, r.DatabaseName,
			r.StartedAt.UTC().Format(time.RFC3339), outcome)
	}
	return w.Flush()
}

func listTransitions(ctx context.Context, jnl *journal.Journal, opts *RunsOptions, cmd *cobra.Command) error {
	transitions, err := jnl.Transitions(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list transitions", err)
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(transitions)
	}

	if len(transitions) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No transitions recorded for run %s.\n", opts.RunID)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tSTATE\tRECORDED\tERROR")
	for _, tr := range transitions {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
			tr.Seq, tr.State, tr.RecordedAt.UTC().Format(time.RFC3339), tr.Error)
	}
	return w.Flush()
}
