package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nailyard/migracheck/internal/artifacts"
	"github.com/nailyard/migracheck/internal/command"
	"github.com/nailyard/migracheck/internal/dblife"
	"github.com/nailyard/migracheck/internal/harness"
	"github.com/nailyard/migracheck/internal/journal"
	"github.com/nailyard/migracheck/internal/vcs"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Artifacts string
	Database  string
	UniqueDB  bool
	Baseline  string
	Manage    string
	WorkTree  string
	Journal   string

	// Runner allows overriding the subprocess runner (for testing).
	// If nil, defaults to command.ExecRunner.
	Runner command.Runner
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <target-ref>",
		Short: "Run the full baseline, migrate and snapshot sequence",
		Long: `Run a migration check against the target revision.

The harness checks out the baseline revision, rebuilds and seeds the
database from scratch, dumps the release records, checks out the target
revision, applies its migration and dumps again. Both dumps land under
the artifact root, named by revision, normalized for byte comparison.

Example:
  migracheck check abc123
  migracheck check my-feature-branch --baseline 8.0 --unique-db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Artifacts, "artifacts",
		envOr("MIGRACHECK_ARTIFACTS", "/tmp/migracheck"), "artifact root directory")
	cmd.Flags().StringVar(&opts.Database, "db",
		envOr("MIGRACHECK_DB", "openstack_citest"), "logical database name")
	cmd.Flags().BoolVar(&opts.UniqueDB, "unique-db", false,
		"append a generated suffix to the database name so concurrent runs cannot collide")
	cmd.Flags().StringVar(&opts.Baseline, "baseline",
		envOr("MIGRACHECK_BASELINE", "8.0"), "baseline revision (last released version)")
	cmd.Flags().StringVar(&opts.Manage, "manage",
		envOr("MIGRACHECK_MANAGE", dblife.DefaultManage), "management command to drive the database tooling")
	cmd.Flags().StringVar(&opts.WorkTree, "work-tree", ".", "application working tree")
	cmd.Flags().StringVar(&opts.Journal, "journal",
		envOr("MIGRACHECK_JOURNAL", ""), "optional run journal database path")

	return cmd
}

func runCheck(opts *CheckOptions, targetRef string, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	if strings.TrimSpace(targetRef) == "" {
		return NewExitError(ExitCommandError, "target revision must not be empty")
	}

	databaseName := opts.Database
	if opts.UniqueDB {
		databaseName = fmt.Sprintf("%s_%s", opts.Database, uuid.NewString()[:8])
		logger.Info("using generated database name", "database", databaseName)
	}

	runner := opts.Runner
	if runner == nil {
		runner = command.ExecRunner{}
	}

	var jnl *journal.Journal
	if opts.Journal != "" {
		var err error
		jnl, err = journal.Open(opts.Journal)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open run journal", err)
		}
		defer func() {
			if closeErr := jnl.Close(); closeErr != nil {
				logger.Error("error closing run journal", "error", closeErr)
			}
		}()
	}

	store := artifacts.New(opts.Artifacts)
	git := vcs.New(runner, opts.WorkTree, logger)
	db := dblife.New(runner, opts.WorkTree, store.SettingsPath(), opts.Artifacts, logger,
		dblife.Options{Manage: opts.Manage})

	h := harness.New(store, git, db, jnl, logger, harness.Config{
		BaselineRef:  opts.Baseline,
		TargetRef:    targetRef,
		DatabaseName: databaseName,
	})

	// External interrupts map to a fatal error, like any other failure.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	result, err := h.Run(ctx)
	if err != nil {
		var halted *harness.StepError
		if errors.As(err, &halted) {
			return WrapExitError(ExitFailure, "migration check halted", err)
		}
		return WrapExitError(ExitCommandError, "migration check could not start", err)
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Migration check complete.")
	fmt.Fprintf(cmd.OutOrStdout(), "Baseline snapshot: %s\n", result.BaselineSnapshot)
	fmt.Fprintf(cmd.OutOrStdout(), "Target snapshot:   %s\n", result.TargetSnapshot)
	return nil
}
