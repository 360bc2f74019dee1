package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/nailyard/migracheck/internal/command"
	"github.com/nailyard/migracheck/internal/config"
	"github.com/nailyard/migracheck/internal/dblife"
	"github.com/nailyard/migracheck/internal/vcs"
)

// DoctorOptions holds flags for the doctor command.
type DoctorOptions struct {
	*RootOptions
	Database string
	Manage   string
	WorkTree string
	SkipDB   bool

	// Runner allows overriding the subprocess runner (for testing).
	Runner command.Runner

	// PingTimeout bounds the database reachability probe.
	PingTimeout time.Duration
}

// doctorCheck is one environment probe's outcome.
type doctorCheck struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DoctorOptions{RootOptions: rootOpts, PingTimeout: 5 * time.Second}

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the environment can support a migration check",
		Long: `Probe the local environment for everything a check run needs:
a git binary, a clean working tree, a resolvable management command and
a reachable database server.

Probes are read-only; doctor never mutates the tree or the database.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db",
		envOr("MIGRACHECK_DB", "openstack_citest"), "logical database name")
	cmd.Flags().StringVar(&opts.Manage, "manage",
		envOr("MIGRACHECK_MANAGE", dblife.DefaultManage), "management command to probe for")
	cmd.Flags().StringVar(&opts.WorkTree, "work-tree", ".", "application working tree")
	cmd.Flags().BoolVar(&opts.SkipDB, "skip-db", false, "skip the database reachability probe")

	return cmd
}

func runDoctor(opts *DoctorOptions, cmd *cobra.Command) error {
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	runner := opts.Runner
	if runner == nil {
		runner = command.ExecRunner{}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	checks := []doctorCheck{
		checkGitBinary(),
		checkWorkTree(ctx, runner, opts.WorkTree, logger),
		checkManage(opts.WorkTree, opts.Manage),
	}
	if opts.SkipDB {
		checks = append(checks, doctorCheck{Name: "database server", OK: true, Detail: "skipped"})
	} else {
		checks = append(checks, checkDatabase(ctx, opts.Database, opts.PingTimeout))
	}

	failed := 0
	for _, c := range checks {
		if !c.OK {
			failed++
		}
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		if err := formatter.Success(checks); err != nil {
			return err
		}
	} else {
		for _, c := range checks {
			mark := "ok"
			if !c.OK {
				mark = "FAIL"
			}
			line := fmt.Sprintf("[%4s] %s", mark, c.Name)
			if c.Detail != "" {
				line += ": " + c.Detail
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d checks failed", failed, len(checks)))
	}
	return nil
}

func checkGitBinary() doctorCheck {
	path, err := exec.LookPath("git")
	if err != nil {
		return doctorCheck{Name: "git binary", Detail: "not found in PATH"}
	}
	return doctorCheck{Name: "git binary", OK: true, Detail: path}
}

func checkWorkTree(ctx context.Context, runner command.Runner, workTree string, logger *slog.Logger) doctorCheck {
	git := vcs.New(runner, workTree, logger)
	if err := git.RequireClean(ctx); err != nil {
		return doctorCheck{Name: "working tree", Detail: err.Error()}
	}
	ref, err := git.Current(ctx)
	if err != nil {
		return doctorCheck{Name: "working tree", Detail: err.Error()}
	}
	return doctorCheck{Name: "working tree", OK: true, Detail: fmt.Sprintf("clean at %s", ref)}
}

func checkManage(workTree, manage string) doctorCheck {
	// Relative commands resolve against the work tree, like they would at
	// execution time. Bare names resolve through PATH.
	if strings.ContainsRune(manage, os.PathSeparator) {
		candidate := manage
		if !filepath.IsAbs(candidate) {
			candidate = filepath.Join(workTree, candidate)
		}
		if _, err := os.Stat(candidate); err != nil {
			return doctorCheck{Name: "management command", Detail: fmt.Sprintf("%s not found", candidate)}
		}
		return doctorCheck{Name: "management command", OK: true, Detail: candidate}
	}
	path, err := exec.LookPath(manage)
	if err != nil {
		return doctorCheck{Name: "management command", Detail: fmt.Sprintf("%s not found in PATH", manage)}
	}
	return doctorCheck{Name: "management command", OK: true, Detail: path}
}

func checkDatabase(ctx context.Context, databaseName string, timeout time.Duration) doctorCheck {
	// Connect to the maintenance database, not the run database: the run
	// database may legitimately not exist yet.
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=postgres sslmode=disable",
		config.DefaultHost, config.DefaultPort, config.DefaultUser, config.DefaultPassword)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return doctorCheck{Name: "database server", Detail: err.Error()}
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return doctorCheck{Name: "database server", Detail: err.Error()}
	}
	return doctorCheck{
		Name: "database server",
		OK:   true,
		Detail: fmt.Sprintf("%s:%s reachable (run database %q will be created on sync)",
			config.DefaultHost, config.DefaultPort, databaseName),
	}
}
