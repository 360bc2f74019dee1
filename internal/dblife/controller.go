// Package dblife exposes the database lifecycle operations of a harness
// run: drop, sync, seed and dump. Every operation is a blocking invocation
// of the external management command, addressed solely through the
// generated settings file; the harness never opens a database connection
// itself. Operations never run concurrently within a run.
package dblife

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nailyard/migracheck/internal/command"
	"github.com/nailyard/migracheck/internal/snapshot"
)

// Defaults for the external tooling.
const (
	// DefaultManage is the management command relative to the work tree.
	DefaultManage = "./manage.py"

	// DefaultSampleFixture is the sample-environment dataset loaded after
	// the defaults. It depends on the defaults existing first.
	DefaultSampleFixture = "nailgun/fixtures/sample_environment.json"

	// DumpPrefix names snapshot files: <prefix>_<revision-tag>.yaml.
	DumpPrefix = "openstack"
)

// ErrNotSynced is returned when SeedDefaults runs before a successful Sync:
// the default dataset cannot load into a database without a schema.
var ErrNotSynced = errors.New("seed requires a synced schema: run sync after drop first")

// Controller drives the lifecycle of one named database through the
// management command.
type Controller struct {
	runner       command.Runner
	logger       *slog.Logger
	manage       string
	workTree     string
	configPath   string
	artifactRoot string
	fixture      string

	synced bool
}

// Options configures a Controller beyond its required collaborators.
type Options struct {
	// Manage is the management command; defaults to DefaultManage.
	Manage string
	// SampleFixture overrides DefaultSampleFixture.
	SampleFixture string
}

// New creates a Controller. The configPath is the generated settings file
// and the sole addressing mechanism for every operation; artifactRoot is
// where snapshots land.
func New(runner command.Runner, workTree, configPath, artifactRoot string, logger *slog.Logger, opts Options) *Controller {
	if opts.Manage == "" {
		opts.Manage = DefaultManage
	}
	if opts.SampleFixture == "" {
		opts.SampleFixture = DefaultSampleFixture
	}
	return &Controller{
		runner:       runner,
		logger:       logger,
		manage:       opts.Manage,
		workTree:     workTree,
		configPath:   configPath,
		artifactRoot: artifactRoot,
		fixture:      opts.SampleFixture,
	}
}

func (c *Controller) run(ctx context.Context, args ...string) ([]byte, error) {
	full := append([]string{"--config", c.configPath}, args...)
	return c.runner.Run(ctx, c.workTree, c.manage, full...)
}

// Drop removes the named database. No-op (not an error) when the database
// is already absent, which makes "re-run from the top" the universal
// recovery path.
func (c *Controller) Drop(ctx context.Context) error {
	c.logger.Info("dropping database", "config", c.configPath)
	if _, err := c.run(ctx, "dropdb"); err != nil {
		return fmt.Errorf("drop database: %w", err)
	}
	c.synced = false
	return nil
}

// Sync creates or migrates schema objects for the database named in the
// settings file, against whatever revision is currently checked out.
// After a drop this is the clean-slate schema; after a checkout of the
// target revision it applies that revision's migration.
func (c *Controller) Sync(ctx context.Context) error {
	c.logger.Info("syncing database schema", "config", c.configPath)
	if _, err := c.run(ctx, "syncdb"); err != nil {
		return fmt.Errorf("sync database: %w", err)
	}
	c.synced = true
	return nil
}

// SeedDefaults loads the fixed default dataset, then the sample-environment
// dataset, in that order. The sample data depends on the defaults.
// Requires a successful Sync since the last Drop.
func (c *Controller) SeedDefaults(ctx context.Context) error {
	if !c.synced {
		return ErrNotSynced
	}

	c.logger.Info("loading default dataset", "config", c.configPath)
	if _, err := c.run(ctx, "loaddefault"); err != nil {
		return fmt.Errorf("load defaults: %w", err)
	}

	c.logger.Info("loading sample environment", "fixture", c.fixture)
	if _, err := c.run(ctx, "loaddata", c.fixture); err != nil {
		return fmt.Errorf("load sample environment: %w", err)
	}
	return nil
}

// Dump serializes the release-domain records, normalizes them into a
// byte-comparable form and writes them under the artifact root as
// <prefix>_<tag>.yaml. Returns the snapshot path.
func (c *Controller) Dump(ctx context.Context, tag string) (string, error) {
	c.logger.Info("dumping release records", "tag", tag)
	raw, err := c.run(ctx, "dumpdata", "releases")
	if err != nil {
		return "", fmt.Errorf("dump releases: %w", err)
	}

	normalized, err := snapshot.Normalize(raw)
	if err != nil {
		return "", fmt.Errorf("normalize dump for %s: %w", tag, err)
	}

	path := c.snapshotPath(tag)
	if err := os.WriteFile(path, normalized, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot %s: %w", path, err)
	}
	return path, nil
}

func (c *Controller) snapshotPath(tag string) string {
	return filepath.Join(c.artifactRoot, fmt.Sprintf("%s_%s.yaml", DumpPrefix, sanitizeTag(tag)))
}

// sanitizeTag makes a revision reference safe as a file name component.
// Branch refs like origin/stable/8.0 contain path separators.
func sanitizeTag(tag string) string {
	replacer := strings.NewReplacer("/", "_", " ", "_", "\\", "_")
	return replacer.Replace(tag)
}
