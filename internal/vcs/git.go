// Package vcs controls the shared working tree. The tree is a single-owner
// resource: exactly one checkout is in effect at a time and the current
// revision is whatever the last successful Checkout set.
package vcs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nailyard/migracheck/internal/command"
)

// DirtyTreeError reports a working tree with uncommitted changes. The
// harness refuses to check anything out over them; it does not stash.
type DirtyTreeError struct {
	WorkTree string
	Status   string
}

func (e *DirtyTreeError) Error() string {
	return fmt.Sprintf("working tree %s has uncommitted changes, refusing to checkout:\n%s",
		e.WorkTree, e.Status)
}

// Git drives revision control for one working tree.
type Git struct {
	runner   command.Runner
	workTree string
	logger   *slog.Logger
}

// New creates a Git controller for the given working tree.
func New(runner command.Runner, workTree string, logger *slog.Logger) *Git {
	return &Git{runner: runner, workTree: workTree, logger: logger}
}

// Current returns the checked-out branch name, or the commit hash when the
// tree is in detached HEAD state.
func (g *Git) Current(ctx context.Context) (string, error) {
	out, err := g.runner.Run(ctx, g.workTree, "git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolve current revision: %w", err)
	}
	ref := strings.TrimSpace(string(out))
	if ref != "HEAD" {
		return ref, nil
	}

	// Detached HEAD: fall back to the commit hash.
	out, err = g.runner.Run(ctx, g.workTree, "git", "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolve current revision: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// IsClean reports whether the working tree has no uncommitted changes.
func (g *Git) IsClean(ctx context.Context) (bool, error) {
	out, err := g.runner.Run(ctx, g.workTree, "git", "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("check working tree state: %w", err)
	}
	return len(strings.TrimSpace(string(out))) == 0, nil
}

// RequireClean returns a *DirtyTreeError when the working tree has
// uncommitted changes.
func (g *Git) RequireClean(ctx context.Context) error {
	out, err := g.runner.Run(ctx, g.workTree, "git", "status", "--porcelain")
	if err != nil {
		return fmt.Errorf("check working tree state: %w", err)
	}
	if status := strings.TrimSpace(string(out)); status != "" {
		return &DirtyTreeError{WorkTree: g.workTree, Status: status}
	}
	return nil
}

// Checkout switches the working tree to ref (a branch, tag or commit).
// Callers verify cleanliness with RequireClean before the first mutation;
// Checkout itself does not re-check. Unknown refs propagate git's own
// error output.
func (g *Git) Checkout(ctx context.Context, ref string) error {
	g.logger.Info("checking out revision", "ref", ref, "work_tree", g.workTree)
	if _, err := g.runner.Run(ctx, g.workTree, "git", "checkout", ref); err != nil {
		return fmt.Errorf("checkout %s: %w", ref, err)
	}
	return nil
}
