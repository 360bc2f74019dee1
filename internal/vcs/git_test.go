package vcs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nailyard/migracheck/internal/command"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCheckout(t *testing.T) {
	m := command.NewMockRunner()
	g := New(m, "/tree", discardLogger())

	require.NoError(t, g.Checkout(context.Background(), "abc123"))

	// Exactly the checkout; cleanliness is the caller's precondition.
	assert.Equal(t, []string{
		"git checkout abc123",
	}, m.CommandLines())
	assert.Equal(t, "/tree", m.Calls()[0].Dir)
}

func TestRequireClean(t *testing.T) {
	m := command.NewMockRunner()
	g := New(m, "/tree", discardLogger())

	require.NoError(t, g.RequireClean(context.Background()))

	m.RunFunc = func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
		if strings.Contains(strings.Join(args, " "), "status") {
			return []byte(" M nailgun/settings.yaml\n"), nil
		}
		return nil, nil
	}

	err := g.RequireClean(context.Background())
	require.Error(t, err)

	var dirty *DirtyTreeError
	require.True(t, errors.As(err, &dirty))
	assert.Contains(t, dirty.Status, "settings.yaml")
	assert.Equal(t, "/tree", dirty.WorkTree)
}

func TestCheckout_UnknownRefPropagatesGitOutput(t *testing.T) {
	m := command.NewMockRunner()
	m.RunFunc = func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
		if args[0] == "checkout" {
			out := []byte("error: pathspec 'nope' did not match any file(s) known to git\n")
			return out, &command.RunError{Name: name, Args: args, Output: out, Err: errors.New("exit status 1")}
		}
		return nil, nil
	}
	g := New(m, "/tree", discardLogger())

	err := g.Checkout(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pathspec 'nope'")
}

func TestCurrent_Branch(t *testing.T) {
	m := command.NewMockRunner()
	m.RunFunc = func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
		return []byte("master\n"), nil
	}
	g := New(m, "/tree", discardLogger())

	ref, err := g.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "master", ref)
}

func TestCurrent_DetachedHeadFallsBackToHash(t *testing.T) {
	m := command.NewMockRunner()
	m.RunFunc = func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
		if strings.Contains(strings.Join(args, " "), "--abbrev-ref") {
			return []byte("HEAD\n"), nil
		}
		return []byte("0123abcd0123abcd\n"), nil
	}
	g := New(m, "/tree", discardLogger())

	ref, err := g.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0123abcd0123abcd", ref)
}

func TestIsClean(t *testing.T) {
	m := command.NewMockRunner()
	g := New(m, "/tree", discardLogger())

	clean, err := g.IsClean(context.Background())
	require.NoError(t, err)
	assert.True(t, clean)

	m.RunFunc = func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
		return []byte("?? junk\n"), nil
	}
	clean, err = g.IsClean(context.Background())
	require.NoError(t, err)
	assert.False(t, clean)
}
