// Package artifacts owns the run-scoped directory tree. Snapshot files and
// the generated settings document all live under one root so a run leaves
// a single self-contained directory behind.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nailyard/migracheck/internal/config"
)

// SettingsFileName is the deterministic name of the generated settings
// document under the artifact root.
const SettingsFileName = "settings.yaml"

// Store manages one artifact root directory.
type Store struct {
	Root string
}

// New creates a Store for the given root. Nothing touches the filesystem
// until Prepare.
func New(root string) *Store {
	return &Store{Root: root}
}

// Prepare ensures the artifact root exists and materializes the settings
// document for databaseName inside it. Idempotent: an existing root is
// reused, the settings file is overwritten.
//
// Returns the settings file path. Filesystem errors are fatal to the run
// and carry the failing path.
func (s *Store) Prepare(databaseName string) (string, error) {
	if err := os.MkdirAll(s.Root, 0o755); err != nil {
		return "", fmt.Errorf("create artifact root %s: %w", s.Root, err)
	}

	settings := config.Render(s.Root, databaseName)
	path := s.SettingsPath()
	if err := settings.WriteFile(path); err != nil {
		return "", err
	}
	return path, nil
}

// SettingsPath returns the deterministic settings file location without
// creating anything.
func (s *Store) SettingsPath() string {
	return filepath.Join(s.Root, SettingsFileName)
}

// SnapshotPath returns where a snapshot for the given file name lands.
func (s *Store) SnapshotPath(name string) string {
	return filepath.Join(s.Root, name)
}
