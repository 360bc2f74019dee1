package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_SuffixContract(t *testing.T) {
	s := Render("/a/b", "openstack_citest")

	// Exact suffix rules: static and template share one directory, logs
	// sit next to it.
	assert.Equal(t, "/a/b/static_compressed", s.StaticDir)
	assert.Equal(t, "/a/b/static_compressed", s.TemplateDir)
	assert.Equal(t, "/a/b/api.log", s.APILog)
	assert.Equal(t, "/a/b/app.log", s.AppLog)
}

func TestRender_Database(t *testing.T) {
	s := Render("/a/b", "mydb")

	assert.Equal(t, "mydb", s.Database.Name)
	assert.Equal(t, "postgresql", s.Database.Engine)
	assert.Equal(t, "localhost", s.Database.Host)
	assert.Equal(t, "5432", s.Database.Port)
	assert.Equal(t, 1, s.Development)
}

func TestRender_IsPure(t *testing.T) {
	a := Render("/a/b", "db")
	b := Render("/a/b", "db")
	assert.Equal(t, a, b)
}

func TestMarshal_Golden(t *testing.T) {
	s := Render("/a/b", "openstack_citest")

	data, err := s.Marshal()
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "settings", data)
}

func TestWriteFile_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")

	// Pre-existing garbage must be truncated, not appended to.
	require.NoError(t, os.WriteFile(path, []byte("stale content\nstale content\n"), 0o644))

	s := Render("/a/b", "db")
	require.NoError(t, s.WriteFile(path))
	first, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(first), "stale")

	// Re-running produces the identical file.
	require.NoError(t, s.WriteFile(path))
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestWriteFile_RejectsInvalidSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")

	s := Render("/a/b", "db")
	s.Database.Engine = "mysql" // not a supported engine

	err := s.WriteFile(path)
	require.Error(t, err)
	assert.NoFileExists(t, path)
}
