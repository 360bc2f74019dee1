package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_AcceptsRenderedSettings(t *testing.T) {
	data, err := Render("/a/b", "openstack_citest").Marshal()
	require.NoError(t, err)

	assert.NoError(t, Validate(data))
}

func TestValidate_RejectsMissingField(t *testing.T) {
	err := Validate([]byte(`
DEVELOPMENT: 1
STATIC_DIR: /a/b/static_compressed
TEMPLATE_DIR: /a/b/static_compressed
API_LOG: /a/b/api.log
APP_LOG: /a/b/app.log
`))
	assert.Error(t, err)
}

func TestValidate_RejectsWrongEngine(t *testing.T) {
	s := Render("/a/b", "db")
	s.Database.Engine = "sqlite"
	data, err := s.Marshal()
	require.NoError(t, err)

	err = Validate(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema")
}

func TestValidate_RejectsEmptyDatabaseName(t *testing.T) {
	s := Render("/a/b", "")
	data, err := s.Marshal()
	require.NoError(t, err)

	assert.Error(t, Validate(data))
}

func TestValidate_RejectsMalformedYAML(t *testing.T) {
	assert.Error(t, Validate([]byte("DEVELOPMENT: [unclosed")))
}
