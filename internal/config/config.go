// Package config renders the settings document consumed by the external
// schema/migration tooling. The rendered file is the sole handoff contract
// between the harness and the application under test; the harness itself
// never opens a database connection.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default connection parameters for the CI database. Overridable on the
// Settings value after Render; the path suffix rules are not.
const (
	DefaultEngine   = "postgresql"
	DefaultHost     = "localhost"
	DefaultPort     = "5432"
	DefaultUser     = "openstack_citest"
	DefaultPassword = "openstack_citest"
)

// Database describes the logical database the tooling should operate on.
type Database struct {
	Name     string `yaml:"name"`
	Engine   string `yaml:"engine"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"passwd"`
}

// Settings is the fixed-schema document the downstream tooling reads.
// Field names follow the consumer's settings.yaml convention.
type Settings struct {
	Development int      `yaml:"DEVELOPMENT"`
	StaticDir   string   `yaml:"STATIC_DIR"`
	TemplateDir string   `yaml:"TEMPLATE_DIR"`
	Database    Database `yaml:"DATABASE"`
	APILog      string   `yaml:"API_LOG"`
	AppLog      string   `yaml:"APP_LOG"`
}

// Render builds the settings for one run. Pure function of its inputs.
//
// All path fields derive from artifactsPath by fixed suffixing rules:
// static and template assets share <artifacts>/static_compressed, logs go
// to <artifacts>/api.log and <artifacts>/app.log.
func Render(artifactsPath, databaseName string) Settings {
	static := filepath.Join(artifactsPath, "static_compressed")
	return Settings{
		Development: 1,
		StaticDir:   static,
		TemplateDir: static,
		Database: Database{
			Name:     databaseName,
			Engine:   DefaultEngine,
			Host:     DefaultHost,
			Port:     DefaultPort,
			User:     DefaultUser,
			Password: DefaultPassword,
		},
		APILog: filepath.Join(artifactsPath, "api.log"),
		AppLog: filepath.Join(artifactsPath, "app.log"),
	}
}

// Marshal serializes the settings as YAML.
func (s Settings) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	return data, nil
}

// WriteFile validates the settings and writes them to path, truncating any
// previous content. Safe to re-run: the file is overwritten, never
// appended to.
func (s Settings) WriteFile(path string) error {
	data, err := s.Marshal()
	if err != nil {
		return err
	}
	if err := Validate(data); err != nil {
		return fmt.Errorf("settings for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write settings %s: %w", path, err)
	}
	return nil
}
