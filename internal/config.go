// Package internal wires configuration and component construction for the
// Munin application.
package internal

import (
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Index backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Corpus CorpusConfig      `yaml:"corpus"`
	Index  IndexConfig       `yaml:"index"`
	Plans  PlansConfig       `yaml:"plans"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Corpus.Validate(); err != nil {
		return err
	}
	if err := c.Index.Validate(); err != nil {
		return err
	}
	return c.Plans.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// CorpusConfig holds the path to the document corpus directory.
type CorpusConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the corpus configuration.
func (c *CorpusConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// IndexConfig selects and locates the index backend. Backend selection is
// an explicit construction-time choice; the sqlite backend is never
// substituted automatically.
type IndexConfig struct {
	Backend      string `yaml:"backend"`
	JSONPath     string `yaml:"json_path"`
	SQLitePath   string `yaml:"sqlite_path"`
	DefaultLimit int    `yaml:"default_limit"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendJSON, BackendSQLite)),
		validation.Field(&c.DefaultLimit, validation.Min(0)),
	); err != nil {
		return err
	}
	switch c.Backend {
	case BackendJSON:
		return validation.ValidateStruct(c,
			validation.Field(&c.JSONPath, validation.Required),
		)
	case BackendSQLite:
		return validation.ValidateStruct(c,
			validation.Field(&c.SQLitePath, validation.Required),
		)
	}
	return nil
}

// PlansConfig holds the writer-partitioned pointer directory, relative to
// the corpus root.
type PlansConfig struct {
	TeamDir string `yaml:"team_dir"`
}

// Validate validates the plans configuration.
func (c *PlansConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TeamDir, validation.Required),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Corpus: CorpusConfig{
			Path: "./corpus",
		},
		Index: IndexConfig{
			Backend:      BackendJSON,
			JSONPath:     "./munin-index.json",
			SQLitePath:   "./munin.db",
			DefaultLimit: 20,
		},
		Plans: PlansConfig{
			TeamDir: "plans/team",
		},
	}
}
