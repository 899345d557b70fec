// Package config provides configuration management for the stagehand CLI.
// Configuration is loaded in layers: built-in defaults, stagehand.yaml,
// STAGEHAND_ environment variables, then command-line flags.
package config

import (
	"github.com/meltworks/stagehand/pkg/adapter"
)

// Config holds all CLI configuration options.
type Config struct {
	ModelsDir    string               `koanf:"models_dir"`
	SeedsDir     string               `koanf:"seeds_dir"`
	SourcesPath  string               `koanf:"sources_path"`
	StatePath    string               `koanf:"state_path"`
	Environment  string               `koanf:"environment"`
	Verbose      bool                 `koanf:"verbose"`
	OutputFormat string               `koanf:"output"`
	Jobs         int                  `koanf:"jobs"`
	Target       *TargetConfig        `koanf:"target"`
	Environments map[string]EnvConfig `koanf:"environments"`

	// ProjectRoot is the inferred project directory; not set from file.
	ProjectRoot string `koanf:"-"`
}

// TargetConfig describes the warehouse connection.
type TargetConfig struct {
	Type     string            `koanf:"type"`
	Path     string            `koanf:"path"` // file-backed targets (duckdb)
	Host     string            `koanf:"host"`
	Port     int               `koanf:"port"`
	Database string            `koanf:"database"`
	User     string            `koanf:"user"`
	Password string            `koanf:"password"`
	Schema   string            `koanf:"schema"`
	Options  map[string]string `koanf:"options"`
}

// EnvConfig holds per-environment configuration overrides.
type EnvConfig struct {
	ModelsDir   string        `koanf:"models_dir"`
	SeedsDir    string        `koanf:"seeds_dir"`
	SourcesPath string        `koanf:"sources_path"`
	StatePath   string        `koanf:"state_path"`
	Target      *TargetConfig `koanf:"target"`
}

// Default configuration values.
const (
	DefaultModelsDir   = "models"
	DefaultSeedsDir    = "seeds"
	DefaultSourcesPath = "sources.yaml"
	DefaultStateFile   = ".stagehand/state.db"
	DefaultEnv         = "dev"
	DefaultOutput      = "auto" // TTY=table, non-TTY=markdown
	DefaultJobs        = 4
)

// AdapterConfig converts the target into an adapter connection config.
func (c *Config) AdapterConfig() adapter.Config {
	t := c.Target
	if t == nil {
		t = &TargetConfig{Type: "duckdb"}
	}
	return adapter.Config{
		Type:     t.Type,
		Path:     t.Path,
		Host:     t.Host,
		Port:     t.Port,
		Database: t.Database,
		Username: t.User,
		Password: t.Password,
		Schema:   t.Schema,
		Options:  t.Options,
	}
}

// MergeTargetConfig merges two target configs, override taking precedence.
func MergeTargetConfig(base, override *TargetConfig) *TargetConfig {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}

	merged := *base
	merged.Options = make(map[string]string, len(base.Options)+len(override.Options))
	for k, v := range base.Options {
		merged.Options[k] = v
	}

	if override.Type != "" {
		merged.Type = override.Type
	}
	if override.Path != "" {
		merged.Path = override.Path
	}
	if override.Host != "" {
		merged.Host = override.Host
	}
	if override.Port != 0 {
		merged.Port = override.Port
	}
	if override.Database != "" {
		merged.Database = override.Database
	}
	if override.User != "" {
		merged.User = override.User
	}
	if override.Password != "" {
		merged.Password = override.Password
	}
	if override.Schema != "" {
		merged.Schema = override.Schema
	}
	for k, v := range override.Options {
		merged.Options[k] = v
	}

	return &merged
}
