package config

import (
	"fmt"
	"os"
	"strings"
)

var validOutputs = map[string]bool{
	"auto":     true,
	"table":    true,
	"json":     true,
	"csv":      true,
	"markdown": true,
}

// Validate checks structural validity of the configuration. Directory
// existence is checked separately so help output works anywhere.
func Validate(c *Config) error {
	if c.ModelsDir == "" {
		return fmt.Errorf("models_dir is required")
	}
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", c.Jobs)
	}
	if c.OutputFormat != "" && !validOutputs[c.OutputFormat] {
		return fmt.Errorf("unknown output format %q (valid: %s)", c.OutputFormat, strings.Join(outputNames(), ", "))
	}
	return nil
}

// ValidateDirectories checks that required directories exist.
func (c *Config) ValidateDirectories() error {
	if _, err := os.Stat(c.ModelsDir); os.IsNotExist(err) {
		return fmt.Errorf("models directory does not exist: %s\nHint: create the directory or use --models-dir to specify a different path", c.ModelsDir)
	}
	return nil
}

func outputNames() []string {
	return []string{"auto", "table", "json", "csv", "markdown"}
}
