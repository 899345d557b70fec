// Package parser parses staging model files: SQL with an optional YAML
// frontmatter block describing the model's source and materialization.
package parser

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Frontmatter is the parsed YAML block of a model file. Unknown fields
// cause parse errors; use meta for extensions.
type Frontmatter struct {
	Name         string         `yaml:"name"`
	Description  string         `yaml:"description"`
	Materialized string         `yaml:"materialized"` // view, table
	Owner        string         `yaml:"owner"`
	Schema       string         `yaml:"schema"`
	Source       *SourceIdent   `yaml:"source"`
	Tags         []string       `yaml:"tags"`
	Meta         map[string]any `yaml:"meta"`
}

// SourceIdent identifies a raw table in the source catalog.
type SourceIdent struct {
	Namespace string `yaml:"namespace"`
	Table     string `yaml:"table"`
}

// FrontmatterResult holds the extracted frontmatter and the SQL body that
// follows it.
type FrontmatterResult struct {
	Config  *Frontmatter
	SQL     string
	HasYAML bool
}

// frontmatterPattern matches a leading /*--- ... ---*/ block.
var frontmatterPattern = regexp.MustCompile(`(?s)^\s*/\*---\s*\n(.*?)\s*---\*/`)

var knownFields = map[string]bool{
	"name":         true,
	"description":  true,
	"materialized": true,
	"owner":        true,
	"schema":       true,
	"source":       true,
	"tags":         true,
	"meta":         true,
}

// ExtractFrontmatter splits a model file into frontmatter and SQL body.
// Files without a frontmatter block are returned as-is.
func ExtractFrontmatter(content string) (*FrontmatterResult, error) {
	result := &FrontmatterResult{
		Config: &Frontmatter{},
		SQL:    strings.TrimSpace(content),
	}

	matches := frontmatterPattern.FindStringSubmatch(content)
	if matches == nil {
		return result, nil
	}

	result.HasYAML = true
	result.SQL = strings.TrimSpace(frontmatterPattern.ReplaceAllString(content, ""))

	config, err := parseFrontmatterYAML(matches[1])
	if err != nil {
		return nil, err
	}
	result.Config = config
	return result, nil
}

func parseFrontmatterYAML(yamlContent string) (*Frontmatter, error) {
	var rawMap map[string]any
	if err := yaml.Unmarshal([]byte(yamlContent), &rawMap); err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("invalid YAML: %v", err)}
	}

	for field := range rawMap {
		if !knownFields[field] {
			return nil, &UnknownFieldError{Field: field}
		}
	}

	var config Frontmatter
	if err := yaml.Unmarshal([]byte(yamlContent), &config); err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("failed to parse frontmatter: %v", err)}
	}

	if config.Materialized != "" {
		switch config.Materialized {
		case MaterializedView, MaterializedTable:
		default:
			return nil, &ParseError{
				Message: fmt.Sprintf("invalid materialized value %q, must be one of: view, table", config.Materialized),
			}
		}
	}

	if config.Source != nil {
		if config.Source.Namespace == "" || config.Source.Table == "" {
			return nil, &ParseError{Message: "source requires both namespace and table"}
		}
	}

	return &config, nil
}

// ParseError reports an invalid frontmatter block.
type ParseError struct {
	File    string
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// UnknownFieldError reports a frontmatter field that is not recognized.
type UnknownFieldError struct {
	File  string
	Field string
}

func (e *UnknownFieldError) Error() string {
	msg := fmt.Sprintf("unknown field %q in frontmatter, use \"meta\" for custom fields", e.Field)
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, msg)
	}
	return msg
}
