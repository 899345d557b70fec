package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Materialization values accepted in frontmatter.
const (
	MaterializedView  = "view"
	MaterializedTable = "table"
)

// Model is one staging transformation unit: a named relation derived from
// a raw source (or from other models).
type Model struct {
	// Path identifies the model, e.g. "staging.stg_accounts".
	Path string
	// Name is the filename without extension.
	Name string
	// FilePath is the location of the .sql file.
	FilePath string
	// Materialized is how the relation is stored: view or table.
	Materialized string
	// Schema is the target schema, derived from the directory by default.
	Schema string
	Description string
	Owner       string
	Tags        []string
	Meta        map[string]any
	// Source is the raw table this model stages. Required unless the SQL
	// body provides its own source()/ref() references.
	Source *SourceIdent
	// SQL is the body after frontmatter. Empty means pure passthrough.
	SQL string
	// SourceRefs are {{ source("ns", "table") }} references in the body.
	SourceRefs []SourceIdent
	// Refs are {{ ref("path") }} model references in the body.
	Refs []string

	HasFrontmatter bool
	RawContent     string
}

// Relation returns the model's target relation name.
func (m *Model) Relation() string {
	if m.Schema == "" {
		return m.Name
	}
	return m.Schema + "." + m.Name
}

// Parser parses model files under a base directory.
type Parser struct {
	// BaseDir is the models directory root; model paths are derived from
	// the location of each file relative to it.
	BaseDir string
}

// NewParser creates a parser rooted at baseDir.
func NewParser(baseDir string) *Parser {
	return &Parser{BaseDir: baseDir}
}

var (
	// {{ source("fortnox_raw", "accounts") }}
	sourceRefPattern = regexp.MustCompile(`\{\{\s*source\(\s*['"]([^'"]+)['"]\s*,\s*['"]([^'"]+)['"]\s*\)\s*\}\}`)
	// {{ ref("staging.stg_accounts") }}
	refPattern = regexp.MustCompile(`\{\{\s*ref\(\s*['"]([^'"]+)['"]\s*\)\s*\}\}`)
)

// ParseFile parses a single model file.
func (p *Parser) ParseFile(filePath string) (*Model, error) {
	content, err := os.ReadFile(filePath) //nolint:gosec // paths come from the models directory walk
	if err != nil {
		return nil, fmt.Errorf("reading model file: %w", err)
	}
	return p.ParseContent(filePath, string(content))
}

// ParseContent parses model file content. The file path is used for the
// model's name, path and schema defaults.
func (p *Parser) ParseContent(filePath, content string) (*Model, error) {
	fm, err := ExtractFrontmatter(content)
	if err != nil {
		annotateFile(err, filePath)
		return nil, err
	}

	m := &Model{
		Name:           strings.TrimSuffix(filepath.Base(filePath), ".sql"),
		FilePath:       filePath,
		Materialized:   fm.Config.Materialized,
		Schema:         fm.Config.Schema,
		Description:    fm.Config.Description,
		Owner:          fm.Config.Owner,
		Tags:           fm.Config.Tags,
		Meta:           fm.Config.Meta,
		Source:         fm.Config.Source,
		SQL:            fm.SQL,
		HasFrontmatter: fm.HasYAML,
		RawContent:     content,
	}

	if fm.Config.Name != "" {
		m.Name = fm.Config.Name
	}
	if m.Materialized == "" {
		// Staging relations default to views: cheap to refresh and always
		// reflect the current source.
		m.Materialized = MaterializedView
	}
	if m.Schema == "" {
		m.Schema = p.schemaFor(filePath)
	}
	m.Path = modelPath(m.Schema, m.Name)

	for _, match := range sourceRefPattern.FindAllStringSubmatch(m.SQL, -1) {
		m.SourceRefs = append(m.SourceRefs, SourceIdent{Namespace: match[1], Table: match[2]})
	}
	for _, match := range refPattern.FindAllStringSubmatch(m.SQL, -1) {
		m.Refs = append(m.Refs, match[1])
	}

	if m.Source == nil && m.SQL == "" {
		return nil, &ParseError{
			File:    filePath,
			Message: "model has no source and no SQL body; declare source: in frontmatter or write a query",
		}
	}

	return m, nil
}

// schemaFor derives the target schema from the file's directory relative
// to the models root. Files directly under the root get "staging".
func (p *Parser) schemaFor(filePath string) string {
	dir := filepath.Dir(filePath)
	if p.BaseDir != "" {
		if rel, err := filepath.Rel(p.BaseDir, dir); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
			// Use the first path segment; nested folders are organizational.
			parts := strings.Split(filepath.ToSlash(rel), "/")
			return parts[0]
		}
	}
	return "staging"
}

func modelPath(schema, name string) string {
	if schema == "" {
		return name
	}
	return schema + "." + name
}

// ReplaceSourceRefs rewrites every {{ source(...) }} placeholder using
// resolve to map a namespace/table pair to a relation name.
func ReplaceSourceRefs(sql string, resolve func(namespace, table string) (string, error)) (string, error) {
	var firstErr error
	out := sourceRefPattern.ReplaceAllStringFunc(sql, func(match string) string {
		if firstErr != nil {
			return match
		}
		parts := sourceRefPattern.FindStringSubmatch(match)
		rel, err := resolve(parts[1], parts[2])
		if err != nil {
			firstErr = err
			return match
		}
		return rel
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// ReplaceRefs rewrites every {{ ref(...) }} placeholder using resolve to
// map a model reference to a relation name.
func ReplaceRefs(sql string, resolve func(ref string) (string, error)) (string, error) {
	var firstErr error
	out := refPattern.ReplaceAllStringFunc(sql, func(match string) string {
		if firstErr != nil {
			return match
		}
		parts := refPattern.FindStringSubmatch(match)
		rel, err := resolve(parts[1])
		if err != nil {
			firstErr = err
			return match
		}
		return rel
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// annotateFile attaches the file path to typed parse errors.
func annotateFile(err error, filePath string) {
	switch e := err.(type) {
	case *ParseError:
		e.File = filePath
	case *UnknownFieldError:
		e.File = filePath
	}
}
