package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseContent_PassthroughModel(t *testing.T) {
	p := NewParser("models")
	content := `/*---
source:
  namespace: fortnox_raw
  table: accounts
---*/`

	m, err := p.ParseContent(filepath.Join("models", "staging", "stg_accounts.sql"), content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.Path != "staging.stg_accounts" {
		t.Errorf("path = %q", m.Path)
	}
	if m.Name != "stg_accounts" {
		t.Errorf("name = %q", m.Name)
	}
	if m.Schema != "staging" {
		t.Errorf("schema = %q", m.Schema)
	}
	if m.Materialized != MaterializedView {
		t.Errorf("materialized = %q, want view default", m.Materialized)
	}
	if m.SQL != "" {
		t.Errorf("expected empty body, got %q", m.SQL)
	}
	if m.Source == nil || m.Source.Namespace != "fortnox_raw" || m.Source.Table != "accounts" {
		t.Errorf("source = %+v", m.Source)
	}
	if m.Relation() != "staging.stg_accounts" {
		t.Errorf("relation = %q", m.Relation())
	}
}

func TestParseContent_ExplicitBody(t *testing.T) {
	p := NewParser("models")
	content := `/*---
materialized: table
---*/
SELECT id, name
FROM {{ source("fortnox_raw", "accounts") }}
WHERE id IN (SELECT account_id FROM {{ ref("staging.stg_assets_types") }})`

	m, err := p.ParseContent(filepath.Join("models", "staging", "active_accounts.sql"), content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.Materialized != MaterializedTable {
		t.Errorf("materialized = %q", m.Materialized)
	}
	if len(m.SourceRefs) != 1 {
		t.Fatalf("source refs = %v", m.SourceRefs)
	}
	if m.SourceRefs[0].Namespace != "fortnox_raw" || m.SourceRefs[0].Table != "accounts" {
		t.Errorf("source ref = %+v", m.SourceRefs[0])
	}
	if len(m.Refs) != 1 || m.Refs[0] != "staging.stg_assets_types" {
		t.Errorf("refs = %v", m.Refs)
	}
}

func TestParseContent_SingleQuotedRefs(t *testing.T) {
	p := NewParser("models")
	content := `SELECT * FROM {{ source('fortnox_raw', 'accounts') }}`

	m, err := p.ParseContent(filepath.Join("models", "staging", "stg_accounts.sql"), content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.SourceRefs) != 1 {
		t.Errorf("source refs = %v", m.SourceRefs)
	}
}

func TestParseContent_NameOverride(t *testing.T) {
	p := NewParser("models")
	content := `/*---
name: accounts_staged
schema: clean
source:
  namespace: fortnox_raw
  table: accounts
---*/`

	m, err := p.ParseContent(filepath.Join("models", "staging", "stg_accounts.sql"), content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Path != "clean.accounts_staged" {
		t.Errorf("path = %q", m.Path)
	}
}

func TestParseContent_NoSourceNoBody(t *testing.T) {
	p := NewParser("models")
	_, err := p.ParseContent(filepath.Join("models", "staging", "empty.sql"), "/*---\ndescription: nothing\n---*/")
	if err == nil {
		t.Fatal("expected error for model with no source and no SQL")
	}
}

func TestParseContent_SchemaFromRootFile(t *testing.T) {
	p := NewParser("models")
	m, err := p.ParseContent(filepath.Join("models", "orphan.sql"), "SELECT 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Schema != "staging" {
		t.Errorf("schema = %q, want staging default", m.Schema)
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	stagingDir := filepath.Join(dir, "staging")
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(stagingDir, "stg_accounts.sql")
	content := `/*---
source:
  namespace: fortnox_raw
  table: accounts
---*/`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := NewParser(dir).ParseFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Path != "staging.stg_accounts" {
		t.Errorf("path = %q", m.Path)
	}
}

func TestParseFile_Missing(t *testing.T) {
	if _, err := NewParser("").ParseFile("/nonexistent/model.sql"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseContent_ErrorCarriesFile(t *testing.T) {
	p := NewParser("models")
	path := filepath.Join("models", "staging", "bad.sql")
	_, err := p.ParseContent(path, "/*---\nunique_key: id\n---*/\nSELECT 1")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); !strings.Contains(got, path) {
		t.Errorf("error %q does not mention file", got)
	}
}
