package parser

import (
	"errors"
	"testing"
)

func TestExtractFrontmatter_Passthrough(t *testing.T) {
	content := `/*---
description: Staged Fortnox accounts
source:
  namespace: fortnox_raw
  table: accounts
---*/`

	result, err := ExtractFrontmatter(content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.HasYAML {
		t.Error("expected HasYAML to be true")
	}
	if result.SQL != "" {
		t.Errorf("expected empty SQL body, got %q", result.SQL)
	}
	if result.Config.Source == nil {
		t.Fatal("expected source to be set")
	}
	if result.Config.Source.Namespace != "fortnox_raw" {
		t.Errorf("expected namespace fortnox_raw, got %q", result.Config.Source.Namespace)
	}
	if result.Config.Source.Table != "accounts" {
		t.Errorf("expected table accounts, got %q", result.Config.Source.Table)
	}
}

func TestExtractFrontmatter_AllFields(t *testing.T) {
	content := `/*---
name: stg_assets_types
description: Staged asset types
materialized: table
owner: data-platform
schema: staging
source:
  namespace: fortnox_raw
  table: assets_types
tags:
  - fortnox
meta:
  pii: false
---*/

SELECT * FROM {{ source("fortnox_raw", "assets_types") }}`

	result, err := ExtractFrontmatter(content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := result.Config
	if cfg.Name != "stg_assets_types" {
		t.Errorf("name = %q", cfg.Name)
	}
	if cfg.Materialized != "table" {
		t.Errorf("materialized = %q", cfg.Materialized)
	}
	if cfg.Owner != "data-platform" {
		t.Errorf("owner = %q", cfg.Owner)
	}
	if cfg.Schema != "staging" {
		t.Errorf("schema = %q", cfg.Schema)
	}
	if len(cfg.Tags) != 1 || cfg.Tags[0] != "fortnox" {
		t.Errorf("tags = %v", cfg.Tags)
	}
	if cfg.Meta["pii"] != false {
		t.Errorf("meta = %v", cfg.Meta)
	}
	if result.SQL != `SELECT * FROM {{ source("fortnox_raw", "assets_types") }}` {
		t.Errorf("SQL = %q", result.SQL)
	}
}

func TestExtractFrontmatter_NoBlock(t *testing.T) {
	result, err := ExtractFrontmatter("SELECT 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.HasYAML {
		t.Error("expected HasYAML to be false")
	}
	if result.SQL != "SELECT 1" {
		t.Errorf("SQL = %q", result.SQL)
	}
}

func TestExtractFrontmatter_UnknownField(t *testing.T) {
	content := `/*---
unique_key: id
---*/
SELECT 1`

	_, err := ExtractFrontmatter(content)
	var unknown *UnknownFieldError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownFieldError, got %v", err)
	}
	if unknown.Field != "unique_key" {
		t.Errorf("field = %q", unknown.Field)
	}
}

func TestExtractFrontmatter_InvalidMaterialized(t *testing.T) {
	content := `/*---
materialized: incremental
---*/
SELECT 1`

	_, err := ExtractFrontmatter(content)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestExtractFrontmatter_IncompleteSource(t *testing.T) {
	content := `/*---
source:
  namespace: fortnox_raw
---*/`

	if _, err := ExtractFrontmatter(content); err == nil {
		t.Error("expected error for source without table")
	}
}

func TestExtractFrontmatter_InvalidYAML(t *testing.T) {
	content := `/*---
: not yaml
  [
---*/
SELECT 1`

	if _, err := ExtractFrontmatter(content); err == nil {
		t.Error("expected error for invalid YAML")
	}
}
