package source

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleSources = `
sources:
  - namespace: fortnox_raw
    description: Raw Fortnox API extracts
    tables:
      - name: accounts
      - name: assets_types
        identifier: assets_types_v2
  - namespace: shopify_raw
    schema: shopify
    tables:
      - name: orders
`

func TestParse_Valid(t *testing.T) {
	c, err := Parse([]byte(sampleSources))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.Len() != 3 {
		t.Errorf("expected 3 tables, got %d", c.Len())
	}

	namespaces := c.Namespaces()
	if len(namespaces) != 2 {
		t.Fatalf("expected 2 namespaces, got %d", len(namespaces))
	}
	if namespaces[0].Name != "fortnox_raw" {
		t.Errorf("expected fortnox_raw first, got %q", namespaces[0].Name)
	}
}

func TestResolve_Passthrough(t *testing.T) {
	c, err := Parse([]byte(sampleSources))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rel, err := c.Resolve("fortnox_raw", "accounts")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if rel.Qualified() != "fortnox_raw.accounts" {
		t.Errorf("expected fortnox_raw.accounts, got %q", rel.Qualified())
	}
}

func TestResolve_IdentifierOverride(t *testing.T) {
	c, _ := Parse([]byte(sampleSources))

	rel, err := c.Resolve("fortnox_raw", "assets_types")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if rel.Qualified() != "fortnox_raw.assets_types_v2" {
		t.Errorf("expected identifier override, got %q", rel.Qualified())
	}
}

func TestResolve_SchemaOverride(t *testing.T) {
	c, _ := Parse([]byte(sampleSources))

	rel, err := c.Resolve("shopify_raw", "orders")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if rel.Qualified() != "shopify.orders" {
		t.Errorf("expected schema override, got %q", rel.Qualified())
	}
}

func TestResolve_NotFound(t *testing.T) {
	c, _ := Parse([]byte(sampleSources))

	tests := []struct {
		namespace, table string
	}{
		{"fortnox_raw", "invoices"},
		{"unknown_raw", "accounts"},
	}

	for _, tt := range tests {
		_, err := c.Resolve(tt.namespace, tt.table)
		if err == nil {
			t.Fatalf("expected error for %s.%s", tt.namespace, tt.table)
		}
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected errors.Is(err, ErrNotFound) for %s.%s", tt.namespace, tt.table)
		}
		var nfe *NotFoundError
		if !errors.As(err, &nfe) {
			t.Errorf("expected *NotFoundError, got %T", err)
		} else if nfe.Namespace != tt.namespace || nfe.Table != tt.table {
			t.Errorf("error carries %s.%s, want %s.%s", nfe.Namespace, nfe.Table, tt.namespace, tt.table)
		}
	}
}

func TestResolve_EmptyCatalog(t *testing.T) {
	_, err := Empty().Resolve("fortnox_raw", "accounts")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound from empty catalog, got %v", err)
	}
}

func TestParse_DuplicateNamespace(t *testing.T) {
	doc := `
sources:
  - namespace: fortnox_raw
    tables:
      - name: accounts
  - namespace: fortnox_raw
    tables:
      - name: invoices
`
	if _, err := Parse([]byte(doc)); err == nil {
		t.Error("expected error for duplicate namespace")
	}
}

func TestParse_DuplicateTable(t *testing.T) {
	doc := `
sources:
  - namespace: fortnox_raw
    tables:
      - name: accounts
      - name: accounts
`
	if _, err := Parse([]byte(doc)); err == nil {
		t.Error("expected error for duplicate table")
	}
}

func TestParse_UnknownField(t *testing.T) {
	doc := `
sources:
  - namespace: fortnox_raw
    freshness: 1h
    tables:
      - name: accounts
`
	if _, err := Parse([]byte(doc)); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestParse_MissingNamespace(t *testing.T) {
	doc := `
sources:
  - tables:
      - name: accounts
`
	if _, err := Parse([]byte(doc)); err == nil {
		t.Error("expected error for missing namespace name")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte(sampleSources), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if c.Len() != 3 {
		t.Errorf("expected 3 tables, got %d", c.Len())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
