package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/meltworks/stagehand/internal/testutil"
)

// newTestEngine builds an engine over a temp project. files maps
// project-relative paths to contents.
func newTestEngine(t *testing.T, files map[string]string) *Engine {
	t.Helper()
	tmpDir := t.TempDir()

	for rel, content := range files {
		path := filepath.Join(tmpDir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("MkdirAll failed: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	cfg := Config{
		ModelsDir:   filepath.Join(tmpDir, "models"),
		SeedsDir:    filepath.Join(tmpDir, "seeds"),
		SourcesPath: filepath.Join(tmpDir, "sources.yaml"),
		StatePath:   filepath.Join(tmpDir, "state.db"),
		Logger:      testutil.NewTestLogger(t),
	}

	eng, err := New(cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

const testSources = `sources:
  - namespace: fortnox_raw
    tables:
      - name: accounts
      - name: assets_types
`

func TestDiscover_Passthroughs(t *testing.T) {
	eng := newTestEngine(t, map[string]string{
		"sources.yaml": testSources,
		"models/staging/stg_accounts.sql": `/*---
source:
  namespace: fortnox_raw
  table: accounts
---*/
`,
		"models/staging/stg_assets_types.sql": `/*---
source:
  namespace: fortnox_raw
  table: assets_types
---*/
`,
	})

	result, err := eng.Discover()
	if err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}
	if result.HasErrors() {
		t.Fatalf("unexpected discovery errors: %v", result.Errors)
	}
	if result.ModelsTotal != 2 {
		t.Errorf("expected 2 models, got %d", result.ModelsTotal)
	}

	if _, ok := eng.Models()["staging.stg_accounts"]; !ok {
		t.Error("staging.stg_accounts not discovered")
	}
	if _, ok := eng.Models()["staging.stg_assets_types"]; !ok {
		t.Error("staging.stg_assets_types not discovered")
	}

	// Passthrough models are independent: one execution level.
	levels, err := eng.Graph().Levels()
	if err != nil {
		t.Fatalf("Levels() failed: %v", err)
	}
	if len(levels) != 1 {
		t.Errorf("expected 1 level, got %d", len(levels))
	}
	if len(levels[0]) != 2 {
		t.Errorf("expected both models in level 0, got %v", levels[0])
	}
}

func TestDiscover_RefEdges(t *testing.T) {
	eng := newTestEngine(t, map[string]string{
		"sources.yaml": testSources,
		"models/staging/stg_accounts.sql": `/*---
source:
  namespace: fortnox_raw
  table: accounts
---*/
`,
		"models/marts/account_counts.sql": `SELECT COUNT(*) AS n FROM {{ ref("staging.stg_accounts") }}`,
	})

	if _, err := eng.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	parents := eng.Graph().Parents("marts.account_counts")
	if len(parents) != 1 || parents[0] != "staging.stg_accounts" {
		t.Errorf("expected mart to depend on staging model, got %v", parents)
	}

	levels, err := eng.Graph().Levels()
	if err != nil {
		t.Fatalf("Levels() failed: %v", err)
	}
	if len(levels) != 2 {
		t.Errorf("expected 2 levels, got %d", len(levels))
	}
}

func TestDiscover_BareRefName(t *testing.T) {
	eng := newTestEngine(t, map[string]string{
		"sources.yaml": testSources,
		"models/staging/stg_accounts.sql": `/*---
source:
  namespace: fortnox_raw
  table: accounts
---*/
`,
		"models/marts/account_counts.sql": `SELECT COUNT(*) AS n FROM {{ ref("stg_accounts") }}`,
	})

	if _, err := eng.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	parents := eng.Graph().Parents("marts.account_counts")
	if len(parents) != 1 || parents[0] != "staging.stg_accounts" {
		t.Errorf("bare ref did not resolve, got parents %v", parents)
	}
}

func TestDiscover_UnknownRef(t *testing.T) {
	eng := newTestEngine(t, map[string]string{
		"sources.yaml":             testSources,
		"models/marts/orphan.sql": `SELECT * FROM {{ ref("staging.missing") }}`,
	})

	if _, err := eng.Discover(); err == nil {
		t.Fatal("expected error for ref to unknown model")
	}
}

func TestDiscover_ParseErrorsAreNonFatal(t *testing.T) {
	eng := newTestEngine(t, map[string]string{
		"sources.yaml": testSources,
		"models/staging/stg_accounts.sql": `/*---
source:
  namespace: fortnox_raw
  table: accounts
---*/
`,
		"models/staging/broken.sql": `/*---
materialized: pyramid
---*/
SELECT 1`,
	})

	result, err := eng.Discover()
	if err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}
	if !result.HasErrors() {
		t.Fatal("expected a discovery error for invalid materialization")
	}
	if result.ModelsTotal != 1 {
		t.Errorf("expected the valid model to survive, got %d models", result.ModelsTotal)
	}
}

func TestDiscover_MissingModelsDir(t *testing.T) {
	tmpDir := t.TempDir()
	eng, err := New(Config{
		ModelsDir: filepath.Join(tmpDir, "does-not-exist"),
		StatePath: filepath.Join(tmpDir, "state.db"),
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer eng.Close()

	if _, err := eng.Discover(); err == nil {
		t.Fatal("expected error for missing models directory")
	}
}
