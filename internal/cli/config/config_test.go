package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "stagehand.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "")

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(dir, "models"), cfg.ModelsDir)
	assert.Equal(t, filepath.Join(dir, "seeds"), cfg.SeedsDir)
	assert.Equal(t, filepath.Join(dir, "sources.yaml"), cfg.SourcesPath)
	assert.Equal(t, filepath.Join(dir, ".stagehand", "state.db"), cfg.StatePath)
	assert.Equal(t, "dev", cfg.Environment)
	assert.Equal(t, DefaultJobs, cfg.Jobs)
	assert.Equal(t, "duckdb", cfg.Target.Type)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `models_dir: transforms
environment: prod
jobs: 8
target:
  type: postgres
  host: db.internal
  port: 5433
  database: warehouse
  user: stagehand
  schema: public
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "transforms"), cfg.ModelsDir)
	assert.Equal(t, "prod", cfg.Environment)
	assert.Equal(t, 8, cfg.Jobs)
	assert.Equal(t, "postgres", cfg.Target.Type)
	assert.Equal(t, "db.internal", cfg.Target.Host)
	assert.Equal(t, 5433, cfg.Target.Port)
}

func TestLoad_EnvVarOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "environment: dev\n")

	t.Setenv("STAGEHAND_ENVIRONMENT", "prod")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.Environment)
}

func TestLoad_FlagOverridesEnvVar(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "")

	t.Setenv("STAGEHAND_ENVIRONMENT", "prod")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("environment", "", "")
	require.NoError(t, flags.Parse([]string{"--environment", "staging"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Environment)
}

func TestLoad_StateFlagMapsToStatePath(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("state", "", "")
	require.NoError(t, flags.Parse([]string{"--state", "/tmp/custom.db"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.db", cfg.StatePath)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `environment: prod
target:
  type: duckdb
  path: dev.duckdb
environments:
  prod:
    target:
      type: postgres
      host: prod-db.internal
      database: warehouse
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Target.Type)
	assert.Equal(t, "prod-db.internal", cfg.Target.Host)
}

func TestLoad_CredentialEnvExpansion(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `target:
  type: postgres
  host: db.internal
  password: ${STAGEHAND_TEST_PW}
`)

	t.Setenv("STAGEHAND_TEST_PW", "s3cret")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Target.Password)
}

func TestLoad_InvalidJobs(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "jobs: 0\n")

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jobs")
}

func TestMergeTargetConfig(t *testing.T) {
	base := &TargetConfig{
		Type:    "duckdb",
		Path:    "dev.duckdb",
		Options: map[string]string{"threads": "2"},
	}
	override := &TargetConfig{
		Type:    "postgres",
		Host:    "db.internal",
		Options: map[string]string{"sslmode": "require"},
	}

	merged := MergeTargetConfig(base, override)
	assert.Equal(t, "postgres", merged.Type)
	assert.Equal(t, "db.internal", merged.Host)
	assert.Equal(t, "dev.duckdb", merged.Path) // not overridden
	assert.Equal(t, "2", merged.Options["threads"])
	assert.Equal(t, "require", merged.Options["sslmode"])

	assert.Same(t, override, MergeTargetConfig(nil, override))
	assert.Same(t, base, MergeTargetConfig(base, nil))
}

func TestValidateDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{ModelsDir: filepath.Join(dir, "missing")}
	require.Error(t, cfg.ValidateDirectories())

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "models"), 0755))
	cfg.ModelsDir = filepath.Join(dir, "models")
	require.NoError(t, cfg.ValidateDirectories())
}
