package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey stores the logger in the command context.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search
// for a config file.
const maxUpwardSearchLevels = 10

var configFileNames = []string{"stagehand.yaml", "stagehand.yml"}

var configFileUsed string

// configExistsIn checks if a stagehand config file exists in dir.
func configExistsIn(dir string) bool {
	for _, name := range configFileNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// findProjectRootUpward searches upward from startDir for a config file.
func findProjectRootUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if configExistsIn(dir) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// inferProjectRoot determines the project root.
// Priority: --project-dir flag > upward search from CWD > CWD.
func inferProjectRoot(flags *pflag.FlagSet) string {
	if flags != nil && flags.Changed("project-dir") {
		if projectDir, _ := flags.GetString("project-dir"); projectDir != "" {
			if abs, err := filepath.Abs(projectDir); err == nil {
				return abs
			}
			return filepath.Clean(projectDir)
		}
	}

	if cwd, err := os.Getwd(); err == nil {
		if root := findProjectRootUpward(cwd); root != "" {
			return root
		}
	}

	cwd, _ := os.Getwd()
	if cwd == "" {
		cwd = "."
	}
	return cwd
}

// resolvePathRelativeTo resolves path against baseDir unless absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// Load loads configuration from defaults, config file, environment
// variables and flags, in increasing precedence.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	projectRoot := inferProjectRoot(flags)

	// If an explicit config file was given, its directory is the project
	// root unless --project-dir said otherwise.
	if cfgFile != "" && (flags == nil || !flags.Changed("project-dir")) {
		if absPath, err := filepath.Abs(cfgFile); err == nil {
			projectRoot = filepath.Dir(absPath)
		}
	}

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"models_dir":   DefaultModelsDir,
		"seeds_dir":    DefaultSeedsDir,
		"sources_path": DefaultSourcesPath,
		"state_path":   DefaultStateFile,
		"environment":  DefaultEnv,
		"verbose":      false,
		"output":       DefaultOutput,
		"jobs":         DefaultJobs,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if cfgFile == "" {
		for _, name := range configFileNames {
			candidate := filepath.Join(projectRoot, name)
			if _, err := os.Stat(candidate); err == nil {
				cfgFile = candidate
				break
			}
		}
	}
	configFileUsed = cfgFile
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment variables: STAGEHAND_MODELS_DIR -> models_dir,
	// STAGEHAND_TARGET__TYPE -> target.type
	if err := k.Load(env.Provider("STAGEHAND_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "STAGEHAND_"))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (highest priority; only explicitly set flags apply)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			// kebab-case flag names map to snake_case config keys
			key := strings.ReplaceAll(f.Name, "-", "_")

			// --state and --sources are shorthand for the *_path config keys
			if key == "state" {
				return "state_path", posflag.FlagVal(flags, f)
			}
			if key == "sources" {
				return "sources_path", posflag.FlagVal(flags, f)
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.ProjectRoot = projectRoot

	// Environment-specific overrides
	if cfg.Environment != "" && cfg.Environments != nil {
		if envCfg, ok := cfg.Environments[cfg.Environment]; ok {
			if envCfg.ModelsDir != "" {
				cfg.ModelsDir = envCfg.ModelsDir
			}
			if envCfg.SeedsDir != "" {
				cfg.SeedsDir = envCfg.SeedsDir
			}
			if envCfg.SourcesPath != "" {
				cfg.SourcesPath = envCfg.SourcesPath
			}
			if envCfg.StatePath != "" {
				cfg.StatePath = envCfg.StatePath
			}
			if envCfg.Target != nil {
				cfg.Target = MergeTargetConfig(cfg.Target, envCfg.Target)
			}
		}
	}

	cfg.ModelsDir = resolvePathRelativeTo(cfg.ModelsDir, projectRoot)
	cfg.SeedsDir = resolvePathRelativeTo(cfg.SeedsDir, projectRoot)
	cfg.SourcesPath = resolvePathRelativeTo(cfg.SourcesPath, projectRoot)
	cfg.StatePath = resolvePathRelativeTo(cfg.StatePath, projectRoot)

	if cfg.Target == nil {
		cfg.Target = &TargetConfig{Type: "duckdb"}
	}
	if cfg.Target.Type == "" {
		cfg.Target.Type = "duckdb"
	}
	if cfg.Target.Type == "duckdb" && cfg.Target.Path != "" && cfg.Target.Path != ":memory:" {
		cfg.Target.Path = resolvePathRelativeTo(cfg.Target.Path, projectRoot)
	}

	expandTargetEnvVars(cfg.Target)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ConfigFileUsed returns the config file path loaded by Load, if any.
func ConfigFileUsed() string {
	return configFileUsed
}

// configKey stores the loaded config in the command context.
type configKey struct{}

// WithConfig stores the config in a context.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from the command context, or a
// default config if none was stored.
func FromContext(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	return &Config{
		ModelsDir:   DefaultModelsDir,
		SeedsDir:    DefaultSeedsDir,
		SourcesPath: DefaultSourcesPath,
		StatePath:   DefaultStateFile,
		Environment: DefaultEnv,
		Jobs:        DefaultJobs,
	}
}

// WithLogger stores the logger in a context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerKey returns the context key used for storing the logger.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})
}

// expandTargetEnvVars expands env var references in credential fields so
// secrets stay out of stagehand.yaml.
func expandTargetEnvVars(t *TargetConfig) {
	if t == nil {
		return
	}
	t.Host = expandEnvVars(t.Host)
	t.Database = expandEnvVars(t.Database)
	t.User = expandEnvVars(t.User)
	t.Password = expandEnvVars(t.Password)
}
