// Package config provides Redraft configuration with a defined load order:
// CLI flags > environment variables > repo config > global config > defaults.
//
// Paths:
//   - Repo: .redraft/config.toml (relative to repo root)
//   - Global: XDG config dir, e.g. ~/.config/redraft/config.toml (see os.UserConfigDir)
//
// Environment variables (override config files when set):
//   - REDRAFT_MODEL, REDRAFT_BASE_URL, REDRAFT_API_KEY (falls back to OPENAI_API_KEY),
//   - REDRAFT_TEMPERATURE, REDRAFT_MAX_OUTPUT_TOKENS,
//   - REDRAFT_TIMEOUT (Go duration string or integer seconds),
//   - REDRAFT_FLUSH_INTERVAL (Go duration string; clamped to the supported cadence),
//   - REDRAFT_STATE_DIR.
package config

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"redraft/cli/internal/erruser"
	"redraft/cli/internal/stream"
)

// Config holds all Redraft configuration. An empty StateDir means "use the
// default behavior" (.redraft in the repo root).
type Config struct {
	Model   string `toml:"model"`
	BaseURL string `toml:"base_url"`
	// APIKey is usually supplied through the environment; the TOML key exists
	// for self-hosted endpoints where the key is not a secret.
	APIKey      string        `toml:"api_key"`
	Temperature float64       `toml:"temperature"`
	// MaxOutputTokens caps the generation length (0 = provider default).
	MaxOutputTokens int           `toml:"max_output_tokens"`
	Timeout         time.Duration `toml:"timeout"`
	// FlushInterval is the streaming re-parse cadence. Values outside the
	// supported range are clamped, never rejected.
	FlushInterval time.Duration `toml:"flush_interval"`
	StateDir      string        `toml:"state_dir"`
}

// Overrides represents optional CLI flag overrides. Non-nil pointer means
// "override with this value".
type Overrides struct {
	Model           *string
	BaseURL         *string
	APIKey          *string
	Temperature     *float64
	MaxOutputTokens *int
	Timeout         *time.Duration
	FlushInterval   *time.Duration
	StateDir        *string
}

// LoadOptions configures Load. All fields are optional.
type LoadOptions struct {
	// RepoRoot is the repository root; if set, repo config is RepoRoot/.redraft/config.toml.
	RepoRoot string
	// GlobalConfigPath is the global config file path; if empty, XDG path is used.
	GlobalConfigPath string
	// Env is the environment key=value slice; if nil, os.Environ() is used.
	Env []string
	// Overrides are applied last (highest precedence).
	Overrides *Overrides
}

const (
	_defaultModel       = "gpt-4o-mini"
	_defaultBaseURL     = "https://api.openai.com/v1"
	_defaultTemperature = 0.2
	_defaultTimeout     = 5 * time.Minute
)

// errIntOverflow is returned when an int64 value does not fit in int (e.g. on 32-bit or huge TOML/env values).
var errIntOverflow = errors.New("value out of range for int")

// int64ToInt converts n to int. It returns an error if n is outside the range of int.
func int64ToInt(n int64) (int, error) {
	if n < int64(math.MinInt) || n > int64(math.MaxInt) {
		return 0, errIntOverflow
	}
	return int(n), nil
}

// DefaultConfig returns the default configuration (no I/O).
func DefaultConfig() Config {
	return Config{
		Model:         _defaultModel,
		BaseURL:       _defaultBaseURL,
		Temperature:   _defaultTemperature,
		Timeout:       _defaultTimeout,
		FlushInterval: stream.DefaultInterval,
	}
}

// EffectiveStateDir returns the directory used for the custom system prompt
// and other per-repo state. If StateDir is set, it is returned as-is;
// otherwise repoRoot/.redraft is returned.
func (c Config) EffectiveStateDir(repoRoot string) string {
	if c.StateDir != "" {
		return c.StateDir
	}
	return filepath.Join(repoRoot, ".redraft")
}

// Load loads configuration with precedence: defaults < global file < repo file < env < overrides.
// Missing config files are ignored. Invalid TOML or invalid env values return an error.
// The flush interval is clamped to the supported cadence after all sources apply.
func Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	cfg := DefaultConfig()

	globalPath := opts.GlobalConfigPath
	if globalPath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, erruser.New("Could not determine config directory.", err)
		}
		globalPath = filepath.Join(dir, "redraft", "config.toml")
	}
	if err := mergeFile(&cfg, globalPath); err != nil {
		return nil, err
	}

	if opts.RepoRoot != "" {
		repoPath := filepath.Join(opts.RepoRoot, ".redraft", "config.toml")
		if err := mergeFile(&cfg, repoPath); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg, opts.Env); err != nil {
		return nil, err
	}

	applyOverrides(&cfg, opts.Overrides)
	cfg.FlushInterval = stream.ClampInterval(cfg.FlushInterval)
	return &cfg, nil
}

// mergeFile reads path and merges into cfg. Only overwrites fields that are
// present and non-zero in the file (so explicit empty/zero in TOML keeps previous value).
// Missing file is skipped (no error).
func mergeFile(cfg *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return erruser.New("Invalid configuration file.", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return erruser.New("Could not read configuration file.", err)
	}
	var file struct {
		Model           *string  `toml:"model"`
		BaseURL         *string  `toml:"base_url"`
		APIKey          *string  `toml:"api_key"`
		Temperature     *float64 `toml:"temperature"`
		MaxOutputTokens *int64   `toml:"max_output_tokens"`
		Timeout         *string  `toml:"timeout"`
		FlushInterval   *string  `toml:"flush_interval"`
		StateDir        *string  `toml:"state_dir"`
	}
	if _, err := toml.Decode(string(data), &file); err != nil {
		return erruser.New("Invalid configuration in .redraft/config.toml.", err)
	}
	if file.Model != nil && *file.Model != "" {
		cfg.Model = *file.Model
	}
	if file.BaseURL != nil && *file.BaseURL != "" {
		cfg.BaseURL = *file.BaseURL
	}
	if file.APIKey != nil && *file.APIKey != "" {
		cfg.APIKey = *file.APIKey
	}
	if file.Temperature != nil && *file.Temperature >= 0 && *file.Temperature <= 2 {
		cfg.Temperature = *file.Temperature
	}
	if file.MaxOutputTokens != nil && *file.MaxOutputTokens > 0 {
		v, err := int64ToInt(*file.MaxOutputTokens)
		if err != nil {
			return erruser.New("Configuration max_output_tokens value out of range.", err)
		}
		cfg.MaxOutputTokens = v
	}
	if file.Timeout != nil && *file.Timeout != "" {
		d, err := parseDuration(*file.Timeout)
		if err != nil {
			return erruser.New("Configuration timeout is invalid.", err)
		}
		cfg.Timeout = d
	}
	if file.FlushInterval != nil && *file.FlushInterval != "" {
		d, err := parseDuration(*file.FlushInterval)
		if err != nil {
			return erruser.New("Configuration flush_interval is invalid.", err)
		}
		cfg.FlushInterval = d
	}
	if file.StateDir != nil {
		cfg.StateDir = *file.StateDir
	}
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	// Try Go duration first (e.g. "5m", "80ms")
	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}
	// Try integer seconds
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return time.Duration(n) * time.Second, nil
}

// env key names for config
const (
	envModel           = "REDRAFT_MODEL"
	envBaseURL         = "REDRAFT_BASE_URL"
	envAPIKey          = "REDRAFT_API_KEY"
	envAPIKeyFallback  = "OPENAI_API_KEY"
	envTemperature     = "REDRAFT_TEMPERATURE"
	envMaxOutputTokens = "REDRAFT_MAX_OUTPUT_TOKENS"
	envTimeout         = "REDRAFT_TIMEOUT"
	envFlushInterval   = "REDRAFT_FLUSH_INTERVAL"
	envStateDir        = "REDRAFT_STATE_DIR"
)

func applyEnv(cfg *Config, env []string) error {
	vals := make(map[string]string)
	for _, e := range env {
		idx := strings.Index(e, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(e[:idx])
		val := strings.TrimSpace(e[idx+1:])
		vals[key] = val
	}
	if v, ok := vals[envModel]; ok && v != "" {
		cfg.Model = v
	}
	if v, ok := vals[envBaseURL]; ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := vals[envAPIKey]; ok && v != "" {
		cfg.APIKey = v
	} else if v, ok := vals[envAPIKeyFallback]; ok && v != "" && cfg.APIKey == "" {
		cfg.APIKey = v
	}
	if v, ok := vals[envTemperature]; ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return erruser.New("REDRAFT_TEMPERATURE must be a valid number.", err)
		}
		if f < 0 || f > 2 {
			return erruser.New("REDRAFT_TEMPERATURE must be between 0 and 2.", nil)
		}
		cfg.Temperature = f
	}
	if v, ok := vals[envMaxOutputTokens]; ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return erruser.New("REDRAFT_MAX_OUTPUT_TOKENS must be a valid number.", err)
		}
		if n < 0 {
			return erruser.New("REDRAFT_MAX_OUTPUT_TOKENS must be non-negative.", nil)
		}
		cfg.MaxOutputTokens, err = int64ToInt(n)
		if err != nil {
			return erruser.New("REDRAFT_MAX_OUTPUT_TOKENS value out of range.", err)
		}
	}
	if v, ok := vals[envTimeout]; ok && v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return erruser.New("REDRAFT_TIMEOUT must be a valid duration.", err)
		}
		cfg.Timeout = d
	}
	if v, ok := vals[envFlushInterval]; ok && v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return erruser.New("REDRAFT_FLUSH_INTERVAL must be a valid duration.", err)
		}
		cfg.FlushInterval = d
	}
	if v, ok := vals[envStateDir]; ok {
		cfg.StateDir = v
	}
	return nil
}

func applyOverrides(cfg *Config, o *Overrides) {
	if o == nil {
		return
	}
	if o.Model != nil {
		cfg.Model = *o.Model
	}
	if o.BaseURL != nil {
		cfg.BaseURL = *o.BaseURL
	}
	if o.APIKey != nil {
		cfg.APIKey = *o.APIKey
	}
	if o.Temperature != nil {
		cfg.Temperature = *o.Temperature
	}
	if o.MaxOutputTokens != nil {
		v := *o.MaxOutputTokens
		if v < 0 {
			v = 0
		}
		cfg.MaxOutputTokens = v
	}
	if o.Timeout != nil {
		cfg.Timeout = *o.Timeout
	}
	if o.FlushInterval != nil {
		cfg.FlushInterval = *o.FlushInterval
	}
	if o.StateDir != nil {
		cfg.StateDir = *o.StateDir
	}
}
