package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"redraft/cli/internal/stream"
)

func ptrStr(s string) *string { return &s }

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	c := DefaultConfig()
	if c.Model != _defaultModel {
		t.Errorf("Model = %q, want %q", c.Model, _defaultModel)
	}
	if c.BaseURL != _defaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", c.BaseURL, _defaultBaseURL)
	}
	if c.Temperature != _defaultTemperature {
		t.Errorf("Temperature = %f, want %f", c.Temperature, _defaultTemperature)
	}
	if c.Timeout != _defaultTimeout {
		t.Errorf("Timeout = %v, want %v", c.Timeout, _defaultTimeout)
	}
	if c.FlushInterval != stream.DefaultInterval {
		t.Errorf("FlushInterval = %v, want %v", c.FlushInterval, stream.DefaultInterval)
	}
	if c.StateDir != "" || c.APIKey != "" {
		t.Errorf("StateDir or APIKey non-empty: %q, %q", c.StateDir, c.APIKey)
	}
}

func TestLoad_defaultsOnly(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfg, err := Load(context.Background(), LoadOptions{
		RepoRoot:         dir,
		GlobalConfigPath: filepath.Join(dir, "nonexistent.toml"),
		Env:              []string{},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := DefaultConfig()
	if cfg.Model != want.Model || cfg.BaseURL != want.BaseURL ||
		cfg.Temperature != want.Temperature || cfg.Timeout != want.Timeout {
		t.Errorf("got %+v, want defaults %+v", cfg, want)
	}
}

func TestLoad_globalOnly(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	globalPath := filepath.Join(dir, "global.toml")
	writeConfig(t, globalPath, `model = "custom-model"`)
	cfg, err := Load(context.Background(), LoadOptions{
		GlobalConfigPath: globalPath,
		Env:              []string{},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model != "custom-model" {
		t.Errorf("Model = %q, want custom-model", cfg.Model)
	}
	if cfg.BaseURL != _defaultBaseURL {
		t.Errorf("BaseURL should remain default, got %q", cfg.BaseURL)
	}
}

func TestLoad_repoOverridesGlobal(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	globalPath := filepath.Join(dir, "global.toml")
	repoRoot := filepath.Join(dir, "repo")
	writeConfig(t, globalPath, `model = "global-model"`)
	writeConfig(t, filepath.Join(repoRoot, ".redraft", "config.toml"), `model = "repo-model"`)
	cfg, err := Load(context.Background(), LoadOptions{
		RepoRoot:         repoRoot,
		GlobalConfigPath: globalPath,
		Env:              []string{},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model != "repo-model" {
		t.Errorf("Model = %q, want repo-model (repo overrides global)", cfg.Model)
	}
}

func TestLoad_envOverridesRepo(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	repoRoot := filepath.Join(dir, "repo")
	writeConfig(t, filepath.Join(repoRoot, ".redraft", "config.toml"), `model = "repo-model"`)
	cfg, err := Load(context.Background(), LoadOptions{
		RepoRoot:         repoRoot,
		GlobalConfigPath: filepath.Join(dir, "nonexistent.toml"),
		Env:              []string{"REDRAFT_MODEL=env-model"},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model != "env-model" {
		t.Errorf("Model = %q, want env-model (env overrides repo)", cfg.Model)
	}
}

func TestLoad_overridesBeatEnv(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfg, err := Load(context.Background(), LoadOptions{
		GlobalConfigPath: filepath.Join(dir, "nonexistent.toml"),
		Env:              []string{"REDRAFT_MODEL=env-model"},
		Overrides:        &Overrides{Model: ptrStr("flag-model")},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model != "flag-model" {
		t.Errorf("Model = %q, want flag-model (flags beat env)", cfg.Model)
	}
}

func TestLoad_apiKeyEnvFallback(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	opts := LoadOptions{GlobalConfigPath: filepath.Join(dir, "nonexistent.toml")}

	opts.Env = []string{"OPENAI_API_KEY=fallback-key"}
	cfg, err := Load(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIKey != "fallback-key" {
		t.Errorf("APIKey = %q, want OPENAI_API_KEY fallback", cfg.APIKey)
	}

	opts.Env = []string{"OPENAI_API_KEY=fallback-key", "REDRAFT_API_KEY=primary-key"}
	cfg, err = Load(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIKey != "primary-key" {
		t.Errorf("APIKey = %q, want REDRAFT_API_KEY to win", cfg.APIKey)
	}
}

func TestLoad_flushIntervalClamped(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cases := []struct {
		name string
		env  string
		want time.Duration
	}{
		{"below range", "REDRAFT_FLUSH_INTERVAL=10ms", stream.MinInterval},
		{"above range", "REDRAFT_FLUSH_INTERVAL=2s", stream.MaxInterval},
		{"in range", "REDRAFT_FLUSH_INTERVAL=75ms", 75 * time.Millisecond},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := Load(context.Background(), LoadOptions{
				GlobalConfigPath: filepath.Join(dir, "nonexistent.toml"),
				Env:              []string{tc.env},
			})
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.FlushInterval != tc.want {
				t.Errorf("FlushInterval = %v, want %v", cfg.FlushInterval, tc.want)
			}
		})
	}
}

func TestLoad_timeoutFormats(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	globalPath := filepath.Join(dir, "global.toml")
	writeConfig(t, globalPath, `timeout = "90"`)
	cfg, err := Load(context.Background(), LoadOptions{
		GlobalConfigPath: globalPath,
		Env:              []string{},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timeout != 90*time.Second {
		t.Errorf("Timeout = %v, want 90s (integer seconds)", cfg.Timeout)
	}

	cfg, err = Load(context.Background(), LoadOptions{
		GlobalConfigPath: globalPath,
		Env:              []string{"REDRAFT_TIMEOUT=2m"},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timeout != 2*time.Minute {
		t.Errorf("Timeout = %v, want 2m (Go duration)", cfg.Timeout)
	}
}

func TestLoad_invalidValues(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cases := []struct {
		name string
		env  []string
	}{
		{"bad temperature", []string{"REDRAFT_TEMPERATURE=hot"}},
		{"temperature out of range", []string{"REDRAFT_TEMPERATURE=3.5"}},
		{"bad timeout", []string{"REDRAFT_TIMEOUT=soon"}},
		{"bad flush interval", []string{"REDRAFT_FLUSH_INTERVAL=fast"}},
		{"negative max tokens", []string{"REDRAFT_MAX_OUTPUT_TOKENS=-1"}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(context.Background(), LoadOptions{
				GlobalConfigPath: filepath.Join(dir, "nonexistent.toml"),
				Env:              tc.env,
			})
			if err == nil {
				t.Error("Load should reject the value")
			}
		})
	}
}

func TestLoad_invalidTOML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	globalPath := filepath.Join(dir, "global.toml")
	writeConfig(t, globalPath, `model = [broken`)
	if _, err := Load(context.Background(), LoadOptions{
		GlobalConfigPath: globalPath,
		Env:              []string{},
	}); err == nil {
		t.Error("Load should reject invalid TOML")
	}
}

func TestLoad_zeroInTOMLKeepsPrevious(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	globalPath := filepath.Join(dir, "global.toml")
	writeConfig(t, globalPath, "model = \"\"\nmax_output_tokens = 0\n")
	cfg, err := Load(context.Background(), LoadOptions{
		GlobalConfigPath: globalPath,
		Env:              []string{},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model != _defaultModel {
		t.Errorf("Model = %q, empty TOML value should keep default", cfg.Model)
	}
	if cfg.MaxOutputTokens != 0 {
		t.Errorf("MaxOutputTokens = %d, want 0", cfg.MaxOutputTokens)
	}
}

func TestEffectiveStateDir(t *testing.T) {
	t.Parallel()
	c := Config{}
	if got := c.EffectiveStateDir("/repo"); got != filepath.Join("/repo", ".redraft") {
		t.Errorf("EffectiveStateDir = %q", got)
	}
	c.StateDir = "/elsewhere"
	if got := c.EffectiveStateDir("/repo"); got != "/elsewhere" {
		t.Errorf("EffectiveStateDir = %q, want explicit StateDir", got)
	}
}
