package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Output.Format != FormatText {
		t.Errorf("expected default format 'text', got %s", cfg.Output.Format)
	}
	if !cfg.Output.Pretty {
		t.Error("expected pretty output by default")
	}
	if cfg.Images.Dir != "images" {
		t.Errorf("expected images dir 'images', got %s", cfg.Images.Dir)
	}
	if cfg.Load.SkipBrokenDrawings {
		t.Error("expected broken drawings to fail the load by default")
	}
	if cfg.Load.LogLevel != "warn" {
		t.Errorf("expected log level 'warn', got %s", cfg.Load.LogLevel)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.Format = "markdown"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unsupported format")
	}

	cfg = DefaultConfig()
	cfg.Load.LogLevel = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown log level")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelWarn, true},
	}

	for _, tc := range tests {
		got, err := ParseLevel(tc.name)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
		if got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestLoader_SaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	loader := NewLoaderWithPath(configPath)

	cfg := DefaultConfig()
	cfg.Output.Format = FormatJSON
	cfg.Load.SkipBrokenDrawings = true

	if err := loader.Save(cfg); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	if !loader.Exists() {
		t.Error("expected config file to exist after save")
	}

	loaded, err := loader.LoadRaw()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if loaded.Output.Format != FormatJSON {
		t.Errorf("expected format 'json', got %s", loaded.Output.Format)
	}
	if !loaded.Load.SkipBrokenDrawings {
		t.Error("expected skip_broken_drawings to be saved")
	}
}

func TestLoader_LoadNonExistent(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nonexistent", "config.yaml")

	loader := NewLoaderWithPath(configPath)

	// Should return default config when file doesn't exist
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("expected no error for non-existent file, got: %v", err)
	}

	if cfg.Output.Format != FormatText {
		t.Errorf("expected default format 'text', got %s", cfg.Output.Format)
	}
}

func TestLoader_PartialFileKeepsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `output:
  format: json
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := NewLoaderWithPath(configPath).Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Output.Format != FormatJSON {
		t.Errorf("expected format 'json', got %s", cfg.Output.Format)
	}
	if cfg.Images.Dir != "images" {
		t.Errorf("expected default images dir, got %s", cfg.Images.Dir)
	}
	if cfg.Load.LogLevel != "warn" {
		t.Errorf("expected default log level, got %s", cfg.Load.LogLevel)
	}
}

func TestLoader_ExpandEnvVars(t *testing.T) {
	os.Setenv("TEST_IMG_DIR", "/tmp/xlsdraw-images")
	defer os.Unsetenv("TEST_IMG_DIR")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `images:
  dir: ${TEST_IMG_DIR}
load:
  log_level: debug
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	loader := NewLoaderWithPath(configPath)
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Images.Dir != "/tmp/xlsdraw-images" {
		t.Errorf("expected images dir '/tmp/xlsdraw-images', got %s", cfg.Images.Dir)
	}

	// LoadRaw keeps the reference untouched
	raw, err := loader.LoadRaw()
	if err != nil {
		t.Fatalf("failed to load raw config: %v", err)
	}
	if raw.Images.Dir != "${TEST_IMG_DIR}" {
		t.Errorf("expected unexpanded reference, got %s", raw.Images.Dir)
	}
}

func TestGetEnvOrDefault(t *testing.T) {
	os.Setenv("TEST_VAR", "test-value")
	defer os.Unsetenv("TEST_VAR")

	if v := GetEnvOrDefault("TEST_VAR", "default"); v != "test-value" {
		t.Errorf("expected 'test-value', got %s", v)
	}

	if v := GetEnvOrDefault("NONEXISTENT_VAR", "default"); v != "default" {
		t.Errorf("expected 'default', got %s", v)
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value    string
		expected bool
	}{
		{"true", true},
		{"TRUE", true},
		{"True", true},
		{"1", true},
		{"yes", true},
		{"YES", true},
		{"false", false},
		{"FALSE", false},
		{"0", false},
		{"no", false},
		{"", false},
		{"invalid", false},
	}

	for _, tc := range tests {
		os.Setenv("TEST_BOOL", tc.value)
		got := GetEnvBool("TEST_BOOL")
		if got != tc.expected {
			t.Errorf("GetEnvBool(%q): expected %v, got %v", tc.value, tc.expected, got)
		}
	}
	os.Unsetenv("TEST_BOOL")
}

func TestNewLoader(t *testing.T) {
	loader, err := NewLoader()
	if err != nil {
		t.Fatalf("failed to create loader: %v", err)
	}

	path := loader.ConfigPath()
	if path == "" {
		t.Error("expected non-empty config path")
	}

	if filepath.Base(path) != ConfigFileName {
		t.Errorf("expected config file name %s, got %s", ConfigFileName, filepath.Base(path))
	}
	if filepath.Base(filepath.Dir(path)) != ConfigDirName {
		t.Errorf("expected config dir %s, got %s", ConfigDirName, filepath.Dir(path))
	}
}

func TestResolve(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	envPath := filepath.Join(t.TempDir(), "env.yaml")

	t.Setenv(EnvConfigPath, "")
	loader, err := Resolve("")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if loader.Source() != SourceDefault {
		t.Errorf("expected default source, got %s", loader.Source())
	}
	if want := filepath.Join(home, ConfigDirName, ConfigFileName); loader.ConfigPath() != want {
		t.Errorf("expected %s, got %s", want, loader.ConfigPath())
	}

	t.Setenv(EnvConfigPath, envPath)
	loader, err = Resolve("")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if loader.Source() != SourceEnv || loader.ConfigPath() != envPath {
		t.Errorf("expected env path %s, got %s (%s)", envPath, loader.ConfigPath(), loader.Source())
	}

	// 플래그가 환경 변수보다 우선
	flagPath := filepath.Join(t.TempDir(), "flag.yaml")
	loader, err = Resolve(flagPath)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if loader.Source() != SourceFlag || loader.ConfigPath() != flagPath {
		t.Errorf("expected flag path %s, got %s (%s)", flagPath, loader.ConfigPath(), loader.Source())
	}
}

func TestLoader_LoadValid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	loader := NewLoaderWithPath(configPath)

	if _, err := loader.LoadValid(); err != nil {
		t.Fatalf("defaults should be valid: %v", err)
	}

	if err := os.WriteFile(configPath, []byte("output:\n  format: html\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := loader.LoadValid(); err == nil {
		t.Error("expected error for unsupported format")
	}
	if _, err := loader.Load(); err != nil {
		t.Errorf("Load should not validate: %v", err)
	}
}

func TestVerbose(t *testing.T) {
	t.Setenv(EnvVerbose, "yes")
	if !Verbose() {
		t.Error("expected verbose")
	}
	t.Setenv(EnvVerbose, "")
	if Verbose() {
		t.Error("expected not verbose")
	}
}

func TestLoader_Init(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	loader := NewLoaderWithPath(configPath)

	if err := loader.Init(); err != nil {
		t.Fatalf("failed to init config: %v", err)
	}

	if !loader.Exists() {
		t.Error("expected config file to exist after init")
	}

	// Init again should fail
	if err := loader.Init(); err == nil {
		t.Error("expected error when initializing existing config")
	}
}

func TestLoader_LoadInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	invalidYAML := "{{{{invalid yaml"
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	loader := NewLoaderWithPath(configPath)
	if _, err := loader.Load(); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestExpandEnvVars_UnsetVar(t *testing.T) {
	os.Unsetenv("UNSET_VAR_FOR_TEST")

	if got := expandEnvVars("dir: ${UNSET_VAR_FOR_TEST}"); got != "dir: " {
		t.Errorf("expected unset variable to expand to empty, got %q", got)
	}
}
