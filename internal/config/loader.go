package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// ConfigDirName is the name of the configuration directory.
	ConfigDirName = ".xlsdraw"
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "config.yaml"

	// EnvConfigPath overrides the configuration file path.
	EnvConfigPath = "XLSDRAW_CONFIG"
	// EnvVerbose turns on verbose output when set to a true value.
	EnvVerbose = "XLSDRAW_VERBOSE"
)

// PathSource tells where the configuration path came from.
type PathSource string

const (
	SourceFlag    PathSource = "flag"
	SourceEnv     PathSource = "env"
	SourceDefault PathSource = "default"
)

// envVarPattern matches ${VAR_NAME} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Loader handles configuration loading and saving.
type Loader struct {
	configDir  string
	configPath string
	source     PathSource
}

// Resolve picks the configuration file: flagPath when set, then the
// XLSDRAW_CONFIG environment variable, then ~/.xlsdraw/config.yaml.
func Resolve(flagPath string) (*Loader, error) {
	if flagPath != "" {
		l := NewLoaderWithPath(flagPath)
		l.source = SourceFlag
		return l, nil
	}
	if p := GetEnvOrDefault(EnvConfigPath, ""); p != "" {
		l := NewLoaderWithPath(p)
		l.source = SourceEnv
		return l, nil
	}
	return NewLoader()
}

// NewLoader creates a new configuration loader.
func NewLoader() (*Loader, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ConfigDirName)
	configPath := filepath.Join(configDir, ConfigFileName)

	return &Loader{
		configDir:  configDir,
		configPath: configPath,
		source:     SourceDefault,
	}, nil
}

// NewLoaderWithPath creates a loader with a custom config path.
func NewLoaderWithPath(configPath string) *Loader {
	return &Loader{
		configDir:  filepath.Dir(configPath),
		configPath: configPath,
		source:     SourceFlag,
	}
}

// ConfigPath returns the configuration file path.
func (l *Loader) ConfigPath() string {
	return l.configPath
}

// Source returns where the configuration path came from.
func (l *Loader) Source() PathSource {
	return l.source
}

// Load reads and parses the configuration file. ${VAR} references are
// expanded and keys missing from the file keep their defaults.
func (l *Loader) Load() (*Config, error) {
	return l.read(true)
}

// LoadRaw reads the configuration without expanding environment variables.
func (l *Loader) LoadRaw() (*Config, error) {
	return l.read(false)
}

// LoadValid loads the configuration and rejects invalid values.
func (l *Loader) LoadValid() (*Config, error) {
	cfg, err := l.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", l.configPath, err)
	}
	return cfg, nil
}

func (l *Loader) read(expand bool) (*Config, error) {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if expand {
		data = []byte(expandEnvVars(string(data)))
	}

	// 파일에 없는 키는 기본값 유지
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to the file.
func (l *Loader) Save(cfg *Config) error {
	// Ensure config directory exists
	if err := os.MkdirAll(l.configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(l.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Exists checks if the configuration file exists.
func (l *Loader) Exists() bool {
	_, err := os.Stat(l.configPath)
	return err == nil
}

// Init creates a default configuration file.
func (l *Loader) Init() error {
	if l.Exists() {
		return fmt.Errorf("config file already exists: %s", l.configPath)
	}
	return l.Save(DefaultConfig())
}

// expandEnvVars replaces ${VAR_NAME} with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if value := os.Getenv(varName); value != "" {
			return value
		}
		// Return empty string if env var not set
		return ""
	})
}

// GetEnvOrDefault returns the environment variable value or a default.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Verbose reports whether XLSDRAW_VERBOSE asks for verbose output.
func Verbose() bool {
	return GetEnvBool(EnvVerbose)
}

// GetEnvBool returns true if the environment variable is set to "true" or "1".
func GetEnvBool(key string) bool {
	value := strings.ToLower(os.Getenv(key))
	return value == "true" || value == "1" || value == "yes"
}
