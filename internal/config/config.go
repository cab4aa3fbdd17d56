// Package config provides configuration loading and structs for the chatdata server.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
// Values come from the YAML file; environment variables override them.
type Config struct {
	Debug   bool          `yaml:"debug" env:"CHATDATA_DEBUG"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Upload  UploadConfig  `yaml:"upload"`
	Preview PreviewConfig `yaml:"preview"`
	LLM     LLMConfig     `yaml:"llm"`
	Chat    ChatConfig    `yaml:"chat"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host" env:"CHATDATA_HOST"`
	Port           int           `yaml:"port" env:"CHATDATA_PORT"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"CHATDATA_REQUEST_TIMEOUT"`
}

// StorageConfig selects the record store backend and its location.
type StorageConfig struct {
	Backend      string `yaml:"backend" env:"CHATDATA_STORAGE_BACKEND"` // json, sqlite or bolt
	DataDir      string `yaml:"data_dir" env:"CHATDATA_DATA_DIR"`
	DatabasePath string `yaml:"database_path" env:"CHATDATA_DATABASE_PATH"`
	BoltPath     string `yaml:"bolt_path" env:"CHATDATA_BOLT_PATH"`
	SeedSamples  bool   `yaml:"seed_samples" env:"CHATDATA_SEED_SAMPLES"`
}

// UploadConfig holds CSV upload settings.
type UploadConfig struct {
	Dir      string `yaml:"dir" env:"CHATDATA_UPLOAD_DIR"`
	MaxBytes int64  `yaml:"max_bytes" env:"CHATDATA_UPLOAD_MAX_BYTES"`
	Watch    *bool  `yaml:"watch"`
}

// WatchOrDefault reports whether the upload directory is watched; defaults to true when unset.
func (u *UploadConfig) WatchOrDefault() bool {
	if u.Watch != nil {
		return *u.Watch
	}
	return true
}

// PreviewConfig holds CSV preview settings.
type PreviewConfig struct {
	DefaultRows int           `yaml:"default_rows"`
	MaxRows     int           `yaml:"max_rows"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
}

// LLMConfig holds text-generation provider settings.
type LLMConfig struct {
	Provider    string        `yaml:"provider" env:"CHATDATA_LLM_PROVIDER"` // openai or anthropic
	BaseURL     string        `yaml:"base_url" env:"CHATDATA_LLM_BASE_URL"`
	Model       string        `yaml:"model" env:"CHATDATA_LLM_MODEL"`
	Temperature *float32      `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout" env:"CHATDATA_LLM_TIMEOUT"`

	OpenAIKey    string `yaml:"-" env:"OPENAI_API_KEY"`    // Secret - not in YAML
	AnthropicKey string `yaml:"-" env:"ANTHROPIC_API_KEY"` // Secret - not in YAML
}

// TemperatureOrDefault returns the sampling temperature; defaults to 0.7 when
// unset. An explicit 0 is kept.
func (c *LLMConfig) TemperatureOrDefault() float32 {
	if c.Temperature != nil {
		return *c.Temperature
	}
	return 0.7
}

// APIKey returns the credential for the configured provider.
func (c *LLMConfig) APIKey() string {
	if c.Provider == ProviderAnthropic {
		return c.AnthropicKey
	}
	return c.OpenAIKey
}

// KeyEnvVar names the environment variable holding the provider credential.
func (c *LLMConfig) KeyEnvVar() string {
	if c.Provider == ProviderAnthropic {
		return "ANTHROPIC_API_KEY"
	}
	return "OPENAI_API_KEY"
}

// ChatConfig holds conversation settings.
type ChatConfig struct {
	MaxHistory int `yaml:"max_history"`
}

// LogConfig holds optional rotated log file settings.
type LogConfig struct {
	File       string `yaml:"file" env:"CHATDATA_LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Load reads and parses the config file at path, applies environment overrides
// (including a .env file next to the config), applies defaults and expands paths.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := finish(&cfg, filepath.Dir(path)); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults
// (plus environment overrides) with paths resolved against the file's directory.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	cfg = &Config{}
	if err := finish(cfg, filepath.Dir(path)); err != nil {
		return nil, err
	}
	return cfg, nil
}

func finish(cfg *Config, configDir string) error {
	// .env never overrides variables already set in the environment.
	if err := godotenv.Load(filepath.Join(configDir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read .env: %w", err)
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	ApplyDefaults(cfg)

	cfg.Storage.DataDir = expandPath(cfg.Storage.DataDir, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BoltPath = expandPath(cfg.Storage.BoltPath, configDir)
	cfg.Upload.Dir = expandPath(cfg.Upload.Dir, configDir)
	if cfg.Log.File != "" {
		cfg.Log.File = expandPath(cfg.Log.File, configDir)
	}
	return Validate(cfg)
}

// Validate reports settings that cannot work.
func Validate(cfg *Config) error {
	switch cfg.Storage.Backend {
	case BackendJSON, BackendSQLite, BackendBolt:
	default:
		return fmt.Errorf("invalid storage backend %q (want %s, %s or %s)", cfg.Storage.Backend, BackendJSON, BackendSQLite, BackendBolt)
	}
	switch cfg.LLM.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("invalid llm provider %q (want %s or %s)", cfg.LLM.Provider, ProviderOpenAI, ProviderAnthropic)
	}
	if cfg.Preview.DefaultRows > cfg.Preview.MaxRows {
		return fmt.Errorf("preview.default_rows (%d) exceeds preview.max_rows (%d)", cfg.Preview.DefaultRows, cfg.Preview.MaxRows)
	}
	return nil
}

// Save writes the config to path. Secrets are never written.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Address returns host:port for the HTTP listener.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || strings.HasPrefix(path, "../") || path == "." {
		return filepath.Join(configDir, path)
	}
	if strings.HasPrefix(path, "~/") {
		path = path[2:]
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
