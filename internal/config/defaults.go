package config

import "time"

const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"

	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 90 * time.Second
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendJSON
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = ".chatdata/data"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = ".chatdata/data/chatdata.db"
	}
	if cfg.Storage.BoltPath == "" {
		cfg.Storage.BoltPath = ".chatdata/data/chatdata.bolt"
	}
	if cfg.Upload.Dir == "" {
		cfg.Upload.Dir = ".chatdata/data/uploads"
	}
	if cfg.Upload.MaxBytes == 0 {
		cfg.Upload.MaxBytes = 32 << 20
	}
	if cfg.Preview.DefaultRows == 0 {
		cfg.Preview.DefaultRows = 5
	}
	if cfg.Preview.MaxRows == 0 {
		cfg.Preview.MaxRows = 1000
	}
	if cfg.Preview.CacheTTL == 0 {
		cfg.Preview.CacheTTL = 5 * time.Minute
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderOpenAI
	}
	if cfg.LLM.Model == "" {
		if cfg.LLM.Provider == ProviderAnthropic {
			cfg.LLM.Model = "claude-3-5-haiku-latest"
		} else {
			cfg.LLM.Model = "gpt-3.5-turbo"
		}
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 2048
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}
	if cfg.Chat.MaxHistory == 0 {
		cfg.Chat.MaxHistory = 20
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 10
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 5
	}
	if cfg.Log.MaxAgeDays == 0 {
		cfg.Log.MaxAgeDays = 30
	}
}
