package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration for the assistant.
type Config struct {
	APIKey  string `yaml:"api_key" toml:"api_key"`
	BaseURL string `yaml:"base_url" toml:"base_url"`
	Model   string `yaml:"model" toml:"model"`

	SystemMessage      string  `yaml:"system_message" toml:"system_message"`
	Temperature        float64 `yaml:"temperature" toml:"temperature"`
	MaxTokens          int64   `yaml:"max_tokens" toml:"max_tokens"`
	CompletionCount    int64   `yaml:"completion_count" toml:"completion_count"`
	MaxToolRounds      int     `yaml:"max_tool_rounds" toml:"max_tool_rounds"`
	ReportUnknownTools bool    `yaml:"report_unknown_tools" toml:"report_unknown_tools"`

	PollInterval   time.Duration `yaml:"poll_interval" toml:"poll_interval"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" toml:"connect_timeout"`
	LibraryFixture string        `yaml:"library_fixture" toml:"library_fixture"`

	TelemetryEndpoint string `yaml:"telemetry_endpoint" toml:"telemetry_endpoint"`
	// LogFile receives JSON log lines instead of the console when set.
	LogFile string `yaml:"log_file" toml:"log_file"`
	Verbose bool   `yaml:"verbose" toml:"verbose"`
}

const defaultSystemMessage = "You are a Bible study assistant. Use the search_library tool to find resources " +
	"in the user's library and get_passage_text to quote scripture before answering."

// DefaultConfig returns a baseline configuration without side effects.
func DefaultConfig() Config {
	return Config{
		SystemMessage:   defaultSystemMessage,
		Temperature:     1.0,
		MaxTokens:       1024,
		CompletionCount: 1,
		MaxToolRounds:   1,
		PollInterval:    time.Second,
		ConnectTimeout:  2 * time.Minute,
	}
}

// Normalize sanitizes configuration values and applies defaults.
func Normalize(cfg Config) Config {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.LibraryFixture = strings.TrimSpace(cfg.LibraryFixture)
	cfg.TelemetryEndpoint = strings.TrimSpace(cfg.TelemetryEndpoint)
	cfg.LogFile = strings.TrimSpace(cfg.LogFile)

	if cfg.CompletionCount <= 0 {
		cfg.CompletionCount = 1
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 2 * time.Minute
	}
	return cfg
}

// LoadFile reads a YAML (.yaml, .yml) or TOML (.toml) file over DefaultConfig.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml config %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return cfg, fmt.Errorf("parse toml config %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config file extension %q", ext)
	}
	return Normalize(cfg), nil
}

// ApplyEnv overlays non-empty values from the process environment.
func ApplyEnv(cfg Config) Config {
	return applyEnv(cfg, os.Getenv)
}

func applyEnv(cfg Config, getenv func(string) string) Config {
	overlay := func(dest *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dest = v
		}
	}
	overlay(&cfg.APIKey, "OPENAI_API_KEY")
	overlay(&cfg.BaseURL, "OPENAI_BASE_URL")
	overlay(&cfg.Model, "OPENAI_MODEL")
	overlay(&cfg.LibraryFixture, "LOGOS_FIXTURE")
	overlay(&cfg.TelemetryEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	overlay(&cfg.LogFile, "LOGOS_LOG_FILE")
	return cfg
}
