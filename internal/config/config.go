package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	mgErrors "github.com/ZaguanLabs/mathgpt/internal/errors"
	"github.com/ZaguanLabs/mathgpt/internal/validation"
)

const (
	envAPIKey = "MATHGPT_API_KEY"
	envAPIURL = "MATHGPT_API_URL"
)

// Completion providers.
const (
	ProviderFunction = "function"
	ProviderOpenAI   = "openai"
)

// Config captures runtime configuration for MathGPT.
type Config struct {
	Completion CompletionConfig `yaml:"completion" toml:"completion"`
	Tutor      TutorConfig      `yaml:"tutor" toml:"tutor"`
	Logging    LoggingConfig    `yaml:"logging" toml:"logging"`
	UI         UIConfig         `yaml:"ui" toml:"ui"`
	Storage    StorageConfig    `yaml:"storage" toml:"storage"`
	Render     RenderConfig     `yaml:"render" toml:"render"`
	Server     ServerConfig     `yaml:"server" toml:"server"`
}

// CompletionConfig selects and configures the completion service.
type CompletionConfig struct {
	Provider       string  `yaml:"provider" toml:"provider"`
	URL            string  `yaml:"url" toml:"url"`
	Key            string  `yaml:"key" toml:"key"`
	Model          string  `yaml:"model" toml:"model"`
	Temperature    float64 `yaml:"temperature" toml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens" toml:"max_tokens"`
	HistoryLimit   int     `yaml:"history_limit" toml:"history_limit"`
	TimeoutSeconds int     `yaml:"timeout_seconds" toml:"timeout_seconds"`
	RateLimit      int     `yaml:"rate_limit" toml:"rate_limit"`
	ErrorReply     bool    `yaml:"error_reply" toml:"error_reply"`
}

// Timeout returns the request timeout.
func (c CompletionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TutorConfig holds the tutoring persona.
type TutorConfig struct {
	Mode         string   `yaml:"mode" toml:"mode"`
	SystemPrompt string   `yaml:"system_prompt" toml:"system_prompt"`
	ProductName  string   `yaml:"product_name" toml:"product_name"`
	Prompts      []string `yaml:"prompts" toml:"prompts"`
}

// LoggingConfig encapsulates logging preferences.
type LoggingConfig struct {
	Level    string `yaml:"level" toml:"level"`
	Encoding string `yaml:"encoding" toml:"encoding"`
	File     string `yaml:"file" toml:"file"`
}

// UIConfig defines terminal rendering preferences.
type UIConfig struct {
	ShowTimestamps  bool   `yaml:"show_timestamps" toml:"show_timestamps"`
	TimestampLayout string `yaml:"timestamp_layout" toml:"timestamp_layout"`
	Width           int    `yaml:"width" toml:"width"`
	Color           string `yaml:"color" toml:"color"`
}

// StorageConfig defines persistence options.
type StorageConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
	Path   string `yaml:"path" toml:"path"`
	Key    string `yaml:"key" toml:"key"`
}

// RenderConfig tunes math rendering.
type RenderConfig struct {
	CacheSize int `yaml:"cache_size" toml:"cache_size"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr" toml:"addr"`
}

// Load reads configuration from the provided path, falling back to defaults and
// environment overrides. Without a path, config.yaml and then config.toml in
// the working directory are tried.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	} else {
		for _, candidate := range []string{"config.yaml", "config.toml"} {
			err := loadFile(candidate, &cfg)
			if err == nil {
				break
			}
			if !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadEnvFile reads .env without overriding variables already set.
func loadEnvFile() error {
	if err := godotenv.Load(); err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil
		}
		return mgErrors.NewConfigError(".env", "could not parse .env", err)
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return err
		}
		return fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return mgErrors.NewConfigError(path, "parse config", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return mgErrors.NewConfigError(path, "parse config", err)
		}
	}

	// Expand environment variables in config values
	cfg.Completion.Key = os.ExpandEnv(cfg.Completion.Key)
	cfg.Completion.URL = os.ExpandEnv(cfg.Completion.URL)
	cfg.Storage.Path = os.ExpandEnv(cfg.Storage.Path)
	cfg.Logging.File = os.ExpandEnv(cfg.Logging.File)

	return nil
}

func applyEnvOverrides(cfg *Config) {
	if url := strings.TrimSpace(os.Getenv(envAPIURL)); url != "" {
		cfg.Completion.URL = url
	}
	if key := strings.TrimSpace(os.Getenv(envAPIKey)); key != "" {
		cfg.Completion.Key = key
	}
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return true
		}
	}
	return false
}

func (c *Config) validate() error {
	var validationErrors []string

	switch strings.ToLower(c.Completion.Provider) {
	case ProviderFunction:
		if strings.TrimSpace(c.Completion.URL) == "" {
			validationErrors = append(validationErrors, "Completion URL (completion.url) must be set or "+envAPIURL+" environment variable must be provided")
		} else if _, parseErr := url.Parse(c.Completion.URL); parseErr != nil || validation.ValidateURL(c.Completion.URL) != nil {
			validationErrors = append(validationErrors, "Completion URL (completion.url) must be an http:// or https:// URL")
		}
	case ProviderOpenAI:
		if strings.TrimSpace(c.Completion.Key) == "" {
			validationErrors = append(validationErrors, "API key (completion.key) must be set or "+envAPIKey+" environment variable must be provided")
		}
		if c.Completion.URL != "" && validation.ValidateURL(c.Completion.URL) != nil {
			validationErrors = append(validationErrors, "Completion URL (completion.url) must be an http:// or https:// URL")
		}
		if err := validation.ValidateModelName(c.Completion.Model); err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("Model (completion.model) is invalid: %v", err))
		}
	default:
		validationErrors = append(validationErrors, fmt.Sprintf("Completion provider (completion.provider) must be %q or %q, got %q", ProviderFunction, ProviderOpenAI, c.Completion.Provider))
	}

	if strings.Contains(c.Completion.Key, "${") {
		validationErrors = append(validationErrors, "API key contains unexpanded environment variable, set "+envAPIKey+" or replace ${...} in config")
	}
	if validation.ValidateTemperature(c.Completion.Temperature) != nil {
		validationErrors = append(validationErrors, fmt.Sprintf("Temperature (completion.temperature) must be between 0.0 and 2.0, got %.2f", c.Completion.Temperature))
	}
	if c.Completion.MaxTokens < 0 {
		validationErrors = append(validationErrors, "Max tokens (completion.max_tokens) cannot be negative")
	}
	if c.Completion.HistoryLimit < 0 {
		validationErrors = append(validationErrors, "History limit (completion.history_limit) cannot be negative")
	}
	if c.Completion.TimeoutSeconds <= 0 {
		validationErrors = append(validationErrors, "Timeout (completion.timeout_seconds) must be positive")
	}
	if c.Completion.RateLimit < 0 {
		validationErrors = append(validationErrors, "Rate limit (completion.rate_limit) cannot be negative")
	}

	if !oneOf(c.Tutor.Mode, "direct", "socratic") {
		validationErrors = append(validationErrors, fmt.Sprintf("Tutor mode (tutor.mode) must be direct or socratic, got %q", c.Tutor.Mode))
	}
	if strings.TrimSpace(c.Tutor.ProductName) == "" {
		validationErrors = append(validationErrors, "Product name (tutor.product_name) cannot be empty")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !oneOf(c.Logging.Level, validLevels...) {
		validationErrors = append(validationErrors, fmt.Sprintf("Logging level (logging.level) must be one of: %v, got %s", validLevels, c.Logging.Level))
	}
	if !oneOf(c.Logging.Encoding, "console", "json") {
		validationErrors = append(validationErrors, fmt.Sprintf("Logging encoding (logging.encoding) must be console or json, got %q", c.Logging.Encoding))
	}

	if !oneOf(c.UI.Color, "auto", "always", "never") {
		validationErrors = append(validationErrors, fmt.Sprintf("Color (ui.color) must be auto, always or never, got %q", c.UI.Color))
	}
	if c.UI.Width < 0 {
		validationErrors = append(validationErrors, "Width (ui.width) cannot be negative")
	}

	if !oneOf(c.Storage.Driver, "sqlite", "file", "memory") {
		validationErrors = append(validationErrors, fmt.Sprintf("Storage driver (storage.driver) must be sqlite, file or memory, got %q", c.Storage.Driver))
	}
	if strings.TrimSpace(c.Storage.Path) != "" && strings.EqualFold(c.Storage.Driver, "file") {
		if info, statErr := os.Stat(c.Storage.Path); statErr == nil && !info.IsDir() {
			validationErrors = append(validationErrors, fmt.Sprintf("Storage path (%s) must be a directory, not a file", c.Storage.Path))
		}
	}
	if strings.TrimSpace(c.Storage.Key) == "" {
		validationErrors = append(validationErrors, "Storage key (storage.key) cannot be empty")
	}

	if c.Render.CacheSize < 0 {
		validationErrors = append(validationErrors, "Cache size (render.cache_size) cannot be negative")
	}

	if len(validationErrors) > 0 {
		return mgErrors.NewConfigError("config", fmt.Sprintf("configuration validation failed:\n\t• %s", strings.Join(validationErrors, "\n\t• ")), nil)
	}

	return nil
}

func defaultConfig() Config {
	return Config{
		Completion: CompletionConfig{
			Provider:       ProviderFunction,
			Model:          "gpt-4o-mini",
			Temperature:    0.7,
			MaxTokens:      1000,
			HistoryLimit:   20,
			TimeoutSeconds: 60,
			RateLimit:      20,
			ErrorReply:     true,
		},
		Tutor: TutorConfig{
			Mode:        "direct",
			ProductName: "MathGPT",
			Prompts: []string{
				"Help me solve $x^2 + 5x - 6 = 0$",
				"Explain derivatives in calculus",
				"Help with triangle proofs",
				"Explain probability concepts",
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "console",
		},
		UI: UIConfig{
			ShowTimestamps:  true,
			TimestampLayout: "15:04",
			Color:           "auto",
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			Key:    "mathgpt-conversation",
		},
		Render: RenderConfig{
			CacheSize: 512,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8080",
		},
	}
}
