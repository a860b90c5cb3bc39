package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultPollInterval = 2 * time.Second
	MinPollInterval     = 100 * time.Millisecond
	DefaultMaxPolls     = 150
	defaultLocalBaseURL = "http://localhost:11434/v1"
)

// Config holds all runtime configuration for the CLI.
type Config struct {
	DefaultWrapper string `mapstructure:"default_wrapper"`
	Markdown       bool   `mapstructure:"markdown"`
	ShowPrice      bool   `mapstructure:"show_price"`
	Interactive    *bool  `mapstructure:"interactive"`

	APIKey          string            `mapstructure:"api_key"`
	OpenAIAPIKey    string            `mapstructure:"openai_api_key"`
	OpenAIBaseURL   string            `mapstructure:"openai_base_url"`
	AnthropicAPIKey string            `mapstructure:"anthropic_api_key"`
	GoogleAPIKey    string            `mapstructure:"google_api_key"`
	LocalBaseURL    string            `mapstructure:"local_base_url"`
	LocalModels     map[string]string `mapstructure:"local_models"`

	LogFile  string `mapstructure:"log_file"`
	LogLevel string `mapstructure:"log_level"`

	Wrappers   map[string]WrapperConfig   `mapstructure:"wrappers"`
	Assistants map[string]AssistantConfig `mapstructure:"assistants"`

	AssistantPollInterval time.Duration `mapstructure:"assistant_poll_interval"`
	AssistantMaxPolls     int           `mapstructure:"assistant_max_polls"`
}

// DefaultConfig returns a baseline configuration without side effects.
func DefaultConfig() Config {
	return Config{
		DefaultWrapper:        "general",
		Markdown:              true,
		ShowPrice:             true,
		LogLevel:              "INFO",
		LocalBaseURL:          defaultLocalBaseURL,
		AssistantPollInterval: DefaultPollInterval,
		AssistantMaxPolls:     DefaultMaxPolls,
	}
}

// OpenAIKey returns the key used for OpenAI requests; api_key wins over
// openai_api_key.
func (c Config) OpenAIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return c.OpenAIAPIKey
}

// DefaultPaths lists the config file locations searched when no explicit
// path is given, in priority order.
func DefaultPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, ".config", "gpt-cli", "gpt.yml"),
		filepath.Join(home, ".gptrc"),
	}
}

// HistoryPath is where interactive input history is kept, or "" when the
// home directory is unknown.
func HistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "gpt-cli", "history")
}

// ChooseFile returns the first path that exists as a regular file, or "".
func ChooseFile(paths []string) string {
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p
		}
	}
	return ""
}

// Load reads the YAML file at path (may be empty) layered over defaults and
// environment variables.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		if err := readWithEnvSubstitution(v, path); err != nil {
			return Config{}, err
		}
	}

	secondsAsDuration(v, "assistant_poll_interval")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return Normalize(cfg)
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("default_wrapper", d.DefaultWrapper)
	v.SetDefault("markdown", d.Markdown)
	v.SetDefault("show_price", d.ShowPrice)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("local_base_url", d.LocalBaseURL)
	v.SetDefault("assistant_poll_interval", d.AssistantPollInterval)
	v.SetDefault("assistant_max_polls", d.AssistantMaxPolls)
}

// secondsAsDuration reads a bare number under key as seconds; the decoder
// would otherwise take it as nanoseconds.
func secondsAsDuration(v *viper.Viper, key string) {
	switch n := v.Get(key).(type) {
	case int:
		v.Set(key, time.Duration(n)*time.Second)
	case int64:
		v.Set(key, time.Duration(n)*time.Second)
	case float64:
		v.Set(key, time.Duration(n*float64(time.Second)))
	}
}

func bindEnv(v *viper.Viper) error {
	bindings := [][2]string{
		{"api_key", "OPENAI_API_KEY"},
		{"openai_api_key", "OPENAI_API_KEY"},
		{"openai_base_url", "OPENAI_BASE_URL"},
		{"anthropic_api_key", "ANTHROPIC_API_KEY"},
		{"google_api_key", "GOOGLE_API_KEY"},
	}
	for _, b := range bindings {
		if err := v.BindEnv(b[0], b[1]); err != nil {
			return fmt.Errorf("bind env %s: %w", b[1], err)
		}
	}
	return nil
}

func readWithEnvSubstitution(v *viper.Viper, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	processed := string(raw)
	if HasEnvVars(processed) {
		substituter := &EnvSubstituter{}
		processed, err = substituter.SubstituteEnvVars(processed)
		if err != nil {
			return fmt.Errorf("config %s: %w", path, err)
		}
	}

	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(processed)); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Normalize sanitizes configuration values and applies defaults.
func Normalize(cfg Config) (Config, error) {
	d := DefaultConfig()
	cfg.DefaultWrapper = strings.TrimSpace(cfg.DefaultWrapper)
	if cfg.DefaultWrapper == "" {
		cfg.DefaultWrapper = d.DefaultWrapper
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.OpenAIAPIKey = strings.TrimSpace(cfg.OpenAIAPIKey)
	cfg.OpenAIBaseURL = strings.TrimSpace(cfg.OpenAIBaseURL)
	cfg.AnthropicAPIKey = strings.TrimSpace(cfg.AnthropicAPIKey)
	cfg.GoogleAPIKey = strings.TrimSpace(cfg.GoogleAPIKey)
	cfg.LocalBaseURL = strings.TrimSpace(cfg.LocalBaseURL)
	if cfg.LocalBaseURL == "" {
		cfg.LocalBaseURL = d.LocalBaseURL
	}
	cfg.LogLevel = strings.ToUpper(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "" {
		cfg.LogLevel = d.LogLevel
	}
	if cfg.AssistantPollInterval <= 0 {
		cfg.AssistantPollInterval = d.AssistantPollInterval
	}
	if cfg.AssistantPollInterval < MinPollInterval {
		return Config{}, fmt.Errorf("assistant_poll_interval %s is below the minimum of %s", cfg.AssistantPollInterval, MinPollInterval)
	}
	if cfg.AssistantMaxPolls <= 0 {
		cfg.AssistantMaxPolls = d.AssistantMaxPolls
	}

	for name, w := range cfg.Wrappers {
		messages, err := normalizeMessages(w.Messages)
		if err != nil {
			return Config{}, fmt.Errorf("wrapper %q: %w", name, err)
		}
		w.Messages = messages
		cfg.Wrappers[name] = w
	}
	for name, a := range cfg.Assistants {
		messages, err := normalizeMessages(a.Messages)
		if err != nil {
			return Config{}, fmt.Errorf("assistant %q: %w", name, err)
		}
		a.ID = strings.TrimSpace(a.ID)
		a.Messages = messages
		cfg.Assistants[name] = a
	}
	return cfg, nil
}

var errEmptyRole = errors.New("message role is required")
