// Package config loads ragtoxiv settings from a YAML file, a .env file and the
// environment, in that order of increasing precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/csheth/ragtoxiv/internal/llm"
	"github.com/csheth/ragtoxiv/internal/retrieval"
	"github.com/csheth/ragtoxiv/internal/retry"
)

// DefaultPath is read when --config is not given. It may be absent.
const DefaultPath = "ragtoxiv.yaml"

const (
	LedgerJSON   = "json"
	LedgerSQLite = "sqlite"
)

// Error reports an unusable configuration. Commands exit with status 1 on it.
type Error struct {
	Field string
	Err   error
}

func (e *Error) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration: %v", e.Err)
	}
	return fmt.Sprintf("configuration: %s: %v", e.Field, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func fieldError(field, format string, args ...any) *Error {
	return &Error{Field: field, Err: fmt.Errorf(format, args...)}
}

// Config holds all application configuration.
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	LogDir    string          `yaml:"log_dir"`
	Log       LogConfig       `yaml:"log"`
	Session   SessionConfig   `yaml:"session"`
	LLM       LLMConfig       `yaml:"llm"`
	Mastodon  MastodonConfig  `yaml:"mastodon"`
	Bot       BotConfig       `yaml:"bot"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Feed      FeedConfig      `yaml:"feed"`
	Retention RetentionConfig `yaml:"retention"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type LogConfig struct {
	// Format is json or console.
	Format  string `yaml:"format"`
	Verbose bool   `yaml:"verbose"`
}

// SessionConfig seeds pipeline.Settings.
type SessionConfig struct {
	Category        string `yaml:"category"`
	Mode            string `yaml:"mode"`
	MaxFiles        int    `yaml:"max_files"`
	SkipEmpty       *bool  `yaml:"skip_empty"`
	ContextMaxChars int    `yaml:"context_max_chars"`
}

type LLMConfig struct {
	Provider     string       `yaml:"provider"`
	Model        string       `yaml:"model"`
	Endpoint     string       `yaml:"endpoint"`
	APIKey       string       `yaml:"api_key"`
	TemplateFile string       `yaml:"template_file"`
	Retry        retry.Policy `yaml:"retry"`
}

type MastodonConfig struct {
	Server      string `yaml:"server"`
	Username    string `yaml:"username"`
	AccessToken string `yaml:"access_token"`
	PageLimit   int    `yaml:"page_limit"`
}

type BotConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	PostLimit    int           `yaml:"post_limit"`
	PostMargin   int           `yaml:"post_margin"`
	PostPacing   time.Duration `yaml:"post_pacing"`
	PostRetry    retry.Policy  `yaml:"post_retry"`
}

type LedgerConfig struct {
	Driver string `yaml:"driver"`
	// Path defaults to a file in LogDir named after the driver.
	Path string `yaml:"path"`
}

type FeedConfig struct {
	BaseURL         string        `yaml:"base_url"`
	Categories      []string      `yaml:"categories"`
	RequestInterval time.Duration `yaml:"request_interval"`
	Retry           retry.Policy  `yaml:"retry"`
}

// RetentionConfig enables scheduled snapshot pruning in daemon mode when
// Schedule is set.
type RetentionConfig struct {
	Schedule   string `yaml:"schedule"`
	Keep       int    `yaml:"keep"`
	MaxAgeDays int    `yaml:"max_age_days"`
	SkipEmpty  bool   `yaml:"skip_empty"`
}

type MetricsConfig struct {
	// Addr serves /metrics in daemon mode when set.
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads path (which may be missing unless required), applies defaults,
// loads .env from the working directory and applies environment overrides.
// Callers apply flags afterwards and then call Validate.
func Load(path string, required bool) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(data, cfg); err != nil {
			return nil, &Error{Field: path, Err: err}
		}
	case errors.Is(err, os.ErrNotExist) && !required:
	default:
		return nil, &Error{Field: path, Err: fmt.Errorf("read config file: %w", err)}
	}

	applyDefaults(cfg)
	if err := LoadDotEnv(".env"); err != nil {
		return nil, &Error{Field: ".env", Err: err}
	}
	applyEnvironmentOverrides(cfg)
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}

// LoadDotEnv loads variables from path without overriding ones already set.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.LogDir == "" {
		cfg.LogDir = "./logs"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Session.Category == "" {
		cfg.Session.Category = "cs.LG"
	}
	if cfg.Session.Mode == "" {
		cfg.Session.Mode = string(retrieval.ModeFirstSentence)
	}
	if cfg.Session.MaxFiles == 0 {
		cfg.Session.MaxFiles = 1
	}
	if cfg.Session.SkipEmpty == nil {
		skip := true
		cfg.Session.SkipEmpty = &skip
	}
	if cfg.Session.ContextMaxChars == 0 {
		cfg.Session.ContextMaxChars = retrieval.DefaultMaxChars
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = llm.ProviderOpenRouter
	}
	if cfg.LLM.Model == "" && cfg.LLM.Provider != llm.ProviderOllama {
		cfg.LLM.Model = llm.DefaultModel
	}
	if cfg.LLM.Retry.MaxAttempts == 0 {
		cfg.LLM.Retry = retry.DefaultPolicy()
	}
	if cfg.Mastodon.Server == "" {
		cfg.Mastodon.Server = "https://mastoxiv.page"
	}
	if cfg.Mastodon.Username == "" {
		cfg.Mastodon.Username = "ragtoXiv"
	}
	if cfg.Mastodon.PageLimit == 0 {
		cfg.Mastodon.PageLimit = 40
	}
	if cfg.Bot.PollInterval == 0 {
		cfg.Bot.PollInterval = 60 * time.Second
	}
	if cfg.Bot.PostLimit == 0 {
		cfg.Bot.PostLimit = 5000
	}
	if cfg.Bot.PostMargin == 0 {
		cfg.Bot.PostMargin = 100
	}
	if cfg.Bot.PostPacing == 0 {
		cfg.Bot.PostPacing = 5 * time.Second
	}
	if cfg.Bot.PostRetry.MaxAttempts == 0 {
		cfg.Bot.PostRetry = retry.DefaultPolicy()
	}
	if cfg.Ledger.Driver == "" {
		cfg.Ledger.Driver = LedgerJSON
	}
	if cfg.Feed.RequestInterval == 0 {
		cfg.Feed.RequestInterval = 5 * time.Second
	}
	if cfg.Feed.Retry.MaxAttempts == 0 {
		cfg.Feed.Retry = retry.Policy{MaxAttempts: 2, InitialInterval: 2 * time.Minute, MaxInterval: 2 * time.Minute}
	}
}

func applyEnvironmentOverrides(cfg *Config) {
	overrides := []struct {
		env    string
		target *string
	}{
		{"RAGTOXIV_DATA_DIR", &cfg.DataDir},
		{"RAGTOXIV_LOG_DIR", &cfg.LogDir},
		{"RAGTOXIV_CATEGORY", &cfg.Session.Category},
		{"RAGTOXIV_MODE", &cfg.Session.Mode},
		{"RAGTOXIV_MODEL", &cfg.LLM.Model},
		{"RAGTOXIV_LLM_PROVIDER", &cfg.LLM.Provider},
		{"RAGTOXIV_LEDGER_DRIVER", &cfg.Ledger.Driver},
		{"RAGTOXIV_METRICS_ADDR", &cfg.Metrics.Addr},
		{"MASTODON_INSTANCE", &cfg.Mastodon.Server},
		{"MASTODON_USERNAME", &cfg.Mastodon.Username},
		{"MASTODON_ACCESS_TOKEN", &cfg.Mastodon.AccessToken},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.env)); v != "" {
			*o.target = v
		}
	}
}

// Validate checks settings every command relies on.
func (c *Config) Validate() error {
	if _, err := retrieval.ParseMode(c.Session.Mode); err != nil {
		return &Error{Field: "session.mode", Err: err}
	}
	if c.Session.MaxFiles < 1 {
		return fieldError("session.max_files", "must be at least 1, got %d", c.Session.MaxFiles)
	}
	if c.Session.ContextMaxChars < 0 {
		return fieldError("session.context_max_chars", "must not be negative")
	}
	switch c.Ledger.Driver {
	case LedgerJSON, LedgerSQLite:
	default:
		return fieldError("ledger.driver", "must be %q or %q, got %q", LedgerJSON, LedgerSQLite, c.Ledger.Driver)
	}
	switch c.LLM.Provider {
	case llm.ProviderOpenRouter, llm.ProviderOpenAI, llm.ProviderOllama:
	default:
		return fieldError("llm.provider", "unknown provider %q", c.LLM.Provider)
	}
	if c.Bot.PostMargin < 0 || c.Bot.PostMargin >= c.Bot.PostLimit {
		return fieldError("bot.post_margin", "must be between 0 and post_limit")
	}
	if c.Bot.PollInterval < time.Second {
		return fieldError("bot.poll_interval", "must be at least 1s, got %s", c.Bot.PollInterval)
	}
	if c.Retention.Keep < 0 || c.Retention.MaxAgeDays < 0 {
		return fieldError("retention", "keep and max_age_days must not be negative")
	}
	if c.Retention.Schedule != "" && c.Retention.Keep == 0 && c.Retention.MaxAgeDays == 0 {
		return fieldError("retention", "schedule set without keep or max_age_days")
	}
	if c.Retention.Schedule != "" {
		if _, err := cron.ParseStandard(c.Retention.Schedule); err != nil {
			return &Error{Field: "retention.schedule", Err: err}
		}
	}
	return nil
}

// RequireMastodon checks the credentials the bot modes need.
func (c *Config) RequireMastodon() error {
	if strings.TrimSpace(c.Mastodon.AccessToken) == "" {
		return fieldError("mastodon.access_token", "required (set MASTODON_ACCESS_TOKEN)")
	}
	if strings.TrimSpace(c.Mastodon.Username) == "" {
		return fieldError("mastodon.username", "required")
	}
	return nil
}

// SkipEmpty reports the effective skip-empty flag.
func (c *Config) SkipEmpty() bool {
	return c.Session.SkipEmpty == nil || *c.Session.SkipEmpty
}

// LedgerPath returns the configured ledger location.
func (c *Config) LedgerPath() string {
	if c.Ledger.Path != "" {
		return c.Ledger.Path
	}
	if c.Ledger.Driver == LedgerSQLite {
		return filepath.Join(c.LogDir, "processed_notifications.db")
	}
	return filepath.Join(c.LogDir, "processed_notifications.json")
}

// BotAcct is the handle mentions must address, qualified with the server
// host so handles from other instances never match by accident.
func (c *Config) BotAcct() string {
	host := strings.TrimPrefix(strings.TrimPrefix(c.Mastodon.Server, "https://"), "http://")
	host = strings.TrimRight(host, "/")
	if host == "" || strings.Contains(c.Mastodon.Username, "@") {
		return c.Mastodon.Username
	}
	return c.Mastodon.Username + "@" + host
}

// Template returns the parsed prompt template.
func (c *Config) Template() (*llm.Template, error) {
	if c.LLM.TemplateFile == "" {
		return llm.ParseTemplate(llm.DefaultTemplate)
	}
	data, err := os.ReadFile(c.LLM.TemplateFile)
	if err != nil {
		return nil, &Error{Field: "llm.template_file", Err: err}
	}
	tmpl, err := llm.ParseTemplate(string(data))
	if err != nil {
		return nil, &Error{Field: "llm.template_file", Err: err}
	}
	return tmpl, nil
}
