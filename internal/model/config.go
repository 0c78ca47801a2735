package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ProviderConfig holds the connection settings for a single provider.
type ProviderConfig struct {
	// BaseURL is the provider endpoint, or a same-origin relay in front
	// of it.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds every HTTP call made to the provider.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// RateLimit is the maximum request rate per second. Zero disables
	// client-side throttling.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// ProvidersConfig groups the per-provider settings.
type ProvidersConfig struct {
	OneSecMail ProviderConfig `mapstructure:"1secmail" yaml:"1secmail"`
	MailTM     ProviderConfig `mapstructure:"mailtm" yaml:"mailtm"`
	Guerrilla  ProviderConfig `mapstructure:"guerrilla" yaml:"guerrilla"`
}

// For returns the settings for the given provider.
func (c ProvidersConfig) For(id ProviderID) ProviderConfig {
	switch id {
	case ProviderMailTM:
		return c.MailTM
	case ProviderGuerrilla:
		return c.Guerrilla
	default:
		return c.OneSecMail
	}
}

// SyncConfig controls the inbox polling loop.
type SyncConfig struct {
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
	FetchTimeoutSec int `mapstructure:"fetch_timeout_sec" yaml:"fetch_timeout_sec"`
}

// SessionConfig controls session recovery and defaults.
type SessionConfig struct {
	DefaultProvider string `mapstructure:"default_provider" yaml:"default_provider"`

	// RecoveryBaseURL is the origin embedded in shareable recovery links.
	RecoveryBaseURL string `mapstructure:"recovery_base_url" yaml:"recovery_base_url"`

	// AutoCreate provisions a mailbox on startup when nothing could be
	// recovered.
	AutoCreate bool `mapstructure:"auto_create" yaml:"auto_create"`
}

// StoreConfig selects and configures the session persistence backend.
type StoreConfig struct {
	// Backend is "sqlite" or "redis".
	Backend    string `mapstructure:"backend" yaml:"backend"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	RedisAddr  string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisDB    int    `mapstructure:"redis_db" yaml:"redis_db"`
	UseKeyring bool   `mapstructure:"use_keyring" yaml:"use_keyring"`
	KeyringDir string `mapstructure:"keyring_dir" yaml:"keyring_dir"`
}

// HTTPConfig holds the caller-facing API listener settings.
type HTTPConfig struct {
	Addr           string   `mapstructure:"addr" yaml:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// LogConfig configures the zap logger and its rotating file output.
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`

	// Quiet stops writing to stderr; only LogFile receives entries.
	Quiet bool `mapstructure:"quiet" yaml:"quiet"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Providers ProvidersConfig `mapstructure:"providers" yaml:"providers"`
	Sync      SyncConfig      `mapstructure:"sync" yaml:"sync"`
	Session   SessionConfig   `mapstructure:"session" yaml:"session"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	HTTP      HTTPConfig      `mapstructure:"http" yaml:"http"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/tempvortex/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "tempvortex")
}

// setDefaults registers every default on v so missing keys and
// environment-only setups resolve to working values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("providers.1secmail.base_url", "https://www.1secmail.com/api/v1/")
	v.SetDefault("providers.1secmail.timeout_sec", 30)
	v.SetDefault("providers.mailtm.base_url", "https://api.mail.tm")
	v.SetDefault("providers.mailtm.timeout_sec", 30)
	v.SetDefault("providers.mailtm.rate_limit", 8)
	v.SetDefault("providers.guerrilla.base_url", "https://api.guerrillamail.com/ajax.php")
	v.SetDefault("providers.guerrilla.timeout_sec", 30)

	v.SetDefault("sync.poll_interval_sec", 8)
	v.SetDefault("sync.fetch_timeout_sec", 30)

	v.SetDefault("session.default_provider", string(ProviderOneSecMail))
	v.SetDefault("session.recovery_base_url", "http://localhost:3000/")
	v.SetDefault("session.auto_create", true)

	v.SetDefault("store.backend", "sqlite")
	v.SetDefault("store.sqlite_path", filepath.Join(configDir(), "session.db"))
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.use_keyring", false)
	v.SetDefault("store.keyring_dir", filepath.Join(configDir(), "credentials"))

	v.SetDefault("http.addr", ":3000")
	v.SetDefault("http.allowed_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with TEMPVORTEX_ override file values
// (e.g. TEMPVORTEX_SYNC_POLL_INTERVAL_SEC). A missing file is not an
// error: defaults and the environment are used instead.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TEMPVORTEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks values that cannot be defaulted silently.
func (c *AppConfig) Validate() error {
	if !ProviderID(c.Session.DefaultProvider).Valid() {
		return fmt.Errorf("unknown default provider %q", c.Session.DefaultProvider)
	}
	switch c.Store.Backend {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Sync.PollIntervalSec <= 0 {
		c.Sync.PollIntervalSec = 8
	}
	if c.Sync.FetchTimeoutSec <= 0 {
		c.Sync.FetchTimeoutSec = 30
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("providers", cfg.Providers)
	v.Set("sync", cfg.Sync)
	v.Set("session", cfg.Session)
	v.Set("store", cfg.Store)
	v.Set("http", cfg.HTTP)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
