package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	JCDecaux JCDecauxConfig `mapstructure:"jcdecaux"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Server   ServerConfig   `mapstructure:"server"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// JCDecauxConfig holds provider API access settings
type JCDecauxConfig struct {
	BaseURL             string        `mapstructure:"base_url"`
	APIKey              string        `mapstructure:"api_key"`
	UserAgent           string        `mapstructure:"user_agent"`
	AbuseContact        string        `mapstructure:"abuse_contact"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout"`
}

// AlertsConfig holds reconciliation settings. The pass interval itself is fixed.
type AlertsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Workers int  `mapstructure:"workers"`
}

// StorageConfig selects and addresses the alert store
type StorageConfig struct {
	Driver      string `mapstructure:"driver"`
	DBPath      string `mapstructure:"db_path"`
	DatabaseURL string `mapstructure:"database_url"`
}

// ServerConfig holds the GBFS feed server settings
type ServerConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	PublicURL string `mapstructure:"public_url"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from an optional .env file, the config file and
// VELOFEED_* environment variables, in increasing priority.
// An empty path skips the config file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("VELOFEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options.
// Every key needs a default so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("jcdecaux.base_url", "https://api.jcdecaux.com/vls/v1")
	v.SetDefault("jcdecaux.api_key", "")
	v.SetDefault("jcdecaux.user_agent", "jcdecaux-gbfs/v1")
	v.SetDefault("jcdecaux.abuse_contact", "")
	v.SetDefault("jcdecaux.timeout", "10s")
	v.SetDefault("jcdecaux.max_idle_conns", 10)
	v.SetDefault("jcdecaux.max_idle_conns_per_host", 10)
	v.SetDefault("jcdecaux.idle_conn_timeout", "90s")

	v.SetDefault("alerts.enabled", true)
	v.SetDefault("alerts.workers", 4)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.db_path", "./data/velofeed.db")
	v.SetDefault("storage.database_url", "")

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.public_url", "http://localhost:8080")

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.JCDecaux.APIKey == "" {
		return fmt.Errorf("jcdecaux.api_key is required")
	}
	if c.JCDecaux.AbuseContact == "" {
		return fmt.Errorf("jcdecaux.abuse_contact is required")
	}
	if _, err := url.ParseRequestURI(c.JCDecaux.BaseURL); err != nil {
		return fmt.Errorf("jcdecaux.base_url is invalid: %w", err)
	}
	if c.JCDecaux.Timeout < time.Second || c.JCDecaux.Timeout > time.Minute {
		return fmt.Errorf("jcdecaux.timeout must be between 1s and 1m")
	}
	if c.JCDecaux.MaxIdleConns < 1 {
		return fmt.Errorf("jcdecaux.max_idle_conns must be at least 1")
	}

	if c.Alerts.Workers < 1 || c.Alerts.Workers > 32 {
		return fmt.Errorf("alerts.workers must be between 1 and 32")
	}

	switch c.Storage.Driver {
	case "sqlite":
	case "postgres":
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("storage.database_url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("storage.driver must be one of: sqlite, postgres")
	}

	if c.Server.Enabled {
		if c.Server.Address == "" {
			return fmt.Errorf("server.address is required when the server is enabled")
		}
		if _, err := url.ParseRequestURI(c.Server.PublicURL); err != nil {
			return fmt.Errorf("server.public_url is invalid: %w", err)
		}
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
