package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coredatabase "goalbot/core/database"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token string `yaml:"token" envconfig:"BOT_TOKEN"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
	// BatchLimit caps the number of updates requested per getUpdates call; 0 -> API default
	BatchLimit int `yaml:"batch_limit" envconfig:"TELEGRAM_BATCH_LIMIT"`
}

// PollerConfig tunes the update supervisor loop.
type PollerConfig struct {
	// BackoffBaseMS is the delay after the first failed fetch; doubles per consecutive failure.
	BackoffBaseMS int `yaml:"backoff_base_ms" envconfig:"POLLER_BACKOFF_BASE_MS"`
	// BackoffMaxMS bounds backoff growth.
	BackoffMaxMS int `yaml:"backoff_max_ms" envconfig:"POLLER_BACKOFF_MAX_MS"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// Config aggregates the application configuration.
type Config struct {
	Telegram TelegramConfig      `yaml:"telegram"`
	Poller   PollerConfig        `yaml:"poller"`
	Database coredatabase.Config `yaml:"database"`
	Logging  LoggingConfig       `yaml:"logging"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram token is required")
	}
	if cfg.Telegram.LongPollTimeoutSeconds < 0 {
		return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
	}
	if cfg.Telegram.BatchLimit < 0 || cfg.Telegram.BatchLimit > 100 {
		return fmt.Errorf("telegram.batch_limit must be within 0..100")
	}

	if cfg.Poller.BackoffBaseMS < 0 || cfg.Poller.BackoffMaxMS < 0 {
		return fmt.Errorf("poller backoff values must be >= 0")
	}
	if cfg.Poller.BackoffBaseMS == 0 {
		cfg.Poller.BackoffBaseMS = 500
	}
	if cfg.Poller.BackoffMaxMS == 0 {
		cfg.Poller.BackoffMaxMS = 30000
	}
	if cfg.Poller.BackoffMaxMS < cfg.Poller.BackoffBaseMS {
		return fmt.Errorf("poller.backoff_max_ms must be >= poller.backoff_base_ms")
	}

	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxConnections <= 0 {
		cfg.Database.MaxConnections = 5
	}

	return nil
}
