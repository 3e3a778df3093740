// Package config loads run configuration from a YAML file, with secrets
// overridable through the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"futures-backtest-lab/internal/strategy"
)

// Validation errors.
var (
	ErrNoInstruments = errors.New("config: no instruments")
	ErrNoStrategies  = errors.New("config: no strategies")
	ErrNoStartTime   = errors.New("config: no start time")
)

// Config is the full run configuration.
type Config struct {
	// Instruments to replay or track, e.g. ["ETHUSDT", "SOLUSDT"].
	Instruments []string `yaml:"instruments"`

	// IndexTicker is fetched alongside the instruments for strategies
	// that compare against the market index. Default BTCUSDT.
	IndexTicker string `yaml:"index_ticker"`

	// StartTime is the replay start in RFC3339, e.g. "2024-01-01T00:00:00Z".
	StartTime string `yaml:"start_time"`

	// Workers bounds parallel instrument replay. Default NumCPU.
	Workers int `yaml:"workers"`

	// CommissionPercent for the commission-adjusted result variant.
	// 0 means use the default.
	CommissionPercent float64 `yaml:"commission_percent"`

	Strategies []strategy.Config `yaml:"strategies"`

	Storage  StorageConfig  `yaml:"storage"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// StorageConfig selects the persistence backends.
type StorageConfig struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"`

	// UseMemory runs everything on in-memory stores.
	UseMemory bool `yaml:"use_memory"`
}

// TelegramConfig configures the alert channel. Empty token disables alerts.
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

// Load reads and validates the configuration file. DSNs and the Telegram
// secrets can be overridden via POSTGRES_DSN, CLICKHOUSE_DSN,
// TELEGRAM_TOKEN and TELEGRAM_CHAT_ID.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)

	if len(cfg.Instruments) == 0 {
		return nil, ErrNoInstruments
	}
	if len(cfg.Strategies) == 0 {
		return nil, ErrNoStrategies
	}
	if cfg.StartTime == "" {
		return nil, ErrNoStartTime
	}
	if _, err := cfg.StartTimeMs(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// StartTimeMs returns the replay start as Unix milliseconds.
func (c *Config) StartTimeMs() (int64, error) {
	t, err := time.Parse(time.RFC3339, c.StartTime)
	if err != nil {
		return 0, fmt.Errorf("config: parse start_time %q: %w", c.StartTime, err)
	}
	return t.UnixMilli(), nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.Storage.ClickHouseDSN = v
	}
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if chatID, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Telegram.ChatID = chatID
		}
	}
}
