// Package config loads hindsight configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Server   ServerConfig   `yaml:"server"`
	Alpaca   AlpacaConfig   `yaml:"alpaca"`
	Logging  LoggingConfig  `yaml:"logging"`
	Backtest BacktestConfig `yaml:"backtest"`
	Fetch    FetchConfig    `yaml:"fetch"`
}

// StorageConfig holds data directory settings.
type StorageConfig struct {
	// DataDir is the root directory for parquet candle files.
	DataDir string `yaml:"data_dir"`
	// SQLitePath is the path to the SQLite database for run history.
	SQLitePath string `yaml:"sqlite_path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// AlpacaConfig holds Alpaca API credentials for candle fetching.
type AlpacaConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// BacktestConfig supplies defaults for backtest runs. CLI flags and
// API request fields take precedence over these values.
type BacktestConfig struct {
	InitialBalance float64 `yaml:"initial_balance"`
	CommissionRate float64 `yaml:"commission_rate"`
	SlippageRate   float64 `yaml:"slippage_rate"`
	MinLot         float64 `yaml:"min_lot"`
	Annualization  float64 `yaml:"annualization"`
	Strict         bool    `yaml:"strict"`
	Seed           int64   `yaml:"seed"`
}

// FetchConfig controls the daily candle fetch job.
type FetchConfig struct {
	// StartDate is the default earliest date fetched, YYYY-MM-DD.
	StartDate string `yaml:"start_date"`
	// BatchSize is the number of symbols requested per API call.
	BatchSize int `yaml:"batch_size"`
	// RateLimitPerMin caps API calls per minute.
	RateLimitPerMin int `yaml:"rate_limit_per_min"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			DataDir:    "data",
			SQLitePath: "data/hindsight.db",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8090,
		},
		Alpaca: AlpacaConfig{
			BaseURL: "https://paper-api.alpaca.markets",
			DataURL: "https://data.alpaca.markets",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Backtest: BacktestConfig{
			InitialBalance: 10000,
			CommissionRate: 0.001,
			SlippageRate:   0,
			MinLot:         0,
			Annualization:  252,
		},
		Fetch: FetchConfig{
			StartDate:       "2016-01-01",
			BatchSize:       200,
			RateLimitPerMin: 190,
		},
	}
}

// Load reads configuration from a YAML file and applies environment
// variable overrides. A missing path returns defaults with overrides
// applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	// Canonical Alpaca variable names win over the generic ones.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
