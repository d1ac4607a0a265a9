package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the root configuration for the ledger service.
type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Sentry      SentryConfig   `mapstructure:"sentry"`
	Ledger      LedgerConfig   `mapstructure:"ledger"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	DatabaseURL     string `mapstructure:"database_url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime string `mapstructure:"conn_max_idle_time"`
	ConnectTimeout  int    `mapstructure:"connect_timeout"`
	ApplicationName string `mapstructure:"application_name"`
	SQLitePath      string `mapstructure:"sqlite_path"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SentryConfig struct {
	DSN              string  `mapstructure:"dsn"`
	TracesSampleRate float64 `mapstructure:"traces_sample_rate"`
}

// LedgerConfig carries the simulation-scoped settings: where the reseeded
// balance comes from and the tunable fields that recommendations propose
// changes to. The recommendation engine passes these keys through opaquely.
type LedgerConfig struct {
	DefaultMode          string             `mapstructure:"default_mode"`
	StartingBalances     map[string]float64 `mapstructure:"starting_balances"`
	MaxPositionSizeUsd   float64            `mapstructure:"max_position_size_usd"`
	MaxTotalExposureUsd  float64            `mapstructure:"max_total_exposure_usd"`
	MinProfitThresholdPc float64            `mapstructure:"min_profit_threshold_pct"`
}

// DefaultStartingBalance is used when no per-platform balances are configured.
var DefaultStartingBalance = decimal.NewFromInt(1000)

// StartingBalance sums the configured per-platform balances. Falls back to
// DefaultStartingBalance when nothing is configured.
func (c LedgerConfig) StartingBalance() decimal.Decimal {
	if len(c.StartingBalances) == 0 {
		return DefaultStartingBalance
	}
	total := decimal.Zero
	for _, v := range c.StartingBalances {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total
}

// Mode returns the configured default trading mode, "paper" when unset.
func (c LedgerConfig) Mode() string {
	if c.DefaultMode == "" {
		return "paper"
	}
	return c.DefaultMode
}

// Load reads configuration from config.yaml (working directory or /etc/ledgerd)
// with LEDGERD_* environment variable overrides.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/ledgerd")

	v.SetEnvPrefix("LEDGERD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults cover it.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("server.port", 8080)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "300s")
	v.SetDefault("database.conn_max_idle_time", "60s")
	v.SetDefault("database.connect_timeout", 10)
	v.SetDefault("database.application_name", "ledgerd")
	v.SetDefault("database.sqlite_path", "ledgerd.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("ledger.default_mode", "paper")
	v.SetDefault("ledger.max_position_size_usd", 100.0)
	v.SetDefault("ledger.max_total_exposure_usd", 500.0)
	v.SetDefault("ledger.min_profit_threshold_pct", 2.0)
}

// Validate checks the loaded configuration for values that would fail later
// in a harder-to-diagnose way.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	driver := strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch driver {
	case "", "sqlite", "sqlite3", "postgres", "postgresql":
	default:
		return fmt.Errorf("unsupported database driver: %s (supported: sqlite, postgres)", c.Database.Driver)
	}

	for platform, balance := range c.Ledger.StartingBalances {
		if balance < 0 {
			return fmt.Errorf("starting balance for platform %q must not be negative", platform)
		}
	}

	return nil
}
