package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	HMAC     HMACConfig     `mapstructure:"hmac"`
	Output   OutputConfig   `mapstructure:"output"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // "development" or "production"
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`            // "sqlite" or "postgres"
	DSN             string `mapstructure:"dsn"`               // Connection string
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`    // Maximum idle connections (Postgres)
	MaxOpenConns    int    `mapstructure:"max_open_conns"`    // Maximum open connections (Postgres)
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // Connection max lifetime in minutes (Postgres)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Format string `mapstructure:"format"` // "json" or "text"
	Level  string `mapstructure:"level"`  // "debug", "info", "warn", "error"
}

// HMACConfig holds deployment-wide signature validation settings
type HMACConfig struct {
	// MaxDeviationSec bounds how far a signed timestamp may drift from
	// the server clock before the request is rejected as a replay.
	MaxDeviationSec int `mapstructure:"max_deviation_sec"`
}

// OutputConfig holds the directories generated config files are written to
type OutputConfig struct {
	AdminConfigsDir string `mapstructure:"admin_configs_dir"`
	RotationsDir    string `mapstructure:"rotations_dir"`
}

// NotifyConfig holds the expiry-notification sink settings
type NotifyConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	TelegramToken string `mapstructure:"telegram_token"`
	TelegramChat  int64  `mapstructure:"telegram_chat"`
}

// JobsConfig holds cron expressions for the scheduled jobs
type JobsConfig struct {
	ExpirySweep     string `mapstructure:"expiry_sweep"`
	AdminConfigs    string `mapstructure:"admin_configs"`
	RotationConfigs string `mapstructure:"rotation_configs"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8470)
	v.SetDefault("server.mode", "development")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./squadconf.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("log.format", "text")
	v.SetDefault("log.level", "info")
	v.SetDefault("hmac.max_deviation_sec", 300)
	v.SetDefault("output.admin_configs_dir", "./configs/admins")
	v.SetDefault("output.rotations_dir", "./configs/rotations")
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.telegram_token", "")
	v.SetDefault("notify.telegram_chat", 0)
	v.SetDefault("jobs.expiry_sweep", "*/2 * * * *")
	v.SetDefault("jobs.admin_configs", "*/2 * * * *")
	v.SetDefault("jobs.rotation_configs", "0 * * * *")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/squadconf")

	v.SetEnvPrefix("SQUADCONF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional; defaults plus env are enough
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
