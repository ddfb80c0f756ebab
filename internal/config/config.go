// Package config provides configuration structures and loading for the CDN
// authorization core.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// Config is the top-level configuration for the server binary.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Sentry     SentryConfig     `mapstructure:"sentry"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Listen       string        `mapstructure:"listen" envconfig:"SERVER_LISTEN"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" envconfig:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" envconfig:"SERVER_IDLE_TIMEOUT"`
}

// DatabaseConfig contains backend connection settings. Driver "memory"
// selects the in-process store for local runs.
type DatabaseConfig struct {
	Driver           string        `mapstructure:"driver" envconfig:"DATABASE_DRIVER"`
	ConnectionString string        `mapstructure:"connection_string" envconfig:"DATABASE_CONNECTION_STRING"`
	MaxOpenConns     int           `mapstructure:"max_open_conns" envconfig:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns     int           `mapstructure:"max_idle_conns" envconfig:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime" envconfig:"DATABASE_CONN_MAX_LIFETIME"`
}

// LoggingConfig contains log output settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" envconfig:"LOG_LEVEL"`
	Format string `mapstructure:"format" envconfig:"LOG_FORMAT"`
}

// SentryConfig contains error reporting settings.
type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled" envconfig:"SENTRY_ENABLED"`
	DSN         string  `mapstructure:"dsn" envconfig:"SENTRY_DSN"`
	Environment string  `mapstructure:"environment" envconfig:"SENTRY_ENVIRONMENT"`
	SampleRate  float64 `mapstructure:"sample_rate" envconfig:"SENTRY_SAMPLE_RATE"`
}

// MonitoringConfig contains metrics endpoint settings.
type MonitoringConfig struct {
	Enabled bool   `mapstructure:"enabled" envconfig:"MONITORING_ENABLED"`
	Path    string `mapstructure:"path" envconfig:"MONITORING_PATH"`
}

// Load reads configuration in ascending precedence: built-in defaults, then
// the optional file, then environment variables. If configFile is empty,
// only defaults and environment variables apply.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// envconfig only touches fields whose env var is actually set; defaults
	// live in viper so they can never clobber file values.
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process env vars: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.read_timeout", "60s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.environment", "production")
	v.SetDefault("sentry.sample_rate", 1.0)

	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.path", "/metrics")
}

func validate(cfg *Config) error {
	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.ConnectionString == "" {
			return fmt.Errorf("database connection string is required for driver 'postgres'")
		}
	case "memory":
		// No connection settings needed.
	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}

	if cfg.Sentry.Enabled && cfg.Sentry.DSN == "" {
		return fmt.Errorf("sentry dsn is required when sentry is enabled")
	}

	return nil
}
