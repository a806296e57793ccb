package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/ovaphlow/pitchfork/service-registry-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-registry-go/pkg/utilities"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is read from the environment, optionally seeded from a .env file.
type Config struct {
	HTTPAddr      string `envconfig:"HTTP_ADDR" default:"0.0.0.0:8431"`
	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"postgres"`

	DatabaseURL            string        `envconfig:"DATABASE_URL"`
	DatabaseMaxConns       int           `envconfig:"DATABASE_MAX_CONNS" default:"5"`
	DatabaseTimeout        time.Duration `envconfig:"DATABASE_TIMEOUT" default:"5s"`
	DatabaseTimeZone       string        `envconfig:"DATABASE_TIMEZONE"`
	DatabaseClientEncoding string        `envconfig:"DATABASE_CLIENT_ENCODING"`

	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	LogDev        bool   `envconfig:"LOG_DEV"`
	LogFile       string `envconfig:"LOG_FILE"`
	LogMaxAgeDays int    `envconfig:"LOG_MAX_AGE_DAYS" default:"7"`

	AdminRatio    float64 `envconfig:"ADMIN_RATIO" default:"0.2"`
	PageSize      int     `envconfig:"PAGE_SIZE" default:"5"`
	SearchLimit   int     `envconfig:"SEARCH_LIMIT" default:"5"`
	SnowflakeNode int64   `envconfig:"SNOWFLAKE_NODE" default:"1"`
}

// Load reads files (".env" when none are given) best-effort, then the
// environment. Variables already set win over file values.
func Load(files ...string) (*Config, error) {
	_ = godotenv.Load(files...)
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	switch c.StorageDriver {
	case DriverMemory:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required with STORAGE_DRIVER=%s", DriverPostgres)
		}
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.AdminRatio < 0 || c.AdminRatio > 1 {
		return fmt.Errorf("config: ADMIN_RATIO %v out of [0,1]", c.AdminRatio)
	}
	if c.PageSize <= 0 || c.SearchLimit <= 0 {
		return fmt.Errorf("config: PAGE_SIZE and SEARCH_LIMIT must be positive")
	}
	return nil
}

func (c *Config) Database() database.Config {
	return database.Config{
		DSN:            c.DatabaseURL,
		MaxConns:       c.DatabaseMaxConns,
		Timeout:        c.DatabaseTimeout,
		TimeZone:       c.DatabaseTimeZone,
		ClientEncoding: c.DatabaseClientEncoding,
	}
}

func (c *Config) Logger() utilities.Config {
	return utilities.Config{
		Level:      c.LogLevel,
		Dev:        c.LogDev,
		File:       c.LogFile,
		MaxAgeDays: c.LogMaxAgeDays,
	}
}
