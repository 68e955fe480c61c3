// Package config loads the daemon configuration from environment variables
// (prefix DOCSINK_, nested keys separated by a double underscore, e.g.
// DOCSINK_SERVER__PORT). A local .env file is honored for development.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"

	"github.com/harborlog/docsink/internal/sink"
)

type Config struct {
	Primary       Primary              `koanf:"primary" validate:"required"`
	Server        ServerConfig         `koanf:"server" validate:"required"`
	Database      DatabaseConfig       `koanf:"database" validate:"required"`
	Sink          SinkConfig           `koanf:"sink" validate:"required"`
	Observability *ObservabilityConfig `koanf:"observability"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

type ServerConfig struct {
	Port         string `koanf:"port" validate:"required"`
	ReadTimeout  int    `koanf:"read_timeout"`
	WriteTimeout int    `koanf:"write_timeout"`
	IdleTimeout  int    `koanf:"idle_timeout"`
}

type DatabaseConfig struct {
	Host       string `koanf:"host" validate:"required"`
	Port       int    `koanf:"port" validate:"required"`
	User       string `koanf:"user" validate:"required"`
	Password   string `koanf:"password"`
	Name       string `koanf:"name" validate:"required"`
	DisableTLS bool   `koanf:"disable_tls"`
	MaxConns   int    `koanf:"max_conns"`
}

// URL renders the pgx connection string. DisableTLS maps to sslmode=disable
// and is meant for local testing only.
func (d DatabaseConfig) URL() string {
	sslmode := "require"
	if d.DisableTLS {
		sslmode = "disable"
	}
	url := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
	if d.MaxConns > 0 {
		url += fmt.Sprintf("&pool_max_conns=%d", d.MaxConns)
	}
	return url
}

// SinkConfig is the environment-facing shape of sink.Options.
type SinkConfig struct {
	Database          string        `koanf:"database" validate:"required"`
	Collection        string        `koanf:"collection" validate:"required"`
	PartitionKeyField string        `koanf:"partition_key_field"`
	BatchPostingLimit int           `koanf:"batch_posting_limit"`
	QueueLimit        int           `koanf:"queue_limit"`
	Period            time.Duration `koanf:"period"`
	UTC               bool          `koanf:"utc"`
	TimeToLive        time.Duration `koanf:"time_to_live"`
	JanitorInterval   time.Duration `koanf:"janitor_interval"`
}

// Options builds validated sink options from the loaded config. Zero numeric
// fields fall back to the sink defaults before validation, so only explicit
// out-of-range values are rejected.
func (c SinkConfig) Options(db DatabaseConfig, diag sink.Diagnostics) (sink.Options, error) {
	opts := sink.DefaultOptions()
	opts.Endpoint = fmt.Sprintf("%s:%d", db.Host, db.Port)
	opts.Key = db.Password
	opts.DisableTLS = db.DisableTLS
	opts.Database = c.Database
	opts.Collection = c.Collection
	opts.UTC = c.UTC
	opts.Diagnostics = diag
	if c.PartitionKeyField != "" {
		opts.PartitionKeyField = c.PartitionKeyField
	}
	if c.BatchPostingLimit != 0 {
		opts.BatchPostingLimit = c.BatchPostingLimit
	}
	if c.QueueLimit != 0 {
		opts.QueueLimit = c.QueueLimit
	}
	if c.Period != 0 {
		opts.Period = c.Period
	}
	if c.TimeToLive != 0 {
		ttl := c.TimeToLive
		opts.TimeToLive = &ttl
	}
	if err := opts.Validate(); err != nil {
		return sink.Options{}, err
	}
	return opts, nil
}

// LoadConfig loads and validates the configuration. Invalid configuration is
// fatal: the process must not come up half-configured.
func LoadConfig() *Config {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	// Development convenience; absence of a .env file is fine.
	_ = godotenv.Load()

	k := koanf.New(".")
	err := k.Load(env.Provider("DOCSINK_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "DOCSINK_"))
		return strings.ReplaceAll(key, "__", ".")
	}), nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("could not load environment variables")
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		logger.Fatal().Err(err).Msg("could not unmarshal configuration")
	}

	if err := validator.New().Struct(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	if cfg.Observability == nil {
		cfg.Observability = DefaultObservabilityConfig()
	}
	cfg.Observability.ServiceName = "docsinkd"
	cfg.Observability.Environment = cfg.Primary.Env
	if err := cfg.Observability.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid observability config")
	}

	return cfg
}
