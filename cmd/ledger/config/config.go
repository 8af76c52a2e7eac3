// Package config builds runtime configuration for the ledger CLI from
// viper-managed flags, environment variables and optional config files.
package config

import (
	"context"
	"strings"
	"time"

	"golang-ledger-service/internal/ledger"
	"golang-ledger-service/internal/server"
	"golang-ledger-service/internal/store/memory"
	"golang-ledger-service/internal/store/postgres"
	"golang-ledger-service/pkg/errors"
	"golang-ledger-service/pkg/logger"

	"github.com/spf13/viper"
)

// Config holds the runtime settings shared by all CLI commands.
type Config struct {
	DatabaseURL    string
	InMemory       bool
	HTTPAddr       string
	AllowedOrigins []string
	LogLevel       logger.Level
	LogFormat      logger.Format
}

// Load reads the configuration from viper.
func Load() *Config {
	cfg := &Config{
		DatabaseURL:    viper.GetString("database_url"),
		InMemory:       viper.GetBool("in_memory"),
		HTTPAddr:       viper.GetString("http_addr"),
		AllowedOrigins: splitOrigins(viper.GetString("allowed_origins")),
		LogLevel:       logger.Level(viper.GetString("log_level")),
		LogFormat:      logger.Format(viper.GetString("log_format")),
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8000"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = logger.InfoLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = logger.TextFormat
	}
	if viper.GetBool("verbose") {
		cfg.LogLevel = logger.DebugLevel
	}
	return cfg
}

func splitOrigins(raw string) []string {
	if raw == "" {
		return []string{"http://localhost:3000"}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// SetupLogging installs the global logger per the configuration.
func (c *Config) SetupLogging() error {
	log, err := logger.NewLogger(&logger.Config{
		Level:  c.LogLevel,
		Format: c.LogFormat,
	})
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "logging", err)
	}
	logger.SetGlobalLogger(log)
	return nil
}

// OpenStore connects to the configured store. A database URL selects
// PostgreSQL; the in-memory store is only for local experimentation and
// loses all data on exit.
func (c *Config) OpenStore(ctx context.Context) (ledger.Store, func(), error) {
	if c.InMemory {
		return memory.New(), func() {}, nil
	}
	if c.DatabaseURL == "" {
		return nil, nil, errors.ConfigurationError(errors.CodeMissingConfig,
			"database_url (set LEDGER_DATABASE_URL or --database-url, or pass --in-memory)", nil)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	st, err := postgres.New(connectCtx, c.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := st.EnsureSchema(connectCtx); err != nil {
		st.Close()
		return nil, nil, err
	}
	return st, st.Close, nil
}

// ServerConfig derives the HTTP server settings.
func (c *Config) ServerConfig() *server.Config {
	cfg := server.DefaultConfig()
	cfg.Addr = c.HTTPAddr
	cfg.AllowedOrigins = c.AllowedOrigins
	return cfg
}
