/*
Package config loads application configuration from environment variables
and an optional .env-style file, via viper. Env vars win over file values.
*/
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config groups the server configuration.
type Config struct {
	App  AppConfig
	HTTP HTTPConfig
	DB   DBConfig
	Sync SyncConfig
}

// AppConfig is general application configuration.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
}

// HTTPConfig is the listen configuration.
type HTTPConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
}

// Addr returns the listen address (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DBConfig is the SQLite document store configuration.
type DBConfig struct {
	Path string // ":memory:" for ephemeral
}

// SyncConfig tunes the write-behind syncer.
type SyncConfig struct {
	Debounce time.Duration
}

// Load reads configuration from environment variables and, if present, a
// .env file in the working directory. Expected names: APP_ENV, HTTP_PORT,
// DB_PATH, SYNC_DEBOUNCE_MS, etc.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // file is optional

	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "ledger-engine")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("SHUTDOWN_TIMEOUT_SECONDS", 10)
	v.SetDefault("DB_PATH", "./data/ledger.db")
	v.SetDefault("SYNC_DEBOUNCE_MS", 1500)

	cfg := &Config{
		App: AppConfig{
			Env:      v.GetString("APP_ENV"),
			Name:     v.GetString("APP_NAME"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		HTTP: HTTPConfig{
			Host:            v.GetString("HTTP_HOST"),
			Port:            v.GetInt("HTTP_PORT"),
			ShutdownTimeout: time.Duration(v.GetInt("SHUTDOWN_TIMEOUT_SECONDS")) * time.Second,
		},
		DB: DBConfig{
			Path: v.GetString("DB_PATH"),
		},
		Sync: SyncConfig{
			Debounce: time.Duration(v.GetInt("SYNC_DEBOUNCE_MS")) * time.Millisecond,
		},
	}

	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return nil, fmt.Errorf("invalid HTTP_PORT %d", cfg.HTTP.Port)
	}
	if cfg.Sync.Debounce <= 0 {
		return nil, fmt.Errorf("SYNC_DEBOUNCE_MS must be positive")
	}
	return cfg, nil
}
