// Fertistat - World Bank Fertilizer Consumption Analytics
// Copyright 2026 Agrodata Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/agrodata/fertistat

// Package config provides layered configuration for Fertistat.
//
// Configuration Loading Order (Koanf v2), highest priority last:
//  1. Built-in defaults
//  2. Optional YAML config file (FERTISTAT_CONFIG, default config.yaml)
//  3. Environment variables
//
// Config is immutable after Load() and safe for concurrent read access.
package config

import (
	"time"
)

// Config holds all application configuration.
type Config struct {
	WorldBank WorldBankConfig `koanf:"worldbank"`
	Database  DatabaseConfig  `koanf:"database"`
	Server    ServerConfig    `koanf:"server"`
	API       APIConfig       `koanf:"api"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// WorldBankConfig holds connection settings for the World Bank open data API.
//
// Environment Variables:
//   - WORLDBANK_BASE_URL: API base URL (default: https://api.worldbank.org/v2)
//   - WORLDBANK_INDICATOR: indicator ID to ingest (default: AG.CON.FERT.ZS)
//   - WORLDBANK_PAGE_SIZE: per_page for indicator pagination (default: 50)
type WorldBankConfig struct {
	// BaseURL is the World Bank API root, without a trailing slash.
	BaseURL string `koanf:"base_url" validate:"required,url"`

	// Indicator is the statistical series to ingest.
	// AG.CON.FERT.ZS is fertilizer consumption in kg per hectare of arable land.
	Indicator string `koanf:"indicator" validate:"required"`

	// PageSize is the per_page value used for the paginated indicator fetch.
	PageSize int `koanf:"page_size" validate:"gt=0,lte=1000"`

	// CountryPageSize is the per_page value for the single-request country
	// metadata fetch. It must exceed the size of the World Bank country set
	// (roughly 300 entities including aggregates).
	CountryPageSize int `koanf:"country_page_size" validate:"gt=0"`

	// Timeout bounds each individual HTTP request.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// RequestsPerSecond throttles outbound requests to the API.
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"gt=0"`
}

// DatabaseConfig holds DuckDB settings.
//
// Environment Variables:
//   - DATABASE_PATH: database file path, or :memory: (default: data/fertilizer.duckdb)
//   - DATABASE_MAX_MEMORY: DuckDB memory limit (default: 1GB)
//   - DATABASE_THREADS: DuckDB thread count, 0 = NumCPU (default: 0)
type DatabaseConfig struct {
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads" validate:"gte=0"`
}

// ServerConfig holds HTTP server settings for the serve command.
type ServerConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// APIConfig holds pagination and rate limit settings for the HTTP API.
type APIConfig struct {
	// DefaultLimit applies when a request omits the limit parameter.
	DefaultLimit int `koanf:"default_limit" validate:"gt=0"`

	// MaxLimit caps the limit parameter on every list endpoint.
	MaxLimit int `koanf:"max_limit" validate:"gt=0"`

	// RateLimitPerMinute is the per-client request budget.
	RateLimitPerMinute int `koanf:"rate_limit_per_minute" validate:"gt=0"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// defaultConfig returns the built-in defaults applied before file and
// environment layers.
func defaultConfig() Config {
	return Config{
		WorldBank: WorldBankConfig{
			BaseURL:           "https://api.worldbank.org/v2",
			Indicator:         "AG.CON.FERT.ZS",
			PageSize:          50,
			CountryPageSize:   20000,
			Timeout:           60 * time.Second,
			RequestsPerSecond: 5,
		},
		Database: DatabaseConfig{
			Path:      "data/fertilizer.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		API: APIConfig{
			DefaultLimit:       20,
			MaxLimit:           500,
			RateLimitPerMinute: 300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
