// Fertistat - World Bank Fertilizer Consumption Analytics
// Copyright 2026 Agrodata Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/agrodata/fertistat

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// configSections maps the leading environment variable segment to a koanf
// section. WORLDBANK_PAGE_SIZE becomes worldbank.page_size, DATABASE_MAX_MEMORY
// becomes database.max_memory, and so on.
var configSections = []string{"worldbank", "database", "server", "api", "logging"}

// Load builds the configuration from defaults, an optional YAML file, and
// environment variables, then validates it.
//
// The config file path is taken from FERTISTAT_CONFIG; when unset,
// config.yaml is used if it exists.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: struct defaults
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: optional config file
	if path := configFilePath(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	envProvider := env.Provider("", ".", envTransform)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// configFilePath resolves the optional YAML config file location.
func configFilePath() string {
	if path := os.Getenv("FERTISTAT_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	return ""
}

// envTransform maps environment variable names to koanf config paths.
// Only variables whose first segment matches a known config section are
// considered; everything else is ignored so unrelated environment noise
// cannot leak into the configuration.
func envTransform(name string) string {
	lower := strings.ToLower(name)
	for _, section := range configSections {
		prefix := section + "_"
		if strings.HasPrefix(lower, prefix) {
			return section + "." + strings.TrimPrefix(lower, prefix)
		}
	}
	return ""
}

// Validate checks the configuration against the struct-level validation
// rules and a few cross-field constraints.
func Validate(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		var ve validator.ValidationErrors
		if ok := asValidationErrors(err, &ve); ok && len(ve) > 0 {
			fe := ve[0]
			return fmt.Errorf("invalid config: field %s failed rule %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if cfg.API.DefaultLimit > cfg.API.MaxLimit {
		return fmt.Errorf("invalid config: api.default_limit (%d) exceeds api.max_limit (%d)",
			cfg.API.DefaultLimit, cfg.API.MaxLimit)
	}
	if strings.HasSuffix(cfg.WorldBank.BaseURL, "/") {
		cfg.WorldBank.BaseURL = strings.TrimRight(cfg.WorldBank.BaseURL, "/")
	}

	return nil
}

// asValidationErrors unwraps err into validator.ValidationErrors.
func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	ve, ok := err.(validator.ValidationErrors)
	if ok {
		*target = ve
	}
	return ok
}
