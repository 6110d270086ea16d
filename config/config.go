// Package config loads host configuration for the permission system from
// environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/AllianceSoftware/csvpermissions-go/csvperm"
	apperrors "github.com/AllianceSoftware/csvpermissions-go/errors"
)

// Config is the environment-driven part of the configuration surface. The
// functional parts (resolver chain, naming and user type functions) are
// supplied in code via backend.Options.
type Config struct {
	// Paths are the ordered permission table files. Required.
	Paths []string `env:"CSV_PERMISSIONS_PATHS"`
	// Strict makes unknown permissions and user types fail checks instead
	// of returning false.
	Strict bool `env:"CSV_PERMISSIONS_STRICT"`
}

// FromEnv loads and validates configuration from the environment.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Paths = cleanPaths(cfg.Paths)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func cleanPaths(paths []string) []string {
	var cleaned []string
	for _, path := range paths {
		if path = strings.TrimSpace(path); path != "" {
			cleaned = append(cleaned, path)
		}
	}
	return cleaned
}

// Validate checks that required settings are present.
func (c Config) Validate() error {
	if len(c.Paths) == 0 {
		return apperrors.New(apperrors.CodeConfigPathsMissing, "CSV_PERMISSIONS_PATHS is required")
	}
	return nil
}

// Sources converts the configured paths to table sources, in order.
func (c Config) Sources() []csvperm.Source {
	sources := make([]csvperm.Source, len(c.Paths))
	for i, path := range c.Paths {
		sources[i] = csvperm.FileSource(path)
	}
	return sources
}
