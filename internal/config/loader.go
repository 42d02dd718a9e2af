package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if VIGIL_CONFIG is set
//  3. env (prefix VIGIL_)
func Load(_ context.Context) (*Config, error) {
	// Start with defaults
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("VIGIL_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: VIGIL_ADDR, VIGIL_DRIFT__WINDOW, ...
	// A double underscore separates nesting levels so single underscores
	// survive inside key names like report_base_url.
	envProvider := env.Provider("VIGIL_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "vigil_")
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Drift.Window <= 0:
		return fmt.Errorf("%w: drift window must be positive", ErrInvalidConfig)
	case c.Drift.HighThreshold <= c.Drift.MidThreshold:
		return fmt.Errorf("%w: drift high threshold must exceed mid threshold", ErrInvalidConfig)
	case c.Drift.TripCount <= 0 || c.Drift.TripCount > c.Drift.Window:
		return fmt.Errorf("%w: drift trip count must fit the window", ErrInvalidConfig)
	case c.Suspicion.Max <= 0:
		return fmt.Errorf("%w: suspicion max must be positive", ErrInvalidConfig)
	case c.Suspicion.WarningThreshold <= c.Suspicion.CautionThreshold:
		return fmt.Errorf("%w: warning threshold must exceed caution threshold", ErrInvalidConfig)
	case c.Calibration.MinSamples <= 0:
		return fmt.Errorf("%w: calibration min samples must be positive", ErrInvalidConfig)
	}
	return nil
}
