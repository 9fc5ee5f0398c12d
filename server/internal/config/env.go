package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// envOverrides lists the variables that take precedence over the YAML file.
// Pointer fields stay nil when the variable is unset.
type envOverrides struct {
	Port            *int           `envconfig:"PORT"`
	StaticDir       *string        `envconfig:"PRICESTREAM_STATIC_DIR"`
	SourceEndpoint  *string        `envconfig:"PRICESTREAM_SOURCE_ENDPOINT"`
	SourceSymbol    *string        `envconfig:"PRICESTREAM_SOURCE_SYMBOL"`
	SourceTimeout   *time.Duration `envconfig:"PRICESTREAM_SOURCE_TIMEOUT"`
	RefreshInterval *time.Duration `envconfig:"PRICESTREAM_REFRESH_INTERVAL"`
	LogLevel        *string        `envconfig:"PRICESTREAM_LOG_LEVEL"`
}

func applyEnv(cfg *Config) error {
	var o envOverrides
	if err := envconfig.Process("", &o); err != nil {
		return err
	}
	if o.Port != nil {
		cfg.Server.Port = *o.Port
	}
	if o.StaticDir != nil {
		cfg.Server.StaticDir = *o.StaticDir
	}
	if o.SourceEndpoint != nil {
		cfg.Source.Endpoint = *o.SourceEndpoint
	}
	if o.SourceSymbol != nil {
		cfg.Source.Symbol = *o.SourceSymbol
	}
	if o.SourceTimeout != nil {
		cfg.Source.Timeout = *o.SourceTimeout
	}
	if o.RefreshInterval != nil {
		cfg.Refresh.Interval = *o.RefreshInterval
	}
	if o.LogLevel != nil {
		cfg.Log.Level = *o.LogLevel
	}
	return nil
}

// LoadDotEnv sets variables from the .env file at path without overriding
// ones already present in the environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: load %q: %w", path, err)
	}
	return nil
}
