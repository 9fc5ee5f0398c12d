package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultPort              = 3000
	DefaultStaticDir         = "public"
	DefaultWriteTimeout      = 5 * time.Second
	DefaultKeepAliveInterval = 15 * time.Second
	DefaultEndpoint          = "https://api.binance.com/api/v3/ticker/24hr"
	DefaultSymbol            = "ETHUSDT"
	DefaultSourceTimeout     = 5 * time.Second
	DefaultRefreshInterval   = 10 * time.Second
	DefaultLogLevel          = "info"
)

// Config is the full server configuration tree.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Source  SourceConfig  `yaml:"source"`
	Refresh RefreshConfig `yaml:"refresh"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig holds HTTP listener and per-client settings.
type ServerConfig struct {
	// Port is the HTTP port for /events, the APIs and static files.
	Port int `yaml:"port"`

	// StaticDir is served for every path not claimed by another handler.
	StaticDir string `yaml:"static_dir"`

	// WriteTimeout bounds a single write to a single client. A client that
	// cannot accept a frame within it is dropped.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// KeepAliveInterval is how often an idle SSE stream gets a comment line.
	KeepAliveInterval time.Duration `yaml:"keepalive_interval"`
}

// Addr returns the listen address for Port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// SourceConfig describes the upstream price API.
type SourceConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Symbol   string        `yaml:"symbol"`
	Timeout  time.Duration `yaml:"timeout"`
}

// RefreshConfig controls the broadcast loop.
type RefreshConfig struct {
	// Interval is the fixed tick period. The loop is never reset.
	Interval time.Duration `yaml:"interval"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

// SlogLevel maps Level onto a slog.Level. Unknown values map to Info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty) and environment overrides, in that order.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              DefaultPort,
			StaticDir:         DefaultStaticDir,
			WriteTimeout:      DefaultWriteTimeout,
			KeepAliveInterval: DefaultKeepAliveInterval,
		},
		Source: SourceConfig{
			Endpoint: DefaultEndpoint,
			Symbol:   DefaultSymbol,
			Timeout:  DefaultSourceTimeout,
		},
		Refresh: RefreshConfig{
			Interval: DefaultRefreshInterval,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
	}
}

// validate checks structural constraints on the merged configuration.
func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range [1, 65535]", cfg.Server.Port)
	}
	if cfg.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}
	if cfg.Server.KeepAliveInterval < 0 {
		return fmt.Errorf("server.keepalive_interval must not be negative")
	}
	if cfg.Source.Endpoint == "" {
		return fmt.Errorf("source.endpoint is required")
	}
	if cfg.Source.Symbol == "" {
		return fmt.Errorf("source.symbol is required")
	}
	if cfg.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh.interval must be positive")
	}
	// A fetch that outlives the tick would starve the next one.
	if cfg.Source.Timeout <= 0 || cfg.Source.Timeout >= cfg.Refresh.Interval {
		return fmt.Errorf("source.timeout %v must be positive and below refresh.interval %v",
			cfg.Source.Timeout, cfg.Refresh.Interval)
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "warning", "error", "":
	default:
		return fmt.Errorf("log.level %q unknown: want debug|info|warn|error", cfg.Log.Level)
	}
	return nil
}
