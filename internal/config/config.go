// Package config handles TOML configuration parsing and validation for dhcpy.
package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/dhcpy/dhcpy/internal/logging"
)

// Config is the top-level configuration for dhcpy.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Codec   CodecConfig   `toml:"codec"`
	Capture CaptureConfig `toml:"capture"`
	Metrics MetricsConfig `toml:"metrics"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	Interface   string `toml:"interface"`
	BindAddress string `toml:"bind_address"`
	LogLevel    string `toml:"log_level"`
	LogFormat   string `toml:"log_format"`
}

// CodecConfig controls how unknown options are treated during decode.
type CodecConfig struct {
	KeepUnknownOptions bool `toml:"keep_unknown_options"`
	LogUnknownOptions  bool `toml:"log_unknown_options"`
}

// CaptureConfig holds the received-message journal settings.
type CaptureConfig struct {
	Enabled    bool            `toml:"enabled"`
	Path       string          `toml:"path"`
	MaxRecords int             `toml:"max_records"`
	RateLimit  RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig bounds how fast captures are written.
type RateLimitConfig struct {
	Enabled            bool `toml:"enabled"`
	MaxPerSecond       int  `toml:"max_per_second"`
	MaxPerMACPerSecond int  `toml:"max_per_mac_per_second"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// Load reads and validates a TOML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes TOML bytes. name is used only in error messages.
func Parse(data []byte, name string) (*Config, error) {
	cfg := &Config{}
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", name, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("parsing config file %s: unknown keys: %s", name, strings.Join(keys, ", "))
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills in default values for unset fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Interface == "" {
		cfg.Server.Interface = DefaultInterface
	}
	if cfg.Server.BindAddress == "" {
		cfg.Server.BindAddress = DefaultBindAddress
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = DefaultLogLevel
	}
	if cfg.Server.LogFormat == "" {
		cfg.Server.LogFormat = DefaultLogFormat
	}

	if cfg.Capture.Path == "" {
		cfg.Capture.Path = DefaultCapturePath
	}
	if cfg.Capture.MaxRecords == 0 {
		cfg.Capture.MaxRecords = DefaultCaptureMaxRecords
	}
	if cfg.Capture.RateLimit.MaxPerSecond == 0 {
		cfg.Capture.RateLimit.MaxPerSecond = DefaultRateLimitPerSecond
	}
	if cfg.Capture.RateLimit.MaxPerMACPerSecond == 0 {
		cfg.Capture.RateLimit.MaxPerMACPerSecond = DefaultRateLimitPerMAC
	}

	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = DefaultMetricsListen
	}
}

// validate checks the config for errors.
func validate(cfg *Config) error {
	if _, err := net.ResolveUDPAddr("udp4", cfg.Server.BindAddress); err != nil {
		return fmt.Errorf("server.bind_address %q: %w", cfg.Server.BindAddress, err)
	}
	if !logging.ValidLevel(cfg.Server.LogLevel) {
		return fmt.Errorf("server.log_level %q must be one of debug, info, warn, error", cfg.Server.LogLevel)
	}
	switch strings.ToLower(cfg.Server.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("server.log_format must be \"json\" or \"text\", got %q", cfg.Server.LogFormat)
	}

	if cfg.Capture.MaxRecords < 0 {
		return fmt.Errorf("capture.max_records must not be negative, got %d", cfg.Capture.MaxRecords)
	}
	if cfg.Capture.RateLimit.MaxPerSecond < 0 {
		return fmt.Errorf("capture.rate_limit.max_per_second must not be negative, got %d", cfg.Capture.RateLimit.MaxPerSecond)
	}
	if cfg.Capture.RateLimit.MaxPerMACPerSecond < 0 {
		return fmt.Errorf("capture.rate_limit.max_per_mac_per_second must not be negative, got %d", cfg.Capture.RateLimit.MaxPerMACPerSecond)
	}

	if cfg.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Listen); err != nil {
			return fmt.Errorf("metrics.listen %q: %w", cfg.Metrics.Listen, err)
		}
	}

	return nil
}
