// Package sconfig loads and saves the stagehand client configuration file.
package sconfig

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stagehand-audio/stagehand"
	"github.com/stagehand-audio/stagehand/saddr"
	"github.com/stagehand-audio/stagehand/sstatus"
	"gopkg.in/yaml.v3"
)

// Config holds the client configuration.
// Zero durations and limits mean "use the default".
type Config struct {
	// Name reported to the host. Empty means the device host name.
	Identifier string `yaml:"identifier"`

	// Last host connected to, as "a.b.c.d:port", and its display name.
	Host           string `yaml:"host"`
	HostIdentifier string `yaml:"host_identifier"`

	// Local IPv4 address to bind. Empty means auto-detect.
	BindIP string `yaml:"bind_ip"`

	LivenessTimeout time.Duration `yaml:"liveness_timeout"`
	PingInterval    time.Duration `yaml:"ping_interval"`
	PollInterval    time.Duration `yaml:"poll_interval"`

	BacklogLimit int `yaml:"backlog_limit"`

	// How often the dashboard drains the transport queue and redraws.
	RefreshInterval time.Duration `yaml:"refresh_interval"`

	// Listen address for the Prometheus endpoint. Empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`

	LogLevel string `yaml:"log_level"`

	// The dashboard owns the terminal, so logs go to a file.
	LogFile string `yaml:"log_file"`
}

// DefaultRefreshInterval is the dashboard tick when none is configured.
const DefaultRefreshInterval = 50 * time.Millisecond

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		LivenessTimeout: stagehand.DefaultLivenessTimeout,
		PingInterval:    stagehand.DefaultPingInterval,
		PollInterval:    stagehand.DefaultPollInterval,
		BacklogLimit:    sstatus.DefaultBacklogLimit,
		RefreshInterval: DefaultRefreshInterval,
		LogLevel:        "info",
	}
}

// DefaultPath returns the default config file path: ~/.stagehand/config.yaml
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".stagehand", "config.yaml")
	}
	return filepath.Join(home, ".stagehand", "config.yaml")
}

// Load reads the configuration from the given YAML file path.
// If the file does not exist, it returns Default with no error.
// Fields missing from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes c to path, creating the parent directory if needed.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// Validate reports every problem in c, joined.
func (c *Config) Validate() error {
	var errs error

	if c.Host != "" {
		if _, err := saddr.ParseIPAddress(c.Host); err != nil {
			errs = errors.Join(errs, fmt.Errorf("host: %w", err))
		}
	}

	if c.BindIP != "" {
		a, err := netip.ParseAddr(c.BindIP)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("bind_ip: %w", err))
		} else if !a.Unmap().Is4() {
			errs = errors.Join(errs, fmt.Errorf("bind_ip: %s is not an IPv4 address", c.BindIP))
		}
	}

	for _, d := range []struct {
		name string
		v    time.Duration
	}{
		{"liveness_timeout", c.LivenessTimeout},
		{"ping_interval", c.PingInterval},
		{"poll_interval", c.PollInterval},
		{"refresh_interval", c.RefreshInterval},
	} {
		if d.v < 0 {
			errs = errors.Join(errs, fmt.Errorf("%s must not be negative", d.name))
		}
	}

	if c.PollInterval > 0 && c.LivenessTimeout > 0 && c.PollInterval > c.LivenessTimeout {
		errs = errors.Join(errs, errors.New("poll_interval must not exceed liveness_timeout"))
	}

	if c.BacklogLimit < 0 {
		errs = errors.Join(errs, errors.New("backlog_limit must not be negative"))
	}

	if _, err := c.SlogLevel(); err != nil {
		errs = errors.Join(errs, err)
	}

	return errs
}

// SlogLevel parses LogLevel.
// An empty level means info.
func (c *Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// TransportConfig returns the transport settings from c.
// c must have passed Validate.
func (c *Config) TransportConfig() stagehand.TransportConfig {
	tc := stagehand.TransportConfig{
		LivenessTimeout: c.LivenessTimeout,
		PingInterval:    c.PingInterval,
		PollInterval:    c.PollInterval,
	}
	if c.Identifier != "" {
		tc.Identifier = saddr.NewIdentifier(c.Identifier)
	}
	if c.BindIP != "" {
		tc.BindIP = netip.MustParseAddr(c.BindIP)
	}
	return tc
}

// ReducerConfig returns the status reducer settings from c.
func (c *Config) ReducerConfig() sstatus.ReducerConfig {
	return sstatus.ReducerConfig{BacklogLimit: c.BacklogLimit}
}
