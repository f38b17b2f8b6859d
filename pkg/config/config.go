// Package config loads htmlshot's YAML configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete htmlshot configuration.
type Config struct {
	Browser  BrowserConfig  `yaml:"browser" json:"browser"`
	Protocol ProtocolConfig `yaml:"protocol" json:"protocol"`
	Capture  CaptureConfig  `yaml:"capture" json:"capture"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// BrowserConfig controls how the browser process is found and started
type BrowserConfig struct {
	// Executable overrides executable discovery
	Executable string `yaml:"executable" json:"executable"`

	Headless bool `yaml:"headless" json:"headless"`

	// UsePlaywright falls back to the Chromium build installed by playwright
	UsePlaywright bool `yaml:"use_playwright" json:"use_playwright"`

	// ProfileBase is the directory temporary profiles are created in (default: os.TempDir())
	ProfileBase string `yaml:"profile_base" json:"profile_base"`

	ExtraArgs      []string `yaml:"extra_args,omitempty" json:"extra_args,omitempty"`
	StartupTimeout Duration `yaml:"startup_timeout" json:"startup_timeout"`
}

// ProtocolConfig holds the DevTools round-trip budgets
type ProtocolConfig struct {
	CommandTimeout Duration `yaml:"command_timeout" json:"command_timeout"`
	LoadTimeout    Duration `yaml:"load_timeout" json:"load_timeout"`
}

// CaptureConfig holds screenshot defaults
type CaptureConfig struct {
	Format   string `yaml:"format" json:"format"`
	Quality  int    `yaml:"quality" json:"quality"`
	Parallel int    `yaml:"parallel" json:"parallel"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level" json:"level"`

	// Dir enables a per-run log file in this directory
	Dir string `yaml:"dir" json:"dir"`
}

// Duration is a time.Duration written as "5s", "1m30s" in YAML.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalYAML accepts duration strings and bare integers (seconds).
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	s = strings.TrimSpace(s)

	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes d as a duration string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Capture formats.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
)

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:       true,
			StartupTimeout: Duration(20 * time.Second),
		},
		Protocol: ProtocolConfig{
			CommandTimeout: Duration(5 * time.Second),
			LoadTimeout:    Duration(30 * time.Second),
		},
		Capture: CaptureConfig{
			Format:   FormatJPEG,
			Quality:  90,
			Parallel: 4,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate validates the configuration and fills in unset values.
func (c *Config) Validate() error {
	if c.Protocol.CommandTimeout < 0 {
		return fmt.Errorf("protocol.command_timeout cannot be negative")
	}
	if c.Protocol.LoadTimeout < 0 {
		return fmt.Errorf("protocol.load_timeout cannot be negative")
	}
	if c.Browser.StartupTimeout < 0 {
		return fmt.Errorf("browser.startup_timeout cannot be negative")
	}

	defaults := DefaultConfig()
	if c.Protocol.CommandTimeout == 0 {
		c.Protocol.CommandTimeout = defaults.Protocol.CommandTimeout
	}
	if c.Protocol.LoadTimeout == 0 {
		c.Protocol.LoadTimeout = defaults.Protocol.LoadTimeout
	}
	if c.Browser.StartupTimeout == 0 {
		c.Browser.StartupTimeout = defaults.Browser.StartupTimeout
	}

	c.Capture.Format = strings.ToLower(c.Capture.Format)
	if c.Capture.Format == "jpg" {
		c.Capture.Format = FormatJPEG
	}
	if c.Capture.Format == "" {
		c.Capture.Format = defaults.Capture.Format
	}
	if c.Capture.Format != FormatPNG && c.Capture.Format != FormatJPEG {
		return fmt.Errorf("invalid capture.format: %s (must be 'png' or 'jpeg')", c.Capture.Format)
	}
	if c.Capture.Quality < 0 || c.Capture.Quality > 100 {
		return fmt.Errorf("capture.quality must be between 0 and 100, got %d", c.Capture.Quality)
	}
	if c.Capture.Parallel < 0 {
		return fmt.Errorf("capture.parallel cannot be negative")
	}
	if c.Capture.Parallel == 0 {
		c.Capture.Parallel = defaults.Capture.Parallel
	}

	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid logging.level: %s (must be 'debug', 'info', 'warn', or 'error')", c.Logging.Level)
	}

	return nil
}
