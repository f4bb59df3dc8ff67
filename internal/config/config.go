// Package config loads assa settings from ~/.assa/config.yaml and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/devbydaniel/assa/internal/input"
	"github.com/devbydaniel/assa/internal/scroll"
)

// Config holds every tunable. Durations in YAML use Go syntax ("30s").
type Config struct {
	Headless   bool          `yaml:"headless"`
	ChromeBin  string        `yaml:"chrome_bin"`
	Timeout    time.Duration `yaml:"timeout"`
	HoldWindow time.Duration `yaml:"hold_window"`
	StartSpeed string        `yaml:"start_speed"`
	EndHold    time.Duration `yaml:"end_hold"`
	DemoLinks  []string      `yaml:"demo_links"`
	LogFile    string        `yaml:"log_file"`
	LogLevel   string        `yaml:"log_level"`
}

// Dir is ~/.assa.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".assa")
}

// DefaultPath is the config file read when no --config is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

func Default() Config {
	return Config{
		Headless:   false,
		Timeout:    30 * time.Second,
		HoldWindow: input.DefaultHoldWindow,
		StartSpeed: scroll.Slow.String(),
		EndHold:    2 * time.Second,
		LogFile:    filepath.Join(Dir(), "assa.log"),
		LogLevel:   "info",
	}
}

// Load reads path over the defaults, then applies ASSA_* environment
// overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if t := os.Getenv("ASSA_TIMEOUT"); t != "" {
		secs, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return fmt.Errorf("invalid ASSA_TIMEOUT: %w", err)
		}
		c.Timeout = time.Duration(secs * float64(time.Second))
	}
	if bin := os.Getenv("ASSA_CHROME_BIN"); bin != "" {
		c.ChromeBin = bin
	}
	if h := os.Getenv("ASSA_HEADLESS"); h != "" {
		v, err := strconv.ParseBool(h)
		if err != nil {
			return fmt.Errorf("invalid ASSA_HEADLESS: %w", err)
		}
		c.Headless = v
	}
	if lvl := os.Getenv("ASSA_LOG_LEVEL"); lvl != "" {
		c.LogLevel = lvl
	}
	return nil
}

// Validate rejects settings the session cannot run with.
func (c Config) Validate() error {
	if _, err := scroll.ParseLevel(c.StartSpeed); err != nil {
		return fmt.Errorf("start_speed: %w", err)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.HoldWindow < 0 || c.EndHold < 0 {
		return errors.New("hold_window and end_hold must not be negative")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Speed is the parsed start speed.
func (c Config) Speed() scroll.Level {
	l, _ := scroll.ParseLevel(c.StartSpeed)
	return l
}

// Level is the parsed log level.
func (c Config) Level() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log_level %q", c.LogLevel)
}
