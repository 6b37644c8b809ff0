// Package config resolves run settings from webscenario.yaml, the
// environment (optionally seeded from .env) and command-line flags, in
// increasing order of precedence. Flags are applied by the CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/v0xg/webscenario/internal/browser"
	"github.com/v0xg/webscenario/internal/report"
)

// DefaultFile is read from the working directory when no --config is given.
const DefaultFile = "webscenario.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WEBSCENARIO_"

// Config holds every run setting.
type Config struct {
	BaseURL             string `yaml:"baseUrl"`
	TimeoutMs           int    `yaml:"timeoutMs"`
	PollMs              int    `yaml:"pollMs"`
	NavigationTimeoutMs int    `yaml:"navigationTimeoutMs"`
	Workers             int    `yaml:"workers"`
	Retries             int    `yaml:"retries"`

	Reporter string `yaml:"reporter"`
	Output   string `yaml:"output"`

	Driver     string `yaml:"driver"`
	Headless   bool   `yaml:"headless"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	ProfileDir string `yaml:"profileDir"`

	Screenshots bool   `yaml:"screenshots"`
	RecordDir   string `yaml:"recordDir"`
	History     string `yaml:"history"`
	MetricsOut  string `yaml:"metricsOut"`
	TraceOut    string `yaml:"traceOut"`

	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		TimeoutMs:           5000,
		PollMs:              100,
		NavigationTimeoutMs: 30000,
		Workers:             1,
		Retries:             0,
		Reporter:            report.FormatList,
		Driver:              browser.DriverRod,
		Headless:            true,
		Width:               1280,
		Height:              720,
		Screenshots:         true,
		Provider:            "claude",
	}
}

// Timeout is the per wait-point timeout.
func (c Config) Timeout() time.Duration { return time.Duration(c.TimeoutMs) * time.Millisecond }

// Poll is the polling interval.
func (c Config) Poll() time.Duration { return time.Duration(c.PollMs) * time.Millisecond }

// NavigationTimeout bounds a page load.
func (c Config) NavigationTimeout() time.Duration {
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// LoadDotEnv loads .env from the working directory into the process
// environment. A missing file is not an error; existing variables win.
func LoadDotEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Load returns the defaults overlaid with the file at path. When required is
// false a missing file yields the defaults.
func Load(path string, required bool) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

type envSetter func(c *Config, v string) error

func intVar(field func(c *Config) *int) envSetter {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid integer %q", v)
		}
		*field(c) = n
		return nil
	}
}

func boolVar(field func(c *Config) *bool) envSetter {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid boolean %q", v)
		}
		*field(c) = b
		return nil
	}
}

func stringVar(field func(c *Config) *string) envSetter {
	return func(c *Config, v string) error {
		*field(c) = strings.TrimSpace(v)
		return nil
	}
}

// envVars maps variable names, without the prefix, to the field they set.
var envVars = []struct {
	name string
	set  envSetter
}{
	{"BASE_URL", stringVar(func(c *Config) *string { return &c.BaseURL })},
	{"TIMEOUT_MS", intVar(func(c *Config) *int { return &c.TimeoutMs })},
	{"POLL_MS", intVar(func(c *Config) *int { return &c.PollMs })},
	{"NAVIGATION_TIMEOUT_MS", intVar(func(c *Config) *int { return &c.NavigationTimeoutMs })},
	{"WORKERS", intVar(func(c *Config) *int { return &c.Workers })},
	{"RETRIES", intVar(func(c *Config) *int { return &c.Retries })},
	{"REPORTER", stringVar(func(c *Config) *string { return &c.Reporter })},
	{"OUTPUT", stringVar(func(c *Config) *string { return &c.Output })},
	{"DRIVER", stringVar(func(c *Config) *string { return &c.Driver })},
	{"HEADLESS", boolVar(func(c *Config) *bool { return &c.Headless })},
	{"WIDTH", intVar(func(c *Config) *int { return &c.Width })},
	{"HEIGHT", intVar(func(c *Config) *int { return &c.Height })},
	{"PROFILE_DIR", stringVar(func(c *Config) *string { return &c.ProfileDir })},
	{"SCREENSHOTS", boolVar(func(c *Config) *bool { return &c.Screenshots })},
	{"RECORD_DIR", stringVar(func(c *Config) *string { return &c.RecordDir })},
	{"HISTORY", stringVar(func(c *Config) *string { return &c.History })},
	{"METRICS_OUT", stringVar(func(c *Config) *string { return &c.MetricsOut })},
	{"TRACE_OUT", stringVar(func(c *Config) *string { return &c.TraceOut })},
	{"DEFAULT_PROVIDER", stringVar(func(c *Config) *string { return &c.Provider })},
	{"MODEL", stringVar(func(c *Config) *string { return &c.Model })},
}

// ApplyEnv overlays every set WEBSCENARIO_* variable. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []string
	for _, ev := range envVars {
		v, ok := lookup(EnvPrefix + ev.name)
		if !ok {
			continue
		}
		if err := ev.set(c, v); err != nil {
			errs = append(errs, fmt.Sprintf("%s%s: %v", EnvPrefix, ev.name, err))
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Source: "environment", Errors: errs}
	}
	return nil
}

// ValidationError collects every problem found in a configuration.
type ValidationError struct {
	Source string
	Errors []string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invalid %s:", e.Source)
	for _, msg := range e.Errors {
		b.WriteString("\n  - ")
		b.WriteString(msg)
	}
	return b.String()
}

// Validate checks the resolved configuration.
func (c Config) Validate() error {
	var errs []string
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || !u.IsAbs() || u.Host == "" {
			add("baseUrl: %q must be an absolute URL", c.BaseURL)
		}
	}
	if c.TimeoutMs <= 0 {
		add("timeoutMs: must be positive, got %d", c.TimeoutMs)
	}
	if c.PollMs <= 0 {
		add("pollMs: must be positive, got %d", c.PollMs)
	} else if c.TimeoutMs > 0 && c.PollMs > c.TimeoutMs {
		add("pollMs: %d exceeds timeoutMs %d", c.PollMs, c.TimeoutMs)
	}
	if c.NavigationTimeoutMs <= 0 {
		add("navigationTimeoutMs: must be positive, got %d", c.NavigationTimeoutMs)
	}
	if c.Workers < 1 {
		add("workers: must be at least 1, got %d", c.Workers)
	}
	if c.Retries < 0 {
		add("retries: must not be negative, got %d", c.Retries)
	}
	if _, err := report.New(c.Reporter); err != nil {
		add("reporter: %v", err)
	}
	switch c.Driver {
	case browser.DriverRod, browser.DriverPlaywright:
	default:
		add("driver: unknown driver %q (supported: %s, %s)", c.Driver, browser.DriverRod, browser.DriverPlaywright)
	}
	if c.Width <= 0 || c.Height <= 0 {
		add("viewport: width and height must be positive, got %dx%d", c.Width, c.Height)
	}

	if len(errs) > 0 {
		return &ValidationError{Source: "configuration", Errors: errs}
	}
	return nil
}
