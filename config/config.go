// Package config holds the harness settings: built-in defaults, overridden by harness.yaml,
// then by .env files and the environment. Command-line flags are applied last by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/nookcoding/e2e-harness/runner"
	"github.com/nookcoding/e2e-harness/target"
	"github.com/nookcoding/e2e-harness/target/browser"
)

const DefaultFileName = "harness.yaml"

// Environment variables read by ApplyEnv.
const (
	EnvBaseURL   = "E2E_BASE_URL"
	EnvCI        = "CI"
	EnvWorkers   = "E2E_WORKERS"
	EnvHeadless  = "E2E_HEADLESS"
	EnvOutputDir = "E2E_OUTPUT_DIR"
)

// TargetKind selects how scenarios reach the system under test.
type TargetKind string

const (
	TargetBrowser TargetKind = "browser"
	TargetHTTP    TargetKind = "http"
)

// Duration is a time.Duration written in YAML as "30s", or as a number of milliseconds.
type Duration time.Duration

func (d Duration) D() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a string or number", node.Line)
	}
	if ms, err := strconv.ParseFloat(node.Value, 64); err == nil {
		*d = Duration(time.Duration(ms * float64(time.Millisecond)))
		return nil
	}
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q", node.Line, node.Value)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

type Timeouts struct {
	Navigation Duration `yaml:"navigation,omitempty"`
	Element    Duration `yaml:"element,omitempty"`
	Poll       Duration `yaml:"poll,omitempty"`
	Quiescence Duration `yaml:"quiescence,omitempty"`
	Request    Duration `yaml:"request,omitempty"`
	// Run bounds each scenario instance; zero means no limit.
	Run Duration `yaml:"run,omitempty"`
}

// WaitFor makes the harness wait until URL answers before running anything.
type WaitFor struct {
	URL     string   `yaml:"url,omitempty"`
	Timeout Duration `yaml:"timeout,omitempty"`
}

// DeviceRef is either the name of a preset ("mobile") or a full device definition.
type DeviceRef struct {
	target.Device
}

func (r *DeviceRef) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		d, ok := target.LookupDevice(node.Value)
		if !ok {
			return fmt.Errorf("line %d: unknown device %q (known: %s)", node.Line, node.Value, strings.Join(target.PresetNames(), ", "))
		}
		r.Device = d
		return nil
	}
	return node.Decode(&r.Device)
}

type Config struct {
	BaseURL string     `yaml:"baseURL,omitempty"`
	Target  TargetKind `yaml:"target,omitempty"`

	// Scenarios are the default scenario files or directories.
	Scenarios []string    `yaml:"scenarios,omitempty"`
	Devices   []DeviceRef `yaml:"devices,omitempty"`

	// CI turns on retries by default; it is normally set from the CI environment variable.
	CI bool `yaml:"ci,omitempty"`
	// Retries is the number of extra attempts for transient step failures. If unset it is 1
	// in CI and 0 otherwise.
	Retries *int `yaml:"retries,omitempty"`
	Workers int  `yaml:"workers,omitempty"`

	OutputDir     string   `yaml:"outputDir,omitempty"`
	ScreenshotDir string   `yaml:"screenshotDir,omitempty"`
	Reporters     []string `yaml:"reporters,omitempty"`

	Timeouts Timeouts       `yaml:"timeouts,omitempty"`
	Browser  browser.Config `yaml:"browser,omitempty"`
	WaitFor  WaitFor        `yaml:"waitFor,omitempty"`
}

func Default() Config {
	return Config{
		Target:        TargetBrowser,
		Scenarios:     []string{"scenarios"},
		Workers:       max(1, runtime.NumCPU()/2),
		OutputDir:     "test-results",
		ScreenshotDir: filepath.Join("test-results", "screenshots"),
		Reporters:     []string{"console", "junit"},
		Browser:       browser.Config{Headless: true},
		WaitFor:       WaitFor{Timeout: Duration(2 * time.Minute)},
	}
}

// Load returns the defaults overlaid with the YAML file at path. If path is empty,
// harness.yaml in the working directory is used when it exists.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files into the process environment.
// Missing files are ignored and variables that are already set keep their values.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides settings from environment variables, looked up with lookup
// (normally os.LookupEnv).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvBaseURL); ok && v != "" {
		c.BaseURL = v
	}
	if v, ok := lookup(EnvCI); ok && v != "" {
		ci, err := strconv.ParseBool(v)
		// CI systems set CI to all sorts of values; anything but an explicit false counts.
		c.CI = err != nil || ci
	}
	if v, ok := lookup(EnvWorkers); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		c.Workers = n
	}
	if v, ok := lookup(EnvHeadless); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvHeadless, err)
		}
		c.Browser.Headless = b
	}
	if v, ok := lookup(EnvOutputDir); ok && v != "" {
		c.OutputDir = v
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Target {
	case TargetBrowser, TargetHTTP:
	default:
		return fmt.Errorf("unknown target %q (expected browser or http)", c.Target)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Retries != nil && *c.Retries < 0 {
		return errors.New("retries must not be negative")
	}
	for _, d := range c.Devices {
		if err := d.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// EffectiveRetries applies the CI default when Retries is unset.
func (c Config) EffectiveRetries() int {
	if c.Retries != nil {
		return *c.Retries
	}
	if c.CI {
		return 1
	}
	return 0
}

// DeviceList returns the configured devices, or the default device if none are configured.
func (c Config) DeviceList() []target.Device {
	if len(c.Devices) == 0 {
		return []target.Device{target.DefaultDevice()}
	}
	ret := make([]target.Device, 0, len(c.Devices))
	for _, d := range c.Devices {
		ret = append(ret, d.Device)
	}
	return ret
}

// SetDevices replaces the device list with presets by name.
func (c *Config) SetDevices(names []string) error {
	devices, err := target.ResolveDevices(names...)
	if err != nil {
		return err
	}
	c.Devices = c.Devices[:0]
	for _, d := range devices {
		c.Devices = append(c.Devices, DeviceRef{Device: d})
	}
	return nil
}

// RunnerOptions translates the configuration into scenario runner options.
func (c Config) RunnerOptions() runner.Options {
	retries := c.EffectiveRetries()
	return runner.Options{
		BaseURL:           c.BaseURL,
		NavigationTimeout: c.Timeouts.Navigation.D(),
		Quiescence:        c.Timeouts.Quiescence.D(),
		ElementTimeout:    c.Timeouts.Element.D(),
		PollInterval:      c.Timeouts.Poll.D(),
		RequestTimeout:    c.Timeouts.Request.D(),
		RunTimeout:        c.Timeouts.Run.D(),
		RetryTransient:    retries > 0,
		MaxRetries:        retries,
		ScreenshotDir:     c.ScreenshotDir,
		Workers:           c.Workers,
	}
}
