package main

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/alessio/shellescape"
	"github.com/spf13/cobra"

	"github.com/nookcoding/e2e-harness/config"
	"github.com/nookcoding/e2e-harness/framework"
	"github.com/nookcoding/e2e-harness/report"
	"github.com/nookcoding/e2e-harness/scenariodef"
	"github.com/nookcoding/e2e-harness/target"
)

type commandParams struct {
	configFile string
	envFiles   []string
	name       string
	baseURL    string
	target     string
	devices    []string
	workers    int
	retries    int
	ci         bool
	headed     bool
	outputDir  string
	reporters  []string
	filters    framework.RegexFilters
	policy     string
	watch      bool
	verbose    bool
	debug      bool
	debugAll   bool
	noColor    bool
}

func (c *commandParams) addPersistentFlags(cmd *cobra.Command) {
	fs := cmd.PersistentFlags()
	fs.StringVarP(&c.configFile, "config", "c", "", "configuration file (default harness.yaml if present)")
	fs.StringSliceVar(&c.envFiles, "env-file", []string{".env"}, ".env files to load before reading the environment")
	fs.StringVar(&c.baseURL, "base-url", "", "base URL of the application under test")
	fs.StringVarP(&c.outputDir, "output-dir", "o", "", "directory for report files")
	fs.StringSliceVar(&c.reporters, "reporter", nil, "report formats: console, junit, json")
	fs.BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging of the harness itself")
	fs.BoolVar(&c.noColor, "no-color", false, "disable colored console output")
}

func (c *commandParams) addRunFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&c.name, "name", "e2e", "name of the run in reports")
	fs.StringVar(&c.target, "target", "", "how to reach the application: browser or http")
	fs.StringArrayVarP(&c.devices, "device", "d", nil, "device profile to run under (repeatable): "+strings.Join(target.PresetNames(), ", "))
	fs.IntVarP(&c.workers, "workers", "w", 0, "number of scenario instances to run in parallel")
	fs.IntVar(&c.retries, "retries", 0, "extra attempts for transient step failures")
	fs.BoolVar(&c.ci, "ci", false, "run as in CI (retries transient failures once)")
	fs.BoolVar(&c.headed, "headed", false, "show the browser window")
	fs.Var(&c.filters.MustMatch, "run", "regex pattern(s) to select scenarios to run")
	fs.Var(&c.filters.MustNotMatch, "skip", "regex pattern(s) to select scenarios not to run")
	fs.BoolVar(&c.watch, "watch", false, "rerun when scenario files change")
	fs.BoolVar(&c.debug, "debug", false, "show debug output for failed steps")
	fs.BoolVar(&c.debugAll, "debug-all", false, "show debug output for all steps")
}

func (c *commandParams) addLoadFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.policy, "policy", "", "override the plans' threshold policy: gate or advisory")
}

// buildConfig reads the configuration file, .env files and environment, then applies the
// flags that were given explicitly.
func (c *commandParams) buildConfig(cmd *cobra.Command) (config.Config, error) {
	if err := config.LoadDotEnv(c.envFiles...); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(c.configFile)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = c.baseURL
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir = c.outputDir
	}
	if flags.Changed("reporter") {
		cfg.Reporters = c.reporters
	}
	if flags.Changed("target") {
		cfg.Target = config.TargetKind(c.target)
	}
	if flags.Changed("device") {
		if err := cfg.SetDevices(c.devices); err != nil {
			return cfg, err
		}
	}
	if flags.Changed("workers") {
		cfg.Workers = c.workers
	}
	if flags.Changed("ci") {
		cfg.CI = c.ci
	}
	if flags.Changed("retries") {
		retries := c.retries
		cfg.Retries = &retries
	}
	if flags.Changed("headed") {
		cfg.Browser.Headless = !c.headed
	}

	if _, err := report.ParseFormats(cfg.Reporters); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// rerunCommand returns a command line that runs only the failed scenario instances of r
// again, or "" if nothing failed.
func (c *commandParams) rerunCommand(program string, r scenariodef.Report) string {
	var failed []string
	for _, s := range r.Scenarios {
		if !s.OK() {
			failed = append(failed, s.Name())
		}
	}
	if len(failed) == 0 {
		return ""
	}

	var b commandBuilder
	b.add(program, "run")
	if c.configFile != "" {
		b.add("--config", c.configFile)
	}
	if c.baseURL != "" {
		b.add("--base-url", c.baseURL)
	}
	if c.target != "" {
		b.add("--target", c.target)
	}
	for _, d := range c.devices {
		b.add("--device", d)
	}
	for _, name := range failed {
		b.add("--run", "^"+regexp.QuoteMeta(name)+"$")
	}
	b.add("--debug")
	return b.String()
}

type commandBuilder []string

func (b *commandBuilder) add(args ...string) {
	for _, a := range args {
		*b = append(*b, shellescape.Quote(a))
	}
}

func (b commandBuilder) String() string {
	return strings.Join(b, " ")
}

func usageErrorf(format string, args ...interface{}) error {
	return usageError{fmt.Errorf(format, args...)}
}

// usageError marks problems with the command line or configuration, which exit with status 2.
type usageError struct{ err error }

func (u usageError) Error() string { return u.err.Error() }
func (u usageError) Unwrap() error { return u.err }
