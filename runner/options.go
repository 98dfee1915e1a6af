package runner

import (
	"time"

	"github.com/nookcoding/e2e-harness/framework"
	"github.com/nookcoding/e2e-harness/target"
)

const (
	defaultMaxRetries       = 1
	defaultWorkers          = 1
	screenshotTimeout       = 10 * time.Second
	screenshotFileExtension = ".png"
)

// Options control how scenarios are executed. The zero value runs scenarios one at a time
// with default timeouts and no retries.
type Options struct {
	// BaseURL is used for relative step URLs when a scenario has no base URL of its own.
	BaseURL string

	NavigationTimeout time.Duration
	Quiescence        time.Duration
	ElementTimeout    time.Duration
	PollInterval      time.Duration
	RequestTimeout    time.Duration

	// RunTimeout bounds one scenario instance. The step in flight when it expires is
	// recorded as a timeout and the remaining steps as skipped.
	RunTimeout time.Duration

	// RetryTransient enables retrying steps that fail with a navigation, element-lookup or
	// connection error, up to MaxRetries extra attempts. It is normally only on in CI.
	RetryTransient bool
	MaxRetries     int

	// ScreenshotDir enables screenshots: for failed steps, and for steps that ask for one.
	ScreenshotDir string

	Workers int
	Filter  framework.Filter

	// Logger receives every step's debug output as it happens, in addition to the copy kept
	// in the step result.
	Logger     framework.Logger
	TestLogger framework.TestLogger
}

func (o Options) withDefaults() Options {
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = target.DefaultNavigationTimeout
	}
	if o.Quiescence <= 0 {
		o.Quiescence = target.DefaultQuiescence
	}
	if o.ElementTimeout <= 0 {
		o.ElementTimeout = target.DefaultElementTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = target.DefaultPollInterval
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = target.DefaultRequestTimeout
	}
	if o.RetryTransient && o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if !o.RetryTransient {
		o.MaxRetries = 0
	}
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	if o.TestLogger == nil {
		o.TestLogger = framework.NullTestLogger()
	}
	return o
}
