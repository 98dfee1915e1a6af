package scenariodef

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

type StepKind string

const (
	StepNavigate StepKind = "navigate"
	StepClick    StepKind = "click"
	StepFill     StepKind = "fill"
	StepRequest  StepKind = "request"
	StepWait     StepKind = "wait"
	StepAssert   StepKind = "assert"
)

// Scenario is an ordered, named sequence of steps exercising a target. Scenarios are
// treated as immutable once loaded.
type Scenario struct {
	ID          string   `json:"id"`
	Description string   `json:"description,omitempty"`
	BaseURL     string   `json:"baseUrl,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Steps       []Step   `json:"steps"`
}

// Step is a single navigation, interaction, request or assertion unit.
//
// Selectors are CSS selectors, optionally followed by a Playwright-style text filter such
// as `button:has-text("다음")`.
type Step struct {
	Name     string            `json:"name,omitempty"`
	Kind     StepKind          `json:"kind"`
	URL      string            `json:"url,omitempty"`
	Selector string            `json:"selector,omitempty"`
	Value    string            `json:"value,omitempty"`
	Method   string            `json:"method,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Body     ldvalue.Value     `json:"body,omitempty"`

	// TimeoutMS overrides the navigation or element timeout for this step. For a wait step
	// without a selector it is the time to sleep.
	TimeoutMS ldvalue.OptionalInt `json:"timeoutMs,omitempty"`

	Expect []Expectation `json:"expect,omitempty"`

	// Critical steps halt the scenario when they do not pass.
	Critical bool `json:"critical,omitempty"`

	// Optional click/fill steps pass when their element never appears.
	Optional bool `json:"optional,omitempty"`

	Screenshot bool `json:"screenshot,omitempty"`
}

// StepName returns the display name of the step at index i.
func (s Step) StepName(i int) string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("%d %s", i+1, s.Kind)
}

// StepID returns a stable identifier for the step at index i, unique within its scenario.
func (s Step) StepID(i int) string {
	return fmt.Sprintf("%02d-%s", i+1, s.Kind)
}

// Timeout returns TimeoutMS as a duration, or def if it is not set.
func (s Step) Timeout(def time.Duration) time.Duration {
	if s.TimeoutMS.IsDefined() {
		return time.Duration(s.TimeoutMS.IntValue()) * time.Millisecond
	}
	return def
}

func (s Scenario) Validate() error {
	if s.ID == "" {
		return errors.New("scenario has no id")
	}
	if err := ValidateName(s.ID); err != nil {
		return fmt.Errorf("scenario id: %w", err)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario %q has no steps", s.ID)
	}
	for i, step := range s.Steps {
		if err := step.validate(); err != nil {
			return fmt.Errorf("scenario %q step %q: %w", s.ID, step.StepName(i), err)
		}
	}
	return nil
}

// ValidateName checks a scenario id or device name. Names become one path segment of
// screenshot paths and of "scenario/device" instance names, so they cannot contain
// separators or be a relative path element.
func ValidateName(name string) error {
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%q must not contain a path separator", name)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("%q is not a valid name", name)
	}
	return nil
}

func (s Step) validate() error {
	switch s.Kind {
	case StepNavigate:
		if s.URL == "" {
			return errors.New("navigate requires url")
		}
	case StepClick:
		if s.Selector == "" {
			return errors.New("click requires selector")
		}
	case StepFill:
		if s.Selector == "" {
			return errors.New("fill requires selector")
		}
	case StepRequest:
		if s.URL == "" {
			return errors.New("request requires url")
		}
	case StepWait:
		if s.Selector == "" && !s.TimeoutMS.IsDefined() {
			return errors.New("wait requires selector or timeoutMs")
		}
	case StepAssert:
		if len(s.Expect) == 0 {
			return errors.New("assert requires at least one expectation")
		}
	default:
		return fmt.Errorf("unknown step kind %q", s.Kind)
	}
	if s.TimeoutMS.IsDefined() && s.TimeoutMS.IntValue() < 0 {
		return errors.New("timeoutMs must not be negative")
	}
	for _, e := range s.Expect {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ResolveURL resolves ref against the scenario base URL, falling back to defaultBase when the
// scenario does not declare one. Absolute refs are returned unchanged.
func (s Scenario) ResolveURL(ref, defaultBase string) string {
	base := s.BaseURL
	if base == "" {
		base = defaultBase
	}
	return ResolveURL(base, ref)
}

// ResolveURL resolves ref against base the way a browser does: "/story.html" replaces the
// base path, "story.html" is relative to the base's last directory. Absolute refs, or an
// empty base, leave ref unchanged.
func ResolveURL(base, ref string) string {
	if base == "" {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil || r.IsAbs() {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
