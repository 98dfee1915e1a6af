package scenariodef

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Duration is a time.Duration that is written as a Go duration string ("30s") and can be
// read from either a string or a number of milliseconds.
type Duration time.Duration

func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case nil:
		*d = 0
	case float64:
		*d = Duration(time.Duration(value * float64(time.Millisecond)))
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %s", string(data))
	}
	return nil
}

// Stage is one segment of a ramp profile: over Duration, the number of virtual users moves
// linearly from the previous stage's target to Target.
type Stage struct {
	Duration Duration `json:"duration"`
	Target   int      `json:"target"`
}

type LoadProfile struct {
	Stages []Stage `json:"stages"`
}

func NewLoadProfile(stages ...Stage) LoadProfile {
	return LoadProfile{Stages: stages}
}

func (p LoadProfile) Validate() error {
	if len(p.Stages) == 0 {
		return errors.New("load profile has no stages")
	}
	for i, s := range p.Stages {
		if s.Duration <= 0 {
			return fmt.Errorf("stage %d: duration must be positive", i+1)
		}
		if s.Target < 0 {
			return fmt.Errorf("stage %d: target concurrency must not be negative", i+1)
		}
	}
	return nil
}

func (p LoadProfile) TotalDuration() time.Duration {
	var total time.Duration
	for _, s := range p.Stages {
		total += s.Duration.D()
	}
	return total
}

func (p LoadProfile) PeakTarget() int {
	peak := 0
	for _, s := range p.Stages {
		if s.Target > peak {
			peak = s.Target
		}
	}
	return peak
}

// RequestDef describes one request a virtual user may issue.
type RequestDef struct {
	Name    string            `json:"name,omitempty"`
	Method  string            `json:"method,omitempty"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    ldvalue.Value     `json:"body,omitempty"`
}

// LoadPlan is the file form of a load run: the profile plus request templates and policy.
type LoadPlan struct {
	Name    string       `json:"name"`
	BaseURL string       `json:"baseUrl,omitempty"`
	Stages  []Stage      `json:"stages"`
	Request []RequestDef `json:"requests"`

	ThinkTime      Duration `json:"thinkTime,omitempty"`
	RequestTimeout Duration `json:"requestTimeout,omitempty"`
	LatencyBudget  Duration `json:"latencyBudget,omitempty"`
	MaxDuration    Duration `json:"maxDuration,omitempty"`

	// MaxViolationRatio, if positive, is the largest share of requests that may exceed
	// LatencyBudget.
	MaxViolationRatio float64 `json:"maxViolationRatio,omitempty"`

	// Thresholds are expressions such as "p95<500" or "error_rate<0.05"; latencies are in
	// milliseconds.
	Thresholds []string `json:"thresholds,omitempty"`

	// Policy is "gate" (threshold failures fail the run) or "advisory".
	Policy string `json:"policy,omitempty"`

	// Checks are evaluated against every response, like k6 checks.
	Checks []Expectation `json:"checks,omitempty"`
}

func (p LoadPlan) Profile() LoadProfile {
	return LoadProfile{Stages: p.Stages}
}

func (p LoadPlan) Validate() error {
	if err := p.Profile().Validate(); err != nil {
		return fmt.Errorf("load plan %q: %w", p.Name, err)
	}
	if len(p.Request) == 0 {
		return fmt.Errorf("load plan %q has no requests", p.Name)
	}
	for _, r := range p.Request {
		if r.URL == "" {
			return fmt.Errorf("load plan %q has a request without url", p.Name)
		}
	}
	if p.MaxViolationRatio < 0 || p.MaxViolationRatio > 1 {
		return fmt.Errorf("load plan %q: maxViolationRatio must be between 0 and 1", p.Name)
	}
	if p.MaxViolationRatio > 0 && p.LatencyBudget <= 0 {
		return fmt.Errorf("load plan %q: maxViolationRatio requires latencyBudget", p.Name)
	}
	switch p.Policy {
	case "", "gate", "advisory":
	default:
		return fmt.Errorf("load plan %q has unknown policy %q", p.Name, p.Policy)
	}
	for _, c := range p.Checks {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("load plan %q: %w", p.Name, err)
		}
	}
	return nil
}

type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseRampUp   Phase = "ramp-up"
	PhaseHold     Phase = "hold"
	PhaseRampDown Phase = "ramp-down"
)

// LoadSample is one observation of the scheduling loop.
type LoadSample struct {
	Offset Duration `json:"offset"`
	Stage  int      `json:"stage"`
	Phase  Phase    `json:"phase"`
	Target int      `json:"target"`
	Active int      `json:"active"`
}

type LatencyStats struct {
	Min  Duration `json:"min"`
	Max  Duration `json:"max"`
	Mean Duration `json:"mean"`
	P50  Duration `json:"p50"`
	P90  Duration `json:"p90"`
	P95  Duration `json:"p95"`
	P99  Duration `json:"p99"`
}

type EndpointStats struct {
	Name     string       `json:"name"`
	Requests int          `json:"requests"`
	Failed   int          `json:"failed"`
	Latency  LatencyStats `json:"latency"`
}

type ThresholdResult struct {
	Expression string  `json:"expression"`
	Observed   float64 `json:"observed"`
	Passed     bool    `json:"passed"`
}

// LoadReport summarises one load generator run.
type LoadReport struct {
	Name      string    `json:"name"`
	StartedAt time.Time `json:"startedAt"`
	Duration  Duration  `json:"duration"`
	Completed bool      `json:"completed"`
	Reason    string    `json:"reason,omitempty"`
	Policy    string    `json:"policy"`
	Passed    bool      `json:"passed"`

	Requests         int         `json:"requests"`
	Failed           int         `json:"failed"`
	ConnectionErrors int         `json:"connectionErrors"`
	Retries          int         `json:"retries"`
	Violations       int         `json:"violations"`
	ChecksPassed     int         `json:"checksPassed"`
	ChecksFailed     int         `json:"checksFailed"`
	PeakUsers        int         `json:"peakUsers"`
	StatusCodes      map[int]int `json:"statusCodes"`

	Latency    LatencyStats      `json:"latency"`
	Endpoints  []EndpointStats   `json:"endpoints,omitempty"`
	Thresholds []ThresholdResult `json:"thresholds,omitempty"`
	Samples    []LoadSample      `json:"samples,omitempty"`
}

func (l LoadReport) ErrorRate() float64 {
	if l.Requests == 0 {
		return 0
	}
	return float64(l.Failed) / float64(l.Requests)
}

func (l LoadReport) ViolationRate() float64 {
	if l.Requests == 0 {
		return 0
	}
	return float64(l.Violations) / float64(l.Requests)
}

func (l LoadReport) clone() LoadReport {
	out := l
	out.StatusCodes = make(map[int]int, len(l.StatusCodes))
	for k, v := range l.StatusCodes {
		out.StatusCodes[k] = v
	}
	out.Endpoints = append([]EndpointStats(nil), l.Endpoints...)
	out.Thresholds = append([]ThresholdResult(nil), l.Thresholds...)
	out.Samples = append([]LoadSample(nil), l.Samples...)
	return out
}
