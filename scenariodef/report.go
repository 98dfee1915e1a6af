package scenariodef

import (
	"net/http"
	"time"
)

type Summary struct {
	Total    int `json:"total"`
	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
	Errored  int `json:"errored"`
	Skipped  int `json:"skipped"`
	TimedOut int `json:"timedOut"`
}

func (s *Summary) Add(o Outcome) {
	s.Total++
	switch o {
	case OutcomePass:
		s.Passed++
	case OutcomeFail:
		s.Failed++
	case OutcomeError:
		s.Errored++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeTimeout:
		s.TimedOut++
	}
}

func (s *Summary) Merge(o Summary) {
	s.Total += o.Total
	s.Passed += o.Passed
	s.Failed += o.Failed
	s.Errored += o.Errored
	s.Skipped += o.Skipped
	s.TimedOut += o.TimedOut
}

func (s Summary) OK() bool {
	return s.Failed == 0 && s.Errored == 0 && s.TimedOut == 0
}

// ScenarioResult holds the ordered step results of one scenario instance.
type ScenarioResult struct {
	ScenarioID  string            `json:"scenarioId"`
	Description string            `json:"description,omitempty"`
	Device      string            `json:"device,omitempty"`
	StartedAt   time.Time         `json:"startedAt"`
	Duration    time.Duration     `json:"duration"`
	Results     []ExecutionResult `json:"results"`
	Summary     Summary           `json:"summary"`
}

// Name is the instance name used in reports and filters, e.g. "story-page/mobile".
func (s ScenarioResult) Name() string {
	if s.Device == "" {
		return s.ScenarioID
	}
	return s.ScenarioID + "/" + s.Device
}

func (s ScenarioResult) OK() bool {
	return s.Summary.OK()
}

// Report aggregates the results of a run. It is built by exactly one owner (a runner or
// load generator) and handed to the reporting sink only after Freeze.
type Report struct {
	Name       string           `json:"name"`
	RunID      string           `json:"runId"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt"`
	Scenarios  []ScenarioResult `json:"scenarios,omitempty"`
	Load       []LoadReport     `json:"load,omitempty"`
	Summary    Summary          `json:"summary"`
}

func (r Report) OK() bool {
	if !r.Summary.OK() {
		return false
	}
	for _, l := range r.Load {
		if !l.Passed {
			return false
		}
	}
	return true
}

// Recount recomputes every summary from the step results.
func (r *Report) Recount() {
	r.Summary = Summary{}
	for i := range r.Scenarios {
		s := &r.Scenarios[i]
		s.Summary = Summary{}
		for _, res := range s.Results {
			s.Summary.Add(res.Outcome)
		}
		r.Summary.Merge(s.Summary)
	}
}

// Merge appends the scenario and load results of other reports, keeping their order.
func (r *Report) Merge(others ...Report) {
	for _, o := range others {
		r.Scenarios = append(r.Scenarios, o.Scenarios...)
		r.Load = append(r.Load, o.Load...)
		if r.StartedAt.IsZero() || (!o.StartedAt.IsZero() && o.StartedAt.Before(r.StartedAt)) {
			r.StartedAt = o.StartedAt
		}
		if o.FinishedAt.After(r.FinishedAt) {
			r.FinishedAt = o.FinishedAt
		}
	}
	r.Recount()
}

// Freeze returns a deep copy of r that shares no mutable state with it.
func (r Report) Freeze() Report {
	out := r
	out.Scenarios = make([]ScenarioResult, len(r.Scenarios))
	for i, s := range r.Scenarios {
		s.Results = copyResults(s.Results)
		out.Scenarios[i] = s
	}
	out.Load = make([]LoadReport, len(r.Load))
	for i, l := range r.Load {
		out.Load[i] = l.clone()
	}
	return out
}

func copyResults(in []ExecutionResult) []ExecutionResult {
	if in == nil {
		return nil
	}
	out := make([]ExecutionResult, len(in))
	for i, res := range in {
		res.Capture = res.Capture.clone()
		res.Assertions = append([]AssertionOutcome(nil), res.Assertions...)
		res.DebugOutput = append(res.DebugOutput[:0:0], res.DebugOutput...)
		out[i] = res
	}
	return out
}

func (c *Capture) clone() *Capture {
	if c == nil {
		return nil
	}
	out := *c
	if c.Headers != nil {
		out.Headers = http.Header(c.Headers).Clone()
	}
	out.Body = append([]byte(nil), c.Body...)
	out.Console = append([]ConsoleEvent(nil), c.Console...)
	out.Network = append([]NetworkEvent(nil), c.Network...)
	return &out
}
