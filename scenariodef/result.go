package scenariodef

import (
	"net/http"
	"time"

	"github.com/nookcoding/e2e-harness/framework"
)

type Outcome string

const (
	OutcomePass    Outcome = "pass"
	OutcomeFail    Outcome = "fail"
	OutcomeError   Outcome = "error"
	OutcomeSkipped Outcome = "skipped"
	OutcomeTimeout Outcome = "timeout"
)

// ConsoleEvent is a browser console message or uncaught page exception.
type ConsoleEvent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (c ConsoleEvent) IsError() bool {
	return c.Type == "error" || c.Type == "exception"
}

// NetworkEvent is a response (or failed request) observed while a page was loading.
type NetworkEvent struct {
	URL          string `json:"url"`
	Method       string `json:"method,omitempty"`
	ResourceType string `json:"resourceType,omitempty"`
	Status       int    `json:"status,omitempty"`
	Failed       bool   `json:"failed,omitempty"`
	ErrorText    string `json:"errorText,omitempty"`
}

// Capture is the observable state recorded by one step: the HTTP response for request
// steps, or the page state for browser steps.
type Capture struct {
	URL     string         `json:"url,omitempty"`
	Status  int            `json:"status,omitempty"`
	Headers http.Header    `json:"headers,omitempty"`
	Body    []byte         `json:"-"`
	Title   string         `json:"title,omitempty"`
	Text    string         `json:"-"`
	DOM     string         `json:"-"`
	Console []ConsoleEvent `json:"console,omitempty"`
	Network []NetworkEvent `json:"network,omitempty"`
	Elapsed time.Duration  `json:"elapsed"`
}

// HasDOM reports whether the capture contains an HTML snapshot that selectors can be
// evaluated against.
func (c *Capture) HasDOM() bool {
	return c != nil && c.DOM != ""
}

type AssertionOutcome struct {
	Expectation string `json:"expectation"`
	Passed      bool   `json:"passed"`
	Reason      string `json:"reason"`
}

// ExecutionResult is created once per step execution and not modified afterward.
type ExecutionResult struct {
	StepID      string                   `json:"stepId"`
	StepName    string                   `json:"stepName"`
	Kind        StepKind                 `json:"kind"`
	Outcome     Outcome                  `json:"outcome"`
	Reason      string                   `json:"reason,omitempty"`
	Capture     *Capture                 `json:"capture,omitempty"`
	Screenshot  string                   `json:"screenshot,omitempty"`
	Attempts    int                      `json:"attempts"`
	Duration    time.Duration            `json:"duration"`
	Assertions  []AssertionOutcome       `json:"assertions,omitempty"`
	DebugOutput framework.CapturedOutput `json:"debugOutput,omitempty"`
}

func (r ExecutionResult) Failed() bool {
	return r.Outcome == OutcomeFail || r.Outcome == OutcomeError || r.Outcome == OutcomeTimeout
}
