// Package assertion evaluates declarative expectations against the state a step captured.
//
// Evaluation is pure: it reads only the ExecutionResult and the Expectation, so the same
// inputs always give the same outcome and reason. Nothing in this package talks to a
// browser or the network.
package assertion

import (
	"fmt"
	"unicode/utf8"

	"github.com/nookcoding/e2e-harness/dom"
	"github.com/nookcoding/e2e-harness/framework"
	"github.com/nookcoding/e2e-harness/scenariodef"
)

const maxQuotedText = 80

// Evaluate checks one expectation against a step result. Problems with the expectation
// itself, such as an invalid pattern, produce a failed outcome rather than a panic.
func Evaluate(result scenariodef.ExecutionResult, exp scenariodef.Expectation) scenariodef.AssertionOutcome {
	return newEvaluation(result.Capture).evaluate(exp)
}

// EvaluateAll checks every expectation against the same result. The returned error is an
// *framework.AssertionFailure listing the reasons of the failed outcomes, or nil if all
// passed.
func EvaluateAll(result scenariodef.ExecutionResult, exps []scenariodef.Expectation) ([]scenariodef.AssertionOutcome, error) {
	if len(exps) == 0 {
		return nil, nil
	}
	ev := newEvaluation(result.Capture)
	outcomes := make([]scenariodef.AssertionOutcome, 0, len(exps))
	var failure framework.AssertionFailure
	for _, e := range exps {
		o := ev.evaluate(e)
		outcomes = append(outcomes, o)
		if !o.Passed {
			failure.Reasons = append(failure.Reasons, o.Reason)
		}
	}
	if len(failure.Reasons) > 0 {
		return outcomes, &failure
	}
	return outcomes, nil
}

// evaluation holds one capture and the lazily parsed views of it.
type evaluation struct {
	capture  *scenariodef.Capture
	snapshot *dom.Snapshot
	snapErr  error
	parsed   bool
}

func newEvaluation(c *scenariodef.Capture) *evaluation {
	return &evaluation{capture: c}
}

func (ev *evaluation) document() (*dom.Snapshot, error) {
	if !ev.parsed {
		ev.parsed = true
		if !ev.capture.HasDOM() {
			ev.snapErr = fmt.Errorf("no DOM snapshot was captured")
		} else {
			ev.snapshot, ev.snapErr = dom.Parse(ev.capture.DOM)
		}
	}
	return ev.snapshot, ev.snapErr
}

func (ev *evaluation) evaluate(exp scenariodef.Expectation) scenariodef.AssertionOutcome {
	desc := exp.String()
	if err := exp.Validate(); err != nil {
		return fail(desc, "invalid expectation: %s", err)
	}
	if ev.capture == nil {
		return fail(desc, "no capture was recorded for this step")
	}
	var passed bool
	var reason string
	switch exp.Kind {
	case scenariodef.ExpectStatusEquals:
		passed, reason = ev.statusEquals(exp)
	case scenariodef.ExpectTextMatches:
		passed, reason = ev.textMatches(exp)
	case scenariodef.ExpectElementVisible:
		passed, reason = ev.elementVisible(exp)
	case scenariodef.ExpectElementHasClass:
		passed, reason = ev.elementHasClass(exp)
	case scenariodef.ExpectAttributeWithinBound:
		passed, reason = ev.attributeWithinBound(exp)
	case scenariodef.ExpectCountEquals:
		passed, reason = ev.countEquals(exp)
	case scenariodef.ExpectJSONPathEquals:
		passed, reason = ev.jsonPathEquals(exp)
	case scenariodef.ExpectNoConsoleErrors:
		passed, reason = ev.noConsoleErrors(exp)
	case scenariodef.ExpectPixelAlpha:
		passed, reason = ev.pixelAlpha(exp)
	}
	return scenariodef.AssertionOutcome{Expectation: desc, Passed: passed, Reason: reason}
}

func (ev *evaluation) statusEquals(exp scenariodef.Expectation) (bool, string) {
	got := ev.capture.Status
	if got == 0 {
		return false, fmt.Sprintf("expected status %d, but no response status was captured", exp.Code)
	}
	if got != exp.Code {
		return false, fmt.Sprintf("expected status %d, received %d", exp.Code, got)
	}
	return true, fmt.Sprintf("status is %d", got)
}

func fail(desc, format string, args ...interface{}) scenariodef.AssertionOutcome {
	return scenariodef.AssertionOutcome{Expectation: desc, Reason: fmt.Sprintf(format, args...)}
}

func quoteText(s string) string {
	return fmt.Sprintf("%q", truncate(s))
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) > maxQuotedText {
		return string([]rune(s)[:maxQuotedText]) + "..."
	}
	return s
}
