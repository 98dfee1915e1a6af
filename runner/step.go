package runner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/nookcoding/e2e-harness/assertion"
	"github.com/nookcoding/e2e-harness/framework"
	"github.com/nookcoding/e2e-harness/scenariodef"
	"github.com/nookcoding/e2e-harness/target"
)

// execution is the state of one scenario instance while its steps run.
type execution struct {
	opts     Options
	scenario scenariodef.Scenario
	device   string
	target   target.Target
	id       framework.TestID

	// last is the capture of the previous step if it was a navigate or request. An assert
	// step directly after a request evaluates the response instead of the page; any
	// interaction in between clears it.
	last     *scenariodef.Capture
	lastKind scenariodef.StepKind
}

func (ex *execution) runStep(ctx context.Context, i int, step scenariodef.Step) scenariodef.ExecutionResult {
	stepID := ex.id.Plus(step.StepName(i))
	ex.opts.TestLogger.TestStarted(stepID)
	logger := &framework.CapturingLogger{Forward: ex.opts.Logger}
	started := time.Now()

	result := scenariodef.ExecutionResult{
		StepID:   step.StepID(i),
		StepName: step.StepName(i),
		Kind:     step.Kind,
	}

	var capture *scenariodef.Capture
	var err error
	optionalMissing := false
	for {
		result.Attempts++
		capture, err = ex.attempt(ctx, step, logger)
		var notFound *framework.ElementNotFoundError
		if step.Optional && errors.As(err, &notFound) {
			logger.Printf("optional element %q did not appear, continuing", step.Selector)
			optionalMissing, err = true, nil
			break
		}
		if err == nil || result.Attempts > ex.opts.MaxRetries || !framework.IsTransient(err) || ctx.Err() != nil {
			break
		}
		logger.Printf("attempt %d failed, retrying: %s", result.Attempts, err)
	}
	result.Capture = capture

	if err == nil && len(step.Expect) > 0 {
		if result.Capture == nil {
			result.Capture, err = ex.snapshot(ctx, logger)
		}
		if err == nil {
			result.Assertions, err = assertion.EvaluateAll(result, step.Expect)
			for _, a := range result.Assertions {
				logger.Printf("expect %s: passed=%t %s", a.Expectation, a.Passed, a.Reason)
			}
		}
	}

	result.Outcome, result.Reason = classify(ctx, err)
	if optionalMissing && result.Outcome == scenariodef.OutcomePass {
		result.Reason = fmt.Sprintf("optional element %q was not found", step.Selector)
	}
	if ex.opts.ScreenshotDir != "" && (step.Screenshot || result.Failed()) {
		result.Screenshot = ex.screenshot(ctx, result.StepID, logger)
	}
	result.Duration = time.Since(started)
	result.DebugOutput = logger.Output()

	if err != nil {
		ex.opts.TestLogger.TestError(stepID, err)
	}
	ex.opts.TestLogger.TestFinished(stepID, result.Failed(), result.DebugOutput)
	return result
}

// attempt performs the step's action once. A panic in the target is turned into an error so
// that it is attributed to this step instead of ending the run.
func (ex *execution) attempt(ctx context.Context, step scenariodef.Step, logger framework.Logger) (capture *scenariodef.Capture, err error) {
	defer func() {
		if r := recover(); r != nil {
			capture = nil
			err = fmt.Errorf("unexpected panic in step: %+v\n%s", r, string(debug.Stack()))
		}
	}()
	return ex.perform(ctx, step, logger)
}

func (ex *execution) perform(ctx context.Context, step scenariodef.Step, logger framework.Logger) (*scenariodef.Capture, error) {
	elementOpts := target.ElementOptions{
		Timeout:  step.Timeout(ex.opts.ElementTimeout),
		Interval: ex.opts.PollInterval,
	}
	switch step.Kind {
	case scenariodef.StepNavigate:
		url := ex.scenario.ResolveURL(step.URL, ex.opts.BaseURL)
		logger.Printf("navigate to %s", url)
		capture, err := ex.target.Navigate(ctx, url, target.NavigateOptions{
			Timeout:    step.Timeout(ex.opts.NavigationTimeout),
			Quiescence: ex.opts.Quiescence,
		})
		if capture != nil {
			ex.last, ex.lastKind = capture, step.Kind
		}
		return capture, err

	case scenariodef.StepClick:
		ex.forgetCapture()
		logger.Printf("click %s", step.Selector)
		return nil, ex.target.Click(ctx, step.Selector, elementOpts)

	case scenariodef.StepFill:
		ex.forgetCapture()
		logger.Printf("fill %s", step.Selector)
		return nil, ex.target.Fill(ctx, step.Selector, step.Value, elementOpts)

	case scenariodef.StepWait:
		ex.forgetCapture()
		if step.Selector == "" {
			d := step.Timeout(0)
			logger.Printf("wait %s", d)
			return nil, sleep(ctx, d)
		}
		logger.Printf("wait for %s", step.Selector)
		return nil, ex.target.WaitFor(ctx, step.Selector, elementOpts)

	case scenariodef.StepRequest:
		req := ex.buildRequest(step)
		logger.Printf("%s %s", req.Method, req.URL)
		capture, err := ex.target.Request(ctx, req)
		if err != nil {
			return nil, err
		}
		logger.Printf("response status %d after %s", capture.Status, capture.Elapsed)
		ex.last, ex.lastKind = capture, step.Kind
		return capture, nil

	case scenariodef.StepAssert:
		return ex.snapshot(ctx, logger)

	default:
		return nil, fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

func (ex *execution) forgetCapture() {
	ex.last, ex.lastKind = nil, ""
}

func (ex *execution) buildRequest(step scenariodef.Step) target.Request {
	req := target.Request{
		Method:  strings.ToUpper(step.Method),
		URL:     ex.scenario.ResolveURL(step.URL, ex.opts.BaseURL),
		Headers: http.Header{},
		Timeout: step.Timeout(ex.opts.RequestTimeout),
	}
	for k, v := range step.Headers {
		req.Headers.Set(k, v)
	}
	switch {
	case step.Body.IsDefined() && !step.Body.IsNull():
		req.Body = []byte(step.Body.JSONString())
		if req.Headers.Get("Content-Type") == "" {
			req.Headers.Set("Content-Type", "application/json")
		}
	case step.Value != "":
		req.Body = []byte(step.Value)
	}
	if req.Method == "" {
		req.Method = http.MethodGet
		if req.Body != nil {
			req.Method = http.MethodPost
		}
	}
	return req
}

// snapshot returns what an assertion should look at: the last response if the previous
// capturing step was a request, otherwise the current page.
func (ex *execution) snapshot(ctx context.Context, logger framework.Logger) (*scenariodef.Capture, error) {
	if ex.lastKind == scenariodef.StepRequest && ex.last != nil {
		c := *ex.last
		return &c, nil
	}
	capture, err := ex.target.Snapshot(ctx)
	if err != nil {
		logger.Printf("snapshot failed: %s", err)
		return nil, fmt.Errorf("could not capture page state: %w", err)
	}
	return capture, nil
}

// screenshot saves a screenshot under <dir>/<scenario>/<device>/<step>.png and returns its
// path, or "" if the target cannot take one. It gets its own deadline so that steps which
// ran out of time still get a picture.
func (ex *execution) screenshot(ctx context.Context, stepID string, logger framework.Logger) string {
	dir := filepath.Join(ex.opts.ScreenshotDir, ex.scenario.ID)
	if ex.device != "" {
		dir = filepath.Join(dir, ex.device)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Printf("could not create screenshot directory: %s", err)
		return ""
	}
	path := filepath.Join(dir, stepID+screenshotFileExtension)
	shotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), screenshotTimeout)
	defer cancel()
	if err := ex.target.Screenshot(shotCtx, path); err != nil {
		if !errors.Is(err, target.ErrUnsupported) {
			logger.Printf("screenshot failed: %s", err)
		}
		return ""
	}
	logger.Printf("saved screenshot %s", path)
	return path
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
