// Package runner executes scenarios step by step against a target and records what each
// step did as an ExecutionResult.
//
// Steps of one scenario instance always run in order on one goroutine. Parallelism only
// exists across instances (see RunAll), and every instance has its own Target.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nookcoding/e2e-harness/framework"
	"github.com/nookcoding/e2e-harness/scenariodef"
	"github.com/nookcoding/e2e-harness/target"
)

type Runner struct {
	opts Options
}

func New(opts Options) *Runner {
	return &Runner{opts: opts.withDefaults()}
}

// Run executes one scenario against tg and returns a frozen single-scenario report. The
// caller still owns tg and must close it.
func (r *Runner) Run(ctx context.Context, sc scenariodef.Scenario, tg target.Target) scenariodef.Report {
	started := time.Now()
	result := r.RunScenario(ctx, sc, "", tg)
	report := scenariodef.Report{
		Name:       sc.ID,
		RunID:      uuid.NewString(),
		StartedAt:  started,
		FinishedAt: time.Now(),
		Scenarios:  []scenariodef.ScenarioResult{result},
	}
	report.Recount()
	return report.Freeze()
}

// RunScenario executes the steps of sc in order. It always returns one ExecutionResult per
// step: steps after a critical failure, or after the run deadline, are marked skipped.
func (r *Runner) RunScenario(ctx context.Context, sc scenariodef.Scenario, device string, tg target.Target) scenariodef.ScenarioResult {
	id := framework.NewTestID(sc.ID)
	if device != "" {
		id = id.Plus(device)
	}
	runCtx := ctx
	if r.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.opts.RunTimeout)
		defer cancel()
	}

	result := scenariodef.ScenarioResult{
		ScenarioID:  sc.ID,
		Description: sc.Description,
		Device:      device,
		StartedAt:   time.Now(),
		Results:     make([]scenariodef.ExecutionResult, 0, len(sc.Steps)),
	}
	ex := &execution{
		opts:     r.opts,
		scenario: sc,
		device:   device,
		target:   tg,
		id:       id,
	}

	haltReason := ""
	for i, step := range sc.Steps {
		if haltReason == "" && runCtx.Err() != nil {
			haltReason = stoppedReason(runCtx)
		}
		if haltReason != "" {
			r.opts.TestLogger.TestSkipped(id.Plus(step.StepName(i)), haltReason)
			result.Results = append(result.Results, skippedResult(step, i, haltReason))
			continue
		}

		res := ex.runStep(runCtx, i, step)
		result.Results = append(result.Results, res)

		switch {
		case runCtx.Err() != nil:
			haltReason = stoppedReason(runCtx)
		case step.Critical && res.Outcome != scenariodef.OutcomePass:
			haltReason = fmt.Sprintf("critical step %q did not pass", res.StepName)
		}
	}

	result.Duration = time.Since(result.StartedAt)
	for _, res := range result.Results {
		result.Summary.Add(res.Outcome)
	}
	return result
}

func skippedResult(step scenariodef.Step, i int, reason string) scenariodef.ExecutionResult {
	return scenariodef.ExecutionResult{
		StepID:   step.StepID(i),
		StepName: step.StepName(i),
		Kind:     step.Kind,
		Outcome:  scenariodef.OutcomeSkipped,
		Reason:   reason,
	}
}

func stoppedReason(ctx context.Context) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "run deadline exceeded"
	}
	return "run was cancelled"
}

// classify maps the error a step ended with to its outcome. runCtx is the scenario's run
// context, whose expiry turns whatever the step was doing into a timeout.
func classify(runCtx context.Context, err error) (scenariodef.Outcome, string) {
	if err == nil {
		return scenariodef.OutcomePass, ""
	}
	if runCtx.Err() != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return scenariodef.OutcomeTimeout, fmt.Sprintf("run deadline exceeded while step was in progress: %s", err)
		}
		return scenariodef.OutcomeError, fmt.Sprintf("run was cancelled: %s", err)
	}
	var timeout *framework.TimeoutError
	switch {
	case framework.IsFailure(err):
		return scenariodef.OutcomeFail, err.Error()
	case errors.As(err, &timeout):
		return scenariodef.OutcomeTimeout, err.Error()
	default:
		return scenariodef.OutcomeError, err.Error()
	}
}
