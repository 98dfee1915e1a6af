package runner

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nookcoding/e2e-harness/framework"
	"github.com/nookcoding/e2e-harness/scenariodef"
	"github.com/nookcoding/e2e-harness/target"
)

// instance is one scenario run under one device profile.
type instance struct {
	scenario scenariodef.Scenario
	device   target.Device
}

func (i instance) id() framework.TestID {
	return framework.NewTestID(i.scenario.ID, i.device.Name)
}

// RunAll runs every scenario once per device, with up to Options.Workers instances in
// parallel. Each instance gets its own Target from factory, which is closed when the
// instance ends however it ends. Scenario results appear in the report in input order
// (scenario first, then device), regardless of completion order. Instances excluded by
// Options.Filter are reported to the TestLogger as skipped and left out of the report.
func (r *Runner) RunAll(
	ctx context.Context,
	name string,
	scenarios []scenariodef.Scenario,
	devices []target.Device,
	factory target.Factory,
) scenariodef.Report {
	if len(devices) == 0 {
		devices = []target.Device{target.DefaultDevice()}
	}
	report := scenariodef.Report{
		Name:      name,
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}

	var instances []instance
	for _, sc := range scenarios {
		for _, d := range devices {
			inst := instance{scenario: sc, device: d}
			if r.opts.Filter != nil && !r.opts.Filter(inst.id()) {
				r.opts.TestLogger.TestSkipped(inst.id(), "excluded by filter")
				continue
			}
			instances = append(instances, inst)
		}
	}

	// Each goroutine writes only its own slot.
	results := make([]scenariodef.ScenarioResult, len(instances))
	var g errgroup.Group
	g.SetLimit(r.opts.Workers)
	for i, inst := range instances {
		i, inst := i, inst
		g.Go(func() error {
			results[i] = r.runInstance(ctx, inst, factory)
			return nil
		})
	}
	_ = g.Wait()

	report.Scenarios = results
	report.FinishedAt = time.Now()
	report.Recount()
	return report.Freeze()
}

func (r *Runner) runInstance(ctx context.Context, inst instance, factory target.Factory) (result scenariodef.ScenarioResult) {
	started := time.Now()
	tg, err := openTarget(ctx, factory, inst.device)
	if err != nil {
		r.opts.TestLogger.TestError(inst.id(), err)
		return failedInstance(inst, started, fmt.Sprintf("could not open target: %s", err))
	}
	defer func() {
		if err := tg.Close(); err != nil && r.opts.Logger != nil {
			r.opts.Logger.Printf("closing target for %s: %s", inst.id(), err)
		}
	}()
	return r.RunScenario(ctx, inst.scenario, inst.device.Name, tg)
}

func openTarget(ctx context.Context, factory target.Factory, device target.Device) (tg target.Target, err error) {
	defer func() {
		if r := recover(); r != nil {
			tg = nil
			err = fmt.Errorf("unexpected panic opening target: %+v\n%s", r, string(debug.Stack()))
		}
	}()
	return factory(ctx, device)
}

// failedInstance records an instance that never got to run: its first step is an error
// and the rest are skipped, so the step count still matches the scenario.
func failedInstance(inst instance, started time.Time, reason string) scenariodef.ScenarioResult {
	result := scenariodef.ScenarioResult{
		ScenarioID:  inst.scenario.ID,
		Description: inst.scenario.Description,
		Device:      inst.device.Name,
		StartedAt:   started,
	}
	for i, step := range inst.scenario.Steps {
		res := skippedResult(step, i, "target could not be opened")
		if i == 0 {
			res.Outcome = scenariodef.OutcomeError
			res.Reason = reason
		}
		result.Results = append(result.Results, res)
		result.Summary.Add(res.Outcome)
	}
	result.Duration = time.Since(started)
	return result
}
