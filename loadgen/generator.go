package loadgen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nookcoding/e2e-harness/assertion"
	"github.com/nookcoding/e2e-harness/framework"
	"github.com/nookcoding/e2e-harness/scenariodef"
	"github.com/nookcoding/e2e-harness/target"
	"github.com/nookcoding/e2e-harness/target/httptarget"
)

const (
	DefaultSampleInterval = 100 * time.Millisecond
	DefaultThinkTime      = time.Second

	resultsBuffer = 128
)

// Request is one request a virtual user sends. Name groups requests in the per-endpoint
// breakdown; it defaults to "METHOD URL".
type Request struct {
	Name string
	target.Request
}

func (r Request) endpoint() string {
	if r.Name != "" {
		return r.Name
	}
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	return method + " " + r.URL
}

// RequestFactory produces the next request for a virtual user. It is called concurrently
// from all users.
type RequestFactory func() Request

type Options struct {
	// ThinkTime is the pause each virtual user takes between requests. Zero means
	// DefaultThinkTime; a negative value disables the pause.
	ThinkTime      time.Duration
	RequestTimeout time.Duration

	// LatencyBudget is the latency above which a request counts as a violation.
	LatencyBudget time.Duration
	// MaxViolationRatio, if positive, adds the threshold "violation_rate<=MaxViolationRatio".
	MaxViolationRatio float64

	// MaxDuration caps the whole run. A profile longer than this is cut short.
	MaxDuration    time.Duration
	SampleInterval time.Duration

	Thresholds []string
	Policy     Policy

	// Checks are evaluated against every response.
	Checks []scenariodef.Expectation

	Client *http.Client
	Logger framework.Logger
}

type Generator struct {
	opts       Options
	thresholds []Threshold
}

func New(opts Options) (*Generator, error) {
	if opts.ThinkTime == 0 {
		opts.ThinkTime = DefaultThinkTime
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = target.DefaultRequestTimeout
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = DefaultSampleInterval
	}
	if opts.Policy == "" {
		opts.Policy = PolicyGate
	}
	if opts.Logger == nil {
		opts.Logger = framework.NullLogger()
	}
	for _, c := range opts.Checks {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("invalid check: %w", err)
		}
	}
	thresholds, err := ParseThresholds(opts.Thresholds)
	if err != nil {
		return nil, err
	}
	if opts.MaxViolationRatio < 0 || opts.MaxViolationRatio > 1 {
		return nil, fmt.Errorf("max violation ratio %g is not between 0 and 1", opts.MaxViolationRatio)
	}
	if opts.MaxViolationRatio > 0 {
		thresholds = append(thresholds, Threshold{
			Expression: fmt.Sprintf("violation_rate<=%g", opts.MaxViolationRatio),
			Metric:     "violation_rate",
			Op:         "<=",
			Value:      opts.MaxViolationRatio,
		})
	}
	return &Generator{opts: opts, thresholds: thresholds}, nil
}

// vuser is a running virtual user.
type vuser struct {
	cancel context.CancelFunc
}

// Run executes the profile and returns its report. The run ends when every stage has
// completed, when MaxDuration expires, or when ctx is cancelled; in the last two cases the
// report is marked incomplete. An error is only returned for an invalid profile.
func (g *Generator) Run(ctx context.Context, name string, profile scenariodef.LoadProfile, factory RequestFactory) (scenariodef.LoadReport, error) {
	if err := profile.Validate(); err != nil {
		return scenariodef.LoadReport{}, err
	}
	if factory == nil {
		return scenariodef.LoadReport{}, errors.New("no request factory")
	}

	client, ownClient := g.opts.Client, false
	if client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.MaxIdleConnsPerHost = max(profile.PeakTarget(), 2)
		client, ownClient = &http.Client{Transport: transport}, true
	}
	if ownClient {
		defer client.CloseIdleConnections()
	}

	budget := profile.TotalDuration()
	truncated := false
	if g.opts.MaxDuration > 0 && g.opts.MaxDuration < budget {
		budget, truncated = g.opts.MaxDuration, true
	}

	report := scenariodef.LoadReport{
		Name:      name,
		StartedAt: time.Now(),
		Policy:    string(g.opts.Policy),
	}
	agg := newAggregator(&report, g.opts.LatencyBudget)

	userCtx, cancelUsers := context.WithCancel(ctx)
	defer cancelUsers()
	results := make(chan requestResult, resultsBuffer)
	var wg sync.WaitGroup
	var users []vuser
	lastStage, lastPhase := -1, scenariodef.PhaseIdle

	adjust := func(elapsed time.Duration) {
		want, stage, phase := TargetAt(profile, elapsed)
		if stage != lastStage || phase != lastPhase {
			g.opts.Logger.Printf("load %s: stage %d (%s), target %d users", name, stage+1, phase, profile.Stages[min(stage, len(profile.Stages)-1)].Target)
			lastStage, lastPhase = stage, phase
		}
		for len(users) < want {
			uctx, cancel := context.WithCancel(userCtx)
			users = append(users, vuser{cancel: cancel})
			wg.Add(1)
			go func() {
				defer wg.Done()
				g.runUser(uctx, client, factory, results)
			}()
		}
		for len(users) > want {
			last := len(users) - 1
			users[last].cancel()
			users = users[:last]
		}
		report.PeakUsers = max(report.PeakUsers, len(users))
		report.Samples = append(report.Samples, scenariodef.LoadSample{
			Offset: scenariodef.Duration(elapsed),
			Stage:  stage,
			Phase:  phase,
			Target: want,
			Active: len(users),
		})
	}

	start := report.StartedAt
	ticker := time.NewTicker(g.opts.SampleInterval)
	defer ticker.Stop()
	adjust(0)

loop:
	for {
		select {
		case r := <-results:
			agg.add(r)
		case <-ticker.C:
			elapsed := time.Since(start)
			if elapsed >= budget {
				break loop
			}
			adjust(elapsed)
		case <-ctx.Done():
			break loop
		}
	}

	for _, u := range users {
		u.cancel()
	}
	cancelUsers()
	go func() {
		wg.Wait()
		close(results)
	}()
	for r := range results {
		agg.add(r)
	}
	agg.finish()

	report.Duration = scenariodef.Duration(time.Since(start))
	switch {
	case ctx.Err() != nil:
		report.Reason = fmt.Sprintf("load run was cancelled: %s", ctx.Err())
	case truncated:
		report.Reason = (&framework.TimeoutError{Operation: "load profile", After: budget}).Error()
	default:
		report.Completed = true
		_, stage, phase := TargetAt(profile, profile.TotalDuration())
		report.Samples = append(report.Samples, scenariodef.LoadSample{
			Offset: report.Duration,
			Stage:  stage,
			Phase:  phase,
		})
	}

	report.Thresholds = make([]scenariodef.ThresholdResult, 0, len(g.thresholds))
	thresholdsOK := true
	for _, t := range g.thresholds {
		res := t.Evaluate(report)
		thresholdsOK = thresholdsOK && res.Passed
		report.Thresholds = append(report.Thresholds, res)
	}
	switch {
	case ctx.Err() != nil:
		report.Passed = false
	case g.opts.Policy == PolicyAdvisory:
		report.Passed = true
	default:
		report.Passed = report.Completed && thresholdsOK
	}
	g.opts.Logger.Printf("load %s: %d requests, %d failed, p95 %s", name, report.Requests, report.Failed, report.Latency.P95.D())
	return report, nil
}

func (g *Generator) runUser(ctx context.Context, client *http.Client, factory RequestFactory, results chan<- requestResult) {
	for ctx.Err() == nil {
		r := g.send(ctx, client, factory())
		if ctx.Err() != nil && r.err != nil && errors.Is(r.err, ctx.Err()) {
			// Stopped by ramp-down or the end of the run; not a failed request.
			return
		}
		results <- r
		if g.opts.ThinkTime > 0 {
			timer := time.NewTimer(g.opts.ThinkTime)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}
	}
}

// send issues one request, retrying once after a connection error.
func (g *Generator) send(ctx context.Context, client *http.Client, req Request) requestResult {
	if req.Timeout <= 0 {
		req.Timeout = g.opts.RequestTimeout
	}
	res := requestResult{name: req.endpoint()}
	started := time.Now()
	capture, err := httptarget.Do(ctx, client, req.Request)
	var conn *framework.ConnectionError
	if errors.As(err, &conn) {
		res.connectionErrors++
		if ctx.Err() != nil {
			res.err = ctx.Err()
			return res
		}
		res.retried = true
		started = time.Now()
		capture, err = httptarget.Do(ctx, client, req.Request)
		if errors.As(err, &conn) {
			res.connectionErrors++
		}
	}
	if err != nil {
		res.err = err
		res.latency = time.Since(started)
		return res
	}
	res.status = capture.Status
	res.latency = capture.Elapsed
	if len(g.opts.Checks) > 0 {
		step := scenariodef.ExecutionResult{Capture: capture}
		for _, c := range g.opts.Checks {
			if assertion.Evaluate(step, c).Passed {
				res.checksPassed++
			} else {
				res.checksFailed++
			}
		}
	}
	return res
}
