package loadgen

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/nookcoding/e2e-harness/framework"
	"github.com/nookcoding/e2e-harness/scenariodef"
)

// requestResult is what a virtual user reports for one request, including its retry.
type requestResult struct {
	name             string
	status           int
	latency          time.Duration
	err              error
	connectionErrors int
	retried          bool
	checksPassed     int
	checksFailed     int
}

// aggregator accumulates request results. It is owned by the scheduling loop.
type aggregator struct {
	report    *scenariodef.LoadReport
	budget    time.Duration
	latencies []time.Duration
	endpoints map[string]*endpointAggregate
	order     []string
}

type endpointAggregate struct {
	requests  int
	failed    int
	latencies []time.Duration
}

func newAggregator(report *scenariodef.LoadReport, budget time.Duration) *aggregator {
	report.StatusCodes = make(map[int]int)
	return &aggregator{report: report, budget: budget, endpoints: make(map[string]*endpointAggregate)}
}

func (a *aggregator) add(r requestResult) {
	rep := a.report
	rep.Requests++
	rep.ConnectionErrors += r.connectionErrors
	rep.ChecksPassed += r.checksPassed
	rep.ChecksFailed += r.checksFailed
	if r.retried {
		rep.Retries++
	}

	ep := a.endpoints[r.name]
	if ep == nil {
		ep = &endpointAggregate{}
		a.endpoints[r.name] = ep
		a.order = append(a.order, r.name)
	}
	ep.requests++

	failed := r.err != nil || r.status >= 400
	if failed {
		rep.Failed++
		ep.failed++
	}
	if r.err != nil {
		var timeout *framework.TimeoutError
		if !errors.As(r.err, &timeout) {
			// Nothing was measured for a request that never got a response.
			return
		}
	} else {
		rep.StatusCodes[r.status]++
	}
	a.latencies = append(a.latencies, r.latency)
	ep.latencies = append(ep.latencies, r.latency)
	if a.budget > 0 && r.latency > a.budget {
		rep.Violations++
	}
}

func (a *aggregator) finish() {
	a.report.Latency = summarize(a.latencies)
	names := append([]string(nil), a.order...)
	sort.Strings(names)
	a.report.Endpoints = make([]scenariodef.EndpointStats, 0, len(names))
	for _, n := range names {
		ep := a.endpoints[n]
		a.report.Endpoints = append(a.report.Endpoints, scenariodef.EndpointStats{
			Name:     n,
			Requests: ep.requests,
			Failed:   ep.failed,
			Latency:  summarize(ep.latencies),
		})
	}
}

func summarize(latencies []time.Duration) scenariodef.LatencyStats {
	if len(latencies) == 0 {
		return scenariodef.LatencyStats{}
	}
	sorted := append([]time.Duration(nil), latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	return scenariodef.LatencyStats{
		Min:  scenariodef.Duration(sorted[0]),
		Max:  scenariodef.Duration(sorted[len(sorted)-1]),
		Mean: scenariodef.Duration(total / time.Duration(len(sorted))),
		P50:  scenariodef.Duration(percentile(sorted, 50)),
		P90:  scenariodef.Duration(percentile(sorted, 90)),
		P95:  scenariodef.Duration(percentile(sorted, 95)),
		P99:  scenariodef.Duration(percentile(sorted, 99)),
	}
}

// percentile uses the nearest-rank method on an ascending slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}
