package loadgen

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nookcoding/e2e-harness/scenariodef"
)

type Policy string

const (
	// PolicyGate makes a failed threshold, or a run cut short, fail the load report.
	PolicyGate Policy = "gate"
	// PolicyAdvisory reports thresholds without ever failing the run because of them.
	PolicyAdvisory Policy = "advisory"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyGate:
		return PolicyGate, nil
	case PolicyAdvisory:
		return PolicyAdvisory, nil
	default:
		return "", fmt.Errorf("unknown threshold policy %q", s)
	}
}

// Threshold is a k6-style pass criterion such as "p95<500". Latency metrics are in
// milliseconds; rates are fractions between 0 and 1.
type Threshold struct {
	Expression string
	Metric     string
	Op         string
	Value      float64
}

var thresholdPattern = regexp.MustCompile(`^\s*([a-z_]+|p\(\d+\)|p\d+)\s*(<=|>=|==|<|>)\s*(-?[0-9]*\.?[0-9]+)\s*$`)

var thresholdMetrics = map[string]func(scenariodef.LoadReport) float64{
	"avg":            func(r scenariodef.LoadReport) float64 { return ms(r.Latency.Mean) },
	"min":            func(r scenariodef.LoadReport) float64 { return ms(r.Latency.Min) },
	"max":            func(r scenariodef.LoadReport) float64 { return ms(r.Latency.Max) },
	"med":            func(r scenariodef.LoadReport) float64 { return ms(r.Latency.P50) },
	"p50":            func(r scenariodef.LoadReport) float64 { return ms(r.Latency.P50) },
	"p90":            func(r scenariodef.LoadReport) float64 { return ms(r.Latency.P90) },
	"p95":            func(r scenariodef.LoadReport) float64 { return ms(r.Latency.P95) },
	"p99":            func(r scenariodef.LoadReport) float64 { return ms(r.Latency.P99) },
	"error_rate":     scenariodef.LoadReport.ErrorRate,
	"violation_rate": scenariodef.LoadReport.ViolationRate,
	"check_rate":     checkRate,
	"requests":       func(r scenariodef.LoadReport) float64 { return float64(r.Requests) },
}

func ParseThreshold(expr string) (Threshold, error) {
	m := thresholdPattern.FindStringSubmatch(strings.ToLower(expr))
	if m == nil {
		return Threshold{}, fmt.Errorf("invalid threshold %q (expected e.g. \"p95<500\")", expr)
	}
	metric := m[1]
	if strings.HasPrefix(metric, "p(") {
		metric = "p" + strings.TrimSuffix(strings.TrimPrefix(metric, "p("), ")")
	}
	if _, ok := thresholdMetrics[metric]; !ok {
		return Threshold{}, fmt.Errorf("invalid threshold %q: unknown metric %q", expr, metric)
	}
	value, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold %q: %w", expr, err)
	}
	return Threshold{Expression: strings.TrimSpace(expr), Metric: metric, Op: m[2], Value: value}, nil
}

func ParseThresholds(exprs []string) ([]Threshold, error) {
	ret := make([]Threshold, 0, len(exprs))
	for _, e := range exprs {
		t, err := ParseThreshold(e)
		if err != nil {
			return nil, err
		}
		ret = append(ret, t)
	}
	return ret, nil
}

func (t Threshold) Evaluate(r scenariodef.LoadReport) scenariodef.ThresholdResult {
	observed := thresholdMetrics[t.Metric](r)
	var ok bool
	switch t.Op {
	case "<":
		ok = observed < t.Value
	case "<=":
		ok = observed <= t.Value
	case ">":
		ok = observed > t.Value
	case ">=":
		ok = observed >= t.Value
	case "==":
		ok = observed == t.Value
	}
	return scenariodef.ThresholdResult{Expression: t.Expression, Observed: observed, Passed: ok}
}

func checkRate(r scenariodef.LoadReport) float64 {
	total := r.ChecksPassed + r.ChecksFailed
	if total == 0 {
		return 1
	}
	return float64(r.ChecksPassed) / float64(total)
}

func ms(d scenariodef.Duration) float64 {
	return float64(d.D()) / 1e6
}
