package loadgen

import (
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/nookcoding/e2e-harness/scenariodef"
	"github.com/nookcoding/e2e-harness/target"
)

// RoundRobin returns a factory that cycles through requests in order. It is safe for
// concurrent use.
func RoundRobin(requests ...Request) RequestFactory {
	if len(requests) == 0 {
		return nil
	}
	var next atomic.Uint64
	return func() Request {
		i := next.Add(1) - 1
		r := requests[i%uint64(len(requests))]
		r.Headers = r.Headers.Clone()
		return r
	}
}

// RequestsFromPlan turns a plan's request templates into requests, resolving relative URLs
// against the plan's base URL or, failing that, defaultBase.
func RequestsFromPlan(plan scenariodef.LoadPlan, defaultBase string) []Request {
	base := plan.BaseURL
	if base == "" {
		base = defaultBase
	}
	ret := make([]Request, 0, len(plan.Request))
	for _, def := range plan.Request {
		req := Request{
			Name: def.Name,
			Request: target.Request{
				Method:  strings.ToUpper(def.Method),
				URL:     scenariodef.ResolveURL(base, def.URL),
				Headers: http.Header{},
			},
		}
		for k, v := range def.Headers {
			req.Headers.Set(k, v)
		}
		if def.Body.IsDefined() && !def.Body.IsNull() {
			req.Body = []byte(def.Body.JSONString())
			if req.Headers.Get("Content-Type") == "" {
				req.Headers.Set("Content-Type", "application/json")
			}
			if req.Method == "" {
				req.Method = http.MethodPost
			}
		}
		if req.Method == "" {
			req.Method = http.MethodGet
		}
		ret = append(ret, req)
	}
	return ret
}

// OptionsFromPlan returns generator options for the plan's pacing and policy fields. Fields
// the plan leaves unset keep their defaults.
func OptionsFromPlan(plan scenariodef.LoadPlan) (Options, error) {
	policy, err := ParsePolicy(plan.Policy)
	if err != nil {
		return Options{}, err
	}
	return Options{
		ThinkTime:         plan.ThinkTime.D(),
		RequestTimeout:    plan.RequestTimeout.D(),
		LatencyBudget:     plan.LatencyBudget.D(),
		MaxViolationRatio: plan.MaxViolationRatio,
		MaxDuration:       plan.MaxDuration.D(),
		Thresholds:        append([]string(nil), plan.Thresholds...),
		Policy:            policy,
		Checks:            append([]scenariodef.Expectation(nil), plan.Checks...),
	}, nil
}
