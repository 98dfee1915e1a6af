package scenariodef

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

func TestStepNameAndID(t *testing.T) {
	s := Step{Kind: StepNavigate, URL: "/story.html"}
	assert.Equal(t, "1 navigate", s.StepName(0))
	assert.Equal(t, "01-navigate", s.StepID(0))

	s.Name = "open story"
	assert.Equal(t, "open story", s.StepName(3))
	assert.Equal(t, "04-navigate", s.StepID(3))
}

func TestStepTimeout(t *testing.T) {
	s := Step{Kind: StepWait}
	assert.Equal(t, 5*time.Second, s.Timeout(5*time.Second))

	s.TimeoutMS = ldvalue.NewOptionalInt(250)
	assert.Equal(t, 250*time.Millisecond, s.Timeout(5*time.Second))
}

func TestScenarioValidate(t *testing.T) {
	valid := Scenario{
		ID: "story-page",
		Steps: []Step{
			{Kind: StepNavigate, URL: "/story.html"},
			{Kind: StepAssert, Expect: []Expectation{TextMatches(SourceTitle, "Episode 1")}},
		},
	}
	require.NoError(t, valid.Validate())

	for name, s := range map[string]Scenario{
		"no id":        {Steps: valid.Steps},
		"no steps":     {ID: "x"},
		"parent id":    {ID: "..", Steps: valid.Steps},
		"nested id":    {ID: "admin/scenes", Steps: valid.Steps},
		"escaping id":  {ID: "../x", Steps: valid.Steps},
		"windows id":   {ID: `admin\scenes`, Steps: valid.Steps},
		"bad kind":     {ID: "x", Steps: []Step{{Kind: "hover"}}},
		"click":        {ID: "x", Steps: []Step{{Kind: StepClick}}},
		"wait":         {ID: "x", Steps: []Step{{Kind: StepWait}}},
		"empty assert": {ID: "x", Steps: []Step{{Kind: StepAssert}}},
		"bad expect": {ID: "x", Steps: []Step{
			{Kind: StepAssert, Expect: []Expectation{{Kind: ExpectStatusEquals, Code: 42}}},
		}},
		"negative timeout": {ID: "x", Steps: []Step{
			{Kind: StepWait, TimeoutMS: ldvalue.NewOptionalInt(-1)},
		}},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, s.Validate())
		})
	}
}

func TestResolveURL(t *testing.T) {
	assert.Equal(t, "http://localhost:3000/story.html", ResolveURL("http://localhost:3000", "/story.html"))
	assert.Equal(t, "http://host/app/story.html?ep=1", ResolveURL("http://host/app/", "story.html?ep=1"))
	assert.Equal(t, "http://host/story.html?ep=1", ResolveURL("http://host/app", "story.html?ep=1"))
	assert.Equal(t, "http://localhost:5173/story.html", ResolveURL("http://localhost:5173/app", "/story.html"))
	assert.Equal(t, "http://host/api/validate", ResolveURL("http://host/app/", "/api/validate"))
	assert.Equal(t, "https://other/x", ResolveURL("http://host", "https://other/x"))
	assert.Equal(t, "/x", ResolveURL("", "/x"))

	s := Scenario{BaseURL: "http://scenario"}
	assert.Equal(t, "http://scenario/a", s.ResolveURL("/a", "http://default"))
	s.BaseURL = ""
	assert.Equal(t, "http://default/a", s.ResolveURL("/a", "http://default"))
}

func TestBoundContains(t *testing.T) {
	assert.True(t, AtMost(120).Contains(120))
	assert.False(t, LessThan(120).Contains(120))
	assert.True(t, LessThan(120).Contains(119.9))
	assert.True(t, AtLeast(0).Contains(0))
	assert.False(t, GreaterThan(0).Contains(0))
	assert.True(t, Between(1, 2).Contains(1))
	assert.True(t, Between(1, 2).Contains(2))
	assert.False(t, Between(1, 2).Contains(2.01))
	assert.True(t, Exactly(255).Contains(255))
	assert.True(t, Bound{}.Contains(-1e9))
}

func TestBoundString(t *testing.T) {
	assert.Equal(t, "(-inf, 120]", AtMost(120).String())
	assert.Equal(t, "(-inf, 120)", LessThan(120).String())
	assert.Equal(t, "[0.5, +inf)", AtLeast(0.5).String())
	assert.Equal(t, "(0, +inf)", GreaterThan(0).String())
	assert.Equal(t, "[1, 2]", Between(1, 2).String())
}

func TestExpectationString(t *testing.T) {
	assert.Equal(t, "statusEquals(200)", StatusEquals(200).String())
	assert.Equal(t, `textMatches(title, "Episode 1")`, TextMatches(SourceTitle, "Episode 1").String())
	assert.Equal(t, `textMatches(h1, "admin" | "Admin")`, ElementTextMatches("h1", "admin", "Admin").String())
	assert.Equal(t, `elementVisible("#missing")`, ElementVisible("#missing").String())
	assert.Equal(t, `elementHasClass(".tab", "active")`, ElementHasClass(".tab", "active").String())
	assert.Equal(t, "attributeWithinBound(.panel@width, (-inf, 120])", AttributeWithinBound(".panel", "width", AtMost(120)).String())
	assert.Equal(t, "countEquals(li.item, 3)", CountEquals("li.item", 3).String())
	assert.Equal(t, "countEquals($.data, 2)", JSONCountEquals("data", 2).String())
	assert.Equal(t, `jsonPathEquals($.passed, true)`, JSONPathEquals("passed", ldvalue.Bool(true)).String())
	assert.Equal(t, "noConsoleErrors()", NoConsoleErrors().String())
	assert.Equal(t, "pixelAlpha(0,0, [0, 0])", PixelAlpha(0, 0, Exactly(0)).String())
}

func TestSummaryAndReport(t *testing.T) {
	r := Report{
		Scenarios: []ScenarioResult{
			{ScenarioID: "a", Results: []ExecutionResult{{Outcome: OutcomePass}, {Outcome: OutcomeFail}}},
			{ScenarioID: "b", Device: "mobile", Results: []ExecutionResult{{Outcome: OutcomeSkipped}, {Outcome: OutcomeTimeout}}},
		},
	}
	r.Recount()
	assert.Equal(t, Summary{Total: 4, Passed: 1, Failed: 1, Skipped: 1, TimedOut: 1}, r.Summary)
	assert.False(t, r.OK())
	assert.Equal(t, "b/mobile", r.Scenarios[1].Name())

	ok := Report{Scenarios: []ScenarioResult{{ScenarioID: "c", Results: []ExecutionResult{{Outcome: OutcomePass}}}}}
	ok.Recount()
	assert.True(t, ok.OK())
	ok.Load = []LoadReport{{Name: "smoke", Passed: false}}
	assert.False(t, ok.OK())
}

func TestReportMergeKeepsOrder(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := Report{StartedAt: t0.Add(time.Second), FinishedAt: t0.Add(2 * time.Second),
		Scenarios: []ScenarioResult{{ScenarioID: "a", Results: []ExecutionResult{{Outcome: OutcomePass}}}}}
	b := Report{StartedAt: t0, FinishedAt: t0.Add(5 * time.Second),
		Scenarios: []ScenarioResult{{ScenarioID: "b", Results: []ExecutionResult{{Outcome: OutcomeError}}}}}

	var r Report
	r.Merge(a, b)
	require.Len(t, r.Scenarios, 2)
	assert.Equal(t, "a", r.Scenarios[0].ScenarioID)
	assert.Equal(t, "b", r.Scenarios[1].ScenarioID)
	assert.Equal(t, t0, r.StartedAt)
	assert.Equal(t, t0.Add(5*time.Second), r.FinishedAt)
	assert.Equal(t, 1, r.Summary.Errored)
}

func TestFreezeSharesNoState(t *testing.T) {
	r := Report{
		Scenarios: []ScenarioResult{{ScenarioID: "a", Results: []ExecutionResult{{
			Outcome: OutcomePass,
			Capture: &Capture{Status: 200, Body: []byte("ok"), Console: []ConsoleEvent{{Type: "log", Text: "hi"}}},
		}}}},
		Load: []LoadReport{{Name: "l", StatusCodes: map[int]int{200: 1}}},
	}
	frozen := r.Freeze()

	r.Scenarios[0].Results[0].Outcome = OutcomeFail
	r.Scenarios[0].Results[0].Capture.Body[0] = 'X'
	r.Scenarios[0].Results[0].Capture.Console[0].Text = "changed"
	r.Load[0].StatusCodes[500] = 3

	res := frozen.Scenarios[0].Results[0]
	assert.Equal(t, OutcomePass, res.Outcome)
	assert.Equal(t, "ok", string(res.Capture.Body))
	assert.Equal(t, "hi", res.Capture.Console[0].Text)
	assert.Equal(t, map[int]int{200: 1}, frozen.Load[0].StatusCodes)
}
