package report

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nookcoding/e2e-harness/framework"
	"github.com/nookcoding/e2e-harness/scenariodef"
)

var started = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func sampleReport() scenariodef.Report {
	r := scenariodef.Report{
		Name:       "smoke",
		RunID:      "4b1f0a9e-5c3d-4f6e-9a7b-2c8d1e0f3a5b",
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		Scenarios: []scenariodef.ScenarioResult{
			{
				ScenarioID: "story-page",
				Device:     "mobile",
				StartedAt:  started,
				Duration:   1500 * time.Millisecond,
				Results: []scenariodef.ExecutionResult{
					{StepID: "01-navigate", StepName: "open story", Kind: scenariodef.StepNavigate, Outcome: scenariodef.OutcomePass, Attempts: 1, Duration: time.Second},
					{
						StepID: "02-assert", StepName: "title", Kind: scenariodef.StepAssert, Outcome: scenariodef.OutcomeFail,
						Reason: `title "Episode 2" does not match "Episode 1"`, Attempts: 1, Duration: 10 * time.Millisecond,
						Assertions: []scenariodef.AssertionOutcome{
							{Expectation: `title matches "Episode 1"`, Reason: `title "Episode 2" does not match "Episode 1"`},
						},
						Screenshot:  "screenshots/story-page/mobile/02-assert.png",
						DebugOutput: framework.CapturedOutput{{Time: started, Message: "snapshot taken"}},
					},
					{StepID: "03-click", StepName: "next", Kind: scenariodef.StepClick, Outcome: scenariodef.OutcomeSkipped, Reason: `critical step "title" did not pass`},
				},
			},
			{
				ScenarioID: "mission-validation",
				StartedAt:  started.Add(time.Second),
				Duration:   200 * time.Millisecond,
				Results: []scenariodef.ExecutionResult{
					{StepID: "01-request", StepName: "validate", Kind: scenariodef.StepRequest, Outcome: scenariodef.OutcomeTimeout, Reason: "run deadline exceeded"},
				},
			},
		},
		Load: []scenariodef.LoadReport{{
			Name:        "validate-api",
			StartedAt:   started,
			Duration:    scenariodef.Duration(2 * time.Minute),
			Completed:   true,
			Policy:      "gate",
			Requests:    1000,
			Failed:      12,
			PeakUsers:   20,
			StatusCodes: map[int]int{200: 988, 500: 12},
			Latency:     scenariodef.LatencyStats{P95: scenariodef.Duration(612 * time.Millisecond)},
			Thresholds: []scenariodef.ThresholdResult{
				{Expression: "p95<500", Observed: 612, Passed: false},
				{Expression: "error_rate<0.05", Observed: 0.012, Passed: true},
			},
		}},
	}
	r.Recount()
	return r.Freeze()
}

func render(t *testing.T, r scenariodef.Report, f Format) string {
	var buf bytes.Buffer
	require.NoError(t, Sink{NoColor: true}.Write(&buf, r, f))
	return buf.String()
}

func TestWritingIsIdempotent(t *testing.T) {
	r := sampleReport()
	for _, f := range []Format{FormatJUnit, FormatJSON, FormatConsole} {
		first := render(t, r, f)
		second := render(t, r, f)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("%s output differs between writes (-first +second):\n%s", f, diff)
		}
	}
	if diff := cmp.Diff(sampleReport(), r); diff != "" {
		t.Errorf("writing modified the report:\n%s", diff)
	}
}

func TestJUnitStructure(t *testing.T) {
	out := render(t, sampleReport(), FormatJUnit)
	assert.Contains(t, out, xml.Header)

	var doc junitSuites
	require.NoError(t, xml.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "smoke", doc.Name)
	require.Len(t, doc.Suites, 3)

	story := doc.Suites[0]
	assert.Equal(t, "story-page/mobile", story.Name)
	assert.Equal(t, 3, story.Tests)
	assert.Equal(t, 1, story.Failures)
	assert.Equal(t, 1, story.Skipped)
	assert.Equal(t, "1.500", story.Time)
	assert.Equal(t, "2026-03-14T09:30:00Z", story.Timestamp)
	require.Len(t, story.Cases, 3)
	assert.Nil(t, story.Cases[0].Failure)
	require.NotNil(t, story.Cases[1].Failure)
	assert.Equal(t, `title "Episode 2" does not match "Episode 1"`, story.Cases[1].Failure.Message)
	assert.Contains(t, story.Cases[1].Failure.Text, "screenshot: screenshots/story-page/mobile/02-assert.png")
	assert.Contains(t, story.Cases[1].SystemOut, "snapshot taken")
	require.NotNil(t, story.Cases[2].Skipped)

	mission := doc.Suites[1]
	require.NotNil(t, mission.Cases[0].Error)
	assert.Equal(t, "timeout", mission.Cases[0].Error.Type)

	load := doc.Suites[2]
	assert.Equal(t, "load/validate-api", load.Name)
	require.Len(t, load.Cases, 3)
	require.NotNil(t, load.Cases[1].Failure)
	assert.Equal(t, "threshold p95<500 not met (observed 612)", load.Cases[1].Failure.Message)
	assert.Nil(t, load.Cases[2].Failure)

	assert.Equal(t, 7, doc.Tests)
	assert.Equal(t, 2, doc.Failures)
	assert.Equal(t, 1, doc.Errors)
}

func TestAdvisoryThresholdsAreNotFailures(t *testing.T) {
	r := sampleReport()
	r.Load[0].Policy = "advisory"
	var doc junitSuites
	require.NoError(t, xml.Unmarshal([]byte(render(t, r, FormatJUnit)), &doc))
	load := doc.Suites[2]
	assert.Equal(t, 0, load.Failures)
	assert.Equal(t, 1, load.Skipped)
	require.NotNil(t, load.Cases[1].Skipped)
	assert.Contains(t, load.Cases[1].Skipped.Message, "advisory")
}

func TestJSONRoundTrip(t *testing.T) {
	r := sampleReport()
	var decoded scenariodef.Report
	require.NoError(t, json.Unmarshal([]byte(render(t, r, FormatJSON)), &decoded))
	assert.Equal(t, r.RunID, decoded.RunID)
	assert.Equal(t, r.Summary, decoded.Summary)
	require.Len(t, decoded.Scenarios, 2)
	assert.Equal(t, r.Scenarios[0].Results[1].Reason, decoded.Scenarios[0].Results[1].Reason)
	assert.Equal(t, 988, decoded.Load[0].StatusCodes[200])
}

func TestConsoleSummary(t *testing.T) {
	out := render(t, sampleReport(), FormatConsole)
	assert.Contains(t, out, "FAIL story-page/mobile (1.5s)")
	assert.Contains(t, out, `  FAIL    title: title "Episode 2" does not match "Episode 1"`)
	assert.Contains(t, out, "screenshot: screenshots/story-page/mobile/02-assert.png")
	assert.Contains(t, out, "SKIPPED next")
	assert.NotContains(t, out, "open story")
	assert.Contains(t, out, "threshold p95<500: not met (observed 612)")
	assert.Contains(t, out, "4 steps: 1 passed, 1 failed, 0 errors, 1 timed out, 1 skipped")
	assert.NotContains(t, out, "\x1b[", "no color codes when not writing to a terminal")

	var buf bytes.Buffer
	require.NoError(t, Sink{NoColor: true, ShowPassed: true}.Write(&buf, sampleReport(), FormatConsole))
	assert.Contains(t, buf.String(), "PASS    open story")
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	paths, err := Sink{}.WriteFiles(dir, sampleReport(), []Format{FormatConsole, FormatJUnit, FormatJSON})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "junit.xml"), filepath.Join(dir, "report.json")}, paths)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, render(t, sampleReport(), FormatJUnit), string(data))
}

func TestParseFormats(t *testing.T) {
	formats, err := ParseFormats([]string{"junit,json", "JSON", " console "})
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatJUnit, FormatJSON, FormatConsole}, formats)

	_, err = ParseFormats([]string{"html"})
	assert.Error(t, err)
}
