package scenariodef

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

const missionYAML = `
scenarios:
  - id: mission-validation
    baseUrl: http://localhost:8080
    steps:
      - name: submit step 1
        kind: request
        method: POST
        url: /api/validate
        headers:
          Content-Type: application/json
        body:
          missionId: mission-101
          stepId: step-1
          code: print("hi")
        expect:
          - kind: statusEquals
            code: 200
          - kind: jsonPathEquals
            jsonPath: result.passed
            value: true
  - id: story-page
    steps:
      - kind: navigate
        url: /story.html
        timeoutMs: 10000
      - kind: assert
        expect:
          - kind: textMatches
            source: title
            patterns: ["Episode 1"]
          - kind: attributeWithinBound
            selector: .panel
            attribute: width
            bound: {max: 120}
`

func writeTempFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadScenarioFileYAML(t *testing.T) {
	scenarios, err := LoadScenarioFile(writeTempFile(t, "missions.yaml", missionYAML))
	require.NoError(t, err)
	require.Len(t, scenarios, 2)

	m := scenarios[0]
	assert.Equal(t, "mission-validation", m.ID)
	require.Len(t, m.Steps, 1)
	step := m.Steps[0]
	assert.Equal(t, StepRequest, step.Kind)
	assert.Equal(t, "POST", step.Method)
	assert.Equal(t, "mission-101", step.Body.GetByKey("missionId").StringValue())
	assert.Equal(t, "application/json", step.Headers["Content-Type"])
	require.Len(t, step.Expect, 2)
	assert.Equal(t, StatusEquals(200), step.Expect[0])
	assert.Equal(t, ldvalue.Bool(true), step.Expect[1].Value)

	s := scenarios[1]
	assert.Equal(t, ldvalue.NewOptionalInt(10000), s.Steps[0].TimeoutMS)
	bound := s.Steps[1].Expect[1].Bound
	require.NotNil(t, bound)
	assert.Equal(t, "(-inf, 120]", bound.String())
}

func TestLoadScenarioFileSingleScenarioJSON(t *testing.T) {
	data, err := json.Marshal(Scenario{ID: "one", Steps: []Step{{Kind: StepWait, TimeoutMS: ldvalue.NewOptionalInt(10)}}})
	require.NoError(t, err)

	scenarios, err := LoadScenarioFile(writeTempFile(t, "one.json", string(data)))
	require.NoError(t, err)
	require.Len(t, scenarios, 1)
	assert.Equal(t, "one", scenarios[0].ID)
}

func TestLoadScenarioFileTopLevelList(t *testing.T) {
	scenarios, err := LoadScenarioFile(writeTempFile(t, "list.yml", `
- id: a
  steps: [{kind: wait, timeoutMs: 1}]
- id: b
  steps: [{kind: wait, timeoutMs: 1}]
`))
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "b", scenarios[1].ID)
}

func TestLoadScenarioFileRejectsInvalid(t *testing.T) {
	_, err := LoadScenarioFile(writeTempFile(t, "bad.yaml", "id: x\nsteps:\n  - kind: click\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "click requires selector")

	_, err = LoadScenarioFile(writeTempFile(t, "dup.yaml", `
- id: a
  steps: [{kind: wait, timeoutMs: 1}]
- id: a
  steps: [{kind: wait, timeoutMs: 1}]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	_, err = LoadScenarioFile(writeTempFile(t, "notes.txt", "hello"))
	assert.Error(t, err)
}

func TestLoadScenariosFromDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte("id: b\nsteps: [{kind: wait, timeoutMs: 1}]\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("id: a\nsteps: [{kind: wait, timeoutMs: 1}]\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# ignored"), 0o600))

	scenarios, err := LoadScenarios(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "a", scenarios[0].ID)
	assert.Equal(t, "b", scenarios[1].ID)
}

func TestLoadPlanFile(t *testing.T) {
	plan, err := LoadPlanFile(writeTempFile(t, "island-load.yaml", `
baseUrl: http://localhost:8080
stages:
  - {duration: 30s, target: 20}
  - {duration: 1m, target: 20}
  - {duration: 30s, target: 0}
requests:
  - name: island
    url: /api/island
thinkTime: 1s
requestTimeout: 5000
latencyBudget: 500ms
maxViolationRatio: 0.05
thresholds: ["p95<500", "error_rate<0.05"]
policy: gate
`))
	require.NoError(t, err)
	assert.Equal(t, "island-load", plan.Name)
	assert.Equal(t, 2*time.Minute, plan.Profile().TotalDuration())
	assert.Equal(t, 20, plan.Profile().PeakTarget())
	assert.Equal(t, time.Second, plan.ThinkTime.D())
	assert.Equal(t, 5*time.Second, plan.RequestTimeout.D())
	assert.Equal(t, []string{"p95<500", "error_rate<0.05"}, plan.Thresholds)
	assert.Equal(t, 0.05, plan.MaxViolationRatio)

	invalid := plan
	invalid.MaxViolationRatio = 2
	assert.Error(t, invalid.Validate())
	invalid.MaxViolationRatio, invalid.LatencyBudget = 0.05, 0
	assert.Error(t, invalid.Validate())
}

func TestLoadProfileValidate(t *testing.T) {
	assert.NoError(t, NewLoadProfile(Stage{Duration: Duration(time.Second), Target: 0}).Validate())
	assert.Error(t, NewLoadProfile().Validate())
	assert.Error(t, NewLoadProfile(Stage{Duration: 0, Target: 1}).Validate())
	assert.Error(t, NewLoadProfile(Stage{Duration: Duration(time.Second), Target: -1}).Validate())
}

func TestDurationJSON(t *testing.T) {
	data, err := json.Marshal(Duration(1500 * time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, `"1.5s"`, string(data))

	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"2m"`), &d))
	assert.Equal(t, 2*time.Minute, d.D())
	require.NoError(t, json.Unmarshal([]byte(`250`), &d))
	assert.Equal(t, 250*time.Millisecond, d.D())
	assert.Error(t, json.Unmarshal([]byte(`"soon"`), &d))
}

func TestBundledDefinitionsAreValid(t *testing.T) {
	scenarios, err := LoadScenarios(filepath.Join("..", "scenarios"))
	require.NoError(t, err)
	var ids []string
	for _, s := range scenarios {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"admin", "image-transparency", "mission-validation", "mission-catalog", "story-page"}, ids)

	plan, err := LoadPlanFile(filepath.Join("..", "loadtests", "validate-api.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, plan.Profile().TotalDuration())
	assert.Equal(t, 20, plan.Profile().PeakTarget())
}
