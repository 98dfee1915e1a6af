package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nookcoding/e2e-harness/scenariodef"
)

type junitSuites struct {
	XMLName  xml.Name     `xml:"testsuites"`
	Name     string       `xml:"name,attr"`
	ID       string       `xml:"id,attr,omitempty"`
	Tests    int          `xml:"tests,attr"`
	Failures int          `xml:"failures,attr"`
	Errors   int          `xml:"errors,attr"`
	Skipped  int          `xml:"skipped,attr"`
	Time     string       `xml:"time,attr"`
	Suites   []junitSuite `xml:"testsuite"`
}

type junitSuite struct {
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Errors     int             `xml:"errors,attr"`
	Skipped    int             `xml:"skipped,attr"`
	Time       string          `xml:"time,attr"`
	Timestamp  string          `xml:"timestamp,attr,omitempty"`
	Properties []junitProperty `xml:"properties>property,omitempty"`
	Cases      []junitCase     `xml:"testcase"`
}

type junitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type junitCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitProblem `xml:"failure,omitempty"`
	Error     *junitProblem `xml:"error,omitempty"`
	Skipped   *junitProblem `xml:"skipped,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

type junitProblem struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Text    string `xml:",chardata"`
}

func writeJUnit(w io.Writer, r scenariodef.Report) error {
	doc := junitSuites{
		Name: r.Name,
		ID:   r.RunID,
		Time: seconds(r.FinishedAt.Sub(r.StartedAt)),
	}
	for _, s := range r.Scenarios {
		doc.Suites = append(doc.Suites, scenarioSuite(s))
	}
	for _, l := range r.Load {
		doc.Suites = append(doc.Suites, loadSuite(l))
	}
	for _, s := range doc.Suites {
		doc.Tests += s.Tests
		doc.Failures += s.Failures
		doc.Errors += s.Errors
		doc.Skipped += s.Skipped
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func scenarioSuite(s scenariodef.ScenarioResult) junitSuite {
	suite := junitSuite{
		Name:      s.Name(),
		Time:      seconds(s.Duration),
		Timestamp: timestamp(s.StartedAt),
	}
	if s.Description != "" {
		suite.Properties = append(suite.Properties, junitProperty{Name: "description", Value: s.Description})
	}
	if s.Device != "" {
		suite.Properties = append(suite.Properties, junitProperty{Name: "device", Value: s.Device})
	}
	for _, res := range s.Results {
		tc := junitCase{
			Name:      res.StepName,
			Classname: s.Name(),
			Time:      seconds(res.Duration),
		}
		problem := &junitProblem{Message: res.Reason, Text: stepDetails(res)}
		suite.Tests++
		switch res.Outcome {
		case scenariodef.OutcomeFail:
			problem.Type = "AssertionFailure"
			tc.Failure = problem
			suite.Failures++
		case scenariodef.OutcomeError:
			problem.Type = "error"
			tc.Error = problem
			suite.Errors++
		case scenariodef.OutcomeTimeout:
			problem.Type = "timeout"
			tc.Error = problem
			suite.Errors++
		case scenariodef.OutcomeSkipped:
			tc.Skipped = &junitProblem{Message: res.Reason}
			suite.Skipped++
		}
		if res.Failed() && len(res.DebugOutput) > 0 {
			var b strings.Builder
			res.DebugOutput.Dump(&b, "")
			tc.SystemOut = b.String()
		}
		suite.Cases = append(suite.Cases, tc)
	}
	return suite
}

// stepDetails lists the individual expectation outcomes and the screenshot, if any.
func stepDetails(res scenariodef.ExecutionResult) string {
	var lines []string
	for _, a := range res.Assertions {
		mark := "PASS"
		if !a.Passed {
			mark = "FAIL"
		}
		lines = append(lines, fmt.Sprintf("%s %s: %s", mark, a.Expectation, a.Reason))
	}
	if res.Screenshot != "" {
		lines = append(lines, "screenshot: "+res.Screenshot)
	}
	return strings.Join(lines, "\n")
}

func loadSuite(l scenariodef.LoadReport) junitSuite {
	suite := junitSuite{
		Name:      "load/" + l.Name,
		Time:      seconds(l.Duration.D()),
		Timestamp: timestamp(l.StartedAt),
		Properties: []junitProperty{
			{Name: "policy", Value: l.Policy},
			{Name: "requests", Value: fmt.Sprint(l.Requests)},
			{Name: "failed", Value: fmt.Sprint(l.Failed)},
			{Name: "peakUsers", Value: fmt.Sprint(l.PeakUsers)},
			{Name: "p95", Value: l.Latency.P95.D().String()},
		},
	}
	classname := suite.Name
	advisory := l.Policy == "advisory"

	completed := junitCase{Name: "profile completed", Classname: classname, Time: suite.Time}
	if !l.Completed {
		problem := &junitProblem{Message: l.Reason, Type: "timeout"}
		if advisory {
			completed.Skipped = problem
			suite.Skipped++
		} else {
			completed.Failure = problem
			suite.Failures++
		}
	}
	suite.Tests++
	suite.Cases = append(suite.Cases, completed)

	for _, t := range l.Thresholds {
		tc := junitCase{Name: t.Expression, Classname: classname, Time: "0.000"}
		if !t.Passed {
			msg := fmt.Sprintf("threshold %s not met (observed %s)", t.Expression, formatObserved(t.Observed))
			if advisory {
				tc.Skipped = &junitProblem{Message: "advisory: " + msg}
				suite.Skipped++
			} else {
				tc.Failure = &junitProblem{Message: msg, Type: "threshold"}
				suite.Failures++
			}
		}
		suite.Tests++
		suite.Cases = append(suite.Cases, tc)
	}
	return suite
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatObserved(v float64) string {
	return fmt.Sprintf("%.4g", v)
}
