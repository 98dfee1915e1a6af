package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/nookcoding/e2e-harness/scenariodef"
)

type palette struct {
	pass, fail, skip, bold *color.Color
}

func (s Sink) palette(w io.Writer) palette {
	p := palette{
		pass: color.New(color.FgGreen),
		fail: color.New(color.FgRed, color.Bold),
		skip: color.New(color.FgYellow),
		bold: color.New(color.Bold),
	}
	if s.NoColor || !IsTerminal(w) {
		for _, c := range []*color.Color{p.pass, p.fail, p.skip, p.bold} {
			c.DisableColor()
		}
	} else {
		for _, c := range []*color.Color{p.pass, p.fail, p.skip, p.bold} {
			c.EnableColor()
		}
	}
	return p
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p palette) outcome(o scenariodef.Outcome) string {
	label := strings.ToUpper(string(o))
	switch o {
	case scenariodef.OutcomePass:
		return p.pass.Sprint(label)
	case scenariodef.OutcomeSkipped:
		return p.skip.Sprint(label)
	default:
		return p.fail.Sprint(label)
	}
}

func (s Sink) writeConsole(w io.Writer, r scenariodef.Report) error {
	p := s.palette(w)
	cw := &consoleWriter{w: w}

	for _, sc := range r.Scenarios {
		status := p.pass.Sprint("PASS")
		if !sc.OK() {
			status = p.fail.Sprint("FAIL")
		}
		cw.printf("%s %s (%s)\n", status, p.bold.Sprint(sc.Name()), sc.Duration.Round(time.Millisecond))
		for _, res := range sc.Results {
			if res.Outcome == scenariodef.OutcomePass && !s.ShowPassed {
				continue
			}
			cw.printf("  %-7s %s", p.outcome(res.Outcome), res.StepName)
			if res.Reason != "" {
				cw.printf(": %s", res.Reason)
			}
			cw.printf("\n")
			for _, a := range res.Assertions {
				if !a.Passed {
					cw.printf("          - %s: %s\n", a.Expectation, a.Reason)
				}
			}
			if res.Screenshot != "" {
				cw.printf("          screenshot: %s\n", res.Screenshot)
			}
		}
	}

	for _, l := range r.Load {
		status := p.pass.Sprint("PASS")
		if !l.Passed {
			status = p.fail.Sprint("FAIL")
		}
		cw.printf("%s %s (%s, policy %s)\n", status, p.bold.Sprint("load/"+l.Name), l.Duration.D().Round(time.Millisecond), l.Policy)
		if !l.Completed {
			cw.printf("  incomplete: %s\n", l.Reason)
		}
		cw.printf("  requests %d, failed %d (%.2f%%), connection errors %d, retries %d, peak users %d\n",
			l.Requests, l.Failed, 100*l.ErrorRate(), l.ConnectionErrors, l.Retries, l.PeakUsers)
		cw.printf("  latency avg %s p50 %s p90 %s p95 %s p99 %s max %s\n",
			l.Latency.Mean.D(), l.Latency.P50.D(), l.Latency.P90.D(), l.Latency.P95.D(), l.Latency.P99.D(), l.Latency.Max.D())
		if l.Violations > 0 {
			cw.printf("  latency budget exceeded by %d requests (%.2f%%)\n", l.Violations, 100*l.ViolationRate())
		}
		if total := l.ChecksPassed + l.ChecksFailed; total > 0 {
			cw.printf("  checks %d/%d passed\n", l.ChecksPassed, total)
		}
		for _, e := range l.Endpoints {
			cw.printf("    %s: %d requests, %d failed, p95 %s\n", e.Name, e.Requests, e.Failed, e.Latency.P95.D())
		}
		for _, t := range l.Thresholds {
			mark := p.pass.Sprint("ok")
			if !t.Passed {
				mark = p.fail.Sprint("not met")
			}
			cw.printf("  threshold %s: %s (observed %s)\n", t.Expression, mark, formatObserved(t.Observed))
		}
	}

	sum := r.Summary
	line := fmt.Sprintf("%d steps: %d passed, %d failed, %d errors, %d timed out, %d skipped",
		sum.Total, sum.Passed, sum.Failed, sum.Errored, sum.TimedOut, sum.Skipped)
	if r.OK() {
		cw.printf("\n%s\n", p.pass.Sprint(line))
	} else {
		cw.printf("\n%s\n", p.fail.Sprint(line))
	}
	return cw.err
}

// consoleWriter remembers the first write error so that printing code can stay linear.
type consoleWriter struct {
	w   io.Writer
	err error
}

func (c *consoleWriter) printf(format string, args ...interface{}) {
	if c.err != nil {
		return
	}
	_, c.err = fmt.Fprintf(c.w, format, args...)
}
