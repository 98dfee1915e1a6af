package assertion

import (
	"fmt"
	"strings"

	"github.com/nookcoding/e2e-harness/scenariodef"
)

const maxListedConsoleErrors = 3

func (ev *evaluation) noConsoleErrors(exp scenariodef.Expectation) (bool, string) {
	patterns, err := compilePatterns(exp.Patterns, true)
	if err != nil {
		return false, err.Error()
	}
	var matched []string
	for _, e := range ev.capture.Console {
		if !e.IsError() {
			continue
		}
		if len(patterns) > 0 {
			hit := false
			for _, p := range patterns {
				if p.MatchString(e.Text) {
					hit = true
					break
				}
			}
			if !hit {
				continue
			}
		}
		matched = append(matched, e.Text)
	}
	if len(matched) == 0 {
		return true, "no matching console errors"
	}
	listed := matched
	if len(listed) > maxListedConsoleErrors {
		listed = listed[:maxListedConsoleErrors]
	}
	quoted := make([]string, 0, len(listed))
	for _, t := range listed {
		quoted = append(quoted, quoteText(t))
	}
	return false, fmt.Sprintf("%d console error(s): %s", len(matched), strings.Join(quoted, "; "))
}
