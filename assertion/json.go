package assertion

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/nookcoding/e2e-harness/scenariodef"
)

// jsonValue looks up a dot-separated path such as "result.errors.0.line" in the captured
// body. Numeric segments index arrays; an empty path is the whole document.
func (ev *evaluation) jsonValue(path string) (ldvalue.Value, error) {
	var doc interface{}
	if err := json.Unmarshal(ev.capture.Body, &doc); err != nil {
		return ldvalue.Null(), fmt.Errorf("response body is not valid JSON: %s", err)
	}
	current := doc
	walked := "$"
	for _, seg := range splitPath(path) {
		switch node := current.(type) {
		case map[string]interface{}:
			next, ok := node[seg]
			if !ok {
				return ldvalue.Null(), fmt.Errorf("%s has no key %q", walked, seg)
			}
			current = next
		case []interface{}:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return ldvalue.Null(), fmt.Errorf("%s has no index %s (length %d)", walked, seg, len(node))
			}
			current = node[i]
		default:
			return ldvalue.Null(), fmt.Errorf("%s is not an object or array", walked)
		}
		walked += "." + seg
	}
	return ldvalue.CopyArbitraryValue(current), nil
}

func splitPath(path string) []string {
	path = strings.TrimPrefix(strings.TrimPrefix(path, "$"), ".")
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

func (ev *evaluation) jsonPathEquals(exp scenariodef.Expectation) (bool, string) {
	got, err := ev.jsonValue(exp.JSONPath)
	if err != nil {
		return false, err.Error()
	}
	if got.Equal(exp.Value) {
		return true, fmt.Sprintf("$.%s is %s", exp.JSONPath, truncate(got.JSONString()))
	}
	return false, fmt.Sprintf("expected $.%s to be %s, received %s",
		exp.JSONPath, truncate(exp.Value.JSONString()), truncate(got.JSONString()))
}
