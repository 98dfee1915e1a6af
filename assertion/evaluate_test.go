package assertion

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/nookcoding/e2e-harness/framework"
	s "github.com/nookcoding/e2e-harness/scenariodef"
)

const islandPage = `<html><head><title>My Island</title></head><body>
<h1>나의 섬</h1>
<div class="tabs"><a class="tab active" href="#shop">Shop</a><a class="tab" href="#bag">Bag</a></div>
<div class="panel" style="width: 118px">Bells: 300</div>
<ul><li class="item">Palm</li><li class="item">Shell</li></ul>
<div id="toast" style="display:none">Saved</div>
</body></html>`

func pageResult() s.ExecutionResult {
	return s.ExecutionResult{Capture: &s.Capture{Status: 200, Title: "My Island", DOM: islandPage}}
}

func bodyResult(status int, body string) s.ExecutionResult {
	return s.ExecutionResult{Capture: &s.Capture{Status: status, Body: []byte(body), Elapsed: 42 * time.Millisecond}}
}

func TestStatusMismatchCitesBothCodes(t *testing.T) {
	o := Evaluate(bodyResult(500, `{"error":"boom"}`), s.StatusEquals(200))
	assert.False(t, o.Passed)
	assert.Equal(t, "statusEquals(200)", o.Expectation)
	assert.Equal(t, "expected status 200, received 500", o.Reason)

	assert.True(t, Evaluate(bodyResult(200, ""), s.StatusEquals(200)).Passed)
}

func TestMissingElementIsAFailedOutcome(t *testing.T) {
	var o s.AssertionOutcome
	require.NotPanics(t, func() {
		o = Evaluate(pageResult(), s.ElementVisible("#missing"))
	})
	assert.False(t, o.Passed)
	assert.Equal(t, `no element matches "#missing"`, o.Reason)

	_, err := EvaluateAll(pageResult(), []s.Expectation{s.ElementVisible("#missing")})
	var failure *framework.AssertionFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, []string{`no element matches "#missing"`}, failure.Reasons)
}

func TestEvaluateIsPure(t *testing.T) {
	result := pageResult()
	exps := []s.Expectation{
		s.TextMatches(s.SourceTitle, "Island"),
		s.ElementVisible("#toast"),
		s.AttributeWithinBound(".panel", "width", s.AtMost(120)),
		s.CountEquals("li.item", 3),
		{Kind: s.ExpectTextMatches, Patterns: []string{"("}},
	}
	for _, e := range exps {
		first := Evaluate(result, e)
		for i := 0; i < 3; i++ {
			assert.Equal(t, first, Evaluate(result, e))
		}
	}
}

func TestTextMatchesAnyAlternative(t *testing.T) {
	result := s.ExecutionResult{Capture: &s.Capture{DOM: `<html><body><h1>Admin Dashboard</h1></body></html>`}}

	o := Evaluate(result, s.ElementTextMatches("h1", "admin", "Admin", "관리자"))
	assert.True(t, o.Passed)
	assert.Equal(t, `text of "h1" "Admin Dashboard" matches "Admin"`, o.Reason)

	o = Evaluate(result, s.ElementTextMatches("h1", "관리자", "operator"))
	assert.False(t, o.Passed)
	assert.Equal(t, `text of "h1" "Admin Dashboard" matches none of "관리자" | "operator"`, o.Reason)

	exp := s.ElementTextMatches("h1", "^admin dashboard$")
	assert.False(t, Evaluate(result, exp).Passed)
	exp.CaseInsensitive = true
	assert.True(t, Evaluate(result, exp).Passed)
}

func TestTextMatchesNormalizesUnicode(t *testing.T) {
	decomposed := "\u1100\u1161\u11a8" // 각 as conjoining jamo
	result := s.ExecutionResult{Capture: &s.Capture{Title: "미션 " + decomposed}}
	assert.True(t, Evaluate(result, s.TextMatches(s.SourceTitle, "미션 각")).Passed)
}

func TestTextSources(t *testing.T) {
	page := pageResult()
	assert.True(t, Evaluate(page, s.TextMatches(s.SourceBody, `Bells: \d+`)).Passed)
	assert.False(t, Evaluate(page, s.TextMatches(s.SourceBody, "Saved")).Passed, "hidden text is not page text")
	assert.True(t, Evaluate(page, s.ElementTextMatches("h1", "나의 섬")).Passed)

	noTitle := s.ExecutionResult{Capture: &s.Capture{DOM: islandPage}}
	assert.True(t, Evaluate(noTitle, s.TextMatches(s.SourceTitle, "^My Island$")).Passed)

	api := bodyResult(200, `{"result":{"passed":true}}`)
	assert.True(t, Evaluate(api, s.TextMatches(s.SourceBody, `"passed":true`)).Passed)

	o := Evaluate(page, s.TextMatches(s.SourceTitle, "("))
	assert.False(t, o.Passed)
	assert.Contains(t, o.Reason, `invalid pattern "("`)
}

func TestElementVisibleAndClass(t *testing.T) {
	page := pageResult()
	assert.True(t, Evaluate(page, s.ElementVisible(".panel")).Passed)

	o := Evaluate(page, s.ElementVisible("#toast"))
	assert.False(t, o.Passed)
	assert.Equal(t, `element "#toast" is present but hidden`, o.Reason)

	assert.True(t, Evaluate(page, s.ElementHasClass(`a:has-text("Shop")`, "active")).Passed)
	o = Evaluate(page, s.ElementHasClass(`a:has-text("Bag")`, "active"))
	assert.False(t, o.Passed)
	assert.Equal(t, `element "a:has-text(\"Bag\")" does not have class "active" (class="tab")`, o.Reason)

	o = Evaluate(bodyResult(200, "{}"), s.ElementVisible("h1"))
	assert.False(t, o.Passed)
	assert.Equal(t, "no DOM snapshot was captured", o.Reason)
}

func TestAttributeWithinBoundUsesDeclaredInterval(t *testing.T) {
	page := pageResult()
	o := Evaluate(page, s.AttributeWithinBound(".panel", "width", s.AtMost(118)))
	assert.True(t, o.Passed)
	assert.Equal(t, `width of ".panel" = 118 is within (-inf, 118]`, o.Reason)

	o = Evaluate(page, s.AttributeWithinBound(".panel", "width", s.LessThan(118)))
	assert.False(t, o.Passed)
	assert.Equal(t, `width of ".panel" = 118 is outside (-inf, 118)`, o.Reason)

	api := bodyResult(200, `{"bells":300}`)
	assert.True(t, Evaluate(api, s.AttributeWithinBound("", "duration_ms", s.LessThan(500))).Passed)
	assert.True(t, Evaluate(api, s.AttributeWithinBound("", "status", s.Between(200, 299))).Passed)
	jsonExp := s.Expectation{Kind: s.ExpectAttributeWithinBound, JSONPath: "bells", Bound: boundPtr(s.AtLeast(100))}
	assert.True(t, Evaluate(api, jsonExp).Passed)

	o = Evaluate(api, s.AttributeWithinBound("", "latency", s.AtMost(1)))
	assert.False(t, o.Passed)
	assert.Contains(t, o.Reason, `unknown metric "latency"`)
}

func TestCountEquals(t *testing.T) {
	o := Evaluate(pageResult(), s.CountEquals("li.item", 3))
	assert.False(t, o.Passed)
	assert.Equal(t, `expected 3 elements matching "li.item", found 2`, o.Reason)
	assert.True(t, Evaluate(pageResult(), s.CountEquals("#missing", 0)).Passed)

	api := bodyResult(200, `{"data":[{"id":1},{"id":2}]}`)
	assert.True(t, Evaluate(api, s.JSONCountEquals("data", 2)).Passed)
	o = Evaluate(api, s.JSONCountEquals("data.0", 1))
	assert.False(t, o.Passed)
	assert.Contains(t, o.Reason, "is not an array")
}

func TestJSONPathEquals(t *testing.T) {
	api := bodyResult(200, `{"result":{"passed":false,"errors":[{"line":3}]}}`)
	assert.True(t, Evaluate(api, s.JSONPathEquals("result.errors.0.line", ldvalue.Int(3))).Passed)

	o := Evaluate(api, s.JSONPathEquals("result.passed", ldvalue.Bool(true)))
	assert.False(t, o.Passed)
	assert.Equal(t, "expected $.result.passed to be true, received false", o.Reason)

	o = Evaluate(api, s.JSONPathEquals("result.score", ldvalue.Int(1)))
	assert.False(t, o.Passed)
	assert.Equal(t, `$.result has no key "score"`, o.Reason)

	o = Evaluate(bodyResult(200, "<html>"), s.JSONPathEquals("a", ldvalue.Null()))
	assert.False(t, o.Passed)
	assert.Contains(t, o.Reason, "not valid JSON")
}

func TestNoConsoleErrors(t *testing.T) {
	result := s.ExecutionResult{Capture: &s.Capture{Console: []s.ConsoleEvent{
		{Type: "log", Text: "ready"},
		{Type: "error", Text: "Failed to load resource: 404 favicon.ico"},
	}}}
	o := Evaluate(result, s.NoConsoleErrors())
	assert.False(t, o.Passed)
	assert.Equal(t, `1 console error(s): "Failed to load resource: 404 favicon.ico"`, o.Reason)

	assert.True(t, Evaluate(result, s.NoConsoleErrors("supabase", "500")).Passed)
	result.Capture.Console = append(result.Capture.Console, s.ConsoleEvent{Type: "exception", Text: "Supabase error: 500"})
	assert.False(t, Evaluate(result, s.NoConsoleErrors("supabase")).Passed)
}

func TestPixelAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	result := s.ExecutionResult{Capture: &s.Capture{Status: 200, Body: buf.Bytes()}}

	o := Evaluate(result, s.PixelAlpha(0, 0, s.Exactly(0)))
	assert.True(t, o.Passed)
	assert.Equal(t, "alpha at (0,0) = 0 is within [0, 0]", o.Reason)

	assert.False(t, Evaluate(result, s.PixelAlpha(1, 1, s.AtMost(10))).Passed)
	o = Evaluate(result, s.PixelAlpha(9, 9, s.Exactly(0)))
	assert.False(t, o.Passed)
	assert.Contains(t, o.Reason, "outside the 4x4 png image")

	assert.False(t, Evaluate(bodyResult(200, "not an image"), s.PixelAlpha(0, 0, s.Exactly(0))).Passed)
}

func TestNoCaptureAndInvalidExpectation(t *testing.T) {
	o := Evaluate(s.ExecutionResult{}, s.StatusEquals(200))
	assert.False(t, o.Passed)
	assert.Equal(t, "no capture was recorded for this step", o.Reason)

	o = Evaluate(pageResult(), s.Expectation{Kind: "looksNice"})
	assert.False(t, o.Passed)
	assert.Contains(t, o.Reason, "invalid expectation")
}

func boundPtr(b s.Bound) *s.Bound { return &b }
