package assertion

import (
	"fmt"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/nookcoding/e2e-harness/dom"
	"github.com/nookcoding/e2e-harness/scenariodef"
)

// findAll returns every element matching selector; an empty selection is not an error.
func (ev *evaluation) findAll(selector string) (*goquery.Selection, error) {
	sel, err := dom.ParseSelector(selector)
	if err != nil {
		return nil, err
	}
	doc, err := ev.document()
	if err != nil {
		return nil, err
	}
	return doc.Find(sel), nil
}

func (ev *evaluation) find(selector string) (*goquery.Selection, error) {
	found, err := ev.findAll(selector)
	if err != nil {
		return nil, err
	}
	if found.Length() == 0 {
		return nil, fmt.Errorf("no element matches %q", selector)
	}
	return found, nil
}

func (ev *evaluation) elementVisible(exp scenariodef.Expectation) (bool, string) {
	found, err := ev.find(exp.Selector)
	if err != nil {
		return false, err.Error()
	}
	visible := found.FilterFunction(func(_ int, el *goquery.Selection) bool { return dom.Visible(el) })
	if visible.Length() == 0 {
		return false, fmt.Sprintf("element %q is present but hidden", exp.Selector)
	}
	return true, fmt.Sprintf("element %q is visible", exp.Selector)
}

func (ev *evaluation) elementHasClass(exp scenariodef.Expectation) (bool, string) {
	found, err := ev.find(exp.Selector)
	if err != nil {
		return false, err.Error()
	}
	if dom.HasClass(found, exp.Class) {
		return true, fmt.Sprintf("element %q has class %q", exp.Selector, exp.Class)
	}
	classes, _ := found.First().Attr("class")
	return false, fmt.Sprintf("element %q does not have class %q (class=%q)", exp.Selector, exp.Class, classes)
}

func (ev *evaluation) attributeWithinBound(exp scenariodef.Expectation) (bool, string) {
	subject, value, err := ev.numericSubject(exp)
	if err != nil {
		return false, err.Error()
	}
	if exp.Bound.Contains(value) {
		return true, fmt.Sprintf("%s = %s is within %s", subject, formatFloat(value), exp.Bound)
	}
	return false, fmt.Sprintf("%s = %s is outside %s", subject, formatFloat(value), exp.Bound)
}

func (ev *evaluation) numericSubject(exp scenariodef.Expectation) (string, float64, error) {
	c := ev.capture
	switch {
	case exp.Selector != "":
		found, err := ev.find(exp.Selector)
		if err != nil {
			return "", 0, err
		}
		subject := fmt.Sprintf("%s of %q", exp.Attribute, exp.Selector)
		raw, ok := dom.Attr(found, exp.Attribute)
		if !ok {
			return "", 0, fmt.Errorf("element %q has no attribute or style property %q", exp.Selector, exp.Attribute)
		}
		v, err := dom.ParseNumber(raw)
		if err != nil {
			return "", 0, fmt.Errorf("%s is not numeric: %q", subject, raw)
		}
		return subject, v, nil
	case exp.JSONPath != "":
		v, err := ev.jsonValue(exp.JSONPath)
		if err != nil {
			return "", 0, err
		}
		if v.Type() != ldvalue.NumberType {
			return "", 0, fmt.Errorf("$.%s is not a number: %s", exp.JSONPath, v.JSONString())
		}
		return "$." + exp.JSONPath, v.Float64Value(), nil
	}
	switch exp.Attribute {
	case "status":
		return "status", float64(c.Status), nil
	case "duration_ms":
		return "duration_ms", float64(c.Elapsed.Milliseconds()), nil
	case "body_bytes":
		return "body_bytes", float64(len(c.Body)), nil
	default:
		return "", 0, fmt.Errorf("unknown metric %q; use status, duration_ms or body_bytes, or give a selector", exp.Attribute)
	}
}

func (ev *evaluation) countEquals(exp scenariodef.Expectation) (bool, string) {
	want := exp.Count.IntValue()
	var got int
	var subject string
	if exp.Selector != "" {
		found, err := ev.findAll(exp.Selector)
		if err != nil {
			return false, err.Error()
		}
		got, subject = found.Length(), fmt.Sprintf("elements matching %q", exp.Selector)
	} else {
		v, err := ev.jsonValue(exp.JSONPath)
		if err != nil {
			return false, err.Error()
		}
		if v.Type() != ldvalue.ArrayType {
			return false, fmt.Sprintf("$.%s is not an array: %s", exp.JSONPath, quoteText(v.JSONString()))
		}
		got, subject = v.Count(), "items in $."+exp.JSONPath
	}
	if got != want {
		return false, fmt.Sprintf("expected %d %s, found %d", want, subject, got)
	}
	return true, fmt.Sprintf("found %d %s", got, subject)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
