package scenariodef

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

type ExpectationKind string

const (
	ExpectStatusEquals         ExpectationKind = "statusEquals"
	ExpectTextMatches          ExpectationKind = "textMatches"
	ExpectElementVisible       ExpectationKind = "elementVisible"
	ExpectElementHasClass      ExpectationKind = "elementHasClass"
	ExpectAttributeWithinBound ExpectationKind = "attributeWithinBound"
	ExpectCountEquals          ExpectationKind = "countEquals"
	ExpectJSONPathEquals       ExpectationKind = "jsonPathEquals"
	ExpectNoConsoleErrors      ExpectationKind = "noConsoleErrors"
	ExpectPixelAlpha           ExpectationKind = "pixelAlpha"
)

// TextSource selects which captured text a textMatches expectation looks at.
type TextSource string

const (
	// SourceTitle is the page title.
	SourceTitle TextSource = "title"
	// SourceBody is the visible page text for navigations, or the raw body for requests.
	SourceBody TextSource = "body"
	// SourceElement is the text of the element matched by Selector.
	SourceElement TextSource = "element"
)

// Expectation is a declarative condition evaluated against a step's captured result.
// Which fields are meaningful depends on Kind.
type Expectation struct {
	Kind ExpectationKind `json:"kind"`

	Code int `json:"code,omitempty"`

	// Patterns are regular expressions; a textMatches expectation passes if any one matches.
	Patterns        []string   `json:"patterns,omitempty"`
	CaseInsensitive bool       `json:"caseInsensitive,omitempty"`
	Source          TextSource `json:"source,omitempty"`

	Selector  string `json:"selector,omitempty"`
	Class     string `json:"class,omitempty"`
	Attribute string `json:"attribute,omitempty"`

	// JSONPath is a dot-separated path into a JSON response body, e.g. "data.0.name".
	JSONPath string `json:"jsonPath,omitempty"`

	Bound *Bound              `json:"bound,omitempty"`
	Count ldvalue.OptionalInt `json:"count,omitempty"`
	Value ldvalue.Value       `json:"value,omitempty"`

	X int `json:"x,omitempty"`
	Y int `json:"y,omitempty"`
}

func StatusEquals(code int) Expectation {
	return Expectation{Kind: ExpectStatusEquals, Code: code}
}

func TextMatches(source TextSource, patterns ...string) Expectation {
	return Expectation{Kind: ExpectTextMatches, Source: source, Patterns: patterns}
}

func ElementTextMatches(selector string, patterns ...string) Expectation {
	return Expectation{Kind: ExpectTextMatches, Source: SourceElement, Selector: selector, Patterns: patterns}
}

func ElementVisible(selector string) Expectation {
	return Expectation{Kind: ExpectElementVisible, Selector: selector}
}

func ElementHasClass(selector, class string) Expectation {
	return Expectation{Kind: ExpectElementHasClass, Selector: selector, Class: class}
}

// AttributeWithinBound checks a numeric attribute. With a selector, attribute names an
// element attribute or inline style property; without one it names a capture metric
// ("status", "duration_ms", "body_bytes") or, with JSONPath set, a JSON body value.
func AttributeWithinBound(selector, attribute string, bound Bound) Expectation {
	return Expectation{Kind: ExpectAttributeWithinBound, Selector: selector, Attribute: attribute, Bound: &bound}
}

func CountEquals(selector string, n int) Expectation {
	return Expectation{Kind: ExpectCountEquals, Selector: selector, Count: ldvalue.NewOptionalInt(n)}
}

func JSONCountEquals(path string, n int) Expectation {
	return Expectation{Kind: ExpectCountEquals, JSONPath: path, Count: ldvalue.NewOptionalInt(n)}
}

func JSONPathEquals(path string, value ldvalue.Value) Expectation {
	return Expectation{Kind: ExpectJSONPathEquals, JSONPath: path, Value: value}
}

func NoConsoleErrors(patterns ...string) Expectation {
	return Expectation{Kind: ExpectNoConsoleErrors, Patterns: patterns}
}

func PixelAlpha(x, y int, bound Bound) Expectation {
	return Expectation{Kind: ExpectPixelAlpha, X: x, Y: y, Bound: &bound}
}

func (e Expectation) Validate() error {
	switch e.Kind {
	case ExpectStatusEquals:
		if e.Code < 100 || e.Code > 599 {
			return fmt.Errorf("statusEquals has invalid code %d", e.Code)
		}
	case ExpectTextMatches:
		if len(e.Patterns) == 0 {
			return errors.New("textMatches requires at least one pattern")
		}
		if e.Source == SourceElement && e.Selector == "" {
			return errors.New("textMatches with element source requires selector")
		}
	case ExpectElementVisible:
		if e.Selector == "" {
			return errors.New("elementVisible requires selector")
		}
	case ExpectElementHasClass:
		if e.Selector == "" || e.Class == "" {
			return errors.New("elementHasClass requires selector and class")
		}
	case ExpectAttributeWithinBound:
		if e.Attribute == "" && e.JSONPath == "" {
			return errors.New("attributeWithinBound requires attribute or jsonPath")
		}
		if e.Bound == nil {
			return errors.New("attributeWithinBound requires bound")
		}
	case ExpectCountEquals:
		if e.Selector == "" && e.JSONPath == "" {
			return errors.New("countEquals requires selector or jsonPath")
		}
		if !e.Count.IsDefined() {
			return errors.New("countEquals requires count")
		}
	case ExpectJSONPathEquals:
		if e.JSONPath == "" {
			return errors.New("jsonPathEquals requires jsonPath")
		}
	case ExpectNoConsoleErrors:
	case ExpectPixelAlpha:
		if e.Bound == nil {
			return errors.New("pixelAlpha requires bound")
		}
	default:
		return fmt.Errorf("unknown expectation kind %q", e.Kind)
	}
	return nil
}

// String describes the expectation in a form suitable for reports.
func (e Expectation) String() string {
	switch e.Kind {
	case ExpectStatusEquals:
		return fmt.Sprintf("statusEquals(%d)", e.Code)
	case ExpectTextMatches:
		target := string(e.Source)
		if e.Selector != "" {
			target = e.Selector
		}
		if target == "" {
			target = string(SourceBody)
		}
		return fmt.Sprintf("textMatches(%s, %s)", target, quoteAll(e.Patterns))
	case ExpectElementVisible:
		return fmt.Sprintf("elementVisible(%q)", e.Selector)
	case ExpectElementHasClass:
		return fmt.Sprintf("elementHasClass(%q, %q)", e.Selector, e.Class)
	case ExpectAttributeWithinBound:
		subject := e.Attribute
		if e.JSONPath != "" {
			subject = "$." + e.JSONPath
		}
		if e.Selector != "" {
			subject = e.Selector + "@" + subject
		}
		return fmt.Sprintf("attributeWithinBound(%s, %s)", subject, e.Bound)
	case ExpectCountEquals:
		collection := e.Selector
		if collection == "" {
			collection = "$." + e.JSONPath
		}
		return fmt.Sprintf("countEquals(%s, %d)", collection, e.Count.IntValue())
	case ExpectJSONPathEquals:
		return fmt.Sprintf("jsonPathEquals($.%s, %s)", e.JSONPath, e.Value.JSONString())
	case ExpectNoConsoleErrors:
		if len(e.Patterns) == 0 {
			return "noConsoleErrors()"
		}
		return fmt.Sprintf("noConsoleErrors(%s)", quoteAll(e.Patterns))
	case ExpectPixelAlpha:
		return fmt.Sprintf("pixelAlpha(%d,%d, %s)", e.X, e.Y, e.Bound)
	default:
		return string(e.Kind)
	}
}

func quoteAll(ss []string) string {
	q := make([]string, 0, len(ss))
	for _, s := range ss {
		q = append(q, strconv.Quote(s))
	}
	return strings.Join(q, " | ")
}
