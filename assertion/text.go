package assertion

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/nookcoding/e2e-harness/dom"
	"github.com/nookcoding/e2e-harness/scenariodef"
)

func (ev *evaluation) textMatches(exp scenariodef.Expectation) (bool, string) {
	label, text, err := ev.textFor(exp)
	if err != nil {
		return false, err.Error()
	}
	patterns, err := compilePatterns(exp.Patterns, exp.CaseInsensitive)
	if err != nil {
		return false, err.Error()
	}
	normalized := norm.NFC.String(text)
	for i, p := range patterns {
		if p.MatchString(normalized) {
			return true, fmt.Sprintf("%s %s matches %q", label, quoteText(text), exp.Patterns[i])
		}
	}
	if len(patterns) == 1 {
		return false, fmt.Sprintf("%s %s does not match %q", label, quoteText(text), exp.Patterns[0])
	}
	return false, fmt.Sprintf("%s %s matches none of %s", label, quoteText(text), quotePatterns(exp.Patterns))
}

func (ev *evaluation) textFor(exp scenariodef.Expectation) (label, text string, err error) {
	c := ev.capture
	switch exp.Source {
	case scenariodef.SourceTitle:
		if c.Title != "" {
			return "title", c.Title, nil
		}
		doc, err := ev.document()
		if err != nil {
			return "", "", fmt.Errorf("no page title was captured")
		}
		return "title", doc.Title(), nil
	case scenariodef.SourceElement:
		el, err := ev.find(exp.Selector)
		if err != nil {
			return "", "", err
		}
		return fmt.Sprintf("text of %q", exp.Selector), dom.Text(el), nil
	default:
		if exp.Selector != "" {
			el, err := ev.find(exp.Selector)
			if err != nil {
				return "", "", err
			}
			return fmt.Sprintf("text of %q", exp.Selector), dom.Text(el), nil
		}
		switch {
		case c.Text != "":
			return "page text", c.Text, nil
		case c.HasDOM():
			doc, err := ev.document()
			if err != nil {
				return "", "", err
			}
			return "page text", doc.Text(), nil
		default:
			return "body", string(c.Body), nil
		}
	}
}

// compilePatterns compiles the alternatives of a text expectation. Patterns are normalised
// to NFC so that composed and decomposed forms of the same text compare equal.
func compilePatterns(patterns []string, caseInsensitive bool) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		expr := norm.NFC.String(p)
		if caseInsensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %s", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func quotePatterns(patterns []string) string {
	q := make([]string, 0, len(patterns))
	for _, p := range patterns {
		q = append(q, fmt.Sprintf("%q", p))
	}
	return strings.Join(q, " | ")
}
