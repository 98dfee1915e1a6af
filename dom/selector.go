// Package dom parses element selectors and answers questions about HTML snapshots: page
// title, visible text, which elements match a selector, and whether they are visible.
//
// The same Selector type is used against a live browser page and against a snapshot, so a
// selector means the same thing whichever target captured the page.
package dom

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/text/unicode/norm"
)

var hasTextPattern = regexp.MustCompile(`:has-text\(\s*("(?:[^"\\]|\\.)*"|'[^']*')\s*\)`)

// Selector is a CSS selector with an optional text filter, written as
// `button:has-text("다음")`. The filter keeps elements whose text contains the given
// string, ignoring case and runs of whitespace.
type Selector struct {
	Raw     string
	CSS     string
	HasText string

	matcher cascadia.Selector
}

func ParseSelector(raw string) (Selector, error) {
	s := Selector{Raw: raw, CSS: strings.TrimSpace(raw)}
	if m := hasTextPattern.FindStringSubmatchIndex(s.CSS); m != nil {
		quoted := s.CSS[m[2]:m[3]]
		var text string
		if strings.HasPrefix(quoted, "'") {
			text = quoted[1 : len(quoted)-1]
		} else {
			unquoted, err := strconv.Unquote(quoted)
			if err != nil {
				return s, fmt.Errorf("invalid :has-text argument in %q", raw)
			}
			text = unquoted
		}
		s.HasText = text
		s.CSS = strings.TrimSpace(s.CSS[:m[0]] + s.CSS[m[1]:])
		if hasTextPattern.MatchString(s.CSS) {
			return s, fmt.Errorf("selector %q has more than one :has-text filter", raw)
		}
	}
	if s.CSS == "" {
		s.CSS = "*"
	}
	matcher, err := cascadia.Compile(s.CSS)
	if err != nil {
		return s, fmt.Errorf("invalid selector %q: %w", raw, err)
	}
	s.matcher = matcher
	return s, nil
}

// MatchesText reports whether an element with the given text content passes the text
// filter. A selector without a filter matches any text.
func (s Selector) MatchesText(text string) bool {
	if s.HasText == "" {
		return true
	}
	return strings.Contains(foldText(text), foldText(s.HasText))
}

func (s Selector) String() string { return s.Raw }

// NormalizeSpace collapses runs of whitespace into single spaces and trims the result.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func foldText(s string) string {
	return strings.ToLower(norm.NFC.String(NormalizeSpace(s)))
}
