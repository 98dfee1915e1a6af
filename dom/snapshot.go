package dom

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// HiddenMarker is set by the browser target on elements whose computed style makes them
// invisible, so that a static snapshot can still answer visibility questions.
const HiddenMarker = "data-e2e-hidden"

var nonRenderedTags = map[string]bool{
	"head": true, "script": true, "style": true, "template": true, "noscript": true, "meta": true, "link": true, "title": true,
}

// Snapshot is a parsed HTML document.
type Snapshot struct {
	doc *goquery.Document
}

func Parse(htmlText string) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil, err
	}
	return &Snapshot{doc: doc}, nil
}

func (s *Snapshot) Title() string {
	return NormalizeSpace(s.doc.Find("title").First().Text())
}

// Text returns the rendered text of the body, excluding script and style content and
// elements that are hidden.
func (s *Snapshot) Text() string {
	body := s.doc.Find("body").Clone()
	body.Find("script, style, template, noscript").Remove()
	body.Find("*").FilterFunction(func(_ int, el *goquery.Selection) bool {
		return hiddenBySelf(el)
	}).Remove()
	return NormalizeSpace(body.Text())
}

// Find returns the elements matching sel, in document order.
func (s *Snapshot) Find(sel Selector) *goquery.Selection {
	found := s.doc.FindMatcher(sel.matcher)
	if sel.HasText == "" {
		return found
	}
	return found.FilterFunction(func(_ int, el *goquery.Selection) bool {
		return sel.MatchesText(el.Text())
	})
}

// Visible reports whether el would be rendered: neither it nor any ancestor is hidden by
// attribute, inline style or the computed-hidden marker.
func Visible(el *goquery.Selection) bool {
	if el.Length() == 0 {
		return false
	}
	for n := el.First(); n.Length() > 0; n = n.Parent() {
		if n.Nodes[0].Type != html.ElementNode {
			break
		}
		if hiddenBySelf(n) {
			return false
		}
	}
	return true
}

func hiddenBySelf(el *goquery.Selection) bool {
	if nonRenderedTags[goquery.NodeName(el)] {
		return true
	}
	if _, ok := el.Attr("hidden"); ok {
		return true
	}
	if _, ok := el.Attr(HiddenMarker); ok {
		return true
	}
	if v, ok := el.Attr("aria-hidden"); ok && strings.EqualFold(v, "true") {
		return true
	}
	if v, ok := el.Attr("type"); ok && goquery.NodeName(el) == "input" && strings.EqualFold(v, "hidden") {
		return true
	}
	style := InlineStyle(el)
	return style["display"] == "none" || style["visibility"] == "hidden"
}

// HasClass reports whether el carries class in its class attribute.
func HasClass(el *goquery.Selection, class string) bool {
	return el.First().HasClass(class)
}

// Attr returns the named attribute of the first element of el. If there is no such
// attribute, the inline style property of the same name is returned instead.
func Attr(el *goquery.Selection, name string) (string, bool) {
	first := el.First()
	if v, ok := first.Attr(name); ok {
		return v, true
	}
	v, ok := InlineStyle(first)[strings.ToLower(name)]
	return v, ok
}

// InlineStyle parses the style attribute of the first element of el into lower-cased
// property names and trimmed values.
func InlineStyle(el *goquery.Selection) map[string]string {
	raw, ok := el.First().Attr("style")
	if !ok {
		return nil
	}
	props := make(map[string]string)
	for _, decl := range strings.Split(raw, ";") {
		name, value, found := strings.Cut(decl, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "!important"))
		props[strings.ToLower(strings.TrimSpace(name))] = strings.ToLower(value)
	}
	return props
}

// Text returns the whitespace-normalised text content of the first element of el.
func Text(el *goquery.Selection) string {
	return NormalizeSpace(el.First().Text())
}

// ParseNumber reads a numeric attribute or CSS value, ignoring a trailing unit such as
// "px" or "%".
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	end := len(s)
	for end > 0 {
		c := s[end-1]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '%' {
			end--
			continue
		}
		break
	}
	return strconv.ParseFloat(strings.TrimSpace(s[:end]), 64)
}
