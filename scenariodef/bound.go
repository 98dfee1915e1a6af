package scenariodef

import (
	"strconv"
	"strings"
)

// Bound is a numeric interval. Each end is closed unless the matching Exclusive flag is
// set; a nil end is unbounded.
type Bound struct {
	Min          *float64 `json:"min,omitempty"`
	Max          *float64 `json:"max,omitempty"`
	MinExclusive bool     `json:"minExclusive,omitempty"`
	MaxExclusive bool     `json:"maxExclusive,omitempty"`
}

func AtMost(max float64) Bound      { return Bound{Max: &max} }
func LessThan(max float64) Bound    { return Bound{Max: &max, MaxExclusive: true} }
func AtLeast(min float64) Bound     { return Bound{Min: &min} }
func GreaterThan(min float64) Bound { return Bound{Min: &min, MinExclusive: true} }
func Between(min, max float64) Bound {
	return Bound{Min: &min, Max: &max}
}
func Exactly(v float64) Bound { return Between(v, v) }

func (b Bound) Contains(v float64) bool {
	if b.Min != nil {
		if b.MinExclusive && !(v > *b.Min) {
			return false
		}
		if !b.MinExclusive && !(v >= *b.Min) {
			return false
		}
	}
	if b.Max != nil {
		if b.MaxExclusive && !(v < *b.Max) {
			return false
		}
		if !b.MaxExclusive && !(v <= *b.Max) {
			return false
		}
	}
	return true
}

// String renders the bound in interval notation, e.g. "(-inf, 120]".
func (b Bound) String() string {
	var sb strings.Builder
	if b.Min == nil {
		sb.WriteString("(-inf")
	} else {
		if b.MinExclusive {
			sb.WriteString("(")
		} else {
			sb.WriteString("[")
		}
		sb.WriteString(formatNumber(*b.Min))
	}
	sb.WriteString(", ")
	if b.Max == nil {
		sb.WriteString("+inf)")
	} else {
		sb.WriteString(formatNumber(*b.Max))
		if b.MaxExclusive {
			sb.WriteString(")")
		} else {
			sb.WriteString("]")
		}
	}
	return sb.String()
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
