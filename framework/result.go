package framework

import (
	"strings"
)

// TestID identifies a scenario instance or one of its steps, e.g.
// {"story-page", "mobile", "open story"}.
type TestID struct {
	Path []string
}

func NewTestID(path ...string) TestID {
	return TestID{Path: append([]string(nil), path...)}
}

// Plus returns a new TestID with the given name appended. The receiver is not modified.
func (t TestID) Plus(name string) TestID {
	p := make([]string, 0, len(t.Path)+1)
	p = append(p, t.Path...)
	return TestID{Path: append(p, name)}
}

func (t TestID) String() string {
	return strings.Join(t.Path, "/")
}
