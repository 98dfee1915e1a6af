package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/nookcoding/e2e-harness/framework"
)

// ConsoleTestLogger prints progress as steps run. Scenario instances run in parallel, so
// each call writes its lines while holding the lock.
type ConsoleTestLogger struct {
	Out                  io.Writer
	DebugOutputOnFailure bool
	DebugOutputOnSuccess bool
	NoColor              bool
	lock                 sync.Mutex
}

func (c *ConsoleTestLogger) colored(attr color.Attribute, s string) string {
	if c.NoColor {
		return s
	}
	col := color.New(attr)
	col.EnableColor()
	return col.Sprint(s)
}

func (c *ConsoleTestLogger) TestStarted(id framework.TestID) {
	c.lock.Lock()
	defer c.lock.Unlock()
	fmt.Fprintf(c.Out, "[%s]\n", id)
}

func (c *ConsoleTestLogger) TestError(id framework.TestID, err error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	for _, line := range strings.Split(err.Error(), "\n") {
		fmt.Fprintf(c.Out, "  %s\n", line)
	}
}

func (c *ConsoleTestLogger) TestFinished(id framework.TestID, failed bool, debugOutput framework.CapturedOutput) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if failed {
		fmt.Fprintf(c.Out, "  %s: %s\n", c.colored(color.FgRed, "FAILED"), id)
	}
	if len(debugOutput) > 0 &&
		((failed && c.DebugOutputOnFailure) || (!failed && c.DebugOutputOnSuccess)) {
		debugOutput.Dump(c.Out, "    DEBUG ")
	}
}

func (c *ConsoleTestLogger) TestSkipped(id framework.TestID, reason string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	label := c.colored(color.FgYellow, "SKIPPED")
	if reason == "" {
		fmt.Fprintf(c.Out, "  %s: %s\n", label, id)
	} else {
		fmt.Fprintf(c.Out, "  %s: %s (%s)\n", label, id, reason)
	}
}
