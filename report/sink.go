// Package report writes a finished Report as JUnit XML, JSON or a console summary.
//
// Writers only read the report. Output depends on nothing but the report itself, so
// writing the same report twice gives identical bytes.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nookcoding/e2e-harness/scenariodef"
)

type Format string

const (
	FormatJUnit   Format = "junit"
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

// fileNames are the artifact names used by WriteFiles. Console output has no file.
var fileNames = map[Format]string{
	FormatJUnit: "junit.xml",
	FormatJSON:  "report.json",
}

func ParseFormats(names []string) ([]Format, error) {
	var ret []Format
	seen := make(map[Format]bool)
	for _, n := range names {
		for _, part := range strings.Split(n, ",") {
			f := Format(strings.ToLower(strings.TrimSpace(part)))
			if f == "" {
				continue
			}
			switch f {
			case FormatJUnit, FormatJSON, FormatConsole:
			default:
				return nil, fmt.Errorf("unknown report format %q (expected junit, json or console)", part)
			}
			if !seen[f] {
				seen[f] = true
				ret = append(ret, f)
			}
		}
	}
	return ret, nil
}

// Sink renders reports.
type Sink struct {
	// NoColor disables colored console output even when writing to a terminal.
	NoColor bool
	// ShowPassed lists passing steps in the console summary, not just failures.
	ShowPassed bool
}

func (s Sink) Write(w io.Writer, r scenariodef.Report, f Format) error {
	switch f {
	case FormatJUnit:
		return writeJUnit(w, r)
	case FormatJSON:
		return writeJSON(w, r)
	case FormatConsole:
		return s.writeConsole(w, r)
	default:
		return fmt.Errorf("unknown report format %q", f)
	}
}

// WriteFiles writes each file format into dir and returns the paths written. Console output
// goes nowhere here; write it to a terminal with Write.
func (s Sink) WriteFiles(dir string, r scenariodef.Report, formats []Format) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var paths []string
	for _, f := range formats {
		name, ok := fileNames[f]
		if !ok {
			continue
		}
		path := filepath.Join(dir, name)
		if err := s.writeFile(path, r, f); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (s Sink) writeFile(path string, r scenariodef.Report, f Format) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := s.Write(file, r, f); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
