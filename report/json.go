package report

import (
	"encoding/json"
	"io"

	"github.com/nookcoding/e2e-harness/scenariodef"
)

func writeJSON(w io.Writer, r scenariodef.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}
