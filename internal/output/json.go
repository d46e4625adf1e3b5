package output

import (
	"encoding/json"
	"io"

	"github.com/ghowland/runman/internal/report"
)

// JSONRenderer emits structured execution data.
type JSONRenderer struct {
	out io.Writer
}

// NewJSON creates a JSON renderer writing to out.
func NewJSON(out io.Writer) *JSONRenderer {
	return &JSONRenderer{out: out}
}

// RenderList encodes the job listing.
func (j *JSONRenderer) RenderList(entries []ListEntry) error {
	return j.encode(entries)
}

// RenderResult encodes a job result.
func (j *JSONRenderer) RenderResult(result *report.JobResult) error {
	return j.encode(result)
}

// RenderDocument encodes an arbitrary document.
func (j *JSONRenderer) RenderDocument(doc any) error {
	return j.encode(normalize(doc))
}

func (j *JSONRenderer) encode(v any) error {
	enc := json.NewEncoder(j.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
