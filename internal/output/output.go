// Package output renders run specs, job results and documents for the
// terminal or for other programs.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/ghowland/runman/internal/report"
)

// Supported output formats.
const (
	FormatPretty = "pretty"
	FormatJSON   = "json"
	FormatYAML   = "yaml"
)

// ListEntry is one job of a run spec listing.
type ListEntry struct {
	Key      string `json:"key" yaml:"key"`
	Location string `json:"location" yaml:"location"`
	Remote   bool   `json:"remote" yaml:"remote"`
}

// Renderer writes command results in one format.
type Renderer interface {
	RenderList(entries []ListEntry) error
	RenderResult(result *report.JobResult) error
	RenderDocument(doc any) error
}

// New returns the renderer for format writing to out.
func New(format string, out io.Writer) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatPretty:
		return NewPretty(out), nil
	case FormatJSON:
		return NewJSON(out), nil
	case FormatYAML:
		return NewYAML(out), nil
	default:
		return nil, fmt.Errorf("unknown format %q (want %s, %s or %s)", format, FormatPretty, FormatJSON, FormatYAML)
	}
}

// normalize converts generic YAML documents into values encoding/json
// accepts: maps with non-string keys get their keys formatted.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}
