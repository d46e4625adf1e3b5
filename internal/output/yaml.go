package output

import (
	"io"

	"github.com/ghowland/runman/internal/report"
	"gopkg.in/yaml.v3"
)

// YAMLRenderer emits YAML documents.
type YAMLRenderer struct {
	out io.Writer
}

// NewYAML creates a YAML renderer writing to out.
func NewYAML(out io.Writer) *YAMLRenderer {
	return &YAMLRenderer{out: out}
}

func (y *YAMLRenderer) RenderList(entries []ListEntry) error {
	return y.encode(entries)
}

func (y *YAMLRenderer) RenderResult(result *report.JobResult) error {
	return y.encode(result)
}

func (y *YAMLRenderer) RenderDocument(doc any) error {
	return y.encode(doc)
}

func (y *YAMLRenderer) encode(v any) error {
	enc := yaml.NewEncoder(y.out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
