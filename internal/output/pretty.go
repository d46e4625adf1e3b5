package output

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ghowland/runman/internal/report"
	"gopkg.in/yaml.v3"
)

// PrettyRenderer renders results in a human-friendly format.
type PrettyRenderer struct {
	out io.Writer
}

// NewPretty creates a PrettyRenderer writing to the provided writer.
func NewPretty(out io.Writer) *PrettyRenderer {
	return &PrettyRenderer{out: out}
}

// RenderList renders the jobs of a run spec.
func (p *PrettyRenderer) RenderList(entries []ListEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(p.out, "No jobs matched")
		return err
	}
	for _, entry := range entries {
		if _, err := fmt.Fprintf(p.out, "• %s\n", decorateName(entry.Key, entry.Location)); err != nil {
			return err
		}
	}
	return nil
}

// RenderResult shows the outcome of each step with a summary line.
func (p *PrettyRenderer) RenderResult(result *report.JobResult) error {
	var buffer bytes.Buffer

	title := result.Job
	if result.Name != "" {
		title = decorateName(result.Name, result.Job)
	}
	fmt.Fprintf(&buffer, "Job %s on %s\n", title, result.Platform)
	if result.Component != "" {
		fmt.Fprintf(&buffer, "  component: %s\n", result.Component)
	}

	for _, step := range result.RunResults {
		fmt.Fprintf(&buffer, "  %s %d. %s (%s, exit %d)\n",
			statusGlyph(step.Success), step.Index, step.Command, formatDuration(step.Duration), step.ExitCode)
		for _, tr := range step.TestResults {
			if tr.Success && tr.Log == "" {
				continue
			}
			label := tr.Key
			switch {
			case tr.Critical:
				label += " [critical]"
			case tr.Warning:
				label += " [warning]"
			}
			line := fmt.Sprintf("      %s %s", statusGlyph(tr.Success), label)
			if tr.Log != "" {
				line += ": " + tr.Log
			}
			buffer.WriteString(line + "\n")
		}
		if step.TimedOut {
			buffer.WriteString("      note: timed out\n")
		}
		if !step.Success && step.Stderr != "" {
			fmt.Fprintf(&buffer, "      stderr:\n%s\n", indent(step.Stderr, "        "))
		}
	}

	outcome := "succeeded"
	if !result.Success {
		outcome = "failed"
	}
	fmt.Fprintf(&buffer, "SUMMARY: job %s, %d step(s) run (%s)\n", outcome, len(result.RunResults), formatDuration(result.Duration))

	_, err := buffer.WriteTo(p.out)
	return err
}

// RenderDocument prints a document as indented YAML.
func (p *PrettyRenderer) RenderDocument(doc any) error {
	var buffer bytes.Buffer
	enc := yaml.NewEncoder(&buffer)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("render document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("render document: %w", err)
	}
	_, err := buffer.WriteTo(p.out)
	return err
}

func decorateName(name, path string) string {
	if path == "" || path == name {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, path)
}

func statusGlyph(success bool) string {
	if success {
		return "✓"
	}
	return "✗"
}

func indent(s, pad string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = pad + lines[i]
	}
	return strings.Join(lines, "\n")
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Truncate(time.Millisecond).String()
}
