package input

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Prompter collects missing field values from an operator.
type Prompter interface {
	Prompt(field string) (string, error)
	Notice(message string) error
}

// TerminalPrompter prompts on out and reads one line per field from in.
type TerminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminalPrompter creates a line based prompter.
func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: bufio.NewReader(in), out: out}
}

// Prompt writes "field: " and returns the next line without its terminator.
func (p *TerminalPrompter) Prompt(field string) (string, error) {
	if _, err := fmt.Fprintf(p.out, "%s: ", field); err != nil {
		return "", err
	}
	line, err := p.in.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) || line == "" {
			return "", fmt.Errorf("read %q: %w", field, err)
		}
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Notice writes a single informational line.
func (p *TerminalPrompter) Notice(message string) error {
	_, err := fmt.Fprintln(p.out, message)
	return err
}
