// Package spec models run spec and job spec documents.
package spec

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Input field types.
const (
	TypeText    = "text"
	TypeInteger = "integer"
	TypeDecimal = "decimal"
)

// Test case phases.
const (
	WhenDuring   = "during"
	WhenFinished = "finished"
)

// ErrUnknownJob is returned when a job key is not declared in the run spec.
var ErrUnknownJob = errors.New("job key not in run spec")

// Endpoint is one remote call of the websource.
type Endpoint struct {
	URL      string `yaml:"url" json:"url"`
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"-"`
	Method   string `yaml:"method,omitempty" json:"method,omitempty"`
}

// WebSource describes the remote coordinator the client polls.
type WebSource struct {
	JobGet    Endpoint `yaml:"job_get" json:"job_get"`
	JobReport Endpoint `yaml:"job_report" json:"job_report"`
}

// Job is the typed view over a job spec document.
type Job struct {
	Key       string                `yaml:"-"`
	Source    string                `yaml:"-"`
	Name      string                `yaml:"name"`
	Component string                `yaml:"component"`
	Input     map[string]InputField `yaml:"input"`
	Collect   []CollectGroup        `yaml:"collect"`
	Run       map[string][]RunItem  `yaml:"run"`

	// Document is the generic parse of the job spec. Content digests are
	// computed from it rather than from the typed view.
	Document any `yaml:"-"`
}

// InputField declares how one input value is validated.
type InputField struct {
	Type  string `yaml:"type"`
	Min   Bound  `yaml:"min"`
	Max   Bound  `yaml:"max"`
	Regex string `yaml:"regex"`
}

// Bound is an optional min or max literal, interpreted by the field type.
type Bound struct {
	Raw string
	Set bool
}

// UnmarshalYAML keeps the literal text of a scalar bound.
func (b *Bound) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: bound must be a scalar", node.Line)
	}
	if node.ShortTag() == "!!null" {
		*b = Bound{}
		return nil
	}
	*b = Bound{Raw: node.Value, Set: true}
	return nil
}

// CollectGroup groups fields for interactive collection.
type CollectGroup struct {
	Label       string   `yaml:"label"`
	Description string   `yaml:"description"`
	Set         []string `yaml:"set"`
}

// Heading returns the text shown before the group's prompts.
func (g CollectGroup) Heading() string {
	switch {
	case g.Label != "" && g.Description != "":
		return g.Label + ": " + g.Description
	case g.Label != "":
		return g.Label
	default:
		return g.Description
	}
}

// RunItem is one step: a command template plus its tests.
type RunItem struct {
	Execute string     `yaml:"execute"`
	Tests   []TestCase `yaml:"tests"`
}

// TestCase is a declarative assertion against a step result.
type TestCase struct {
	When       string `yaml:"when"`
	Key        string `yaml:"key"`
	Function   string `yaml:"function"`
	Value      any    `yaml:"value"`
	Critical   bool   `yaml:"critical"`
	Warning    bool   `yaml:"warning"`
	LogSuccess string `yaml:"log success"`
	LogFailure string `yaml:"log failure"`
}

// Phase returns the normalized when value; an empty when means finished.
func (tc TestCase) Phase() string {
	w := strings.ToLower(strings.TrimSpace(tc.When))
	if w == "" {
		return WhenFinished
	}
	return w
}

// IsEquality reports whether fn names the equality comparison.
func IsEquality(fn string) bool {
	switch strings.ToLower(strings.TrimSpace(fn)) {
	case "==", "equals", "eq":
		return true
	}
	return false
}

// Platforms returns the platform keys of the job's run block, sorted.
func (j *Job) Platforms() []string {
	keys := make([]string, 0, len(j.Run))
	for k := range j.Run {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// InputKeys returns the declared input field names, sorted.
func (j *Job) InputKeys() []string {
	keys := make([]string, 0, len(j.Input))
	for k := range j.Input {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ConfigError reports a malformed or inconsistent specification document.
type ConfigError struct {
	Source   string
	Problems []string
}

func (e *ConfigError) Error() string {
	if len(e.Problems) == 1 {
		return fmt.Sprintf("invalid spec %q: %s", e.Source, e.Problems[0])
	}
	return fmt.Sprintf("invalid spec %q: %d problems: %s", e.Source, len(e.Problems), strings.Join(e.Problems, "; "))
}
