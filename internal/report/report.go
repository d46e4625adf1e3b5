package report

import (
	"time"

	"github.com/google/uuid"
)

// TestResult captures the outcome of a single test case evaluated against a step.
type TestResult struct {
	Key      string `json:"key" yaml:"key"`
	Success  bool   `json:"success" yaml:"success"`
	Critical bool   `json:"critical,omitempty" yaml:"critical,omitempty"`
	Warning  bool   `json:"warning,omitempty" yaml:"warning,omitempty"`
	Log      string `json:"log,omitempty" yaml:"log,omitempty"`
}

// StepResult captures the outcome of a single run item.
type StepResult struct {
	Index       int           `json:"index" yaml:"index"`
	Command     string        `json:"command" yaml:"command"`
	Started     time.Time     `json:"started" yaml:"started"`
	Finished    time.Time     `json:"finished" yaml:"finished"`
	Duration    time.Duration `json:"-" yaml:"-"`
	DurationMS  int64         `json:"duration_ms" yaml:"duration_ms"`
	ExitCode    int           `json:"exit_code" yaml:"exit_code"`
	Stdout      string        `json:"stdout" yaml:"stdout"`
	Stderr      string        `json:"stderr" yaml:"stderr"`
	Output      string        `json:"output" yaml:"output"`
	TimedOut    bool          `json:"timed_out,omitempty" yaml:"timed_out,omitempty"`
	Success     bool          `json:"success" yaml:"success"`
	TestResults []TestResult  `json:"test_results" yaml:"test_results"`
}

// Completed reports whether the step has a finish timestamp.
func (s *StepResult) Completed() bool {
	return !s.Finished.IsZero()
}

// Field returns the value a test case key refers to.
func (s *StepResult) Field(key string) (any, bool) {
	switch key {
	case "command":
		return s.Command, true
	case "exit_code":
		return s.ExitCode, true
	case "stdout":
		return s.Stdout, true
	case "stderr":
		return s.Stderr, true
	case "output":
		return s.Output, true
	case "started":
		return s.Started, true
	case "finished":
		if !s.Completed() {
			return nil, false
		}
		return s.Finished, true
	case "duration_ms":
		return s.DurationMS, true
	default:
		return nil, false
	}
}

// Fields returns every key available to test cases and log templates.
func (s *StepResult) Fields() map[string]any {
	out := make(map[string]any, 8)
	for _, key := range FieldKeys {
		if v, ok := s.Field(key); ok {
			out[key] = v
		}
	}
	return out
}

// FieldKeys lists the step result keys test cases may reference.
var FieldKeys = []string{"command", "exit_code", "stdout", "stderr", "output", "started", "finished", "duration_ms"}

// JobResult aggregates the step results of one job invocation.
type JobResult struct {
	RunID           string        `json:"run_id" yaml:"run_id"`
	Job             string        `json:"job" yaml:"job"`
	Name            string        `json:"name" yaml:"name"`
	Component       string        `json:"component" yaml:"component"`
	Platform        string        `json:"platform" yaml:"platform"`
	Host            string        `json:"host,omitempty" yaml:"host,omitempty"`
	Started         time.Time     `json:"started" yaml:"started"`
	Finished        time.Time     `json:"finished" yaml:"finished"`
	Duration        time.Duration `json:"-" yaml:"-"`
	DurationSeconds float64       `json:"duration" yaml:"duration"`
	RunResults      []StepResult  `json:"run_results" yaml:"run_results"`
	Success         bool          `json:"success" yaml:"success"`
}

// NewJobResult starts a result for job at the supplied time.
func NewJobResult(job string, started time.Time) *JobResult {
	return &JobResult{
		RunID:      uuid.NewString(),
		Job:        job,
		Started:    started,
		RunResults: make([]StepResult, 0),
	}
}

// Append records a finished step.
func (j *JobResult) Append(step StepResult) {
	j.RunResults = append(j.RunResults, step)
}

// Seal stamps the finish time and computes the overall success, which is the
// AND over every recorded step.
func (j *JobResult) Seal(finished time.Time) {
	j.Finished = finished
	j.Duration = finished.Sub(j.Started)
	j.DurationSeconds = j.Duration.Seconds()
	j.Success = true
	for _, step := range j.RunResults {
		if !step.Success {
			j.Success = false
			break
		}
	}
}

// Failed returns the first failing step, or nil.
func (j *JobResult) Failed() *StepResult {
	for i := range j.RunResults {
		if !j.RunResults[i].Success {
			return &j.RunResults[i]
		}
	}
	return nil
}
