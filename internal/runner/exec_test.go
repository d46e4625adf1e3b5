package runner

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/ghowland/runman/internal/input"
	"github.com/ghowland/runman/internal/spec"
)

func posixOnly(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("runner tests require a POSIX shell")
	}
}

func sampleJob(items ...spec.RunItem) *spec.Job {
	return &spec.Job{
		Key:       "sample",
		Name:      "Sample",
		Component: "tests",
		Input:     map[string]spec.InputField{"name": {Type: spec.TypeText}},
		Run:       map[string][]spec.RunItem{"linux_debian": items},
	}
}

func exitZero() spec.TestCase {
	return spec.TestCase{When: spec.WhenFinished, Key: "exit_code", Function: "==", Value: 0, Critical: true}
}

func TestRunJobSuccess(t *testing.T) {
	posixOnly(t)
	job := sampleJob(
		spec.RunItem{Execute: "echo hello {{.name}}", Tests: []spec.TestCase{
			exitZero(),
			{Key: "stdout", Function: "equals", Value: "hello world\n"},
		}},
		spec.RunItem{Execute: "echo second"},
	)
	r := New(Options{Root: t.TempDir(), Host: "web01"})

	result, err := r.RunJob(context.Background(), job, "linux_debian", input.Values{"name": "world"})
	if err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	if !result.Success || len(result.RunResults) != 2 {
		t.Fatalf("expected two successful steps, got %+v", result)
	}
	first := result.RunResults[0]
	if first.Command != "echo hello world" || first.Index != 1 {
		t.Fatalf("unexpected first step %+v", first)
	}
	if len(first.TestResults) != 2 || !first.TestResults[1].Success {
		t.Fatalf("expected both tests to pass, got %+v", first.TestResults)
	}
	if result.Host != "web01" || result.Platform != "linux_debian" || result.Name != "Sample" || result.RunID == "" {
		t.Fatalf("job metadata not recorded: %+v", result)
	}
	if result.Finished.Before(result.Started) || first.Finished.IsZero() {
		t.Fatalf("timestamps not sealed: %+v", result)
	}
}

func TestRunJobAbortsAfterFailedStep(t *testing.T) {
	posixOnly(t)
	job := sampleJob(
		spec.RunItem{Execute: "exit 3", Tests: []spec.TestCase{exitZero()}},
		spec.RunItem{Execute: "echo never"},
	)
	r := New(Options{Root: t.TempDir()})

	result, err := r.RunJob(context.Background(), job, "linux_debian", input.Values{})
	if err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	if len(result.RunResults) != 1 {
		t.Fatalf("expected exactly one step result, got %d", len(result.RunResults))
	}
	if result.Success || result.RunResults[0].ExitCode != 3 {
		t.Fatalf("expected failed job with exit code 3, got %+v", result)
	}
}

func TestRunJobWithoutTestsSucceeds(t *testing.T) {
	posixOnly(t)
	job := sampleJob(spec.RunItem{Execute: "exit 5"})
	result, err := New(Options{Root: t.TempDir()}).RunJob(context.Background(), job, "linux_debian", nil)
	if err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	if !result.Success || result.RunResults[0].ExitCode != 5 {
		t.Fatalf("expected vacuous success with exit code 5 recorded, got %+v", result)
	}
}

func TestRunJobEmptyPlatformList(t *testing.T) {
	job := sampleJob()
	result, err := New(Options{}).RunJob(context.Background(), job, "linux_debian", nil)
	if err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	if !result.Success || len(result.RunResults) != 0 {
		t.Fatalf("expected empty successful job, got %+v", result)
	}
}

func TestRunJobUnsupportedPlatform(t *testing.T) {
	_, err := New(Options{}).RunJob(context.Background(), sampleJob(), "windows", nil)
	if !errors.Is(err, ErrPlatformUnsupported) {
		t.Fatalf("expected ErrPlatformUnsupported, got %v", err)
	}
}

func TestRunJobRenderFailure(t *testing.T) {
	job := sampleJob(spec.RunItem{Execute: "echo {{.missing}}"})
	result, err := New(Options{}).RunJob(context.Background(), job, "linux_debian", input.Values{})
	var renderErr *RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("expected RenderError, got %v", err)
	}
	if renderErr.Step != 1 || len(result.RunResults) != 0 {
		t.Fatalf("expected no steps before render failure, got %+v", result)
	}
}

func TestRunJobIgnoresCancellation(t *testing.T) {
	posixOnly(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	job := sampleJob(spec.RunItem{Execute: "echo still", Tests: []spec.TestCase{exitZero()}})

	result, err := New(Options{Root: t.TempDir()}).RunJob(ctx, job, "linux_debian", nil)
	if err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	if !result.Success || strings.TrimSpace(result.RunResults[0].Stdout) != "still" {
		t.Fatalf("expected step to run despite cancelled context, got %+v", result.RunResults)
	}
}

func TestRunStepSeparatesStreams(t *testing.T) {
	posixOnly(t)
	stdout := &bytes.Buffer{}
	r := New(Options{Root: t.TempDir(), Verbose: true, Stdout: stdout})
	job := sampleJob(spec.RunItem{Execute: "echo out; echo err 1>&2"})

	result, err := r.RunJob(context.Background(), job, "linux_debian", nil)
	if err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	step := result.RunResults[0]
	if step.Stdout != "out\n" || step.Stderr != "err\n" {
		t.Fatalf("unexpected streams stdout=%q stderr=%q", step.Stdout, step.Stderr)
	}
	if !strings.Contains(step.Output, "out\n") || !strings.Contains(step.Output, "err\n") {
		t.Fatalf("combined output missing a stream: %q", step.Output)
	}
	if stdout.String() != "out\n" {
		t.Fatalf("expected verbose mode to stream stdout, got %q", stdout.String())
	}
}

func TestRunStepTimeout(t *testing.T) {
	posixOnly(t)
	job := sampleJob(spec.RunItem{Execute: "sleep 5", Tests: []spec.TestCase{exitZero()}})
	r := New(Options{Root: t.TempDir(), Timeout: 100 * time.Millisecond})

	result, err := r.RunJob(context.Background(), job, "linux_debian", nil)
	if err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	step := result.RunResults[0]
	if !step.TimedOut || step.ExitCode != -1 || result.Success {
		t.Fatalf("expected timed out failure, got %+v", step)
	}
}

func TestRunStepMissingShell(t *testing.T) {
	posixOnly(t)
	job := sampleJob(spec.RunItem{Execute: "echo hi"})
	r := New(Options{Root: t.TempDir(), Shell: "/nonexistent/shell -c"})

	result, err := r.RunJob(context.Background(), job, "linux_debian", nil)
	if err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	if result.RunResults[0].ExitCode != 127 || result.RunResults[0].Stderr == "" {
		t.Fatalf("expected exit 127 with message, got %+v", result.RunResults[0])
	}
}

func TestCommandArgs(t *testing.T) {
	cases := []struct {
		shell string
		want  []string
	}{
		{"sh -c", []string{"sh", "-c", "echo"}},
		{"bash", []string{"bash", "-c", "echo"}},
		{"bash -eu -c", []string{"bash", "-eu", "-c", "echo"}},
		{"cmd", []string{"cmd", "/C", "echo"}},
		{"pwsh", []string{"pwsh", "-Command", "echo"}},
		{"/usr/bin/env", []string{"/usr/bin/env", "echo"}},
	}
	for _, tc := range cases {
		if got := commandArgs(tc.shell, "echo"); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("commandArgs(%q) = %v, want %v", tc.shell, got, tc.want)
		}
	}
}
