package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/ghowland/runman/internal/evaluate"
	"github.com/ghowland/runman/internal/input"
	"github.com/ghowland/runman/internal/logging"
	"github.com/ghowland/runman/internal/report"
	"github.com/ghowland/runman/internal/spec"
)

// ErrPlatformUnsupported is returned when a job has no run items for the
// requested platform.
var ErrPlatformUnsupported = errors.New("job does not support platform")

// RenderError reports a command template that could not be rendered with the
// validated input.
type RenderError struct {
	Job  string
	Step int
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("job %s step %d: render command: %v", e.Job, e.Step, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Options configure how the runner executes steps.
type Options struct {
	// Shell runs each rendered command, e.g. "sh -c" or "bash".
	Shell   string
	Root    string
	Host    string
	Stdout  io.Writer
	Stderr  io.Writer
	Verbose bool
	// Timeout bounds each step when positive.
	Timeout time.Duration
	Env     []string
	Now     func() time.Time
	Logger  *slog.Logger
}

// Runner executes the run items of a job sequentially.
type Runner struct {
	opts Options
}

// New creates a runner with the supplied options.
func New(opts Options) *Runner {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Runner{opts: opts}
}

// RunJob executes the run items the job declares for platform. Each command is
// rendered with values, executed to completion and evaluated before the next
// one starts; the first failing step ends the job. Execution failures are
// recorded in the returned result. Errors are reserved for an unsupported
// platform, a render failure or a malformed test, in which case the partial
// result is still returned sealed.
func (r *Runner) RunJob(ctx context.Context, job *spec.Job, platform string, values input.Values) (*report.JobResult, error) {
	items, ok := job.Run[platform]
	if !ok {
		return nil, fmt.Errorf("%w: job %s has no run items for %q (have %s)",
			ErrPlatformUnsupported, job.Key, platform, strings.Join(job.Platforms(), ", "))
	}

	// Steps always run to completion once started.
	ctx = context.WithoutCancel(ctx)

	result := report.NewJobResult(job.Key, r.opts.Now())
	result.Name = job.Name
	result.Component = job.Component
	result.Platform = platform
	result.Host = r.opts.Host

	logger := r.opts.Logger.With("job", job.Key, "run_id", result.RunID)
	logger.Info("job started", "platform", platform, "steps", len(items))

	data := values.Map()
	for idx, item := range items {
		command, err := spec.Render(fmt.Sprintf("%s run %d", job.Key, idx+1), item.Execute, data)
		if err != nil {
			result.Seal(r.opts.Now())
			return result, &RenderError{Job: job.Key, Step: idx + 1, Err: err}
		}

		stepLogger := logger.With("step", idx+1)
		step := r.runStep(ctx, idx+1, command, stepLogger)
		if _, err := evaluate.New(stepLogger).Evaluate(item, &step); err != nil {
			result.Append(step)
			result.Seal(r.opts.Now())
			return result, fmt.Errorf("job %s step %d: %w", job.Key, idx+1, err)
		}
		result.Append(step)

		stepLogger.Debug("step finished", "exit_code", step.ExitCode, "success", step.Success, "duration_ms", step.DurationMS)
		if !step.Success {
			stepLogger.Warn("step failed, aborting job", "command", step.Command, "exit_code", step.ExitCode)
			break
		}
	}

	result.Seal(r.opts.Now())
	logger.Info("job finished", "success", result.Success, "duration", result.Duration)
	return result, nil
}

func (r *Runner) runStep(ctx context.Context, index int, command string, logger *slog.Logger) (result report.StepResult) {
	result = report.StepResult{Index: index, Command: command}
	logger.Debug("running step", "command", command)

	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	result.Started = r.opts.Now()
	defer func() {
		result.Finished = r.opts.Now()
		result.Duration = result.Finished.Sub(result.Started)
		result.DurationMS = result.Duration.Milliseconds()
	}()

	workingDir, err := resolveWorkingDirectory(r.opts.Root)
	if err != nil {
		result.Stderr = err.Error()
		result.Output = result.Stderr
		result.ExitCode = 127
		return result
	}

	cmdArgs := commandArgs(r.opts.Shell, command)
	cmd := exec.CommandContext(ctx, cmdArgs[0], cmdArgs[1:]...)
	cmd.Dir = workingDir
	cmd.Env = r.opts.Env
	if r.opts.Timeout > 0 {
		cmd.WaitDelay = time.Second
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	combined := &syncBuffer{}
	if r.opts.Verbose {
		cmd.Stdout = io.MultiWriter(r.opts.Stdout, &stdoutBuf, combined)
		cmd.Stderr = io.MultiWriter(r.opts.Stderr, &stderrBuf, combined)
	} else {
		cmd.Stdout = io.MultiWriter(&stdoutBuf, combined)
		cmd.Stderr = io.MultiWriter(&stderrBuf, combined)
	}

	err = cmd.Run()
	result.Stdout = stdoutBuf.String()
	result.Stderr = stderrBuf.String()
	result.Output = combined.String()
	result.ExitCode = exitCode(err)

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		result.ExitCode = -1
		logger.Warn("step timed out", "timeout", r.opts.Timeout)
		return result
	}
	if err != nil && cmd.ProcessState == nil {
		// The shell never started.
		result.Stderr = err.Error()
		result.Output = result.Stderr
		result.ExitCode = 127
	}
	return result
}

// syncBuffer serialises the writes of the stdout and stderr copiers so the
// combined output keeps arrival order.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// DefaultShell is the shell used when none is configured.
func DefaultShell() string {
	if runtime.GOOS == "windows" {
		return "cmd /C"
	}
	return "sh -c"
}

func commandArgs(shellSpec string, script string) []string {
	shellSpec = strings.TrimSpace(shellSpec)
	if shellSpec == "" {
		shellSpec = DefaultShell()
	}

	fields := strings.Fields(shellSpec)
	shell := fields[0]
	args := append([]string{}, fields[1:]...)
	if len(args) > 0 {
		// Explicit flags, e.g. "bash -eu -c".
		return append(append([]string{shell}, args...), script)
	}

	switch strings.ToLower(filepath.Base(shell)) {
	case "bash", "zsh", "ksh", "sh", "dash", "ash", "fish":
		args = append(args, "-c", script)
	case "cmd", "cmd.exe":
		args = append(args, "/C", script)
	case "pwsh", "powershell", "powershell.exe":
		args = append(args, "-Command", script)
	case "python", "python3", "python.exe":
		args = append(args, "-c", script)
	default:
		args = append(args, script)
	}
	return append([]string{shell}, args...)
}

func resolveWorkingDirectory(root string) (string, error) {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("determine working directory: %w", err)
		}
		return wd, nil
	}
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("working directory %q not found", root)
		}
		return "", fmt.Errorf("stat working directory %q: %w", root, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("working directory %q is not a directory", root)
	}
	return root, nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(interface{ ExitStatus() int }); ok {
			return status.ExitStatus()
		}
		return exitErr.ExitCode()
	}
	return 1
}
