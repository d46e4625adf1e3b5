// Package client implements the polling agent loop: fetch work from the
// coordinator, check the local job definition against the coordinator's
// digest, execute it and report the outcome.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ghowland/runman/internal/digest"
	"github.com/ghowland/runman/internal/input"
	"github.com/ghowland/runman/internal/logging"
	"github.com/ghowland/runman/internal/remote"
	"github.com/ghowland/runman/internal/report"
	"github.com/ghowland/runman/internal/spec"
)

// ErrTooManyFailures is returned when consecutive failed iterations exceed the
// configured threshold.
var ErrTooManyFailures = errors.New("too many consecutive polling failures")

// DigestKey carries the agent's digest of the job definition in reports.
const DigestKey = "job_data_remote_md5_digest"

// Source is the coordinator the client polls.
type Source interface {
	Fetch(ctx context.Context, hostname string) ([]remote.JobRequest, error)
	Report(ctx context.Context, id string, data any) error
}

// JobLoader loads locally held job definitions by key.
type JobLoader interface {
	LoadJob(ctx context.Context, key string) (*spec.Job, error)
}

// Executor runs a job with validated input.
type Executor interface {
	RunJob(ctx context.Context, job *spec.Job, platform string, values input.Values) (*report.JobResult, error)
}

// Options configure the polling loop.
type Options struct {
	Hostname             string
	Platform             string
	PollInterval         time.Duration
	ErrorBackoff         time.Duration
	MaxConsecutiveErrors int
	Logger               *slog.Logger
	// Sleep waits between iterations; it returns early when ctx is done.
	Sleep func(ctx context.Context, d time.Duration)
}

// Poller drives the fetch, verify, execute and report cycle.
type Poller struct {
	source   Source
	jobs     JobLoader
	exec     Executor
	resolver *input.Resolver
	opts     Options
	status   *tracker
}

// New creates a poller. Zero durations and thresholds take the defaults of
// 10s poll interval, 60s backoff and 10 consecutive errors.
func New(source Source, jobs JobLoader, exec Executor, opts Options) *Poller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Second
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = 60 * time.Second
	}
	if opts.MaxConsecutiveErrors <= 0 {
		opts.MaxConsecutiveErrors = 10
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	return &Poller{
		source:   source,
		jobs:     jobs,
		exec:     exec,
		resolver: input.NewResolver(nil, opts.Logger),
		opts:     opts,
		status:   newTracker(opts.Hostname, opts.Platform),
	}
}

// Run polls until ctx is cancelled or the failure threshold is exceeded.
// Cancellation is observed only between iterations; an iteration in progress
// always completes.
func (p *Poller) Run(ctx context.Context) error {
	logger := p.opts.Logger
	logger.Info("client started", "hostname", p.opts.Hostname, "platform", p.opts.Platform, "interval", p.opts.PollInterval)
	p.status.setState(StateRunning)
	defer p.status.setState(StateStopped)

	consecutive := 0
	for {
		err := p.Poll(context.WithoutCancel(ctx))
		if err != nil {
			consecutive++
			logger.Error("poll iteration failed", "error", err, "consecutive_errors", consecutive)
		} else {
			consecutive = 0
		}
		p.status.finishIteration(consecutive, err)

		if consecutive > p.opts.MaxConsecutiveErrors {
			return fmt.Errorf("%w: %d in a row, last: %w", ErrTooManyFailures, consecutive, err)
		}
		if ctx.Err() != nil {
			p.status.setState(StateStopping)
			logger.Info("client stopping")
			return nil
		}

		delay := p.opts.PollInterval
		if consecutive >= 2 {
			delay = p.opts.ErrorBackoff
			logger.Warn("backing off after repeated failures", "delay", delay)
		}
		p.opts.Sleep(ctx, delay)
		if ctx.Err() != nil {
			p.status.setState(StateStopping)
			logger.Info("client stopping")
			return nil
		}
	}
}

// Poll runs a single iteration. Job requests are handled in the order the
// coordinator returned them; the first error ends the iteration.
func (p *Poller) Poll(ctx context.Context) error {
	requests, err := p.source.Fetch(ctx, p.opts.Hostname)
	if err != nil {
		return fmt.Errorf("fetch jobs: %w", err)
	}
	for _, req := range requests {
		if err := p.handle(ctx, req); err != nil {
			return fmt.Errorf("job request %s (%s): %w", req.ID, req.JobKey, err)
		}
	}
	return nil
}

func (p *Poller) handle(ctx context.Context, req remote.JobRequest) error {
	logger := p.opts.Logger.With("request", req.ID, "job", req.JobKey)
	logger.Info("processing job request")

	job, err := p.jobs.LoadJob(ctx, req.JobKey)
	if err != nil {
		return err
	}
	local, err := digest.Compute(job.Document)
	if err != nil {
		return fmt.Errorf("digest: %w", err)
	}

	if local != req.Digest {
		logger.Error("job definition digest mismatch, skipping", "client", local, "server", req.Digest)
		p.status.mismatch()
		return p.source.Report(ctx, req.ID, map[string]any{DigestKey: local})
	}
	logger.Info("job definition digests match", "digest", local)

	direct, err := req.Input()
	if err != nil {
		return p.reportInputError(ctx, req, local, err)
	}
	values, err := p.resolver.Resolve(job, direct, "", true)
	if err != nil {
		var validation *input.ValidationError
		var unresolvable *input.UnresolvableError
		if errors.As(err, &validation) || errors.As(err, &unresolvable) {
			return p.reportInputError(ctx, req, local, err)
		}
		return err
	}

	result, err := p.exec.RunJob(ctx, job, p.opts.Platform, values)
	if err != nil {
		return err
	}
	p.status.jobRun(result.Success)

	payload, err := ResultPayload(result, local)
	if err != nil {
		return err
	}
	return p.source.Report(ctx, req.ID, payload)
}

func (p *Poller) reportInputError(ctx context.Context, req remote.JobRequest, local string, err error) error {
	p.opts.Logger.Warn("job request input rejected", "request", req.ID, "job", req.JobKey, "error", err)
	p.status.inputError()
	return p.source.Report(ctx, req.ID, map[string]any{
		"success": false,
		"error":   err.Error(),
		DigestKey: local,
	})
}

// ResultPayload builds the report body for an executed job: the job result
// fields, the agent's digest, and result_data_json holding the canonical
// encoding of those fields.
func ResultPayload(result *report.JobResult, localDigest string) (map[string]any, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode job result: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode job result: %w", err)
	}
	payload[DigestKey] = localDigest

	canonical, err := digest.Canonical(payload)
	if err != nil {
		return nil, fmt.Errorf("canonical job result: %w", err)
	}
	payload["result_data_json"] = string(canonical)
	return payload, nil
}

// Status reports the loop's current counters.
func (p *Poller) Status() Status {
	return p.status.snapshot()
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
