package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"

	"github.com/ghowland/runman/internal/config"
	"github.com/ghowland/runman/internal/discovery"
	"github.com/ghowland/runman/internal/filter"
	"github.com/ghowland/runman/internal/logging"
	"github.com/ghowland/runman/internal/output"
	"github.com/ghowland/runman/internal/platform"
	"github.com/ghowland/runman/internal/runner"
	"github.com/ghowland/runman/internal/spec"
	"github.com/spf13/cobra"
)

func loadConfig(cmd *cobra.Command) (config.Config, string, error) {
	root, err := os.Getwd()
	if err != nil {
		return config.Config{}, "", fmt.Errorf("determine working directory: %w", err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return config.Config{}, "", err
	}

	flags, err := gatherFlags(cmd)
	if err != nil {
		return config.Config{}, "", err
	}
	config.ApplyFlags(&cfg, flags)

	if err := cfg.Validate(); err != nil {
		return config.Config{}, "", err
	}
	return cfg, root, nil
}

func newLogger(cmd *cobra.Command, cfg config.Config) *slog.Logger {
	return logging.New(cmd.ErrOrStderr(), cfg.Verbose)
}

func newRenderer(cmd *cobra.Command, cfg config.Config) (output.Renderer, error) {
	return output.New(cfg.Format, cmd.OutOrStdout())
}

func loadRunSpec(path string, cfg config.Config) (*spec.RunSpec, error) {
	reader := discovery.Reader{Client: &http.Client{Timeout: cfg.HTTPTimeout}}
	return spec.LoadRunSpec(path, reader)
}

// selectJobs returns the run spec's job keys that pass the --job and
// --skip-job filters.
func selectJobs(rs *spec.RunSpec, cfg config.Config) ([]string, error) {
	include, err := filter.Compile(cfg.Jobs)
	if err != nil {
		return nil, err
	}
	skip, err := filter.Compile(cfg.SkipJobs)
	if err != nil {
		return nil, err
	}
	return filter.Keys(rs.JobKeys(), include, skip), nil
}

// detectHost identifies this host. A configured platform replaces detection.
func detectHost(cfg config.Config) (platform.Info, error) {
	if cfg.Platform == "" {
		return platform.Detect()
	}
	host, err := platform.Hostname()
	if err != nil {
		return platform.Info{}, err
	}
	return platform.Info{Platform: cfg.Platform, Hostname: host, OS: runtime.GOOS, Arch: runtime.GOARCH}, nil
}

func newRunner(cmd *cobra.Command, cfg config.Config, root string, host platform.Info, logger *slog.Logger) *runner.Runner {
	return runner.New(runner.Options{
		Shell:   cfg.Shell,
		Root:    root,
		Host:    host.Hostname,
		Stdout:  cmd.ErrOrStderr(),
		Stderr:  cmd.ErrOrStderr(),
		Verbose: cfg.Verbose,
		Timeout: cfg.StepTimeout,
		Logger:  logger,
	})
}
