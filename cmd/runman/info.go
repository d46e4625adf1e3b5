package main

import (
	"github.com/ghowland/runman/internal/runner"
	"github.com/spf13/cobra"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the detected platform, hostname and effective options",
		Args:  cobra.NoArgs,
		RunE:  runInfo,
	}
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	renderer, err := newRenderer(cmd, cfg)
	if err != nil {
		return err
	}
	host, err := detectHost(cfg)
	if err != nil {
		return err
	}

	shell := cfg.Shell
	if shell == "" {
		shell = runner.DefaultShell()
	}
	options := map[string]any{
		"format":                 cfg.Format,
		"verbose":                cfg.Verbose,
		"shell":                  shell,
		"step_timeout":           cfg.StepTimeout.String(),
		"poll_interval":          cfg.PollInterval.String(),
		"error_backoff":          cfg.ErrorBackoff.String(),
		"max_consecutive_errors": cfg.MaxConsecutiveErrors,
		"status_addr":            cfg.StatusAddr,
		"http_timeout":           cfg.HTTPTimeout.String(),
	}

	doc := map[string]any{
		"platform": host.Platform,
		"hostname": host.Hostname,
		"os":       host.OS,
		"arch":     host.Arch,
		"options":  options,
	}
	if host.Distro != "" {
		doc["distro"] = host.Distro
		doc["version"] = host.Version
	}
	return renderer.RenderDocument(doc)
}
