package main

import (
	"fmt"
	"strings"

	"github.com/ghowland/runman/internal/input"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <runspec> <job>",
		Short: "Run one job on this host",
		Args:  cobra.ExactArgs(2),
		RunE:  runExecute,
	}
	flags := cmd.Flags()
	flags.String("input-file", "", "YAML or JSON file holding input values")
	flags.StringArray("input", nil, "input value as key=value (repeatable, wins over --input-file)")
	flags.Bool("non-interactive", false, "fail instead of prompting for missing input")
	flags.Duration("step-timeout", 0, "kill a step that runs longer than this (0 disables)")
	return cmd
}

func runExecute(cmd *cobra.Command, args []string) error {
	cfg, root, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)
	renderer, err := newRenderer(cmd, cfg)
	if err != nil {
		return err
	}

	rs, err := loadRunSpec(args[0], cfg)
	if err != nil {
		return err
	}
	job, err := rs.LoadJob(cmd.Context(), args[1])
	if err != nil {
		return err
	}
	host, err := detectHost(cfg)
	if err != nil {
		return err
	}

	pairs, err := cmd.Flags().GetStringArray("input")
	if err != nil {
		return fmt.Errorf("parse --input: %w", err)
	}
	direct, err := parseInputs(pairs)
	if err != nil {
		return err
	}
	inputFile, err := cmd.Flags().GetString("input-file")
	if err != nil {
		return fmt.Errorf("parse --input-file: %w", err)
	}
	nonInteractive, err := cmd.Flags().GetBool("non-interactive")
	if err != nil {
		return fmt.Errorf("parse --non-interactive: %w", err)
	}

	resolver := input.NewResolver(input.NewTerminalPrompter(cmd.InOrStdin(), cmd.ErrOrStderr()), logger)
	values, err := resolver.Resolve(job, direct, inputFile, nonInteractive)
	if err != nil {
		return err
	}

	result, err := newRunner(cmd, cfg, root, host, logger).RunJob(cmd.Context(), job, host.Platform, values)
	if err != nil {
		return err
	}
	return renderer.RenderResult(result)
}

func parseInputs(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --input %q: want key=value", pair)
		}
		out[key] = value
	}
	return out, nil
}
