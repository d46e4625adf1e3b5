package main

import (
	"fmt"

	"github.com/ghowland/runman/internal/config"
	"github.com/spf13/cobra"
)

func gatherFlags(cmd *cobra.Command) (config.FlagValues, error) {
	flags := cmd.Flags()
	var values config.FlagValues

	for name, target := range map[string]*config.StringFlag{
		"format":      &values.Format,
		"platform":    &values.Platform,
		"shell":       &values.Shell,
		"status-addr": &values.StatusAddr,
	} {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return values, fmt.Errorf("parse --%s: %w", name, err)
		}
		*target = config.StringFlag{Value: v, Set: true}
	}

	if flags.Changed("verbose") {
		v, err := flags.GetBool("verbose")
		if err != nil {
			return values, fmt.Errorf("parse --verbose: %w", err)
		}
		values.Verbose = config.BoolFlag{Value: v, Set: true}
	}

	if flags.Changed("job") {
		v, err := flags.GetStringArray("job")
		if err != nil {
			return values, fmt.Errorf("parse --job: %w", err)
		}
		values.Jobs = config.SliceFlag{Values: append([]string{}, v...)}
	}

	if flags.Changed("skip-job") {
		v, err := flags.GetStringArray("skip-job")
		if err != nil {
			return values, fmt.Errorf("parse --skip-job: %w", err)
		}
		values.SkipJobs = config.SliceFlag{Values: append([]string{}, v...)}
	}

	for name, target := range map[string]*config.DurationFlag{
		"step-timeout":  &values.StepTimeout,
		"poll-interval": &values.PollInterval,
		"error-backoff": &values.ErrorBackoff,
	} {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			continue
		}
		v, err := flags.GetDuration(name)
		if err != nil {
			return values, fmt.Errorf("parse --%s: %w", name, err)
		}
		*target = config.DurationFlag{Value: v, Set: true}
	}

	if flags.Lookup("max-errors") != nil && flags.Changed("max-errors") {
		v, err := flags.GetInt("max-errors")
		if err != nil {
			return values, fmt.Errorf("parse --max-errors: %w", err)
		}
		values.MaxConsecutiveErrors = config.IntFlag{Value: v, Set: true}
	}

	return values, nil
}
