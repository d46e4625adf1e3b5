package main

import (
	"github.com/ghowland/runman/internal/output"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <runspec>",
		Short: "List the jobs of a run spec",
		Args:  cobra.ExactArgs(1),
		RunE:  runList,
	}
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	renderer, err := newRenderer(cmd, cfg)
	if err != nil {
		return err
	}

	rs, err := loadRunSpec(args[0], cfg)
	if err != nil {
		return err
	}
	keys, err := selectJobs(rs, cfg)
	if err != nil {
		return err
	}

	entries := make([]output.ListEntry, 0, len(keys))
	for _, key := range keys {
		loc := rs.Jobs[key]
		entries = append(entries, output.ListEntry{Key: key, Location: loc.Raw, Remote: loc.Remote()})
	}
	return renderer.RenderList(entries)
}
