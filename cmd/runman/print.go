package main

import (
	"github.com/spf13/cobra"
)

const maskedPassword = "********"

func newPrintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print <runspec>",
		Short: "Print the run spec, its websource and every job document",
		Args:  cobra.ExactArgs(1),
		RunE:  runPrint,
	}
}

func runPrint(cmd *cobra.Command, args []string) error {
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

	doc := map[string]any{"runspec": rs.Document}
	problems := map[string]any{}

	if rs.HasWebSource() {
		_, ws, err := rs.LoadWebSource(cmd.Context())
		if err != nil {
			problems["websource"] = err.Error()
		} else {
			doc["websource"] = maskPasswords(ws)
		}
	}

	jobs := make(map[string]any, len(keys))
	for _, key := range keys {
		job, err := rs.LoadJob(cmd.Context(), key)
		if err != nil {
			problems[key] = err.Error()
			continue
		}
		jobs[key] = job.Document
	}
	doc["jobs"] = jobs
	doc["errors"] = problems

	return renderer.RenderDocument(doc)
}

// maskPasswords hides endpoint passwords in a websource document.
func maskPasswords(ws any) any {
	m, ok := ws.(map[string]any)
	if !ok {
		return ws
	}
	out := make(map[string]any, len(m))
	for key, value := range m {
		endpoint, ok := value.(map[string]any)
		if !ok {
			out[key] = value
			continue
		}
		copied := make(map[string]any, len(endpoint))
		for k, v := range endpoint {
			copied[k] = v
		}
		if _, ok := copied["password"]; ok {
			copied["password"] = maskedPassword
		}
		out[key] = copied
	}
	return out
}
