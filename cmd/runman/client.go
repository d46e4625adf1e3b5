package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ghowland/runman/internal/client"
	"github.com/ghowland/runman/internal/remote"
	"github.com/spf13/cobra"
)

func newClientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client <runspec>",
		Short: "Poll the websource for jobs, run them and report the results",
		Args:  cobra.ExactArgs(1),
		RunE:  runClient,
	}
	flags := cmd.Flags()
	flags.Duration("poll-interval", 0, "delay between polls (default 10s)")
	flags.Duration("error-backoff", 0, "delay after repeated failures (default 60s)")
	flags.Int("max-errors", 0, "consecutive failures tolerated before exiting (default 10)")
	flags.String("status-addr", "", "listen address for the /healthz and /status endpoints")
	flags.Duration("step-timeout", 0, "kill a step that runs longer than this (0 disables)")
	return cmd
}

func runClient(cmd *cobra.Command, args []string) error {
	cfg, root, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	rs, err := loadRunSpec(args[0], cfg)
	if err != nil {
		return err
	}
	ws, _, err := rs.LoadWebSource(cmd.Context())
	if err != nil {
		return err
	}
	host, err := detectHost(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source := remote.New(*ws, &http.Client{Timeout: cfg.HTTPTimeout}, logger)
	poller := client.New(source, rs, newRunner(cmd, cfg, root, host, logger), client.Options{
		Hostname:             host.Hostname,
		Platform:             host.Platform,
		PollInterval:         cfg.PollInterval,
		ErrorBackoff:         cfg.ErrorBackoff,
		MaxConsecutiveErrors: cfg.MaxConsecutiveErrors,
		Logger:               logger,
	})

	if cfg.StatusAddr != "" {
		go func() {
			if err := client.Serve(ctx, logger, cfg.StatusAddr, poller.Handler()); err != nil {
				logger.Error("status server stopped", "error", err)
			}
		}()
	}

	return poller.Run(ctx)
}
