package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "runman",
		Short:         "Runman runs declarative jobs locally or as a polling agent",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	persistent := cmd.PersistentFlags()
	persistent.String("format", "pretty", "output format (pretty|json|yaml)")
	persistent.BoolP("verbose", "v", false, "debug logging and live step output")
	persistent.String("platform", "", "platform to run as instead of the detected one")
	persistent.String("shell", "", "shell used to run step commands (default \"sh -c\")")
	persistent.StringArray("job", nil, "job key filter (repeatable, /regex/ supported)")
	persistent.StringArray("skip-job", nil, "exclude matching job keys")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newPrintCmd())
	cmd.AddCommand(newInfoCmd())
	cmd.AddCommand(newClientCmd())

	return cmd
}
