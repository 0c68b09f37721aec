package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MRC-CBU/BIDS-conversion/internal/deps"
	"github.com/MRC-CBU/BIDS-conversion/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check the external tools the pipeline shells out to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			statuses := preflight.CheckTools(cfg)
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, status := range statuses {
				kind := statusOK
				message := status.Command
				switch {
				case status.Available:
				case status.Optional:
					kind = statusWarn
					message = fmt.Sprintf("%s (not needed by this configuration)", status.Detail)
				default:
					kind = statusError
					message = status.Detail
				}
				fmt.Fprintln(out, renderStatusLine(status.Name, kind, message, colorize))
				if status.Description != "" {
					fmt.Fprintf(out, "%s%s\n", statusIndent+statusIndent, status.Description)
				}
			}

			if missing := deps.Missing(statuses); len(missing) > 0 {
				return fmt.Errorf("%d required tools missing", len(missing))
			}
			return nil
		},
	}
}
