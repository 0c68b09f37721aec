package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MRC-CBU/BIDS-conversion/internal/ledger"
	"github.com/MRC-CBU/BIDS-conversion/internal/logging"
	"github.com/MRC-CBU/BIDS-conversion/internal/workflow"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var subjectFlag string
	var keepExisting bool
	var keepSourcedata bool

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert every listed subject into the BIDS dataset",
		Long: "Convert runs the batch conversion loop: it validates the project " +
			"layout, loads the event and subject dictionaries, and converts every " +
			"subject with a BIDS identifier. Subject failures are recorded in the " +
			"run ledger and do not stop the remaining subjects.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed("keep-existing") {
				cfg.Workflow.KeepExisting = keepExisting
			}
			if cmd.Flags().Changed("keep-sourcedata") {
				cfg.Workflow.KeepSourcedata = keepSourcedata
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store, err := ledger.Open(cfg.LedgerPath())
			if err != nil {
				return fmt.Errorf("open run ledger: %w", err)
			}
			defer store.Close()

			driver := workflow.NewDriver(cfg, logger)
			runner := workflow.NewRunner(cfg, store, driver, logger)

			report, err := runner.Run(signalCtx, workflow.RunOptions{
				ConfigPath: ctx.resolvedConfigPath(),
				Subject:    subjectFlag,
			})
			if err != nil {
				return err
			}

			printRunReport(cmd.OutOrStdout(), report)
			if report.Failed() {
				attention := report.Summary.Failed + report.Summary.Review
				return fmt.Errorf("%d of %d subjects need attention; see `megbids report`", attention, report.Summary.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&subjectFlag, "subject", "s", "", "Convert a single subject label from the dictionary")
	cmd.Flags().BoolVar(&keepExisting, "keep-existing", false, "Keep previously converted output instead of replacing it")
	cmd.Flags().BoolVar(&keepSourcedata, "keep-sourcedata", false, "Keep the staged raw copies after the run")
	return cmd
}
