package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/MRC-CBU/BIDS-conversion/internal/ledger"
	"github.com/MRC-CBU/BIDS-conversion/internal/workflow"
)

const reportMessageWidth = 60

var (
	statusTitler = cases.Title(language.English)
	countPrinter = message.NewPrinter(language.English)
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	var runFlag string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the outcome of a conversion run",
		Long: "Report prints the per-subject outcome of the latest conversion run " +
			"recorded in the ledger, or of a specific run selected with --run.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			store, err := ledger.Open(cfg.LedgerPath())
			if err != nil {
				return fmt.Errorf("open run ledger: %w", err)
			}
			defer store.Close()

			runCtx := cmd.Context()
			if runCtx == nil {
				runCtx = context.Background()
			}

			var run *ledger.Run
			if strings.TrimSpace(runFlag) != "" {
				run, err = store.GetRun(runCtx, strings.TrimSpace(runFlag))
			} else {
				run, err = store.LatestRun(runCtx)
			}
			if err != nil {
				return fmt.Errorf("look up run: %w", err)
			}
			if run == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No conversion runs recorded yet.")
				return nil
			}

			summary, err := store.Summarize(runCtx, run.ID)
			if err != nil {
				return fmt.Errorf("summarize run: %w", err)
			}
			subjects, err := store.ListSubjects(runCtx, run.ID)
			if err != nil {
				return fmt.Errorf("list run subjects: %w", err)
			}

			out := cmd.OutOrStdout()
			printRunHeader(out, run)
			printRunReport(out, &workflow.RunReport{RunID: run.ID, Summary: summary, Subjects: subjects})
			return nil
		},
	}

	cmd.Flags().StringVar(&runFlag, "run", "", "Run identifier to report on (defaults to the latest run)")
	return cmd
}

func printRunHeader(out io.Writer, run *ledger.Run) {
	fmt.Fprintf(out, "Run %s\n", run.ID)
	if run.ConfigPath != "" {
		fmt.Fprintf(out, "  Config:   %s\n", run.ConfigPath)
	}
	fmt.Fprintf(out, "  Started:  %s\n", formatTimestamp(&run.StartedAt))
	fmt.Fprintf(out, "  Finished: %s\n", formatTimestamp(run.FinishedAt))
	fmt.Fprintln(out)
}

func printRunReport(out io.Writer, report *workflow.RunReport) {
	if report == nil || len(report.Subjects) == 0 {
		fmt.Fprintln(out, "No subjects were processed.")
		return
	}

	rows := make([][]string, 0, len(report.Subjects))
	for _, sub := range report.Subjects {
		rows = append(rows, []string{
			sub.Label,
			sub.BIDSID,
			statusDisplay(sub.Status),
			countPrinter.Sprintf("%d", sub.RecordingsWritten),
			countPrinter.Sprintf("%d", sub.EventsDecoded),
			truncateMessage(sub.ErrorMessage, reportMessageWidth),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Subject", "BIDS ID", "Status", "Recordings", "Events", "Message"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	))

	s := report.Summary
	countPrinter.Fprintf(out, "%d completed, %d review, %d failed, %d skipped of %d subjects\n",
		s.Completed, s.Review, s.Failed, s.Skipped, s.Total)
	if report.LogPath != "" {
		fmt.Fprintf(out, "Run log: %s\n", report.LogPath)
	}
}

func statusDisplay(status ledger.Status) string {
	return statusTitler.String(string(status))
}

func truncateMessage(message string, width int) string {
	message = strings.TrimSpace(message)
	runes := []rune(message)
	if width <= 3 || len(runes) <= width {
		return message
	}
	return string(runes[:width-3]) + "..."
}

func formatTimestamp(ts *time.Time) string {
	if ts == nil || ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04:05")
}
