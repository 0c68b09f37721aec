package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/MRC-CBU/BIDS-conversion/internal/config"
	"github.com/MRC-CBU/BIDS-conversion/internal/meta"
	"github.com/MRC-CBU/BIDS-conversion/internal/preflight"
)

func newValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the project is ready for conversion",
		Long: "Validate loads the configuration and both metadata dictionaries, " +
			"verifies every directory a run touches, and checks the external " +
			"tools, without converting anything.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			failures := 0
			failures += printMetadataSection(out, cfg, colorize)
			failures += printLayoutSection(out, cfg, colorize)
			printToolsSection(out, cfg, colorize, &failures)

			fmt.Fprintln(out)
			if failures > 0 {
				return fmt.Errorf("%d validation checks failed", failures)
			}
			fmt.Fprintln(out, "Project is ready for conversion")
			return nil
		},
	}
}

func printMetadataSection(out io.Writer, cfg *config.Config, colorize bool) int {
	failures := 0
	for _, line := range renderSectionHeader("Metadata", colorize) {
		fmt.Fprintln(out, line)
	}

	dict, err := meta.LoadDictionary(cfg.Metadata.EventsFile)
	if err != nil {
		fmt.Fprintln(out, renderStatusLine("Event dictionary", statusError, err.Error(), colorize))
		failures++
	} else {
		fmt.Fprintln(out, renderStatusLine("Event dictionary", statusOK, fmt.Sprintf("%d events", dict.Len()), colorize))
	}

	roster, err := meta.LoadSubjects(cfg.Metadata.SubjectsFile)
	if err != nil {
		fmt.Fprintln(out, renderStatusLine("Subject dictionary", statusError, err.Error(), colorize))
		return failures + 1
	}
	if err := roster.Validate(); err != nil {
		fmt.Fprintln(out, renderStatusLine("Subject dictionary", statusError, err.Error(), colorize))
		return failures + 1
	}
	convertible := 0
	for _, sub := range roster.Subjects {
		if sub.Convertible() {
			convertible++
		}
	}
	fmt.Fprintln(out, renderStatusLine("Subject dictionary", statusOK,
		fmt.Sprintf("%d subjects, %d convertible", roster.Len(), convertible), colorize))
	return failures
}

func printLayoutSection(out io.Writer, cfg *config.Config, colorize bool) int {
	failures := 0
	for _, line := range renderSectionHeader("Project layout", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, result := range preflight.RunAll(cfg) {
		kind := statusOK
		if !result.Passed {
			kind = statusError
			failures++
		}
		fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}
	return failures
}

func printToolsSection(out io.Writer, cfg *config.Config, colorize bool, failures *int) {
	for _, line := range renderSectionHeader("External tools", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, status := range preflight.CheckTools(cfg) {
		switch {
		case status.Available:
			fmt.Fprintln(out, renderStatusLine(status.Name, statusOK, status.Command, colorize))
		case status.Optional:
			fmt.Fprintln(out, renderStatusLine(status.Name, statusWarn,
				fmt.Sprintf("%s (not needed by this configuration)", status.Detail), colorize))
		default:
			fmt.Fprintln(out, renderStatusLine(status.Name, statusError, status.Detail, colorize))
			*failures++
		}
	}
}
