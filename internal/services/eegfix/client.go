package eegfix

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

var commandContext = exec.CommandContext

// Client repairs EEG electrode location metadata in a recording file.
type Client interface {
	Fix(ctx context.Context, path string) error
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// CLI wraps the mne_check_eeg_locations command-line tool.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "mne_check_eeg_locations"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Fix rewrites the electrode locations of the given recording in place.
func (c *CLI) Fix(ctx context.Context, path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("recording path required")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("staged recording: %w", err)
	}

	cmd := commandContext(ctx, c.binary, "--file", path, "--fix") //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w%s", c.binary, err, outputTail(output))
	}
	return nil
}

// outputTail keeps the last few lines of tool output for error context.
func outputTail(output []byte) string {
	text := strings.TrimSpace(string(output))
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return ": " + strings.Join(lines, " | ")
}

var _ Client = (*CLI)(nil)
