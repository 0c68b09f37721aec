package dcm2niix

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

var commandContext = exec.CommandContext

// Client converts a DICOM series into a compressed NIfTI volume.
type Client interface {
	Convert(ctx context.Context, dicomDir, outDir, stem string) (string, error)
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

// CLI wraps the dcm2niix command-line converter.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "dcm2niix"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Convert runs the converter over dicomDir and returns the path of the
// produced <stem>.nii.gz inside outDir.
func (c *CLI) Convert(ctx context.Context, dicomDir, outDir, stem string) (string, error) {
	if strings.TrimSpace(dicomDir) == "" {
		return "", errors.New("dicom directory required")
	}
	if strings.TrimSpace(outDir) == "" {
		return "", errors.New("output directory required")
	}
	if strings.TrimSpace(stem) == "" {
		return "", errors.New("output stem required")
	}
	info, err := os.Stat(dicomDir)
	if err != nil {
		return "", fmt.Errorf("dicom directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("dicom directory %s is not a directory", dicomDir)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	args := []string{"-o", outDir, "-f", stem, "-m", "y", "-z", "y", dicomDir}
	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s failed: %w%s", c.binary, err, outputTail(output))
	}

	outputPath := filepath.Join(outDir, stem+".nii.gz")
	if _, err := os.Stat(outputPath); err != nil {
		return "", fmt.Errorf("converter exited cleanly but %s was not produced", outputPath)
	}
	return outputPath, nil
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
