package workflow

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MRC-CBU/BIDS-conversion/internal/config"
	"github.com/MRC-CBU/BIDS-conversion/internal/logging"
)

// RunLogger manages the dedicated log file kept for each batch run.
type RunLogger struct {
	baseDir string
	cfg     *config.Config
}

// NewRunLogger creates a run logger writing under <log_dir>/runs.
func NewRunLogger(cfg *config.Config) *RunLogger {
	dir := ""
	if cfg != nil && cfg.Paths.LogDir != "" {
		dir = filepath.Join(cfg.Paths.LogDir, "runs")
	}
	return &RunLogger{baseDir: dir, cfg: cfg}
}

// Ensure prepares the log directory and returns the file path for a run.
func (rl *RunLogger) Ensure(runID string) (string, error) {
	if strings.TrimSpace(rl.baseDir) == "" {
		return "", fmt.Errorf("run log directory not configured")
	}
	if err := os.MkdirAll(rl.baseDir, 0o755); err != nil {
		return "", fmt.Errorf("ensure run log directory: %w", err)
	}
	return filepath.Join(rl.baseDir, rl.filename(runID)), nil
}

// Attach builds a logger that duplicates base output into the run's log
// file. The file always receives JSON records so runs can be inspected with
// standard tooling after the fact, and every record carries the run id.
func (rl *RunLogger) Attach(base *slog.Logger, runID string) (*slog.Logger, string, error) {
	path, err := rl.Ensure(runID)
	if err != nil {
		return base, "", err
	}

	level := "info"
	if rl.cfg != nil && strings.TrimSpace(rl.cfg.Logging.Level) != "" {
		level = rl.cfg.Logging.Level
	}
	fileLogger, err := logging.New(logging.Options{
		Level:   level,
		Format:  "json",
		Outputs: []string{path},
	})
	if err != nil {
		return base, "", err
	}

	handler := logging.NewRunIDHandler(fileLogger.Handler(), runID)
	return logging.TeeLogger(base, handler), path, nil
}

func (rl *RunLogger) filename(runID string) string {
	timestamp := time.Now().UTC().Format("20060102T150405")
	short := strings.TrimSpace(runID)
	if len(short) > 8 {
		short = short[:8]
	}
	if short == "" {
		short = "run"
	}
	return fmt.Sprintf("%s-%s.log", timestamp, short)
}
