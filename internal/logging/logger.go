package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MRC-CBU/BIDS-conversion/internal/config"
)

// Options describes logger construction parameters. Outputs and ErrorOutputs
// accept file paths plus the literals "stdout" and "stderr"; every named
// sink is opened once and receives all records.
type Options struct {
	Level        string
	Format       string
	Outputs      []string
	ErrorOutputs []string
}

var levelNames = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// New constructs a slog logger from opts. Unknown level names fall back to
// info; an unknown format is an error. Debug level turns on source
// locations.
func New(opts Options) (*slog.Logger, error) {
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}
	if format != "console" && format != "json" {
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	level := parseLevel(opts.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)
	addSource := level <= slog.LevelDebug

	sink, err := openSinks(opts.Outputs, opts.ErrorOutputs)
	if err != nil {
		return nil, err
	}

	var handler slog.Handler
	if format == "json" {
		handler = newJSONHandler(sink, levelVar, addSource)
	} else {
		handler = newConsoleHandler(sink, levelVar, addSource)
	}
	return slog.New(handler), nil
}

// NewFromConfig builds the process logger from application config: console
// output on stdout, mirrored into <log_dir>/megbids.log when a log
// directory is configured.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	opts := Options{Level: "info", Format: "console"}
	if cfg != nil {
		opts.Level = cfg.Logging.Level
		opts.Format = cfg.Logging.Format
		if cfg.Paths.LogDir != "" {
			if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
				return nil, fmt.Errorf("ensure log directory: %w", err)
			}
			logPath := filepath.Join(cfg.Paths.LogDir, "megbids.log")
			opts.Outputs = []string{"stdout", logPath}
			opts.ErrorOutputs = []string{logPath}
		}
	}
	return New(opts)
}

func parseLevel(level string) slog.Level {
	if lvl, ok := levelNames[strings.ToLower(strings.TrimSpace(level))]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// openSinks opens every named output once and merges them into one writer.
// "stdout" and "stderr" are process streams; anything else is opened
// append-only, creating parent directories as needed. No sinks at all means
// stdout.
func openSinks(outputs, errorOutputs []string) (io.Writer, error) {
	names := make([]string, 0, len(outputs)+len(errorOutputs))
	names = append(names, outputs...)
	names = append(names, errorOutputs...)

	seen := make(map[string]struct{}, len(names))
	var sinks []io.Writer
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		switch name {
		case "stdout":
			sinks = append(sinks, os.Stdout)
		case "stderr":
			sinks = append(sinks, os.Stderr)
		default:
			if dir := filepath.Dir(name); dir != "." && dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("create log directory %s: %w", dir, err)
				}
			}
			file, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
			if err != nil {
				return nil, fmt.Errorf("open log file %s: %w", name, err)
			}
			sinks = append(sinks, file)
		}
	}

	switch len(sinks) {
	case 0:
		return os.Stdout, nil
	case 1:
		return sinks[0], nil
	}
	return io.MultiWriter(sinks...), nil
}
