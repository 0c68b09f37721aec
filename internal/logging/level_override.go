package logging

import (
	"context"
	"log/slog"
)

// minLevelHandler raises the floor for one logger without touching the
// shared sinks underneath. The wrapped handler keeps whatever level the
// process was configured with.
type minLevelHandler struct {
	next slog.Handler
	min  slog.Level
}

func (h *minLevelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.min && h.next.Enabled(ctx, level)
}

func (h *minLevelHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < h.min {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h *minLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &minLevelHandler{next: h.next.WithAttrs(attrs), min: h.min}
}

func (h *minLevelHandler) WithGroup(name string) slog.Handler {
	return &minLevelHandler{next: h.next.WithGroup(name), min: h.min}
}

// WithLevelOverride returns a logger that drops records below level while
// keeping the original handler wiring and attributes. Overriding an already
// overridden logger replaces the floor instead of stacking wrappers.
func WithLevelOverride(logger *slog.Logger, level slog.Level) *slog.Logger {
	if logger == nil {
		return slog.New(NoopHandler{})
	}
	next := logger.Handler()
	if wrapped, ok := next.(*minLevelHandler); ok {
		next = wrapped.next
	}
	return slog.New(&minLevelHandler{next: next, min: level})
}
