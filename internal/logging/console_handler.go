package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler renders records as a header line followed by indented detail
// fields. INFO and above get the curated summary view; DEBUG dumps every
// attribute verbatim.
type consoleHandler struct {
	mu        sync.Mutex
	writer    io.Writer
	level     *slog.LevelVar
	attrs     []slog.Attr
	groups    []string
	addSource bool
	seen      map[string]map[string]string
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &consoleHandler{writer: w, level: lvl, addSource: addSource, seen: make(map[string]map[string]string)}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// recordLabels are the context attributes promoted into the header line.
type recordLabels struct {
	component string
	subject   string
	recording string
	stage     string
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	pairs := make([]attrPair, 0, record.NumAttrs()+len(h.attrs))
	for _, attr := range h.attrs {
		flattenInto(&pairs, h.groups, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		flattenInto(&pairs, h.groups, attr)
		return true
	})
	pairs = dedupePairs(pairs)
	labels, detail := splitLabels(pairs)

	message := strings.TrimSpace(record.Message)
	if message == "" {
		message = "(no message)"
	}

	var buf bytes.Buffer
	buf.Grow(256 + len(pairs)*32)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.writeHeader(&buf, ts, record.Level, labels, message, recordSource(record))
	if record.Level < slog.LevelInfo {
		writeDetailFields(&buf, pairs)
	} else {
		h.writeSummaryFields(&buf, labels, detail, record.Level)
	}
	_, err := h.writer.Write(buf.Bytes())
	return err
}

// recordSource mirrors (slog.Record).Source, which requires Go 1.25; this
// module builds with older toolchains.
func recordSource(record slog.Record) *slog.Source {
	fs := runtime.CallersFrames([]uintptr{record.PC})
	f, _ := fs.Next()
	if f.Function == "" && f.File == "" && f.Line == 0 {
		return nil
	}
	return &slog.Source{Function: f.Function, File: f.File, Line: f.Line}
}

func (h *consoleHandler) writeHeader(buf *bytes.Buffer, ts time.Time, level slog.Level, labels recordLabels, message string, src *slog.Source) {
	buf.WriteString(formatTimestamp(ts))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(level))
	if labels.component != "" {
		buf.WriteString(" [")
		buf.WriteString(labels.component)
		buf.WriteByte(']')
	}
	if label := FormatSubject(labels.subject, labels.recording, labels.stage); label != "" {
		buf.WriteByte(' ')
		buf.WriteString(label)
	}
	buf.WriteString(" – ")
	buf.WriteString(message)
	if h.addSource && src != nil {
		buf.WriteString(" [")
		buf.WriteString(filepath.Base(src.File))
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(src.Line))
		buf.WriteByte(']')
	}
	buf.WriteByte('\n')
}

func (h *consoleHandler) writeSummaryFields(buf *bytes.Buffer, labels recordLabels, pairs []attrPair, level slog.Level) {
	fields := summaryFields(pairs)
	fields = h.suppressRepeats(summaryScope(labels), fields, level)
	for _, field := range fields {
		buf.WriteString("    - ")
		buf.WriteString(field.label)
		buf.WriteString(": ")
		buf.WriteString(field.value)
		buf.WriteByte('\n')
	}
}

func writeDetailFields(buf *bytes.Buffer, pairs []attrPair) {
	for _, pair := range pairs {
		if pair.key == "" {
			continue
		}
		buf.WriteString("    ")
		buf.WriteString(pair.key)
		buf.WriteString(": ")
		buf.WriteString(displayValue(pair.value))
		buf.WriteByte('\n')
	}
}

// suppressRepeats drops summary fields whose value was already shown for the
// same scope, so per-subject constants (system, channel sets) print once
// instead of on every recording. WARN and above always print in full and
// refresh the cache.
func (h *consoleHandler) suppressRepeats(scope string, fields []summaryField, level slog.Level) []summaryField {
	if scope == "" || len(fields) == 0 {
		return fields
	}
	cache := h.seen[scope]
	if cache == nil {
		cache = make(map[string]string)
		h.seen[scope] = cache
	}
	if level > slog.LevelInfo {
		for _, field := range fields {
			cache[field.label] = field.value
		}
		return fields
	}
	kept := fields[:0]
	for _, field := range fields {
		if prev, ok := cache[field.label]; ok && prev == field.value {
			continue
		}
		cache[field.label] = field.value
		kept = append(kept, field)
	}
	return kept
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	clone.attrs = append(clone.attrs, attrs...)
	return clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

func (h *consoleHandler) clone() *consoleHandler {
	clone := &consoleHandler{
		writer:    h.writer,
		level:     h.level,
		addSource: h.addSource,
		seen:      h.seen,
	}
	clone.attrs = append(clone.attrs, h.attrs...)
	clone.groups = append(clone.groups, h.groups...)
	return clone
}

type attrPair struct {
	key   string
	value slog.Value
}

// flattenInto resolves attr and appends it to dst, expanding groups into
// dot-prefixed keys.
func flattenInto(dst *[]attrPair, groups []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		next := groups
		if attr.Key != "" {
			next = append(append(make([]string, 0, len(groups)+1), groups...), attr.Key)
		}
		for _, nested := range attr.Value.Group() {
			flattenInto(dst, next, nested)
		}
		return
	}
	key := attr.Key
	if len(groups) > 0 {
		prefix := strings.Join(groups, ".")
		if key == "" {
			key = prefix
		} else {
			key = prefix + "." + key
		}
	}
	*dst = append(*dst, attrPair{key: key, value: attr.Value})
}

// dedupePairs keeps each key's first position and last value, so a field
// logged twice renders once with the newest value.
func dedupePairs(pairs []attrPair) []attrPair {
	if len(pairs) < 2 {
		return pairs
	}
	latest := make(map[string]slog.Value, len(pairs))
	for _, pair := range pairs {
		if pair.key != "" {
			latest[pair.key] = pair.value
		}
	}
	deduped := make([]attrPair, 0, len(latest))
	emitted := make(map[string]bool, len(latest))
	for _, pair := range pairs {
		if pair.key == "" || emitted[pair.key] {
			continue
		}
		emitted[pair.key] = true
		deduped = append(deduped, attrPair{key: pair.key, value: latest[pair.key]})
	}
	return deduped
}

// splitLabels promotes the pipeline context attributes into header labels.
// The component is header-only; subject, recording, and stage stay in the
// pair list so the debug view keeps them.
func splitLabels(pairs []attrPair) (recordLabels, []attrPair) {
	var labels recordLabels
	rest := make([]attrPair, 0, len(pairs))
	for _, pair := range pairs {
		switch pair.key {
		case FieldComponent:
			if labels.component == "" {
				labels.component = plainText(pair.value)
			}
			continue
		case FieldSubject:
			if labels.subject == "" {
				labels.subject = plainText(pair.value)
			}
		case FieldRecording:
			if labels.recording == "" {
				labels.recording = plainText(pair.value)
			}
		case FieldStage:
			if labels.stage == "" {
				labels.stage = plainText(pair.value)
			}
		}
		rest = append(rest, pair)
	}
	return labels, rest
}
