// Package logging builds the structured slog loggers shared by every stage of
// the conversion pipeline.
//
// The console handler renders a scannable header plus indented summary fields
// for operators watching a batch run; the JSON handler feeds the per-run log
// files. Context helpers tag records with run ID, subject, recording, and
// stage so call sites never thread those by hand, and a no-op logger keeps
// tests and optional wiring quiet.
//
// New components should use these constructors rather than building slog
// handlers directly, so their output matches the rest of the system.
package logging
