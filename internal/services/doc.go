// Package services defines shared utilities consumed by the conversion driver
// and external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run identifiers, subject labels, stage names,
//     and recording filenames for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent ledger statuses (failed vs review).
//   - Subpackages wrapping the external commands the pipeline shells out to
//     (the EEG location fixer and dcm2niix), built around a replaceable
//     command constructor so tests can stub the binaries.
//
// Use these helpers when wiring new conversion logic so error handling and
// observability stay uniform across the pipeline.
package services
