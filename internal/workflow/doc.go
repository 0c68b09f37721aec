// Package workflow drives the conversion of raw MEG acquisitions into the
// standardized dataset layout.
//
// The Driver converts one subject at a time through a fixed stage sequence:
// split off the empty-room baseline, stage each raw recording under the
// source-data root, repair EEG channel locations when the acquisition system
// requires it, decode trigger events, apply latency correction at most once,
// delegate the write to the dataset writer, and finally convert the
// structural scan. Stages return errors inspected by the caller; a failing
// stage aborts that subject only.
//
// The Runner wraps the Driver in the batch loop: it takes the single-instance
// lock, runs preflight checks, loads and validates the metadata dictionaries,
// records every subject outcome in the conversion ledger, and purges staged
// copies at the end of the run unless retention is configured. A failure on
// one subject never stops the next; run-level problems (lock contention,
// failed preflight, malformed metadata) abort before any subject starts.
package workflow
