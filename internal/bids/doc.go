// Package bids places converted recordings into the standardized dataset
// layout.
//
// It derives target paths from subject, task and run labels, copies raw data
// with integrity verification, and emits the tabular and JSON companions
// (events, channels, sidecars, dataset description, participants). Writes are
// idempotent so a re-run over existing output converges instead of failing.
package bids
