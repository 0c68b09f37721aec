// Package trigger turns raw multi-channel trigger-line samples from a MEG
// recording into discrete integer event codes with onset sample indices,
// and applies fixed per-modality latency corrections to those onsets.
//
// The package is pure: it never touches the filesystem or spawns
// processes, and it returns plain errors. Callers decide how failures map
// onto run-level outcomes.
package trigger
