// Package config loads, normalizes, and validates the conversion pipeline
// configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// MEGBIDS_PROJECT_DIR. The Config type centralizes every knob the pipeline
// and CLI need, allowing project directories, trigger channel sets, and
// external tool locations to be discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical channel names, and clear validation errors.
package config
