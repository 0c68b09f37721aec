// Package meta loads and validates the two hand-authored metadata files
// that drive a conversion run: the event dictionary, mapping symbolic event
// names to trigger codes, and the subject dictionary, listing each
// participant's recordings and scan locations. Both are checked strictly
// before any conversion starts so a malformed entry aborts the run instead
// of producing a half-written dataset.
package meta
