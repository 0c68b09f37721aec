// Package preflight provides readiness checks for the filesystem paths
// and external tools a conversion run depends on.
//
// These checks run in two contexts:
//   - The conversion run calls RunAll before touching any subject. If a
//     check fails, the run halts before anything is written so a typo in
//     the config cannot produce a half-built dataset.
//   - The CLI "megbids deps" command uses CheckTools to display external
//     tool availability.
//
// Each check is gated by its config toggle -- disabled features are skipped.
package preflight
