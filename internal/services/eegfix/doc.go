// Package eegfix wraps the command-line tool that repairs EEG electrode
// location metadata in raw recordings.
//
// Vectorview acquisitions occasionally store electrode positions in head
// coordinates the downstream tooling rejects; the fixer rewrites them in
// place. It is only ever pointed at a staged copy, never at original data.
// Tests swap the command constructor to avoid executing the real tool.
package eegfix
