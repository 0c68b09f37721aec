// Package anat converts structural MRI acquisitions into the dataset.
//
// It scans the subject's DICOM series to confirm the scanner identity fields
// match the subject record, drives the external converter, and validates the
// produced volume before it is accepted into the output tree. Structural
// conversion is independent of the MEG pipeline; a failure here never rolls
// back written MEG output.
package anat
