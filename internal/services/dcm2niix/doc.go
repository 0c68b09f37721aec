// Package dcm2niix wraps the DICOM-to-NIfTI converter used for structural
// images.
//
// The converter is invoked once per subject with merging and compression
// enabled so a multi-file series lands as a single .nii.gz volume under the
// requested stem. Tests swap the command constructor to avoid executing the
// real tool.
package dcm2niix
