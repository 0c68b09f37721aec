package preflight

import (
	"github.com/MRC-CBU/BIDS-conversion/internal/config"
	"github.com/MRC-CBU/BIDS-conversion/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryReadable("Raw data directory", cfg.Paths.RawDir),
		CheckDirectoryAccess("BIDS directory", cfg.Paths.BIDSDir),
		CheckDirectoryAccess("Sourcedata directory", cfg.Paths.SourcedataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckFileReadable("Events file", cfg.Metadata.EventsFile),
		CheckFileReadable("Subjects file", cfg.Metadata.SubjectsFile),
	}

	cal, crosstalk := cfg.CalibrationFiles()
	if cal != "" {
		results = append(results, CheckFileReadable("Calibration file", cal))
	}
	if crosstalk != "" {
		results = append(results, CheckFileReadable("Crosstalk file", crosstalk))
	}

	if cfg.Anat.Enabled && cfg.Anat.DicomRoot != "" {
		results = append(results, CheckDirectoryReadable("DICOM directory", cfg.Anat.DicomRoot))
	}

	return results
}

// CheckTools evaluates the external converter binaries for the given config.
// Both the conversion run and the CLI deps command use this to avoid
// duplicating the requirements list.
func CheckTools(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(cfg))
}
