package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MRC-CBU/BIDS-conversion/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config rooted in a unique temp directory per test.
// The project layout directories exist when it returns.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.ProjectDir = base
	cfgVal.Paths.RawDir = filepath.Join(base, "raw_data")
	cfgVal.Paths.BIDSDir = filepath.Join(base, "data")
	cfgVal.Paths.SourcedataDir = filepath.Join(base, "data", "sourcedata")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, ".megbids")
	cfgVal.Metadata.EventsFile = filepath.Join(base, "events.json")
	cfgVal.Metadata.SubjectsFile = filepath.Join(base, "subjects.json")
	cfgVal.Dataset.Name = "Test MEG dataset"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := cfgVal.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	if err := os.MkdirAll(cfgVal.Paths.RawDir, 0o755); err != nil {
		t.Fatalf("mkdir raw dir: %v", err)
	}

	return builder.cfg
}

// WithSystem overrides the acquisition system selector.
func WithSystem(system string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.MEG.System = system
	}
}

// WithStimChannels overrides the configured stimulus channel list.
func WithStimChannels(names ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.MEG.StimChannels = names
	}
}

// WithResponseChannels sets the configured response channel list.
func WithResponseChannels(names ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.MEG.ResponseChannels = names
	}
}

// WithCalibrationFiles writes placeholder fine-calibration and crosstalk
// files and points the active system's config entries at them.
func WithCalibrationFiles() ConfigOption {
	return func(b *configBuilder) {
		calDir := filepath.Join(b.baseDir, "calibration")
		cal := filepath.Join(calDir, "sss_cal.dat")
		crosstalk := filepath.Join(calDir, "ct_sparse.fif")
		WriteFile(b.t, cal, 64)
		WriteFile(b.t, crosstalk, 64)
		switch b.cfg.MEG.System {
		case "vectorview":
			b.cfg.Calibration.VectorviewCalFile = cal
			b.cfg.Calibration.VectorviewCrosstalkFile = crosstalk
		default:
			b.cfg.Calibration.TriuxCalFile = cal
			b.cfg.Calibration.TriuxCrosstalkFile = crosstalk
		}
	}
}

// WithAnat enables structural conversion against the given DICOM root,
// creating it when missing.
func WithAnat(dicomRoot string) ConfigOption {
	return func(b *configBuilder) {
		if dicomRoot == "" {
			dicomRoot = filepath.Join(b.baseDir, "dicom")
		}
		if err := os.MkdirAll(dicomRoot, 0o755); err != nil {
			b.t.Fatalf("mkdir dicom root: %v", err)
		}
		b.cfg.Anat.Enabled = true
		b.cfg.Anat.DicomRoot = dicomRoot
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default external binaries
// are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"mne_check_eeg_locations", "dcm2niix"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return cfg.Paths.ProjectDir
}
