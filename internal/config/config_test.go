package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"github.com/MRC-CBU/BIDS-conversion/internal/config"
)

func TestLoadDefaultConfigUsesEnvProjectDirAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	project := filepath.Join(tempHome, "meg_project")
	t.Setenv("MEGBIDS_PROJECT_DIR", project)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	if cfg.Paths.ProjectDir != project {
		t.Fatalf("unexpected project dir: got %q want %q", cfg.Paths.ProjectDir, project)
	}
	if cfg.Paths.RawDir != filepath.Join(project, "raw_data") {
		t.Fatalf("unexpected raw dir: %q", cfg.Paths.RawDir)
	}
	if cfg.Paths.BIDSDir != filepath.Join(project, "data") {
		t.Fatalf("unexpected bids dir: %q", cfg.Paths.BIDSDir)
	}
	if cfg.Paths.SourcedataDir != filepath.Join(project, "data", "sourcedata") {
		t.Fatalf("unexpected sourcedata dir: %q", cfg.Paths.SourcedataDir)
	}
	if cfg.Metadata.EventsFile != filepath.Join(project, "events.json") {
		t.Fatalf("unexpected events file: %q", cfg.Metadata.EventsFile)
	}
	if cfg.MEG.System != config.SystemTriux {
		t.Fatalf("expected default system triux, got %q", cfg.MEG.System)
	}
	if len(cfg.MEG.StimChannels) != 8 || cfg.MEG.StimChannels[0] != "STI001" {
		t.Fatalf("unexpected default stim channels: %v", cfg.MEG.StimChannels)
	}
	if cfg.MEG.AdjustEventTimes {
		t.Fatal("expected event-time adjustment disabled by default")
	}
	if cfg.MEG.AudioLatencySec != 0.028 {
		t.Fatalf("unexpected audio latency: %v", cfg.MEG.AudioLatencySec)
	}
	if cfg.MEG.VisualLatencySec != 0.034 {
		t.Fatalf("unexpected visual latency: %v", cfg.MEG.VisualLatencySec)
	}
	if cfg.MEG.LineFreq != 50 {
		t.Fatalf("unexpected line freq: %v", cfg.MEG.LineFreq)
	}
	if cfg.Anat.Enabled {
		t.Fatal("expected anat conversion disabled by default")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, dir := range []string{cfg.Paths.BIDSDir, cfg.Paths.SourcedataDir, cfg.Paths.LogDir, cfg.Paths.StateDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
	if _, err := os.Stat(cfg.Paths.RawDir); !os.IsNotExist(err) {
		t.Fatalf("expected raw dir to be left alone, stat err: %v", err)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "megbids.toml")

	type payload struct {
		Paths struct {
			ProjectDir string `toml:"project_dir"`
		} `toml:"paths"`
		MEG struct {
			System           string   `toml:"system"`
			StimChannels     []string `toml:"stim_channels"`
			ResponseChannels []string `toml:"response_channels"`
		} `toml:"meg"`
		Dataset struct {
			Name string `toml:"name"`
		} `toml:"dataset"`
	}
	custom := payload{}
	custom.Paths.ProjectDir = filepath.Join(tempDir, "project")
	custom.MEG.System = "vectorview"
	custom.MEG.StimChannels = []string{"sti003", "STI004"}
	custom.MEG.ResponseChannels = []string{"STI009"}
	custom.Dataset.Name = "Pilot study"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.MEG.System != config.SystemVectorview {
		t.Fatalf("expected vectorview, got %q", cfg.MEG.System)
	}
	if len(cfg.MEG.StimChannels) != 2 || cfg.MEG.StimChannels[0] != "STI003" {
		t.Fatalf("expected uppercased stim channels, got %v", cfg.MEG.StimChannels)
	}
	if cfg.Dataset.Name != "Pilot study" {
		t.Fatalf("unexpected dataset name: %q", cfg.Dataset.Name)
	}

	cal, crosstalk := cfg.CalibrationFiles()
	if cal != "" || crosstalk != "" {
		t.Fatalf("expected empty calibration files, got %q %q", cal, crosstalk)
	}
}

func TestCalibrationFilesFollowSystem(t *testing.T) {
	cfg := config.Default()
	cfg.Calibration.TriuxCalFile = "/neuro/sss_cal.dat"
	cfg.Calibration.TriuxCrosstalkFile = "/neuro/ct_sparse.fif"
	cfg.Calibration.VectorviewCalFile = "/neuro/vv_cal.dat"

	cfg.MEG.System = config.SystemTriux
	cal, crosstalk := cfg.CalibrationFiles()
	if cal != "/neuro/sss_cal.dat" || crosstalk != "/neuro/ct_sparse.fif" {
		t.Fatalf("unexpected triux calibration: %q %q", cal, crosstalk)
	}

	cfg.MEG.System = config.SystemVectorview
	cal, crosstalk = cfg.CalibrationFiles()
	if cal != "/neuro/vv_cal.dat" || crosstalk != "" {
		t.Fatalf("unexpected vectorview calibration: %q %q", cal, crosstalk)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "your_meg_project_here") {
		t.Fatalf("sample config missing placeholder project dir: %s", contents)
	}

	// Validate it decodes
	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if len(cfg.MEG.StimChannels) != 8 {
		t.Fatalf("expected 8 stim channels in sample, got %v", cfg.MEG.StimChannels)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	base := func() config.Config {
		cfg := config.Default()
		cfg.Paths.ProjectDir = "/tmp/project"
		cfg.Metadata.EventsFile = "/tmp/project/events.json"
		cfg.Metadata.SubjectsFile = "/tmp/project/subjects.json"
		return cfg
	}

	cfg := config.Default()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing project dir")
	}

	cfg = base()
	cfg.MEG.System = "ctf"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown system")
	}

	cfg = base()
	cfg.MEG.StimChannels = []string{"STI017"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out-of-range bit-line")
	}

	cfg = base()
	cfg.MEG.StimChannels = []string{"STI001", "STI101"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when STI101 is mixed with bit-lines")
	}

	cfg = base()
	cfg.MEG.StimChannels = []string{"STI001", "STI002"}
	cfg.MEG.ResponseChannels = []string{"STI002"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for overlapping stim and response channels")
	}

	cfg = base()
	cfg.MEG.StimChannels = []string{"STI101"}
	cfg.MEG.ResponseChannels = []string{"STI009"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for STI101 in mapping form")
	}

	cfg = base()
	cfg.MEG.AudioLatencySec = -0.01
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative latency")
	}

	cfg = base()
	cfg.Anat.Enabled = true
	cfg.Anat.DicomRoot = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when anat enabled without dicom root")
	}

	cfg = base()
	cfg.MEG.StimChannels = []string{"STI101"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected lone STI101 to be valid: %v", err)
	}
}
