package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains project directory configuration.
type Paths struct {
	ProjectDir    string `toml:"project_dir"`
	RawDir        string `toml:"raw_dir"`
	BIDSDir       string `toml:"bids_dir"`
	SourcedataDir string `toml:"sourcedata_dir"`
	LogDir        string `toml:"log_dir"`
	StateDir      string `toml:"state_dir"`
}

// Metadata contains the locations of the hand-authored metadata files.
type Metadata struct {
	EventsFile   string `toml:"events_file"`
	SubjectsFile string `toml:"subjects_file"`
}

// Supported values for meg.system.
const (
	SystemTriux      = "triux"
	SystemVectorview = "vectorview"
)

// MEG contains acquisition hardware and trigger decoding configuration.
type MEG struct {
	System             string   `toml:"system"`
	StimChannels       []string `toml:"stim_channels"`
	ResponseChannels   []string `toml:"response_channels"`
	AdjustEventTimes   bool     `toml:"adjust_event_times"`
	AudioLatencySec    float64  `toml:"audio_latency_sec"`
	VisualLatencySec   float64  `toml:"visual_latency_sec"`
	AuditoryPrefix     string   `toml:"auditory_prefix"`
	VisualPrefix       string   `toml:"visual_prefix"`
	AuditoryEventNames []string `toml:"auditory_event_names"`
	VisualEventNames   []string `toml:"visual_event_names"`
	LineFreq           float64  `toml:"line_freq"`
}

// Calibration contains fine-calibration and cross-talk file paths per
// supported acquisition system.
type Calibration struct {
	TriuxCalFile            string `toml:"triux_cal_file"`
	TriuxCrosstalkFile      string `toml:"triux_crosstalk_file"`
	VectorviewCalFile       string `toml:"vectorview_cal_file"`
	VectorviewCrosstalkFile string `toml:"vectorview_crosstalk_file"`
}

// Anat contains configuration for structural MRI conversion.
type Anat struct {
	Enabled     bool   `toml:"enabled"`
	DicomRoot   string `toml:"dicom_root"`
	VerifyDicom bool   `toml:"verify_dicom"`
}

// Tools contains the external commands the pipeline shells out to.
type Tools struct {
	EEGLocationFixer string `toml:"eeg_location_fixer"`
	Dcm2niix         string `toml:"dcm2niix"`
}

// Dataset contains descriptive fields emitted into the output dataset.
type Dataset struct {
	Name    string   `toml:"name"`
	Authors []string `toml:"authors"`
}

// Workflow contains run-level behaviour toggles.
type Workflow struct {
	KeepExisting   bool `toml:"keep_existing"`
	KeepSourcedata bool `toml:"keep_sourcedata"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format         string            `toml:"format"`
	Level          string            `toml:"level"`
	RetentionDays  int               `toml:"retention_days"`
	StageOverrides map[string]string `toml:"stage_overrides"`
}

// Config encapsulates all configuration values for the conversion pipeline.
//
// Configuration sections by subsystem:
//   - Paths: project, raw-data, output, scratch, log, and state directories
//   - Metadata: event dictionary and subject dictionary file locations
//   - MEG: acquisition system selector and trigger channel configuration
//   - Calibration: fine-calibration and cross-talk files per system
//   - Anat: structural MRI conversion via dcm2niix
//   - Tools: external command names and locations
//   - Dataset: descriptive fields for the emitted dataset
//   - Workflow: output retention behaviour across runs
//   - Logging: log format, level, and retention
type Config struct {
	Paths       Paths       `toml:"paths"`
	Metadata    Metadata    `toml:"metadata"`
	MEG         MEG         `toml:"meg"`
	Calibration Calibration `toml:"calibration"`
	Anat        Anat        `toml:"anat"`
	Tools       Tools       `toml:"tools"`
	Dataset     Dataset     `toml:"dataset"`
	Workflow    Workflow    `toml:"workflow"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/megbids/config.toml")
}

// ResolveConfigPath reports where Load would read configuration from and
// whether a file currently exists there, without parsing it.
func ResolveConfigPath(path string) (string, bool, error) {
	return resolveConfigPath(path)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/megbids/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("megbids.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a conversion run writes into.
// RawDir is deliberately excluded: it is acquisition output and must already
// exist.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.BIDSDir, c.Paths.SourcedataDir, c.Paths.LogDir, c.Paths.StateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FixerBinary returns the EEG channel-location fixer executable.
func (c *Config) FixerBinary() string {
	if strings.TrimSpace(c.Tools.EEGLocationFixer) == "" {
		return defaultFixerBinary
	}
	return c.Tools.EEGLocationFixer
}

// Dcm2niixBinary returns the DICOM-to-NIfTI converter executable.
func (c *Config) Dcm2niixBinary() string {
	if strings.TrimSpace(c.Tools.Dcm2niix) == "" {
		return defaultDcm2niixBinary
	}
	return c.Tools.Dcm2niix
}

// CalibrationFiles returns the fine-calibration and cross-talk file paths for
// the configured acquisition system. Either value may be empty when the
// project does not ship calibration data.
func (c *Config) CalibrationFiles() (cal string, crosstalk string) {
	switch c.MEG.System {
	case SystemVectorview:
		return c.Calibration.VectorviewCalFile, c.Calibration.VectorviewCrosstalkFile
	default:
		return c.Calibration.TriuxCalFile, c.Calibration.TriuxCrosstalkFile
	}
}

// LedgerPath returns the on-disk location of the run ledger database.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "ledger.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
