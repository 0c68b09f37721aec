package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeMetadata(); err != nil {
		return err
	}
	c.normalizeMEG()
	if err := c.normalizeCalibration(); err != nil {
		return err
	}
	if err := c.normalizeAnat(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeDataset()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ProjectDir) == "" {
		if value, ok := os.LookupEnv("MEGBIDS_PROJECT_DIR"); ok {
			c.Paths.ProjectDir = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Paths.ProjectDir) != "" {
		if c.Paths.ProjectDir, err = expandPath(c.Paths.ProjectDir); err != nil {
			return fmt.Errorf("paths.project_dir: %w", err)
		}
	}

	fill := func(field *string, name string, fallback ...string) error {
		if strings.TrimSpace(*field) == "" {
			if c.Paths.ProjectDir == "" {
				return nil
			}
			*field = filepath.Join(append([]string{c.Paths.ProjectDir}, fallback...)...)
		}
		expanded, err := expandPath(*field)
		if err != nil {
			return fmt.Errorf("paths.%s: %w", name, err)
		}
		*field = expanded
		return nil
	}

	if err := fill(&c.Paths.RawDir, "raw_dir", defaultRawDirName); err != nil {
		return err
	}
	if err := fill(&c.Paths.BIDSDir, "bids_dir", defaultBIDSDirName); err != nil {
		return err
	}
	if strings.TrimSpace(c.Paths.SourcedataDir) == "" && c.Paths.BIDSDir != "" {
		c.Paths.SourcedataDir = filepath.Join(c.Paths.BIDSDir, defaultSourcedataDirName)
	}
	if err := fill(&c.Paths.SourcedataDir, "sourcedata_dir"); err != nil {
		return err
	}
	if err := fill(&c.Paths.LogDir, "log_dir", defaultLogDirName); err != nil {
		return err
	}
	if err := fill(&c.Paths.StateDir, "state_dir", defaultStateDirName); err != nil {
		return err
	}
	return nil
}

func (c *Config) normalizeMetadata() error {
	var err error
	if strings.TrimSpace(c.Metadata.EventsFile) == "" && c.Paths.ProjectDir != "" {
		c.Metadata.EventsFile = filepath.Join(c.Paths.ProjectDir, defaultEventsFileName)
	}
	if strings.TrimSpace(c.Metadata.EventsFile) != "" {
		if c.Metadata.EventsFile, err = expandPath(c.Metadata.EventsFile); err != nil {
			return fmt.Errorf("metadata.events_file: %w", err)
		}
	}
	if strings.TrimSpace(c.Metadata.SubjectsFile) == "" && c.Paths.ProjectDir != "" {
		c.Metadata.SubjectsFile = filepath.Join(c.Paths.ProjectDir, defaultSubjectsFileName)
	}
	if strings.TrimSpace(c.Metadata.SubjectsFile) != "" {
		if c.Metadata.SubjectsFile, err = expandPath(c.Metadata.SubjectsFile); err != nil {
			return fmt.Errorf("metadata.subjects_file: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeMEG() {
	c.MEG.System = strings.ToLower(strings.TrimSpace(c.MEG.System))
	if c.MEG.System == "" {
		c.MEG.System = defaultMEGSystem
	}
	c.MEG.StimChannels = normalizeChannelList(c.MEG.StimChannels)
	if len(c.MEG.StimChannels) == 0 {
		c.MEG.StimChannels = defaultStimChannels()
	}
	c.MEG.ResponseChannels = normalizeChannelList(c.MEG.ResponseChannels)
	if c.MEG.AudioLatencySec == 0 {
		c.MEG.AudioLatencySec = defaultAudioLatencySec
	}
	if c.MEG.VisualLatencySec == 0 {
		c.MEG.VisualLatencySec = defaultVisualLatencySec
	}
	c.MEG.AuditoryPrefix = strings.TrimSpace(c.MEG.AuditoryPrefix)
	if c.MEG.AuditoryPrefix == "" {
		c.MEG.AuditoryPrefix = defaultAuditoryPrefix
	}
	c.MEG.VisualPrefix = strings.TrimSpace(c.MEG.VisualPrefix)
	if c.MEG.VisualPrefix == "" {
		c.MEG.VisualPrefix = defaultVisualPrefix
	}
	c.MEG.AuditoryEventNames = normalizeNameList(c.MEG.AuditoryEventNames)
	c.MEG.VisualEventNames = normalizeNameList(c.MEG.VisualEventNames)
	if c.MEG.LineFreq == 0 {
		c.MEG.LineFreq = defaultLineFreq
	}
}

func normalizeChannelList(channels []string) []string {
	if len(channels) == 0 {
		return nil
	}
	out := make([]string, 0, len(channels))
	seen := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		normalized := strings.ToUpper(strings.TrimSpace(ch))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

func normalizeNameList(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

func (c *Config) normalizeCalibration() error {
	var err error
	fields := []struct {
		value *string
		name  string
	}{
		{&c.Calibration.TriuxCalFile, "triux_cal_file"},
		{&c.Calibration.TriuxCrosstalkFile, "triux_crosstalk_file"},
		{&c.Calibration.VectorviewCalFile, "vectorview_cal_file"},
		{&c.Calibration.VectorviewCrosstalkFile, "vectorview_crosstalk_file"},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = ""
			continue
		}
		if *field.value, err = expandPath(*field.value); err != nil {
			return fmt.Errorf("calibration.%s: %w", field.name, err)
		}
	}
	return nil
}

func (c *Config) normalizeAnat() error {
	var err error
	if strings.TrimSpace(c.Anat.DicomRoot) == "" {
		if value, ok := os.LookupEnv("MEGBIDS_DICOM_ROOT"); ok {
			c.Anat.DicomRoot = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Anat.DicomRoot) != "" {
		if c.Anat.DicomRoot, err = expandPath(c.Anat.DicomRoot); err != nil {
			return fmt.Errorf("anat.dicom_root: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeTools() {
	c.Tools.EEGLocationFixer = strings.TrimSpace(c.Tools.EEGLocationFixer)
	if c.Tools.EEGLocationFixer == "" {
		c.Tools.EEGLocationFixer = defaultFixerBinary
	}
	c.Tools.Dcm2niix = strings.TrimSpace(c.Tools.Dcm2niix)
	if c.Tools.Dcm2niix == "" {
		c.Tools.Dcm2niix = defaultDcm2niixBinary
	}
}

func (c *Config) normalizeDataset() {
	c.Dataset.Name = strings.TrimSpace(c.Dataset.Name)
	if c.Dataset.Name == "" {
		c.Dataset.Name = defaultDatasetName
	}
	authors := make([]string, 0, len(c.Dataset.Authors))
	for _, author := range c.Dataset.Authors {
		if trimmed := strings.TrimSpace(author); trimmed != "" {
			authors = append(authors, trimmed)
		}
	}
	c.Dataset.Authors = authors
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
