package config

const (
	defaultRawDirName        = "raw_data"
	defaultBIDSDirName       = "data"
	defaultSourcedataDirName = "sourcedata"
	defaultLogDirName        = "logs"
	defaultStateDirName      = ".megbids"
	defaultEventsFileName    = "events.json"
	defaultSubjectsFileName  = "subjects.json"
	defaultMEGSystem         = "triux"
	defaultAudioLatencySec   = 0.028
	defaultVisualLatencySec  = 0.034
	defaultAuditoryPrefix    = "spoken"
	defaultVisualPrefix      = "written"
	defaultLineFreq          = 50.0
	defaultFixerBinary       = "mne_check_eeg_locations"
	defaultDcm2niixBinary    = "dcm2niix"
	defaultDatasetName       = "MEG dataset"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogRetentionDays  = 60
)

func defaultStimChannels() []string {
	return []string{
		"STI001", "STI002", "STI003", "STI004",
		"STI005", "STI006", "STI007", "STI008",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		MEG: MEG{
			System:           defaultMEGSystem,
			StimChannels:     defaultStimChannels(),
			AudioLatencySec:  defaultAudioLatencySec,
			VisualLatencySec: defaultVisualLatencySec,
			AuditoryPrefix:   defaultAuditoryPrefix,
			VisualPrefix:     defaultVisualPrefix,
			LineFreq:         defaultLineFreq,
		},
		Anat: Anat{
			VerifyDicom: true,
		},
		Tools: Tools{
			EEGLocationFixer: defaultFixerBinary,
			Dcm2niix:         defaultDcm2niixBinary,
		},
		Dataset: Dataset{
			Name: defaultDatasetName,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
