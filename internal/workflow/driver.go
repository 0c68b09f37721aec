package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MRC-CBU/BIDS-conversion/internal/anat"
	"github.com/MRC-CBU/BIDS-conversion/internal/bids"
	"github.com/MRC-CBU/BIDS-conversion/internal/config"
	"github.com/MRC-CBU/BIDS-conversion/internal/fileutil"
	"github.com/MRC-CBU/BIDS-conversion/internal/logging"
	"github.com/MRC-CBU/BIDS-conversion/internal/meta"
	"github.com/MRC-CBU/BIDS-conversion/internal/recording"
	"github.com/MRC-CBU/BIDS-conversion/internal/services"
	"github.com/MRC-CBU/BIDS-conversion/internal/services/eegfix"
	"github.com/MRC-CBU/BIDS-conversion/internal/trigger"
)

// Driver converts one subject at a time through the fixed stage sequence.
// It never touches the ledger; outcome bookkeeping belongs to the Runner.
type Driver struct {
	cfg        *config.Config
	logger     *slog.Logger
	writer     *bids.Writer
	fixer      eegfix.Client
	converter  *anat.Converter
	ownClients bool

	// correct applies the latency shift. The indirection exists so tests can
	// count invocations; the shift mutates events in place and must run at
	// most once per decoded array.
	correct func(events []trigger.Event, lat trigger.Latencies, sfreq float64) (trigger.CorrectionResult, error)
}

// Outcome tallies what one subject's conversion produced.
type Outcome struct {
	Recordings int
	Events     int
	Structural bool
}

// NewDriver constructs a driver with the real external tool clients.
func NewDriver(cfg *config.Config, logger *slog.Logger) *Driver {
	d := &Driver{
		cfg:        cfg,
		fixer:      eegfix.NewCLI(eegfix.WithBinary(cfg.FixerBinary())),
		converter:  anat.NewConverter(cfg, logger),
		ownClients: true,
		correct:    trigger.CorrectEventTimes,
	}
	d.SetLogger(logger)
	return d
}

// NewDriverWithClients constructs a driver with injected tool clients (used in tests).
func NewDriverWithClients(cfg *config.Config, logger *slog.Logger, fixer eegfix.Client, converter *anat.Converter) *Driver {
	d := &Driver{
		cfg:       cfg,
		fixer:     fixer,
		converter: converter,
		correct:   trigger.CorrectEventTimes,
	}
	d.SetLogger(logger)
	return d
}

// SetLogger swaps the driver's logger, typically for the run-scoped logger
// built once the run id is known. Driver-owned collaborators are rebuilt so
// their output lands in the same place.
func (d *Driver) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = logging.NewNop()
	}
	d.logger = logging.NewComponentLogger(logger, "driver")
	d.writer = bids.NewWriter(d.cfg, logger)
	if d.ownClients {
		d.converter = anat.NewConverter(d.cfg, logger)
	}
}

// ConvertSubject runs the full stage sequence for one subject: hold out the
// empty-room baseline, convert it first so task runs can reference it, then
// convert each task recording, copy calibration files, and finish with the
// structural scan. The first failing stage aborts the subject; a structural
// failure still leaves the already written MEG output in place.
func (d *Driver) ConvertSubject(ctx context.Context, label string, sub meta.Subject, dict *meta.Dictionary) (Outcome, error) {
	var out Outcome
	ctx = services.WithSubject(ctx, label)

	if !sub.Convertible() {
		return out, services.Wrap(services.ErrSubjectData, "validate", label, "subject has no bids identifier", nil)
	}
	recordings, emptyRoom, err := sub.SplitEmptyroom()
	if err != nil {
		return out, services.Wrap(services.ErrSubjectData, "validate", label, "split raw file list", err)
	}
	if len(recordings) == 0 && emptyRoom == nil {
		return out, services.Wrap(services.ErrSubjectData, "validate", label, "no raw recordings listed", nil)
	}

	var lat trigger.Latencies
	if d.cfg.MEG.AdjustEventTimes {
		lat, err = d.latencies(dict)
		if err != nil {
			return out, services.Wrap(services.ErrConfiguration, "correct", label, "resolve modality code sets", err)
		}
		logger := logging.WithContext(ctx, d.logger)
		if len(lat.AuditoryCodes) == 0 {
			logger.Info("no auditory events in dictionary, audio latency shift disabled",
				logging.String(logging.FieldEventType, "latency_modality_empty"))
		}
		if len(lat.VisualCodes) == 0 {
			logger.Info("no visual events in dictionary, visual latency shift disabled",
				logging.String(logging.FieldEventType, "latency_modality_empty"))
		}
	}

	if !d.cfg.Workflow.KeepExisting {
		dir := bids.SubjectDir(d.cfg.Paths.BIDSDir, sub.BIDSID)
		if err := os.RemoveAll(dir); err != nil {
			return out, fmt.Errorf("remove existing output %s: %w", dir, err)
		}
	}

	noiseRef := ""
	if emptyRoom != nil {
		recCtx := services.WithRecording(ctx, emptyRoom.File)
		target, _, err := d.convertRecording(recCtx, sub, *emptyRoom, dict, lat, "")
		if err != nil {
			return out, err
		}
		noiseRef = target.RelDataFile(filepath.Ext(emptyRoom.File))
		out.Recordings++
	} else {
		logging.WithContext(ctx, d.logger).Info("no empty-room recording listed",
			logging.String(logging.FieldEventType, "emptyroom_missing"))
	}

	for _, f := range recordings {
		recCtx := services.WithRecording(ctx, f.File)
		_, events, err := d.convertRecording(recCtx, sub, f, dict, lat, noiseRef)
		if err != nil {
			return out, err
		}
		out.Recordings++
		out.Events += events
	}

	if err := d.writer.WriteCalibration(sub.BIDSID); err != nil {
		return out, services.Wrap(services.ErrConfiguration, "calibration", label, "copy calibration files", err)
	}
	if err := d.writer.AddParticipant(sub.BIDSID); err != nil {
		return out, fmt.Errorf("update participants table: %w", err)
	}

	if d.cfg.Anat.Enabled {
		if !sub.HasMRI() {
			logging.WithContext(ctx, d.logger).Info("no structural series listed, skipping anatomical conversion",
				logging.String(logging.FieldEventType, "anat_skipped"))
		} else {
			anatCtx := services.WithStage(ctx, "anat")
			if _, err := d.converter.Convert(anatCtx, sub); err != nil {
				return out, services.Wrap(services.ErrExternalTool, "anat", label, "convert structural series", err)
			}
			out.Structural = true
		}
	}
	return out, nil
}

// convertRecording stages one raw file, repairs channel locations when the
// acquisition system needs it, decodes and corrects trigger events, and
// delegates the dataset write. Empty-room recordings skip decoding and are
// filed as the run-less noise task.
func (d *Driver) convertRecording(ctx context.Context, sub meta.Subject, f meta.RawFile, dict *meta.Dictionary, lat trigger.Latencies, noiseRef string) (bids.Target, int, error) {
	srcDir, task, runLabel := sub.RawDir, f.Task, f.Run
	if f.IsEmptyRoom() {
		srcDir, task, runLabel = sub.EmptyroomDir, bids.TaskNoise, ""
	}

	stageLog, stageCtx := d.stageLogger(ctx, "stage")
	staged, err := d.stageRecording(srcDir, f.File, sub.BIDSID)
	if err != nil {
		return bids.Target{}, 0, services.Wrap(services.ErrSubjectData, "stage", f.File, "copy raw recording", err)
	}
	stageLog.Debug("staged raw recording", logging.String("path", staged))

	rec, err := recording.Open(staged)
	if err != nil {
		return bids.Target{}, 0, services.Wrap(services.ErrSubjectData, "stage", f.File, "open staged recording", err)
	}

	// The fixer mutates the staged copy in place before it is written into
	// the dataset. The header fields the decoder relies on are unaffected.
	if d.cfg.MEG.System == config.SystemVectorview && rec.HasEEG() {
		fixLog, fixCtx := d.stageLogger(stageCtx, "fix-eeg")
		if err := d.fixer.Fix(fixCtx, staged); err != nil {
			return bids.Target{}, 0, services.Wrap(services.ErrExternalTool, "fix-eeg", f.File, "repair EEG channel locations", err)
		}
		fixLog.Info("repaired EEG channel locations",
			logging.String(logging.FieldEventType, "eeg_locations_fixed"))
	}

	var events []trigger.Event
	if !f.IsEmptyRoom() {
		events, err = d.decodeEvents(ctx, rec, f)
		if err != nil {
			return bids.Target{}, 0, err
		}

		if d.cfg.MEG.AdjustEventTimes && len(events) > 0 {
			correctLog, _ := d.stageLogger(ctx, "correct")
			result, err := d.correct(events, lat, rec.SampleRate())
			if err != nil {
				return bids.Target{}, 0, services.Wrap(services.ErrConfiguration, "correct", f.File, "apply latency correction", err)
			}
			correctLog.Info("applied stimulus latency correction",
				logging.Int("audio_shift_samples", result.AudioShiftSamples),
				logging.Int("visual_shift_samples", result.VisualShiftSamples),
				logging.Int("events_shifted", result.Shifted()),
				logging.String(logging.FieldEventType, "latency_corrected"))
		}

		qc := SummarizeEvents(events, rec.SampleRate(), rec.FirstSamp(), rec.Samples())
		qcLog, _ := d.stageLogger(ctx, "decode")
		qcLog.Info("decoded trigger events",
			logging.Int("events", qc.Events),
			logging.Any("code_counts", qc.CodeCounts),
			logging.Float64("mean_interval_sec", qc.MeanInterval),
			logging.Float64("sd_interval_sec", qc.StdDevInterval),
			logging.Float64("median_interval_sec", qc.MedianInterval),
			logging.String(logging.FieldEventType, "events_decoded"))
		if qc.OutOfRange > 0 {
			logging.WarnWithContext(qcLog, "corrected onsets fall outside the recording", "events_out_of_range",
				logging.Int("count", qc.OutOfRange))
		}
	}

	target, err := d.writer.WriteRun(rec, bids.Run{
		Subject:    sub.BIDSID,
		Task:       task,
		Run:        runLabel,
		Events:     events,
		Dictionary: dict,
		EmptyRoom:  noiseRef,
	})
	if err != nil {
		return bids.Target{}, 0, services.Wrap(services.ErrSubjectData, "write", f.File, "emit dataset files", err)
	}

	// The empty-room acquisition lacks the head channels, so bads listed for
	// the subject are annotated there only when the recording carries them.
	// Task recordings keep the full list so metadata typos fail loudly.
	bads := sub.BadChannels
	if f.IsEmptyRoom() {
		bads = presentChannels(rec, bads)
	}
	if len(bads) > 0 {
		if err := d.writer.AnnotateBadChannels(target, bads); err != nil {
			return bids.Target{}, 0, services.Wrap(services.ErrSubjectData, "write", f.File, "annotate bad channels", err)
		}
	}
	return target, len(events), nil
}

func presentChannels(rec *recording.Recording, names []string) []string {
	var present []string
	for _, name := range names {
		if rec.HasChannel(name) {
			present = append(present, name)
		}
	}
	return present
}

func (d *Driver) decodeEvents(ctx context.Context, rec *recording.Recording, f meta.RawFile) ([]trigger.Event, error) {
	logger, _ := d.stageLogger(ctx, "decode")

	res, err := trigger.Resolve(trigger.ChannelSet{
		Stim:     d.cfg.MEG.StimChannels,
		Response: d.cfg.MEG.ResponseChannels,
	}, rec.ChannelNames())
	if err != nil {
		return nil, services.Wrap(services.ErrDecode, "decode", f.File, "resolve trigger channels", err)
	}
	if res.Fallback {
		logging.WarnWithContext(logger, "configured trigger channels missing, using combined channel", "trigger_fallback",
			logging.String("missing", strings.Join(res.Missing, ",")),
			logging.String("channel", trigger.CombinedChannel))
	}

	data, err := rec.ChannelData(res.Channels())
	if err != nil {
		return nil, services.Wrap(services.ErrDecode, "decode", f.File, "read trigger channel data", err)
	}
	events, err := trigger.Decode(data, res, rec.SampleRate(), rec.FirstSamp())
	if err != nil {
		return nil, services.Wrap(services.ErrDecode, "decode", f.File, "decode trigger transitions", err)
	}
	return events, nil
}

// stageRecording copies one raw file into the subject's staging directory
// under the source-data root. The original is never modified.
func (d *Driver) stageRecording(srcDir, file, bidsID string) (string, error) {
	src := filepath.Join(srcDir, file)
	dst := filepath.Join(d.cfg.Paths.SourcedataDir, "sub-"+bidsID, file)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	if err := fileutil.CopyFile(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// latencies derives the per-modality latency configuration from the event
// dictionary: explicit event-name lists win over prefix matching.
func (d *Driver) latencies(dict *meta.Dictionary) (trigger.Latencies, error) {
	audio, err := dict.ModalityCodes(d.cfg.MEG.AuditoryEventNames, d.cfg.MEG.AuditoryPrefix)
	if err != nil {
		return trigger.Latencies{}, fmt.Errorf("auditory events: %w", err)
	}
	visual, err := dict.ModalityCodes(d.cfg.MEG.VisualEventNames, d.cfg.MEG.VisualPrefix)
	if err != nil {
		return trigger.Latencies{}, fmt.Errorf("visual events: %w", err)
	}
	return trigger.Latencies{
		AuditoryCodes: audio,
		VisualCodes:   visual,
		AudioSec:      d.cfg.MEG.AudioLatencySec,
		VisualSec:     d.cfg.MEG.VisualLatencySec,
	}, nil
}

func (d *Driver) stageLogger(ctx context.Context, stage string) (*slog.Logger, context.Context) {
	ctx = services.WithStage(ctx, stage)
	logger := logging.WithContext(ctx, d.logger)
	if override := stageOverrideLevel(d.cfg.Logging.StageOverrides, stage); override != "" {
		logger = logging.WithLevelOverride(logger, parseStageLevel(override))
	}
	return logger, ctx
}

func stageOverrideLevel(overrides map[string]string, stage string) string {
	if len(overrides) == 0 {
		return ""
	}
	stage = strings.ToLower(strings.TrimSpace(stage))
	if stage == "" {
		return ""
	}
	for key, value := range overrides {
		if strings.ToLower(strings.TrimSpace(key)) == stage {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func parseStageLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
