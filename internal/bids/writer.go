package bids

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"log/slog"

	"github.com/MRC-CBU/BIDS-conversion/internal/config"
	"github.com/MRC-CBU/BIDS-conversion/internal/fileutil"
	"github.com/MRC-CBU/BIDS-conversion/internal/logging"
	"github.com/MRC-CBU/BIDS-conversion/internal/meta"
	"github.com/MRC-CBU/BIDS-conversion/internal/recording"
	"github.com/MRC-CBU/BIDS-conversion/internal/trigger"
)

const manufacturer = "Elekta"

// Writer emits the standardized dataset tree under the configured output
// root.
type Writer struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewWriter constructs a dataset writer.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	return &Writer{cfg: cfg, logger: logging.NewComponentLogger(logger, "bids")}
}

// Run describes one recording to place into the dataset.
type Run struct {
	Subject string
	Task    string
	Run     string
	// Events holds the decoded trigger events. Empty for the baseline
	// recording and for runs that carried no triggers.
	Events     []trigger.Event
	Dictionary *meta.Dictionary
	// EmptyRoom is the dataset-relative path of the subject's baseline
	// recording, referenced from the sidecar when present.
	EmptyRoom string
}

// WriteRun copies a recording into the dataset and writes its event table,
// channel table and sidecar. Existing files at the target are replaced.
func (w *Writer) WriteRun(rec *recording.Recording, run Run) (Target, error) {
	target := NewTarget(w.cfg.Paths.BIDSDir, run.Subject, run.Task, run.Run)
	if err := os.MkdirAll(target.Dir(), 0o755); err != nil {
		return target, fmt.Errorf("create %s: %w", target.Dir(), err)
	}

	ext := filepath.Ext(rec.Path())
	if err := fileutil.CopyFileVerified(rec.Path(), target.DataFile(ext)); err != nil {
		return target, fmt.Errorf("place recording %s: %w", target, err)
	}

	if err := w.writeEvents(rec, run, target); err != nil {
		return target, err
	}
	if err := w.writeChannels(rec, target); err != nil {
		return target, err
	}
	if err := w.writeSidecar(rec, run, target); err != nil {
		return target, err
	}

	w.logger.Info("recording placed",
		logging.String("target", target.String()),
		logging.Int("events", len(run.Events)),
		logging.String("data_file", target.DataFile(ext)),
	)
	return target, nil
}

func (w *Writer) writeEvents(rec *recording.Recording, run Run, target Target) error {
	if len(run.Events) == 0 {
		// A re-run that no longer decodes events must not leave a
		// stale table behind.
		if err := os.Remove(target.EventsFile()); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove stale event table: %w", err)
		}
		return nil
	}
	if run.Dictionary == nil {
		return fmt.Errorf("recording %s has events but no event dictionary", target)
	}

	events := make([]trigger.Event, len(run.Events))
	copy(events, run.Events)
	sort.SliceStable(events, func(i, j int) bool { return events[i].Sample < events[j].Sample })

	rate := rec.SampleRate()
	firstSamp := rec.FirstSamp()
	rows := make([][]string, 0, len(events)+1)
	rows = append(rows, []string{"onset", "duration", "sample", "trial_type", "value"})
	for _, ev := range events {
		name, ok := run.Dictionary.NameForCode(ev.Code)
		if !ok {
			return fmt.Errorf("recording %s: event code %d at sample %d not in the event dictionary", target, ev.Code, ev.Sample)
		}
		sample := ev.Sample - firstSamp
		rows = append(rows, []string{
			formatSeconds(float64(sample) / rate),
			"0.0",
			strconv.Itoa(sample),
			name,
			strconv.Itoa(ev.Code),
		})
	}
	return writeTable(target.EventsFile(), rows)
}

func (w *Writer) writeChannels(rec *recording.Recording, target Target) error {
	names := rec.ChannelNames()
	rows := make([][]string, 0, len(names)+1)
	rows = append(rows, []string{"name", "type", "units", "status"})
	for _, name := range names {
		unit := rec.ChannelUnit(name)
		if unit == "" {
			unit = "n/a"
		}
		rows = append(rows, []string{name, channelType(name), unit, "good"})
	}
	return writeTable(target.ChannelsFile(), rows)
}

type sidecar struct {
	TaskName            string  `json:"TaskName"`
	Manufacturer        string  `json:"Manufacturer"`
	SamplingFrequency   float64 `json:"SamplingFrequency"`
	PowerLineFrequency  float64 `json:"PowerLineFrequency"`
	RecordingDuration   float64 `json:"RecordingDuration"`
	RecordingType       string  `json:"RecordingType"`
	AssociatedEmptyRoom string  `json:"AssociatedEmptyRoom,omitempty"`
}

func (w *Writer) writeSidecar(rec *recording.Recording, run Run, target Target) error {
	doc := sidecar{
		TaskName:            run.Task,
		Manufacturer:        manufacturer,
		SamplingFrequency:   rec.SampleRate(),
		PowerLineFrequency:  w.cfg.MEG.LineFreq,
		RecordingDuration:   rec.Duration().Seconds(),
		RecordingType:       "continuous",
		AssociatedEmptyRoom: run.EmptyRoom,
	}
	return writeJSON(target.SidecarFile(), doc)
}

// AnnotateBadChannels flips the status column of the listed channels to
// "bad" in a previously written channel table. Every listed channel must be
// present in the table.
func (w *Writer) AnnotateBadChannels(target Target, bads []string) error {
	if len(bads) == 0 {
		return nil
	}
	rows, err := readTable(target.ChannelsFile())
	if err != nil {
		return fmt.Errorf("read channel table of %s: %w", target, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("channel table of %s is empty", target)
	}
	nameCol, statusCol := -1, -1
	for i, col := range rows[0] {
		switch col {
		case "name":
			nameCol = i
		case "status":
			statusCol = i
		}
	}
	if nameCol < 0 || statusCol < 0 {
		return fmt.Errorf("channel table of %s lacks name or status columns", target)
	}

	wanted := make(map[string]bool, len(bads))
	for _, name := range bads {
		wanted[name] = true
	}
	marked := 0
	for _, row := range rows[1:] {
		if len(row) <= nameCol || len(row) <= statusCol {
			continue
		}
		if wanted[row[nameCol]] {
			row[statusCol] = "bad"
			delete(wanted, row[nameCol])
			marked++
		}
	}
	if len(wanted) > 0 {
		missing := make([]string, 0, len(wanted))
		for name := range wanted {
			missing = append(missing, name)
		}
		sort.Strings(missing)
		return fmt.Errorf("bad channels %s not present in recording %s", strings.Join(missing, ", "), target)
	}
	if err := writeTable(target.ChannelsFile(), rows); err != nil {
		return err
	}
	w.logger.Info("bad channels annotated",
		logging.String("target", target.String()),
		logging.Int("channels", marked),
	)
	return nil
}

// WriteCalibration copies the fine-calibration and crosstalk files for the
// configured acquisition system next to a subject's recordings. Unconfigured
// files are skipped.
func (w *Writer) WriteCalibration(subject string) error {
	cal, crosstalk := w.cfg.CalibrationFiles()
	if cal == "" && crosstalk == "" {
		return nil
	}
	dir := filepath.Join(SubjectDir(w.cfg.Paths.BIDSDir, subject), "meg")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	if cal != "" {
		if err := fileutil.CopyFile(cal, CalibrationPath(w.cfg.Paths.BIDSDir, subject)); err != nil {
			return fmt.Errorf("copy calibration file: %w", err)
		}
	}
	if crosstalk != "" {
		if err := fileutil.CopyFile(crosstalk, CrosstalkPath(w.cfg.Paths.BIDSDir, subject)); err != nil {
			return fmt.Errorf("copy crosstalk file: %w", err)
		}
	}
	w.logger.Debug("calibration files placed", logging.String("subject", subject))
	return nil
}

func channelType(name string) string {
	switch {
	case strings.HasPrefix(name, "STI"):
		return "TRIG"
	case strings.HasPrefix(name, "EEG"):
		return "EEG"
	case strings.HasPrefix(name, "EOG"):
		return "EOG"
	case strings.HasPrefix(name, "ECG"):
		return "ECG"
	case strings.HasPrefix(name, "EMG"):
		return "EMG"
	case strings.HasPrefix(name, "MEG"):
		// Neuromag sensor triplets end in 1 for the magnetometer and
		// 2/3 for the planar gradiometers.
		if strings.HasSuffix(name, "1") {
			return "MEGMAG"
		}
		return "MEGGRADPLANAR"
	default:
		return "MISC"
	}
}

// formatSeconds renders an onset with microsecond precision and no trailing
// zeros.
func formatSeconds(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e6)/1e6, 'f', -1, 64)
}

func writeTable(path string, rows [][]string) error {
	var b strings.Builder
	for _, row := range rows {
		b.WriteString(strings.Join(row, "\t"))
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func readTable(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	rows := make([][]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		rows = append(rows, strings.Split(line, "\t"))
	}
	return rows, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
