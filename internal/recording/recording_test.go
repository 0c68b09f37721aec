package recording_test

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/OpenPSG/edf"

	"github.com/MRC-CBU/BIDS-conversion/internal/recording"
	"github.com/MRC-CBU/BIDS-conversion/internal/trigger"
)

var fixtureStart = time.Date(2023, 6, 15, 9, 30, 0, 0, time.UTC)

// Identity digital range so physical values survive the round trip exactly.
func testSignal(label string, samplesPerRecord int) edf.Signal {
	unit := "V"
	if strings.HasPrefix(label, "EEG") {
		unit = "uV"
	}
	return edf.Signal{
		Label:             label,
		PhysicalDimension: unit,
		PhysicalMin:       -32768,
		PhysicalMax:       32767,
		DigitalMin:        -32768,
		DigitalMax:        32767,
		SamplesPerRecord:  samplesPerRecord,
	}
}

func writeTestEDF(t *testing.T, path string, order []string, channels map[string][]float64, samplesPerRecord int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	signals := make([]edf.Signal, len(order))
	for i, label := range order {
		signals[i] = testSignal(label, samplesPerRecord)
	}
	w, err := edf.Create(f, edf.Header{
		Version:            edf.Version0,
		PatientID:          "meg23_0101",
		RecordingID:        "listening_run1",
		StartTime:          fixtureStart,
		DataRecordDuration: time.Second,
		SignalCount:        len(order),
		Signals:            signals,
	})
	if err != nil {
		t.Fatalf("create edf writer: %v", err)
	}

	total := len(channels[order[0]])
	for start := 0; start < total; start += samplesPerRecord {
		record := make([][]float64, len(order))
		for i, label := range order {
			record[i] = channels[label][start : start+samplesPerRecord]
		}
		if err := w.WriteRecord(record); err != nil {
			t.Fatalf("write record: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close edf writer: %v", err)
	}
}

func flatChannel(total int, pulses map[int]int, value float64) []float64 {
	samples := make([]float64, total)
	for start, count := range pulses {
		for t := start; t < start+count && t < total; t++ {
			samples[t] = value
		}
	}
	return samples
}

func TestOpenReadsHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "task_listening_raw.edf")
	order := []string{"STI001", "STI002", "EEG001"}
	channels := map[string][]float64{
		"STI001": make([]float64, 300),
		"STI002": make([]float64, 300),
		"EEG001": make([]float64, 300),
	}
	writeTestEDF(t, path, order, channels, 100)

	rec, err := recording.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !reflect.DeepEqual(rec.ChannelNames(), order) {
		t.Fatalf("unexpected channel names: %v", rec.ChannelNames())
	}
	if rec.SampleRate() != 100 {
		t.Fatalf("unexpected sample rate: %g", rec.SampleRate())
	}
	if rec.Samples() != 300 {
		t.Fatalf("unexpected sample count: %d", rec.Samples())
	}
	if rec.Duration() != 3*time.Second {
		t.Fatalf("unexpected duration: %v", rec.Duration())
	}
	if rec.FirstSamp() != 0 {
		t.Fatalf("unexpected first sample offset: %d", rec.FirstSamp())
	}
	if !rec.HasEEG() {
		t.Fatal("expected EEG channels to be detected")
	}
	if !rec.HasChannel("STI002") || rec.HasChannel("STI101") {
		t.Fatal("unexpected channel presence")
	}
	if rec.PatientID() != "meg23_0101" {
		t.Fatalf("unexpected patient id: %q", rec.PatientID())
	}
	if unit := rec.ChannelUnit("EEG001"); unit != "uV" {
		t.Fatalf("unexpected EEG001 unit: %q", unit)
	}
	if unit := rec.ChannelUnit("STI001"); unit != "V" {
		t.Fatalf("unexpected STI001 unit: %q", unit)
	}
	if unit := rec.ChannelUnit("MEG0111"); unit != "" {
		t.Fatalf("expected empty unit for unknown channel, got %q", unit)
	}
	if !rec.StartTime().Equal(fixtureStart) {
		t.Fatalf("unexpected start time: %v", rec.StartTime())
	}
}

func TestChannelDataDecodesTriggers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "task_listening_raw.edf")
	order := []string{"STI001", "STI002"}
	channels := map[string][]float64{
		// One pulse crossing a record boundary, then a joint pulse for
		// code 3.
		"STI001": flatChannel(300, map[int]int{95: 20, 150: 20}, 5),
		"STI002": flatChannel(300, map[int]int{150: 20}, 5),
	}
	writeTestEDF(t, path, order, channels, 100)

	rec, err := recording.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	res, err := trigger.Resolve(trigger.ChannelSet{Stim: order}, rec.ChannelNames())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	data, err := rec.ChannelData(res.Channels())
	if err != nil {
		t.Fatalf("ChannelData failed: %v", err)
	}
	events, err := trigger.Decode(data, res, rec.SampleRate(), rec.FirstSamp())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	want := []trigger.Event{
		{Sample: 95, Previous: 0, Code: 1},
		{Sample: 150, Previous: 0, Code: 3},
	}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("unexpected events:\n got %v\nwant %v", events, want)
	}
}

func TestChannelDataUnknownChannel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "task_raw.edf")
	writeTestEDF(t, path, []string{"STI001"}, map[string][]float64{"STI001": make([]float64, 100)}, 100)

	rec, err := recording.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := rec.ChannelData([]string{"STI009"}); err == nil {
		t.Fatal("expected error for unknown channel")
	}
}

func TestChannelDataRejectsMixedRates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "task_raw.edf")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	w, err := edf.Create(f, edf.Header{
		Version:            edf.Version0,
		PatientID:          "meg23_0101",
		StartTime:          fixtureStart,
		DataRecordDuration: time.Second,
		SignalCount:        2,
		Signals: []edf.Signal{
			testSignal("STI001", 100),
			testSignal("MISC001", 50),
		},
	})
	if err != nil {
		t.Fatalf("create edf writer: %v", err)
	}
	if err := w.WriteRecord([][]float64{make([]float64, 100), make([]float64, 50)}); err != nil {
		t.Fatalf("write record: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close edf writer: %v", err)
	}

	rec, err := recording.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := rec.ChannelData([]string{"MISC001"}); err == nil {
		t.Fatal("expected error for mixed sampling rates")
	}
	if _, err := rec.ChannelData([]string{"STI001"}); err != nil {
		t.Fatalf("expected first-rate channel to read, got %v", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := recording.Open(filepath.Join(t.TempDir(), "absent.edf")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
