package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/OpenPSG/edf"
)

// DefaultStart is the acquisition start stamped on generated recordings.
var DefaultStart = time.Date(2023, 6, 15, 9, 30, 0, 0, time.UTC)

// WriteEDF generates a raw recording with one-second data records. order
// fixes the signal layout; every channel must supply the same number of
// samples, a multiple of sampleRate. Signals use an identity digital range
// so physical values survive the round trip exactly.
func WriteEDF(t testing.TB, path, patientID string, sampleRate int, order []string, channels map[string][]float64) {
	t.Helper()

	if len(order) == 0 {
		t.Fatal("WriteEDF needs at least one channel")
	}
	total := len(channels[order[0]])
	if total == 0 || total%sampleRate != 0 {
		t.Fatalf("channel length %d is not a multiple of sample rate %d", total, sampleRate)
	}
	for _, label := range order {
		if len(channels[label]) != total {
			t.Fatalf("channel %s has %d samples, want %d", label, len(channels[label]), total)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	signals := make([]edf.Signal, len(order))
	for i, label := range order {
		unit := "V"
		if strings.HasPrefix(label, "EEG") {
			unit = "uV"
		}
		signals[i] = edf.Signal{
			Label:             label,
			PhysicalDimension: unit,
			PhysicalMin:       -32768,
			PhysicalMax:       32767,
			DigitalMin:        -32768,
			DigitalMax:        32767,
			SamplesPerRecord:  sampleRate,
		}
	}

	w, err := edf.Create(f, edf.Header{
		Version:            edf.Version0,
		PatientID:          patientID,
		StartTime:          DefaultStart,
		DataRecordDuration: time.Second,
		SignalCount:        len(order),
		Signals:            signals,
	})
	if err != nil {
		t.Fatalf("create edf writer: %v", err)
	}
	for start := 0; start < total; start += sampleRate {
		record := make([][]float64, len(order))
		for i, label := range order {
			record[i] = channels[label][start : start+sampleRate]
		}
		if err := w.WriteRecord(record); err != nil {
			t.Fatalf("write record: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close edf writer: %v", err)
	}
}

// Pulses builds a channel of the given length holding value over each
// start→start+count span and zero elsewhere.
func Pulses(total int, value float64, pulses map[int]int) []float64 {
	samples := make([]float64, total)
	for start, count := range pulses {
		for i := start; i < start+count && i < total; i++ {
			samples[i] = value
		}
	}
	return samples
}
