// Package recording reads raw MEG acquisitions exported as EDF files and
// exposes the pieces the conversion pipeline needs: channel names, sampling
// rate, per-channel sample data and the acquisition start time.
package recording

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/OpenPSG/edf"

	"github.com/MRC-CBU/BIDS-conversion/internal/trigger"
)

// EDF lays the signal header out as fixed-width arrays, one per field, in
// this order. Offsets below are relative to the 256-byte fixed header.
const (
	fixedHeaderSize   = 256
	labelWidth        = 16
	transducerWidth   = 80
	dimensionWidth    = 8
	physicalWidth     = 8
	digitalWidth      = 8
	prefilterWidth    = 80
	samplesWidth      = 8
	perSignalPreamble = labelWidth + transducerWidth + dimensionWidth +
		2*physicalWidth + 2*digitalWidth + prefilterWidth
)

// Recording is one parsed raw file. Methods that touch sample data reopen
// the file, so a Recording can be held cheaply across pipeline stages.
type Recording struct {
	path             string
	patientID        string
	startTime        time.Time
	labels           []string
	dimensions       []string
	indexByLabel     map[string]int
	samplesPerRecord []int
	dataRecords      int
	recordDurSec     float64
}

// Open parses the header of an EDF recording. The sample data is not read
// until ChannelData is called.
func Open(path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	fixed := make([]byte, fixedHeaderSize)
	if _, err := io.ReadFull(f, fixed); err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	rec := &Recording{
		path:      path,
		patientID: headerString(fixed[8:88]),
	}

	dateStr := headerString(fixed[168:176])
	timeStr := headerString(fixed[176:184])
	if start, err := time.Parse("02.01.06 15.04.05", dateStr+" "+timeStr); err == nil {
		rec.startTime = start
	}

	signalCount, err := headerInt(fixed[252:256])
	if err != nil {
		return nil, fmt.Errorf("parse signal count of %s: %w", path, err)
	}
	if signalCount <= 0 {
		return nil, fmt.Errorf("%s declares no signals", path)
	}
	rec.dataRecords, err = headerInt(fixed[236:244])
	if err != nil {
		return nil, fmt.Errorf("parse record count of %s: %w", path, err)
	}
	if rec.dataRecords < 0 {
		return nil, fmt.Errorf("%s has an unfinalised record count", path)
	}
	rec.recordDurSec, err = headerFloat(fixed[244:252])
	if err != nil {
		return nil, fmt.Errorf("parse record duration of %s: %w", path, err)
	}
	if rec.recordDurSec <= 0 {
		return nil, fmt.Errorf("%s has unsupported record duration %g s", path, rec.recordDurSec)
	}

	labelBytes := make([]byte, signalCount*labelWidth)
	if _, err := io.ReadFull(f, labelBytes); err != nil {
		return nil, fmt.Errorf("read signal labels of %s: %w", path, err)
	}
	rec.labels = make([]string, signalCount)
	rec.indexByLabel = make(map[string]int, signalCount)
	for i := 0; i < signalCount; i++ {
		label := headerString(labelBytes[i*labelWidth : (i+1)*labelWidth])
		rec.labels[i] = label
		if _, dup := rec.indexByLabel[label]; !dup {
			rec.indexByLabel[label] = i
		}
	}

	// Skip the transducer column, then read the physical dimensions. They
	// feed the units column of the emitted channel table.
	dimOffset := int64(fixedHeaderSize + signalCount*(labelWidth+transducerWidth))
	if _, err := f.Seek(dimOffset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek header of %s: %w", path, err)
	}
	dimBytes := make([]byte, signalCount*dimensionWidth)
	if _, err := io.ReadFull(f, dimBytes); err != nil {
		return nil, fmt.Errorf("read signal dimensions of %s: %w", path, err)
	}
	rec.dimensions = make([]string, signalCount)
	for i := 0; i < signalCount; i++ {
		rec.dimensions[i] = headerString(dimBytes[i*dimensionWidth : (i+1)*dimensionWidth])
	}

	// Seek past the remaining per-signal arrays to the samples-per-record
	// column.
	samplesOffset := int64(fixedHeaderSize + signalCount*perSignalPreamble)
	if _, err := f.Seek(samplesOffset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek header of %s: %w", path, err)
	}
	sampleBytes := make([]byte, signalCount*samplesWidth)
	if _, err := io.ReadFull(f, sampleBytes); err != nil {
		return nil, fmt.Errorf("read sample counts of %s: %w", path, err)
	}
	rec.samplesPerRecord = make([]int, signalCount)
	for i := 0; i < signalCount; i++ {
		n, err := headerInt(sampleBytes[i*samplesWidth : (i+1)*samplesWidth])
		if err != nil {
			return nil, fmt.Errorf("parse sample count of signal %d in %s: %w", i, path, err)
		}
		if n <= 0 {
			return nil, fmt.Errorf("signal %d in %s has no samples per record", i, path)
		}
		rec.samplesPerRecord[i] = n
	}
	return rec, nil
}

// Path returns the file the recording was opened from.
func (r *Recording) Path() string {
	return r.path
}

// PatientID returns the patient identification field from the header.
func (r *Recording) PatientID() string {
	return r.patientID
}

// StartTime returns the acquisition start, or the zero time when the header
// carried no parseable date.
func (r *Recording) StartTime() time.Time {
	return r.startTime
}

// ChannelNames returns the signal labels in file order.
func (r *Recording) ChannelNames() []string {
	out := make([]string, len(r.labels))
	copy(out, r.labels)
	return out
}

// SampleRate returns the sampling rate of the first signal in Hz. MEG
// exports use one rate for every channel; mixed-rate files are rejected
// when their channels are read.
func (r *Recording) SampleRate() float64 {
	return float64(r.samplesPerRecord[0]) / r.recordDurSec
}

// FirstSamp returns the recording's first-sample offset. EDF files do not
// carry one, so it is always zero; the decoder still accounts for it so
// formats that do carry an offset stay representable.
func (r *Recording) FirstSamp() int {
	return 0
}

// Samples returns the per-channel sample count.
func (r *Recording) Samples() int {
	return r.dataRecords * r.samplesPerRecord[0]
}

// Duration returns the recorded time span.
func (r *Recording) Duration() time.Duration {
	return time.Duration(float64(r.dataRecords) * r.recordDurSec * float64(time.Second))
}

// HasEEG reports whether any electrode channels were recorded alongside the
// MEG sensors. The channel-location repair step only applies then.
func (r *Recording) HasEEG() bool {
	for _, label := range r.labels {
		if strings.HasPrefix(label, "EEG") {
			return true
		}
	}
	return false
}

// HasChannel reports whether a signal with the given label exists.
func (r *Recording) HasChannel(name string) bool {
	_, ok := r.indexByLabel[name]
	return ok
}

// ChannelUnit returns the physical dimension recorded for a channel, for
// example "uV" or "fT". Unknown channels and blank dimensions yield "".
func (r *Recording) ChannelUnit(name string) string {
	index, ok := r.indexByLabel[name]
	if !ok {
		return ""
	}
	return r.dimensions[index]
}

// ChannelData reads the full physical-valued sample series for each named
// channel. Every requested channel must exist and share the recording's
// sampling rate.
func (r *Recording) ChannelData(names []string) ([]trigger.ChannelData, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	reader, err := edf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", r.path, err)
	}

	out := make([]trigger.ChannelData, 0, len(names))
	for _, name := range names {
		index, ok := r.indexByLabel[name]
		if !ok {
			return nil, fmt.Errorf("channel %s not present in %s", name, r.path)
		}
		if r.samplesPerRecord[index] != r.samplesPerRecord[0] {
			return nil, fmt.Errorf("channel %s has a different sampling rate in %s", name, r.path)
		}

		signal, err := reader.Signal(index)
		if err != nil {
			return nil, fmt.Errorf("channel %s in %s: %w", name, r.path, err)
		}
		samples := make([]float64, r.dataRecords*r.samplesPerRecord[index])
		n, err := signal.Read(samples)
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("read channel %s of %s: %w", name, r.path, err)
		}
		if n != len(samples) {
			return nil, fmt.Errorf("channel %s of %s truncated: read %d of %d samples", name, r.path, n, len(samples))
		}
		out = append(out, trigger.ChannelData{Name: name, Samples: samples})
	}
	return out, nil
}

func headerString(b []byte) string {
	return strings.TrimSpace(string(b))
}

func headerInt(b []byte) (int, error) {
	return strconv.Atoi(strings.TrimSpace(string(b)))
}

func headerFloat(b []byte) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
}
