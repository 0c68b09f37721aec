package workflow

import (
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/MRC-CBU/BIDS-conversion/internal/trigger"
)

// RecordingQC aggregates quality metrics for one recording's decoded events.
// Interval statistics are in seconds and need at least two events; with fewer
// they stay zero.
type RecordingQC struct {
	Events         int
	CodeCounts     map[int]int
	MeanInterval   float64
	StdDevInterval float64
	MedianInterval float64
	OutOfRange     int
}

// Codes returns the distinct event codes ascending, for stable log output.
func (q RecordingQC) Codes() []int {
	codes := make([]int, 0, len(q.CodeCounts))
	for code := range q.CodeCounts {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}

// SummarizeEvents computes per-code counts and inter-onset interval
// statistics for a decoded event array. Events whose onset falls outside the
// recording (possible after latency correction, which never clamps) are
// tallied in OutOfRange so the caller can surface them.
func SummarizeEvents(events []trigger.Event, sfreq float64, firstSamp, samples int) RecordingQC {
	qc := RecordingQC{
		Events:     len(events),
		CodeCounts: make(map[int]int, 8),
	}
	for _, ev := range events {
		qc.CodeCounts[ev.Code]++
		if rel := ev.Sample - firstSamp; rel < 0 || rel >= samples {
			qc.OutOfRange++
		}
	}
	if len(events) < 2 || sfreq <= 0 {
		return qc
	}

	intervals := make([]float64, 0, len(events)-1)
	for i := 1; i < len(events); i++ {
		intervals = append(intervals, float64(events[i].Sample-events[i-1].Sample)/sfreq)
	}
	if mean, err := stats.Mean(intervals); err == nil {
		qc.MeanInterval = mean
	}
	if sd, err := stats.StandardDeviation(intervals); err == nil {
		qc.StdDevInterval = sd
	}
	if median, err := stats.Median(intervals); err == nil {
		qc.MedianInterval = median
	}
	return qc
}
