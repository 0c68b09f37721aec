package trigger

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrLatencyCodesOverlap means an event code was listed under both the
// auditory and the visual modality.
var ErrLatencyCodesOverlap = errors.New("auditory and visual code sets overlap")

// Latencies holds the fixed per-modality delays between trigger emission and
// actual stimulus delivery, with the event codes each delay applies to.
type Latencies struct {
	AuditoryCodes []int
	VisualCodes   []int
	AudioSec      float64
	VisualSec     float64
}

// CorrectionResult reports what CorrectEventTimes changed. A modality with
// no configured codes is skipped and reports a zero shift.
type CorrectionResult struct {
	AudioShiftSamples  int
	VisualShiftSamples int
	AudioEvents        int
	VisualEvents       int
}

// Shifted returns the total number of events whose onset moved.
func (r CorrectionResult) Shifted() int {
	return r.AudioEvents + r.VisualEvents
}

// CorrectEventTimes shifts the onset of every event whose code belongs to a
// modality set forward by that modality's latency, rounded to whole samples.
// Events in neither set are untouched. The shift mutates events in place and
// must be applied at most once per decoded array; a second pass would double
// the delay. Onsets are not clamped against recording length, and the slice
// order is left as decoded even when unequal shifts reorder onsets.
func CorrectEventTimes(events []Event, lat Latencies, sfreq float64) (CorrectionResult, error) {
	if sfreq <= 0 {
		return CorrectionResult{}, fmt.Errorf("sampling rate must be positive, got %g", sfreq)
	}
	if lat.AudioSec < 0 || lat.VisualSec < 0 {
		return CorrectionResult{}, fmt.Errorf("latencies must be non-negative, got audio %g and visual %g", lat.AudioSec, lat.VisualSec)
	}

	auditory := codeSet(lat.AuditoryCodes)
	visual := codeSet(lat.VisualCodes)
	var shared []int
	for code := range auditory {
		if visual[code] {
			shared = append(shared, code)
		}
	}
	if len(shared) > 0 {
		sort.Ints(shared)
		return CorrectionResult{}, fmt.Errorf("%w: %v", ErrLatencyCodesOverlap, shared)
	}

	var result CorrectionResult
	if len(auditory) > 0 {
		result.AudioShiftSamples = int(math.Round(lat.AudioSec * sfreq))
	}
	if len(visual) > 0 {
		result.VisualShiftSamples = int(math.Round(lat.VisualSec * sfreq))
	}

	for i := range events {
		switch {
		case auditory[events[i].Code]:
			events[i].Sample += result.AudioShiftSamples
			result.AudioEvents++
		case visual[events[i].Code]:
			events[i].Sample += result.VisualShiftSamples
			result.VisualEvents++
		}
	}
	return result, nil
}

func codeSet(codes []int) map[int]bool {
	set := make(map[int]bool, len(codes))
	for _, code := range codes {
		set[code] = true
	}
	return set
}
