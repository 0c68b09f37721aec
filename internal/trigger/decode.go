package trigger

import (
	"fmt"
	"math"
	"sort"
)

// Event is one decoded trigger transition. Sample is absolute: it includes
// the recording's first-sample offset.
type Event struct {
	Sample   int
	Previous int
	Code     int
}

// ChannelData carries the raw samples read from one trigger channel.
type ChannelData struct {
	Name    string
	Samples []float64
}

// MinPulseSamples converts the minimum pulse duration to whole samples at
// the given sampling rate, never less than one.
func MinPulseSamples(sfreq float64) int {
	n := int(math.Round(MinPulseDurationSec * sfreq))
	if n < 1 {
		n = 1
	}
	return n
}

// Decode reconstructs discrete event codes from raw trigger-line samples.
//
// Each resolved bit-line is binarised (any reading above zero counts as a
// set bit) and scaled by its bit weight. Stimulus lines are summed into one
// decimal-coded line; response lines keep their weighted values separately
// so a held button cannot mask stimulus codes on the shared sum. Every line
// then goes through the same transition detector and the resulting events
// are merged in chronological order.
//
// The combined channel is the exception: it already carries the summed
// decimal code, so its raw values pass through unweighted.
func Decode(channels []ChannelData, res Resolution, sfreq float64, firstSamp int) ([]Event, error) {
	if sfreq <= 0 {
		return nil, fmt.Errorf("sampling rate must be positive, got %g", sfreq)
	}
	resolved := res.Channels()
	if len(resolved) == 0 {
		return nil, fmt.Errorf("%w: nothing resolved", ErrNoTriggerChannels)
	}

	byName := make(map[string][]float64, len(channels))
	for _, ch := range channels {
		if _, dup := byName[ch.Name]; dup {
			return nil, fmt.Errorf("channel %s supplied twice", ch.Name)
		}
		byName[ch.Name] = ch.Samples
	}

	length := -1
	for _, name := range resolved {
		samples, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("resolved channel %s missing from sample data", name)
		}
		if length < 0 {
			length = len(samples)
		} else if len(samples) != length {
			return nil, fmt.Errorf("channel %s has %d samples, want %d", name, len(samples), length)
		}
	}
	if length == 0 {
		return nil, nil
	}

	weights := res.Weights()
	minSamples := MinPulseSamples(sfreq)

	stimLine := make([]int, length)
	for _, name := range res.Stim {
		if name == CombinedChannel {
			for t, v := range byName[name] {
				if v > 0 {
					stimLine[t] += int(math.Round(v))
				}
			}
			continue
		}
		weight := weights[name]
		for t, v := range byName[name] {
			if v > 0 {
				stimLine[t] += weight
			}
		}
	}
	events := detectTransitions(stimLine, minSamples, firstSamp)

	for _, name := range res.Response {
		weight := weights[name]
		line := make([]int, length)
		for t, v := range byName[name] {
			if v > 0 {
				line[t] = weight
			}
		}
		events = append(events, detectTransitions(line, minSamples, firstSamp)...)
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].Sample < events[j].Sample })
	return events, nil
}

// detectTransitions walks one decimal-coded line and emits an event at every
// change to a new stable non-zero level. A level must hold for minSamples
// before it counts; shorter runs are discarded as noise and leave the
// previous stable level in place. The implicit level before the first sample
// is zero, so a recording that opens mid-pulse still yields an onset. A jump
// from one non-zero level straight to another is a new event at that
// boundary.
func detectTransitions(line []int, minSamples, firstSamp int) []Event {
	var events []Event
	level := 0
	for start := 0; start < len(line); {
		value := line[start]
		end := start + 1
		for end < len(line) && line[end] == value {
			end++
		}
		if end-start >= minSamples && value != level {
			if value != 0 {
				events = append(events, Event{Sample: firstSamp + start, Previous: level, Code: value})
			}
			level = value
		}
		start = end
	}
	return events
}
