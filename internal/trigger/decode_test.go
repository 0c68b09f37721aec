package trigger

import (
	"errors"
	"reflect"
	"testing"
)

func makeChannels(length int, names ...string) []ChannelData {
	channels := make([]ChannelData, len(names))
	for i, name := range names {
		channels[i] = ChannelData{Name: name, Samples: make([]float64, length)}
	}
	return channels
}

func setLevel(channels []ChannelData, name string, start, count int, value float64) {
	for _, ch := range channels {
		if ch.Name != name {
			continue
		}
		for t := start; t < start+count && t < len(ch.Samples); t++ {
			ch.Samples[t] = value
		}
	}
}

func pulse(channels []ChannelData, name string, start, count int) {
	setLevel(channels, name, start, count, 5)
}

func mustResolve(t *testing.T, set ChannelSet, available []string) Resolution {
	t.Helper()
	res, err := Resolve(set, available)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	return res
}

func TestDecodeRoundTripCodes(t *testing.T) {
	names := []string{"STI001", "STI002", "STI003", "STI004"}
	channels := makeChannels(800, names...)
	pulse(channels, "STI001", 100, 50) // code 1
	pulse(channels, "STI002", 200, 50) // code 2
	pulse(channels, "STI003", 300, 50) // code 4
	pulse(channels, "STI004", 400, 50) // code 8
	pulse(channels, "STI001", 500, 50) // code 3
	pulse(channels, "STI002", 500, 50)
	pulse(channels, "STI001", 600, 50) // code 5
	pulse(channels, "STI003", 600, 50)
	pulse(channels, "STI003", 700, 50) // code 12
	pulse(channels, "STI004", 700, 50)

	res := mustResolve(t, ChannelSet{Stim: names}, names)
	events, err := Decode(channels, res, 1000, 0)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	want := []Event{
		{Sample: 100, Previous: 0, Code: 1},
		{Sample: 200, Previous: 0, Code: 2},
		{Sample: 300, Previous: 0, Code: 4},
		{Sample: 400, Previous: 0, Code: 8},
		{Sample: 500, Previous: 0, Code: 3},
		{Sample: 600, Previous: 0, Code: 5},
		{Sample: 700, Previous: 0, Code: 12},
	}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("unexpected events:\n got %v\nwant %v", events, want)
	}
}

func TestDecodeAddsFirstSampleOffset(t *testing.T) {
	channels := makeChannels(300, "STI001")
	pulse(channels, "STI001", 40, 30)

	res := mustResolve(t, ChannelSet{Stim: []string{"STI001"}}, []string{"STI001"})
	events, err := Decode(channels, res, 1000, 12345)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(events) != 1 || events[0].Sample != 12385 {
		t.Fatalf("expected single event at sample 12385, got %v", events)
	}
}

func TestDecodeOrderInvariance(t *testing.T) {
	names := []string{"STI001", "STI002", "STI003"}
	build := func(order []string) []ChannelData {
		channels := makeChannels(400, order...)
		pulse(channels, "STI001", 100, 40)
		pulse(channels, "STI003", 100, 40)
		pulse(channels, "STI002", 200, 40)
		return channels
	}

	res := mustResolve(t, ChannelSet{Stim: names}, names)
	baseline, err := Decode(build(names), res, 1000, 0)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(baseline) != 2 || baseline[0].Code != 5 || baseline[1].Code != 2 {
		t.Fatalf("unexpected baseline events: %v", baseline)
	}

	shuffled := []string{"STI003", "STI001", "STI002"}
	resShuffled := mustResolve(t, ChannelSet{Stim: shuffled}, shuffled)
	events, err := Decode(build(shuffled), resShuffled, 1000, 0)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !reflect.DeepEqual(events, baseline) {
		t.Fatalf("events depend on channel order:\n got %v\nwant %v", events, baseline)
	}
}

func TestDecodeEnforcesMinimumPulseDuration(t *testing.T) {
	channels := makeChannels(600, "STI001")
	pulse(channels, "STI001", 100, 1) // below the 2 ms floor at 1000 Hz
	pulse(channels, "STI001", 200, 2) // exactly at the floor
	pulse(channels, "STI001", 300, 50)

	res := mustResolve(t, ChannelSet{Stim: []string{"STI001"}}, []string{"STI001"})
	events, err := Decode(channels, res, 1000, 0)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	want := []Event{
		{Sample: 200, Previous: 0, Code: 1},
		{Sample: 300, Previous: 0, Code: 1},
	}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("unexpected events:\n got %v\nwant %v", events, want)
	}
}

func TestDecodeBridgesSingleSampleDropout(t *testing.T) {
	channels := makeChannels(500, "STI003")
	pulse(channels, "STI003", 300, 25)
	setLevel(channels, "STI003", 325, 1, 0)
	pulse(channels, "STI003", 326, 24)

	res := mustResolve(t, ChannelSet{Stim: []string{"STI003"}}, []string{"STI003"})
	events, err := Decode(channels, res, 1000, 0)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(events) != 1 || events[0].Sample != 300 {
		t.Fatalf("expected one event spanning the dropout, got %v", events)
	}
}

func TestDecodeStackedNonzeroTransitions(t *testing.T) {
	channels := makeChannels(400, "STI001", "STI002")
	pulse(channels, "STI001", 100, 100)
	pulse(channels, "STI002", 150, 100)

	names := []string{"STI001", "STI002"}
	res := mustResolve(t, ChannelSet{Stim: names}, names)
	events, err := Decode(channels, res, 1000, 0)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	want := []Event{
		{Sample: 100, Previous: 0, Code: 1},
		{Sample: 150, Previous: 1, Code: 3},
		{Sample: 200, Previous: 3, Code: 2},
	}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("unexpected events:\n got %v\nwant %v", events, want)
	}
}

func TestDecodeKeepsResponseChannelsSeparate(t *testing.T) {
	all := []string{"STI001", "STI002", "STI009"}
	channels := makeChannels(400, all...)
	// Stimulus code 3 at 100, then a second one at 160 while the response
	// button is still held. On a single summed line the held button would
	// mask the second stimulus.
	pulse(channels, "STI001", 100, 50)
	pulse(channels, "STI002", 100, 50)
	pulse(channels, "STI009", 120, 80)
	pulse(channels, "STI001", 160, 50)
	pulse(channels, "STI002", 160, 50)

	set := ChannelSet{
		Stim:     []string{"STI001", "STI002"},
		Response: []string{"STI009"},
	}
	res := mustResolve(t, set, all)
	events, err := Decode(channels, res, 1000, 0)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	want := []Event{
		{Sample: 100, Previous: 0, Code: 3},
		{Sample: 120, Previous: 0, Code: 4},
		{Sample: 160, Previous: 0, Code: 3},
	}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("unexpected events:\n got %v\nwant %v", events, want)
	}
}

func TestDecodeCombinedChannelPassthrough(t *testing.T) {
	channels := makeChannels(400, "STI101")
	setLevel(channels, "STI101", 100, 50, 7)
	setLevel(channels, "STI101", 200, 50, 20)

	res := mustResolve(t, ChannelSet{Stim: []string{"STI001", "STI002"}}, []string{"STI101"})
	if !res.Fallback {
		t.Fatal("expected fallback resolution")
	}
	events, err := Decode(channels, res, 1000, 0)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	want := []Event{
		{Sample: 100, Previous: 0, Code: 7},
		{Sample: 200, Previous: 0, Code: 20},
	}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("unexpected events:\n got %v\nwant %v", events, want)
	}
}

func TestDecodeFirstSampleAlreadyHigh(t *testing.T) {
	channels := makeChannels(100, "STI001")
	pulse(channels, "STI001", 0, 60)

	res := mustResolve(t, ChannelSet{Stim: []string{"STI001"}}, []string{"STI001"})
	events, err := Decode(channels, res, 1000, 500)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := []Event{{Sample: 500, Previous: 0, Code: 1}}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("unexpected events:\n got %v\nwant %v", events, want)
	}
}

func TestDecodeRejectsMismatchedLengths(t *testing.T) {
	channels := []ChannelData{
		{Name: "STI001", Samples: make([]float64, 100)},
		{Name: "STI002", Samples: make([]float64, 90)},
	}
	names := []string{"STI001", "STI002"}
	res := mustResolve(t, ChannelSet{Stim: names}, names)
	if _, err := Decode(channels, res, 1000, 0); err == nil {
		t.Fatal("expected error for mismatched sample counts")
	}
}

func TestDecodeRejectsMissingChannelData(t *testing.T) {
	channels := makeChannels(100, "STI001")
	names := []string{"STI001", "STI002"}
	res := mustResolve(t, ChannelSet{Stim: names}, names)
	_, err := Decode(channels, res, 1000, 0)
	if err == nil {
		t.Fatal("expected error for missing channel data")
	}
}

func TestDecodeRejectsInvalidRate(t *testing.T) {
	channels := makeChannels(10, "STI001")
	res := mustResolve(t, ChannelSet{Stim: []string{"STI001"}}, []string{"STI001"})
	if _, err := Decode(channels, res, 0, 0); err == nil {
		t.Fatal("expected error for zero sampling rate")
	}
}

func TestDecodeEmptyResolution(t *testing.T) {
	channels := makeChannels(10, "STI001")
	_, err := Decode(channels, Resolution{}, 1000, 0)
	if !errors.Is(err, ErrNoTriggerChannels) {
		t.Fatalf("expected ErrNoTriggerChannels, got %v", err)
	}
}

func TestMinPulseSamples(t *testing.T) {
	cases := []struct {
		sfreq float64
		want  int
	}{
		{1000, 2},
		{250, 1},
		{100, 1},
		{2000, 4},
	}
	for _, tc := range cases {
		if got := MinPulseSamples(tc.sfreq); got != tc.want {
			t.Errorf("MinPulseSamples(%g) = %d, want %d", tc.sfreq, got, tc.want)
		}
	}
}
