package trigger

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
)

var (
	// ErrNoTriggerChannels means neither the configured channels nor the
	// combined fallback channel exist in the recording.
	ErrNoTriggerChannels = errors.New("no usable trigger channels")
	// ErrRolesOverlap means a channel was assigned both a stimulus and a
	// response role.
	ErrRolesOverlap = errors.New("stimulus and response channels overlap")
	// ErrCombinedNotAlone means the combined channel was mixed with
	// individual bit-lines.
	ErrCombinedNotAlone = errors.New("combined channel must appear alone")
)

// ChannelSet is the configured trigger-channel description. Response may be
// empty, in which case every configured channel is a stimulus bit-line.
type ChannelSet struct {
	Stim     []string
	Response []string
}

// Resolution is the outcome of matching a ChannelSet against the channel
// names actually present in one recording.
type Resolution struct {
	Stim     []string // sorted ascending
	Response []string // sorted ascending, empty unless roles are configured
	Fallback bool     // the combined channel was substituted for the configured set
	Missing  []string // configured names absent from the recording
}

// HasResponse reports whether response channels survived resolution.
func (r Resolution) HasResponse() bool {
	return len(r.Response) > 0
}

// Channels returns every resolved channel name in bit-significance order.
func (r Resolution) Channels() []string {
	all := make([]string, 0, len(r.Stim)+len(r.Response))
	all = append(all, r.Stim...)
	all = append(all, r.Response...)
	sort.Strings(all)
	return all
}

// Weights maps each resolved bit-line to its decoder weight: 2^n for the
// nth name in ascending sort order across both roles. Assigning weight by
// sort position keeps decoded codes independent of configuration order. The
// combined channel carries pre-summed values and gets no weight.
func (r Resolution) Weights() map[string]int {
	weights := make(map[string]int)
	for i, name := range r.Channels() {
		if name == CombinedChannel {
			continue
		}
		weights[name] = 1 << i
	}
	return weights
}

// Resolve validates set and matches it against the channel names available
// in a recording. When any configured channel is missing, the whole set is
// replaced by the combined channel and Fallback is set so callers can
// surface a warning. Resolution fails only when no safe substitute exists.
func Resolve(set ChannelSet, available []string) (Resolution, error) {
	stim := dedupeSorted(set.Stim)
	resp := dedupeSorted(set.Response)
	configured := append(slices.Clone(stim), resp...)
	if len(configured) == 0 {
		return Resolution{}, fmt.Errorf("%w: empty channel configuration", ErrNoTriggerChannels)
	}

	if len(resp) > 0 {
		if slices.Contains(configured, CombinedChannel) {
			return Resolution{}, fmt.Errorf("%w: %s cannot take a stimulus or response role", ErrCombinedNotAlone, CombinedChannel)
		}
		if shared := intersect(stim, resp); len(shared) > 0 {
			return Resolution{}, fmt.Errorf("%w: %s", ErrRolesOverlap, strings.Join(shared, ", "))
		}
	} else if len(stim) > 1 && slices.Contains(stim, CombinedChannel) {
		return Resolution{}, fmt.Errorf("%w: %s mixed with bit-lines", ErrCombinedNotAlone, CombinedChannel)
	}

	present := make(map[string]bool, len(available))
	for _, name := range available {
		present[name] = true
	}

	var missing []string
	for _, name := range configured {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return Resolution{Stim: stim, Response: resp}, nil
	}
	if present[CombinedChannel] {
		return Resolution{
			Stim:     []string{CombinedChannel},
			Fallback: true,
			Missing:  missing,
		}, nil
	}
	return Resolution{}, fmt.Errorf("%w: %s absent from recording and %s unavailable",
		ErrNoTriggerChannels, strings.Join(missing, ", "), CombinedChannel)
}

func dedupeSorted(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	out := slices.Clone(names)
	sort.Strings(out)
	return slices.Compact(out)
}

func intersect(a, b []string) []string {
	inA := make(map[string]bool, len(a))
	for _, name := range a {
		inA[name] = true
	}
	var shared []string
	for _, name := range b {
		if inA[name] {
			shared = append(shared, name)
		}
	}
	return shared
}
