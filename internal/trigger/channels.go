package trigger

import "regexp"

const (
	// CombinedChannel is the reserved hardware line that carries the summed
	// multi-bit trigger value. When configured it must appear alone.
	CombinedChannel = "STI101"

	// MinPulseDurationSec is the shortest level change accepted as a real
	// trigger pulse. Anything briefer is treated as line noise.
	MinPulseDurationSec = 0.002
)

// Elekta/MEGIN systems expose sixteen single-bit lines, STI001 through STI016.
var bitLinePattern = regexp.MustCompile(`^STI0(0[1-9]|1[0-6])$`)

// IsBitLine reports whether name is one of the sixteen single-bit trigger lines.
func IsBitLine(name string) bool {
	return bitLinePattern.MatchString(name)
}

// IsValidChannelName reports whether name is a bit-line or the combined channel.
func IsValidChannelName(name string) bool {
	return name == CombinedChannel || IsBitLine(name)
}
