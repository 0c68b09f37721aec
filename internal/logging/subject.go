package logging

import "strings"

// FormatSubject builds the subject/recording/stage label used in console output.
func FormatSubject(subject, recording, stage string) string {
	subject = strings.TrimSpace(subject)
	recording = strings.TrimSpace(recording)
	stage = strings.TrimSpace(stage)
	parts := make([]string, 0, 2)
	if subject != "" {
		parts = append(parts, subject)
	}
	switch {
	case recording != "" && stage != "":
		parts = append(parts, recording+" ("+stage+")")
	case recording != "":
		parts = append(parts, recording)
	case stage != "":
		parts = append(parts, stage)
	}
	return strings.Join(parts, " · ")
}
