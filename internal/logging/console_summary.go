package logging

import (
	"log/slog"
	"strings"
)

// summaryField is one rendered "    - Label: value" line in the INFO view.
type summaryField struct {
	label string
	value string
}

// summaryPriority orders the fields operators scan for first. Keys not
// listed here render afterwards in log order.
var summaryPriority = []string{
	FieldAlert,
	FieldEventType,
	"status",
	"error_message",
	FieldErrorCode,
	FieldErrorHint,
	FieldErrorDetailPath,
	"command",
	"bids_id",
	"task",
	"meg_system",
	"reason",
	"events_decoded",
	"event_count",
	"stim_channels",
	"response_channels",
	"missing_channels",
	"fallback_channel",
	"bad_channels",
	"shift_samples",
	"latency_sec",
	"corrected_events",
	"sfreq",
	"first_samp",
	"recordings_written",
	"output",
	"cal_file",
	"crosstalk_file",
	"nifti_output",
	"dicom_files",
	"series_description",
	// Run summary fields
	"subjects_total",
	"subjects_completed",
	"subjects_failed",
	"subjects_review",
	"subjects_skipped",
	"stage_duration",
	"decode_duration",
	"write_duration",
	"convert_duration",
	"run_duration",
	"onset_interval_mean_sec",
	"onset_interval_sd_sec",
}

// summaryFields formats pairs for the INFO view, priority keys first.
func summaryFields(pairs []attrPair) []summaryField {
	if len(pairs) == 0 {
		return nil
	}
	used := make([]bool, len(pairs))
	result := make([]summaryField, 0, len(pairs))
	emit := func(idx int) {
		pair := pairs[idx]
		used[idx] = true
		if skipSummaryKey(pair.key) {
			return
		}
		result = append(result, summaryField{
			label: displayLabel(pair.key),
			value: summaryValue(pair.key, pair.value, pairs),
		})
	}
	for _, key := range summaryPriority {
		for idx, pair := range pairs {
			if used[idx] || pair.key != key {
				continue
			}
			emit(idx)
			break
		}
	}
	for idx := range pairs {
		if !used[idx] {
			emit(idx)
		}
	}
	return result
}

// summaryValue applies key-aware formatting: durations render humanized,
// booleans as yes/no, and error text is truncated with a pointer to the
// detail file when one was logged.
func summaryValue(key string, v slog.Value, pairs []attrPair) string {
	v = v.Resolve()
	if isDurationKey(key) && v.Kind() == slog.KindDuration {
		return humanDuration(v.Duration())
	}
	if v.Kind() == slog.KindBool {
		if v.Bool() {
			return "yes"
		}
		return "no"
	}
	value := displayValue(v)
	if key == "error" || key == "error_message" {
		value = truncateErrorValue(value, pairValue(pairs, FieldErrorDetailPath))
	}
	return value
}

func isDurationKey(key string) bool {
	return strings.HasSuffix(key, "_duration") ||
		strings.HasSuffix(key, "_elapsed") ||
		key == "elapsed" ||
		key == "duration" ||
		key == "backoff"
}

func truncateErrorValue(value, detailPath string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	const maxLen = 200
	if len(value) > maxLen {
		value = value[:maxLen] + "…"
	}
	if strings.TrimSpace(detailPath) == "" {
		return value
	}
	if strings.Contains(value, "error_detail_path") || strings.Contains(value, "detail_path") {
		return value
	}
	return value + " (see error_detail_path)"
}

// skipSummaryKey hides fields already promoted into the header line.
func skipSummaryKey(key string) bool {
	switch key {
	case "", FieldRunID, FieldSubject, FieldRecording, FieldStage, FieldComponent:
		return true
	}
	return false
}

// summaryScope picks the repeat-suppression cache key: per subject when one
// is set, else per recording, else per component.
func summaryScope(labels recordLabels) string {
	if subject := strings.TrimSpace(labels.subject); subject != "" {
		return subject
	}
	if rec := strings.TrimSpace(labels.recording); rec != "" {
		return "recording:" + rec
	}
	return labels.component
}

func pairValue(pairs []attrPair, key string) string {
	for _, pair := range pairs {
		if pair.key == key {
			return plainText(pair.value)
		}
	}
	return ""
}

func displayLabel(key string) string {
	switch key {
	case FieldAlert:
		return "Alert"
	case FieldEventType:
		return "Event"
	case FieldErrorCode:
		return "Error Code"
	case FieldErrorHint:
		return "Hint"
	case FieldErrorDetailPath:
		return "Error Detail"
	case FieldSubject:
		return "Subject"
	case FieldStage:
		return "Stage"
	case FieldRecording:
		return "Recording"
	case "bids_id":
		return "BIDS ID"
	case "meg_system":
		return "System"
	case "events_decoded", "event_count":
		return "Events"
	case "stim_channels":
		return "Stim"
	case "response_channels":
		return "Response"
	case "missing_channels":
		return "Missing"
	case "fallback_channel":
		return "Fallback"
	case "bad_channels":
		return "Bad Channels"
	case "shift_samples":
		return "Shift"
	case "latency_sec":
		return "Latency"
	case "corrected_events":
		return "Corrected"
	case "sfreq":
		return "Sample Rate"
	case "first_samp":
		return "First Sample"
	case "recordings_written":
		return "Recordings"
	case "cal_file":
		return "Calibration"
	case "crosstalk_file":
		return "Crosstalk"
	case "nifti_output":
		return "NIfTI"
	case "dicom_files":
		return "DICOM Files"
	case "series_description":
		return "Series"
	// Run summary fields - concise labels
	case "subjects_total":
		return "Subjects"
	case "subjects_completed":
		return "Completed"
	case "subjects_failed":
		return "Failed"
	case "subjects_review":
		return "Review"
	case "subjects_skipped":
		return "Skipped"
	case "stage_duration":
		return "Duration"
	case "decode_duration":
		return "Decode Time"
	case "write_duration":
		return "Write Time"
	case "convert_duration":
		return "Convert Time"
	case "run_duration":
		return "Run Time"
	case "onset_interval_mean_sec":
		return "Onset Interval Mean"
	case "onset_interval_sd_sec":
		return "Onset Interval SD"
	case "reason":
		return "Reason"
	default:
		return titleizeKey(key)
	}
}

func titleizeKey(key string) string {
	parts := strings.FieldsFunc(key, func(r rune) bool {
		return r == '_' || r == '-'
	})
	if len(parts) == 0 {
		return capitalizeASCII(key)
	}
	for i, part := range parts {
		parts[i] = capitalizeASCII(part)
	}
	return strings.Join(parts, " ")
}

func capitalizeASCII(value string) string {
	if value == "" {
		return ""
	}
	lower := strings.ToLower(value)
	return strings.ToUpper(lower[:1]) + lower[1:]
}
