package ledger

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a subject within a conversion run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConverting Status = "converting"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusReview     Status = "review"
	StatusSkipped    Status = "skipped"
)

var allStatuses = []Status{
	StatusPending,
	StatusConverting,
	StatusCompleted,
	StatusFailed,
	StatusReview,
	StatusSkipped,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusFailed:    {},
	StatusReview:    {},
	StatusSkipped:   {},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status represents a finished subject.
func (s Status) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// Run represents one invocation of the batch converter.
type Run struct {
	ID            string
	ConfigPath    string
	StartedAt     time.Time
	FinishedAt    *time.Time
	SubjectsTotal int
}

// Subject represents one subject's outcome within a run.
type Subject struct {
	ID                int64
	RunID             string
	Label             string
	BIDSID            string
	Status            Status
	ErrorMessage      string
	RecordingsWritten int
	EventsDecoded     int
	StartedAt         *time.Time
	FinishedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Start marks the subject as in-flight.
func (s *Subject) Start(now time.Time) {
	s.Status = StatusConverting
	s.ErrorMessage = ""
	t := now.UTC()
	s.StartedAt = &t
}

// Complete marks the subject as converted with its output tallies.
func (s *Subject) Complete(now time.Time, recordings, events int) {
	s.Status = StatusCompleted
	s.ErrorMessage = ""
	s.RecordingsWritten = recordings
	s.EventsDecoded = events
	t := now.UTC()
	s.FinishedAt = &t
}

// Fail records a terminal failure with the status chosen by error
// classification and the message shown in reports.
func (s *Subject) Fail(now time.Time, status Status, message string) {
	if status != StatusFailed && status != StatusReview {
		status = StatusFailed
	}
	s.Status = status
	s.ErrorMessage = message
	t := now.UTC()
	s.FinishedAt = &t
}

// Skip records that the subject was intentionally not processed.
func (s *Subject) Skip(now time.Time, reason string) {
	s.Status = StatusSkipped
	s.ErrorMessage = reason
	t := now.UTC()
	s.FinishedAt = &t
}

// Summary describes aggregated subject counts for one run.
type Summary struct {
	Total      int
	Pending    int
	Converting int
	Completed  int
	Failed     int
	Review     int
	Skipped    int
}
