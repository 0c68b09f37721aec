package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MRC-CBU/BIDS-conversion/internal/ledger"
)

var (
	// ErrConfiguration marks missing or malformed settings and metadata,
	// detected before any conversion begins.
	ErrConfiguration = errors.New("configuration error")
	// ErrSubjectData marks a malformed subject record, missing path, or
	// multiple empty-room recordings for one subject.
	ErrSubjectData = errors.New("subject data error")
	// ErrExternalTool marks a non-zero exit from a delegated command.
	ErrExternalTool = errors.New("external tool error")
	// ErrDecode marks trigger channels that cannot be resolved against the
	// recording and have no safe fallback.
	ErrDecode = errors.New("decode ambiguity error")
)

// Wrap builds an error message that includes pipeline context while tagging it
// with the provided marker for later status classification. The marker should
// be one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrSubjectData
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureStatus maps a pipeline error to the ledger status the batch loop
// should persist after a subject fails. Configuration and subject-data faults
// need a human to fix the metadata, so they land in review; tool and decode
// faults are recorded as failed.
func FailureStatus(err error) ledger.Status {
	switch {
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrSubjectData):
		return ledger.StatusReview
	default:
		return ledger.StatusFailed
	}
}

func buildDetail(stage, operation, message string) string {
	var parts []string
	for _, part := range []string{stage, operation, message} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
