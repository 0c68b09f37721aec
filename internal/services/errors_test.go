package services_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/MRC-CBU/BIDS-conversion/internal/ledger"
	"github.com/MRC-CBU/BIDS-conversion/internal/services"
)

func TestWrapTagsAndDescribes(t *testing.T) {
	base := errors.New("exit status 1")
	err := services.Wrap(services.ErrExternalTool, "convert", "dcm2niix", "series failed", base)

	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("marker lost: %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("cause lost: %v", err)
	}
	for _, fragment := range []string{"convert", "dcm2niix", "series failed", "exit status 1"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in %q", fragment, err)
		}
	}
}

func TestWrapDefaultsMarkerAndDetail(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrSubjectData) {
		t.Fatalf("nil marker should fall back to subject data, got %v", err)
	}
	if !strings.Contains(err.Error(), "pipeline failure") {
		t.Fatalf("empty context should fall back to a generic detail, got %q", err)
	}
}

func TestFailureStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ledger.Status
	}{
		{"configuration", services.Wrap(services.ErrConfiguration, "load", "config", "bad channel name", nil), ledger.StatusReview},
		{"subject data", services.Wrap(services.ErrSubjectData, "validate", "subjects", "missing raw file", nil), ledger.StatusReview},
		{"external tool", services.Wrap(services.ErrExternalTool, "convert", "write", "write failed", errors.New("io")), ledger.StatusFailed},
		{"decode", services.Wrap(services.ErrDecode, "decode", "triggers", "no stim channels", nil), ledger.StatusFailed},
		{"untagged", errors.New("io"), ledger.StatusFailed},
		{"nil", nil, ledger.StatusFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.FailureStatus(tc.err); got != tc.want {
				t.Fatalf("FailureStatus = %s, want %s", got, tc.want)
			}
		})
	}
}
