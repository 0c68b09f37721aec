package testsupport

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/MRC-CBU/BIDS-conversion/internal/config"
	"github.com/MRC-CBU/BIDS-conversion/internal/meta"
)

// DefaultEvents is a small event dictionary with one auditory and one
// visual condition plus a response button.
func DefaultEvents() map[string]int {
	return map[string]int{
		"spoken/word":    1,
		"spoken/noise":   2,
		"written/word":   4,
		"response/index": 256,
	}
}

// WriteEvents stores an event dictionary at the configured location.
func WriteEvents(t testing.TB, cfg *config.Config, mapping map[string]int) {
	t.Helper()
	writeJSONFile(t, cfg.Metadata.EventsFile, mapping)
}

// WriteSubjects stores a subject dictionary at the configured location.
func WriteSubjects(t testing.TB, cfg *config.Config, subjects map[string]meta.Subject) {
	t.Helper()
	writeJSONFile(t, cfg.Metadata.SubjectsFile, subjects)
}

func writeJSONFile(t testing.TB, path string, v any) {
	t.Helper()
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
