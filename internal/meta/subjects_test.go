package meta_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/MRC-CBU/BIDS-conversion/internal/meta"
)

type subjectFixture struct {
	roster  *meta.Roster
	rawDir  string
	erDir   string
	dcmDir  string
	tempDir string
}

func validSubject(t *testing.T) subjectFixture {
	t.Helper()
	tempDir := t.TempDir()
	fix := subjectFixture{
		rawDir:  filepath.Join(tempDir, "raw"),
		erDir:   filepath.Join(tempDir, "emptyroom"),
		dcmDir:  filepath.Join(tempDir, "dicom"),
		tempDir: tempDir,
	}
	for _, dir := range []string{fix.rawDir, fix.erDir, fix.dcmDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	fix.roster = &meta.Roster{Subjects: map[string]meta.Subject{
		"meg23_0101": {
			BIDSID:       "01",
			MEGID:        "meg23_0101",
			RawDir:       fix.rawDir,
			EmptyroomDir: fix.erDir,
			RawFiles: []meta.RawFile{
				{File: "task_listening_raw.fif", Run: "01", Task: "listening"},
				{File: "emptyroom_raw.fif", Run: meta.RunLabelEmptyRoom},
			},
			BadChannels: []string{"MEG0111"},
			MRIID:       "CBU230101",
			MRIDate:     "20230101",
			MRIDicomDir: fix.dcmDir,
		},
	}}
	return fix
}

func writeSubjects(t *testing.T, roster *meta.Roster) string {
	t.Helper()
	data, err := json.Marshal(roster.Subjects)
	if err != nil {
		t.Fatalf("marshal subjects: %v", err)
	}
	path := filepath.Join(t.TempDir(), "subjects.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write subjects file: %v", err)
	}
	return path
}

func TestLoadSubjectsAndValidate(t *testing.T) {
	fix := validSubject(t)
	path := writeSubjects(t, fix.roster)

	roster, err := meta.LoadSubjects(path)
	if err != nil {
		t.Fatalf("LoadSubjects failed: %v", err)
	}
	if roster.Len() != 1 {
		t.Fatalf("expected 1 subject, got %d", roster.Len())
	}
	if err := roster.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	subject := roster.Subjects["meg23_0101"]
	if !subject.Convertible() || !subject.HasMRI() {
		t.Fatalf("unexpected subject flags: %+v", subject)
	}
}

func TestLoadSubjectsNullBIDSIDMeansSkip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subjects.json")
	payload := `{
		"meg23_0202": {
			"bids_id": null,
			"meg_id": "meg23_0202",
			"meg_raw_dir": "/nonexistent",
			"meg_raw_files": []
		}
	}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write subjects file: %v", err)
	}

	roster, err := meta.LoadSubjects(path)
	if err != nil {
		t.Fatalf("LoadSubjects failed: %v", err)
	}
	subject := roster.Subjects["meg23_0202"]
	if subject.Convertible() {
		t.Fatal("expected null bids_id to mark the record unconvertible")
	}
	// Skipped records are exempt from path checks.
	if err := roster.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestLabelsSorted(t *testing.T) {
	roster := &meta.Roster{Subjects: map[string]meta.Subject{
		"meg23_0303": {},
		"meg23_0101": {},
		"meg23_0202": {},
	}}
	want := []string{"meg23_0101", "meg23_0202", "meg23_0303"}
	if !reflect.DeepEqual(roster.Labels(), want) {
		t.Fatalf("unexpected label order: %v", roster.Labels())
	}
}

func TestValidateMissingRawDir(t *testing.T) {
	fix := validSubject(t)
	subject := fix.roster.Subjects["meg23_0101"]
	subject.RawDir = filepath.Join(fix.tempDir, "gone")
	fix.roster.Subjects["meg23_0101"] = subject

	err := fix.roster.Validate()
	if err == nil {
		t.Fatal("expected error for missing raw dir")
	}
	if !strings.Contains(err.Error(), "meg23_0101") || !strings.Contains(err.Error(), "meg_raw_dir") {
		t.Fatalf("error must name subject and field: %v", err)
	}
}

func TestValidateMultipleEmptyroom(t *testing.T) {
	fix := validSubject(t)
	subject := fix.roster.Subjects["meg23_0101"]
	subject.RawFiles = append(subject.RawFiles, meta.RawFile{File: "emptyroom2_raw.fif", Run: meta.RunLabelEmptyRoom})
	fix.roster.Subjects["meg23_0101"] = subject

	err := fix.roster.Validate()
	if !errors.Is(err, meta.ErrMultipleEmptyRoom) {
		t.Fatalf("expected ErrMultipleEmptyRoom, got %v", err)
	}
	if !strings.Contains(err.Error(), "meg23_0101") {
		t.Fatalf("error must name the subject: %v", err)
	}
}

func TestValidateEmptyroomNeedsDirectory(t *testing.T) {
	fix := validSubject(t)
	subject := fix.roster.Subjects["meg23_0101"]
	subject.EmptyroomDir = ""
	fix.roster.Subjects["meg23_0101"] = subject

	err := fix.roster.Validate()
	if err == nil || !strings.Contains(err.Error(), "meg_emptyroom_dir") {
		t.Fatalf("expected emptyroom dir error, got %v", err)
	}
}

func TestValidateRejectsDuplicateBIDSIDs(t *testing.T) {
	fix := validSubject(t)
	first := fix.roster.Subjects["meg23_0101"]
	second := first
	second.MEGID = "meg23_0102"
	fix.roster.Subjects["meg23_0102"] = second

	err := fix.roster.Validate()
	if err == nil || !strings.Contains(err.Error(), "share bids_id") {
		t.Fatalf("expected duplicate bids_id error, got %v", err)
	}
}

func TestValidateFieldChecks(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*meta.Subject)
		message string
	}{
		{
			name:    "non-alphanumeric bids id",
			mutate:  func(s *meta.Subject) { s.BIDSID = "01-a" },
			message: "alphanumeric",
		},
		{
			name:    "blank meg id",
			mutate:  func(s *meta.Subject) { s.MEGID = "  " },
			message: "meg_id",
		},
		{
			name:    "empty file list",
			mutate:  func(s *meta.Subject) { s.RawFiles = nil },
			message: "meg_raw_files",
		},
		{
			name: "file without run",
			mutate: func(s *meta.Subject) {
				s.RawFiles = []meta.RawFile{{File: "a_raw.fif", Task: "listening"}}
			},
			message: "run is required",
		},
		{
			name: "task with spaces",
			mutate: func(s *meta.Subject) {
				s.RawFiles = []meta.RawFile{{File: "a_raw.fif", Run: "01", Task: "my task"}}
			},
			message: "alphanumeric",
		},
	}

	for _, tc := range cases {
		fix := validSubject(t)
		subject := fix.roster.Subjects["meg23_0101"]
		tc.mutate(&subject)
		fix.roster.Subjects["meg23_0101"] = subject

		err := fix.roster.Validate()
		if err == nil || !strings.Contains(err.Error(), tc.message) {
			t.Fatalf("%s: expected error containing %q, got %v", tc.name, tc.message, err)
		}
	}
}

func TestSplitEmptyroom(t *testing.T) {
	subject := meta.Subject{
		EmptyroomDir: "/somewhere",
		RawFiles: []meta.RawFile{
			{File: "run1_raw.fif", Run: "01", Task: "listening"},
			{File: "emptyroom_raw.fif", Run: meta.RunLabelEmptyRoom},
			{File: "run2_raw.fif", Run: "02", Task: "listening"},
		},
	}

	main, emptyroom, err := subject.SplitEmptyroom()
	if err != nil {
		t.Fatalf("SplitEmptyroom failed: %v", err)
	}
	if emptyroom == nil || emptyroom.File != "emptyroom_raw.fif" {
		t.Fatalf("unexpected emptyroom entry: %+v", emptyroom)
	}
	if len(main) != 2 || main[0].Run != "01" || main[1].Run != "02" {
		t.Fatalf("unexpected main list: %+v", main)
	}

	noER := meta.Subject{RawFiles: []meta.RawFile{{File: "run1_raw.fif", Run: "01", Task: "listening"}}}
	main, emptyroom, err = noER.SplitEmptyroom()
	if err != nil || emptyroom != nil || len(main) != 1 {
		t.Fatalf("unexpected split without emptyroom: %v %v %v", main, emptyroom, err)
	}
}
