package meta

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

// RunLabelEmptyRoom marks a raw file entry as the empty-room recording.
// It is extracted from the task list before normal processing.
const RunLabelEmptyRoom = "emptyroom"

// ErrMultipleEmptyRoom means a subject listed more than one empty-room
// recording. Zero or one is valid.
var ErrMultipleEmptyRoom = errors.New("multiple empty-room recordings")

// BIDS entity labels must stay alphanumeric or they corrupt output paths.
var bidsLabelPattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// RawFile describes one physical recording belonging to a subject.
type RawFile struct {
	File string `json:"file"`
	Run  string `json:"run"`
	Task string `json:"task"`
}

// IsEmptyRoom reports whether the entry carries the reserved empty-room run
// label.
func (f RawFile) IsEmptyRoom() bool {
	return f.Run == RunLabelEmptyRoom
}

// Subject is one participant's entry in the subject dictionary. A record
// with an empty BIDSID is kept on the roster but skipped by the conversion
// loop, so partially collected participants can stay listed.
type Subject struct {
	BIDSID       string    `json:"bids_id"`
	MEGID        string    `json:"meg_id"`
	RawDir       string    `json:"meg_raw_dir"`
	EmptyroomDir string    `json:"meg_emptyroom_dir"`
	RawFiles     []RawFile `json:"meg_raw_files"`
	BadChannels  []string  `json:"meg_bad_channels"`
	MRIID        string    `json:"mri_id"`
	MRIDate      string    `json:"mri_date"`
	MRIDicomDir  string    `json:"mri_dcm_dir"`
}

// Convertible reports whether the conversion loop should process this
// record at all.
func (s Subject) Convertible() bool {
	return s.BIDSID != ""
}

// HasMRI reports whether a structural scan is available for conversion.
func (s Subject) HasMRI() bool {
	return s.MRIDicomDir != ""
}

// SplitEmptyroom separates the reserved empty-room entry from the task
// recordings. Zero matches returns a nil entry; more than one is an error.
func (s Subject) SplitEmptyroom() ([]RawFile, *RawFile, error) {
	var main []RawFile
	var emptyroom *RawFile
	for _, f := range s.RawFiles {
		if !f.IsEmptyRoom() {
			main = append(main, f)
			continue
		}
		if emptyroom != nil {
			return nil, nil, ErrMultipleEmptyRoom
		}
		entry := f
		emptyroom = &entry
	}
	if emptyroom != nil && s.EmptyroomDir == "" {
		return nil, nil, fmt.Errorf("empty-room file %s listed but meg_emptyroom_dir is not set", emptyroom.File)
	}
	return main, emptyroom, nil
}

// Roster is the parsed subject dictionary keyed by subject label.
type Roster struct {
	Subjects map[string]Subject
}

// LoadSubjects reads the subject dictionary JSON. Call Validate before
// converting anything.
func LoadSubjects(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read subject dictionary: %w", err)
	}
	var subjects map[string]Subject
	if err := json.Unmarshal(data, &subjects); err != nil {
		return nil, fmt.Errorf("parse subject dictionary %s: %w", path, err)
	}
	if len(subjects) == 0 {
		return nil, fmt.Errorf("subject dictionary %s is empty", path)
	}
	return &Roster{Subjects: subjects}, nil
}

// Labels returns subject labels in ascending order. Conversion follows this
// order so re-runs are deterministic.
func (r *Roster) Labels() []string {
	labels := make([]string, 0, len(r.Subjects))
	for label := range r.Subjects {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Len returns the number of listed subjects, convertible or not.
func (r *Roster) Len() int {
	return len(r.Subjects)
}

// Validate checks every convertible record and its referenced paths before
// conversion starts. The first violation aborts with an error naming the
// subject. Records without a BIDS identifier are exempt; they are never
// processed.
func (r *Roster) Validate() error {
	seen := make(map[string]string)
	for _, label := range r.Labels() {
		subject := r.Subjects[label]
		if !subject.Convertible() {
			continue
		}
		if other, dup := seen[subject.BIDSID]; dup {
			return fmt.Errorf("subjects %s and %s share bids_id %q", other, label, subject.BIDSID)
		}
		seen[subject.BIDSID] = label
		if err := validateSubject(subject); err != nil {
			return fmt.Errorf("subject %s: %w", label, err)
		}
	}
	return nil
}

func validateSubject(s Subject) error {
	if !bidsLabelPattern.MatchString(s.BIDSID) {
		return fmt.Errorf("bids_id %q must be alphanumeric", s.BIDSID)
	}
	if strings.TrimSpace(s.MEGID) == "" {
		return errors.New("meg_id must be a non-empty string")
	}
	if s.RawDir == "" {
		return errors.New("meg_raw_dir is required")
	}
	if err := dirExists(s.RawDir); err != nil {
		return fmt.Errorf("meg_raw_dir: %w", err)
	}
	if s.EmptyroomDir != "" {
		if err := dirExists(s.EmptyroomDir); err != nil {
			return fmt.Errorf("meg_emptyroom_dir: %w", err)
		}
	}
	if len(s.RawFiles) == 0 {
		return errors.New("meg_raw_files must be a non-empty list")
	}
	for i, f := range s.RawFiles {
		if f.File == "" {
			return fmt.Errorf("meg_raw_files[%d]: file is required", i)
		}
		if f.Run == "" {
			return fmt.Errorf("meg_raw_files[%d]: run is required", i)
		}
		if !f.IsEmptyRoom() {
			if !bidsLabelPattern.MatchString(f.Run) {
				return fmt.Errorf("meg_raw_files[%d]: run %q must be alphanumeric", i, f.Run)
			}
			if f.Task == "" {
				return fmt.Errorf("meg_raw_files[%d]: task is required", i)
			}
			if !bidsLabelPattern.MatchString(f.Task) {
				return fmt.Errorf("meg_raw_files[%d]: task %q must be alphanumeric", i, f.Task)
			}
		}
	}
	if _, _, err := s.SplitEmptyroom(); err != nil {
		return err
	}
	if s.MRIDicomDir != "" {
		if err := dirExists(s.MRIDicomDir); err != nil {
			return fmt.Errorf("mri_dcm_dir: %w", err)
		}
	}
	return nil
}

func dirExists(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}
