package bids

import (
	"fmt"
	"path/filepath"
	"strings"
)

// TaskNoise is the task label under which the empty-room baseline recording
// is filed.
const TaskNoise = "noise"

// Target locates one recording inside the dataset tree.
type Target struct {
	root    string
	subject string
	task    string
	run     string
}

// NewTarget builds the location for a recording. run may be empty; the
// empty-room baseline is written without a run entity.
func NewTarget(root, subject, task, run string) Target {
	return Target{root: root, subject: subject, task: task, run: run}
}

// NoiseTarget builds the location of a subject's empty-room recording.
func NoiseTarget(root, subject string) Target {
	return NewTarget(root, subject, TaskNoise, "")
}

// Subject returns the bare subject label.
func (t Target) Subject() string {
	return t.subject
}

// Task returns the task label.
func (t Target) Task() string {
	return t.task
}

// Dir returns the directory holding the recording's files.
func (t Target) Dir() string {
	return filepath.Join(t.root, subjectID(t.subject), "meg")
}

func (t Target) base() string {
	var b strings.Builder
	b.WriteString(subjectID(t.subject))
	b.WriteString("_task-")
	b.WriteString(t.task)
	if t.run != "" {
		b.WriteString("_run-")
		b.WriteString(t.run)
	}
	return b.String()
}

// DataFile returns the path of the copied raw recording. ext carries the
// leading dot and follows the source file.
func (t Target) DataFile(ext string) string {
	return filepath.Join(t.Dir(), t.base()+"_meg"+ext)
}

// RelDataFile returns the raw recording path relative to the dataset root,
// the form used for cross references between sidecars.
func (t Target) RelDataFile(ext string) string {
	return filepath.ToSlash(filepath.Join(subjectID(t.subject), "meg", t.base()+"_meg"+ext))
}

// EventsFile returns the path of the event table.
func (t Target) EventsFile() string {
	return filepath.Join(t.Dir(), t.base()+"_events.tsv")
}

// ChannelsFile returns the path of the channel table.
func (t Target) ChannelsFile() string {
	return filepath.Join(t.Dir(), t.base()+"_channels.tsv")
}

// SidecarFile returns the path of the recording's JSON sidecar.
func (t Target) SidecarFile() string {
	return filepath.Join(t.Dir(), t.base()+"_meg.json")
}

func (t Target) String() string {
	return t.base()
}

// SubjectDir returns the top-level directory of a subject.
func SubjectDir(root, subject string) string {
	return filepath.Join(root, subjectID(subject))
}

// AnatDir returns the directory holding a subject's structural image.
func AnatDir(root, subject string) string {
	return filepath.Join(root, subjectID(subject), "anat")
}

// StructuralStem returns the file stem of a subject's T1-weighted image,
// without directory or extension. The DICOM converter is pointed at this
// stem so its output lands under the final name directly.
func StructuralStem(subject string) string {
	return fmt.Sprintf("%s_T1w", subjectID(subject))
}

// StructuralPath returns the path of a subject's converted structural image.
func StructuralPath(root, subject string) string {
	return filepath.Join(AnatDir(root, subject), StructuralStem(subject)+".nii.gz")
}

// CalibrationPath returns the path of a subject's fine-calibration copy.
func CalibrationPath(root, subject string) string {
	return filepath.Join(root, subjectID(subject), "meg", subjectID(subject)+"_acq-calibration_meg.dat")
}

// CrosstalkPath returns the path of a subject's crosstalk-compensation copy.
func CrosstalkPath(root, subject string) string {
	return filepath.Join(root, subjectID(subject), "meg", subjectID(subject)+"_acq-crosstalk_meg.fif")
}

// DescriptionPath returns the path of the dataset description document.
func DescriptionPath(root string) string {
	return filepath.Join(root, "dataset_description.json")
}

// ParticipantsPath returns the path of the participants table.
func ParticipantsPath(root string) string {
	return filepath.Join(root, "participants.tsv")
}

// ParticipantsSidecarPath returns the path of the participants column
// descriptions.
func ParticipantsSidecarPath(root string) string {
	return filepath.Join(root, "participants.json")
}

func subjectID(label string) string {
	return "sub-" + label
}
