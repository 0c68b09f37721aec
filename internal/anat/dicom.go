package anat

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// SeriesInfo summarizes a DICOM series directory.
type SeriesInfo struct {
	// Files counts the regular files under the series directory.
	Files     int
	PatientID string
	StudyDate string
}

// ScanSeries walks a series directory and reads the identity fields from the
// first parseable DICOM image. At least one image must parse.
func ScanSeries(dir string) (SeriesInfo, error) {
	var info SeriesInfo
	identified := false

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info.Files++
		if identified {
			return nil
		}
		dataset, err := dicom.ParseFile(path, nil)
		if err != nil {
			return nil
		}
		identified = true
		if el, err := dataset.FindElementByTag(tag.PatientID); err == nil {
			if values := dicom.MustGetStrings(el.Value); len(values) > 0 {
				info.PatientID = strings.TrimSpace(values[0])
			}
		}
		if el, err := dataset.FindElementByTag(tag.StudyDate); err == nil {
			if values := dicom.MustGetStrings(el.Value); len(values) > 0 {
				info.StudyDate = strings.TrimSpace(values[0])
			}
		}
		return nil
	})
	if err != nil {
		return SeriesInfo{}, fmt.Errorf("scan dicom series: %w", err)
	}
	if !identified {
		return SeriesInfo{}, fmt.Errorf("no DICOM images found under %s", dir)
	}
	return info, nil
}

// Verify compares the scanned identity against the subject record. Empty
// expected values pass, matching records that never captured them.
func (s SeriesInfo) Verify(patientID, studyDate string) error {
	if patientID != "" && s.PatientID != patientID {
		return fmt.Errorf("dicom PatientID %q does not match subject mri_id %q", s.PatientID, patientID)
	}
	if studyDate != "" && normalizeDate(s.StudyDate) != normalizeDate(studyDate) {
		return fmt.Errorf("dicom StudyDate %q does not match subject mri_date %q", s.StudyDate, studyDate)
	}
	return nil
}

// normalizeDate reduces YYYY-MM-DD and YYYYMMDD spellings to one form.
func normalizeDate(value string) string {
	return strings.NewReplacer("-", "", "/", "").Replace(strings.TrimSpace(value))
}
