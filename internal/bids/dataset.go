package bids

import (
	"fmt"
	"os"
	"sort"
)

const bidsVersion = "1.8.0"

type description struct {
	Name        string   `json:"Name"`
	BIDSVersion string   `json:"BIDSVersion"`
	DatasetType string   `json:"DatasetType"`
	Authors     []string `json:"Authors,omitempty"`
}

type columnDescription struct {
	Description string `json:"Description"`
}

// EnsureDataset writes the dataset-level documents: the description and the
// participants column sidecar. Both are replaced on every run so config
// edits propagate.
func (w *Writer) EnsureDataset() error {
	root := w.cfg.Paths.BIDSDir
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", root, err)
	}

	name := w.cfg.Dataset.Name
	if name == "" {
		name = "MEG dataset"
	}
	desc := description{
		Name:        name,
		BIDSVersion: bidsVersion,
		DatasetType: "raw",
		Authors:     w.cfg.Dataset.Authors,
	}
	if err := writeJSON(DescriptionPath(root), desc); err != nil {
		return err
	}

	sidecar := map[string]columnDescription{
		"participant_id": {Description: "Unique participant identifier"},
	}
	return writeJSON(ParticipantsSidecarPath(root), sidecar)
}

// AddParticipant records a subject in the participants table, keeping rows
// unique and sorted. Adding an already listed subject is a no-op.
func (w *Writer) AddParticipant(subject string) error {
	root := w.cfg.Paths.BIDSDir
	path := ParticipantsPath(root)

	ids := map[string]bool{subjectID(subject): true}
	if rows, err := readTable(path); err == nil {
		for i, row := range rows {
			if i == 0 || len(row) == 0 {
				continue
			}
			ids[row[0]] = true
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read participants table: %w", err)
	}

	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	rows := make([][]string, 0, len(sorted)+1)
	rows = append(rows, []string{"participant_id"})
	for _, id := range sorted {
		rows = append(rows, []string{id})
	}
	return writeTable(path, rows)
}
