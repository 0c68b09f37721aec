package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/MRC-CBU/BIDS-conversion/internal/config"
)

// Requirement defines an external tool a conversion run may launch.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements derives the external-tool list from the active config. The
// channel-location fixer is only mandatory for vectorview acquisitions, the
// DICOM converter only when structural conversion is enabled.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "EEG location fixer",
			Command:     cfg.FixerBinary(),
			Description: "Repairs EEG electrode locations in staged recordings",
			Optional:    cfg.MEG.System != "vectorview",
		},
		{
			Name:        "dcm2niix",
			Command:     cfg.Dcm2niixBinary(),
			Description: "Converts DICOM series to NIfTI volumes",
			Optional:    !cfg.Anat.Enabled,
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	statuses := make([]Status, len(requirements))
	for i, req := range requirements {
		statuses[i] = check(req)
	}
	return statuses
}

func check(req Requirement) Status {
	status := Status{
		Name:        req.Name,
		Command:     strings.TrimSpace(req.Command),
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	if _, err := exec.LookPath(status.Command); err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		return status
	}
	status.Available = true
	return status
}

// Missing filters statuses down to unavailable mandatory tools.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}
