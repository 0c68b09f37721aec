package anat

import (
	"context"
	"fmt"

	"log/slog"

	"github.com/MRC-CBU/BIDS-conversion/internal/bids"
	"github.com/MRC-CBU/BIDS-conversion/internal/config"
	"github.com/MRC-CBU/BIDS-conversion/internal/logging"
	"github.com/MRC-CBU/BIDS-conversion/internal/meta"
	"github.com/MRC-CBU/BIDS-conversion/internal/services/dcm2niix"
)

// Converter produces a subject's structural image inside the dataset tree.
type Converter struct {
	cfg    *config.Config
	client dcm2niix.Client
	logger *slog.Logger
}

// NewConverter constructs a converter around the configured binary.
func NewConverter(cfg *config.Config, logger *slog.Logger) *Converter {
	return NewConverterWithClient(cfg, logger, dcm2niix.NewCLI(dcm2niix.WithBinary(cfg.Dcm2niixBinary())))
}

// NewConverterWithClient allows injecting the converter client (used in
// tests).
func NewConverterWithClient(cfg *config.Config, logger *slog.Logger, client dcm2niix.Client) *Converter {
	return &Converter{cfg: cfg, client: client, logger: logging.NewComponentLogger(logger, "anat")}
}

// Convert verifies the subject's DICOM series, runs the converter and
// validates the produced volume. It returns the path of the structural
// image inside the dataset.
func (c *Converter) Convert(ctx context.Context, sub meta.Subject) (string, error) {
	if !sub.HasMRI() {
		return "", fmt.Errorf("subject sub-%s has no structural series", sub.BIDSID)
	}

	if c.cfg.Anat.VerifyDicom {
		info, err := ScanSeries(sub.MRIDicomDir)
		if err != nil {
			return "", err
		}
		if err := info.Verify(sub.MRIID, sub.MRIDate); err != nil {
			return "", err
		}
		c.logger.Debug("dicom series verified",
			logging.String("dicom_dir", sub.MRIDicomDir),
			logging.Int("files", info.Files),
		)
	}

	outDir := bids.AnatDir(c.cfg.Paths.BIDSDir, sub.BIDSID)
	stem := bids.StructuralStem(sub.BIDSID)
	volume, err := c.client.Convert(ctx, sub.MRIDicomDir, outDir, stem)
	if err != nil {
		return "", err
	}
	if err := VerifyNIfTI(volume); err != nil {
		return "", err
	}

	c.logger.Info("structural image converted",
		logging.String("subject", sub.BIDSID),
		logging.String("volume", volume),
	)
	return volume, nil
}
