package anat

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/MRC-CBU/BIDS-conversion/internal/bids"
	"github.com/MRC-CBU/BIDS-conversion/internal/logging"
	"github.com/MRC-CBU/BIDS-conversion/internal/meta"
	"github.com/MRC-CBU/BIDS-conversion/internal/testsupport"
)

type fakeConverterClient struct {
	t        *testing.T
	valid    bool
	dicomDir string
	outDir   string
	stem     string
}

func (f *fakeConverterClient) Convert(ctx context.Context, dicomDir, outDir, stem string) (string, error) {
	f.dicomDir = dicomDir
	f.outDir = outDir
	f.stem = stem
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		f.t.Fatalf("mkdir out dir: %v", err)
	}
	path := filepath.Join(outDir, stem+".nii.gz")
	if f.valid {
		writeNIfTI(f.t, path, binary.LittleEndian, "n+1\x00", 3)
	} else {
		if err := os.WriteFile(path, []byte("not a volume"), 0o644); err != nil {
			f.t.Fatal(err)
		}
	}
	return path, nil
}

func TestConvertProducesValidatedVolume(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAnat(""))
	cfg.Anat.VerifyDicom = false
	client := &fakeConverterClient{t: t, valid: true}
	conv := NewConverterWithClient(cfg, logging.NewNop(), client)

	sub := meta.Subject{BIDSID: "01", MRIID: "meg23_0101", MRIDicomDir: cfg.Anat.DicomRoot}
	volume, err := conv.Convert(context.Background(), sub)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	want := bids.StructuralPath(cfg.Paths.BIDSDir, "01")
	if volume != want {
		t.Fatalf("unexpected volume path: got %q, want %q", volume, want)
	}
	if client.dicomDir != cfg.Anat.DicomRoot {
		t.Errorf("unexpected dicom dir passed to converter: %q", client.dicomDir)
	}
	if client.stem != "sub-01_T1w" {
		t.Errorf("unexpected stem passed to converter: %q", client.stem)
	}
}

func TestConvertRejectsCorruptVolume(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAnat(""))
	cfg.Anat.VerifyDicom = false
	conv := NewConverterWithClient(cfg, logging.NewNop(), &fakeConverterClient{t: t, valid: false})

	sub := meta.Subject{BIDSID: "01", MRIDicomDir: cfg.Anat.DicomRoot}
	if _, err := conv.Convert(context.Background(), sub); err == nil {
		t.Fatal("expected volume validation error")
	}
}

func TestConvertVerifiesSeriesIdentityFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAnat(""))
	client := &fakeConverterClient{t: t, valid: true}
	conv := NewConverterWithClient(cfg, logging.NewNop(), client)

	// The DICOM root holds no parseable images, so verification fails
	// before the converter runs.
	sub := meta.Subject{BIDSID: "01", MRIDicomDir: cfg.Anat.DicomRoot}
	if _, err := conv.Convert(context.Background(), sub); err == nil {
		t.Fatal("expected series verification error")
	}
	if client.outDir != "" {
		t.Fatal("converter should not run when verification fails")
	}
}

func TestConvertRequiresStructuralSeries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	conv := NewConverterWithClient(cfg, logging.NewNop(), &fakeConverterClient{t: t, valid: true})

	if _, err := conv.Convert(context.Background(), meta.Subject{BIDSID: "01"}); err == nil {
		t.Fatal("expected error for subject without structural series")
	}
}
