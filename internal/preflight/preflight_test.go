package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MRC-CBU/BIDS-conversion/internal/config"
	"github.com/MRC-CBU/BIDS-conversion/internal/meta"
	"github.com/MRC-CBU/BIDS-conversion/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDirectoryReadable_OK(t *testing.T) {
	result := CheckDirectoryReadable("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryReadable_NotExist(t *testing.T) {
	result := CheckDirectoryReadable("test", filepath.Join(t.TempDir(), "raw"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
}

func TestCheckFileReadable_OK(t *testing.T) {
	f := filepath.Join(t.TempDir(), "events.json")
	if err := os.WriteFile(f, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckFileReadable("test", f)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckFileReadable_Missing(t *testing.T) {
	result := CheckFileReadable("test", filepath.Join(t.TempDir(), "events.json"))
	if result.Passed {
		t.Fatal("expected failure for missing file")
	}
}

func TestCheckFileReadable_Directory(t *testing.T) {
	result := CheckFileReadable("test", t.TempDir())
	if result.Passed {
		t.Fatal("expected failure for directory path")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ReadyConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteEvents(t, cfg, testsupport.DefaultEvents())
	testsupport.WriteSubjects(t, cfg, map[string]meta.Subject{
		"meg23_0101": {BIDSID: "01"},
	})

	results := RunAll(cfg)
	if len(results) != 7 {
		t.Fatalf("expected 7 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
}

func TestRunAll_IncludesCalibrationWhenConfigured(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCalibrationFiles())
	testsupport.WriteEvents(t, cfg, testsupport.DefaultEvents())
	testsupport.WriteSubjects(t, cfg, map[string]meta.Subject{
		"meg23_0101": {BIDSID: "01"},
	})

	results := RunAll(cfg)
	names := make(map[string]bool, len(results))
	for _, r := range results {
		names[r.Name] = true
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
	if !names["Calibration file"] || !names["Crosstalk file"] {
		t.Fatalf("expected calibration checks in results, got %v", names)
	}
}

func TestRunAll_ReportsMissingMetadata(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	failed := make(map[string]bool)
	for _, r := range RunAll(cfg) {
		if !r.Passed {
			failed[r.Name] = true
		}
	}
	if !failed["Events file"] || !failed["Subjects file"] {
		t.Fatalf("expected metadata file failures, got %v", failed)
	}
}

func TestCheckTools(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())

	statuses := CheckTools(cfg)
	if len(statuses) != 2 {
		t.Fatalf("expected 2 tool statuses, got %d", len(statuses))
	}
	for _, status := range statuses {
		if !status.Available {
			t.Errorf("tool %q unavailable: %s", status.Name, status.Detail)
		}
	}
}

func TestCheckTools_MissingBinary(t *testing.T) {
	cfg := config.Default()
	cfg.Tools.Dcm2niix = "definitely-not-installed-converter"
	cfg.Anat.Enabled = true

	for _, status := range CheckTools(&cfg) {
		if status.Name != "dcm2niix" {
			continue
		}
		if status.Available {
			t.Fatal("expected missing converter to be unavailable")
		}
		if status.Optional {
			t.Fatal("converter must be mandatory when structural conversion is on")
		}
		return
	}
	t.Fatal("expected dcm2niix status in results")
}
