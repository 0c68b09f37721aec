package dcm2niix

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewCLIWithBinary(t *testing.T) {
	cli := NewCLI(WithBinary("/opt/dcm2niix"))
	if cli.binary != "/opt/dcm2niix" {
		t.Fatalf("expected binary override to be applied, got %q", cli.binary)
	}
}

func TestConvertValidatesInputs(t *testing.T) {
	cli := NewCLI()
	dir := t.TempDir()

	if _, err := cli.Convert(context.Background(), "", dir, "sub-01_T1w"); err == nil {
		t.Error("expected error for empty dicom directory")
	}
	if _, err := cli.Convert(context.Background(), dir, "", "sub-01_T1w"); err == nil {
		t.Error("expected error for empty output directory")
	}
	if _, err := cli.Convert(context.Background(), dir, dir, ""); err == nil {
		t.Error("expected error for empty stem")
	}
	if _, err := cli.Convert(context.Background(), filepath.Join(dir, "absent"), dir, "sub-01_T1w"); err == nil {
		t.Error("expected error for missing dicom directory")
	}
}

func TestConvertBuildsExpectedCommand(t *testing.T) {
	dicomDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "anat")

	var capturedArgs []string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		capturedArgs = append([]string(nil), args...)
		// Simulate the converter side effect before the stub runs.
		if err := os.WriteFile(filepath.Join(outDir, "sub-01_T1w.nii.gz"), []byte("nifti"), 0o644); err != nil {
			t.Fatalf("write fake volume: %v", err)
		}
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "DCM2NIIX_HELPER_MODE=success")
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})

	cli := NewCLI()
	outputPath, err := cli.Convert(context.Background(), dicomDir, outDir, "sub-01_T1w")
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}
	if outputPath != filepath.Join(outDir, "sub-01_T1w.nii.gz") {
		t.Fatalf("unexpected output path: %q", outputPath)
	}

	want := []string{"-o", outDir, "-f", "sub-01_T1w", "-m", "y", "-z", "y", dicomDir}
	if len(capturedArgs) != len(want) {
		t.Fatalf("unexpected args: %v", capturedArgs)
	}
	for i, arg := range want {
		if capturedArgs[i] != arg {
			t.Fatalf("arg %d: got %q, want %q", i, capturedArgs[i], arg)
		}
	}
}

func TestConvertFailureIncludesToolOutput(t *testing.T) {
	setHelperCommand(t, "failure")

	cli := NewCLI()
	_, err := cli.Convert(context.Background(), t.TempDir(), t.TempDir(), "sub-01_T1w")
	if err == nil {
		t.Fatal("expected converter failure error")
	}
	if !strings.Contains(err.Error(), "no DICOM images found") {
		t.Fatalf("expected tool output in error, got %v", err)
	}
}

func TestConvertRejectsMissingOutput(t *testing.T) {
	setHelperCommand(t, "success")

	cli := NewCLI()
	_, err := cli.Convert(context.Background(), t.TempDir(), t.TempDir(), "sub-01_T1w")
	if err == nil || !strings.Contains(err.Error(), "was not produced") {
		t.Fatalf("expected missing-output error, got %v", err)
	}
}

func setHelperCommand(t *testing.T, mode string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", fmt.Sprintf("DCM2NIIX_HELPER_MODE=%s", mode))
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("DCM2NIIX_HELPER_MODE") {
	case "success":
		fmt.Println("Conversion required 1.2 seconds")
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "no DICOM images found")
		os.Exit(1)
	default:
		os.Exit(0)
	}
}
