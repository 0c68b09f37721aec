package anat

import (
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// NIfTI-1 single-file header layout: sizeof_hdr at offset 0 (must be 348),
// dim[0] at offset 40, magic at offset 344.
const niftiHeaderSize = 348

// VerifyNIfTI checks that path holds a gzipped NIfTI-1 volume: header size,
// magic and a sane dimension count. The byte order is inferred from the
// header-size field.
func VerifyNIfTI(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open volume: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("%s is not gzip compressed: %w", path, err)
	}
	defer gz.Close()

	header := make([]byte, niftiHeaderSize)
	if _, err := io.ReadFull(gz, header); err != nil {
		return fmt.Errorf("%s is truncated: %w", path, err)
	}

	var order binary.ByteOrder = binary.LittleEndian
	if order.Uint32(header[0:4]) != niftiHeaderSize {
		order = binary.BigEndian
		if order.Uint32(header[0:4]) != niftiHeaderSize {
			return fmt.Errorf("%s has header size %d, want %d", path, binary.LittleEndian.Uint32(header[0:4]), niftiHeaderSize)
		}
	}

	magic := string(header[344:348])
	if magic != "n+1\x00" && magic != "ni1\x00" {
		return fmt.Errorf("%s has unrecognized magic %q", path, magic)
	}

	dims := order.Uint16(header[40:42])
	if dims < 1 || dims > 7 {
		return fmt.Errorf("%s declares %d dimensions, want 1..7", path, dims)
	}
	return nil
}
