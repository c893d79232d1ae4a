package erfs

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/gzip"

	"github.com/meigma/erfs/internal/sizing"
)

// gzipTrailerSize is the CRC32 + ISIZE trailer of a gzip member.
const gzipTrailerSize = 8

var errContentTooLarge = errors.New("content exceeds the 32-bit size limit")

// Decompress gunzips content stored with FlagGzipped.
func Decompress(stored []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(stored))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecompression, err)
	}
	defer zr.Close()

	out, err := sizing.ReadAllWithLimit(zr, sizing.MaxUint32, errContentTooLarge)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecompression, err)
	}
	return out, nil
}

// Contents returns the content of file h, decompressed when it is gzipped.
// Uncompressed content is returned without copying.
func (f *FS) Contents(h Handle) ([]byte, error) {
	stored, err := f.ReadFile(h)
	if err != nil {
		return nil, err
	}
	if !f.entries[h].IsGzipped() {
		return stored, nil
	}
	return Decompress(stored)
}

// ContentSize returns the size of file h after decompression. For gzipped
// content it is taken from the gzip trailer, which is exact for every size
// the format can hold.
func (f *FS) ContentSize(h Handle) (int64, error) {
	stored, err := f.ReadFile(h)
	if err != nil {
		return 0, err
	}
	if !f.entries[h].IsGzipped() {
		return int64(len(stored)), nil
	}
	if len(stored) < gzipTrailerSize {
		return 0, ErrDecompression
	}
	return int64(binary.LittleEndian.Uint32(stored[len(stored)-4:])), nil
}
