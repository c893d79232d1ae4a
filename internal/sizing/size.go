// Package sizing provides overflow-checked arithmetic for the 32-bit offsets
// and sizes of the artifact format.
package sizing

import (
	"io"
	"math"
)

// MaxUint32 is the largest offset or size the format can express.
const MaxUint32 = math.MaxUint32

// ToUint32 converts n to uint32, returning overflowErr if it doesn't fit.
func ToUint32[T ~int | ~int64 | ~uint64](n T, overflowErr error) (uint32, error) {
	if n < 0 || uint64(n) > MaxUint32 {
		return 0, overflowErr
	}
	return uint32(n), nil
}

// AddUint32 adds two uint32 values, returning (result, false) on overflow.
func AddUint32(a, b uint32) (uint32, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// AddUint64 adds two uint64 values, returning (result, false) on overflow.
func AddUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// ReadAllWithLimit reads up to maxSize bytes from r.
// Returns overflowErr if more than maxSize bytes are available.
func ReadAllWithLimit(r io.Reader, maxSize uint64, overflowErr error) ([]byte, error) {
	if maxSize > uint64(math.MaxInt-1) {
		return nil, overflowErr
	}
	limit := int64(maxSize) + 1 //nolint:gosec // checked above
	lr := &io.LimitedReader{R: r, N: limit}
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) > maxSize {
		return nil, overflowErr
	}
	return data, nil
}
