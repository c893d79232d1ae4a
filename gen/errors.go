package gen

import (
	"errors"

	"github.com/meigma/erfs/internal/tree"
)

// Sentinel errors. Path and input errors reuse erfs.ErrNotFound and
// erfs.ErrInvalidInput.
var (
	// ErrTargetNotExist is returned when the destination directory is missing.
	ErrTargetNotExist = errors.New("erfs: target directory does not exist")

	// ErrSourceTooLarge is returned when names and contents together exceed
	// the size ceiling or a 32-bit offset.
	ErrSourceTooLarge = tree.ErrSourceTooLarge

	// ErrSourceChanged is returned when a source file changes size while it
	// is being read.
	ErrSourceChanged = tree.ErrSourceChanged

	// ErrInvalidID is returned when the id does not match [a-z][a-z_0-9]*.
	ErrInvalidID = errors.New("erfs: invalid id")

	// ErrInvalidOption is returned for an unknown target, conflicting
	// targets, an invalid package name or an out-of-range size ceiling.
	ErrInvalidOption = errors.New("erfs: invalid option")
)
