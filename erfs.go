package erfs

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"unsafe"
)

// Flags is the bit set stored in every entry.
type Flags uint32

const (
	// FlagDirectory marks a directory entry.
	FlagDirectory Flags = 1 << iota

	// FlagGzipped marks a file whose stored content is gzip-compressed.
	FlagGzipped
)

// String returns a human-readable form such as "dir" or "file|gzip".
func (f Flags) String() string {
	parts := make([]string, 0, 2)
	if f&FlagDirectory != 0 {
		parts = append(parts, "dir")
	} else {
		parts = append(parts, "file")
	}
	if f&FlagGzipped != 0 {
		parts = append(parts, "gzip")
	}
	if rest := f &^ (FlagDirectory | FlagGzipped); rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// EntrySize is the encoded size in bytes of one Entry record.
const EntrySize = 20

// Entry is one record of the entry table.
//
// The meaning of DataOffset and DataSize depends on FlagDirectory:
// for a directory they are the index of its first child and its child count,
// for a file they are the offset and length of its stored content in the data
// blob.
type Entry struct {
	NameOffset uint32
	NameSize   uint32
	DataOffset uint32
	DataSize   uint32
	Flags      Flags
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool {
	return e.Flags&FlagDirectory != 0
}

// IsGzipped reports whether the entry's stored content is gzip-compressed.
func (e Entry) IsGzipped() bool {
	return e.Flags&FlagGzipped != 0
}

// Handle references one entry of an FS. It is only meaningful for the FS
// that produced it.
type Handle uint32

// RootHandle is the handle of the root directory of every FS.
const RootHandle Handle = 0

// FS is a read-only embedded resource filesystem.
//
// All methods are safe for concurrent use. Returned byte slices alias the data
// blob and must not be modified.
type FS struct {
	entries []Entry
	data    []byte
}

// New creates an FS over an entry table and data blob.
//
// Both slices are retained; callers must not modify them afterwards. New
// validates the table and returns ErrCorrupt if it violates the format.
func New(entries []Entry, data []byte) (*FS, error) {
	if err := validate(entries, data); err != nil {
		return nil, err
	}
	return &FS{entries: entries, data: data}, nil
}

// NewString is like New but takes the data blob as a string, which is how
// generated Go code stores it. The string is not copied.
func NewString(entries []Entry, data string) (*FS, error) {
	return New(entries, stringBytes(data))
}

// Must panics if err is not nil. It is intended for generated accessors whose
// input is known to be valid.
func Must(fsys *FS, err error) *FS {
	if err != nil {
		panic(err)
	}
	return fsys
}

// Root returns the handle of the root directory.
func (f *FS) Root() Handle {
	return RootHandle
}

// Len returns the number of entries, directories included.
func (f *FS) Len() int {
	return len(f.entries)
}

// DataSize returns the size of the data blob in bytes.
func (f *FS) DataSize() int {
	return len(f.data)
}

// Entry returns the raw record for h.
func (f *FS) Entry(h Handle) (Entry, error) {
	if int64(h) >= int64(len(f.entries)) {
		return Entry{}, ErrInvalidInput
	}
	return f.entries[h], nil
}

// Entries returns the entry table. The slice must not be modified.
func (f *FS) Entries() []Entry {
	return f.entries
}

// Data returns the data blob. The slice must not be modified.
func (f *FS) Data() []byte {
	return f.data
}

// stringBytes returns the bytes of s without copying.
func stringBytes(s string) []byte {
	if s == "" {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// validate checks the structural invariants the reader relies on: the root is
// a directory, every range is in bounds, every non-root entry has exactly one
// parent with a lower index, and siblings are strictly ascending by name.
func validate(entries []Entry, data []byte) error {
	if len(entries) == 0 {
		return fmt.Errorf("%w: empty entry table", ErrCorrupt)
	}
	if uint64(len(entries)) > math.MaxUint32 || uint64(len(data)) > math.MaxUint32 {
		return fmt.Errorf("%w: table or data exceeds 32-bit range", ErrCorrupt)
	}
	if !entries[0].IsDir() {
		return fmt.Errorf("%w: root is not a directory", ErrCorrupt)
	}

	dataLen := uint64(len(data))
	count := uint64(len(entries))
	parented := make([]bool, len(entries))
	for i, e := range entries {
		if uint64(e.NameOffset)+uint64(e.NameSize) > dataLen {
			return fmt.Errorf("%w: entry %d: name out of range", ErrCorrupt, i)
		}
		if !e.IsDir() {
			if uint64(e.DataOffset)+uint64(e.DataSize) > dataLen {
				return fmt.Errorf("%w: entry %d: content out of range", ErrCorrupt, i)
			}
			continue
		}
		if e.DataSize == 0 {
			continue
		}
		start := uint64(e.DataOffset)
		end := start + uint64(e.DataSize)
		if start <= uint64(i) || end > count {
			return fmt.Errorf("%w: entry %d: children out of range", ErrCorrupt, i)
		}
		var prev []byte
		for c := start; c < end; c++ {
			if parented[c] {
				return fmt.Errorf("%w: entry %d has more than one parent", ErrCorrupt, c)
			}
			parented[c] = true
			name := data[entries[c].NameOffset : entries[c].NameOffset+entries[c].NameSize]
			if c > start && bytes.Compare(prev, name) >= 0 {
				return fmt.Errorf("%w: entry %d: children not sorted", ErrCorrupt, i)
			}
			prev = name
		}
	}
	for i := 1; i < len(parented); i++ {
		if !parented[i] {
			return fmt.Errorf("%w: entry %d is unreachable", ErrCorrupt, i)
		}
	}
	return nil
}
