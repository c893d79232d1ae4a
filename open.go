package erfs

import (
	"bytes"
	"io/fs"
	"slices"
	"strings"
)

// Separator is the path separator understood by Open.
const Separator = '/'

// Open resolves path and returns its handle together with its size: the child
// count for a directory, the stored content length for a file.
//
// A single leading separator is ignored; "" and "/" resolve to the root.
// Segments are matched byte-wise against entry names. "." and ".." have no
// special meaning. A path that continues past a file fails with ErrNotFound.
// A trailing separator is accepted after a directory.
//
// Errors are *fs.PathError values wrapping ErrNotFound.
func (f *FS) Open(path string) (Handle, uint32, error) {
	h, err := f.lookup(path)
	if err != nil {
		return 0, 0, &fs.PathError{Op: "open", Path: path, Err: err}
	}
	return h, f.entries[h].DataSize, nil
}

// Read returns the stored content of the file at path. The content is still
// gzip-compressed when the entry has FlagGzipped.
//
// Errors are *fs.PathError values wrapping ErrNotFound or ErrNotFile.
func (f *FS) Read(path string) ([]byte, error) {
	h, err := f.lookup(path)
	if err != nil {
		return nil, &fs.PathError{Op: "read", Path: path, Err: err}
	}
	e := f.entries[h]
	if e.IsDir() {
		return nil, &fs.PathError{Op: "read", Path: path, Err: ErrNotFile}
	}
	return f.content(e), nil
}

// ReadFile returns the stored content of the file h.
func (f *FS) ReadFile(h Handle) ([]byte, error) {
	e, err := f.Entry(h)
	if err != nil {
		return nil, err
	}
	if e.IsDir() {
		return nil, ErrNotFile
	}
	return f.content(e), nil
}

// EntryName returns the name of h. The root is named "/".
func (f *FS) EntryName(h Handle) ([]byte, error) {
	e, err := f.Entry(h)
	if err != nil {
		return nil, err
	}
	return f.name(e), nil
}

// EntryFlags returns the flags of h.
func (f *FS) EntryFlags(h Handle) (Flags, error) {
	e, err := f.Entry(h)
	if err != nil {
		return 0, err
	}
	return e.Flags, nil
}

// ReadDir returns the index-th child of the directory h. Children are ordered
// by name.
func (f *FS) ReadDir(h Handle, index uint32) (Handle, error) {
	e, err := f.Entry(h)
	if err != nil {
		return 0, err
	}
	if !e.IsDir() {
		return 0, ErrNotDirectory
	}
	if index >= e.DataSize {
		return 0, ErrOutOfBound
	}
	return Handle(e.DataOffset + index), nil
}

// lookup walks path from the root, one segment per directory level.
func (f *FS) lookup(path string) (Handle, error) {
	rest := strings.TrimPrefix(path, string(Separator))
	dir := RootHandle
	if rest == "" {
		return dir, nil
	}

	for {
		segment, tail, more := strings.Cut(rest, string(Separator))
		h, ok := f.search(dir, segment)
		if !ok {
			return 0, ErrNotFound
		}
		if !more {
			return h, nil
		}
		if !f.entries[h].IsDir() {
			return 0, ErrNotFound
		}
		if tail == "" {
			return h, nil
		}
		dir = h
		rest = tail
	}
}

// search binary searches the child range of dir for name.
func (f *FS) search(dir Handle, name string) (Handle, bool) {
	d := f.entries[dir]
	children := f.entries[d.DataOffset : d.DataOffset+d.DataSize]
	target := stringBytes(name)
	i, found := slices.BinarySearchFunc(children, target, func(e Entry, t []byte) int {
		return bytes.Compare(f.name(e), t)
	})
	if !found {
		return 0, false
	}
	return Handle(d.DataOffset + uint32(i)), true //nolint:gosec // i < DataSize
}

func (f *FS) name(e Entry) []byte {
	return f.data[e.NameOffset : e.NameOffset+e.NameSize : e.NameOffset+e.NameSize]
}

func (f *FS) content(e Entry) []byte {
	return f.data[e.DataOffset : e.DataOffset+e.DataSize : e.DataOffset+e.DataSize]
}
