package erfs

import (
	"bytes"
	"io"
	"io/fs"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Interface compliance.
var (
	_ fs.FS         = (*StdFS)(nil)
	_ fs.StatFS     = (*StdFS)(nil)
	_ fs.ReadFileFS = (*StdFS)(nil)
	_ fs.ReadDirFS  = (*StdFS)(nil)
)

// StdFSOption configures a StdFS.
type StdFSOption func(*StdFS)

// StdFSWithCache keeps decompressed content of gzipped files in memory so
// repeated reads decompress once. Concurrent first reads of the same file
// are deduplicated.
func StdFSWithCache() StdFSOption {
	return func(s *StdFS) {
		s.cache = make(map[Handle][]byte)
	}
}

// StdFSWithLogger sets a logger for cache diagnostics.
func StdFSWithLogger(logger *slog.Logger) StdFSOption {
	return func(s *StdFS) {
		s.logger = logger
	}
}

// StdFS adapts an FS to the io/fs interfaces.
//
// Names follow fs.ValidPath: "." is the root and "a/b" is "/a/b". Gzipped
// files are decompressed transparently and report their decompressed size.
type StdFS struct {
	fsys   *FS
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[Handle][]byte // nil = no caching
	group singleflight.Group
}

// StdFS returns an io/fs view of f.
func (f *FS) StdFS(opts ...StdFSOption) *StdFS {
	s := &StdFS{fsys: f}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// log returns the logger, falling back to a discard logger if nil.
func (s *StdFS) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

// Open implements fs.FS.
func (s *StdFS) Open(name string) (fs.File, error) {
	h, err := s.lookup("open", name)
	if err != nil {
		return nil, err
	}
	info, err := s.info(h)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	if info.IsDir() {
		return &openDir{s: s, h: h, name: name, info: info}, nil
	}
	content, err := s.contents(h)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return &openFile{Reader: bytes.NewReader(content), info: info}, nil
}

// Stat implements fs.StatFS.
func (s *StdFS) Stat(name string) (fs.FileInfo, error) {
	h, err := s.lookup("stat", name)
	if err != nil {
		return nil, err
	}
	info, err := s.info(h)
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
	}
	return info, nil
}

// ReadFile implements fs.ReadFileFS. The returned slice is a copy the caller
// may modify.
func (s *StdFS) ReadFile(name string) ([]byte, error) {
	h, err := s.lookup("readfile", name)
	if err != nil {
		return nil, err
	}
	if s.fsys.entries[h].IsDir() {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: ErrNotFile}
	}
	content, err := s.contents(h)
	if err != nil {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: err}
	}
	return bytes.Clone(content), nil
}

// ReadDir implements fs.ReadDirFS. Entries are sorted by name.
func (s *StdFS) ReadDir(name string) ([]fs.DirEntry, error) {
	h, err := s.lookup("readdir", name)
	if err != nil {
		return nil, err
	}
	e := s.fsys.entries[h]
	if !e.IsDir() {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: ErrNotDirectory}
	}
	entries, err := s.dirEntries(e, 0, e.DataSize)
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}
	return entries, nil
}

// lookup maps an fs.ValidPath name to a handle.
func (s *StdFS) lookup(op, name string) (Handle, error) {
	if !fs.ValidPath(name) {
		return 0, &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	path := "/"
	if name != "." {
		path += name
	}
	h, err := s.fsys.lookup(path)
	if err != nil {
		return 0, &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
	}
	return h, nil
}

func (s *StdFS) dirEntries(dir Entry, from, to uint32) ([]fs.DirEntry, error) {
	entries := make([]fs.DirEntry, 0, to-from)
	for i := from; i < to; i++ {
		info, err := s.info(Handle(dir.DataOffset + i))
		if err != nil {
			return nil, err
		}
		entries = append(entries, fs.FileInfoToDirEntry(info))
	}
	return entries, nil
}

func (s *StdFS) info(h Handle) (*fileInfo, error) {
	e := s.fsys.entries[h]
	info := &fileInfo{name: string(s.fsys.name(e)), entry: e}
	if h == RootHandle {
		info.name = "."
	}
	if e.IsDir() {
		return info, nil
	}
	size, err := s.fsys.ContentSize(h)
	if err != nil {
		return nil, err
	}
	info.size = size
	return info, nil
}

// contents returns the decompressed content of file h. The slice must not be
// modified: it aliases the data blob or the cache.
func (s *StdFS) contents(h Handle) ([]byte, error) {
	e := s.fsys.entries[h]
	if !e.IsGzipped() {
		return s.fsys.content(e), nil
	}
	if s.cache == nil {
		return Decompress(s.fsys.content(e))
	}

	s.mu.RLock()
	content, ok := s.cache[h]
	s.mu.RUnlock()
	if ok {
		s.log().Debug("content cache hit", "handle", h)
		return content, nil
	}

	s.log().Debug("content cache miss", "handle", h)
	result, err, _ := s.group.Do(strconv.FormatUint(uint64(h), 10), func() (any, error) {
		s.mu.RLock()
		content, ok := s.cache[h]
		s.mu.RUnlock()
		if ok {
			return content, nil
		}
		content, err := Decompress(s.fsys.content(e))
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cache[h] = content
		s.mu.Unlock()
		return content, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil //nolint:errcheck // type assertion always succeeds when err is nil
}

// fileInfo implements fs.FileInfo for entries.
type fileInfo struct {
	name  string
	size  int64
	entry Entry
}

func (fi *fileInfo) Name() string { return fi.name }
func (fi *fileInfo) Size() int64  { return fi.size }
func (fi *fileInfo) Mode() fs.FileMode {
	if fi.entry.IsDir() {
		return fs.ModeDir | 0o555
	}
	return 0o444
}
func (fi *fileInfo) ModTime() time.Time { return time.Time{} }
func (fi *fileInfo) IsDir() bool        { return fi.entry.IsDir() }

// Sys returns the raw Entry.
func (fi *fileInfo) Sys() any { return fi.entry }

// openFile implements fs.File and io.ReaderAt over decompressed content.
type openFile struct {
	*bytes.Reader
	info *fileInfo
}

func (f *openFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *openFile) Close() error               { return nil }

// openDir implements fs.ReadDirFile for directory entries.
type openDir struct {
	s      *StdFS
	h      Handle
	name   string
	info   *fileInfo
	offset uint32
}

func (d *openDir) Read(_ []byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: fs.ErrInvalid}
}

func (d *openDir) Stat() (fs.FileInfo, error) { return d.info, nil }
func (d *openDir) Close() error               { return nil }

func (d *openDir) ReadDir(n int) ([]fs.DirEntry, error) {
	e := d.s.fsys.entries[d.h]
	remaining := e.DataSize - d.offset
	if n <= 0 {
		entries, err := d.s.dirEntries(e, d.offset, e.DataSize)
		if err != nil {
			return nil, err
		}
		d.offset = e.DataSize
		return entries, nil
	}
	if remaining == 0 {
		return nil, io.EOF
	}
	end := e.DataSize
	if uint64(n) < uint64(remaining) {
		end = d.offset + uint32(n) //nolint:gosec // n < remaining
	}
	entries, err := d.s.dirEntries(e, d.offset, end)
	if err != nil {
		return nil, err
	}
	d.offset = end
	return entries, nil
}
