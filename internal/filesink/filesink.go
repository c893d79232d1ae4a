// Package filesink writes files atomically.
//
// Content goes to a temporary file in the destination directory and is
// renamed to its final path on Commit, so partially written files are never
// visible at the final path. A Stage groups several writes so that either all
// of them become visible or none do.
package filesink

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// tempPattern names temporary files. The leading dot hides them from most
// directory listings.
const tempPattern = ".erfs-*"

// Sink writes files below a destination directory.
type Sink struct {
	destDir   string
	overwrite bool
	mode      fs.FileMode
}

// Option configures a Sink.
type Option func(*Sink)

// WithOverwrite allows overwriting existing files.
// By default, existing files are skipped.
func WithOverwrite(overwrite bool) Option {
	return func(s *Sink) {
		s.overwrite = overwrite
	}
}

// WithMode sets the permission bits of written files. The default is 0o644.
func WithMode(mode fs.FileMode) Option {
	return func(s *Sink) {
		s.mode = mode.Perm()
	}
}

// New creates a Sink that writes to destDir. Parent directories are created
// as needed.
func New(destDir string, opts ...Option) *Sink {
	s := &Sink{
		destDir: destDir,
		mode:    0o644,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the destination path of the slash-separated name rel.
func (s *Sink) Path(rel string) string {
	return filepath.Join(s.destDir, filepath.FromSlash(rel))
}

// ShouldWrite returns false if the file already exists and overwrite is disabled.
func (s *Sink) ShouldWrite(rel string) bool {
	if s.overwrite {
		return true
	}
	_, err := os.Lstat(s.Path(rel))
	return errors.Is(err, fs.ErrNotExist)
}

// Writer returns a Committer that writes to a temp file and renames on Commit.
func (s *Sink) Writer(rel string) (*Committer, error) {
	destPath := s.Path(rel)

	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // generated sources are world-readable
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	return &Committer{
		destPath:  destPath,
		tempFile:  tempFile,
		mode:      s.mode,
		overwrite: s.overwrite,
	}, nil
}

// WriteFile writes data to rel atomically.
func (s *Sink) WriteFile(rel string, data []byte) error {
	c, err := s.Writer(rel)
	if err != nil {
		return err
	}
	if _, err := c.Write(data); err != nil {
		_ = c.Discard() //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return c.Commit()
}

// Committer writes to a temp file and renames it on Commit.
type Committer struct {
	destPath  string
	tempFile  *os.File
	mode      fs.FileMode
	overwrite bool
	closed    bool
}

// Write implements io.Writer.
func (c *Committer) Write(p []byte) (int, error) {
	return c.tempFile.Write(p)
}

// Close closes the temp file without renaming it. Commit calls it if needed.
func (c *Committer) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.tempFile.Close()
}

// Commit closes the temp file, applies the file mode and renames it to the
// final path.
func (c *Committer) Commit() error {
	tempPath := c.tempFile.Name()

	if err := c.Close(); err != nil {
		_ = os.Remove(tempPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Chmod(tempPath, c.mode); err != nil {
		_ = os.Remove(tempPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("chmod: %w", err)
	}

	// Refuse to replace a directory with a file.
	if c.overwrite {
		if info, err := os.Stat(c.destPath); err == nil && info.IsDir() {
			_ = os.Remove(tempPath) //nolint:errcheck // best-effort cleanup
			return &fs.PathError{Op: "commit", Path: c.destPath, Err: errors.New("is a directory")}
		}
	}

	if err := os.Rename(tempPath, c.destPath); err != nil {
		_ = os.Remove(tempPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("rename to %s: %w", c.destPath, err)
	}

	return nil
}

// Discard closes and removes the temp file.
func (c *Committer) Discard() error {
	_ = c.Close() //nolint:errcheck // we're cleaning up
	return os.Remove(c.tempFile.Name())
}

// Stage collects writes and publishes them together.
type Stage struct {
	sink    *Sink
	pending []*Committer
	written []string
}

// NewStage creates a Stage writing through s.
func NewStage(s *Sink) *Stage {
	return &Stage{sink: s}
}

// Add writes data to a temp file for rel. Nothing is visible at the final
// path until Commit.
func (st *Stage) Add(rel string, data []byte) error {
	c, err := st.sink.Writer(rel)
	if err != nil {
		return err
	}
	if _, err := c.Write(data); err != nil {
		_ = c.Discard() //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("write %s: %w", rel, err)
	}
	if err := c.Close(); err != nil {
		_ = c.Discard() //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("close %s: %w", rel, err)
	}
	st.pending = append(st.pending, c)
	return nil
}

// Commit renames every staged file into place. If a rename fails, the files
// already renamed by this call are removed and the remaining temp files are
// discarded.
func (st *Stage) Commit() error {
	for i, c := range st.pending {
		if err := c.Commit(); err != nil {
			for _, rest := range st.pending[i+1:] {
				_ = rest.Discard() //nolint:errcheck // best-effort cleanup
			}
			for _, path := range st.written {
				_ = os.Remove(path) //nolint:errcheck // best-effort cleanup
			}
			st.pending = nil
			st.written = nil
			return err
		}
		st.written = append(st.written, c.destPath)
	}
	st.pending = nil
	return nil
}

// Discard removes every staged temp file.
func (st *Stage) Discard() {
	for _, c := range st.pending {
		_ = c.Discard() //nolint:errcheck // best-effort cleanup
	}
	st.pending = nil
}

// Paths returns the final paths written by the last successful Commit.
func (st *Stage) Paths() []string {
	return st.written
}
