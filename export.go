package erfs

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/meigma/erfs/internal/filesink"
)

// ExportOption configures Export.
type ExportOption func(*exportConfig)

type exportConfig struct {
	overwrite bool
	raw       bool
	logger    *slog.Logger
}

// ExportWithOverwrite allows overwriting existing files.
// By default, existing files are skipped.
func ExportWithOverwrite(overwrite bool) ExportOption {
	return func(c *exportConfig) {
		c.overwrite = overwrite
	}
}

// ExportRaw writes gzipped files as stored instead of decompressing them.
func ExportRaw(raw bool) ExportOption {
	return func(c *exportConfig) {
		c.raw = raw
	}
}

// ExportWithLogger sets a logger for per-file diagnostics.
func ExportWithLogger(logger *slog.Logger) ExportOption {
	return func(c *exportConfig) {
		c.logger = logger
	}
}

// ExportStats reports the outcome of Export.
type ExportStats struct {
	Dirs    int
	Files   int
	Skipped int
	Bytes   int64
}

// Export writes the tree to destDir, creating it if needed.
//
// Files are written atomically using temp files and renames. Gzipped files are
// decompressed unless ExportRaw is set. Every entry name is checked before
// anything is written: a name that is empty, "." or "..", or that contains a
// slash fails with a *fs.PathError wrapping fs.ErrInvalid.
func (f *FS) Export(destDir string, opts ...ExportOption) (ExportStats, error) {
	var stats ExportStats
	if destDir == "" {
		return stats, ErrInvalidInput
	}

	cfg := exportConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	log := cfg.logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	if err := f.checkExportPaths(); err != nil {
		return stats, err
	}

	sink := filesink.New(destDir, filesink.WithOverwrite(cfg.overwrite))
	for path, h := range f.Paths() {
		rel := strings.TrimPrefix(path, "/")
		e := f.entries[h]
		if e.IsDir() {
			if err := os.MkdirAll(sink.Path(rel), 0o755); err != nil { //nolint:gosec // exported trees are world-readable
				return stats, fmt.Errorf("export %s: %w", path, err)
			}
			stats.Dirs++
			continue
		}

		if !sink.ShouldWrite(rel) {
			log.Debug("skipping existing file", "path", path)
			stats.Skipped++
			continue
		}

		content := f.content(e)
		if e.IsGzipped() && !cfg.raw {
			var err error
			content, err = Decompress(content)
			if err != nil {
				return stats, fmt.Errorf("export %s: %w", path, err)
			}
		}
		if err := sink.WriteFile(rel, content); err != nil {
			return stats, fmt.Errorf("export %s: %w", path, err)
		}
		log.Debug("exported file", "path", path, "size", len(content))
		stats.Files++
		stats.Bytes += int64(len(content))
	}
	return stats, nil
}

// checkExportPaths rejects entry names that would resolve outside the
// destination directory or into an unexpected subdirectory.
func (f *FS) checkExportPaths() error {
	for path, h := range f.Paths() {
		if h == RootHandle {
			continue
		}
		name := string(f.name(f.entries[h]))
		if name == "" || name == "." || name == ".." || strings.ContainsRune(name, '/') ||
			!fs.ValidPath(strings.TrimPrefix(path, "/")) {
			return &fs.PathError{Op: "export", Path: path, Err: fs.ErrInvalid}
		}
	}
	return nil
}
