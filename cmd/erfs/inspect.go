package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/meigma/erfs"
	"github.com/meigma/erfs/manifest"
)

func loadArtifact(path string, logger *slog.Logger) (*erfs.FS, error) {
	data, err := os.ReadFile(path) //nolint:gosec // the path is chosen by the user
	if err != nil {
		return nil, err
	}
	fsys, err := erfs.Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.Debug("loaded artifact", "path", path, "entries", fsys.Len(), "data_size", fsys.DataSize())
	return fsys, nil
}

func runLs(_ context.Context, args []string, stdout, stderr io.Writer) error {
	var debug bool
	fs := newFlagSet("ls", "<artifact.bin>", stderr, &debug)
	pos, err := parse(fs, args, 1)
	if err != nil {
		return err
	}
	fsys, err := loadArtifact(pos[0], newLogger(stderr, debug))
	if err != nil {
		return err
	}

	for path, h := range fsys.Paths() {
		e, err := fsys.Entry(h)
		if err != nil {
			return err
		}
		size := int64(e.DataSize)
		if !e.IsDir() {
			if size, err = fsys.ContentSize(h); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		}
		fmt.Fprintf(stdout, "%-9s %10d %s\n", e.Flags, size, path)
	}
	return nil
}

func runCat(_ context.Context, args []string, stdout, stderr io.Writer) error {
	var debug, raw bool
	fs := newFlagSet("cat", "[--raw] <artifact.bin> <path>", stderr, &debug)
	fs.BoolVar(&raw, "raw", false, "print gzipped content as stored")
	pos, err := parse(fs, args, 2)
	if err != nil {
		return err
	}
	logger := newLogger(stderr, debug)
	fsys, err := loadArtifact(pos[0], logger)
	if err != nil {
		return err
	}

	h, size, err := fsys.Open(pos[1])
	if err != nil {
		return err
	}
	logger.Debug("opened entry", "path", pos[1], "handle", h, "size", size)
	var content []byte
	if raw {
		content, err = fsys.ReadFile(h)
	} else {
		content, err = fsys.Contents(h)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", pos[1], err)
	}
	_, err = stdout.Write(content)
	return err
}

func runExport(_ context.Context, args []string, stdout, stderr io.Writer) error {
	var debug, raw, overwrite bool
	fs := newFlagSet("export", "[--raw] [--overwrite] <artifact.bin> <dir>", stderr, &debug)
	fs.BoolVar(&raw, "raw", false, "write gzipped content as stored")
	fs.BoolVar(&overwrite, "overwrite", false, "replace existing files")
	pos, err := parse(fs, args, 2)
	if err != nil {
		return err
	}
	logger := newLogger(stderr, debug)
	fsys, err := loadArtifact(pos[0], logger)
	if err != nil {
		return err
	}

	stats, err := fsys.Export(pos[1],
		erfs.ExportRaw(raw),
		erfs.ExportWithOverwrite(overwrite),
		erfs.ExportWithLogger(logger),
	)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d directories, %d files, %d bytes written, %d skipped\n",
		stats.Dirs, stats.Files, stats.Bytes, stats.Skipped)
	return nil
}

func runVerify(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		debug        bool
		manifestPath string
		concurrency  int
	)
	fs := newFlagSet("verify", "[--manifest <file>] <artifact.bin>", stderr, &debug)
	fs.StringVarP(&manifestPath, "manifest", "m", "", "compare against an erfs_<id>.manifest sidecar")
	fs.IntVar(&concurrency, "concurrency", 0, "files checked in parallel (default GOMAXPROCS)")
	pos, err := parse(fs, args, 1)
	if err != nil {
		return err
	}
	logger := newLogger(stderr, debug)

	fsys, err := loadArtifact(pos[0], logger)
	if err != nil {
		return err
	}
	opts := []erfs.VerifyOption{
		erfs.VerifyWithConcurrency(concurrency),
		erfs.VerifyWithLogger(logger),
	}
	if manifestPath != "" {
		m, err := loadManifest(manifestPath, logger)
		if err != nil {
			return err
		}
		opts = append(opts, erfs.VerifyWithManifest(m))
	}

	if err := erfs.Verify(ctx, fsys, opts...); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: ok (%d entries)\n", pos[0], fsys.Len())
	return nil
}

func loadManifest(path string, logger *slog.Logger) (*manifest.Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // the path is chosen by the user
	if err != nil {
		return nil, err
	}
	m, err := manifest.Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.Debug("loaded manifest", "path", path, "id", m.ID, "files", len(m.Files), "artifact_digest", m.ArtifactDigest)
	return m, nil
}
