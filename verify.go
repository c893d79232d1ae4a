package erfs

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/erfs/manifest"
)

// VerifyOption configures Verify.
type VerifyOption func(*verifyConfig)

type verifyConfig struct {
	manifest    *manifest.Manifest
	concurrency int
	logger      *slog.Logger
}

// VerifyWithManifest compares the filesystem against m: the artifact digest,
// the set of files and every file's sizes, flags and content digest.
func VerifyWithManifest(m *manifest.Manifest) VerifyOption {
	return func(c *verifyConfig) {
		c.manifest = m
	}
}

// VerifyWithConcurrency limits the number of files checked at once.
// Values <= 0 use GOMAXPROCS.
func VerifyWithConcurrency(n int) VerifyOption {
	return func(c *verifyConfig) {
		c.concurrency = n
	}
}

// VerifyWithLogger sets a logger for progress diagnostics.
func VerifyWithLogger(logger *slog.Logger) VerifyOption {
	return func(c *verifyConfig) {
		c.logger = logger
	}
}

// Verify checks that fsys is internally consistent. It walks every directory
// through ReadDir and checks that children follow their parent and are sorted
// by name, then decompresses every gzipped file. With VerifyWithManifest it
// also compares digests and sizes.
//
// File checks run concurrently. The first failure is returned; structural
// problems wrap ErrCorrupt and manifest differences wrap ErrDigestMismatch.
func Verify(ctx context.Context, fsys *FS, opts ...VerifyOption) error {
	if fsys == nil {
		return ErrInvalidInput
	}
	cfg := verifyConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.concurrency <= 0 {
		cfg.concurrency = runtime.GOMAXPROCS(0)
	}
	log := cfg.logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	if err := verifyStructure(fsys); err != nil {
		return err
	}

	var expected map[uint32]manifest.File
	if m := cfg.manifest; m != nil {
		if err := verifyArtifactDigest(fsys, m); err != nil {
			return err
		}
		expected = m.ByIndex()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.concurrency)

	files := 0
	var missing error
	for path, h := range fsys.Paths() {
		if fsys.entries[h].IsDir() {
			continue
		}
		files++

		var want *manifest.File
		if expected != nil {
			mf, ok := expected[uint32(h)]
			if !ok {
				missing = fmt.Errorf("%w: %s: not in manifest", ErrDigestMismatch, path)
				break
			}
			want = &mf
		}

		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return verifyFile(fsys, path, h, want)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if missing != nil {
		return missing
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if expected != nil && len(expected) != files {
		return fmt.Errorf("%w: manifest lists %d files, artifact has %d", ErrDigestMismatch, len(expected), files)
	}
	log.Debug("verified artifact", "entries", fsys.Len(), "files", files, "manifest", expected != nil)
	return nil
}

func verifyStructure(fsys *FS) error {
	for ev := range fsys.Events(RootHandle) {
		if ev.Kind != TravelEnter {
			continue
		}
		dir := fsys.entries[ev.Handle]
		var prev []byte
		for i := range dir.DataSize {
			child, err := fsys.ReadDir(ev.Handle, i)
			if err != nil {
				return fmt.Errorf("%w: entry %d: %w", ErrCorrupt, ev.Handle, err)
			}
			if child <= ev.Handle {
				return fmt.Errorf("%w: entry %d: child %d precedes its parent", ErrCorrupt, ev.Handle, child)
			}
			name, err := fsys.EntryName(child)
			if err != nil {
				return fmt.Errorf("%w: entry %d: %w", ErrCorrupt, child, err)
			}
			if i > 0 && bytes.Compare(prev, name) >= 0 {
				return fmt.Errorf("%w: entry %d: children not sorted", ErrCorrupt, ev.Handle)
			}
			prev = name
		}
	}
	return nil
}

func verifyArtifactDigest(fsys *FS, m *manifest.Manifest) error {
	b, err := fsys.MarshalBinary()
	if err != nil {
		return err
	}
	if got := digest.FromBytes(b); got != m.ArtifactDigest {
		return fmt.Errorf("%w: artifact digest %s, manifest has %s", ErrDigestMismatch, got, m.ArtifactDigest)
	}
	return nil
}

func verifyFile(fsys *FS, path string, h Handle, want *manifest.File) error {
	e := fsys.entries[h]
	content, err := fsys.Contents(h)
	if err != nil {
		return fmt.Errorf("verify %s: %w", path, err)
	}
	if want == nil {
		return nil
	}

	switch {
	case want.Path != path:
		return fmt.Errorf("%w: entry %d: path %s, manifest has %s", ErrDigestMismatch, h, path, want.Path)
	case want.Gzipped != e.IsGzipped():
		return fmt.Errorf("%w: %s: gzipped flag differs", ErrDigestMismatch, path)
	case want.StoredSize != e.DataSize:
		return fmt.Errorf("%w: %s: stored size %d, manifest has %d", ErrDigestMismatch, path, e.DataSize, want.StoredSize)
	case uint64(want.OriginalSize) != uint64(len(content)):
		return fmt.Errorf("%w: %s: size %d, manifest has %d", ErrDigestMismatch, path, len(content), want.OriginalSize)
	}
	if err := want.Digest.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDigestMismatch, path, err)
	}
	if got := want.Digest.Algorithm().FromBytes(content); got != want.Digest {
		return fmt.Errorf("%w: %s: digest %s, manifest has %s", ErrDigestMismatch, path, got, want.Digest)
	}
	return nil
}
