// Package gen builds embedded resource filesystems from a source tree and
// renders them as C source, Go source or a binary artifact.
//
// Generation is all-or-nothing: every output file is rendered in memory and
// staged next to its destination, and only when all of them were written are
// they renamed into place.
//
//	res, err := gen.Generate(ctx, "web/dist", "static", "internal/assets",
//	    gen.WithTargets(gen.TargetGo),
//	    gen.WithCompression(true),
//	)
//
// From a go:generate directive the erfs command does the same:
//
//	//go:generate go run github.com/meigma/erfs/cmd/erfs gen --gzip --target go ../../web/dist static .
package gen

import (
	"context"
	"errors"
	"fmt"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/erfs"
	"github.com/meigma/erfs/internal/filesink"
	"github.com/meigma/erfs/internal/layout"
	"github.com/meigma/erfs/internal/render"
	"github.com/meigma/erfs/internal/sizing"
	"github.com/meigma/erfs/internal/tree"
	"github.com/meigma/erfs/manifest"
)

var idPattern = regexp.MustCompile(`^[a-z][a-z_0-9]*$`)

// ValidID reports whether id can name generated files and accessors.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Artifact is a built filesystem held in memory.
type Artifact struct {
	// FS reads the artifact.
	FS *erfs.FS

	// Layout is the planned entry table and data blob with the source node
	// of every entry.
	Layout *layout.Layout

	// Manifest describes every file. It is nil unless WithManifest is set.
	Manifest *manifest.Manifest

	// Gzipped counts the files stored compressed.
	Gzipped int
}

// Result describes a completed Generate call.
type Result struct {
	*Artifact

	// Files are the paths written, in target order.
	Files []string
}

// Build reads source, a directory or a single regular file, and builds the
// artifact in memory.
func Build(ctx context.Context, source string, opts ...Option) (*Artifact, error) {
	if source == "" {
		return nil, erfs.ErrInvalidInput
	}
	cfg := newConfig(opts)
	if err := cfg.validateSize(); err != nil {
		return nil, err
	}
	return cfg.build(ctx, source)
}

// BuildFS is like Build for a tree inside fsys. name is "." or a slash
// separated path to a directory or regular file.
func BuildFS(ctx context.Context, fsys fs.FS, name string, opts ...Option) (*Artifact, error) {
	if fsys == nil || name == "" {
		return nil, erfs.ErrInvalidInput
	}
	cfg := newConfig(opts)
	if err := cfg.validateSize(); err != nil {
		return nil, err
	}
	return cfg.buildFS(ctx, fsys, name)
}

// Generate builds source and writes the requested targets for id into
// destDir, which must already exist.
//
// On failure nothing is left in destDir.
func Generate(ctx context.Context, source, id, destDir string, opts ...Option) (*Result, error) {
	if source == "" || destDir == "" {
		return nil, erfs.ErrInvalidInput
	}
	if !ValidID(id) {
		return nil, fmt.Errorf("%w: %q must match [a-z][a-z_0-9]*", ErrInvalidID, id)
	}
	cfg := newConfig(opts)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if info, err := os.Stat(destDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrTargetNotExist, destDir)
	}

	start := time.Now()
	cfg.log().Info("generating", "source", source, "id", id, "dest", destDir, "targets", cfg.targets.String())

	art, err := cfg.build(ctx, source)
	if err != nil {
		return nil, err
	}

	units, err := cfg.render(id, art)
	if err != nil {
		return nil, err
	}

	stage := filesink.NewStage(filesink.New(destDir, filesink.WithOverwrite(true)))
	for i, u := range units {
		if err := ctx.Err(); err != nil {
			stage.Discard()
			return nil, err
		}
		cfg.report(ProgressEvent{Stage: StageWriting, Path: u.Name, FilesDone: i, FilesTotal: len(units)})
		if err := stage.Add(u.Name, u.Data); err != nil {
			stage.Discard()
			return nil, fmt.Errorf("stage %s: %w", u.Name, err)
		}
	}
	if err := stage.Commit(); err != nil {
		return nil, fmt.Errorf("write output: %w", err)
	}

	cfg.log().Info("generated",
		"id", id,
		"entries", art.FS.Len(),
		"data_size", art.FS.DataSize(),
		"gzipped", art.Gzipped,
		"files", len(units),
		"elapsed", time.Since(start),
	)
	return &Result{Artifact: art, Files: stage.Paths()}, nil
}

func (cfg *config) validate() error {
	if err := cfg.targets.validate(); err != nil {
		return err
	}
	if cfg.pkg != "" && (!token.IsIdentifier(cfg.pkg) || cfg.pkg == "_") {
		return fmt.Errorf("%w: invalid package name %q", ErrInvalidOption, cfg.pkg)
	}
	return cfg.validateSize()
}

func (cfg *config) validateSize() error {
	if cfg.maxSize > sizing.MaxUint32 {
		return fmt.Errorf("%w: max size %d exceeds %d", ErrInvalidOption, cfg.maxSize, uint64(sizing.MaxUint32))
	}
	return nil
}

// build opens source confined to its directory and builds it.
func (cfg *config) build(ctx context.Context, source string) (*Artifact, error) {
	info, err := os.Stat(source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", erfs.ErrNotFound, source)
		}
		return nil, err
	}

	dir, name := source, "."
	switch {
	case info.IsDir():
	case info.Mode().IsRegular():
		dir, name = filepath.Dir(source), filepath.Base(source)
	default:
		return nil, fmt.Errorf("%w: %s is not a file or directory", erfs.ErrNotFound, source)
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	defer root.Close()

	return cfg.buildFS(ctx, root.FS(), name)
}

func (cfg *config) buildFS(ctx context.Context, fsys fs.FS, name string) (*Artifact, error) {
	cfg.report(ProgressEvent{Stage: StageScanning, Path: name})
	node, err := tree.Build(ctx, fsys, name,
		tree.WithMaxSize(cfg.maxSize),
		tree.WithLogger(cfg.logger),
	)
	if err != nil {
		return nil, err
	}

	policy := cfg.policy()
	store := layout.Store(policy)
	var digests map[*tree.Node]digest.Digest
	if cfg.manifest {
		digests = make(map[*tree.Node]digest.Digest)
	}
	_, filesTotal := node.Count()
	bytesTotal := fileBytes(node)
	var filesDone int
	var bytesDone uint64
	l, err := layout.Plan(node, func(n *tree.Node) ([]byte, bool, error) {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		filesDone++
		bytesDone += uint64(n.Size) //nolint:gosec // sizes are non-negative
		cfg.report(ProgressEvent{
			Stage:      StageStoring,
			Path:       n.Path,
			BytesDone:  bytesDone,
			BytesTotal: bytesTotal,
			FilesDone:  filesDone,
			FilesTotal: filesTotal,
		})
		if digests == nil {
			return store(n)
		}
		content, err := n.ReadContent()
		if err != nil {
			return nil, false, err
		}
		digests[n] = digest.FromBytes(content)
		stored, gzipped := policy.Apply(n.Path, content)
		return stored, gzipped, nil
	})
	if err != nil {
		return nil, err
	}

	built, err := l.FS()
	if err != nil {
		return nil, fmt.Errorf("built artifact is invalid: %w", err)
	}

	art := &Artifact{FS: built, Layout: l}
	for _, e := range l.Entries {
		if e.IsGzipped() {
			art.Gzipped++
		}
	}
	if cfg.manifest {
		art.Manifest, err = buildManifest(built, l, digests)
		if err != nil {
			return nil, err
		}
	}

	cfg.log().Debug("built artifact", "entries", len(l.Entries), "names_size", l.NamesSize, "data_size", len(l.Data), "gzipped", art.Gzipped)
	return art, nil
}

// fileBytes sums the sizes of the files below n.
func fileBytes(n *tree.Node) uint64 {
	if !n.IsDir() {
		return uint64(n.Size) //nolint:gosec // sizes are non-negative
	}
	var total uint64
	for _, c := range n.Children {
		total += fileBytes(c)
	}
	return total
}

func buildManifest(fsys *erfs.FS, l *layout.Layout, digests map[*tree.Node]digest.Digest) (*manifest.Manifest, error) {
	b, err := fsys.MarshalBinary()
	if err != nil {
		return nil, err
	}
	m := &manifest.Manifest{
		Version:        manifest.Version,
		ArtifactDigest: digest.FromBytes(b),
		Files:          []manifest.File{},
	}
	for i, n := range l.Nodes {
		if n.IsDir() {
			continue
		}
		e := l.Entries[i]
		idx := uint32(i)       //nolint:gosec // the layout checked the entry count
		size := uint32(n.Size) //nolint:gosec // the tree checked the size ceiling
		m.Files = append(m.Files, manifest.File{
			Path:         n.Path,
			Index:        idx,
			OriginalSize: size,
			StoredSize:   e.DataSize,
			Gzipped:      e.IsGzipped(),
			Digest:       digests[n],
		})
	}
	return m, nil
}

func (cfg *config) render(id string, art *Artifact) ([]render.Unit, error) {
	in := render.Input{ID: id, Package: cfg.pkg, Layout: art.Layout, FS: art.FS}

	var units []render.Unit
	for _, r := range []struct {
		t  Target
		fn func(render.Input) ([]render.Unit, error)
	}{
		{TargetC, render.C},
		{TargetGo, render.Go},
		{TargetBin, render.Bin},
	} {
		if !cfg.targets.Has(r.t) {
			continue
		}
		cfg.report(ProgressEvent{Stage: StageRendering, Path: r.t.String()})
		out, err := r.fn(in)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", r.t, err)
		}
		units = append(units, out...)
	}

	if art.Manifest != nil {
		art.Manifest.ID = id
		b, err := art.Manifest.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("encode manifest: %w", err)
		}
		units = append(units, render.Unit{Name: "erfs_" + id + ".manifest", Data: b})
	}
	return units, nil
}
