// Package tree reads a source directory into an in-memory tree of names.
//
// File contents are not read while building; every file node carries an
// OpenFunc that the layout stage calls when it needs the bytes.
package tree

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"

	"github.com/meigma/erfs"
	"github.com/meigma/erfs/internal/sizing"
)

// DefaultMaxSize is the default ceiling on the total of all names and
// contents.
const DefaultMaxSize = 100 << 20

// RootName is the name of the root entry.
const RootName = "/"

var (
	// ErrSourceTooLarge is returned when names and contents together exceed
	// the size ceiling.
	ErrSourceTooLarge = errors.New("erfs: source too large")

	// ErrSourceChanged is returned when a file's size differs between the
	// directory scan and the content read.
	ErrSourceChanged = errors.New("erfs: source changed during generation")
)

// Kind distinguishes directories from files.
type Kind uint8

const (
	// File is a regular file.
	File Kind = iota
	// Directory is a directory.
	Directory
)

// OpenFunc opens the content of a file node.
type OpenFunc func() (io.ReadCloser, error)

// Node is one file or directory of the source tree.
type Node struct {
	// Name is the base name; the root is named RootName.
	Name string

	// Path is the absolute slash-separated path inside the tree.
	Path string

	Kind Kind

	// Size is the content size of a file as seen during the scan.
	Size int64

	// Children are sorted by byte-wise name comparison.
	Children []*Node

	// Open returns the file content. It is nil for directories.
	Open OpenFunc
}

// IsDir reports whether n is a directory.
func (n *Node) IsDir() bool {
	return n.Kind == Directory
}

// ReadContent reads the file content and checks it against the scanned size.
func (n *Node) ReadContent() ([]byte, error) {
	if n.IsDir() || n.Open == nil {
		return nil, fmt.Errorf("%s: %w", n.Path, erfs.ErrNotFile)
	}
	rc, err := n.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	// Read one byte past the scanned size so growth is detected.
	limit := uint64(n.Size) + 1 //nolint:gosec // sizes are non-negative
	content, err := sizing.ReadAllWithLimit(rc, limit, ErrSourceChanged)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", n.Path, err)
	}
	if int64(len(content)) != n.Size {
		return nil, fmt.Errorf("%w: %s", ErrSourceChanged, n.Path)
	}
	return content, nil
}

// Count returns the number of directories (root included) and files below n.
func (n *Node) Count() (dirs, files int) {
	if !n.IsDir() {
		return 0, 1
	}
	dirs = 1
	for _, c := range n.Children {
		d, f := c.Count()
		dirs += d
		files += f
	}
	return dirs, files
}

// SortChildren orders children by byte-wise name comparison.
func SortChildren(children []*Node) {
	slices.SortFunc(children, func(a, b *Node) int {
		return strings.Compare(a.Name, b.Name)
	})
}

// Option configures Build.
type Option func(*builder)

// WithMaxSize sets the ceiling on the total size of all names and contents.
// Zero means DefaultMaxSize.
func WithMaxSize(n uint64) Option {
	return func(b *builder) {
		b.maxSize = n
	}
}

// WithLogger sets the logger for skipped entries.
func WithLogger(logger *slog.Logger) Option {
	return func(b *builder) {
		b.logger = logger
	}
}

type builder struct {
	fsys    fs.FS
	maxSize uint64
	total   uint64
	logger  *slog.Logger
}

// log returns the logger, falling back to a discard logger if nil.
func (b *builder) log() *slog.Logger {
	if b.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.logger
}

// Build scans name inside fsys. A directory becomes the root; a regular file
// becomes the single child of a synthetic root. Symbolic links and other
// non-regular entries below the source are skipped.
//
// A missing source, or one that is neither a directory nor a regular file,
// fails with erfs.ErrNotFound.
func Build(ctx context.Context, fsys fs.FS, name string, opts ...Option) (*Node, error) {
	b := &builder{fsys: fsys}
	for _, opt := range opts {
		opt(b)
	}
	if b.maxSize == 0 {
		b.maxSize = DefaultMaxSize
	}
	if b.maxSize > sizing.MaxUint32 {
		b.maxSize = sizing.MaxUint32
	}

	info, err := fs.Stat(fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", erfs.ErrNotFound, name)
		}
		return nil, err
	}

	root := &Node{Name: RootName, Path: RootName, Kind: Directory}
	if err := b.add(int64(len(RootName)), RootName); err != nil {
		return nil, err
	}

	switch {
	case info.IsDir():
		if err := b.scanDir(ctx, root, name); err != nil {
			return nil, err
		}
	case info.Mode().IsRegular():
		child, err := b.fileNode(root, name, info)
		if err != nil {
			return nil, err
		}
		root.Children = []*Node{child}
	default:
		return nil, fmt.Errorf("%w: %s is not a file or directory", erfs.ErrNotFound, name)
	}

	dirs, files := root.Count()
	b.log().Debug("scanned source", "source", name, "dirs", dirs, "files", files, "bytes", b.total)
	return root, nil
}

func (b *builder) scanDir(ctx context.Context, dir *Node, fsPath string) error {
	entries, err := fs.ReadDir(b.fsys, fsPath)
	if err != nil {
		return err
	}

	children := make([]*Node, 0, len(entries))
	for _, d := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		childPath := path.Join(fsPath, d.Name())
		mode := d.Type()
		switch {
		case mode.IsDir():
			child := &Node{Name: d.Name(), Path: joinTree(dir.Path, d.Name()), Kind: Directory}
			if err := b.add(int64(len(child.Name)), child.Path); err != nil {
				return err
			}
			if err := b.scanDir(ctx, child, childPath); err != nil {
				return err
			}
			children = append(children, child)
		case mode.IsRegular():
			info, err := d.Info()
			if err != nil {
				return err
			}
			// The entry may have been replaced since ReadDir.
			if !info.Mode().IsRegular() {
				b.log().Debug("skipped non-regular file", "path", childPath, "mode", info.Mode().String())
				continue
			}
			child, err := b.fileNode(dir, childPath, info)
			if err != nil {
				return err
			}
			children = append(children, child)
		default:
			b.log().Debug("skipped non-regular file", "path", childPath, "mode", mode.String())
		}
	}

	SortChildren(children)
	dir.Children = children
	return nil
}

func (b *builder) fileNode(parent *Node, fsPath string, info fs.FileInfo) (*Node, error) {
	name := path.Base(fsPath)
	treePath := joinTree(parent.Path, name)
	if info.Size() < 0 {
		return nil, fmt.Errorf("negative file size: %s", treePath)
	}
	if err := b.add(int64(len(name)), treePath); err != nil {
		return nil, err
	}
	if err := b.add(info.Size(), treePath); err != nil {
		return nil, err
	}

	fsys := b.fsys
	return &Node{
		Name: name,
		Path: treePath,
		Kind: File,
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) {
			return fsys.Open(fsPath)
		},
	}, nil
}

// add accounts n bytes towards the size ceiling.
func (b *builder) add(n int64, at string) error {
	if n < 0 || uint64(n) > b.maxSize-b.total {
		return fmt.Errorf("%w: limit %d bytes exceeded at %s", ErrSourceTooLarge, b.maxSize, at)
	}
	b.total += uint64(n)
	return nil
}

func joinTree(dir, name string) string {
	if dir == RootName {
		return RootName + name
	}
	return dir + "/" + name
}
