package layout

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/erfs"
	"github.com/meigma/erfs/internal/compress"
	"github.com/meigma/erfs/internal/tree"
)

func file(name, content string) *tree.Node {
	return &tree.Node{
		Name: name,
		Kind: tree.File,
		Size: int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func dir(name string, children ...*tree.Node) *tree.Node {
	tree.SortChildren(children)
	return &tree.Node{Name: name, Kind: tree.Directory, Children: children}
}

// fixPaths fills in Path the way tree.Build does.
func fixPaths(n *tree.Node, p string) *tree.Node {
	n.Path = p
	for _, c := range n.Children {
		if p == "/" {
			fixPaths(c, "/"+c.Name)
		} else {
			fixPaths(c, p+"/"+c.Name)
		}
	}
	return n
}

func sample() *tree.Node {
	return fixPaths(dir("/",
		file("a.txt", "hello"),
		dir("dir", file("c", ""), file("b", "bee")),
		dir("z"),
	), "/")
}

func TestPlan(t *testing.T) {
	t.Parallel()

	l, err := Plan(sample(), Store(nil))
	require.NoError(t, err)

	want := []erfs.Entry{
		{NameOffset: 0, NameSize: 1, DataOffset: 1, DataSize: 3, Flags: erfs.FlagDirectory},
		{NameOffset: 1, NameSize: 5, DataOffset: 12, DataSize: 5},
		{NameOffset: 6, NameSize: 3, DataOffset: 4, DataSize: 2, Flags: erfs.FlagDirectory},
		{NameOffset: 9, NameSize: 1, Flags: erfs.FlagDirectory},
		{NameOffset: 10, NameSize: 1, DataOffset: 17, DataSize: 3},
		{NameOffset: 11, NameSize: 1, DataOffset: 20, DataSize: 0},
	}
	assert.Equal(t, want, l.Entries)
	assert.Equal(t, "/a.txtdirzbchellobee", string(l.Data))
	assert.Equal(t, uint32(12), l.NamesSize)

	var paths []string
	for _, n := range l.Nodes {
		paths = append(paths, n.Path)
	}
	assert.Equal(t, []string{"/", "/a.txt", "/dir", "/z", "/dir/b", "/dir/c"}, paths)

	fsys, err := l.FS()
	require.NoError(t, err)
	got, err := fsys.Read("/dir/b")
	require.NoError(t, err)
	assert.Equal(t, "bee", string(got))
}

func TestPlanBlocksBeforeDescent(t *testing.T) {
	t.Parallel()

	root := fixPaths(dir("/",
		dir("a", dir("a1", file("deep", "x")), file("a2", "y")),
		dir("b", file("b1", "z")),
		file("c", "w"),
	), "/")

	l, err := Plan(root, Store(nil))
	require.NoError(t, err)

	var paths []string
	for _, n := range l.Nodes {
		paths = append(paths, n.Path)
	}
	assert.Equal(t, []string{
		"/", "/a", "/b", "/c",
		"/a/a1", "/a/a2",
		"/a/a1/deep",
		"/b/b1",
	}, paths)

	for i, e := range l.Entries {
		if !e.IsDir() || e.DataSize == 0 {
			continue
		}
		assert.Greater(t, e.DataOffset, uint32(i), "children of %d must follow it", i)
	}

	// Contents follow names, in index order of the files.
	var last uint32
	for i, e := range l.Entries {
		if e.IsDir() {
			continue
		}
		assert.GreaterOrEqual(t, e.DataOffset, l.NamesSize, "entry %d", i)
		assert.GreaterOrEqual(t, e.DataOffset, last, "entry %d", i)
		last = e.DataOffset + e.DataSize
	}
}

func TestPlanEmptyRoot(t *testing.T) {
	t.Parallel()

	l, err := Plan(fixPaths(dir("/"), "/"), Store(nil))
	require.NoError(t, err)
	assert.Equal(t, []erfs.Entry{{NameSize: 1, Flags: erfs.FlagDirectory}}, l.Entries)
	assert.Equal(t, "/", string(l.Data))
}

func TestPlanCompressed(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("a", 2000)
	root := fixPaths(dir("/", file("notes.txt", text), file("logo.png", text)), "/")

	l, err := Plan(root, Store(compress.New()))
	require.NoError(t, err)

	fsys, err := l.FS()
	require.NoError(t, err)

	h, _, err := fsys.Open("/notes.txt")
	require.NoError(t, err)
	flags, err := fsys.EntryFlags(h)
	require.NoError(t, err)
	assert.Equal(t, erfs.FlagGzipped, flags)
	got, err := fsys.Contents(h)
	require.NoError(t, err)
	assert.Equal(t, text, string(got))

	h, size, err := fsys.Open("/logo.png")
	require.NoError(t, err)
	flags, err = fsys.EntryFlags(h)
	require.NoError(t, err)
	assert.Zero(t, flags)
	assert.Equal(t, uint32(2000), size)
}

func TestPlanDeterministic(t *testing.T) {
	t.Parallel()

	a, err := Plan(sample(), Store(compress.New()))
	require.NoError(t, err)
	b, err := Plan(sample(), Store(compress.New()))
	require.NoError(t, err)
	assert.Equal(t, a.Entries, b.Entries)
	assert.Equal(t, a.Data, b.Data)
}

func TestPlanErrors(t *testing.T) {
	t.Parallel()

	_, err := Plan(nil, Store(nil))
	require.ErrorIs(t, err, erfs.ErrInvalidInput)

	_, err = Plan(file("x", ""), Store(nil))
	require.ErrorIs(t, err, erfs.ErrInvalidInput)

	_, err = Plan(sample(), nil)
	require.ErrorIs(t, err, erfs.ErrInvalidInput)

	boom := errors.New("boom")
	_, err = Plan(sample(), func(*tree.Node) ([]byte, bool, error) { return nil, false, boom })
	require.ErrorIs(t, err, boom)
}
