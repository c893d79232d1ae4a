package erfs

import (
	"bytes"
	"slices"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

// tnode describes a tree for buildTestFS.
type tnode struct {
	name     string
	content  string
	gzip     bool
	dir      bool
	children []tnode
}

func tdir(name string, children ...tnode) tnode {
	return tnode{name: name, dir: true, children: children}
}

func tfile(name, content string) tnode {
	return tnode{name: name, content: content}
}

func tgzip(name, content string) tnode {
	return tnode{name: name, content: content, gzip: true}
}

// buildTestFS lays out a tree with the generator's rules: every directory's
// children get one contiguous block of indices, names first, then contents.
func buildTestFS(t *testing.T, children ...tnode) *FS {
	t.Helper()

	root := tdir("/", children...)
	order := []*tnode{&root}
	start := map[*tnode]int{}
	var assign func(n *tnode)
	assign = func(n *tnode) {
		slices.SortFunc(n.children, func(a, b tnode) int { return strings.Compare(a.name, b.name) })
		start[n] = len(order)
		for i := range n.children {
			order = append(order, &n.children[i])
		}
		for i := range n.children {
			if n.children[i].dir {
				assign(&n.children[i])
			}
		}
	}
	assign(&root)

	entries := make([]Entry, len(order))
	var data []byte
	for i, n := range order {
		entries[i].NameOffset = uint32(len(data)) //nolint:gosec // test sizes are small
		entries[i].NameSize = uint32(len(n.name)) //nolint:gosec // test sizes are small
		data = append(data, n.name...)
	}
	for i, n := range order {
		if n.dir {
			entries[i].Flags = FlagDirectory
			if len(n.children) > 0 {
				entries[i].DataOffset = uint32(start[n])        //nolint:gosec // test sizes are small
				entries[i].DataSize = uint32(len(n.children)) //nolint:gosec // test sizes are small
			}
			continue
		}
		stored := []byte(n.content)
		if n.gzip {
			stored = gzipBytes(t, stored)
			entries[i].Flags = FlagGzipped
		}
		entries[i].DataOffset = uint32(len(data))  //nolint:gosec // test sizes are small
		entries[i].DataSize = uint32(len(stored)) //nolint:gosec // test sizes are small
		data = append(data, stored...)
	}

	fsys, err := New(entries, data)
	require.NoError(t, err)
	return fsys
}

func gzipBytes(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	require.NoError(t, err)
	_, err = zw.Write(b)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// sampleFS is the tree used by most reader tests:
//
//	/
//	├── a.txt       "hello"
//	├── dir/
//	│   ├── b       "bee"
//	│   ├── c       ""
//	│   └── style.css (gzipped)
//	└── z/
func sampleFS(t *testing.T) *FS {
	t.Helper()
	return buildTestFS(t,
		tfile("a.txt", "hello"),
		tdir("dir",
			tfile("b", "bee"),
			tfile("c", ""),
			tgzip("style.css", strings.Repeat("body { margin: 0; }\n", 50)),
		),
		tdir("z"),
	)
}
