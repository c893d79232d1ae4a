package erfs

import (
	"errors"
	"io"
	"io/fs"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdFSConformance(t *testing.T) {
	t.Parallel()

	fsys := sampleFS(t)
	for _, s := range []*StdFS{fsys.StdFS(), fsys.StdFS(StdFSWithCache())} {
		require.NoError(t, fstest.TestFS(s, "a.txt", "dir/b", "dir/c", "dir/style.css", "z"))
	}
}

func TestStdFSReadFile(t *testing.T) {
	t.Parallel()

	s := sampleFS(t).StdFS()

	got, err := fs.ReadFile(s, "dir/style.css")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("body { margin: 0; }\n", 50), string(got))

	info, err := fs.Stat(s, "dir/style.css")
	require.NoError(t, err)
	assert.Equal(t, int64(len(got)), info.Size())
	assert.Equal(t, "style.css", info.Name())
	assert.Equal(t, fs.FileMode(0o444), info.Mode())

	got[0] = 'X'
	again, err := s.ReadFile("a.txt")
	require.NoError(t, err)
	again[0] = 'X'
	orig, err := s.ReadFile("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(orig), "ReadFile must return a copy")

	_, err = s.ReadFile("dir")
	require.ErrorIs(t, err, ErrNotFile)
}

func TestStdFSErrors(t *testing.T) {
	t.Parallel()

	s := sampleFS(t).StdFS()

	_, err := s.Open("missing")
	require.ErrorIs(t, err, fs.ErrNotExist)

	_, err = s.Open("/a.txt")
	require.ErrorIs(t, err, fs.ErrInvalid)

	_, err = s.Stat("dir/../a.txt")
	require.ErrorIs(t, err, fs.ErrInvalid)

	_, err = s.ReadDir("a.txt")
	require.ErrorIs(t, err, ErrNotDirectory)
}

func TestStdFSReadDir(t *testing.T) {
	t.Parallel()

	s := sampleFS(t).StdFS()

	entries, err := fs.ReadDir(s, ".")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"a.txt", "dir", "z"}, names)
	assert.True(t, entries[1].IsDir())

	f, err := s.Open("dir")
	require.NoError(t, err)
	defer f.Close()
	dir, ok := f.(fs.ReadDirFile)
	require.True(t, ok)

	first, err := dir.ReadDir(2)
	require.NoError(t, err)
	assert.Len(t, first, 2)
	rest, err := dir.ReadDir(2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
	_, err = dir.ReadDir(2)
	require.ErrorIs(t, err, io.EOF)

	_, err = f.Read(make([]byte, 1))
	require.Error(t, err)
}

func TestStdFSCacheConcurrent(t *testing.T) {
	t.Parallel()

	s := sampleFS(t).StdFS(StdFSWithCache())
	want := strings.Repeat("body { margin: 0; }\n", 50)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.ReadFile("dir/style.css")
			if err != nil {
				errs <- err
				return
			}
			if string(got) != want {
				errs <- errors.New("unexpected content")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	assert.Len(t, s.cache, 1)
}
