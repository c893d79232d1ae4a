package erfs

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	t.Parallel()

	fsys := sampleFS(t)

	tests := []struct {
		path     string
		wantH    Handle
		wantSize uint32
		wantErr  error
	}{
		{path: "", wantH: 0, wantSize: 3},
		{path: "/", wantH: 0, wantSize: 3},
		{path: "/a.txt", wantH: 1, wantSize: 5},
		{path: "a.txt", wantH: 1, wantSize: 5},
		{path: "/dir", wantH: 2, wantSize: 3},
		{path: "/dir/", wantH: 2, wantSize: 3},
		{path: "/dir/b", wantH: 4, wantSize: 3},
		{path: "/dir/c", wantH: 5, wantSize: 0},
		{path: "/z", wantH: 3, wantSize: 0},
		{path: "/missing", wantErr: ErrNotFound},
		{path: "/dir/missing", wantErr: ErrNotFound},
		{path: "/a.txt/", wantErr: ErrNotFound},
		{path: "/a.txt/x", wantErr: ErrNotFound},
		{path: "//a.txt", wantErr: ErrNotFound},
		{path: "/dir//b", wantErr: ErrNotFound},
		{path: "/.", wantErr: ErrNotFound},
		{path: "/dir/../a.txt", wantErr: ErrNotFound},
		{path: "/A.TXT", wantErr: ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			h, size, err := fsys.Open(tt.path)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				var pathErr *fs.PathError
				require.ErrorAs(t, err, &pathErr)
				assert.Equal(t, "open", pathErr.Op)
				assert.Equal(t, tt.path, pathErr.Path)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantH, h)
			assert.Equal(t, tt.wantSize, size)
		})
	}
}

func TestRead(t *testing.T) {
	t.Parallel()

	fsys := sampleFS(t)

	got, err := fsys.Read("/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	got, err = fsys.Read("/dir/c")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = fsys.Read("/dir")
	require.ErrorIs(t, err, ErrNotFile)

	_, err = fsys.Read("/nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReadSharesData(t *testing.T) {
	t.Parallel()

	fsys := sampleFS(t)
	got, err := fsys.Read("/a.txt")
	require.NoError(t, err)
	assert.Equal(t, len(got), cap(got), "content must not extend into neighbouring data")
	assert.Same(t, &fsys.Data()[fsys.Entries()[1].DataOffset], &got[0])
}

func TestHandleAccessors(t *testing.T) {
	t.Parallel()

	fsys := sampleFS(t)

	name, err := fsys.EntryName(fsys.Root())
	require.NoError(t, err)
	assert.Equal(t, "/", string(name))

	name, err = fsys.EntryName(6)
	require.NoError(t, err)
	assert.Equal(t, "style.css", string(name))

	flags, err := fsys.EntryFlags(6)
	require.NoError(t, err)
	assert.Equal(t, FlagGzipped, flags)

	flags, err = fsys.EntryFlags(2)
	require.NoError(t, err)
	assert.Equal(t, FlagDirectory, flags)

	content, err := fsys.ReadFile(4)
	require.NoError(t, err)
	assert.Equal(t, "bee", string(content))

	_, err = fsys.ReadFile(2)
	require.ErrorIs(t, err, ErrNotFile)

	for _, h := range []Handle{7, 1000} {
		_, err = fsys.EntryName(h)
		require.ErrorIs(t, err, ErrInvalidInput)
		_, err = fsys.EntryFlags(h)
		require.ErrorIs(t, err, ErrInvalidInput)
		_, err = fsys.ReadFile(h)
		require.ErrorIs(t, err, ErrInvalidInput)
	}
}

func TestReadDir(t *testing.T) {
	t.Parallel()

	fsys := sampleFS(t)

	var names []string
	for i := range uint32(3) {
		h, err := fsys.ReadDir(2, i)
		require.NoError(t, err)
		name, err := fsys.EntryName(h)
		require.NoError(t, err)
		names = append(names, string(name))
	}
	assert.Equal(t, []string{"b", "c", "style.css"}, names)

	_, err := fsys.ReadDir(2, 3)
	require.ErrorIs(t, err, ErrOutOfBound)

	_, err = fsys.ReadDir(3, 0)
	require.ErrorIs(t, err, ErrOutOfBound)

	_, err = fsys.ReadDir(1, 0)
	require.ErrorIs(t, err, ErrNotDirectory)

	_, err = fsys.ReadDir(99, 0)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestOpenAgreesWithReadDir(t *testing.T) {
	t.Parallel()

	fsys := sampleFS(t)
	for path, h := range fsys.Paths() {
		got, _, err := fsys.Open(path)
		require.NoError(t, err, path)
		assert.Equal(t, h, got, path)
	}
}
