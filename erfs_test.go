package erfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// handLaidOut is a tree whose table was computed by hand:
//
//	0 "/"      dir  children [1,4)
//	1 "a.txt"  file "hello"
//	2 "dir"    dir  children [4,6)
//	3 "z"      dir  empty
//	4 "b"      file "bee"
//	5 "c"      file ""
var handLaidOut = struct {
	entries []Entry
	data    string
}{
	entries: []Entry{
		{NameOffset: 0, NameSize: 1, DataOffset: 1, DataSize: 3, Flags: FlagDirectory},
		{NameOffset: 1, NameSize: 5, DataOffset: 12, DataSize: 5},
		{NameOffset: 6, NameSize: 3, DataOffset: 4, DataSize: 2, Flags: FlagDirectory},
		{NameOffset: 9, NameSize: 1, Flags: FlagDirectory},
		{NameOffset: 10, NameSize: 1, DataOffset: 17, DataSize: 3},
		{NameOffset: 11, NameSize: 1, DataOffset: 20, DataSize: 0},
	},
	data: "/a.txtdirzbchellobee",
}

func TestNewHandLaidOut(t *testing.T) {
	t.Parallel()

	fsys, err := NewString(handLaidOut.entries, handLaidOut.data)
	require.NoError(t, err)
	assert.Equal(t, 6, fsys.Len())
	assert.Equal(t, 20, fsys.DataSize())

	got, err := fsys.Read("/dir/b")
	require.NoError(t, err)
	assert.Equal(t, "bee", string(got))

	built := buildTestFS(t,
		tfile("a.txt", "hello"),
		tdir("dir", tfile("c", ""), tfile("b", "bee")),
		tdir("z"),
	)
	assert.Equal(t, handLaidOut.entries, built.Entries())
	assert.Equal(t, handLaidOut.data, string(built.Data()))
}

func TestNewRejectsCorrupt(t *testing.T) {
	t.Parallel()

	valid := func() []Entry {
		return append([]Entry(nil), handLaidOut.entries...)
	}
	data := []byte(handLaidOut.data)

	tests := []struct {
		name   string
		mutate func([]Entry) []Entry
	}{
		{"empty table", func([]Entry) []Entry { return nil }},
		{"root is a file", func(e []Entry) []Entry { e[0].Flags = 0; return e }},
		{"name out of range", func(e []Entry) []Entry { e[1].NameSize = 100; return e }},
		{"content out of range", func(e []Entry) []Entry { e[4].DataOffset = 19; return e }},
		{"child before parent", func(e []Entry) []Entry { e[2].DataOffset = 1; return e }},
		{"children past table", func(e []Entry) []Entry { e[2].DataSize = 3; return e }},
		{"unsorted children", func(e []Entry) []Entry { e[4], e[5] = e[5], e[4]; return e }},
		{"unreachable entry", func(e []Entry) []Entry { e[2].DataSize = 1; return e }},
		{"shared child", func(e []Entry) []Entry {
			e[3].DataOffset, e[3].DataSize = 4, 1
			return e
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.mutate(valid()), data)
			require.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestMust(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { Must(New(nil, nil)) })
	assert.NotPanics(t, func() { Must(NewString(handLaidOut.entries, handLaidOut.data)) })
}

func TestFlagsString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		flags Flags
		want  string
	}{
		{0, "file"},
		{FlagDirectory, "dir"},
		{FlagGzipped, "file|gzip"},
		{FlagGzipped | 8, "file|gzip|0x8"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.flags.String())
	}
}

func TestEntryInvalidHandle(t *testing.T) {
	t.Parallel()

	fsys := sampleFS(t)
	_, err := fsys.Entry(Handle(fsys.Len()))
	require.ErrorIs(t, err, ErrInvalidInput)

	e, err := fsys.Entry(fsys.Root())
	require.NoError(t, err)
	assert.True(t, e.IsDir())
}
