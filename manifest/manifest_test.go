package manifest

import (
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestRoundTrip(t *testing.T) {
	t.Parallel()

	m := &Manifest{
		Version:        Version,
		ID:             "static",
		ArtifactDigest: digest.FromString("artifact"),
		Files: []File{
			{Path: "/a.txt", Index: 1, OriginalSize: 5, StoredSize: 5, Digest: digest.FromString("hello")},
			{Path: "/dir/b.css", Index: 4, OriginalSize: 2000, StoredSize: 120, Gzipped: true, Digest: digest.FromString("css")},
		},
	}

	data, err := m.MarshalBinary()
	require.NoError(t, err)

	got, err := Load(data)
	require.NoError(t, err)
	assert.Equal(t, m, got)

	byIndex := got.ByIndex()
	require.Contains(t, byIndex, uint32(4))
	assert.Equal(t, "/dir/b.css", byIndex[4].Path)
}

func TestManifestEmptyFiles(t *testing.T) {
	t.Parallel()

	m := &Manifest{Version: Version, ID: "empty", ArtifactDigest: digest.FromString(""), Files: []File{}}
	data, err := m.MarshalBinary()
	require.NoError(t, err)

	got, err := Load(data)
	require.NoError(t, err)
	assert.Empty(t, got.Files)
	assert.Equal(t, "empty", got.ID)
}

func TestLoadRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := Load(nil)
	require.Error(t, err)

	_, err = Load([]byte{0xff, 0xff, 0xff, 0x7f, 0x01})
	require.Error(t, err)
}

func TestLoadRejectsVersion(t *testing.T) {
	t.Parallel()

	m := &Manifest{Version: Version + 1, ID: "x", ArtifactDigest: digest.FromString("")}
	data, err := m.MarshalBinary()
	require.NoError(t, err)

	_, err = Load(data)
	require.ErrorContains(t, err, "unsupported manifest version")
}
