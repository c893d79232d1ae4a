//go:generate flatc --go --go-namespace fb -o ../internal ../schema/manifest.fbs

// Package manifest encodes the optional sidecar written next to a generated
// artifact. The manifest records, for every file, the digest and size of its
// original content so a finished artifact can be verified after the fact even
// when contents are stored compressed.
//
// Manifests are FlatBuffers tables (see schema/manifest.fbs).
package manifest

import (
	_ "crypto/sha256" // registers the digest.SHA256 hash
	"errors"
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/opencontainers/go-digest"

	"github.com/meigma/erfs/internal/fb"
)

// Version is the manifest format version written by this package.
const Version = 1

// File describes one file entry of an artifact.
type File struct {
	// Path is the absolute slash-separated path inside the artifact.
	Path string

	// Index is the entry index of the file.
	Index uint32

	// OriginalSize is the size of the source file.
	OriginalSize uint32

	// StoredSize is the size of the content as stored, compressed or not.
	StoredSize uint32

	// Gzipped reports whether the stored content is gzip-compressed.
	Gzipped bool

	// Digest is the digest of the original (uncompressed) content.
	Digest digest.Digest
}

// Manifest describes a generated artifact.
type Manifest struct {
	Version uint32

	// ID is the identifier the artifact was generated with.
	ID string

	// ArtifactDigest is the digest of the binary encoding of the artifact.
	ArtifactDigest digest.Digest

	// Files lists every file in entry index order.
	Files []File
}

// ByIndex returns the files keyed by entry index.
func (m *Manifest) ByIndex() map[uint32]File {
	out := make(map[uint32]File, len(m.Files))
	for _, f := range m.Files {
		out[f.Index] = f
	}
	return out
}

// MarshalBinary encodes the manifest as a FlatBuffers buffer.
func (m *Manifest) MarshalBinary() ([]byte, error) {
	builder := flatbuffers.NewBuilder(1024)

	// Build files in reverse order (FlatBuffers requirement)
	fileOffsets := make([]flatbuffers.UOffsetT, len(m.Files))
	for i := len(m.Files) - 1; i >= 0; i-- {
		f := m.Files[i]
		pathOffset := builder.CreateString(f.Path)
		digestOffset := builder.CreateString(f.Digest.String())

		fb.FileStart(builder)
		fb.FileAddPath(builder, pathOffset)
		fb.FileAddIndex(builder, f.Index)
		fb.FileAddOriginalSize(builder, f.OriginalSize)
		fb.FileAddStoredSize(builder, f.StoredSize)
		fb.FileAddGzipped(builder, f.Gzipped)
		fb.FileAddDigest(builder, digestOffset)
		fileOffsets[i] = fb.FileEnd(builder)
	}

	fb.ManifestStartFilesVector(builder, len(fileOffsets))
	for i := len(fileOffsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(fileOffsets[i])
	}
	filesOffset := builder.EndVector(len(fileOffsets))

	idOffset := builder.CreateString(m.ID)
	artifactOffset := builder.CreateString(m.ArtifactDigest.String())

	fb.ManifestStart(builder)
	fb.ManifestAddVersion(builder, m.Version)
	fb.ManifestAddId(builder, idOffset)
	fb.ManifestAddArtifactDigest(builder, artifactOffset)
	fb.ManifestAddFiles(builder, filesOffset)
	root := fb.ManifestEnd(builder)

	builder.Finish(root)
	return builder.FinishedBytes(), nil
}

// Load parses a FlatBuffers-encoded manifest.
//
// Malformed buffers make the FlatBuffers accessors panic; Load converts that
// into an error.
func Load(data []byte) (m *Manifest, err error) {
	defer func() {
		if r := recover(); r != nil {
			m = nil
			err = fmt.Errorf("erfs: failed to parse manifest: %v", r)
		}
	}()
	if len(data) == 0 {
		return nil, errors.New("erfs: empty manifest data")
	}

	root := fb.GetRootAsManifest(data, 0)
	if v := root.Version(); v != Version {
		return nil, fmt.Errorf("erfs: unsupported manifest version %d", v)
	}

	artifact, err := digest.Parse(string(root.ArtifactDigest()))
	if err != nil {
		return nil, fmt.Errorf("erfs: manifest artifact digest: %w", err)
	}

	m = &Manifest{
		Version:        root.Version(),
		ID:             string(root.Id()),
		ArtifactDigest: artifact,
		Files:          make([]File, 0, root.FilesLength()),
	}

	var f fb.File
	for i := range root.FilesLength() {
		if !root.Files(&f, i) {
			break
		}
		d, err := digest.Parse(string(f.Digest()))
		if err != nil {
			return nil, fmt.Errorf("erfs: manifest file %q: %w", f.Path(), err)
		}
		m.Files = append(m.Files, File{
			Path:         string(f.Path()),
			Index:        f.Index(),
			OriginalSize: f.OriginalSize(),
			StoredSize:   f.StoredSize(),
			Gzipped:      f.Gzipped(),
			Digest:       d,
		})
	}
	return m, nil
}
