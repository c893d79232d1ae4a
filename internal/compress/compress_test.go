package compress

import (
	"bytes"
	"crypto/rand"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gunzip(t *testing.T, b []byte) []byte {
	t.Helper()
	zr, err := gzip.NewReader(bytes.NewReader(b))
	require.NoError(t, err)
	out, err := io.ReadAll(zr)
	require.NoError(t, err)
	return out
}

func TestApply(t *testing.T) {
	t.Parallel()

	text := []byte(strings.Repeat("a", 2000))
	random := make([]byte, 4096)
	_, err := rand.Read(random)
	require.NoError(t, err)

	tests := []struct {
		name     string
		path     string
		content  []byte
		wantGzip bool
	}{
		{"compressible text", "/notes.txt", text, true},
		{"blacklisted extension", "/logo.png", text, false},
		{"blacklisted upper case", "/LOGO.PNG", text, false},
		{"below minimum size", "/small.txt", []byte(strings.Repeat("a", 511)), false},
		{"at minimum size", "/edge.txt", []byte(strings.Repeat("a", 512)), true},
		{"incompressible", "/random.bin", random, false},
		{"empty", "/empty", nil, false},
	}
	p := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			stored, gzipped := p.Apply(tt.path, tt.content)
			assert.Equal(t, tt.wantGzip, gzipped)
			if !gzipped {
				assert.Equal(t, tt.content, stored)
				return
			}
			assert.Less(t, len(stored)*5, len(tt.content)*4)
			assert.Equal(t, tt.content, gunzip(t, stored))
		})
	}
}

func TestApplyNilPolicy(t *testing.T) {
	t.Parallel()

	var p *Policy
	content := []byte(strings.Repeat("a", 2000))
	stored, gzipped := p.Apply("/a.txt", content)
	assert.False(t, gzipped)
	assert.Equal(t, content, stored)
}

func TestApplyCustomSkip(t *testing.T) {
	t.Parallel()

	content := []byte(strings.Repeat("a", 2000))
	p := New(WithSkip(func(path string, _ int64) bool {
		return strings.HasPrefix(path, "/raw/")
	}))

	_, gzipped := p.Apply("/raw/a.txt", content)
	assert.False(t, gzipped)
	_, gzipped = p.Apply("/cooked/a.txt", content)
	assert.True(t, gzipped)

	p = New(WithMinSize(4096))
	_, gzipped = p.Apply("/a.txt", content)
	assert.False(t, gzipped)
}

func TestGzipDeterministic(t *testing.T) {
	t.Parallel()

	content := []byte(strings.Repeat("deterministic ", 200))
	a, err := Gzip(content)
	require.NoError(t, err)
	b, err := Gzip(content)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	zr, err := gzip.NewReader(bytes.NewReader(a))
	require.NoError(t, err)
	assert.Empty(t, zr.Name)
	assert.True(t, zr.ModTime.IsZero())
}

func TestWorthIt(t *testing.T) {
	t.Parallel()

	assert.True(t, worthIt(79, 100))
	assert.False(t, worthIt(80, 100))
	assert.False(t, worthIt(100, 100))
	assert.False(t, worthIt(0, 0))
}

func TestIsCompressedExt(t *testing.T) {
	t.Parallel()

	for _, p := range []string{"a.zip", "b.GZ", "c.tgz", "d.Jpeg", "e.woff2", "f.mp3"} {
		assert.True(t, IsCompressedExt(p), p)
	}
	for _, p := range []string{"a.txt", "b", "c.zip.txt", ".gitignore"} {
		assert.False(t, IsCompressedExt(p), p)
	}
}
