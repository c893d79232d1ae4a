package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/erfs"
	"github.com/meigma/erfs/gen"
	"github.com/meigma/erfs/internal/testutil"
)

var compressible = []byte(strings.Repeat("a line that gzip will shrink\n", 60))

func runCLI(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err = run(context.Background(), args, &out, &errOut)
	return out.String(), errOut.String(), err
}

// generateBin writes erfs_site.bin and its manifest for a small tree.
func generateBin(t *testing.T) (src, dest string) {
	t.Helper()
	src = testutil.SourceTree(t, map[string][]byte{
		"index.html":  []byte("<h1>hi</h1>\n"),
		"css/app.css": compressible,
		"empty/":      nil,
	})
	dest = t.TempDir()
	_, _, err := runCLI(t, "gen", "--gzip", "--manifest", "--target", "bin", src, "site", dest)
	require.NoError(t, err)
	return src, dest
}

func TestGen(t *testing.T) {
	t.Parallel()

	src := testutil.SourceTree(t, map[string][]byte{"a.txt": []byte("a")})
	dest := t.TempDir()

	stdout, _, err := runCLI(t, "gen", "--target", "c,go", "--package", "res", src, "res", dest)
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote "+filepath.Join(dest, "erfs_res.c"))
	assert.Contains(t, stdout, "2 entries")
	assert.Equal(t, []string{"erfs_res.c", "erfs_res.go", "erfs_res.h", "erfs_res_data.go"}, testutil.Names(t, dest))

	data, err := os.ReadFile(filepath.Join(dest, "erfs_res.go"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "package res")
}

func TestGenDefaultTarget(t *testing.T) {
	t.Parallel()

	src := testutil.SourceTree(t, map[string][]byte{"a.txt": []byte("a")})
	dest := t.TempDir()

	_, _, err := runCLI(t, "gen", src, "x", dest)
	require.NoError(t, err)
	assert.Equal(t, []string{"erfs_x.c", "erfs_x.h"}, testutil.Names(t, dest))
}

func TestGenConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string][]byte{
		"web/index.html": []byte("hi"),
		"fw/boot.txt":    compressible,
		"out/":           nil,
		"erfs.yaml": []byte(`
defaults:
  dest: out
jobs:
  - source: web
    id: web
    targets: [go]
  - source: fw
    id: fw
    gzip: true
`),
	})

	stdout, _, err := runCLI(t, "gen", "--config", filepath.Join(dir, "erfs.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(stdout, "entries"))
	assert.Equal(t,
		[]string{"erfs_fw.c", "erfs_fw.h", "erfs_web.go", "erfs_web_data.go"},
		testutil.Names(t, filepath.Join(dir, "out")),
	)
}

func TestGenErrors(t *testing.T) {
	t.Parallel()

	src := testutil.SourceTree(t, map[string][]byte{"a.txt": []byte("a")})
	dest := t.TempDir()

	tests := []struct {
		name    string
		args    []string
		wantErr error
		code    int
	}{
		{"missing args", []string{"gen", src}, errUsage, 2},
		{"unknown flag", []string{"gen", "--nope", src, "x", dest}, errUsage, 2},
		{"bad target", []string{"gen", "--target", "rust", src, "x", dest}, gen.ErrInvalidOption, 1},
		{"bad id", []string{"gen", src, "X", dest}, gen.ErrInvalidID, 1},
		{"missing dest", []string{"gen", src, "x", filepath.Join(dest, "nope")}, gen.ErrTargetNotExist, 1},
		{"missing source", []string{"gen", filepath.Join(src, "nope"), "x", dest}, erfs.ErrNotFound, 1},
		{"config with args", []string{"gen", "--config", "x.yaml", src}, errUsage, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := runCLI(t, tt.args...)
			require.ErrorIs(t, err, tt.wantErr)

			var stderr bytes.Buffer
			assert.Equal(t, tt.code, exitCode(err, &stderr))
			assert.True(t, strings.HasPrefix(stderr.String(), "error: "))
		})
	}
}

func TestUsage(t *testing.T) {
	t.Parallel()

	_, stderr, err := runCLI(t)
	require.ErrorIs(t, err, errUsage)
	assert.Contains(t, stderr, "Usage:")

	_, _, err = runCLI(t, "frobnicate")
	require.ErrorIs(t, err, errUsage)

	stdout, _, err := runCLI(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, stdout, "erfs gen")

	_, stderr, err = runCLI(t, "ls", "--help")
	assert.Zero(t, exitCode(err, &bytes.Buffer{}))
	assert.Contains(t, stderr, "Usage: erfs ls")
}

func TestLs(t *testing.T) {
	t.Parallel()

	_, dest := generateBin(t)

	stdout, _, err := runCLI(t, "ls", filepath.Join(dest, "erfs_site.bin"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "dir                3 /", lines[0])
	assert.Contains(t, stdout, "file|gzip ")
	assert.Contains(t, stdout, "/css/app.css")
	assert.Contains(t, stdout, "        12 /index.html")
}

func TestInspectDebug(t *testing.T) {
	t.Parallel()

	_, dest := generateBin(t)
	bin := filepath.Join(dest, "erfs_site.bin")

	_, stderr, err := runCLI(t, "ls", bin)
	require.NoError(t, err)
	assert.Empty(t, stderr)

	_, stderr, err = runCLI(t, "ls", "--debug", bin)
	require.NoError(t, err)
	assert.Contains(t, stderr, "msg=\"loaded artifact\"")

	_, stderr, err = runCLI(t, "cat", "--debug", bin, "/index.html")
	require.NoError(t, err)
	assert.Contains(t, stderr, "msg=\"loaded artifact\"")
	assert.Contains(t, stderr, "msg=\"opened entry\"")
}

func TestCat(t *testing.T) {
	t.Parallel()

	_, dest := generateBin(t)
	bin := filepath.Join(dest, "erfs_site.bin")

	stdout, _, err := runCLI(t, "cat", bin, "/css/app.css")
	require.NoError(t, err)
	assert.Equal(t, string(compressible), stdout)

	stdout, _, err = runCLI(t, "cat", "--raw", bin, "/css/app.css")
	require.NoError(t, err)
	assert.Less(t, len(stdout), len(compressible))

	_, _, err = runCLI(t, "cat", bin, "/css")
	require.ErrorIs(t, err, erfs.ErrNotFile)

	_, _, err = runCLI(t, "cat", bin, "/missing")
	require.ErrorIs(t, err, erfs.ErrNotFound)
}

func TestExport(t *testing.T) {
	t.Parallel()

	src, dest := generateBin(t)
	out := filepath.Join(t.TempDir(), "tree")

	stdout, _, err := runCLI(t, "export", filepath.Join(dest, "erfs_site.bin"), out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 files")
	assert.Equal(t, testutil.ReadTree(t, src), testutil.ReadTree(t, out))

	stdout, _, err = runCLI(t, "export", filepath.Join(dest, "erfs_site.bin"), out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 skipped")
}

func TestVerify(t *testing.T) {
	t.Parallel()

	_, dest := generateBin(t)
	bin := filepath.Join(dest, "erfs_site.bin")
	m := filepath.Join(dest, "erfs_site.manifest")

	stdout, _, err := runCLI(t, "verify", "--manifest", m, bin)
	require.NoError(t, err)
	assert.Contains(t, stdout, ": ok (5 entries)")

	// A manifest from a different tree does not match.
	other := testutil.SourceTree(t, map[string][]byte{"index.html": []byte("changed")})
	otherDest := t.TempDir()
	_, _, err = runCLI(t, "gen", "--manifest", "--target", "bin", other, "site", otherDest)
	require.NoError(t, err)

	_, _, err = runCLI(t, "verify", "--manifest", filepath.Join(otherDest, "erfs_site.manifest"), bin)
	require.ErrorIs(t, err, erfs.ErrDigestMismatch)
}

func TestLoadArtifactErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, _, err := runCLI(t, "ls", filepath.Join(dir, "missing.bin"))
	require.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.bin")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o644))
	_, _, err = runCLI(t, "ls", bad)
	require.ErrorIs(t, err, erfs.ErrCorrupt)
}

func TestGenProgress(t *testing.T) {
	t.Parallel()

	src := testutil.SourceTree(t, map[string][]byte{"a.txt": []byte("a"), "b.txt": []byte("b")})

	_, stderr, err := runCLI(t, "gen", "--progress", src, "x", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, stderr, "storing 2/2 /b.txt\n")
	assert.Contains(t, stderr, "writing erfs_x.h\n")
}
