// Package testutil holds helpers shared by tests across packages.
package testutil

import (
	"crypto/rand"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteTree creates files in dir from a map of slash-separated relative path
// to content. A path ending in "/" creates an empty directory.
func WriteTree(tb testing.TB, dir string, files map[string][]byte) {
	tb.Helper()
	for path, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(path))
		if strings.HasSuffix(path, "/") {
			require.NoError(tb, os.MkdirAll(full, 0o755))
			continue
		}
		require.NoError(tb, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(tb, os.WriteFile(full, content, 0o644))
	}
}

// SourceTree writes files into a fresh temp directory and returns its path.
func SourceTree(tb testing.TB, files map[string][]byte) string {
	tb.Helper()
	dir := tb.TempDir()
	WriteTree(tb, dir, files)
	return dir
}

// ReadTree returns every regular file below dir keyed by slash-separated
// relative path, and every directory (other than dir) with a trailing "/"
// and nil content.
func ReadTree(tb testing.TB, dir string) map[string][]byte {
	tb.Helper()
	out := make(map[string][]byte)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			out[rel+"/"] = nil
			return nil
		}
		data, err := os.ReadFile(path) //nolint:gosec // test helper
		if err != nil {
			return err
		}
		out[rel] = data
		return nil
	})
	require.NoError(tb, err)
	return out
}

// Files drops the directory keys of a ReadTree result.
func Files(tree map[string][]byte) map[string][]byte {
	out := make(map[string][]byte, len(tree))
	for k, v := range tree {
		if !strings.HasSuffix(k, "/") {
			out[k] = v
		}
	}
	return out
}

// RandomBytes returns n bytes that do not compress.
func RandomBytes(tb testing.TB, n int) []byte {
	tb.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(tb, err)
	return b
}

// Names lists the entries of dir, for asserting that nothing was written.
func Names(tb testing.TB, dir string) []string {
	tb.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(tb, err)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names
}
