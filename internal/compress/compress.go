// Package compress decides which file contents are stored gzip-compressed.
package compress

import (
	"bytes"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// DefaultMinSize is the smallest content size worth compressing.
const DefaultMinSize = 512

// SkipFunc returns true when a file should be stored uncompressed.
// It is called once per file and should be inexpensive.
type SkipFunc func(path string, size int64) bool

// DefaultSkip returns a SkipFunc that skips files smaller than minSize and
// files whose extension marks them as already compressed.
func DefaultSkip(minSize int64) SkipFunc {
	return func(p string, size int64) bool {
		if minSize > 0 && size < minSize {
			return true
		}
		return IsCompressedExt(p)
	}
}

// IsCompressedExt reports whether the extension of p, compared
// case-insensitively, names an already-compressed format.
func IsCompressedExt(p string) bool {
	_, ok := compressedExts[strings.ToLower(path.Ext(p))]
	return ok
}

// ShouldSkip checks if any predicate returns true for the given file.
func ShouldSkip(p string, size int64, predicates []SkipFunc) bool {
	for _, fn := range predicates {
		if fn == nil {
			continue
		}
		if fn(p, size) {
			return true
		}
	}
	return false
}

// Option configures a Policy.
type Option func(*Policy)

// WithMinSize replaces the minimum size of the default predicate.
func WithMinSize(n int64) Option {
	return func(p *Policy) {
		p.minSize = n
	}
}

// WithSkip adds predicates that force storing a file uncompressed.
func WithSkip(fns ...SkipFunc) Option {
	return func(p *Policy) {
		p.skip = append(p.skip, fns...)
	}
}

// WithLogger sets the logger for compression decisions.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Policy) {
		p.logger = logger
	}
}

// Policy compresses content when it is large enough, not already compressed
// and shrinks to less than 80% of its size.
//
// A nil *Policy stores everything uncompressed.
type Policy struct {
	minSize int64
	skip    []SkipFunc
	logger  *slog.Logger
}

// New returns a Policy with the default predicate and any extra ones.
func New(opts ...Option) *Policy {
	p := &Policy{minSize: DefaultMinSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// log returns the logger, falling back to a discard logger if nil.
func (p *Policy) log() *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.logger
}

// Apply returns the bytes to store for the file name and whether they are
// gzipped. Content that does not qualify, or whose compression fails, is
// returned unchanged.
func (p *Policy) Apply(name string, content []byte) (stored []byte, gzipped bool) {
	if p == nil {
		return content, false
	}
	size := int64(len(content))
	if DefaultSkip(p.minSize)(name, size) || ShouldSkip(name, size, p.skip) {
		return content, false
	}

	compressed, err := Gzip(content)
	if err != nil {
		p.log().Debug("compression failed, storing raw", "path", name, "error", err)
		return content, false
	}
	if !worthIt(len(compressed), len(content)) {
		p.log().Debug("compression not worth it", "path", name, "size", len(content), "compressed", len(compressed))
		return content, false
	}
	p.log().Debug("compressed", "path", name, "size", len(content), "compressed", len(compressed))
	return compressed, true
}

// worthIt reports whether compressed is strictly smaller than 0.8×original.
func worthIt(compressed, original int) bool {
	return uint64(compressed)*5 < uint64(original)*4 //nolint:gosec // lengths are non-negative
}

// Gzip compresses content at the best compression level. The gzip header
// carries no name or modification time, so equal input gives equal output.
func Gzip(content []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(content)/2 + 64)
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("create gzip writer: %w", err)
	}
	if _, err := zw.Write(content); err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	return buf.Bytes(), nil
}

var compressedExts = map[string]struct{}{
	".7z":    {},
	".aac":   {},
	".avi":   {},
	".avif":  {},
	".br":    {},
	".bz2":   {},
	".flac":  {},
	".gif":   {},
	".gz":    {},
	".heic":  {},
	".ico":   {},
	".jpeg":  {},
	".jpg":   {},
	".m4v":   {},
	".mkv":   {},
	".mov":   {},
	".mp3":   {},
	".mp4":   {},
	".ogg":   {},
	".opus":  {},
	".pdf":   {},
	".png":   {},
	".rar":   {},
	".tgz":   {},
	".wav":   {},
	".webm":  {},
	".webp":  {},
	".woff":  {},
	".woff2": {},
	".xz":    {},
	".zip":   {},
	".zst":   {},
}
