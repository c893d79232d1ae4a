package gen

import (
	"log/slog"

	"github.com/meigma/erfs/internal/compress"
)

// SkipCompressionFunc returns true when a file should be stored uncompressed.
// It receives the absolute path inside the tree and the content size, is
// called once per file and should be inexpensive.
type SkipCompressionFunc = compress.SkipFunc

// config holds configuration for generation.
type config struct {
	compression     bool
	skipCompression []SkipCompressionFunc
	targets         Target
	pkg             string
	maxSize         uint64
	manifest        bool
	progress        ProgressFunc
	logger          *slog.Logger
}

// Option configures Build and Generate.
type Option func(*config)

// WithCompression enables opportunistic gzip compression of file contents.
// A file is compressed only when it is at least 512 bytes, its extension is
// not a known compressed format and gzip shrinks it below 80%.
func WithCompression(enabled bool) Option {
	return func(cfg *config) {
		cfg.compression = enabled
	}
}

// WithSkipCompression adds predicates that decide to store a file uncompressed.
// If any predicate returns true, compression is skipped for that file.
func WithSkipCompression(fns ...SkipCompressionFunc) Option {
	return func(cfg *config) {
		cfg.skipCompression = append(cfg.skipCompression, fns...)
	}
}

// WithTargets sets the output representations. The default is TargetC.
func WithTargets(t Target) Option {
	return func(cfg *config) {
		cfg.targets = t
	}
}

// WithPackage sets the package clause of generated Go files.
// The default is "assets".
func WithPackage(name string) Option {
	return func(cfg *config) {
		cfg.pkg = name
	}
}

// WithMaxSize sets the ceiling on the total size of names and contents.
// Zero uses the default of 100 MiB; values above 4 GiB - 1 are invalid.
func WithMaxSize(n uint64) Option {
	return func(cfg *config) {
		cfg.maxSize = n
	}
}

// WithManifest also writes erfs_<id>.manifest, a FlatBuffers sidecar with
// the digest and sizes of every file.
func WithManifest(enabled bool) Option {
	return func(cfg *config) {
		cfg.manifest = enabled
	}
}

// WithLogger sets the logger for generation progress.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

func newConfig(opts []Option) config {
	cfg := config{targets: TargetC}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// log returns the logger, falling back to a discard logger if nil.
func (cfg *config) log() *slog.Logger {
	if cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return cfg.logger
}

func (cfg *config) policy() *compress.Policy {
	if !cfg.compression {
		return nil
	}
	return compress.New(
		compress.WithSkip(cfg.skipCompression...),
		compress.WithLogger(cfg.logger),
	)
}
