package gen

// ProgressEvent reports how far a Build or Generate call has come.
type ProgressEvent struct {
	// Stage identifies the current phase.
	Stage ProgressStage

	// Path is the tree path or output file being processed, if any.
	Path string

	// BytesDone is the number of source bytes stored so far.
	BytesDone uint64

	// BytesTotal is the total size of all source files.
	// Zero while scanning.
	BytesTotal uint64

	// FilesDone is the number of files or units completed in this stage.
	FilesDone int

	// FilesTotal is the number of files or units in this stage.
	// Zero while scanning.
	FilesTotal int
}

// ProgressStage identifies the current phase of generation.
type ProgressStage uint8

// Progress stages in the order they occur.
const (
	// StageScanning indicates the source tree is being walked.
	StageScanning ProgressStage = iota

	// StageStoring indicates file contents are being read and compressed.
	StageStoring

	// StageRendering indicates targets are being rendered in memory.
	StageRendering

	// StageWriting indicates output files are being staged and committed.
	StageWriting
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageScanning:
		return "scanning"
	case StageStoring:
		return "storing"
	case StageRendering:
		return "rendering"
	case StageWriting:
		return "writing"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates. Calls come from the goroutine
// running Build or Generate.
type ProgressFunc func(ProgressEvent)

// WithProgress sets a callback for progress updates.
func WithProgress(fn ProgressFunc) Option {
	return func(cfg *config) {
		cfg.progress = fn
	}
}

// report sends a progress event if a callback is configured.
func (cfg *config) report(ev ProgressEvent) {
	if cfg.progress == nil {
		return
	}
	cfg.progress(ev)
}
