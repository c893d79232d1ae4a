// Command profiler generates a synthetic tree, builds it into an embedded
// filesystem and runs one operation in a loop under optional CPU, heap,
// wall-clock and trace profiling.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"math/rand" //nolint:gosec // intentional use for reproducible benchmarks
	"net/http"
	_ "net/http/pprof" //nolint:gosec // intentional profiling endpoint
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"time"

	"github.com/felixge/fgprof"
	"github.com/spf13/pflag"

	"github.com/meigma/erfs"
	"github.com/meigma/erfs/gen"
)

const modes = "build, open, read, contents, stdfs-readfile, travel, verify, export"

type config struct {
	mode       string
	files      int
	fileSize   int
	dirCount   int
	gzip       bool
	pattern    string
	fgProfile  string
	duration   time.Duration
	iterations int
	pprofAddr  string
	cpuProfile string
	memProfile string
	traceFile  string
	cache      bool
	readRandom bool
	tempDir    string
	keepTemp   bool
	randomSeed int64
}

//nolint:unused // sink variables prevent compiler optimizations in profiling
var (
	sinkBytes  []byte
	sinkHandle erfs.Handle
	sinkCount  int
)

//nolint:gocognit,gocyclo // main function complexity is acceptable for CLI tool
func main() {
	cfg := parseFlags()

	if cfg.pprofAddr != "" {
		go func() {
			log.Printf("pprof listening on %s", cfg.pprofAddr)
			//nolint:gosec // intentional pprof server without timeouts for profiling
			if err := http.ListenAndServe(cfg.pprofAddr, nil); err != nil {
				log.Printf("pprof server error: %v", err)
			}
		}()
	}

	dir, cleanup, err := setupTempDir(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if cleanup != nil {
		defer cleanup() //nolint:errcheck // cleanup errors are non-fatal in profiler
	}

	src := filepath.Join(dir, "src")
	paths, err := makeFiles(src, cfg.files, cfg.fileSize, cfg.dirCount, cfg.pattern, cfg.randomSeed)
	if err != nil {
		log.Fatal(err) //nolint:gocritic // exitAfterDefer is intentional - cleanup is best-effort
	}

	art, err := gen.Build(context.Background(), src, gen.WithCompression(cfg.gzip), gen.WithMaxSize(1<<32-1))
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("built %d entries, %d bytes of data, %d gzipped", art.FS.Len(), art.FS.DataSize(), art.Gzipped)

	if cfg.fgProfile != "" {
		fgFile, fgErr := os.Create(cfg.fgProfile)
		if fgErr != nil {
			log.Fatal(fgErr)
		}
		stopFG := fgprof.Start(fgFile, fgprof.FormatPprof)
		defer func() {
			if err := stopFG(); err != nil {
				log.Printf("fgprof stop error: %v", err)
			}
			_ = fgFile.Close()
		}()
	}

	if cfg.cpuProfile != "" {
		cpuFile, cpuErr := os.Create(cfg.cpuProfile)
		if cpuErr != nil {
			log.Fatal(cpuErr)
		}
		if cpuErr = pprof.StartCPUProfile(cpuFile); cpuErr != nil {
			log.Fatal(cpuErr)
		}
		defer func() {
			pprof.StopCPUProfile()
			_ = cpuFile.Close()
		}()
	}

	if cfg.traceFile != "" {
		traceFile, traceErr := os.Create(cfg.traceFile)
		if traceErr != nil {
			log.Fatal(traceErr)
		}
		if traceErr = trace.Start(traceFile); traceErr != nil {
			log.Fatal(traceErr)
		}
		defer func() {
			trace.Stop()
			_ = traceFile.Close()
		}()
	}

	stats, err := runProfile(cfg, art.FS, src, paths, dir)
	if err != nil {
		log.Fatal(err)
	}

	if cfg.memProfile != "" {
		runtime.GC()
		f, err := os.Create(cfg.memProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal(err)
		}
		_ = f.Close()
	}

	fmt.Printf("mode=%s ops=%d bytes=%d elapsed=%s throughput=%.2f MB/s\n",
		cfg.mode,
		stats.ops,
		stats.bytes,
		stats.elapsed,
		float64(stats.bytes)/(1024*1024)/stats.elapsed.Seconds(),
	)
}

type profileStats struct {
	ops     int
	bytes   int64
	elapsed time.Duration
}

//nolint:gocognit,gocyclo,gocritic // complexity is inherent to multi-mode profiler dispatch; hugeParam acceptable for profiler
func runProfile(cfg config, fsys *erfs.FS, src string, paths []string, rootDir string) (profileStats, error) {
	start := time.Now()
	ops := 0
	var byteCount int64

	shouldContinue := func() bool {
		if cfg.iterations > 0 {
			return ops < cfg.iterations
		}
		return time.Since(start) < cfg.duration
	}
	rng := rand.New(rand.NewSource(cfg.randomSeed)) //nolint:gosec // intentional for reproducible benchmarks

	switch cfg.mode {
	case "build":
		for shouldContinue() {
			art, err := gen.Build(context.Background(), src, gen.WithCompression(cfg.gzip), gen.WithMaxSize(1<<32-1))
			if err != nil {
				return profileStats{}, err
			}
			byteCount += int64(art.FS.DataSize())
			ops++
		}

	case "open":
		for shouldContinue() {
			path := pickPath(paths, ops, rng, cfg.readRandom)
			h, _, err := fsys.Open(path)
			if err != nil {
				return profileStats{}, err
			}
			sinkHandle = h
			ops++
		}

	case "read":
		for shouldContinue() {
			path := pickPath(paths, ops, rng, cfg.readRandom)
			content, err := fsys.Read(path)
			if err != nil {
				return profileStats{}, err
			}
			sinkBytes = content
			byteCount += int64(len(content))
			ops++
		}

	case "contents":
		for shouldContinue() {
			path := pickPath(paths, ops, rng, cfg.readRandom)
			h, _, err := fsys.Open(path)
			if err != nil {
				return profileStats{}, err
			}
			content, err := fsys.Contents(h)
			if err != nil {
				return profileStats{}, err
			}
			sinkBytes = content
			byteCount += int64(len(content))
			ops++
		}

	case "stdfs-readfile":
		var opts []erfs.StdFSOption
		if cfg.cache {
			opts = append(opts, erfs.StdFSWithCache())
		}
		readFS := fs.ReadFileFS(fsys.StdFS(opts...))
		for shouldContinue() {
			path := pickPath(paths, ops, rng, cfg.readRandom)
			content, err := readFS.ReadFile(path[1:])
			if err != nil {
				return profileStats{}, err
			}
			sinkBytes = content
			byteCount += int64(len(content))
			ops++
		}

	case "travel":
		for shouldContinue() {
			count := 0
			for ev := range fsys.Events(fsys.Root()) {
				if ev.Kind == erfs.TravelFile {
					count++
				}
			}
			if count != len(paths) {
				return profileStats{}, fmt.Errorf("traversal found %d files, want %d", count, len(paths))
			}
			sinkCount = count
			ops++
		}

	case "verify":
		for shouldContinue() {
			if err := erfs.Verify(context.Background(), fsys); err != nil {
				return profileStats{}, err
			}
			byteCount += int64(fsys.DataSize())
			ops++
		}

	case "export":
		for shouldContinue() {
			destDir := filepath.Join(rootDir, "export", fmt.Sprintf("iter-%d", ops))
			stats, err := fsys.Export(destDir)
			if err != nil {
				return profileStats{}, err
			}
			if err := os.RemoveAll(destDir); err != nil {
				return profileStats{}, err
			}
			byteCount += stats.Bytes
			ops++
		}

	default:
		return profileStats{}, fmt.Errorf("unknown mode %q (want one of: %s)", cfg.mode, modes)
	}

	return profileStats{
		ops:     ops,
		bytes:   byteCount,
		elapsed: time.Since(start),
	}, nil
}

func parseFlags() config {
	var cfg config
	flags := pflag.NewFlagSet("profiler", pflag.ExitOnError)
	flags.StringVar(&cfg.mode, "mode", "read", "mode: "+modes)
	flags.IntVar(&cfg.files, "files", 512, "number of files")
	flags.IntVar(&cfg.fileSize, "file-size", 16<<10, "file size in bytes")
	flags.IntVar(&cfg.dirCount, "dir-count", 16, "number of directories")
	flags.BoolVar(&cfg.gzip, "gzip", true, "gzip file contents when it pays off")
	flags.StringVar(&cfg.pattern, "pattern", "compressible", "pattern: compressible or random")
	flags.StringVar(&cfg.fgProfile, "fgprofile", "", "write fgprof (wall clock) profile to file")
	flags.DurationVar(&cfg.duration, "duration", 10*time.Second, "duration to run (ignored if iterations > 0)")
	flags.IntVar(&cfg.iterations, "iterations", 0, "number of iterations to run")
	flags.StringVar(&cfg.pprofAddr, "pprof-addr", "", "pprof listen address (e.g. :6060)")
	flags.StringVar(&cfg.cpuProfile, "cpuprofile", "", "write CPU profile to file")
	flags.StringVar(&cfg.memProfile, "memprofile", "", "write heap profile to file")
	flags.StringVar(&cfg.traceFile, "trace", "", "write trace to file")
	flags.BoolVar(&cfg.cache, "cache", false, "cache decompressed content in stdfs-readfile mode")
	flags.BoolVar(&cfg.readRandom, "read-random", true, "randomize path selection")
	flags.StringVar(&cfg.tempDir, "temp-dir", "", "directory to use for dataset")
	flags.BoolVar(&cfg.keepTemp, "keep-temp", false, "keep temp dir after run")
	flags.Int64Var(&cfg.randomSeed, "seed", 1, "random seed")
	_ = flags.Parse(os.Args[1:]) //nolint:errcheck // ExitOnError exits on failure
	return cfg
}

func pickPath(paths []string, idx int, rng *rand.Rand, random bool) string {
	if random {
		return paths[rng.Intn(len(paths))]
	}
	return paths[idx%len(paths)]
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func setupTempDir(cfg config) (string, func() error, error) {
	if cfg.tempDir != "" {
		return cfg.tempDir, nil, os.MkdirAll(cfg.tempDir, 0o755) //nolint:gosec // 0o755 is intentional for profiler temp dirs
	}
	dir, err := os.MkdirTemp("", "erfs-profiler-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() error {
		if cfg.keepTemp {
			return nil
		}
		return os.RemoveAll(dir)
	}
	return dir, cleanup, nil
}

// makeFiles writes the synthetic tree and returns the absolute erfs path of
// every file.
func makeFiles(dir string, fileCount, fileSize, dirCount int, pattern string, seed int64) ([]string, error) {
	if fileCount <= 0 {
		return nil, errors.New("files must be positive")
	}
	if dirCount <= 0 {
		dirCount = 1
	}
	paths := make([]string, 0, fileCount)
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // intentional use for reproducible benchmarks
	for i := range fileCount {
		relPath := fmt.Sprintf("dir%02d/file%05d.dat", i%dirCount, i)
		fullPath := filepath.Join(dir, filepath.FromSlash(relPath))
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil { //nolint:gosec // 0o755 is intentional for profiler
			return nil, err
		}

		content := make([]byte, fileSize)
		switch pattern {
		case "random":
			if _, err := rng.Read(content); err != nil {
				return nil, err
			}
		default:
			fillByte := byte('a' + (i % 26))
			for j := range content {
				content[j] = fillByte
			}
			if len(content) > 0 {
				content[0] = byte(i)
			}
		}

		if err := os.WriteFile(fullPath, content, 0o644); err != nil { //nolint:gosec // 0o644 is intentional for profiler test files
			return nil, err
		}
		paths = append(paths, "/"+relPath)
	}
	return paths, nil
}
