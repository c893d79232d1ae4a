package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/meigma/erfs/gen"
	"github.com/meigma/erfs/internal/config"
)

func runGen(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		debug      bool
		gzip       bool
		targets    []string
		pkg        string
		maxSize    uint64
		manifest   bool
		progress   bool
		configPath string
	)
	fs := newFlagSet("gen", "[flags] <source> <id> <dest>", stderr, &debug)
	fs.BoolVar(&gzip, "gzip", false, "gzip file contents when it saves at least 20%")
	fs.StringSliceVar(&targets, "target", []string{"c"}, "output targets: c, go, bin")
	fs.StringVar(&pkg, "package", "", "package name of generated Go files (default \"assets\")")
	fs.Uint64Var(&maxSize, "max-size", 0, "ceiling on names plus contents in bytes (default 100 MiB)")
	fs.BoolVar(&manifest, "manifest", false, "also write erfs_<id>.manifest with per-file digests")
	fs.BoolVar(&progress, "progress", false, "report progress on stderr")
	fs.StringVarP(&configPath, "config", "c", "", "run the jobs of a YAML job file instead")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	want := 3
	if configPath != "" {
		want = 0
	}
	pos, err := checkArgs(fs, want)
	if err != nil {
		return err
	}
	common := []gen.Option{gen.WithLogger(newLogger(stderr, debug))}
	if progress {
		common = append(common, gen.WithProgress(printProgress(stderr)))
	}

	if configPath != "" {
		return runJobs(ctx, configPath, stdout, common...)
	}

	t, err := gen.ParseTargets(targets...)
	if err != nil {
		return err
	}
	res, err := gen.Generate(ctx, pos[0], pos[1], pos[2], append([]gen.Option{
		gen.WithTargets(t),
		gen.WithCompression(gzip),
		gen.WithPackage(pkg),
		gen.WithMaxSize(maxSize),
		gen.WithManifest(manifest),
	}, common...)...)
	if err != nil {
		return err
	}
	printResult(stdout, res)
	return nil
}

func runJobs(ctx context.Context, path string, stdout io.Writer, extra ...gen.Option) error {
	f, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	if err := f.Validate(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	for i, job := range f.Jobs {
		opts, err := job.Options()
		if err != nil {
			return fmt.Errorf("jobs[%d]: %w", i, err)
		}
		res, err := gen.Generate(ctx, job.Source, job.ID, job.Dest, append(opts, extra...)...)
		if err != nil {
			return fmt.Errorf("jobs[%d] (%s): %w", i, job.ID, err)
		}
		printResult(stdout, res)
	}
	return nil
}

func printResult(w io.Writer, res *gen.Result) {
	for _, f := range res.Files {
		fmt.Fprintf(w, "wrote %s\n", f)
	}
	fmt.Fprintf(w, "%d entries, %d bytes of data, %d gzipped\n", res.FS.Len(), res.FS.DataSize(), res.Gzipped)
}

func printProgress(w io.Writer) gen.ProgressFunc {
	return func(ev gen.ProgressEvent) {
		switch ev.Stage {
		case gen.StageStoring:
			fmt.Fprintf(w, "%s %d/%d %s\n", ev.Stage, ev.FilesDone, ev.FilesTotal, ev.Path)
		default:
			fmt.Fprintf(w, "%s %s\n", ev.Stage, ev.Path)
		}
	}
}
