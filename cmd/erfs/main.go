// Command erfs generates and inspects embedded resource filesystems.
//
// Usage:
//
//	erfs gen [flags] <source> <id> <dest>
//	erfs gen --config erfs.yaml
//	erfs ls <artifact.bin>
//	erfs cat [--raw] <artifact.bin> <path>
//	erfs export [--raw] [--overwrite] <artifact.bin> <dir>
//	erfs verify [--manifest <file>] <artifact.bin>
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
)

const usage = `erfs builds read-only filesystems that are compiled into a program.

Usage:
  erfs gen [flags] <source> <id> <dest>   generate C, Go or binary output
  erfs gen --config <file>                run every job in a YAML job file
  erfs ls <artifact.bin>                  list entries
  erfs cat [--raw] <artifact.bin> <path>  print a file
  erfs export [flags] <artifact.bin> <dir>
                                          write the tree to disk
  erfs verify [--manifest <file>] <artifact.bin>
                                          check structure and digests

Run "erfs <command> --help" for the flags of a command.
`

// errUsage marks command-line mistakes; they exit with status 2.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(exitCode(err, os.Stderr))
}

func exitCode(err error, stderr io.Writer) int {
	switch {
	case err == nil, errors.Is(err, pflag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	default:
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
}

type command func(ctx context.Context, args []string, stdout, stderr io.Writer) error

var commands = map[string]command{
	"gen":    runGen,
	"ls":     runLs,
	"cat":    runCat,
	"export": runExport,
	"verify": runVerify,
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("%w: missing command", errUsage)
	}
	switch args[0] {
	case "-h", "--help", "help":
		fmt.Fprint(stdout, usage)
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
	return cmd(ctx, args[1:], stdout, stderr)
}

// newFlagSet returns a flag set that reports errors instead of exiting and
// registers --debug.
func newFlagSet(name, synopsis string, stderr io.Writer, debug *bool) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SortFlags = false
	fs.BoolVar(debug, "debug", false, "log debug output to stderr")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: erfs %s %s\n\nFlags:\n", name, synopsis)
		fs.PrintDefaults()
	}
	return fs
}

// parse parses args and checks the positional argument count.
func parse(fs *pflag.FlagSet, args []string, want int) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}
	return checkArgs(fs, want)
}

func checkArgs(fs *pflag.FlagSet, want int) ([]string, error) {
	if fs.NArg() != want {
		fs.Usage()
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", errUsage, fs.Name(), want, fs.NArg())
	}
	return fs.Args(), nil
}
