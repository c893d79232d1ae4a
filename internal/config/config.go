// Package config loads erfs job files.
//
// A job file lists generation runs so a build can regenerate every
// embedded filesystem with one command:
//
//	defaults:
//	  gzip: true
//	  targets: [go]
//	  package: assets
//	jobs:
//	  - source: web/dist
//	    id: static
//	    dest: internal/assets
//	  - source: firmware/resources
//	    id: fw
//	    dest: firmware/generated
//	    targets: [c]
//	    skip_compression: ["*.lz4"]
//
// Relative paths are resolved against the directory holding the file.
// ${VAR} and ${VAR:-default} are expanded from the environment in paths.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/meigma/erfs/gen"
)

// File is a parsed job file.
type File struct {
	// Defaults fills fields left unset in every job.
	Defaults Job `yaml:"defaults"`

	// Jobs are run in order.
	Jobs []Job `yaml:"jobs"`
}

// Job describes one generation run.
type Job struct {
	// Source is the directory or file to embed.
	Source string `yaml:"source"`

	// ID names the generated files and accessor.
	ID string `yaml:"id"`

	// Dest is the existing output directory.
	Dest string `yaml:"dest"`

	// Targets lists output representations: c, go, bin.
	// Default: [c]
	Targets []string `yaml:"targets"`

	// Gzip enables opportunistic compression.
	Gzip *bool `yaml:"gzip"`

	// Package is the package clause of generated Go files.
	// Default: assets
	Package string `yaml:"package"`

	// MaxSize is the ceiling on names plus contents in bytes.
	// Default: 100 MiB
	MaxSize uint64 `yaml:"max_size"`

	// Manifest writes the erfs_<id>.manifest sidecar.
	Manifest *bool `yaml:"manifest"`

	// SkipCompression holds path.Match patterns; a file whose base name
	// matches any of them is stored uncompressed.
	SkipCompression []string `yaml:"skip_compression"`
}

// LoadFile reads and parses the job file at path, applies defaults and
// resolves relative paths. It does not validate; call Validate.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // the path is chosen by the user
	if err != nil {
		return nil, err
	}
	f, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	f.resolve(filepath.Dir(path))
	return f, nil
}

// Parse decodes a job file. Unknown keys are errors.
func Parse(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, err
	}
	for i := range f.Jobs {
		f.Jobs[i].inherit(f.Defaults)
	}
	return &f, nil
}

func (j *Job) inherit(d Job) {
	if j.Source == "" {
		j.Source = d.Source
	}
	if j.Dest == "" {
		j.Dest = d.Dest
	}
	if j.Targets == nil {
		j.Targets = d.Targets
	}
	if j.Gzip == nil {
		j.Gzip = d.Gzip
	}
	if j.Package == "" {
		j.Package = d.Package
	}
	if j.MaxSize == 0 {
		j.MaxSize = d.MaxSize
	}
	if j.Manifest == nil {
		j.Manifest = d.Manifest
	}
	if j.SkipCompression == nil {
		j.SkipCompression = d.SkipCompression
	}
}

func (f *File) resolve(base string) {
	for i := range f.Jobs {
		j := &f.Jobs[i]
		j.Source = resolvePath(base, j.Source)
		j.Dest = resolvePath(base, j.Dest)
	}
}

func resolvePath(base, p string) string {
	p = expandVars(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate checks every job and returns all problems joined.
func (f *File) Validate() error {
	var errs []error
	if len(f.Jobs) == 0 {
		errs = append(errs, errors.New("no jobs"))
	}
	seen := make(map[string]int)
	for i, j := range f.Jobs {
		if err := j.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("jobs[%d]: %w", i, err))
		}
		key := filepath.Join(j.Dest, j.ID)
		if prev, ok := seen[key]; ok {
			errs = append(errs, fmt.Errorf("jobs[%d]: id %q in %s already used by jobs[%d]", i, j.ID, j.Dest, prev))
			continue
		}
		seen[key] = i
	}
	return errors.Join(errs...)
}

// Validate checks the fields of one job.
func (j *Job) Validate() error {
	var errs []error
	if j.Source == "" {
		errs = append(errs, errors.New("source is required"))
	}
	if j.Dest == "" {
		errs = append(errs, errors.New("dest is required"))
	}
	if !gen.ValidID(j.ID) {
		errs = append(errs, fmt.Errorf("%w: %q", gen.ErrInvalidID, j.ID))
	}
	if _, err := gen.ParseTargets(j.Targets...); err != nil {
		errs = append(errs, err)
	}
	for _, p := range j.SkipCompression {
		if _, err := path.Match(p, ""); err != nil {
			errs = append(errs, fmt.Errorf("skip_compression %q: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

// Options converts the job to generator options.
func (j *Job) Options() ([]gen.Option, error) {
	opts := []gen.Option{
		gen.WithPackage(j.Package),
		gen.WithMaxSize(j.MaxSize),
	}
	if len(j.Targets) > 0 {
		t, err := gen.ParseTargets(j.Targets...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, gen.WithTargets(t))
	}
	if j.Gzip != nil {
		opts = append(opts, gen.WithCompression(*j.Gzip))
	}
	if j.Manifest != nil {
		opts = append(opts, gen.WithManifest(*j.Manifest))
	}
	if len(j.SkipCompression) > 0 {
		patterns := j.SkipCompression
		opts = append(opts, gen.WithSkipCompression(func(p string, _ int64) bool {
			base := path.Base(p)
			for _, pat := range patterns {
				if ok, _ := path.Match(pat, base); ok {
					return true
				}
			}
			return false
		}))
	}
	return opts, nil
}
