package gen

import (
	"fmt"
	"strings"
)

// Target is a set of output representations.
type Target uint8

const (
	// TargetC renders a C source file and header for resource_fs.h.
	TargetC Target = 1 << iota
	// TargetGo renders Go source holding the table and data as constants.
	TargetGo
	// TargetBin writes the binary artifact with a //go:embed accessor.
	TargetBin
)

var targetNames = []struct {
	t    Target
	name string
}{
	{TargetC, "c"},
	{TargetGo, "go"},
	{TargetBin, "bin"},
}

// String returns the comma-separated target names, e.g. "c,go".
func (t Target) String() string {
	var names []string
	for _, tn := range targetNames {
		if t&tn.t != 0 {
			names = append(names, tn.name)
		}
	}
	return strings.Join(names, ",")
}

// Has reports whether t includes every target in other.
func (t Target) Has(other Target) bool {
	return t&other == other
}

// ParseTarget maps one target name ("c", "go" or "bin") to its Target.
func ParseTarget(s string) (Target, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, tn := range targetNames {
		if tn.name == name {
			return tn.t, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown target %q", ErrInvalidOption, s)
}

// ParseTargets combines target names. Each element may itself be a
// comma-separated list.
func ParseTargets(list ...string) (Target, error) {
	var t Target
	for _, item := range list {
		for name := range strings.SplitSeq(item, ",") {
			if strings.TrimSpace(name) == "" {
				continue
			}
			one, err := ParseTarget(name)
			if err != nil {
				return 0, err
			}
			t |= one
		}
	}
	return t, nil
}

func (t Target) validate() error {
	if t == 0 {
		return fmt.Errorf("%w: no target", ErrInvalidOption)
	}
	if t&^(TargetC|TargetGo|TargetBin) != 0 {
		return fmt.Errorf("%w: unknown target bits %#x", ErrInvalidOption, uint8(t))
	}
	if t.Has(TargetGo | TargetBin) {
		return fmt.Errorf("%w: targets go and bin declare the same accessor", ErrInvalidOption)
	}
	return nil
}
