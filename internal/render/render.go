// Package render turns a planned layout into source files for each target
// representation.
package render

import (
	"fmt"
	"strings"

	"github.com/meigma/erfs"
	"github.com/meigma/erfs/internal/layout"
	"github.com/meigma/erfs/internal/literal"
	"github.com/meigma/erfs/internal/tree"
)

// DefaultPackage is the Go package name used when none is given.
const DefaultPackage = "assets"

// Banner is the first line of every generated Go file.
const Banner = "// Code generated by erfs; DO NOT EDIT."

// Unit is one generated file.
type Unit struct {
	// Name is the file name inside the destination directory.
	Name string
	Data []byte
}

// Input is everything a renderer needs.
type Input struct {
	// ID names the generated files and accessors. It matches [a-z][a-z_0-9]*.
	ID string

	// Package is the Go package of generated Go files.
	Package string

	Layout *layout.Layout

	// FS is the reader over Layout, used by the binary target.
	FS *erfs.FS
}

func (in Input) pkg() string {
	if in.Package == "" {
		return DefaultPackage
	}
	return in.Package
}

// Exported converts an id such as "web_assets" to "WebAssets".
func Exported(id string) string {
	var b strings.Builder
	for part := range strings.SplitSeq(id, "_") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

// unexported converts an id such as "web_assets" to "webAssets".
func unexported(id string) string {
	s := Exported(id)
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// entryComment describes entry i the way every textual target annotates it.
func entryComment(i int, n *tree.Node) string {
	kind := "F"
	if n.IsDir() {
		kind = "D"
	}
	return fmt.Sprintf("%s[%d]: %s", kind, i, n.Path)
}

// writeBlob writes the data blob as a literal expression: every name on its
// own line, then the contents of every file in lines of ContentLineSize bytes.
func writeBlob(enc *literal.Encoder, l *layout.Layout) error {
	enc.Comment("entry names")
	for i, e := range l.Entries {
		enc.Comment(entryComment(i, l.Nodes[i]))
		enc.Line(l.Data[e.NameOffset : e.NameOffset+e.NameSize])
	}

	first := true
	for i, e := range l.Entries {
		if e.IsDir() {
			continue
		}
		if first {
			enc.Comment("file contents")
			first = false
		}
		enc.Comment(fmt.Sprintf("[%d]: %s", i, l.Nodes[i].Path))
		enc.Chunks(l.Data[e.DataOffset:e.DataOffset+e.DataSize], literal.ContentLineSize)
	}
	return enc.Close()
}
