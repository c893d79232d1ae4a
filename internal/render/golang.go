package render

import (
	"bytes"
	"fmt"

	"github.com/meigma/erfs"
	"github.com/meigma/erfs/internal/literal"
)

// Go renders erfs_<id>_data.go, holding the entry table and data constant,
// and erfs_<id>.go, declaring the accessor.
func Go(in Input) ([]Unit, error) {
	l := in.Layout
	name := "erfs_" + in.ID
	lower := unexported(in.ID)

	var data bytes.Buffer
	fmt.Fprintf(&data, "%s\n\npackage %s\n\n", Banner, in.pkg())
	data.WriteString("import \"github.com/meigma/erfs\"\n\n")
	fmt.Fprintf(&data, "// %sEntries is the entry table: {name_offset, name_size, data_offset, data_size, flags}.\n", lower)
	fmt.Fprintf(&data, "var %sEntries = []erfs.Entry{\n", lower)
	for i, e := range l.Entries {
		fmt.Fprintf(&data, "\t// %s\n", literal.SanitizeComment(entryComment(i, l.Nodes[i])))
		fmt.Fprintf(&data, "\t{NameOffset: %d, NameSize: %d, DataOffset: %d, DataSize: %d%s},\n",
			e.NameOffset, e.NameSize, e.DataOffset, e.DataSize, goFlags(e.Flags))
	}
	data.WriteString("}\n\n")
	fmt.Fprintf(&data, "// %sData holds every entry name followed by every file content.\n", lower)
	fmt.Fprintf(&data, "const %sData =\n", lower)
	if err := writeBlob(literal.NewEncoder(&data, literal.Go), l); err != nil {
		return nil, err
	}

	accessor := goAccessor(in, "", "erfs.NewString("+lower+"Entries, "+lower+"Data)")

	return []Unit{
		{Name: name + "_data.go", Data: data.Bytes()},
		{Name: name + ".go", Data: accessor},
	}, nil
}

// goAccessor renders a file declaring the exported accessor for id. The
// constructor expression must return (*erfs.FS, error).
func goAccessor(in Input, preamble, constructor string) []byte {
	lower := unexported(in.ID)
	exported := Exported(in.ID)

	var b bytes.Buffer
	fmt.Fprintf(&b, "%s\n\npackage %s\n\n", Banner, in.pkg())
	b.WriteString("import (\n")
	if preamble != "" {
		b.WriteString("\t_ \"embed\"\n")
	}
	b.WriteString("\t\"sync\"\n\n\t\"github.com/meigma/erfs\"\n)\n\n")
	b.WriteString(preamble)
	fmt.Fprintf(&b, "var %sFS = sync.OnceValue(func() *erfs.FS {\n", lower)
	fmt.Fprintf(&b, "\treturn erfs.Must(%s)\n", constructor)
	b.WriteString("})\n\n")
	fmt.Fprintf(&b, "// %s returns the embedded filesystem %q.\n", exported, in.ID)
	fmt.Fprintf(&b, "func %s() *erfs.FS {\n", exported)
	fmt.Fprintf(&b, "\treturn %sFS()\n", lower)
	b.WriteString("}\n")
	return b.Bytes()
}

func goFlags(f erfs.Flags) string {
	switch f & (erfs.FlagDirectory | erfs.FlagGzipped) {
	case erfs.FlagDirectory:
		return ", Flags: erfs.FlagDirectory"
	case erfs.FlagGzipped:
		return ", Flags: erfs.FlagGzipped"
	case erfs.FlagDirectory | erfs.FlagGzipped:
		return ", Flags: erfs.FlagDirectory | erfs.FlagGzipped"
	default:
		return ""
	}
}
