package render

import (
	"bytes"
	"fmt"

	"github.com/meigma/erfs"
	"github.com/meigma/erfs/internal/literal"
)

const cBanner = `/*
 * Code generated by erfs; DO NOT EDIT.
 * The tree is embedded as a static ErfsFileSystem for resource_fs.h.
 */
`

// C renders erfs_<id>.c, holding a static ErfsFileSystem initializer, and
// erfs_<id>.h, declaring its accessor.
func C(in Input) ([]Unit, error) {
	l := in.Layout
	name := "erfs_" + in.ID

	var src bytes.Buffer
	src.WriteString(cBanner)
	src.WriteString("#define __ERFS_IMPL__\n")
	src.WriteString("#include \"resource_fs.h\"\n")
	fmt.Fprintf(&src, "#include \"%s.h\"\n\n", name)

	fmt.Fprintf(&src, "static const ErfsFileSystem %s_ = {\n", name)
	src.WriteString("  .data = (uint8_t *)\n")
	if err := writeBlob(literal.NewEncoder(&src, literal.C), l); err != nil {
		return nil, err
	}
	src.WriteString("  ,\n")
	fmt.Fprintf(&src, "  .data_size = %d,\n", len(l.Data))
	fmt.Fprintf(&src, "  .entry_count = %d,\n", len(l.Entries))
	src.WriteString("  // {name_offset, name_size, data_offset, data_size, flags}\n")
	src.WriteString("  .entries = (ErfsEntry[]){\n")
	for i, e := range l.Entries {
		fmt.Fprintf(&src, "    // %s\n", literal.SanitizeComment(entryComment(i, l.Nodes[i])))
		fmt.Fprintf(&src, "    {%d, %d, %d, %d, %s},\n", e.NameOffset, e.NameSize, e.DataOffset, e.DataSize, cFlags(e.Flags))
	}
	src.WriteString("  },\n")
	src.WriteString("};\n\n")
	fmt.Fprintf(&src, "const ErfsFileSystem* %s(void) {\n", name)
	fmt.Fprintf(&src, "  return &%s_;\n", name)
	src.WriteString("}\n")

	var hdr bytes.Buffer
	hdr.WriteString(cBanner)
	hdr.WriteString("#pragma once\n\n")
	hdr.WriteString("#include \"resource_fs.h\"\n\n")
	hdr.WriteString("#if defined(__cplusplus)\nextern \"C\" {\n#endif\n\n")
	fmt.Fprintf(&hdr, "const ErfsFileSystem* %s(void);\n\n", name)
	hdr.WriteString("#if defined(__cplusplus)\n}\n#endif\n")

	return []Unit{
		{Name: name + ".c", Data: src.Bytes()},
		{Name: name + ".h", Data: hdr.Bytes()},
	}, nil
}

func cFlags(f erfs.Flags) string {
	switch f & (erfs.FlagDirectory | erfs.FlagGzipped) {
	case erfs.FlagDirectory:
		return "ERFS_DIRECTORY"
	case erfs.FlagGzipped:
		return "ERFS_GZIPPED"
	case erfs.FlagDirectory | erfs.FlagGzipped:
		return "ERFS_DIRECTORY | ERFS_GZIPPED"
	default:
		return "0"
	}
}
