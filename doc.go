// Package erfs reads embedded resource filesystems.
//
// An embedded resource filesystem is a read-only directory tree compiled into a
// program. The generator (see the gen subpackage and the erfs command) walks a
// source tree and renders it as a table of fixed-width entries plus one data blob:
//
//   - Entries: 20-byte records {name_offset, name_size, data_offset, data_size, flags}
//     in an order where the children of every directory form one contiguous,
//     name-sorted range.
//   - Data: all entry names back to back, followed by all file contents.
//
// Lookups resolve a path one segment at a time with a binary search over the
// current directory's child range, so opening a path costs
// O(depth × log(fan-out)). Names and contents are returned as subslices of the
// data blob; nothing is copied.
//
// # Quick Start
//
// Generated Go code exposes an accessor returning an [*FS]:
//
//	fsys := assets.Static()
//	content, err := fsys.Read("/index.html")
//	if err != nil {
//	    return err
//	}
//
// Files stored with [FlagGzipped] must be decompressed by the caller (see
// [Decompress]) unless they are read through the [FS.StdFS] adapter, which does
// it transparently.
//
// An *FS is immutable and safe for concurrent use.
package erfs
