package erfs

import (
	"encoding/binary"
	"fmt"
	"io"
)

// headerSize is the size of the entry_count and data_size fields.
const headerSize = 8

// Load parses a binary artifact:
//
//	entry_count uint32
//	data_size   uint32
//	entries     [entry_count]{name_offset, name_size, data_offset, data_size, flags uint32}
//	data        [data_size]byte
//
// All integers are little-endian. The entry table is decoded once; the data
// blob is a subslice of b, which must not be modified afterwards.
func Load(b []byte) (*FS, error) {
	if len(b) < headerSize {
		return nil, fmt.Errorf("%w: short header", ErrCorrupt)
	}
	count := binary.LittleEndian.Uint32(b[0:4])
	dataSize := binary.LittleEndian.Uint32(b[4:8])

	tableEnd := uint64(headerSize) + uint64(count)*EntrySize
	end := tableEnd + uint64(dataSize)
	if end != uint64(len(b)) {
		return nil, fmt.Errorf("%w: expected %d bytes, have %d", ErrCorrupt, end, len(b))
	}

	entries := make([]Entry, count)
	off := headerSize
	for i := range entries {
		rec := b[off : off+EntrySize]
		entries[i] = Entry{
			NameOffset: binary.LittleEndian.Uint32(rec[0:4]),
			NameSize:   binary.LittleEndian.Uint32(rec[4:8]),
			DataOffset: binary.LittleEndian.Uint32(rec[8:12]),
			DataSize:   binary.LittleEndian.Uint32(rec[12:16]),
			Flags:      Flags(binary.LittleEndian.Uint32(rec[16:20])),
		}
		off += EntrySize
	}
	return New(entries, b[tableEnd:end:end])
}

// LoadString is like Load for an artifact held in a string, such as one
// embedded with //go:embed. The string is not copied.
func LoadString(s string) (*FS, error) {
	return Load(stringBytes(s))
}

// MarshalBinary encodes the filesystem in the format read by Load.
func (f *FS) MarshalBinary() ([]byte, error) {
	return f.AppendBinary(make([]byte, 0, f.binarySize()))
}

// AppendBinary appends the binary encoding of the filesystem to b.
func (f *FS) AppendBinary(b []byte) ([]byte, error) {
	b = binary.LittleEndian.AppendUint32(b, uint32(len(f.entries))) //nolint:gosec // validated by New
	b = binary.LittleEndian.AppendUint32(b, uint32(len(f.data)))    //nolint:gosec // validated by New
	for _, e := range f.entries {
		b = appendEntry(b, e)
	}
	return append(b, f.data...), nil
}

// WriteTo writes the binary encoding of the filesystem to w.
func (f *FS) WriteTo(w io.Writer) (int64, error) {
	var header [headerSize]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(f.entries))) //nolint:gosec // validated by New
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(f.data)))    //nolint:gosec // validated by New

	var total int64
	n, err := w.Write(header[:])
	total += int64(n)
	if err != nil {
		return total, err
	}

	table := make([]byte, 0, len(f.entries)*EntrySize)
	for _, e := range f.entries {
		table = appendEntry(table, e)
	}
	n, err = w.Write(table)
	total += int64(n)
	if err != nil {
		return total, err
	}

	n, err = w.Write(f.data)
	total += int64(n)
	return total, err
}

func (f *FS) binarySize() int {
	return headerSize + len(f.entries)*EntrySize + len(f.data)
}

func appendEntry(b []byte, e Entry) []byte {
	b = binary.LittleEndian.AppendUint32(b, e.NameOffset)
	b = binary.LittleEndian.AppendUint32(b, e.NameSize)
	b = binary.LittleEndian.AppendUint32(b, e.DataOffset)
	b = binary.LittleEndian.AppendUint32(b, e.DataSize)
	return binary.LittleEndian.AppendUint32(b, uint32(e.Flags))
}
