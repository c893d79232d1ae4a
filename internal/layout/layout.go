// Package layout assigns entry indices and data offsets to a source tree.
//
// Indices follow one rule: the root is entry 0 and, at every directory, all
// immediate children receive the next indices as one contiguous block before
// any child directory is descended into. The data blob holds every name in
// index order followed by every file's stored content in index order.
package layout

import (
	"fmt"

	"github.com/meigma/erfs"
	"github.com/meigma/erfs/internal/compress"
	"github.com/meigma/erfs/internal/sizing"
	"github.com/meigma/erfs/internal/tree"
)

// ContentFunc returns the bytes to store for a file node and whether they
// are gzipped.
type ContentFunc func(n *tree.Node) (stored []byte, gzipped bool, err error)

// Store returns a ContentFunc that reads each file and applies p.
// A nil policy stores everything uncompressed.
func Store(p *compress.Policy) ContentFunc {
	return func(n *tree.Node) ([]byte, bool, error) {
		content, err := n.ReadContent()
		if err != nil {
			return nil, false, err
		}
		stored, gzipped := p.Apply(n.Path, content)
		return stored, gzipped, nil
	}
}

// Layout is a planned artifact.
type Layout struct {
	// Entries is the entry table in index order.
	Entries []erfs.Entry

	// Data is the names region followed by the contents region.
	Data []byte

	// NamesSize is the length of the names region.
	NamesSize uint32

	// Nodes maps each entry index to its source node.
	Nodes []*tree.Node
}

// FS returns a reader over the layout.
func (l *Layout) FS() (*erfs.FS, error) {
	return erfs.New(l.Entries, l.Data)
}

// planner holds the state of one Plan call.
type planner struct {
	nodes   []*tree.Node
	entries []erfs.Entry
	data    []byte
}

// Plan lays out the tree below root. The result depends only on the tree and
// the content function, so equal inputs give byte-identical layouts.
//
// Any offset, size or count beyond 32 bits fails with tree.ErrSourceTooLarge.
func Plan(root *tree.Node, content ContentFunc) (*Layout, error) {
	if root == nil || !root.IsDir() || content == nil {
		return nil, erfs.ErrInvalidInput
	}

	p := &planner{}
	p.nodes = append(p.nodes, root)
	p.entries = append(p.entries, erfs.Entry{Flags: erfs.FlagDirectory})
	if err := p.assign(0); err != nil {
		return nil, err
	}
	if _, err := sizing.ToUint32(len(p.entries), tooLarge("entry count")); err != nil {
		return nil, err
	}

	namesSize, err := p.placeNames()
	if err != nil {
		return nil, err
	}
	if err := p.placeContents(content); err != nil {
		return nil, err
	}

	return &Layout{
		Entries:   p.entries,
		Data:      p.data,
		NamesSize: namesSize,
		Nodes:     p.nodes,
	}, nil
}

// assign gives the children of nodes[idx] one contiguous block of indices,
// then recurses into the child directories in order.
func (p *planner) assign(idx int) error {
	n := p.nodes[idx]
	if len(n.Children) == 0 {
		return nil
	}

	start, err := sizing.ToUint32(len(p.nodes), tooLarge("entry count"))
	if err != nil {
		return err
	}
	count, err := sizing.ToUint32(len(n.Children), tooLarge("child count"))
	if err != nil {
		return err
	}
	p.entries[idx].DataOffset = start
	p.entries[idx].DataSize = count

	for _, c := range n.Children {
		var flags erfs.Flags
		if c.IsDir() {
			flags = erfs.FlagDirectory
		}
		p.nodes = append(p.nodes, c)
		p.entries = append(p.entries, erfs.Entry{Flags: flags})
	}
	for i, c := range n.Children {
		if !c.IsDir() {
			continue
		}
		if err := p.assign(int(start) + i); err != nil {
			return err
		}
	}
	return nil
}

// placeNames writes every name in index order.
func (p *planner) placeNames() (uint32, error) {
	var offset uint32
	for i, n := range p.nodes {
		size, err := sizing.ToUint32(len(n.Name), tooLarge("name size"))
		if err != nil {
			return 0, err
		}
		end, ok := sizing.AddUint32(offset, size)
		if !ok {
			return 0, tooLarge("names region")
		}
		p.entries[i].NameOffset = offset
		p.entries[i].NameSize = size
		p.data = append(p.data, n.Name...)
		offset = end
	}
	return offset, nil
}

// placeContents appends every file's stored content in index order.
func (p *planner) placeContents(content ContentFunc) error {
	offset, err := sizing.ToUint32(len(p.data), tooLarge("data"))
	if err != nil {
		return err
	}
	for i, n := range p.nodes {
		if n.IsDir() {
			continue
		}
		stored, gzipped, err := content(n)
		if err != nil {
			return err
		}
		size, err := sizing.ToUint32(len(stored), tooLarge(n.Path))
		if err != nil {
			return err
		}
		end, ok := sizing.AddUint32(offset, size)
		if !ok {
			return tooLarge(n.Path)
		}
		p.entries[i].DataOffset = offset
		p.entries[i].DataSize = size
		if gzipped {
			p.entries[i].Flags |= erfs.FlagGzipped
		}
		p.data = append(p.data, stored...)
		offset = end
	}
	return nil
}

func tooLarge(what string) error {
	return fmt.Errorf("%w: %s exceeds the 32-bit range", tree.ErrSourceTooLarge, what)
}
