package erfs

import "iter"

// TravelKind identifies a traversal event.
type TravelKind uint8

const (
	// TravelEnter is reported before the children of a directory.
	TravelEnter TravelKind = iota
	// TravelLeave is reported after the children of a directory.
	TravelLeave
	// TravelFile is reported once for every file.
	TravelFile
)

// String returns the event name.
func (k TravelKind) String() string {
	switch k {
	case TravelEnter:
		return "enter"
	case TravelLeave:
		return "leave"
	case TravelFile:
		return "file"
	default:
		return "unknown"
	}
}

// VisitFunc is called for every traversal event. Returning a non-nil error
// stops the walk; Travel returns that error unchanged.
type VisitFunc func(h Handle, kind TravelKind) error

// Event is one step of a traversal.
type Event struct {
	Handle Handle
	Kind   TravelKind
	// Depth is 0 for the starting entry.
	Depth int
}

// Travel walks the tree below h depth-first in pre-order. Directories produce
// an enter event, their children in name order, then a leave event. Files
// produce a single file event.
func (f *FS) Travel(h Handle, fn VisitFunc) error {
	if fn == nil {
		return ErrInvalidInput
	}
	if _, err := f.Entry(h); err != nil {
		return err
	}
	return f.travel(h, fn)
}

func (f *FS) travel(h Handle, fn VisitFunc) error {
	e := f.entries[h]
	if !e.IsDir() {
		return fn(h, TravelFile)
	}
	if err := fn(h, TravelEnter); err != nil {
		return err
	}
	for i := range e.DataSize {
		if err := f.travel(Handle(e.DataOffset+i), fn); err != nil {
			return err
		}
	}
	return fn(h, TravelLeave)
}

// Events returns the traversal of Travel as a lazy sequence. Stopping the
// range loop stops the walk. An invalid handle yields nothing.
func (f *FS) Events(h Handle) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		if _, err := f.Entry(h); err != nil {
			return
		}
		f.events(h, 0, yield)
	}
}

func (f *FS) events(h Handle, depth int, yield func(Event) bool) bool {
	e := f.entries[h]
	if !e.IsDir() {
		return yield(Event{Handle: h, Kind: TravelFile, Depth: depth})
	}
	if !yield(Event{Handle: h, Kind: TravelEnter, Depth: depth}) {
		return false
	}
	for i := range e.DataSize {
		if !f.events(Handle(e.DataOffset+i), depth+1, yield) {
			return false
		}
	}
	return yield(Event{Handle: h, Kind: TravelLeave, Depth: depth})
}

// Paths returns every entry with its absolute slash-separated path, in
// traversal order. The root is reported as "/".
func (f *FS) Paths() iter.Seq2[string, Handle] {
	return func(yield func(string, Handle) bool) {
		f.paths(RootHandle, "/", yield)
	}
}

func (f *FS) paths(h Handle, path string, yield func(string, Handle) bool) bool {
	if !yield(path, h) {
		return false
	}
	e := f.entries[h]
	if !e.IsDir() {
		return true
	}
	prefix := path
	if prefix != "/" {
		prefix += "/"
	}
	for i := range e.DataSize {
		child := Handle(e.DataOffset + i)
		if !f.paths(child, prefix+string(f.name(f.entries[child])), yield) {
			return false
		}
	}
	return true
}
