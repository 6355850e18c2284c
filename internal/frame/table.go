package frame

import (
	"sync"

	"github.com/getsentry/stackprof/internal/sample"
)

type (
	// Tracer exposes every frame identifier it retains.
	Tracer interface {
		Trace(visit func(sample.FrameID))
	}

	key struct {
		function string
		path     string
		line     uint32
	}

	entry struct {
		frame  Frame
		born   uint64
		marked bool
	}

	// Table interns frames and hands out identifiers for them. Frames that
	// no tracer reports during a collection are released, unless they were
	// interned after the previous collection started.
	Table struct {
		mu         sync.Mutex
		ids        map[key]sample.FrameID
		entries    map[sample.FrameID]*entry
		next       sample.FrameID
		generation uint64
	}
)

func NewTable() *Table {
	return &Table{
		ids:     make(map[key]sample.FrameID),
		entries: make(map[sample.FrameID]*entry),
	}
}

// Intern returns the identifier of f, registering it if needed.
func (t *Table) Intern(f Frame) sample.FrameID {
	k := key{function: f.Function, path: f.Path, line: f.Line}

	t.mu.Lock()
	defer t.mu.Unlock()

	if id, ok := t.ids[k]; ok {
		// Keep the frame alive until the next collection.
		t.entries[id].born = t.generation
		return id
	}
	t.next++
	id := t.next
	t.ids[k] = id
	t.entries[id] = &entry{frame: f, born: t.generation}
	return id
}

// Lookup returns the frame registered under id.
func (t *Table) Lookup(id sample.FrameID) (Frame, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok {
		return Frame{}, false
	}
	return e.frame, true
}

// Len returns the number of live frames.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Collect runs a mark and sweep pass: every tracer reports the identifiers
// it retains, then the frames nobody reported are released. It returns the
// number of released frames.
func (t *Table) Collect(tracers ...Tracer) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	current := t.generation
	t.generation++

	for _, e := range t.entries {
		e.marked = false
	}
	mark := func(id sample.FrameID) {
		if e, ok := t.entries[id]; ok {
			e.marked = true
		}
	}
	for _, tracer := range tracers {
		tracer.Trace(mark)
	}

	var released int
	for id, e := range t.entries {
		if e.marked || e.born >= current {
			continue
		}
		delete(t.entries, id)
		delete(t.ids, key{function: e.frame.Function, path: e.frame.Path, line: e.frame.Line})
		released++
	}
	return released
}
