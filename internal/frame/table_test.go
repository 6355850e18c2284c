package frame

import (
	"testing"

	"github.com/getsentry/stackprof/internal/sample"
)

type tracerFunc func(visit func(sample.FrameID))

func (f tracerFunc) Trace(visit func(sample.FrameID)) {
	f(visit)
}

func TestTableIntern(t *testing.T) {
	table := NewTable()
	a := table.Intern(FromGoFunction("main.a", "/src/main.go", 1))
	b := table.Intern(FromGoFunction("main.b", "/src/main.go", 2))
	again := table.Intern(FromGoFunction("main.a", "/src/main.go", 1))

	if a == b {
		t.Fatal("different frames should have different identifiers")
	}
	if a != again {
		t.Fatal("interning the same frame twice should return the same identifier")
	}
	f, ok := table.Lookup(b)
	if !ok || f.Function != "main.b" {
		t.Fatalf("unexpected lookup result: %+v %v", f, ok)
	}
	if table.Len() != 2 {
		t.Fatalf("expected 2 frames, got %d", table.Len())
	}
}

func TestTableCollect(t *testing.T) {
	table := NewTable()
	kept := table.Intern(FromGoFunction("main.kept", "/src/main.go", 1))
	dropped := table.Intern(FromGoFunction("main.dropped", "/src/main.go", 2))

	retain := tracerFunc(func(visit func(sample.FrameID)) {
		visit(kept)
	})

	// Frames interned since the previous collection survive one pass.
	if released := table.Collect(retain); released != 0 {
		t.Fatalf("expected no frame to be released, got %d", released)
	}
	if released := table.Collect(retain); released != 1 {
		t.Fatalf("expected 1 frame to be released, got %d", released)
	}
	if _, ok := table.Lookup(dropped); ok {
		t.Fatal("unreferenced frame should have been released")
	}
	if _, ok := table.Lookup(kept); !ok {
		t.Fatal("referenced frame should be kept")
	}

	// A released frame gets a fresh identifier when seen again.
	if id := table.Intern(FromGoFunction("main.dropped", "/src/main.go", 2)); id == dropped {
		t.Fatal("released identifiers should not be reused")
	}
}
