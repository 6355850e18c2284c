package sample

import (
	"testing"

	"github.com/getsentry/stackprof/internal/testutil"
)

func TestSampleAppend(t *testing.T) {
	var s Sample
	for i := 0; i < MaxDepth; i++ {
		if !s.Append(FrameID(i + 1)) {
			t.Fatalf("append %d should succeed", i)
		}
	}
	if s.Append(FrameID(MaxDepth + 1)) {
		t.Fatal("append past MaxDepth should fail")
	}
	if s.Depth != MaxDepth {
		t.Fatalf("expected depth %d, got %d", MaxDepth, s.Depth)
	}
}

func TestSampleVisit(t *testing.T) {
	var s Sample
	for _, id := range []FrameID{3, 1, 2} {
		s.Append(id)
	}

	var visited []FrameID
	s.Visit(func(id FrameID) {
		visited = append(visited, id)
	})

	if diff := testutil.Diff(visited, []FrameID{3, 1, 2}); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
	if diff := testutil.Diff(s.Stack(), []FrameID{3, 1, 2}); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}

	s.Reset()
	if len(s.Stack()) != 0 {
		t.Fatal("stack should be empty after reset")
	}
}
