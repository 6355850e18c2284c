package ringbuffer

import (
	"runtime"
	"sync"
	"testing"

	"github.com/getsentry/stackprof/internal/sample"
	"github.com/getsentry/stackprof/internal/testutil"
)

func newSample(id uint64, depth int) *sample.Sample {
	s := &sample.Sample{Timestamp: id}
	for i := 0; i < depth; i++ {
		s.Append(sample.FrameID(id*1000 + uint64(i)))
	}
	return s
}

func TestPushPop(t *testing.T) {
	r := New(4)
	want := newSample(1, 3)
	if !r.Push(want) {
		t.Fatal("push should succeed on an empty buffer")
	}
	var got sample.Sample
	if !r.Pop(&got) {
		t.Fatal("pop should succeed after a push")
	}
	if diff := testutil.Diff(got, *want); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
	if r.Pop(&got) {
		t.Fatal("pop should fail on an empty buffer")
	}
}

func TestPushFull(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
	}{
		{name: "single slot", capacity: 1},
		{name: "small", capacity: 3},
		{name: "default", capacity: 1000},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			r := New(test.capacity)
			for i := 0; i < test.capacity; i++ {
				if !r.Push(newSample(uint64(i), 2)) {
					t.Fatalf("push %d should succeed", i)
				}
			}
			if r.Push(newSample(9999, 2)) {
				t.Fatal("push should fail on a full buffer")
			}
			if r.Len() != test.capacity {
				t.Fatalf("expected %d samples, got %d", test.capacity, r.Len())
			}
			for i := 0; i < test.capacity; i++ {
				var got sample.Sample
				if !r.Pop(&got) {
					t.Fatalf("pop %d should succeed", i)
				}
				if diff := testutil.Diff(got, *newSample(uint64(i), 2)); diff != "" {
					t.Fatalf("Result mismatch: got - want +\n%s", diff)
				}
			}
		})
	}
}

func TestWrapAround(t *testing.T) {
	r := New(3)
	var got sample.Sample
	for i := uint64(0); i < 20; i++ {
		if !r.Push(newSample(i, 1)) {
			t.Fatalf("push %d should succeed", i)
		}
		if !r.Pop(&got) {
			t.Fatalf("pop %d should succeed", i)
		}
		if got.Timestamp != i {
			t.Fatalf("expected sample %d, got %d", i, got.Timestamp)
		}
	}
	if r.Len() != 0 {
		t.Fatalf("expected an empty buffer, got %d samples", r.Len())
	}
}

func TestWalk(t *testing.T) {
	r := New(4)
	var got sample.Sample
	// Move the indices so the walked range wraps around the end of the slice.
	for i := uint64(0); i < 3; i++ {
		r.Push(newSample(i, 1))
		r.Pop(&got)
	}
	for i := uint64(10); i < 14; i++ {
		r.Push(newSample(i, 2))
	}

	var visited []sample.FrameID
	r.Walk(func(s *sample.Sample) {
		s.Visit(func(id sample.FrameID) {
			visited = append(visited, id)
		})
	})

	want := []sample.FrameID{10000, 10001, 11000, 11001, 12000, 12001, 13000, 13001}
	if diff := testutil.Diff(visited, want); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
	if r.Len() != 4 {
		t.Fatalf("walk should not consume samples, got %d left", r.Len())
	}
}

func TestConcurrentProducerConsumer(t *testing.T) {
	const n = 20000
	r := New(16)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint64(0); i < n; {
			if !r.Push(newSample(i, int(i%5)+1)) {
				runtime.Gosched()
				continue
			}
			i++
		}
	}()

	var got sample.Sample
	for i := uint64(0); i < n; {
		if !r.Pop(&got) {
			runtime.Gosched()
			continue
		}
		want := newSample(i, int(i%5)+1)
		if got != *want {
			t.Fatalf("sample %d was corrupted: got %+v", i, got.Stack())
		}
		i++
	}
	wg.Wait()

	if r.Pop(&got) {
		t.Fatal("no sample should be left")
	}
}
