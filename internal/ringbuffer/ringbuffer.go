// Package ringbuffer implements a fixed-capacity single-producer
// single-consumer queue of samples.
//
// Push and Pop never block, never allocate and never take a lock: the
// producer only ever advances the tail and the consumer only ever advances
// the head. An atomic store of an index publishes everything written to the
// slots before it, so a consumer observing a new tail also observes the
// sample written at that slot.
package ringbuffer

import (
	"sync/atomic"

	"github.com/getsentry/stackprof/internal/sample"
)

// Ringbuffer is a circular buffer of samples. One slot is kept free to tell
// a full buffer apart from an empty one.
type Ringbuffer struct {
	samples []sample.Sample
	size    uint64

	// head is owned by the consumer, tail by the producer.
	head atomic.Uint64
	tail atomic.Uint64
}

// New returns a ring buffer able to hold capacity samples.
func New(capacity int) *Ringbuffer {
	if capacity < 1 {
		capacity = 1
	}
	size := uint64(capacity) + 1
	return &Ringbuffer{
		samples: make([]sample.Sample, size),
		size:    size,
	}
}

// Push copies s into the buffer. It returns false and leaves the buffer
// untouched if it is full. Only one goroutine may push at a time.
func (r *Ringbuffer) Push(s *sample.Sample) bool {
	tail := r.tail.Load()
	next := (tail + 1) % r.size
	if next == r.head.Load() {
		return false
	}
	r.samples[tail] = *s
	r.tail.Store(next)
	return true
}

// Pop copies the oldest sample into s. It returns false if the buffer is
// empty. Only one goroutine may pop at a time.
func (r *Ringbuffer) Pop(s *sample.Sample) bool {
	head := r.head.Load()
	if head == r.tail.Load() {
		return false
	}
	*s = r.samples[head]
	r.head.Store((head + 1) % r.size)
	return true
}

// Walk calls visit for every sample between a snapshot of the head and the
// tail, oldest first, without consuming them. Samples pushed after the
// snapshot are not visited. The caller must make sure no Pop runs
// concurrently, otherwise visited slots could be recycled by the producer.
func (r *Ringbuffer) Walk(visit func(*sample.Sample)) {
	head := r.head.Load()
	tail := r.tail.Load()
	for head != tail {
		visit(&r.samples[head])
		head = (head + 1) % r.size
	}
}

// Len returns the number of samples waiting to be popped.
func (r *Ringbuffer) Len() int {
	head := r.head.Load()
	tail := r.tail.Load()
	return int((tail + r.size - head) % r.size)
}

// Cap returns the number of samples the buffer can hold.
func (r *Ringbuffer) Cap() int {
	return int(r.size - 1)
}
