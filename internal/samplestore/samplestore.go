// Package samplestore holds the samples drained from a ring buffer for the
// lifetime of a profiling session.
package samplestore

import (
	"errors"

	"github.com/getsentry/stackprof/internal/sample"
)

// ErrCapacityExceeded is returned when the store would need to grow beyond
// its configured maximum capacity.
var ErrCapacityExceeded = errors.New("sample store capacity exceeded")

// Store is a growable sequence of samples. Its capacity doubles when it is
// full and never shrinks. Store is not safe for concurrent use, callers
// synchronize access themselves.
type Store struct {
	samples []sample.Sample
	length  int
	// maxCapacity bounds growth, 0 means unbounded.
	maxCapacity int
}

// New returns a store with room for initialCapacity samples. Growth past
// maxCapacity fails with ErrCapacityExceeded, a maxCapacity of 0 disables
// the limit.
func New(initialCapacity, maxCapacity int) *Store {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	if maxCapacity > 0 && initialCapacity > maxCapacity {
		initialCapacity = maxCapacity
	}
	return &Store{
		samples:     make([]sample.Sample, initialCapacity),
		maxCapacity: maxCapacity,
	}
}

// Len returns the number of stored samples.
func (s *Store) Len() int {
	return s.length
}

// Cap returns the number of samples the store can hold before growing.
func (s *Store) Cap() int {
	return len(s.samples)
}

// Reserve makes sure there is room for one more sample, doubling the
// capacity if needed.
func (s *Store) Reserve() error {
	if s.length < len(s.samples) {
		return nil
	}
	newCapacity := len(s.samples) * 2
	if s.maxCapacity > 0 && newCapacity > s.maxCapacity {
		return ErrCapacityExceeded
	}
	samples := make([]sample.Sample, newCapacity)
	copy(samples, s.samples[:s.length])
	s.samples = samples
	return nil
}

// Append copies smp at the end of the store.
func (s *Store) Append(smp *sample.Sample) error {
	if err := s.Reserve(); err != nil {
		return err
	}
	s.samples[s.length] = *smp
	s.length++
	return nil
}

// Samples returns the stored samples. The slice aliases the store and is
// only valid until the next Append.
func (s *Store) Samples() []sample.Sample {
	return s.samples[:s.length]
}

// Visit calls visit for every frame identifier of every stored sample.
func (s *Store) Visit(visit func(sample.FrameID)) {
	for i := 0; i < s.length; i++ {
		s.samples[i].Visit(visit)
	}
}
