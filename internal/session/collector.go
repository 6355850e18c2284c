package session

import (
	"time"

	"github.com/getsentry/stackprof/internal/sample"
)

// collect drains the ring buffer into the store every collect interval
// until the session stops running, then drains it one last time.
func (s *Session) collect(wake <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	// TODO: wake up on a ring buffer high watermark instead of polling.
	ticker := time.NewTicker(s.collectInterval)
	defer ticker.Stop()

	for s.running.Load() {
		s.tryDrain()
		select {
		case <-wake:
		case <-ticker.C:
		}
	}

	// The source is disarmed by now, nothing else will be pushed.
	s.mu.Lock()
	s.drainLocked()
	s.mu.Unlock()
}

// haltCollector clears the running flag and waits for the collector to exit.
func (s *Session) haltCollector() {
	s.running.Store(false)
	close(s.wake)
	<-s.done
}

// tryDrain skips the cycle if a trace holds the store.
func (s *Session) tryDrain() {
	if !s.mu.TryLock() {
		s.skippedCollects.Add(1)
		return
	}
	defer s.mu.Unlock()
	s.drainLocked()
}

func (s *Session) drainLocked() {
	for s.rbuf.Pop(&s.popped) {
		if err := s.store.Append(&s.popped); err != nil {
			s.droppedStore.Add(1)
			s.dropLogger.Warn().
				Err(err).
				Int("capacity", s.store.Cap()).
				Msg("dropping sample: failed to expand sample store")
		}
	}
}

// Trace calls visit for every frame identifier retained by the session, in
// the ring buffer and in the store. New samples are refused while it runs.
// Only one Trace may run at a time.
func (s *Session) Trace(visit func(sample.FrameID)) {
	s.marking.Store(true)
	defer s.marking.Store(false)

	// Holding the store lock keeps the collector from popping, so the slots
	// between the ring buffer indices can't be recycled while they are
	// visited.
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.rbuf == nil {
		return
	}
	s.rbuf.Walk(func(smp *sample.Sample) {
		smp.Visit(visit)
	})
	s.store.Visit(visit)
}
