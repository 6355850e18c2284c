// Package session drives a sampling profiler: a periodic source notifies a
// handler which captures the stack of the profiled goroutine and pushes it
// into a lock-free ring buffer, and a collector goroutine drains the ring
// buffer into a growable store until the session is stopped.
//
// The handler never blocks and never touches the store. The collector and
// the tracing pass (Trace) coordinate over the store with a reader/writer
// lock, the collector only ever trying to acquire it so a long trace makes it
// skip a cycle rather than wait.
package session

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/getsentry/stackprof/internal/capture"
	"github.com/getsentry/stackprof/internal/frame"
	"github.com/getsentry/stackprof/internal/logutil"
	"github.com/getsentry/stackprof/internal/ringbuffer"
	"github.com/getsentry/stackprof/internal/sample"
	"github.com/getsentry/stackprof/internal/samplestore"
	"github.com/getsentry/stackprof/internal/timer"
)

var (
	// ErrInvalidState is returned when a lifecycle method is called in a
	// state it does not apply to.
	ErrInvalidState = errors.New("session: invalid state")
	// ErrSessionRunning is returned when closing a session that was not
	// stopped.
	ErrSessionRunning = errors.New("session: still running")
	// ErrConcurrentSession is returned when starting a CPU time session while
	// another one is running. The CPU time clock is process-wide.
	ErrConcurrentSession = errors.New("session: another cpu time session is running")
)

// current is the running CPU time session. The CPU time source carries no
// context, its notifications are routed here.
var current atomic.Pointer[Session]

func dispatchCurrent() {
	if s := current.Load(); s != nil {
		s.handleTick()
	}
}

type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

type (
	// Stats counts what happened to every notification of a session.
	Stats struct {
		Pushed          uint64 `json:"pushed"`
		DroppedMarking  uint64 `json:"dropped_marking"`
		DroppedCapture  uint64 `json:"dropped_capture"`
		DroppedFull     uint64 `json:"dropped_full"`
		DroppedStore    uint64 `json:"dropped_store"`
		SkippedCollects uint64 `json:"skipped_collects"`
	}

	// Result is what a stopped session hands back.
	Result struct {
		Configuration  Configuration
		Samples        []sample.Sample
		StartTimestamp time.Time
		DurationNS     uint64
		Stats          Stats
	}

	Session struct {
		config          Configuration
		logger          zerolog.Logger
		dropLogger      zerolog.Logger
		frames          *frame.Table
		capturer        capture.Capturer
		source          timer.Source
		collectInterval time.Duration

		rbuf *ringbuffer.Ringbuffer

		// mu guards store. The collector holds it exclusively while
		// appending, Trace holds it shared while visiting.
		mu    sync.RWMutex
		store *samplestore.Store

		// lifecycle serializes Start, Stop and Close.
		lifecycle sync.Mutex
		state     atomic.Int32
		running   atomic.Bool
		marking   atomic.Bool
		closed    bool
		wake      chan struct{}
		done      chan struct{}

		startTime  time.Time
		durationNS uint64

		// scratch is only touched by the notification handler, popped only
		// by the collector.
		scratch sample.Sample
		popped  sample.Sample

		pushed          atomic.Uint64
		droppedMarking  atomic.Uint64
		droppedCapture  atomic.Uint64
		droppedFull     atomic.Uint64
		droppedStore    atomic.Uint64
		skippedCollects atomic.Uint64
	}

	options struct {
		ringbufferCapacity int
		storeCapacity      int
		maxStoreCapacity   int
		collectInterval    time.Duration
		frames             *frame.Table
		capturer           capture.Capturer
		source             timer.Source
		logger             *zerolog.Logger
	}

	Option func(*options)
)

func WithRingbufferCapacity(n int) Option {
	return func(o *options) { o.ringbufferCapacity = n }
}

func WithInitialStoreCapacity(n int) Option {
	return func(o *options) { o.storeCapacity = n }
}

// WithMaxStoreCapacity bounds the growth of the store. Samples that don't
// fit are dropped.
func WithMaxStoreCapacity(n int) Option {
	return func(o *options) { o.maxStoreCapacity = n }
}

func WithCollectInterval(d time.Duration) Option {
	return func(o *options) { o.collectInterval = d }
}

// WithFrames sets the table frames are interned into by the default
// capturer.
func WithFrames(t *frame.Table) Option {
	return func(o *options) { o.frames = t }
}

// WithCapturer replaces the default capturer, which records the stack of the
// goroutine calling New.
func WithCapturer(c capture.Capturer) Option {
	return func(o *options) { o.capturer = c }
}

// WithSource replaces the periodic source derived from the time mode.
func WithSource(s timer.Source) Option {
	return func(o *options) { o.source = s }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = &l }
}

// New returns an idle session. Unless a capturer is provided, the session
// is attached to the calling goroutine.
func New(config Configuration, opts ...Option) (*Session, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	o := options{
		ringbufferCapacity: DefaultRingbufferCapacity,
		storeCapacity:      DefaultStoreCapacity,
		collectInterval:    DefaultCollectInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.frames == nil {
		o.frames = frame.NewTable()
	}
	if o.capturer == nil {
		g, err := capture.NewGoroutine(o.frames)
		if err != nil {
			return nil, err
		}
		o.capturer = g
	}
	if o.source == nil {
		switch config.TimeMode {
		case TimeModeCPU:
			o.source = timer.NewCPUTime()
		default:
			o.source = timer.NewWallClock()
		}
	}
	if o.collectInterval <= 0 {
		o.collectInterval = DefaultCollectInterval
	}
	logger := log.Logger.With().Str("component", "session").Logger()
	if o.logger != nil {
		logger = *o.logger
	}

	return &Session{
		config:          config,
		logger:          logger,
		dropLogger:      logutil.HotPathLogger(logger, zerolog.InfoLevel),
		frames:          o.frames,
		capturer:        o.capturer,
		source:          o.source,
		collectInterval: o.collectInterval,
		rbuf:            ringbuffer.New(o.ringbufferCapacity),
		store:           samplestore.New(o.storeCapacity, o.maxStoreCapacity),
	}, nil
}

// Configuration returns the configuration the session was created with.
func (s *Session) Configuration() Configuration {
	return s.config
}

// Frames returns the table the default capturer interns frames into.
func (s *Session) Frames() *frame.Table {
	return s.frames
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) Stats() Stats {
	return Stats{
		Pushed:          s.pushed.Load(),
		DroppedMarking:  s.droppedMarking.Load(),
		DroppedCapture:  s.droppedCapture.Load(),
		DroppedFull:     s.droppedFull.Load(),
		DroppedStore:    s.droppedStore.Load(),
		SkippedCollects: s.skippedCollects.Load(),
	}
}

// processWide reports whether notifications go through the process-wide
// current session.
func (s *Session) processWide() bool {
	return s.config.TimeMode == TimeModeCPU
}

// Start spawns the collector and arms the periodic source. If the source
// can't be armed, the collector is stopped before returning and the session
// stays idle.
func (s *Session) Start() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if state := s.State(); state != StateIdle || s.closed {
		return fmt.Errorf("%w: start called on a %s session", ErrInvalidState, state)
	}
	if s.processWide() && !current.CompareAndSwap(nil, s) {
		return ErrConcurrentSession
	}

	s.startTime = time.Now()
	s.running.Store(true)
	s.wake = make(chan struct{})
	s.done = make(chan struct{})
	go s.collect(s.wake, s.done)

	notify := s.handleTick
	if s.processWide() {
		notify = dispatchCurrent
	}
	if err := s.source.Arm(s.config.Interval, notify); err != nil {
		s.haltCollector()
		if s.processWide() {
			current.CompareAndSwap(s, nil)
		}
		return fmt.Errorf("session: arm %s timer: %w", s.config.TimeMode, err)
	}

	s.state.Store(int32(StateRunning))
	s.logger.Debug().
		Dur("interval", s.config.Interval).
		Str("time_mode", s.config.TimeMode.String()).
		Msg("session started")
	return nil
}

// Stop disarms the source, waits for the collector to drain what is left in
// the ring buffer and returns the collected samples. The samples alias the
// session's store, which is not modified anymore.
func (s *Session) Stop() (*Result, error) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if state := s.State(); state != StateRunning {
		return nil, fmt.Errorf("%w: stop called on a %s session", ErrInvalidState, state)
	}

	s.durationNS = uint64(time.Since(s.startTime))

	disarmErr := s.source.Disarm()
	if s.processWide() {
		current.CompareAndSwap(s, nil)
	}
	s.haltCollector()
	s.state.Store(int32(StateStopped))

	stats := s.Stats()
	s.logger.Debug().
		Int("samples", s.store.Len()).
		Uint64("duration_ns", s.durationNS).
		Interface("stats", stats).
		Msg("session stopped")

	if disarmErr != nil {
		return nil, fmt.Errorf("session: disarm %s timer: %w", s.config.TimeMode, disarmErr)
	}

	return &Result{
		Configuration:  s.config,
		Samples:        s.store.Samples(),
		StartTimestamp: s.startTime.Round(0),
		DurationNS:     s.durationNS,
		Stats:          stats,
	}, nil
}

// Close releases the buffers of a session. A running session must be
// stopped first.
func (s *Session) Close() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.State() == StateRunning {
		return ErrSessionRunning
	}
	if s.closed {
		return nil
	}
	s.closed = true

	s.mu.Lock()
	s.rbuf = nil
	s.store = nil
	s.mu.Unlock()
	return nil
}

// handleTick runs on every notification of the source. It must not block:
// it gives up on the sample when a trace is in progress, when the capture
// fails or when the ring buffer is full.
func (s *Session) handleTick() {
	started := time.Now()

	if s.marking.Load() {
		s.droppedMarking.Add(1)
		s.dropLogger.Debug().Msg("dropping sample: tracing in progress")
		return
	}

	smp := &s.scratch
	smp.Reset()
	if !s.capturer.Capture(smp) {
		s.droppedCapture.Add(1)
		s.dropLogger.Debug().Msg("dropping sample: failed to capture sample")
		return
	}
	smp.Timestamp = uint64(started.Sub(s.startTime))
	smp.ConsumedTimeNS = uint64(time.Since(started))

	if !s.rbuf.Push(smp) {
		s.droppedFull.Add(1)
		s.dropLogger.Debug().Msg("dropping sample: ring buffer is full")
		return
	}
	s.pushed.Add(1)
}
