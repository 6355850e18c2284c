// Package capture turns the current state of a goroutine into a sample.
package capture

import (
	"bytes"
	"errors"
	"runtime"
	"strconv"

	"github.com/DataDog/gostackparse"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/getsentry/stackprof/internal/frame"
	"github.com/getsentry/stackprof/internal/logutil"
	"github.com/getsentry/stackprof/internal/sample"
)

const (
	defaultBufferSize = 64 * 1024
	maxBufferSize     = 4 * 1024 * 1024
)

// ErrNoGoroutine is returned when the calling goroutine can't be identified.
var ErrNoGoroutine = errors.New("capture: unable to identify goroutine")

// Capturer fills a sample with the current call stack of whatever it is
// attached to. It reports false instead of failing when no stack is
// available, and the caller drops the sample.
type Capturer interface {
	Capture(s *sample.Sample) bool
}

// Func adapts a function to the Capturer interface.
type Func func(s *sample.Sample) bool

func (f Func) Capture(s *sample.Sample) bool {
	return f(s)
}

// Goroutine captures the stack of a single goroutine. Stacks are rendered
// into a buffer that is reused and only grows when the stacks of all
// goroutines no longer fit, so a Goroutine must only be used by one caller
// at a time.
type Goroutine struct {
	id     int
	frames *frame.Table
	buf    []byte
	logger zerolog.Logger
}

// CurrentGoroutineID returns the identifier of the calling goroutine.
func CurrentGoroutineID() (int, error) {
	// Only the "goroutine N [status]:" header is needed.
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	header := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	end := bytes.IndexByte(header, ' ')
	if end <= 0 {
		return 0, ErrNoGoroutine
	}
	id, err := strconv.Atoi(string(header[:end]))
	if err != nil {
		return 0, ErrNoGoroutine
	}
	return id, nil
}

// NewGoroutine attaches to the calling goroutine.
func NewGoroutine(frames *frame.Table) (*Goroutine, error) {
	id, err := CurrentGoroutineID()
	if err != nil {
		return nil, err
	}
	return AttachGoroutine(id, frames, defaultBufferSize), nil
}

// AttachGoroutine attaches to the goroutine with the given identifier.
// bufferSize is the initial size of the buffer the stacks of all goroutines
// are rendered into. It doubles when they don't fit, up to 4MB, stacks past
// that are lost.
func AttachGoroutine(id int, frames *frame.Table, bufferSize int) *Goroutine {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	logger := log.Logger.With().Str("component", "capture").Int("goroutine", id).Logger()
	return &Goroutine{
		id:     id,
		frames: frames,
		buf:    make([]byte, bufferSize),
		logger: logutil.HotPathLogger(logger, zerolog.WarnLevel),
	}
}

// ID returns the identifier of the goroutine being captured.
func (g *Goroutine) ID() int {
	return g.id
}

// BufferSize returns the current size of the stack buffer.
func (g *Goroutine) BufferSize() int {
	return len(g.buf)
}

// Capture records the stack of the attached goroutine, leaf first.
// It returns false if the goroutine no longer exists or its stack did not
// fit in the buffer.
func (g *Goroutine) Capture(s *sample.Sample) bool {
	n := runtime.Stack(g.buf, true)
	for n == len(g.buf) && len(g.buf) < maxBufferSize {
		g.buf = make([]byte, 2*len(g.buf))
		n = runtime.Stack(g.buf, true)
		g.logger.Debug().Int("buffer_size", len(g.buf)).Msg("stack buffer grown")
	}
	goroutines, errs := gostackparse.Parse(bytes.NewReader(g.buf[:n]))
	if len(errs) > 0 {
		g.logger.Debug().
			Err(errs[0]).
			Int("errors", len(errs)).
			Bool("truncated", n == len(g.buf)).
			Msg("can't parse goroutine stacks")
	}
	for _, gr := range goroutines {
		if gr.ID != g.id {
			continue
		}
		s.Reset()
		for _, f := range gr.Stack {
			if !s.Append(g.frames.Intern(frame.FromGoFunction(f.Func, f.File, f.Line))) {
				break
			}
		}
		return s.Depth > 0
	}
	return false
}
