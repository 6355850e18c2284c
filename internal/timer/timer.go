// Package timer delivers periodic notifications measured either in wall-clock
// time or in CPU time consumed by the process.
package timer

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrArmed is returned when arming a source that is already armed.
	ErrArmed = errors.New("timer: source already armed")
	// ErrNotArmed is returned when disarming a source that is not armed.
	ErrNotArmed = errors.New("timer: source not armed")
	// ErrInvalidInterval is returned for intervals that are not positive.
	ErrInvalidInterval = errors.New("timer: interval must be positive")
	// ErrUnsupported is returned when the platform cannot measure CPU time.
	ErrUnsupported = errors.New("timer: cpu time clock unsupported on this platform")
)

// Source calls a function at approximately a fixed cadence until disarmed.
// Once Disarm returns, notify is not running and will not be called again.
type Source interface {
	Arm(interval time.Duration, notify func()) error
	Disarm() error
}

// loop runs the delivery goroutine shared by every source.
type loop struct {
	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func (l *loop) start(run func(stop <-chan struct{})) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stop != nil {
		return ErrArmed
	}
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	go func(stop <-chan struct{}, done chan<- struct{}) {
		defer close(done)
		run(stop)
	}(l.stop, l.done)
	return nil
}

func (l *loop) halt() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stop == nil {
		return ErrNotArmed
	}
	close(l.stop)
	<-l.done
	l.stop, l.done = nil, nil
	return nil
}

// WallClock fires every interval of elapsed real time.
type WallClock struct {
	loop loop
}

func NewWallClock() *WallClock {
	return &WallClock{}
}

func (w *WallClock) Arm(interval time.Duration, notify func()) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}
	return w.loop.start(func(stop <-chan struct{}) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				notify()
			}
		}
	})
}

func (w *WallClock) Disarm() error {
	return w.loop.halt()
}

// CPUTime fires every interval of CPU time consumed by the process, user
// and system time combined. The clock is polled, so notifications are
// delivered with a latency of up to one polling period. The clock is
// process-wide and carries no notion of who armed it.
type CPUTime struct {
	loop  loop
	clock func() (time.Duration, error)
}

func NewCPUTime() *CPUTime {
	return &CPUTime{clock: processCPUTime}
}

// pollPeriod returns how often the CPU clock is read for a given interval.
func pollPeriod(interval time.Duration) time.Duration {
	p := interval / 4
	if p < time.Millisecond {
		p = time.Millisecond
	}
	return p
}

func (c *CPUTime) Arm(interval time.Duration, notify func()) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}
	consumed, err := c.clock()
	if err != nil {
		return err
	}
	return c.loop.start(func(stop <-chan struct{}) {
		next := consumed + interval
		ticker := time.NewTicker(pollPeriod(interval))
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				now, err := c.clock()
				if err != nil || now < next {
					continue
				}
				// Overruns are coalesced into a single notification.
				next = now + interval
				notify()
			}
		}
	})
}

func (c *CPUTime) Disarm() error {
	return c.loop.halt()
}
