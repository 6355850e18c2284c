package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
)

const (
	// DefaultInterval is the time between two samples when none is configured.
	DefaultInterval = 9 * time.Millisecond

	// DefaultRingbufferCapacity is the number of samples the ring buffer can
	// hold before the collector drains it.
	DefaultRingbufferCapacity = 1000
	// DefaultStoreCapacity is the initial capacity of the sample store,
	// roughly 10 seconds worth of samples at 50Hz.
	DefaultStoreCapacity = 500
	// DefaultCollectInterval is how long the collector sleeps between two
	// drains of the ring buffer.
	DefaultCollectInterval = 10 * time.Millisecond
)

var (
	ErrInvalidInterval = errors.New("session: interval must be a positive number of milliseconds")
	ErrInvalidTimeMode = errors.New("session: invalid time mode, valid values are 'cpu' and 'wall'")
)

// TimeMode selects the clock the sampling interval is measured with.
type TimeMode int

const (
	// TimeModeCPU measures the interval in CPU time consumed by the process.
	TimeModeCPU TimeMode = iota
	// TimeModeWall measures the interval in wall-clock time.
	TimeModeWall
)

func (m TimeMode) String() string {
	switch m {
	case TimeModeCPU:
		return "cpu"
	case TimeModeWall:
		return "wall"
	default:
		return fmt.Sprintf("TimeMode(%d)", int(m))
	}
}

// ParseTimeMode parses "cpu" or "wall".
func ParseTimeMode(s string) (TimeMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cpu":
		return TimeModeCPU, nil
	case "wall":
		return TimeModeWall, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeMode, s)
	}
}

func (m TimeMode) MarshalText() ([]byte, error) {
	if m != TimeModeCPU && m != TimeModeWall {
		return nil, ErrInvalidTimeMode
	}
	return []byte(m.String()), nil
}

func (m *TimeMode) UnmarshalText(b []byte) error {
	mode, err := ParseTimeMode(string(b))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// Configuration is fixed for the lifetime of a session.
type Configuration struct {
	Interval time.Duration
	TimeMode TimeMode
}

// DefaultConfiguration samples every DefaultInterval of CPU time.
func DefaultConfiguration() Configuration {
	return Configuration{
		Interval: DefaultInterval,
		TimeMode: TimeModeCPU,
	}
}

// Validate checks the interval is a whole number of milliseconds, the
// resolution it is stored with.
func (c Configuration) Validate() error {
	if c.Interval < time.Millisecond || c.Interval%time.Millisecond != 0 {
		return ErrInvalidInterval
	}
	if c.TimeMode != TimeModeCPU && c.TimeMode != TimeModeWall {
		return ErrInvalidTimeMode
	}
	return nil
}

type configurationJSON struct {
	IntervalMS int64    `json:"interval_ms"`
	TimeMode   TimeMode `json:"time_mode"`
}

func (c Configuration) MarshalJSON() ([]byte, error) {
	return gojson.Marshal(configurationJSON{
		IntervalMS: c.Interval.Milliseconds(),
		TimeMode:   c.TimeMode,
	})
}

func (c *Configuration) UnmarshalJSON(b []byte) error {
	var raw configurationJSON
	if err := gojson.Unmarshal(b, &raw); err != nil {
		return err
	}
	c.Interval = time.Duration(raw.IntervalMS) * time.Millisecond
	c.TimeMode = raw.TimeMode
	return nil
}
