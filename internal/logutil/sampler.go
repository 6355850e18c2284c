package logutil

import (
	"time"

	"github.com/rs/zerolog"
)

type LevelSampler struct {
	Level zerolog.Level
}

func (l LevelSampler) Sample(lvl zerolog.Level) bool {
	return lvl >= l.Level
}

// HotPathLogger returns a logger for messages emitted at sampling frequency.
// Messages at or above minLevel always go through, the rest are limited to
// a burst per second.
func HotPathLogger(l zerolog.Logger, minLevel zerolog.Level) zerolog.Logger {
	return l.Sample(&hotPathSampler{
		always: LevelSampler{Level: minLevel},
		burst:  &zerolog.BurstSampler{Burst: 10, Period: time.Second},
	})
}

type hotPathSampler struct {
	always LevelSampler
	burst  *zerolog.BurstSampler
}

func (s *hotPathSampler) Sample(lvl zerolog.Level) bool {
	return s.always.Sample(lvl) || s.burst.Sample(lvl)
}
