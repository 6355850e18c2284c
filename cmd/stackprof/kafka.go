package main

import (
	"github.com/getsentry/stackprof/internal/profile"
)

type (
	// ProfileKafkaMessage announces a stored profile.
	ProfileKafkaMessage struct {
		DurationNS  uint64 `json:"duration_ns"`
		Environment string `json:"environment,omitempty"`
		ID          string `json:"profile_id"`
		IntervalMS  int64  `json:"interval_ms"`
		Path        string `json:"path"`
		Samples     int    `json:"samples"`
		StoragePath string `json:"storage_path"`
		TimeMode    string `json:"time_mode"`
		Timestamp   int64  `json:"timestamp"`
		Dropped     uint64 `json:"dropped"`
	}
)

func buildProfileKafkaMessage(p *profile.Profile, environment, path string) ProfileKafkaMessage {
	stats := p.Stats
	return ProfileKafkaMessage{
		DurationNS:  p.DurationNS,
		Environment: environment,
		ID:          p.ID,
		IntervalMS:  p.Configuration.Interval.Milliseconds(),
		Path:        path,
		Samples:     len(p.Samples),
		StoragePath: p.StoragePath(),
		TimeMode:    p.Configuration.TimeMode.String(),
		Timestamp:   p.Timestamp.Unix(),
		Dropped:     stats.DroppedMarking + stats.DroppedCapture + stats.DroppedFull + stats.DroppedStore,
	}
}
