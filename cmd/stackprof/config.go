package main

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/getsentry/stackprof/internal/session"
)

type (
	ServiceConfig struct {
		Environment string `env:"SENTRY_ENVIRONMENT" env-default:"development"`
		Port        string `env:"PORT" env-default:"8080"`
		LogLevel    string `env:"LOG_LEVEL" env-default:"info"`

		SentryDSN string `env:"SENTRY_DSN"`

		ProfilesBucketURL string `env:"PROFILES_BUCKET_URL" env-default:"mem://"`

		ProfilingKafkaBrokers []string `env:"PROFILING_KAFKA_BROKERS" env-separator:","`
		ProfilesKafkaTopic    string   `env:"PROFILES_KAFKA_TOPIC" env-default:"processed-profiles"`

		ProfileInterval       time.Duration `env:"PROFILE_INTERVAL" env-default:"9ms"`
		ProfileTimeMode       string        `env:"PROFILE_TIME_MODE" env-default:"cpu"`
		FramesCollectInterval time.Duration `env:"FRAMES_COLLECT_INTERVAL" env-default:"1m"`
	}
)

func readServiceConfig() (ServiceConfig, error) {
	var c ServiceConfig
	if err := cleanenv.ReadEnv(&c); err != nil {
		return ServiceConfig{}, fmt.Errorf("can't read service config: %w", err)
	}
	return c, nil
}

// SessionConfiguration returns the configuration of request profiling
// sessions.
func (c ServiceConfig) SessionConfiguration() (session.Configuration, error) {
	mode, err := session.ParseTimeMode(c.ProfileTimeMode)
	if err != nil {
		return session.Configuration{}, err
	}
	config := session.Configuration{
		Interval: c.ProfileInterval,
		TimeMode: mode,
	}
	return config, config.Validate()
}
