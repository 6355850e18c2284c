package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CAFxX/httpcompression"
	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"

	"github.com/getsentry/stackprof/internal/frame"
	"github.com/getsentry/stackprof/internal/httputil"
	"github.com/getsentry/stackprof/internal/logutil"
)

type environment struct {
	config ServiceConfig

	profilingWriter *kafka.Writer
	profilesBucket  *blob.Bucket

	frames   *frame.Table
	profiler *httputil.Profiler

	stopCollecting chan struct{}
	collectingDone chan struct{}
}

var release string

func newEnvironment(config ServiceConfig) (*environment, error) {
	sessionConfig, err := config.SessionConfiguration()
	if err != nil {
		return nil, fmt.Errorf("invalid profiling configuration: %w", err)
	}

	e := environment{
		config:         config,
		frames:         frame.NewTable(),
		stopCollecting: make(chan struct{}),
		collectingDone: make(chan struct{}),
	}
	e.profiler = httputil.NewProfiler(sessionConfig, e.frames, e.storeProfile)

	e.profilesBucket, err = blob.OpenBucket(context.Background(), config.ProfilesBucketURL)
	if err != nil {
		return nil, err
	}
	if len(config.ProfilingKafkaBrokers) > 0 {
		e.profilingWriter = &kafka.Writer{
			Addr:         kafka.TCP(config.ProfilingKafkaBrokers...),
			Async:        true,
			Balancer:     kafka.CRC32Balancer{},
			BatchSize:    10,
			Compression:  kafka.Lz4,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		}
	}

	go e.collectFrames(config.FramesCollectInterval)

	return &e, nil
}

// collectFrames periodically releases the frames no profile in flight
// references anymore.
func (e *environment) collectFrames(interval time.Duration) {
	defer close(e.collectingDone)
	if interval <= 0 {
		<-e.stopCollecting
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCollecting:
			return
		case <-ticker.C:
			released := e.profiler.CollectFrames()
			log.Debug().
				Int("released", released).
				Int("live", e.frames.Len()).
				Msg("frames collected")
		}
	}
}

func (e *environment) shutdown() {
	close(e.stopCollecting)
	<-e.collectingDone

	err := e.profilesBucket.Close()
	if err != nil {
		sentry.CaptureException(err)
	}
	if e.profilingWriter != nil {
		err = e.profilingWriter.Close()
		if err != nil {
			sentry.CaptureException(err)
		}
	}
	sentry.Flush(5 * time.Second)
}

func (e *environment) newRouter() (*httprouter.Router, error) {
	compress, err := httpcompression.DefaultAdapter()
	if err != nil {
		return nil, err
	}

	routes := []struct {
		method  string
		path    string
		handler http.HandlerFunc
		profile bool
	}{
		{http.MethodGet, "/health", e.getHealth, false},
		{http.MethodGet, "/workloads/tak", e.getTak, true},
		{http.MethodGet, "/profiles/:profile_id", e.getProfile, false},
		{http.MethodGet, "/raw_profiles/:profile_id", e.getRawProfile, false},
	}

	router := httprouter.New()

	for _, route := range routes {
		var handler http.Handler = route.handler
		if route.profile {
			handler = e.profiler.ProfileRequests(handler)
		}
		router.Handler(route.method, route.path, compress(handler))
	}

	return router, nil
}

func (e *environment) getHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func main() {
	config, err := readServiceConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error reading configuration")
	}

	logutil.ConfigureLogger(config.LogLevel)

	env, err := newEnvironment(config)
	if err != nil {
		log.Fatal().Err(err).Msg("error setting up environment")
	}

	err = sentry.Init(sentry.ClientOptions{
		Dsn:              config.SentryDSN,
		EnableTracing:    true,
		Environment:      config.Environment,
		Release:          release,
		TracesSampleRate: 1.0,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("can't initialize sentry")
	}

	router, err := env.newRouter()
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal().Err(err).Msg("error setting up the router")
	}

	server := http.Server{
		Addr:    ":" + config.Port,
		Handler: sentryhttp.New(sentryhttp.Options{}).Handle(router),
	}

	waitForShutdown := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c

		cctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(cctx); err != nil {
			sentry.CaptureException(err)
			log.Err(err).Msg("error shutting down server")
		}

		close(waitForShutdown)
	}()

	log.Info().Str("port", config.Port).Str("environment", config.Environment).Msg("server starting")

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		sentry.CaptureException(err)
		log.Err(err).Msg("server failed")
	} else {
		<-waitForShutdown
	}

	// The profiles of the last requests are stored by now.

	env.shutdown()
}
