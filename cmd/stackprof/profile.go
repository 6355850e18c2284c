package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
	gojson "github.com/goccy/go-json"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"github.com/getsentry/stackprof/internal/profile"
	"github.com/getsentry/stackprof/internal/storageutil"
)

func hubFromContext(ctx context.Context) *sentry.Hub {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		return hub
	}
	return sentry.CurrentHub()
}

// storeProfile writes the profile to the bucket and announces it on Kafka.
func (e *environment) storeProfile(r *http.Request, p *profile.Profile) {
	ctx := r.Context()
	hub := hubFromContext(ctx)
	logger := log.With().Str("profile_id", p.ID).Str("path", r.URL.Path).Logger()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s := sentry.StartSpan(gctx, "blob.write")
		s.Description = "Write profile to storage"
		defer s.Finish()
		return storageutil.CompressedWrite(gctx, e.profilesBucket, p.StoragePath(), p)
	})
	if e.profilingWriter != nil {
		g.Go(func() error {
			s := sentry.StartSpan(gctx, "json.marshal")
			s.Description = "Marshal profile Kafka message"
			b, err := gojson.Marshal(buildProfileKafkaMessage(p, e.config.Environment, r.URL.Path))
			s.Finish()
			if err != nil {
				return err
			}
			s = sentry.StartSpan(gctx, "processing")
			s.Description = "Send profile to Kafka"
			defer s.Finish()
			return e.profilingWriter.WriteMessages(gctx, kafka.Message{
				Topic: e.config.ProfilesKafkaTopic,
				Value: b,
			})
		})
	}
	if err := g.Wait(); err != nil {
		hub.CaptureException(err)
		logger.Err(err).Msg("can't store profile")
		return
	}

	logger.Debug().
		Int("samples", len(p.Samples)).
		Uint64("duration_ns", p.DurationNS).
		Msg("profile stored")
}

func (e *environment) readProfile(w http.ResponseWriter, r *http.Request) (*profile.Profile, bool) {
	ctx := r.Context()
	hub := hubFromContext(ctx)
	profileID := httprouter.ParamsFromContext(ctx).ByName("profile_id")

	s := sentry.StartSpan(ctx, "blob.read")
	s.Description = "Read profile from storage"
	var p profile.Profile
	err := storageutil.UnmarshalCompressed(ctx, e.profilesBucket, profile.StoragePath(profileID), &p)
	s.Finish()
	if err != nil {
		if errors.Is(err, storageutil.ErrObjectNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return nil, false
		}
		if errors.Is(err, context.DeadlineExceeded) {
			w.WriteHeader(http.StatusTooManyRequests)
			return nil, false
		}
		hub.CaptureException(err)
		log.Err(err).Str("profile_id", profileID).Msg("can't read profile")
		w.WriteHeader(http.StatusInternalServerError)
		return nil, false
	}
	return &p, true
}

// getProfile serves a profile in the speedscope format. With the flamegraph
// query parameter, identical stacks are merged and weighted by count.
func (e *environment) getProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := e.readProfile(w, r)
	if !ok {
		return
	}
	hub := hubFromContext(r.Context())

	s := sentry.StartSpan(r.Context(), "processing")
	s.Description = "Convert profile to speedscope"
	o, err := p.Speedscope()
	if err == nil && r.URL.Query().Get("flamegraph") != "" {
		o.SortSamplesForFlamegraph()
	}
	s.Finish()
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	e.writeJSON(w, r, o)
}

func (e *environment) getRawProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := e.readProfile(w, r)
	if !ok {
		return
	}
	e.writeJSON(w, r, p)
}

func (e *environment) writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	s := sentry.StartSpan(r.Context(), "json.marshal")
	b, err := gojson.Marshal(v)
	s.Finish()
	if err != nil {
		hubFromContext(r.Context()).CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}
