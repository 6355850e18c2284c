package httputil

import (
	"errors"
	"net/http"
	"sync"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"

	"github.com/getsentry/stackprof/internal/frame"
	"github.com/getsentry/stackprof/internal/profile"
	"github.com/getsentry/stackprof/internal/sample"
	"github.com/getsentry/stackprof/internal/session"
)

// ProfileIDHeader carries the ID the profile of a request will be stored
// under.
const ProfileIDHeader = "X-Profile-Id"

type (
	// ProfileCallback receives the profile of a request once its handler
	// returned.
	ProfileCallback func(r *http.Request, p *profile.Profile)

	// Profiler profiles requests with one session per request. All sessions
	// intern their frames in the same table, the Profiler traces the ones in
	// flight when the table is collected.
	Profiler struct {
		config    session.Configuration
		frames    *frame.Table
		opts      []session.Option
		onProfile ProfileCallback

		mu     sync.Mutex
		active map[*session.Session]struct{}
	}
)

func NewProfiler(config session.Configuration, frames *frame.Table, onProfile ProfileCallback, opts ...session.Option) *Profiler {
	return &Profiler{
		config:    config,
		frames:    frames,
		opts:      opts,
		onProfile: onProfile,
		active:    make(map[*session.Session]struct{}),
	}
}

// ProfileRequests wraps next so every request it serves is profiled. The
// session attaches to the goroutine serving the request. A request that
// can't be profiled, such as a second concurrent request with a CPU time
// session, is still served.
func (p *Profiler) ProfileRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub := sentry.GetHubFromContext(r.Context())
		if hub == nil {
			hub = sentry.CurrentHub()
		}

		opts := append([]session.Option{session.WithFrames(p.frames)}, p.opts...)
		s, err := session.New(p.config, opts...)
		if err != nil {
			hub.CaptureException(err)
			next.ServeHTTP(w, r)
			return
		}
		p.register(s)
		defer func() {
			p.unregister(s)
			if err := s.Close(); err != nil {
				log.Err(err).Msg("can't close profiling session")
			}
		}()

		if err := s.Start(); err != nil {
			if errors.Is(err, session.ErrConcurrentSession) {
				log.Debug().Str("path", r.URL.Path).Msg("request not profiled: another session is running")
			} else {
				hub.CaptureException(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		id := profile.NewID()
		w.Header().Set(ProfileIDHeader, id)

		next.ServeHTTP(w, r)

		result, err := s.Stop()
		if err != nil {
			hub.CaptureException(err)
			return
		}
		prof, err := profile.New(result, p.frames)
		if err != nil {
			hub.CaptureException(err)
			return
		}
		prof.ID = id
		if p.onProfile != nil {
			p.onProfile(r, prof)
		}
	})
}

// Trace reports the frames retained by every session in flight.
func (p *Profiler) Trace(visit func(sample.FrameID)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for s := range p.active {
		s.Trace(visit)
	}
}

// CollectFrames releases the frames no session in flight references and
// returns how many were released.
func (p *Profiler) CollectFrames() int {
	return p.frames.Collect(p)
}

func (p *Profiler) register(s *session.Session) {
	p.mu.Lock()
	p.active[s] = struct{}{}
	p.mu.Unlock()
}

func (p *Profiler) unregister(s *session.Session) {
	p.mu.Lock()
	delete(p.active, s)
	p.mu.Unlock()
}
