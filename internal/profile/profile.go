// Package profile turns the samples of a stopped session into a
// self-contained profile, resolving frame identifiers through the frame table
// and deduplicating stacks.
package profile

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/getsentry/stackprof/internal/errorutil"
	"github.com/getsentry/stackprof/internal/frame"
	"github.com/getsentry/stackprof/internal/sample"
	"github.com/getsentry/stackprof/internal/session"
	"github.com/getsentry/stackprof/internal/speedscope"
)

const Version = "1"

type (
	Sample struct {
		ConsumedTimeNS      uint64 `json:"consumed_time_ns,omitempty"`
		ElapsedSinceStartNS uint64 `json:"elapsed_since_start_ns"`
		StackID             int    `json:"stack_id"`
	}

	// Stack holds indices into Frames, leaf first.
	Stack []int

	Profile struct {
		Configuration session.Configuration `json:"configuration"`
		DurationNS    uint64                `json:"duration_ns"`
		Frames        []frame.Frame         `json:"frames"`
		ID            string                `json:"profile_id"`
		Samples       []Sample              `json:"samples"`
		Stacks        []Stack               `json:"stacks"`
		Stats         session.Stats         `json:"stats"`
		Timestamp     time.Time             `json:"timestamp"`
		Version       string                `json:"version"`
	}
)

// New resolves every frame referenced by the result. A frame missing from the
// table means it was collected while still referenced.
func New(result *session.Result, frames *frame.Table) (*Profile, error) {
	p := Profile{
		Configuration: result.Configuration,
		DurationNS:    result.DurationNS,
		Frames:        make([]frame.Frame, 0),
		ID:            NewID(),
		Samples:       make([]Sample, 0, len(result.Samples)),
		Stacks:        make([]Stack, 0),
		Stats:         result.Stats,
		Timestamp:     result.StartTimestamp,
		Version:       Version,
	}

	frameIndex := make(map[sample.FrameID]int)
	stackIndex := make(map[uint64]int)
	h := fnv.New64a()

	for i := range result.Samples {
		s := &result.Samples[i]
		stack := make(Stack, 0, s.Depth)
		h.Reset()
		for _, id := range s.Stack() {
			idx, ok := frameIndex[id]
			if !ok {
				f, exists := frames.Lookup(id)
				if !exists {
					return nil, fmt.Errorf("%w: frame %d is not in the table", errorutil.ErrDataIntegrity, id)
				}
				idx = len(p.Frames)
				p.Frames = append(p.Frames, f)
				frameIndex[id] = idx
			}
			stack = append(stack, idx)
			p.Frames[idx].WriteToHash(h)
		}
		fingerprint := h.Sum64()
		stackID, ok := stackIndex[fingerprint]
		if !ok {
			stackID = len(p.Stacks)
			p.Stacks = append(p.Stacks, stack)
			stackIndex[fingerprint] = stackID
		}
		p.Samples = append(p.Samples, Sample{
			ConsumedTimeNS:      s.ConsumedTimeNS,
			ElapsedSinceStartNS: s.Timestamp,
			StackID:             stackID,
		})
	}

	return &p, nil
}

// NewID returns a random profile ID without dashes.
func NewID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func StoragePath(profileID string) string {
	return fmt.Sprintf("profiles/%s", strings.ReplaceAll(profileID, "-", ""))
}

func (p Profile) StoragePath() string {
	return StoragePath(p.ID)
}

// Speedscope renders the profile as a single sampled speedscope profile.
// Weights are the time elapsed since the previous sample.
func (p *Profile) Speedscope() (speedscope.Output, error) {
	frames := make([]speedscope.Frame, 0, len(p.Frames))
	for _, f := range p.Frames {
		name := f.Function
		if name == "" {
			name = fmt.Sprintf("unknown (%s)", f.ID())
		}
		frames = append(frames, speedscope.Frame{
			File:          f.File,
			IsApplication: f.InApp != nil && *f.InApp,
			Line:          f.Line,
			Name:          name,
			Path:          f.Path,
		})
	}

	sp := &speedscope.SampledProfile{
		IsMainThread: true,
		Name:         "profiled goroutine",
		Samples:      make([][]int, 0, len(p.Samples)),
		Type:         speedscope.ProfileTypeSampled,
		Unit:         speedscope.ValueUnitNanoseconds,
		Weights:      make([]uint64, 0, len(p.Samples)),
	}
	var previous uint64
	for i, s := range p.Samples {
		if s.StackID < 0 || s.StackID >= len(p.Stacks) {
			return speedscope.Output{}, fmt.Errorf("%w: sample %d references unknown stack %d", errorutil.ErrDataIntegrity, i, s.StackID)
		}
		stack := p.Stacks[s.StackID]
		// speedscope wants the root first
		samp := make([]int, 0, len(stack))
		for j := len(stack) - 1; j >= 0; j-- {
			if stack[j] < 0 || stack[j] >= len(frames) {
				return speedscope.Output{}, fmt.Errorf("%w: stack %d references unknown frame %d", errorutil.ErrDataIntegrity, s.StackID, stack[j])
			}
			samp = append(samp, stack[j])
		}
		sp.Samples = append(sp.Samples, samp)
		weight := uint64(0)
		if s.ElapsedSinceStartNS > previous {
			weight = s.ElapsedSinceStartNS - previous
		}
		sp.Weights = append(sp.Weights, weight)
		previous = s.ElapsedSinceStartNS
		sp.EndValue = s.ElapsedSinceStartNS
	}

	return speedscope.Output{
		Schema:             speedscope.Schema,
		ActiveProfileIndex: 0,
		DurationNS:         p.DurationNS,
		Metadata: speedscope.ProfileMetadata{
			IntervalMS:     p.Configuration.Interval.Milliseconds(),
			StartTimestamp: p.Timestamp,
			TimeMode:       p.Configuration.TimeMode.String(),
			Version:        p.Version,
		},
		Platform:  "go",
		ProfileID: p.ID,
		Profiles:  []interface{}{sp},
		Shared:    speedscope.SharedData{Frames: frames},
		Version:   p.Version,
	}, nil
}
