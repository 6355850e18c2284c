package speedscope

import (
	"testing"

	"github.com/getsentry/stackprof/internal/testutil"
)

func TestSortSamplesAlphabetically(t *testing.T) {
	frames := []Frame{
		{Name: "a"},
		{Name: "b"},
		{Name: "c"},
		{Name: "d"},
	}

	samples := [][]int{
		{0, 3},
		{1, 3},
		{0, 1, 2},
		{0, 1, 2, 3},
		{0, 3},
	}

	sortedSamples := [][]int{
		{0, 1, 2},
		{0, 1, 2, 3},
		{0, 3},
		{0, 3},
		{1, 3},
	}

	SortSamplesAlphabetically(samples, frames)

	if diff := testutil.Diff(samples, sortedSamples); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}

func TestSortSamplesForFlamegraph(t *testing.T) {
	o := Output{
		Shared: SharedData{Frames: []Frame{{Name: "main"}, {Name: "b"}, {Name: "a"}}},
		Profiles: []interface{}{
			&SampledProfile{
				Samples: [][]int{{0, 1}, {0, 2}},
				Unit:    ValueUnitNanoseconds,
				Weights: []uint64{10, 20},
			},
		},
	}

	o.SortSamplesForFlamegraph()

	want := &SampledProfile{
		Samples: [][]int{{0, 2}, {0, 1}},
		Unit:    ValueUnitCount,
		Weights: []uint64{1, 1},
	}
	if diff := testutil.Diff(o.Profiles[0], want); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}
