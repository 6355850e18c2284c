package speedscope

import (
	"sort"
	"time"
)

const (
	ValueUnitNanoseconds ValueUnit = "nanoseconds"
	ValueUnitCount       ValueUnit = "count"

	ProfileTypeSampled ProfileType = "sampled"

	Schema = "https://www.speedscope.app/file-format-schema.json"
)

type (
	Frame struct {
		File          string `json:"file,omitempty"`
		IsApplication bool   `json:"is_application"`
		Line          uint32 `json:"line,omitempty"`
		Name          string `json:"name"`
		Path          string `json:"path,omitempty"`
	}

	SampledProfile struct {
		EndValue     uint64      `json:"endValue"`
		IsMainThread bool        `json:"isMainThread"`
		Name         string      `json:"name"`
		Samples      [][]int     `json:"samples"`
		StartValue   uint64      `json:"startValue"`
		ThreadID     uint64      `json:"threadID"`
		Type         ProfileType `json:"type"`
		Unit         ValueUnit   `json:"unit"`
		Weights      []uint64    `json:"weights"`
	}

	SharedData struct {
		Frames []Frame `json:"frames"`
	}

	ProfileType string
	ValueUnit   string

	Output struct {
		Schema             string          `json:"$schema"`
		ActiveProfileIndex int             `json:"activeProfileIndex"`
		DurationNS         uint64          `json:"durationNS"`
		Metadata           ProfileMetadata `json:"metadata"`
		Platform           string          `json:"platform"`
		ProfileID          string          `json:"profileID"`
		Profiles           []interface{}   `json:"profiles"`
		Shared             SharedData      `json:"shared"`
		Version            string          `json:"version"`
	}

	ProfileMetadata struct {
		IntervalMS     int64     `json:"intervalMS"`
		StartTimestamp time.Time `json:"startTimestamp"`
		TimeMode       string    `json:"timeMode"`
		Version        string    `json:"version"`
	}
)

func (o *Output) SortSamplesForFlamegraph() {
	frames := o.Shared.Frames
	for _, sampledProfile := range o.Profiles {
		// only for Sampled Profiles
		profile, ok := sampledProfile.(*SampledProfile)
		if ok {
			SortSamplesAlphabetically(profile.Samples, frames)

			profile.Unit = ValueUnitCount
			for i := 0; i < len(profile.Weights); i++ {
				profile.Weights[i] = 1
			}
		}
	}
}

// SortSamplesAlphabetically orders stacks by the names of their frames, root
// first, so identical prefixes end up next to each other.
func SortSamplesAlphabetically(samples [][]int, frames []Frame) {
	sort.SliceStable(samples, func(i, j int) bool {
		c := 0
		for {
			if len(samples[i]) == c {
				return len(samples[j]) != c
			} else if len(samples[j]) == c {
				return false
			}
			a, b := frames[samples[i][c]].Name, frames[samples[j][c]].Name
			if a != b {
				return a < b
			}
			c++
		}
	})
}
