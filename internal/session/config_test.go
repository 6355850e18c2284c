package session

import (
	"errors"
	"testing"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/getsentry/stackprof/internal/testutil"
)

func TestParseTimeMode(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeMode
		wantErr error
	}{
		{in: "cpu", want: TimeModeCPU},
		{in: "wall", want: TimeModeWall},
		{in: " Wall ", want: TimeModeWall},
		{in: "", wantErr: ErrInvalidTimeMode},
		{in: "monotonic", wantErr: ErrInvalidTimeMode},
	}

	for _, test := range tests {
		t.Run(test.in, func(t *testing.T) {
			got, err := ParseTimeMode(test.in)
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("expected error %v, got %v", test.wantErr, err)
			}
			if got != test.want {
				t.Fatalf("expected %s, got %s", test.want, got)
			}
		})
	}
}

func TestConfigurationValidate(t *testing.T) {
	tests := []struct {
		name   string
		config Configuration
		want   error
	}{
		{name: "default", config: DefaultConfiguration()},
		{name: "zero interval", config: Configuration{TimeMode: TimeModeWall}, want: ErrInvalidInterval},
		{name: "negative interval", config: Configuration{Interval: -time.Millisecond}, want: ErrInvalidInterval},
		{name: "one millisecond", config: Configuration{Interval: time.Millisecond, TimeMode: TimeModeWall}},
		{name: "below a millisecond", config: Configuration{Interval: 500 * time.Microsecond}, want: ErrInvalidInterval},
		{name: "fraction of a millisecond", config: Configuration{Interval: 1500 * time.Microsecond}, want: ErrInvalidInterval},
		{name: "unknown time mode", config: Configuration{Interval: time.Millisecond, TimeMode: TimeMode(7)}, want: ErrInvalidTimeMode},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if err := test.config.Validate(); !errors.Is(err, test.want) {
				t.Fatalf("expected error %v, got %v", test.want, err)
			}
		})
	}
}

func TestConfigurationJSON(t *testing.T) {
	b, err := gojson.Marshal(Configuration{Interval: 10 * time.Millisecond, TimeMode: TimeModeWall})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := testutil.Diff(string(b), `{"interval_ms":10,"time_mode":"wall"}`); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}

	var c Configuration
	if err := gojson.Unmarshal([]byte(`{"interval_ms":25,"time_mode":"cpu"}`), &c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := testutil.Diff(c, Configuration{Interval: 25 * time.Millisecond, TimeMode: TimeModeCPU}); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}

	if err := c.Validate(); err != nil {
		t.Fatalf("decoded configuration should be valid: %v", err)
	}

	if err := gojson.Unmarshal([]byte(`{"interval_ms":25,"time_mode":"gpu"}`), &c); err == nil {
		t.Fatal("expected an error for an unknown time mode")
	}
}
