//go:build !linux && !darwin && !freebsd

package timer

import "time"

func processCPUTime() (time.Duration, error) {
	return 0, ErrUnsupported
}
