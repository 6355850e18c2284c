package errorutil

import "errors"

// ErrDataIntegrity is returned when a profile references data that can't be
// resolved, such as a released frame or a stack that doesn't exist.
var ErrDataIntegrity = errors.New("data integrity error")
