package sample

// MaxDepth is the maximum number of frames recorded for a single sample.
// Deeper stacks are truncated at the root side.
const MaxDepth = 200

type (
	// FrameID is an opaque reference to a frame owned by a frame table.
	// Samples only store and hand them back, they never resolve them.
	FrameID uint64

	// Sample is a snapshot of a call stack. It has a fixed shape so it can be
	// copied in and out of a ring buffer slot without allocating.
	Sample struct {
		// Frames holds the frame identifiers, leaf first. Only the first
		// Depth entries are meaningful.
		Frames [MaxDepth]FrameID
		Depth  int

		// Timestamp is the number of nanoseconds elapsed since the session
		// started when the sample was captured.
		Timestamp uint64
		// ConsumedTimeNS is the time spent in the notification handler to
		// capture this sample.
		ConsumedTimeNS uint64
	}
)

// Stack returns the meaningful part of the frame identifiers, leaf first.
// The returned slice aliases the sample.
func (s *Sample) Stack() []FrameID {
	return s.Frames[:s.Depth]
}

// Append adds a frame at the root side of the stack. It returns false once
// MaxDepth is reached.
func (s *Sample) Append(id FrameID) bool {
	if s.Depth >= MaxDepth {
		return false
	}
	s.Frames[s.Depth] = id
	s.Depth++
	return true
}

// Reset clears the stack without touching the backing array.
func (s *Sample) Reset() {
	s.Depth = 0
	s.Timestamp = 0
	s.ConsumedTimeNS = 0
}

// Visit calls visit for every frame identifier of the sample.
func (s *Sample) Visit(visit func(FrameID)) {
	for i := 0; i < s.Depth; i++ {
		visit(s.Frames[i])
	}
}
