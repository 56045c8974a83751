package dispatch

import "time"

// Event describes one notification delivered to listeners.
type Event struct {
	// Channel is the channel being dispatched.
	Channel Channel

	// Frame is the host's frame counter. FixedTick events carry the number
	// of the frame they precede.
	Frame uint64

	// Step is the index of a FixedTick within its frame (0-based).
	// Always 0 for Tick and PostTick.
	Step int

	// Seq is the logical sequence number of this dispatch pass.
	Seq int64

	// Delta is the frame delta for Tick, the fixed step for FixedTick,
	// and zero for PostTick.
	Delta time.Duration
}
