package dispatch

// Clock is a monotonic logical clock used to stamp dispatch passes.
//
// Every pass on every channel gets a strictly increasing Seq, so a trace of
// events can be ordered without wall-clock timestamps.
//
// Clock is not safe for concurrent use. It belongs to the dispatch goroutine
// like everything else in this package.
type Clock struct {
	seq int64
}

// NewClock creates a clock starting at 0. The first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at a specific sequence number.
func NewClockAt(start int64) *Clock {
	return &Clock{seq: start}
}

// Next increments the clock and returns the new value.
func (c *Clock) Next() int64 {
	c.seq++
	return c.seq
}

// Current returns the last value handed out without incrementing.
func (c *Clock) Current() int64 {
	return c.seq
}
