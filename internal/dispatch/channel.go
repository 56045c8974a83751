package dispatch

import (
	"fmt"
	"strings"
)

// Channel identifies one of the periodic notification channels.
type Channel int

const (
	// Tick fires once per rendered/logical frame.
	Tick Channel = iota + 1
	// FixedTick fires zero or more times per frame at the fixed step.
	FixedTick
	// PostTick fires once per frame after every Tick listener has run.
	PostTick
)

// Channels lists every channel in per-frame dispatch order.
var Channels = []Channel{FixedTick, Tick, PostTick}

// String returns the wire name of the channel.
func (c Channel) String() string {
	switch c {
	case Tick:
		return "tick"
	case FixedTick:
		return "fixed_tick"
	case PostTick:
		return "post_tick"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

// Valid reports whether c is one of the defined channels.
func (c Channel) Valid() bool {
	return c >= Tick && c <= PostTick
}

// ParseChannel converts a wire name into a Channel.
// Accepts "tick", "fixed_tick" and "post_tick" case-insensitively,
// plus the hyphenated forms.
func ParseChannel(s string) (Channel, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case "tick":
		return Tick, nil
	case "fixed_tick", "fixed":
		return FixedTick, nil
	case "post_tick", "post":
		return PostTick, nil
	default:
		return 0, fmt.Errorf("unknown channel %q: must be one of tick, fixed_tick, post_tick", s)
	}
}

// index maps a valid channel to its slot in the hub's set array.
func (c Channel) index() int {
	return int(c) - 1
}
