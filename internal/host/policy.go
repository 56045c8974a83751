package host

import (
	"fmt"
	"strings"
)

// RecreatePolicy decides what happens when the host is needed after it was
// destroyed.
type RecreatePolicy int

const (
	// Recreate creates a fresh host on the next request. Default.
	Recreate RecreatePolicy = iota

	// FailAfterDestroy refuses with ErrNoHostAvailable once a host has been
	// destroyed.
	FailAfterDestroy
)

func (p RecreatePolicy) String() string {
	switch p {
	case Recreate:
		return "recreate"
	case FailAfterDestroy:
		return "fail"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy parses "recreate" or "fail". The empty string is Recreate.
func ParsePolicy(s string) (RecreatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "recreate":
		return Recreate, nil
	case "fail":
		return FailAfterDestroy, nil
	default:
		return Recreate, fmt.Errorf("unknown recreate policy %q: must be recreate or fail", s)
	}
}

// State is the lifecycle's view of its host.
type State int

const (
	// Uninitialized means no host has been bound yet.
	Uninitialized State = iota

	// Alive means a live host is bound.
	Alive

	// Destroyed means the bound host was destroyed.
	Destroyed

	// ShutDown means the lifecycle was shut down and will not bind again.
	ShutDown
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Alive:
		return "alive"
	case Destroyed:
		return "destroyed"
	case ShutDown:
		return "shutdown"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
