// Package dispatch implements the three tick notification channels.
//
// ARCHITECTURE:
//
// Single Dispatch Goroutine:
// Every method in this package runs on the goroutine that drives the engine
// loop. Nothing here takes a lock. The only ordering discipline is
// "snapshot before iterate": a dispatch pass walks the listener list as it
// was when the pass started, so listeners may subscribe and unsubscribe
// freely from inside their own callbacks.
//
// Channels:
//   - FixedTick: zero or more times per frame, at the fixed simulation step
//   - Tick:      exactly once per frame
//   - PostTick:  exactly once per frame, after Tick
//
// The hub never decides cadence. The external driver calls the Dispatch*
// methods; the hub guarantees FIFO, duplicate-free fan-out when it does.
//
// Subscription Semantics:
// Subscribing a listener that is already present moves it to the end of the
// channel instead of adding a second entry. Unsubscribing an absent listener
// is a no-op.
package dispatch
