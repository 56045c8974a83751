// Package host manages the engine-side object that drives the dispatch hub.
//
// A Host receives the engine's per-frame driver callbacks and turns each one
// into a hub dispatch followed by a coroutine resume pass. The Lifecycle
// makes sure at most one host is bound at a time: it adopts a host already
// present in the SceneGraph, or creates a persistent hidden one, and applies
// the RecreatePolicy once that host is destroyed. TaskProxy starts and stops
// coroutines on whichever host is current.
package host
