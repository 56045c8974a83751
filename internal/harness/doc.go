// Package harness runs scripted dispatch scenarios and checks their traces.
//
// A scenario wires listeners and tasks to a fresh Core, drives a scripted
// sequence of frames against it, and evaluates assertions over the
// resulting trace.
//
// # Scenario Format
//
// Scenarios are YAML files, or CUE files with a top-level scenario field:
//
//	name: fixed_then_tick
//	description: "Fixed steps run before the frame's tick"
//	policy: recreate            # or fail
//	listeners:
//	  - name: A
//	    channel: tick           # tick, fixed_tick, post_tick
//	  - name: B
//	    channel: fixed_tick
//	    once: true              # remove after the first call
//	tasks:
//	  - name: fade
//	    waits: [fixed_tick, end_of_frame, "frames:2", "delay:50ms"]
//	frames:
//	  - fixed_steps: 2
//	    delta: 16ms
//	  - destroy: true           # destroy the host after this frame
//	  - start: [fade]           # before this frame
//	    subscribe: [A]
//	assertions:
//	  - type: trace_equals
//	    names: [B, B, A]
//
// # Assertion Types
//
//   - trace_equals: listener and task entries match names exactly
//   - trace_order: names appear in order, other entries may intervene
//   - trace_count: entries of any kind named name appear count times
//   - task_state: the last handle started for name is in state
//   - hosts: count hosts were bound over the run
//
// # Deterministic Testing
//
// Ids come from a sequence generator ("id-0001", ...) shared by hosts and
// tasks, sequence numbers from the hub's logical clock, and deltas from the
// scenario, so identical scenarios give byte-identical traces for golden
// file comparison.
package harness
