// Package coroutine runs cooperative tasks on the dispatch goroutine.
//
// A task is a Routine: an iter.Seq[Wait] whose body yields wait
// instructions. The scheduler pulls the routine with iter.Pull, so control
// hands off between the loop and the routine without any parallelism:
// exactly one of them runs at a time.
//
//	routine := func(yield func(coroutine.Wait) bool) {
//	    defer cleanup()
//	    for i := 0; i < 3; i++ {
//	        if !yield(coroutine.NextTick()) {
//	            return // stopped
//	        }
//	    }
//	}
//
// Lifecycle:
//   - Start runs the routine synchronously up to its first yield
//   - the host resumes waiting tasks after the matching channel's listeners
//   - Stop is a state transition; the routine is torn down at its
//     suspension point, where yield returns false and deferred calls run
//
// A task resumes only on a dispatch pass stamped after the pass in which it
// yielded, so a task started from a Tick listener waits for the next frame.
package coroutine
