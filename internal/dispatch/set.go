package dispatch

import "container/list"

// SubscriptionSet is a duplicate-free, insertion-ordered registry of
// listeners for one channel.
//
// INVARIANTS:
//   - a listener appears at most once
//   - order is insertion order, where re-subscribing counts as a fresh insertion
//
// The zero value is an empty set ready to use.
type SubscriptionSet struct {
	order list.List
	index map[*Listener]*list.Element
}

// DispatchResult summarises one dispatch pass.
type DispatchResult struct {
	// Event is the event as delivered to listeners.
	Event Event
	// Invoked counts listeners called in this pass, including failed ones.
	Invoked int
	// Failures lists listeners that returned an error or panicked, in call order.
	Failures []*ListenerError
}

// NewSubscriptionSet creates an empty set.
func NewSubscriptionSet() *SubscriptionSet {
	return &SubscriptionSet{}
}

// Subscribe adds l at the end of the set.
// If l is already present it is moved to the end, so the net effect is
// always exactly one entry in the last position. Nil listeners are ignored.
func (s *SubscriptionSet) Subscribe(l *Listener) {
	if l == nil {
		return
	}
	if s.index == nil {
		s.index = make(map[*Listener]*list.Element)
	}
	if e, ok := s.index[l]; ok {
		s.order.MoveToBack(e)
		return
	}
	s.index[l] = s.order.PushBack(l)
}

// Unsubscribe removes l. Returns false when l was not subscribed.
func (s *SubscriptionSet) Unsubscribe(l *Listener) bool {
	e, ok := s.index[l]
	if !ok {
		return false
	}
	s.order.Remove(e)
	delete(s.index, l)
	return true
}

// Contains reports whether l is subscribed.
func (s *SubscriptionSet) Contains(l *Listener) bool {
	_, ok := s.index[l]
	return ok
}

// Len returns the number of subscribed listeners.
func (s *SubscriptionSet) Len() int {
	return len(s.index)
}

// Clear removes every listener.
func (s *SubscriptionSet) Clear() {
	s.order.Init()
	s.index = nil
}

// Listeners returns a snapshot of the set in dispatch order.
func (s *SubscriptionSet) Listeners() []*Listener {
	if s.Len() == 0 {
		return nil
	}
	out := make([]*Listener, 0, s.Len())
	for e := s.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*Listener))
	}
	return out
}

// Dispatch invokes every listener present when the pass starts, in order.
//
// The pass iterates a snapshot, so listeners may mutate the set from their
// callbacks: additions take effect from the next pass, and removals never
// skip siblings already scheduled in this pass. Failures are isolated and
// returned; every scheduled listener runs.
func (s *SubscriptionSet) Dispatch(ev Event) DispatchResult {
	result := DispatchResult{Event: ev}
	for _, l := range s.Listeners() {
		result.Invoked++
		if failure := l.invoke(ev); failure != nil {
			result.Failures = append(result.Failures, failure)
		}
	}
	return result
}
