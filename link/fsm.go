package link

import "fmt"

// fsmCallback runs as a state transition's side effect.
type fsmCallback func(args []interface{})

// eventDesc describes one legal transition: from state "from", on any
// of "events", move to state "to" and invoke cb.
type eventDesc struct {
	from, to State
	events   []string
	cb       fsmCallback
}

// fsm is a small table-driven state machine, the same shape this
// codebase's control-plane state machines use, generalized to the
// link package's State type and string-named events.
type fsm struct {
	current State
	table   []eventDesc
}

// handleEvent looks for a transition out of the current state
// matching event e, applies it, and runs its callback. It returns an
// error if no such transition is defined, which the caller treats as
// "drop and log", never as fatal.
func (f *fsm) handleEvent(e string, args ...interface{}) error {
	for _, t := range f.table {
		if f.current != t.from {
			continue
		}
		for _, event := range t.events {
			if e == event {
				f.current = t.to
				if t.cb != nil {
					t.cb(args)
				}
				return nil
			}
		}
	}
	return fmt.Errorf("no transition defined for event %v in state %v", e, f.current)
}
