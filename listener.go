package libevents

type (
	// ListenerFunc handles one event occurrence. this is the receiver bound at registration, or
	// the owner of the Target. Returning false marks the dispatch pass as failed but does not stop
	// it. Returning ErrDropListener removes the listener from its queue.
	ListenerFunc func(this any, args []any) (bool, error)

	// Listener is the registration handle of a ListenerFunc. Removal compares handles, not funcs,
	// so keep the handle around to drop it later.
	Listener struct {
		fn ListenerFunc
	}

	listenerEntry struct {
		listener *Listener
		receiver any
	}

	// listenerQueue is the FIFO of entries for one event name. Dispatch walks it by index.
	listenerQueue struct {
		entries []*listenerEntry
	}
)

// NewListener wraps fn into a Listener handle.
func NewListener(fn ListenerFunc) *Listener {
	return &Listener{fn: fn}
}

// Handler wraps a func that never fails or vetoes.
func Handler(fn func(this any, args []any)) *Listener {
	return NewListener(func(this any, args []any) (bool, error) {
		fn(this, args)
		return true, nil
	})
}

func (l *Listener) invoke(this any, args []any) (bool, error) {
	return l.fn(this, args)
}

func (q *listenerQueue) append(e *listenerEntry) {
	q.entries = append(q.entries, e)
}

func (q *listenerQueue) at(i int) *listenerEntry {
	if i < 0 || i >= len(q.entries) {
		return nil
	}
	return q.entries[i]
}

func (q *listenerQueue) removeAt(i int) {
	copy(q.entries[i:], q.entries[i+1:])
	q.entries[len(q.entries)-1] = nil
	q.entries = q.entries[:len(q.entries)-1]
}

// indexOf returns the current position of e, or -1 once it is gone.
func (q *listenerQueue) indexOf(e *listenerEntry) int {
	for i, candidate := range q.entries {
		if candidate == e {
			return i
		}
	}
	return -1
}

// removeListener splices out every entry registered with l and returns how many went away.
func (q *listenerQueue) removeListener(l *Listener) int {
	removed := 0
	for i := 0; i < len(q.entries); i++ {
		if q.entries[i].listener == l {
			q.removeAt(i)
			i--
			removed++
		}
	}
	return removed
}
