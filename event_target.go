package libevents

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Target is an object that carries event listeners. Listeners are queued FIFO per event name and
// lose their place in line when dropped. The first listener for an event installs the Target's
// dispatcher into the host's single native slot for that event.
//
// The registry lock is never held while a listener runs, so listeners may register, drop or
// emit on the same Target.
type Target struct {
	owner  any
	host   Host
	logger Logger

	lock      sync.Mutex
	listeners map[string]*listenerQueue
}

// NewTarget creates a Target. owner is the default receiver handed to listeners; when nil the
// Target itself is used. A nil host means there is no native environment to bridge to.
func NewTarget(logger Logger, owner any, host Host) *Target {
	if logger == nil {
		logger = NewNopLogger()
	}
	if host == nil {
		host = noopHost{}
	}
	t := &Target{
		host:   host,
		logger: logger.WithField("type", "event_target"),
	}
	if owner == nil {
		t.owner = t
	} else {
		t.owner = owner
	}
	return t
}

// Owner returns the default receiver of this Target's listeners.
func (t *Target) Owner() any {
	return t.owner
}

// On registers listener for event and returns the Target for chaining. The optional receiver
// replaces the owner as the listener's this. Invalid arguments and host failures are logged;
// use AddListener to get them back as an error.
func (t *Target) On(event string, listener *Listener, receiver ...any) *Target {
	if err := t.AddListener(event, listener, receiver...); err != nil {
		t.logger.Warnf("cannot add listener for %q: %s", event, err)
	}
	return t
}

// AddListener registers listener for event. It fails with ErrInvalidArgument, leaving the
// registry untouched, when the event name is empty or the listener is missing.
func (t *Target) AddListener(event string, listener *Listener, receiver ...any) error {
	if event == "" {
		return errors.Wrap(ErrInvalidArgument, "empty event name")
	}
	if listener == nil || listener.fn == nil {
		return errors.Wrapf(ErrInvalidArgument, "no callable listener for %q", event)
	}
	if len(receiver) > 1 {
		return errors.Wrapf(ErrInvalidArgument, "%d receivers given for %q", len(receiver), event)
	}

	entry := &listenerEntry{listener: listener, receiver: t.owner}
	if len(receiver) == 1 {
		entry.receiver = receiver[0]
	}

	t.lock.Lock()
	if t.listeners == nil {
		t.listeners = make(map[string]*listenerQueue)
	}
	if q, ok := t.listeners[event]; ok {
		q.append(entry)
		t.lock.Unlock()
		t.logger.Debugf("queued listener for %q", event)
		return nil
	}
	q := &listenerQueue{}
	q.append(entry)
	t.listeners[event] = q
	t.lock.Unlock()

	// First listener for this event: take over the host slot.
	if err := t.host.Install(event, t.bridge(event)); err != nil {
		t.lock.Lock()
		if t.listeners != nil && t.listeners[event] == q {
			delete(t.listeners, event)
		}
		t.lock.Unlock()
		return errors.Wrapf(err, "cannot install bridge for %q", event)
	}

	t.logger.Debugf("installed bridge for %q", event)
	return nil
}

func (t *Target) bridge(event string) DispatchFunc {
	return func(args []any) (bool, error) {
		return t.Dispatch(event, args)
	}
}

// Emit runs a dispatch pass for event with args. See Dispatch.
func (t *Target) Emit(event string, args ...any) (bool, error) {
	return t.Dispatch(event, args)
}

// Dispatch calls every listener queued for event, front to back. The result is false when any
// listener returned false. A listener returning ErrDropListener is removed and the pass goes on.
// Any other listener error stops the pass and is returned as a *ListenerError; listeners after
// it do not run during this pass but stay queued.
func (t *Target) Dispatch(event string, args []any) (bool, error) {
	t.lock.Lock()
	q, ok := t.listeners[event]
	t.lock.Unlock()
	if !ok {
		return true, nil
	}

	ok = true
	for i := 0; ; i++ {
		t.lock.Lock()
		entry := q.at(i)
		t.lock.Unlock()
		if entry == nil {
			break
		}

		pass, err := entry.listener.invoke(entry.receiver, args)
		if err == nil {
			if !pass {
				ok = false
			}
			continue
		}

		if IsDropListener(err) {
			t.lock.Lock()
			// The queue may have moved under us while the listener ran.
			if at := q.indexOf(entry); at >= 0 {
				q.removeAt(at)
				if at <= i {
					i--
				}
			}
			t.lock.Unlock()
			t.logger.Debugf("listener dropped itself from %q", event)
			continue
		}

		t.logger.Errorf("listener #%d for %q failed: %+v", i, event, err)
		return ok, &ListenerError{Event: event, Index: i, Err: err}
	}

	return ok, nil
}

// DropListener removes every registration of listener for event. The host slot stays in place
// even when the queue ends up empty.
func (t *Target) DropListener(event string, listener *Listener) *Target {
	t.lock.Lock()
	defer t.lock.Unlock()

	q, ok := t.listeners[event]
	if !ok {
		return t
	}
	if n := q.removeListener(listener); n > 0 {
		t.logger.Debugf("dropped %d listener(s) from %q", n, event)
	}
	return t
}

// DropEvent removes the whole queue for event and resets the host slot.
func (t *Target) DropEvent(event string) *Target {
	t.lock.Lock()
	_, ok := t.listeners[event]
	delete(t.listeners, event)
	t.lock.Unlock()
	if !ok {
		return t
	}

	t.removeBridge(event)
	return t
}

// DropAllEvents resets every host slot this Target took over and discards the registry.
func (t *Target) DropAllEvents() *Target {
	t.lock.Lock()
	listeners := t.listeners
	t.listeners = nil
	t.lock.Unlock()

	for event := range listeners {
		t.removeBridge(event)
	}
	return t
}

func (t *Target) removeBridge(event string) {
	if err := t.host.Remove(event); err != nil {
		t.logger.Warnf("cannot remove bridge for %q: %s", event, err)
		return
	}
	t.logger.Debugf("removed bridge for %q", event)
}

// HasEventListener checks whether at least one listener is queued for event.
func (t *Target) HasEventListener(event string) bool {
	return t.ListenerCount(event) > 0
}

// ListenerCount returns the number of entries queued for event.
func (t *Target) ListenerCount(event string) int {
	t.lock.Lock()
	defer t.lock.Unlock()

	q, ok := t.listeners[event]
	if !ok {
		return 0
	}
	return len(q.entries)
}

// Queued reports whether listener is registered for any event.
func (t *Target) Queued(listener *Listener) bool {
	t.lock.Lock()
	defer t.lock.Unlock()

	for _, q := range t.listeners {
		for _, e := range q.entries {
			if e.listener == listener {
				return true
			}
		}
	}
	return false
}

// EventNames lists, sorted, the events that own a queue, including emptied ones whose bridge is
// still installed.
func (t *Target) EventNames() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	names := make([]string, 0, len(t.listeners))
	for name := range t.listeners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
