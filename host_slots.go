package libevents

import (
	"sync"
)

// SlotHost is an in-memory host for plain Go objects: it keeps one callback per slot name, the
// way a scripting host keeps one on<event> property per object.
type SlotHost struct {
	mu    sync.RWMutex
	slots map[string]DispatchFunc
}

func NewSlotHost() *SlotHost {
	return &SlotHost{slots: make(map[string]DispatchFunc)}
}

// Set puts a native callback into the slot for event, replacing what was there.
func (h *SlotHost) Set(event string, fn DispatchFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if fn == nil {
		delete(h.slots, SlotName(event))
		return
	}
	h.slots[SlotName(event)] = fn
}

// Slot returns the callback currently held for event, or nil.
func (h *SlotHost) Slot(event string) DispatchFunc {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.slots[SlotName(event)]
}

// Fire delivers a native event occurrence. An empty slot means nothing listens and the event
// proceeds.
func (h *SlotHost) Fire(event string, args ...any) (bool, error) {
	fn := h.Slot(event)
	if fn == nil {
		return true, nil
	}
	return fn(args)
}

func (h *SlotHost) Install(event string, dispatch DispatchFunc) error {
	h.Set(event, dispatch)
	return nil
}

func (h *SlotHost) Remove(event string) error {
	h.Set(event, nil)
	return nil
}
