package libevents

import (
	"sync"

	"github.com/asaskevich/EventBus"
	"github.com/pkg/errors"
)

// busHost bridges a Target to a process-wide topic bus. Each event the Target listens to holds
// exactly one subscription on topic "<prefix>:<event>". Publishers send a single []any argument.
type busHost struct {
	bus    EventBus.Bus
	prefix string
	logger Logger

	mu       sync.Mutex
	handlers map[string]func([]any)
}

// NewBusHost returns a Host whose native slots are subscriptions on bus.
func NewBusHost(logger Logger, bus EventBus.Bus, prefix string) Host {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &busHost{
		bus:      bus,
		prefix:   prefix,
		logger:   logger.WithField("host", "bus"),
		handlers: make(map[string]func([]any)),
	}
}

// BusTopic is the topic a bus host subscribes to for event.
func BusTopic(prefix, event string) string {
	return prefix + ":" + event
}

func (h *busHost) Install(event string, dispatch DispatchFunc) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	topic := BusTopic(h.prefix, event)
	if prev, ok := h.handlers[event]; ok {
		if err := h.bus.Unsubscribe(topic, prev); err != nil {
			return errors.Wrapf(err, "cannot release slot %s", topic)
		}
	}

	handler := func(args []any) {
		ok, err := dispatch(args)
		if err != nil {
			h.logger.Errorf("dispatch on %s failed: %s", topic, err)
			return
		}
		h.logger.Debugf("dispatch on %s done, ok=%t", topic, ok)
	}
	if err := h.bus.Subscribe(topic, handler); err != nil {
		return errors.Wrapf(err, "cannot subscribe to %s", topic)
	}
	h.handlers[event] = handler
	return nil
}

func (h *busHost) Remove(event string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	handler, ok := h.handlers[event]
	if !ok {
		return nil
	}
	delete(h.handlers, event)
	return h.bus.Unsubscribe(BusTopic(h.prefix, event), handler)
}
