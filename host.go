package libevents

type (
	// DispatchFunc runs a full dispatch pass for one event. It is what a host calls from the
	// native slot it keeps for that event.
	DispatchFunc func(args []any) (bool, error)

	// Host is the environment side of a Target: something that keeps a single native callback
	// slot per event name. The Target installs its dispatcher into the slot when the first
	// listener for an event arrives and removes it when the event is dropped.
	Host interface {
		// Install replaces whatever the host held in the slot for event with dispatch.
		Install(event string, dispatch DispatchFunc) error
		// Remove puts the slot for event back into its inert state.
		Remove(event string) error
	}
)

// SlotName is the conventional name of the native slot for event.
func SlotName(event string) string {
	return "on" + event
}
