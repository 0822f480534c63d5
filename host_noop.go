package libevents

type noopHost struct{}

func (noopHost) Install(string, DispatchFunc) error { return nil }

func (noopHost) Remove(string) error { return nil }
