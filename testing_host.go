package libevents

import (
	"github.com/stretchr/testify/mock"
)

type mockHost struct {
	mock.Mock

	dispatchers map[string]DispatchFunc
}

func newMockHost() *mockHost {
	return &mockHost{dispatchers: make(map[string]DispatchFunc)}
}

func (m *mockHost) Install(event string, dispatch DispatchFunc) error {
	args := m.Called(event)
	if err := args.Error(0); err != nil {
		return err
	}
	m.dispatchers[event] = dispatch
	return nil
}

func (m *mockHost) Remove(event string) error {
	args := m.Called(event)
	delete(m.dispatchers, event)
	return args.Error(0)
}
