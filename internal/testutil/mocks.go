package testutil

import (
	"sync"

	"github.com/stretchr/testify/mock"
)

// MockNavigator records navigations requested by a session
type MockNavigator struct {
	mock.Mock
}

func (m *MockNavigator) Replace(path string) {
	m.Called(path)
}

// RecordingNavigator keeps every path it is asked to navigate to
type RecordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *RecordingNavigator) Replace(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

// Paths returns the navigations in order
func (n *RecordingNavigator) Paths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}
