package stats

import (
	"github.com/stretchr/testify/mock"
)

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RegisterCounter(name, help string) {
	m.Called(name, help)
}

func (m *MockRecorder) RegisterGauge(name, help string) {
	m.Called(name, help)
}

func (m *MockRecorder) Incr(name string) {
	m.Called(name)
}

func (m *MockRecorder) Decr(name string) {
	m.Called(name)
}

// NopRecorder discards all updates. Useful where a test doesn't care about
// which metrics were touched.
type NopRecorder struct{}

func (NopRecorder) RegisterCounter(name, help string) {}
func (NopRecorder) RegisterGauge(name, help string)   {}
func (NopRecorder) Incr(name string)                  {}
func (NopRecorder) Decr(name string)                  {}
