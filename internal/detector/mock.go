package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu         sync.Mutex
	detections []Detection
	err        error
	failOn     int
	failErr    error
	panicOn    int
	calls      int
	resets     int
	closed     bool
	sizes      [][2]int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetDetections sets the detections that will be returned by Detect.
func (m *MockDetector) SetDetections(dets []Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detections = dets
}

// SetError sets the error that will be returned by every Detect call.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// FailOnCall makes the n-th Detect call (1-based) return err.
func (m *MockDetector) FailOnCall(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn = n
	m.failErr = err
}

// PanicOnCall makes the n-th Detect call (1-based) panic.
func (m *MockDetector) PanicOnCall(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panicOn = n
}

// Detect returns the pre-configured detections or error.
func (m *MockDetector) Detect(frame gocv.Mat) ([]Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrDetectorClosed
	}
	m.calls++
	m.sizes = append(m.sizes, [2]int{frame.Cols(), frame.Rows()})
	if m.panicOn > 0 && m.calls == m.panicOn {
		panic("mock detector panic")
	}
	if m.failOn > 0 && m.calls == m.failOn {
		return nil, m.failErr
	}
	if m.err != nil {
		return nil, m.err
	}

	out := make([]Detection, len(m.detections))
	copy(out, m.detections)
	return out, nil
}

// Reset counts the call.
func (m *MockDetector) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	return nil
}

// Close marks the detector closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Calls returns how many times Detect was invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Resets returns how many times Reset was invoked.
func (m *MockDetector) Resets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

// FrameSizes returns the width and height of every frame passed to Detect.
func (m *MockDetector) FrameSizes() [][2]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][2]int, len(m.sizes))
	copy(out, m.sizes)
	return out
}
