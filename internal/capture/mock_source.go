package capture

import (
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// MockSource plays back pre-built frames for testing
type MockSource struct {
	frames  []*gocv.Mat
	index   int
	seq     uint64
	delay   time.Duration
	mu      sync.Mutex
	closed  bool
	closes  int
	rewinds int
}

// NewMockSource returns a source that yields a clone of each frame in order
// and then ErrEndOfStream. The frames remain owned by the caller.
func NewMockSource(frames []*gocv.Mat) *MockSource {
	return &MockSource{
		frames: frames,
	}
}

// SetDelay makes every Next call sleep for d, simulating decode latency.
func (s *MockSource) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

func (s *MockSource) Next() (*Frame, error) {
	s.mu.Lock()
	delay := s.delay
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSourceClosed
	}

	if s.index >= len(s.frames) {
		return nil, ErrEndOfStream
	}

	// Clone the frame so the original isn't modified
	mat := s.frames[s.index].Clone()
	s.index++
	s.seq++

	return &Frame{Mat: mat, Seq: s.seq}, nil
}

// Rewind restarts playback from the beginning
func (s *MockSource) Rewind() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSourceClosed
	}
	s.index = 0
	s.rewinds++
	return nil
}

func (s *MockSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.closes++
	return nil
}

func (s *MockSource) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := Info{Path: "mock", FrameCount: len(s.frames)}
	if len(s.frames) > 0 {
		info.Width = s.frames[0].Cols()
		info.Height = s.frames[0].Rows()
	}
	return info
}

// Closed reports whether Close has been called at least once.
func (s *MockSource) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes > 0
}

// Rewinds returns how many times Rewind was called.
func (s *MockSource) Rewinds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rewinds
}
