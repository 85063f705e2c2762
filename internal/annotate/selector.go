package annotate

import (
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/personlens/internal/detector"
)

// Selector holds the active mode and lazily builds one annotator for it.
// Changing the mode does not construct anything; the next Current or
// Annotate call replaces the cached instance. Safe for concurrent use.
type Selector struct {
	mu             sync.Mutex
	mode           Mode
	inst           Annotator
	instMode       Mode
	instantiations int
}

// NewSelector creates a Selector starting in mode m.
// An unregistered mode falls back to DefaultMode.
func NewSelector(m Mode) *Selector {
	if _, ok := registry[m]; !ok {
		m = DefaultMode
	}
	return &Selector{mode: m}
}

// SetMode selects m and reports whether it differs from the current mode.
func (s *Selector) SetMode(m Mode) (changed bool, err error) {
	if _, ok := registry[m]; !ok {
		return false, ErrUnknownMode
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if m == s.mode {
		return false, nil
	}
	s.mode = m
	return true, nil
}

// Mode returns the selected mode.
func (s *Selector) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Current returns the annotator for the selected mode, constructing it on
// first use after a mode change.
func (s *Selector) Current() Annotator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked()
}

func (s *Selector) currentLocked() Annotator {
	if s.inst != nil && s.instMode == s.mode {
		return s.inst
	}
	if s.inst != nil {
		s.inst.Close()
	}
	s.inst = registry[s.mode]()
	s.instMode = s.mode
	s.instantiations++
	return s.inst
}

// Annotate draws dets onto a copy of frame with the current annotator.
func (s *Selector) Annotate(frame gocv.Mat, dets []detector.Detection) gocv.Mat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked().Annotate(frame, dets)
}

// Reset clears accumulated state on the live annotator, if any.
func (s *Selector) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inst != nil {
		s.inst.Reset()
	}
}

// Instantiations returns how many annotators have been constructed.
func (s *Selector) Instantiations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instantiations
}

// Close releases the cached annotator.
func (s *Selector) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inst == nil {
		return nil
	}
	err := s.inst.Close()
	s.inst = nil
	return err
}
