package present

import (
	"context"
	"sync"
)

// Slot is a single-entry mailbox between the pipeline worker and a display
// loop. Put never blocks: an unconsumed frame is closed and replaced by the
// newer one, so the consumer always sees the latest frame.
type Slot struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ev     *FrameEvent
	closed bool

	consecutiveDrops uint64
	totalDrops       uint64
	lastSeq          uint64
}

// NewSlot creates an empty Slot.
func NewSlot() *Slot {
	s := &Slot{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Put stores ev, releasing any frame still waiting in the slot.
// After Close the frame is released immediately.
func (s *Slot) Put(ev FrameEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		ev.Frame.Close()
		return
	}
	if s.ev != nil {
		s.ev.Frame.Close()
		s.consecutiveDrops++
		s.totalDrops++
	}
	s.ev = &ev
	s.cond.Signal()
}

// Take blocks until a frame is available, ctx is done or the slot is closed.
// The caller owns the returned frame.
func (s *Slot) Take(ctx context.Context) (FrameEvent, bool) {
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.cond.Broadcast()
	})
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for s.ev == nil && !s.closed && ctx.Err() == nil {
		s.cond.Wait()
	}
	return s.takeLocked()
}

// TryTake returns the pending frame without blocking.
func (s *Slot) TryTake() (FrameEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.takeLocked()
}

func (s *Slot) takeLocked() (FrameEvent, bool) {
	if s.ev == nil {
		return FrameEvent{}, false
	}
	ev := *s.ev
	s.ev = nil
	s.consecutiveDrops = 0
	s.lastSeq = ev.Seq
	return ev, true
}

// Drops returns the lifetime number of frames replaced before consumption.
func (s *Slot) Drops() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalDrops
}

// LastSeq returns the sequence number of the last consumed frame.
func (s *Slot) LastSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeq
}

// Close releases any pending frame and wakes blocked consumers.
func (s *Slot) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.ev != nil {
		s.ev.Frame.Close()
		s.ev = nil
	}
	s.cond.Broadcast()
}
