package present

import (
	"sync"
	"time"
)

// Record is what Headless keeps of a frame event.
type Record struct {
	SessionID   string
	Seq         uint64
	PersonCount int
	Detected    bool
	Width       int
	Height      int
	Mode        string
}

// Headless records pipeline output without displaying it. It is used by
// tests and batch runs.
type Headless struct {
	mu       sync.Mutex
	records  []Record
	ends     []SessionEnd
	noSource int
	endCh    chan SessionEnd
	hook     func(Record)
}

// NewHeadless creates an empty recorder.
func NewHeadless() *Headless {
	return &Headless{endCh: make(chan SessionEnd, 64)}
}

// SetFrameHook registers fn to run for every frame after it is recorded.
func (h *Headless) SetFrameHook(fn func(Record)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hook = fn
}

func (h *Headless) OnFrame(ev FrameEvent) {
	rec := Record{
		SessionID:   ev.SessionID,
		Seq:         ev.Seq,
		PersonCount: ev.PersonCount,
		Detected:    ev.Detected,
		Width:       ev.Frame.Cols(),
		Height:      ev.Frame.Rows(),
		Mode:        ev.Mode,
	}
	ev.Frame.Close()

	h.mu.Lock()
	h.records = append(h.records, rec)
	hook := h.hook
	h.mu.Unlock()

	if hook != nil {
		hook(rec)
	}
}

func (h *Headless) OnSessionEnded(end SessionEnd) {
	h.mu.Lock()
	h.ends = append(h.ends, end)
	h.mu.Unlock()

	select {
	case h.endCh <- end:
	default:
	}
}

func (h *Headless) OnNoSourceLoaded() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.noSource++
}

// WaitEnded blocks until the next session end or the timeout elapses.
func (h *Headless) WaitEnded(timeout time.Duration) (SessionEnd, bool) {
	select {
	case end := <-h.endCh:
		return end, true
	case <-time.After(timeout):
		return SessionEnd{}, false
	}
}

// Records returns a copy of every recorded frame event.
func (h *Headless) Records() []Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Record, len(h.records))
	copy(out, h.records)
	return out
}

// Ends returns a copy of every recorded session end.
func (h *Headless) Ends() []SessionEnd {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]SessionEnd, len(h.ends))
	copy(out, h.ends)
	return out
}

// NoSourceCount returns how many times OnNoSourceLoaded was called.
func (h *Headless) NoSourceCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.noSource
}
