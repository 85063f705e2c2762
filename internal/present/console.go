package present

import (
	"sync"

	"github.com/cyclopcam/logs"
)

// Console logs person count changes and session ends.
type Console struct {
	log logs.Log

	mu        sync.Mutex
	lastCount int
	frames    uint64
}

// NewConsole creates a console sink writing to log.
func NewConsole(log logs.Log) *Console {
	return &Console{log: log, lastCount: -1}
}

func (c *Console) OnFrame(ev FrameEvent) {
	ev.Frame.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames++
	if ev.Detected && ev.PersonCount != c.lastCount {
		c.log.Infof("Frame %d: %d person(s) in view", ev.Seq, ev.PersonCount)
		c.lastCount = ev.PersonCount
	}
}

func (c *Console) OnSessionEnded(end SessionEnd) {
	c.mu.Lock()
	c.lastCount = -1
	c.mu.Unlock()

	if end.Reason.Kind == EndError {
		c.log.Errorf("Session %s ended: %v (%d frames, %d detected)", end.SessionID, end.Reason, end.Frames, end.DetectedFrames)
		return
	}
	c.log.Infof("Session %s ended: %v (%d frames, %d detected, max %d persons)",
		end.SessionID, end.Reason, end.Frames, end.DetectedFrames, end.MaxPersons)
}

func (c *Console) OnNoSourceLoaded() {
	c.log.Warnf("No video loaded: load a source before playing")
}
