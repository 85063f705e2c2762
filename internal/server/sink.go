package server

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cyclopcam/logs"
	"gocv.io/x/gocv"

	"github.com/ayusman/personlens/internal/present"
)

var _ present.Sink = (*Sink)(nil)

// FrameInfo is the payload of a frame message.
type FrameInfo struct {
	SessionID   string `json:"session_id"`
	Seq         uint64 `json:"seq"`
	PersonCount int    `json:"person_count"`
	Mode        string `json:"mode"`
}

// SessionInfo is the payload of a session_ended message.
type SessionInfo struct {
	SessionID      string `json:"session_id"`
	Source         string `json:"source"`
	Mode           string `json:"mode"`
	Reason         string `json:"reason"`
	Error          string `json:"error,omitempty"`
	Frames         uint64 `json:"frames"`
	DetectedFrames uint64 `json:"detected_frames"`
	MaxPersons     int    `json:"max_persons"`
}

// Sink is a present.Sink that keeps the latest frame as JPEG for MJPEG
// viewers and forwards counts and session events to websocket clients.
type Sink struct {
	log logs.Log
	hub *Hub

	// viewers is the number of open MJPEG streams. Frames are only encoded
	// while someone is watching.
	viewers atomic.Int32

	mu      sync.Mutex
	jpeg    []byte
	seq     uint64
	changed chan struct{}
}

// NewSink creates a sink publishing to hub.
func NewSink(log logs.Log, hub *Hub) *Sink {
	return &Sink{
		log:     log,
		hub:     hub,
		changed: make(chan struct{}),
	}
}

func (s *Sink) OnFrame(ev present.FrameEvent) {
	if s.viewers.Load() > 0 {
		s.publish(ev.Frame)
	}
	ev.Frame.Close()

	// Skipped frames repeat the last count
	if ev.Detected {
		s.hub.Broadcast(Message{Type: MessageTypeFrame, Data: FrameInfo{
			SessionID:   ev.SessionID,
			Seq:         ev.Seq,
			PersonCount: ev.PersonCount,
			Mode:        ev.Mode,
		}})
	}
}

func (s *Sink) OnSessionEnded(end present.SessionEnd) {
	info := SessionInfo{
		SessionID:      end.SessionID,
		Source:         end.Source,
		Mode:           end.Mode,
		Reason:         end.Reason.Kind.String(),
		Frames:         end.Frames,
		DetectedFrames: end.DetectedFrames,
		MaxPersons:     end.MaxPersons,
	}
	if end.Reason.Err != nil {
		info.Error = end.Reason.Err.Error()
	}
	s.hub.Broadcast(Message{Type: MessageTypeSessionEnded, Data: info})
}

func (s *Sink) OnNoSourceLoaded() {
	s.hub.Broadcast(Message{Type: MessageTypeNoSource})
}

func (s *Sink) publish(frame gocv.Mat) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		s.log.Debugf("JPEG encode failed: %v", err)
		return
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	s.mu.Lock()
	s.jpeg = data
	s.seq++
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()
}

// Latest returns the most recent JPEG and its sequence, or nil before the
// first frame.
func (s *Sink) Latest() ([]byte, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jpeg, s.seq
}

// next blocks until a JPEG newer than after is available.
func (s *Sink) next(ctx context.Context, after uint64) ([]byte, uint64, bool) {
	for {
		s.mu.Lock()
		if s.seq > after && s.jpeg != nil {
			data, seq := s.jpeg, s.seq
			s.mu.Unlock()
			return data, seq, true
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, 0, false
		}
	}
}

func (s *Sink) addViewer() func() {
	s.viewers.Add(1)
	return func() { s.viewers.Add(-1) }
}
