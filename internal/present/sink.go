// Package present defines how annotated frames and session events leave the
// pipeline, and provides the sinks that display or record them.
package present

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Sink receives pipeline output. Implementations must not block for long in
// OnFrame: it runs on the pipeline worker.
type Sink interface {
	// OnFrame delivers one output frame. The sink owns ev.Frame and must
	// close it.
	OnFrame(ev FrameEvent)

	// OnSessionEnded is called exactly once per session, after the last
	// OnFrame of that session.
	OnSessionEnded(end SessionEnd)

	// OnNoSourceLoaded is called when playback is requested without a source.
	OnNoSourceLoaded()
}

// FrameEvent is one frame leaving the pipeline.
type FrameEvent struct {
	SessionID string
	// Seq is the source counter of the frame, starting at 1.
	Seq   uint64
	Frame gocv.Mat
	// PersonCount is the count from the most recent detected frame.
	PersonCount int
	// Detected is true when this frame went through detection.
	Detected bool
	Mode     string
}

// EndKind classifies why a session ended.
type EndKind int

const (
	EndOfStream EndKind = iota
	EndError
	EndUserStopped
)

func (k EndKind) String() string {
	switch k {
	case EndOfStream:
		return "end_of_stream"
	case EndError:
		return "error"
	case EndUserStopped:
		return "user_stopped"
	default:
		return fmt.Sprintf("EndKind(%d)", int(k))
	}
}

// EndReason says why a session ended. Err is set only for EndError.
type EndReason struct {
	Kind EndKind
	Err  error
}

func (r EndReason) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %v", r.Kind, r.Err)
	}
	return r.Kind.String()
}

// SessionEnd summarizes a finished session.
type SessionEnd struct {
	SessionID      string
	Source         string
	Mode           string
	Reason         EndReason
	Frames         uint64
	DetectedFrames uint64
	MaxPersons     int
}

// Discard is a Sink that drops everything.
type Discard struct{}

func (Discard) OnFrame(ev FrameEvent) { ev.Frame.Close() }

func (Discard) OnSessionEnded(SessionEnd) {}

func (Discard) OnNoSourceLoaded() {}
