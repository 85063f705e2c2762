package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/personlens/internal/capture"
	"github.com/ayusman/personlens/internal/detector"
	"github.com/ayusman/personlens/internal/present"
	"github.com/ayusman/personlens/internal/store"
)

var userStopped = present.EndReason{Kind: present.EndUserStopped}

// run is the session worker. It reports the end exactly once, then releases
// the source and marks the controller Idle before signalling done.
func (c *Controller) run(ctx context.Context, s *session, src capture.Source) {
	defer close(s.done)
	defer s.cancel()

	reason := c.loop(ctx, s, src)

	end := present.SessionEnd{
		SessionID:      s.id,
		Source:         s.source,
		Mode:           string(s.mode),
		Reason:         reason,
		Frames:         s.frames.Load(),
		DetectedFrames: s.detected.Load(),
		MaxPersons:     int(s.maxPersons.Load()),
	}

	if reason.Kind == present.EndError {
		c.log.Errorf("Session %s failed after %d frames: %v", s.id, end.Frames, reason.Err)
	} else {
		c.log.Infof("Session %s ended: %v (%d frames, %d detected)", s.id, reason, end.Frames, end.DetectedFrames)
	}

	c.notifyEnded(end)

	if err := src.Close(); err != nil {
		c.log.Warnf("Error closing source: %v", err)
	}
	c.record(end, s.started)

	c.mu.Lock()
	if c.session == s {
		c.session = nil
		c.state = Idle
	}
	c.lastEnd = &end
	c.mu.Unlock()
}

// loop runs the per-frame algorithm until the stream ends, the session is
// cancelled or a stage fails.
func (c *Controller) loop(ctx context.Context, s *session, src capture.Source) (reason present.EndReason) {
	defer func() {
		if r := recover(); r != nil {
			reason = present.EndReason{Kind: present.EndError, Err: fmt.Errorf("worker panic: %v", r)}
		}
	}()

	class := c.sampler.Config().ClassOfInterest

	var (
		counter     uint64
		lastCount   int
		sinceRewind uint64
	)

	for {
		if ctx.Err() != nil {
			return userStopped
		}

		frame, err := src.Next()
		if errors.Is(err, capture.ErrEndOfStream) {
			// Rewinding an empty stream would spin forever
			if c.config.OnEnd == EndLoop && sinceRewind > 0 {
				if err := src.Rewind(); err != nil {
					return present.EndReason{Kind: present.EndError, Err: fmt.Errorf("rewind: %w", err)}
				}
				sinceRewind = 0
				continue
			}
			return present.EndReason{Kind: present.EndOfStream}
		}
		if err != nil {
			return present.EndReason{Kind: present.EndError, Err: err}
		}
		if ctx.Err() != nil {
			frame.Close()
			return userStopped
		}

		counter++
		result, err := c.sampler.Process(counter, frame.Mat)
		if err != nil {
			return present.EndReason{Kind: present.EndError, Err: err}
		}
		if ctx.Err() != nil {
			result.Frame.Close()
			return userStopped
		}

		ev := present.FrameEvent{
			SessionID: s.id,
			Seq:       counter,
			Mode:      string(s.mode),
		}

		switch result.Kind {
		case detector.Detected:
			ev.Frame = c.config.Selector.Annotate(result.Frame, result.Detections)
			result.Frame.Close()
			ev.Detected = true

			lastCount = detector.CountClass(result.Detections, class)
			c.personCount.Store(int64(lastCount))
			s.detected.Add(1)
			if int64(lastCount) > s.maxPersons.Load() {
				s.maxPersons.Store(int64(lastCount))
			}
		default:
			ev.Frame = result.Frame
		}
		ev.PersonCount = lastCount

		s.frames.Add(1)
		sinceRewind++
		c.config.Sink.OnFrame(ev)
	}
}

// notifyEnded shields the worker from a panicking sink so that cleanup
// always runs.
func (c *Controller) notifyEnded(end present.SessionEnd) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorf("Sink panicked in OnSessionEnded: %v", r)
		}
	}()
	c.config.Sink.OnSessionEnded(end)
}

func (c *Controller) record(end present.SessionEnd, started time.Time) {
	if c.config.Store == nil {
		return
	}

	rec := &store.Session{
		ID:             end.SessionID,
		Source:         end.Source,
		Mode:           end.Mode,
		StartedAt:      started,
		Reason:         end.Reason.Kind.String(),
		Frames:         int64(end.Frames),
		DetectedFrames: int64(end.DetectedFrames),
		MaxPersons:     end.MaxPersons,
	}
	if end.Reason.Err != nil {
		rec.Error = end.Reason.Err.Error()
	}
	if err := c.config.Store.Sessions().Finish(rec); err != nil {
		c.log.Warnf("Failed to finish session %s: %v", end.SessionID, err)
	}
}
