package annotate

import (
	"image"

	"github.com/bmharper/ringbuffer"
	"gocv.io/x/gocv"

	"github.com/ayusman/personlens/internal/detector"
)

const (
	traceLength = 30
	// traceExpiry is how many annotated frames a track may be absent before
	// its history is discarded.
	traceExpiry = 30
)

type tracePath struct {
	history  ringbuffer.RingP[image.Point]
	lastSeen uint64
}

// traceAnnotator draws the recent path of each tracked object's center.
type traceAnnotator struct {
	thickness int
	frame     uint64
	paths     map[int]*tracePath
}

func newTrace() *traceAnnotator {
	return &traceAnnotator{thickness: 2, paths: map[int]*tracePath{}}
}

func (a *traceAnnotator) Annotate(frame gocv.Mat, dets []detector.Detection) gocv.Mat {
	a.frame++

	for _, det := range dets {
		if !det.Valid() {
			continue
		}
		p, ok := a.paths[det.TrackID]
		if !ok {
			p = &tracePath{history: ringbuffer.NewRingP[image.Point](traceLength)}
			a.paths[det.TrackID] = p
		}
		p.history.Add(center(det.Box))
		p.lastSeen = a.frame
	}

	for id, p := range a.paths {
		if a.frame-p.lastSeen > traceExpiry {
			delete(a.paths, id)
		}
	}

	return perDetection(frame, dets, func(img *gocv.Mat, det detector.Detection) {
		p := a.paths[det.TrackID]
		clr := trackColor(det.TrackID)
		for i := 1; i < p.history.Len(); i++ {
			gocv.Line(img, p.history.Peek(i-1), p.history.Peek(i), clr, a.thickness)
		}
	})
}

// Points returns the recorded center history for a track, oldest first.
func (a *traceAnnotator) Points(trackID int) []image.Point {
	p, ok := a.paths[trackID]
	if !ok {
		return nil
	}
	out := make([]image.Point, p.history.Len())
	for i := range out {
		out[i] = p.history.Peek(i)
	}
	return out
}

func (a *traceAnnotator) Reset() {
	a.frame = 0
	a.paths = map[int]*tracePath{}
}

func (a *traceAnnotator) Close() error {
	a.paths = nil
	return nil
}
