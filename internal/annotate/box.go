package annotate

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/ayusman/personlens/internal/detector"
)

// stateless provides no-op Reset and Close for annotators that keep nothing
// between frames.
type stateless struct{}

func (stateless) Reset()       {}
func (stateless) Close() error { return nil }

// drawFunc renders one detection onto img.
type drawFunc func(img *gocv.Mat, det detector.Detection)

// perDetection clones frame and applies draw to every valid detection.
func perDetection(frame gocv.Mat, dets []detector.Detection, draw drawFunc) gocv.Mat {
	out := frame.Clone()
	for _, det := range dets {
		if !det.Valid() {
			continue
		}
		draw(&out, det)
	}
	return out
}

type boxAnnotator struct {
	stateless
	thickness int
}

func newBox() *boxAnnotator {
	return &boxAnnotator{thickness: 2}
}

func (a *boxAnnotator) Annotate(frame gocv.Mat, dets []detector.Detection) gocv.Mat {
	return perDetection(frame, dets, func(img *gocv.Mat, det detector.Detection) {
		gocv.Rectangle(img, det.Box, trackColor(det.TrackID), a.thickness)
	})
}

type boxCornerAnnotator struct {
	stateless
	thickness    int
	cornerLength int
}

func newBoxCorner() *boxCornerAnnotator {
	return &boxCornerAnnotator{thickness: 4, cornerLength: 15}
}

func (a *boxCornerAnnotator) Annotate(frame gocv.Mat, dets []detector.Detection) gocv.Mat {
	return perDetection(frame, dets, func(img *gocv.Mat, det detector.Detection) {
		b := det.Box
		clr := trackColor(det.TrackID)
		l := min(a.cornerLength, b.Dx()/2, b.Dy()/2)

		corners := []struct {
			p      image.Point
			dx, dy int
		}{
			{b.Min, 1, 1},
			{image.Pt(b.Max.X, b.Min.Y), -1, 1},
			{image.Pt(b.Min.X, b.Max.Y), 1, -1},
			{b.Max, -1, -1},
		}
		for _, c := range corners {
			gocv.Line(img, c.p, image.Pt(c.p.X+c.dx*l, c.p.Y), clr, a.thickness)
			gocv.Line(img, c.p, image.Pt(c.p.X, c.p.Y+c.dy*l), clr, a.thickness)
		}
	})
}

type roundBoxAnnotator struct {
	stateless
	thickness int
	// roundness is the corner radius as a fraction of half the shorter side
	roundness float64
}

func newRoundBox() *roundBoxAnnotator {
	return &roundBoxAnnotator{thickness: 2, roundness: 0.6}
}

func (a *roundBoxAnnotator) Annotate(frame gocv.Mat, dets []detector.Detection) gocv.Mat {
	return perDetection(frame, dets, func(img *gocv.Mat, det detector.Detection) {
		b := det.Box
		clr := trackColor(det.TrackID)
		r := int(a.roundness * float64(min(b.Dx(), b.Dy())) / 2)
		if r <= 0 {
			gocv.Rectangle(img, b, clr, a.thickness)
			return
		}

		// Straight edges
		gocv.Line(img, image.Pt(b.Min.X+r, b.Min.Y), image.Pt(b.Max.X-r, b.Min.Y), clr, a.thickness)
		gocv.Line(img, image.Pt(b.Min.X+r, b.Max.Y), image.Pt(b.Max.X-r, b.Max.Y), clr, a.thickness)
		gocv.Line(img, image.Pt(b.Min.X, b.Min.Y+r), image.Pt(b.Min.X, b.Max.Y-r), clr, a.thickness)
		gocv.Line(img, image.Pt(b.Max.X, b.Min.Y+r), image.Pt(b.Max.X, b.Max.Y-r), clr, a.thickness)

		// Corner arcs, angles measured clockwise from +x
		axes := image.Pt(r, r)
		gocv.Ellipse(img, image.Pt(b.Min.X+r, b.Min.Y+r), axes, 0, 180, 270, clr, a.thickness)
		gocv.Ellipse(img, image.Pt(b.Max.X-r, b.Min.Y+r), axes, 0, 270, 360, clr, a.thickness)
		gocv.Ellipse(img, image.Pt(b.Max.X-r, b.Max.Y-r), axes, 0, 0, 90, clr, a.thickness)
		gocv.Ellipse(img, image.Pt(b.Min.X+r, b.Max.Y-r), axes, 0, 90, 180, clr, a.thickness)
	})
}
