package annotate

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/ayusman/personlens/internal/detector"
)

func center(r image.Rectangle) image.Point {
	return image.Pt((r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2)
}

func bottomCenter(r image.Rectangle) image.Point {
	return image.Pt((r.Min.X+r.Max.X)/2, r.Max.Y)
}

// ellipseAnnotator draws a partial ellipse under the feet of each object.
type ellipseAnnotator struct {
	stateless
	thickness  int
	startAngle float64
	endAngle   float64
}

func newEllipse() *ellipseAnnotator {
	return &ellipseAnnotator{thickness: 2, startAngle: -45, endAngle: 235}
}

func (a *ellipseAnnotator) Annotate(frame gocv.Mat, dets []detector.Detection) gocv.Mat {
	return perDetection(frame, dets, func(img *gocv.Mat, det detector.Detection) {
		w := det.Box.Dx()
		axes := image.Pt(w/2, max(1, int(0.35*float64(w)/2)))
		gocv.Ellipse(img, bottomCenter(det.Box), axes, 0, a.startAngle, a.endAngle,
			trackColor(det.TrackID), a.thickness)
	})
}

// triangleAnnotator draws a filled marker pointing down at the top of each box.
type triangleAnnotator struct {
	stateless
	base, height, gap int
}

func newTriangle() *triangleAnnotator {
	return &triangleAnnotator{base: 12, height: 12, gap: 4}
}

func (a *triangleAnnotator) Annotate(frame gocv.Mat, dets []detector.Detection) gocv.Mat {
	return perDetection(frame, dets, func(img *gocv.Mat, det detector.Detection) {
		tip := image.Pt(center(det.Box).X, det.Box.Min.Y-a.gap)
		pts := gocv.NewPointsVectorFromPoints([][]image.Point{{
			image.Pt(tip.X-a.base/2, tip.Y-a.height),
			image.Pt(tip.X+a.base/2, tip.Y-a.height),
			tip,
		}})
		defer pts.Close()
		gocv.FillPoly(img, pts, trackColor(det.TrackID))
	})
}

// circleAnnotator draws a circle through the corners of each box.
type circleAnnotator struct {
	stateless
	thickness int
}

func newCircle() *circleAnnotator {
	return &circleAnnotator{thickness: 2}
}

func (a *circleAnnotator) Annotate(frame gocv.Mat, dets []detector.Detection) gocv.Mat {
	return perDetection(frame, dets, func(img *gocv.Mat, det detector.Detection) {
		c := center(det.Box)
		dx := float64(det.Box.Min.X - c.X)
		dy := float64(det.Box.Min.Y - c.Y)
		radius := int(math.Hypot(dx, dy))
		gocv.Circle(img, c, radius, trackColor(det.TrackID), a.thickness)
	})
}

// dotAnnotator marks the center of each box.
type dotAnnotator struct {
	stateless
	radius int
}

func newDot() *dotAnnotator {
	return &dotAnnotator{radius: 5}
}

func (a *dotAnnotator) Annotate(frame gocv.Mat, dets []detector.Detection) gocv.Mat {
	return perDetection(frame, dets, func(img *gocv.Mat, det detector.Detection) {
		c := center(det.Box)
		gocv.Circle(img, c, a.radius, trackColor(det.TrackID), -1)
		gocv.Circle(img, c, a.radius, White, 1)
	})
}
