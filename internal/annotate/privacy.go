package annotate

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/ayusman/personlens/internal/detector"
)

// regionFunc rewrites the pixels of one box in place.
type regionFunc func(region *gocv.Mat)

// obscure applies fn to every detection box, clamped to the frame.
func obscure(frame gocv.Mat, dets []detector.Detection, fn regionFunc) gocv.Mat {
	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())
	return perDetection(frame, dets, func(img *gocv.Mat, det detector.Detection) {
		r := det.Box.Intersect(bounds)
		if r.Empty() {
			return
		}
		region := img.Region(r)
		defer region.Close()
		fn(&region)
	})
}

type blurAnnotator struct {
	stateless
	kernel int
}

func newBlur() *blurAnnotator {
	return &blurAnnotator{kernel: 31}
}

func (a *blurAnnotator) Annotate(frame gocv.Mat, dets []detector.Detection) gocv.Mat {
	return obscure(frame, dets, func(region *gocv.Mat) {
		blurred := gocv.NewMat()
		defer blurred.Close()
		gocv.GaussianBlur(*region, &blurred, image.Pt(a.kernel, a.kernel), 0, 0, gocv.BorderDefault)
		blurred.CopyTo(region)
	})
}

type pixelateAnnotator struct {
	stateless
	pixelSize int
}

func newPixelate() *pixelateAnnotator {
	return &pixelateAnnotator{pixelSize: 20}
}

func (a *pixelateAnnotator) Annotate(frame gocv.Mat, dets []detector.Detection) gocv.Mat {
	return obscure(frame, dets, func(region *gocv.Mat) {
		w, h := region.Cols(), region.Rows()
		small := gocv.NewMat()
		defer small.Close()
		gocv.Resize(*region, &small, image.Pt(max(1, w/a.pixelSize), max(1, h/a.pixelSize)), 0, 0, gocv.InterpolationLinear)

		big := gocv.NewMat()
		defer big.Close()
		gocv.Resize(small, &big, image.Pt(w, h), 0, 0, gocv.InterpolationNearestNeighbor)
		big.CopyTo(region)
	})
}
