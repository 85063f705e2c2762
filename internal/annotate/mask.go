package annotate

import (
	"gocv.io/x/gocv"

	"github.com/ayusman/personlens/internal/detector"
)

// maskAnnotator blends a filled box over every object. Detections carry no
// segmentation, so the box stands in for the mask.
type maskAnnotator struct {
	stateless
	opacity float64
}

func newMask() *maskAnnotator {
	return &maskAnnotator{opacity: 0.5}
}

func (a *maskAnnotator) Annotate(frame gocv.Mat, dets []detector.Detection) gocv.Mat {
	overlay := perDetection(frame, dets, func(img *gocv.Mat, det detector.Detection) {
		gocv.Rectangle(img, det.Box, trackColor(det.TrackID), -1)
	})
	defer overlay.Close()

	out := gocv.NewMat()
	gocv.AddWeighted(overlay, a.opacity, frame, 1-a.opacity, 0, &out)
	return out
}
