package annotate

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/personlens/internal/detector"
)

// heatMapAnnotator accumulates where objects stand over the whole session and
// overlays the result as a color map.
type heatMapAnnotator struct {
	radius  int
	kernel  int
	opacity float64
	acc     gocv.Mat
	hasAcc  bool
}

func newHeatMap() *heatMapAnnotator {
	return &heatMapAnnotator{radius: 40, kernel: 25, opacity: 0.4}
}

func (a *heatMapAnnotator) Annotate(frame gocv.Mat, dets []detector.Detection) gocv.Mat {
	if a.hasAcc && (a.acc.Rows() != frame.Rows() || a.acc.Cols() != frame.Cols()) {
		a.Reset()
	}
	if !a.hasAcc {
		a.acc = zeros(frame.Rows(), frame.Cols())
		a.hasAcc = true
	}

	stamp := zeros(frame.Rows(), frame.Cols())
	defer stamp.Close()
	one := color.RGBA{R: 1, G: 1, B: 1, A: 1}
	for _, det := range dets {
		if det.Valid() {
			gocv.Circle(&stamp, bottomCenter(det.Box), a.radius, one, -1)
		}
	}
	gocv.Add(a.acc, stamp, &a.acc)

	out := frame.Clone()

	norm := gocv.NewMat()
	defer norm.Close()
	gocv.Normalize(a.acc, &norm, 0, 255, gocv.NormMinMax)

	heat := gocv.NewMat()
	defer heat.Close()
	norm.ConvertTo(&heat, gocv.MatTypeCV8U)
	gocv.GaussianBlur(heat, &heat, image.Pt(a.kernel, a.kernel), 0, 0, gocv.BorderDefault)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(heat, &mask, 0, 255, gocv.ThresholdBinary)

	colored := gocv.NewMat()
	defer colored.Close()
	gocv.ApplyColorMap(heat, &colored, gocv.ColormapJet)

	blended := gocv.NewMat()
	defer blended.Close()
	gocv.AddWeighted(frame, 1-a.opacity, colored, a.opacity, 0, &blended)

	// Only tint pixels that have seen someone
	blended.CopyToWithMask(&out, mask)
	return out
}

func (a *heatMapAnnotator) Reset() {
	if a.hasAcc {
		a.acc.Close()
		a.hasAcc = false
	}
}

func (a *heatMapAnnotator) Close() error {
	a.Reset()
	return nil
}

func zeros(rows, cols int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, gocv.MatTypeCV32FC1)
}
