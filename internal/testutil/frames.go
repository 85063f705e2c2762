// Package testutil builds synthetic frames and boxes shared by package tests.
package testutil

import (
	"image"

	"gocv.io/x/gocv"
)

// SyntheticFrames builds n BGR frames of the given size. Frame i is filled
// with a gray level derived from i so consecutive frames differ.
// The caller must release them with CloseAll.
func SyntheticFrames(n, width, height int) []*gocv.Mat {
	frames := make([]*gocv.Mat, 0, n)
	for i := 0; i < n; i++ {
		level := float64((i * 23) % 256)
		mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(level, level, level, 0), height, width, gocv.MatTypeCV8UC3)
		frames = append(frames, &mat)
	}
	return frames
}

// SolidFrame returns a single frame filled with the given BGR value.
func SolidFrame(width, height int, b, g, r float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(b, g, r, 0), height, width, gocv.MatTypeCV8UC3)
}

// CloseAll releases every frame in frames.
func CloseAll(frames []*gocv.Mat) {
	for _, f := range frames {
		f.Close()
	}
}

// PersonBoxes are bounding boxes positioned inside a 900x750 frame, the
// default detection geometry.
var PersonBoxes = []image.Rectangle{
	image.Rect(100, 200, 180, 420),
	image.Rect(400, 150, 470, 380),
	image.Rect(650, 300, 720, 560),
}
