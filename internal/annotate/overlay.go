package annotate

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// DrawCount writes "Persons detected: N" in the top-left corner of img.
func DrawCount(img *gocv.Mat, n int) {
	gocv.PutTextWithParams(img, fmt.Sprintf("Persons detected: %d", n), image.Pt(10, 50),
		gocv.FontHersheySimplex, 1, Green, 2, gocv.LineAA, false)
}

// DrawStatus writes a single status line along the bottom edge of img.
func DrawStatus(img *gocv.Mat, text string) {
	f := DefaultFont()
	size := gocv.GetTextSize(text, f.Face, f.Scale, f.Thickness)
	y := img.Rows() - f.BottomPad
	bg := image.Rect(0, y-size.Y-f.TopPad, size.X+f.LeftPad+f.RightPad, img.Rows())
	gocv.Rectangle(img, bg, Black, -1)
	gocv.PutTextWithParams(img, text, image.Pt(f.LeftPad, y), f.Face, f.Scale, f.Color, f.Thickness, f.LineType, false)
}
