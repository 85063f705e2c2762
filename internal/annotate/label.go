package annotate

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/personlens/internal/detector"
)

// Font defines the parameters for rendering text on an image using GoCV
type Font struct {
	Face      gocv.HersheyFont
	Scale     float64
	Color     color.RGBA
	Thickness int
	LineType  gocv.LineType
	// Padding to place around text
	LeftPad   int
	RightPad  int
	TopPad    int
	BottomPad int
}

// DefaultFont returns default font settings
func DefaultFont() Font {
	return Font{
		Face:      gocv.FontHersheySimplex,
		Scale:     0.5,
		Color:     White,
		Thickness: 1,
		LineType:  gocv.LineAA,
		LeftPad:   4,
		RightPad:  4,
		TopPad:    4,
		BottomPad: 6,
	}
}

type labelAnnotator struct {
	stateless
	font      Font
	thickness int
}

func newLabel() *labelAnnotator {
	return &labelAnnotator{font: DefaultFont(), thickness: 2}
}

type boxLabel struct {
	rect    image.Rectangle
	clr     color.RGBA
	text    string
	textPos image.Point
}

// Annotate outlines each object and tags it with class name, track id and
// confidence. Labels are drawn last so outlines never cover them.
func (a *labelAnnotator) Annotate(frame gocv.Mat, dets []detector.Detection) gocv.Mat {
	out := frame.Clone()
	f := a.font

	labels := make([]boxLabel, 0, len(dets))
	for _, det := range dets {
		if !det.Valid() {
			continue
		}
		clr := trackColor(det.TrackID)
		gocv.Rectangle(&out, det.Box, clr, a.thickness)

		text := fmt.Sprintf("%s #%d %.2f", detector.ClassName(det.ClassID), det.TrackID, det.Confidence)
		size := gocv.GetTextSize(text, f.Face, f.Scale, f.Thickness)

		// Keep the label inside the frame when the box touches the top edge
		top := det.Box.Min.Y
		if top-size.Y-f.TopPad-f.BottomPad < 0 {
			top = size.Y + f.TopPad + f.BottomPad
		}
		left := det.Box.Min.X - a.thickness/2

		labels = append(labels, boxLabel{
			rect:    image.Rect(left, top-size.Y-f.TopPad-f.BottomPad, left+size.X+f.LeftPad+f.RightPad, top),
			clr:     clr,
			text:    text,
			textPos: image.Pt(left+f.LeftPad, top-f.BottomPad),
		})
	}

	for _, l := range labels {
		gocv.Rectangle(&out, l.rect, l.clr, -1)
		gocv.PutTextWithParams(&out, l.text, l.textPos, f.Face, f.Scale, f.Color, f.Thickness, f.LineType, false)
	}
	return out
}
