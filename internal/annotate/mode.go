// Package annotate draws tracked detections onto frames in one of several
// visual styles and keeps the active style selected by the user.
package annotate

import (
	"errors"
	"fmt"
	"strings"

	"gocv.io/x/gocv"

	"github.com/ayusman/personlens/internal/detector"
)

// ErrUnknownMode is returned by ParseMode for names outside the registry.
var ErrUnknownMode = errors.New("unknown annotation mode")

// Mode names an annotation style.
type Mode string

// Available modes, in display order.
const (
	BoxCorner Mode = "BoxCorner"
	Box       Mode = "Box"
	Mask      Mode = "Mask"
	RoundBox  Mode = "RoundBox"
	Triangle  Mode = "Triangle"
	Ellipse   Mode = "Ellipse"
	HeatMap   Mode = "HeatMap"
	Label     Mode = "Label"
	Trace     Mode = "Trace"
	Pixelate  Mode = "Pixelate"
	Blur      Mode = "Blur"
	Circle    Mode = "Circle"
	Dot       Mode = "Dot"
)

// DefaultMode is selected at startup when nothing else is configured.
const DefaultMode = Ellipse

// Annotator draws detections onto a frame.
type Annotator interface {
	// Annotate returns a new Mat with the detections drawn on it.
	// The input frame is never modified.
	Annotate(frame gocv.Mat, dets []detector.Detection) gocv.Mat

	// Reset drops any state accumulated across frames.
	Reset()

	// Close releases resources held by the annotator.
	Close() error
}

var order = []Mode{
	BoxCorner, Box, Mask, RoundBox, Triangle, Ellipse, HeatMap,
	Label, Trace, Pixelate, Blur, Circle, Dot,
}

var registry = map[Mode]func() Annotator{
	BoxCorner: func() Annotator { return newBoxCorner() },
	Box:       func() Annotator { return newBox() },
	Mask:      func() Annotator { return newMask() },
	RoundBox:  func() Annotator { return newRoundBox() },
	Triangle:  func() Annotator { return newTriangle() },
	Ellipse:   func() Annotator { return newEllipse() },
	HeatMap:   func() Annotator { return newHeatMap() },
	Label:     func() Annotator { return newLabel() },
	Trace:     func() Annotator { return newTrace() },
	Pixelate:  func() Annotator { return newPixelate() },
	Blur:      func() Annotator { return newBlur() },
	Circle:    func() Annotator { return newCircle() },
	Dot:       func() Annotator { return newDot() },
}

var aliases = map[string]Mode{
	"elips":   Ellipse,
	"ellips":  Ellipse,
	"round":   RoundBox,
	"rounded": RoundBox,
	"corner":  BoxCorner,
	"heat":    HeatMap,
}

// ParseMode resolves a mode name case-insensitively, accepting the short
// aliases older builds used.
func ParseMode(name string) (Mode, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, m := range order {
		if strings.ToLower(string(m)) == key {
			return m, nil
		}
	}
	if m, ok := aliases[key]; ok {
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, name)
}

// Modes returns every registered mode in display order.
func Modes() []Mode {
	out := make([]Mode, len(order))
	copy(out, order)
	return out
}

// Next returns the mode after m in display order, wrapping around.
func Next(m Mode) Mode {
	for i, o := range order {
		if o == m {
			return order[(i+1)%len(order)]
		}
	}
	return order[0]
}

// New constructs a fresh annotator for m.
func New(m Mode) (Annotator, error) {
	ctor, ok := registry[m]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, string(m))
	}
	return ctor(), nil
}

func (m Mode) String() string {
	return string(m)
}
