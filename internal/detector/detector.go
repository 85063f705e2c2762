// Package detector provides person detection and tracking on video frames.
package detector

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// ErrDetectorClosed is returned when Detect is called after Close.
var ErrDetectorClosed = errors.New("detector is closed")

// Detection is a single tracked object found in a frame.
type Detection struct {
	// Box is in pixel coordinates of the frame passed to Detect.
	Box        image.Rectangle
	ClassID    int
	TrackID    int
	Confidence float32
}

// Valid reports whether the box has positive width and height.
func (d Detection) Valid() bool {
	return d.Box.Min.X < d.Box.Max.X && d.Box.Min.Y < d.Box.Max.Y
}

// Detector defines the interface for detection and tracking implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the tracked objects in it.
	// Tracker state persists between calls so the same physical object keeps
	// its TrackID. Returns an empty slice if nothing is detected.
	Detect(frame gocv.Mat) ([]Detection, error)

	// Reset clears tracker state so ids from a previous video do not carry over.
	Reset() error

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for detection.
type Config struct {
	// ModelPath is the path to a YOLOv8 ONNX export.
	ModelPath string

	// InputSize is the square network input resolution (default: 640).
	InputSize int

	// Confidence is the minimum class score to keep a candidate (0.0-1.0).
	Confidence float32

	// NMSThreshold is the IoU above which overlapping candidates are suppressed.
	NMSThreshold float32

	// Classes restricts output to these class ids. Empty keeps every class.
	Classes []int

	// TrackMinIoU and TrackMaxLost tune the built-in tracker.
	TrackMinIoU  float32
	TrackMaxLost int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		InputSize:    640,
		Confidence:   0.25,
		NMSThreshold: 0.45,
		Classes:      []int{COCOPerson},
		TrackMinIoU:  0.3,
		TrackMaxLost: 30,
	}
}

// DetectionError reports a fault raised by the detection capability while
// processing a frame. It is fatal to the session that observed it.
type DetectionError struct {
	Frame uint64
	Err   error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("detection failed on frame %d: %v", e.Frame, e.Err)
}

func (e *DetectionError) Unwrap() error {
	return e.Err
}

// CountClass returns how many detections have the given class id.
func CountClass(dets []Detection, classID int) int {
	n := 0
	for _, d := range dets {
		if d.ClassID == classID {
			n++
		}
	}
	return n
}

// FilterClass returns the detections with the given class id, preserving order.
func FilterClass(dets []Detection, classID int) []Detection {
	out := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if d.ClassID == classID {
			out = append(out, d)
		}
	}
	return out
}

func containsClass(classes []int, id int) bool {
	if len(classes) == 0 {
		return true
	}
	for _, c := range classes {
		if c == id {
			return true
		}
	}
	return false
}
