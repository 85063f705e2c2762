package detector

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// ResultKind tells whether a frame went through detection.
type ResultKind int

const (
	// Skipped frames are passed through without detection.
	Skipped ResultKind = iota
	// Detected frames were resized and run through the detector.
	Detected
)

func (k ResultKind) String() string {
	switch k {
	case Skipped:
		return "skipped"
	case Detected:
		return "detected"
	default:
		return fmt.Sprintf("ResultKind(%d)", int(k))
	}
}

// Default sampling parameters.
const (
	DefaultSkipEvery = 3
)

// DefaultTargetSize is the resolution detected frames are resized to.
var DefaultTargetSize = image.Pt(900, 750)

// SamplerConfig controls which frames are detected and at what size.
type SamplerConfig struct {
	// SkipEvery runs detection on frames whose counter is a multiple of it.
	SkipEvery int
	// TargetSize is the size every detected frame is resized to.
	TargetSize image.Point
	// ClassOfInterest is the only class kept in the result.
	ClassOfInterest int
}

// Result is the outcome of processing one frame.
type Result struct {
	Kind ResultKind
	// Frame is owned by the caller and must be closed.
	Frame gocv.Mat
	// Detections is always empty for Skipped results.
	Detections []Detection
}

// Sampler applies frame sampling, resizing and class filtering around a
// Detector.
type Sampler struct {
	det    Detector
	config SamplerConfig
}

// NewSampler wraps det. Zero config fields take the defaults.
func NewSampler(det Detector, config SamplerConfig) *Sampler {
	if config.SkipEvery <= 0 {
		config.SkipEvery = DefaultSkipEvery
	}
	if config.TargetSize.X <= 0 || config.TargetSize.Y <= 0 {
		config.TargetSize = DefaultTargetSize
	}
	return &Sampler{det: det, config: config}
}

// Config returns the effective configuration.
func (s *Sampler) Config() SamplerConfig {
	return s.config
}

// ShouldDetect reports whether the frame with this counter is a detection frame.
func (s *Sampler) ShouldDetect(counter uint64) bool {
	return counter%uint64(s.config.SkipEvery) == 0
}

// Process takes ownership of frame. On Skipped the same frame is returned
// untouched. On Detected it is resized to TargetSize, run through the
// detector and released; the resized copy is returned. On error nothing is
// returned and both frames are released.
func (s *Sampler) Process(counter uint64, frame gocv.Mat) (Result, error) {
	if !s.ShouldDetect(counter) {
		return Result{Kind: Skipped, Frame: frame}, nil
	}

	resized := gocv.NewMat()
	gocv.Resize(frame, &resized, s.config.TargetSize, 0, 0, gocv.InterpolationLinear)
	frame.Close()

	dets, err := s.detect(counter, resized)
	if err != nil {
		resized.Close()
		return Result{}, err
	}

	return Result{
		Kind:       Detected,
		Frame:      resized,
		Detections: FilterClass(dets, s.config.ClassOfInterest),
	}, nil
}

// Reset clears tracker state on the wrapped detector.
func (s *Sampler) Reset() error {
	return s.det.Reset()
}

func (s *Sampler) detect(counter uint64, frame gocv.Mat) (dets []Detection, err error) {
	defer func() {
		if r := recover(); r != nil {
			dets = nil
			err = &DetectionError{Frame: counter, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	dets, err = s.det.Detect(frame)
	if err != nil {
		return nil, &DetectionError{Frame: counter, Err: err}
	}
	return dets, nil
}
