package detector

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/personlens/internal/tracker"
)

// ErrModelNotFound is returned when the configured model file does not exist.
var ErrModelNotFound = errors.New("model file not found")

// ONNXDetector runs a YOLOv8 ONNX export through the OpenCV DNN module and
// assigns track ids with an IoU tracker.
type ONNXDetector struct {
	config  Config
	net     gocv.Net
	tracker *tracker.Tracker
	mu      sync.Mutex
	closed  bool
}

// NewONNXDetector loads the model at config.ModelPath.
func NewONNXDetector(config Config) (*ONNXDetector, error) {
	if config.InputSize <= 0 {
		config.InputSize = DefaultConfig().InputSize
	}
	if config.ModelPath == "" {
		return nil, fmt.Errorf("%w: no model path configured", ErrModelNotFound)
	}
	if _, err := os.Stat(config.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, config.ModelPath)
	}

	net := gocv.ReadNetFromONNX(config.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("load model %s: network is empty", config.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &ONNXDetector{
		config:  config,
		net:     net,
		tracker: tracker.New(config.TrackMinIoU, config.TrackMaxLost),
	}, nil
}

// Detect runs one forward pass and returns tracked detections.
func (d *ONNXDetector) Detect(frame gocv.Mat) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrDetectorClosed
	}
	if frame.Empty() {
		return nil, errors.New("empty frame")
	}

	size := d.config.InputSize
	blob := gocv.BlobFromImage(frame, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	defer out.Close()

	dims := out.Size()
	if len(dims) != 3 || dims[1] <= 4 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
	nc := dims[1] - 4
	n := dims[2]

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}

	cands := decodeYOLOv8(data, nc, n, d.config.Confidence, d.config.Classes)
	cands = suppress(cands, d.config.NMSThreshold)

	scaleX := float32(frame.Cols()) / float32(size)
	scaleY := float32(frame.Rows()) / float32(size)
	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())

	return assignTracks(d.tracker, cands, scaleX, scaleY, bounds), nil
}

// Reset clears tracker state.
func (d *ONNXDetector) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tracker.Reset()
	return nil
}

// Close releases the network.
func (d *ONNXDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.net.Close()
}
