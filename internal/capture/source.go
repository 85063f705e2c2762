// Package capture provides video frame sources using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"gocv.io/x/gocv"
)

var (
	// ErrSourceUnavailable is returned when a source cannot be opened.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrEndOfStream is returned by Next when no further frames can be decoded.
	ErrEndOfStream = errors.New("end of stream")
	// ErrSourceClosed is returned when reading from a source after Close.
	ErrSourceClosed = errors.New("source is closed")
)

// Frame is a decoded video frame together with the sequence number assigned
// by the source that produced it.
type Frame struct {
	Mat gocv.Mat
	Seq uint64
}

// Close releases the frame's pixel buffer.
func (f *Frame) Close() error {
	return f.Mat.Close()
}

// Info describes the geometry and timing of an open source.
type Info struct {
	Path       string
	Width      int
	Height     int
	FPS        float64
	FrameCount int
}

// Source defines the interface for sequential frame producers.
type Source interface {
	// Next decodes the next frame. It returns ErrEndOfStream when the stream
	// is exhausted or a frame cannot be decoded. The caller owns the frame.
	Next() (*Frame, error)
	// Rewind seeks back to the first frame. Sequence numbers keep increasing.
	Rewind() error
	Close() error
	Info() Info
}

// OpenFunc opens a Source for a path.
type OpenFunc func(path string) (Source, error)

// videoSource reads frames from a video file or capture device using GoCV.
type videoSource struct {
	path    string
	capture *gocv.VideoCapture
	mu      sync.Mutex
	seq     uint64
	closed  bool
	info    Info
}

// Open opens a video file for decoding. A path that is a bare integer opens
// the capture device with that index instead.
func Open(path string) (Source, error) {
	var (
		capture *gocv.VideoCapture
		err     error
	)

	if deviceID, convErr := strconv.Atoi(path); convErr == nil {
		capture, err = gocv.OpenVideoCapture(deviceID)
	} else {
		if err := CheckSource(path); err != nil {
			return nil, err
		}
		capture, err = gocv.VideoCaptureFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, path, err)
	}

	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: %s: cannot be decoded", ErrSourceUnavailable, path)
	}

	s := &videoSource{
		path:    path,
		capture: capture,
	}
	s.info = Info{
		Path:       path,
		Width:      int(capture.Get(gocv.VideoCaptureFrameWidth)),
		Height:     int(capture.Get(gocv.VideoCaptureFrameHeight)),
		FPS:        capture.Get(gocv.VideoCaptureFPS),
		FrameCount: int(capture.Get(gocv.VideoCaptureFrameCount)),
	}

	return s, nil
}

// CheckSource reports whether path names something Open could plausibly
// read: an existing regular file or a capture device index.
func CheckSource(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrSourceUnavailable)
	}

	if _, err := strconv.Atoi(path); err == nil {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrSourceUnavailable, path)
	}

	return nil
}

// Next reads a single frame from the source.
// The caller is responsible for closing the returned frame.
func (s *videoSource) Next() (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSourceClosed
	}

	mat := gocv.NewMat()
	if ok := s.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, ErrEndOfStream
	}

	s.seq++
	return &Frame{Mat: mat, Seq: s.seq}, nil
}

// Rewind seeks the source back to its first frame.
func (s *videoSource) Rewind() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSourceClosed
	}

	s.capture.Set(gocv.VideoCapturePosFrames, 0)
	return nil
}

// Close releases the underlying capture handle. It is safe to call twice.
func (s *videoSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.capture.Close()
}

// Info returns the geometry reported by the decoder when the source was opened.
func (s *videoSource) Info() Info {
	return s.info
}
