package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

const (
	trackScriptName    = "track_service.py"
	defaultIdleTimeout = 30 * time.Second
)

// ErrScriptNotFound is returned when track_service.py cannot be located.
var ErrScriptNotFound = errors.New(trackScriptName + " not found")

// SubprocessConfig configures the Python tracking service.
type SubprocessConfig struct {
	Config

	// Script overrides the track_service.py lookup.
	Script string
	// Python overrides the interpreter lookup.
	Python string
	// IdleTimeout stops the service after this long without a frame.
	IdleTimeout time.Duration
}

// SubprocessDetector implements Detector using a Python ultralytics tracker.
// Frames are sent as a 4-byte big-endian length followed by JPEG bytes; each
// frame is answered with one JSON line. A zero-length frame resets the
// tracker.
type SubprocessDetector struct {
	config    SubprocessConfig
	script    string
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	closed    bool
	idleTimer *time.Timer
}

// NewSubprocessDetector creates a new subprocess detector.
// The Python process is started lazily on first detection.
func NewSubprocessDetector(config SubprocessConfig) (*SubprocessDetector, error) {
	script := config.Script
	if script == "" {
		script = findTrackScript()
	}
	if script == "" {
		return nil, ErrScriptNotFound
	}
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrScriptNotFound, script)
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = defaultIdleTimeout
	}

	return &SubprocessDetector{
		config: config,
		script: script,
	}, nil
}

// Detect sends a frame to the service and returns its tracked detections.
func (d *SubprocessDetector) Detect(frame gocv.Mat) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrDetectorClosed
	}
	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	if err := writeFrame(d.stdin, buf.GetBytes()); err != nil {
		d.abort()
		return nil, err
	}

	line, err := d.stdout.ReadBytes('\n')
	if err != nil {
		d.abort()
		return nil, fmt.Errorf("read response: %w", err)
	}

	dets, err := parseResponse(line, d.config.Classes)
	if err != nil {
		d.abort()
		return nil, err
	}

	d.resetIdleTimer()
	return dets, nil
}

// Reset asks a running service to drop its tracker state.
// If the service is not running there is no state to clear. A service that
// fails to acknowledge is killed, which clears its state as well; the next
// Detect starts a fresh one.
func (d *SubprocessDetector) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return nil
	}
	if err := d.requestReset(); err != nil {
		d.abort()
	}
	return nil
}

func (d *SubprocessDetector) requestReset() error {
	if err := writeFrame(d.stdin, nil); err != nil {
		return err
	}
	line, err := d.stdout.ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("read reset ack: %w", err)
	}
	_, err = parseResponse(line, nil)
	return err
}

// Close shuts down the Python process.
func (d *SubprocessDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return d.shutdown()
}

func (d *SubprocessDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	python := d.config.Python
	if python == "" {
		python = findVenvPython()
	}
	if python == "" {
		python = "python3"
	}

	args := []string{d.script}
	if d.config.ModelPath != "" {
		args = append(args, "--model", d.config.ModelPath)
	}
	if d.config.Confidence > 0 {
		args = append(args, "--conf", fmt.Sprintf("%g", d.config.Confidence))
	}
	d.cmd = exec.Command(python, args...)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start tracking service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true

	return nil
}

func (d *SubprocessDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

// abort kills a service whose stream can no longer be trusted so that the
// next call starts a new one.
func (d *SubprocessDetector) abort() {
	if !d.started {
		return
	}
	if d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}
	d.shutdown()
}

// resetIdleTimer restarts the idle countdown. Stopping the service also
// loses tracker state, which is the same as a Reset.
func (d *SubprocessDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(d.config.IdleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.shutdown()
	})
}

// writeFrame writes one length-prefixed message. Empty data is a reset.
func writeFrame(w io.Writer, data []byte) error {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(data)))

	if _, err := w.Write(length[:]); err != nil {
		return fmt.Errorf("write length: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	return nil
}

// jsonResponse is the line the Python service writes for every message.
type jsonResponse struct {
	Detections []jsonDetection `json:"detections"`
	Error      string          `json:"error,omitempty"`
}

type jsonDetection struct {
	Box   [4]float64 `json:"box"`
	Class int        `json:"class"`
	ID    int        `json:"id"`
	Conf  float64    `json:"conf"`
}

func parseResponse(line []byte, classes []int) ([]Detection, error) {
	var resp jsonResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("tracking service: %s", resp.Error)
	}

	dets := make([]Detection, 0, len(resp.Detections))
	for _, jd := range resp.Detections {
		if !containsClass(classes, jd.Class) {
			continue
		}
		det := Detection{
			Box:        image.Rect(int(jd.Box[0]), int(jd.Box[1]), int(jd.Box[2]), int(jd.Box[3])),
			ClassID:    jd.Class,
			TrackID:    jd.ID,
			Confidence: float32(jd.Conf),
		}
		if !det.Valid() {
			continue
		}
		dets = append(dets, det)
	}
	return dets, nil
}

func findTrackScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", trackScriptName),
		filepath.Join("..", "scripts", trackScriptName),
		filepath.Join(execDir, "scripts", trackScriptName),
		filepath.Join(os.Getenv("HOME"), ".personlens", "scripts", trackScriptName),
	}
	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		"../../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".personlens/venv/bin/python"),
	}
	return firstExisting(candidates)
}

func firstExisting(paths []string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				return abs
			}
			return path
		}
	}
	return ""
}
