package present

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/cyclopcam/logs"
	"gocv.io/x/gocv"

	"github.com/ayusman/personlens/internal/annotate"
)

// Controls is the subset of the pipeline controller the window drives from
// key presses.
type Controls interface {
	Play() error
	Stop()
	SetMode(name string) error
	Mode() string
}

// WindowConfig configures a Window.
type WindowConfig struct {
	Title string
	// MaxSize bounds the displayed frame; larger frames are scaled down.
	MaxSize   image.Point
	ShowCount bool
	Controls  Controls
	Log       logs.Log
	// OnQuit runs when the user presses q or Esc.
	OnQuit func()
}

// Window shows frames in a native OpenCV window. OnFrame may be called from
// any goroutine; Run must be called from the main goroutine.
type Window struct {
	config WindowConfig
	slot   *Slot

	mu      sync.Mutex
	status  string
	dirty   bool
	count   int
	session string
}

// NewWindow creates a window sink. Nothing is shown until Run.
func NewWindow(config WindowConfig) *Window {
	if config.Title == "" {
		config.Title = "personlens"
	}
	if config.MaxSize.X <= 0 || config.MaxSize.Y <= 0 {
		config.MaxSize = image.Pt(1280, 800)
	}
	return &Window{
		config: config,
		slot:   NewSlot(),
		status: "Press p to play",
		dirty:  true,
	}
}

func (w *Window) OnFrame(ev FrameEvent) {
	w.mu.Lock()
	if ev.SessionID != w.session {
		w.session = ev.SessionID
		w.status = "Playing"
	}
	w.count = ev.PersonCount
	w.mu.Unlock()
	w.slot.Put(ev)
}

func (w *Window) OnSessionEnded(end SessionEnd) {
	w.setStatus(fmt.Sprintf("Stopped (%v)", end.Reason))
}

func (w *Window) OnNoSourceLoaded() {
	w.setStatus("No video loaded")
}

func (w *Window) setStatus(s string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = s
	w.dirty = true
}

// Run shows frames until ctx is done or the user quits.
func (w *Window) Run(ctx context.Context) error {
	window := gocv.NewWindow(w.config.Title)
	defer window.Close()
	defer w.slot.Close()

	last := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 750, 900, gocv.MatTypeCV8UC3)
	defer func() { last.Close() }()

	for {
		if ctx.Err() != nil {
			return nil
		}

		if ev, ok := w.slot.TryTake(); ok {
			scaled := scaleToFit(ev.Frame, w.config.MaxSize)
			ev.Frame.Close()
			last.Close()
			last = scaled
			w.show(window, last)
		} else if w.takeDirty() {
			w.show(window, last)
		}

		key := window.WaitKey(10)
		if key < 0 {
			continue
		}
		if w.handleKey(key) {
			return nil
		}
	}
}

func (w *Window) takeDirty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	d := w.dirty
	w.dirty = false
	return d
}

func (w *Window) show(window *gocv.Window, frame gocv.Mat) {
	w.mu.Lock()
	status, count := w.status, w.count
	w.mu.Unlock()

	mode := ""
	if w.config.Controls != nil {
		mode = w.config.Controls.Mode()
	}

	img := frame.Clone()
	defer img.Close()
	if w.config.ShowCount {
		annotate.DrawCount(&img, count)
	}
	annotate.DrawStatus(&img, fmt.Sprintf("Mode: %s | %s | p play  s stop  m mode  q quit", mode, status))
	window.IMShow(img)
}

// handleKey reacts to a key press and reports whether the window should close.
func (w *Window) handleKey(key int) bool {
	c := w.config.Controls
	switch key {
	case 'q', 27:
		if w.config.OnQuit != nil {
			w.config.OnQuit()
		}
		return true
	case 'p':
		if c != nil {
			if err := c.Play(); err != nil {
				w.logf("Play failed: %v", err)
				w.setStatus(err.Error())
			}
		}
	case 's':
		if c != nil {
			c.Stop()
		}
	case 'm', 'n':
		if c != nil {
			cur, err := annotate.ParseMode(c.Mode())
			if err != nil {
				cur = annotate.DefaultMode
			}
			if err := c.SetMode(string(annotate.Next(cur))); err != nil {
				w.logf("Mode change failed: %v", err)
			}
			w.setStatus("Mode changed")
		}
	}
	return false
}

func (w *Window) logf(format string, args ...any) {
	if w.config.Log != nil {
		w.config.Log.Warnf(format, args...)
	}
}

// scaleToFit returns a copy of frame no larger than bound, keeping aspect.
func scaleToFit(frame gocv.Mat, bound image.Point) gocv.Mat {
	size := fitSize(image.Pt(frame.Cols(), frame.Rows()), bound)
	if size.X == frame.Cols() && size.Y == frame.Rows() {
		return frame.Clone()
	}
	out := gocv.NewMat()
	gocv.Resize(frame, &out, size, 0, 0, gocv.InterpolationArea)
	return out
}

// fitSize scales size down uniformly so it fits within bound.
func fitSize(size, bound image.Point) image.Point {
	if size.X <= bound.X && size.Y <= bound.Y {
		return size
	}
	sx := float64(bound.X) / float64(size.X)
	sy := float64(bound.Y) / float64(size.Y)
	s := min(sx, sy)
	return image.Pt(max(1, int(float64(size.X)*s)), max(1, int(float64(size.Y)*s)))
}
