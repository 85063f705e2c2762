// Package app provides the pipeline controller that turns a video source into
// a stream of annotated frames with a live person count.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/google/uuid"

	"github.com/ayusman/personlens/internal/annotate"
	"github.com/ayusman/personlens/internal/capture"
	"github.com/ayusman/personlens/internal/detector"
	"github.com/ayusman/personlens/internal/present"
	"github.com/ayusman/personlens/internal/store"
)

// State is the controller's lifecycle state.
type State int32

const (
	Idle State = iota
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// EndPolicy decides what happens when the source runs out of frames.
type EndPolicy int

const (
	// EndStop finishes the session at end of stream.
	EndStop EndPolicy = iota
	// EndLoop rewinds the source and keeps playing.
	EndLoop
)

func (p EndPolicy) String() string {
	if p == EndLoop {
		return "loop"
	}
	return "stop"
}

// ParseEndPolicy parses "stop" or "loop". The empty string means stop.
func ParseEndPolicy(s string) (EndPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "stop":
		return EndStop, nil
	case "loop":
		return EndLoop, nil
	default:
		return EndStop, fmt.Errorf("unknown end policy %q", s)
	}
}

var (
	// ErrNoSourceLoaded is reported when playback is requested before a
	// source has been loaded.
	ErrNoSourceLoaded = errors.New("no source loaded")
	// ErrClosed is returned by actions on a closed controller.
	ErrClosed = errors.New("controller is closed")
)

// Config holds the collaborators of a Controller.
type Config struct {
	Log      logs.Log
	Sink     present.Sink
	Detector detector.Detector
	Selector *annotate.Selector
	// Store is optional. When set, settings and session history are persisted.
	Store *store.Store
	// Open defaults to capture.Open.
	Open     capture.OpenFunc
	Sampling detector.SamplerConfig
	OnEnd    EndPolicy
}

// Controller owns the playback state machine. User actions are serialized;
// at most one session worker runs at a time.
type Controller struct {
	config  Config
	log     logs.Log
	sampler *detector.Sampler

	// opMu serializes user actions. It is held while waiting for a worker to
	// exit, so the worker must never take it.
	opMu sync.Mutex

	mu      sync.Mutex
	state   State
	source  string
	session *session
	lastEnd *present.SessionEnd
	closed  bool

	personCount atomic.Int64
}

// session is the runtime state of one playback attempt.
type session struct {
	id      string
	source  string
	mode    annotate.Mode
	started time.Time
	cancel  context.CancelFunc
	done    chan struct{}

	frames     atomic.Uint64
	detected   atomic.Uint64
	maxPersons atomic.Int64
}

// New creates a controller in the Idle state.
func New(config Config) *Controller {
	if config.Log == nil {
		config.Log, _ = logs.NewLog()
	}
	if config.Sink == nil {
		config.Sink = present.Discard{}
	}
	if config.Detector == nil {
		config.Detector = detector.NewMockDetector()
	}
	if config.Selector == nil {
		config.Selector = annotate.NewSelector(annotate.DefaultMode)
	}
	if config.Open == nil {
		config.Open = capture.Open
	}

	return &Controller{
		config:  config,
		log:     config.Log,
		sampler: detector.NewSampler(config.Detector, config.Sampling),
		state:   Idle,
	}
}

// LoadSource records path as the source for the next session. A running
// session is stopped first; playback does not restart.
func (c *Controller) LoadSource(path string) error {
	if err := capture.CheckSource(path); err != nil {
		return err
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()
	if c.isClosed() {
		return ErrClosed
	}

	c.stopSession()

	c.mu.Lock()
	c.source = path
	c.mu.Unlock()

	c.persist(store.SettingSource, path)
	c.log.Infof("Source loaded: %s", path)
	return nil
}

// SetMode selects the annotation mode for the next session. Selecting the
// current mode does nothing. A running session is stopped and not restarted.
func (c *Controller) SetMode(name string) error {
	m, err := annotate.ParseMode(name)
	if err != nil {
		return err
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()
	if c.isClosed() {
		return ErrClosed
	}

	if m == c.config.Selector.Mode() {
		return nil
	}

	c.stopSession()

	if _, err := c.config.Selector.SetMode(m); err != nil {
		return err
	}

	c.persist(store.SettingMode, string(m))
	c.log.Infof("Mode changed to %s", m)
	return nil
}

// Play starts a new session on the loaded source, replacing any running one.
// Without a source the sink is told and nil is returned. A source that cannot
// be opened leaves the controller Idle.
func (c *Controller) Play() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if c.isClosed() {
		return ErrClosed
	}

	path := c.Source()
	if path == "" {
		c.log.Infof("Play ignored: %v", ErrNoSourceLoaded)
		c.config.Sink.OnNoSourceLoaded()
		return nil
	}

	c.stopSession()
	return c.start(path)
}

// Stop ends the running session, if any, with reason user_stopped.
func (c *Controller) Stop() {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.stopSession()
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Source returns the loaded source path.
func (c *Controller) Source() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source
}

// Mode returns the selected annotation mode.
func (c *Controller) Mode() string {
	return string(c.config.Selector.Mode())
}

// PersonCount returns the most recent person count.
func (c *Controller) PersonCount() int {
	return int(c.personCount.Load())
}

// Status is a snapshot of the controller for UIs.
type Status struct {
	State          string `json:"state"`
	Source         string `json:"source"`
	Mode           string `json:"mode"`
	SessionID      string `json:"session_id,omitempty"`
	Frames         uint64 `json:"frames"`
	DetectedFrames uint64 `json:"detected_frames"`
	PersonCount    int    `json:"person_count"`
	SkipEvery      int    `json:"skip_every"`
	OnEnd          string `json:"on_end"`
	LastEnd        string `json:"last_end,omitempty"`
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	st := Status{
		State:       c.state.String(),
		Source:      c.source,
		PersonCount: c.PersonCount(),
		SkipEvery:   c.sampler.Config().SkipEvery,
		OnEnd:       c.config.OnEnd.String(),
	}
	if s := c.session; s != nil {
		st.SessionID = s.id
		st.Frames = s.frames.Load()
		st.DetectedFrames = s.detected.Load()
	}
	if c.lastEnd != nil {
		st.LastEnd = c.lastEnd.Reason.String()
	}
	c.mu.Unlock()

	st.Mode = c.Mode()
	return st
}

// LastEnd returns the summary of the most recently finished session.
func (c *Controller) LastEnd() (present.SessionEnd, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastEnd == nil {
		return present.SessionEnd{}, false
	}
	return *c.lastEnd, true
}

// Wait blocks until the session running at the time of the call has ended.
func (c *Controller) Wait() {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s != nil {
		<-s.done
	}
}

// Close stops any running session. Further actions return ErrClosed.
func (c *Controller) Close() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.stopSession()

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// start opens path and launches a worker. Must hold opMu with no session running.
func (c *Controller) start(path string) error {
	src, err := c.config.Open(path)
	if err != nil {
		if !errors.Is(err, capture.ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %v", capture.ErrSourceUnavailable, err)
		}
		c.log.Warnf("Cannot open %s: %v", path, err)
		return err
	}

	// A new session must not inherit track ids or heat from the last one
	if err := c.sampler.Reset(); err != nil {
		src.Close()
		return fmt.Errorf("reset detector: %w", err)
	}
	c.config.Selector.Reset()

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		id:      uuid.NewString(),
		source:  path,
		mode:    c.config.Selector.Mode(),
		started: time.Now(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	if c.config.Store != nil {
		rec := &store.Session{ID: s.id, Source: s.source, Mode: string(s.mode), StartedAt: s.started}
		if err := c.config.Store.Sessions().Create(rec); err != nil {
			c.log.Warnf("Failed to record session %s: %v", s.id, err)
		}
	}

	c.personCount.Store(0)
	c.mu.Lock()
	c.session = s
	c.state = Running
	c.mu.Unlock()

	info := src.Info()
	c.log.Infof("Session %s started: source=%s mode=%s (%dx%d, %.1f fps)",
		s.id, path, s.mode, info.Width, info.Height, info.FPS)

	go c.run(ctx, s, src)
	return nil
}

// stopSession cancels the running session and waits for its worker to exit.
// Must hold opMu.
func (c *Controller) stopSession() {
	c.mu.Lock()
	s := c.session
	if s == nil {
		c.mu.Unlock()
		return
	}
	c.state = Stopping
	c.mu.Unlock()

	s.cancel()
	<-s.done
}

func (c *Controller) persist(key, value string) {
	if c.config.Store == nil {
		return
	}
	if err := c.config.Store.Settings().Set(key, value); err != nil {
		c.log.Warnf("Failed to save %s setting: %v", key, err)
	}
}
