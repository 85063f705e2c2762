// Package tray provides a system tray control surface for personlens.
package tray

import (
	"fmt"
	"sync"

	"github.com/cyclopcam/logs"
	"github.com/getlantern/systray"

	"github.com/ayusman/personlens/internal/annotate"
	"github.com/ayusman/personlens/internal/present"
)

// Tray is a system tray menu with playback controls, a mode picker and the
// live person count. It is also a present.Sink so the count stays current.
type Tray struct {
	controls present.Controls
	log      logs.Log
	onQuit   func()

	mu     sync.RWMutex
	count  int
	status string

	// Menu items stored for later updates
	menuStatus *systray.MenuItem
	menuCount  *systray.MenuItem
	modeItems  map[annotate.Mode]*systray.MenuItem
}

var _ present.Sink = (*Tray)(nil)

// New creates a Tray driving controls.
func New(controls present.Controls, log logs.Log) *Tray {
	return &Tray{
		controls: controls,
		log:      log,
		status:   "Idle",
	}
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called and must run on the main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray and unblocks Run.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("personlens")
	systray.SetTooltip("personlens person counter")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem(t.status, "Playback state")
	t.menuStatus.Disable()
	t.menuCount = systray.AddMenuItem(countTitle(t.count), "Persons in the last detected frame")
	t.menuCount.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuPlay := systray.AddMenuItem("Play", "Start playback from the beginning")
	menuStop := systray.AddMenuItem("Stop", "Stop playback")
	systray.AddSeparator()

	menuMode := systray.AddMenuItem("Mode", "Annotation style")
	items := make(map[annotate.Mode]*systray.MenuItem)
	for _, m := range annotate.Modes() {
		item := menuMode.AddSubMenuItem(string(m), "Annotate with "+string(m))
		items[m] = item

		go func(m annotate.Mode, item *systray.MenuItem) {
			for range item.ClickedCh {
				t.handleMode(m)
			}
		}(m, item)
	}
	t.mu.Lock()
	t.modeItems = items
	t.mu.Unlock()
	t.refreshModes()
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit personlens")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-menuPlay.ClickedCh:
				t.handlePlay()
			case <-menuStop.ClickedCh:
				t.controls.Stop()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func (t *Tray) handlePlay() {
	if err := t.controls.Play(); err != nil {
		t.log.Warnf("Play failed: %v", err)
		t.setStatus("Error: " + err.Error())
	}
}

// handleMode switches the annotation mode and updates the check marks.
func (t *Tray) handleMode(m annotate.Mode) {
	if err := t.controls.SetMode(string(m)); err != nil {
		t.log.Warnf("Mode change failed: %v", err)
	}
	t.refreshModes()
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

func (t *Tray) refreshModes() {
	current := annotate.Mode(t.controls.Mode())

	t.mu.RLock()
	defer t.mu.RUnlock()
	for m, item := range t.modeItems {
		if m == current {
			item.Check()
		} else {
			item.Uncheck()
		}
	}
}

func (t *Tray) OnFrame(ev present.FrameEvent) {
	ev.Frame.Close()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != "Playing" {
		t.status = "Playing"
		if t.menuStatus != nil {
			t.menuStatus.SetTitle(t.status)
		}
	}
	if ev.PersonCount == t.count {
		return
	}
	t.count = ev.PersonCount
	if t.menuCount != nil {
		t.menuCount.SetTitle(countTitle(t.count))
	}
}

func (t *Tray) OnSessionEnded(end present.SessionEnd) {
	t.setStatus(fmt.Sprintf("Stopped (%v)", end.Reason))
}

func (t *Tray) OnNoSourceLoaded() {
	t.setStatus("No video loaded")
}

func (t *Tray) setStatus(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = s
	if t.menuStatus != nil {
		t.menuStatus.SetTitle(s)
	}
}

// Status returns the status line shown in the menu.
func (t *Tray) Status() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Count returns the person count shown in the menu.
func (t *Tray) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}

func countTitle(n int) string {
	return fmt.Sprintf("Persons: %d", n)
}
