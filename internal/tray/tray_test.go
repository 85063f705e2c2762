package tray

import (
	"errors"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/assert"

	"github.com/ayusman/personlens/internal/annotate"
	"github.com/ayusman/personlens/internal/present"
	"github.com/ayusman/personlens/internal/testutil"
)

type fakeControls struct {
	mode    string
	plays   int
	playErr error
}

func (f *fakeControls) Play() error { f.plays++; return f.playErr }
func (f *fakeControls) Stop()       {}
func (f *fakeControls) Mode() string {
	return f.mode
}
func (f *fakeControls) SetMode(name string) error {
	m, err := annotate.ParseMode(name)
	if err != nil {
		return err
	}
	f.mode = string(m)
	return nil
}

func TestTray_SinkUpdatesCountAndStatus(t *testing.T) {
	tr := New(&fakeControls{mode: "Ellipse"}, logs.NewTestingLog(t))
	assert.Equal(t, "Idle", tr.Status())

	tr.OnFrame(present.FrameEvent{Frame: testutil.SolidFrame(8, 8, 0, 0, 0), PersonCount: 3, Detected: true})
	assert.Equal(t, 3, tr.Count())
	assert.Equal(t, "Playing", tr.Status())

	tr.OnSessionEnded(present.SessionEnd{Reason: present.EndReason{Kind: present.EndOfStream}})
	assert.Equal(t, "Stopped (end_of_stream)", tr.Status())

	tr.OnNoSourceLoaded()
	assert.Equal(t, "No video loaded", tr.Status())
}

func TestTray_Controls(t *testing.T) {
	c := &fakeControls{mode: "Ellipse"}
	tr := New(c, logs.NewTestingLog(t))

	tr.handleMode(annotate.Trace)
	assert.Equal(t, "Trace", c.mode)

	tr.handlePlay()
	assert.Equal(t, 1, c.plays)

	c.playErr = errors.New("source unavailable")
	tr.handlePlay()
	assert.Equal(t, "Error: source unavailable", tr.Status())
}

func TestCountTitle(t *testing.T) {
	assert.Equal(t, "Persons: 0", countTitle(0))
	assert.Equal(t, "Persons: 12", countTitle(12))
}
