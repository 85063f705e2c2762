package present

// Tee fans every event out to several sinks.
type Tee []Sink

// NewTee drops nil entries so optional sinks can be passed unconditionally.
func NewTee(sinks ...Sink) Tee {
	t := make(Tee, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			t = append(t, s)
		}
	}
	return t
}

// OnFrame gives each sink but the last its own clone of the frame; the last
// sink receives the original.
func (t Tee) OnFrame(ev FrameEvent) {
	if len(t) == 0 {
		ev.Frame.Close()
		return
	}
	for _, s := range t[:len(t)-1] {
		cp := ev
		cp.Frame = ev.Frame.Clone()
		s.OnFrame(cp)
	}
	t[len(t)-1].OnFrame(ev)
}

func (t Tee) OnSessionEnded(end SessionEnd) {
	for _, s := range t {
		s.OnSessionEnded(end)
	}
}

func (t Tee) OnNoSourceLoaded() {
	for _, s := range t {
		s.OnNoSourceLoaded()
	}
}
