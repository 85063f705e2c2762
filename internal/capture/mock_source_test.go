package capture

import (
	"errors"
	"testing"

	"github.com/ayusman/personlens/internal/testutil"
)

func TestMockSource_Playback(t *testing.T) {
	frames := testutil.SyntheticFrames(2, 64, 48)
	defer testutil.CloseAll(frames)

	src := NewMockSource(frames)
	defer src.Close()

	// Read both frames
	f1, err := src.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if f1.Seq != 1 {
		t.Errorf("first frame seq = %d, want 1", f1.Seq)
	}
	f1.Close()

	f2, err := src.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if f2.Seq != 2 {
		t.Errorf("second frame seq = %d, want 2", f2.Seq)
	}
	f2.Close()

	// Third read reports end of stream
	if _, err := src.Next(); !errors.Is(err, ErrEndOfStream) {
		t.Errorf("expected ErrEndOfStream after all frames consumed, got %v", err)
	}
}

func TestMockSource_RewindKeepsSequence(t *testing.T) {
	frames := testutil.SyntheticFrames(1, 64, 48)
	defer testutil.CloseAll(frames)

	src := NewMockSource(frames)
	defer src.Close()

	var last uint64
	for i := 0; i < 5; i++ {
		f, err := src.Next()
		if errors.Is(err, ErrEndOfStream) {
			if err := src.Rewind(); err != nil {
				t.Fatalf("Rewind() error = %v", err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Next() iteration %d error = %v", i, err)
		}
		if f.Seq <= last {
			t.Errorf("seq %d did not increase after %d", f.Seq, last)
		}
		last = f.Seq
		f.Close()
	}

	if src.Rewinds() == 0 {
		t.Error("expected at least one rewind")
	}
}

func TestMockSource_Close(t *testing.T) {
	frames := testutil.SyntheticFrames(1, 64, 48)
	defer testutil.CloseAll(frames)

	src := NewMockSource(frames)
	src.Close()

	if !src.Closed() {
		t.Error("Closed() = false after Close")
	}
	if _, err := src.Next(); !errors.Is(err, ErrSourceClosed) {
		t.Errorf("Next() after Close error = %v, want ErrSourceClosed", err)
	}

	info := src.Info()
	if info.Width != 64 || info.Height != 48 || info.FrameCount != 1 {
		t.Errorf("Info() = %+v", info)
	}
}
