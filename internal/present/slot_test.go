package present

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func event(seq uint64) FrameEvent {
	return FrameEvent{
		SessionID: "s1",
		Seq:       seq,
		Frame:     gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC3),
	}
}

func TestSlot_LatestWins(t *testing.T) {
	s := NewSlot()
	defer s.Close()

	s.Put(event(1))
	s.Put(event(2))
	s.Put(event(3))

	ev, ok := s.TryTake()
	require.True(t, ok)
	defer ev.Frame.Close()

	assert.Equal(t, uint64(3), ev.Seq)
	assert.Equal(t, uint64(2), s.Drops())
	assert.Equal(t, uint64(3), s.LastSeq())

	_, ok = s.TryTake()
	assert.False(t, ok, "slot should be empty after take")
}

func TestSlot_TakeBlocksUntilPut(t *testing.T) {
	s := NewSlot()
	defer s.Close()

	got := make(chan uint64, 1)
	go func() {
		ev, ok := s.Take(context.Background())
		if ok {
			ev.Frame.Close()
			got <- ev.Seq
		}
	}()

	select {
	case <-got:
		t.Fatal("Take returned before Put")
	case <-time.After(20 * time.Millisecond):
	}

	s.Put(event(7))
	select {
	case seq := <-got:
		assert.Equal(t, uint64(7), seq)
	case <-time.After(time.Second):
		t.Fatal("Take did not wake after Put")
	}
}

func TestSlot_TakeHonorsContext(t *testing.T) {
	s := NewSlot()
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, ok := s.Take(ctx)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSlot_CloseWakesAndDiscards(t *testing.T) {
	s := NewSlot()

	done := make(chan bool, 1)
	go func() {
		_, ok := s.Take(context.Background())
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	s.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Close did not wake Take")
	}

	// Put after Close releases the frame and leaves the slot empty
	s.Put(event(1))
	_, ok := s.TryTake()
	assert.False(t, ok)
}

func TestFitSize(t *testing.T) {
	tests := []struct {
		name  string
		size  image.Point
		bound image.Point
		want  image.Point
	}{
		{"fits already", image.Pt(900, 750), image.Pt(1280, 800), image.Pt(900, 750)},
		{"too wide", image.Pt(2560, 1440), image.Pt(1280, 800), image.Pt(1280, 720)},
		{"too tall", image.Pt(1000, 2000), image.Pt(1280, 800), image.Pt(400, 800)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fitSize(tt.size, tt.bound))
		})
	}
}
