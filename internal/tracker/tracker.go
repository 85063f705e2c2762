// Package tracker assigns persistent track ids to per-frame detections by
// matching bounding boxes between consecutive frames.
package tracker

import (
	"image"
	"sort"
)

// Default tracking parameters.
const (
	// DefaultMinIoU is the minimum overlap for a detection to continue a track.
	DefaultMinIoU = 0.3
	// DefaultMaxLost is how many consecutive updates a track may go unmatched
	// before it is dropped.
	DefaultMaxLost = 30
)

// Object is a single detection handed to the tracker.
type Object struct {
	Box   image.Rectangle
	Class int
}

type track struct {
	id    int
	box   image.Rectangle
	class int
	lost  int
}

// Tracker keeps the set of live tracks for one video stream.
// It is not safe for concurrent use.
type Tracker struct {
	minIoU  float32
	maxLost int
	nextID  int
	tracks  []*track
}

// New creates a Tracker. Non-positive arguments fall back to the defaults.
func New(minIoU float32, maxLost int) *Tracker {
	if minIoU <= 0 {
		minIoU = DefaultMinIoU
	}
	if maxLost <= 0 {
		maxLost = DefaultMaxLost
	}
	return &Tracker{
		minIoU:  minIoU,
		maxLost: maxLost,
		nextID:  1,
	}
}

// Reset forgets all tracks and restarts id assignment at 1.
func (t *Tracker) Reset() {
	t.tracks = nil
	t.nextID = 1
}

// Len returns the number of live tracks, including ones currently lost.
func (t *Tracker) Len() int {
	return len(t.tracks)
}

type pair struct {
	obj   int
	track int
	iou   float32
}

// Update matches objects against the live tracks and returns one track id
// per object, in input order.
//
// Matching is greedy by descending IoU and never crosses classes. Objects
// without a match open a new track; tracks without a match age and are
// dropped once they exceed maxLost.
func (t *Tracker) Update(objects []Object) []int {
	ids := make([]int, len(objects))

	var pairs []pair
	for i, obj := range objects {
		for j, tr := range t.tracks {
			if tr.class != obj.Class {
				continue
			}
			if iou := IoU(obj.Box, tr.box); iou >= t.minIoU {
				pairs = append(pairs, pair{obj: i, track: j, iou: iou})
			}
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool {
		return pairs[a].iou > pairs[b].iou
	})

	objMatched := make([]bool, len(objects))
	trackMatched := make([]bool, len(t.tracks))
	for _, p := range pairs {
		if objMatched[p.obj] || trackMatched[p.track] {
			continue
		}
		objMatched[p.obj] = true
		trackMatched[p.track] = true

		tr := t.tracks[p.track]
		tr.box = objects[p.obj].Box
		tr.lost = 0
		ids[p.obj] = tr.id
	}

	// Age unmatched tracks before appending new ones
	live := t.tracks[:0]
	for j, tr := range t.tracks {
		if !trackMatched[j] {
			tr.lost++
			if tr.lost > t.maxLost {
				continue
			}
		}
		live = append(live, tr)
	}
	t.tracks = live

	for i, obj := range objects {
		if objMatched[i] {
			continue
		}
		tr := &track{id: t.nextID, box: obj.Box, class: obj.Class}
		t.nextID++
		t.tracks = append(t.tracks, tr)
		ids[i] = tr.id
	}

	return ids
}

// IoU returns the intersection over union of two rectangles.
func IoU(a, b image.Rectangle) float32 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	ia := area(inter)
	union := area(a) + area(b) - ia
	if union <= 0 {
		return 0
	}
	return float32(ia) / float32(union)
}

func area(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}
