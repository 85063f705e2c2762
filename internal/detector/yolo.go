package detector

import (
	"image"
	"math"
	"sort"

	"gocv.io/x/gocv"

	"github.com/ayusman/personlens/internal/tracker"
)

// candidate is a decoded box before suppression, in network input coordinates.
type candidate struct {
	x1, y1, x2, y2 float32
	class          int
	score          float32
}

// decodeYOLOv8 parses a YOLOv8 output tensor laid out as [1, 4+nc, n].
// Each column holds cx, cy, w, h followed by one score per class.
// Columns whose best score is below minScore, or whose best class is not in
// classes, are discarded.
func decodeYOLOv8(data []float32, nc, n int, minScore float32, classes []int) []candidate {
	if nc <= 0 || n <= 0 || len(data) < (4+nc)*n {
		return nil
	}

	var out []candidate
	for i := 0; i < n; i++ {
		best := -1
		var bestScore float32
		for c := 0; c < nc; c++ {
			s := data[(4+c)*n+i]
			if s > bestScore {
				best = c
				bestScore = s
			}
		}
		if best < 0 || bestScore < minScore || !containsClass(classes, best) {
			continue
		}

		cx := data[0*n+i]
		cy := data[1*n+i]
		w := data[2*n+i]
		h := data[3*n+i]
		out = append(out, candidate{
			x1:    cx - w/2,
			y1:    cy - h/2,
			x2:    cx + w/2,
			y2:    cy + h/2,
			class: best,
			score: bestScore,
		})
	}
	return out
}

// suppress runs non-maximum suppression separately for every class and
// returns the survivors ordered by descending score.
func suppress(cands []candidate, iouThreshold float32) []candidate {
	byClass := make(map[int][]candidate)
	for _, c := range cands {
		byClass[c.class] = append(byClass[c.class], c)
	}

	var keep []candidate
	for _, group := range byClass {
		boxes := make([]image.Rectangle, len(group))
		scores := make([]float32, len(group))
		for i, c := range group {
			boxes[i] = c.rect()
			scores[i] = c.score
		}
		for _, idx := range gocv.NMSBoxes(boxes, scores, 0, iouThreshold) {
			keep = append(keep, group[idx])
		}
	}

	sort.SliceStable(keep, func(a, b int) bool {
		if keep[a].score != keep[b].score {
			return keep[a].score > keep[b].score
		}
		return keep[a].class < keep[b].class
	})
	return keep
}

func (c candidate) rect() image.Rectangle {
	return image.Rect(
		int(math.Round(float64(c.x1))),
		int(math.Round(float64(c.y1))),
		int(math.Round(float64(c.x2))),
		int(math.Round(float64(c.y2))),
	)
}

// toFrame scales a candidate from the square network input back to frame
// pixels and clamps it to the frame bounds.
func (c candidate) toFrame(scaleX, scaleY float32, bounds image.Rectangle) image.Rectangle {
	r := image.Rect(
		int(c.x1*scaleX),
		int(c.y1*scaleY),
		int(c.x2*scaleX),
		int(c.y2*scaleY),
	)
	return r.Intersect(bounds)
}

// assignTracks converts suppressed candidates into detections with ids from t.
// Candidates that end up empty after clamping are dropped first.
func assignTracks(t *tracker.Tracker, cands []candidate, scaleX, scaleY float32, bounds image.Rectangle) []Detection {
	dets := make([]Detection, 0, len(cands))
	objs := make([]tracker.Object, 0, len(cands))
	for _, c := range cands {
		box := c.toFrame(scaleX, scaleY, bounds)
		if box.Empty() {
			continue
		}
		dets = append(dets, Detection{Box: box, ClassID: c.class, Confidence: c.score})
		objs = append(objs, tracker.Object{Box: box, Class: c.class})
	}

	ids := t.Update(objs)
	for i := range dets {
		dets[i].TrackID = ids[i]
	}
	return dets
}
