package media

import "sort"

// Box is a face bounding box in source-image pixel coordinates.
// Invariant: Top < Bottom and Left < Right.
type Box struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// Valid reports whether the box lies fully inside an image of the given
// dimensions with positive extent on both axes.
func (b Box) Valid(width, height int) bool {
	return b.Top >= 0 && b.Top < b.Bottom && b.Bottom <= height &&
		b.Left >= 0 && b.Left < b.Right && b.Right <= width
}

// Area returns the box area in pixels.
func (b Box) Area() int {
	if b.Bottom <= b.Top || b.Right <= b.Left {
		return 0
	}
	return (b.Bottom - b.Top) * (b.Right - b.Left)
}

// Contains reports whether the point (x, y) falls inside the box.
func (b Box) Contains(x, y int) bool {
	return x >= b.Left && x < b.Right && y >= b.Top && y < b.Bottom
}

// IoU computes intersection over union of two boxes.
func IoU(a, b Box) float64 {
	top := max(a.Top, b.Top)
	bottom := min(a.Bottom, b.Bottom)
	left := max(a.Left, b.Left)
	right := min(a.Right, b.Right)

	if bottom <= top || right <= left {
		return 0
	}

	intersection := (bottom - top) * (right - left)
	union := a.Area() + b.Area() - intersection
	if union <= 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// MergeOverlapping collapses near-duplicate detections: any box whose IoU
// with an already-kept box reaches the threshold is dropped, keeping the
// larger of the two. Output order is by area descending, so the result is
// deterministic for a fixed input set.
func MergeOverlapping(boxes []Box, iouThreshold float64) []Box {
	if len(boxes) <= 1 {
		return boxes
	}

	sorted := make([]Box, len(boxes))
	copy(sorted, boxes)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Area() != sorted[j].Area() {
			return sorted[i].Area() > sorted[j].Area()
		}
		if sorted[i].Top != sorted[j].Top {
			return sorted[i].Top < sorted[j].Top
		}
		return sorted[i].Left < sorted[j].Left
	})

	kept := make([]Box, 0, len(sorted))
	for _, candidate := range sorted {
		duplicate := false
		for _, existing := range kept {
			if IoU(candidate, existing) >= iouThreshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, candidate)
		}
	}
	return kept
}

// BoxAt maps a pointer position to the enclosing face box, if any. When
// boxes overlap the smallest one wins, since that is the face the pointer
// is most precisely over.
func BoxAt(boxes []Box, x, y int) (Box, bool) {
	var best Box
	found := false
	for _, b := range boxes {
		if !b.Contains(x, y) {
			continue
		}
		if !found || b.Area() < best.Area() {
			best = b
			found = true
		}
	}
	return best, found
}
