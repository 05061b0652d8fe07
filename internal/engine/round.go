package engine

import (
	"errors"
	"fmt"
)

// ErrAlreadyFound is returned when marking a difference twice.
var ErrAlreadyFound = errors.New("engine: difference already found")

// Round owns the differences of one active round together with their found
// state. It is discarded wholesale when the round ends.
type Round struct {
	diffs []Difference
	found []bool
	count int

	left, right Size
}

// NewRound copies diffs; the caller's slice is never touched.
func NewRound(diffs []Difference, left, right Size) *Round {
	cp := make([]Difference, len(diffs))
	copy(cp, diffs)
	return &Round{
		diffs: cp,
		found: make([]bool, len(cp)),
		left:  left,
		right: right,
	}
}

func (r *Round) natural(side Side) Size {
	if side == Right {
		return r.right
	}
	return r.left
}

// HitTest returns the first unfound difference, in list order, whose
// fractional rectangle on the clicked image contains (fx, fy).
func (r *Round) HitTest(side Side, fx, fy float64) (int, bool) {
	natural := r.natural(side)
	if natural.Width <= 0 || natural.Height <= 0 {
		return -1, false
	}
	for i, d := range r.diffs {
		if r.found[i] {
			continue
		}
		if d.Fractional(natural).Contains(fx, fy) {
			return i, true
		}
	}
	return -1, false
}

// MarkFound records difference i as found and reports whether the round is
// now complete. Completion is reported only by the call that finds the last one.
func (r *Round) MarkFound(i int) (bool, error) {
	if i < 0 || i >= len(r.diffs) {
		return false, fmt.Errorf("engine: difference %d out of range", i)
	}
	if r.found[i] {
		return false, ErrAlreadyFound
	}
	r.found[i] = true
	r.count++
	return r.count == len(r.diffs), nil
}

// Unfound lists the indices not yet found, in list order.
func (r *Round) Unfound() []int {
	out := make([]int, 0, len(r.diffs)-r.count)
	for i, f := range r.found {
		if !f {
			out = append(out, i)
		}
	}
	return out
}

// Rects returns difference i's fractional rectangle on each image.
func (r *Round) Rects(i int) (left, right Rect) {
	d := r.diffs[i]
	return d.Fractional(r.left), d.Fractional(r.right)
}

func (r *Round) Found(i int) bool    { return r.found[i] }
func (r *Round) FoundCount() int     { return r.count }
func (r *Round) Total() int          { return len(r.diffs) }
func (r *Round) Complete() bool      { return r.count == len(r.diffs) }
func (r *Round) Sizes() (Size, Size) { return r.left, r.right }
