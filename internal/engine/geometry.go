package engine

import "errors"

// Side identifies one of the two images of a pair.
type Side int

const (
	Left Side = iota + 1
	Right
)

func (s Side) String() string {
	switch s {
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return "unknown"
}

// ParseSide accepts "left"/"right" and the dataset's "image1"/"image2".
func ParseSide(s string) (Side, error) {
	switch s {
	case "left", "image1", "1":
		return Left, nil
	case "right", "image2", "2":
		return Right, nil
	}
	return 0, errors.New("engine: unknown image side " + s)
}

// Size is an image's natural pixel size.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect is a rectangle in fractional image coordinates, each axis in [0, 1].
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether (fx, fy) lies inside r, edges inclusive.
func (r Rect) Contains(fx, fy float64) bool {
	return fx >= r.X && fx <= r.X+r.Width && fy >= r.Y && fy <= r.Y+r.Height
}

// Difference is a rectangle in source-image pixels.
type Difference struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Fractional scales d by the clicked image's natural size.
func (d Difference) Fractional(natural Size) Rect {
	if natural.Width <= 0 || natural.Height <= 0 {
		return Rect{}
	}
	w, h := float64(natural.Width), float64(natural.Height)
	return Rect{X: d.X / w, Y: d.Y / h, Width: d.Width / w, Height: d.Height / h}
}

// Click is a pointer event relative to the rendered image box. X and Y are
// offsets from the box's top-left corner; BoxWidth and BoxHeight are the
// rendered size, which may differ from the natural size.
type Click struct {
	Side      Side    `json:"side"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	BoxWidth  float64 `json:"boxWidth"`
	BoxHeight float64 `json:"boxHeight"`
}

// ErrBadClick is returned for clicks on a zero-sized box.
var ErrBadClick = errors.New("engine: click box has no area")

// NormalizeClick maps a click to fractional coordinates of the clicked image.
func NormalizeClick(c Click) (fx, fy float64, err error) {
	if c.BoxWidth <= 0 || c.BoxHeight <= 0 {
		return 0, 0, ErrBadClick
	}
	return c.X / c.BoxWidth, c.Y / c.BoxHeight, nil
}
