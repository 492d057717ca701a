package types

import "math"

// Rect is a rectangle in percent-of-image units with a top-left origin
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Right returns the x coordinate of the right edge
func (r Rect) Right() float64 { return r.Left + r.Width }

// Bottom returns the y coordinate of the bottom edge
func (r Rect) Bottom() float64 { return r.Top + r.Height }

// Area returns the area of the rectangle, zero for degenerate rectangles
func (r Rect) Area() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return r.Width * r.Height
}

// Center returns the center point of the rectangle
func (r Rect) Center() Point {
	return Point{X: r.Left + r.Width/2, Y: r.Top + r.Height/2}
}

// Intersection returns the overlapping part of r and o. The result is empty
// (zero area) when they do not overlap.
func (r Rect) Intersection(o Rect) Rect {
	x0 := math.Max(r.Left, o.Left)
	y0 := math.Max(r.Top, o.Top)
	x1 := math.Min(r.Right(), o.Right())
	y1 := math.Min(r.Bottom(), o.Bottom())
	if x1 <= x0 || y1 <= y0 {
		return Rect{Left: x0, Top: y0}
	}
	return Rect{Left: x0, Top: y0, Width: x1 - x0, Height: y1 - y0}
}

// Detection is a recognized object with a confidence-scored bounding box
type Detection struct {
	Location Rect    `json:"location"`
	Keyword  string  `json:"keyword"`
	Score    float64 `json:"score"`
	Level    string  `json:"cefrLevel,omitempty"`
}

// Analysis is one result from the vision collaborator
type Analysis struct {
	Detections  []Detection `json:"detection"`
	Keywords    []string    `json:"keywords"`
	Description string      `json:"description"`
	Scene       string      `json:"scene"`
}

// Size is a pixel size
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsZero reports whether either dimension is not positive
func (s Size) IsZero() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Point is a pixel position in container coordinates
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns p - o
func (p Point) Sub(o Point) Point {
	return Point{X: p.X - o.X, Y: p.Y - o.Y}
}

// Frame is the rendered rectangle of the image inside its container, in pixels
type Frame struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
}

// IsZero reports whether the frame has no usable area
func (f Frame) IsZero() bool {
	return f.Width <= 0 || f.Height <= 0
}

// Origin returns the top-left corner of the frame in container coordinates
func (f Frame) Origin() Point {
	return Point{X: f.Left, Y: f.Top}
}

// LabelSize is a label footprint in percent of the image
type LabelSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// LabelPosition is the top-left corner of a label in percent of the image
type LabelPosition struct {
	Left float64 `json:"left"`
	Top  float64 `json:"top"`
}

// Rect combines a position and a size into a rectangle
func (p LabelPosition) Rect(s LabelSize) Rect {
	return Rect{Left: p.Left, Top: p.Top, Width: s.Width, Height: s.Height}
}

// InteractionState is the transient per-label display state
type InteractionState struct {
	Flipped bool `json:"flipped"`
	Reading bool `json:"reading"`
}

// LabelKind tells anchored labels from free ones
type LabelKind string

const (
	KindAnchored LabelKind = "anchored"
	KindFree     LabelKind = "free"
)

// Label is a positioned label ready to be drawn
type Label struct {
	Index    int       `json:"index"`
	Kind     LabelKind `json:"kind"`
	Text     string    `json:"text"`
	Shown    string    `json:"shown"`
	Rect     Rect      `json:"rect"`
	Flipped  bool      `json:"flipped"`
	Reading  bool      `json:"reading"`
	Dragging bool      `json:"dragging"`
}
