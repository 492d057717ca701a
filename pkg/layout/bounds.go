package layout

import (
	"math"

	"github.com/menta2k/image-annotator/pkg/types"
)

// DefaultMarginPx is the clearance kept between labels and the visible image edge
const DefaultMarginPx = 10

// OverlapPercent returns the area of a ∩ b as a percentage of a's area
func OverlapPercent(a, b types.Rect) float64 {
	area := a.Area()
	if area == 0 {
		return 0
	}
	return a.Intersection(b).Area() / area * 100
}

// Bounds is the region, in percent of the image, a label box must stay in.
// MinX/MinY bound the left/top edge, MaxX/MaxY the right/bottom edge.
// EdgeY is the visible bottom edge of the image, without margin.
type Bounds struct {
	MinX  float64 `json:"min_x"`
	MaxX  float64 `json:"max_x"`
	MinY  float64 `json:"min_y"`
	MaxY  float64 `json:"max_y"`
	EdgeY float64 `json:"edge_y"`
}

// FullBounds covers the whole image without margin
func FullBounds() Bounds {
	return Bounds{MinX: 0, MaxX: 100, MinY: 0, MaxY: 100, EdgeY: 100}
}

// NewBounds computes the valid label area for a frame. Only the part of the
// image that is visible inside the container counts, which matters when the
// image overflows (cover fit) and its offset is negative. A zero container
// means the whole image is visible. The pixel margin is converted against
// the frame on each axis.
func NewBounds(frame types.Frame, container types.Size, marginPx float64) Bounds {
	if frame.IsZero() {
		return Bounds{}
	}

	x0, x1 := 0.0, frame.Width
	y0, y1 := 0.0, frame.Height
	if !container.IsZero() {
		x0 = math.Max(x0, -frame.Left)
		x1 = math.Min(x1, container.Width-frame.Left)
		y0 = math.Max(y0, -frame.Top)
		y1 = math.Min(y1, container.Height-frame.Top)
	}

	b := Bounds{
		MinX:  (x0 + marginPx) / frame.Width * 100,
		MaxX:  (x1 - marginPx) / frame.Width * 100,
		MinY:  (y0 + marginPx) / frame.Height * 100,
		MaxY:  (y1 - marginPx) / frame.Height * 100,
		EdgeY: y1 / frame.Height * 100,
	}
	if b.MaxX < b.MinX {
		b.MaxX = b.MinX
	}
	if b.MaxY < b.MinY {
		b.MaxY = b.MinY
	}
	return b
}

// Clamp keeps the full label box inside the bounds. Labels wider or taller
// than the bounds are pinned to the minimum edge.
func (b Bounds) Clamp(pos types.LabelPosition, size types.LabelSize) types.LabelPosition {
	return types.LabelPosition{
		Left: clamp(pos.Left, b.MinX, b.MaxX-size.Width),
		Top:  clamp(pos.Top, b.MinY, b.MaxY-size.Height),
	}
}

// ClampDrag is the clamp used while dragging. The vertical range lets the
// label center, not its full box, reach the bottom margin, but the box never
// crosses the visible bottom edge of the image.
func (b Bounds) ClampDrag(pos types.LabelPosition, size types.LabelSize) types.LabelPosition {
	maxTop := b.MaxY - size.Height/2
	if b.EdgeY > 0 {
		maxTop = math.Min(maxTop, b.EdgeY-size.Height)
	}
	return types.LabelPosition{
		Left: clamp(pos.Left, b.MinX, b.MaxX-size.Width),
		Top:  clamp(pos.Top, b.MinY, maxTop),
	}
}

// Contains reports whether a label box lies fully inside the bounds
func (b Bounds) Contains(r types.Rect) bool {
	const eps = 1e-9
	return r.Left >= b.MinX-eps && r.Right() <= b.MaxX+eps &&
		r.Top >= b.MinY-eps && r.Bottom() <= b.MaxY+eps
}

// clamp bounds v to [lo, hi]; lo wins when the range is empty
func clamp(v, lo, hi float64) float64 {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
