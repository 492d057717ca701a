package layout

import (
	"math"

	"github.com/menta2k/image-annotator/pkg/types"
)

// Placement names the eight candidate slots around a detection box
type Placement int

const (
	RightOfBox Placement = iota
	LeftOfBox
	CenteredAbove
	CenteredBelow
	BottomRightOverlap
	BottomLeftOverlap
	MiddleRight
	MiddleLeft
)

var placementNames = [...]string{
	"right", "left", "above", "below",
	"bottom-right", "bottom-left", "middle-right", "middle-left",
}

func (p Placement) String() string {
	if p < 0 || int(p) >= len(placementNames) {
		return "unknown"
	}
	return placementNames[p]
}

// SolverConfig holds the scoring weights of the anchored solver. Overlaps
// are percentages of the label's own area.
type SolverConfig struct {
	TargetOverlap float64 `json:"target_overlap" toml:"target_overlap"`
	MaxOverlap    float64 `json:"max_overlap" toml:"max_overlap"`
	Penalty       float64 `json:"penalty" toml:"penalty"`
	EdgeWeight    float64 `json:"edge_weight" toml:"edge_weight"`
}

// DefaultSolverConfig returns the production weights
func DefaultSolverConfig() SolverConfig {
	return SolverConfig{
		TargetOverlap: 50,
		MaxOverlap:    20,
		Penalty:       1000,
		EdgeWeight:    2,
	}
}

// Candidate is one scored position for a label
type Candidate struct {
	Placement Placement
	Position  types.LabelPosition
	Score     float64
}

// AnchoredSolver places labels next to their detection boxes
type AnchoredSolver struct {
	config SolverConfig
}

// NewAnchoredSolver creates a solver with default weights
func NewAnchoredSolver() *AnchoredSolver {
	return &AnchoredSolver{config: DefaultSolverConfig()}
}

// NewAnchoredSolverWithConfig creates a solver with custom weights
func NewAnchoredSolverWithConfig(config SolverConfig) *AnchoredSolver {
	return &AnchoredSolver{config: config}
}

// Candidates returns the eight clamped candidate positions for a label of
// the given size anchored at box, in generation order.
func (s *AnchoredSolver) Candidates(box types.Rect, size types.LabelSize, bounds Bounds) []Candidate {
	midX := box.Left + box.Width/2 - size.Width/2
	midY := box.Top + box.Height/2 - size.Height/2

	raw := [...]types.LabelPosition{
		RightOfBox:         {Left: box.Right(), Top: box.Top},
		LeftOfBox:          {Left: box.Left - size.Width, Top: box.Top},
		CenteredAbove:      {Left: midX, Top: box.Top - size.Height},
		CenteredBelow:      {Left: midX, Top: box.Bottom()},
		BottomRightOverlap: {Left: box.Right() - size.Width/2, Top: box.Bottom() - size.Height/2},
		BottomLeftOverlap:  {Left: box.Left - size.Width/2, Top: box.Bottom() - size.Height/2},
		MiddleRight:        {Left: box.Right(), Top: midY},
		MiddleLeft:         {Left: box.Left - size.Width, Top: midY},
	}

	out := make([]Candidate, len(raw))
	for i, p := range raw {
		out[i] = Candidate{Placement: Placement(i), Position: bounds.Clamp(p, size)}
	}
	return out
}

// Score rates a label rectangle. Higher is better. A label earns points for
// distance from the image edges, loses points the further its overlap with
// its own box is from the target, and takes a large penalty for covering
// another detection box or an already placed label.
func (s *AnchoredSolver) Score(label, own types.Rect, others, placed []types.Rect) float64 {
	edge := math.Min(
		math.Min(label.Left, label.Top),
		math.Min(100-label.Right(), 100-label.Bottom()),
	)
	score := s.config.EdgeWeight*edge - math.Abs(OverlapPercent(label, own)-s.config.TargetOverlap)

	for _, o := range others {
		if OverlapPercent(label, o) > s.config.MaxOverlap {
			score -= s.config.Penalty
			break
		}
	}
	for _, p := range placed {
		if OverlapPercent(label, p) > s.config.MaxOverlap {
			score -= s.config.Penalty
			break
		}
	}
	return score
}

// Best returns the highest scoring candidate for one detection. Ties go to
// the candidate generated first.
func (s *AnchoredSolver) Best(box types.Rect, size types.LabelSize, others, placed []types.Rect, bounds Bounds) Candidate {
	candidates := s.Candidates(box, size, bounds)
	best := -1
	for i := range candidates {
		candidates[i].Score = s.Score(candidates[i].Position.Rect(size), box, others, placed)
		if best < 0 || candidates[i].Score > candidates[best].Score {
			best = i
		}
	}
	return candidates[best]
}

// Place positions every measured detection label in input order. Earlier
// labels constrain later ones. A label being dragged keeps its position and
// counts as placed. It returns the rectangles of all labels it accounted for.
func (s *AnchoredSolver) Place(state *State, detections []types.Detection, bounds Bounds) []types.Rect {
	var placed []types.Rect
	if i, ok := state.Dragging(); ok {
		if r, ok := state.Rect(i); ok {
			placed = append(placed, r)
		}
	}

	for i, det := range detections {
		if di, ok := state.Dragging(); ok && di == i {
			continue
		}
		size, ok := state.Size(i)
		if !ok {
			continue
		}

		others := make([]types.Rect, 0, len(detections)-1)
		for j, o := range detections {
			if j != i {
				others = append(others, o.Location)
			}
		}

		best := s.Best(det.Location, size, others, placed, bounds)
		if err := state.Place(i, best.Position); err != nil {
			continue
		}
		placed = append(placed, best.Position.Rect(size))
	}
	return placed
}
