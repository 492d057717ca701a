package layout

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-annotator/pkg/types"
)

// sequence is a RandomSource replaying fixed values
type sequence struct {
	values []float64
	next   int
}

func (s *sequence) Float64() float64 {
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

var square = types.Frame{Width: 400, Height: 400}

func det(keyword string, left, top, width, height float64) types.Detection {
	return types.Detection{
		Location: types.Rect{Left: left, Top: top, Width: width, Height: height},
		Keyword:  keyword,
		Score:    0.9,
	}
}

func uniformSizes(n int, size types.LabelSize) map[int]types.LabelSize {
	sizes := make(map[int]types.LabelSize, n)
	for i := 0; i < n; i++ {
		sizes[i] = size
	}
	return sizes
}

func TestOverlapPercent(t *testing.T) {
	a := types.Rect{Left: 0, Top: 0, Width: 10, Height: 10}
	assert.InDelta(t, 100, OverlapPercent(a, a), 1e-9)
	assert.InDelta(t, 25, OverlapPercent(a, types.Rect{Left: 5, Top: 5, Width: 10, Height: 10}), 1e-9)
	assert.InDelta(t, 0, OverlapPercent(a, types.Rect{Left: 10, Top: 0, Width: 10, Height: 10}), 1e-9)
	// Relative to the first rectangle only
	big := types.Rect{Left: 0, Top: 0, Width: 20, Height: 20}
	assert.InDelta(t, 100, OverlapPercent(a, big), 1e-9)
	assert.InDelta(t, 25, OverlapPercent(big, a), 1e-9)
	assert.InDelta(t, 0, OverlapPercent(types.Rect{}, a), 1e-9)
}

func TestNewBoundsLetterboxed(t *testing.T) {
	b := NewBounds(types.Frame{Width: 400, Height: 200, Top: 100}, types.Size{Width: 400, Height: 400}, 10)
	want := Bounds{MinX: 2.5, MaxX: 97.5, MinY: 5, MaxY: 95, EdgeY: 100}
	if diff := cmp.Diff(want, b, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("bounds mismatch (-want +got):\n%s", diff)
	}
}

func TestNewBoundsCoverClipsToContainer(t *testing.T) {
	b := NewBounds(types.Frame{Width: 800, Height: 400, Left: -200}, types.Size{Width: 400, Height: 400}, 10)
	want := Bounds{MinX: 26.25, MaxX: 73.75, MinY: 2.5, MaxY: 97.5, EdgeY: 100}
	if diff := cmp.Diff(want, b, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("bounds mismatch (-want +got):\n%s", diff)
	}
}

func TestNewBoundsZeroFrame(t *testing.T) {
	assert.Equal(t, Bounds{}, NewBounds(types.Frame{}, types.Size{}, 10))
}

func TestClamp(t *testing.T) {
	b := NewBounds(square, types.Size{}, 10)
	size := types.LabelSize{Width: 10, Height: 10}

	p := b.Clamp(types.LabelPosition{Left: -5, Top: 200}, size)
	assert.InDelta(t, 2.5, p.Left, 1e-9)
	assert.InDelta(t, 87.5, p.Top, 1e-9)

	short := types.LabelSize{Width: 10, Height: 4}
	d := b.ClampDrag(types.LabelPosition{Left: 200, Top: 200}, short)
	assert.InDelta(t, 87.5, d.Left, 1e-9)
	assert.InDelta(t, 95.5, d.Top, 1e-9, "drag lets the vertical center reach the margin")

	d = b.ClampDrag(types.LabelPosition{Left: 0, Top: -50}, size)
	assert.InDelta(t, 2.5, d.Top, 1e-9)

	wide := b.Clamp(types.LabelPosition{Left: 50, Top: 50}, types.LabelSize{Width: 120, Height: 10})
	assert.InDelta(t, 2.5, wide.Left, 1e-9, "oversized labels pin to the min edge")
}

func TestClampDragKeepsTallLabelsOnImage(t *testing.T) {
	// 30px tall in a 400px frame is more than twice the 10px margin
	b := NewBounds(square, types.Size{Width: 400, Height: 400}, 10)
	size := types.LabelSize{Width: 10, Height: 7.5}

	d := b.ClampDrag(types.LabelPosition{Left: 50, Top: 500}, size)
	assert.InDelta(t, 92.5, d.Top, 1e-9)
	assert.LessOrEqual(t, d.Rect(size).Bottom(), 100.0)

	cover := NewBounds(types.Frame{Width: 400, Height: 800, Top: -200}, types.Size{Width: 400, Height: 400}, 10)
	d = cover.ClampDrag(types.LabelPosition{Left: 50, Top: 500}, types.LabelSize{Width: 10, Height: 5})
	assert.InDelta(t, 70, d.Top, 1e-9, "the visible part of a cover frame ends at 75%")
}

func TestStateOwnership(t *testing.T) {
	s := NewState()
	s.Reset(uniformSizes(2, types.LabelSize{Width: 10, Height: 5}))

	assert.ErrorIs(t, s.Place(5, types.LabelPosition{}), ErrUnknownLabel)
	assert.ErrorIs(t, s.BeginDrag(0), ErrNoPosition)

	require.NoError(t, s.Place(0, types.LabelPosition{Left: 10, Top: 10}))
	require.NoError(t, s.Place(1, types.LabelPosition{Left: 50, Top: 50}))
	require.NoError(t, s.BeginDrag(0))

	assert.ErrorIs(t, s.BeginDrag(1), ErrDragActive)
	assert.ErrorIs(t, s.Place(0, types.LabelPosition{}), ErrNotOwner)
	assert.ErrorIs(t, s.Move(1, types.LabelPosition{}), ErrNotOwner)
	require.NoError(t, s.Move(0, types.LabelPosition{Left: 20, Top: 20}))

	i, ok := s.Dragging()
	assert.True(t, ok)
	assert.Equal(t, 0, i)

	s.EndDrag()
	_, ok = s.Dragging()
	assert.False(t, ok)
	assert.True(t, errors.Is(s.Move(0, types.LabelPosition{}), ErrNotOwner))

	p, _ := s.Position(0)
	assert.Equal(t, types.LabelPosition{Left: 20, Top: 20}, p)
}

func TestStateResetKeepsDraggedLabel(t *testing.T) {
	s := NewState()
	s.Reset(uniformSizes(2, types.LabelSize{Width: 10, Height: 5}))
	require.NoError(t, s.Place(0, types.LabelPosition{Left: 10, Top: 10}))
	require.NoError(t, s.Place(1, types.LabelPosition{Left: 50, Top: 50}))
	require.NoError(t, s.BeginDrag(1))

	s.Reset(uniformSizes(2, types.LabelSize{Width: 12, Height: 6}))
	_, ok := s.Position(0)
	assert.False(t, ok, "undragged positions are invalidated")
	p, ok := s.Position(1)
	require.True(t, ok)
	assert.Equal(t, types.LabelPosition{Left: 50, Top: 50}, p)
	i, dragging := s.Dragging()
	assert.True(t, dragging)
	assert.Equal(t, 1, i)

	// The dragged label disappears from the new label set
	s.Reset(uniformSizes(1, types.LabelSize{Width: 12, Height: 6}))
	_, dragging = s.Dragging()
	assert.False(t, dragging)
	assert.Equal(t, 1, s.Len())
}

func TestCandidatesOrderAndClamp(t *testing.T) {
	solver := NewAnchoredSolver()
	bounds := NewBounds(square, types.Size{}, 10)
	cands := solver.Candidates(types.Rect{Left: 10, Top: 10, Width: 20, Height: 20}, types.LabelSize{Width: 10, Height: 5}, bounds)

	require.Len(t, cands, 8)
	want := []types.LabelPosition{
		{Left: 30, Top: 10},
		{Left: 2.5, Top: 10},
		{Left: 15, Top: 5},
		{Left: 15, Top: 30},
		{Left: 25, Top: 27.5},
		{Left: 5, Top: 27.5},
		{Left: 30, Top: 17.5},
		{Left: 2.5, Top: 17.5},
	}
	for i, c := range cands {
		assert.Equal(t, Placement(i), c.Placement)
		assert.InDelta(t, want[i].Left, c.Position.Left, 1e-9, c.Placement.String())
		assert.InDelta(t, want[i].Top, c.Position.Top, 1e-9, c.Placement.String())
	}
}

func TestSolverSingleDetection(t *testing.T) {
	state := NewState()
	state.Reset(uniformSizes(1, types.LabelSize{Width: 10, Height: 5}))
	bounds := NewBounds(square, types.Size{}, 10)

	NewAnchoredSolver().Place(state, []types.Detection{det("Dog", 10, 10, 20, 20)}, bounds)

	p, ok := state.Position(0)
	require.True(t, ok)
	// Bottom-right overlap: 25% own overlap and the most edge clearance
	assert.InDelta(t, 25, p.Left, 1e-9)
	assert.InDelta(t, 27.5, p.Top, 1e-9)
}

func TestSolverOverlappingBoxesKeepLabelsApart(t *testing.T) {
	// The boxes overlap each other by 90%
	a := det("cat", 20, 20, 40, 40)
	b := det("kitten", 24, 20, 40, 40)
	require.InDelta(t, 90, OverlapPercent(a.Location, b.Location), 1e-9)

	state := NewState()
	state.Reset(uniformSizes(2, types.LabelSize{Width: 10, Height: 5}))
	bounds := NewBounds(square, types.Size{}, 10)
	NewAnchoredSolver().Place(state, []types.Detection{a, b}, bounds)

	ra, ok := state.Rect(0)
	require.True(t, ok)
	rb, ok := state.Rect(1)
	require.True(t, ok)

	assert.InDelta(t, 35, ra.Left, 1e-9)
	assert.InDelta(t, 60, ra.Top, 1e-9)
	assert.InDelta(t, 59, rb.Left, 1e-9)
	assert.InDelta(t, 57.5, rb.Top, 1e-9)
	assert.LessOrEqual(t, OverlapPercent(ra, rb), 20.0)
	assert.LessOrEqual(t, OverlapPercent(rb, ra), 20.0)
}

func TestSolverNoGoodCandidateStillPlaces(t *testing.T) {
	full := det("sky", 0, 0, 100, 100)
	state := NewState()
	state.Reset(uniformSizes(2, types.LabelSize{Width: 10, Height: 5}))
	bounds := NewBounds(square, types.Size{}, 10)

	NewAnchoredSolver().Place(state, []types.Detection{full, full}, bounds)

	for i := 0; i < 2; i++ {
		r, ok := state.Rect(i)
		require.True(t, ok, "label %d must be placed", i)
		assert.True(t, bounds.Contains(r))
	}
}

func TestSolverTieBreaksByGenerationOrder(t *testing.T) {
	solver := NewAnchoredSolverWithConfig(SolverConfig{TargetOverlap: 0, MaxOverlap: 20, Penalty: 1000, EdgeWeight: 0})
	bounds := NewBounds(square, types.Size{}, 10)

	best := solver.Best(types.Rect{Left: 40, Top: 40, Width: 20, Height: 20}, types.LabelSize{Width: 10, Height: 5}, nil, nil, bounds)
	assert.Equal(t, RightOfBox, best.Placement)
	assert.InDelta(t, 0, best.Score, 1e-9)
}

func TestSolverSkipsUnmeasuredLabels(t *testing.T) {
	state := NewState()
	state.Reset(map[int]types.LabelSize{1: {Width: 10, Height: 5}})
	bounds := NewBounds(square, types.Size{}, 10)

	NewAnchoredSolver().Place(state, []types.Detection{det("a", 10, 10, 10, 10), det("b", 60, 60, 10, 10)}, bounds)

	_, ok := state.Position(0)
	assert.False(t, ok)
	_, ok = state.Position(1)
	assert.True(t, ok)
}

func TestSolverDeterministic(t *testing.T) {
	dets := []types.Detection{
		det("dog", 10, 10, 20, 20),
		det("ball", 15, 20, 10, 10),
		det("tree", 60, 5, 30, 60),
		det("grass", 0, 70, 100, 30),
	}
	bounds := NewBounds(square, types.Size{}, 10)

	run := func() map[int]types.LabelPosition {
		state := NewState()
		state.Reset(uniformSizes(len(dets), types.LabelSize{Width: 12, Height: 6}))
		NewAnchoredSolver().Place(state, dets, bounds)
		return state.Positions()
	}
	first := run()
	require.Len(t, first, len(dets))
	for i := 0; i < 5; i++ {
		if diff := cmp.Diff(first, run()); diff != "" {
			t.Fatalf("placement is not reproducible (-first +again):\n%s", diff)
		}
	}
}

func TestPlacementsStayInBounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	frames := []types.Frame{{Width: 400, Height: 300}, {Width: 1200, Height: 400}, {Width: 250, Height: 600}}

	for _, frame := range frames {
		bounds := NewBounds(frame, types.Size{}, 10)
		for round := 0; round < 20; round++ {
			n := 1 + rng.IntN(6)
			dets := make([]types.Detection, n)
			for i := range dets {
				w, h := 5+rng.Float64()*40, 5+rng.Float64()*40
				dets[i] = det("obj", rng.Float64()*(100-w), rng.Float64()*(100-h), w, h)
			}
			state := NewState()
			state.Reset(uniformSizes(n+2, types.LabelSize{Width: 15, Height: 8}))
			NewWithConfig(DefaultConfig(), rng).Layout(state, dets, []string{"sun", "wind"}, bounds)

			require.Len(t, state.Positions(), n+2)
			for i := 0; i < n+2; i++ {
				r, _ := state.Rect(i)
				assert.True(t, bounds.Contains(r), "label %d at %+v outside %+v", i, r, bounds)
			}
		}
	}
}

func TestSamplerAcceptsFirstFittingSample(t *testing.T) {
	bounds := NewBounds(square, types.Size{}, 10)
	dog := types.Rect{Left: 25, Top: 27.5, Width: 10, Height: 5}
	// First sample lands on the dog label, second one is clear of it
	rng := &sequence{values: []float64{0.25, 0.25, 0.75, 0.75}}
	sampler := NewFreeSamplerWithConfig(DefaultSamplerConfig(), rng)

	pos, ok := sampler.Sample(types.LabelSize{Width: 10, Height: 5}, []types.Rect{dog}, bounds)
	require.True(t, ok)
	assert.InDelta(t, 66.25, pos.Left, 1e-9)
	assert.InDelta(t, 70, pos.Top, 1e-9)
	assert.Equal(t, 4, rng.next)
	assert.Less(t, OverlapPercent(pos.Rect(types.LabelSize{Width: 10, Height: 5}), dog), 20.0)
}

func TestSamplerFallsBackToLastSample(t *testing.T) {
	bounds := NewBounds(square, types.Size{}, 10)
	everything := types.Rect{Left: 0, Top: 0, Width: 100, Height: 100}
	rng := &sequence{values: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}}
	sampler := NewFreeSamplerWithConfig(SamplerConfig{Attempts: 3, MaxOverlap: 20}, rng)

	pos, ok := sampler.Sample(types.LabelSize{Width: 10, Height: 10}, []types.Rect{everything}, bounds)
	assert.False(t, ok)
	assert.Equal(t, 6, rng.next, "all attempts are used")
	assert.InDelta(t, 2.5+0.5*85, pos.Left, 1e-9)
	assert.InDelta(t, 2.5+0.6*85, pos.Top, 1e-9)
}

func TestSamplerConsidersEarlierFreeLabels(t *testing.T) {
	bounds := NewBounds(square, types.Size{}, 10)
	state := NewState()
	state.Reset(uniformSizes(2, types.LabelSize{Width: 10, Height: 5}))
	// Both labels would land on the same spot first; the second resamples
	rng := &sequence{values: []float64{0.5, 0.5, 0.5, 0.5, 0.1, 0.1}}

	placed := NewFreeSamplerWithConfig(DefaultSamplerConfig(), rng).Place(state, 0, 2, nil, bounds)
	require.Len(t, placed, 2)
	assert.LessOrEqual(t, OverlapPercent(placed[1], placed[0]), 20.0)
}

func TestPipelineDogAndBark(t *testing.T) {
	state := NewState()
	state.Reset(uniformSizes(2, types.LabelSize{Width: 10, Height: 5}))
	rng := &sequence{values: []float64{0.25, 0.25, 0.75, 0.75}}
	p := NewWithConfig(DefaultConfig(), rng)
	bounds := p.Bounds(square, types.Size{})

	p.Layout(state, []types.Detection{det("Dog", 10, 10, 20, 20)}, []string{"Bark"}, bounds)

	dog, ok := state.Rect(0)
	require.True(t, ok)
	bark, ok := state.Rect(1)
	require.True(t, ok)
	assert.Less(t, OverlapPercent(bark, dog), 20.0)
	assert.True(t, bounds.Contains(dog))
	assert.True(t, bounds.Contains(bark))
}

func TestPipelineKeepsDraggedLabel(t *testing.T) {
	state := NewState()
	state.Reset(uniformSizes(2, types.LabelSize{Width: 10, Height: 5}))
	p := NewWithConfig(DefaultConfig(), &sequence{values: []float64{0.9}})
	bounds := p.Bounds(square, types.Size{})
	dets := []types.Detection{det("Dog", 10, 10, 20, 20), det("Cat", 60, 60, 20, 20)}

	p.Layout(state, dets, nil, bounds)
	require.NoError(t, state.BeginDrag(1))
	require.NoError(t, state.Move(1, types.LabelPosition{Left: 26, Top: 28}))

	state.Reset(uniformSizes(2, types.LabelSize{Width: 10, Height: 5}))
	p.Layout(state, dets, nil, bounds)

	cat, _ := state.Position(1)
	assert.Equal(t, types.LabelPosition{Left: 26, Top: 28}, cat)
	dog, ok := state.Rect(0)
	require.True(t, ok)
	catRect, _ := state.Rect(1)
	assert.LessOrEqual(t, OverlapPercent(dog, catRect), 20.0, "the pinned label counts as placed")
}

func TestPlacementString(t *testing.T) {
	assert.Equal(t, "right", RightOfBox.String())
	assert.Equal(t, "middle-left", MiddleLeft.String())
	assert.Equal(t, "unknown", Placement(42).String())
}

func BenchmarkPipeline(b *testing.B) {
	dets := []types.Detection{
		det("dog", 10, 10, 20, 20),
		det("ball", 15, 20, 10, 10),
		det("tree", 60, 5, 30, 60),
		det("grass", 0, 70, 100, 30),
	}
	keywords := []string{"sunny", "park", "play"}
	sizes := uniformSizes(len(dets)+len(keywords), types.LabelSize{Width: 12, Height: 6})
	p := New()
	bounds := p.Bounds(square, types.Size{})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		state := NewState()
		state.Reset(sizes)
		p.Layout(state, dets, keywords, bounds)
	}
}
