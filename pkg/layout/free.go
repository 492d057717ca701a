package layout

import (
	"math/rand/v2"

	"github.com/menta2k/image-annotator/pkg/types"
)

// RandomSource yields uniform numbers in [0, 1)
type RandomSource interface {
	Float64() float64
}

// globalRand draws from the unseeded math/rand/v2 source
type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// SamplerConfig holds the free placement parameters
type SamplerConfig struct {
	Attempts   int     `json:"attempts" toml:"attempts"`
	MaxOverlap float64 `json:"max_overlap" toml:"max_overlap"`
}

// DefaultSamplerConfig returns the production parameters
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{Attempts: 10, MaxOverlap: 20}
}

// FreeSampler places labels that have no anchor box
type FreeSampler struct {
	config SamplerConfig
	rng    RandomSource
}

// NewFreeSampler creates a sampler with default parameters and an unseeded source
func NewFreeSampler() *FreeSampler {
	return &FreeSampler{config: DefaultSamplerConfig(), rng: globalRand{}}
}

// NewFreeSamplerWithConfig creates a sampler with custom parameters. A nil
// source falls back to the unseeded global one.
func NewFreeSamplerWithConfig(config SamplerConfig, rng RandomSource) *FreeSampler {
	if rng == nil {
		rng = globalRand{}
	}
	if config.Attempts < 1 {
		config.Attempts = 1
	}
	return &FreeSampler{config: config, rng: rng}
}

// Sample picks a position for one label. It accepts the first sample whose
// overlap with every placed label is within the limit and otherwise returns
// the last sample drawn. The second result reports whether the sample was
// accepted.
func (f *FreeSampler) Sample(size types.LabelSize, placed []types.Rect, bounds Bounds) (types.LabelPosition, bool) {
	spanX := bounds.MaxX - size.Width - bounds.MinX
	spanY := bounds.MaxY - size.Height - bounds.MinY
	if spanX < 0 {
		spanX = 0
	}
	if spanY < 0 {
		spanY = 0
	}

	var pos types.LabelPosition
	for attempt := 0; attempt < f.config.Attempts; attempt++ {
		pos = types.LabelPosition{
			Left: bounds.MinX + f.rng.Float64()*spanX,
			Top:  bounds.MinY + f.rng.Float64()*spanY,
		}
		if f.fits(pos.Rect(size), placed) {
			return pos, true
		}
	}
	return pos, false
}

func (f *FreeSampler) fits(r types.Rect, placed []types.Rect) bool {
	for _, p := range placed {
		if OverlapPercent(r, p) > f.config.MaxOverlap {
			return false
		}
	}
	return true
}

// Place positions the labels with indices first..first+count-1 and returns
// the updated list of placed rectangles.
func (f *FreeSampler) Place(state *State, first, count int, placed []types.Rect, bounds Bounds) []types.Rect {
	for i := first; i < first+count; i++ {
		if di, ok := state.Dragging(); ok && di == i {
			continue
		}
		size, ok := state.Size(i)
		if !ok {
			continue
		}
		pos, _ := f.Sample(size, placed, bounds)
		if err := state.Place(i, pos); err != nil {
			continue
		}
		placed = append(placed, pos.Rect(size))
	}
	return placed
}
