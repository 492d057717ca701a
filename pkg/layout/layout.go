// Package layout computes initial label positions.
//
// Positions and sizes are in percent of the rendered image. Labels attached
// to a detection are placed by scoring eight candidate slots around the box;
// labels without a box are sampled randomly. Both stages share a State whose
// owner tag keeps layout writes away from a label that is being dragged.
package layout

import (
	"github.com/menta2k/image-annotator/pkg/types"
)

// Config groups the solver and sampler configuration
type Config struct {
	MarginPx float64       `json:"margin_px" toml:"margin_px"`
	Solver   SolverConfig  `json:"solver" toml:"solver"`
	Sampler  SamplerConfig `json:"sampler" toml:"sampler"`
}

// DefaultConfig returns the production layout configuration
func DefaultConfig() Config {
	return Config{
		MarginPx: DefaultMarginPx,
		Solver:   DefaultSolverConfig(),
		Sampler:  DefaultSamplerConfig(),
	}
}

// Pipeline runs the anchored solver followed by the free sampler
type Pipeline struct {
	config  Config
	solver  *AnchoredSolver
	sampler *FreeSampler
}

// New creates a pipeline with default configuration
func New() *Pipeline {
	return NewWithConfig(DefaultConfig(), nil)
}

// NewWithConfig creates a pipeline with custom configuration and random source
func NewWithConfig(config Config, rng RandomSource) *Pipeline {
	return &Pipeline{
		config:  config,
		solver:  NewAnchoredSolverWithConfig(config.Solver),
		sampler: NewFreeSamplerWithConfig(config.Sampler, rng),
	}
}

// Config returns the pipeline configuration
func (p *Pipeline) Config() Config {
	return p.config
}

// Bounds returns the valid label area for a frame
func (p *Pipeline) Bounds(frame types.Frame, container types.Size) Bounds {
	return NewBounds(frame, container, p.config.MarginPx)
}

// Layout places all measured labels. Detection labels use indices
// 0..len(detections)-1 and free keywords follow them.
func (p *Pipeline) Layout(state *State, detections []types.Detection, keywords []string, bounds Bounds) {
	placed := p.solver.Place(state, detections, bounds)
	p.sampler.Place(state, len(detections), len(keywords), placed, bounds)
}
