package types

// Box is a bounding box as a vision model reports it. Coordinates are either
// fractions of the image in [0,1] or pixels.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// RawObject is one object found by a vision model
type RawObject struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
	Level      string  `json:"cefr_level,omitempty"`
}

// RawAnalysis is the decoded answer of a vision model, before it is
// normalized into an Analysis
type RawAnalysis struct {
	Objects     []RawObject `json:"objects"`
	Keywords    []string    `json:"keywords"`
	Description string      `json:"description"`
	Scene       string      `json:"scene"`

	// Fallback is set when the answer could not be decoded
	Fallback bool `json:"-"`
}
