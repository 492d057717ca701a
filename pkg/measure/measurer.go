// Package measure turns label texts into footprints in percent of the image.
//
// Pixel sizes come from a TextMeasurer so the layout code can run without a
// rendering surface; FontMeasurer is the adapter backed by real font metrics.
package measure

import (
	"github.com/menta2k/image-annotator/pkg/types"
)

// Style is the visual styling of a rendered label
type Style struct {
	FontSize float64 `json:"font_size" toml:"font_size"`
	PaddingX float64 `json:"padding_x" toml:"padding_x"`
	PaddingY float64 `json:"padding_y" toml:"padding_y"`
	Bold     bool    `json:"bold" toml:"bold"`

	// ReferenceWidth is the frame width at which FontSize and padding apply,
	// so labels scale with the rendered image. Zero lets a Measurer pin it
	// to the first frame it measures. Negative keeps fixed pixel sizes, and
	// labels then shrink in percent when the image grows.
	ReferenceWidth float64 `json:"reference_width,omitempty" toml:"reference_width"`
}

// ForFrame returns the style a label is drawn with in frame
func (s Style) ForFrame(frame types.Frame) Style {
	if s.ReferenceWidth <= 0 || frame.Width <= 0 {
		return s
	}
	k := frame.Width / s.ReferenceWidth
	s.FontSize *= k
	s.PaddingX *= k
	s.PaddingY *= k
	return s
}

// DefaultStyle returns the production label style. Its ReferenceWidth is
// zero, so a Measurer keeps label percentages across resizes by pinning the
// first frame width.
func DefaultStyle() Style {
	return Style{
		FontSize: 14,
		PaddingX: 8,
		PaddingY: 4,
		Bold:     true,
	}
}

// TextMeasurer reports the pixel footprint of a label, padding included
type TextMeasurer interface {
	Measure(text string, style Style) types.Size
}

// MeasureFunc adapts a plain function to TextMeasurer
type MeasureFunc func(text string, style Style) types.Size

// Measure implements TextMeasurer
func (f MeasureFunc) Measure(text string, style Style) types.Size {
	return f(text, style)
}

// Measurer converts pixel measurements into LabelSize values. It is not safe
// for concurrent use.
type Measurer struct {
	text  TextMeasurer
	base  Style
	style Style
}

// New creates a Measurer with the default style
func New(text TextMeasurer) *Measurer {
	return NewWithStyle(text, DefaultStyle())
}

// NewWithStyle creates a Measurer with a custom style
func NewWithStyle(text TextMeasurer, style Style) *Measurer {
	return &Measurer{text: text, base: style, style: style}
}

// Style returns the style labels are measured with, including a pinned
// reference width
func (m *Measurer) Style() Style {
	return m.style
}

// Reset drops a pinned reference width, e.g. when another image loads
func (m *Measurer) Reset() {
	m.style = m.base
}

// Measure returns one LabelSize per text, keyed by the text's index. A frame
// without area yields nil, which callers treat as "not ready".
func (m *Measurer) Measure(frame types.Frame, texts []string) map[int]types.LabelSize {
	if frame.IsZero() || m.text == nil {
		return nil
	}

	if m.style.ReferenceWidth == 0 {
		m.style.ReferenceWidth = frame.Width
	}
	style := m.style.ForFrame(frame)
	sizes := make(map[int]types.LabelSize, len(texts))
	for i, text := range texts {
		px := m.text.Measure(text, style)
		sizes[i] = types.LabelSize{
			Width:  px.Width / frame.Width * 100,
			Height: px.Height / frame.Height * 100,
		}
	}
	return sizes
}

// Fixed is a TextMeasurer that assumes every rune has the same advance. It
// is useful where no font is available, e.g. in headless tests.
type Fixed struct {
	RuneWidth  float64 // advance per rune as a fraction of the font size
	LineHeight float64 // line height as a fraction of the font size
}

// Measure implements TextMeasurer
func (f Fixed) Measure(text string, style Style) types.Size {
	rw, lh := f.RuneWidth, f.LineHeight
	if rw <= 0 {
		rw = 0.6
	}
	if lh <= 0 {
		lh = 1.2
	}
	n := float64(len([]rune(text)))
	return types.Size{
		Width:  n*rw*style.FontSize + 2*style.PaddingX,
		Height: lh*style.FontSize + 2*style.PaddingY,
	}
}
