package measure

import (
	"fmt"
	"image"
	"image/draw"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/menta2k/image-annotator/pkg/types"
)

type faceKey struct {
	size float64
	bold bool
}

// FontMeasurer measures text with real glyph advances from the Go fonts.
// Faces are created lazily, one per size/weight, and cached.
type FontMeasurer struct {
	regular *opentype.Font
	bold    *opentype.Font

	mu    sync.Mutex
	faces map[faceKey]font.Face
}

// NewFontMeasurer parses the embedded Go fonts
func NewFontMeasurer() (*FontMeasurer, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bold font: %w", err)
	}
	return &FontMeasurer{
		regular: regular,
		bold:    bold,
		faces:   make(map[faceKey]font.Face),
	}, nil
}

// Face returns the cached face for a style. The same face is used for
// drawing so rendered labels match their measured size.
func (m *FontMeasurer) Face(style Style) (font.Face, error) {
	key := faceKey{size: style.FontSize, bold: style.Bold}

	m.mu.Lock()
	defer m.mu.Unlock()
	if face, ok := m.faces[key]; ok {
		return face, nil
	}

	f := m.regular
	if style.Bold {
		f = m.bold
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    style.FontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %.1fpx face: %w", style.FontSize, err)
	}
	m.faces[key] = face
	return face, nil
}

// Measure implements TextMeasurer. A style whose face cannot be built
// measures as padding only.
func (m *FontMeasurer) Measure(text string, style Style) types.Size {
	face, err := m.Face(style)
	if err != nil {
		return types.Size{Width: 2 * style.PaddingX, Height: 2 * style.PaddingY}
	}

	m.mu.Lock()
	advance := font.MeasureString(face, text)
	height := face.Metrics().Height
	m.mu.Unlock()

	return types.Size{
		Width:  float64(advance.Ceil()) + 2*style.PaddingX,
		Height: float64(height.Ceil()) + 2*style.PaddingY,
	}
}

// Draw renders text onto dst with its top-left padding corner at (x, y) in
// dst pixels, using the face the text was measured with.
func (m *FontMeasurer) Draw(dst draw.Image, text string, style Style, x, y int, src image.Image) error {
	face, err := m.Face(style)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ascent := face.Metrics().Ascent
	d := &font.Drawer{
		Dst:  dst,
		Src:  src,
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(x + int(style.PaddingX)),
			Y: fixed.I(y+int(style.PaddingY)) + ascent,
		},
	}
	d.DrawString(text)
	return nil
}
