// Package render draws a laid-out annotation preview: the image fitted into
// its container, the detection boxes and the label plates.
package render

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/image-annotator/pkg/measure"
	"github.com/menta2k/image-annotator/pkg/types"
)

// Palette holds the preview colors
type Palette struct {
	Background color.NRGBA
	Box        color.NRGBA
	Plate      color.NRGBA
	Flipped    color.NRGBA
	Reading    color.NRGBA
	Border     color.NRGBA
	Text       color.NRGBA
}

// DefaultPalette returns the preview colors
func DefaultPalette() Palette {
	return Palette{
		Background: color.NRGBA{30, 30, 30, 255},
		Box:        color.NRGBA{0, 255, 0, 255},
		Plate:      color.NRGBA{255, 255, 255, 230},
		Flipped:    color.NRGBA{255, 204, 0, 240},
		Reading:    color.NRGBA{0, 170, 255, 240},
		Border:     color.NRGBA{0, 0, 0, 255},
		Text:       color.NRGBA{0, 0, 0, 255},
	}
}

// Scene is everything needed to draw one preview
type Scene struct {
	Image      image.Image
	Container  types.Size
	Frame      types.Frame
	Detections []types.Detection
	Labels     []types.Label
}

// Renderer draws previews with the same font the labels were measured with
type Renderer struct {
	fonts   *measure.FontMeasurer
	style   measure.Style
	palette Palette
}

// NewRenderer creates a renderer. fonts may be nil to draw plates without
// text.
func NewRenderer(fonts *measure.FontMeasurer, style measure.Style) *Renderer {
	return &Renderer{fonts: fonts, style: style, palette: DefaultPalette()}
}

// SetPalette replaces the preview colors
func (r *Renderer) SetPalette(p Palette) {
	r.palette = p
}

// Render draws the scene onto a new container-sized image
func (r *Renderer) Render(s Scene) *image.NRGBA {
	w := int(math.Round(s.Container.Width))
	h := int(math.Round(s.Container.Height))
	if w <= 0 || h <= 0 {
		return image.NewNRGBA(image.Rect(0, 0, 0, 0))
	}
	canvas := imaging.New(w, h, r.palette.Background)
	if s.Frame.IsZero() {
		return canvas
	}

	if s.Image != nil {
		fw := int(math.Round(s.Frame.Width))
		fh := int(math.Round(s.Frame.Height))
		scaled := imaging.Resize(s.Image, fw, fh, imaging.Lanczos)
		canvas = imaging.Paste(canvas, scaled, image.Pt(int(math.Round(s.Frame.Left)), int(math.Round(s.Frame.Top))))
	}

	stroke := int(math.Max(2, 0.004*math.Min(float64(w), float64(h))))
	for _, d := range s.Detections {
		drawBox(canvas, ToPixels(d.Location, s.Frame), r.palette.Box, stroke)
	}

	style := r.style.ForFrame(s.Frame)
	for _, l := range s.Labels {
		rect := ToPixels(l.Rect, s.Frame)
		fill := r.palette.Plate
		switch {
		case l.Reading:
			fill = r.palette.Reading
		case l.Flipped:
			fill = r.palette.Flipped
		}
		fillRect(canvas, rect, fill)
		drawBox(canvas, rect, r.palette.Border, 1)

		if r.fonts != nil {
			text := l.Shown
			if text == "" {
				text = l.Text
			}
			_ = r.fonts.Draw(canvas, text, style, rect.Min.X, rect.Min.Y, image.NewUniform(r.palette.Text))
		}
	}
	return canvas
}

// ToPixels converts a percent-of-image rectangle into container pixels
func ToPixels(rect types.Rect, frame types.Frame) image.Rectangle {
	x0 := frame.Left + rect.Left/100*frame.Width
	y0 := frame.Top + rect.Top/100*frame.Height
	x1 := frame.Left + rect.Right()/100*frame.Width
	y1 := frame.Top + rect.Bottom()/100*frame.Height
	r := image.Rect(int(math.Round(x0)), int(math.Round(y0)), int(math.Round(x1)), int(math.Round(y1)))
	if r.Dx() == 0 {
		r.Max.X++
	}
	if r.Dy() == 0 {
		r.Max.Y++
	}
	return r
}
