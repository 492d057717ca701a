package geometry

import (
	"fmt"
	"math"
	"strings"

	"github.com/menta2k/image-annotator/pkg/types"
)

// Fit describes how the image is scaled into its container
type Fit int

const (
	FitContain   Fit = iota // preserve aspect ratio, letterbox inside the container
	FitCover                // preserve aspect ratio, fill the container and overflow
	FitFill                 // stretch to the container
	FitScaleDown            // like contain, but never upscale
)

func (f Fit) String() string {
	switch f {
	case FitContain:
		return "contain"
	case FitCover:
		return "cover"
	case FitFill:
		return "fill"
	case FitScaleDown:
		return "scale-down"
	default:
		return "unknown"
	}
}

// ParseFit converts a CSS object-fit style name into a Fit
func ParseFit(s string) (Fit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "contain":
		return FitContain, nil
	case "cover":
		return FitCover, nil
	case "fill":
		return FitFill, nil
	case "scale-down", "scaledown":
		return FitScaleDown, nil
	default:
		return FitContain, fmt.Errorf("unknown fit mode: %s", s)
	}
}

// Compute returns the rendered rectangle of an image with the given natural
// size inside a container. The image is centered on both axes. The second
// result is false while either size is unknown.
func Compute(container, natural types.Size, fit Fit) (types.Frame, bool) {
	if container.IsZero() || natural.IsZero() {
		return types.Frame{}, false
	}

	scaleX := container.Width / natural.Width
	scaleY := container.Height / natural.Height

	var w, h float64
	switch fit {
	case FitFill:
		w, h = container.Width, container.Height
	case FitCover:
		s := math.Max(scaleX, scaleY)
		w, h = natural.Width*s, natural.Height*s
	case FitScaleDown:
		s := math.Min(1, math.Min(scaleX, scaleY))
		w, h = natural.Width*s, natural.Height*s
	default:
		s := math.Min(scaleX, scaleY)
		w, h = natural.Width*s, natural.Height*s
	}

	return types.Frame{
		Width:  w,
		Height: h,
		Left:   (container.Width - w) / 2,
		Top:    (container.Height - h) / 2,
	}, true
}

// sameFrame compares two frames within a sub-pixel tolerance
func sameFrame(a, b types.Frame) bool {
	const eps = 0.01
	return math.Abs(a.Width-b.Width) < eps &&
		math.Abs(a.Height-b.Height) < eps &&
		math.Abs(a.Top-b.Top) < eps &&
		math.Abs(a.Left-b.Left) < eps
}
