package detection

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/menta2k/image-annotator/pkg/client"
	"github.com/menta2k/image-annotator/pkg/types"
)

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt asks for every labelled object plus a few scene keywords
const DefaultPrompt = `You are an image annotator for English vocabulary learners.

Return JSON only:
{
  "objects": [
    {
      "label": "string",
      "confidence": 0.0,
      "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0},
      "cefr_level": "A1"
    }
  ],
  "keywords": ["word1", "word2", "word3"],
  "description": "short neutral sentence (≤ 20 words)",
  "scene": "string"
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels). x,y is the top-left corner.
- One entry per clearly visible object. Labels are single common English nouns.
- cefr_level is one of A1, A2, B1, B2, C1, C2.
- Keywords are 3 to 5 words for things that have no box: actions, mood, weather, setting.
- Keywords: lowercase, concise, no punctuation or duplicates.
- If nothing is recognizable, return {"objects":[],"keywords":[],"description":"","scene":""}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// Options controls how model answers are filtered
type Options struct {
	// MinConfidence drops detections scoring below it
	MinConfidence float64 `json:"min_confidence" toml:"min_confidence"`
	// MaxKeywords caps the number of labels, detections first
	MaxKeywords int `json:"max_keywords" toml:"max_keywords"`
	// AllowedLevels keeps only detections of these CEFR levels when set.
	// Detections without a level are always kept.
	AllowedLevels []string `json:"allowed_levels,omitempty" toml:"allowed_levels"`
}

// DefaultOptions returns the vocabulary display defaults
func DefaultOptions() Options {
	return Options{
		MinConfidence: 0.5,
		MaxKeywords:   6,
	}
}

// Detector turns vision model answers into analyses
type Detector struct {
	client  client.VisionClient
	options Options
}

// NewDetector creates a new detector with a vision client
func NewDetector(client client.VisionClient) *Detector {
	return NewDetectorWithOptions(client, DefaultOptions())
}

// NewDetectorWithOptions creates a detector with custom filtering
func NewDetectorWithOptions(client client.VisionClient, options Options) *Detector {
	return &Detector{client: client, options: options}
}

// Detect analyzes an image. The image size is needed only when the model
// answers in pixels; pass zero when unknown.
func (d *Detector) Detect(ctx context.Context, model, imageB64 string, size types.Size) (types.Analysis, error) {
	return d.DetectWithPrompt(ctx, model, imageB64, DefaultPrompt, size)
}

// DetectWithPrompt analyzes an image with a custom prompt
func (d *Detector) DetectWithPrompt(ctx context.Context, model, imageB64, prompt string, size types.Size) (types.Analysis, error) {
	raw, err := d.client.AnalyzeImage(ctx, model, prompt, imageB64)
	if err != nil {
		return types.Analysis{}, fmt.Errorf("vision analysis failed: %w", err)
	}
	return Normalize(Convert(raw, size), d.options), nil
}

// TestVision tests if the model can actually see the image with a simple prompt
func (d *Detector) TestVision(ctx context.Context, model, imageB64 string) (string, error) {
	return d.client.SimpleQuery(ctx, model, SimpleTestPrompt, imageB64)
}

// Convert maps a raw model answer to percent-of-image detections
func Convert(raw *types.RawAnalysis, size types.Size) types.Analysis {
	if raw == nil {
		return types.Analysis{}
	}
	out := types.Analysis{
		Keywords:    raw.Keywords,
		Description: raw.Description,
		Scene:       raw.Scene,
	}
	for _, o := range raw.Objects {
		out.Detections = append(out.Detections, types.Detection{
			Location: normalizeBox(o.Box, size),
			Keyword:  o.Label,
			Score:    o.Confidence,
			Level:    strings.ToUpper(strings.TrimSpace(o.Level)),
		})
	}
	return out
}

// Normalize filters an analysis for display. Locations are clipped to the
// image, weak or disallowed detections are dropped, keywords are lower-cased
// and deduplicated, free keywords repeating a detection are dropped and the
// total is capped at MaxKeywords with detections taking precedence.
func Normalize(a types.Analysis, opts Options) types.Analysis {
	allowed := make(map[string]bool, len(opts.AllowedLevels))
	for _, l := range opts.AllowedLevels {
		allowed[strings.ToUpper(l)] = true
	}

	seen := map[string]struct{}{}
	limit := opts.MaxKeywords
	if limit <= 0 {
		limit = math.MaxInt
	}

	out := types.Analysis{Description: a.Description, Scene: a.Scene}
	for _, d := range a.Detections {
		kw := normalizeKeyword(d.Keyword)
		if kw == "" || d.Score < opts.MinConfidence {
			continue
		}
		if len(allowed) > 0 && d.Level != "" && !allowed[strings.ToUpper(d.Level)] {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		if len(out.Detections) == limit {
			break
		}
		seen[kw] = struct{}{}
		d.Keyword = kw
		d.Location = clipRect(d.Location)
		out.Detections = append(out.Detections, d)
	}

	for _, k := range a.Keywords {
		if len(out.Detections)+len(out.Keywords) >= limit {
			break
		}
		kw := normalizeKeyword(k)
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		out.Keywords = append(out.Keywords, kw)
	}
	return out
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeBox converts a model box into percent of the image. Boxes with
// any coordinate above 1 are treated as pixels when the image size is known
// and as percent otherwise.
func normalizeBox(b types.Box, size types.Size) types.Rect {
	scaleX, scaleY := 100.0, 100.0
	if b.X > 1 || b.Y > 1 || b.W > 1 || b.H > 1 {
		if size.IsZero() {
			scaleX, scaleY = 1, 1
		} else {
			scaleX, scaleY = 100/size.Width, 100/size.Height
		}
	}
	return clipRect(types.Rect{
		Left:   b.X * scaleX,
		Top:    b.Y * scaleY,
		Width:  b.W * scaleX,
		Height: b.H * scaleY,
	})
}

// clipRect keeps a percent rectangle inside the image
func clipRect(r types.Rect) types.Rect {
	left := clamp(r.Left, 0, 100)
	top := clamp(r.Top, 0, 100)
	return types.Rect{
		Left:   left,
		Top:    top,
		Width:  clamp(r.Right(), left, 100) - left,
		Height: clamp(r.Bottom(), top, 100) - top,
	}
}

func normalizeKeyword(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	return strings.Trim(k, ".,;:!?\"'")
}
