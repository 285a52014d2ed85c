package detection

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/menta2k/photocrop/pkg/client"
	"github.com/menta2k/photocrop/pkg/cropmap"
	"github.com/menta2k/photocrop/pkg/types"
)

// SimpleTestPrompt checks whether the model can see images at all
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt asks for the dominant subject as a normalized box
const DefaultPrompt = `You are an image subject locator.

Return JSON only:
{
  "primary": {
    "label": "string",
    "confidence": 0.0,
    "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0},
    "cx": 0.0,
    "cy": 0.0
  },
  "description": "short neutral sentence (≤ 20 words)",
  "tags": ["tag1", "tag2", "tag3", "tag4", "tag5"]
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels). x,y is the top-left corner.
- The box should tightly include the visually dominant subject (prefer people/vehicles/animals; else the most central salient object).
- Description must be brief and factual. Do not guess real identities.
- Tags: lowercase, concise, no punctuation or duplicates.
- If no subject is found, return:
  {
    "primary":{"label":"none","confidence":0.0,"box":{"x":0.0,"y":0.0,"w":1.0,"h":1.0},"cx":0.5,"cy":0.5},
    "description":"no distinct subject",
    "tags":["generic","scene"]
  }
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// Detector locates the main subject of an image with a vision model
type Detector struct {
	client client.VisionClient
}

// NewDetector creates a new detector with a vision client
func NewDetector(client client.VisionClient) *Detector {
	return &Detector{client: client}
}

// DetectSubject runs DefaultPrompt and cleans up the reply
func (d *Detector) DetectSubject(ctx context.Context, model, imageB64 string) (*types.AnalysisResult, error) {
	return d.DetectSubjectWithPrompt(ctx, model, imageB64, DefaultPrompt)
}

// DetectSubjectWithPrompt analyzes an image with a custom prompt
func (d *Detector) DetectSubjectWithPrompt(ctx context.Context, model, imageB64, prompt string) (*types.AnalysisResult, error) {
	reply, err := d.client.Query(ctx, model, prompt, imageB64)
	if err != nil {
		return nil, fmt.Errorf("subject detection failed: %w", err)
	}

	result, ok := parseAnalysisResult(reply)
	result.Primary.Box = normalizeBox(result.Primary.Box)
	result.Tags = normalizeTags(result.Tags)
	if label := strings.TrimSpace(result.Primary.Label); !ok || label == "" || strings.EqualFold(label, "none") {
		markNone(result)
	}

	return result, nil
}

// TestVision asks the model for a free-text description of the image
func (d *Detector) TestVision(ctx context.Context, model, imageB64 string) (string, error) {
	return d.client.Query(ctx, model, SimpleTestPrompt, imageB64)
}

// SuggestSelection proposes an initial crop selection inside frame (the
// unscaled image frame in view coordinates). The detected subject box grows by
// padding times its size on every side. Without a usable subject the whole
// frame is suggested.
func (d *Detector) SuggestSelection(ctx context.Context, model, imageB64 string, frame types.Rect, padding float64) (types.Rect, *types.AnalysisResult, error) {
	result, err := d.DetectSubject(ctx, model, imageB64)
	if err != nil {
		return types.Rect{}, nil, err
	}

	box := types.Box{X: 0, Y: 0, W: 1, H: 1}
	if result.Primary.Label != "none" && result.Primary.Box.W > 0 && result.Primary.Box.H > 0 {
		box = PadBox(result.Primary.Box, padding)
	}

	return cropmap.SelectionFromBox(box, frame), result, nil
}

// PadBox grows b by padding*W horizontally and padding*H vertically on each
// side, then clips it to the unit square
func PadBox(b types.Box, padding float64) types.Box {
	if padding < 0 {
		padding = 0
	}
	x0 := clamp(b.X-b.W*padding, 0, 1)
	y0 := clamp(b.Y-b.H*padding, 0, 1)
	x1 := clamp(b.X+b.W*(1+padding), 0, 1)
	y1 := clamp(b.Y+b.H*(1+padding), 0, 1)
	return types.Box{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// markNone turns a reply without a usable subject, either undecodable or
// flagged by the model itself, into a "none" subject
func markNone(result *types.AnalysisResult) {
	result.Primary.Label = "none"
	result.Primary.Confidence = 0
}

// normalizeBox clips a box to the unit square. Some models answer in pixels
// or percent despite the prompt; those replies cannot be rescaled without the
// image size the model saw, so they collapse to the full image.
func normalizeBox(b types.Box) types.Box {
	if b.X > 1 || b.Y > 1 || b.W > 1 || b.H > 1 || anyNaN(b.X, b.Y, b.W, b.H) {
		return types.Box{X: 0, Y: 0, W: 1, H: 1}
	}

	x0 := clamp(b.X, 0, 1)
	y0 := clamp(b.Y, 0, 1)
	x1 := clamp(b.X+b.W, 0, 1)
	y1 := clamp(b.Y+b.H, 0, 1)
	return types.Box{X: x0, Y: y0, W: math.Max(0, x1-x0), H: math.Max(0, y1-y0)}
}

// normalizeTags lowercases, dedupes and caps tags at 5
func normalizeTags(tags []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 5)
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == 5 {
			break
		}
	}
	return out
}

func anyNaN(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
