// Package vision finds salient regions of an image without a model server.
// It backs the "local" suggestion backend.
package vision

import (
	"errors"
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"
	"github.com/menta2k/photocrop/pkg/cropmap"
	"github.com/menta2k/photocrop/pkg/detection"
	"github.com/menta2k/photocrop/pkg/types"
)

// ErrEmptyImage is returned for images without pixels
var ErrEmptyImage = errors.New("vision: image has no pixels")

// SalientLabel is the subject label of a locally detected region
const SalientLabel = "salient region"

// Config holds parameters for saliency detection
type Config struct {
	EdgeThreshold   float64 // minimum mean saliency for a window to count
	ContrastWeight  float64 // weight of the local edge strength
	ColorWeight     float64 // weight of the pixel brightness
	MinSubjectRatio float64 // minimum window area as a fraction of the image
	MaxDimension    int     // images are downscaled to fit this before analysis
	MaxRegions      int
	MergeRegions    int // number of top regions merged into the subject box
}

// DefaultConfig returns the settings used by New
func DefaultConfig() Config {
	return Config{
		EdgeThreshold:   0.01,
		ContrastWeight:  0.3,
		ColorWeight:     0.2,
		MinSubjectRatio: 0.05,
		MaxDimension:    256,
		MaxRegions:      10,
		MergeRegions:    3,
	}
}

// Region is a scored area of interest in normalized image coordinates
type Region struct {
	Box   types.Box
	Score float64
}

// Center returns the normalized center of the region
func (r Region) Center() (float64, float64) {
	return r.Box.X + r.Box.W/2, r.Box.Y + r.Box.H/2
}

// Area returns the normalized area of the region
func (r Region) Area() float64 {
	return r.Box.W * r.Box.H
}

// SubjectDetector locates salient regions from edge strength and brightness
type SubjectDetector struct {
	config Config
}

// New creates a detector with DefaultConfig
func New() *SubjectDetector {
	return &SubjectDetector{config: DefaultConfig()}
}

// NewWithConfig creates a detector with custom settings. Zero limits fall
// back to their defaults.
func NewWithConfig(config Config) *SubjectDetector {
	def := DefaultConfig()
	if config.MaxDimension <= 0 {
		config.MaxDimension = def.MaxDimension
	}
	if config.MaxRegions <= 0 {
		config.MaxRegions = def.MaxRegions
	}
	if config.MergeRegions <= 0 {
		config.MergeRegions = def.MergeRegions
	}
	return &SubjectDetector{config: config}
}

// window is a region in pixels of the analyzed (possibly downscaled) image
type window struct {
	x, y, w, h int
	score      float64
}

func (w window) area() int {
	return w.w * w.h
}

// DetectSubjects returns the highest scoring regions, best first
func (d *SubjectDetector) DetectSubjects(img image.Image) ([]Region, error) {
	windows, width, height, err := d.detect(img)
	if err != nil {
		return nil, err
	}

	regions := make([]Region, len(windows))
	for i, w := range windows {
		regions[i] = Region{Box: toBox(w, width, height), Score: w.score}
	}
	return regions, nil
}

// SubjectBox merges the top regions into one box. ok is false when nothing
// in the image stands out.
func (d *SubjectDetector) SubjectBox(img image.Image) (box types.Box, score float64, ok bool, err error) {
	windows, width, height, err := d.detect(img)
	if err != nil || len(windows) == 0 {
		return types.Box{X: 0, Y: 0, W: 1, H: 1}, 0, false, err
	}

	n := d.config.MergeRegions
	if n > len(windows) {
		n = len(windows)
	}
	merged := image.Rect(windows[0].x, windows[0].y, windows[0].x+windows[0].w, windows[0].y+windows[0].h)
	for _, w := range windows[1:n] {
		merged = merged.Union(image.Rect(w.x, w.y, w.x+w.w, w.y+w.h))
	}

	box = toBox(window{x: merged.Min.X, y: merged.Min.Y, w: merged.Dx(), h: merged.Dy()}, width, height)
	return box, windows[0].score, true, nil
}

// FindBestCropRegion finds the crop with the given width/height ratio that
// covers the most salient regions. A ratio <= 0 keeps the image's own ratio.
func (d *SubjectDetector) FindBestCropRegion(img image.Image, targetAspectRatio float64) (Region, error) {
	subjects, width, height, err := d.detect(img)
	if err != nil {
		return Region{}, err
	}

	currentRatio := float64(width) / float64(height)
	if targetAspectRatio <= 0 || math.IsNaN(targetAspectRatio) || math.IsInf(targetAspectRatio, 0) {
		targetAspectRatio = currentRatio
	}

	cropWidth, cropHeight := width, height
	if targetAspectRatio > currentRatio {
		cropHeight = int(float64(width) / targetAspectRatio)
	} else {
		cropWidth = int(float64(height) * targetAspectRatio)
	}
	cropWidth = max(cropWidth, 1)
	cropHeight = max(cropHeight, 1)

	best := d.findOptimalCropPosition(subjects, cropWidth, cropHeight, width, height)
	return Region{Box: toBox(best, width, height), Score: best.score}, nil
}

// SuggestSelection proposes an initial crop selection inside frame from the
// merged salient regions, grown by padding like the model backends. A
// positive aspect ratio picks the best crop of that shape instead.
func (d *SubjectDetector) SuggestSelection(img image.Image, frame types.Rect, padding, aspect float64) (types.Rect, *types.AnalysisResult, error) {
	result := &types.AnalysisResult{Tags: []string{"saliency"}}

	var box types.Box
	if aspect > 0 {
		region, err := d.FindBestCropRegion(img, aspect)
		if err != nil {
			return types.Rect{}, nil, err
		}
		box = region.Box
		result.Primary = primary(SalientLabel, region.Score, box)
		result.Description = "best salient crop"
	} else {
		subject, score, ok, err := d.SubjectBox(img)
		if err != nil {
			return types.Rect{}, nil, err
		}
		if !ok {
			box = types.Box{X: 0, Y: 0, W: 1, H: 1}
			result.Primary = primary("none", 0, box)
			result.Description = "no distinct subject"
		} else {
			box = detection.PadBox(subject, padding)
			result.Primary = primary(SalientLabel, score, subject)
			result.Description = "most salient area"
		}
	}

	return cropmap.SelectionFromBox(box, frame), result, nil
}

func primary(label string, score float64, box types.Box) types.Primary {
	return types.Primary{
		Label:      label,
		Confidence: math.Min(1, score),
		Box:        box,
		Cx:         box.X + box.W/2,
		Cy:         box.Y + box.H/2,
	}
}

// detect downscales img, scores sliding windows over its saliency map and
// returns the best windows together with the analyzed size
func (d *SubjectDetector) detect(img image.Image) ([]window, int, int, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, 0, 0, ErrEmptyImage
	}

	small := imaging.Fit(img, d.config.MaxDimension, d.config.MaxDimension, imaging.Box)
	width, height := small.Bounds().Dx(), small.Bounds().Dy()

	sat := d.saliencyTable(d.calculateSaliencyMap(small), width, height)
	windows := d.findImportantRegions(sat, width, height)
	windows = d.filterAndScoreRegions(windows, width, height)
	if len(windows) > d.config.MaxRegions {
		windows = windows[:d.config.MaxRegions]
	}
	return windows, width, height, nil
}

// calculateSaliencyMap combines the mean color difference to the 8
// neighbours with the pixel brightness. Border pixels stay 0.
func (d *SubjectDetector) calculateSaliencyMap(img *image.NRGBA) []float64 {
	width, height := img.Bounds().Dx(), img.Bounds().Dy()
	saliency := make([]float64, width*height)

	rgb := func(x, y int) (float64, float64, float64) {
		i := y*img.Stride + x*4
		return float64(img.Pix[i]), float64(img.Pix[i+1]), float64(img.Pix[i+2])
	}

	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			r1, g1, b1 := rgb(x, y)

			var edge float64
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					r2, g2, b2 := rgb(x+dx, y+dy)
					dr, dg, db := r1-r2, g1-g2, b1-b2
					edge += math.Sqrt(dr*dr + dg*dg + db*db)
				}
			}
			edge /= 8 * 255

			brightness := (r1 + g1 + b1) / (3 * 255)
			saliency[y*width+x] = d.config.ContrastWeight*edge + d.config.ColorWeight*brightness
		}
	}
	return saliency
}

// saliencyTable builds a summed-area table so window means cost O(1)
func (d *SubjectDetector) saliencyTable(saliency []float64, width, height int) []float64 {
	stride := width + 1
	sat := make([]float64, stride*(height+1))
	for y := 0; y < height; y++ {
		var row float64
		for x := 0; x < width; x++ {
			row += saliency[y*width+x]
			sat[(y+1)*stride+x+1] = sat[y*stride+x+1] + row
		}
	}
	return sat
}

func (d *SubjectDetector) findImportantRegions(sat []float64, width, height int) []window {
	var windows []window
	stride := width + 1

	for _, size := range []int{width / 20, width / 16, width / 12, width / 8, width / 4} {
		if size < 10 || size > height {
			continue
		}
		step := max(size/8, 1)

		for y := 0; y <= height-size; y += step {
			for x := 0; x <= width-size; x += step {
				sum := sat[(y+size)*stride+x+size] - sat[y*stride+x+size] - sat[(y+size)*stride+x] + sat[y*stride+x]
				score := sum / float64(size*size)
				if score > d.config.EdgeThreshold {
					windows = append(windows, window{x: x, y: y, w: size, h: size, score: score})
				}
			}
		}
	}
	return windows
}

func (d *SubjectDetector) filterAndScoreRegions(windows []window, width, height int) []window {
	minArea := int(float64(width*height) * d.config.MinSubjectRatio)

	filtered := windows[:0]
	for _, w := range windows {
		if w.area() >= minArea {
			filtered = append(filtered, w)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].score > filtered[j].score
	})
	return filtered
}

func (d *SubjectDetector) findOptimalCropPosition(subjects []window, cropWidth, cropHeight, width, height int) window {
	best := window{
		x: (width - cropWidth) / 2,
		y: (height - cropHeight) / 2,
		w: cropWidth,
		h: cropHeight,
	}

	step := max(max(cropWidth/20, cropHeight/20), 10)
	for y := 0; y <= height-cropHeight; y += step {
		for x := 0; x <= width-cropWidth; x += step {
			if score := scoreCropPosition(subjects, x, y, cropWidth, cropHeight); score > best.score {
				best = window{x: x, y: y, w: cropWidth, h: cropHeight, score: score}
			}
		}
	}
	return best
}

// scoreCropPosition sums the subject scores weighted by how much of each
// subject the crop covers
func scoreCropPosition(subjects []window, cropX, cropY, cropWidth, cropHeight int) float64 {
	crop := image.Rect(cropX, cropY, cropX+cropWidth, cropY+cropHeight)

	var score float64
	for _, s := range subjects {
		overlap := crop.Intersect(image.Rect(s.x, s.y, s.x+s.w, s.y+s.h))
		if overlap.Empty() {
			continue
		}
		score += float64(overlap.Dx()*overlap.Dy()) / float64(s.area()) * s.score
	}
	return score
}

func toBox(w window, width, height int) types.Box {
	fw, fh := float64(width), float64(height)
	return types.Box{X: float64(w.x) / fw, Y: float64(w.y) / fh, W: float64(w.w) / fw, H: float64(w.h) / fh}
}
