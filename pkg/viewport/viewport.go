package viewport

import (
	"github.com/menta2k/photocrop/pkg/types"
)

// View is a zoomable, pannable container showing the image being cropped
type View interface {
	ZoomScale() float64
	SetZoomScale(scale float64)
	ContentOffset() types.Point
	SetContentOffset(offset types.Point)
	// ImageFrame returns the image's frame at the current zoom
	ImageFrame() types.Rect
}

// UnscaledFrame reads the image frame of v at zoom 1.0. The current zoom and
// content offset are restored before returning, including when ImageFrame
// panics.
func UnscaledFrame(v View) types.Rect {
	zoom := v.ZoomScale()
	offset := v.ContentOffset()
	defer func() {
		v.SetZoomScale(zoom)
		v.SetContentOffset(offset)
	}()

	v.SetZoomScale(1.0)
	return v.ImageFrame()
}

// Config bounds the zoom range of a ScrollView
type Config struct {
	MinZoom float64
	MaxZoom float64
}

// DefaultConfig mirrors a typical photo editor: no zoom-out below fit, up to 3x in
func DefaultConfig() Config {
	return Config{MinZoom: 1.0, MaxZoom: 3.0}
}

// ScrollView is an in-memory View. The image is laid out at BaseFrame when
// the zoom is 1.0 and scales about the content origin as the zoom changes.
type ScrollView struct {
	config    Config
	baseFrame types.Rect
	zoom      float64
	offset    types.Point
}

// NewScrollView creates a ScrollView at zoom 1.0 with the image at baseFrame
func NewScrollView(baseFrame types.Rect, config Config) *ScrollView {
	if config.MinZoom <= 0 {
		config.MinZoom = DefaultConfig().MinZoom
	}
	if config.MaxZoom < config.MinZoom {
		config.MaxZoom = config.MinZoom
	}
	// The unscaled frame has to be reachable even when the configured range
	// excludes 1.0.
	if config.MinZoom > 1 {
		config.MinZoom = 1
	}
	if config.MaxZoom < 1 {
		config.MaxZoom = 1
	}

	return &ScrollView{
		config:    config,
		baseFrame: baseFrame,
		zoom:      1.0,
	}
}

// ZoomScale returns the current zoom
func (s *ScrollView) ZoomScale() float64 {
	return s.zoom
}

// SetZoomScale changes the zoom, clamped to the configured range. The content
// offset is rescaled so the same content point stays at the top-left corner.
func (s *ScrollView) SetZoomScale(scale float64) {
	scale = clamp(scale, s.config.MinZoom, s.config.MaxZoom)
	if scale == s.zoom {
		return
	}
	ratio := scale / s.zoom
	s.offset = types.Point{X: s.offset.X * ratio, Y: s.offset.Y * ratio}
	s.zoom = scale
}

// ContentOffset returns the current pan position
func (s *ScrollView) ContentOffset() types.Point {
	return s.offset
}

// SetContentOffset pans the view
func (s *ScrollView) SetContentOffset(offset types.Point) {
	s.offset = offset
}

// ImageFrame returns the base frame scaled by the current zoom
func (s *ScrollView) ImageFrame() types.Rect {
	return s.baseFrame.Scale(s.zoom)
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
