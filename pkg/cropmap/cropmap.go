// Package cropmap converts crop selections made on a zoomable image view into
// rectangles in the pixel space of the source image, and back.
//
// The view side is always described by the image view's unscaled frame: the
// frame it occupies at zoom 1.0, before any live zoom or pan is applied. That
// frame maps linearly onto the full source bitmap, so a selection expressed in
// the same view coordinates can be mapped with four divisions.
//
// MapCropToSource never clamps or rounds. Use Clamp or PixelRect on the result
// before touching pixels.
package cropmap

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/menta2k/photocrop/pkg/types"
)

var (
	// ErrInvalidFrame is returned when the reference frame has a zero,
	// negative or non-finite width or height.
	ErrInvalidFrame = errors.New("invalid frame")

	// ErrInvalidSize is returned when a source size has a non-positive dimension.
	ErrInvalidSize = errors.New("invalid source size")

	// ErrEmptyRegion is returned when nothing of a rect survives clamping.
	ErrEmptyRegion = errors.New("empty crop region")
)

// MapCropToSource maps cropSelection, given in the same view coordinates as
// unscaledImageFrame, into the pixel coordinates of a source image of
// sourceSize. The result is unrounded and may extend past the image bounds.
func MapCropToSource(sourceSize types.Size, cropSelection, unscaledImageFrame types.Rect) (types.Rect, error) {
	if err := checkFrame(unscaledImageFrame); err != nil {
		return types.Rect{}, err
	}

	w, h := float64(sourceSize.Width), float64(sourceSize.Height)
	frame := unscaledImageFrame

	return types.Rect{
		X:      (cropSelection.X - frame.X) / frame.Width * w,
		Y:      (cropSelection.Y - frame.Y) / frame.Height * h,
		Width:  w * cropSelection.Width / frame.Width,
		Height: h * cropSelection.Height / frame.Height,
	}, nil
}

// MapSourceToView is the inverse of MapCropToSource: it expresses a rect in
// source pixels as a selection inside unscaledImageFrame.
func MapSourceToView(sourceSize types.Size, sourceRect, unscaledImageFrame types.Rect) (types.Rect, error) {
	if err := checkFrame(unscaledImageFrame); err != nil {
		return types.Rect{}, err
	}
	if !sourceSize.Valid() {
		return types.Rect{}, fmt.Errorf("%w: %dx%d", ErrInvalidSize, sourceSize.Width, sourceSize.Height)
	}

	w, h := float64(sourceSize.Width), float64(sourceSize.Height)
	frame := unscaledImageFrame

	return types.Rect{
		X:      sourceRect.X/w*frame.Width + frame.X,
		Y:      sourceRect.Y/h*frame.Height + frame.Y,
		Width:  frame.Width * sourceRect.Width / w,
		Height: frame.Height * sourceRect.Height / h,
	}, nil
}

// Clamp intersects r with [0, size.Width] x [0, size.Height]. When the
// intersection is empty the result has zero width or height at the clamped
// origin.
func Clamp(r types.Rect, size types.Size) types.Rect {
	w, h := float64(size.Width), float64(size.Height)

	x0 := clamp(r.X, 0, w)
	y0 := clamp(r.Y, 0, h)
	x1 := clamp(r.MaxX(), 0, w)
	y1 := clamp(r.MaxY(), 0, h)
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}

	return types.Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// PixelRect rounds the edges of r to the nearest pixel and clips the result to
// the source bounds, producing the exact region to extract.
func PixelRect(r types.Rect, size types.Size) (image.Rectangle, error) {
	if !size.Valid() {
		return image.Rectangle{}, fmt.Errorf("%w: %dx%d", ErrInvalidSize, size.Width, size.Height)
	}
	if !finite(r.X, r.Y, r.Width, r.Height) || r.Width < 0 || r.Height < 0 {
		return image.Rectangle{}, fmt.Errorf("%w: %+v", ErrEmptyRegion, r)
	}

	// Clamp in float space first so huge values cannot overflow int.
	c := Clamp(r, size)
	rect := image.Rect(
		int(math.Round(c.X)),
		int(math.Round(c.Y)),
		int(math.Round(c.MaxX())),
		int(math.Round(c.MaxY())),
	).Intersect(image.Rect(0, 0, size.Width, size.Height))

	if rect.Empty() {
		return image.Rectangle{}, fmt.Errorf("%w: %+v", ErrEmptyRegion, r)
	}
	return rect, nil
}

// SelectionFromBox places a normalized [0,1] box inside frame
func SelectionFromBox(box types.Box, frame types.Rect) types.Rect {
	return types.Rect{
		X:      frame.X + box.X*frame.Width,
		Y:      frame.Y + box.Y*frame.Height,
		Width:  box.W * frame.Width,
		Height: box.H * frame.Height,
	}
}

// BoxFromRect normalizes a source-pixel rect against size. An invalid size
// yields the zero box.
func BoxFromRect(r types.Rect, size types.Size) types.Box {
	if !size.Valid() {
		return types.Box{}
	}
	w, h := float64(size.Width), float64(size.Height)
	return types.Box{X: r.X / w, Y: r.Y / h, W: r.Width / w, H: r.Height / h}
}

// checkFrame only looks at the frame's dimensions; the origin is taken as is
// like every other coordinate
func checkFrame(frame types.Rect) error {
	if !finite(frame.Width, frame.Height) || !(frame.Width > 0) || !(frame.Height > 0) {
		return fmt.Errorf("%w: reference frame is %gx%g at (%g,%g)",
			ErrInvalidFrame, frame.Width, frame.Height, frame.X, frame.Y)
	}
	return nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
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
