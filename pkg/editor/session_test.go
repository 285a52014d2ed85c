package editor

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/menta2k/photocrop/pkg/cropmap"
	"github.com/menta2k/photocrop/pkg/types"
	"github.com/menta2k/photocrop/pkg/viewport"
)

type recordingDelegate struct {
	cancelled int
	finished  []Result
}

func (r *recordingDelegate) EditorDidCancel(s *Session) {
	r.cancelled++
}

func (r *recordingDelegate) EditorDidFinish(s *Session, result Result) {
	r.finished = append(r.finished, result)
}

// createTestImage draws a white square over the center of a dark background
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x >= width/4 && x < 3*width/4 && y >= height/4 && y < 3*height/4 {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.RGBA{32, 32, 32, 255})
			}
		}
	}
	return img
}

func TestFinishMapsSelection(t *testing.T) {
	src := createTestImage(1000, 500)
	frame := types.Rect{X: 0, Y: 0, Width: 200, Height: 100}
	view := viewport.NewScrollView(frame, viewport.DefaultConfig())
	view.SetZoomScale(2)
	view.SetContentOffset(types.Point{X: 80, Y: 40})

	delegate := &recordingDelegate{}
	s := NewSession(src, view, FixedSelection{X: 50, Y: 25, Width: 100, Height: 50}, delegate)

	result, err := s.Finish()
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	expected := types.Rect{X: 250, Y: 125, Width: 500, Height: 250}
	if !result.SourceRect.ApproxEqual(expected, 1e-9) {
		t.Errorf("Expected source rect %+v, got %+v", expected, result.SourceRect)
	}
	if !result.PixelRect.Eq(image.Rect(250, 125, 750, 375)) {
		t.Errorf("Unexpected pixel rect %v", result.PixelRect)
	}
	if b := result.Image.Bounds(); b.Dx() != 500 || b.Dy() != 250 {
		t.Errorf("Expected 500x250 output, got %dx%d", b.Dx(), b.Dy())
	}
	if !result.Edited {
		t.Error("Expected partial crop to count as edited")
	}

	if view.ZoomScale() != 2 || view.ContentOffset() != (types.Point{X: 80, Y: 40}) {
		t.Errorf("View state not restored: zoom %f offset %+v", view.ZoomScale(), view.ContentOffset())
	}
	if len(delegate.finished) != 1 {
		t.Fatalf("Expected one finish callback, got %d", len(delegate.finished))
	}
}

func TestFinishFullFrameNotEdited(t *testing.T) {
	src := createTestImage(1200, 1200)
	frame := types.Rect{X: 10, Y: 10, Width: 300, Height: 300}
	view := viewport.NewScrollView(frame, viewport.DefaultConfig())

	s := NewSession(src, view, FixedSelection(frame), nil)
	result, err := s.Finish()
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if result.Edited {
		t.Error("Expected full-frame crop to be unedited")
	}
	if !result.PixelRect.Eq(src.Bounds()) {
		t.Errorf("Expected full bounds, got %v", result.PixelRect)
	}
}

func TestFinishMarkEdited(t *testing.T) {
	src := createTestImage(100, 100)
	frame := types.Rect{Width: 100, Height: 100}
	s := NewSession(src, viewport.NewScrollView(frame, viewport.DefaultConfig()), FixedSelection(frame), nil)
	s.MarkEdited()

	result, err := s.Finish()
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if !result.Edited {
		t.Error("Expected MarkEdited to force Edited")
	}
}

func TestFinishClampsOutOfRangeSelection(t *testing.T) {
	src := createTestImage(400, 400)
	frame := types.Rect{X: 20, Y: 40, Width: 200, Height: 200}
	view := viewport.NewScrollView(frame, viewport.DefaultConfig())

	s := NewSession(src, view, FixedSelection{X: 10, Y: 30, Width: 100, Height: 100}, nil)
	result, err := s.Finish()
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if result.SourceRect.X >= 0 || result.SourceRect.Y >= 0 {
		t.Errorf("Expected unclamped negative origin, got %+v", result.SourceRect)
	}
	if !result.PixelRect.Eq(image.Rect(0, 0, 180, 180)) {
		t.Errorf("Expected clamped pixel rect (0,0)-(180,180), got %v", result.PixelRect)
	}
}

func TestFinishInvalidFrameAborts(t *testing.T) {
	src := createTestImage(100, 100)
	view := viewport.NewScrollView(types.Rect{Width: 0, Height: 100}, viewport.DefaultConfig())
	delegate := &recordingDelegate{}

	s := NewSession(src, view, FixedSelection{Width: 10, Height: 10}, delegate)
	_, err := s.Finish()
	if !errors.Is(err, cropmap.ErrInvalidFrame) {
		t.Fatalf("Expected ErrInvalidFrame, got %v", err)
	}
	if len(delegate.finished) != 0 {
		t.Error("Delegate must not receive a result after a failed finish")
	}

	// still open: cancel succeeds
	if err := s.Cancel(); err != nil {
		t.Errorf("Cancel after failed finish: %v", err)
	}
	if delegate.cancelled != 1 {
		t.Errorf("Expected one cancel callback, got %d", delegate.cancelled)
	}
}

func TestFinishSelectionOutsideImage(t *testing.T) {
	src := createTestImage(100, 100)
	frame := types.Rect{Width: 100, Height: 100}
	s := NewSession(src, viewport.NewScrollView(frame, viewport.DefaultConfig()), FixedSelection{X: 200, Y: 200, Width: 10, Height: 10}, nil)

	if _, err := s.Finish(); !errors.Is(err, cropmap.ErrEmptyRegion) {
		t.Errorf("Expected ErrEmptyRegion, got %v", err)
	}
}

func TestFinishNoSource(t *testing.T) {
	view := viewport.NewScrollView(types.Rect{Width: 10, Height: 10}, viewport.DefaultConfig())

	s := NewSession(nil, view, FixedSelection{Width: 10, Height: 10}, nil)
	if _, err := s.Finish(); !errors.Is(err, ErrNoSource) {
		t.Errorf("Expected ErrNoSource, got %v", err)
	}

	s = NewSession(image.NewRGBA(image.Rect(0, 0, 0, 0)), view, FixedSelection{Width: 10, Height: 10}, nil)
	if _, err := s.Finish(); !errors.Is(err, ErrNoSource) {
		t.Errorf("Expected ErrNoSource for empty bitmap, got %v", err)
	}
}

func TestFinishWithoutViewOrSelection(t *testing.T) {
	src := createTestImage(20, 20)
	frame := types.Rect{Width: 20, Height: 20}
	delegate := &recordingDelegate{}

	s := NewSession(src, nil, FixedSelection(frame), delegate)
	if _, err := s.Finish(); !errors.Is(err, ErrNoView) {
		t.Errorf("Expected ErrNoView for nil view, got %v", err)
	}

	s = NewSession(src, viewport.NewScrollView(frame, viewport.DefaultConfig()), nil, delegate)
	if _, err := s.Finish(); !errors.Is(err, ErrNoView) {
		t.Errorf("Expected ErrNoView for nil selection, got %v", err)
	}
	if len(delegate.finished) != 0 {
		t.Errorf("Expected no delivery, got %d", len(delegate.finished))
	}
}

func TestSessionEndsOnce(t *testing.T) {
	src := createTestImage(50, 50)
	frame := types.Rect{Width: 50, Height: 50}
	delegate := &recordingDelegate{}
	s := NewSession(src, viewport.NewScrollView(frame, viewport.DefaultConfig()), FixedSelection(frame), delegate)

	if _, err := s.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if _, err := s.Finish(); !errors.Is(err, ErrFinished) {
		t.Errorf("Expected ErrFinished on second Finish, got %v", err)
	}
	if err := s.Cancel(); !errors.Is(err, ErrFinished) {
		t.Errorf("Expected ErrFinished on Cancel after Finish, got %v", err)
	}
	if len(delegate.finished) != 1 || delegate.cancelled != 0 {
		t.Errorf("Unexpected callbacks: %d finished, %d cancelled", len(delegate.finished), delegate.cancelled)
	}
}
