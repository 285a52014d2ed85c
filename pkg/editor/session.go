// Package editor drives the "finish editing" step of a photo editor screen:
// it reads the user's crop selection and the image view's unscaled frame,
// maps the selection into source pixels and extracts the cropped bitmap.
package editor

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/menta2k/photocrop/pkg/cropmap"
	"github.com/menta2k/photocrop/pkg/processing"
	"github.com/menta2k/photocrop/pkg/types"
	"github.com/menta2k/photocrop/pkg/viewport"
)

var (
	// ErrNoSource is returned when a session has no decodable source image
	ErrNoSource = errors.New("editor: no source image")

	// ErrNoView is returned when a session lacks an image view or a
	// selection provider
	ErrNoView = errors.New("editor: no image view or selection")

	// ErrFinished is returned when a session is used after Finish or Cancel
	ErrFinished = errors.New("editor: session already finished")
)

// SelectionProvider supplies the current crop selection in the same view
// coordinates as the image view's frame
type SelectionProvider interface {
	CropSelection() types.Rect
}

// FixedSelection is a SelectionProvider that always returns the same rect
type FixedSelection types.Rect

// CropSelection implements SelectionProvider
func (f FixedSelection) CropSelection() types.Rect {
	return types.Rect(f)
}

// Delegate is told how a session ended
type Delegate interface {
	EditorDidCancel(s *Session)
	EditorDidFinish(s *Session, result Result)
}

// Result is the outcome of a finished session
type Result struct {
	Image image.Image
	// SourceRect is the unrounded, unclamped mapping of the selection
	SourceRect types.Rect
	// PixelRect is the region actually extracted, relative to the source's
	// top-left corner
	PixelRect image.Rectangle
	// Edited is true when the output differs from the source
	Edited bool
}

// Session is one editing pass over a source image
type Session struct {
	source    image.Image
	view      viewport.View
	selection SelectionProvider
	delegate  Delegate
	processor *processing.Processor

	mu     sync.Mutex
	edited bool
	done   bool
}

// NewSession creates a session. delegate may be nil. Finish fails with
// ErrNoView while view or selection is nil.
func NewSession(source image.Image, view viewport.View, selection SelectionProvider, delegate Delegate) *Session {
	return &Session{
		source:    source,
		view:      view,
		selection: selection,
		delegate:  delegate,
		processor: processing.NewProcessor(),
	}
}

// Source returns the image being edited
func (s *Session) Source() image.Image {
	return s.source
}

// MarkEdited records a change that does not show up in the crop rect, such
// as a pen stroke or mosaic applied by the host
func (s *Session) MarkEdited() {
	s.mu.Lock()
	s.edited = true
	s.mu.Unlock()
}

// Finish maps the current selection into source pixels, extracts the region
// and hands the result to the delegate. On error nothing is delivered and
// the session stays open so the caller can retry with a valid view state.
func (s *Session) Finish() (Result, error) {
	result, err := s.finish()
	if err != nil {
		return Result{}, err
	}
	if s.delegate != nil {
		s.delegate.EditorDidFinish(s, result)
	}
	return result, nil
}

func (s *Session) finish() (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return Result{}, ErrFinished
	}
	if s.source == nil {
		return Result{}, ErrNoSource
	}

	size := processing.SourceSize(s.source)
	if !size.Valid() {
		return Result{}, fmt.Errorf("%w: empty bitmap", ErrNoSource)
	}
	if s.view == nil || s.selection == nil {
		return Result{}, ErrNoView
	}

	frame := viewport.UnscaledFrame(s.view)
	sourceRect, err := cropmap.MapCropToSource(size, s.selection.CropSelection(), frame)
	if err != nil {
		return Result{}, fmt.Errorf("cannot compute crop: %w", err)
	}

	cropped, pixelRect, err := s.processor.ExtractRegion(s.source, sourceRect)
	if err != nil {
		return Result{}, fmt.Errorf("cannot extract crop: %w", err)
	}

	s.done = true
	return Result{
		Image:      cropped,
		SourceRect: sourceRect,
		PixelRect:  pixelRect,
		Edited:     s.edited || !pixelRect.Eq(image.Rect(0, 0, size.Width, size.Height)),
	}, nil
}

// Cancel ends the session without producing an image
func (s *Session) Cancel() error {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return ErrFinished
	}
	s.done = true
	s.mu.Unlock()

	if s.delegate != nil {
		s.delegate.EditorDidCancel(s)
	}
	return nil
}
