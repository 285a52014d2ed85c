// Package photocrop maps crop selections drawn over a displayed image back to
// the pixels of the full resolution source, and extracts those pixels.
//
// An editor shows the source letterboxed inside a view, usually scaled down,
// and lets the user zoom and scroll. The selection lives in view coordinates.
// MapCropToSource converts it using the frame the image occupies at zoom 1,
// so the result does not depend on the zoom or scroll state.
//
// Basic usage:
//
//	package main
//
//	import (
//		"log"
//
//		"github.com/menta2k/photocrop"
//		"github.com/menta2k/photocrop/pkg/types"
//	)
//
//	func main() {
//		pc := photocrop.New()
//
//		img, err := pc.LoadImage("photo.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		// The 4000x3000 photo is drawn at 400x300, 100pt from the top.
//		frame := types.Rect{X: 0, Y: 100, Width: 400, Height: 300}
//		selection := types.Rect{X: 100, Y: 150, Width: 200, Height: 150}
//
//		cropped, rect, err := pc.CropImage(img, selection, frame)
//		if err != nil {
//			log.Fatal(err)
//		}
//		log.Printf("source rect %+v", rect)
//
//		if err := pc.SaveImage(cropped, "photo_cropped.jpg", types.ExportOptions{Format: "jpg", Quality: 90}); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The package consists of these components:
//
// 1. Cropmap (pkg/cropmap): the view-to-source mapping and its helpers
// 2. Viewport (pkg/viewport): zoom/scroll state and the unscaled frame
// 3. Editor (pkg/editor): a crop session that finishes into a source crop
// 4. Processing (pkg/processing): image loading, extraction and export
// 5. Detection (pkg/detection): vision-model crop suggestions
package photocrop

import (
	"fmt"
	"image"

	"github.com/menta2k/photocrop/pkg/cropmap"
	"github.com/menta2k/photocrop/pkg/processing"
	"github.com/menta2k/photocrop/pkg/types"
)

// Version of the photocrop library
const Version = "1.0.0"

// ErrInvalidFrame is returned when the reference frame has no area
var ErrInvalidFrame = cropmap.ErrInvalidFrame

// PhotoCrop provides a high-level interface for mapping and cropping
type PhotoCrop struct {
	processor *processing.Processor
}

// New creates a new PhotoCrop
func New() *PhotoCrop {
	return &PhotoCrop{processor: processing.NewProcessor()}
}

// MapCropToSource maps cropSelection from view coordinates into the source
// pixel space of an image of sourceSize drawn at unscaledImageFrame
func MapCropToSource(sourceSize types.Size, cropSelection, unscaledImageFrame types.Rect) (types.Rect, error) {
	return cropmap.MapCropToSource(sourceSize, cropSelection, unscaledImageFrame)
}

// LoadImage loads an image from a file path or http(s) URL
func (pc *PhotoCrop) LoadImage(source string) (image.Image, error) {
	return pc.processor.LoadImageSmart(source)
}

// SaveImage saves an image to file
func (pc *PhotoCrop) SaveImage(img image.Image, path string, opts types.ExportOptions) error {
	return pc.processor.SaveImage(img, path, opts)
}

// CropImage maps selection through frame and extracts the region from img.
// The returned rect is the unrounded, unclamped source rect.
func (pc *PhotoCrop) CropImage(img image.Image, selection, frame types.Rect) (image.Image, types.Rect, error) {
	rect, err := cropmap.MapCropToSource(processing.SourceSize(img), selection, frame)
	if err != nil {
		return nil, types.Rect{}, err
	}

	cropped, _, err := pc.processor.ExtractRegion(img, rect)
	if err != nil {
		return nil, rect, fmt.Errorf("failed to extract crop: %w", err)
	}
	return cropped, rect, nil
}

// CropFile loads inputPath, crops it and writes the result to outputPath
func (pc *PhotoCrop) CropFile(inputPath, outputPath string, selection, frame types.Rect, opts types.ExportOptions) error {
	img, err := pc.LoadImage(inputPath)
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}

	cropped, _, err := pc.CropImage(img, selection, frame)
	if err != nil {
		return err
	}

	if err := pc.SaveImage(cropped, outputPath, opts); err != nil {
		return fmt.Errorf("failed to save %s: %w", outputPath, err)
	}
	return nil
}

// GetVersion returns the version of the library
func GetVersion() string {
	return Version
}
