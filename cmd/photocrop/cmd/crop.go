package cmd

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/menta2k/photocrop/internal/utils"
	"github.com/menta2k/photocrop/pkg/editor"
	"github.com/menta2k/photocrop/pkg/processing"
	"github.com/menta2k/photocrop/pkg/types"
	"github.com/menta2k/photocrop/pkg/viewport"
	"github.com/spf13/cobra"
)

var (
	cropInput     string
	cropOutput    string
	cropFrame     string
	cropSelection string
	cropZoom      float64
	cropOffset    string
	cropExt       string
	cropQuality   int
	cropLossless  bool
	cropDebug     bool
)

var cropCmd = &cobra.Command{
	Use:   "crop",
	Short: "Crop an image using a view-space selection",
	Long: `Load an image, place it in a simulated view at --frame (zoom 1 layout,
default: the image at its own size), apply --zoom and --offset to that
view, and crop the region under --selection.

The crop is computed from the unscaled frame, so the result does not depend
on the zoom or scroll state at the moment of finishing.`,
	Args: cobra.NoArgs,
	RunE: runCrop,
}

func init() {
	rootCmd.AddCommand(cropCmd)

	cropCmd.Flags().StringVarP(&cropInput, "input", "i", "", "input image path or URL (jpg/png/webp)")
	cropCmd.Flags().StringVarP(&cropOutput, "output", "o", "", "output file (default derived from input and export config)")
	cropCmd.Flags().StringVar(&cropFrame, "frame", "", "unscaled image frame x,y,w,h")
	cropCmd.Flags().StringVar(&cropSelection, "selection", "", "crop selection x,y,w,h")
	cropCmd.Flags().Float64Var(&cropZoom, "zoom", 1.0, "view zoom at the time of cropping")
	cropCmd.Flags().StringVar(&cropOffset, "offset", "0,0", "view content offset x,y at the time of cropping")
	cropCmd.Flags().StringVar(&cropExt, "ext", "", "output format: jpg|png|webp (overrides config)")
	cropCmd.Flags().IntVar(&cropQuality, "quality", 0, "JPEG/WebP quality 1-100 (overrides config)")
	cropCmd.Flags().BoolVar(&cropLossless, "lossless", false, "WebP lossless mode (overrides config)")
	cropCmd.Flags().BoolVar(&cropDebug, "debug", false, "also write a debug overlay of the crop rect")
	cropCmd.MarkFlagRequired("input")
	cropCmd.MarkFlagRequired("selection")
}

func runCrop(cmd *cobra.Command, args []string) error {
	selection, err := utils.ParseRect(cropSelection)
	if err != nil {
		return err
	}
	offset, err := utils.ParsePoint(cropOffset)
	if err != nil {
		return err
	}

	processor := processing.NewProcessor()
	img, err := processor.LoadImageSmart(cropInput)
	if err != nil {
		return err
	}

	frame := processing.SourceSize(img).Rect()
	if cropFrame != "" {
		if frame, err = utils.ParseRect(cropFrame); err != nil {
			return err
		}
	}

	opts := exportOptions(cmd)
	if cropOutput != "" && !cmd.Flags().Changed("ext") {
		if ext := utils.GetFileExtension(cropOutput); ext != "" {
			opts.Format = ext
		}
	}
	job := cropJob{
		Input:     cropInput,
		Output:    cropOutput,
		Frame:     frame,
		Selection: selection,
		Zoom:      cropZoom,
		Offset:    offset,
		Export:    opts,
		Debug:     cropDebug || cfg.Debug.Overlay,
	}
	result, err := job.run(processor, img)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Cropped %s: %d,%d,%d,%d (edited=%v)\n",
		job.Output, result.PixelRect.Min.X, result.PixelRect.Min.Y,
		result.PixelRect.Dx(), result.PixelRect.Dy(), result.Edited)
	return nil
}

// exportOptions merges explicitly set flags over the export config
func exportOptions(cmd *cobra.Command) types.ExportOptions {
	opts := types.ExportOptions{
		Format:   cfg.Export.Format,
		Quality:  cfg.Export.Quality,
		Lossless: cfg.Export.Lossless,
	}
	if cmd.Flags().Changed("ext") {
		opts.Format = cropExt
	}
	if cmd.Flags().Changed("quality") {
		opts.Quality = cropQuality
	}
	if cmd.Flags().Changed("lossless") {
		opts.Lossless = cropLossless
	}
	opts.Format = strings.ToLower(opts.Format)
	return opts
}

// cropJob is one non-interactive edit: a view laid out at Frame, left at
// Zoom/Offset, finished with Selection.
type cropJob struct {
	Input     string
	Output    string
	Frame     types.Rect
	Selection types.Rect
	Zoom      float64
	Offset    types.Point
	Export    types.ExportOptions
	Debug     bool
}

func (j *cropJob) run(processor *processing.Processor, img image.Image) (editor.Result, error) {
	if j.Output == "" {
		j.Output = utils.GenerateOutputFilename(j.Input, cfg.Export.OutputDir, cfg.Export.Prefix, cfg.Export.Suffix, j.Export.Format)
	}
	if err := utils.EnsureDir(filepath.Dir(j.Output)); err != nil {
		return editor.Result{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	view := viewport.NewScrollView(j.Frame, viewport.Config{
		MinZoom: cfg.Viewport.MinZoom,
		MaxZoom: cfg.Viewport.MaxZoom,
	})
	view.SetZoomScale(j.Zoom)
	view.SetContentOffset(j.Offset)
	debugf("view zoom=%.2f offset=%.1f,%.1f frame=%v", view.ZoomScale(), j.Offset.X, j.Offset.Y, view.ImageFrame())

	session := editor.NewSession(img, view, editor.FixedSelection(j.Selection), logDelegate{})
	result, err := session.Finish()
	if err != nil {
		return editor.Result{}, err
	}

	if err := processor.SaveImage(result.Image, j.Output, j.Export); err != nil {
		return editor.Result{}, fmt.Errorf("failed to save %s: %w", j.Output, err)
	}
	debugf("wrote %s", j.Output)

	if j.Debug {
		ext := strings.ToLower(cfg.Debug.Format)
		dbgPath := strings.TrimSuffix(j.Output, filepath.Ext(j.Output)) + "_debug." + ext
		overlay := processor.CreateDebugOverlay(img, result.SourceRect)
		if err := processor.SaveImage(overlay, dbgPath, types.ExportOptions{Format: ext, Quality: cfg.Debug.Quality}); err != nil {
			debugf("debug overlay save failed: %v", err)
		} else {
			debugf("wrote %s", dbgPath)
		}
	}

	return result, nil
}

// logDelegate reports session outcomes in verbose mode
type logDelegate struct{}

func (logDelegate) EditorDidCancel(s *editor.Session) {
	debugf("edit cancelled")
}

func (logDelegate) EditorDidFinish(s *editor.Session, result editor.Result) {
	debugf("source rect %.2f,%.2f,%.2f,%.2f -> pixels %v",
		result.SourceRect.X, result.SourceRect.Y, result.SourceRect.Width, result.SourceRect.Height, result.PixelRect)
}
