package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"time"

	"github.com/menta2k/photocrop/internal/utils"
	"github.com/menta2k/photocrop/pkg/client"
	"github.com/menta2k/photocrop/pkg/cropmap"
	"github.com/menta2k/photocrop/pkg/detection"
	"github.com/menta2k/photocrop/pkg/llamacpp"
	"github.com/menta2k/photocrop/pkg/ollama"
	"github.com/menta2k/photocrop/pkg/processing"
	"github.com/menta2k/photocrop/pkg/types"
	"github.com/menta2k/photocrop/pkg/vision"
	"github.com/spf13/cobra"
)

var (
	suggestInput   string
	suggestOutput  string
	suggestFrame   string
	suggestBackend string
	suggestURL     string
	suggestModel   string
	suggestPadding float64
	suggestAspect  float64
	suggestCrop    bool
	suggestJSON    bool
	suggestDesc    bool
)

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Ask a vision model for an initial crop selection",
	Long: `Send a downsized copy of the image to a vision model (ollama or a
llama.cpp server), turn the detected subject into a crop selection inside
--frame and print it together with the source rect it maps to.

The local backend needs no server: it picks the most salient area from edge
strength and brightness. With --aspect it instead picks the best crop of
that width/height ratio.

With --crop the suggested selection is also applied and written out.
With --describe the model is only asked for a short description, which is
useful to check that a backend and model can see images at all.`,
	Args: cobra.NoArgs,
	RunE: runSuggest,
}

func init() {
	rootCmd.AddCommand(suggestCmd)

	suggestCmd.Flags().StringVarP(&suggestInput, "input", "i", "", "input image path or URL (jpg/png/webp)")
	suggestCmd.Flags().StringVarP(&suggestOutput, "output", "o", "", "output file for --crop")
	suggestCmd.Flags().StringVar(&suggestFrame, "frame", "", "unscaled image frame x,y,w,h (default: image at its own size)")
	suggestCmd.Flags().StringVar(&suggestBackend, "backend", "", "backend to use: ollama, llamacpp or local (overrides config)")
	suggestCmd.Flags().StringVar(&suggestURL, "url", "", "server URL (overrides config)")
	suggestCmd.Flags().StringVar(&suggestModel, "model", "", "model name (overrides config)")
	suggestCmd.Flags().Float64Var(&suggestPadding, "padding", 0.1, "grow the subject box by this fraction of its size on each side")
	suggestCmd.Flags().Float64Var(&suggestAspect, "aspect", 0, "local backend: crop to this width/height ratio (0 = fit the subject)")
	suggestCmd.Flags().BoolVar(&suggestCrop, "crop", false, "crop and save using the suggested selection")
	suggestCmd.Flags().BoolVar(&suggestJSON, "json", false, "print the result as JSON")
	suggestCmd.Flags().BoolVar(&suggestDesc, "describe", false, "only ask the model to describe the image")
	suggestCmd.MarkFlagRequired("input")
}

type suggestOutputJSON struct {
	Selection types.Rect            `json:"selection"`
	Rect      types.Rect            `json:"rect"`
	Box       types.Box             `json:"box"`
	Analysis  *types.AnalysisResult `json:"analysis"`
	Output    string                `json:"output,omitempty"`
}

func runSuggest(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("backend") {
		cfg.Vision.Backend = suggestBackend
	}
	if cmd.Flags().Changed("url") {
		cfg.Vision.URL = suggestURL
	}
	if cmd.Flags().Changed("model") {
		cfg.Vision.Model = suggestModel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	processor := processing.NewProcessor()
	img, err := processor.LoadImageSmart(suggestInput)
	if err != nil {
		return err
	}
	size := processing.SourceSize(img)

	frame := size.Rect()
	if suggestFrame != "" {
		if frame, err = utils.ParseRect(suggestFrame); err != nil {
			return err
		}
	}

	var selection types.Rect
	var result *types.AnalysisResult
	if cfg.Vision.Backend == "local" {
		if suggestDesc {
			return fmt.Errorf("--describe needs a model backend")
		}
		debugf("detecting salient regions locally")
		selection, result, err = vision.New().SuggestSelection(img, frame, suggestPadding, suggestAspect)
	} else {
		selection, result, err = suggestWithModel(cmd, processor, img, frame)
	}
	if err != nil || result == nil {
		return err
	}
	debugf("primary=%q conf=%.2f box=%.3fx%.3f@%.3f,%.3f",
		result.Primary.Label, result.Primary.Confidence,
		result.Primary.Box.W, result.Primary.Box.H, result.Primary.Box.X, result.Primary.Box.Y)

	rect, err := cropmap.MapCropToSource(size, selection, frame)
	if err != nil {
		return err
	}

	out := suggestOutputJSON{
		Selection: selection,
		Rect:      rect,
		Box:       cropmap.BoxFromRect(rect, size),
		Analysis:  result,
	}
	if suggestCrop {
		opts := types.ExportOptions{Format: cfg.Export.Format, Quality: cfg.Export.Quality, Lossless: cfg.Export.Lossless}
		if suggestOutput != "" {
			if ext := utils.GetFileExtension(suggestOutput); ext != "" {
				opts.Format = ext
			}
		}
		job := cropJob{
			Input:     suggestInput,
			Output:    suggestOutput,
			Frame:     frame,
			Selection: selection,
			Zoom:      1,
			Export:    opts,
			Debug:     cfg.Debug.Overlay,
		}
		if _, err := job.run(processor, img); err != nil {
			return err
		}
		out.Output = job.Output
	}

	w := cmd.OutOrStdout()
	if suggestJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintf(w, "Subject: %s (%.2f)\n", result.Primary.Label, result.Primary.Confidence)
	if result.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", result.Description)
	}
	if len(result.Tags) > 0 {
		fmt.Fprintf(w, "Tags: %v\n", result.Tags)
	}
	fmt.Fprintf(w, "Selection: %g,%g,%g,%g\n", selection.X, selection.Y, selection.Width, selection.Height)
	fmt.Fprintf(w, "Rect: %g,%g,%g,%g\n", rect.X, rect.Y, rect.Width, rect.Height)
	if out.Output != "" {
		fmt.Fprintf(w, "Wrote: %s\n", out.Output)
	}
	return nil
}

// suggestWithModel asks the configured model server. With --describe it
// prints the model's description and returns a nil result.
func suggestWithModel(cmd *cobra.Command, processor *processing.Processor, img image.Image, frame types.Rect) (types.Rect, *types.AnalysisResult, error) {
	visionClient, err := newVisionClient(cfg.Vision.Backend, cfg.VisionURL())
	if err != nil {
		return types.Rect{}, nil, err
	}
	detector := detection.NewDetector(visionClient)

	imgB64, err := processor.PrepareImageForModel(img, cfg.Vision.SendFormat, cfg.Vision.SendSize, cfg.Vision.SendQuality)
	if err != nil {
		return types.Rect{}, nil, err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	var cancel context.CancelFunc
	if cfg.Vision.TimeoutSeconds > 0 {
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Vision.TimeoutSeconds)*time.Second)
	} else {
		ctx, cancel = client.WithDefaultTimeout(ctx)
	}
	defer cancel()

	debugf("asking %s (%s) at %s", cfg.Vision.Model, cfg.Vision.Backend, cfg.VisionURL())
	if suggestDesc {
		text, err := detector.TestVision(ctx, cfg.Vision.Model, imgB64)
		if err != nil {
			return types.Rect{}, nil, err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return types.Rect{}, nil, nil
	}

	return detector.SuggestSelection(ctx, cfg.Vision.Model, imgB64, frame, suggestPadding)
}

func newVisionClient(backend, url string) (client.VisionClient, error) {
	switch backend {
	case "ollama":
		c, err := ollama.NewClient(url)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return c, nil
	case "llamacpp":
		c, err := llamacpp.NewClient(url)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown backend: %s (use 'ollama' or 'llamacpp')", backend)
	}
}
