package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/menta2k/photocrop/internal/utils"
	"github.com/menta2k/photocrop/pkg/cropmap"
	"github.com/menta2k/photocrop/pkg/processing"
	"github.com/menta2k/photocrop/pkg/types"
	"github.com/spf13/cobra"
)

var (
	mapSource    string
	mapInput     string
	mapFrame     string
	mapSelection string
	mapJSON      bool
	mapInverse   bool
)

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Map a view-space selection to source pixel space",
	Long: `Map a crop selection, given in view coordinates, to the corresponding
rectangle of the source image. The frame is where the whole image is drawn
in the same view coordinates at zoom 1.

The source size comes from --source WxH or from the header of --input.
The result is neither rounded nor clamped.

With --inverse the selection is read as a source pixel rect and mapped back
into view coordinates.`,
	Args: cobra.NoArgs,
	RunE: runMap,
}

func init() {
	rootCmd.AddCommand(mapCmd)

	mapCmd.Flags().StringVar(&mapSource, "source", "", "source image size WxH")
	mapCmd.Flags().StringVarP(&mapInput, "input", "i", "", "read the source size from this image file")
	mapCmd.Flags().StringVar(&mapFrame, "frame", "", "unscaled image frame x,y,w,h")
	mapCmd.Flags().StringVar(&mapSelection, "selection", "", "crop selection x,y,w,h")
	mapCmd.Flags().BoolVar(&mapJSON, "json", false, "print the result as JSON")
	mapCmd.Flags().BoolVar(&mapInverse, "inverse", false, "map a source rect back to view coordinates")
	mapCmd.MarkFlagRequired("frame")
	mapCmd.MarkFlagRequired("selection")
	mapCmd.MarkFlagsMutuallyExclusive("source", "input")
}

type mapOutput struct {
	Source    types.Size `json:"source"`
	Frame     types.Rect `json:"frame"`
	Selection types.Rect `json:"selection"`
	Rect      types.Rect `json:"rect"`
	Pixels    *pixelRect `json:"pixels,omitempty"`
}

type pixelRect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func runMap(cmd *cobra.Command, args []string) error {
	var size types.Size
	var err error
	switch {
	case mapSource != "":
		size, err = utils.ParseSize(mapSource)
	case mapInput != "":
		size, err = processing.NewProcessor().DecodeSourceSize(mapInput)
	default:
		return fmt.Errorf("one of --source or --input is required")
	}
	if err != nil {
		return err
	}

	frame, err := utils.ParseRect(mapFrame)
	if err != nil {
		return err
	}
	selection, err := utils.ParseRect(mapSelection)
	if err != nil {
		return err
	}

	if mapInverse {
		return printInverse(cmd, size, selection, frame)
	}

	rect, err := cropmap.MapCropToSource(size, selection, frame)
	if err != nil {
		return err
	}

	out := mapOutput{Source: size, Frame: frame, Selection: selection, Rect: rect}
	if px, err := cropmap.PixelRect(rect, size); err == nil {
		out.Pixels = &pixelRect{X: px.Min.X, Y: px.Min.Y, Width: px.Dx(), Height: px.Dy()}
	}

	w := cmd.OutOrStdout()
	if mapJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintf(w, "Source: %dx%d\n", size.Width, size.Height)
	fmt.Fprintf(w, "Rect: %g,%g,%g,%g\n", rect.X, rect.Y, rect.Width, rect.Height)
	if out.Pixels != nil {
		fmt.Fprintf(w, "Pixels: %d,%d,%d,%d\n", out.Pixels.X, out.Pixels.Y, out.Pixels.Width, out.Pixels.Height)
	} else {
		fmt.Fprintln(w, "Pixels: none (selection lies outside the image)")
	}
	return nil
}

func printInverse(cmd *cobra.Command, size types.Size, sourceRect, frame types.Rect) error {
	view, err := cropmap.MapSourceToView(size, sourceRect, frame)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if mapJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(mapOutput{Source: size, Frame: frame, Selection: view, Rect: sourceRect})
	}
	fmt.Fprintf(w, "Source: %dx%d\n", size.Width, size.Height)
	fmt.Fprintf(w, "Selection: %g,%g,%g,%g\n", view.X, view.Y, view.Width, view.Height)
	return nil
}
