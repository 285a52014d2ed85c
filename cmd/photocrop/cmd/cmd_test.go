package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/menta2k/photocrop/internal/config"
	"github.com/menta2k/photocrop/pkg/cropmap"
	"github.com/menta2k/photocrop/pkg/llamacpp"
	"github.com/menta2k/photocrop/pkg/vision"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// execute runs the root command with fresh flag values and returns stdout
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(c *cobra.Command) {
	c.Flags().VisitAll(func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	})
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func writeTestImage(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "source.png")
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("failed to write test image: %v", err)
	}
	return path
}

func TestMapCommand(t *testing.T) {
	out, err := execute(t, "map", "--source", "4000x3000", "--frame", "0,100,400,300", "--selection", "100,150,200,150")
	if err != nil {
		t.Fatalf("map failed: %v", err)
	}
	if !strings.Contains(out, "Rect: 1000,500,2000,1500") {
		t.Errorf("Unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "Pixels: 1000,500,2000,1500") {
		t.Errorf("Expected pixel rect in output:\n%s", out)
	}
}

func TestMapCommandJSON(t *testing.T) {
	out, err := execute(t, "map", "--source", "1000x500", "--frame", "0,0,500,250", "--selection", "-50,0,100,100", "--json")
	if err != nil {
		t.Fatalf("map failed: %v", err)
	}

	var got mapOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if got.Rect.X != -100 || got.Rect.Width != 200 || got.Rect.Height != 200 {
		t.Errorf("Expected unclamped rect, got %+v", got.Rect)
	}
	if got.Pixels == nil || got.Pixels.X != 0 || got.Pixels.Width != 100 {
		t.Errorf("Expected clamped pixels, got %+v", got.Pixels)
	}
}

func TestMapCommandFromImageHeader(t *testing.T) {
	path := writeTestImage(t, 200, 100)
	out, err := execute(t, "map", "-i", path, "--frame", "0,0,100,50", "--selection", "0,0,50,50")
	if err != nil {
		t.Fatalf("map failed: %v", err)
	}
	if !strings.Contains(out, "Source: 200x100") || !strings.Contains(out, "Rect: 0,0,100,100") {
		t.Errorf("Unexpected output:\n%s", out)
	}
}

func TestMapCommandErrors(t *testing.T) {
	tests := [][]string{
		{"map", "--source", "100x100", "--frame", "0,0,0,10", "--selection", "0,0,1,1"},
		{"map", "--frame", "0,0,10,10", "--selection", "0,0,1,1"},
		{"map", "--source", "100", "--frame", "0,0,10,10", "--selection", "0,0,1,1"},
		{"map", "--source", "100x100", "--frame", "0,0,10", "--selection", "0,0,1,1"},
	}
	for _, args := range tests {
		if _, err := execute(t, args...); err == nil {
			t.Errorf("Expected error for %v", args)
		}
	}

	_, err := execute(t, "map", "--source", "100x100", "--frame", "0,0,-5,10", "--selection", "0,0,1,1")
	if !errors.Is(err, cropmap.ErrInvalidFrame) {
		t.Errorf("Expected ErrInvalidFrame, got %v", err)
	}
}

func TestCropCommandIgnoresViewState(t *testing.T) {
	src := writeTestImage(t, 200, 100)

	states := [][]string{
		{"--zoom", "1"},
		{"--zoom", "2", "--offset", "30,10"},
		{"--zoom", "3", "--offset", "150,75"},
	}
	for i, state := range states {
		outPath := filepath.Join(t.TempDir(), "crop.png")
		args := append([]string{"crop", "-i", src, "-o", outPath, "--frame", "0,0,100,50", "--selection", "25,0,50,50"}, state...)

		out, err := execute(t, args...)
		if err != nil {
			t.Fatalf("state %d: crop failed: %v", i, err)
		}
		if !strings.Contains(out, "50,0,100,100 (edited=true)") {
			t.Errorf("state %d: unexpected output %q", i, out)
		}

		img, err := imaging.Open(outPath)
		if err != nil {
			t.Fatalf("state %d: failed to open crop: %v", i, err)
		}
		if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 100 {
			t.Errorf("state %d: expected 100x100 crop, got %v", i, img.Bounds())
		}
	}
}

func TestCropCommandDefaultFrameAndDebug(t *testing.T) {
	src := writeTestImage(t, 120, 80)
	dir := t.TempDir()
	outPath := filepath.Join(dir, "full.jpg")

	out, err := execute(t, "crop", "-i", src, "-o", outPath, "--selection", "0,0,120,80", "--debug")
	if err != nil {
		t.Fatalf("crop failed: %v", err)
	}
	if !strings.Contains(out, "0,0,120,80 (edited=false)") {
		t.Errorf("Expected unedited full crop, got %q", out)
	}
	if _, err := imaging.Open(filepath.Join(dir, "full_debug.png")); err != nil {
		t.Errorf("Expected debug overlay: %v", err)
	}
}

func TestCropCommandInvalidFrame(t *testing.T) {
	src := writeTestImage(t, 20, 20)
	outPath := filepath.Join(t.TempDir(), "x.png")

	_, err := execute(t, "crop", "-i", src, "-o", outPath, "--frame", "0,0,10,0", "--selection", "0,0,5,5")
	if !errors.Is(err, cropmap.ErrInvalidFrame) {
		t.Errorf("Expected ErrInvalidFrame, got %v", err)
	}
}

func TestSuggestCommand(t *testing.T) {
	reply := `{"primary":{"label":"cat","confidence":0.9,"box":{"x":0.25,"y":0.5,"w":0.5,"h":0.25}},"description":"a cat","tags":["Cat"]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req llamacpp.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(llamacpp.ChatCompletionResponse{
			Choices: []llamacpp.Choice{{Message: llamacpp.Message{Role: "assistant", Content: reply}}},
		})
	}))
	defer srv.Close()

	src := writeTestImage(t, 200, 100)
	outPath := filepath.Join(t.TempDir(), "suggested.png")

	out, err := execute(t, "suggest", "-i", src, "--backend", "llamacpp", "--url", srv.URL,
		"--padding", "0", "--crop", "-o", outPath)
	if err != nil {
		t.Fatalf("suggest failed: %v", err)
	}
	for _, want := range []string{"Subject: cat", "Selection: 50,50,100,25", "Rect: 50,50,100,25", "Wrote: " + outPath} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}

	img, err := imaging.Open(outPath)
	if err != nil {
		t.Fatalf("failed to open crop: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 25 {
		t.Errorf("Expected 100x25 crop, got %v", img.Bounds())
	}
}

func TestSuggestCommandLocalBackend(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 256, 128))
	for y := 32; y < 96; y++ {
		for x := 160; x < 224; x++ {
			img.Set(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	src := filepath.Join(t.TempDir(), "square.png")
	if err := imaging.Save(img, src); err != nil {
		t.Fatalf("failed to write test image: %v", err)
	}

	out, err := execute(t, "suggest", "-i", src, "--backend", "local", "--padding", "0", "--json")
	if err != nil {
		t.Fatalf("suggest failed: %v", err)
	}
	var got suggestOutputJSON
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if got.Analysis == nil || got.Analysis.Primary.Label != vision.SalientLabel {
		t.Fatalf("Expected a salient region, got %+v", got.Analysis)
	}
	sel := got.Selection
	if sel.X > 192 || sel.X+sel.Width < 192 || sel.Y > 64 || sel.Y+sel.Height < 64 {
		t.Errorf("Selection %+v does not contain the square center", sel)
	}
	if sel.Width >= 256 {
		t.Errorf("Expected a selection narrower than the image, got %+v", sel)
	}

	out, err = execute(t, "suggest", "-i", src, "--backend", "local", "--aspect", "1")
	if err != nil {
		t.Fatalf("suggest --aspect failed: %v", err)
	}
	if !strings.Contains(out, ",128,128\n") {
		t.Errorf("Expected a 128x128 selection:\n%s", out)
	}

	if _, err := execute(t, "suggest", "-i", src, "--backend", "local", "--describe"); err == nil {
		t.Error("Expected --describe to need a model backend")
	}
}

func TestSuggestCommandUnknownBackend(t *testing.T) {
	src := writeTestImage(t, 10, 10)
	_, err := execute(t, "suggest", "-i", src, "--backend", "openai")
	if err == nil || !strings.Contains(err.Error(), "vision.backend") {
		t.Errorf("Expected backend error, got %v", err)
	}
}

func TestLoadConfigFromFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"export": {"quality": 0}}`), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := execute(t, "--config", path, "map", "--source", "10x10", "--frame", "0,0,10,10", "--selection", "0,0,1,1")
	if err == nil || !strings.Contains(err.Error(), "export.quality") {
		t.Errorf("Expected invalid config error, got %v", err)
	}
}

func TestMapCommandInverse(t *testing.T) {
	out, err := execute(t, "map", "--inverse", "--source", "1024x512", "--frame", "0,0,512,256", "--selection", "256,128,512,256")
	if err != nil {
		t.Fatalf("map --inverse failed: %v", err)
	}
	if !strings.Contains(out, "Selection: 128,64,256,128") {
		t.Errorf("Unexpected output:\n%s", out)
	}
}

func TestSuggestCommandDescribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(llamacpp.ChatCompletionResponse{
			Choices: []llamacpp.Choice{{Message: llamacpp.Message{Role: "assistant", Content: "A color gradient."}}},
		})
	}))
	defer srv.Close()

	src := writeTestImage(t, 32, 32)
	out, err := execute(t, "suggest", "-i", src, "--backend", "llamacpp", "--url", srv.URL, "--describe")
	if err != nil {
		t.Fatalf("suggest --describe failed: %v", err)
	}
	if strings.TrimSpace(out) != "A color gradient." {
		t.Errorf("Unexpected output %q", out)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.json")

	out, err := execute(t, "--config", path, "config", "init")
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(out, "Wrote "+path) {
		t.Errorf("Unexpected output %q", out)
	}

	if _, err := execute(t, "--config", path, "config", "init"); err == nil {
		t.Error("Expected error when the file already exists")
	}
	if _, err := execute(t, "--config", path, "config", "init", "--force"); err != nil {
		t.Errorf("config init --force failed: %v", err)
	}

	out, err = execute(t, "--config", path, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	var shown config.Config
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if shown.Export.Format != "jpg" || shown.Vision.Backend != "llamacpp" {
		t.Errorf("Unexpected config %+v", shown)
	}
}
