package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/menta2k/photocrop"
	"github.com/menta2k/photocrop/internal/config"
	"github.com/menta2k/photocrop/internal/utils"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "photocrop",
	Short: "photocrop - map on-screen crop selections to source pixels",
	Long: `photocrop maps a crop rectangle drawn over a displayed (letterboxed,
zoomed, scrolled) image back to the pixel region of the full resolution
source, and extracts that region.

Examples:
  photocrop map --source 4000x3000 --frame 0,100,400,300 --selection 100,150,200,150
  photocrop crop -i photo.jpg --frame 0,0,400,300 --selection 50,50,200,100 --zoom 2
  photocrop suggest -i photo.jpg --backend ollama --crop`,
	Version:       photocrop.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.config/photocrop/config.json if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig reads path, or the default config file when path is empty and
// that file exists. Without either the built-in defaults are used.
func loadConfig(path string) (*config.Config, error) {
	c := config.Default()
	if path == "" {
		if def := config.GetConfigPath(); utils.FileExists(def) {
			path = def
		}
	}
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		c = loaded
		debugf("loaded config from %s", path)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}

func debugf(format string, args ...any) {
	if verbose {
		log.Printf(format, args...)
	}
}
