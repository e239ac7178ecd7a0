// Package cli implements the textlayer command line interface.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lucidpdf/textlayer/internal/config"
	"github.com/lucidpdf/textlayer/observability"
	"github.com/lucidpdf/textlayer/ocr"
	"github.com/lucidpdf/textlayer/overlay"
)

// version is stamped at build time via -ldflags.
var version = "dev"

var (
	flagAPIKey  string
	flagAPIURL  string
	flagProfile string
	flagQuiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "textlayer",
	Short: "Embed searchable text layers into scanned PDFs",
	Long: `textlayer turns scanned PDFs into searchable documents by layering
invisible OCR text over each page image. The original appearance is
left untouched; only a hidden text layer is added.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "OCR provider API key (defaults to NANONETS_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&flagAPIURL, "api-url", "", "OCR provider base URL")
	rootCmd.PersistentFlags().StringVar(&flagProfile, "profile", "", "TOML profile with engine settings")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress progress output")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newProvider builds the OCR client from flags and the environment.
func newProvider(log observability.Logger) (*ocr.Client, error) {
	key := flagAPIKey
	if key == "" {
		key = os.Getenv("NANONETS_API_KEY")
	}
	if key == "" {
		return nil, errors.New("an OCR provider key is required: pass --api-key or set NANONETS_API_KEY")
	}
	var opts []ocr.ClientOption
	if flagAPIURL != "" {
		opts = append(opts, ocr.WithBaseURL(flagAPIURL))
	}
	if log != nil {
		opts = append(opts, ocr.WithLogger(log))
	}
	return ocr.NewClient(key, opts...), nil
}

// engineConfig folds the optional profile onto the engine defaults.
func engineConfig(debug bool) (overlay.Config, error) {
	cfg := overlay.Config{Debug: debug}
	if flagProfile == "" {
		return cfg, nil
	}
	p, err := config.LoadProfile(flagProfile)
	if err != nil {
		return cfg, err
	}
	return p.Apply(cfg)
}
