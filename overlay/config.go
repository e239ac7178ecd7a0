package overlay

import (
	"github.com/lucidpdf/textlayer/fonts"
	"github.com/lucidpdf/textlayer/observability"
	"github.com/lucidpdf/textlayer/security"
)

// Tuning defaults, matching the calibration the engine was tuned with.
const (
	DefaultCalibration        = 0.85
	DefaultMinFontSize        = 4.0
	DefaultMaxFontSize        = 72.0
	DefaultMinHorizontalScale = 0.01
)

// Config tunes an Engine. The zero value is usable: built-in Helvetica,
// default calibration, lenient handling, serial processing.
type Config struct {
	// Calibration scales OCR box height into font size. The default was
	// fitted against common scanner output; raising it fills boxes more
	// aggressively at the cost of overshoot on tight line spacing.
	Calibration float64

	// MinFontSize and MaxFontSize clamp the derived size in points.
	MinFontSize float64
	MaxFontSize float64

	// MinHorizontalScale floors the Tz compression as a fraction of
	// natural width, so degenerate boxes cannot squeeze text to nothing.
	MinHorizontalScale float64

	// Strict promotes recoverable page problems into run failures.
	Strict bool

	// Workers caps concurrent page layer construction; values below 2
	// keep processing serial.
	Workers int

	// Debug renders the overlay visibly with box outlines instead of
	// invisible text. A calibration aid, never for production output.
	Debug bool

	// Font is the overlay typeface. Nil selects built-in Helvetica.
	Font fonts.Font

	// Logger receives skip warnings and per-page progress. Nil is silent.
	Logger observability.Logger

	// Limits bounds parse work on the input document. Zero fields take
	// the package defaults.
	Limits security.Limits
}

// withDefaults fills unset fields. The original Config is not modified.
func (c Config) withDefaults() Config {
	if c.Calibration <= 0 {
		c.Calibration = DefaultCalibration
	}
	if c.MinFontSize <= 0 {
		c.MinFontSize = DefaultMinFontSize
	}
	if c.MaxFontSize <= 0 {
		c.MaxFontSize = DefaultMaxFontSize
	}
	if c.MaxFontSize < c.MinFontSize {
		c.MaxFontSize = c.MinFontSize
	}
	if c.MinHorizontalScale <= 0 {
		c.MinHorizontalScale = DefaultMinHorizontalScale
	}
	if c.Font == nil {
		c.Font = fonts.Helvetica()
	}
	if c.Logger == nil {
		c.Logger = observability.NopLogger{}
	}
	c.Limits = c.Limits.Normalized()
	return c
}
