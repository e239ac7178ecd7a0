package overlay

// TextSizing is the derived glyph geometry for one word.
type TextSizing struct {
	// FontSize in points, already clamped.
	FontSize float64
	// ScalePercent is the Tz operand; 100 leaves glyphs at natural width.
	ScalePercent float64
}

// Sizer derives font size and horizontal scaling from mapped boxes.
// Font size follows box height through the calibration factor; the
// horizontal scale then stretches or squeezes the text run to span the
// box width exactly.
type Sizer struct {
	calibration float64
	minSize     float64
	maxSize     float64
	minScale    float64
}

func NewSizer(cfg Config) Sizer {
	cfg = cfg.withDefaults()
	return Sizer{
		calibration: cfg.Calibration,
		minSize:     cfg.MinFontSize,
		maxSize:     cfg.MaxFontSize,
		minScale:    cfg.MinHorizontalScale,
	}
}

// Size computes the sizing for one word. naturalWidth is the font's
// measure of the text in glyph space units (thousandths of an em).
// ok is false when the word has nothing to scale: zero natural width or
// a degenerate box.
func (s Sizer) Size(w MappedWord, naturalWidth float64) (TextSizing, bool) {
	if naturalWidth <= 0 || w.Width <= 0 || w.Height <= 0 {
		return TextSizing{}, false
	}

	fontSize := w.Height * s.calibration
	if fontSize < s.minSize {
		fontSize = s.minSize
	}
	if fontSize > s.maxSize {
		fontSize = s.maxSize
	}

	naturalPts := naturalWidth * fontSize / 1000
	scale := w.Width / naturalPts
	if scale < s.minScale {
		scale = s.minScale
	}

	return TextSizing{FontSize: fontSize, ScalePercent: scale * 100}, true
}
