// Package ocr defines the recognized-text model the overlay engine
// consumes and the provider abstraction that produces it. Providers are
// transport-agnostic: the bundled implementation calls a remote
// extraction API, but anything able to return per-page word boxes can
// feed the engine.
package ocr

import "context"

// Region describes a rectangular area in pixel coordinates with the
// origin in the upper-left corner of the rasterized page, y growing
// downward.
type Region struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// IsEmpty reports whether the region has non-positive dimensions.
func (r Region) IsEmpty() bool { return r.Width <= 0 || r.Height <= 0 }

// RecognizedWord is a single OCR token with its pixel-space box.
type RecognizedWord struct {
	Text string
	Box  Region
	// Page is the zero-based index of the page the word was read from.
	Page int
}

// PageImageMeta records the pixel dimensions the provider rasterized a
// page at. The coordinate mapper cannot scale word boxes onto the page
// without them.
type PageImageMeta struct {
	Width  int
	Height int
}

// Valid reports whether both dimensions are positive.
func (m PageImageMeta) Valid() bool { return m.Width > 0 && m.Height > 0 }

// PageWords pairs a page's raster metadata with its recognized words in
// reading order.
type PageWords struct {
	Meta  PageImageMeta
	Words []RecognizedWord
}

// ExtractResult is everything a provider recovered from one document.
type ExtractResult struct {
	// Markdown is the provider's structured-text rendering, used for
	// sidecar output.
	Markdown string
	// Pages holds per-page word boxes keyed by zero-based page index.
	// Pages without recognized text are absent.
	Pages map[int]PageWords
}

// Provider runs OCR over a whole document.
type Provider interface {
	Extract(ctx context.Context, filename string, document []byte) (*ExtractResult, error)
}
