package overlay

import (
	"errors"
	"fmt"
	"math"

	"github.com/lucidpdf/textlayer/coords"
	"github.com/lucidpdf/textlayer/ir/semantic"
	"github.com/lucidpdf/textlayer/ocr"
)

// MappedWord is a recognized word carried into page space. The box is in
// display coordinates: points, origin at the displayed page's lower-left,
// y up. Clamped records that the box was pulled back inside the page.
type MappedWord struct {
	Text    string
	X       float64
	Y       float64
	Width   float64
	Height  float64
	Clamped bool
}

// Mapper converts one page's pixel-space OCR boxes into point-space
// positions and the text matrices that place them.
//
// OCR providers rasterize the page as displayed, so for 90/270 rotation
// the raster corresponds to the swapped MediaBox dimensions and mapped
// boxes must be carried back into unrotated content space, where the
// coordinates in the page's content stream live.
type Mapper struct {
	sx        float64
	sy        float64
	dispW     float64
	dispH     float64
	turns     int
	toContent coords.Matrix
}

// NewMapper builds the transform for one page. Raster metadata with
// non-positive dimensions is rejected with ErrInvalidPageMetadata.
func NewMapper(page *semantic.Page, meta ocr.PageImageMeta) (*Mapper, error) {
	if !meta.Valid() {
		return nil, fmt.Errorf("%w: raster is %dx%d pixels", ErrInvalidPageMetadata, meta.Width, meta.Height)
	}
	box := page.MediaBox.Normalized()
	if !box.Valid() {
		return nil, fmt.Errorf("%w: page box has no area", ErrInvalidPageMetadata)
	}

	turns := quarterTurns(page.Rotate)
	w, h := box.Width(), box.Height()
	dispW, dispH := w, h
	if turns == 1 || turns == 3 {
		dispW, dispH = h, w
	}

	// Display space shares its origin with the displayed page's
	// lower-left corner. Each quarter turn below is the inverse of the
	// clockwise viewing rotation, so transformed points land where the
	// content stream must draw them.
	var toContent coords.Matrix
	switch turns {
	case 1:
		toContent = coords.QuarterTurns(1).Multiply(coords.Translate(w, 0))
	case 2:
		toContent = coords.QuarterTurns(2).Multiply(coords.Translate(w, h))
	case 3:
		toContent = coords.QuarterTurns(3).Multiply(coords.Translate(0, h))
	default:
		toContent = coords.Identity()
	}
	toContent = toContent.Multiply(coords.Translate(box.LLX, box.LLY))

	return &Mapper{
		sx:        dispW / float64(meta.Width),
		sy:        dispH / float64(meta.Height),
		dispW:     dispW,
		dispH:     dispH,
		turns:     turns,
		toContent: toContent,
	}, nil
}

// MapWord scales a pixel box onto the page and flips it into bottom-up
// coordinates. Boxes reaching past the page edge are clamped back inside;
// boxes entirely outside, empty, or non-finite come back as an error and
// the word is skipped.
func (m *Mapper) MapWord(word ocr.RecognizedWord) (MappedWord, error) {
	if !finiteBox(word.Box) {
		return MappedWord{}, errors.New("box coordinates are not finite")
	}
	if word.Box.IsEmpty() {
		return MappedWord{}, errors.New("box has no area")
	}

	left := word.Box.X * m.sx
	right := (word.Box.X + word.Box.Width) * m.sx
	bottom := m.dispH - (word.Box.Y+word.Box.Height)*m.sy
	top := m.dispH - word.Box.Y*m.sy

	clamped := false
	if left < 0 {
		left = 0
		clamped = true
	}
	if right > m.dispW {
		right = m.dispW
		clamped = true
	}
	if bottom < 0 {
		bottom = 0
		clamped = true
	}
	if top > m.dispH {
		top = m.dispH
		clamped = true
	}
	if right-left <= 0 || top-bottom <= 0 {
		return MappedWord{}, errors.New("box lies outside the page")
	}

	return MappedWord{
		Text:    word.Text,
		X:       left,
		Y:       bottom,
		Width:   right - left,
		Height:  top - bottom,
		Clamped: clamped,
	}, nil
}

// TextMatrix returns the Tm that puts a word's baseline at its box
// lower-left, reading along the displayed horizontal.
func (m *Mapper) TextMatrix(w MappedWord) coords.Matrix {
	origin := m.toContent.Transform(coords.Point{X: w.X, Y: w.Y})
	return coords.QuarterTurns(m.turns).Multiply(coords.Translate(origin.X, origin.Y))
}

// ContentBox returns the word box as an axis-aligned rectangle in content
// space. Quarter turns preserve axis alignment, so two corners determine
// it; the debug outline path draws these.
func (m *Mapper) ContentBox(w MappedWord) (x, y, width, height float64) {
	a := m.toContent.Transform(coords.Point{X: w.X, Y: w.Y})
	b := m.toContent.Transform(coords.Point{X: w.X + w.Width, Y: w.Y + w.Height})
	return math.Min(a.X, b.X), math.Min(a.Y, b.Y), math.Abs(b.X - a.X), math.Abs(b.Y - a.Y)
}

// quarterTurns normalizes a /Rotate value into 0..3 quarter turns.
// Values off the 90-degree grid render as unrotated, which is how
// viewers treat them.
func quarterTurns(rotate int) int {
	r := ((rotate % 360) + 360) % 360
	if r%90 != 0 {
		return 0
	}
	return r / 90
}

func finiteBox(r ocr.Region) bool {
	for _, v := range [4]float64{r.X, r.Y, r.Width, r.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
