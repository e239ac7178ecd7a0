package overlay

import (
	"fmt"
	"strings"

	"github.com/lucidpdf/textlayer/contentstream"
	"github.com/lucidpdf/textlayer/coords"
	"github.com/lucidpdf/textlayer/fonts"
	"github.com/lucidpdf/textlayer/ir/semantic"
	"github.com/lucidpdf/textlayer/observability"
	"github.com/lucidpdf/textlayer/ocr"
)

// Instruction is one word's placement in the text layer.
type Instruction struct {
	Text    string
	Encoded []byte
	// Hex selects hex-string emission, used for 2-byte glyph indexes.
	Hex    bool
	Sizing TextSizing
	Tm     coords.Matrix
	// Box is the word box in content space, drawn by the debug outline.
	Box [4]float64
}

// Layer holds one page's overlay instructions in OCR reading order.
type Layer struct {
	Page         int
	Instructions []Instruction
}

// buildLayer maps, filters, and sizes one page's words. The returned
// error is page-level (bad raster metadata); per-word problems land in
// the report instead.
func buildLayer(page *semantic.Page, words ocr.PageWords, sizer Sizer, font fonts.Font, log observability.Logger) (*Layer, PageReport, error) {
	report := PageReport{Page: page.Index}

	mapper, err := NewMapper(page, words.Meta)
	if err != nil {
		return nil, report, err
	}

	hex := font.Program() != nil
	layer := &Layer{Page: page.Index}

	for _, word := range words.Words {
		if strings.TrimSpace(word.Text) == "" {
			report.Skipped = append(report.Skipped, SkippedWord{
				Page: page.Index, Text: word.Text, Reason: "empty text",
			})
			continue
		}

		mapped, err := mapper.MapWord(word)
		if err != nil {
			report.Skipped = append(report.Skipped, SkippedWord{
				Page: page.Index, Text: word.Text, Reason: err.Error(),
			})
			log.Debug("word box unusable",
				observability.Int("page", page.Index),
				observability.String("text", word.Text),
				observability.Error("reason", err),
			)
			continue
		}
		if mapped.Clamped {
			report.Clamped++
		}

		encoded, missing := font.Encode(word.Text)
		if len(missing) > 0 {
			reason := fmt.Errorf("%w: %q not in overlay font", ErrLayerConstructionFailed, string(missing))
			report.Skipped = append(report.Skipped, SkippedWord{
				Page: page.Index, Text: word.Text, Reason: reason.Error(),
			})
			log.Warn("word not encodable in overlay font",
				observability.Int("page", page.Index),
				observability.String("text", word.Text),
				observability.String("missing", string(missing)),
			)
			continue
		}
		if len(encoded) == 0 {
			report.Skipped = append(report.Skipped, SkippedWord{
				Page: page.Index, Text: word.Text, Reason: "nothing encodable",
			})
			continue
		}

		sizing, ok := sizer.Size(mapped, font.WidthOf(word.Text))
		if !ok {
			report.Skipped = append(report.Skipped, SkippedWord{
				Page: page.Index, Text: word.Text, Reason: "no measurable width",
			})
			continue
		}

		x, y, w, h := mapper.ContentBox(mapped)
		layer.Instructions = append(layer.Instructions, Instruction{
			Text:    word.Text,
			Encoded: encoded,
			Hex:     hex,
			Sizing:  sizing,
			Tm:      mapper.TextMatrix(mapped),
			Box:     [4]float64{x, y, w, h},
		})
	}

	report.Embedded = len(layer.Instructions)
	return layer, report, nil
}

// Content renders the layer as content stream bytes using fontName for
// the Tf operand. Identical layers render to identical bytes.
//
// Debug swaps invisible rendering for red fill plus box outlines, the
// calibration aid: same geometry, visible result.
func (l *Layer) Content(fontName string, debug bool) []byte {
	w := contentstream.NewWriter()
	for _, in := range l.Instructions {
		w.BeginText()
		w.SetFont(fontName, in.Sizing.FontSize)
		if in.Sizing.ScalePercent != 100 {
			w.SetHorizontalScaling(in.Sizing.ScalePercent)
		}
		if debug {
			w.SetRenderMode(contentstream.TextFill)
			w.SetFillRGB(1, 0, 0)
		} else {
			w.SetRenderMode(contentstream.TextInvisible)
		}
		w.SetTextMatrix(in.Tm)
		if in.Hex {
			w.ShowTextHex(in.Encoded)
		} else {
			w.ShowText(in.Encoded)
		}
		w.EndText()

		if debug {
			w.SetLineWidth(0.5)
			w.SetStrokeRGB(1, 0, 0)
			w.Rectangle(in.Box[0], in.Box[1], in.Box[2], in.Box[3])
			w.StrokePath()
		}
	}
	return w.Bytes()
}
