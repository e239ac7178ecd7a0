// Package contentstream reads and writes PDF content stream operations.
// The writer emits the text operators the overlay layer is built from;
// the reader walks existing operations for extraction and inspection.
package contentstream

// TextRenderMode is the Tr operand (PDF 9.3.6). Mode 3 draws nothing and
// adds no clip path, which is what makes an overlay invisible while
// keeping its glyphs selectable.
type TextRenderMode int

const (
	TextFill TextRenderMode = iota
	TextStroke
	TextFillStroke
	TextInvisible
	TextFillClip
	TextStrokeClip
	TextFillStrokeClip
	TextClip
)
