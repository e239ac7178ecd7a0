// Package fonts provides the typefaces an overlay can be set in: the
// built-in Helvetica metrics every viewer ships, and embedded TrueType
// faces loaded through x/image/font/sfnt. Both sit behind one Font
// interface so the layer builder measures and encodes text the same way
// regardless of where the glyphs come from.
package fonts

// Font is a typeface the overlay layer can write with.
type Font interface {
	// BaseFont is the PostScript name used for the /BaseFont entry.
	BaseFont() string

	// Encode converts text to string bytes in the font's encoding:
	// single WinAnsi bytes for built-in faces, 2-byte big-endian glyph
	// indexes for embedded ones. Runes the face cannot represent are
	// left out of the result and returned in missing.
	Encode(text string) (encoded []byte, missing []rune)

	// WidthOf measures text in glyph space units, thousandths of the em
	// square. Width in points is WidthOf(text) * size / 1000.
	WidthOf(text string) float64

	// Program returns the embeddable font program and the tables its
	// PDF dictionaries are built from, or nil for built-in faces the
	// viewer supplies itself.
	Program() *Program
}

// Descriptor carries the numeric entries of a /FontDescriptor.
type Descriptor struct {
	FontName    string
	Flags       int
	FontBBox    [4]float64
	ItalicAngle float64
	Ascent      float64
	Descent     float64
	CapHeight   float64
	StemV       float64
}

// Program is an embeddable font program plus everything the document
// writer needs to materialize Type0/CIDFontType2 objects around it.
type Program struct {
	// Data holds the raw sfnt bytes, written as FontFile2.
	Data []byte

	UnitsPerEm int

	// Widths maps glyph index to advance in glyph space units. Every
	// glyph in the face is present so the /W array never underreports.
	Widths map[uint16]int

	// DefaultWidth is the /DW fallback.
	DefaultWidth int

	// ToUnicode maps the glyph indexes that have been encoded so far to
	// their source runes, for the generated ToUnicode CMap.
	ToUnicode map[uint16]rune

	Descriptor Descriptor
}
