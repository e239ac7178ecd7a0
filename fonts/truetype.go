package fonts

import (
	"fmt"
	"math"
	"strings"
	"sync"

	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// TrueType is an embedded TrueType/OpenType face used through Identity-H
// glyph indexes. Safe for concurrent use; the sfnt buffer is guarded and
// rune lookups are memoized.
type TrueType struct {
	name   string
	data   []byte
	upem   sfnt.Units
	widths map[uint16]int
	dw     int
	desc   Descriptor

	mu     sync.Mutex
	font   *sfnt.Font
	buf    sfnt.Buffer
	glyphs map[rune]uint16
	toUni  map[uint16]rune
}

// LoadTrueType parses a TrueType/OpenType font and prepares it for
// Type0 Identity-H embedding. The full program is embedded; name is the
// fallback when the font carries no PostScript name.
func LoadTrueType(name string, data []byte) (*TrueType, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("fonts: truetype data is empty")
	}
	font, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("fonts: parse truetype: %w", err)
	}
	unitsPerEm := font.UnitsPerEm()
	if unitsPerEm == 0 {
		return nil, fmt.Errorf("fonts: truetype has no unitsPerEm")
	}
	buf := &sfnt.Buffer{}
	ppem := fixed.Int26_6(unitsPerEm << 6)

	baseName := strings.TrimSpace(name)
	if ps, _ := font.Name(buf, sfnt.NameIDPostScript); len(ps) > 0 {
		baseName = ps
	}
	if baseName == "" {
		baseName = "EmbeddedTT"
	}

	widths := glyphWidths(font, buf, unitsPerEm, ppem)
	defaultWidth := widths[0]
	if defaultWidth == 0 {
		defaultWidth = 1000
	}

	metrics, _ := font.Metrics(buf, ppem, xfont.HintingNone)
	bounds, _ := font.Bounds(buf, ppem, xfont.HintingNone)
	capHeight := scaleFixed(metrics.CapHeight, unitsPerEm)
	if capHeight == 0 {
		capHeight = scaleFixed(metrics.Ascent, unitsPerEm)
	}
	desc := Descriptor{
		FontName: baseName,
		// Symbolic: glyph indexes carry no standard character set.
		Flags:       4,
		ItalicAngle: italicAngle(font),
		Ascent:      scaleFixed(metrics.Ascent, unitsPerEm),
		Descent:     -scaleFixed(metrics.Descent, unitsPerEm),
		CapHeight:   capHeight,
		StemV:       80,
		FontBBox: [4]float64{
			scaleFixed(bounds.Min.X, unitsPerEm),
			scaleFixed(bounds.Min.Y, unitsPerEm),
			scaleFixed(bounds.Max.X, unitsPerEm),
			scaleFixed(bounds.Max.Y, unitsPerEm),
		},
	}

	return &TrueType{
		name:   baseName,
		data:   data,
		upem:   unitsPerEm,
		widths: widths,
		dw:     defaultWidth,
		desc:   desc,
		font:   font,
		glyphs: make(map[rune]uint16),
		toUni:  make(map[uint16]rune),
	}, nil
}

func (t *TrueType) BaseFont() string { return t.name }

// Encode maps runes to 2-byte big-endian glyph indexes. Runes the cmap
// does not cover come back in missing and produce no bytes.
func (t *TrueType) Encode(text string) ([]byte, []rune) {
	t.mu.Lock()
	defer t.mu.Unlock()

	encoded := make([]byte, 0, 2*len(text))
	var missing []rune
	for _, r := range text {
		gi, ok := t.glyphLocked(r)
		if !ok {
			missing = append(missing, r)
			continue
		}
		encoded = append(encoded, byte(gi>>8), byte(gi))
	}
	return encoded, missing
}

func (t *TrueType) WidthOf(text string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var total float64
	for _, r := range text {
		if gi, ok := t.glyphLocked(r); ok {
			total += float64(t.widths[gi])
		}
	}
	return total
}

// glyphLocked resolves a rune to its glyph index, memoizing hits and
// recording the pair for the ToUnicode CMap. Callers hold t.mu.
func (t *TrueType) glyphLocked(r rune) (uint16, bool) {
	if gi, ok := t.glyphs[r]; ok {
		return gi, gi != 0
	}
	gi, err := t.font.GlyphIndex(&t.buf, r)
	if err != nil || gi == 0 {
		t.glyphs[r] = 0
		return 0, false
	}
	t.glyphs[r] = uint16(gi)
	if _, seen := t.toUni[uint16(gi)]; !seen {
		t.toUni[uint16(gi)] = r
	}
	return uint16(gi), true
}

// Program returns the embedding data with a snapshot of the ToUnicode
// pairs encoded so far.
func (t *TrueType) Program() *Program {
	t.mu.Lock()
	toUni := make(map[uint16]rune, len(t.toUni))
	for gi, r := range t.toUni {
		toUni[gi] = r
	}
	t.mu.Unlock()

	return &Program{
		Data:         t.data,
		UnitsPerEm:   int(t.upem),
		Widths:       t.widths,
		DefaultWidth: t.dw,
		ToUnicode:    toUni,
		Descriptor:   t.desc,
	}
}

func glyphWidths(font *sfnt.Font, buf *sfnt.Buffer, unitsPerEm sfnt.Units, ppem fixed.Int26_6) map[uint16]int {
	glyphs := font.NumGlyphs()
	widths := make(map[uint16]int, glyphs)
	for i := 0; i < glyphs; i++ {
		adv, err := font.GlyphAdvance(buf, sfnt.GlyphIndex(i), ppem, xfont.HintingNone)
		if err != nil {
			continue
		}
		widths[uint16(i)] = int(math.Round(scaleFixed(adv, unitsPerEm)))
	}
	return widths
}

func italicAngle(font *sfnt.Font) float64 {
	post := font.PostTable()
	if post == nil {
		return 0
	}
	return post.ItalicAngle
}

// scaleFixed converts a 26.6 fixed-point value at upem ppem into glyph
// space units (thousandths of the em).
func scaleFixed(val fixed.Int26_6, unitsPerEm sfnt.Units) float64 {
	return float64(val) * 1000.0 / (64.0 * float64(unitsPerEm))
}
