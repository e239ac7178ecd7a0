package contentstream

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/lucidpdf/textlayer/coords"
)

// Writer accumulates content stream operations. Output is deterministic:
// the same calls always produce the same bytes.
type Writer struct {
	buf bytes.Buffer
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) SaveState() *Writer    { return w.op("q") }
func (w *Writer) RestoreState() *Writer { return w.op("Q") }
func (w *Writer) BeginText() *Writer    { return w.op("BT") }
func (w *Writer) EndText() *Writer      { return w.op("ET") }

// SetFont selects a font resource by its name in the page's /Font dict.
func (w *Writer) SetFont(name string, size float64) *Writer {
	w.writeName(name)
	w.buf.WriteByte(' ')
	w.writeNumber(size)
	return w.op("Tf")
}

func (w *Writer) SetRenderMode(m TextRenderMode) *Writer {
	w.buf.WriteString(strconv.Itoa(int(m)))
	return w.op("Tr")
}

// SetHorizontalScaling sets Tz in percent, 100 being natural width.
func (w *Writer) SetHorizontalScaling(percent float64) *Writer {
	w.writeNumber(percent)
	return w.op("Tz")
}

func (w *Writer) SetTextMatrix(m coords.Matrix) *Writer {
	for _, v := range m {
		w.writeNumber(v)
		w.buf.WriteByte(' ')
	}
	w.buf.WriteString("Tm\n")
	return w
}

// ShowText emits s as an escaped literal string followed by Tj. The bytes
// must already be in the selected font's encoding.
func (w *Writer) ShowText(s []byte) *Writer {
	w.buf.Write(EscapeString(s))
	return w.op("Tj")
}

// ShowTextHex emits s as a hex string followed by Tj, the form used for
// 2-byte glyph-index encodings.
func (w *Writer) ShowTextHex(s []byte) *Writer {
	w.buf.WriteByte('<')
	for _, ch := range s {
		w.buf.WriteByte(hexDigits[ch>>4])
		w.buf.WriteByte(hexDigits[ch&0xF])
	}
	w.buf.WriteByte('>')
	return w.op("Tj")
}

const hexDigits = "0123456789ABCDEF"

// Rectangle appends a rectangle to the current path.
func (w *Writer) Rectangle(x, y, width, height float64) *Writer {
	for _, v := range [4]float64{x, y, width, height} {
		w.writeNumber(v)
		w.buf.WriteByte(' ')
	}
	w.buf.WriteString("re\n")
	return w
}

func (w *Writer) StrokePath() *Writer { return w.op("S") }

func (w *Writer) SetLineWidth(width float64) *Writer {
	w.writeNumber(width)
	return w.op("w")
}

func (w *Writer) SetFillGray(g float64) *Writer {
	w.writeNumber(g)
	return w.op("g")
}

func (w *Writer) SetFillRGB(r, g, b float64) *Writer {
	w.writeNumber(r)
	w.buf.WriteByte(' ')
	w.writeNumber(g)
	w.buf.WriteByte(' ')
	w.writeNumber(b)
	return w.op("rg")
}

func (w *Writer) SetStrokeRGB(r, g, b float64) *Writer {
	w.writeNumber(r)
	w.buf.WriteByte(' ')
	w.writeNumber(g)
	w.buf.WriteByte(' ')
	w.writeNumber(b)
	return w.op("RG")
}

func (w *Writer) Len() int      { return w.buf.Len() }
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

func (w *Writer) op(operator string) *Writer {
	if w.buf.Len() > 0 && w.buf.Bytes()[w.buf.Len()-1] != '\n' {
		w.buf.WriteByte(' ')
	}
	w.buf.WriteString(operator)
	w.buf.WriteByte('\n')
	return w
}

func (w *Writer) writeNumber(f float64) { w.buf.WriteString(FormatNumber(f)) }

func (w *Writer) writeName(name string) { w.buf.WriteString(EscapeName(name)) }

// FormatNumber renders f the shortest way that round-trips, always in
// plain decimal notation since PDF has no exponent syntax.
func FormatNumber(f float64) string {
	if f == float64(int64(f)) && f < 1e15 && f > -1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// EscapeString wraps s in parentheses with the escapes of PDF 7.3.4.2.
// Bytes outside printable ASCII are written in octal so the output stays
// 7-bit clean.
func EscapeString(s []byte) []byte {
	var b bytes.Buffer
	b.WriteByte('(')
	for _, ch := range s {
		switch ch {
		case '\\', '(', ')':
			b.WriteByte('\\')
			b.WriteByte(ch)
		case '\n':
			b.WriteString("\\n")
		case '\r':
			b.WriteString("\\r")
		case '\t':
			b.WriteString("\\t")
		case '\b':
			b.WriteString("\\b")
		case '\f':
			b.WriteString("\\f")
		default:
			if ch < 0x20 || ch >= 0x80 {
				fmt.Fprintf(&b, "\\%03o", ch)
			} else {
				b.WriteByte(ch)
			}
		}
	}
	b.WriteByte(')')
	return b.Bytes()
}

// EscapeName renders a name object with #-escapes for delimiters and
// non-regular characters (PDF 7.3.5).
func EscapeName(name string) string {
	var b bytes.Buffer
	b.WriteByte('/')
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c <= 0x20 || c >= 0x7f || c == '#' || isNameDelimiter(c) {
			fmt.Fprintf(&b, "#%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isNameDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}
