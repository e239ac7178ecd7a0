package fonts

// helveticaWidths holds the Adobe AFM advance widths for Helvetica,
// indexed by WinAnsiEncoding byte value. Undefined positions are zero.
var helveticaWidths = [256]int{
	' ':  278,
	'!':  278,
	'"':  355,
	'#':  556,
	'$':  556,
	'%':  889,
	'&':  667,
	'\'': 191,
	'(':  333,
	')':  333,
	'*':  389,
	'+':  584,
	',':  278,
	'-':  333,
	'.':  278,
	'/':  278,
	'0':  556,
	'1':  556,
	'2':  556,
	'3':  556,
	'4':  556,
	'5':  556,
	'6':  556,
	'7':  556,
	'8':  556,
	'9':  556,
	':':  278,
	';':  278,
	'<':  584,
	'=':  584,
	'>':  584,
	'?':  556,
	'@':  1015,
	'A':  667,
	'B':  667,
	'C':  722,
	'D':  722,
	'E':  667,
	'F':  611,
	'G':  778,
	'H':  722,
	'I':  278,
	'J':  500,
	'K':  667,
	'L':  556,
	'M':  833,
	'N':  722,
	'O':  778,
	'P':  667,
	'Q':  778,
	'R':  722,
	'S':  667,
	'T':  611,
	'U':  722,
	'V':  667,
	'W':  944,
	'X':  667,
	'Y':  667,
	'Z':  611,
	'[':  278,
	'\\': 278,
	']':  278,
	'^':  469,
	'_':  556,
	'`':  333,
	'a':  556,
	'b':  556,
	'c':  500,
	'd':  556,
	'e':  556,
	'f':  278,
	'g':  556,
	'h':  556,
	'i':  222,
	'j':  222,
	'k':  500,
	'l':  222,
	'm':  833,
	'n':  556,
	'o':  556,
	'p':  556,
	'q':  556,
	'r':  333,
	's':  500,
	't':  278,
	'u':  556,
	'v':  500,
	'w':  722,
	'x':  500,
	'y':  500,
	'z':  500,
	'{':  334,
	'|':  260,
	'}':  334,
	'~':  584,

	0x80: 556,  // Euro
	0x82: 222,  // quotesinglbase
	0x83: 556,  // florin
	0x84: 333,  // quotedblbase
	0x85: 1000, // ellipsis
	0x86: 556,  // dagger
	0x87: 556,  // daggerdbl
	0x88: 333,  // circumflex
	0x89: 1000, // perthousand
	0x8A: 667,  // Scaron
	0x8B: 333,  // guilsinglleft
	0x8C: 1000, // OE
	0x8E: 611,  // Zcaron
	0x91: 222,  // quoteleft
	0x92: 222,  // quoteright
	0x93: 333,  // quotedblleft
	0x94: 333,  // quotedblright
	0x95: 350,  // bullet
	0x96: 556,  // endash
	0x97: 1000, // emdash
	0x98: 333,  // tilde
	0x99: 1000, // trademark
	0x9A: 500,  // scaron
	0x9B: 333,  // guilsinglright
	0x9C: 944,  // oe
	0x9E: 500,  // zcaron
	0x9F: 667,  // Ydieresis

	0xA0: 278, 0xA1: 333, 0xA2: 556, 0xA3: 556, 0xA4: 556, 0xA5: 556,
	0xA6: 260, 0xA7: 556, 0xA8: 333, 0xA9: 737, 0xAA: 370, 0xAB: 556,
	0xAC: 584, 0xAD: 333, 0xAE: 737, 0xAF: 333, 0xB0: 400, 0xB1: 584,
	0xB2: 333, 0xB3: 333, 0xB4: 333, 0xB5: 556, 0xB6: 537, 0xB7: 278,
	0xB8: 333, 0xB9: 333, 0xBA: 365, 0xBB: 556, 0xBC: 834, 0xBD: 834,
	0xBE: 834, 0xBF: 611,

	0xC0: 667, 0xC1: 667, 0xC2: 667, 0xC3: 667, 0xC4: 667, 0xC5: 667,
	0xC6: 1000, 0xC7: 722, 0xC8: 667, 0xC9: 667, 0xCA: 667, 0xCB: 667,
	0xCC: 278, 0xCD: 278, 0xCE: 278, 0xCF: 278, 0xD0: 722, 0xD1: 722,
	0xD2: 778, 0xD3: 778, 0xD4: 778, 0xD5: 778, 0xD6: 778, 0xD7: 584,
	0xD8: 778, 0xD9: 722, 0xDA: 722, 0xDB: 722, 0xDC: 722, 0xDD: 667,
	0xDE: 667, 0xDF: 611,

	0xE0: 556, 0xE1: 556, 0xE2: 556, 0xE3: 556, 0xE4: 556, 0xE5: 556,
	0xE6: 889, 0xE7: 500, 0xE8: 556, 0xE9: 556, 0xEA: 556, 0xEB: 556,
	0xEC: 278, 0xED: 278, 0xEE: 278, 0xEF: 278, 0xF0: 556, 0xF1: 556,
	0xF2: 556, 0xF3: 556, 0xF4: 556, 0xF5: 556, 0xF6: 556, 0xF7: 584,
	0xF8: 611, 0xF9: 556, 0xFA: 556, 0xFB: 556, 0xFC: 556, 0xFD: 500,
	0xFE: 556, 0xFF: 500,
}

type helvetica struct{}

// Helvetica returns the built-in Helvetica face. Viewers supply the
// glyphs, so documents using it embed no font program.
func Helvetica() Font { return helvetica{} }

func (helvetica) BaseFont() string { return "Helvetica" }

func (helvetica) Encode(text string) ([]byte, []rune) {
	encoded := make([]byte, 0, len(text))
	var missing []rune
	for _, r := range text {
		b, ok := EncodeWinAnsi(r)
		if !ok {
			missing = append(missing, r)
			continue
		}
		encoded = append(encoded, b)
	}
	return encoded, missing
}

func (helvetica) WidthOf(text string) float64 {
	var total float64
	for _, r := range text {
		if b, ok := EncodeWinAnsi(r); ok {
			total += float64(helveticaWidths[b])
		}
	}
	return total
}

func (helvetica) Program() *Program { return nil }
