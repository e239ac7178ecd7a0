package fonts

// winAnsiRunes maps WinAnsiEncoding byte values to runes (PDF Annex D.2).
// Zero marks positions the encoding leaves undefined.
var winAnsiRunes = [256]rune{
	0x80: 0x20AC, // Euro
	0x82: 0x201A, // quotesinglbase
	0x83: 0x0192, // florin
	0x84: 0x201E, // quotedblbase
	0x85: 0x2026, // ellipsis
	0x86: 0x2020, // dagger
	0x87: 0x2021, // daggerdbl
	0x88: 0x02C6, // circumflex
	0x89: 0x2030, // perthousand
	0x8A: 0x0160, // Scaron
	0x8B: 0x2039, // guilsinglleft
	0x8C: 0x0152, // OE
	0x8E: 0x017D, // Zcaron
	0x91: 0x2018, // quoteleft
	0x92: 0x2019, // quoteright
	0x93: 0x201C, // quotedblleft
	0x94: 0x201D, // quotedblright
	0x95: 0x2022, // bullet
	0x96: 0x2013, // endash
	0x97: 0x2014, // emdash
	0x98: 0x02DC, // tilde
	0x99: 0x2122, // trademark
	0x9A: 0x0161, // scaron
	0x9B: 0x203A, // guilsinglright
	0x9C: 0x0153, // oe
	0x9E: 0x017E, // zcaron
	0x9F: 0x0178, // Ydieresis
}

var winAnsiFromRune map[rune]byte

func init() {
	for b := 0x20; b <= 0x7E; b++ {
		winAnsiRunes[b] = rune(b)
	}
	for b := 0xA0; b <= 0xFF; b++ {
		winAnsiRunes[b] = rune(b)
	}
	winAnsiFromRune = make(map[rune]byte, 224)
	for b, r := range winAnsiRunes {
		if r != 0 {
			winAnsiFromRune[r] = byte(b)
		}
	}
}

// EncodeWinAnsi converts a rune to its WinAnsiEncoding byte.
func EncodeWinAnsi(r rune) (byte, bool) {
	b, ok := winAnsiFromRune[r]
	return b, ok
}
