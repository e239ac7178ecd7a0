package writer

import (
	"bytes"
	"fmt"
	"sort"
	"unicode/utf16"

	"github.com/lucidpdf/textlayer/filters"
	"github.com/lucidpdf/textlayer/fonts"
	"github.com/lucidpdf/textlayer/ir/raw"
)

// EmbedFont materializes f as font objects in doc and returns the
// reference pages point their resources at. Built-in fonts become a
// Type1 dictionary; fonts with a program become a Type0 font with a
// CIDFontType2 descendant, the full program embedded, and a ToUnicode
// map covering every glyph encoded so far.
func EmbedFont(doc *raw.Document, f fonts.Font) (raw.ObjectRef, error) {
	prog := f.Program()
	if prog == nil {
		dict := raw.Dict()
		dict.Set("Type", raw.NameLiteral("Font"))
		dict.Set("Subtype", raw.NameLiteral("Type1"))
		dict.Set("BaseFont", raw.NameLiteral(f.BaseFont()))
		dict.Set("Encoding", raw.NameLiteral("WinAnsiEncoding"))
		return doc.Add(dict), nil
	}
	return embedComposite(doc, f.BaseFont(), prog)
}

func embedComposite(doc *raw.Document, baseFont string, prog *fonts.Program) (raw.ObjectRef, error) {
	compressed, err := filters.FlateEncode(prog.Data)
	if err != nil {
		return raw.ObjectRef{}, fmt.Errorf("compress font program: %w", err)
	}
	fileDict := raw.Dict()
	fileDict.Set("Filter", raw.NameLiteral("FlateDecode"))
	fileDict.Set("Length", raw.NumberInt(int64(len(compressed))))
	fileDict.Set("Length1", raw.NumberInt(int64(len(prog.Data))))
	fileRef := doc.Add(raw.NewStream(fileDict, compressed))

	desc := prog.Descriptor
	descDict := raw.Dict()
	descDict.Set("Type", raw.NameLiteral("FontDescriptor"))
	descDict.Set("FontName", raw.NameLiteral(desc.FontName))
	descDict.Set("Flags", raw.NumberInt(int64(desc.Flags)))
	descDict.Set("FontBBox", raw.NewArray(
		raw.NumberFloat(desc.FontBBox[0]),
		raw.NumberFloat(desc.FontBBox[1]),
		raw.NumberFloat(desc.FontBBox[2]),
		raw.NumberFloat(desc.FontBBox[3]),
	))
	descDict.Set("ItalicAngle", raw.NumberFloat(desc.ItalicAngle))
	descDict.Set("Ascent", raw.NumberFloat(desc.Ascent))
	descDict.Set("Descent", raw.NumberFloat(desc.Descent))
	descDict.Set("CapHeight", raw.NumberFloat(desc.CapHeight))
	descDict.Set("StemV", raw.NumberFloat(desc.StemV))
	descDict.Set("FontFile2", raw.RefObj{R: fileRef})
	descRef := doc.Add(descDict)

	system := raw.Dict()
	system.Set("Registry", raw.Str([]byte("Adobe")))
	system.Set("Ordering", raw.Str([]byte("Identity")))
	system.Set("Supplement", raw.NumberInt(0))

	cid := raw.Dict()
	cid.Set("Type", raw.NameLiteral("Font"))
	cid.Set("Subtype", raw.NameLiteral("CIDFontType2"))
	cid.Set("BaseFont", raw.NameLiteral(baseFont))
	cid.Set("CIDSystemInfo", system)
	cid.Set("FontDescriptor", raw.RefObj{R: descRef})
	cid.Set("DW", raw.NumberInt(int64(prog.DefaultWidth)))
	if w := widthRuns(prog); w.Len() > 0 {
		cid.Set("W", w)
	}
	cid.Set("CIDToGIDMap", raw.NameLiteral("Identity"))
	cidRef := doc.Add(cid)

	font := raw.Dict()
	font.Set("Type", raw.NameLiteral("Font"))
	font.Set("Subtype", raw.NameLiteral("Type0"))
	font.Set("BaseFont", raw.NameLiteral(baseFont))
	font.Set("Encoding", raw.NameLiteral("Identity-H"))
	font.Set("DescendantFonts", raw.NewArray(raw.RefObj{R: cidRef}))
	if len(prog.ToUnicode) > 0 {
		tu, err := addToUnicode(doc, prog.ToUnicode)
		if err != nil {
			return raw.ObjectRef{}, err
		}
		font.Set("ToUnicode", raw.RefObj{R: tu})
	}
	return doc.Add(font), nil
}

// widthRuns packs glyph widths into the W array form "start [w w ...]",
// merging consecutive glyph IDs into one run and leaving default-width
// glyphs to DW.
func widthRuns(prog *fonts.Program) *raw.ArrayObj {
	gids := make([]int, 0, len(prog.Widths))
	for gid, w := range prog.Widths {
		if w != prog.DefaultWidth {
			gids = append(gids, int(gid))
		}
	}
	sort.Ints(gids)

	arr := raw.NewArray()
	for i := 0; i < len(gids); {
		j := i
		for j+1 < len(gids) && gids[j+1] == gids[j]+1 {
			j++
		}
		run := raw.NewArray()
		for k := i; k <= j; k++ {
			run.Append(raw.NumberInt(int64(prog.Widths[uint16(gids[k])])))
		}
		arr.Append(raw.NumberInt(int64(gids[i])))
		arr.Append(run)
		i = j + 1
	}
	return arr
}

func addToUnicode(doc *raw.Document, mapping map[uint16]rune) (raw.ObjectRef, error) {
	data, err := filters.FlateEncode(toUnicodeCMap(mapping))
	if err != nil {
		return raw.ObjectRef{}, fmt.Errorf("compress ToUnicode map: %w", err)
	}
	dict := raw.Dict()
	dict.Set("Filter", raw.NameLiteral("FlateDecode"))
	dict.Set("Length", raw.NumberInt(int64(len(data))))
	return doc.Add(raw.NewStream(dict, data)), nil
}

// bfcharBlock caps bfchar sections at the size the CMap format allows.
const bfcharBlock = 100

func toUnicodeCMap(mapping map[uint16]rune) []byte {
	gids := make([]int, 0, len(mapping))
	for gid := range mapping {
		gids = append(gids, int(gid))
	}
	sort.Ints(gids)

	var b bytes.Buffer
	b.WriteString("/CIDInit /ProcSet findresource begin\n")
	b.WriteString("12 dict begin\n")
	b.WriteString("begincmap\n")
	b.WriteString("/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def\n")
	b.WriteString("/CMapName /Adobe-Identity-UCS def\n")
	b.WriteString("/CMapType 2 def\n")
	b.WriteString("1 begincodespacerange\n<0000> <FFFF>\nendcodespacerange\n")

	for i := 0; i < len(gids); i += bfcharBlock {
		end := i + bfcharBlock
		if end > len(gids) {
			end = len(gids)
		}
		fmt.Fprintf(&b, "%d beginbfchar\n", end-i)
		for _, gid := range gids[i:end] {
			fmt.Fprintf(&b, "<%04X> <%s>\n", gid, utf16Hex(mapping[uint16(gid)]))
		}
		b.WriteString("endbfchar\n")
	}

	b.WriteString("endcmap\n")
	b.WriteString("CMapName currentdict /CMap defineresource pop\n")
	b.WriteString("end\nend\n")
	return b.Bytes()
}

func utf16Hex(r rune) string {
	if r1, r2 := utf16.EncodeRune(r); r1 != 0xFFFD || r2 != 0xFFFD {
		return fmt.Sprintf("%04X%04X", r1, r2)
	}
	return fmt.Sprintf("%04X", r)
}
