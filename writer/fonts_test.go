package writer

import (
	"bytes"
	"compress/zlib"
	"io"
	"strings"
	"testing"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/lucidpdf/textlayer/fonts"
	"github.com/lucidpdf/textlayer/ir/raw"
)

func TestEmbedBuiltinFont(t *testing.T) {
	doc := raw.NewDocument()
	ref, err := EmbedFont(doc, fonts.Helvetica())
	if err != nil {
		t.Fatalf("EmbedFont: %v", err)
	}

	dict, ok := doc.ResolveDict(raw.RefObj{R: ref})
	if !ok {
		t.Fatal("font reference does not resolve to a dictionary")
	}
	for key, want := range map[string]string{
		"Type":     "Font",
		"Subtype":  "Type1",
		"BaseFont": "Helvetica",
		"Encoding": "WinAnsiEncoding",
	} {
		got, _ := dict.Get(key)
		if got != raw.NameLiteral(want) {
			t.Errorf("%s = %v, want /%s", key, got, want)
		}
	}
	if len(doc.Objects) != 1 {
		t.Errorf("built-in font created %d objects, want 1", len(doc.Objects))
	}
}

func TestEmbedTrueTypeFont(t *testing.T) {
	f, err := fonts.LoadTrueType("GoRegular", goregular.TTF)
	if err != nil {
		t.Fatalf("LoadTrueType: %v", err)
	}
	if _, missing := f.Encode("Grep"); len(missing) != 0 {
		t.Fatalf("font does not cover test text: %q", string(missing))
	}

	doc := raw.NewDocument()
	ref, err := EmbedFont(doc, f)
	if err != nil {
		t.Fatalf("EmbedFont: %v", err)
	}

	font, ok := doc.ResolveDict(raw.RefObj{R: ref})
	if !ok {
		t.Fatal("font reference does not resolve to a dictionary")
	}
	if sub, _ := font.Get("Subtype"); sub != raw.NameLiteral("Type0") {
		t.Fatalf("Subtype = %v, want /Type0", sub)
	}
	if enc, _ := font.Get("Encoding"); enc != raw.NameLiteral("Identity-H") {
		t.Fatalf("Encoding = %v, want /Identity-H", enc)
	}

	descendants, _ := font.Get("DescendantFonts")
	arr, ok := doc.ResolveArray(descendants)
	if !ok || arr.Len() != 1 {
		t.Fatalf("DescendantFonts = %v, want a one-element array", descendants)
	}
	cidObj, _ := arr.Get(0)
	cid, ok := doc.ResolveDict(cidObj)
	if !ok {
		t.Fatal("descendant font does not resolve")
	}
	if sub, _ := cid.Get("Subtype"); sub != raw.NameLiteral("CIDFontType2") {
		t.Fatalf("descendant Subtype = %v, want /CIDFontType2", sub)
	}
	if gidMap, _ := cid.Get("CIDToGIDMap"); gidMap != raw.NameLiteral("Identity") {
		t.Fatalf("CIDToGIDMap = %v, want /Identity", gidMap)
	}
	if _, ok := cid.Get("DW"); !ok {
		t.Error("descendant font has no DW")
	}
	if _, ok := cid.Get("W"); !ok {
		t.Error("descendant font has no W array")
	}

	descObj, _ := cid.Get("FontDescriptor")
	desc, ok := doc.ResolveDict(descObj)
	if !ok {
		t.Fatal("FontDescriptor does not resolve")
	}
	fileObj, _ := desc.Get("FontFile2")
	fileRef, ok := raw.ToRef(fileObj)
	if !ok {
		t.Fatalf("FontFile2 = %v, want a reference", fileObj)
	}
	stream, ok := doc.Objects[fileRef].(*raw.StreamObj)
	if !ok {
		t.Fatal("FontFile2 does not point at a stream")
	}
	if length1, _ := stream.Dict.Get("Length1"); length1 != raw.NumberInt(int64(len(goregular.TTF))) {
		t.Errorf("Length1 = %v, want %d", length1, len(goregular.TTF))
	}
	if program := inflate(t, stream.Data); !bytes.Equal(program, goregular.TTF) {
		t.Error("embedded font program does not round-trip")
	}
}

func TestEmbedTrueTypeToUnicode(t *testing.T) {
	f, err := fonts.LoadTrueType("GoRegular", goregular.TTF)
	if err != nil {
		t.Fatalf("LoadTrueType: %v", err)
	}
	if _, missing := f.Encode("G"); len(missing) != 0 {
		t.Fatal("font does not cover G")
	}

	doc := raw.NewDocument()
	ref, err := EmbedFont(doc, f)
	if err != nil {
		t.Fatalf("EmbedFont: %v", err)
	}
	font, _ := doc.ResolveDict(raw.RefObj{R: ref})
	tuObj, ok := font.Get("ToUnicode")
	if !ok {
		t.Fatal("font has no ToUnicode after encoding text")
	}
	tuRef, _ := raw.ToRef(tuObj)
	stream, ok := doc.Objects[tuRef].(*raw.StreamObj)
	if !ok {
		t.Fatal("ToUnicode does not point at a stream")
	}

	cmap := string(inflate(t, stream.Data))
	for _, want := range []string{
		"begincodespacerange",
		"<0000> <FFFF>",
		"beginbfchar",
		"> <0047>", // G maps back to U+0047
		"endcmap",
	} {
		if !strings.Contains(cmap, want) {
			t.Errorf("ToUnicode map lacks %q:\n%s", want, cmap)
		}
	}
}

func TestWidthRunsGroupConsecutiveGlyphs(t *testing.T) {
	prog := &fonts.Program{
		DefaultWidth: 1000,
		Widths: map[uint16]int{
			1: 500,
			2: 600,
			3: 700,
			7: 800,
			9: 1000, // default width stays out of W
		},
	}
	arr := widthRuns(prog)
	if arr.Len() != 4 {
		t.Fatalf("W has %d elements, want 4 (two runs): %v", arr.Len(), arr)
	}

	start, _ := arr.Get(0)
	if n, _ := raw.ToInt(start); n != 1 {
		t.Errorf("first run starts at %d, want 1", n)
	}
	runObj, _ := arr.Get(1)
	run := runObj.(*raw.ArrayObj)
	if run.Len() != 3 {
		t.Fatalf("first run has %d widths, want 3", run.Len())
	}
	for i, want := range []int64{500, 600, 700} {
		item, _ := run.Get(i)
		if n, _ := raw.ToInt(item); n != want {
			t.Errorf("run[%d] = %d, want %d", i, n, want)
		}
	}

	start, _ = arr.Get(2)
	if n, _ := raw.ToInt(start); n != 7 {
		t.Errorf("second run starts at %d, want 7", n)
	}
}

func TestToUnicodeCMapEncodesSupplementaryPlanes(t *testing.T) {
	cmap := string(toUnicodeCMap(map[uint16]rune{
		3: 'A',
		5: '€',
		7: 0x1D400, // mathematical bold capital A
	}))
	for _, want := range []string{
		"3 beginbfchar",
		"<0003> <0041>",
		"<0005> <20AC>",
		"<0007> <D835DC00>",
	} {
		if !strings.Contains(cmap, want) {
			t.Errorf("cmap lacks %q:\n%s", want, cmap)
		}
	}
}

func inflate(t *testing.T, data []byte) []byte {
	t.Helper()
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("zlib: %v", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("inflate: %v", err)
	}
	return out
}
