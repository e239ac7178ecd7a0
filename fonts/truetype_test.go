package fonts

import (
	"bytes"
	"sync"
	"testing"

	"golang.org/x/image/font/gofont/goregular"
)

func loadGoRegular(t *testing.T) *TrueType {
	t.Helper()
	f, err := LoadTrueType("GoRegular", goregular.TTF)
	if err != nil {
		t.Fatalf("load go regular: %v", err)
	}
	return f
}

func TestLoadTrueTypeRejectsGarbage(t *testing.T) {
	if _, err := LoadTrueType("X", nil); err == nil {
		t.Fatal("empty data accepted")
	}
	if _, err := LoadTrueType("X", []byte("not a font")); err == nil {
		t.Fatal("junk bytes accepted")
	}
}

func TestTrueTypeEncodesGlyphIndexes(t *testing.T) {
	f := loadGoRegular(t)

	if f.BaseFont() == "" {
		t.Fatal("no base font name")
	}

	encoded, missing := f.Encode("Hi")
	if len(missing) != 0 {
		t.Fatalf("missing runes %q", missing)
	}
	if len(encoded) != 4 {
		t.Fatalf("expected two 2-byte glyph indexes, got % X", encoded)
	}
	if encoded[0] == 0 && encoded[1] == 0 {
		t.Fatal("H mapped to glyph 0")
	}

	// Same rune must reuse the same index.
	again, _ := f.Encode("HH")
	if !bytes.Equal(again[0:2], again[2:4]) || !bytes.Equal(again[0:2], encoded[0:2]) {
		t.Fatalf("H encoded inconsistently: % X vs % X", encoded, again)
	}
}

func TestTrueTypeReportsUncoveredRunes(t *testing.T) {
	f := loadGoRegular(t)
	enc, missing := f.Encode("a中")
	if len(enc) != 2 {
		t.Fatalf("expected one glyph for the covered rune, got % X", enc)
	}
	if len(missing) != 1 || missing[0] != '中' {
		t.Fatalf("missing = %q", missing)
	}
}

func TestTrueTypeWidths(t *testing.T) {
	f := loadGoRegular(t)
	if f.WidthOf("W") <= f.WidthOf("i") {
		t.Fatalf("W (%v) not wider than i (%v)", f.WidthOf("W"), f.WidthOf("i"))
	}
	if f.WidthOf("") != 0 {
		t.Fatalf("empty string has width %v", f.WidthOf(""))
	}
}

func TestTrueTypeProgram(t *testing.T) {
	f := loadGoRegular(t)
	f.Encode("Go")

	p := f.Program()
	if p == nil {
		t.Fatal("embedded face returned no program")
	}
	if !bytes.Equal(p.Data, goregular.TTF) {
		t.Fatal("program data is not the original font bytes")
	}
	if p.UnitsPerEm <= 0 {
		t.Fatalf("unitsPerEm = %d", p.UnitsPerEm)
	}
	if len(p.Widths) < 100 {
		t.Fatalf("only %d glyph widths", len(p.Widths))
	}
	if p.Descriptor.Ascent <= 0 {
		t.Fatalf("ascent = %v", p.Descriptor.Ascent)
	}
	if p.Descriptor.Descent > 0 {
		t.Fatalf("descent = %v, want <= 0", p.Descriptor.Descent)
	}

	enc, _ := f.Encode("G")
	gi := uint16(enc[0])<<8 | uint16(enc[1])
	if r, ok := p.ToUnicode[gi]; !ok || r != 'G' {
		t.Fatalf("ToUnicode[%d] = %q, %v", gi, r, ok)
	}
}

func TestTrueTypeConcurrentUse(t *testing.T) {
	f := loadGoRegular(t)

	var wg sync.WaitGroup
	results := make([][]byte, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			enc, _ := f.Encode("concurrent text")
			f.WidthOf("concurrent text")
			results[i] = enc
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(results); i++ {
		if !bytes.Equal(results[0], results[i]) {
			t.Fatalf("goroutine %d encoded differently", i)
		}
	}
}
