package filters

import (
	"bytes"
	"compress/flate"
	"compress/lzw"
	"context"
	"encoding/ascii85"
	"strings"
	"testing"

	"github.com/lucidpdf/textlayer/ir/raw"
)

func decodeOne(t *testing.T, d Decoder, in []byte, params raw.Dictionary) []byte {
	t.Helper()
	out, err := d.Decode(context.Background(), in, params)
	if err != nil {
		t.Fatalf("%s decode failed: %v", d.Name(), err)
	}
	return out
}

func TestFlateDecode_ZlibRoundTrip(t *testing.T) {
	want := []byte("text layers are appended, never painted over")
	enc, err := FlateEncode(want)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	got := decodeOne(t, NewFlateDecoder(0), enc, nil)
	if !bytes.Equal(got, want) {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestFlateDecode_BareDeflateFallback(t *testing.T) {
	want := []byte("missing zlib header")
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		t.Fatalf("flate writer: %v", err)
	}
	if _, err := fw.Write(want); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	got := decodeOne(t, NewFlateDecoder(0), buf.Bytes(), nil)
	if !bytes.Equal(got, want) {
		t.Fatalf("fallback mismatch: %q", got)
	}
}

func TestFlateDecode_SizeLimit(t *testing.T) {
	enc, err := FlateEncode(make([]byte, 4096))
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if _, err := NewFlateDecoder(128).Decode(context.Background(), enc, nil); err == nil {
		t.Fatalf("expected size limit error")
	}
}

func TestFlateDecode_PNGUpPredictor(t *testing.T) {
	// Two rows of four columns. Row 1 is stored raw (filter 0), row 2 with
	// the Up filter as deltas against row 1.
	pre := []byte{
		0, 1, 2, 3, 4,
		2, 1, 1, 1, 1,
	}
	enc, err := FlateEncode(pre)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	params := raw.Dict()
	params.Set("Predictor", raw.NumberInt(12))
	params.Set("Columns", raw.NumberInt(4))
	got := decodeOne(t, NewFlateDecoder(0), enc, params)
	want := []byte{1, 2, 3, 4, 2, 3, 4, 5}
	if !bytes.Equal(got, want) {
		t.Fatalf("predictor output mismatch: got %v want %v", got, want)
	}
}

func TestPNGPredictor_SubAndPaeth(t *testing.T) {
	pre := []byte{
		1, 10, 5, 5, 5, // Sub: cumulative sums
		4, 1, 1, 1, 1, // Paeth over the previous row
	}
	got, err := pngPredictor(pre, 1, 4)
	if err != nil {
		t.Fatalf("predictor failed: %v", err)
	}
	want := []byte{10, 15, 20, 25, 11, 16, 21, 26}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestPNGPredictor_RejectsRaggedData(t *testing.T) {
	if _, err := pngPredictor([]byte{0, 1, 2}, 1, 4); err == nil {
		t.Fatalf("expected row size error")
	}
}

func TestTIFFPredictor(t *testing.T) {
	params := raw.Dict()
	params.Set("Predictor", raw.NumberInt(2))
	params.Set("Colors", raw.NumberInt(3))
	params.Set("Columns", raw.NumberInt(2))
	got, err := applyPredictor([]byte{10, 20, 30, 5, 5, 5}, params)
	if err != nil {
		t.Fatalf("predictor failed: %v", err)
	}
	want := []byte{10, 20, 30, 15, 25, 35}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestLZWDecode_StdlibCompatible(t *testing.T) {
	// compress/lzw writes the EarlyChange 0 variant of the PDF encoding.
	want := []byte("TOBEORNOTTOBEORTOBEORNOT")
	var buf bytes.Buffer
	lw := lzw.NewWriter(&buf, lzw.MSB, 8)
	if _, err := lw.Write(want); err != nil {
		t.Fatalf("lzw write: %v", err)
	}
	if err := lw.Close(); err != nil {
		t.Fatalf("lzw close: %v", err)
	}
	params := raw.Dict()
	params.Set("EarlyChange", raw.NumberInt(0))
	got := decodeOne(t, NewLZWDecoder(0), buf.Bytes(), params)
	if !bytes.Equal(got, want) {
		t.Fatalf("lzw mismatch: %q", got)
	}
}

func packCodes(t *testing.T, width uint, codes []int) []byte {
	t.Helper()
	var out []byte
	var acc uint32
	var nbits uint
	for _, c := range codes {
		acc = acc<<width | uint32(c)
		nbits += width
		for nbits >= 8 {
			out = append(out, byte(acc>>(nbits-8)))
			nbits -= 8
		}
	}
	if nbits > 0 {
		out = append(out, byte(acc<<(8-nbits)))
	}
	return out
}

func TestLZWDecode_ClearAndEOD(t *testing.T) {
	in := packCodes(t, 9, []int{int('A'), int('B'), lzwClear, int('C'), lzwEOD})
	got := decodeOne(t, NewLZWDecoder(0), in, nil)
	if string(got) != "ABC" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestLZWDecode_SelfReferencingCode(t *testing.T) {
	// Code 258 is assigned by the very entry being decoded.
	in := packCodes(t, 9, []int{int('A'), 258, lzwEOD})
	got := decodeOne(t, NewLZWDecoder(0), in, nil)
	if string(got) != "AAA" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestLZWDecode_InvalidCode(t *testing.T) {
	in := packCodes(t, 9, []int{300, lzwEOD})
	if _, err := NewLZWDecoder(0).Decode(context.Background(), in, nil); err == nil {
		t.Fatalf("expected invalid code error")
	}
}

func TestASCIIHexDecode(t *testing.T) {
	got := decodeOne(t, NewASCIIHexDecoder(), []byte("48 65\n6C 6c 6F> trailing"), nil)
	if string(got) != "Hello" {
		t.Fatalf("unexpected output: %q", got)
	}
	got = decodeOne(t, NewASCIIHexDecoder(), []byte("486>"), nil)
	if !bytes.Equal(got, []byte{0x48, 0x60}) {
		t.Fatalf("odd length padding wrong: %v", got)
	}
	if _, err := NewASCIIHexDecoder().Decode(context.Background(), []byte("4G>"), nil); err == nil {
		t.Fatalf("expected invalid character error")
	}
}

func TestASCII85Decode(t *testing.T) {
	want := []byte("searchable text layer")
	enc := make([]byte, ascii85.MaxEncodedLen(len(want)))
	n := ascii85.Encode(enc, want)
	in := append(append([]byte("<~"), enc[:n]...), []byte("~>")...)
	got := decodeOne(t, NewASCII85Decoder(), in, nil)
	if !bytes.Equal(got, want) {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestRunLengthDecode(t *testing.T) {
	in := []byte{2, 'a', 'b', 'c', 254, 'x', 128, 'i', 'g', 'n'}
	got := decodeOne(t, NewRunLengthDecoder(0), in, nil)
	if string(got) != "abcxxx" {
		t.Fatalf("unexpected output: %q", got)
	}
	if _, err := NewRunLengthDecoder(0).Decode(context.Background(), []byte{5, 'a'}, nil); err == nil {
		t.Fatalf("expected truncated run error")
	}
}

func TestCryptDecoder(t *testing.T) {
	in := []byte("payload")
	params := raw.Dict()
	params.Set("Name", raw.NameLiteral("Identity"))
	got := decodeOne(t, NewCryptDecoder(), in, params)
	if !bytes.Equal(got, in) {
		t.Fatalf("identity crypt should pass through")
	}
	params.Set("Name", raw.NameLiteral("StdCF"))
	if _, err := NewCryptDecoder().Decode(context.Background(), in, params); err == nil {
		t.Fatalf("expected unsupported crypt filter error")
	}
}

func TestPipeline_Chain(t *testing.T) {
	want := []byte("chained through two filters")
	flated, err := FlateEncode(want)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	enc := make([]byte, ascii85.MaxEncodedLen(len(flated)))
	n := ascii85.Encode(enc, flated)
	p := NewDefaultPipeline(Limits{MaxDecompressedSize: 1 << 20})
	got, err := p.Decode(context.Background(), enc[:n], []string{"ASCII85Decode", "FlateDecode"}, nil)
	if err != nil {
		t.Fatalf("pipeline decode failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestPipeline_UnsupportedFilter(t *testing.T) {
	p := NewDefaultPipeline(Limits{})
	_, err := p.Decode(context.Background(), []byte("jpeg"), []string{"DCTDecode"}, nil)
	if err == nil || !strings.Contains(err.Error(), "unsupported filter") {
		t.Fatalf("expected unsupported filter error, got %v", err)
	}
}

func TestExtractFilters(t *testing.T) {
	dict := raw.Dict()
	dict.Set("Filter", raw.NameLiteral("FlateDecode"))
	parms := raw.Dict()
	parms.Set("Predictor", raw.NumberInt(12))
	dict.Set("DecodeParms", parms)

	names, params := ExtractFilters(nil, dict)
	if len(names) != 1 || names[0] != "FlateDecode" {
		t.Fatalf("unexpected names: %v", names)
	}
	if len(params) != 1 || params[0] == nil {
		t.Fatalf("expected one params dict, got %v", params)
	}
}

func TestExtractFilters_ArrayWithNullParms(t *testing.T) {
	dict := raw.Dict()
	dict.Set("Filter", raw.NewArray(raw.NameLiteral("ASCII85Decode"), raw.NameLiteral("FlateDecode")))
	parms := raw.Dict()
	parms.Set("Predictor", raw.NumberInt(2))
	dict.Set("DecodeParms", raw.NewArray(raw.NullObj{}, parms))

	names, params := ExtractFilters(nil, dict)
	if len(names) != 2 || names[0] != "ASCII85Decode" || names[1] != "FlateDecode" {
		t.Fatalf("unexpected names: %v", names)
	}
	if params[0] != nil {
		t.Fatalf("expected nil params for first filter")
	}
	if params[1] == nil {
		t.Fatalf("expected params dict for second filter")
	}
}

func TestExtractFilters_ResolvesIndirectFilter(t *testing.T) {
	doc := raw.NewDocument()
	ref := raw.ObjectRef{Num: 9}
	doc.Objects[ref] = raw.NameLiteral("FlateDecode")
	dict := raw.Dict()
	dict.Set("Filter", raw.Ref(9, 0))

	names, _ := ExtractFilters(doc, dict)
	if len(names) != 1 || names[0] != "FlateDecode" {
		t.Fatalf("indirect filter not resolved: %v", names)
	}
}
