package filters

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"context"
	"encoding/ascii85"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/lucidpdf/textlayer/ir/raw"
)

// Decoder decodes one stream filter (PDF 7.4).
type Decoder interface {
	Name() string
	Decode(ctx context.Context, input []byte, params raw.Dictionary) ([]byte, error)
}

// Limits bound decode work. Zero values disable the corresponding limit.
type Limits struct {
	MaxDecompressedSize int64
	MaxDecodeTime       time.Duration
}

// Pipeline applies a stream's filter chain in declaration order.
type Pipeline struct {
	reg    Registry
	limits Limits
}

func NewPipeline(decoders []Decoder, limits Limits) *Pipeline {
	p := &Pipeline{limits: limits}
	for _, d := range decoders {
		p.reg.Register(d)
	}
	return p
}

// NewDefaultPipeline returns a pipeline with every supported filter
// registered. Image filters (DCTDecode, JPXDecode, CCITTFaxDecode, JBIG2)
// are deliberately absent: image streams are carried through untouched and
// never decoded here.
func NewDefaultPipeline(limits Limits) *Pipeline {
	max := limits.MaxDecompressedSize
	return NewPipeline([]Decoder{
		NewFlateDecoder(max),
		NewLZWDecoder(max),
		NewASCIIHexDecoder(),
		NewASCII85Decoder(),
		NewRunLengthDecoder(max),
		NewCryptDecoder(),
	}, limits)
}

func (p *Pipeline) Decode(ctx context.Context, input []byte, filterNames []string, params []raw.Dictionary) ([]byte, error) {
	if p.limits.MaxDecodeTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.limits.MaxDecodeTime)
		defer cancel()
	}
	data := input
	for i, name := range filterNames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dec, ok := p.reg.Get(name)
		if !ok {
			return nil, fmt.Errorf("unsupported filter %q", name)
		}
		var param raw.Dictionary
		if i < len(params) {
			param = params[i]
		}
		out, err := dec.Decode(ctx, data, param)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if p.limits.MaxDecompressedSize > 0 && int64(len(out)) > p.limits.MaxDecompressedSize {
			return nil, errors.New("decoded size exceeds limit")
		}
		data = out
	}
	return data, nil
}

// Registry maps filter names to decoders.
type Registry struct{ decoders map[string]Decoder }

func (r *Registry) Register(d Decoder) {
	if r.decoders == nil {
		r.decoders = make(map[string]Decoder)
	}
	r.decoders[d.Name()] = d
}

func (r *Registry) Get(name string) (Decoder, bool) {
	d, ok := r.decoders[name]
	return d, ok
}

// ExtractFilters reads the Filter and DecodeParms entries of a stream
// dictionary, resolving indirect references through doc when given. Null
// placeholders in a DecodeParms array stay in the result as nil dictionaries
// so indices line up with the filter names.
func ExtractFilters(doc *raw.Document, dict raw.Dictionary) ([]string, []raw.Dictionary) {
	if dict == nil {
		return nil, nil
	}
	resolve := func(o raw.Object) raw.Object {
		if doc != nil {
			return doc.Resolve(o)
		}
		return o
	}
	var names []string
	filterObj, ok := dict.Get("Filter")
	if !ok {
		return nil, nil
	}
	switch f := resolve(filterObj).(type) {
	case raw.Name:
		names = append(names, f.Value())
	case raw.Array:
		for i := 0; i < f.Len(); i++ {
			item, ok := f.Get(i)
			if !ok {
				continue
			}
			if n, ok := resolve(item).(raw.Name); ok {
				names = append(names, n.Value())
			}
		}
	}
	if len(names) == 0 {
		return nil, nil
	}
	params := make([]raw.Dictionary, len(names))
	if pObj, ok := dict.Get("DecodeParms"); ok {
		switch p := resolve(pObj).(type) {
		case raw.Dictionary:
			params[0] = p
		case raw.Array:
			for i := 0; i < p.Len() && i < len(params); i++ {
				item, ok := p.Get(i)
				if !ok {
					continue
				}
				if d, ok := resolve(item).(raw.Dictionary); ok {
					params[i] = d
				}
			}
		}
	}
	return names, params
}

// FlateEncode compresses data with the zlib framing FlateDecode expects
// (PDF 7.4.4 points at RFC 1950, not bare deflate).
func FlateEncode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type flateDecoder struct{ maxSize int64 }

// NewFlateDecoder returns the FlateDecode filter. maxSize bounds the
// decompressed output; zero means unbounded.
func NewFlateDecoder(maxSize int64) Decoder { return flateDecoder{maxSize: maxSize} }

func (flateDecoder) Name() string { return "FlateDecode" }

func (d flateDecoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	zr, zerr := zlib.NewReader(bytes.NewReader(in))
	if zerr != nil {
		// Some producers emit bare deflate data without the zlib wrapper.
		fr := flate.NewReader(bytes.NewReader(in))
		defer fr.Close()
		out, err := readBounded(fr, d.maxSize)
		if err != nil {
			return nil, zerr
		}
		return applyPredictor(out, params)
	}
	defer zr.Close()
	out, err := readBounded(zr, d.maxSize)
	if err != nil {
		return nil, err
	}
	return applyPredictor(out, params)
}

type lzwDecoder struct{ maxSize int64 }

// NewLZWDecoder returns the LZWDecode filter. maxSize bounds the output;
// zero means unbounded.
func NewLZWDecoder(maxSize int64) Decoder { return lzwDecoder{maxSize: maxSize} }

func (lzwDecoder) Name() string { return "LZWDecode" }

func (d lzwDecoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	out, err := lzwDecode(in, dictInt(params, "EarlyChange", 1) != 0, d.maxSize)
	if err != nil {
		return nil, err
	}
	return applyPredictor(out, params)
}

const (
	lzwClear = 256
	lzwEOD   = 257
)

// lzwDecode implements the LZW variant of PDF 7.4.4.2: MSB-first packing,
// 9 to 12 bit codes, and an optional one-code-early width change.
func lzwDecode(in []byte, earlyChange bool, maxSize int64) ([]byte, error) {
	var (
		out      bytes.Buffer
		entries  = make([][]byte, 258, 4096)
		width    = 9
		bitBuf   uint32
		bitCount uint
		prev     []byte
	)
	for i := 0; i < 256; i++ {
		entries[i] = []byte{byte(i)}
	}
	bump := 0
	if earlyChange {
		bump = 1
	}
	for pos := 0; ; {
		for bitCount < uint(width) {
			if pos >= len(in) {
				// Data ended without an EOD marker; tolerate it.
				return out.Bytes(), nil
			}
			bitBuf = bitBuf<<8 | uint32(in[pos])
			pos++
			bitCount += 8
		}
		code := int(bitBuf >> (bitCount - uint(width)) & (1<<uint(width) - 1))
		bitCount -= uint(width)
		if code == lzwClear {
			entries = entries[:258]
			width = 9
			prev = nil
			continue
		}
		if code == lzwEOD {
			return out.Bytes(), nil
		}
		var entry []byte
		switch {
		case code < len(entries):
			entry = entries[code]
		case code == len(entries) && prev != nil:
			entry = append(append([]byte(nil), prev...), prev[0])
		default:
			return nil, errors.New("invalid LZW code")
		}
		out.Write(entry)
		if maxSize > 0 && int64(out.Len()) > maxSize {
			return nil, errors.New("decoded size exceeds limit")
		}
		if prev != nil && len(entries) < 4096 {
			entries = append(entries, append(append([]byte(nil), prev...), entry[0]))
		}
		prev = entry
		if len(entries)+bump >= 1<<uint(width) && width < 12 {
			width++
		}
	}
}

type asciiHexDecoder struct{}

func NewASCIIHexDecoder() Decoder { return asciiHexDecoder{} }

func (asciiHexDecoder) Name() string { return "ASCIIHexDecode" }

func (asciiHexDecoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	nibbles := make([]byte, 0, len(in))
	for _, c := range in {
		if c == '>' {
			break
		}
		if isSpaceByte(c) {
			continue
		}
		if !isHexByte(c) {
			return nil, fmt.Errorf("invalid character %q in hex data", c)
		}
		nibbles = append(nibbles, hexNibble(c))
	}
	if len(nibbles)%2 == 1 {
		nibbles = append(nibbles, 0)
	}
	out := make([]byte, len(nibbles)/2)
	for i := range out {
		out[i] = nibbles[2*i]<<4 | nibbles[2*i+1]
	}
	return out, nil
}

type ascii85Decoder struct{}

func NewASCII85Decoder() Decoder { return ascii85Decoder{} }

func (ascii85Decoder) Name() string { return "ASCII85Decode" }

func (ascii85Decoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	trimmed := bytes.TrimSpace(in)
	trimmed = bytes.TrimPrefix(trimmed, []byte("<~"))
	if i := bytes.Index(trimmed, []byte("~>")); i >= 0 {
		trimmed = trimmed[:i]
	}
	out := make([]byte, 4*len(trimmed))
	n, _, err := ascii85.Decode(out, trimmed, true)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

type runLengthDecoder struct{ maxSize int64 }

// NewRunLengthDecoder returns the RunLengthDecode filter (PDF 7.4.5).
// maxSize bounds the output; zero means unbounded.
func NewRunLengthDecoder(maxSize int64) Decoder { return runLengthDecoder{maxSize: maxSize} }

func (runLengthDecoder) Name() string { return "RunLengthDecode" }

func (d runLengthDecoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	var out bytes.Buffer
	for i := 0; i < len(in); {
		n := in[i]
		i++
		switch {
		case n == 128: // EOD
			return out.Bytes(), nil
		case n < 128:
			end := i + int(n) + 1
			if end > len(in) {
				return nil, errors.New("copy run crosses end of data")
			}
			out.Write(in[i:end])
			i = end
		default:
			if i >= len(in) {
				return nil, errors.New("repeat run crosses end of data")
			}
			for j := 0; j < 257-int(n); j++ {
				out.WriteByte(in[i])
			}
			i++
		}
		if d.maxSize > 0 && int64(out.Len()) > d.maxSize {
			return nil, errors.New("decoded size exceeds limit")
		}
	}
	return out.Bytes(), nil
}

type cryptDecoder struct{}

// NewCryptDecoder returns the Crypt filter. Only the Identity transform is
// supported; anything else means the stream is encrypted and is rejected.
func NewCryptDecoder() Decoder { return cryptDecoder{} }

func (cryptDecoder) Name() string { return "Crypt" }

func (cryptDecoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	if params != nil {
		if n, ok := params.Get("Name"); ok {
			if name, ok := n.(raw.Name); ok && name.Value() != "Identity" {
				return nil, fmt.Errorf("crypt filter %q not supported", name.Value())
			}
		}
	}
	return in, nil
}

// applyPredictor undoes the Predictor transform declared in DecodeParms
// (PDF 7.4.4.4). Predictor 1 is a no-op, 2 is TIFF horizontal differencing,
// 10 and above are the PNG filters applied row by row with a leading
// filter-type byte.
func applyPredictor(data []byte, params raw.Dictionary) ([]byte, error) {
	pred := dictInt(params, "Predictor", 1)
	if pred <= 1 {
		return data, nil
	}
	colors := dictInt(params, "Colors", 1)
	bpc := dictInt(params, "BitsPerComponent", 8)
	columns := dictInt(params, "Columns", 1)
	if colors < 1 || bpc < 1 || columns < 1 {
		return nil, errors.New("invalid predictor parameters")
	}
	switch {
	case pred == 2:
		return tiffPredictor(data, colors, bpc, columns)
	case pred >= 10 && pred <= 15:
		bpp := (colors*bpc + 7) / 8
		rowLen := (colors*bpc*columns + 7) / 8
		return pngPredictor(data, bpp, rowLen)
	default:
		return nil, fmt.Errorf("unsupported predictor %d", pred)
	}
}

func pngPredictor(data []byte, bpp, rowLen int) ([]byte, error) {
	if rowLen <= 0 || len(data)%(rowLen+1) != 0 {
		return nil, errors.New("predictor row size does not divide data")
	}
	rows := len(data) / (rowLen + 1)
	out := make([]byte, 0, rows*rowLen)
	prev := make([]byte, rowLen)
	row := make([]byte, rowLen)
	for r := 0; r < rows; r++ {
		ft := data[r*(rowLen+1)]
		copy(row, data[r*(rowLen+1)+1:(r+1)*(rowLen+1)])
		switch ft {
		case 0: // None
		case 1: // Sub
			for i := bpp; i < rowLen; i++ {
				row[i] += row[i-bpp]
			}
		case 2: // Up
			for i := 0; i < rowLen; i++ {
				row[i] += prev[i]
			}
		case 3: // Average
			for i := 0; i < rowLen; i++ {
				var left byte
				if i >= bpp {
					left = row[i-bpp]
				}
				row[i] += byte((int(left) + int(prev[i])) / 2)
			}
		case 4: // Paeth
			for i := 0; i < rowLen; i++ {
				var left, upLeft byte
				if i >= bpp {
					left = row[i-bpp]
					upLeft = prev[i-bpp]
				}
				row[i] += paeth(left, prev[i], upLeft)
			}
		default:
			return nil, fmt.Errorf("unknown PNG filter type %d", ft)
		}
		out = append(out, row...)
		copy(prev, row)
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := intAbs(p-int(a)), intAbs(p-int(b)), intAbs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	default:
		return c
	}
}

func tiffPredictor(data []byte, colors, bpc, columns int) ([]byte, error) {
	if bpc != 8 {
		return nil, fmt.Errorf("TIFF predictor unsupported for %d bits per component", bpc)
	}
	rowLen := colors * columns
	if rowLen == 0 || len(data)%rowLen != 0 {
		return nil, errors.New("predictor row size does not divide data")
	}
	out := append([]byte(nil), data...)
	for r := 0; r < len(out); r += rowLen {
		for i := colors; i < rowLen; i++ {
			out[r+i] += out[r+i-colors]
		}
	}
	return out, nil
}

func readBounded(r io.Reader, max int64) ([]byte, error) {
	var out bytes.Buffer
	if max <= 0 {
		if _, err := io.Copy(&out, r); err != nil {
			return nil, err
		}
		return out.Bytes(), nil
	}
	n, err := io.Copy(&out, io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if n > max {
		return nil, errors.New("decoded size exceeds limit")
	}
	return out.Bytes(), nil
}

func dictInt(d raw.Dictionary, key string, def int) int {
	if d == nil {
		return def
	}
	v, ok := d.Get(key)
	if !ok {
		return def
	}
	if n, ok := raw.ToInt(v); ok {
		return int(n)
	}
	return def
}

func intAbs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func isSpaceByte(c byte) bool {
	switch c {
	case 0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20:
		return true
	}
	return false
}

func isHexByte(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
