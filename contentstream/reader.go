package contentstream

import (
	"bytes"
	"fmt"
	"io"

	"github.com/lucidpdf/textlayer/ir/raw"
	"github.com/lucidpdf/textlayer/scanner"
)

// Op is one content stream operation: the operands that were on the stack
// when the operator appeared.
type Op struct {
	Operator string
	Operands []raw.Object
}

// Operand returns the i-th operand, or nil when absent.
func (o Op) Operand(i int) raw.Object {
	if i < 0 || i >= len(o.Operands) {
		return nil
	}
	return o.Operands[i]
}

// Float reads the i-th operand as a number.
func (o Op) Float(i int) (float64, bool) {
	return raw.ToFloat(o.Operand(i))
}

// Reader walks a decoded content stream operation by operation. Inline
// image payloads are consumed and surfaced as a bare "EI" operation with
// the raster bytes dropped.
type Reader struct {
	sc      scanner.Scanner
	pending []raw.Object
}

func NewReader(data []byte, cfg scanner.Config) *Reader {
	return &Reader{sc: scanner.New(bytes.NewReader(data), cfg)}
}

// Next returns the next operation. io.EOF signals a clean end; operands
// with no trailing operator are discarded, matching viewer behavior.
func (r *Reader) Next() (Op, error) {
	for {
		tok, err := r.sc.Next()
		if err != nil {
			return Op{}, err
		}
		switch tok.Type {
		case scanner.TokenKeyword:
			if tok.Str == "]" || tok.Str == ">>" {
				// Stray closer; drop it with whatever it was closing.
				r.pending = r.pending[:0]
				continue
			}
			op := Op{Operator: tok.Str, Operands: r.pending}
			r.pending = nil
			return op, nil
		case scanner.TokenInlineImage:
			r.pending = r.pending[:0]
			return Op{Operator: "EI"}, nil
		default:
			operand, err := r.readValue(tok)
			if err != nil {
				return Op{}, err
			}
			r.pending = append(r.pending, operand)
		}
	}
}

// readValue builds an operand object. Content streams carry no indirect
// references or nested streams (PDF 7.8.2), so the grammar here is the
// direct-object subset.
func (r *Reader) readValue(tok scanner.Token) (raw.Object, error) {
	switch tok.Type {
	case scanner.TokenName:
		return raw.NameLiteral(tok.Str), nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return raw.NumberInt(tok.Int), nil
		}
		return raw.NumberFloat(tok.Real), nil
	case scanner.TokenString:
		return raw.Str(tok.Bytes), nil
	case scanner.TokenBoolean:
		return raw.Bool(tok.Bool), nil
	case scanner.TokenNull:
		return raw.NullObj{}, nil
	case scanner.TokenArray:
		arr := raw.NewArray()
		for {
			next, err := r.sc.Next()
			if err != nil {
				return nil, err
			}
			if next.Type == scanner.TokenKeyword && next.Str == "]" {
				return arr, nil
			}
			item, err := r.readValue(next)
			if err != nil {
				return nil, err
			}
			arr.Append(item)
		}
	case scanner.TokenDict:
		dict := raw.Dict()
		for {
			key, err := r.sc.Next()
			if err != nil {
				return nil, err
			}
			if key.Type == scanner.TokenKeyword && key.Str == ">>" {
				return dict, nil
			}
			if key.Type != scanner.TokenName {
				return nil, fmt.Errorf("contentstream: dictionary key at offset %d is not a name", key.Pos)
			}
			val, err := r.sc.Next()
			if err != nil {
				return nil, err
			}
			value, err := r.readValue(val)
			if err != nil {
				return nil, err
			}
			dict.Set(key.Str, value)
		}
	case scanner.TokenRef:
		return nil, fmt.Errorf("contentstream: indirect reference at offset %d, content streams carry only direct objects", tok.Pos)
	default:
		return nil, fmt.Errorf("contentstream: unexpected token at offset %d", tok.Pos)
	}
}

// ReadAll collects every operation in data.
func ReadAll(data []byte, cfg scanner.Config) ([]Op, error) {
	r := NewReader(data, cfg)
	var ops []Op
	for {
		op, err := r.Next()
		if err == io.EOF {
			return ops, nil
		}
		if err != nil {
			return ops, err
		}
		ops = append(ops, op)
	}
}
