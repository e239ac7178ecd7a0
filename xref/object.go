package xref

import (
	"fmt"

	"github.com/lucidpdf/textlayer/ir/raw"
	"github.com/lucidpdf/textlayer/scanner"
)

// readValue assembles one object from scanner tokens; tok is the first
// token of the value. Containers are read eagerly, which is all the
// resolver needs for trailer and cross-reference stream dictionaries.
func readValue(sc scanner.Scanner, tok scanner.Token) (raw.Object, error) {
	switch tok.Type {
	case scanner.TokenDict:
		dict := raw.Dict()
		for {
			key, err := sc.Next()
			if err != nil {
				return nil, err
			}
			if key.Type == scanner.TokenKeyword && key.Str == ">>" {
				return dict, nil
			}
			if key.Type != scanner.TokenName {
				return nil, fmt.Errorf("dictionary key at offset %d is not a name", key.Pos)
			}
			vt, err := sc.Next()
			if err != nil {
				return nil, err
			}
			val, err := readValue(sc, vt)
			if err != nil {
				return nil, err
			}
			dict.Set(key.Str, val)
		}
	case scanner.TokenArray:
		arr := raw.NewArray()
		for {
			it, err := sc.Next()
			if err != nil {
				return nil, err
			}
			if it.Type == scanner.TokenKeyword && it.Str == "]" {
				return arr, nil
			}
			val, err := readValue(sc, it)
			if err != nil {
				return nil, err
			}
			arr.Append(val)
		}
	case scanner.TokenName:
		return raw.NameLiteral(tok.Str), nil
	case scanner.TokenString:
		return raw.Str(tok.Bytes), nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return raw.NumberInt(tok.Int), nil
		}
		return raw.NumberFloat(tok.Real), nil
	case scanner.TokenBoolean:
		return raw.Bool(tok.Bool), nil
	case scanner.TokenNull:
		return raw.NullObj{}, nil
	case scanner.TokenRef:
		return raw.Ref(int(tok.Int), tok.Gen), nil
	default:
		return nil, fmt.Errorf("unexpected token %q at offset %d", tok.Str, tok.Pos)
	}
}

// readStreamObject consumes an indirect stream object at the scanner's
// position: the "N G obj" header, the stream dictionary and the payload.
// Cross-reference streams must carry a direct /Length (PDF 7.5.8.2), so
// the declared length is trusted when present and the scanner falls back
// to an endstream search when it is not.
func readStreamObject(sc scanner.Scanner) (*raw.DictObj, []byte, error) {
	if _, _, err := readObjectHeader(sc); err != nil {
		return nil, nil, err
	}
	tok, err := sc.Next()
	if err != nil {
		return nil, nil, err
	}
	obj, err := readValue(sc, tok)
	if err != nil {
		return nil, nil, err
	}
	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return nil, nil, fmt.Errorf("object at offset %d is not a stream dictionary", tok.Pos)
	}

	length := int64(-1)
	if v, ok := dictInt(dict, "Length"); ok {
		length = v
	}
	sc.SetNextStreamLength(length)

	stok, err := sc.Next()
	if err != nil {
		return nil, nil, err
	}
	if stok.Type != scanner.TokenStream {
		return nil, nil, fmt.Errorf("object at offset %d has no stream payload", stok.Pos)
	}
	return dict, stok.Bytes, nil
}

// readObjectHeader consumes "N G obj" and returns the object number and
// generation.
func readObjectHeader(sc scanner.Scanner) (int, int, error) {
	num, err := sc.Next()
	if err != nil {
		return 0, 0, err
	}
	if num.Type != scanner.TokenNumber || !num.IsInt {
		return 0, 0, fmt.Errorf("expected object number at offset %d", num.Pos)
	}
	gen, err := sc.Next()
	if err != nil {
		return 0, 0, err
	}
	if gen.Type != scanner.TokenNumber || !gen.IsInt {
		return 0, 0, fmt.Errorf("expected generation number at offset %d", gen.Pos)
	}
	kw, err := sc.Next()
	if err != nil {
		return 0, 0, err
	}
	if kw.Type != scanner.TokenKeyword || kw.Str != "obj" {
		return 0, 0, fmt.Errorf("expected obj keyword at offset %d", kw.Pos)
	}
	return int(num.Int), int(gen.Int), nil
}
