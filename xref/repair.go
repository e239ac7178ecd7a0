package xref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/lucidpdf/textlayer/ir/raw"
	"github.com/lucidpdf/textlayer/recovery"
	"github.com/lucidpdf/textlayer/scanner"
)

// fixAll answers every scanner problem with a fix so that the repair scan
// keeps moving through damaged regions.
type fixAll struct{}

func (fixAll) OnError(recovery.Context, error, recovery.Location) recovery.Action {
	return recovery.ActionFix
}

// repair rebuilds the cross-reference table by scanning the whole file for
// "N G obj" headers. Later headers win, matching how incremental updates
// append replacement objects. The last trailer dictionary seen supplies
// /Root and friends; a missing or incomplete one is patched up.
func (r *resolver) repair(ctx context.Context, data []byte) (Table, error) {
	sc := scanner.New(bytes.NewReader(data), scanner.Config{Recovery: fixAll{}})
	tab := newTable("table")
	var trailer *raw.DictObj

scan:
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		before := sc.Position()
		tok, err := sc.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			// Force progress past bytes the scanner cannot tokenize.
			if sc.Position() <= before {
				if serr := sc.Seek(before + 1); serr != nil {
					break
				}
			}
			continue
		}

		switch {
		case tok.Type == scanner.TokenNumber && tok.IsInt && tok.Int >= 0:
			if err := r.repairHeader(sc, tab, tok); err != nil {
				if errors.Is(err, io.EOF) {
					break scan
				}
				return nil, err
			}
		case tok.Type == scanner.TokenKeyword && tok.Str == "trailer":
			vt, err := sc.Next()
			if err != nil {
				continue
			}
			if obj, err := readValue(sc, vt); err == nil {
				if dict, ok := obj.(*raw.DictObj); ok {
					trailer = dict
				}
			}
		}
	}

	if len(tab.entries) == 0 {
		return nil, errors.New("xref: repair found no objects")
	}

	maxNum := 0
	for num := range tab.entries {
		if num > maxNum {
			maxNum = num
		}
	}
	if trailer == nil {
		trailer = raw.Dict()
	}
	if size, ok := dictInt(trailer, "Size"); !ok || size <= int64(maxNum) {
		trailer.Set("Size", raw.NumberInt(int64(maxNum)+1))
	}

	r.trailer = trailer
	r.revisions = []Table{tab}
	return tab, nil
}

// repairHeader continues after an integer token, recording an entry when
// the following tokens complete an object header. On a near miss like
// "999 1 0 obj" the scan rewinds to the second integer so a real header
// starting there is not swallowed.
func (r *resolver) repairHeader(sc scanner.Scanner, tab *table, numTok scanner.Token) error {
	genTok, err := sc.Next()
	if err != nil {
		return err
	}
	if genTok.Type != scanner.TokenNumber || !genTok.IsInt || genTok.Int < 0 {
		return nil
	}
	kw, err := sc.Next()
	if err != nil {
		return err
	}
	if kw.Type == scanner.TokenKeyword && kw.Str == "obj" {
		tab.entries[int(numTok.Int)] = entry{
			kind:   entryOffset,
			offset: numTok.Pos,
			gen:    int(genTok.Int),
		}
		return nil
	}
	if err := sc.Seek(genTok.Pos); err != nil {
		return fmt.Errorf("xref: repair rewind: %w", err)
	}
	return nil
}
