// Package writer serializes a raw object graph back into PDF bytes.
//
// The engine edits documents by mutating the parsed raw.Document in
// place, so writing is a full rewrite: every live object is emitted in
// ascending number order, followed by a classic cross-reference table
// and a trailer. Output is deterministic for a given object graph.
package writer

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"sort"
	"strconv"

	"github.com/lucidpdf/textlayer/contentstream"
	"github.com/lucidpdf/textlayer/ir/raw"
)

// binaryMarker follows the header line so transfer tools treat the file
// as binary (ISO 32000-1 7.5.2).
var binaryMarker = []byte{'%', 0xE2, 0xE3, 0xCF, 0xD3, '\n'}

// Serialize writes doc as a complete PDF file. The trailer must carry a
// Root entry; Size and ID are recomputed, stale incremental-update keys
// are dropped.
func Serialize(doc *raw.Document) ([]byte, error) {
	if doc == nil || len(doc.Objects) == 0 {
		return nil, fmt.Errorf("writer: document has no objects")
	}
	if doc.Trailer == nil {
		return nil, fmt.Errorf("writer: document has no trailer")
	}
	if _, ok := doc.Trailer.Get("Root"); !ok {
		return nil, fmt.Errorf("writer: trailer has no Root entry")
	}

	version := doc.Version
	if version == "" {
		version = "1.7"
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-" + version + "\n")
	buf.Write(binaryMarker)

	ordered := make([]raw.ObjectRef, 0, len(doc.Objects))
	for ref := range doc.Objects {
		ordered = append(ordered, ref)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Num != ordered[j].Num {
			return ordered[i].Num < ordered[j].Num
		}
		return ordered[i].Gen < ordered[j].Gen
	})

	offsets := make(map[int]xrefEntry, len(ordered))
	for _, ref := range ordered {
		offsets[ref.Num] = xrefEntry{offset: int64(buf.Len()), gen: ref.Gen}
		fmt.Fprintf(&buf, "%d %d obj\n", ref.Num, ref.Gen)
		writeValue(&buf, doc.Objects[ref])
		buf.WriteString("\nendobj\n")
	}

	// The file ID hashes the body so identical inputs produce identical
	// identifiers.
	sum := md5.Sum(buf.Bytes())

	xrefOffset := buf.Len()
	maxNum := ordered[len(ordered)-1].Num
	fmt.Fprintf(&buf, "xref\n0 %d\n", maxNum+1)
	buf.WriteString("0000000000 65535 f \n")
	for num := 1; num <= maxNum; num++ {
		if entry, ok := offsets[num]; ok {
			fmt.Fprintf(&buf, "%010d %05d n \n", entry.offset, entry.gen)
		} else {
			buf.WriteString("0000000000 65535 f \n")
		}
	}

	trailer := trailerDict(doc, maxNum+1, sum[:])
	buf.WriteString("trailer\n")
	writeValue(&buf, trailer)
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	return buf.Bytes(), nil
}

type xrefEntry struct {
	offset int64
	gen    int
}

// trailerDict rebuilds the trailer for a full rewrite: Prev and XRefStm
// point at sections that no longer exist, Size reflects the new table,
// and the second ID element records this revision.
func trailerDict(doc *raw.Document, size int, id []byte) *raw.DictObj {
	trailer := doc.Trailer.Clone()
	trailer.Delete("Prev")
	trailer.Delete("XRefStm")
	trailer.Set("Size", raw.NumberInt(int64(size)))

	first := raw.HexStr(id)
	if arr, ok := doc.Trailer.Get("ID"); ok {
		if prev, ok := doc.Resolve(arr).(*raw.ArrayObj); ok && prev.Len() > 0 {
			if s, ok := prev.Items[0].(raw.StringObj); ok {
				first = s
			}
		}
	}
	trailer.Set("ID", raw.NewArray(first, raw.HexStr(id)))
	return trailer
}

// writeValue emits one object in PDF syntax. Unknown or nil values fall
// back to null so a damaged graph still produces a readable file.
func writeValue(buf *bytes.Buffer, obj raw.Object) {
	switch v := obj.(type) {
	case raw.NameObj:
		buf.WriteString(contentstream.EscapeName(v.Val))
	case raw.NumberObj:
		if v.IsInteger() {
			buf.WriteString(strconv.FormatInt(v.Int(), 10))
		} else {
			buf.WriteString(contentstream.FormatNumber(v.Float()))
		}
	case raw.BoolObj:
		if v.V {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case raw.NullObj:
		buf.WriteString("null")
	case raw.StringObj:
		if v.Hex {
			buf.WriteByte('<')
			for _, ch := range v.Bytes {
				buf.WriteByte(hexUpper[ch>>4])
				buf.WriteByte(hexUpper[ch&0xF])
			}
			buf.WriteByte('>')
		} else {
			buf.Write(contentstream.EscapeString(v.Bytes))
		}
	case *raw.ArrayObj:
		buf.WriteByte('[')
		for i, item := range v.Items {
			if i > 0 {
				buf.WriteByte(' ')
			}
			writeValue(buf, item)
		}
		buf.WriteByte(']')
	case *raw.DictObj:
		writeDict(buf, v)
	case *raw.StreamObj:
		// Length always reflects the stored data; the parsed value may
		// be stale or an indirect reference into a discarded object.
		dict := v.Dict.Clone()
		dict.Set("Length", raw.NumberInt(int64(len(v.Data))))
		writeDict(buf, dict)
		buf.WriteString("stream\n")
		buf.Write(v.Data)
		buf.WriteString("\nendstream")
	case raw.RefObj:
		fmt.Fprintf(buf, "%d %d R", v.R.Num, v.R.Gen)
	default:
		buf.WriteString("null")
	}
}

// writeDict emits keys in sorted order so output does not depend on map
// iteration.
func writeDict(buf *bytes.Buffer, dict *raw.DictObj) {
	keys := dict.Keys()
	sort.Strings(keys)
	buf.WriteString("<<")
	for _, k := range keys {
		buf.WriteString(contentstream.EscapeName(k))
		buf.WriteByte(' ')
		writeValue(buf, dict.KV[k])
	}
	buf.WriteString(">>")
}

const hexUpper = "0123456789ABCDEF"
