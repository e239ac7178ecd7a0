package xref_test

import (
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/lucidpdf/textlayer/recovery"
	"github.com/lucidpdf/textlayer/xref"
)

func buildSimplePDF() ([]byte, map[int]int64) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")

	offsets := make(map[int]int64)

	offsets[1] = int64(buf.Len())
	buf.WriteString("1 0 obj\n<< /Type /Catalog >>\nendobj\n")

	offsets[2] = int64(buf.Len())
	buf.WriteString("2 0 obj\n<< /Type /Pages /Count 0 >>\nendobj\n")

	xrefOffset := buf.Len()
	buf.WriteString("xref\n0 3\n")
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= 2; i++ {
		buf.WriteString(fmt.Sprintf("%010d 00000 n \n", offsets[i]))
	}
	buf.WriteString("trailer\n<< /Size 3 /Root 1 0 R >>\n")
	buf.WriteString("startxref\n")
	buf.WriteString(fmt.Sprintf("%d\n", xrefOffset))
	buf.WriteString("%%EOF\n")

	return buf.Bytes(), offsets
}

type readerAt struct {
	data []byte
}

func (r *readerAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(r.data)) {
		return 0, io.EOF
	}
	n := copy(p, r.data[off:])
	if off+int64(n) >= int64(len(r.data)) {
		return n, io.EOF
	}
	return n, nil
}

func TestResolverParsesXRefTable(t *testing.T) {
	pdf, offsets := buildSimplePDF()
	r := &readerAt{data: pdf}

	resolver := xref.NewResolver(xref.ResolverConfig{})
	table, err := resolver.Resolve(context.Background(), r)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if table.Type() != "table" {
		t.Fatalf("expected table type, got %s", table.Type())
	}
	for obj, off := range offsets {
		gotOff, gen, ok := table.Lookup(obj)
		if !ok {
			t.Fatalf("missing object %d", obj)
		}
		if gotOff != off || gen != 0 {
			t.Fatalf("object %d: expected (%d,0), got (%d,%d)", obj, off, gotOff, gen)
		}
	}
	if _, _, ok := table.Lookup(0); ok {
		t.Fatalf("free head entry should not resolve")
	}
	if got := table.Objects(); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("unexpected object list %v", got)
	}
}

func buildXRefStreamPDF() []byte {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")

	off1 := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog >>\nendobj\n")

	off2 := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Count 0 >>\nendobj\n")

	// Object stream with two objects (4 and 5)
	objStreamContent := "<< /Val 7 >> 5"
	header := "4 0 5 " + fmt.Sprintf("%d ", len("<< /Val 7 >>")+1)
	first := len(header)
	decoded := []byte(header + objStreamContent)
	off3 := buf.Len()
	buf.WriteString("3 0 obj\n<< /Type /ObjStm /N 2 /First ")
	buf.WriteString(fmt.Sprintf("%d", first))
	buf.WriteString(" /Length ")
	buf.WriteString(fmt.Sprintf("%d", len(decoded)))
	buf.WriteString(" >>\nstream\n")
	buf.Write(decoded)
	buf.WriteString("\nendstream\nendobj\n")

	xrefOffset := buf.Len()
	entries := buildXRefStreamEntries(7, map[int]int{
		1: off1,
		2: off2,
		3: off3,
		6: xrefOffset,
	}, map[int]struct {
		objstm int
		idx    int
	}{
		4: {objstm: 3, idx: 0},
		5: {objstm: 3, idx: 1},
	})
	buf.WriteString("6 0 obj\n<< /Type /XRef /Size 7 /Root 1 0 R /W [1 4 1] /Index [0 7] /Length ")
	buf.WriteString(fmt.Sprintf("%d", len(entries)))
	buf.WriteString(" >>\nstream\n")
	buf.Write(entries)
	buf.WriteString("\nendstream\nendobj\n")

	buf.WriteString("startxref\n")
	buf.WriteString(fmt.Sprintf("%d\n", xrefOffset))
	buf.WriteString("%%EOF\n")
	return buf.Bytes()
}

func buildXRefStreamEntries(size int, offsets map[int]int, objStreams map[int]struct {
	objstm int
	idx    int
}) []byte {
	entrySize := 6 // w: [1 4 1]
	total := make([]byte, entrySize*size)
	for obj, off := range offsets {
		idx := obj * entrySize
		total[idx] = 1 // type 1
		total[idx+1] = byte(off >> 24)
		total[idx+2] = byte(off >> 16)
		total[idx+3] = byte(off >> 8)
		total[idx+4] = byte(off)
		total[idx+5] = 0
	}
	for obj, meta := range objStreams {
		idx := obj * entrySize
		total[idx] = 2 // type 2
		total[idx+1] = byte(meta.objstm >> 24)
		total[idx+2] = byte(meta.objstm >> 16)
		total[idx+3] = byte(meta.objstm >> 8)
		total[idx+4] = byte(meta.objstm)
		total[idx+5] = byte(meta.idx)
	}
	return total
}

func buildHybridXRefPDF() []byte {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")

	off1 := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	off2 := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Count 0 >>\nendobj\n")

	xrefStreamOff := buf.Len()
	entries := buildXRefStreamEntries(6, map[int]int{
		1: off1,
		2: off2,
		4: xrefStreamOff,
	}, nil)
	fmt.Fprintf(buf, "4 0 obj\n<< /Type /XRef /Size 6 /Root 1 0 R /W [1 4 1] /Index [0 6] /Length %d >>\nstream\n", len(entries))
	buf.Write(entries)
	buf.WriteString("\nendstream\nendobj\n")

	baseStart := xrefStreamOff
	fmt.Fprintf(buf, "startxref\n%d\n%%%%EOF\n", baseStart)

	// incremental update with hybrid xref table referencing the stream
	obj5Off := buf.Len()
	buf.WriteString("5 0 obj\n<< /Producer (inc) >>\nendobj\n")
	tableOff := buf.Len()
	fmt.Fprintf(buf, "xref\n0 1\n0000000000 65535 f \n5 1\n%010d 00000 n \n", obj5Off)
	fmt.Fprintf(buf, "trailer\n<< /Size 6 /Root 1 0 R /Prev %d /XRefStm %d >>\nstartxref\n%d\n%%%%EOF\n", baseStart, xrefStreamOff, tableOff)
	return buf.Bytes()
}

func TestResolverParsesXRefStream(t *testing.T) {
	data := buildXRefStreamPDF()
	r := &readerAt{data: data}
	resolver := xref.NewResolver(xref.ResolverConfig{})
	table, err := resolver.Resolve(context.Background(), r)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if table.Type() != "xref-stream" {
		t.Fatalf("expected xref-stream table, got %s", table.Type())
	}
	if os, idx, ok := table.ObjStream(4); !ok || os != 3 || idx != 0 {
		t.Fatalf("expected obj 4 in objstm 3 idx0, got %v %v %v", os, idx, ok)
	}
	if os, idx, ok := table.ObjStream(5); !ok || os != 3 || idx != 1 {
		t.Fatalf("expected obj 5 in objstm 3 idx1, got %v %v %v", os, idx, ok)
	}
	off, _, ok := table.Lookup(1)
	if !ok || off == 0 {
		t.Fatalf("object 1 missing offset")
	}
	if _, _, ok := table.Lookup(4); ok {
		t.Fatalf("compressed object 4 should not resolve to a byte offset")
	}
	if root, ok := resolver.Trailer().Get("Root"); !ok || root == nil {
		t.Fatalf("trailer missing /Root")
	}
}

func TestResolverDetectsLinearizedAndValidatesTrailer(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")
	linOff := buf.Len()
	buf.WriteString("1 0 obj\n<< /Linearized 1 /L 200 /O 1 /N 1 /H [ 10 20 ] >>\nendobj\n")
	catOff := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Catalog /Pages 3 0 R >>\nendobj\n")
	pagesOff := buf.Len()
	buf.WriteString("3 0 obj\n<< /Type /Pages /Count 0 >>\nendobj\n")
	xrefOff := buf.Len()
	fmt.Fprintf(buf, "xref\n0 4\n")
	fmt.Fprintf(buf, "0000000000 65535 f \n%010d 00000 n \n%010d 00000 n \n%010d 00000 n \n", linOff, catOff, pagesOff)
	buf.WriteString("trailer\n<< /Size 4 /Root 2 0 R >>\nstartxref\n")
	fmt.Fprintf(buf, "%d\n%%%%EOF\n", xrefOff)

	r := &readerAt{data: buf.Bytes()}
	resolver := xref.NewResolver(xref.ResolverConfig{})
	_, err := resolver.Resolve(context.Background(), r)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !resolver.Linearized() {
		t.Fatalf("expected linearized flag")
	}
}

func TestResolverErrorsOnInvalidSize(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")
	objOff := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	xrefOff := buf.Len()
	fmt.Fprintf(buf, "xref\n0 2\n0000000000 65535 f \n%010d 00000 n \n", objOff)
	buf.WriteString("trailer\n<< /Size 1 /Root 1 0 R >>\nstartxref\n")
	fmt.Fprintf(buf, "%d\n%%%%EOF\n", xrefOff)

	r := &readerAt{data: buf.Bytes()}
	resolver := xref.NewResolver(xref.ResolverConfig{})
	if _, err := resolver.Resolve(context.Background(), r); err == nil {
		t.Fatalf("expected size validation error, got nil")
	}

	// A fixing strategy corrects the trailer instead of failing.
	resolver = xref.NewResolver(xref.ResolverConfig{Recovery: &testRecovery{action: recovery.ActionFix}})
	table, err := resolver.Resolve(context.Background(), r)
	if err != nil {
		t.Fatalf("resolve with fix: %v", err)
	}
	if _, _, ok := table.Lookup(1); !ok {
		t.Fatalf("object 1 lost during size fix")
	}
	if size, ok := resolver.Trailer().Get("Size"); !ok || size == nil {
		t.Fatalf("fixed trailer missing /Size")
	}
}

func TestResolverParsesHybridXRef(t *testing.T) {
	data := buildHybridXRefPDF()
	r := &readerAt{data: data}
	resolver := xref.NewResolver(xref.ResolverConfig{})
	table, err := resolver.Resolve(context.Background(), r)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if table.Type() != "table" {
		t.Fatalf("hybrid primary section should be a table, got %s", table.Type())
	}
	off1, _, ok := table.Lookup(1)
	if !ok || off1 == 0 {
		t.Fatalf("missing object 1 offset")
	}
	off5, _, ok := table.Lookup(5)
	if !ok || off5 == 0 {
		t.Fatalf("missing appended object 5 offset")
	}
	if os, _, ok := table.ObjStream(5); ok && os != 0 {
		t.Fatalf("object 5 should not be in obj stream, got %d", os)
	}
	if !resolver.Linearized() && resolver.Trailer() == nil {
		// sanity check trailers still set
		t.Fatalf("resolver missing trailer data")
	}
	if _, ok := resolver.Trailer().Get("Prev"); ok {
		t.Fatalf("merged trailer should not expose /Prev")
	}
}

func TestResolverMergesIncrementalUpdates(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")

	off1 := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	off2a := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Count 0 >>\nendobj\n")

	xref1 := buf.Len()
	fmt.Fprintf(buf, "xref\n0 3\n0000000000 65535 f \n%010d 00000 n \n%010d 00000 n \n", off1, off2a)
	fmt.Fprintf(buf, "trailer\n<< /Size 3 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xref1)

	off2b := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Count 0 /Rotate 90 >>\nendobj\n")
	xref2 := buf.Len()
	fmt.Fprintf(buf, "xref\n2 1\n%010d 00000 n \n", off2b)
	fmt.Fprintf(buf, "trailer\n<< /Size 3 /Root 1 0 R /Prev %d >>\nstartxref\n%d\n%%%%EOF\n", xref1, xref2)

	r := &readerAt{data: buf.Bytes()}
	resolver := xref.NewResolver(xref.ResolverConfig{})
	table, err := resolver.Resolve(context.Background(), r)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if off, _, ok := table.Lookup(2); !ok || off != int64(off2b) {
		t.Fatalf("object 2 should resolve to the update, got %d want %d", off, off2b)
	}
	if off, _, ok := table.Lookup(1); !ok || off != int64(off1) {
		t.Fatalf("object 1 should survive from the base revision, got %d want %d", off, off1)
	}
	if revs := resolver.Incremental(); len(revs) != 2 {
		t.Fatalf("expected 2 revisions, got %d", len(revs))
	}
}

func TestResolverXRefStreamDefaultsZeroWidthType(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")

	off1 := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	off2 := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Count 0 >>\nendobj\n")

	// W [0 4 1]: no type field, every entry defaults to type 1.
	entries := make([]byte, 0, 10)
	for _, off := range []int{off1, off2} {
		entries = append(entries,
			byte(off>>24), byte(off>>16), byte(off>>8), byte(off), 0)
	}
	xrefOff := buf.Len()
	fmt.Fprintf(buf, "3 0 obj\n<< /Type /XRef /Size 3 /Root 1 0 R /W [0 4 1] /Index [1 2] /Length %d >>\nstream\n", len(entries))
	buf.Write(entries)
	buf.WriteString("\nendstream\nendobj\n")
	fmt.Fprintf(buf, "startxref\n%d\n%%%%EOF\n", xrefOff)

	r := &readerAt{data: buf.Bytes()}
	resolver := xref.NewResolver(xref.ResolverConfig{})
	table, err := resolver.Resolve(context.Background(), r)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if off, gen, ok := table.Lookup(1); !ok || off != int64(off1) || gen != 0 {
		t.Fatalf("object 1: got (%d,%d,%v), want (%d,0,true)", off, gen, ok, off1)
	}
	if off, _, ok := table.Lookup(2); !ok || off != int64(off2) {
		t.Fatalf("object 2: got (%d,%v), want (%d,true)", off, ok, off2)
	}
}

func TestResolverInflatesCompressedXRefStream(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")

	off1 := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	off2 := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Count 0 >>\nendobj\n")

	xrefOff := buf.Len()
	entries := buildXRefStreamEntries(4, map[int]int{
		1: off1,
		2: off2,
		3: xrefOff,
	}, nil)
	var zbuf bytes.Buffer
	zw := zlib.NewWriter(&zbuf)
	if _, err := zw.Write(entries); err != nil {
		t.Fatalf("compress entries: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close compressor: %v", err)
	}

	fmt.Fprintf(buf, "3 0 obj\n<< /Type /XRef /Size 4 /Root 1 0 R /W [1 4 1] /Index [0 4] /Filter /FlateDecode /Length %d >>\nstream\n", zbuf.Len())
	buf.Write(zbuf.Bytes())
	buf.WriteString("\nendstream\nendobj\n")
	fmt.Fprintf(buf, "startxref\n%d\n%%%%EOF\n", xrefOff)

	r := &readerAt{data: buf.Bytes()}
	resolver := xref.NewResolver(xref.ResolverConfig{})
	table, err := resolver.Resolve(context.Background(), r)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if off, _, ok := table.Lookup(2); !ok || off != int64(off2) {
		t.Fatalf("object 2: got (%d,%v), want (%d,true)", off, ok, off2)
	}
}

func TestResolverToleratesPrevCycle(t *testing.T) {
	// A trailer whose /Prev points back at its own section must terminate
	// instead of looping.
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")
	off1 := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	xref1 := buf.Len()
	fmt.Fprintf(buf, "xref\n0 2\n0000000000 65535 f \n%010d 00000 n \n", off1)
	fmt.Fprintf(buf, "trailer\n<< /Size 2 /Root 1 0 R /Prev %d >>\nstartxref\n%d\n%%%%EOF\n", xref1, xref1)

	r := &readerAt{data: buf.Bytes()}
	resolver := xref.NewResolver(xref.ResolverConfig{})
	table, err := resolver.Resolve(context.Background(), r)
	if err != nil {
		t.Fatalf("self-referencing prev should resolve: %v", err)
	}
	if _, _, ok := table.Lookup(1); !ok {
		t.Fatalf("missing object 1")
	}
}

func TestResolverBoundsPrevChainDepth(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")
	off1 := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	xref1 := buf.Len()
	fmt.Fprintf(buf, "xref\n0 2\n0000000000 65535 f \n%010d 00000 n \n", off1)
	fmt.Fprintf(buf, "trailer\n<< /Size 2 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xref1)

	off1b := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Version /1.7 >>\nendobj\n")
	xref2 := buf.Len()
	fmt.Fprintf(buf, "xref\n1 1\n%010d 00000 n \n", off1b)
	fmt.Fprintf(buf, "trailer\n<< /Size 2 /Root 1 0 R /Prev %d >>\nstartxref\n%d\n%%%%EOF\n", xref1, xref2)

	r := &readerAt{data: buf.Bytes()}
	resolver := xref.NewResolver(xref.ResolverConfig{MaxXRefDepth: 1})
	if _, err := resolver.Resolve(context.Background(), r); err == nil {
		t.Fatalf("expected depth error for two-section chain with limit 1")
	}

	resolver = xref.NewResolver(xref.ResolverConfig{MaxXRefDepth: 2})
	table, err := resolver.Resolve(context.Background(), r)
	if err != nil {
		t.Fatalf("resolve within depth: %v", err)
	}
	if off, _, ok := table.Lookup(1); !ok || off != int64(off1b) {
		t.Fatalf("object 1 should resolve to newest revision, got %d want %d", off, off1b)
	}
}
