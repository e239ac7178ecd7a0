package parser_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/lucidpdf/textlayer/ir/raw"
	"github.com/lucidpdf/textlayer/parser"
	"github.com/lucidpdf/textlayer/recovery"
	"github.com/lucidpdf/textlayer/security"
	"github.com/lucidpdf/textlayer/xref"
)

type mapCache struct {
	m map[raw.ObjectRef]raw.Object
}

func (c *mapCache) Get(ref raw.ObjectRef) (raw.Object, bool) {
	v, ok := c.m[ref]
	return v, ok
}

func (c *mapCache) Put(ref raw.ObjectRef, obj raw.Object) {
	if c.m == nil {
		c.m = make(map[raw.ObjectRef]raw.Object)
	}
	c.m[ref] = obj
}

type actionStrategy struct{ action recovery.Action }

func (s actionStrategy) OnError(recovery.Context, error, recovery.Location) recovery.Action {
	return s.action
}

func resolveTable(t *testing.T, data []byte) xref.Table {
	t.Helper()
	table, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("resolve xref: %v", err)
	}
	return table
}

func buildClassicPDF() []byte {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")

	off1 := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	off2 := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n")

	xrefOff := buf.Len()
	buf.WriteString("xref\n0 3\n0000000000 65535 f \n")
	fmt.Fprintf(buf, "%010d 00000 n \n%010d 00000 n \n", off1, off2)
	buf.WriteString("trailer\n<< /Size 3 /Root 1 0 R >>\nstartxref\n")
	fmt.Fprintf(buf, "%d\n%%%%EOF\n", xrefOff)
	return buf.Bytes()
}

// packXRefEntries encodes /W [1 4 1] records: type byte, 4-byte field,
// 1-byte field.
func packXRefEntries(recs [][3]int) []byte {
	out := make([]byte, 0, len(recs)*6)
	for _, r := range recs {
		out = append(out, byte(r[0]))
		var f2 [4]byte
		binary.BigEndian.PutUint32(f2[:], uint32(r[1]))
		out = append(out, f2[:]...)
		out = append(out, byte(r[2]))
	}
	return out
}

// buildCompressedPDF stores objects 4 and 5 inside object stream 3 and
// indexes everything through a cross-reference stream.
func buildCompressedPDF() []byte {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")

	off1 := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	off2 := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n")

	payload := "4 0 5 13 << /Val 7 >> 5"
	off3 := buf.Len()
	fmt.Fprintf(buf, "3 0 obj\n<< /Type /ObjStm /N 2 /First 9 /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(payload), payload)

	off6 := buf.Len()
	entries := packXRefEntries([][3]int{
		{0, 0, 65535},
		{1, off1, 0},
		{1, off2, 0},
		{1, off3, 0},
		{2, 3, 0},
		{2, 3, 1},
		{1, off6, 0},
	})
	fmt.Fprintf(buf, "6 0 obj\n<< /Type /XRef /Size 7 /W [1 4 1] /Index [0 7] /Root 1 0 R /Length %d >>\nstream\n", len(entries))
	buf.Write(entries)
	buf.WriteString("\nendstream\nendobj\n")
	fmt.Fprintf(buf, "startxref\n%d\n%%%%EOF\n", off6)
	return buf.Bytes()
}

func TestObjectLoaderCachesObjects(t *testing.T) {
	data := buildClassicPDF()
	cache := &mapCache{}

	loader, err := (&parser.ObjectLoaderBuilder{}).
		WithReader(bytes.NewReader(data)).
		WithXRef(resolveTable(t, data)).
		WithCache(cache).
		Build()
	if err != nil {
		t.Fatalf("build loader: %v", err)
	}

	if _, err := loader.Load(context.Background(), raw.ObjectRef{Num: 1, Gen: 0}); err != nil {
		t.Fatalf("load object: %v", err)
	}
	if _, ok := cache.Get(raw.ObjectRef{Num: 1, Gen: 0}); !ok {
		t.Fatal("expected object cached after load")
	}

	// A poisoned cache entry proves the second load never reparses.
	cache.Put(raw.ObjectRef{Num: 1, Gen: 0}, raw.Bool(true))
	obj, err := loader.Load(context.Background(), raw.ObjectRef{Num: 1, Gen: 0})
	if err != nil {
		t.Fatalf("cached load: %v", err)
	}
	if _, ok := obj.(raw.BoolObj); !ok {
		t.Fatalf("expected cache hit, got %T", obj)
	}
}

func TestObjectLoaderLoadsFromObjectStream(t *testing.T) {
	data := buildCompressedPDF()
	cache := &mapCache{}

	loader, err := (&parser.ObjectLoaderBuilder{}).
		WithReader(bytes.NewReader(data)).
		WithXRef(resolveTable(t, data)).
		WithCache(cache).
		Build()
	if err != nil {
		t.Fatalf("build loader: %v", err)
	}
	ctx := context.Background()

	obj4, err := loader.Load(ctx, raw.ObjectRef{Num: 4, Gen: 0})
	if err != nil {
		t.Fatalf("load compressed object 4: %v", err)
	}
	dict, ok := obj4.(*raw.DictObj)
	if !ok {
		t.Fatalf("expected dictionary for object 4, got %T", obj4)
	}
	val, ok := dict.Get("Val")
	if !ok {
		t.Fatal("object 4 lost its Val entry")
	}
	if n, ok := raw.ToInt(val); !ok || n != 7 {
		t.Fatalf("expected /Val 7, got %v", val)
	}

	// Expanding the stream for object 4 caches its siblings too.
	if _, ok := cache.Get(raw.ObjectRef{Num: 5, Gen: 0}); !ok {
		t.Fatal("expected sibling member cached by expansion")
	}

	obj5, err := loader.Load(ctx, raw.ObjectRef{Num: 5, Gen: 0})
	if err != nil {
		t.Fatalf("load compressed object 5: %v", err)
	}
	if n, ok := raw.ToInt(obj5); !ok || n != 5 {
		t.Fatalf("expected integer 5, got %#v", obj5)
	}

	container, err := loader.Load(ctx, raw.ObjectRef{Num: 3, Gen: 0})
	if err != nil {
		t.Fatalf("load container: %v", err)
	}
	if _, ok := container.(*raw.StreamObj); !ok {
		t.Fatalf("expected stream for object 3, got %T", container)
	}
}

func TestObjectLoaderResolvesIndirectStreamLength(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")

	// The payload contains a premature endstream marker, so only the
	// declared length makes the stream readable in full.
	payload := "q BT endstream ET Q"
	off1 := buf.Len()
	fmt.Fprintf(buf, "1 0 obj\n<< /Length 2 0 R >>\nstream\n%s\nendstream\nendobj\n", payload)

	off2 := buf.Len()
	fmt.Fprintf(buf, "2 0 obj\n%d\nendobj\n", len(payload))

	xrefOff := buf.Len()
	buf.WriteString("xref\n0 3\n0000000000 65535 f \n")
	fmt.Fprintf(buf, "%010d 00000 n \n%010d 00000 n \n", off1, off2)
	buf.WriteString("trailer\n<< /Size 3 /Root 1 0 R >>\nstartxref\n")
	fmt.Fprintf(buf, "%d\n%%%%EOF\n", xrefOff)
	data := buf.Bytes()

	loader, err := (&parser.ObjectLoaderBuilder{}).
		WithReader(bytes.NewReader(data)).
		WithXRef(resolveTable(t, data)).
		Build()
	if err != nil {
		t.Fatalf("build loader: %v", err)
	}

	obj, err := loader.Load(context.Background(), raw.ObjectRef{Num: 1, Gen: 0})
	if err != nil {
		t.Fatalf("load stream: %v", err)
	}
	stm, ok := obj.(*raw.StreamObj)
	if !ok {
		t.Fatalf("expected stream, got %T", obj)
	}
	if string(stm.Data) != payload {
		t.Fatalf("payload mangled: %q", stm.Data)
	}
}

func TestObjectLoaderRejectsHeaderMismatch(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")

	// The xref entry for object 1 points at an object numbered 7.
	off1 := buf.Len()
	buf.WriteString("7 0 obj\n<< /Type /Catalog >>\nendobj\n")

	xrefOff := buf.Len()
	buf.WriteString("xref\n0 2\n0000000000 65535 f \n")
	fmt.Fprintf(buf, "%010d 00000 n \n", off1)
	buf.WriteString("trailer\n<< /Size 2 /Root 1 0 R >>\nstartxref\n")
	fmt.Fprintf(buf, "%d\n%%%%EOF\n", xrefOff)
	data := buf.Bytes()

	strict, err := (&parser.ObjectLoaderBuilder{}).
		WithReader(bytes.NewReader(data)).
		WithXRef(resolveTable(t, data)).
		Build()
	if err != nil {
		t.Fatalf("build loader: %v", err)
	}
	if _, err := strict.Load(context.Background(), raw.ObjectRef{Num: 1, Gen: 0}); err == nil {
		t.Fatal("expected header mismatch to fail without recovery")
	}

	tolerant, err := (&parser.ObjectLoaderBuilder{}).
		WithReader(bytes.NewReader(data)).
		WithXRef(resolveTable(t, data)).
		WithRecovery(actionStrategy{recovery.ActionWarn}).
		Build()
	if err != nil {
		t.Fatalf("build tolerant loader: %v", err)
	}
	obj, err := tolerant.Load(context.Background(), raw.ObjectRef{Num: 1, Gen: 0})
	if err != nil {
		t.Fatalf("tolerant load: %v", err)
	}
	if _, ok := obj.(*raw.DictObj); !ok {
		t.Fatalf("expected dictionary despite mismatch, got %T", obj)
	}
}

func TestLoadIndirectFollowsChain(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")

	off1 := buf.Len()
	buf.WriteString("1 0 obj\n2 0 R\nendobj\n")

	off2 := buf.Len()
	buf.WriteString("2 0 obj\n42\nendobj\n")

	xrefOff := buf.Len()
	buf.WriteString("xref\n0 3\n0000000000 65535 f \n")
	fmt.Fprintf(buf, "%010d 00000 n \n%010d 00000 n \n", off1, off2)
	buf.WriteString("trailer\n<< /Size 3 /Root 1 0 R >>\nstartxref\n")
	fmt.Fprintf(buf, "%d\n%%%%EOF\n", xrefOff)
	data := buf.Bytes()

	loader, err := (&parser.ObjectLoaderBuilder{}).
		WithReader(bytes.NewReader(data)).
		WithXRef(resolveTable(t, data)).
		Build()
	if err != nil {
		t.Fatalf("build loader: %v", err)
	}

	obj, err := loader.LoadIndirect(context.Background(), raw.Ref(1, 0))
	if err != nil {
		t.Fatalf("load indirect: %v", err)
	}
	if n, ok := raw.ToInt(obj); !ok || n != 42 {
		t.Fatalf("expected 42 at end of chain, got %#v", obj)
	}
}

func TestLoadIndirectBoundsReferenceCycles(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")

	off1 := buf.Len()
	buf.WriteString("1 0 obj\n2 0 R\nendobj\n")

	off2 := buf.Len()
	buf.WriteString("2 0 obj\n1 0 R\nendobj\n")

	xrefOff := buf.Len()
	buf.WriteString("xref\n0 3\n0000000000 65535 f \n")
	fmt.Fprintf(buf, "%010d 00000 n \n%010d 00000 n \n", off1, off2)
	buf.WriteString("trailer\n<< /Size 3 /Root 1 0 R >>\nstartxref\n")
	fmt.Fprintf(buf, "%d\n%%%%EOF\n", xrefOff)
	data := buf.Bytes()

	loader, err := (&parser.ObjectLoaderBuilder{}).
		WithReader(bytes.NewReader(data)).
		WithXRef(resolveTable(t, data)).
		WithLimits(security.Limits{MaxIndirectDepth: 4}).
		Build()
	if err != nil {
		t.Fatalf("build loader: %v", err)
	}

	if _, err := loader.LoadIndirect(context.Background(), raw.Ref(1, 0)); err == nil {
		t.Fatal("expected reference cycle to exhaust the depth limit")
	}
}

func TestBuilderValidatesInputs(t *testing.T) {
	if _, err := (&parser.ObjectLoaderBuilder{}).Build(); err == nil {
		t.Fatal("expected build without reader to fail")
	}

	data := buildClassicPDF()
	if _, err := (&parser.ObjectLoaderBuilder{}).WithReader(bytes.NewReader(data)).Build(); err == nil {
		t.Fatal("expected build without xref table to fail")
	}
}
