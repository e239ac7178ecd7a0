// Package extractor recovers text from finished documents. The CLI and
// the test suite use it to confirm that an embedded layer actually made
// its page searchable, so the walk favors tolerance over completeness:
// unreadable streams and unknown operators are skipped, never fatal.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lucidpdf/textlayer/contentstream"
	"github.com/lucidpdf/textlayer/filters"
	"github.com/lucidpdf/textlayer/ir/raw"
	"github.com/lucidpdf/textlayer/ir/semantic"
	"github.com/lucidpdf/textlayer/parser"
	"github.com/lucidpdf/textlayer/scanner"
	"github.com/lucidpdf/textlayer/security"
)

// PageText is the recovered text of one page.
type PageText struct {
	Page    int
	Content string
}

// Extractor walks show-text operators across a document's pages.
type Extractor struct {
	doc      *raw.Document
	pages    []*semantic.Page
	limits   security.Limits
	pipeline *filters.Pipeline
	fonts    map[raw.ObjectRef]*fontDecoder
}

// New builds an extractor over an already-parsed document.
func New(sem *semantic.Document, limits security.Limits) *Extractor {
	limits = limits.Normalized()
	return &Extractor{
		doc:    sem.Raw,
		pages:  sem.Pages,
		limits: limits,
		pipeline: filters.NewDefaultPipeline(filters.Limits{
			MaxDecompressedSize: limits.MaxDecompressedSize,
			MaxDecodeTime:       limits.MaxDecodeTime,
		}),
		fonts: make(map[raw.ObjectRef]*fontDecoder),
	}
}

// FromBytes parses pdf and returns an extractor over it.
func FromBytes(ctx context.Context, pdf []byte) (*Extractor, error) {
	if len(pdf) == 0 {
		return nil, errors.New("extractor: empty document")
	}
	doc, err := parser.NewDocumentParser(parser.Config{}).Parse(ctx, bytes.NewReader(pdf))
	if err != nil {
		return nil, fmt.Errorf("extractor: parse: %w", err)
	}
	sem, err := semantic.NewBuilder(semantic.BuilderConfig{}).Build(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("extractor: pages: %w", err)
	}
	return New(sem, security.DefaultLimits()), nil
}

// ExtractText returns per-page text in paint order. Pages with no
// recoverable text are omitted.
func (e *Extractor) ExtractText(ctx context.Context) ([]PageText, error) {
	var out []PageText
	for _, page := range e.pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		txt := strings.TrimSpace(e.pageText(ctx, page))
		if txt == "" {
			continue
		}
		out = append(out, PageText{Page: page.Index, Content: txt})
	}
	return out, nil
}

func (e *Extractor) pageText(ctx context.Context, page *semantic.Page) string {
	var combined bytes.Buffer
	for _, obj := range page.Contents {
		data, ok := e.streamBytes(ctx, obj)
		if !ok {
			continue
		}
		combined.Write(data)
		combined.WriteByte('\n')
	}
	if combined.Len() == 0 {
		return ""
	}
	var sb strings.Builder
	e.walk(ctx, combined.Bytes(), page.Resources, 0, &sb)
	return sb.String()
}

// walk reads one decoded content stream, appending shown text to out.
// Form XObjects recurse with their own resources up to MaxXObjectDepth.
func (e *Extractor) walk(ctx context.Context, data []byte, resources raw.Object, depth int, out *strings.Builder) {
	if depth > e.limits.MaxXObjectDepth {
		return
	}
	fonts := e.fontsFor(ctx, resources)
	r := contentstream.NewReader(data, scanner.Config{})
	var current *fontDecoder
	for {
		op, err := r.Next()
		if err != nil {
			return
		}
		last := len(op.Operands) - 1
		switch op.Operator {
		case "Tf":
			if name, ok := raw.ToName(op.Operand(0)); ok {
				current = fonts[name]
			}
		case "Tj":
			writeShown(out, op.Operand(last), current, false)
		case "'", "\"":
			writeShown(out, op.Operand(last), current, true)
		case "TJ":
			writeShownArray(out, op.Operand(last), current)
		case "Td", "TD":
			if dy, ok := op.Float(1); ok && dy != 0 {
				lineBreak(out)
			}
		case "T*", "BT":
			lineBreak(out)
		case "Do":
			e.walkForm(ctx, op.Operand(0), resources, depth, out)
		}
	}
}

func (e *Extractor) walkForm(ctx context.Context, nameObj, resources raw.Object, depth int, out *strings.Builder) {
	name, ok := raw.ToName(nameObj)
	if !ok {
		return
	}
	resDict, ok := e.doc.ResolveDict(resources)
	if !ok {
		return
	}
	xobjsObj, ok := resDict.Get("XObject")
	if !ok {
		return
	}
	xobjs, ok := e.doc.ResolveDict(xobjsObj)
	if !ok {
		return
	}
	entry, ok := xobjs.Get(name)
	if !ok {
		return
	}
	stm, ok := e.doc.Resolve(entry).(*raw.StreamObj)
	if !ok {
		return
	}
	sub, _ := stm.Dict.Get("Subtype")
	if n, ok := raw.ToName(sub); !ok || n != "Form" {
		return
	}
	data, ok := e.decode(ctx, stm)
	if !ok {
		return
	}
	formRes := resources
	if r, ok := stm.Dict.Get("Resources"); ok {
		formRes = r
	}
	e.walk(ctx, data, formRes, depth+1, out)
}

func writeShown(out *strings.Builder, obj raw.Object, dec *fontDecoder, breakFirst bool) {
	s, ok := obj.(raw.String)
	if !ok {
		return
	}
	text := dec.decode(s.Value())
	if text == "" {
		return
	}
	if breakFirst {
		lineBreak(out)
	}
	out.WriteString(text)
}

func writeShownArray(out *strings.Builder, obj raw.Object, dec *fontDecoder) {
	arr, ok := obj.(*raw.ArrayObj)
	if !ok {
		return
	}
	var line strings.Builder
	for _, item := range arr.Items {
		if s, ok := item.(raw.String); ok {
			line.WriteString(dec.decode(s.Value()))
		}
	}
	out.WriteString(line.String())
}

func lineBreak(out *strings.Builder) {
	if out.Len() > 0 {
		out.WriteByte('\n')
	}
}

func (e *Extractor) streamBytes(ctx context.Context, obj raw.Object) ([]byte, bool) {
	stm, ok := e.doc.Resolve(obj).(*raw.StreamObj)
	if !ok {
		return nil, false
	}
	return e.decode(ctx, stm)
}

func (e *Extractor) decode(ctx context.Context, stm *raw.StreamObj) ([]byte, bool) {
	names, params := filters.ExtractFilters(e.doc, stm.Dict)
	data, err := e.pipeline.Decode(ctx, stm.Data, names, params)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (e *Extractor) fontsFor(ctx context.Context, resources raw.Object) map[string]*fontDecoder {
	resDict, ok := e.doc.ResolveDict(resources)
	if !ok {
		return nil
	}
	fontsObj, ok := resDict.Get("Font")
	if !ok {
		return nil
	}
	fontsDict, ok := e.doc.ResolveDict(fontsObj)
	if !ok {
		return nil
	}
	decoders := make(map[string]*fontDecoder, fontsDict.Len())
	for _, name := range fontsDict.Keys() {
		obj, _ := fontsDict.Get(name)
		if dec := e.fontDecoderFor(ctx, obj); dec != nil {
			decoders[name] = dec
		}
	}
	return decoders
}

func (e *Extractor) fontDecoderFor(ctx context.Context, obj raw.Object) *fontDecoder {
	ref, isRef := obj.(raw.RefObj)
	if isRef {
		if dec, ok := e.fonts[ref.Ref()]; ok {
			return dec
		}
	}
	dec := e.buildFontDecoder(ctx, obj)
	if isRef {
		e.fonts[ref.Ref()] = dec
	}
	return dec
}

func (e *Extractor) buildFontDecoder(ctx context.Context, obj raw.Object) *fontDecoder {
	dict, ok := e.doc.ResolveDict(obj)
	if !ok {
		return nil
	}
	dec := &fontDecoder{}
	if tu, ok := dict.Get("ToUnicode"); ok {
		if stm, ok := e.doc.Resolve(tu).(*raw.StreamObj); ok {
			if data, ok := e.decode(ctx, stm); ok {
				dec.cmap = parseToUnicodeCMap(data)
			}
		}
	}
	return dec
}

// Missing reports, per page, the expected words whose text does not
// appear in that page's extracted content. Matching is a
// case-insensitive substring check.
func Missing(pages []PageText, want map[int][]string) map[int][]string {
	byPage := make(map[int]string, len(pages))
	for _, pt := range pages {
		byPage[pt.Page] = strings.ToLower(pt.Content)
	}
	missing := make(map[int][]string)
	for page, words := range want {
		text := byPage[page]
		for _, w := range words {
			w = strings.TrimSpace(w)
			if w == "" {
				continue
			}
			if !strings.Contains(text, strings.ToLower(w)) {
				missing[page] = append(missing[page], w)
			}
		}
	}
	return missing
}
