// Package parser turns the bytes of a PDF file into a raw object graph.
// It resolves the cross-reference data, loads every reachable indirect
// object, and leaves interpretation of the graph to ir/semantic.
package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/lucidpdf/textlayer/filters"
	"github.com/lucidpdf/textlayer/ir/raw"
	"github.com/lucidpdf/textlayer/recovery"
	"github.com/lucidpdf/textlayer/security"
	"github.com/lucidpdf/textlayer/xref"
)

// ErrEncrypted reports a file protected by an /Encrypt dictionary. This
// engine does not decrypt; callers reject such files up front. The
// document returned alongside carries only trailer and version.
var ErrEncrypted = errors.New("parser: document is encrypted")

// Config tunes a DocumentParser. The zero value parses strictly with
// default limits.
type Config struct {
	// Recovery decides how structural damage is handled. Nil fails on
	// the first problem.
	Recovery recovery.Strategy

	// XRef overrides cross-reference resolution settings. Zero fields
	// are filled from Recovery and Limits.
	XRef xref.ResolverConfig

	// Limits bound resource use. Zero fields take defaults.
	Limits security.Limits

	// Cache receives every loaded object. Optional.
	Cache Cache
}

// DocumentParser reads complete documents. Safe for concurrent use; each
// Parse call builds its own loader state.
type DocumentParser struct {
	cfg Config
}

func NewDocumentParser(cfg Config) *DocumentParser { return &DocumentParser{cfg: cfg} }

// Parse loads the document reachable from r's cross-reference data. With
// a permissive recovery strategy, objects that cannot be loaded are
// dropped from the result instead of failing the parse.
func (p *DocumentParser) Parse(ctx context.Context, r io.ReaderAt) (*raw.Document, error) {
	limits := p.cfg.Limits.Normalized()
	if limits.MaxParseTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, limits.MaxParseTime)
		defer cancel()
	}

	resolver := xref.NewResolver(p.xrefConfig(limits))
	table, err := resolver.Resolve(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("parser: resolve cross-reference data: %w", err)
	}

	doc := raw.NewDocument()
	doc.Version = detectHeaderVersion(r)
	trailer, _ := resolver.Trailer().(*raw.DictObj)
	if trailer != nil {
		doc.Trailer = trailer
		if _, ok := trailer.Get("Encrypt"); ok {
			doc.Encrypted = true
			return doc, ErrEncrypted
		}
	}

	loader, err := (&ObjectLoaderBuilder{}).
		WithReader(r).
		WithXRef(table).
		WithLimits(limits).
		WithCache(p.cfg.Cache).
		WithRecovery(p.cfg.Recovery).
		Build()
	if err != nil {
		return nil, err
	}

	for _, num := range table.Objects() {
		if num == 0 {
			continue
		}
		gen := 0
		if _, g, ok := table.Lookup(num); ok {
			gen = g
		}
		ref := raw.ObjectRef{Num: num, Gen: gen}
		obj, err := loader.Load(ctx, ref)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if p.act(ctx, err, ref) == recovery.ActionFail {
				return nil, fmt.Errorf("parser: load object %d %d: %w", ref.Num, ref.Gen, err)
			}
			continue
		}
		doc.Objects[ref] = obj
	}
	return doc, nil
}

func (p *DocumentParser) xrefConfig(limits security.Limits) xref.ResolverConfig {
	cfg := p.cfg.XRef
	if cfg.Recovery == nil {
		cfg.Recovery = p.cfg.Recovery
	}
	if cfg.MaxXRefDepth == 0 {
		cfg.MaxXRefDepth = limits.MaxXRefDepth
	}
	if cfg.DecodeLimits == (filters.Limits{}) {
		cfg.DecodeLimits = filters.Limits{
			MaxDecompressedSize: limits.MaxDecompressedSize,
			MaxDecodeTime:       limits.MaxDecodeTime,
		}
	}
	return cfg
}

func (p *DocumentParser) act(ctx context.Context, err error, ref raw.ObjectRef) recovery.Action {
	if p.cfg.Recovery == nil {
		return recovery.ActionFail
	}
	return p.cfg.Recovery.OnError(ctx, err, recovery.Location{
		ObjectNum: ref.Num,
		ObjectGen: ref.Gen,
		Component: "parser:document",
	})
}

// detectHeaderVersion reads the %PDF-x.y marker. Some producers prepend
// junk bytes, so the marker is searched for within the head of the file
// rather than required at offset zero.
func detectHeaderVersion(r io.ReaderAt) string {
	head := make([]byte, 64)
	n, _ := r.ReadAt(head, 0)
	head = head[:n]

	i := bytes.Index(head, []byte("%PDF-"))
	if i < 0 {
		return ""
	}
	v := head[i+5:]
	end := 0
	for end < len(v) && (v[end] == '.' || (v[end] >= '0' && v[end] <= '9')) {
		end++
	}
	return string(v[:end])
}
