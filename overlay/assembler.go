package overlay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/lucidpdf/textlayer/ir/raw"
	"github.com/lucidpdf/textlayer/ir/semantic"
	"github.com/lucidpdf/textlayer/observability"
	"github.com/lucidpdf/textlayer/ocr"
	"github.com/lucidpdf/textlayer/parser"
	"github.com/lucidpdf/textlayer/recovery"
	"github.com/lucidpdf/textlayer/writer"
)

// Engine embeds invisible text layers into scanned documents, turning
// flat page images into selectable, searchable text.
type Engine struct {
	cfg   Config
	sizer Sizer
}

func NewEngine(cfg Config) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{cfg: cfg, sizer: NewSizer(cfg)}
}

// Result pairs the rewritten document with the embedding report.
type Result struct {
	Output []byte
	Report Report
}

// Process embeds recognized words into document and returns the
// rewritten bytes. pageWords is keyed by zero-based page index; pages
// absent from it pass through untouched.
//
// Unparseable or encrypted input fails with ErrMalformedInput, a
// document without pages with ErrEmptyDocument. Word and page problems
// are skipped and reported unless Strict promotes them to failures.
func (e *Engine) Process(ctx context.Context, document []byte, pageWords map[int]ocr.PageWords) (*Result, error) {
	sem, err := e.parse(ctx, document)
	if err != nil {
		return nil, err
	}
	if len(sem.Pages) == 0 {
		return nil, ErrEmptyDocument
	}

	// Ascending page order keeps reports and object numbering stable
	// regardless of map iteration order.
	indexes := make([]int, 0, len(pageWords))
	for idx := range pageWords {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	outcomes := make([]*pageOutcome, len(indexes))
	if e.cfg.Workers > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.cfg.Workers)
		for i, idx := range indexes {
			i, idx := i, idx
			g.Go(func() error {
				outcomes[i] = e.buildPage(gctx, sem, idx, pageWords[idx])
				if e.cfg.Strict && outcomes[i].err != nil {
					return outcomes[i].err
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i, idx := range indexes {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			outcomes[i] = e.buildPage(ctx, sem, idx, pageWords[idx])
			if e.cfg.Strict && outcomes[i].err != nil {
				return nil, outcomes[i].err
			}
		}
	}

	var report Report
	var fontRef raw.ObjectRef
	fontReady := false
	m := &merger{doc: sem.Raw, shared: sem.SharedContents(), debug: e.cfg.Debug}

	for _, oc := range outcomes {
		if oc.err != nil {
			e.cfg.Logger.Warn("skipping page",
				observability.Int("page", oc.page),
				observability.Error("reason", oc.err),
			)
			report.add(PageReport{Page: oc.page, SkippedPage: true, Reason: oc.err.Error()})
			continue
		}
		if len(oc.layer.Instructions) == 0 {
			report.add(oc.report)
			continue
		}

		if !fontReady {
			// All encoding is done by now, so the font's ToUnicode
			// data is complete before it is written out.
			ref, err := writer.EmbedFont(sem.Raw, e.cfg.Font)
			if err != nil {
				return nil, fmt.Errorf("materialize overlay font: %w", err)
			}
			fontRef = ref
			fontReady = true
		}

		if err := m.merge(sem.Pages[oc.page], oc.layer, fontRef); err != nil {
			if e.cfg.Strict {
				return nil, err
			}
			e.cfg.Logger.Warn("skipping page",
				observability.Int("page", oc.page),
				observability.Error("reason", err),
			)
			report.add(PageReport{Page: oc.page, SkippedPage: true, Reason: err.Error()})
			continue
		}

		e.cfg.Logger.Debug("embedded page layer",
			observability.Int("page", oc.page),
			observability.Int("words", oc.report.Embedded),
		)
		report.add(oc.report)
	}

	out, err := writer.Serialize(sem.Raw)
	if err != nil {
		return nil, fmt.Errorf("serialize document: %w", err)
	}
	return &Result{Output: out, Report: report}, nil
}

type pageOutcome struct {
	page   int
	layer  *Layer
	report PageReport
	err    error
}

func (e *Engine) buildPage(ctx context.Context, sem *semantic.Document, idx int, words ocr.PageWords) *pageOutcome {
	oc := &pageOutcome{page: idx}
	if err := ctx.Err(); err != nil {
		oc.err = err
		return oc
	}
	if idx < 0 || idx >= len(sem.Pages) {
		oc.err = fmt.Errorf("%w: words reference page %d of a %d-page document",
			ErrInvalidPageMetadata, idx, len(sem.Pages))
		return oc
	}
	oc.layer, oc.report, oc.err = buildLayer(sem.Pages[idx], words, e.sizer, e.cfg.Font, e.cfg.Logger)
	return oc
}

func (e *Engine) parse(ctx context.Context, document []byte) (*semantic.Document, error) {
	if len(document) == 0 {
		return nil, fmt.Errorf("%w: no bytes", ErrMalformedInput)
	}

	var strategy recovery.Strategy = &recovery.LenientStrategy{}
	if e.cfg.Strict {
		strategy = &recovery.StrictStrategy{}
	}

	p := parser.NewDocumentParser(parser.Config{Recovery: strategy, Limits: e.cfg.Limits})
	rawDoc, err := p.Parse(ctx, bytes.NewReader(document))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if errors.Is(err, parser.ErrEncrypted) {
			return nil, fmt.Errorf("%w: document is encrypted", ErrMalformedInput)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	sem, err := semantic.NewBuilder(semantic.BuilderConfig{Recovery: strategy}).Build(ctx, rawDoc)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return sem, nil
}
