// Package semantic lifts a raw object graph into the page model the rest
// of the pipeline works with: a flat page list with resolved geometry and
// inheritance applied, while content and resources stay as raw references
// so later stages can rewrite the document without re-serializing
// untouched objects.
package semantic

import (
	"context"
	"math"

	"github.com/lucidpdf/textlayer/ir/raw"
)

// Document is the semantic view of a parsed PDF.
type Document struct {
	Raw     *raw.Document
	Catalog *raw.DictObj
	Info    *raw.DictObj
	Pages   []*Page
	Version string
}

// Page models a single page with inheritance already applied.
type Page struct {
	Index    int
	Ref      raw.ObjectRef // zero when the page dict sat inline in the tree
	MediaBox Rectangle
	CropBox  Rectangle

	// Rotate carries the /Rotate value as written. Consumers normalize
	// and validate it; the parse keeps whatever the file said.
	Rotate int

	UserUnit float64

	// Contents holds the page's content entries in paint order: usually
	// raw.RefObj values, occasionally a direct raw.StreamObj from sloppy
	// producers.
	Contents []raw.Object

	// Resources is the page's own or inherited resource dictionary,
	// unresolved. ResourcesInherited marks the inherited case: writers
	// must copy before mutating or siblings change too.
	Resources          raw.Object
	ResourcesInherited bool
}

// ContentRefs returns the object references among the page's content
// entries, skipping direct streams.
func (p *Page) ContentRefs() []raw.ObjectRef {
	var refs []raw.ObjectRef
	for _, obj := range p.Contents {
		if ref, ok := raw.ToRef(obj); ok {
			refs = append(refs, ref)
		}
	}
	return refs
}

// SharedContents maps every content stream reference used by more than
// one page to the indexes of the pages sharing it.
func (d *Document) SharedContents() map[raw.ObjectRef][]int {
	usage := make(map[raw.ObjectRef][]int)
	for _, page := range d.Pages {
		for _, ref := range page.ContentRefs() {
			usage[ref] = append(usage[ref], page.Index)
		}
	}
	shared := make(map[raw.ObjectRef][]int)
	for ref, pages := range usage {
		if len(pages) > 1 {
			shared[ref] = pages
		}
	}
	return shared
}

// Rectangle is a PDF rectangle in default user space units.
type Rectangle struct {
	LLX, LLY, URX, URY float64
}

func (r Rectangle) Width() float64  { return math.Abs(r.URX - r.LLX) }
func (r Rectangle) Height() float64 { return math.Abs(r.URY - r.LLY) }

// Normalized returns the rectangle with corners swapped so the lower-left
// corner really is lower-left. Files written with flipped corners are
// legal (PDF 7.9.5).
func (r Rectangle) Normalized() Rectangle {
	if r.LLX > r.URX {
		r.LLX, r.URX = r.URX, r.LLX
	}
	if r.LLY > r.URY {
		r.LLY, r.URY = r.URY, r.LLY
	}
	return r
}

// Valid reports whether the rectangle has positive area and finite
// coordinates.
func (r Rectangle) Valid() bool {
	for _, v := range []float64{r.LLX, r.LLY, r.URX, r.URY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return r.Width() > 0 && r.Height() > 0
}

// Resolver gives the page-tree walk access to indirect objects.
type Resolver interface {
	Resolve(ref raw.ObjectRef) (raw.Object, error)
}

// Builder lifts raw documents into the semantic model.
type Builder interface {
	Build(ctx context.Context, doc *raw.Document) (*Document, error)
}
