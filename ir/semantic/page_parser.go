package semantic

import (
	"context"
	"errors"
	"fmt"

	"github.com/lucidpdf/textlayer/ir/raw"
	"github.com/lucidpdf/textlayer/recovery"
)

// letterMediaBox stands in when neither the page nor its ancestors
// declare one.
var letterMediaBox = Rectangle{LLX: 0, LLY: 0, URX: 612, URY: 792}

// BuilderConfig tunes the raw-to-semantic lift. The zero value fails on
// the first malformed page-tree node and falls back to US Letter when a
// MediaBox is missing everywhere.
type BuilderConfig struct {
	Recovery        recovery.Strategy
	DefaultMediaBox Rectangle
}

// NewBuilder returns a Builder for the given configuration.
func NewBuilder(cfg BuilderConfig) Builder {
	if !cfg.DefaultMediaBox.Valid() {
		cfg.DefaultMediaBox = letterMediaBox
	}
	return &builder{cfg: cfg}
}

type builder struct {
	cfg BuilderConfig
}

// inheritedPageProps carries the attributes a Pages node passes down to
// its kids (PDF 7.7.3.4).
type inheritedPageProps struct {
	MediaBox  *Rectangle
	CropBox   *Rectangle
	Rotate    *int
	Resources raw.Object
}

func (b *builder) Build(ctx context.Context, doc *raw.Document) (*Document, error) {
	if doc == nil || doc.Trailer == nil {
		return nil, errors.New("semantic: document has no trailer")
	}
	res := &docResolver{doc: doc}

	rootObj, ok := doc.Trailer.Get("Root")
	if !ok {
		return nil, errors.New("semantic: trailer has no /Root")
	}
	catalog, ok := resolveDict(rootObj, res)
	if !ok {
		return nil, errors.New("semantic: catalog is not a dictionary")
	}

	out := &Document{
		Raw:     doc,
		Catalog: catalog,
		Version: doc.Version,
	}
	if infoObj, ok := doc.Trailer.Get("Info"); ok {
		if info, ok := resolveDict(infoObj, res); ok {
			out.Info = info
		}
	}

	pagesObj, ok := catalog.Get("Pages")
	if !ok {
		return nil, errors.New("semantic: catalog has no /Pages")
	}

	walk := &pageWalk{
		builder:  b,
		ctx:      ctx,
		resolver: res,
		visited:  make(map[raw.ObjectRef]bool),
	}
	if err := walk.descend(pagesObj, inheritedPageProps{}); err != nil {
		return nil, err
	}
	out.Pages = walk.pages
	return out, nil
}

type pageWalk struct {
	builder  *builder
	ctx      context.Context
	resolver Resolver
	visited  map[raw.ObjectRef]bool
	pages    []*Page
}

// descend walks one page-tree node, accumulating leaf pages in document
// order.
func (w *pageWalk) descend(obj raw.Object, inherited inheritedPageProps) error {
	var ref raw.ObjectRef
	if r, ok := raw.ToRef(obj); ok {
		if w.visited[r] {
			return fmt.Errorf("semantic: page tree cycle through object %d", r.Num)
		}
		w.visited[r] = true
		ref = r
		resolved, err := w.resolver.Resolve(r)
		if err != nil {
			return err
		}
		obj = resolved
	}

	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return fmt.Errorf("semantic: page tree node is %T, not a dictionary", obj)
	}

	next := inherited
	if mb, ok := dict.Get("MediaBox"); ok {
		if rect, ok := parseRectangle(mb, w.resolver); ok {
			next.MediaBox = &rect
		}
	}
	if cb, ok := dict.Get("CropBox"); ok {
		if rect, ok := parseRectangle(cb, w.resolver); ok {
			next.CropBox = &rect
		}
	}
	if rot, ok := dict.Get("Rotate"); ok {
		if v, ok := raw.ToInt(resolveObj(rot, w.resolver)); ok {
			deg := int(v)
			next.Rotate = &deg
		}
	}
	if res, ok := dict.Get("Resources"); ok {
		next.Resources = res
	}

	if isLeafPage(dict) {
		page := w.builder.buildPage(dict, ref, w.resolver, next)
		page.Index = len(w.pages)
		w.pages = append(w.pages, page)
		return nil
	}

	kidsObj, ok := dict.Get("Kids")
	if !ok {
		return fmt.Errorf("semantic: pages node %d has no /Kids", ref.Num)
	}
	kids, ok := resolveArray(kidsObj, w.resolver)
	if !ok {
		return fmt.Errorf("semantic: /Kids of node %d is not an array", ref.Num)
	}
	for i := 0; i < kids.Len(); i++ {
		kid, _ := kids.Get(i)
		if err := w.descend(kid, next); err != nil {
			if w.builder.skipNode(w.ctx, err, ref) {
				continue
			}
			return err
		}
	}
	return nil
}

// skipNode asks the recovery strategy whether a broken subtree should be
// dropped from the page list.
func (b *builder) skipNode(ctx context.Context, err error, ref raw.ObjectRef) bool {
	if b.cfg.Recovery == nil {
		return false
	}
	action := b.cfg.Recovery.OnError(ctx, err, recovery.Location{
		ObjectNum: ref.Num,
		ObjectGen: ref.Gen,
		Component: "semantic:pages",
	})
	return action == recovery.ActionSkip || action == recovery.ActionFix || action == recovery.ActionWarn
}

// isLeafPage decides leaf versus interior node. Nodes that omit /Type are
// classified by the presence of /Kids.
func isLeafPage(dict *raw.DictObj) bool {
	if typ, ok := dict.Get("Type"); ok {
		if name, ok := raw.ToName(typ); ok {
			return name == "Page"
		}
	}
	_, hasKids := dict.Get("Kids")
	return !hasKids
}

func (b *builder) buildPage(dict *raw.DictObj, ref raw.ObjectRef, res Resolver, props inheritedPageProps) *Page {
	page := &Page{Ref: ref, UserUnit: 1}

	if props.MediaBox != nil {
		page.MediaBox = props.MediaBox.Normalized()
	} else {
		page.MediaBox = b.cfg.DefaultMediaBox
	}
	if props.CropBox != nil {
		page.CropBox = props.CropBox.Normalized()
	} else {
		page.CropBox = page.MediaBox
	}
	if props.Rotate != nil {
		page.Rotate = *props.Rotate
	}

	// props.Resources already reflects the page's own entry when it has
	// one; inherited means the leaf dict itself carries none.
	page.Resources = props.Resources
	if page.Resources != nil {
		_, hasOwn := dict.Get("Resources")
		page.ResourcesInherited = !hasOwn
	}

	if uu, ok := dict.Get("UserUnit"); ok {
		if v, ok := raw.ToFloat(resolveObj(uu, res)); ok && v > 0 {
			page.UserUnit = v
		}
	}

	if contents, ok := dict.Get("Contents"); ok {
		page.Contents = collectContents(contents, res)
	}
	return page
}

// collectContents flattens /Contents into an ordered list of stream
// references (or direct streams). One level of indirection to an array is
// resolved; unresolvable entries are dropped rather than failing the
// page, matching how viewers treat dangling content refs.
func collectContents(obj raw.Object, res Resolver) []raw.Object {
	if ref, ok := raw.ToRef(obj); ok {
		resolved, err := res.Resolve(ref)
		if err != nil {
			return nil
		}
		if arr, ok := resolved.(*raw.ArrayObj); ok {
			return contentItems(arr)
		}
		// Reference straight to a stream: keep the reference so later
		// stages can address the object.
		return []raw.Object{obj}
	}
	if arr, ok := obj.(*raw.ArrayObj); ok {
		return contentItems(arr)
	}
	if _, ok := obj.(*raw.StreamObj); ok {
		return []raw.Object{obj}
	}
	return nil
}

func contentItems(arr *raw.ArrayObj) []raw.Object {
	var items []raw.Object
	for i := 0; i < arr.Len(); i++ {
		item, _ := arr.Get(i)
		switch item.(type) {
		case raw.RefObj, *raw.StreamObj:
			items = append(items, item)
		}
	}
	return items
}

func resolveObj(obj raw.Object, res Resolver) raw.Object {
	if ref, ok := raw.ToRef(obj); ok {
		if resolved, err := res.Resolve(ref); err == nil {
			return resolved
		}
	}
	return obj
}

func resolveDict(obj raw.Object, res Resolver) (*raw.DictObj, bool) {
	dict, ok := resolveObj(obj, res).(*raw.DictObj)
	return dict, ok
}

func resolveArray(obj raw.Object, res Resolver) (*raw.ArrayObj, bool) {
	arr, ok := resolveObj(obj, res).(*raw.ArrayObj)
	return arr, ok
}

func parseRectangle(obj raw.Object, res Resolver) (Rectangle, bool) {
	arr, ok := resolveArray(obj, res)
	if !ok || arr.Len() < 4 {
		return Rectangle{}, false
	}
	var vals [4]float64
	for i := 0; i < 4; i++ {
		item, _ := arr.Get(i)
		v, ok := raw.ToFloat(resolveObj(item, res))
		if !ok {
			return Rectangle{}, false
		}
		vals[i] = v
	}
	return Rectangle{LLX: vals[0], LLY: vals[1], URX: vals[2], URY: vals[3]}, true
}

// docResolver resolves references against the in-memory object map.
type docResolver struct {
	doc *raw.Document
}

func (r *docResolver) Resolve(ref raw.ObjectRef) (raw.Object, error) {
	if obj, ok := r.doc.Objects[ref]; ok {
		return obj, nil
	}
	return nil, fmt.Errorf("semantic: object %d %d not found", ref.Num, ref.Gen)
}
