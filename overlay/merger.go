package overlay

import (
	"bytes"
	"fmt"

	"github.com/lucidpdf/textlayer/filters"
	"github.com/lucidpdf/textlayer/ir/raw"
	"github.com/lucidpdf/textlayer/ir/semantic"
)

// merger stitches finished layers into the document's object graph. The
// page's existing content is never parsed or rewritten: the layer rides
// in as one more stream in the Contents array, wrapped in q..Q so state
// left dangling by sloppy producers cannot bleed into it.
type merger struct {
	doc    *raw.Document
	shared map[raw.ObjectRef][]int
	debug  bool
}

// merge appends the rendered layer to one page. The font behind fontRef
// is registered in the page's resources under a collision-free name.
func (m *merger) merge(page *semantic.Page, layer *Layer, fontRef raw.ObjectRef) error {
	pageDict, err := m.pageDict(page)
	if err != nil {
		return err
	}
	if err := m.checkContents(page); err != nil {
		return err
	}

	fontName, err := m.registerFont(pageDict, page, fontRef)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteString("q\n")
	buf.Write(layer.Content(fontName, m.debug))
	buf.WriteString("Q\n")

	encoded, err := filters.FlateEncode(buf.Bytes())
	if err != nil {
		return fmt.Errorf("encode layer stream: %w", err)
	}
	dict := raw.Dict()
	dict.Set("Filter", raw.NameLiteral("FlateDecode"))
	dict.Set("Length", raw.NumberInt(int64(len(encoded))))
	streamRef := m.doc.Add(raw.NewStream(dict, encoded))

	contents := raw.NewArray()
	for _, entry := range page.Contents {
		contents.Append(entry)
	}
	contents.Append(raw.RefObj{R: streamRef})
	pageDict.Set("Contents", contents)

	return nil
}

// pageDict locates the mutable page dictionary. Pages without their own
// indirect object cannot be extended in place.
func (m *merger) pageDict(page *semantic.Page) (*raw.DictObj, error) {
	if (page.Ref == raw.ObjectRef{}) {
		return nil, fmt.Errorf("%w: page %d has no indirect dictionary", ErrUnsupportedPageStructure, page.Index)
	}
	obj, ok := m.doc.Objects[page.Ref]
	if !ok {
		return nil, fmt.Errorf("%w: page object %s missing", ErrUnsupportedPageStructure, page.Ref)
	}
	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return nil, fmt.Errorf("%w: page object %s is %T", ErrUnsupportedPageStructure, page.Ref, obj)
	}
	return dict, nil
}

// checkContents refuses pages whose content streams are aliased by other
// pages: appending to them would paint the overlay everywhere.
func (m *merger) checkContents(page *semantic.Page) error {
	for _, ref := range page.ContentRefs() {
		if pages, ok := m.shared[ref]; ok {
			return fmt.Errorf("%w: content stream %s shared by pages %v", ErrUnsupportedPageStructure, ref, pages)
		}
	}
	return nil
}

// registerFont materializes a page-local resource dictionary and binds
// the overlay font under the first free Fn name.
func (m *merger) registerFont(pageDict *raw.DictObj, page *semantic.Page, fontRef raw.ObjectRef) (string, error) {
	resources := m.ownResources(pageDict, page)

	var fontDict *raw.DictObj
	if cur, ok := resources.Get("Font"); ok {
		resolved, ok := m.doc.ResolveDict(cur)
		if !ok {
			return "", fmt.Errorf("%w: /Font resource is not a dictionary", ErrUnsupportedPageStructure)
		}
		fontDict = resolved.Clone()
	} else {
		fontDict = raw.Dict()
	}
	resources.Set("Font", fontDict)

	for i := 0; ; i++ {
		name := fmt.Sprintf("F%d", i)
		if _, exists := fontDict.Get(name); !exists {
			fontDict.Set(name, raw.RefObj{R: fontRef})
			return name, nil
		}
	}
}

// ownResources gives the page a resource dictionary of its own.
// Inherited or indirect dictionaries are cloned first: they may be
// shared, and a font added for this page must not appear on siblings.
func (m *merger) ownResources(pageDict *raw.DictObj, page *semantic.Page) *raw.DictObj {
	if cur, ok := pageDict.Get("Resources"); ok {
		if direct, ok := cur.(*raw.DictObj); ok {
			return direct
		}
		if resolved, ok := m.doc.ResolveDict(cur); ok {
			clone := resolved.Clone()
			pageDict.Set("Resources", clone)
			return clone
		}
	}
	if page.Resources != nil {
		if resolved, ok := m.doc.ResolveDict(page.Resources); ok {
			clone := resolved.Clone()
			pageDict.Set("Resources", clone)
			return clone
		}
	}
	fresh := raw.Dict()
	pageDict.Set("Resources", fresh)
	return fresh
}
