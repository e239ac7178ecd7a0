package raw

import (
	"context"
	"fmt"
	"io"
)

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is the base interface for all raw PDF objects.
type Object interface {
	Type() string
}

// Dictionary represents a PDF dictionary object.
type Dictionary interface {
	Object
	Get(key string) (Object, bool)
	Set(key string, value Object)
	Keys() []string
	Len() int
}

// Array represents a PDF array object.
type Array interface {
	Object
	Get(index int) (Object, bool)
	Len() int
	Append(obj Object)
}

// Stream represents a PDF stream whose data is kept exactly as read
// (still encoded); decoding is the filters package's concern.
type Stream interface {
	Object
	Dictionary() Dictionary
	RawData() []byte
	Length() int64
}

// Name represents a PDF name object.
type Name interface {
	Object
	Value() string
}

// String represents a PDF string (literal or hex).
type String interface {
	Object
	Value() []byte
	IsHex() bool
}

// Number represents a PDF numeric value.
type Number interface {
	Object
	Int() int64
	Float() float64
	IsInteger() bool
}

// Boolean represents a PDF boolean.
type Boolean interface {
	Object
	Value() bool
}

// Null represents the PDF null object.
type Null interface{ Object }

// Reference represents an indirect object reference.
type Reference interface {
	Object
	Ref() ObjectRef
}

// Document is the root container for raw PDF objects.
type Document struct {
	Objects   map[ObjectRef]Object
	Trailer   *DictObj
	Version   string // e.g., "1.7"
	Encrypted bool
}

// NewDocument returns an empty document ready for population.
func NewDocument() *Document {
	return &Document{Objects: make(map[ObjectRef]Object), Trailer: Dict()}
}

// MaxObjectNumber returns the highest allocated object number, 0 when empty.
func (d *Document) MaxObjectNumber() int {
	max := 0
	for ref := range d.Objects {
		if ref.Num > max {
			max = ref.Num
		}
	}
	return max
}

// Add stores obj under the next free object number and returns its
// reference.
func (d *Document) Add(obj Object) ObjectRef {
	ref := ObjectRef{Num: d.MaxObjectNumber() + 1}
	d.Objects[ref] = obj
	return ref
}

// resolveDepthLimit bounds reference chains; real files nest two or three
// levels at most, loops are malformed input.
const resolveDepthLimit = 32

// Resolve follows indirect references until a direct object is reached.
// Unresolvable or cyclic references yield NullObj.
func (d *Document) Resolve(o Object) Object {
	for depth := 0; depth < resolveDepthLimit; depth++ {
		ref, ok := o.(RefObj)
		if !ok {
			return o
		}
		next, ok := d.Objects[ref.Ref()]
		if !ok {
			return NullObj{}
		}
		o = next
	}
	return NullObj{}
}

// ResolveDict resolves o and returns it as a dictionary when possible.
// Streams expose their dictionaries, matching how the page tree refers
// to stream-backed nodes.
func (d *Document) ResolveDict(o Object) (*DictObj, bool) {
	switch v := d.Resolve(o).(type) {
	case *DictObj:
		return v, true
	case *StreamObj:
		return v.Dict, true
	default:
		return nil, false
	}
}

// ResolveArray resolves o and returns it as an array when possible.
func (d *Document) ResolveArray(o Object) (*ArrayObj, bool) {
	arr, ok := d.Resolve(o).(*ArrayObj)
	return arr, ok
}

// Parser converts bytes into a raw.Document.
type Parser interface {
	Parse(ctx context.Context, r io.ReaderAt) (*Document, error)
}
