// Package security bounds the resources a single document may consume
// while being read. Scanned files arrive from untrusted sources; the
// limits here keep a crafted file from turning one request into a zip
// bomb or an unbounded reference walk.
package security

import "time"

// Limits caps parsing and decoding work. Zero values mean "use default";
// call Normalized before enforcing.
type Limits struct {
	// MaxDecompressedSize caps a stream's decoded size.
	MaxDecompressedSize int64

	// MaxIndirectDepth caps reference chains followed during resolution.
	MaxIndirectDepth int

	// MaxXRefDepth caps the Prev chain across incremental updates.
	MaxXRefDepth int

	// MaxXObjectDepth caps form XObject nesting during content walks.
	MaxXObjectDepth int

	// MaxArraySize caps elements per array.
	MaxArraySize int

	// MaxDictSize caps entries per dictionary.
	MaxDictSize int

	// MaxStringLength caps a single string object, in bytes.
	MaxStringLength int64

	// MaxStreamLength caps a stream's raw, still encoded size.
	MaxStreamLength int64

	// MaxDecodeTime caps filter work per stream.
	MaxDecodeTime time.Duration

	// MaxParseTime caps one full document parse.
	MaxParseTime time.Duration
}

// DefaultLimits returns bounds safe for untrusted input. They are sized
// for scanned documents, where a page image of tens of megabytes is
// normal but hundreds is not.
func DefaultLimits() Limits {
	return Limits{
		MaxDecompressedSize: 100 << 20,
		MaxIndirectDepth:    100,
		MaxXRefDepth:        50,
		MaxXObjectDepth:     20,
		MaxArraySize:        100_000,
		MaxDictSize:         10_000,
		MaxStringLength:     10 << 20,
		MaxStreamLength:     50 << 20,
		MaxDecodeTime:       30 * time.Second,
		MaxParseTime:        5 * time.Minute,
	}
}

// Normalized returns a copy with every zero or negative field replaced by
// its default, so callers may set only the limits they care about.
func (l Limits) Normalized() Limits {
	def := DefaultLimits()
	if l.MaxDecompressedSize <= 0 {
		l.MaxDecompressedSize = def.MaxDecompressedSize
	}
	if l.MaxIndirectDepth <= 0 {
		l.MaxIndirectDepth = def.MaxIndirectDepth
	}
	if l.MaxXRefDepth <= 0 {
		l.MaxXRefDepth = def.MaxXRefDepth
	}
	if l.MaxXObjectDepth <= 0 {
		l.MaxXObjectDepth = def.MaxXObjectDepth
	}
	if l.MaxArraySize <= 0 {
		l.MaxArraySize = def.MaxArraySize
	}
	if l.MaxDictSize <= 0 {
		l.MaxDictSize = def.MaxDictSize
	}
	if l.MaxStringLength <= 0 {
		l.MaxStringLength = def.MaxStringLength
	}
	if l.MaxStreamLength <= 0 {
		l.MaxStreamLength = def.MaxStreamLength
	}
	if l.MaxDecodeTime <= 0 {
		l.MaxDecodeTime = def.MaxDecodeTime
	}
	if l.MaxParseTime <= 0 {
		l.MaxParseTime = def.MaxParseTime
	}
	return l
}
