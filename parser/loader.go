package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/lucidpdf/textlayer/filters"
	"github.com/lucidpdf/textlayer/ir/raw"
	"github.com/lucidpdf/textlayer/recovery"
	"github.com/lucidpdf/textlayer/scanner"
	"github.com/lucidpdf/textlayer/security"
	"github.com/lucidpdf/textlayer/xref"
)

// Cache stores parsed objects between loads.
type Cache interface {
	Get(ref raw.ObjectRef) (raw.Object, bool)
	Put(ref raw.ObjectRef, obj raw.Object)
}

// MemoryCache is a map-backed Cache, safe for concurrent use.
type MemoryCache struct {
	mu sync.RWMutex
	m  map[raw.ObjectRef]raw.Object
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{m: make(map[raw.ObjectRef]raw.Object)}
}

func (c *MemoryCache) Get(ref raw.ObjectRef) (raw.Object, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	obj, ok := c.m[ref]
	return obj, ok
}

func (c *MemoryCache) Put(ref raw.ObjectRef, obj raw.Object) {
	c.mu.Lock()
	c.m[ref] = obj
	c.mu.Unlock()
}

// ObjectLoader materializes indirect objects on demand, pulling them from
// the file position the cross-reference table names or out of the object
// stream that holds them.
type ObjectLoader interface {
	Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error)
	// LoadIndirect follows reference chains until a direct object is
	// reached.
	LoadIndirect(ctx context.Context, obj raw.Object) (raw.Object, error)
}

// ObjectLoaderBuilder assembles an ObjectLoader. Reader and xref table are
// required, everything else has a usable default.
type ObjectLoaderBuilder struct {
	reader io.ReaderAt
	table  xref.Table
	limits security.Limits
	cache  Cache
	rec    recovery.Strategy
}

func (b *ObjectLoaderBuilder) WithReader(r io.ReaderAt) *ObjectLoaderBuilder {
	b.reader = r
	return b
}

func (b *ObjectLoaderBuilder) WithXRef(t xref.Table) *ObjectLoaderBuilder {
	b.table = t
	return b
}

func (b *ObjectLoaderBuilder) WithLimits(l security.Limits) *ObjectLoaderBuilder {
	b.limits = l
	return b
}

func (b *ObjectLoaderBuilder) WithCache(c Cache) *ObjectLoaderBuilder {
	b.cache = c
	return b
}

func (b *ObjectLoaderBuilder) WithRecovery(r recovery.Strategy) *ObjectLoaderBuilder {
	b.rec = r
	return b
}

func (b *ObjectLoaderBuilder) Build() (ObjectLoader, error) {
	if b.reader == nil {
		return nil, errors.New("parser: loader needs a reader")
	}
	if b.table == nil {
		return nil, errors.New("parser: loader needs a resolved xref table")
	}
	limits := b.limits.Normalized()
	return &objectLoader{
		r:      b.reader,
		table:  b.table,
		limits: limits,
		cache:  b.cache,
		rec:    b.rec,
		sc:     scanner.New(b.reader, scannerConfig(limits, b.rec)),
		objstm: make(map[int]map[int]raw.Object),
	}, nil
}

func scannerConfig(l security.Limits, rec recovery.Strategy) scanner.Config {
	return scanner.Config{
		MaxStringLength: l.MaxStringLength,
		MaxStreamLength: l.MaxStreamLength,
		MaxStreamScan:   l.MaxStreamLength,
		Recovery:        rec,
	}
}

type objectLoader struct {
	r      io.ReaderAt
	table  xref.Table
	limits security.Limits
	cache  Cache
	rec    recovery.Strategy

	// mu owns the shared scanner's position and the object stream cache.
	mu     sync.Mutex
	sc     scanner.Scanner
	objstm map[int]map[int]raw.Object
}

func (l *objectLoader) Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	if l.cache != nil {
		if obj, ok := l.cache.Get(ref); ok {
			return obj, nil
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadLocked(ctx, ref)
}

func (l *objectLoader) LoadIndirect(ctx context.Context, obj raw.Object) (raw.Object, error) {
	for i := 0; i < l.limits.MaxIndirectDepth; i++ {
		ref, ok := obj.(raw.RefObj)
		if !ok {
			return obj, nil
		}
		var err error
		obj, err = l.Load(ctx, ref.Ref())
		if err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("parser: reference chain deeper than %d", l.limits.MaxIndirectDepth)
}

func (l *objectLoader) loadLocked(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if off, gen, ok := l.table.Lookup(ref.Num); ok {
		if gen != ref.Gen {
			return nil, fmt.Errorf("parser: object %d requested at generation %d, xref has %d", ref.Num, ref.Gen, gen)
		}
		obj, err := l.loadAt(ctx, off, ref)
		if err != nil {
			return nil, err
		}
		l.put(ref, obj)
		return obj, nil
	}

	if stmNum, idx, ok := l.table.ObjStream(ref.Num); ok {
		if ref.Gen != 0 {
			return nil, fmt.Errorf("parser: compressed object %d cannot have generation %d", ref.Num, ref.Gen)
		}
		obj, err := l.loadFromObjectStream(ctx, stmNum, idx)
		if err != nil {
			return nil, err
		}
		l.put(ref, obj)
		return obj, nil
	}

	return nil, fmt.Errorf("parser: object %d %d not in xref", ref.Num, ref.Gen)
}

// loadAt parses the indirect object stored at off, including a following
// stream payload when the body is a stream dictionary.
func (l *objectLoader) loadAt(ctx context.Context, off int64, want raw.ObjectRef) (raw.Object, error) {
	if err := l.sc.Seek(off); err != nil {
		return nil, err
	}
	l.sc.SetRecoveryLocation(recovery.Location{
		ByteOffset: off,
		ObjectNum:  want.Num,
		ObjectGen:  want.Gen,
		Component:  "parser:object",
	})
	tr := &tokenReader{s: l.sc}

	num, gen, err := readHeader(tr)
	if err != nil {
		return nil, fmt.Errorf("parser: object %d %d at offset %d: %w", want.Num, want.Gen, off, err)
	}
	if num != want.Num || gen != want.Gen {
		herr := fmt.Errorf("parser: offset %d holds object %d %d, xref expected %d %d", off, num, gen, want.Num, want.Gen)
		if l.act(ctx, herr, off, want) == recovery.ActionFail {
			return nil, herr
		}
	}

	obj, err := l.parseObject(ctx, tr, want)
	if err != nil {
		return nil, err
	}
	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return obj, nil
	}
	return l.finishStream(ctx, tr, dict)
}

// finishStream checks whether a stream payload follows dict and attaches
// it. The declared /Length is handed to the scanner first so it does not
// have to hunt for the endstream marker.
func (l *objectLoader) finishStream(ctx context.Context, tr *tokenReader, dict *raw.DictObj) (raw.Object, error) {
	length := l.streamLength(ctx, dict)
	l.sc.SetNextStreamLength(length)

	tok, err := tr.next()
	if err != nil {
		l.sc.SetNextStreamLength(-1)
		if errors.Is(err, io.EOF) {
			return dict, nil
		}
		return nil, err
	}
	if tok.Type != scanner.TokenStream {
		l.sc.SetNextStreamLength(-1)
		tr.unread(tok)
		return dict, nil
	}
	return raw.NewStream(dict, tok.Bytes), nil
}

// streamLength resolves the /Length entry, following one indirect
// reference via a throwaway scanner so the shared scanner keeps its
// position. Returns -1 when the length is unusable; the scanner then
// falls back to searching for the endstream marker.
func (l *objectLoader) streamLength(ctx context.Context, dict *raw.DictObj) int64 {
	v, ok := dict.Get("Length")
	if !ok {
		return -1
	}
	switch t := v.(type) {
	case raw.NumberObj:
		if t.IsInteger() && t.Int() >= 0 {
			return t.Int()
		}
	case raw.RefObj:
		if n, err := l.loadLengthObject(ctx, t.Ref()); err == nil {
			return n
		}
	}
	return -1
}

func (l *objectLoader) loadLengthObject(ctx context.Context, ref raw.ObjectRef) (int64, error) {
	if stmNum, idx, ok := l.table.ObjStream(ref.Num); ok {
		obj, err := l.loadFromObjectStream(ctx, stmNum, idx)
		if err != nil {
			return 0, err
		}
		if n, ok := raw.ToInt(obj); ok && n >= 0 {
			return n, nil
		}
		return 0, fmt.Errorf("parser: stream length object %d is not an integer", ref.Num)
	}

	off, _, ok := l.table.Lookup(ref.Num)
	if !ok {
		return 0, fmt.Errorf("parser: stream length object %d not in xref", ref.Num)
	}
	sc := scanner.New(l.r, scanner.Config{})
	if err := sc.Seek(off); err != nil {
		return 0, err
	}
	tr := &tokenReader{s: sc}
	if _, _, err := readHeader(tr); err != nil {
		return 0, err
	}
	tok, err := tr.next()
	if err != nil {
		return 0, err
	}
	if tok.Type != scanner.TokenNumber || !tok.IsInt || tok.Int < 0 {
		return 0, fmt.Errorf("parser: stream length object %d is not an integer", ref.Num)
	}
	return tok.Int, nil
}

// loadFromObjectStream returns member idx of object stream stmNum,
// expanding and caching the whole stream on first use. PDF 7.5.7: members
// are direct objects at generation 0, never streams.
func (l *objectLoader) loadFromObjectStream(ctx context.Context, stmNum, idx int) (raw.Object, error) {
	members, ok := l.objstm[stmNum]
	if !ok {
		var err error
		members, err = l.expandObjectStream(ctx, stmNum)
		if err != nil {
			return nil, err
		}
		l.objstm[stmNum] = members
	}
	obj, ok := members[idx]
	if !ok {
		return nil, fmt.Errorf("parser: object stream %d has no member at index %d", stmNum, idx)
	}
	return obj, nil
}

func (l *objectLoader) expandObjectStream(ctx context.Context, stmNum int) (map[int]raw.Object, error) {
	off, _, ok := l.table.Lookup(stmNum)
	if !ok {
		return nil, fmt.Errorf("parser: object stream %d is not a top-level object", stmNum)
	}
	container, err := l.loadAt(ctx, off, raw.ObjectRef{Num: stmNum, Gen: 0})
	if err != nil {
		return nil, err
	}
	stm, ok := container.(*raw.StreamObj)
	if !ok {
		return nil, fmt.Errorf("parser: object %d is not a stream", stmNum)
	}

	n, okN := dictInt(stm.Dict, "N")
	first, okF := dictInt(stm.Dict, "First")
	if !okN || !okF || n < 0 || first < 0 {
		return nil, fmt.Errorf("parser: object stream %d missing N or First", stmNum)
	}

	names, params := filters.ExtractFilters(nil, stm.Dict)
	pipeline := filters.NewDefaultPipeline(filters.Limits{
		MaxDecompressedSize: l.limits.MaxDecompressedSize,
		MaxDecodeTime:       l.limits.MaxDecodeTime,
	})
	body, err := pipeline.Decode(ctx, stm.Data, names, params)
	if err != nil {
		return nil, fmt.Errorf("parser: decode object stream %d: %w", stmNum, err)
	}
	if first > len(body) {
		return nil, fmt.Errorf("parser: object stream %d First %d beyond %d byte payload", stmNum, first, len(body))
	}

	// The header is N pairs of "objnum offset", offsets relative to First.
	type slot struct{ num, off int }
	hsc := scanner.New(bytes.NewReader(body[:first]), scanner.Config{})
	slots := make([]slot, 0, n)
	for i := 0; i < n; i++ {
		numTok, err := hsc.Next()
		if err != nil {
			return nil, fmt.Errorf("parser: object stream %d header truncated at pair %d", stmNum, i)
		}
		offTok, err := hsc.Next()
		if err != nil {
			return nil, fmt.Errorf("parser: object stream %d header truncated at pair %d", stmNum, i)
		}
		if numTok.Type != scanner.TokenNumber || !numTok.IsInt || offTok.Type != scanner.TokenNumber || !offTok.IsInt {
			return nil, fmt.Errorf("parser: object stream %d header pair %d is not two integers", stmNum, i)
		}
		slots = append(slots, slot{num: int(numTok.Int), off: first + int(offTok.Int)})
	}

	members := make(map[int]raw.Object, n)
	for i, s := range slots {
		if s.off < first || s.off > len(body) {
			merr := fmt.Errorf("parser: object stream %d member %d offset %d out of range", stmNum, i, s.off)
			if l.act(ctx, merr, int64(s.off), raw.ObjectRef{Num: s.num}) == recovery.ActionFail {
				return nil, merr
			}
			continue
		}
		msc := scanner.New(bytes.NewReader(body[s.off:]), scanner.Config{
			MaxStringLength: l.limits.MaxStringLength,
			Recovery:        l.rec,
		})
		obj, err := l.parseObject(ctx, &tokenReader{s: msc}, raw.ObjectRef{Num: s.num})
		if err != nil {
			merr := fmt.Errorf("parser: object stream %d member %d (object %d): %w", stmNum, i, s.num, err)
			if l.act(ctx, merr, int64(s.off), raw.ObjectRef{Num: s.num}) == recovery.ActionFail {
				return nil, merr
			}
			continue
		}
		members[i] = obj
		l.put(raw.ObjectRef{Num: s.num, Gen: 0}, obj)
	}
	return members, nil
}

func (l *objectLoader) put(ref raw.ObjectRef, obj raw.Object) {
	if l.cache != nil {
		l.cache.Put(ref, obj)
	}
}

func (l *objectLoader) act(ctx context.Context, err error, off int64, at raw.ObjectRef) recovery.Action {
	if l.rec == nil {
		return recovery.ActionFail
	}
	return l.rec.OnError(ctx, err, recovery.Location{
		ByteOffset: off,
		ObjectNum:  at.Num,
		ObjectGen:  at.Gen,
		Component:  "parser:object",
	})
}

func (l *objectLoader) parseObject(ctx context.Context, tr *tokenReader, at raw.ObjectRef) (raw.Object, error) {
	tok, err := tr.next()
	if err != nil {
		return nil, err
	}
	return l.parseValue(ctx, tr, tok, at)
}

func (l *objectLoader) parseValue(ctx context.Context, tr *tokenReader, tok scanner.Token, at raw.ObjectRef) (raw.Object, error) {
	switch tok.Type {
	case scanner.TokenDict:
		return l.parseDict(ctx, tr, at)
	case scanner.TokenArray:
		return l.parseArray(ctx, tr, at)
	case scanner.TokenName:
		return raw.NameLiteral(tok.Str), nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return raw.NumberInt(tok.Int), nil
		}
		return raw.NumberFloat(tok.Real), nil
	case scanner.TokenString:
		return raw.Str(tok.Bytes), nil
	case scanner.TokenBoolean:
		return raw.Bool(tok.Bool), nil
	case scanner.TokenNull:
		return raw.NullObj{}, nil
	case scanner.TokenRef:
		return raw.Ref(int(tok.Int), tok.Gen), nil
	default:
		return nil, fmt.Errorf("parser: object %d %d: unexpected token %q at offset %d", at.Num, at.Gen, tok.Str, tok.Pos)
	}
}

func (l *objectLoader) parseDict(ctx context.Context, tr *tokenReader, at raw.ObjectRef) (raw.Object, error) {
	dict := raw.Dict()
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword {
			switch tok.Str {
			case ">>":
				return dict, nil
			case "endobj", "obj", "stream", "startxref":
				derr := fmt.Errorf("parser: dictionary in object %d %d not closed before %q", at.Num, at.Gen, tok.Str)
				if l.act(ctx, derr, tok.Pos, at) == recovery.ActionFail {
					return nil, derr
				}
				tr.unread(tok)
				return dict, nil
			}
		}
		if tok.Type != scanner.TokenName {
			kerr := fmt.Errorf("parser: object %d %d: dictionary key at offset %d is not a name", at.Num, at.Gen, tok.Pos)
			if l.act(ctx, kerr, tok.Pos, at) == recovery.ActionFail {
				return nil, kerr
			}
			continue
		}
		val, err := l.parseObject(ctx, tr, at)
		if err != nil {
			return nil, err
		}
		dict.Set(tok.Str, val)
		if l.limits.MaxDictSize > 0 && dict.Len() > l.limits.MaxDictSize {
			return nil, fmt.Errorf("parser: dictionary in object %d %d exceeds %d entries", at.Num, at.Gen, l.limits.MaxDictSize)
		}
	}
}

func (l *objectLoader) parseArray(ctx context.Context, tr *tokenReader, at raw.ObjectRef) (raw.Object, error) {
	arr := raw.NewArray()
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword {
			switch tok.Str {
			case "]":
				return arr, nil
			case "endobj", "obj", "stream", "startxref":
				aerr := fmt.Errorf("parser: array in object %d %d not closed before %q", at.Num, at.Gen, tok.Str)
				if l.act(ctx, aerr, tok.Pos, at) == recovery.ActionFail {
					return nil, aerr
				}
				tr.unread(tok)
				return arr, nil
			}
		}
		item, err := l.parseValue(ctx, tr, tok, at)
		if err != nil {
			return nil, err
		}
		arr.Append(item)
		if l.limits.MaxArraySize > 0 && arr.Len() > l.limits.MaxArraySize {
			return nil, fmt.Errorf("parser: array in object %d %d exceeds %d elements", at.Num, at.Gen, l.limits.MaxArraySize)
		}
	}
}

// readHeader consumes the "N G obj" prologue of an indirect object.
func readHeader(tr *tokenReader) (int, int, error) {
	num, err := tr.next()
	if err != nil {
		return 0, 0, err
	}
	if num.Type != scanner.TokenNumber || !num.IsInt || num.Int < 0 {
		return 0, 0, errors.New("want object number")
	}
	gen, err := tr.next()
	if err != nil {
		return 0, 0, err
	}
	if gen.Type != scanner.TokenNumber || !gen.IsInt || gen.Int < 0 {
		return 0, 0, errors.New("want generation number")
	}
	kw, err := tr.next()
	if err != nil {
		return 0, 0, err
	}
	if kw.Type != scanner.TokenKeyword || kw.Str != "obj" {
		return 0, 0, fmt.Errorf("want obj keyword, got %q", kw.Str)
	}
	return int(num.Int), int(gen.Int), nil
}

func dictInt(d *raw.DictObj, key string) (int, bool) {
	v, ok := d.Get(key)
	if !ok {
		return 0, false
	}
	n, ok := raw.ToInt(v)
	if !ok {
		return 0, false
	}
	return int(n), true
}

// tokenReader adds pushback on top of a scanner so parse loops can return
// a token they were not supposed to consume.
type tokenReader struct {
	s   scanner.Scanner
	buf []scanner.Token
}

func (t *tokenReader) next() (scanner.Token, error) {
	if n := len(t.buf); n > 0 {
		tok := t.buf[n-1]
		t.buf = t.buf[:n-1]
		return tok, nil
	}
	return t.s.Next()
}

func (t *tokenReader) unread(tok scanner.Token) { t.buf = append(t.buf, tok) }
