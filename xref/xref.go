// Package xref locates and resolves cross-reference data: classic xref
// tables (PDF 7.5.4), cross-reference streams (PDF 7.5.8) and
// hybrid-reference files carrying both. The resolver walks the /Prev
// chain newest-first and merges sections so that the most recent entry
// for an object wins.
package xref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/lucidpdf/textlayer/filters"
	"github.com/lucidpdf/textlayer/ir/raw"
	"github.com/lucidpdf/textlayer/recovery"
	"github.com/lucidpdf/textlayer/scanner"
)

const (
	defaultMaxDepth = 32

	// startxref must appear near the end of the file; the window is
	// generous because some producers append junk after %%EOF.
	tailWindow = 2048

	// A linearization dictionary lives in the first 1024 bytes (PDF F.3.1).
	headWindow = 1024
)

// Table answers object location queries against resolved cross-reference data.
type Table interface {
	// Lookup returns the byte offset and generation of an object stored
	// uncompressed in the file body (entry type 1).
	Lookup(objNum int) (offset int64, gen int, found bool)

	// ObjStream returns the object stream number and the index within that
	// stream for a compressed object (entry type 2).
	ObjStream(objNum int) (stmNum int, idx int, found bool)

	// Objects lists in-use object numbers in ascending order.
	Objects() []int

	// Type identifies the newest cross-reference section backing the
	// table: "table" or "xref-stream".
	Type() string
}

// Resolver locates the cross-reference chain of a document and merges it
// into a single Table.
type Resolver interface {
	Resolve(ctx context.Context, r io.ReaderAt) (Table, error)

	// Trailer returns the merged trailer dictionary. Keys from newer
	// revisions shadow older ones; chain plumbing (/Prev, /XRefStm) is
	// dropped. Nil until Resolve succeeds.
	Trailer() raw.Dictionary

	// Linearized reports whether the file starts with a linearization
	// dictionary.
	Linearized() bool

	// Incremental returns one table per revision, newest first.
	Incremental() []Table
}

// ResolverConfig tunes chain traversal. The zero value fails on the first
// structural problem and bounds the /Prev chain at 32 sections.
type ResolverConfig struct {
	MaxXRefDepth int
	Recovery     recovery.Strategy

	// DecodeLimits applies when inflating cross-reference streams.
	DecodeLimits filters.Limits
}

// NewResolver returns a Resolver for the given configuration.
func NewResolver(cfg ResolverConfig) Resolver {
	if cfg.MaxXRefDepth <= 0 {
		cfg.MaxXRefDepth = defaultMaxDepth
	}
	return &resolver{cfg: cfg, pipeline: filters.NewDefaultPipeline(cfg.DecodeLimits)}
}

type entryKind uint8

const (
	entryFree entryKind = iota
	entryOffset
	entryInStream
)

type entry struct {
	kind   entryKind
	offset int64
	gen    int
	stmNum int
	stmIdx int
}

type table struct {
	entries map[int]entry
	kind    string
}

func newTable(kind string) *table {
	return &table{entries: make(map[int]entry), kind: kind}
}

// add records an entry unless the object already has one. Sections are
// visited newest-first, so the first entry seen is authoritative; free
// entries stay in the map as tombstones that mask older revisions.
func (t *table) add(num int, e entry) {
	if _, ok := t.entries[num]; ok {
		return
	}
	t.entries[num] = e
}

func (t *table) Lookup(num int) (int64, int, bool) {
	e, ok := t.entries[num]
	if !ok || e.kind != entryOffset {
		return 0, 0, false
	}
	return e.offset, e.gen, true
}

func (t *table) ObjStream(num int) (int, int, bool) {
	e, ok := t.entries[num]
	if !ok || e.kind != entryInStream {
		return 0, 0, false
	}
	return e.stmNum, e.stmIdx, true
}

func (t *table) Objects() []int {
	nums := make([]int, 0, len(t.entries))
	for num, e := range t.entries {
		if e.kind == entryFree {
			continue
		}
		nums = append(nums, num)
	}
	sort.Ints(nums)
	return nums
}

func (t *table) Type() string { return t.kind }

// section is one parsed cross-reference section with its chain links.
type section struct {
	tab     *table
	trailer *raw.DictObj
	prev    int64
	xrefStm int64
}

type resolver struct {
	cfg      ResolverConfig
	pipeline *filters.Pipeline

	trailer    *raw.DictObj
	revisions  []Table
	linearized bool
}

func (r *resolver) Trailer() raw.Dictionary {
	if r.trailer == nil {
		return nil
	}
	return r.trailer
}

func (r *resolver) Linearized() bool { return r.linearized }

func (r *resolver) Incremental() []Table { return r.revisions }

func (r *resolver) Resolve(ctx context.Context, rd io.ReaderAt) (Table, error) {
	r.trailer = nil
	r.revisions = nil
	r.linearized = false

	data, err := readAll(rd)
	if err != nil {
		return nil, fmt.Errorf("xref: read input: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("xref: empty input")
	}

	head := data
	if len(head) > headWindow {
		head = head[:headWindow]
	}
	r.linearized = bytes.Contains(head, []byte("/Linearized"))

	start, err := findStartXRef(data)
	if err != nil {
		if r.act(ctx, err, 0) == recovery.ActionFix {
			return r.repair(ctx, data)
		}
		return nil, err
	}

	merged := newTable("")
	var trailers []*raw.DictObj
	seen := make(map[int64]bool)
	queue := []int64{start}
	depth := 0

	for len(queue) > 0 {
		off := queue[0]
		queue = queue[1:]
		if seen[off] {
			// Hybrid files commonly point /Prev and /XRefStm at the same
			// section; a repeated offset also breaks reference cycles.
			continue
		}
		seen[off] = true

		depth++
		if depth > r.cfg.MaxXRefDepth {
			return nil, fmt.Errorf("xref: chain exceeds %d sections", r.cfg.MaxXRefDepth)
		}
		if off < 0 || off >= int64(len(data)) {
			err := fmt.Errorf("xref: section offset %d outside file of %d bytes", off, len(data))
			switch r.act(ctx, err, off) {
			case recovery.ActionFix:
				return r.repair(ctx, data)
			case recovery.ActionSkip, recovery.ActionWarn:
				continue
			default:
				return nil, err
			}
		}

		sec, err := r.parseSection(ctx, data, off)
		if err != nil {
			if r.act(ctx, err, off) == recovery.ActionFix {
				return r.repair(ctx, data)
			}
			return nil, err
		}

		if merged.kind == "" {
			merged.kind = sec.tab.kind
		}
		for num, e := range sec.tab.entries {
			merged.add(num, e)
		}
		if sec.trailer != nil {
			trailers = append(trailers, sec.trailer)
		}
		r.revisions = append(r.revisions, sec.tab)

		// The hybrid stream holds entries the table hides, and it is part
		// of the same revision: visit it before any older /Prev section.
		if sec.xrefStm > 0 {
			queue = append(queue, sec.xrefStm)
		}
		if sec.prev > 0 {
			queue = append(queue, sec.prev)
		}
	}

	r.trailer = mergeTrailers(trailers)
	if err := r.validateSize(ctx, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// validateSize checks every entry against the trailer /Size. A Fix answer
// corrects the trailer, a Skip answer drops the offending entries.
func (r *resolver) validateSize(ctx context.Context, t *table) error {
	maxNum := 0
	for num := range t.entries {
		if num > maxNum {
			maxNum = num
		}
	}

	size, ok := dictInt(r.trailer, "Size")
	if !ok {
		err := errors.New("xref: trailer missing /Size")
		switch r.act(ctx, err, 0) {
		case recovery.ActionFix, recovery.ActionSkip, recovery.ActionWarn:
			r.trailer.Set("Size", raw.NumberInt(int64(maxNum)+1))
			return nil
		default:
			return err
		}
	}

	if int64(maxNum) < size {
		return nil
	}
	err := fmt.Errorf("xref: entry for object %d exceeds trailer /Size %d", maxNum, size)
	switch r.act(ctx, err, 0) {
	case recovery.ActionFix:
		r.trailer.Set("Size", raw.NumberInt(int64(maxNum)+1))
		return nil
	case recovery.ActionSkip:
		for num := range t.entries {
			if int64(num) >= size {
				delete(t.entries, num)
			}
		}
		return nil
	case recovery.ActionWarn:
		return nil
	default:
		return err
	}
}

// parseSection sniffs the bytes at off and dispatches to the classic table
// or cross-reference stream parser.
func (r *resolver) parseSection(ctx context.Context, data []byte, off int64) (*section, error) {
	cur := &cursor{data: data, pos: int(off)}
	cur.skipSpace()
	if bytes.HasPrefix(data[cur.pos:], []byte("xref")) {
		after := cur.pos + 4
		if after >= len(data) || isXRefSpace(data[after]) {
			return r.parseClassicSection(ctx, data, int64(cur.pos))
		}
	}
	return r.parseStreamSection(ctx, data, off)
}

func (r *resolver) parseClassicSection(ctx context.Context, data []byte, off int64) (*section, error) {
	cur := &cursor{data: data, pos: int(off)}
	if w := cur.word(); w != "xref" {
		return nil, fmt.Errorf("xref: expected table keyword at offset %d, got %q", off, w)
	}

	sec := &section{tab: newTable("table"), prev: -1, xrefStm: -1}
	for {
		cur.skipSpace()
		if cur.pos >= len(cur.data) {
			return nil, errors.New("xref: table ends without trailer")
		}
		mark := cur.pos
		w := cur.word()
		if w == "trailer" {
			break
		}

		start, err1 := strconv.Atoi(w)
		count, err2 := strconv.Atoi(cur.word())
		if err1 != nil || err2 != nil || start < 0 || count < 0 {
			return nil, fmt.Errorf("xref: malformed subsection header at offset %d", mark)
		}
		for i := 0; i < count; i++ {
			if err := r.parseClassicEntry(ctx, cur, sec.tab, start+i); err != nil {
				return nil, err
			}
		}
	}

	sc := scanner.New(bytes.NewReader(data), scanner.Config{Recovery: r.cfg.Recovery})
	if err := sc.Seek(int64(cur.pos)); err != nil {
		return nil, err
	}
	tok, err := sc.Next()
	if err != nil {
		return nil, fmt.Errorf("xref: read trailer: %w", err)
	}
	obj, err := readValue(sc, tok)
	if err != nil {
		return nil, fmt.Errorf("xref: parse trailer: %w", err)
	}
	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return nil, fmt.Errorf("xref: trailer is %T, not a dictionary", obj)
	}
	sec.trailer = dict
	if v, ok := dictInt(dict, "Prev"); ok {
		sec.prev = v
	}
	if v, ok := dictInt(dict, "XRefStm"); ok {
		sec.xrefStm = v
	}
	return sec, nil
}

func (r *resolver) parseClassicEntry(ctx context.Context, cur *cursor, t *table, num int) error {
	offWord := cur.word()
	genWord := cur.word()
	kindWord := cur.word()

	off, errOff := strconv.ParseInt(offWord, 10, 64)
	gen, errGen := strconv.Atoi(genWord)
	if errOff != nil || errGen != nil || (kindWord != "n" && kindWord != "f") {
		err := fmt.Errorf("xref: malformed entry for object %d", num)
		switch r.act(ctx, err, int64(cur.pos)) {
		case recovery.ActionSkip, recovery.ActionWarn:
			return nil
		case recovery.ActionFix:
			if errOff == nil && errGen == nil {
				t.add(num, entry{kind: entryOffset, offset: off, gen: gen})
			}
			return nil
		default:
			return err
		}
	}

	if kindWord == "f" {
		t.add(num, entry{kind: entryFree})
		return nil
	}
	t.add(num, entry{kind: entryOffset, offset: off, gen: gen})
	return nil
}

func (r *resolver) parseStreamSection(ctx context.Context, data []byte, off int64) (*section, error) {
	sc := scanner.New(bytes.NewReader(data), scanner.Config{Recovery: r.cfg.Recovery})
	if err := sc.Seek(off); err != nil {
		return nil, err
	}
	dict, payload, err := readStreamObject(sc)
	if err != nil {
		return nil, fmt.Errorf("xref: stream section at %d: %w", off, err)
	}

	if name, ok := dict.Get("Type"); ok {
		if typ, _ := raw.ToName(name); typ != "XRef" {
			err := fmt.Errorf("xref: stream section at %d has /Type /%s", off, typ)
			switch r.act(ctx, err, off) {
			case recovery.ActionSkip, recovery.ActionFix, recovery.ActionWarn:
			default:
				return nil, err
			}
		}
	}

	names, params := filters.ExtractFilters(nil, dict)
	decoded, err := r.pipeline.Decode(ctx, payload, names, params)
	if err != nil {
		return nil, fmt.Errorf("xref: decode stream section: %w", err)
	}

	size, ok := dictInt(dict, "Size")
	if !ok || size <= 0 {
		return nil, errors.New("xref: stream section missing /Size")
	}
	widths, err := streamFieldWidths(dict)
	if err != nil {
		return nil, err
	}
	index, err := streamIndex(dict, size)
	if err != nil {
		return nil, err
	}

	sec := &section{tab: newTable("xref-stream"), prev: -1, xrefStm: -1}
	sec.trailer = dict
	if v, ok := dictInt(dict, "Prev"); ok {
		sec.prev = v
	}

	entrySize := widths[0] + widths[1] + widths[2]
	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		start, count := index[i], index[i+1]
		for j := 0; j < count; j++ {
			if pos+entrySize > len(decoded) {
				err := fmt.Errorf("xref: stream data truncated at entry %d", start+j)
				switch r.act(ctx, err, off) {
				case recovery.ActionSkip, recovery.ActionFix, recovery.ActionWarn:
					return sec, nil
				default:
					return nil, err
				}
			}
			rec := decoded[pos : pos+entrySize]
			pos += entrySize
			addStreamEntry(sec.tab, start+j, rec, widths)
		}
	}
	return sec, nil
}

// addStreamEntry decodes one fixed-width record. A zero-width type field
// defaults to type 1 (PDF 7.5.8.2); unknown types are ignored.
func addStreamEntry(t *table, num int, rec []byte, widths [3]int) {
	typ := uint64(1)
	if widths[0] > 0 {
		typ = beUint(rec[:widths[0]])
	}
	f2 := beUint(rec[widths[0] : widths[0]+widths[1]])
	f3 := beUint(rec[widths[0]+widths[1]:])

	switch typ {
	case 0:
		t.add(num, entry{kind: entryFree})
	case 1:
		t.add(num, entry{kind: entryOffset, offset: int64(f2), gen: int(f3)})
	case 2:
		t.add(num, entry{kind: entryInStream, stmNum: int(f2), stmIdx: int(f3)})
	}
}

func streamFieldWidths(dict *raw.DictObj) ([3]int, error) {
	var widths [3]int
	obj, ok := dict.Get("W")
	if !ok {
		return widths, errors.New("xref: stream section missing /W")
	}
	arr, ok := obj.(*raw.ArrayObj)
	if !ok || arr.Len() != 3 {
		return widths, errors.New("xref: /W must be an array of three integers")
	}
	total := 0
	for i := 0; i < 3; i++ {
		item, _ := arr.Get(i)
		v, ok := raw.ToInt(item)
		if !ok || v < 0 || v > 8 {
			return widths, fmt.Errorf("xref: /W field %d out of range", i)
		}
		widths[i] = int(v)
		total += int(v)
	}
	if total == 0 {
		return widths, errors.New("xref: /W declares zero-width entries")
	}
	return widths, nil
}

func streamIndex(dict *raw.DictObj, size int64) ([]int, error) {
	obj, ok := dict.Get("Index")
	if !ok {
		return []int{0, int(size)}, nil
	}
	arr, ok := obj.(*raw.ArrayObj)
	if !ok || arr.Len()%2 != 0 {
		return nil, errors.New("xref: /Index must hold start,count pairs")
	}
	index := make([]int, arr.Len())
	for i := range index {
		item, _ := arr.Get(i)
		v, ok := raw.ToInt(item)
		if !ok || v < 0 {
			return nil, fmt.Errorf("xref: /Index element %d invalid", i)
		}
		index[i] = int(v)
	}
	return index, nil
}

func beUint(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// mergeTrailers folds revision trailers newest-first. Chain plumbing keys
// stay out of the merged view.
func mergeTrailers(trailers []*raw.DictObj) *raw.DictObj {
	merged := raw.Dict()
	for _, tr := range trailers {
		for _, key := range tr.Keys() {
			if key == "Prev" || key == "XRefStm" {
				continue
			}
			if _, ok := merged.Get(key); ok {
				continue
			}
			v, _ := tr.Get(key)
			merged.Set(key, v)
		}
	}
	return merged
}

func (r *resolver) act(ctx context.Context, err error, off int64) recovery.Action {
	if r.cfg.Recovery == nil {
		return recovery.ActionFail
	}
	return r.cfg.Recovery.OnError(ctx, err, recovery.Location{ByteOffset: off, Component: "xref"})
}

func findStartXRef(data []byte) (int64, error) {
	tail := data
	base := 0
	if len(tail) > tailWindow {
		base = len(data) - tailWindow
		tail = data[base:]
	}
	i := bytes.LastIndex(tail, []byte("startxref"))
	if i < 0 {
		return 0, errors.New("xref: startxref not found")
	}
	rest := tail[i+len("startxref"):]
	j := 0
	for j < len(rest) && isXRefSpace(rest[j]) {
		j++
	}
	k := j
	for k < len(rest) && rest[k] >= '0' && rest[k] <= '9' {
		k++
	}
	if k == j {
		return 0, errors.New("xref: malformed startxref offset")
	}
	v, err := strconv.ParseInt(string(rest[j:k]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("xref: malformed startxref offset: %w", err)
	}
	return v, nil
}

func dictInt(d *raw.DictObj, key string) (int64, bool) {
	if d == nil {
		return 0, false
	}
	v, ok := d.Get(key)
	if !ok {
		return 0, false
	}
	return raw.ToInt(v)
}

func readAll(r io.ReaderAt) ([]byte, error) {
	if sized, ok := r.(interface{ Size() int64 }); ok {
		n := sized.Size()
		buf := make([]byte, n)
		if n == 0 {
			return buf, nil
		}
		m, err := r.ReadAt(buf, 0)
		if int64(m) == n {
			return buf, nil
		}
		if err != nil && err != io.EOF {
			return nil, err
		}
		return buf[:m], nil
	}

	const chunk = 512 * 1024
	var out []byte
	var off int64
	for {
		buf := make([]byte, chunk)
		n, err := r.ReadAt(buf, off)
		out = append(out, buf[:n]...)
		off += int64(n)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return out, nil
		}
	}
}

// cursor walks whitespace-delimited words of a classic xref section.
type cursor struct {
	data []byte
	pos  int
}

func (c *cursor) skipSpace() {
	for c.pos < len(c.data) {
		b := c.data[c.pos]
		if isXRefSpace(b) {
			c.pos++
			continue
		}
		if b == '%' {
			for c.pos < len(c.data) && c.data[c.pos] != '\n' && c.data[c.pos] != '\r' {
				c.pos++
			}
			continue
		}
		break
	}
}

func (c *cursor) word() string {
	c.skipSpace()
	start := c.pos
	for c.pos < len(c.data) {
		b := c.data[c.pos]
		if isXRefSpace(b) || b == '<' || b == '>' || b == '[' || b == ']' || b == '/' || b == '(' || b == '%' {
			break
		}
		c.pos++
	}
	return string(c.data[start:c.pos])
}

func isXRefSpace(b byte) bool {
	switch b {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}
