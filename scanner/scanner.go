package scanner

import (
	"bytes"
	"errors"
	"io"
	"strconv"

	"github.com/lucidpdf/textlayer/recovery"
)

// TokenType classifies a lexical unit of PDF syntax (PDF 7.2).
type TokenType int

const (
	TokenDict        TokenType = iota // '<<'
	TokenArray                        // '['
	TokenName                         // '/Name' with '#xx' escapes decoded
	TokenString                       // literal '(...)' or hex '<...>' string
	TokenNumber                       // integer or real
	TokenBoolean                      // 'true' / 'false'
	TokenNull                         // 'null'
	TokenRef                          // indirect reference 'N G R'
	TokenStream                       // raw payload between 'stream' and 'endstream'
	TokenInlineImage                  // raw bytes between 'ID' and 'EI' (content streams)
	TokenKeyword                      // any other keyword or structural character
)

// Token is one lexical unit. Which value fields are populated depends on
// Type: numbers use Int or Real with IsInt as the discriminator, references
// use Int and Gen, names and keywords use Str, strings and stream payloads
// use Bytes.
type Token struct {
	Type  TokenType
	Int   int64
	Real  float64
	Gen   int
	Str   string
	Bytes []byte
	Bool  bool
	IsInt bool
	Pos   int64
}

// Scanner walks PDF syntax token by token. Implementations are not safe for
// concurrent use.
type Scanner interface {
	Next() (Token, error)
	Position() int64
	Seek(offset int64) error
	// SetNextStreamLength tells the scanner the declared /Length of the next
	// stream token so it does not have to search for the endstream marker.
	SetNextStreamLength(n int64)
	// SetRecoveryLocation sets the object context attached to reported
	// scan problems.
	SetRecoveryLocation(loc recovery.Location)
}

// Config bounds resource usage during scanning. Zero values leave the
// corresponding limit unenforced. Size limits are hard stops; structural
// problems are routed through Recovery when a strategy is set.
type Config struct {
	MaxNameLength   int64
	MaxStringLength int64
	MaxArrayDepth   int
	MaxDictDepth    int
	MaxStreamLength int64
	MaxStreamScan   int64
	MaxInlineImage  int64
	WindowSize      int64
	Recovery        recovery.Strategy
}

const defaultWindow = 64 * 1024

var endstreamMarker = []byte("endstream")

// errResync tells Next to drop the current construct and scan the next one.
var errResync = errors.New("scanner: resync")

// tokenizer reads from an io.ReaderAt in fixed-size windows, growing an
// in-memory prefix of the input as far as scanning has progressed.
type tokenizer struct {
	r             io.ReaderAt
	buf           []byte
	pos           int64
	eof           bool
	readErr       error
	cfg           Config
	window        int64
	nextStreamLen int64
	arrayDepth    int
	dictDepth     int
	loc           recovery.Location
}

// New returns a Scanner over r.
func New(r io.ReaderAt, cfg Config) Scanner {
	w := cfg.WindowSize
	if w <= 0 {
		w = defaultWindow
	}
	return &tokenizer{r: r, cfg: cfg, window: w, nextStreamLen: -1}
}

func (t *tokenizer) Position() int64 { return t.pos }

func (t *tokenizer) Seek(offset int64) error {
	if offset < 0 {
		return errors.New("scanner: seek before start of input")
	}
	if err := t.ensure(offset); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if offset > int64(len(t.buf)) {
		return errors.New("scanner: seek past end of input")
	}
	t.pos = offset
	return nil
}

func (t *tokenizer) SetNextStreamLength(n int64)               { t.nextStreamLen = n }
func (t *tokenizer) SetRecoveryLocation(loc recovery.Location) { t.loc = loc }

func (t *tokenizer) Next() (Token, error) {
	for {
		tok, err := t.scan()
		if errors.Is(err, errResync) {
			continue
		}
		return tok, err
	}
}

func (t *tokenizer) scan() (Token, error) {
	if t.readErr != nil {
		return Token{}, t.readErr
	}
	if err := t.skipSpace(); err != nil {
		if errors.Is(err, io.EOF) {
			return t.atEOF()
		}
		return Token{}, err
	}
	start := t.pos
	c := t.buf[t.pos]
	switch c {
	case '<':
		if nxt, ok := t.at(t.pos + 1); ok && nxt == '<' {
			t.pos += 2
			return t.open(Token{Type: TokenDict, Str: "<<", Pos: start})
		}
		return t.scanHexString()
	case '>':
		if nxt, ok := t.at(t.pos + 1); ok && nxt == '>' {
			t.pos += 2
			return t.close(Token{Type: TokenKeyword, Str: ">>", Pos: start})
		}
		t.pos++
		return Token{Type: TokenKeyword, Str: ">", Pos: start}, nil
	case '[':
		t.pos++
		return t.open(Token{Type: TokenArray, Str: "[", Pos: start})
	case ']':
		t.pos++
		return t.close(Token{Type: TokenKeyword, Str: "]", Pos: start})
	case '(':
		return t.scanLiteralString()
	case '/':
		return t.scanName()
	}
	if isNumberStart(c) {
		return t.scanNumberOrRef()
	}
	if isKeywordStart(c) {
		return t.scanKeyword()
	}
	t.pos++
	return Token{Type: TokenKeyword, Str: string(rune(c)), Pos: start}, nil
}

// atEOF reports end of input, synthesizing closers for unterminated
// containers when the recovery strategy elects to fix them.
func (t *tokenizer) atEOF() (Token, error) {
	if t.cfg.Recovery == nil || (t.arrayDepth == 0 && t.dictDepth == 0) {
		return Token{}, io.EOF
	}
	if t.arrayDepth > 0 {
		if _, err := t.report(errors.New("unclosed array at end of input"), "array"); err != nil {
			return Token{}, err
		}
		t.arrayDepth--
		return Token{Type: TokenKeyword, Str: "]", Pos: t.pos}, nil
	}
	if _, err := t.report(errors.New("unclosed dictionary at end of input"), "dict"); err != nil {
		return Token{}, err
	}
	t.dictDepth--
	return Token{Type: TokenKeyword, Str: ">>", Pos: t.pos}, nil
}

func (t *tokenizer) open(tok Token) (Token, error) {
	switch tok.Type {
	case TokenArray:
		t.arrayDepth++
		if t.cfg.MaxArrayDepth > 0 && t.arrayDepth > t.cfg.MaxArrayDepth {
			if _, err := t.report(errors.New("array depth exceeded"), "array"); err != nil {
				return Token{}, err
			}
		}
	case TokenDict:
		t.dictDepth++
		if t.cfg.MaxDictDepth > 0 && t.dictDepth > t.cfg.MaxDictDepth {
			if _, err := t.report(errors.New("dict depth exceeded"), "dict"); err != nil {
				return Token{}, err
			}
		}
	}
	return tok, nil
}

func (t *tokenizer) close(tok Token) (Token, error) {
	if tok.Str == "]" {
		if t.arrayDepth == 0 {
			if _, err := t.report(errors.New("array close without open"), "array"); err != nil {
				return Token{}, err
			}
			return Token{}, errResync
		}
		t.arrayDepth--
		return tok, nil
	}
	if t.dictDepth == 0 {
		if _, err := t.report(errors.New("dictionary close without open"), "dict"); err != nil {
			return Token{}, err
		}
		return Token{}, errResync
	}
	t.dictDepth--
	return tok, nil
}

// ensure grows the buffer until offset n is readable.
func (t *tokenizer) ensure(n int64) error {
	for int64(len(t.buf)) <= n {
		if t.eof {
			return io.EOF
		}
		if err := t.fill(); err != nil {
			return err
		}
	}
	return nil
}

func (t *tokenizer) fill() error {
	chunk := make([]byte, t.window)
	n, err := t.r.ReadAt(chunk, int64(len(t.buf)))
	if n > 0 {
		t.buf = append(t.buf, chunk[:n]...)
	}
	switch {
	case errors.Is(err, io.EOF):
		t.eof = true
	case err != nil:
		t.readErr = err
		return err
	case n == 0:
		t.eof = true
	}
	return nil
}

// at returns the byte at off, loading more input as needed.
func (t *tokenizer) at(off int64) (byte, bool) {
	if err := t.ensure(off); err != nil || off >= int64(len(t.buf)) {
		return 0, false
	}
	return t.buf[off], true
}

func (t *tokenizer) eofErr() error {
	if t.readErr != nil {
		return t.readErr
	}
	return io.EOF
}

func (t *tokenizer) skipSpace() error {
	for {
		c, ok := t.at(t.pos)
		if !ok {
			return t.eofErr()
		}
		switch {
		case isWhitespace(c):
			t.pos++
		case c == '%':
			for {
				c, ok := t.at(t.pos)
				if !ok {
					return t.eofErr()
				}
				if isEOL(c) {
					break
				}
				t.pos++
			}
		default:
			return nil
		}
	}
}

func (t *tokenizer) scanName() (Token, error) {
	start := t.pos
	t.pos++ // '/'
	var name bytes.Buffer
	for {
		c, ok := t.at(t.pos)
		if !ok || isDelimiter(c) {
			break
		}
		b := c
		adv := int64(1)
		if c == '#' {
			// PDF 7.3.5: '#' introduces two hex digits; without them the
			// character stands for itself.
			h1, ok1 := t.at(t.pos + 1)
			h2, ok2 := t.at(t.pos + 2)
			if ok1 && ok2 && isHexDigit(h1) && isHexDigit(h2) {
				b = hexVal(h1)<<4 | hexVal(h2)
				adv = 3
			}
		}
		name.WriteByte(b)
		t.pos += adv
		if t.cfg.MaxNameLength > 0 && int64(name.Len()) > t.cfg.MaxNameLength {
			return Token{}, errors.New("name too long")
		}
	}
	return Token{Type: TokenName, Str: name.String(), Pos: start}, nil
}

// scanLiteralString reads a '(...)' string with the escapes of PDF 7.3.4.2.
func (t *tokenizer) scanLiteralString() (Token, error) {
	start := t.pos
	t.pos++ // '('
	var out bytes.Buffer
	depth := 1
	for depth > 0 {
		c, ok := t.at(t.pos)
		if !ok {
			if t.readErr != nil {
				return Token{}, t.readErr
			}
			if _, err := t.report(errors.New("unterminated literal string"), "literal"); err != nil {
				return Token{}, err
			}
			break
		}
		t.pos++
		switch c {
		case '\\':
			t.unescape(&out)
		case '(':
			depth++
			out.WriteByte(c)
		case ')':
			depth--
			if depth > 0 {
				out.WriteByte(c)
			}
		default:
			out.WriteByte(c)
		}
		if t.cfg.MaxStringLength > 0 && int64(out.Len()) > t.cfg.MaxStringLength {
			return Token{}, errors.New("literal string too long")
		}
	}
	return Token{Type: TokenString, Bytes: out.Bytes(), Pos: start}, nil
}

// unescape consumes the character(s) following a backslash inside a literal
// string and appends the decoded byte, if any, to out.
func (t *tokenizer) unescape(out *bytes.Buffer) {
	c, ok := t.at(t.pos)
	if !ok {
		return // trailing backslash at end of input
	}
	t.pos++
	switch c {
	case 'n':
		out.WriteByte('\n')
	case 'r':
		out.WriteByte('\r')
	case 't':
		out.WriteByte('\t')
	case 'b':
		out.WriteByte('\b')
	case 'f':
		out.WriteByte('\f')
	case '\r':
		// Escaped EOL continues the string on the next line.
		if nxt, ok := t.at(t.pos); ok && nxt == '\n' {
			t.pos++
		}
	case '\n':
	default:
		if c >= '0' && c <= '7' {
			v := int(c - '0')
			for i := 0; i < 2; i++ {
				d, ok := t.at(t.pos)
				if !ok || d < '0' || d > '7' {
					break
				}
				v = v<<3 | int(d-'0')
				t.pos++
			}
			out.WriteByte(byte(v))
			return
		}
		// A backslash before any other character stands for that character.
		out.WriteByte(c)
	}
}

func (t *tokenizer) scanHexString() (Token, error) {
	start := t.pos
	t.pos++ // '<'
	var nibbles []byte
	closed := false
	for {
		c, ok := t.at(t.pos)
		if !ok {
			if t.readErr != nil {
				return Token{}, t.readErr
			}
			break
		}
		t.pos++
		if c == '>' {
			closed = true
			break
		}
		if !isHexDigit(c) {
			// Whitespace and stray bytes inside hex strings are ignored.
			continue
		}
		nibbles = append(nibbles, hexVal(c))
		if t.cfg.MaxStringLength > 0 && int64(len(nibbles)+1)/2 > t.cfg.MaxStringLength {
			return Token{}, errors.New("hex string too long")
		}
	}
	if !closed {
		if _, err := t.report(errors.New("unterminated hex string"), "hex"); err != nil {
			return Token{}, err
		}
	}
	if len(nibbles)%2 == 1 {
		nibbles = append(nibbles, 0) // odd count: final digit is the high nibble
	}
	out := make([]byte, len(nibbles)/2)
	for i := range out {
		out[i] = nibbles[2*i]<<4 | nibbles[2*i+1]
	}
	return Token{Type: TokenString, Bytes: out, Pos: start}, nil
}

func (t *tokenizer) scanKeyword() (Token, error) {
	start := t.pos
	var kw bytes.Buffer
	for {
		c, ok := t.at(t.pos)
		if !ok || isDelimiter(c) {
			break
		}
		kw.WriteByte(c)
		t.pos++
	}
	switch word := kw.String(); word {
	case "true", "false":
		return Token{Type: TokenBoolean, Bool: word == "true", Pos: start}, nil
	case "null":
		return Token{Type: TokenNull, Pos: start}, nil
	case "stream":
		return t.scanStream(start)
	case "ID":
		return t.scanInlineImage(start)
	default:
		return Token{Type: TokenKeyword, Str: word, Pos: start}, nil
	}
}

func (t *tokenizer) scanNumberOrRef() (Token, error) {
	start := t.pos
	first := t.scanNumeral()
	if first == "" {
		if _, err := t.report(errors.New("malformed number"), "number"); err != nil {
			return Token{}, err
		}
		t.pos++ // drop the stray sign or period
		return Token{}, errResync
	}
	// Two non-negative integers followed by a bare R form an indirect
	// reference (PDF 7.3.10).
	if num, err := strconv.ParseInt(first, 10, 64); err == nil && num >= 0 {
		save := t.pos
		if gen, ok := t.scanRefTail(); ok {
			return Token{Type: TokenRef, Int: num, Gen: gen, Pos: start}, nil
		}
		t.pos = save
	}
	if i, err := strconv.ParseInt(first, 10, 64); err == nil {
		return Token{Type: TokenNumber, Int: i, IsInt: true, Pos: start}, nil
	}
	f, err := strconv.ParseFloat(first, 64)
	if err != nil {
		if _, rerr := t.report(errors.New("malformed number"), "number"); rerr != nil {
			return Token{}, rerr
		}
		return Token{}, errResync
	}
	return Token{Type: TokenNumber, Real: f, Pos: start}, nil
}

// scanRefTail tries to read 'G R' after an object number.
func (t *tokenizer) scanRefTail() (int, bool) {
	if err := t.skipSpace(); err != nil {
		return 0, false
	}
	genStr := t.scanNumeral()
	if genStr == "" {
		return 0, false
	}
	gen, err := strconv.ParseInt(genStr, 10, 32)
	if err != nil || gen < 0 {
		return 0, false
	}
	if err := t.skipSpace(); err != nil {
		return 0, false
	}
	c, ok := t.at(t.pos)
	if !ok || c != 'R' {
		return 0, false
	}
	if nxt, ok := t.at(t.pos + 1); ok && !isDelimiter(nxt) {
		return 0, false
	}
	t.pos++
	return int(gen), true
}

// scanNumeral consumes sign, digit, and period characters, resetting the
// position when no digit was present.
func (t *tokenizer) scanNumeral() string {
	start := t.pos
	digits := false
	for {
		c, ok := t.at(t.pos)
		if !ok {
			break
		}
		if c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') {
			if c >= '0' && c <= '9' {
				digits = true
			}
			t.pos++
			continue
		}
		break
	}
	if !digits {
		t.pos = start
		return ""
	}
	return string(t.buf[start:t.pos])
}

// scanStream reads the payload between the 'stream' keyword and its
// 'endstream' marker (PDF 7.3.8). A declared /Length set through
// SetNextStreamLength is tried first; when it does not line up with an
// endstream marker the payload is recovered by searching from the start of
// the data.
func (t *tokenizer) scanStream(start int64) (Token, error) {
	declared := t.nextStreamLen
	t.nextStreamLen = -1
	// An EOL is required between the keyword and the data. A lone CR is
	// accepted even though ISO 32000 calls for CRLF or LF.
	c, ok := t.at(t.pos)
	if !ok {
		if _, err := t.report(errors.New("stream keyword at end of input"), "stream"); err != nil {
			return Token{}, err
		}
		return Token{Type: TokenStream, Pos: start}, nil
	}
	switch c {
	case '\r':
		t.pos++
		if nxt, ok := t.at(t.pos); ok && nxt == '\n' {
			t.pos++
		}
	case '\n':
		t.pos++
	default:
		if _, err := t.report(errors.New("stream missing EOL before data"), "stream"); err != nil {
			return Token{}, err
		}
	}
	dataStart := t.pos
	if declared >= 0 {
		tok, ok, err := t.readDeclaredStream(start, dataStart, declared)
		if err != nil {
			return Token{}, err
		}
		if ok {
			return tok, nil
		}
	}
	return t.findStreamEnd(start, dataStart)
}

func (t *tokenizer) readDeclaredStream(start, dataStart, length int64) (Token, bool, error) {
	if t.cfg.MaxStreamLength > 0 && length > t.cfg.MaxStreamLength {
		return Token{}, false, errors.New("stream too long")
	}
	if err := t.ensure(dataStart + length - 1); err != nil {
		if !errors.Is(err, io.EOF) {
			return Token{}, false, err
		}
		if _, rerr := t.report(errors.New("stream ends before declared length"), "stream"); rerr != nil {
			return Token{}, false, rerr
		}
		if avail := int64(len(t.buf)) - dataStart; avail < length {
			length = avail
		}
	}
	end := dataStart + length
	t.pos = end
	// Optional EOL between data and marker.
	if c, ok := t.at(t.pos); ok {
		if c == '\r' {
			t.pos++
			if nxt, ok := t.at(t.pos); ok && nxt == '\n' {
				t.pos++
			}
		} else if c == '\n' {
			t.pos++
		}
	}
	if t.markerAt(t.pos) {
		payload := append([]byte(nil), t.buf[dataStart:end]...)
		t.pos += int64(len(endstreamMarker))
		return Token{Type: TokenStream, Bytes: payload, Pos: start}, true, nil
	}
	if _, err := t.report(errors.New("declared stream length does not reach endstream"), "stream"); err != nil {
		return Token{}, false, err
	}
	t.pos = dataStart
	return Token{}, false, nil
}

func (t *tokenizer) findStreamEnd(start, dataStart int64) (Token, error) {
	markerLen := int64(len(endstreamMarker))
	for i := dataStart; ; i++ {
		if t.cfg.MaxStreamScan > 0 && i-dataStart > t.cfg.MaxStreamScan {
			if _, err := t.report(errors.New("endstream not found within scan limit"), "stream"); err != nil {
				return Token{}, err
			}
			break
		}
		if t.cfg.MaxStreamLength > 0 && i-dataStart > t.cfg.MaxStreamLength+markerLen+2 {
			return Token{}, errors.New("stream too long")
		}
		if err := t.ensure(i + markerLen - 1); err != nil && !errors.Is(err, io.EOF) {
			return Token{}, err
		}
		if i+markerLen > int64(len(t.buf)) {
			// Ran out of input before any endstream marker.
			msg := "unterminated stream"
			if t.cfg.MaxStreamScan > 0 && int64(len(t.buf))-dataStart > t.cfg.MaxStreamScan {
				msg = "endstream not found within scan limit"
			}
			if _, err := t.report(errors.New(msg), "stream"); err != nil {
				return Token{}, err
			}
			break
		}
		if t.buf[i] != 'e' || !t.markerAt(i) {
			continue
		}
		// Payload bytes can spell endstream; require a whitespace boundary
		// before and a delimiter after the marker.
		if i > dataStart && !isWhitespace(t.buf[i-1]) {
			continue
		}
		if after, ok := t.at(i + markerLen); ok && !isDelimiter(after) {
			continue
		}
		end := trimStreamEOL(t.buf, dataStart, i)
		payload := append([]byte(nil), t.buf[dataStart:end]...)
		if t.cfg.MaxStreamLength > 0 && int64(len(payload)) > t.cfg.MaxStreamLength {
			return Token{}, errors.New("stream too long")
		}
		t.pos = i + markerLen
		return Token{Type: TokenStream, Bytes: payload, Pos: start}, nil
	}
	// Recovery accepted a stream without a marker: the rest of the input is
	// the payload.
	payload := append([]byte(nil), t.buf[dataStart:]...)
	if t.cfg.MaxStreamLength > 0 && int64(len(payload)) > t.cfg.MaxStreamLength {
		return Token{}, errors.New("stream too long")
	}
	t.pos = int64(len(t.buf))
	return Token{Type: TokenStream, Bytes: payload, Pos: start}, nil
}

func (t *tokenizer) markerAt(off int64) bool {
	if err := t.ensure(off + int64(len(endstreamMarker)) - 1); err != nil && !errors.Is(err, io.EOF) {
		return false
	}
	if off+int64(len(endstreamMarker)) > int64(len(t.buf)) {
		return false
	}
	return bytes.Equal(t.buf[off:off+int64(len(endstreamMarker))], endstreamMarker)
}

// trimStreamEOL drops the single EOL sequence separating payload from the
// endstream marker, when present.
func trimStreamEOL(buf []byte, dataStart, end int64) int64 {
	if end > dataStart && buf[end-1] == '\n' {
		end--
		if end > dataStart && buf[end-1] == '\r' {
			end--
		}
		return end
	}
	if end > dataStart && buf[end-1] == '\r' {
		end--
	}
	return end
}

// scanInlineImage reads raw image bytes between ID and EI. The payload is
// kept verbatim; decoding belongs to content stream consumers.
func (t *tokenizer) scanInlineImage(start int64) (Token, error) {
	c, ok := t.at(t.pos)
	if !ok || !isWhitespace(c) {
		if _, err := t.report(errors.New("inline image missing whitespace after ID"), "inline-image"); err != nil {
			return Token{}, err
		}
	} else {
		t.pos++
		// An EOL after the separator still precedes the data.
		if nxt, ok := t.at(t.pos); ok && nxt == '\r' {
			t.pos++
			if lf, ok := t.at(t.pos); ok && lf == '\n' {
				t.pos++
			}
		} else if ok && nxt == '\n' {
			t.pos++
		}
	}
	dataStart := t.pos
	for {
		c, ok := t.at(t.pos)
		if !ok {
			if t.readErr != nil {
				return Token{}, t.readErr
			}
			if _, err := t.report(errors.New("unterminated inline image"), "inline-image"); err != nil {
				return Token{}, err
			}
			payload := append([]byte(nil), t.buf[dataStart:]...)
			t.pos = int64(len(t.buf))
			return Token{Type: TokenInlineImage, Bytes: payload, Pos: start}, nil
		}
		if c == 'E' {
			if nxt, ok := t.at(t.pos + 1); ok && nxt == 'I' {
				// Binary samples can contain the two letters; require a line
				// break before EI and a delimiter after it.
				eolBefore := t.pos > dataStart && isEOL(t.buf[t.pos-1])
				after, more := t.at(t.pos + 2)
				if eolBefore && (!more || isDelimiter(after)) {
					payload := append([]byte(nil), t.buf[dataStart:t.pos]...)
					t.pos += 2
					return Token{Type: TokenInlineImage, Bytes: payload, Pos: start}, nil
				}
			}
		}
		t.pos++
		if t.cfg.MaxInlineImage > 0 && t.pos-dataStart > t.cfg.MaxInlineImage {
			return Token{}, errors.New("inline image too long")
		}
	}
}

// report routes a structural problem through the recovery strategy. The
// returned error is nil when the strategy elects to skip or fix.
func (t *tokenizer) report(err error, where string) (recovery.Action, error) {
	if t.cfg.Recovery == nil {
		return recovery.ActionFail, err
	}
	loc := t.loc
	loc.ByteOffset = t.pos
	if loc.Component != "" {
		loc.Component += "->"
	}
	loc.Component += "scanner:" + where
	switch action := t.cfg.Recovery.OnError(nil, err, loc); action {
	case recovery.ActionSkip, recovery.ActionFix:
		return action, nil
	default:
		return action, err
	}
}

// Whitespace set per PDF 7.2.3: NUL, HT, LF, FF, CR, SP.
func isWhitespace(c byte) bool {
	switch c {
	case 0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20:
		return true
	}
	return false
}

func isEOL(c byte) bool { return c == '\r' || c == '\n' }

// Delimiters per PDF 7.2.3. Whitespace also terminates tokens.
func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return isWhitespace(c)
}

func isNumberStart(c byte) bool {
	return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9')
}

func isKeywordStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
