package extractor

import (
	"bufio"
	"bytes"
	"sort"
	"strings"
	"unicode/utf16"
)

// fontDecoder turns show-string bytes back into text. A nil decoder or
// one without a ToUnicode map falls back to byte-wise decoding.
type fontDecoder struct {
	cmap *toUnicodeMap
}

// decode maps raw show-string bytes to text. Without a ToUnicode map the
// bytes are read as Latin-1, which covers the printable WinAnsi range
// the built-in overlay font encodes into.
func (d *fontDecoder) decode(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if d != nil && d.cmap != nil {
		return d.cmap.decode(data)
	}
	if len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF {
		return decodeUTF16BE(data[2:])
	}
	var sb strings.Builder
	for _, b := range data {
		sb.WriteRune(rune(b))
	}
	return sb.String()
}

// toUnicodeMap is a parsed ToUnicode CMap: code bytes to text, plus the
// set of code lengths seen so decoding can longest-match multi-byte
// codes before single bytes.
type toUnicodeMap struct {
	entries map[string]string
	lengths []int
}

func (m *toUnicodeMap) decode(data []byte) string {
	if len(m.lengths) == 0 {
		return string(data)
	}
	var out strings.Builder
	for len(data) > 0 {
		matched := false
		for _, l := range m.lengths {
			if len(data) < l {
				continue
			}
			if val, ok := m.entries[string(data[:l])]; ok {
				out.WriteString(val)
				data = data[l:]
				matched = true
				break
			}
		}
		if !matched {
			out.WriteByte(data[0])
			data = data[1:]
		}
	}
	return out.String()
}

// parseToUnicodeCMap reads the bfchar/bfrange sections of a ToUnicode
// CMap (ISO 32000 9.10.3). The grammar is line oriented in practice;
// damaged lines are skipped.
func parseToUnicodeCMap(data []byte) *toUnicodeMap {
	m := &toUnicodeMap{entries: make(map[string]string)}
	lengthSet := make(map[int]struct{})

	lines := bufio.NewScanner(bytes.NewReader(data))
	section := ""
	for lines.Scan() {
		line := strings.TrimSpace(lines.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		switch {
		case strings.HasSuffix(line, "begincodespacerange"):
			section = "codespace"
			continue
		case strings.HasSuffix(line, "beginbfchar"):
			section = "bfchar"
			continue
		case strings.HasSuffix(line, "beginbfrange"):
			section = "bfrange"
			continue
		case strings.HasSuffix(line, "endcodespacerange"),
			strings.HasSuffix(line, "endbfchar"),
			strings.HasSuffix(line, "endbfrange"):
			section = ""
			continue
		}

		switch section {
		case "codespace":
			if codes := hexTokens(line); len(codes) > 0 {
				if b := hexBytes(codes[0]); len(b) > 0 {
					lengthSet[len(b)] = struct{}{}
				}
			}
		case "bfchar":
			codes := hexTokens(line)
			if len(codes) < 2 {
				continue
			}
			src := hexBytes(codes[0])
			if len(src) == 0 {
				continue
			}
			m.entries[string(src)] = decodeUTF16BE(hexBytes(codes[1]))
			lengthSet[len(src)] = struct{}{}
		case "bfrange":
			line = joinBracketedLines(line, lines)
			codes := hexTokens(line)
			if len(codes) < 3 {
				continue
			}
			src := hexBytes(codes[0])
			start := bytesToInt(src)
			end := bytesToInt(hexBytes(codes[1]))
			if end < start {
				continue
			}
			lengthSet[len(src)] = struct{}{}
			if strings.Contains(line, "[") {
				// <start> <end> [<dst> <dst> ...]
				for i := 0; i <= end-start && 2+i < len(codes); i++ {
					key := intToBytes(start+i, len(src))
					m.entries[string(key)] = decodeUTF16BE(hexBytes(codes[2+i]))
				}
			} else {
				// <start> <end> <dstStart>
				dst := hexBytes(codes[2])
				dstVal := bytesToInt(dst)
				for i := 0; i <= end-start; i++ {
					key := intToBytes(start+i, len(src))
					m.entries[string(key)] = decodeUTF16BE(intToBytes(dstVal+i, len(dst)))
				}
			}
		}
	}

	if len(lengthSet) == 0 {
		for k := range m.entries {
			lengthSet[len(k)] = struct{}{}
		}
	}
	for l := range lengthSet {
		m.lengths = append(m.lengths, l)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(m.lengths)))
	return m
}

// joinBracketedLines pulls in continuation lines until the bfrange
// destination array closes.
func joinBracketedLines(line string, lines *bufio.Scanner) string {
	if !strings.Contains(line, "[") || strings.Contains(line, "]") {
		return line
	}
	for lines.Scan() {
		next := strings.TrimSpace(lines.Text())
		line += " " + next
		if strings.Contains(next, "]") {
			break
		}
	}
	return line
}

// hexTokens returns the contents of every <...> group on the line,
// whitespace stripped.
func hexTokens(line string) []string {
	var tokens []string
	for {
		start := strings.IndexByte(line, '<')
		if start == -1 {
			break
		}
		end := strings.IndexByte(line[start+1:], '>')
		if end == -1 {
			break
		}
		tokens = append(tokens, strings.ReplaceAll(line[start+1:start+1+end], " ", ""))
		line = line[start+1+end+1:]
	}
	return tokens
}

func hexBytes(tok string) []byte {
	if len(tok)%2 == 1 {
		tok += "0"
	}
	out := make([]byte, len(tok)/2)
	for i := 0; i < len(tok); i += 2 {
		out[i/2] = hexNibble(tok[i])<<4 | hexNibble(tok[i+1])
	}
	return out
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return 0
	}
}

func bytesToInt(b []byte) int {
	v := 0
	for _, x := range b {
		v = v<<8 | int(x)
	}
	return v
}

func intToBytes(v, length int) []byte {
	out := make([]byte, length)
	for i := length - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}

func decodeUTF16BE(data []byte) string {
	if len(data)%2 != 0 {
		data = data[:len(data)-1]
	}
	if len(data) == 0 {
		return ""
	}
	units := make([]uint16, len(data)/2)
	for i := range units {
		units[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return string(utf16.Decode(units))
}
