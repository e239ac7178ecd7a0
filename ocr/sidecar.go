package ocr

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// SidecarText flattens the provider's markdown rendering into plain
// text suitable for a sidecar file next to the embedded output. Block
// elements become paragraphs separated by blank lines; inline markup is
// dropped, keeping only its text.
func SidecarText(markdown string) string {
	src := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var blocks []string
	collectBlocks(doc, src, &blocks)
	return strings.Join(blocks, "\n\n")
}

func collectBlocks(node ast.Node, src []byte, blocks *[]string) {
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch n := child.(type) {
		case *ast.List:
			var items []string
			for item := n.FirstChild(); item != nil; item = item.NextSibling() {
				if s := inlineText(item, src); s != "" {
					items = append(items, "- "+s)
				}
			}
			if len(items) > 0 {
				*blocks = append(*blocks, strings.Join(items, "\n"))
			}
		case *ast.Blockquote:
			collectBlocks(n, src, blocks)
		case *ast.FencedCodeBlock:
			if s := codeLines(n, src); s != "" {
				*blocks = append(*blocks, s)
			}
		case *ast.CodeBlock:
			if s := codeLines(n, src); s != "" {
				*blocks = append(*blocks, s)
			}
		case *ast.ThematicBreak, *ast.HTMLBlock:
			// carries no sidecar text
		default:
			if s := inlineText(child, src); s != "" {
				*blocks = append(*blocks, s)
			}
		}
	}
}

// inlineText concatenates the text content beneath a node, joining soft
// and hard line breaks with single spaces.
func inlineText(node ast.Node, src []byte) string {
	var sb strings.Builder
	appendInline(&sb, node, src)
	return strings.TrimSpace(sb.String())
}

func appendInline(sb *strings.Builder, node ast.Node, src []byte) {
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch t := child.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.AutoLink:
			sb.Write(t.URL(src))
		default:
			appendInline(sb, child, src)
		}
	}
}

func codeLines(node ast.Node, src []byte) string {
	var sb strings.Builder
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(src))
	}
	return strings.TrimRight(sb.String(), "\n")
}
