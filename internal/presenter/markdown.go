package presenter

import (
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var markdownParser = goldmark.New().Parser()

// renderMarkdownToTelegramHTML walks a goldmark AST and emits Telegram's
// restricted HTML subset (b, i, code, pre, s, a) rather than goldmark's own
// HTML renderer, which emits tags (p, ul, h1, ...) Telegram's parse_mode
// rejects outright.
func renderMarkdownToTelegramHTML(src string) string {
	source := []byte(src)
	doc := markdownParser.Parse(text.NewReader(source))

	var b strings.Builder
	renderChildren(&b, doc, source)
	return strings.TrimSpace(b.String())
}

func renderChildren(b *strings.Builder, n ast.Node, source []byte) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		renderBlock(b, c, source)
	}
}

func renderBlock(b *strings.Builder, n ast.Node, source []byte) {
	switch node := n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		renderInlineChildren(b, n, source)
		b.WriteString("\n\n")

	case *ast.Heading:
		b.WriteString("<b>")
		renderInlineChildren(b, n, source)
		b.WriteString("</b>\n\n")

	case *ast.Blockquote:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			b.WriteString("&gt; ")
			renderBlock(b, c, source)
		}

	case *ast.List:
		ordered := node.Marker != '-' && node.Marker != '*' && node.Marker != '+'
		idx := node.Start
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if ordered {
				b.WriteString(itoa(idx) + ". ")
				idx++
			} else {
				b.WriteString("• ")
			}
			renderChildren(b, c, source)
		}
		b.WriteString("\n")

	case *ast.ListItem:
		renderChildren(b, n, source)

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		b.WriteString("<pre>")
		b.WriteString(html.EscapeString(codeBlockText(n, source)))
		b.WriteString("</pre>\n\n")

	case *ast.ThematicBreak:
		b.WriteString("――――\n\n")

	default:
		renderChildren(b, n, source)
	}
}

func renderInlineChildren(b *strings.Builder, n ast.Node, source []byte) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		renderInline(b, c, source)
	}
}

func renderInline(b *strings.Builder, n ast.Node, source []byte) {
	switch node := n.(type) {
	case *ast.Text:
		b.WriteString(html.EscapeString(string(node.Segment.Value(source))))
		if node.SoftLineBreak() || node.HardLineBreak() {
			b.WriteString("\n")
		}

	case *ast.String:
		b.WriteString(html.EscapeString(string(node.Value)))

	case *ast.Emphasis:
		tag := "i"
		if node.Level >= 2 {
			tag = "b"
		}
		b.WriteString("<" + tag + ">")
		renderInlineChildren(b, n, source)
		b.WriteString("</" + tag + ">")

	case *ast.CodeSpan:
		b.WriteString("<code>")
		renderInlineChildren(b, n, source)
		b.WriteString("</code>")

	case *ast.Link:
		b.WriteString(`<a href="` + html.EscapeString(string(node.Destination)) + `">`)
		renderInlineChildren(b, n, source)
		b.WriteString("</a>")

	case *ast.AutoLink:
		url := string(node.URL(source))
		b.WriteString(`<a href="` + html.EscapeString(url) + `">` + html.EscapeString(url) + `</a>`)

	default:
		renderInlineChildren(b, n, source)
	}
}

func codeBlockText(n ast.Node, source []byte) string {
	lines := n.Lines()
	var b strings.Builder
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
	return strings.TrimRight(b.String(), "\n")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
