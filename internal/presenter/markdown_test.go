package presenter

import (
	"strings"
	"testing"
)

func TestRenderMarkdownBoldAndItalic(t *testing.T) {
	out := renderMarkdownToTelegramHTML("**bold** and *italic*")
	if !strings.Contains(out, "<b>bold</b>") {
		t.Fatalf("missing bold: %q", out)
	}
	if !strings.Contains(out, "<i>italic</i>") {
		t.Fatalf("missing italic: %q", out)
	}
}

func TestRenderMarkdownCodeSpanAndFence(t *testing.T) {
	out := renderMarkdownToTelegramHTML("inline `code()` here\n\n```\nfenced block\n```")
	if !strings.Contains(out, "<code>code()</code>") {
		t.Fatalf("missing code span: %q", out)
	}
	if !strings.Contains(out, "<pre>fenced block</pre>") {
		t.Fatalf("missing code fence: %q", out)
	}
}

func TestRenderMarkdownLink(t *testing.T) {
	out := renderMarkdownToTelegramHTML("[docs](https://example.com/path)")
	if !strings.Contains(out, `<a href="https://example.com/path">docs</a>`) {
		t.Fatalf("missing link: %q", out)
	}
}

func TestRenderMarkdownNeverEmitsDisallowedTags(t *testing.T) {
	out := renderMarkdownToTelegramHTML("# Heading\n\n- one\n- two\n\n> quoted\n\n1. first\n2. second")
	for _, banned := range []string{"<h1", "<ul", "<li", "<p>", "<blockquote"} {
		if strings.Contains(out, banned) {
			t.Fatalf("output contains Telegram-unsafe tag %q: %q", banned, out)
		}
	}
	if !strings.Contains(out, "1. first") {
		t.Fatalf("ordered list lost its numbering: %q", out)
	}
	if !strings.Contains(out, "&gt; quoted") {
		t.Fatalf("blockquote not escaped: %q", out)
	}
}

func TestRenderMarkdownEscapesHTMLSpecialChars(t *testing.T) {
	out := renderMarkdownToTelegramHTML("a < b && c > d")
	if strings.Contains(out, "< b") || strings.Contains(out, "c >") {
		t.Fatalf("raw angle brackets leaked into output: %q", out)
	}
}
