// Package content converts article bodies between HTML, Markdown, and plain text.
package content

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// ellipsis is appended to truncated text.
const ellipsis = "…"

// StripHTML removes markup and returns plain text with whitespace collapsed.
// Script and style contents are dropped.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}

	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return collapseWhitespace(html.UnescapeString(htmlTagRegex.ReplaceAllString(s, " ")))
	}

	var buf strings.Builder
	extractText(doc, &buf)
	return collapseWhitespace(buf.String())
}

func extractText(n *html.Node, buf *strings.Builder) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript", "template":
			return
		}
	}

	if n.Type == html.TextNode {
		buf.WriteString(n.Data)
	}

	if n.Type == html.ElementNode && isBlock(n.Data) {
		buf.WriteByte(' ')
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, buf)
	}

	if n.Type == html.ElementNode && isBlock(n.Data) {
		buf.WriteByte(' ')
	}
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "br", "li", "ul", "ol", "blockquote", "pre", "figure", "figcaption",
		"h1", "h2", "h3", "h4", "h5", "h6", "tr", "td", "th", "hr":
		return true
	}
	return false
}

var (
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

// Truncate shortens s to at most n runes, ending with an ellipsis when cut.
// It prefers to cut at a word boundary in the last fifth of the budget.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	runes := []rune(s)
	cut := runes[:n-1]

	if i := lastSpace(cut); i >= (n-1)*4/5 {
		cut = cut[:i]
	}
	return strings.TrimRight(string(cut), " ,.;:") + ellipsis
}

func lastSpace(r []rune) int {
	for i := len(r) - 1; i >= 0; i-- {
		if r[i] == ' ' {
			return i
		}
	}
	return -1
}

// Excerpt returns the plain-text preview of an HTML body.
func Excerpt(body string, n int) string {
	return Truncate(StripHTML(body), n)
}
