package content

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain text", "just words", "just words"},
		{"inline tags", "<p>Hello <b>world</b></p>", "Hello world"},
		{"blocks separate words", "<h1>Title</h1><p>Body</p>", "Title Body"},
		{"entities decoded", "<p>Fish &amp; Chips</p>", "Fish & Chips"},
		{"script dropped", "<p>Safe</p><script>alert(1)</script><style>p{}</style>", "Safe"},
		{"whitespace collapsed", "<p>a\n\n   b\t c</p>", "a b c"},
		{"list items", "<ul><li>one</li><li>two</li></ul>", "one two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripHTML(tt.in))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "", Truncate("anything", 0))

	got := Truncate("hello world foo", 10)
	assert.Equal(t, "hello wor…", got)
	assert.Equal(t, 10, utf8.RuneCountInString(got))

	// Prefers a word boundary near the end.
	assert.Equal(t, "abcdefghij…", Truncate("abcdefghij klm", 12))

	// Never splits a multi-byte rune.
	got = Truncate(strings.Repeat("é", 50), 20)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 20, utf8.RuneCountInString(got))
}

func TestExcerpt(t *testing.T) {
	body := "<p>" + strings.Repeat("word ", 100) + "</p>"
	got := Excerpt(body, 200)

	assert.LessOrEqual(t, utf8.RuneCountInString(got), 200)
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.NotContains(t, got, "<")
}

func TestRenderMarkdown(t *testing.T) {
	out, err := RenderMarkdown("# Hi\n\nSome ~~gone~~ text.\n\n<script>alert(1)</script>\n")
	require.NoError(t, err)

	assert.Contains(t, out, "Hi</h1>")
	assert.Contains(t, out, "<del>gone</del>")
	assert.NotContains(t, out, "<script>")
}

func TestToMarkdown(t *testing.T) {
	out, err := ToMarkdown("<h1>Title</h1><p>Some <strong>bold</strong> text</p>")
	require.NoError(t, err)

	assert.Contains(t, out, "# Title")
	assert.Contains(t, out, "**bold**")

	out, err = ToMarkdown("   ")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestNormalizeTag(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Science Fiction", "science-fiction"},
		{"Café Culture!", "cafe-culture"},
		{"  --Go--  ", "go"},
		{"sci_fi/fantasy", "sci-fi-fantasy"},
		{"TECH", "tech"},
		{"東京 旅行", "東京-旅行"},
		{"!!!", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTag(tt.in))
		})
	}

	long := NormalizeTag(strings.Repeat("a", 100))
	assert.Equal(t, MaxTagLength, utf8.RuneCountInString(long))
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{"Tech", "tech", " ", "Travel", "TECH!", "café"})
	assert.Equal(t, []string{"tech", "travel", "cafe"}, got)

	assert.Empty(t, NormalizeTags(nil))
}

func TestSplitTags(t *testing.T) {
	assert.Equal(t, []string{"go", "web-dev"}, SplitTags("Go, Web Dev ,go,"))
	assert.Nil(t, SplitTags("  "))
}
