package search

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillpress/quill-server/internal/domain"
)

func setupTestIndex(t *testing.T) *Index {
	t.Helper()

	index, err := Open(Options{
		DataPath: t.TempDir(),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	return index
}

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func article(id, title, body string, age int, tags ...string) *domain.Article {
	return &domain.Article{
		ID:        id,
		Title:     title,
		Content:   body,
		Tags:      tags,
		OwnerID:   "usr-1",
		CreatedAt: base.Add(time.Duration(age) * time.Hour),
	}
}

func seed(t *testing.T, index *Index) {
	t.Helper()
	require.NoError(t, index.IndexArticles([]*domain.Article{
		article("art-1", "The Hobbit Returns", "<p>A journey through the mountains.</p>", 1, "fantasy"),
		article("art-2", "Cooking with Cast Iron", "<p>Seasoning matters more than the recipe.</p>", 2, "food"),
		article("art-3", "Mountain Biking Basics", "<p>Gear, trails and <b>safety</b>.</p>", 3, "outdoors", "sports"),
		article("art-4", "Weekly Notes", "<p>Nothing about hobbits here, only <script>mountains()</script></p>", 4),
	}))
}

func search(t *testing.T, index *Index, q string) *Result {
	t.Helper()
	res, err := index.Search(context.Background(), q, 10, 0)
	require.NoError(t, err)
	return res
}

func TestOpen_Empty(t *testing.T) {
	index := setupTestIndex(t)

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestOpen_RebuildsOnVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	opts := Options{DataPath: dir, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	index, err := Open(opts)
	require.NoError(t, err)
	require.NoError(t, index.IndexArticle(article("art-1", "Title", "body", 0)))
	require.NoError(t, index.Close())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "search.version"), []byte("0"), 0o644))

	index, err = Open(opts)
	require.NoError(t, err)
	defer index.Close()

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestSearch_TitleWords(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	res := search(t, index, "hobbit")
	require.NotEmpty(t, res.IDs)
	assert.Equal(t, "art-1", res.IDs[0])
}

func TestSearch_Substring(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	res := search(t, index, "ast iro")
	assert.Equal(t, []string{"art-2"}, res.IDs)

	res = search(t, index, "easonin")
	assert.Equal(t, []string{"art-2"}, res.IDs)
}

func TestSearch_Tag(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	res := search(t, index, "Outdoors")
	require.NotEmpty(t, res.IDs)
	assert.Equal(t, "art-3", res.IDs[0])
}

func TestSearch_ContentIsPlainText(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	// Script bodies are stripped before indexing; markup names are not content.
	res := search(t, index, "mountains()")
	assert.NotContains(t, res.IDs, "art-4")

	res = search(t, index, "script")
	assert.Empty(t, res.IDs)
}

func TestSearch_EmptyQuery(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	res := search(t, index, "   ")
	assert.Empty(t, res.IDs)
	assert.Zero(t, res.Total)

	res = search(t, index, "**")
	assert.Empty(t, res.IDs)
}

func TestSearch_Pagination(t *testing.T) {
	index := setupTestIndex(t)

	var articles []*domain.Article
	for i, id := range []string{"art-a", "art-b", "art-c", "art-d", "art-e"} {
		articles = append(articles, article(id, "Daily Journal", "entry", i))
	}
	require.NoError(t, index.IndexArticles(articles))

	first, err := index.Search(context.Background(), "journal", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, first.Total)
	// Equal relevance falls back to newest first.
	assert.Equal(t, []string{"art-e", "art-d"}, first.IDs)

	last, err := index.Search(context.Background(), "journal", 2, 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"art-a"}, last.IDs)
}

func TestDeleteArticle(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	require.NoError(t, index.DeleteArticle("art-2"))
	assert.Empty(t, search(t, index, "cast iron").IDs)

	require.NoError(t, index.DeleteArticles([]string{"art-1", "art-3"}))
	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestIndexArticle_Replaces(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	updated := article("art-2", "Baking Bread", "<p>Flour and water.</p>", 2)
	require.NoError(t, index.IndexArticle(updated))

	assert.Empty(t, search(t, index, "cast iron").IDs)
	assert.Equal(t, []string{"art-2"}, search(t, index, "bread").IDs)

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), count)
}

func TestReindex(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	require.NoError(t, index.Reindex([]*domain.Article{
		article("art-9", "Fresh Start", "new", 0),
	}))

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
	assert.Equal(t, []string{"art-9"}, search(t, index, "fresh").IDs)
}
