package api

import (
	"net/http"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillpress/quill-server/internal/domain"
)

func TestCreateArticle_Authorization(t *testing.T) {
	ts := setupTestServer(t)
	readerToken, _ := ts.register(t, "reader@example.com", domain.RoleReader)
	fields := map[string]string{"title": "Hello", "content": "<p>Hi</p>"}

	w := ts.doMultipart(t, http.MethodPost, "/api/v1/articles", "", fields, bannerFile(t))
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeEnvelope(t, w).Code)

	w = ts.doMultipart(t, http.MethodPost, "/api/v1/articles", readerToken, fields, bannerFile(t))
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", decodeEnvelope(t, w).Code)
}

func TestCreateArticle_Validation(t *testing.T) {
	ts := setupTestServer(t)
	token, _ := ts.register(t, "ada@example.com", domain.RoleAuthor)

	tests := []struct {
		name   string
		fields map[string]string
		files  []formFile
	}{
		{"missing banner", map[string]string{"title": "T", "content": "<p>c</p>"}, nil},
		{"missing title", map[string]string{"content": "<p>c</p>"}, []formFile{bannerFile(t)}},
		{"missing content", map[string]string{"title": "T"}, []formFile{bannerFile(t)}},
		{"bad featured flag", map[string]string{"title": "T", "content": "c", "featured": "maybe"}, []formFile{bannerFile(t)}},
		{"banner is not an image", map[string]string{"title": "T", "content": "c"}, []formFile{{field: "banner", filename: "b.png", data: []byte("plain text")}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.doMultipart(t, http.MethodPost, "/api/v1/articles", token, tt.fields, tt.files...)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, "VALIDATION", decodeEnvelope(t, w).Code)
		})
	}

	list := ts.do(t, http.MethodGet, "/api/v1/articles", "", nil)
	assert.EqualValues(t, 0, dataMap(t, list)["total"])
}

func TestCreateArticle_LinksOwner(t *testing.T) {
	ts := setupTestServer(t)
	token, userID := ts.register(t, "ada@example.com", domain.RoleAuthor)

	article := ts.createArticle(t, token, "Hello", map[string]string{"tags": "Go, Web", "featured": "true"})
	articleID := article["id"].(string)

	assert.Equal(t, userID, article["owner_id"])
	assert.Equal(t, []any{"go", "web"}, article["tags"])
	assert.Equal(t, true, article["featured"])
	banner := article["banner"].(map[string]any)
	assert.True(t, strings.HasPrefix(banner["url"].(string), testPublicURL+"/media/banners/"))
	assert.NotEmpty(t, banner["blur_hash"])

	me := dataMap(t, ts.do(t, http.MethodGet, "/api/v1/users/me", token, nil))
	assert.Contains(t, me["article_ids"], articleID)

	got := dataMap(t, ts.do(t, http.MethodGet, "/api/v1/articles/"+articleID, "", nil))
	assert.Equal(t, "Hello", got["title"])
	author := got["author"].(map[string]any)
	assert.Equal(t, userID, author["id"])
	assert.NotContains(t, author, "email")
}

// Register, create with banner B1, swap to B2, delete.
func TestArticleLifecycle(t *testing.T) {
	ts := setupTestServer(t)
	token, _ := ts.register(t, "ada@example.com", domain.RoleAuthor)

	created := ts.createArticle(t, token, "Draft", nil)
	articleID := created["id"].(string)
	firstBanner := created["banner"].(map[string]any)["asset_id"].(string)
	assertAssetExists(t, ts, firstBanner)

	w := ts.doMultipart(t, http.MethodPut, "/api/v1/articles/"+articleID, token,
		map[string]string{"title": "Final"},
		formFile{field: "banner", filename: "b2.png", data: pngBytes(t, 90)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	updated := dataMap(t, w)
	assert.Equal(t, "Final", updated["title"])
	assert.Equal(t, created["content"], updated["content"], "absent fields are kept")
	secondBanner := updated["banner"].(map[string]any)["asset_id"].(string)
	assert.NotEqual(t, firstBanner, secondBanner)
	assertAssetExists(t, ts, secondBanner)
	assertAssetGone(t, ts, firstBanner)

	w = ts.do(t, http.MethodDelete, "/api/v1/articles/"+articleID, token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	deleted := dataMap(t, w)
	assert.Equal(t, articleID, deleted["id"])
	assert.Equal(t, true, deleted["mediaDeleted"])
	assertAssetGone(t, ts, secondBanner)

	w = ts.do(t, http.MethodGet, "/api/v1/articles/"+articleID, "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeEnvelope(t, w).Code)

	me := dataMap(t, ts.do(t, http.MethodGet, "/api/v1/users/me", token, nil))
	assert.NotContains(t, me["article_ids"], articleID)
}

// Another author can neither update nor delete; an admin can delete.
func TestArticleOwnership(t *testing.T) {
	ts := setupTestServer(t)
	ownerToken, _ := ts.register(t, "owner@example.com", domain.RoleAuthor)
	otherToken, _ := ts.register(t, "other@example.com", domain.RoleAuthor)

	article := ts.createArticle(t, ownerToken, "Mine", nil)
	articleID := article["id"].(string)

	w := ts.doMultipart(t, http.MethodPut, "/api/v1/articles/"+articleID, otherToken, map[string]string{"title": "Stolen"})
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", decodeEnvelope(t, w).Code)

	w = ts.do(t, http.MethodDelete, "/api/v1/articles/"+articleID, otherToken, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	got := dataMap(t, ts.do(t, http.MethodGet, "/api/v1/articles/"+articleID, "", nil))
	assert.Equal(t, "Mine", got["title"])

	w = ts.do(t, http.MethodDelete, "/api/v1/articles/"+articleID, ts.adminToken(t), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, http.MethodGet, "/api/v1/articles/"+articleID, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateArticle_MissingArticle(t *testing.T) {
	ts := setupTestServer(t)
	token, _ := ts.register(t, "ada@example.com", domain.RoleAuthor)

	w := ts.doMultipart(t, http.MethodPut, "/api/v1/articles/art-missing", token, map[string]string{"title": "X"})
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeEnvelope(t, w).Code)
}

func TestListArticles(t *testing.T) {
	ts := setupTestServer(t)
	token, _ := ts.register(t, "ada@example.com", domain.RoleAuthor)
	for _, title := range []string{"Charlie", "Alpha", "Bravo"} {
		ts.createArticle(t, token, title, map[string]string{"tags": "go"})
	}
	ts.createArticle(t, token, "Delta", map[string]string{"tags": "rust"})

	t.Run("pagination is clamped", func(t *testing.T) {
		page := dataMap(t, ts.do(t, http.MethodGet, "/api/v1/articles?page=0&limit=500", "", nil))
		assert.EqualValues(t, 1, page["page"])
		assert.EqualValues(t, 100, page["limit"])
		assert.EqualValues(t, 4, page["total"])
		assert.Len(t, page["items"], 4)
	})

	t.Run("title order with paging", func(t *testing.T) {
		page := dataMap(t, ts.do(t, http.MethodGet, "/api/v1/articles?sort=title-asc&limit=2", "", nil))
		assert.Equal(t, []string{"Alpha", "Bravo"}, titles(page["items"]))
		assert.Equal(t, true, page["has_more"])

		next := dataMap(t, ts.do(t, http.MethodGet, "/api/v1/articles?sort=title-asc&limit=2&page=2", "", nil))
		assert.Equal(t, []string{"Charlie", "Delta"}, titles(next["items"]))
		assert.Equal(t, false, next["has_more"])
	})

	t.Run("genre listing", func(t *testing.T) {
		page := dataMap(t, ts.do(t, http.MethodGet, "/api/v1/articles/genre/go?sort=title-desc", "", nil))
		assert.Equal(t, []string{"Charlie", "Bravo", "Alpha"}, titles(page["items"]))
	})

	t.Run("search", func(t *testing.T) {
		page := dataMap(t, ts.do(t, http.MethodGet, "/api/v1/articles/search?query=bravo", "", nil))
		assert.Equal(t, []string{"Bravo"}, titles(page["items"]))
	})

	t.Run("random returns distinct articles", func(t *testing.T) {
		list := dataList(t, ts.do(t, http.MethodGet, "/api/v1/articles/random?limit=3", "", nil))
		got := titles(list)
		require.Len(t, got, 3)
		slices.Sort(got)
		assert.Len(t, slices.Compact(got), 3)
	})

	t.Run("latest", func(t *testing.T) {
		list := dataList(t, ts.do(t, http.MethodGet, "/api/v1/articles/latest?limit=2", "", nil))
		assert.Len(t, list, 2)
	})
}

func TestFeaturedAndHome(t *testing.T) {
	ts := setupTestServer(t)
	token, userID := ts.register(t, "ada@example.com", domain.RoleAuthor)
	ts.createArticle(t, token, "Plain", nil)
	ts.createArticle(t, token, "Star", map[string]string{"featured": "true", "tags": "news"})

	featured := dataList(t, ts.do(t, http.MethodGet, "/api/v1/articles/featured", "", nil))
	assert.Equal(t, []string{"Star"}, titles(featured))

	home := dataList(t, ts.do(t, http.MethodGet, "/api/v1/articles/home/featured", "", nil))
	assert.Equal(t, []string{"Star"}, titles(home))

	byTag := dataList(t, ts.do(t, http.MethodGet, "/api/v1/articles/home/news", "", nil))
	assert.Equal(t, []string{"Star"}, titles(byTag))

	latest := dataList(t, ts.do(t, http.MethodGet, "/api/v1/articles/home/latest", "", nil))
	assert.Len(t, latest, 2)

	authorPage := dataMap(t, ts.do(t, http.MethodGet, "/api/v1/articles/author/"+userID, "", nil))
	author := authorPage["author"].(map[string]any)
	assert.Equal(t, userID, author["id"])
	articles := authorPage["articles"].(map[string]any)
	assert.EqualValues(t, 2, articles["total"])
}

func TestGetArticleMarkdown(t *testing.T) {
	ts := setupTestServer(t)
	token, _ := ts.register(t, "ada@example.com", domain.RoleAuthor)
	article := ts.createArticle(t, token, "Notes", map[string]string{
		"content":       "Some **bold** text",
		"contentFormat": "markdown",
	})

	w := ts.do(t, http.MethodGet, "/api/v1/articles/"+article["id"].(string)+"/markdown", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/markdown"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "# Notes\n\n"), w.Body.String())
	assert.Contains(t, w.Body.String(), "**bold**")
}

func titles(items any) []string {
	list, _ := items.([]any)
	out := make([]string, 0, len(list))
	for _, item := range list {
		out = append(out, item.(map[string]any)["title"].(string))
	}
	return out
}
