package store_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quillpress/quill-server/internal/domain"
	"github.com/quillpress/quill-server/internal/store"
)

func setupTestStore(t *testing.T) *store.Badger {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "badger"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func makeUser(id, email string) *domain.User {
	now := time.Now()
	return &domain.User{
		ID:           id,
		Email:        email,
		PasswordHash: "$2a$10$fakehashfortest",
		Name:         "User " + id,
		Role:         domain.RoleAuthor,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

var articleClock = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func makeArticle(id, ownerID, title string, tags ...string) *domain.Article {
	articleClock = articleClock.Add(time.Minute)
	return &domain.Article{
		ID:            id,
		Title:         title,
		Content:       "<p>body of " + title + "</p>",
		ContentFormat: domain.ContentHTML,
		Tags:          tags,
		Banner:        domain.MediaRef{URL: "http://cdn/banners/" + id + ".png", AssetID: "banners/" + id},
		OwnerID:       ownerID,
		CreatedAt:     articleClock,
	}
}

func seedArticles(t *testing.T, s store.Store, ownerID string, n int, tags ...string) []*domain.Article {
	t.Helper()
	out := make([]*domain.Article, 0, n)
	for i := range n {
		a := makeArticle(fmt.Sprintf("art-%s-%02d", ownerID, i), ownerID, fmt.Sprintf("title %02d", i), tags...)
		require.NoError(t, s.CreateArticle(context.Background(), a))
		out = append(out, a)
	}
	return out
}
