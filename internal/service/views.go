package service

import (
	"context"

	"github.com/quillpress/quill-server/internal/content"
	"github.com/quillpress/quill-server/internal/domain"
	"github.com/quillpress/quill-server/internal/store"
)

// excerptLength is the length of the plain-text preview on listings.
const excerptLength = 200

// ArticleView is an article as returned to clients, with its author resolved.
type ArticleView struct {
	domain.Article
	Excerpt string             `json:"excerpt"`
	Author  *domain.PublicUser `json:"author,omitempty"`
}

func newView(a *domain.Article, owner *domain.User) ArticleView {
	v := ArticleView{Article: *a, Excerpt: content.Excerpt(a.Content, excerptLength)}
	if v.Tags == nil {
		v.Tags = []string{}
	}
	if owner != nil {
		author := owner.Author()
		author.ArticleIDs = nil
		v.Author = &author
	}
	return v
}

// hydrate attaches authors to articles with one batched user lookup.
// Articles whose owner is gone keep a nil author.
func hydrate(ctx context.Context, st store.Store, articles []*domain.Article) ([]ArticleView, error) {
	ownerIDs := make([]string, 0, len(articles))
	for _, a := range articles {
		ownerIDs = append(ownerIDs, a.OwnerID)
	}

	owners, err := st.GetUsersByIDs(ctx, ownerIDs)
	if err != nil {
		return nil, storeError(err, "user not found")
	}

	views := make([]ArticleView, 0, len(articles))
	for _, a := range articles {
		views = append(views, newView(a, owners[a.OwnerID]))
	}
	return views, nil
}

// hydratePage is hydrate for a paginated listing.
func hydratePage(ctx context.Context, st store.Store, page *store.PaginatedResult[*domain.Article]) (*store.PaginatedResult[ArticleView], error) {
	views, err := hydrate(ctx, st, page.Items)
	if err != nil {
		return nil, err
	}
	return &store.PaginatedResult[ArticleView]{
		Items:      views,
		Page:       page.Page,
		Limit:      page.Limit,
		Total:      page.Total,
		TotalPages: page.TotalPages,
		HasMore:    page.HasMore,
	}, nil
}

// clampLimit applies the listing bounds to a bare limit.
func clampLimit(limit int) int {
	p := store.Page{Number: 1, Limit: limit}
	p.Normalize()
	return p.Limit
}
