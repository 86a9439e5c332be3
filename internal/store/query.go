package store

import (
	"cmp"
	"slices"
	"strings"

	"github.com/quillpress/quill-server/internal/domain"
)

// SortArticles orders articles in place. Ties fall back to id so that
// pagination is stable.
func SortArticles(articles []*domain.Article, s Sort) {
	slices.SortStableFunc(articles, func(a, b *domain.Article) int {
		var c int
		switch s {
		case SortOldest:
			c = a.CreatedAt.Compare(b.CreatedAt)
		case SortTitleAsc:
			c = cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		case SortTitleDesc:
			c = cmp.Compare(strings.ToLower(b.Title), strings.ToLower(a.Title))
		default:
			c = b.CreatedAt.Compare(a.CreatedAt)
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// MatchesTerm reports whether term occurs in the title, content, or tags
// of a, ignoring case.
func MatchesTerm(a *domain.Article, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	if strings.Contains(strings.ToLower(a.Title), term) ||
		strings.Contains(strings.ToLower(a.Content), term) {
		return true
	}
	for _, t := range a.Tags {
		if strings.Contains(strings.ToLower(t), term) {
			return true
		}
	}
	return false
}
