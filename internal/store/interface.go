// Package store defines the persistence interface for the Quill server
// and its Badger implementation.
package store

import (
	"context"

	"github.com/quillpress/quill-server/internal/domain"
)

// Store defines the interface for all persistence operations.
type Store interface {
	// Lifecycle
	Close() error

	// Users
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]*domain.User, error)
	CountUsers(ctx context.Context) (int, error)

	// Articles. CreateArticle and DeleteArticle update the owner's
	// back-reference list in the same transaction as the article record.
	CreateArticle(ctx context.Context, article *domain.Article) error
	GetArticle(ctx context.Context, id string) (*domain.Article, error)
	UpdateArticle(ctx context.Context, article *domain.Article) error
	DeleteArticle(ctx context.Context, id string) (*domain.Article, error)
	ListArticles(ctx context.Context, q ArticleQuery) (*PaginatedResult[*domain.Article], error)
	CountArticles(ctx context.Context, q ArticleQuery) (int, error)
	ArticleIDs(ctx context.Context, q ArticleQuery) ([]string, error)
	GetArticlesByIDs(ctx context.Context, ids []string) ([]*domain.Article, error)
	SearchArticles(ctx context.Context, term string, page Page) (*PaginatedResult[*domain.Article], error)

	// RepairBackReferences reconciles a user's article list with the
	// articles that name the user as owner and returns the repaired user.
	RepairBackReferences(ctx context.Context, userID string) (*domain.User, int, error)
}

// ArticleQuery filters, sorts, and pages an article listing.
// Zero values mean "no filter".
type ArticleQuery struct {
	Tag          string
	OwnerID      string
	FeaturedOnly bool
	Sort         Sort
	Page         Page
}

// Matches reports whether a passes the filters of q.
func (q ArticleQuery) Matches(a *domain.Article) bool {
	if q.Tag != "" && !a.HasTag(q.Tag) {
		return false
	}
	if q.OwnerID != "" && a.OwnerID != q.OwnerID {
		return false
	}
	if q.FeaturedOnly && !a.Featured {
		return false
	}
	return true
}
