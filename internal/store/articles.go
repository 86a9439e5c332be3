package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/quillpress/quill-server/internal/domain"
)

// CreateArticle persists the article and appends its id to the owner's
// article list in one transaction. Returns ErrUserNotFound when the owner
// does not exist.
func (s *Badger) CreateArticle(ctx context.Context, article *domain.Article) error {
	now := s.now()
	if article.CreatedAt.IsZero() {
		article.CreatedAt = now
	}
	article.UpdatedAt = now

	return s.update(ctx, func(txn *badger.Txn) error {
		owner, err := s.users.GetTxn(txn, article.OwnerID)
		if err != nil {
			return notFound(err, ErrUserNotFound)
		}

		if err := s.articles.CreateTxn(txn, article.ID, article); err != nil {
			return fmt.Errorf("create article: %w", err)
		}

		if owner.AddArticle(article.ID) {
			owner.UpdatedAt = now
			if err := s.users.UpdateTxn(txn, owner.ID, owner); err != nil {
				return fmt.Errorf("append back-reference: %w", err)
			}
		}
		return nil
	})
}

// GetArticle retrieves an article by ID.
func (s *Badger) GetArticle(ctx context.Context, id string) (*domain.Article, error) {
	a, err := s.articles.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrArticleNotFound)
	}
	return a, nil
}

// UpdateArticle replaces an existing article. Ownership never changes here.
func (s *Badger) UpdateArticle(ctx context.Context, article *domain.Article) error {
	article.UpdatedAt = s.now()
	return s.update(ctx, func(txn *badger.Txn) error {
		old, err := s.articles.GetTxn(txn, article.ID)
		if err != nil {
			return notFound(err, ErrArticleNotFound)
		}
		if old.OwnerID != article.OwnerID {
			return ErrInvalidInput.WithMessage("article owner cannot change")
		}
		return s.articles.UpdateTxn(txn, article.ID, article)
	})
}

// DeleteArticle removes the article and its id from the owner's list in one
// transaction, returning the deleted record. A missing owner is tolerated.
func (s *Badger) DeleteArticle(ctx context.Context, id string) (*domain.Article, error) {
	var deleted *domain.Article
	err := s.update(ctx, func(txn *badger.Txn) error {
		a, err := s.articles.DeleteTxn(txn, id)
		if err != nil {
			return notFound(err, ErrArticleNotFound)
		}

		owner, err := s.users.GetTxn(txn, a.OwnerID)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return err
		case owner.RemoveArticle(id):
			owner.UpdatedAt = s.now()
			if err := s.users.UpdateTxn(txn, owner.ID, owner); err != nil {
				return fmt.Errorf("remove back-reference: %w", err)
			}
		}

		deleted = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// ListArticles filters, sorts, and pages articles.
func (s *Badger) ListArticles(ctx context.Context, q ArticleQuery) (*PaginatedResult[*domain.Article], error) {
	matched, err := s.matching(ctx, q)
	if err != nil {
		return nil, err
	}
	SortArticles(matched, q.Sort)
	return Paginate(matched, q.Page), nil
}

// CountArticles counts articles passing the filters of q.
func (s *Badger) CountArticles(ctx context.Context, q ArticleQuery) (int, error) {
	matched, err := s.matching(ctx, q)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

// ArticleIDs returns the ids of every article passing the filters of q.
func (s *Badger) ArticleIDs(ctx context.Context, q ArticleQuery) ([]string, error) {
	if !q.FeaturedOnly {
		switch {
		case q.Tag != "" && q.OwnerID == "":
			return s.articles.IDsByIndex(ctx, "tag", q.Tag)
		case q.OwnerID != "" && q.Tag == "":
			return s.articles.IDsByIndex(ctx, "owner", q.OwnerID)
		}
	}

	matched, err := s.matching(ctx, q)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(matched))
	for i, a := range matched {
		ids[i] = a.ID
	}
	return ids, nil
}

// GetArticlesByIDs hydrates ids in order. Missing ids are skipped.
func (s *Badger) GetArticlesByIDs(ctx context.Context, ids []string) ([]*domain.Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]*domain.Article, 0, len(ids))
	err := s.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			a, err := s.articles.GetTxn(txn, id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SearchArticles does a case-insensitive substring scan over title,
// content, and tags. Results are newest first.
func (s *Badger) SearchArticles(ctx context.Context, term string, page Page) (*PaginatedResult[*domain.Article], error) {
	var matched []*domain.Article
	for a, err := range s.articles.List(ctx) {
		if err != nil {
			return nil, err
		}
		if MatchesTerm(a, term) {
			matched = append(matched, a)
		}
	}
	SortArticles(matched, SortLatest)
	return Paginate(matched, page), nil
}

// RepairBackReferences drops ids of articles that are gone or owned by
// someone else, and appends owned articles that are missing.
func (s *Badger) RepairBackReferences(ctx context.Context, userID string) (*domain.User, int, error) {
	owned, err := s.articles.IDsByIndex(ctx, "owner", userID)
	if err != nil {
		return nil, 0, err
	}

	var (
		repaired *domain.User
		changes  int
	)
	err = s.update(ctx, func(txn *badger.Txn) error {
		u, err := s.users.GetTxn(txn, userID)
		if err != nil {
			return notFound(err, ErrUserNotFound)
		}

		changes = 0
		for _, id := range append([]string(nil), u.ArticleIDs...) {
			a, err := s.articles.GetTxn(txn, id)
			if errors.Is(err, ErrNotFound) || (err == nil && a.OwnerID != userID) {
				u.RemoveArticle(id)
				changes++
				continue
			}
			if err != nil {
				return err
			}
		}
		for _, id := range owned {
			if u.AddArticle(id) {
				changes++
			}
		}

		if changes > 0 {
			u.UpdatedAt = s.now()
			if err := s.users.UpdateTxn(txn, u.ID, u); err != nil {
				return err
			}
		}
		repaired = u
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	if changes > 0 && s.logger != nil {
		s.logger.Warn("repaired article back-references", "user_id", userID, "changes", changes)
	}
	return repaired, changes, nil
}

// matching loads the articles passing q, using an index when one applies.
func (s *Badger) matching(ctx context.Context, q ArticleQuery) ([]*domain.Article, error) {
	var candidates []*domain.Article
	switch {
	case q.Tag != "":
		ids, err := s.articles.IDsByIndex(ctx, "tag", q.Tag)
		if err != nil {
			return nil, err
		}
		if candidates, err = s.GetArticlesByIDs(ctx, ids); err != nil {
			return nil, err
		}
	case q.OwnerID != "":
		ids, err := s.articles.IDsByIndex(ctx, "owner", q.OwnerID)
		if err != nil {
			return nil, err
		}
		if candidates, err = s.GetArticlesByIDs(ctx, ids); err != nil {
			return nil, err
		}
	default:
		all, err := s.articles.Collect(ctx)
		if err != nil {
			return nil, err
		}
		candidates = all
	}

	matched := candidates[:0]
	for _, a := range candidates {
		if q.Matches(a) {
			matched = append(matched, a)
		}
	}
	return matched, nil
}
