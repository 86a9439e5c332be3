package service

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/quillpress/quill-server/internal/domain"
	domainerrors "github.com/quillpress/quill-server/internal/errors"
	"github.com/quillpress/quill-server/internal/store"
)

// AdminService handles moderation. Every method expects an admin identity.
type AdminService struct {
	store    store.Store
	articles *ArticleService
	media    *MediaClient
	logger   *slog.Logger
}

// NewAdminService creates a new admin service.
func NewAdminService(store store.Store, articles *ArticleService, media *MediaClient, logger *slog.Logger) *AdminService {
	return &AdminService{
		store:    store,
		articles: articles,
		media:    media,
		logger:   logger,
	}
}

// ListUsers returns every user, oldest account first.
func (s *AdminService) ListUsers(ctx context.Context, admin *domain.User) ([]domain.PublicUser, error) {
	if err := requireRole(admin, domain.Admins); err != nil {
		return nil, err
	}

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, storeError(err, "user not found")
	}
	slices.SortFunc(users, func(a, b *domain.User) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})

	out := make([]domain.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}

// UserDeletion summarizes a cascading user deletion.
type UserDeletion struct {
	ID              string `json:"id"`
	ArticlesDeleted int    `json:"articlesDeleted"`
}

// DeleteUser removes a user after deleting every article they own.
// Media of the user and their articles is deleted in the background.
// Admins cannot delete themselves.
func (s *AdminService) DeleteUser(ctx context.Context, admin *domain.User, userID string) (*UserDeletion, error) {
	if err := requireRole(admin, domain.Admins); err != nil {
		return nil, err
	}
	if admin.ID == userID {
		return nil, domainerrors.Forbidden("cannot delete your own account")
	}

	user, _, err := s.store.RepairBackReferences(ctx, userID)
	if err != nil {
		return nil, storeError(err, "user not found")
	}

	deleted := 0
	for _, articleID := range slices.Clone(user.ArticleIDs) {
		err := s.articles.removeDetached(ctx, articleID)
		if err != nil && !domainerrors.Is(err, domainerrors.ErrNotFound) {
			return nil, err
		}
		if err == nil {
			deleted++
		}
	}

	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return nil, storeError(err, "user not found")
	}
	s.media.Discard(user.ProfileImage)

	s.logger.Info("user deleted",
		"user_id", userID,
		"deleted_by", admin.ID,
		"articles_deleted", deleted,
	)
	return &UserDeletion{ID: userID, ArticlesDeleted: deleted}, nil
}

// ListArticles pages through every article for moderation.
func (s *AdminService) ListArticles(ctx context.Context, admin *domain.User, sort store.Sort, page store.Page) (*store.PaginatedResult[ArticleView], error) {
	if err := requireRole(admin, domain.Admins); err != nil {
		return nil, err
	}
	return s.articles.List(ctx, sort, page)
}

// DeleteArticle removes any article regardless of owner.
func (s *AdminService) DeleteArticle(ctx context.Context, admin *domain.User, articleID string) (*DeleteResult, error) {
	if err := requireRole(admin, domain.Admins); err != nil {
		return nil, err
	}
	return s.articles.Delete(ctx, admin, articleID)
}
