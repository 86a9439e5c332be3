package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/quillpress/quill-server/internal/domain"
	"github.com/quillpress/quill-server/internal/service"
	"github.com/quillpress/quill-server/internal/store"
)

func (s *Server) registerAdminRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "adminListUsers",
		Method:      http.MethodGet,
		Path:        "/api/v1/admin/users",
		Summary:     "List users",
		Description: "Returns every user including email addresses (admin only)",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAdminListUsers)

	huma.Register(s.api, huma.Operation{
		OperationID: "adminDeleteUser",
		Method:      http.MethodDelete,
		Path:        "/api/v1/admin/users/{id}",
		Summary:     "Delete user",
		Description: "Deletes a user and every article they own (admin only)",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAdminDeleteUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "adminListArticles",
		Method:      http.MethodGet,
		Path:        "/api/v1/admin/articles",
		Summary:     "List articles for moderation",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAdminListArticles)

	huma.Register(s.api, huma.Operation{
		OperationID: "adminDeleteArticle",
		Method:      http.MethodDelete,
		Path:        "/api/v1/admin/articles/{id}",
		Summary:     "Delete any article",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAdminDeleteArticle)
}

// AdminIDInput identifies a resource for an admin operation.
type AdminIDInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token"`
	ID            string `path:"id" doc:"Resource ID"`
}

// AdminListArticlesInput contains the moderation listing request.
type AdminListArticlesInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token"`
	Sort          string `query:"sort" doc:"latest, oldest, title-asc, or title-desc"`
	Page          string `query:"page" doc:"1-based page number"`
	Limit         string `query:"limit" doc:"Page size, at most 100"`
}

// UserListOutput wraps a list of users.
type UserListOutput struct {
	Body []domain.PublicUser
}

// UserDeletionOutput wraps a user deletion summary.
type UserDeletionOutput struct {
	Body *service.UserDeletion
}

func (s *Server) handleAdminListUsers(ctx context.Context, input *AuthenticatedInput) (*UserListOutput, error) {
	admin, err := s.requireRoles(ctx, input.Authorization, domain.Admins)
	if err != nil {
		return nil, err
	}

	users, err := s.services.Admin.ListUsers(ctx, admin)
	if err != nil {
		return nil, err
	}
	return &UserListOutput{Body: users}, nil
}

func (s *Server) handleAdminDeleteUser(ctx context.Context, input *AdminIDInput) (*UserDeletionOutput, error) {
	admin, err := s.requireRoles(ctx, input.Authorization, domain.Admins)
	if err != nil {
		return nil, err
	}

	res, err := s.services.Admin.DeleteUser(ctx, admin, input.ID)
	if err != nil {
		return nil, err
	}
	return &UserDeletionOutput{Body: res}, nil
}

func (s *Server) handleAdminListArticles(ctx context.Context, input *AdminListArticlesInput) (*ArticlePageOutput, error) {
	admin, err := s.requireRoles(ctx, input.Authorization, domain.Admins)
	if err != nil {
		return nil, err
	}

	page, err := s.services.Admin.ListArticles(ctx, admin, store.ParseSort(input.Sort), store.NewPage(input.Page, input.Limit))
	if err != nil {
		return nil, err
	}
	return &ArticlePageOutput{Body: page}, nil
}

func (s *Server) handleAdminDeleteArticle(ctx context.Context, input *AdminIDInput) (*DeleteArticleOutput, error) {
	admin, err := s.requireRoles(ctx, input.Authorization, domain.Admins)
	if err != nil {
		return nil, err
	}

	res, err := s.services.Admin.DeleteArticle(ctx, admin, input.ID)
	if err != nil {
		return nil, err
	}
	return &DeleteArticleOutput{Body: res}, nil
}
