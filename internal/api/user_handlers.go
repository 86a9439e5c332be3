package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/quillpress/quill-server/internal/authz"
	"github.com/quillpress/quill-server/internal/domain"
	"github.com/quillpress/quill-server/internal/http/response"
	"github.com/quillpress/quill-server/internal/service"
)

func (s *Server) registerUserRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getCurrentUser",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/me",
		Summary:     "Get current user",
		Description: "Returns the authenticated user's profile",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetCurrentUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "getUserProfile",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{id}",
		Summary:     "Get user profile",
		Description: "Returns a user's public profile",
		Tags:        []string{"Users"},
	}, s.handleGetUserProfile)

	// Profile updates may carry an image, so they go through chi.
	s.router.With(s.gate.Middleware).Put("/api/v1/users/me", s.handleUpdateCurrentUser)
}

// UserOutput wraps a public user for Huma.
type UserOutput struct {
	Body domain.PublicUser
}

// GetUserProfileInput contains the user profile request.
type GetUserProfileInput struct {
	ID string `path:"id" doc:"User ID"`
}

func (s *Server) handleGetCurrentUser(ctx context.Context, input *AuthenticatedInput) (*UserOutput, error) {
	user, err := s.authenticate(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	me, err := s.services.Auth.Me(ctx, user)
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: me}, nil
}

func (s *Server) handleGetUserProfile(ctx context.Context, input *GetUserProfileInput) (*UserOutput, error) {
	profile, err := s.services.Auth.GetProfile(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: profile}, nil
}

// handleUpdateCurrentUser updates the caller's name, bio, or profile image.
// PUT /api/v1/users/me
// Content-Type: multipart/form-data with optional "name", "bio", and
// "profileImage" fields.
func (s *Server) handleUpdateCurrentUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := authz.IdentityFrom(ctx)
	if !ok {
		response.Unauthorized(w, "authentication required", s.logger)
		return
	}

	var req service.UpdateProfileRequest
	if isMultipart(r) {
		if err := s.parseForm(w, r); err != nil {
			response.HandleError(w, err, s.logger)
			return
		}
		req.Name, _ = formValue(r, "name")
		req.Bio, _ = formValue(r, "bio")

		image, err := formImage(r, "profileImage")
		if err != nil {
			response.HandleError(w, err, s.logger)
			return
		}
		req.ProfileImage = image
	} else if err := s.decodeJSON(w, r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	profile, err := s.services.Auth.UpdateProfile(ctx, user, req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, profile, s.logger)
}
