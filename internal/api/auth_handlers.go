package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/quillpress/quill-server/internal/domain"
	"github.com/quillpress/quill-server/internal/http/response"
	"github.com/quillpress/quill-server/internal/service"
)

func (s *Server) registerAuthRoutes() {
	// Registration accepts JSON or multipart (with a profile image), so it
	// is a plain chi handler.
	s.router.With(s.limitAuth).Post("/api/v1/auth/register", s.handleRegister)

	huma.Register(s.api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/login",
		Summary:     "User login",
		Description: "Authenticates an author or reader and returns a bearer token",
		Tags:        []string{"Authentication"},
		Middlewares: huma.Middlewares{s.rateLimited},
	}, s.handleLogin)

	huma.Register(s.api, huma.Operation{
		OperationID: "adminLogin",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/admin/login",
		Summary:     "Admin login",
		Description: "Authenticates an administrator. Non-admin accounts get the same error as a wrong password.",
		Tags:        []string{"Authentication"},
		Middlewares: huma.Middlewares{s.rateLimited},
	}, s.handleAdminLogin)
}

// === DTOs ===

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email" maxLength:"254" doc:"Account email"`
	Password string `json:"password" maxLength:"1024" doc:"Account password"`
}

// LoginInput wraps the login request for Huma.
type LoginInput struct {
	Body LoginRequest
}

// AuthOutput wraps the auth response for Huma.
type AuthOutput struct {
	Body *service.AuthResponse
}

// === Handlers ===

// handleRegister creates an account.
// POST /api/v1/auth/register
// Content-Type: application/json, or multipart/form-data with an optional
// "profileImage" file field.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest

	if isMultipart(r) {
		if err := s.parseForm(w, r); err != nil {
			response.HandleError(w, err, s.logger)
			return
		}
		req.Email, _ = formValue(r, "email")
		req.Password, _ = formValue(r, "password")
		req.Name, _ = formValue(r, "name")
		req.Bio, _ = formValue(r, "bio")
		req.Role, _ = formValue(r, "role")

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

	resp, err := s.services.Auth.Register(r.Context(), req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Created(w, resp, s.logger)
}

func (s *Server) handleLogin(ctx context.Context, input *LoginInput) (*AuthOutput, error) {
	resp, err := s.services.Auth.Login(ctx, service.LoginRequest{
		Email:    input.Body.Email,
		Password: input.Body.Password,
	}, "")
	if err != nil {
		return nil, err
	}
	return &AuthOutput{Body: resp}, nil
}

func (s *Server) handleAdminLogin(ctx context.Context, input *LoginInput) (*AuthOutput, error) {
	resp, err := s.services.Auth.Login(ctx, service.LoginRequest{
		Email:    input.Body.Email,
		Password: input.Body.Password,
	}, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	return &AuthOutput{Body: resp}, nil
}
