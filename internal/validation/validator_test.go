package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/quillpress/quill-server/internal/errors"
	"github.com/quillpress/quill-server/internal/validation"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=1024"`
	Name     string `json:"name" validate:"required,max=100"`
	Role     string `json:"role" validate:"omitempty,role"`
}

type articleRequest struct {
	Title string   `json:"title" validate:"required"`
	Tags  []string `json:"tags" validate:"max=10,dive,tag"`
}

func TestValidator_Success(t *testing.T) {
	v := validation.New()

	err := v.Validate(registerRequest{
		Email:    "ada@example.com",
		Password: "password123",
		Name:     "Ada",
		Role:     "Author",
	})
	assert.NoError(t, err)
}

func TestValidator_FieldErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		req       registerRequest
		wantField string
		wantMsg   string
	}{
		{
			name:      "missing name",
			req:       registerRequest{Email: "ada@example.com", Password: "password123"},
			wantField: "name",
			wantMsg:   "is required",
		},
		{
			name:      "bad email",
			req:       registerRequest{Email: "nope", Password: "password123", Name: "Ada"},
			wantField: "email",
			wantMsg:   "must be a valid email address",
		},
		{
			name:      "short password",
			req:       registerRequest{Email: "ada@example.com", Password: "short", Name: "Ada"},
			wantField: "password",
			wantMsg:   "must be at least 8 characters",
		},
		{
			name:      "unknown role",
			req:       registerRequest{Email: "ada@example.com", Password: "password123", Name: "Ada", Role: "editor"},
			wantField: "role",
			wantMsg:   "must be one of: admin author reader",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			require.Error(t, err)

			var domainErr *domainerrors.Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, domainerrors.CodeValidation, domainErr.Code)

			details, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Equal(t, tt.wantMsg, details[tt.wantField])
		})
	}
}

func TestValidator_TagRule(t *testing.T) {
	v := validation.New()

	assert.NoError(t, v.Validate(articleRequest{Title: "t", Tags: []string{"go", "web dev"}}))

	err := v.Validate(articleRequest{Title: "t", Tags: []string{"a/b"}})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))
}

func TestValidator_Var(t *testing.T) {
	v := validation.New()

	assert.NoError(t, v.Var("email", "ada@example.com", "required,email"))

	err := v.Var("email", "", "required,email")
	require.Error(t, err)
	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, map[string]string{"email": "is required"}, domainErr.Details)
}
